package ledger

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func testLedger() *Ledger {
	return New(map[string]Rate{
		"openai/gpt-5.2":          {InputPer1K: 0.10, OutputPer1K: 0.40},
		"anthropic/claude-sonnet": {InputPer1K: 0.003, OutputPer1K: 0.015},
	}, Rate{InputPer1K: 0.002, OutputPer1K: 0.008})
}

func TestCostZeroTokens(t *testing.T) {
	l := testLedger()
	require.Zero(t, l.Cost("openai/gpt-5.2", 0, 0))
	require.Zero(t, l.Cost("nonexistent/model", 0, 0))
}

func TestCostKnownModel(t *testing.T) {
	l := testLedger()
	require.InDelta(t, 0.10+0.40, l.Cost("openai/gpt-5.2", 1000, 1000), 1e-9)
	require.InDelta(t, 0.0015+0.0075, l.Cost("anthropic/claude-sonnet", 500, 500), 1e-9)
}

func TestCostUnknownModelUsesDefaultRate(t *testing.T) {
	l := testLedger()
	require.InDelta(t, 0.002+0.008, l.Cost("mystery/model-x", 1000, 1000), 1e-9)

	rate := l.Rate("mystery/model-x")
	require.Equal(t, 0.002, rate.InputPer1K)
	require.Equal(t, 0.008, rate.OutputPer1K)
}

func TestCostLinearity(t *testing.T) {
	l := testLedger()
	for _, model := range []string{"openai/gpt-5.2", "unknown/model"} {
		for _, pair := range [][2]int{{100, 200}, {1234, 5678}, {1, 999999}} {
			in, out := pair[0], pair[1]
			whole := l.Cost(model, in, out)
			parts := l.Cost(model, in, 0) + l.Cost(model, 0, out)
			require.InDelta(t, whole, parts, 1e-9, "model %s in=%d out=%d", model, in, out)
		}
	}
}
