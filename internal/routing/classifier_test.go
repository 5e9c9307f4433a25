package routing

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aspendos/council/internal/config"
	"github.com/aspendos/council/internal/provider"
)

// testClassifier routes every model through one scripted gateway.
func testClassifier(t *testing.T, gateway *provider.ScriptedProvider) *Classifier {
	t.Helper()
	cfg := config.Default()
	registry := provider.NewStaticRegistry(nil, gateway)
	tools, err := NewToolRegistry()
	require.NoError(t, err)

	c := NewClassifier(cfg, registry, tools, slog.Default())
	c.SetClock(func() time.Time {
		return time.Date(2024, 1, 30, 10, 0, 0, 0, time.UTC)
	})
	return c
}

func classifierModel() string { return config.Default().Routing.ClassifierModel }
func backupModel() string     { return config.Default().Routing.BackupModel }
func defaultModel() string    { return config.Default().Routing.DefaultModel }

func TestRouteDirectReply(t *testing.T) {
	gw := provider.NewScripted("openrouter").Script(classifierModel(), provider.Script{
		Chunks: []string{`{"route":"direct_reply","confidence":0.95,"model":"anthropic/claude-sonnet-4.5"}`},
	})

	d := testClassifier(t, gw).Route(context.Background(), "hello there", nil)
	require.Equal(t, RouteDirectReply, d.Kind)
	require.Equal(t, "anthropic/claude-sonnet-4.5", d.Model)
	require.InDelta(t, 0.95, d.Confidence, 1e-9)
}

func TestRouteToolCall(t *testing.T) {
	gw := provider.NewScripted("openrouter").Script(classifierModel(), provider.Script{
		Chunks: []string{`{"route":"tool_call","confidence":0.9,"tool":"web_search","params":{"query":"latest go release"}}`},
	})

	d := testClassifier(t, gw).Route(context.Background(), "search for the latest go release", nil)
	require.Equal(t, RouteToolCall, d.Kind)
	require.Equal(t, "web_search", d.Tool)
	require.Equal(t, "latest go release", d.ToolParams["query"])
}

func TestRouteToolCallInvalidParamsDowngrades(t *testing.T) {
	// Missing the required query parameter.
	gw := provider.NewScripted("openrouter").Script(classifierModel(), provider.Script{
		Chunks: []string{`{"route":"tool_call","confidence":0.9,"tool":"web_search","params":{"max_results":5}}`},
	})

	d := testClassifier(t, gw).Route(context.Background(), "search something", nil)
	require.Equal(t, RouteDirectReply, d.Kind)
	require.NotEmpty(t, d.Reason)
}

func TestRouteUnknownToolDowngrades(t *testing.T) {
	gw := provider.NewScripted("openrouter").Script(classifierModel(), provider.Script{
		Chunks: []string{`{"route":"tool_call","tool":"teleporter","params":{}}`},
	})

	d := testClassifier(t, gw).Route(context.Background(), "beam me up", nil)
	require.Equal(t, RouteDirectReply, d.Kind)
}

func TestRouteScheduledCallback(t *testing.T) {
	gw := provider.NewScripted("openrouter").Script(classifierModel(), provider.Script{
		Chunks: []string{`{"route":"scheduled_callback","trigger_text":"in 5 days","action":"check on the deploy"}`},
	})

	d := testClassifier(t, gw).Route(context.Background(), "remind me in 5 days to check on the deploy", nil)
	require.Equal(t, RouteScheduledCallback, d.Kind)
	require.Equal(t, "check on the deploy", d.Action)
	// January 30 + 5 days rolls into February.
	require.Equal(t, time.Date(2024, 2, 4, 10, 0, 0, 0, time.UTC), d.TriggerAt)
}

func TestRouteScheduledUnrecognizedTimeDowngrades(t *testing.T) {
	gw := provider.NewScripted("openrouter").Script(classifierModel(), provider.Script{
		Chunks: []string{`{"route":"scheduled_callback","trigger_text":"whenever","action":"x"}`},
	})

	d := testClassifier(t, gw).Route(context.Background(), "remind me whenever", nil)
	require.Equal(t, RouteDirectReply, d.Kind)
}

func TestRouteTieBreakHistoricalReference(t *testing.T) {
	script := provider.Script{
		Chunks: []string{`{"route":"direct_reply","confidence":0.5,"alt_route":"rag_search","alt_confidence":0.45,"query":"trip plans"}`},
	}

	gw := provider.NewScripted("openrouter").Script(classifierModel(), script)
	d := testClassifier(t, gw).Route(context.Background(), "remember when we planned that trip?", nil)
	require.Equal(t, RouteMemorySearch, d.Kind)
	require.Equal(t, "trip plans", d.SearchQuery)

	// Without a historical reference the same tie resolves to a direct
	// reply.
	gw = provider.NewScripted("openrouter").Script(classifierModel(), script)
	d = testClassifier(t, gw).Route(context.Background(), "what should we plan?", nil)
	require.Equal(t, RouteDirectReply, d.Kind)
}

func TestRouteTieBreakNotAppliedWhenConfident(t *testing.T) {
	gw := provider.NewScripted("openrouter").Script(classifierModel(), provider.Script{
		Chunks: []string{`{"route":"rag_search","confidence":0.9,"alt_route":"direct_reply","alt_confidence":0.1,"query":"q"}`},
	})

	d := testClassifier(t, gw).Route(context.Background(), "find that thing", nil)
	require.Equal(t, RouteMemorySearch, d.Kind)
}

func TestRouteFallsBackToBackupClassifier(t *testing.T) {
	gw := provider.NewScripted("openrouter").
		Script(classifierModel(), provider.Script{
			CallErr: provider.NewError(provider.KindUnavailable, "openrouter", classifierModel(), "down"),
		}).
		Script(backupModel(), provider.Script{
			Chunks: []string{`{"route":"direct_reply","confidence":0.8}`},
		})

	d := testClassifier(t, gw).Route(context.Background(), "hello", nil)
	require.Equal(t, RouteDirectReply, d.Kind)
	require.Equal(t, []string{classifierModel(), backupModel()}, gw.Calls())
}

func TestRouteUnparseableOutputFallsBack(t *testing.T) {
	gw := provider.NewScripted("openrouter").
		Script(classifierModel(), provider.Script{Chunks: []string{"I am not JSON at all"}}).
		Script(backupModel(), provider.Script{
			Chunks: []string{`{"route":"direct_reply","confidence":0.7}`},
		})

	d := testClassifier(t, gw).Route(context.Background(), "hello", nil)
	require.Equal(t, RouteDirectReply, d.Kind)
}

func TestRouteBothClassifiersFailDefaults(t *testing.T) {
	gw := provider.NewScripted("openrouter").
		Script(classifierModel(), provider.Script{
			CallErr: provider.NewError(provider.KindUnavailable, "openrouter", classifierModel(), "down"),
		}).
		Script(backupModel(), provider.Script{
			CallErr: provider.NewError(provider.KindUnavailable, "openrouter", backupModel(), "down"),
		})

	d := testClassifier(t, gw).Route(context.Background(), "hello", nil)
	require.Equal(t, RouteDirectReply, d.Kind)
	require.Equal(t, defaultModel(), d.Model)
	require.NotEmpty(t, d.Reason)
}

func TestRouteToleratesCodeFences(t *testing.T) {
	gw := provider.NewScripted("openrouter").Script(classifierModel(), provider.Script{
		Chunks: []string{"```json\n", `{"route":"direct_reply","confidence":0.9}`, "\n```"},
	})

	d := testClassifier(t, gw).Route(context.Background(), "hello", nil)
	require.Equal(t, RouteDirectReply, d.Kind)
}

func TestRouteUnknownAnswerModelUsesDefault(t *testing.T) {
	gw := provider.NewScripted("openrouter").Script(classifierModel(), provider.Script{
		Chunks: []string{`{"route":"direct_reply","model":"nobody/phantom"}`},
	})

	d := testClassifier(t, gw).Route(context.Background(), "hello", nil)
	require.Equal(t, defaultModel(), d.Model)
}
