// Package ledger computes the monetary cost of model calls from token
// counts and a per-model rate table. Cost is a total function: unknown
// models fall back to a default rate rather than failing the request.
package ledger

// Rate is the price per 1000 tokens for one model.
type Rate struct {
	InputPer1K  float64
	OutputPer1K float64
}

// Ledger holds the configured rate table. It is immutable after
// construction and safe for concurrent use without locking.
type Ledger struct {
	rates       map[string]Rate
	defaultRate Rate
}

// New builds a ledger from a rate table and the default rate used for
// unrecognized models.
func New(rates map[string]Rate, defaultRate Rate) *Ledger {
	copied := make(map[string]Rate, len(rates))
	for id, r := range rates {
		copied[id] = r
	}
	return &Ledger{rates: copied, defaultRate: defaultRate}
}

// Rate returns the rate for model, or the default rate when the model
// is not in the table.
func (l *Ledger) Rate(model string) Rate {
	if r, ok := l.rates[model]; ok {
		return r
	}
	return l.defaultRate
}

// Cost returns the cost in dollars of a call that consumed inputTokens
// and produced outputTokens on model.
func (l *Ledger) Cost(model string, inputTokens, outputTokens int) float64 {
	r := l.Rate(model)
	return float64(inputTokens)/1000.0*r.InputPer1K + float64(outputTokens)/1000.0*r.OutputPer1K
}
