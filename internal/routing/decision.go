// Package routing resolves which models serve a request. It covers
// two paths: the static seat-to-model fallback chains used by council
// sessions, and the free-text classifier used by the general chat
// path to pick a route for a single message.
package routing

import "time"

// RouteKind identifies which variant of a Decision is populated.
type RouteKind string

const (
	RouteDirectReply       RouteKind = "direct_reply"
	RouteMemorySearch      RouteKind = "memory_search"
	RouteToolCall          RouteKind = "tool_call"
	RouteScheduledCallback RouteKind = "scheduled_callback"
)

// Decision is the outcome of classifying one message. Only the fields
// relevant to Kind are set. Decisions are produced and consumed within
// a single request and are never persisted.
type Decision struct {
	Kind       RouteKind `json:"kind"`
	Model      string    `json:"model"`
	Confidence float64   `json:"confidence,omitempty"`

	// RouteMemorySearch
	SearchQuery string `json:"search_query,omitempty"`

	// RouteToolCall
	Tool       string         `json:"tool,omitempty"`
	ToolParams map[string]any `json:"tool_params,omitempty"`

	// RouteScheduledCallback
	TriggerAt time.Time `json:"trigger_at,omitempty"`
	Action    string    `json:"action,omitempty"`

	// Reason records why this route was chosen, including any
	// downgrade from a richer variant.
	Reason string `json:"reason,omitempty"`
}

// ModelRef is one entry in a resolved attempt list.
type ModelRef struct {
	ID            string
	Vendor        string
	ContextWindow int
}
