package webapi

import (
	"time"

	"github.com/aspendos/council/internal/models"
	"github.com/aspendos/council/internal/routing"
)

// CreateSessionRequest is the body for POST /api/sessions.
type CreateSessionRequest struct {
	Query  string   `json:"query"`
	UserID string   `json:"user_id,omitempty"`
	Seats  []string `json:"seats,omitempty"`
}

// CreateSessionResponse points the client at its event stream.
type CreateSessionResponse struct {
	SessionID string `json:"session_id"`
	StreamURL string `json:"stream_url"`
}

// SessionSummary is the API response for a session in the list.
type SessionSummary struct {
	ID             string     `json:"id"`
	Query          string     `json:"query"`
	Status         string     `json:"status"`
	CompletedSeats int        `json:"completed_seats"`
	SeatCount      int        `json:"seat_count"`
	TotalCost      float64    `json:"total_cost"`
	CreatedAt      time.Time  `json:"created_at"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
}

// SessionDetail is the full session record.
type SessionDetail struct {
	SessionSummary
	Synthesis   string                      `json:"synthesis,omitempty"`
	Assignments []*models.PersonaAssignment `json:"assignments"`
}

// RouteRequest is the body for POST /api/route.
type RouteRequest struct {
	Message string   `json:"message"`
	Recent  []string `json:"recent,omitempty"`
}

// RouteResponse wraps the classifier's decision.
type RouteResponse struct {
	Decision routing.Decision `json:"decision"`
}

// ModelInfo is one catalog entry in GET /api/models.
type ModelInfo struct {
	ID            string  `json:"id"`
	DisplayName   string  `json:"display_name"`
	ContextWindow int     `json:"context_window"`
	Pinned        bool    `json:"pinned"`
	InputPer1K    float64 `json:"input_per_1k"`
	OutputPer1K   float64 `json:"output_per_1k"`
}

// HealthResponse is the liveness check response.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// ErrorResponse is returned for errors.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  int    `json:"code"`
}

func summarize(s *models.Session) SessionSummary {
	return SessionSummary{
		ID:             s.ID,
		Query:          s.Query,
		Status:         string(s.Status),
		CompletedSeats: s.CompletedAssignments(),
		SeatCount:      len(s.Assignments),
		TotalCost:      s.TotalCost,
		CreatedAt:      s.CreatedAt,
		CompletedAt:    s.CompletedAt,
	}
}

func detail(s *models.Session) SessionDetail {
	return SessionDetail{
		SessionSummary: summarize(s),
		Synthesis:      s.Synthesis,
		Assignments:    s.Assignments,
	}
}
