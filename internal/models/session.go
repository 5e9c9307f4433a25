package models

import "time"

// SessionStatus represents the lifecycle state of a council session.
type SessionStatus string

const (
	SessionCreated      SessionStatus = "created"
	SessionDeliberating SessionStatus = "deliberating"
	SessionSynthesizing SessionStatus = "synthesizing"
	SessionComplete     SessionStatus = "complete"
	SessionFailed       SessionStatus = "failed"
	SessionCanceled     SessionStatus = "canceled"
)

// Terminal reports whether the status admits no further transitions.
func (s SessionStatus) Terminal() bool {
	return s == SessionComplete || s == SessionFailed || s == SessionCanceled
}

// sessionOrder encodes the forward-only progression of a session.
var sessionOrder = map[SessionStatus]int{
	SessionCreated:      0,
	SessionDeliberating: 1,
	SessionSynthesizing: 2,
	SessionComplete:     3,
	SessionFailed:       3,
	SessionCanceled:     3,
}

// CanTransition reports whether a session may move from s to next.
// Statuses only move forward; canceled is reachable from any
// non-terminal state.
func (s SessionStatus) CanTransition(next SessionStatus) bool {
	if s.Terminal() {
		return false
	}
	if next == SessionCanceled {
		return true
	}
	return sessionOrder[next] > sessionOrder[s]
}

// AssignmentStatus represents the lifecycle state of one persona assignment.
type AssignmentStatus string

const (
	AssignmentPending   AssignmentStatus = "pending"
	AssignmentThinking  AssignmentStatus = "thinking"
	AssignmentStreaming AssignmentStatus = "streaming"
	AssignmentComplete  AssignmentStatus = "complete"
	AssignmentFailed    AssignmentStatus = "failed"
)

// Terminal reports whether an assignment has finished, successfully or not.
func (s AssignmentStatus) Terminal() bool {
	return s == AssignmentComplete || s == AssignmentFailed
}

// ErrorCode identifies why a provider call or assignment failed.
type ErrorCode string

const (
	ErrCodeRateLimited    ErrorCode = "RATE_LIMITED"
	ErrCodeContextTooLong ErrorCode = "CONTEXT_TOO_LONG"
	ErrCodeUnavailable    ErrorCode = "PROVIDER_UNAVAILABLE"
	ErrCodeTimeout        ErrorCode = "TIMEOUT"
	ErrCodeConfig         ErrorCode = "CONFIG_ERROR"
	ErrCodeUnknown        ErrorCode = "UNKNOWN"
	ErrCodeSessionTimeout ErrorCode = "SESSION_TIMEOUT"
	ErrCodeCancelTimeout  ErrorCode = "CANCEL_TIMEOUT"
	ErrCodeCanceled       ErrorCode = "CANCELED"
)

// Seat identifies a persona's role in the council.
type Seat string

const (
	SeatLogic      Seat = "logic"
	SeatCreative   Seat = "creative"
	SeatPractical  Seat = "practical"
	SeatContrarian Seat = "contrarian"
)

// DefaultSeats returns the council's standard seating order.
func DefaultSeats() []Seat {
	return []Seat{SeatLogic, SeatCreative, SeatPractical, SeatContrarian}
}

// AttemptOutcome describes how a single provider attempt ended.
type AttemptOutcome string

const (
	AttemptSucceeded AttemptOutcome = "succeeded"
	AttemptFailed    AttemptOutcome = "failed"
	// AttemptSkipped means the circuit breaker was open and no network
	// call was made. Skips do not count against provider health.
	AttemptSkipped AttemptOutcome = "skipped"
)

// Attempt records one provider call (or breaker skip) made on behalf of
// an assignment, in the order attempted.
type Attempt struct {
	Provider  string         `json:"provider"`
	Model     string         `json:"model"`
	Outcome   AttemptOutcome `json:"outcome"`
	ErrorCode ErrorCode      `json:"error_code,omitempty"`
	LatencyMs int64          `json:"latency_ms,omitempty"`
	StartedAt time.Time      `json:"started_at"`
}

// PersonaAssignment is one seat's unit of work within a session. It is
// mutated only by its own worker and becomes immutable once terminal.
type PersonaAssignment struct {
	Seat         Seat             `json:"seat"`
	PrimaryModel string           `json:"primary_model"`
	Fallbacks    []string         `json:"fallbacks"`
	Status       AssignmentStatus `json:"status"`
	Output       string           `json:"output,omitempty"`
	TokensIn     int              `json:"tokens_in"`
	TokensOut    int              `json:"tokens_out"`
	Cost         float64          `json:"cost"`
	LatencyMs    int64            `json:"latency_ms"`
	ErrorCode    ErrorCode        `json:"error_code,omitempty"`
	// ServedBy is the model that actually produced the output, which may
	// be a fallback rather than the primary.
	ServedBy string    `json:"served_by,omitempty"`
	Attempts []Attempt `json:"attempts,omitempty"`
}

// Session is one user query's full multi-model deliberation lifecycle.
type Session struct {
	ID          string               `json:"id"`
	UserID      string               `json:"user_id,omitempty"`
	Query       string               `json:"query"`
	Assignments []*PersonaAssignment `json:"assignments"`
	Status      SessionStatus        `json:"status"`
	Synthesis   string               `json:"synthesis,omitempty"`
	TotalCost   float64              `json:"total_cost"`
	CreatedAt   time.Time            `json:"created_at"`
	CompletedAt *time.Time           `json:"completed_at,omitempty"`
}

// Assignment returns the assignment for the given seat, or nil.
func (s *Session) Assignment(seat Seat) *PersonaAssignment {
	for _, a := range s.Assignments {
		if a.Seat == seat {
			return a
		}
	}
	return nil
}

// CompletedAssignments counts assignments that finished successfully.
func (s *Session) CompletedAssignments() int {
	n := 0
	for _, a := range s.Assignments {
		if a.Status == AssignmentComplete {
			n++
		}
	}
	return n
}

// Clone deep-copies the session so the copy never aliases assignments
// the original's owner is still mutating.
func (s *Session) Clone() *Session {
	out := *s
	out.Assignments = make([]*PersonaAssignment, len(s.Assignments))
	for i, a := range s.Assignments {
		ac := *a
		ac.Fallbacks = append([]string(nil), a.Fallbacks...)
		ac.Attempts = append([]Attempt(nil), a.Attempts...)
		out.Assignments[i] = &ac
	}
	if s.CompletedAt != nil {
		t := *s.CompletedAt
		out.CompletedAt = &t
	}
	return &out
}
