package models

import "time"

// EventType identifies the kind of stream event.
type EventType string

const (
	EventPersonaDelta    EventType = "persona_delta"
	EventPersonaStatus   EventType = "persona_status"
	EventSessionStatus   EventType = "session_status"
	EventError           EventType = "error"
	EventReminderTrigger EventType = "reminder_trigger"
)

// Event is a single entry in a session's outbound stream. Seq is the
// broker-assigned position in the multiplexed stream; PersonaSeq is the
// per-assignment sequence used for delta ordering within one seat.
type Event struct {
	Seq        int64          `json:"seq"`
	Type       EventType      `json:"type"`
	Seat       Seat           `json:"seat,omitempty"`
	PersonaSeq int64          `json:"persona_seq,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
	Data       map[string]any `json:"data,omitempty"`
}

// NewEvent creates an event with the current timestamp. The broker
// assigns Seq at publish time.
func NewEvent(t EventType, data map[string]any) Event {
	return Event{
		Type:      t,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}
}

// DeltaData returns event data for one increment of streamed output.
func DeltaData(text string) map[string]any {
	return map[string]any{"text": text}
}

// PersonaStatusData returns event data for an assignment status change.
func PersonaStatusData(status AssignmentStatus, code ErrorCode, model string) map[string]any {
	data := map[string]any{"status": string(status)}
	if code != "" {
		data["error_code"] = string(code)
	}
	if model != "" {
		data["model"] = model
	}
	return data
}

// SessionStatusData returns event data for a session status change.
func SessionStatusData(status SessionStatus) map[string]any {
	return map[string]any{"status": string(status)}
}

// ErrorData returns event data for a stream-level error.
func ErrorData(code ErrorCode, message string) map[string]any {
	return map[string]any{
		"error_code": string(code),
		"message":    message,
	}
}

// ReminderTriggerData returns event data for a fired reminder.
func ReminderTriggerData(reminderID, text string, dueAt time.Time) map[string]any {
	return map[string]any{
		"reminder_id": reminderID,
		"text":        text,
		"due_at":      dueAt.UTC().Format(time.RFC3339),
	}
}
