package webapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/aspendos/council/internal/scheduler"
)

// Reminders is the scheduler surface the handlers need.
type Reminders interface {
	Schedule(owner, text, action string) (*scheduler.Reminder, error)
	Cancel(id string) error
	Pending() []scheduler.Reminder
}

// CreateReminderRequest is the body for POST /api/reminders.
type CreateReminderRequest struct {
	Owner  string `json:"owner"`
	When   string `json:"when"`
	Action string `json:"action"`
}

// HandleCreateReminder schedules a reminder from a free-text time
// expression.
func (h *Handlers) HandleCreateReminder(w http.ResponseWriter, r *http.Request) {
	if h.reminders == nil {
		writeError(w, http.StatusNotImplemented, "reminders disabled")
		return
	}

	var req CreateReminderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.When == "" {
		writeError(w, http.StatusBadRequest, "when is required")
		return
	}

	reminder, err := h.reminders.Schedule(req.Owner, req.When, req.Action)
	if err != nil {
		if errors.Is(err, scheduler.ErrUnrecognized) {
			writeError(w, http.StatusBadRequest, err.Error())
		} else {
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	writeJSON(w, http.StatusCreated, reminder)
}

// HandleListReminders returns pending reminders, soonest first.
func (h *Handlers) HandleListReminders(w http.ResponseWriter, _ *http.Request) {
	if h.reminders == nil {
		writeError(w, http.StatusNotImplemented, "reminders disabled")
		return
	}
	writeJSON(w, http.StatusOK, h.reminders.Pending())
}

// HandleCancelReminder disarms a pending reminder.
func (h *Handlers) HandleCancelReminder(w http.ResponseWriter, r *http.Request) {
	if h.reminders == nil {
		writeError(w, http.StatusNotImplemented, "reminders disabled")
		return
	}

	id := r.PathValue("id")
	switch err := h.reminders.Cancel(id); {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]string{"status": "canceled"})
	case errors.Is(err, scheduler.ErrNotFound):
		writeError(w, http.StatusNotFound, "reminder not found")
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
