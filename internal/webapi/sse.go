package webapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/aspendos/council/internal/models"
	"github.com/aspendos/council/internal/stream"
)

// HandleSessionEvents streams a session's events as server-sent
// events. Reconnecting clients resume with ?after=<seq> or the
// standard Last-Event-ID header; events older than the replay window
// are announced as a gap rather than silently skipped.
func (h *Handlers) HandleSessionEvents(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "session id is required")
		return
	}

	after := resumePoint(r)
	sub, err := h.broker.Subscribe(id, after)
	if err != nil {
		if errors.Is(err, stream.ErrUnknownSession) {
			// The broker forgets topics eventually; fall back to the
			// stored record so late clients still get a terminal event.
			h.replayStored(w, id)
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	defer h.broker.Unsubscribe(id, sub)

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	if sub.Gap() {
		fmt.Fprintf(w, ": events before the replay window were dropped\n\n")
	}
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev, ok := <-sub.Events():
			if !ok {
				if errors.Is(sub.Err(), stream.ErrBacklogExceeded) {
					writeSSE(w, models.NewEvent(models.EventError,
						models.ErrorData(models.ErrCodeUnknown, "backlog exceeded, stream detached")))
					flusher.Flush()
				}
				return
			}
			writeSSE(w, ev)
			flusher.Flush()
		}
	}
}

// replayStored serves a single terminal status event for a session the
// broker no longer tracks.
func (h *Handlers) replayStored(w http.ResponseWriter, id string) {
	session, err := h.sessions.GetSession(id)
	if err != nil {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)

	writeSSE(w, models.NewEvent(models.EventSessionStatus, models.SessionStatusData(session.Status)))
	if flusher, ok := w.(http.Flusher); ok {
		flusher.Flush()
	}
}

func resumePoint(r *http.Request) int64 {
	raw := r.URL.Query().Get("after")
	if raw == "" {
		raw = r.Header.Get("Last-Event-ID")
	}
	if raw == "" {
		return 0
	}
	after, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || after < 0 {
		return 0
	}
	return after
}

func writeSSE(w http.ResponseWriter, ev models.Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "id: %d\nevent: %s\ndata: %s\n\n", ev.Seq, ev.Type, data)
}
