// Package webapi exposes the council over HTTP: session creation and
// cancellation, a server-sent-events stream per session, the free-text
// router, and read-only views of the model catalog and provider health.
package webapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/aspendos/council/internal/config"
	"github.com/aspendos/council/internal/council"
	"github.com/aspendos/council/internal/health"
	"github.com/aspendos/council/internal/models"
	"github.com/aspendos/council/internal/routing"
	"github.com/aspendos/council/internal/stream"
)

// Version is set at build time or defaults to dev.
var Version = "0.2.0"

// Sessions is the orchestrator surface the handlers need.
type Sessions interface {
	CreateSession(userID, query string, seats []models.Seat) (*models.Session, error)
	Cancel(id string) error
	GetSession(id string) (*models.Session, error)
	ListSessions() ([]*models.Session, error)
	Health() []health.ProviderHealth
}

// Router classifies free-text messages.
type Router interface {
	Route(ctx context.Context, message string, recent []string) routing.Decision
}

// Handlers holds the HTTP handler methods for the web API.
type Handlers struct {
	sessions  Sessions
	router    Router
	broker    *stream.Broker
	cfg       *config.Config
	reminders Reminders
}

// NewHandlers creates a new Handlers over the given services. A nil
// reminders service disables the reminder endpoints.
func NewHandlers(sessions Sessions, router Router, broker *stream.Broker, cfg *config.Config, reminders Reminders) *Handlers {
	return &Handlers{sessions: sessions, router: router, broker: broker, cfg: cfg, reminders: reminders}
}

// HandleHealth returns a simple liveness response.
func (h *Handlers) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok", Version: Version})
}

// HandleProviderHealth returns the breaker's per-provider gate states.
func (h *Handlers) HandleProviderHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.sessions.Health())
}

// HandleCreateSession starts a deliberation and returns the stream URL.
func (h *Handlers) HandleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req CreateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	seats := make([]models.Seat, 0, len(req.Seats))
	for _, s := range req.Seats {
		seats = append(seats, models.Seat(s))
	}

	session, err := h.sessions.CreateSession(req.UserID, req.Query, seats)
	if err != nil {
		if errors.Is(err, council.ErrInvalidQuery) {
			writeError(w, http.StatusBadRequest, err.Error())
		} else {
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	writeJSON(w, http.StatusCreated, CreateSessionResponse{
		SessionID: session.ID,
		StreamURL: fmt.Sprintf("/api/sessions/%s/events", session.ID),
	})
}

// HandleListSessions returns all sessions, newest first.
func (h *Handlers) HandleListSessions(w http.ResponseWriter, _ *http.Request) {
	sessions, err := h.sessions.ListSessions()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	out := make([]SessionSummary, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, summarize(s))
	}
	writeJSON(w, http.StatusOK, out)
}

// HandleSessionDetail returns one session with its assignments.
func (h *Handlers) HandleSessionDetail(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "session id is required")
		return
	}

	session, err := h.sessions.GetSession(id)
	if err != nil {
		if errors.Is(err, council.ErrSessionNotFound) {
			writeError(w, http.StatusNotFound, "session not found")
		} else {
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	writeJSON(w, http.StatusOK, detail(session))
}

// HandleCancelSession stops a running session.
func (h *Handlers) HandleCancelSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "session id is required")
		return
	}

	switch err := h.sessions.Cancel(id); {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]string{"status": "canceled"})
	case errors.Is(err, council.ErrSessionNotFound):
		writeError(w, http.StatusNotFound, "session not found")
	case errors.Is(err, council.ErrAlreadyTerminal):
		writeError(w, http.StatusConflict, "session already terminal")
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// HandleRoute classifies a free-text message into a route decision.
func (h *Handlers) HandleRoute(w http.ResponseWriter, r *http.Request) {
	var req RouteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Message == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}

	decision := h.router.Route(r.Context(), req.Message, req.Recent)
	writeJSON(w, http.StatusOK, RouteResponse{Decision: decision})
}

// HandleModels returns the model catalog.
func (h *Handlers) HandleModels(w http.ResponseWriter, _ *http.Request) {
	out := make([]ModelInfo, 0, len(h.cfg.Models))
	for _, m := range h.cfg.Models {
		out = append(out, ModelInfo{
			ID:            m.ID,
			DisplayName:   m.DisplayName,
			ContextWindow: m.ContextWindow,
			Pinned:        m.Pinned,
			InputPer1K:    m.InputPer1K,
			OutputPer1K:   m.OutputPer1K,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// RegisterRoutes registers all web API routes on the given mux.
func RegisterRoutes(mux *http.ServeMux, sessions Sessions, router Router, broker *stream.Broker, cfg *config.Config, reminders Reminders) {
	h := NewHandlers(sessions, router, broker, cfg, reminders)
	mux.HandleFunc("GET /api/health", h.HandleHealth)
	mux.HandleFunc("GET /api/health/providers", h.HandleProviderHealth)
	mux.HandleFunc("GET /api/models", h.HandleModels)
	mux.HandleFunc("POST /api/sessions", h.HandleCreateSession)
	mux.HandleFunc("GET /api/sessions", h.HandleListSessions)
	mux.HandleFunc("GET /api/sessions/{id}", h.HandleSessionDetail)
	mux.HandleFunc("GET /api/sessions/{id}/events", h.HandleSessionEvents)
	mux.HandleFunc("DELETE /api/sessions/{id}", h.HandleCancelSession)
	mux.HandleFunc("POST /api/route", h.HandleRoute)
	mux.HandleFunc("POST /api/reminders", h.HandleCreateReminder)
	mux.HandleFunc("GET /api/reminders", h.HandleListReminders)
	mux.HandleFunc("DELETE /api/reminders/{id}", h.HandleCancelReminder)
}

// CORSMiddleware wraps a handler with CORS headers. If allowedOrigins
// is empty, no CORS header is set (same-origin only).
func CORSMiddleware(next http.Handler, allowedOrigins ...string) http.Handler {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if len(allowedOrigins) > 0 && origin != "" && allowed[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Last-Event-ID")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, ErrorResponse{Error: msg, Code: code})
}
