// Package council runs multi-model deliberation sessions: one persona
// worker per seat, each streaming its answer concurrently, followed by
// an optional synthesis pass over the seats that answered.
package council

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/aspendos/council/internal/config"
	"github.com/aspendos/council/internal/health"
	"github.com/aspendos/council/internal/ledger"
	"github.com/aspendos/council/internal/models"
	"github.com/aspendos/council/internal/provider"
	"github.com/aspendos/council/internal/routing"
	"github.com/aspendos/council/internal/store"
	"github.com/aspendos/council/internal/stream"
)

var (
	// ErrInvalidQuery rejects an empty or over-length query.
	ErrInvalidQuery = errors.New("query must be non-empty and within the length limit")

	// ErrSessionNotFound mirrors the store's not-found for callers that
	// only import this package.
	ErrSessionNotFound = store.ErrSessionNotFound

	// ErrAlreadyTerminal is returned when canceling a finished session.
	ErrAlreadyTerminal = errors.New("session already terminal")
)

// providerSource is the subset of the provider registry workers need.
type providerSource interface {
	ForModel(modelID string) (provider.Provider, error)
}

// Orchestrator owns session lifecycles. It is constructed once at
// process start and shared by every transport.
type Orchestrator struct {
	cfg       *config.Config
	resolver  *routing.Resolver
	providers providerSource
	breaker   *health.Breaker
	ledger    *ledger.Ledger
	broker    *stream.Broker
	sessions  store.SessionStore
	log       *slog.Logger

	baseCtx   context.Context
	cancelAll context.CancelFunc

	mu   sync.Mutex
	live map[string]*liveSession
}

// liveSession tracks one in-flight session. Its mutex guards every
// mutation of the session record so snapshot reads are consistent.
type liveSession struct {
	mu        sync.Mutex
	session   *models.Session
	cancel    context.CancelFunc
	done      chan struct{}
	canceled  bool
	finalized bool
}

func New(cfg *config.Config, providers providerSource, breaker *health.Breaker, led *ledger.Ledger, broker *stream.Broker, sessions store.SessionStore, log *slog.Logger) *Orchestrator {
	baseCtx, cancelAll := context.WithCancel(context.Background())
	return &Orchestrator{
		cfg:       cfg,
		resolver:  routing.NewResolver(cfg),
		providers: providers,
		breaker:   breaker,
		ledger:    led,
		broker:    broker,
		sessions:  sessions,
		log:       log,
		baseCtx:   baseCtx,
		cancelAll: cancelAll,
		live:      make(map[string]*liveSession),
	}
}

// CreateSession validates the query, allocates a session over the
// given seats (nil means the configured seating order), and starts one
// worker per seat. The returned session is a snapshot in
// `deliberating` state.
func (o *Orchestrator) CreateSession(userID, query string, seats []models.Seat) (*models.Session, error) {
	trimmed := strings.TrimSpace(query)
	if trimmed == "" || len(trimmed) > o.cfg.Tuning.MaxQueryLen {
		return nil, ErrInvalidQuery
	}

	if len(seats) == 0 {
		seats = o.cfg.SeatOrder()
	}

	session := &models.Session{
		ID:        uuid.NewString(),
		UserID:    userID,
		Query:     trimmed,
		Status:    models.SessionCreated,
		CreatedAt: time.Now().UTC(),
	}
	for _, seat := range seats {
		chain, err := o.resolver.SeatChain(seat)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve seat %s: %w", seat, err)
		}
		a := &models.PersonaAssignment{
			Seat:         seat,
			PrimaryModel: chain[0].ID,
			Status:       models.AssignmentPending,
		}
		for _, ref := range chain[1:] {
			a.Fallbacks = append(a.Fallbacks, ref.ID)
		}
		session.Assignments = append(session.Assignments, a)
	}

	if err := o.sessions.Put(session.Clone()); err != nil {
		return nil, fmt.Errorf("failed to persist session: %w", err)
	}
	o.broker.Open(session.ID)

	ctx, cancel := context.WithTimeout(o.baseCtx, o.cfg.Tuning.SessionTimeout())
	ls := &liveSession{
		session: session,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	o.mu.Lock()
	o.live[session.ID] = ls
	o.mu.Unlock()

	o.setSessionStatus(ls, models.SessionDeliberating)
	o.log.Info("session created", "session_id", session.ID, "seats", len(seats))

	go o.run(ctx, ls)

	ls.mu.Lock()
	defer ls.mu.Unlock()
	return session.Clone(), nil
}

// run drives a session to a terminal state. It is the only goroutine
// that finalizes a session outside the cancel path.
func (o *Orchestrator) run(ctx context.Context, ls *liveSession) {
	defer close(ls.done)
	defer ls.cancel()

	session := ls.session

	g, workerCtx := errgroup.WithContext(ctx)
	for _, a := range session.Assignments {
		g.Go(func() error {
			o.runWorker(workerCtx, ls, a)
			return nil
		})
	}
	g.Wait()

	// Workers guarantee a terminal assignment status on every path,
	// including timeout and cancel, so nothing is left pending here.

	ls.mu.Lock()
	canceled := ls.canceled
	completed := session.CompletedAssignments()
	failCode := lastErrorCode(session)
	ls.mu.Unlock()

	if canceled {
		o.finalize(ls, models.SessionCanceled)
		return
	}

	if completed > 0 && ctx.Err() == nil {
		o.setSessionStatus(ls, models.SessionSynthesizing)
		o.synthesize(ctx, ls)
	}

	// Partial success still completes the session; only a council with
	// no answers at all fails.
	if completed > 0 {
		o.finalize(ls, models.SessionComplete)
	} else {
		o.publish(session.ID, models.NewEvent(models.EventError,
			models.ErrorData(failCode, "all council seats failed")))
		o.finalize(ls, models.SessionFailed)
	}
}

// synthesize asks the default model to merge the completed seats'
// answers. A synthesis failure downgrades to no synthesis rather than
// failing the session.
func (o *Orchestrator) synthesize(ctx context.Context, ls *liveSession) {
	session := ls.session
	model := o.cfg.Routing.DefaultModel

	p, err := o.providers.ForModel(model)
	if err != nil {
		o.log.Warn("synthesis unavailable", "session_id", session.ID, "error", err)
		return
	}

	ls.mu.Lock()
	var sb strings.Builder
	fmt.Fprintf(&sb, "Question: %s\n\n", session.Query)
	sb.WriteString("Council answers:\n")
	for _, a := range session.Assignments {
		if a.Status == models.AssignmentComplete {
			fmt.Fprintf(&sb, "\n[%s]\n%s\n", a.Seat, a.Output)
		}
	}
	prompt := sb.String()
	ls.mu.Unlock()

	text, usage, err := provider.Collect(ctx, p, provider.Request{
		Model:  model,
		System: "You are the council moderator. Merge the seats' answers into one coherent response, noting real disagreements instead of papering over them.",
		Messages: []provider.Message{
			{Role: provider.RoleUser, Content: prompt},
		},
	})
	if err != nil {
		o.log.Warn("synthesis failed", "session_id", session.ID, "model", model, "error", err)
		return
	}

	ls.mu.Lock()
	session.Synthesis = text
	session.TotalCost += o.ledger.Cost(model, usage.InputTokens, usage.OutputTokens)
	ls.mu.Unlock()
}

// finalize moves a session to its terminal status exactly once,
// publishes the terminal event, seals the stream, and persists the
// final record.
func (o *Orchestrator) finalize(ls *liveSession, status models.SessionStatus) {
	ls.mu.Lock()
	if ls.finalized {
		ls.mu.Unlock()
		return
	}
	ls.finalized = true

	session := ls.session
	total := 0.0
	for _, a := range session.Assignments {
		total += a.Cost
	}
	session.TotalCost += total
	now := time.Now().UTC()
	session.CompletedAt = &now
	if session.Status.CanTransition(status) {
		session.Status = status
	}
	snapshot := session.Clone()
	ls.mu.Unlock()

	o.publish(session.ID, models.NewEvent(models.EventSessionStatus, models.SessionStatusData(status)))
	o.broker.Close(session.ID)

	if err := o.sessions.Put(snapshot); err != nil {
		o.log.Error("failed to persist final session", "session_id", session.ID, "error", err)
	}

	o.mu.Lock()
	delete(o.live, session.ID)
	o.mu.Unlock()

	o.log.Info("session finished",
		"session_id", session.ID,
		"status", status,
		"completed_seats", snapshot.CompletedAssignments(),
		"total_cost", snapshot.TotalCost)
}

// Cancel stops a running session. It signals every worker, waits up to
// the cancel grace for acknowledgement, and force-marks any worker
// that did not stop in time.
func (o *Orchestrator) Cancel(id string) error {
	o.mu.Lock()
	ls, ok := o.live[id]
	o.mu.Unlock()

	if !ok {
		session, err := o.sessions.Get(id)
		if err != nil {
			return ErrSessionNotFound
		}
		if session.Status.Terminal() {
			return ErrAlreadyTerminal
		}
		// Known session with no live record means the process restarted
		// mid-run; treat it as unfindable rather than lying about a cancel.
		return ErrSessionNotFound
	}

	ls.mu.Lock()
	if ls.finalized || ls.session.Status.Terminal() {
		ls.mu.Unlock()
		return ErrAlreadyTerminal
	}
	ls.canceled = true
	ls.mu.Unlock()

	ls.cancel()

	select {
	case <-ls.done:
	case <-time.After(o.cfg.Tuning.CancelGrace()):
		// Workers that did not acknowledge in time are forced terminal
		// so the session never finalizes with a pending assignment.
		ls.mu.Lock()
		for _, a := range ls.session.Assignments {
			if !a.Status.Terminal() {
				a.Status = models.AssignmentFailed
				a.ErrorCode = models.ErrCodeCancelTimeout
			}
		}
		ls.mu.Unlock()
	}

	o.finalize(ls, models.SessionCanceled)
	return nil
}

// GetSession returns a consistent snapshot of a session, live or stored.
func (o *Orchestrator) GetSession(id string) (*models.Session, error) {
	o.mu.Lock()
	ls, ok := o.live[id]
	o.mu.Unlock()

	if ok {
		ls.mu.Lock()
		defer ls.mu.Unlock()
		return ls.session.Clone(), nil
	}
	return o.sessions.Get(id)
}

// ListSessions returns stored sessions overlaid with live snapshots.
func (o *Orchestrator) ListSessions() ([]*models.Session, error) {
	stored, err := o.sessions.List()
	if err != nil {
		return nil, err
	}
	for i, s := range stored {
		if snap, err := o.GetSession(s.ID); err == nil {
			stored[i] = snap
		}
	}
	return stored, nil
}

// Health exposes the breaker's per-provider view.
func (o *Orchestrator) Health() []health.ProviderHealth {
	return o.breaker.Snapshot()
}

// Shutdown cancels every live session and waits briefly for workers
// to stop.
func (o *Orchestrator) Shutdown(ctx context.Context) {
	o.cancelAll()

	o.mu.Lock()
	pending := make([]*liveSession, 0, len(o.live))
	for _, ls := range o.live {
		pending = append(pending, ls)
	}
	o.mu.Unlock()

	for _, ls := range pending {
		select {
		case <-ls.done:
		case <-ctx.Done():
			return
		}
	}
}

func (o *Orchestrator) publish(sessionID string, ev models.Event) {
	o.broker.Publish(sessionID, ev)
}

func (o *Orchestrator) setSessionStatus(ls *liveSession, status models.SessionStatus) {
	ls.mu.Lock()
	if !ls.session.Status.CanTransition(status) {
		ls.mu.Unlock()
		return
	}
	ls.session.Status = status
	id := ls.session.ID
	ls.mu.Unlock()

	o.publish(id, models.NewEvent(models.EventSessionStatus, models.SessionStatusData(status)))
}

// lastErrorCode picks a representative error code for the
// whole-session error event.
func lastErrorCode(session *models.Session) models.ErrorCode {
	code := models.ErrCodeUnknown
	for _, a := range session.Assignments {
		if a.ErrorCode != "" {
			code = a.ErrorCode
		}
	}
	return code
}
