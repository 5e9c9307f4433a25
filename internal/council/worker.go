package council

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/aspendos/council/internal/models"
	"github.com/aspendos/council/internal/provider"
	"github.com/aspendos/council/internal/routing"
)

// runWorker drives one assignment to a terminal status. It walks the
// seat's fallback chain, consulting the breaker before each attempt,
// and streams deltas to the session topic as they arrive. Assignment
// fields are only written under the session lock.
func (o *Orchestrator) runWorker(ctx context.Context, ls *liveSession, a *models.PersonaAssignment) {
	session := ls.session
	chain, err := o.resolver.SeatChain(a.Seat)
	if err != nil {
		o.failAssignment(ls, a, models.ErrCodeConfig)
		return
	}
	sc, _ := o.cfg.Seat(a.Seat)

	o.setAssignmentStatus(ls, a, models.AssignmentThinking, "")

	var personaSeq int64
	lastCode := models.ErrCodeUnavailable
	started := time.Now()

	for i := 0; i < len(chain); i++ {
		ref := chain[i]

		if ctx.Err() != nil {
			o.failAssignment(ls, a, cancelCode(ctx))
			return
		}

		p, err := o.providers.ForModel(ref.ID)
		if err != nil {
			// No backend can serve this model at all. That is our
			// misconfiguration, fatal per the error taxonomy.
			o.recordAttempt(ls, a, "", ref.ID, models.AttemptFailed, models.ErrCodeConfig, 0)
			o.failAssignment(ls, a, models.ErrCodeConfig)
			return
		}

		// An open breaker skips the call entirely. The skip is a
		// routing decision and is not reported back to the breaker.
		if !o.breaker.Allow(p.Name()) {
			o.recordAttempt(ls, a, p.Name(), ref.ID, models.AttemptSkipped, "", 0)
			o.log.Debug("breaker open, skipping model",
				"session_id", session.ID, "seat", a.Seat, "provider", p.Name(), "model", ref.ID)
			continue
		}

		attemptStart := time.Now()
		st, err := p.Generate(ctx, provider.Request{
			Model:  ref.ID,
			System: sc.SystemPrompt,
			Messages: []provider.Message{
				{Role: provider.RoleUser, Content: session.Query},
			},
		})
		if err != nil {
			next, code := o.attemptFailed(ls, a, p.Name(), ref.ID, err, attemptStart, chain, i)
			lastCode = code
			if next < 0 {
				o.failAssignment(ls, a, code)
				return
			}
			i = next - 1
			continue
		}

		o.setAssignmentStatus(ls, a, models.AssignmentStreaming, ref.ID)

		var sb strings.Builder
		streamErr := func() error {
			defer st.Close()
			for {
				chunk, err := st.Recv()
				if err != nil {
					return err
				}
				sb.WriteString(chunk.Text)
				personaSeq++
				ev := models.NewEvent(models.EventPersonaDelta, models.DeltaData(chunk.Text))
				ev.Seat = a.Seat
				ev.PersonaSeq = personaSeq
				o.publish(session.ID, ev)
			}
		}()

		if !errors.Is(streamErr, io.EOF) {
			// Partial output from a failed attempt is discarded; the
			// per-assignment delta sequence keeps counting so the
			// client sees a strictly monotonic order.
			next, code := o.attemptFailed(ls, a, p.Name(), ref.ID, streamErr, attemptStart, chain, i)
			lastCode = code
			if next < 0 {
				o.failAssignment(ls, a, code)
				return
			}
			i = next - 1
			continue
		}

		usage := st.Usage()
		o.recordAttempt(ls, a, p.Name(), ref.ID, models.AttemptSucceeded, "", time.Since(attemptStart).Milliseconds())
		o.breaker.Record(p.Name(), true)

		ls.mu.Lock()
		if a.Status.Terminal() {
			// The cancel grace period already forced this assignment
			// terminal; a late finish must not resurrect it.
			ls.mu.Unlock()
			return
		}
		a.Output = sb.String()
		a.ServedBy = ref.ID
		a.TokensIn = usage.InputTokens
		a.TokensOut = usage.OutputTokens
		a.Cost = o.ledger.Cost(ref.ID, usage.InputTokens, usage.OutputTokens)
		a.LatencyMs = time.Since(started).Milliseconds()
		a.Status = models.AssignmentComplete
		ls.mu.Unlock()

		ev := models.NewEvent(models.EventPersonaStatus, models.PersonaStatusData(models.AssignmentComplete, "", ref.ID))
		ev.Seat = a.Seat
		o.publish(session.ID, ev)
		return
	}

	o.failAssignment(ls, a, lastCode)
}

// attemptFailed classifies a provider error, records the attempt, and
// decides where the chain continues. It returns the next chain index
// to try, or -1 when the assignment must fail, along with the error
// code of this attempt.
func (o *Orchestrator) attemptFailed(ls *liveSession, a *models.PersonaAssignment, providerName, modelID string, err error, start time.Time, chain []routing.ModelRef, i int) (int, models.ErrorCode) {
	perr := provider.AsError(err, providerName, modelID)
	code := perr.Kind.Code()

	o.recordAttempt(ls, a, providerName, modelID, models.AttemptFailed, code, time.Since(start).Milliseconds())
	if perr.Kind.FeedsBreaker() {
		o.breaker.Record(providerName, false)
	}

	o.log.Warn("persona attempt failed",
		"session_id", ls.session.ID, "seat", a.Seat, "provider", providerName,
		"model", modelID, "kind", string(perr.Kind))

	switch perr.Kind {
	case provider.KindCanceled:
		return -1, code
	case provider.KindContextTooLong:
		// Only a model with more room can rescue an over-long prompt.
		for j := i + 1; j < len(chain); j++ {
			if chain[j].ContextWindow > chain[i].ContextWindow {
				return j, code
			}
		}
		return -1, code
	default:
		if !perr.Kind.Retryable() {
			return -1, code
		}
		return i + 1, code
	}
}

func (o *Orchestrator) setAssignmentStatus(ls *liveSession, a *models.PersonaAssignment, status models.AssignmentStatus, model string) {
	ls.mu.Lock()
	if a.Status.Terminal() {
		ls.mu.Unlock()
		return
	}
	a.Status = status
	ls.mu.Unlock()

	ev := models.NewEvent(models.EventPersonaStatus, models.PersonaStatusData(status, "", model))
	ev.Seat = a.Seat
	o.publish(ls.session.ID, ev)
}

func (o *Orchestrator) failAssignment(ls *liveSession, a *models.PersonaAssignment, code models.ErrorCode) {
	ls.mu.Lock()
	if a.Status.Terminal() {
		ls.mu.Unlock()
		return
	}
	a.Status = models.AssignmentFailed
	a.ErrorCode = code
	ls.mu.Unlock()

	ev := models.NewEvent(models.EventPersonaStatus, models.PersonaStatusData(models.AssignmentFailed, code, ""))
	ev.Seat = a.Seat
	o.publish(ls.session.ID, ev)
}

func (o *Orchestrator) recordAttempt(ls *liveSession, a *models.PersonaAssignment, providerName, modelID string, outcome models.AttemptOutcome, code models.ErrorCode, latencyMs int64) {
	ls.mu.Lock()
	a.Attempts = append(a.Attempts, models.Attempt{
		Provider:  providerName,
		Model:     modelID,
		Outcome:   outcome,
		ErrorCode: code,
		LatencyMs: latencyMs,
		StartedAt: time.Now().UTC(),
	})
	ls.mu.Unlock()
}

// cancelCode distinguishes the session deadline from an explicit cancel.
func cancelCode(ctx context.Context) models.ErrorCode {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return models.ErrCodeSessionTimeout
	}
	return models.ErrCodeCanceled
}
