// Package scheduler fires reminder callbacks at their resolved times.
package scheduler

import (
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/aspendos/council/internal/remind"
)

// ErrUnrecognized is returned when the time expression matches no
// parser rule.
var ErrUnrecognized = errors.New("unrecognized time expression")

// ErrNotFound is returned when canceling a reminder that does not
// exist or already fired.
var ErrNotFound = errors.New("reminder not found")

// Reminder is one pending scheduled callback.
type Reminder struct {
	ID        string    `json:"id"`
	Owner     string    `json:"owner"`
	Action    string    `json:"action"`
	TriggerAt time.Time `json:"trigger_at"`
}

// FireFunc is invoked when a reminder's trigger time arrives. It runs
// on the timer goroutine and should hand off quickly.
type FireFunc func(r Reminder)

// Scheduler resolves reminder text through the time-expression parser
// and arms a timer per reminder.
type Scheduler struct {
	fire FireFunc
	log  *slog.Logger
	now  func() time.Time

	mu      sync.Mutex
	pending map[string]*entry
	stopped bool
}

type entry struct {
	reminder Reminder
	timer    *time.Timer
}

func New(fire FireFunc, log *slog.Logger) *Scheduler {
	return &Scheduler{
		fire:    fire,
		log:     log,
		now:     time.Now,
		pending: make(map[string]*entry),
	}
}

// SetClock overrides the reference instant used to resolve
// expressions. Test hook; armed timers still use the wall clock.
func (s *Scheduler) SetClock(now func() time.Time) { s.now = now }

// Schedule parses the time expression and arms the reminder. An
// expression in the past fires immediately.
func (s *Scheduler) Schedule(owner, text, action string) (*Reminder, error) {
	at, ok := remind.Parse(text, s.now())
	if !ok {
		return nil, ErrUnrecognized
	}
	return s.ScheduleAt(owner, action, at)
}

// ScheduleAt arms a reminder at an already-resolved instant.
func (s *Scheduler) ScheduleAt(owner, action string, at time.Time) (*Reminder, error) {
	r := Reminder{
		ID:        uuid.NewString(),
		Owner:     owner,
		Action:    action,
		TriggerAt: at,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return nil, errors.New("scheduler stopped")
	}

	delay := time.Until(at)
	if delay < 0 {
		delay = 0
	}
	e := &entry{reminder: r}
	e.timer = time.AfterFunc(delay, func() { s.trigger(r.ID) })
	s.pending[r.ID] = e

	s.log.Info("reminder scheduled", "id", r.ID, "owner", owner, "trigger_at", at)
	return &r, nil
}

func (s *Scheduler) trigger(id string) {
	s.mu.Lock()
	e, ok := s.pending[id]
	if ok {
		delete(s.pending, id)
	}
	stopped := s.stopped
	s.mu.Unlock()

	if !ok || stopped {
		return
	}
	s.log.Info("reminder fired", "id", id, "owner", e.reminder.Owner)
	s.fire(e.reminder)
}

// Cancel disarms a pending reminder.
func (s *Scheduler) Cancel(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.pending[id]
	if !ok {
		return ErrNotFound
	}
	e.timer.Stop()
	delete(s.pending, id)
	return nil
}

// Pending lists reminders not yet fired, soonest first.
func (s *Scheduler) Pending() []Reminder {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Reminder, 0, len(s.pending))
	for _, e := range s.pending {
		out = append(out, e.reminder)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].TriggerAt.Before(out[j].TriggerAt)
	})
	return out
}

// Stop disarms every pending reminder. Reminders already on the timer
// goroutine are suppressed.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	for id, e := range s.pending {
		e.timer.Stop()
		delete(s.pending, id)
	}
}
