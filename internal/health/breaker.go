// Package health tracks per-provider availability with a circuit
// breaker. The breaker is purely observational about why a call failed;
// callers decide which errors count as provider outcomes before calling
// Record.
package health

import (
	"sync"
	"time"
)

// State is the gate state for one provider.
type State string

const (
	// StateClosed permits calls normally.
	StateClosed State = "closed"
	// StateOpen short-circuits calls until the cooldown deadline.
	StateOpen State = "open"
	// StateHalfOpen permits a single probe call.
	StateHalfOpen State = "half-open"
)

// Settings controls the breaker's window and backoff behavior.
type Settings struct {
	// Window is the sliding window over which failures are counted.
	Window time.Duration
	// FailureThreshold opens the gate when this many failures land
	// within Window.
	FailureThreshold int
	// Cooldown is the initial open-state duration before a probe.
	Cooldown time.Duration
	// MaxCooldown caps the exponential backoff from repeated probe
	// failures.
	MaxCooldown time.Duration
}

// ProviderHealth is a point-in-time snapshot of one provider's gate.
type ProviderHealth struct {
	Provider       string    `json:"provider"`
	State          State     `json:"state"`
	RecentFailures int       `json:"recent_failures"`
	RecentCalls    int       `json:"recent_calls"`
	RetryAt        time.Time `json:"retry_at,omitempty"`
	LastTransition time.Time `json:"last_transition,omitempty"`
}

type outcome struct {
	at time.Time
	ok bool
}

type record struct {
	state          State
	outcomes       []outcome
	cooldown       time.Duration
	retryAt        time.Time
	lastTransition time.Time
	probeInFlight  bool
	// probeDeadline bounds how long an admitted probe may go without a
	// recorded outcome before the gate re-admits another. A probe whose
	// call ends in a cancel or a config error never reports back, and
	// the gate must not stay shut forever on its account.
	probeDeadline time.Time
}

// Breaker is the process-wide provider health gate, shared by every
// worker in every session. Records are created lazily per provider and
// never removed; the provider set is fixed by configuration.
type Breaker struct {
	settings Settings
	now      func() time.Time

	mu      sync.RWMutex
	records map[string]*record
}

// New creates a breaker with the given settings.
func New(settings Settings) *Breaker {
	return &Breaker{
		settings: settings,
		now:      time.Now,
		records:  make(map[string]*record),
	}
}

// SetClock overrides the breaker's clock. Test hook.
func (b *Breaker) SetClock(now func() time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.now = now
}

func (b *Breaker) record(provider string) *record {
	r, ok := b.records[provider]
	if !ok {
		r = &record{state: StateClosed, cooldown: b.settings.Cooldown}
		b.records[provider] = r
	}
	return r
}

// Allow reports whether a call to provider may be attempted now. In the
// open state it returns false until the cooldown deadline, then admits
// exactly one probe; further calls are refused until the probe outcome
// is recorded or one cooldown passes without it.
func (b *Breaker) Allow(provider string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	r := b.record(provider)
	now := b.now()

	switch r.state {
	case StateClosed:
		return true
	case StateOpen:
		if now.Before(r.retryAt) {
			return false
		}
		r.state = StateHalfOpen
		r.lastTransition = now
		r.probeInFlight = true
		r.probeDeadline = now.Add(r.cooldown)
		return true
	case StateHalfOpen:
		if r.probeInFlight && now.Before(r.probeDeadline) {
			return false
		}
		r.probeInFlight = true
		r.probeDeadline = now.Add(r.cooldown)
		return true
	}
	return true
}

// Record reports the outcome of a provider attempt. Callers must not
// report breaker skips or configuration errors; those are not provider
// outcomes.
func (b *Breaker) Record(provider string, ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	r := b.record(provider)
	now := b.now()
	r.outcomes = append(r.outcomes, outcome{at: now, ok: ok})
	b.prune(r, now)

	switch r.state {
	case StateHalfOpen:
		r.probeInFlight = false
		if ok {
			r.state = StateClosed
			r.cooldown = b.settings.Cooldown
			r.outcomes = nil
		} else {
			r.cooldown = min(r.cooldown*2, b.settings.MaxCooldown)
			r.state = StateOpen
			r.retryAt = now.Add(r.cooldown)
		}
		r.lastTransition = now
	case StateClosed:
		if !ok && b.failures(r) >= b.settings.FailureThreshold {
			r.state = StateOpen
			r.retryAt = now.Add(r.cooldown)
			r.lastTransition = now
		}
	case StateOpen:
		// A call admitted before the gate opened may still report here;
		// the deadline already covers it.
	}
}

func (b *Breaker) prune(r *record, now time.Time) {
	cutoff := now.Add(-b.settings.Window)
	i := 0
	for i < len(r.outcomes) && r.outcomes[i].at.Before(cutoff) {
		i++
	}
	r.outcomes = r.outcomes[i:]
}

func (b *Breaker) failures(r *record) int {
	n := 0
	for _, o := range r.outcomes {
		if !o.ok {
			n++
		}
	}
	return n
}

// State returns the current gate state for provider.
func (b *Breaker) State(provider string) State {
	b.mu.RLock()
	defer b.mu.RUnlock()
	r, ok := b.records[provider]
	if !ok {
		return StateClosed
	}
	// An expired open gate is reported half-open: the next Allow will
	// admit a probe.
	if r.state == StateOpen && !b.now().Before(r.retryAt) {
		return StateHalfOpen
	}
	return r.state
}

// Snapshot returns the current health of every provider seen so far.
func (b *Breaker) Snapshot() []ProviderHealth {
	b.mu.RLock()
	defer b.mu.RUnlock()

	snap := make([]ProviderHealth, 0, len(b.records))
	for name, r := range b.records {
		failures := 0
		for _, o := range r.outcomes {
			if !o.ok {
				failures++
			}
		}
		h := ProviderHealth{
			Provider:       name,
			State:          r.state,
			RecentFailures: failures,
			RecentCalls:    len(r.outcomes),
			LastTransition: r.lastTransition,
		}
		if r.state == StateOpen {
			h.RetryAt = r.retryAt
		}
		snap = append(snap, h)
	}
	return snap
}
