package health

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func testSettings() Settings {
	return Settings{
		Window:           30 * time.Second,
		FailureThreshold: 3,
		Cooldown:         15 * time.Second,
		MaxCooldown:      4 * time.Minute,
	}
}

// fakeClock advances only when told to.
type fakeClock struct{ t time.Time }

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestBreaker() (*Breaker, *fakeClock) {
	b := New(testSettings())
	clock := newFakeClock()
	b.SetClock(clock.now)
	return b, clock
}

func TestClosedAllowsCalls(t *testing.T) {
	b, _ := newTestBreaker()
	require.True(t, b.Allow("openai"))
	require.Equal(t, StateClosed, b.State("openai"))
}

func TestOpensAtFailureThreshold(t *testing.T) {
	b, _ := newTestBreaker()

	b.Record("openai", false)
	b.Record("openai", false)
	require.Equal(t, StateClosed, b.State("openai"))
	require.True(t, b.Allow("openai"))

	b.Record("openai", false)
	require.Equal(t, StateOpen, b.State("openai"))
	require.False(t, b.Allow("openai"))
}

func TestOpenGateIsolatedPerProvider(t *testing.T) {
	b, _ := newTestBreaker()

	for range 3 {
		b.Record("openai", false)
	}
	require.False(t, b.Allow("openai"))

	// Another provider's gate is untouched.
	require.True(t, b.Allow("anthropic"))
	require.Equal(t, StateClosed, b.State("anthropic"))
}

func TestFailureCountIgnoresSuccesses(t *testing.T) {
	b, _ := newTestBreaker()

	// Three failures within the window open the gate regardless of
	// interleaved successes; the threshold counts failures alone.
	b.Record("openai", false)
	b.Record("openai", true)
	b.Record("openai", false)
	b.Record("openai", true)
	b.Record("openai", false)
	require.Equal(t, StateOpen, b.State("openai"))
}

func TestWindowPrunesOldFailures(t *testing.T) {
	b, clock := newTestBreaker()

	b.Record("openai", false)
	b.Record("openai", false)

	// Outside the window these no longer count.
	clock.advance(31 * time.Second)
	b.Record("openai", false)
	require.Equal(t, StateClosed, b.State("openai"))
}

func TestHalfOpenSingleProbe(t *testing.T) {
	b, clock := newTestBreaker()

	for range 3 {
		b.Record("openai", false)
	}
	require.False(t, b.Allow("openai"))

	clock.advance(15 * time.Second)
	require.Equal(t, StateHalfOpen, b.State("openai"))

	// Exactly one probe is admitted until its outcome lands.
	require.True(t, b.Allow("openai"))
	require.False(t, b.Allow("openai"))
	require.False(t, b.Allow("openai"))
}

func TestUnreportedProbeDoesNotWedgeGate(t *testing.T) {
	b, clock := newTestBreaker()

	for range 3 {
		b.Record("openai", false)
	}

	// Admit the probe, then never record its outcome. A canceled or
	// misconfigured probe call reports nothing back.
	clock.advance(15 * time.Second)
	require.True(t, b.Allow("openai"))
	require.False(t, b.Allow("openai"))

	// Once a cooldown passes without an outcome, the gate re-admits a
	// probe instead of staying shut forever.
	clock.advance(15 * time.Second)
	require.True(t, b.Allow("openai"))
	require.False(t, b.Allow("openai"))

	// The replacement probe behaves normally: its success closes the gate.
	b.Record("openai", true)
	require.Equal(t, StateClosed, b.State("openai"))
	require.True(t, b.Allow("openai"))
}

func TestProbeSuccessCloses(t *testing.T) {
	b, clock := newTestBreaker()

	for range 3 {
		b.Record("openai", false)
	}
	clock.advance(15 * time.Second)
	require.True(t, b.Allow("openai"))

	b.Record("openai", true)
	require.Equal(t, StateClosed, b.State("openai"))
	require.True(t, b.Allow("openai"))

	// The cooldown resets: a fresh trip waits the base cooldown again.
	for range 3 {
		b.Record("openai", false)
	}
	clock.advance(14 * time.Second)
	require.False(t, b.Allow("openai"))
	clock.advance(1 * time.Second)
	require.True(t, b.Allow("openai"))
}

func TestProbeFailureExtendsCooldown(t *testing.T) {
	b, clock := newTestBreaker()

	for range 3 {
		b.Record("openai", false)
	}

	// First probe fails: cooldown doubles to 30s.
	clock.advance(15 * time.Second)
	require.True(t, b.Allow("openai"))
	b.Record("openai", false)
	require.Equal(t, StateOpen, b.State("openai"))

	clock.advance(29 * time.Second)
	require.False(t, b.Allow("openai"))
	clock.advance(1 * time.Second)
	require.True(t, b.Allow("openai"))

	// Second probe fails: 60s.
	b.Record("openai", false)
	clock.advance(59 * time.Second)
	require.False(t, b.Allow("openai"))
	clock.advance(1 * time.Second)
	require.True(t, b.Allow("openai"))
}

func TestCooldownCapped(t *testing.T) {
	b, clock := newTestBreaker()

	for range 3 {
		b.Record("openai", false)
	}

	// Fail enough probes to push past the cap; 15s doubles to 240s in
	// four steps and must not exceed it.
	wait := 15 * time.Second
	for range 6 {
		clock.advance(wait)
		require.True(t, b.Allow("openai"))
		b.Record("openai", false)
		wait = min(wait*2, 4*time.Minute)
	}

	clock.advance(4 * time.Minute)
	require.True(t, b.Allow("openai"))
}

func TestSnapshot(t *testing.T) {
	b, _ := newTestBreaker()

	b.Record("openai", false)
	b.Record("openai", true)
	b.Record("anthropic", true)

	snap := b.Snapshot()
	require.Len(t, snap, 2)

	byName := make(map[string]ProviderHealth, len(snap))
	for _, h := range snap {
		byName[h.Provider] = h
	}
	require.Equal(t, 1, byName["openai"].RecentFailures)
	require.Equal(t, 2, byName["openai"].RecentCalls)
	require.Equal(t, StateClosed, byName["anthropic"].State)
}
