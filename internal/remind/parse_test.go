package remind

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var ref = time.Date(2024, 1, 30, 10, 0, 0, 0, time.UTC)

func TestParseISO(t *testing.T) {
	at, ok := Parse("2024-03-15T14:30:00Z", ref)
	require.True(t, ok)
	require.Equal(t, time.Date(2024, 3, 15, 14, 30, 0, 0, time.UTC), at)

	at, ok = Parse("2024-03-15", ref)
	require.True(t, ok)
	require.Equal(t, time.Date(2024, 3, 15, 9, 0, 0, 0, time.UTC), at)
}

func TestParseTomorrow(t *testing.T) {
	at, ok := Parse("remind me Tomorrow", ref)
	require.True(t, ok)
	require.Equal(t, time.Date(2024, 1, 31, 9, 0, 0, 0, time.UTC), at)

	// Day rollover across a month boundary.
	at, ok = Parse("tomorrow", time.Date(2024, 1, 31, 22, 0, 0, 0, time.UTC))
	require.True(t, ok)
	require.Equal(t, time.Date(2024, 2, 1, 9, 0, 0, 0, time.UTC), at)
}

func TestParseNextWeek(t *testing.T) {
	at, ok := Parse("next week", ref)
	require.True(t, ok)
	require.Equal(t, time.Date(2024, 2, 6, 9, 0, 0, 0, time.UTC), at)
}

func TestParseRelativeUnits(t *testing.T) {
	tests := []struct {
		text string
		want time.Time
	}{
		{"in 5 minutes", ref.Add(5 * time.Minute)},
		{"in 2 hours", ref.Add(2 * time.Hour)},
		{"in 1 day", time.Date(2024, 1, 31, 10, 0, 0, 0, time.UTC)},
		{"3 hours from now", ref.Add(3 * time.Hour)},
		{"45 minutes", ref.Add(45 * time.Minute)},
		{"2 weeks", time.Date(2024, 2, 13, 10, 0, 0, 0, time.UTC)},
	}
	for _, tc := range tests {
		at, ok := Parse(tc.text, ref)
		require.True(t, ok, "expected %q to parse", tc.text)
		require.Equal(t, tc.want, at, "wrong instant for %q", tc.text)
	}
}

func TestParseMonthRollover(t *testing.T) {
	// January 30 + 5 days lands on February 4, not an invalid date.
	at, ok := Parse("in 5 days", ref)
	require.True(t, ok)
	require.Equal(t, time.Date(2024, 2, 4, 10, 0, 0, 0, time.UTC), at)
}

func TestParseYearRollover(t *testing.T) {
	dec := time.Date(2024, 12, 30, 10, 0, 0, 0, time.UTC)
	at, ok := Parse("in 1 week", dec)
	require.True(t, ok)
	require.Equal(t, time.Date(2025, 1, 6, 10, 0, 0, 0, time.UTC), at)
}

func TestParseEquivalentForms(t *testing.T) {
	a, ok := Parse("in 1 day", ref)
	require.True(t, ok)
	b, ok := Parse("1 day from now", ref)
	require.True(t, ok)
	require.Equal(t, a, b)
}

func TestParseDeterministic(t *testing.T) {
	first, ok := Parse("in 3 hours", ref)
	require.True(t, ok)
	for range 10 {
		again, ok := Parse("in 3 hours", ref)
		require.True(t, ok)
		require.Equal(t, first, again)
	}
}

func TestParseUnrecognized(t *testing.T) {
	for _, text := range []string{"", "   ", "gibberish", "in five days", "soonish"} {
		_, ok := Parse(text, ref)
		require.False(t, ok, "expected %q to be unrecognized", text)
	}
}

func TestParsePriorityOrder(t *testing.T) {
	// "in 2 hours" must win over the bare "2 hours" reading even when
	// both patterns are present in the text.
	at, ok := Parse("ping me in 2 hours", ref)
	require.True(t, ok)
	require.Equal(t, ref.Add(2*time.Hour), at)
}
