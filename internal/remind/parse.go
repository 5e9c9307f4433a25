// Package remind recognizes a small, fixed grammar of reminder time
// expressions. It is an ordered-rule recognizer, not a general
// date-time parser: rules are tried in priority order and the first
// match wins.
package remind

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// DefaultHour is the local hour used for day-granularity expressions
// like "tomorrow" and "next week".
const DefaultHour = 9

var (
	inPattern      = regexp.MustCompile(`(?i)\bin\s+(\d+)\s+(minute|minutes|hour|hours|day|days|week|weeks)\b`)
	fromNowPattern = regexp.MustCompile(`(?i)\b(\d+)\s+(minute|minutes|hour|hours|day|days|week|weeks)\s+from\s+now\b`)
	barePattern    = regexp.MustCompile(`(?i)\b(\d+)\s+(minute|minutes|hour|hours|day|days|week|weeks)\b`)
)

// Parse resolves a free-text time expression against the reference
// instant ref. The second return is false when no rule matches; Parse
// never fails otherwise.
func Parse(text string, ref time.Time) (time.Time, bool) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return time.Time{}, false
	}
	lower := strings.ToLower(trimmed)

	// Rule 1: ISO-8601 literal, date-time before bare date.
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, trimmed); err == nil {
			if layout == "2006-01-02" {
				return time.Date(t.Year(), t.Month(), t.Day(), DefaultHour, 0, 0, 0, ref.Location()), true
			}
			return t, true
		}
	}

	// Rule 2: "tomorrow" at the default hour. AddDate recomputes
	// day-of-month and month, so month and year boundaries roll over
	// correctly.
	if strings.Contains(lower, "tomorrow") {
		d := ref.AddDate(0, 0, 1)
		return time.Date(d.Year(), d.Month(), d.Day(), DefaultHour, 0, 0, 0, ref.Location()), true
	}

	// Rule 3: "next week".
	if strings.Contains(lower, "next week") {
		d := ref.AddDate(0, 0, 7)
		return time.Date(d.Year(), d.Month(), d.Day(), DefaultHour, 0, 0, 0, ref.Location()), true
	}

	// Rules 4-6 share the arithmetic; only the surface form differs.
	// "in N unit" and "N unit from now" outrank the bare "N unit" form
	// so the bare rule never shadows them.
	for _, pattern := range []*regexp.Regexp{inPattern, fromNowPattern, barePattern} {
		if m := pattern.FindStringSubmatch(trimmed); m != nil {
			n, err := strconv.Atoi(m[1])
			if err != nil {
				continue
			}
			return addUnits(ref, n, m[2]), true
		}
	}

	return time.Time{}, false
}

func addUnits(ref time.Time, n int, unit string) time.Time {
	switch strings.TrimSuffix(strings.ToLower(unit), "s") {
	case "minute":
		return ref.Add(time.Duration(n) * time.Minute)
	case "hour":
		return ref.Add(time.Duration(n) * time.Hour)
	case "day":
		return ref.AddDate(0, 0, n)
	case "week":
		return ref.AddDate(0, 0, 7*n)
	}
	return ref
}
