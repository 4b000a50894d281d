// Package recency turns the many ways sources display a posting time into an
// absolute UTC instant.
package recency

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"

	"github.com/vats98754/aus-job-fetcher/internal/normalize"
)

const (
	day   = 24 * time.Hour
	week  = 7 * day
	month = 30 * day

	// Anything earlier is junk: dateparse reads yearless dates like "Jan 15"
	// as year zero, and huge relative counts land centuries back.
	minYear = 1970
)

var (
	relativePattern = regexp.MustCompile(
		`(?i)\b(?:(\d+)\s*\+?\s*|(an?|one)\s+)(months?|mos?|minutes?|mins?|hours?|hrs?|days?|weeks?|wks?|m|h|d|w)\+?\s+ago\b`)
	yesterdayPattern = regexp.MustCompile(`(?i)\byesterday\b`)
	sentinelPattern  = regexp.MustCompile(`(?i)\b(today|just now|just posted|recently)\b`)

	// Tried before dateparse so day-first dates used by Australian boards
	// are not read month-first.
	absoluteLayouts = []string{
		time.RFC3339,
		"2006-01-02",
		"02/01/2006",
		"2/1/2006",
	}
)

// Resolver resolves posting times against its clock.
type Resolver struct {
	now func() time.Time
}

// NewResolver returns a Resolver using now as its clock, or the wall clock
// when now is nil.
func NewResolver(now func() time.Time) *Resolver {
	if now == nil {
		now = time.Now
	}
	return &Resolver{now: now}
}

// Now is the resolver's current instant in UTC.
func (r *Resolver) Now() time.Time {
	return r.now().UTC()
}

// Resolve is ResolveAt relative to the resolver's clock.
func (r *Resolver) Resolve(text string) (time.Time, bool) {
	return ResolveAt(text, r.Now())
}

// ResolveAt tries relative phrases, then absolute dates, then sentinel words.
// Unrecognised or empty input reports false.
func ResolveAt(text string, ref time.Time) (time.Time, bool) {
	ref = ref.UTC()
	s := normalize.Text(text)
	if s == "" {
		return time.Time{}, false
	}

	if t, matched, ok := resolveRelative(s, ref); matched {
		return t, ok
	}
	if t, ok := resolveAbsolute(s); ok {
		return t, true
	}
	if resolveSentinel(s) {
		return ref, true
	}
	return time.Time{}, false
}

// resolveRelative reports matched when s is a relative phrase at all, and
// ok when its magnitude also lands on a representable instant.
func resolveRelative(s string, ref time.Time) (t time.Time, matched, ok bool) {
	m := relativePattern.FindStringSubmatch(s)
	if m == nil {
		if yesterdayPattern.MatchString(s) {
			return ref.Add(-day), true, true
		}
		return time.Time{}, false, false
	}

	unit, known := unitDuration(strings.ToLower(m[3]))
	if !known {
		return time.Time{}, false, false
	}

	n := int64(1)
	if m[1] != "" {
		v, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil || v > math.MaxInt64/int64(unit) {
			return time.Time{}, true, false
		}
		n = v
	}

	t = ref.Add(-time.Duration(n) * unit)
	if t.Year() < minYear {
		return time.Time{}, true, false
	}
	return t, true, true
}

func unitDuration(unit string) (time.Duration, bool) {
	switch {
	case strings.HasPrefix(unit, "mo"):
		return month, true
	case strings.HasPrefix(unit, "m"):
		return time.Minute, true
	case strings.HasPrefix(unit, "h"):
		return time.Hour, true
	case strings.HasPrefix(unit, "d"):
		return day, true
	case strings.HasPrefix(unit, "w"):
		return week, true
	}
	return 0, false
}

func resolveAbsolute(s string) (t time.Time, ok bool) {
	// dateparse has panicked on odd inputs before; a posting time is never
	// worth failing a record over.
	defer func() {
		if recover() != nil {
			t, ok = time.Time{}, false
		}
	}()

	for _, layout := range absoluteLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t.UTC(), true
		}
	}
	t, err := dateparse.ParseIn(s, time.UTC)
	if err != nil || t.Year() < minYear {
		return time.Time{}, false
	}
	return t.UTC(), true
}

func resolveSentinel(s string) bool {
	lower := strings.ToLower(s)
	if lower == "now" || lower == "new" {
		return true
	}
	return sentinelPattern.MatchString(lower)
}

// HoursSince is fetched minus posted in hours, rounded to one decimal. It is
// nil whenever posted is unknown.
func HoursSince(fetched time.Time, posted *time.Time) *float64 {
	if posted == nil || fetched.IsZero() {
		return nil
	}
	hours := fetched.UTC().Sub(posted.UTC()).Hours()
	rounded := math.Round(hours*10) / 10
	return &rounded
}
