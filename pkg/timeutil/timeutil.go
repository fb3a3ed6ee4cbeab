// Package timeutil provides clock abstraction and timestamp helpers for the
// analytics pipeline. Client-supplied timestamps arrive as ISO-8601 strings
// and are bounded against ingestion time; tests substitute a fixed clock.
// No external dependencies - uses only standard library.
package timeutil

import (
	"time"
)

// Clock supplies the current time. Production code uses SystemClock;
// tests pin time with FixedClock.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the system time in UTC.
type SystemClock struct{}

// Now implements Clock.
func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}

// FixedClock always returns the same instant.
type FixedClock struct {
	T time.Time
}

// Now implements Clock.
func (c FixedClock) Now() time.Time {
	return c.T
}

// acceptedLayouts are the timestamp forms the ingestion surface accepts.
// RFC3339 covers ISO-8601 with offset; the bare variant tolerates clients
// that drop the zone (interpreted as UTC).
var acceptedLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
}

// ParseTimestamp parses an ISO-8601 timestamp string into UTC.
func ParseTimestamp(s string) (time.Time, error) {
	var lastErr error
	for _, layout := range acceptedLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t.UTC(), nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

// FormatTimestamp renders a timestamp the way the API emits it.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// WithinSkew reports whether ts is admissible relative to now: any point in
// the past, or at most maxSkew into the future.
func WithinSkew(ts, now time.Time, maxSkew time.Duration) bool {
	return !ts.After(now.Add(maxSkew))
}

// TruncateToDay returns the date portion of a time (midnight, same location).
func TruncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
