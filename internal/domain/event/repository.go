package event

import (
	"context"

	"github.com/lmshub/lms-analytics/internal/domain/shared"
)

// AppendOutcome is the result of an idempotent append.
type AppendOutcome int

const (
	// OutcomeAccepted - the event is new and durably stored.
	OutcomeAccepted AppendOutcome = iota

	// OutcomeDuplicate - an event with the same ID already exists; the call
	// performed no further work. This is a success, not an error.
	OutcomeDuplicate
)

// String returns the string representation of the outcome.
func (o AppendOutcome) String() string {
	switch o {
	case OutcomeAccepted:
		return "accepted"
	case OutcomeDuplicate:
		return "duplicate"
	default:
		return "unknown"
	}
}

// Cursor marks a resumption point in a key's event history. Replay order is
// total: timestamp first, event ID as tiebreak. The zero cursor reads from
// the beginning.
type Cursor struct {
	Timestamp int64          // UnixNano of the last event read
	EventID   shared.EventID // tiebreak within identical timestamps
}

// IsZero reports whether the cursor is the beginning of history.
func (c Cursor) IsZero() bool {
	return c.Timestamp == 0 && c.EventID == ""
}

// After builds the cursor positioned just past the given event.
func After(e *ActivityEvent) Cursor {
	return Cursor{Timestamp: e.Timestamp.UTC().UnixNano(), EventID: e.ID}
}

// Log is the append-only, deduplicated record of admitted events.
// Implementations must make Append atomic with duplicate detection: two
// concurrent appends of the same event ID must yield exactly one
// OutcomeAccepted. A successful return means the event will be reflected in
// all future rebuilds.
type Log interface {
	// Append stores the event, deduplicating on its ID.
	Append(ctx context.Context, e *ActivityEvent) (AppendOutcome, error)

	// ReadSince returns up to limit events for the key strictly after the
	// cursor, in (timestamp, eventID) order, plus the cursor to resume from.
	ReadSince(ctx context.Context, key shared.ProgressKey, cursor Cursor, limit int) ([]*ActivityEvent, Cursor, error)

	// CountByCourse returns the number of admitted events for the course.
	CountByCourse(ctx context.Context, courseID shared.CourseID) (int64, error)

	// DistinctUsers returns the number of distinct users with at least one
	// admitted event for the course.
	DistinctUsers(ctx context.Context, courseID shared.CourseID) (int64, error)

	// ListKeysByCourse returns every (user, course) key with at least one
	// admitted event for the course. Rebuilds iterate these keys rather
	// than the stored progress records, so an event whose record was never
	// materialized is still reachable.
	ListKeysByCourse(ctx context.Context, courseID shared.CourseID) ([]shared.ProgressKey, error)
}
