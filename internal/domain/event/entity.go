// Package event contains the activity event entity, its validation rules,
// and the append-only event log contract. The event log is the system of
// record: progress records and course snapshots are views derived from it.
package event

import (
	"fmt"
	"strings"
	"time"

	"github.com/lmshub/lms-analytics/internal/domain/shared"

	"github.com/google/uuid"
)

// Action is the kind of learner activity an event reports.
type Action string

const (
	// ActionView - the learner opened a unit.
	ActionView Action = "VIEW"

	// ActionStart - the learner began working on a unit.
	ActionStart Action = "START"

	// ActionComplete - the learner finished a unit.
	ActionComplete Action = "COMPLETE"

	// ActionSubmit - the learner submitted work for a unit (quiz, assignment).
	ActionSubmit Action = "SUBMIT"
)

// IsValid checks if the action is a known value.
func (a Action) IsValid() bool {
	switch a {
	case ActionView, ActionStart, ActionComplete, ActionSubmit:
		return true
	default:
		return false
	}
}

// CompletesUnit reports whether the action moves a unit into the completed
// set. VIEW and START only refresh activity recency.
func (a Action) CompletesUnit() bool {
	return a == ActionComplete || a == ActionSubmit
}

// String returns the string representation.
func (a Action) String() string {
	return string(a)
}

// ParseAction normalizes and validates an action string.
func ParseAction(s string) (Action, error) {
	a := Action(strings.ToUpper(strings.TrimSpace(s)))
	if !a.IsValid() {
		return "", shared.ErrUnknownAction
	}
	return a, nil
}

// ActivityEvent is an immutable fact about learner activity. Events are
// never mutated and never deleted; the log they live in is append-only.
type ActivityEvent struct {
	// ID is the idempotency key. Unique within the event log; a second
	// append with the same ID is a no-op.
	ID shared.EventID

	UserID   shared.UserID
	CourseID shared.CourseID
	UnitID   shared.UnitID
	Action   Action

	// Timestamp is client-supplied and bounded by the validator's skew check.
	Timestamp time.Time

	// ReceivedAt is assigned at ingestion.
	ReceivedAt time.Time
}

// Key returns the progress key this event applies to.
func (e *ActivityEvent) Key() shared.ProgressKey {
	return shared.ProgressKey{UserID: e.UserID, CourseID: e.CourseID}
}

// idNamespace seeds deterministic event IDs so that a client retrying
// without an explicit eventId still deduplicates.
var idNamespace = uuid.MustParse("f2b1a7de-90c4-4a63-8df1-5a7ad20c6a11")

// DeriveEventID produces the deterministic server-assigned idempotency key
// for an event whose client omitted one. Identical field values always map
// to the same ID.
func DeriveEventID(userID shared.UserID, courseID shared.CourseID, unitID shared.UnitID, action Action, ts time.Time) shared.EventID {
	seed := fmt.Sprintf("%s|%d|%s|%s|%d", userID, courseID, unitID, action, ts.UTC().UnixNano())
	return shared.EventID(uuid.NewSHA1(idNamespace, []byte(seed)).String())
}
