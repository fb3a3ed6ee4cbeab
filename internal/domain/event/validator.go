package event

import (
	"context"
	"strings"
	"time"

	"github.com/lmshub/lms-analytics/internal/domain/shared"
	"github.com/lmshub/lms-analytics/pkg/timeutil"
)

// CourseDirectory is the slice of the Course Catalog the validator needs.
type CourseDirectory interface {
	// CourseExists reports whether the catalog knows the course.
	CourseExists(ctx context.Context, courseID shared.CourseID) (bool, error)
}

// RawEvent is an inbound activity report before validation. Field types
// mirror the transport payload; Timestamp is the raw ISO-8601 string.
type RawEvent struct {
	UserID    string
	CourseID  int64
	UnitID    string
	Action    string
	Timestamp string
	EventID   string
}

// DefaultMaxClockSkew bounds how far in the future a client timestamp may
// lie relative to ingestion time.
const DefaultMaxClockSkew = 5 * time.Minute

// Validator normalizes and rejects malformed or inadmissible activity
// events. It has no side effects beyond a read-through catalog lookup.
type Validator struct {
	catalog CourseDirectory
	maxSkew time.Duration
	clock   timeutil.Clock
}

// NewValidator creates a Validator. A zero maxSkew falls back to
// DefaultMaxClockSkew; a nil clock uses the system clock.
func NewValidator(catalog CourseDirectory, maxSkew time.Duration, clock timeutil.Clock) *Validator {
	if maxSkew <= 0 {
		maxSkew = DefaultMaxClockSkew
	}
	if clock == nil {
		clock = timeutil.SystemClock{}
	}
	return &Validator{catalog: catalog, maxSkew: maxSkew, clock: clock}
}

// Validate checks a raw event and returns the normalized ActivityEvent.
// Checks run in order: field presence and typing, action enum, clock skew,
// catalog existence. On success the event carries a server-assigned ID if
// the client omitted one.
func (v *Validator) Validate(ctx context.Context, raw RawEvent) (*ActivityEvent, error) {
	userID, err := shared.NewUserID(raw.UserID)
	if err != nil {
		return nil, err
	}

	courseID, err := shared.NewCourseID(raw.CourseID)
	if err != nil {
		return nil, err
	}

	action, err := ParseAction(raw.Action)
	if err != nil {
		return nil, err
	}

	// unitId is optional for plain activity signals: a bare VIEW or START
	// advances lastActivityAt without naming a unit. Completions are
	// meaningless without one.
	var unitID shared.UnitID
	if action.CompletesUnit() {
		unitID, err = shared.NewUnitID(raw.UnitID)
		if err != nil {
			return nil, err
		}
	} else {
		unitID = shared.UnitID(strings.TrimSpace(raw.UnitID))
	}

	ts, err := timeutil.ParseTimestamp(raw.Timestamp)
	if err != nil {
		return nil, shared.ErrBadTimestamp
	}

	now := v.clock.Now()
	if !timeutil.WithinSkew(ts, now, v.maxSkew) {
		return nil, shared.ErrClockSkew
	}

	exists, err := v.catalog.CourseExists(ctx, courseID)
	if err != nil {
		return nil, shared.WrapError("event", "Validate", shared.ErrExternalService, "catalog lookup failed", err)
	}
	if !exists {
		return nil, shared.ErrUnknownCourse
	}

	id := shared.EventID(raw.EventID)
	if !id.IsValid() {
		id = DeriveEventID(userID, courseID, unitID, action, ts)
	}

	return &ActivityEvent{
		ID:         id,
		UserID:     userID,
		CourseID:   courseID,
		UnitID:     unitID,
		Action:     action,
		Timestamp:  ts,
		ReceivedAt: now,
	}, nil
}
