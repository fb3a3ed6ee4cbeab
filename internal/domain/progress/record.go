// Package progress holds the per-learner, per-course materialized view of
// completed units. Records are derived from the event log and can always be
// rebuilt from it; completion is monotonic and applying the same event twice
// changes nothing.
package progress

import (
	"time"

	"github.com/lmshub/lms-analytics/internal/domain/event"
	"github.com/lmshub/lms-analytics/internal/domain/shared"
)

// ═══════════════════════════════════════════════════════════════════════════
// Progress Record
// ═══════════════════════════════════════════════════════════════════════════

// Record tracks one learner's completion state within one course.
type Record struct {
	UserID         shared.UserID
	CourseID       shared.CourseID
	CompletedUnits map[shared.UnitID]struct{}
	TotalUnits     int
	LastActivityAt time.Time
	AppliedEvents  int64
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// NewRecord creates an empty record for a (learner, course) pair.
// totalUnits comes from the course catalog at creation time.
func NewRecord(userID shared.UserID, courseID shared.CourseID, totalUnits int, now time.Time) *Record {
	return &Record{
		UserID:         userID,
		CourseID:       courseID,
		CompletedUnits: make(map[shared.UnitID]struct{}),
		TotalUnits:     totalUnits,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// Key returns the identity of this record.
func (r *Record) Key() shared.ProgressKey {
	return shared.ProgressKey{UserID: r.UserID, CourseID: r.CourseID}
}

// Ratio is the completion fraction in [0,1]. A course with no units
// reports zero.
func (r *Record) Ratio() shared.Ratio {
	return shared.NewRatio(len(r.CompletedUnits), r.TotalUnits)
}

// HasCompleted reports whether the unit is already counted.
func (r *Record) HasCompleted(unitID shared.UnitID) bool {
	_, ok := r.CompletedUnits[unitID]
	return ok
}

// Change describes the effect of applying one event to a record.
// RatioBefore and RatioAfter let the course aggregate adjust its running
// sum without rereading the record.
type Change struct {
	UnitCompleted bool
	RatioBefore   shared.Ratio
	RatioAfter    shared.Ratio
}

// Apply folds one activity event into the record. Completion only grows:
// a COMPLETE or SUBMIT for a new unit adds it, anything else just advances
// LastActivityAt. Reapplying the same event is a no-op on the unit set, so
// replays and out-of-order delivery converge to the same state.
func (r *Record) Apply(e *event.ActivityEvent) Change {
	ch := Change{RatioBefore: r.Ratio()}

	if e.Action.CompletesUnit() && !r.HasCompleted(e.UnitID) {
		r.CompletedUnits[e.UnitID] = struct{}{}
		ch.UnitCompleted = true
	}
	if e.Timestamp.After(r.LastActivityAt) {
		r.LastActivityAt = e.Timestamp
	}
	r.AppliedEvents++
	r.UpdatedAt = e.ReceivedAt

	ch.RatioAfter = r.Ratio()
	return ch
}

// Clone returns a deep copy, safe to hand outside the owning lock.
func (r *Record) Clone() *Record {
	cp := *r
	cp.CompletedUnits = make(map[shared.UnitID]struct{}, len(r.CompletedUnits))
	for u := range r.CompletedUnits {
		cp.CompletedUnits[u] = struct{}{}
	}
	return &cp
}
