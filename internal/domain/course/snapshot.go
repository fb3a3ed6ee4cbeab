// Package course holds the per-course analytics aggregate: learner counts,
// activity volume, and mean completion. Like progress records, snapshots are
// derived state and can be rebuilt from the event log at any time.
package course

import (
	"time"

	"github.com/lmshub/lms-analytics/internal/domain/shared"
)

// ═══════════════════════════════════════════════════════════════════════════
// Course Analytics Snapshot
// ═══════════════════════════════════════════════════════════════════════════

// Snapshot is the rolling aggregate for one course.
//
// ProgressSum is the sum of every enrolled learner's completion ratio.
// Keeping the sum instead of the mean makes incremental updates O(1):
// when one learner's ratio moves from a to b, add (b - a). Ratio deltas
// commute, so updates from different learners can interleave freely.
type Snapshot struct {
	CourseID        shared.CourseID
	TotalUsers      int64
	TotalActivities int64
	ProgressSum     float64
	LastEventAt     time.Time
	UpdatedAt       time.Time
}

// NewSnapshot creates an empty snapshot for a course.
func NewSnapshot(courseID shared.CourseID, now time.Time) *Snapshot {
	return &Snapshot{
		CourseID:  courseID,
		UpdatedAt: now,
	}
}

// AverageProgress is the mean completion ratio across learners who have
// recorded at least one event. A course with no learners reports 0.
func (s *Snapshot) AverageProgress() float64 {
	if s.TotalUsers <= 0 {
		return 0
	}
	avg := s.ProgressSum / float64(s.TotalUsers)
	if avg < 0 {
		return 0
	}
	if avg > 1 {
		return 1
	}
	return avg
}

// RecordActivity folds one admitted event into the aggregate.
// firstForUser marks the learner's first event in this course;
// ratioDelta is the change in that learner's completion ratio.
func (s *Snapshot) RecordActivity(firstForUser bool, ratioDelta float64, eventAt, now time.Time) {
	s.TotalActivities++
	if firstForUser {
		s.TotalUsers++
	}
	s.ProgressSum += ratioDelta
	if eventAt.After(s.LastEventAt) {
		s.LastEventAt = eventAt
	}
	s.UpdatedAt = now
}

// Clone returns a copy safe to hand outside the owning lock.
func (s *Snapshot) Clone() *Snapshot {
	cp := *s
	return &cp
}
