package aggregator

import (
	"context"
	"fmt"
	"math"

	"github.com/lmshub/lms-analytics/internal/domain/course"
	"github.com/lmshub/lms-analytics/internal/domain/event"
	"github.com/lmshub/lms-analytics/internal/domain/progress"
	"github.com/lmshub/lms-analytics/internal/domain/shared"
	"github.com/lmshub/lms-analytics/pkg/keymutex"
	"github.com/lmshub/lms-analytics/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// COURSE AGGREGATOR
// Maintains per-course analytics snapshots from progress changes.
// ══════════════════════════════════════════════════════════════════════════════

// driftTolerance absorbs float accumulation error when auditing the running
// progress sum against a recomputed one.
const driftTolerance = 1e-6

// CourseAggregator applies progress changes to course snapshots. Mutations
// for the same course serialize on a per-course lock.
type CourseAggregator struct {
	snapshots course.SnapshotRepository
	records   progress.Repository
	bus       shared.EventPublisher
	locks     *keymutex.KeyMutex
	clock     timeutil.Clock
}

// NewCourseAggregator creates a CourseAggregator.
func NewCourseAggregator(
	snapshots course.SnapshotRepository,
	records progress.Repository,
	bus shared.EventPublisher,
	clock timeutil.Clock,
) *CourseAggregator {
	if bus == nil {
		bus = shared.NopPublisher{}
	}
	if clock == nil {
		clock = timeutil.SystemClock{}
	}
	return &CourseAggregator{
		snapshots: snapshots,
		records:   records,
		bus:       bus,
		locks:     keymutex.New(),
		clock:     clock,
	}
}

// Apply folds the outcome of one admitted event into the course snapshot.
// Ratio deltas commute across learners, so interleaved updates for the same
// course converge regardless of arrival order.
func (a *CourseAggregator) Apply(ctx context.Context, e *event.ActivityEvent, pr *ProgressResult) (*course.Snapshot, error) {
	unlock := a.locks.Lock(e.CourseID.String())
	defer unlock()

	snap, err := a.load(ctx, e.CourseID)
	if err != nil {
		return nil, err
	}

	snap.RecordActivity(pr.FirstForUser, pr.RatioDelta, e.Timestamp, a.clock.Now())

	if err := a.snapshots.Save(ctx, snap); err != nil {
		return nil, fmt.Errorf("course aggregator: save snapshot %d: %w", e.CourseID, err)
	}

	_ = a.bus.Publish(shared.NewSnapshotUpdatedEvent(
		e.CourseID, snap.TotalUsers, snap.TotalActivities, snap.AverageProgress(),
	))

	return snap.Clone(), nil
}

// GetCourseAnalytics returns the current snapshot, or an all-zero one for a
// course with no recorded activity.
func (a *CourseAggregator) GetCourseAnalytics(ctx context.Context, courseID shared.CourseID) (*course.Snapshot, error) {
	snap, err := a.snapshots.Get(ctx, courseID)
	if err == nil {
		return snap, nil
	}
	if shared.IsNotFound(err) {
		return course.NewSnapshot(courseID, a.clock.Now()), nil
	}
	return nil, fmt.Errorf("course aggregator: load snapshot %d: %w", courseID, err)
}

// Rebuild recomputes the snapshot for one course from the stored progress
// records and the event log, replacing whatever the running aggregate held.
func (a *CourseAggregator) Rebuild(ctx context.Context, log event.Log, courseID shared.CourseID, reason string) (*course.Snapshot, error) {
	unlock := a.locks.Lock(courseID.String())
	defer unlock()

	snap, err := a.recompute(ctx, log, courseID)
	if err != nil {
		return nil, err
	}

	if err := a.snapshots.Save(ctx, snap); err != nil {
		return nil, fmt.Errorf("course aggregator: save rebuilt snapshot %d: %w", courseID, err)
	}

	_ = a.bus.Publish(shared.NewSnapshotRebuiltEvent(courseID, reason))

	return snap.Clone(), nil
}

// Audit compares the stored snapshot with a fresh recomputation. On drift it
// replaces the stored one and reports shared.ErrSnapshotDrift so the caller
// can record the divergence.
func (a *CourseAggregator) Audit(ctx context.Context, log event.Log, courseID shared.CourseID) error {
	unlock := a.locks.Lock(courseID.String())
	defer unlock()

	stored, err := a.load(ctx, courseID)
	if err != nil {
		return err
	}

	fresh, err := a.recompute(ctx, log, courseID)
	if err != nil {
		return err
	}

	if stored.TotalUsers == fresh.TotalUsers &&
		stored.TotalActivities == fresh.TotalActivities &&
		math.Abs(stored.ProgressSum-fresh.ProgressSum) <= driftTolerance {
		return nil
	}

	_ = a.bus.Publish(shared.NewSnapshotDivergedEvent(courseID))

	if err := a.snapshots.Save(ctx, fresh); err != nil {
		return fmt.Errorf("course aggregator: save audited snapshot %d: %w", courseID, err)
	}
	_ = a.bus.Publish(shared.NewSnapshotRebuiltEvent(courseID, "audit"))

	return shared.NewDomainError("course", "Audit", shared.ErrSnapshotDrift,
		fmt.Sprintf("snapshot for course %d diverged and was rebuilt", courseID))
}

func (a *CourseAggregator) load(ctx context.Context, courseID shared.CourseID) (*course.Snapshot, error) {
	snap, err := a.snapshots.Get(ctx, courseID)
	if err == nil {
		return snap, nil
	}
	if shared.IsNotFound(err) {
		return course.NewSnapshot(courseID, a.clock.Now()), nil
	}
	return nil, fmt.Errorf("course aggregator: load snapshot %d: %w", courseID, err)
}

// recompute derives a fresh snapshot with the event log as the authority
// for the user set. A key whose record was never materialized still counts
// toward TotalUsers; its ratio contributes zero until a rebuild restores
// the record.
func (a *CourseAggregator) recompute(ctx context.Context, log event.Log, courseID shared.CourseID) (*course.Snapshot, error) {
	keys, err := log.ListKeysByCourse(ctx, courseID)
	if err != nil {
		return nil, fmt.Errorf("course aggregator: list keys for course %d: %w", courseID, err)
	}

	recs, err := a.records.ListByCourse(ctx, courseID)
	if err != nil {
		return nil, fmt.Errorf("course aggregator: list records for course %d: %w", courseID, err)
	}
	byUser := make(map[shared.UserID]*progress.Record, len(recs))
	for _, rec := range recs {
		byUser[rec.UserID] = rec
	}

	activities, err := log.CountByCourse(ctx, courseID)
	if err != nil {
		return nil, fmt.Errorf("course aggregator: count events for course %d: %w", courseID, err)
	}

	snap := course.NewSnapshot(courseID, a.clock.Now())
	snap.TotalActivities = activities
	for _, key := range keys {
		snap.TotalUsers++
		rec, ok := byUser[key.UserID]
		if !ok {
			continue
		}
		snap.ProgressSum += rec.Ratio().Float64()
		if rec.LastActivityAt.After(snap.LastEventAt) {
			snap.LastEventAt = rec.LastActivityAt
		}
	}
	return snap, nil
}
