package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lmshub/lms-analytics/internal/application/aggregator"
	"github.com/lmshub/lms-analytics/internal/domain/course"
	"github.com/lmshub/lms-analytics/internal/domain/event"
	"github.com/lmshub/lms-analytics/internal/domain/progress"
	"github.com/lmshub/lms-analytics/internal/domain/shared"
	"github.com/lmshub/lms-analytics/internal/infrastructure/persistence/memory"
	"github.com/lmshub/lms-analytics/pkg/timeutil"
)

func TestAuditRepairsDriftedSnapshot(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := timeutil.FixedClock{T: now}
	courseID := shared.CourseID(42)

	log := memory.NewEventLog()
	records := memory.NewProgressStore()
	snapshots := memory.NewSnapshotStore()

	e := &event.ActivityEvent{
		ID:         "evt-1",
		UserID:     "user-1",
		CourseID:   courseID,
		UnitID:     "unit-1",
		Action:     event.ActionComplete,
		Timestamp:  now,
		ReceivedAt: now,
	}
	_, err := log.Append(ctx, e)
	require.NoError(t, err)

	rec := progress.NewRecord("user-1", courseID, 4, now)
	rec.CompletedUnits[shared.UnitID("unit-1")] = struct{}{}
	require.NoError(t, records.Save(ctx, rec))

	// Stored snapshot disagrees with the log: sum should be 0.25.
	snap := course.NewSnapshot(courseID, now)
	snap.TotalUsers = 1
	snap.TotalActivities = 1
	snap.ProgressSum = 0.9
	require.NoError(t, snapshots.Save(ctx, snap))

	courses := aggregator.NewCourseAggregator(snapshots, records, nil, clock)
	job := NewAuditConsistencyJob(snapshots, courses, log, nil, DefaultAuditConsistencyConfig())

	require.NoError(t, job.Run(ctx))

	stats := job.LastAuditStats()
	require.NotNil(t, stats)
	assert.Equal(t, 1, stats.CoursesAudited)
	assert.Equal(t, 1, stats.DriftsDetected)
	assert.Equal(t, []shared.CourseID{courseID}, stats.DriftedCourses)
	assert.Empty(t, stats.Errors)

	repaired, err := snapshots.Get(ctx, courseID)
	require.NoError(t, err)
	assert.InDelta(t, 0.25, repaired.ProgressSum, 1e-9)

	// A second run finds nothing to repair.
	require.NoError(t, job.Run(ctx))
	stats = job.LastAuditStats()
	assert.Equal(t, 0, stats.DriftsDetected)
}

func TestAuditHonorsMaxCourses(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := timeutil.FixedClock{T: now}

	log := memory.NewEventLog()
	records := memory.NewProgressStore()
	snapshots := memory.NewSnapshotStore()

	for id := int64(1); id <= 5; id++ {
		require.NoError(t, snapshots.Save(ctx, course.NewSnapshot(shared.CourseID(id), now)))
	}

	courses := aggregator.NewCourseAggregator(snapshots, records, nil, clock)
	cfg := DefaultAuditConsistencyConfig()
	cfg.MaxCourses = 2
	job := NewAuditConsistencyJob(snapshots, courses, log, nil, cfg)

	require.NoError(t, job.Run(ctx))
	assert.Equal(t, 2, job.LastAuditStats().CoursesAudited)
}
