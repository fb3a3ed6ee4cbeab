package aggregator

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lmshub/lms-analytics/internal/domain/course"
	"github.com/lmshub/lms-analytics/internal/domain/event"
	"github.com/lmshub/lms-analytics/internal/domain/shared"
	"github.com/lmshub/lms-analytics/internal/infrastructure/persistence/memory"
	"github.com/lmshub/lms-analytics/pkg/timeutil"
)

func testCatalog() *memory.StaticCatalog {
	return memory.NewStaticCatalog(
		course.Info{ID: 42, Title: "Go Fundamentals", UnitCount: 4},
		course.Info{ID: 7, Title: "Databases", UnitCount: 4},
	)
}

func activity(userID string, courseID int64, unitID string, action event.Action, ts time.Time) *event.ActivityEvent {
	e := &event.ActivityEvent{
		UserID:     shared.UserID(userID),
		CourseID:   shared.CourseID(courseID),
		UnitID:     shared.UnitID(unitID),
		Action:     action,
		Timestamp:  ts,
		ReceivedAt: ts,
	}
	e.ID = event.DeriveEventID(shared.UserID(userID), shared.CourseID(courseID), shared.UnitID(unitID), action, ts)
	return e
}

func TestApplyCreatesRecordOnFirstActivity(t *testing.T) {
	ctx := context.Background()
	agg := NewProgressAggregator(memory.NewProgressStore(), testCatalog(), nil, nil)

	res, err := agg.Apply(ctx, activity("user-1", 42, "unit-1", event.ActionComplete, time.Now().UTC()))
	require.NoError(t, err)

	assert.True(t, res.FirstForUser)
	assert.True(t, res.UnitCompleted)
	assert.InDelta(t, 0.25, res.RatioDelta, 1e-9)
	assert.Equal(t, 4, res.Record.TotalUnits)
}

func TestApplySubsequentEvents(t *testing.T) {
	ctx := context.Background()
	agg := NewProgressAggregator(memory.NewProgressStore(), testCatalog(), nil, nil)
	now := time.Now().UTC()

	_, err := agg.Apply(ctx, activity("user-1", 42, "unit-1", event.ActionComplete, now))
	require.NoError(t, err)

	res, err := agg.Apply(ctx, activity("user-1", 42, "unit-2", event.ActionView, now.Add(time.Second)))
	require.NoError(t, err)

	assert.False(t, res.FirstForUser)
	assert.False(t, res.UnitCompleted)
	assert.Equal(t, float64(0), res.RatioDelta)
	assert.Equal(t, shared.Ratio(0.25), res.Record.Ratio())
}

func TestApplyConcurrentSameKey(t *testing.T) {
	ctx := context.Background()
	agg := NewProgressAggregator(memory.NewProgressStore(), testCatalog(), nil, nil)
	now := time.Now().UTC()

	done := make(chan error, 4)
	for i := 0; i < 4; i++ {
		e := activity("user-1", 42, fmt.Sprintf("unit-%d", i+1), event.ActionComplete, now.Add(time.Duration(i)*time.Second))
		go func() {
			_, err := agg.Apply(ctx, e)
			done <- err
		}()
	}
	for i := 0; i < 4; i++ {
		require.NoError(t, <-done)
	}

	key := shared.ProgressKey{UserID: "user-1", CourseID: 42}
	rec, err := agg.GetProgress(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, 4, len(rec.CompletedUnits))
	assert.Equal(t, shared.Ratio(1), rec.Ratio())
}

func TestGetProgressUnknownKeyIsEmptyRecord(t *testing.T) {
	ctx := context.Background()
	agg := NewProgressAggregator(memory.NewProgressStore(), testCatalog(), nil, nil)

	rec, err := agg.GetProgress(ctx, shared.ProgressKey{UserID: "nobody", CourseID: 42})
	require.NoError(t, err)
	assert.Equal(t, 0, len(rec.CompletedUnits))
	assert.Equal(t, shared.Ratio(0), rec.Ratio())
}

func TestRebuildMatchesIncrementalState(t *testing.T) {
	ctx := context.Background()
	log := memory.NewEventLog()
	store := memory.NewProgressStore()
	agg := NewProgressAggregator(store, testCatalog(), nil, timeutil.FixedClock{T: time.Now().UTC()})
	now := time.Now().UTC()

	events := []*event.ActivityEvent{
		activity("user-1", 42, "unit-1", event.ActionComplete, now),
		activity("user-1", 42, "unit-2", event.ActionView, now.Add(time.Second)),
		activity("user-1", 42, "unit-2", event.ActionSubmit, now.Add(2*time.Second)),
		activity("user-1", 42, "unit-3", event.ActionStart, now.Add(3*time.Second)),
	}
	for _, e := range events {
		_, err := log.Append(ctx, e)
		require.NoError(t, err)
		_, err = agg.Apply(ctx, e)
		require.NoError(t, err)
	}

	key := shared.ProgressKey{UserID: "user-1", CourseID: 42}
	incremental, err := agg.GetProgress(ctx, key)
	require.NoError(t, err)

	rebuilt, err := agg.Rebuild(ctx, log, key)
	require.NoError(t, err)

	assert.Equal(t, incremental.CompletedUnits, rebuilt.CompletedUnits)
	assert.Equal(t, incremental.Ratio(), rebuilt.Ratio())
	assert.Equal(t, incremental.LastActivityAt, rebuilt.LastActivityAt)
}
