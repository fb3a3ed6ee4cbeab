package query

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lmshub/lms-analytics/internal/application/aggregator"
	"github.com/lmshub/lms-analytics/internal/domain/course"
	"github.com/lmshub/lms-analytics/internal/domain/event"
	"github.com/lmshub/lms-analytics/internal/domain/shared"
	"github.com/lmshub/lms-analytics/internal/infrastructure/persistence/memory"
)

func seed(t *testing.T) (*aggregator.ProgressAggregator, *aggregator.CourseAggregator) {
	t.Helper()
	ctx := context.Background()
	catalog := memory.NewStaticCatalog(course.Info{ID: 42, Title: "Go Fundamentals", UnitCount: 4})
	records := memory.NewProgressStore()
	progressAgg := aggregator.NewProgressAggregator(records, catalog, nil, nil)
	courseAgg := aggregator.NewCourseAggregator(memory.NewSnapshotStore(), records, nil, nil)

	now := time.Now().UTC()
	for i, unit := range []string{"unit-1", "unit-2", "unit-3"} {
		e := &event.ActivityEvent{
			UserID:     "user-1",
			CourseID:   42,
			UnitID:     shared.UnitID(unit),
			Action:     event.ActionComplete,
			Timestamp:  now.Add(time.Duration(i) * time.Second),
			ReceivedAt: now,
		}
		e.ID = event.DeriveEventID("user-1", 42, shared.UnitID(unit), "COMPLETE", e.Timestamp)
		pr, err := progressAgg.Apply(ctx, e)
		require.NoError(t, err)
		_, err = courseAgg.Apply(ctx, e, pr)
		require.NoError(t, err)
	}
	return progressAgg, courseAgg
}

func TestGetProgress(t *testing.T) {
	progressAgg, _ := seed(t)
	h := NewGetProgressHandler(progressAgg)

	view, err := h.Handle(context.Background(), GetProgressQuery{UserID: "user-1", CourseID: 42})
	require.NoError(t, err)

	assert.Equal(t, "user-1", view.UserID)
	assert.Equal(t, int64(42), view.CourseID)
	assert.InDelta(t, 0.75, view.Progress, 1e-9)
	assert.Equal(t, 3, view.CompletedUnits)
	assert.Equal(t, 4, view.TotalUnits)
	assert.NotEmpty(t, view.LastActivityAt)
}

func TestGetProgressNoActivityIsZero(t *testing.T) {
	progressAgg, _ := seed(t)
	h := NewGetProgressHandler(progressAgg)

	view, err := h.Handle(context.Background(), GetProgressQuery{UserID: "stranger", CourseID: 42})
	require.NoError(t, err)

	assert.Equal(t, float64(0), view.Progress)
	assert.Equal(t, 0, view.CompletedUnits)
	assert.Empty(t, view.LastActivityAt)
}

func TestGetProgressRejectsBadInput(t *testing.T) {
	progressAgg, _ := seed(t)
	h := NewGetProgressHandler(progressAgg)

	_, err := h.Handle(context.Background(), GetProgressQuery{UserID: "", CourseID: 42})
	assert.ErrorIs(t, err, shared.ErrMissingUserID)

	_, err = h.Handle(context.Background(), GetProgressQuery{UserID: "user-1", CourseID: 0})
	assert.ErrorIs(t, err, shared.ErrInvalidCourseID)
}

func TestGetCourseAnalytics(t *testing.T) {
	_, courseAgg := seed(t)
	h := NewGetCourseAnalyticsHandler(courseAgg, nil)

	view, err := h.Handle(context.Background(), GetCourseAnalyticsQuery{CourseID: 42})
	require.NoError(t, err)

	assert.Equal(t, int64(42), view.CourseID)
	assert.Equal(t, int64(1), view.TotalUsers)
	assert.Equal(t, int64(3), view.TotalActivities)
	assert.InDelta(t, 0.75, view.AverageProgress, 1e-9)
}

func TestGetCourseAnalyticsNoActivityIsZero(t *testing.T) {
	_, courseAgg := seed(t)
	h := NewGetCourseAnalyticsHandler(courseAgg, nil)

	view, err := h.Handle(context.Background(), GetCourseAnalyticsQuery{CourseID: 777})
	require.NoError(t, err)

	assert.Equal(t, int64(0), view.TotalUsers)
	assert.Equal(t, float64(0), view.AverageProgress)
}

type fakeCache struct {
	views map[shared.CourseID]*CourseAnalyticsView
	hits  int
}

func (c *fakeCache) Get(ctx context.Context, id shared.CourseID) (*CourseAnalyticsView, bool) {
	v, ok := c.views[id]
	if ok {
		c.hits++
	}
	return v, ok
}

func (c *fakeCache) Set(ctx context.Context, id shared.CourseID, v *CourseAnalyticsView) {
	c.views[id] = v
}

func (c *fakeCache) Invalidate(ctx context.Context, id shared.CourseID) {
	delete(c.views, id)
}

func TestGetCourseAnalyticsUsesCache(t *testing.T) {
	_, courseAgg := seed(t)
	cache := &fakeCache{views: make(map[shared.CourseID]*CourseAnalyticsView)}
	h := NewGetCourseAnalyticsHandler(courseAgg, cache)
	ctx := context.Background()

	first, err := h.Handle(ctx, GetCourseAnalyticsQuery{CourseID: 42})
	require.NoError(t, err)
	assert.Equal(t, 0, cache.hits)

	second, err := h.Handle(ctx, GetCourseAnalyticsQuery{CourseID: 42})
	require.NoError(t, err)
	assert.Equal(t, 1, cache.hits)
	assert.Equal(t, first, second)
}
