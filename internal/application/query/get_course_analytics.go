package query

import (
	"context"

	"github.com/lmshub/lms-analytics/internal/application/aggregator"
	"github.com/lmshub/lms-analytics/internal/domain/shared"
	"github.com/lmshub/lms-analytics/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET COURSE ANALYTICS QUERY
// ══════════════════════════════════════════════════════════════════════════════

// GetCourseAnalyticsQuery identifies one course.
type GetCourseAnalyticsQuery struct {
	CourseID int64
}

// CourseAnalyticsView is the read model returned to the HTTP layer.
type CourseAnalyticsView struct {
	CourseID        int64   `json:"courseId"`
	TotalUsers      int64   `json:"totalUsers"`
	TotalActivities int64   `json:"totalActivities"`
	AverageProgress float64 `json:"averageProgress"`
	LastEventAt     string  `json:"lastEventAt,omitempty"`
}

// SnapshotCache is an optional read-side cache in front of the snapshot
// store. A nil cache disables caching.
type SnapshotCache interface {
	Get(ctx context.Context, courseID shared.CourseID) (*CourseAnalyticsView, bool)
	Set(ctx context.Context, courseID shared.CourseID, view *CourseAnalyticsView)
	Invalidate(ctx context.Context, courseID shared.CourseID)
}

// GetCourseAnalyticsHandler resolves the aggregate view of a course.
type GetCourseAnalyticsHandler struct {
	courses *aggregator.CourseAggregator
	cache   SnapshotCache
}

// NewGetCourseAnalyticsHandler creates a GetCourseAnalyticsHandler.
func NewGetCourseAnalyticsHandler(courses *aggregator.CourseAggregator, cache SnapshotCache) *GetCourseAnalyticsHandler {
	return &GetCourseAnalyticsHandler{courses: courses, cache: cache}
}

// Handle returns the course aggregate. A course with no recorded activity
// yields a zero view, not an error.
func (h *GetCourseAnalyticsHandler) Handle(ctx context.Context, q GetCourseAnalyticsQuery) (*CourseAnalyticsView, error) {
	courseID, err := shared.NewCourseID(q.CourseID)
	if err != nil {
		return nil, err
	}

	if h.cache != nil {
		if view, ok := h.cache.Get(ctx, courseID); ok {
			return view, nil
		}
	}

	snap, err := h.courses.GetCourseAnalytics(ctx, courseID)
	if err != nil {
		return nil, err
	}

	view := &CourseAnalyticsView{
		CourseID:        courseID.Int64(),
		TotalUsers:      snap.TotalUsers,
		TotalActivities: snap.TotalActivities,
		AverageProgress: snap.AverageProgress(),
	}
	if !snap.LastEventAt.IsZero() {
		view.LastEventAt = timeutil.FormatTimestamp(snap.LastEventAt)
	}

	if h.cache != nil {
		h.cache.Set(ctx, courseID, view)
	}
	return view, nil
}
