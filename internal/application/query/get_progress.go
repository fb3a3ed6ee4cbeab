// Package query contains read operations (CQRS - Queries). Queries never
// mutate state and render absent records as zero values.
package query

import (
	"context"

	"github.com/lmshub/lms-analytics/internal/application/aggregator"
	"github.com/lmshub/lms-analytics/internal/domain/shared"
	"github.com/lmshub/lms-analytics/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET PROGRESS QUERY
// ══════════════════════════════════════════════════════════════════════════════

// GetProgressQuery identifies one (learner, course) pair.
type GetProgressQuery struct {
	UserID   string
	CourseID int64
}

// ProgressView is the read model returned to the HTTP layer.
type ProgressView struct {
	UserID         string  `json:"userId"`
	CourseID       int64   `json:"courseId"`
	Progress       float64 `json:"progress"`
	CompletedUnits int     `json:"completedUnits"`
	TotalUnits     int     `json:"totalUnits"`
	LastActivityAt string  `json:"lastActivityAt,omitempty"`
}

// GetProgressHandler resolves progress for a learner in a course.
type GetProgressHandler struct {
	progress *aggregator.ProgressAggregator
}

// NewGetProgressHandler creates a GetProgressHandler.
func NewGetProgressHandler(progress *aggregator.ProgressAggregator) *GetProgressHandler {
	return &GetProgressHandler{progress: progress}
}

// Handle returns the learner's progress. A pair with no recorded activity
// yields a zero view, not an error.
func (h *GetProgressHandler) Handle(ctx context.Context, q GetProgressQuery) (*ProgressView, error) {
	userID, err := shared.NewUserID(q.UserID)
	if err != nil {
		return nil, err
	}
	courseID, err := shared.NewCourseID(q.CourseID)
	if err != nil {
		return nil, err
	}

	key := shared.ProgressKey{UserID: userID, CourseID: courseID}
	rec, err := h.progress.GetProgress(ctx, key)
	if err != nil {
		return nil, err
	}

	view := &ProgressView{
		UserID:         userID.String(),
		CourseID:       courseID.Int64(),
		Progress:       rec.Ratio().Float64(),
		CompletedUnits: len(rec.CompletedUnits),
		TotalUnits:     rec.TotalUnits,
	}
	if !rec.LastActivityAt.IsZero() {
		view.LastActivityAt = timeutil.FormatTimestamp(rec.LastActivityAt)
	}
	return view, nil
}
