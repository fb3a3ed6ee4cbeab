package course

import (
	"context"

	"github.com/lmshub/lms-analytics/internal/domain/shared"
)

// SnapshotRepository persists course analytics snapshots.
//
// Get returns shared.ErrSnapshotNotFound when the course has seen no
// activity; callers render that as an all-zero aggregate.
type SnapshotRepository interface {
	Get(ctx context.Context, courseID shared.CourseID) (*Snapshot, error)
	Save(ctx context.Context, snapshot *Snapshot) error
	ListCourseIDs(ctx context.Context) ([]shared.CourseID, error)
	Delete(ctx context.Context, courseID shared.CourseID) error
}
