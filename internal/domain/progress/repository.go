package progress

import (
	"context"

	"github.com/lmshub/lms-analytics/internal/domain/shared"
)

// Repository persists progress records.
//
// Get returns shared.ErrProgressNotFound when no record exists for the key;
// callers treat that as "no activity yet", not a failure.
type Repository interface {
	Get(ctx context.Context, key shared.ProgressKey) (*Record, error)
	Save(ctx context.Context, record *Record) error
	ListByCourse(ctx context.Context, courseID shared.CourseID) ([]*Record, error)
	Delete(ctx context.Context, key shared.ProgressKey) error
}
