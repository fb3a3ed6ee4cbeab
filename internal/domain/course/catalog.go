package course

import (
	"context"

	"github.com/lmshub/lms-analytics/internal/domain/shared"
)

// Unit is a trackable element of a course as the catalog describes it.
type Unit struct {
	ID    shared.UnitID
	Title string
}

// Info is the catalog's view of a course, reduced to what analytics needs.
type Info struct {
	ID        shared.CourseID
	Title     string
	UnitCount int
}

// Catalog answers structural questions about courses. Backed by the Course
// Catalog service in production and by a static table in tests.
//
// GetUnitCount and GetCourse return shared.ErrCourseNotFound for unknown
// courses; transient transport failures surface as shared.ErrCatalogUnavailable.
type Catalog interface {
	CourseExists(ctx context.Context, courseID shared.CourseID) (bool, error)
	GetCourse(ctx context.Context, courseID shared.CourseID) (*Info, error)
	GetUnitCount(ctx context.Context, courseID shared.CourseID) (int, error)
}
