package memory

import (
	"context"
	"sync"

	"github.com/lmshub/lms-analytics/internal/domain/course"
	"github.com/lmshub/lms-analytics/internal/domain/shared"
)

// StaticCatalog is a fixed course table. It serves deployments without a
// catalog service and every test that needs known course structure.
type StaticCatalog struct {
	mu      sync.RWMutex
	courses map[shared.CourseID]*course.Info
}

// NewStaticCatalog creates a catalog from a course list.
func NewStaticCatalog(courses ...course.Info) *StaticCatalog {
	c := &StaticCatalog{courses: make(map[shared.CourseID]*course.Info, len(courses))}
	for i := range courses {
		info := courses[i]
		c.courses[info.ID] = &info
	}
	return c
}

// AddCourse registers or replaces a course.
func (c *StaticCatalog) AddCourse(info course.Info) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.courses[info.ID] = &info
}

// CourseExists implements course.Catalog.
func (c *StaticCatalog) CourseExists(ctx context.Context, courseID shared.CourseID) (bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.courses[courseID]
	return ok, nil
}

// GetCourse implements course.Catalog.
func (c *StaticCatalog) GetCourse(ctx context.Context, courseID shared.CourseID) (*course.Info, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	info, ok := c.courses[courseID]
	if !ok {
		return nil, shared.ErrCourseNotFound
	}
	cp := *info
	return &cp, nil
}

// GetUnitCount implements course.Catalog.
func (c *StaticCatalog) GetUnitCount(ctx context.Context, courseID shared.CourseID) (int, error) {
	info, err := c.GetCourse(ctx, courseID)
	if err != nil {
		return 0, err
	}
	return info.UnitCount, nil
}
