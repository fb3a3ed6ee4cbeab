package postgres

import (
	"context"

	"github.com/lmshub/lms-analytics/internal/domain/course"
	"github.com/lmshub/lms-analytics/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// CATALOG REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// CatalogRepo implements course.Catalog on the local courses tables, for
// deployments that own course structure instead of calling the catalog
// service.
type CatalogRepo struct {
	conn *Connection
}

// NewCatalogRepo creates a CatalogRepo.
func NewCatalogRepo(conn *Connection) *CatalogRepo {
	return &CatalogRepo{conn: conn}
}

// CourseExists implements course.Catalog.
func (r *CatalogRepo) CourseExists(ctx context.Context, courseID shared.CourseID) (bool, error) {
	var exists bool
	err := r.conn.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM courses WHERE id = $1)`,
		courseID.Int64(),
	).Scan(&exists)
	if err != nil {
		return false, shared.WrapError("catalog", "CourseExists", shared.ErrStorageFailure, "query course", err)
	}
	return exists, nil
}

// GetCourse implements course.Catalog.
func (r *CatalogRepo) GetCourse(ctx context.Context, courseID shared.CourseID) (*course.Info, error) {
	var (
		title     string
		unitCount int
	)
	err := r.conn.QueryRow(ctx, `
		SELECT c.title, COUNT(u.unit_id)
		FROM courses c
		LEFT JOIN course_units u ON u.course_id = c.id
		WHERE c.id = $1
		GROUP BY c.title
	`, courseID.Int64()).Scan(&title, &unitCount)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrCourseNotFound
		}
		return nil, shared.WrapError("catalog", "GetCourse", shared.ErrStorageFailure, "query course", err)
	}

	return &course.Info{ID: courseID, Title: title, UnitCount: unitCount}, nil
}

// GetUnitCount implements course.Catalog.
func (r *CatalogRepo) GetUnitCount(ctx context.Context, courseID shared.CourseID) (int, error) {
	info, err := r.GetCourse(ctx, courseID)
	if err != nil {
		return 0, err
	}
	return info.UnitCount, nil
}

// SaveCourse upserts a course and its units. Used by seed tooling.
func (r *CatalogRepo) SaveCourse(ctx context.Context, info course.Info, units []course.Unit) error {
	_, err := r.conn.Exec(ctx, `
		INSERT INTO courses (id, title) VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET title = EXCLUDED.title
	`, info.ID.Int64(), info.Title)
	if err != nil {
		return shared.WrapError("catalog", "SaveCourse", shared.ErrStorageFailure, "upsert course", err)
	}

	for i, u := range units {
		_, err := r.conn.Exec(ctx, `
			INSERT INTO course_units (course_id, unit_id, title, position)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (course_id, unit_id) DO UPDATE SET
				title = EXCLUDED.title,
				position = EXCLUDED.position
		`, info.ID.Int64(), u.ID.String(), u.Title, i)
		if err != nil {
			return shared.WrapError("catalog", "SaveCourse", shared.ErrStorageFailure, "upsert course unit", err)
		}
	}
	return nil
}

var _ course.Catalog = (*CatalogRepo)(nil)
