package postgres

import (
	"context"
	"time"

	"github.com/lmshub/lms-analytics/internal/domain/course"
	"github.com/lmshub/lms-analytics/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// SNAPSHOT REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// SnapshotRepo implements course.SnapshotRepository on PostgreSQL.
type SnapshotRepo struct {
	conn *Connection
}

// NewSnapshotRepo creates a SnapshotRepo.
func NewSnapshotRepo(conn *Connection) *SnapshotRepo {
	return &SnapshotRepo{conn: conn}
}

// Get implements course.SnapshotRepository.
func (r *SnapshotRepo) Get(ctx context.Context, courseID shared.CourseID) (*course.Snapshot, error) {
	var (
		totalUsers, totalActivities int64
		progressSum                 float64
		lastEventAt                 *time.Time
		updatedAt                   time.Time
	)
	err := r.conn.QueryRow(ctx, `
		SELECT total_users, total_activities, progress_sum, last_event_at, updated_at
		FROM course_snapshots
		WHERE course_id = $1
	`, courseID.Int64()).Scan(&totalUsers, &totalActivities, &progressSum, &lastEventAt, &updatedAt)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrSnapshotNotFound
		}
		return nil, shared.WrapError("course", "Get", shared.ErrStorageFailure, "query course snapshot", err)
	}

	snap := &course.Snapshot{
		CourseID:        courseID,
		TotalUsers:      totalUsers,
		TotalActivities: totalActivities,
		ProgressSum:     progressSum,
		UpdatedAt:       updatedAt.UTC(),
	}
	if lastEventAt != nil {
		snap.LastEventAt = lastEventAt.UTC()
	}
	return snap, nil
}

// Save implements course.SnapshotRepository.
func (r *SnapshotRepo) Save(ctx context.Context, snapshot *course.Snapshot) error {
	var lastEventAt *time.Time
	if !snapshot.LastEventAt.IsZero() {
		t := snapshot.LastEventAt.UTC()
		lastEventAt = &t
	}

	_, err := r.conn.Exec(ctx, `
		INSERT INTO course_snapshots
			(course_id, total_users, total_activities, progress_sum, last_event_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (course_id) DO UPDATE SET
			total_users = EXCLUDED.total_users,
			total_activities = EXCLUDED.total_activities,
			progress_sum = EXCLUDED.progress_sum,
			last_event_at = EXCLUDED.last_event_at,
			updated_at = EXCLUDED.updated_at
	`,
		snapshot.CourseID.Int64(),
		snapshot.TotalUsers,
		snapshot.TotalActivities,
		snapshot.ProgressSum,
		lastEventAt,
		snapshot.UpdatedAt.UTC(),
	)
	if err != nil {
		return shared.WrapError("course", "Save", shared.ErrStorageFailure, "upsert course snapshot", err)
	}
	return nil
}

// ListCourseIDs implements course.SnapshotRepository.
func (r *SnapshotRepo) ListCourseIDs(ctx context.Context) ([]shared.CourseID, error) {
	rows, err := r.conn.Query(ctx, `SELECT course_id FROM course_snapshots ORDER BY course_id`)
	if err != nil {
		return nil, shared.WrapError("course", "ListCourseIDs", shared.ErrStorageFailure, "query snapshot ids", err)
	}
	defer rows.Close()

	var ids []shared.CourseID
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, shared.WrapError("course", "ListCourseIDs", shared.ErrStorageFailure, "scan snapshot id", err)
		}
		ids = append(ids, shared.CourseID(id))
	}
	if err := rows.Err(); err != nil {
		return nil, shared.WrapError("course", "ListCourseIDs", shared.ErrStorageFailure, "iterate snapshot ids", err)
	}
	return ids, nil
}

// Delete implements course.SnapshotRepository.
func (r *SnapshotRepo) Delete(ctx context.Context, courseID shared.CourseID) error {
	_, err := r.conn.Exec(ctx, `DELETE FROM course_snapshots WHERE course_id = $1`, courseID.Int64())
	if err != nil {
		return shared.WrapError("course", "Delete", shared.ErrStorageFailure, "delete course snapshot", err)
	}
	return nil
}

var _ course.SnapshotRepository = (*SnapshotRepo)(nil)
