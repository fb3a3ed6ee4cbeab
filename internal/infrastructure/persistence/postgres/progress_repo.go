package postgres

import (
	"context"
	"encoding/json"
	"time"

	"github.com/lmshub/lms-analytics/internal/domain/progress"
	"github.com/lmshub/lms-analytics/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// PROGRESS REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// ProgressRepo implements progress.Repository on PostgreSQL. The completed
// unit set is stored as a JSONB array; the aggregator owns all ordering, so
// a plain upsert per save is enough.
type ProgressRepo struct {
	conn *Connection
}

// NewProgressRepo creates a ProgressRepo.
func NewProgressRepo(conn *Connection) *ProgressRepo {
	return &ProgressRepo{conn: conn}
}

// Get implements progress.Repository.
func (r *ProgressRepo) Get(ctx context.Context, key shared.ProgressKey) (*progress.Record, error) {
	var (
		unitsJSON            []byte
		totalUnits           int
		appliedEvents        int64
		lastActivityAt       *time.Time
		createdAt, updatedAt time.Time
	)
	err := r.conn.QueryRow(ctx, `
		SELECT completed_units, total_units, applied_events, last_activity_at, created_at, updated_at
		FROM progress_records
		WHERE user_id = $1 AND course_id = $2
	`, key.UserID.String(), key.CourseID.Int64()).Scan(
		&unitsJSON, &totalUnits, &appliedEvents, &lastActivityAt, &createdAt, &updatedAt,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrProgressNotFound
		}
		return nil, shared.WrapError("progress", "Get", shared.ErrStorageFailure, "query progress record", err)
	}

	rec := &progress.Record{
		UserID:         key.UserID,
		CourseID:       key.CourseID,
		CompletedUnits: make(map[shared.UnitID]struct{}),
		TotalUnits:     totalUnits,
		AppliedEvents:  appliedEvents,
		CreatedAt:      createdAt.UTC(),
		UpdatedAt:      updatedAt.UTC(),
	}
	if lastActivityAt != nil {
		rec.LastActivityAt = lastActivityAt.UTC()
	}

	var units []string
	if err := json.Unmarshal(unitsJSON, &units); err != nil {
		return nil, shared.WrapError("progress", "Get", shared.ErrStorageFailure, "decode completed units", err)
	}
	for _, u := range units {
		rec.CompletedUnits[shared.UnitID(u)] = struct{}{}
	}

	return rec, nil
}

// Save implements progress.Repository.
func (r *ProgressRepo) Save(ctx context.Context, record *progress.Record) error {
	units := make([]string, 0, len(record.CompletedUnits))
	for u := range record.CompletedUnits {
		units = append(units, u.String())
	}
	unitsJSON, err := json.Marshal(units)
	if err != nil {
		return shared.WrapError("progress", "Save", shared.ErrStorageFailure, "encode completed units", err)
	}

	var lastActivityAt *time.Time
	if !record.LastActivityAt.IsZero() {
		t := record.LastActivityAt.UTC()
		lastActivityAt = &t
	}

	_, err = r.conn.Exec(ctx, `
		INSERT INTO progress_records
			(user_id, course_id, completed_units, total_units, applied_events, last_activity_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (user_id, course_id) DO UPDATE SET
			completed_units = EXCLUDED.completed_units,
			total_units = EXCLUDED.total_units,
			applied_events = EXCLUDED.applied_events,
			last_activity_at = EXCLUDED.last_activity_at,
			updated_at = EXCLUDED.updated_at
	`,
		record.UserID.String(),
		record.CourseID.Int64(),
		unitsJSON,
		record.TotalUnits,
		record.AppliedEvents,
		lastActivityAt,
		record.CreatedAt.UTC(),
		record.UpdatedAt.UTC(),
	)
	if err != nil {
		return shared.WrapError("progress", "Save", shared.ErrStorageFailure, "upsert progress record", err)
	}
	return nil
}

// ListByCourse implements progress.Repository.
func (r *ProgressRepo) ListByCourse(ctx context.Context, courseID shared.CourseID) ([]*progress.Record, error) {
	rows, err := r.conn.Query(ctx, `
		SELECT user_id, completed_units, total_units, applied_events, last_activity_at, created_at, updated_at
		FROM progress_records
		WHERE course_id = $1
		ORDER BY user_id
	`, courseID.Int64())
	if err != nil {
		return nil, shared.WrapError("progress", "ListByCourse", shared.ErrStorageFailure, "query progress records", err)
	}
	defer rows.Close()

	var records []*progress.Record
	for rows.Next() {
		var (
			userID               string
			unitsJSON            []byte
			totalUnits           int
			appliedEvents        int64
			lastActivityAt       *time.Time
			createdAt, updatedAt time.Time
		)
		if err := rows.Scan(&userID, &unitsJSON, &totalUnits, &appliedEvents, &lastActivityAt, &createdAt, &updatedAt); err != nil {
			return nil, shared.WrapError("progress", "ListByCourse", shared.ErrStorageFailure, "scan progress record", err)
		}

		rec := &progress.Record{
			UserID:         shared.UserID(userID),
			CourseID:       courseID,
			CompletedUnits: make(map[shared.UnitID]struct{}),
			TotalUnits:     totalUnits,
			AppliedEvents:  appliedEvents,
			CreatedAt:      createdAt.UTC(),
			UpdatedAt:      updatedAt.UTC(),
		}
		if lastActivityAt != nil {
			rec.LastActivityAt = lastActivityAt.UTC()
		}

		var units []string
		if err := json.Unmarshal(unitsJSON, &units); err != nil {
			return nil, shared.WrapError("progress", "ListByCourse", shared.ErrStorageFailure, "decode completed units", err)
		}
		for _, u := range units {
			rec.CompletedUnits[shared.UnitID(u)] = struct{}{}
		}

		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, shared.WrapError("progress", "ListByCourse", shared.ErrStorageFailure, "iterate progress records", err)
	}
	return records, nil
}

// Delete implements progress.Repository.
func (r *ProgressRepo) Delete(ctx context.Context, key shared.ProgressKey) error {
	_, err := r.conn.Exec(ctx,
		`DELETE FROM progress_records WHERE user_id = $1 AND course_id = $2`,
		key.UserID.String(), key.CourseID.Int64(),
	)
	if err != nil {
		return shared.WrapError("progress", "Delete", shared.ErrStorageFailure, "delete progress record", err)
	}
	return nil
}

var _ progress.Repository = (*ProgressRepo)(nil)
