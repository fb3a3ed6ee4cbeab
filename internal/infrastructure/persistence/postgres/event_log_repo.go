package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/lmshub/lms-analytics/internal/domain/event"
	"github.com/lmshub/lms-analytics/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// EVENT LOG REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// EventLogRepo implements event.Log on PostgreSQL. Dedup rides on the
// unique index over event_id: ON CONFLICT DO NOTHING reports zero affected
// rows for a replay, which maps to OutcomeDuplicate.
type EventLogRepo struct {
	conn *Connection
}

// NewEventLogRepo creates an EventLogRepo.
func NewEventLogRepo(conn *Connection) *EventLogRepo {
	return &EventLogRepo{conn: conn}
}

// Append implements event.Log.
func (r *EventLogRepo) Append(ctx context.Context, e *event.ActivityEvent) (event.AppendOutcome, error) {
	tag, err := r.conn.Exec(ctx, `
		INSERT INTO activity_events (event_id, user_id, course_id, unit_id, action, occurred_at, received_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (event_id) DO NOTHING
	`,
		e.ID.String(),
		e.UserID.String(),
		e.CourseID.Int64(),
		e.UnitID.String(),
		string(e.Action),
		e.Timestamp.UTC(),
		e.ReceivedAt.UTC(),
	)
	if err != nil {
		return 0, shared.WrapError("event", "Append", shared.ErrStorageFailure, "insert activity event", err)
	}

	if tag.RowsAffected() == 0 {
		return event.OutcomeDuplicate, nil
	}
	return event.OutcomeAccepted, nil
}

// ReadSince implements event.Log with keyset pagination over
// (occurred_at, event_id).
func (r *EventLogRepo) ReadSince(ctx context.Context, key shared.ProgressKey, cursor event.Cursor, limit int) ([]*event.ActivityEvent, event.Cursor, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT event_id, user_id, course_id, unit_id, action, occurred_at, received_at
		FROM activity_events
		WHERE user_id = $1 AND course_id = $2
	`
	args := []interface{}{key.UserID.String(), key.CourseID.Int64()}

	if !cursor.IsZero() {
		query += ` AND (occurred_at, event_id) > ($3, $4)`
		args = append(args, time.Unix(0, cursor.Timestamp).UTC(), cursor.EventID.String())
	}
	query += fmt.Sprintf(` ORDER BY occurred_at, event_id LIMIT %d`, limit)

	rows, err := r.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, cursor, shared.WrapError("event", "ReadSince", shared.ErrStorageFailure, "query activity events", err)
	}
	defer rows.Close()

	events := make([]*event.ActivityEvent, 0, limit)
	next := cursor
	for rows.Next() {
		var (
			eventID, userID, unitID, action string
			courseID                        int64
			occurredAt, receivedAt          time.Time
		)
		if err := rows.Scan(&eventID, &userID, &courseID, &unitID, &action, &occurredAt, &receivedAt); err != nil {
			return nil, cursor, shared.WrapError("event", "ReadSince", shared.ErrStorageFailure, "scan activity event", err)
		}

		e := &event.ActivityEvent{
			ID:         shared.EventID(eventID),
			UserID:     shared.UserID(userID),
			CourseID:   shared.CourseID(courseID),
			UnitID:     shared.UnitID(unitID),
			Action:     event.Action(action),
			Timestamp:  occurredAt.UTC(),
			ReceivedAt: receivedAt.UTC(),
		}
		events = append(events, e)
		next = event.After(e)
	}
	if err := rows.Err(); err != nil {
		return nil, cursor, shared.WrapError("event", "ReadSince", shared.ErrStorageFailure, "iterate activity events", err)
	}

	return events, next, nil
}

// CountByCourse implements event.Log.
func (r *EventLogRepo) CountByCourse(ctx context.Context, courseID shared.CourseID) (int64, error) {
	var count int64
	err := r.conn.QueryRow(ctx,
		`SELECT COUNT(*) FROM activity_events WHERE course_id = $1`,
		courseID.Int64(),
	).Scan(&count)
	if err != nil {
		return 0, shared.WrapError("event", "CountByCourse", shared.ErrStorageFailure, "count activity events", err)
	}
	return count, nil
}

// DistinctUsers implements event.Log.
func (r *EventLogRepo) DistinctUsers(ctx context.Context, courseID shared.CourseID) (int64, error) {
	var count int64
	err := r.conn.QueryRow(ctx,
		`SELECT COUNT(DISTINCT user_id) FROM activity_events WHERE course_id = $1`,
		courseID.Int64(),
	).Scan(&count)
	if err != nil {
		return 0, shared.WrapError("event", "DistinctUsers", shared.ErrStorageFailure, "count distinct users", err)
	}
	return count, nil
}

// ListKeysByCourse implements event.Log.
func (r *EventLogRepo) ListKeysByCourse(ctx context.Context, courseID shared.CourseID) ([]shared.ProgressKey, error) {
	rows, err := r.conn.Query(ctx,
		`SELECT DISTINCT user_id FROM activity_events WHERE course_id = $1 ORDER BY user_id`,
		courseID.Int64(),
	)
	if err != nil {
		return nil, shared.WrapError("event", "ListKeysByCourse", shared.ErrStorageFailure, "query event keys", err)
	}
	defer rows.Close()

	var keys []shared.ProgressKey
	for rows.Next() {
		var userID string
		if err := rows.Scan(&userID); err != nil {
			return nil, shared.WrapError("event", "ListKeysByCourse", shared.ErrStorageFailure, "scan event key", err)
		}
		keys = append(keys, shared.ProgressKey{UserID: shared.UserID(userID), CourseID: courseID})
	}
	if err := rows.Err(); err != nil {
		return nil, shared.WrapError("event", "ListKeysByCourse", shared.ErrStorageFailure, "iterate event keys", err)
	}
	return keys, nil
}

var _ event.Log = (*EventLogRepo)(nil)
