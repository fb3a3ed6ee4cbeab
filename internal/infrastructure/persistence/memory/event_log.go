// Package memory provides in-process implementations of the persistence
// ports. They back the default deployment profile and the test suites;
// the postgres package provides the durable equivalents.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/lmshub/lms-analytics/internal/domain/event"
	"github.com/lmshub/lms-analytics/internal/domain/shared"
)

// EventLog is an append-only in-memory activity log with eventId dedup.
type EventLog struct {
	mu     sync.RWMutex
	seen   map[shared.EventID]struct{}
	byKey  map[shared.ProgressKey][]*event.ActivityEvent
	counts map[shared.CourseID]int64
	users  map[shared.CourseID]map[shared.UserID]struct{}
}

// NewEventLog creates an empty log.
func NewEventLog() *EventLog {
	return &EventLog{
		seen:   make(map[shared.EventID]struct{}),
		byKey:  make(map[shared.ProgressKey][]*event.ActivityEvent),
		counts: make(map[shared.CourseID]int64),
		users:  make(map[shared.CourseID]map[shared.UserID]struct{}),
	}
}

// Append stores the event unless its ID was seen before. The check and the
// insert happen under one lock, so concurrent duplicates admit exactly one.
func (l *EventLog) Append(ctx context.Context, e *event.ActivityEvent) (event.AppendOutcome, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, dup := l.seen[e.ID]; dup {
		return event.OutcomeDuplicate, nil
	}
	l.seen[e.ID] = struct{}{}

	key := e.Key()
	events := append(l.byKey[key], e)
	sort.Slice(events, func(i, j int) bool {
		if !events[i].Timestamp.Equal(events[j].Timestamp) {
			return events[i].Timestamp.Before(events[j].Timestamp)
		}
		return events[i].ID < events[j].ID
	})
	l.byKey[key] = events

	l.counts[e.CourseID]++
	if l.users[e.CourseID] == nil {
		l.users[e.CourseID] = make(map[shared.UserID]struct{})
	}
	l.users[e.CourseID][e.UserID] = struct{}{}

	return event.OutcomeAccepted, nil
}

// ReadSince returns up to limit events for the key strictly after the cursor,
// ordered by (timestamp, eventId).
func (l *EventLog) ReadSince(ctx context.Context, key shared.ProgressKey, cursor event.Cursor, limit int) ([]*event.ActivityEvent, event.Cursor, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if limit <= 0 {
		limit = 100
	}

	out := make([]*event.ActivityEvent, 0, limit)
	next := cursor
	for _, e := range l.byKey[key] {
		if !cursor.IsZero() {
			ts := e.Timestamp.UnixNano()
			if ts < cursor.Timestamp || (ts == cursor.Timestamp && e.ID <= cursor.EventID) {
				continue
			}
		}
		out = append(out, e)
		next = event.After(e)
		if len(out) == limit {
			break
		}
	}
	return out, next, nil
}

// CountByCourse returns the number of admitted events for a course.
func (l *EventLog) CountByCourse(ctx context.Context, courseID shared.CourseID) (int64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.counts[courseID], nil
}

// DistinctUsers returns how many learners have events in a course.
func (l *EventLog) DistinctUsers(ctx context.Context, courseID shared.CourseID) (int64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return int64(len(l.users[courseID])), nil
}

// ListKeysByCourse returns every (user, course) key present in the log for
// the course, ordered by user for deterministic iteration.
func (l *EventLog) ListKeysByCourse(ctx context.Context, courseID shared.CourseID) ([]shared.ProgressKey, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	keys := make([]shared.ProgressKey, 0, len(l.users[courseID]))
	for userID := range l.users[courseID] {
		keys = append(keys, shared.ProgressKey{UserID: userID, CourseID: courseID})
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].UserID < keys[j].UserID })
	return keys, nil
}
