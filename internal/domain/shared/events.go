// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages.
package shared

import (
	"time"
)

// EventType represents the type of domain event.
type EventType string

// Domain event types - these drive the event-driven architecture.
// Each event represents something significant that happened in the pipeline.
const (
	// Ingestion events
	EventActivityAdmitted  EventType = "analytics.event_admitted"
	EventActivityDuplicate EventType = "analytics.event_duplicate"

	// Progress events
	EventProgressUpdated EventType = "progress.updated"
	EventUnitCompleted   EventType = "progress.unit_completed"
	EventProgressRebuilt EventType = "progress.rebuilt"

	// Course snapshot events
	EventSnapshotUpdated  EventType = "course.snapshot_updated"
	EventSnapshotRebuilt  EventType = "course.snapshot_rebuilt"
	EventSnapshotDiverged EventType = "course.snapshot_diverged"
)

// Event is the base interface for all domain events.
type Event interface {
	// EventType returns the type of the event.
	EventType() EventType

	// OccurredAt returns when the event occurred.
	OccurredAt() time.Time

	// AggregateID returns the ID of the aggregate that produced this event.
	AggregateID() string

	// Payload returns the event data as a map for serialization.
	Payload() map[string]interface{}
}

// BaseEvent provides common event functionality.
type BaseEvent struct {
	Type          EventType `json:"type"`
	Timestamp     time.Time `json:"timestamp"`
	AggregateId   string    `json:"aggregate_id"`
	Version       int       `json:"version"`
	CorrelationID string    `json:"correlation_id,omitempty"`
}

// EventType implements Event interface.
func (e BaseEvent) EventType() EventType {
	return e.Type
}

// OccurredAt implements Event interface.
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// AggregateID implements Event interface.
func (e BaseEvent) AggregateID() string {
	return e.AggregateId
}

// NewBaseEvent creates a new base event.
func NewBaseEvent(eventType EventType, aggregateID string) BaseEvent {
	return BaseEvent{
		Type:        eventType,
		Timestamp:   time.Now(),
		AggregateId: aggregateID,
		Version:     1,
	}
}

// WithCorrelationID sets the correlation ID for tracing.
func (e BaseEvent) WithCorrelationID(id string) BaseEvent {
	e.CorrelationID = id
	return e
}

// ═══════════════════════════════════════════════════════════════════════════
// Ingestion Events
// ═══════════════════════════════════════════════════════════════════════════

// ActivityAdmittedEvent is emitted when an activity event clears validation
// and is durably appended to the event log.
type ActivityAdmittedEvent struct {
	BaseEvent
	EventID  string `json:"event_id"`
	UserID   string `json:"user_id"`
	CourseID int64  `json:"course_id"`
	UnitID   string `json:"unit_id"`
	Action   string `json:"action"`
}

// Payload implements Event interface.
func (e ActivityAdmittedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"event_id":  e.EventID,
		"user_id":   e.UserID,
		"course_id": e.CourseID,
		"unit_id":   e.UnitID,
		"action":    e.Action,
	}
}

// NewActivityAdmittedEvent creates a new ActivityAdmittedEvent.
func NewActivityAdmittedEvent(eventID string, userID string, courseID int64, unitID, action string) ActivityAdmittedEvent {
	return ActivityAdmittedEvent{
		BaseEvent: NewBaseEvent(EventActivityAdmitted, eventID),
		EventID:   eventID,
		UserID:    userID,
		CourseID:  courseID,
		UnitID:    unitID,
		Action:    action,
	}
}

// ActivityDuplicateEvent is emitted when an inbound event replays an ID the
// log already holds. The request still succeeds; subscribers use this to
// observe client retry behavior.
type ActivityDuplicateEvent struct {
	BaseEvent
	EventID  string `json:"event_id"`
	UserID   string `json:"user_id"`
	CourseID int64  `json:"course_id"`
}

// Payload implements Event interface.
func (e ActivityDuplicateEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"event_id":  e.EventID,
		"user_id":   e.UserID,
		"course_id": e.CourseID,
	}
}

// NewActivityDuplicateEvent creates a new ActivityDuplicateEvent.
func NewActivityDuplicateEvent(eventID, userID string, courseID int64) ActivityDuplicateEvent {
	return ActivityDuplicateEvent{
		BaseEvent: NewBaseEvent(EventActivityDuplicate, eventID),
		EventID:   eventID,
		UserID:    userID,
		CourseID:  courseID,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Progress Events
// ═══════════════════════════════════════════════════════════════════════════

// ProgressUpdatedEvent is emitted after an event is applied to a progress record.
type ProgressUpdatedEvent struct {
	BaseEvent
	UserID        string  `json:"user_id"`
	CourseID      int64   `json:"course_id"`
	ProgressRatio float64 `json:"progress_ratio"`
	UnitsComplete int     `json:"units_complete"`
	TotalUnits    int     `json:"total_units"`
	FirstActivity bool    `json:"first_activity"`
}

// Payload implements Event interface.
func (e ProgressUpdatedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":        e.UserID,
		"course_id":      e.CourseID,
		"progress_ratio": e.ProgressRatio,
		"units_complete": e.UnitsComplete,
		"total_units":    e.TotalUnits,
		"first_activity": e.FirstActivity,
	}
}

// NewProgressUpdatedEvent creates a new ProgressUpdatedEvent.
func NewProgressUpdatedEvent(key ProgressKey, ratio float64, unitsComplete, totalUnits int, firstActivity bool) ProgressUpdatedEvent {
	return ProgressUpdatedEvent{
		BaseEvent:     NewBaseEvent(EventProgressUpdated, key.String()),
		UserID:        string(key.UserID),
		CourseID:      int64(key.CourseID),
		ProgressRatio: ratio,
		UnitsComplete: unitsComplete,
		TotalUnits:    totalUnits,
		FirstActivity: firstActivity,
	}
}

// UnitCompletedEvent is emitted the first time a unit enters a user's
// completed set. Replays and out-of-order deliveries do not re-emit it.
type UnitCompletedEvent struct {
	BaseEvent
	UserID   string `json:"user_id"`
	CourseID int64  `json:"course_id"`
	UnitID   string `json:"unit_id"`
}

// Payload implements Event interface.
func (e UnitCompletedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":   e.UserID,
		"course_id": e.CourseID,
		"unit_id":   e.UnitID,
	}
}

// NewUnitCompletedEvent creates a new UnitCompletedEvent.
func NewUnitCompletedEvent(key ProgressKey, unitID string) UnitCompletedEvent {
	return UnitCompletedEvent{
		BaseEvent: NewBaseEvent(EventUnitCompleted, key.String()),
		UserID:    string(key.UserID),
		CourseID:  int64(key.CourseID),
		UnitID:    unitID,
	}
}

// ProgressRebuiltEvent is emitted when a record is refolded from the event
// log, replacing whatever incremental state it held.
type ProgressRebuiltEvent struct {
	BaseEvent
	UserID        string  `json:"user_id"`
	CourseID      int64   `json:"course_id"`
	ProgressRatio float64 `json:"progress_ratio"`
}

// Payload implements Event interface.
func (e ProgressRebuiltEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":        e.UserID,
		"course_id":      e.CourseID,
		"progress_ratio": e.ProgressRatio,
	}
}

// NewProgressRebuiltEvent creates a new ProgressRebuiltEvent.
func NewProgressRebuiltEvent(key ProgressKey, ratio float64) ProgressRebuiltEvent {
	return ProgressRebuiltEvent{
		BaseEvent:     NewBaseEvent(EventProgressRebuilt, key.String()),
		UserID:        string(key.UserID),
		CourseID:      int64(key.CourseID),
		ProgressRatio: ratio,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Course Snapshot Events
// ═══════════════════════════════════════════════════════════════════════════

// SnapshotUpdatedEvent is emitted after an incremental snapshot update.
type SnapshotUpdatedEvent struct {
	BaseEvent
	CourseID        int64   `json:"course_id"`
	TotalUsers      int64   `json:"total_users"`
	TotalActivities int64   `json:"total_activities"`
	AverageProgress float64 `json:"average_progress"`
}

// Payload implements Event interface.
func (e SnapshotUpdatedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"course_id":        e.CourseID,
		"total_users":      e.TotalUsers,
		"total_activities": e.TotalActivities,
		"average_progress": e.AverageProgress,
	}
}

// NewSnapshotUpdatedEvent creates a new SnapshotUpdatedEvent.
func NewSnapshotUpdatedEvent(courseID CourseID, totalUsers, totalActivities int64, averageProgress float64) SnapshotUpdatedEvent {
	return SnapshotUpdatedEvent{
		BaseEvent:       NewBaseEvent(EventSnapshotUpdated, courseID.String()),
		CourseID:        int64(courseID),
		TotalUsers:      totalUsers,
		TotalActivities: totalActivities,
		AverageProgress: averageProgress,
	}
}

// SnapshotRebuiltEvent is emitted when a snapshot is reconstructed from the
// event log and progress records, either on demand or by the audit job.
type SnapshotRebuiltEvent struct {
	BaseEvent
	CourseID int64  `json:"course_id"`
	Reason   string `json:"reason"` // "manual", "audit", "recovery"
}

// Payload implements Event interface.
func (e SnapshotRebuiltEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"course_id": e.CourseID,
		"reason":    e.Reason,
	}
}

// NewSnapshotRebuiltEvent creates a new SnapshotRebuiltEvent.
func NewSnapshotRebuiltEvent(courseID CourseID, reason string) SnapshotRebuiltEvent {
	return SnapshotRebuiltEvent{
		BaseEvent: NewBaseEvent(EventSnapshotRebuilt, courseID.String()),
		CourseID:  int64(courseID),
		Reason:    reason,
	}
}

// SnapshotDivergedEvent is emitted when the consistency audit finds a stored
// snapshot that disagrees with the event log, before the repair is saved.
type SnapshotDivergedEvent struct {
	BaseEvent
	CourseID int64 `json:"course_id"`
}

// Payload implements Event interface.
func (e SnapshotDivergedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"course_id": e.CourseID,
	}
}

// NewSnapshotDivergedEvent creates a new SnapshotDivergedEvent.
func NewSnapshotDivergedEvent(courseID CourseID) SnapshotDivergedEvent {
	return SnapshotDivergedEvent{
		BaseEvent: NewBaseEvent(EventSnapshotDiverged, courseID.String()),
		CourseID:  int64(courseID),
	}
}

// EventHandler is a function that handles an event.
type EventHandler func(event Event) error

// EventPublisher defines the interface for publishing events.
type EventPublisher interface {
	// Publish sends an event to subscribers.
	Publish(event Event) error
}

// EventSubscriber defines the interface for subscribing to events.
type EventSubscriber interface {
	// Subscribe registers a handler for an event type.
	Subscribe(eventType EventType, handler EventHandler) error

	// SubscribeAll registers a handler for all events.
	SubscribeAll(handler EventHandler) error
}

// EventBus combines publishing and subscribing.
type EventBus interface {
	EventPublisher
	EventSubscriber
}

// NopPublisher discards all events. Useful in tests and minimal wiring.
type NopPublisher struct{}

// Publish implements EventPublisher.
func (NopPublisher) Publish(Event) error { return nil }
