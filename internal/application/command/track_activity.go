// Package command contains write operations (CQRS - Commands).
package command

import (
	"context"

	"github.com/lmshub/lms-analytics/internal/application/aggregator"
	"github.com/lmshub/lms-analytics/internal/domain/course"
	"github.com/lmshub/lms-analytics/internal/domain/event"
	"github.com/lmshub/lms-analytics/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// TRACK ACTIVITY COMMAND
// The single write path: validate, append to the log, fold into both views.
// ══════════════════════════════════════════════════════════════════════════════

// TrackActivityCommand carries one raw activity event as received on the wire.
type TrackActivityCommand struct {
	// UserID is the learner's identifier. Required.
	UserID string

	// CourseID is the numeric course identifier. Required.
	CourseID int64

	// UnitID is the course unit the activity refers to. Optional for VIEW
	// and START; required for COMPLETE and SUBMIT.
	UnitID string

	// Action is one of VIEW, START, COMPLETE, SUBMIT (case-insensitive).
	Action string

	// Timestamp is the client-side occurrence time, ISO-8601.
	Timestamp string

	// EventID is the client-supplied idempotency key. Optional; derived
	// deterministically from the payload when absent.
	EventID string

	// CorrelationID for tracing.
	CorrelationID string
}

// TrackActivityResult reports what tracking one event did.
type TrackActivityResult struct {
	// EventID is the idempotency key the event was stored under.
	EventID shared.EventID

	// Duplicate is true when the event was already in the log. The request
	// still succeeds; no view changed.
	Duplicate bool

	// Progress is the learner's ratio after the event.
	Progress float64

	// UnitCompleted is true when this event completed a new unit.
	UnitCompleted bool
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// TrackActivityHandler executes the ingestion pipeline. The event is durable
// once appended; both views are updated before the caller sees success, so a
// read issued after Handle returns reflects the write.
type TrackActivityHandler struct {
	validator *event.Validator
	log       event.Log
	progress  *aggregator.ProgressAggregator
	courses   *aggregator.CourseAggregator
	bus       shared.EventPublisher
}

// NewTrackActivityHandler creates a TrackActivityHandler.
func NewTrackActivityHandler(
	validator *event.Validator,
	log event.Log,
	progress *aggregator.ProgressAggregator,
	courses *aggregator.CourseAggregator,
	bus shared.EventPublisher,
) *TrackActivityHandler {
	if bus == nil {
		bus = shared.NopPublisher{}
	}
	return &TrackActivityHandler{
		validator: validator,
		log:       log,
		progress:  progress,
		courses:   courses,
		bus:       bus,
	}
}

// Handle validates the raw event, appends it to the log, and folds it into
// the progress record and the course snapshot. A duplicate event ID
// short-circuits after the append and reports success without touching
// either view.
func (h *TrackActivityHandler) Handle(ctx context.Context, cmd TrackActivityCommand) (*TrackActivityResult, error) {
	e, err := h.validator.Validate(ctx, event.RawEvent{
		UserID:    cmd.UserID,
		CourseID:  cmd.CourseID,
		UnitID:    cmd.UnitID,
		Action:    cmd.Action,
		Timestamp: cmd.Timestamp,
		EventID:   cmd.EventID,
	})
	if err != nil {
		return nil, err
	}

	outcome, err := h.log.Append(ctx, e)
	if err != nil {
		return nil, shared.WrapError("event", "Append", shared.ErrAppendNotDurable, "event log append failed", err)
	}

	if outcome == event.OutcomeDuplicate {
		_ = h.bus.Publish(shared.NewActivityDuplicateEvent(e.ID.String(), cmd.UserID, cmd.CourseID))

		rec, err := h.progress.GetProgress(ctx, e.Key())
		if err != nil {
			return nil, err
		}
		return &TrackActivityResult{
			EventID:   e.ID,
			Duplicate: true,
			Progress:  rec.Ratio().Float64(),
		}, nil
	}

	admitted := shared.NewActivityAdmittedEvent(
		e.ID.String(), cmd.UserID, cmd.CourseID, cmd.UnitID, string(e.Action),
	)
	if cmd.CorrelationID != "" {
		admitted.BaseEvent = admitted.BaseEvent.WithCorrelationID(cmd.CorrelationID)
	}
	_ = h.bus.Publish(admitted)

	pr, err := h.progress.Apply(ctx, e)
	if err != nil {
		return nil, err
	}

	if _, err := h.courses.Apply(ctx, e, pr); err != nil {
		return nil, err
	}

	return &TrackActivityResult{
		EventID:       e.ID,
		Progress:      pr.Record.Ratio().Float64(),
		UnitCompleted: pr.UnitCompleted,
	}, nil
}

// The full catalog must stay usable wherever the validator needs course
// existence checks.
var _ event.CourseDirectory = (course.Catalog)(nil)
