// Package aggregator contains the incremental view maintainers. They fold
// admitted activity events into the progress and course materialized views
// and can rebuild either view from the event log.
package aggregator

import (
	"context"
	"fmt"

	"github.com/lmshub/lms-analytics/internal/domain/course"
	"github.com/lmshub/lms-analytics/internal/domain/event"
	"github.com/lmshub/lms-analytics/internal/domain/progress"
	"github.com/lmshub/lms-analytics/internal/domain/shared"
	"github.com/lmshub/lms-analytics/pkg/keymutex"
	"github.com/lmshub/lms-analytics/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// PROGRESS AGGREGATOR
// Maintains per-(user, course) progress records from admitted events.
// ══════════════════════════════════════════════════════════════════════════════

// ProgressResult reports the effect of folding one event into a record.
type ProgressResult struct {
	Record        *progress.Record
	FirstForUser  bool
	UnitCompleted bool
	RatioDelta    float64
}

// ProgressAggregator applies events to progress records. Mutations for the
// same (user, course) key serialize on a per-key lock; different keys run
// in parallel.
type ProgressAggregator struct {
	records progress.Repository
	catalog course.Catalog
	bus     shared.EventPublisher
	locks   *keymutex.KeyMutex
	clock   timeutil.Clock
}

// NewProgressAggregator creates a ProgressAggregator.
func NewProgressAggregator(
	records progress.Repository,
	catalog course.Catalog,
	bus shared.EventPublisher,
	clock timeutil.Clock,
) *ProgressAggregator {
	if bus == nil {
		bus = shared.NopPublisher{}
	}
	if clock == nil {
		clock = timeutil.SystemClock{}
	}
	return &ProgressAggregator{
		records: records,
		catalog: catalog,
		bus:     bus,
		locks:   keymutex.New(),
		clock:   clock,
	}
}

// Apply folds one admitted event into the learner's record, creating the
// record on first activity. The caller has already deduplicated the event
// against the log; Apply assumes it is seeing each event at most once.
func (a *ProgressAggregator) Apply(ctx context.Context, e *event.ActivityEvent) (*ProgressResult, error) {
	key := e.Key()

	unlock := a.locks.Lock(key.String())
	defer unlock()

	rec, err := a.records.Get(ctx, key)
	first := false
	switch {
	case err == nil:
	case shared.IsNotFound(err):
		first = true
		totalUnits, cerr := a.catalog.GetUnitCount(ctx, e.CourseID)
		if cerr != nil {
			return nil, fmt.Errorf("progress aggregator: unit count for course %d: %w", e.CourseID, cerr)
		}
		rec = progress.NewRecord(e.UserID, e.CourseID, totalUnits, a.clock.Now())
	default:
		return nil, fmt.Errorf("progress aggregator: load record %s: %w", key, err)
	}

	ch := rec.Apply(e)

	if err := a.records.Save(ctx, rec); err != nil {
		return nil, fmt.Errorf("progress aggregator: save record %s: %w", key, err)
	}

	a.publish(key, e, rec, ch, first)

	return &ProgressResult{
		Record:        rec.Clone(),
		FirstForUser:  first,
		UnitCompleted: ch.UnitCompleted,
		RatioDelta:    ch.RatioAfter.Float64() - ch.RatioBefore.Float64(),
	}, nil
}

func (a *ProgressAggregator) publish(key shared.ProgressKey, e *event.ActivityEvent, rec *progress.Record, ch progress.Change, first bool) {
	_ = a.bus.Publish(shared.NewProgressUpdatedEvent(
		key, rec.Ratio().Float64(), len(rec.CompletedUnits), rec.TotalUnits, first,
	))
	if ch.UnitCompleted {
		_ = a.bus.Publish(shared.NewUnitCompletedEvent(key, e.UnitID.String()))
	}
}

// GetProgress returns the current record, or an empty one when the learner
// has no recorded activity. Absence is not an error at this layer.
func (a *ProgressAggregator) GetProgress(ctx context.Context, key shared.ProgressKey) (*progress.Record, error) {
	rec, err := a.records.Get(ctx, key)
	if err == nil {
		return rec, nil
	}
	if shared.IsNotFound(err) {
		return progress.NewRecord(key.UserID, key.CourseID, 0, a.clock.Now()), nil
	}
	return nil, fmt.Errorf("progress aggregator: load record %s: %w", key, err)
}

// rebuildPageSize bounds the log pages read during a rebuild.
const rebuildPageSize = 500

// Rebuild discards the stored record and refolds the learner's full event
// history from the log. Used by the consistency audit and the admin rebuild
// endpoint.
func (a *ProgressAggregator) Rebuild(ctx context.Context, log event.Log, key shared.ProgressKey) (*progress.Record, error) {
	unlock := a.locks.Lock(key.String())
	defer unlock()

	totalUnits, err := a.catalog.GetUnitCount(ctx, key.CourseID)
	if err != nil {
		return nil, fmt.Errorf("progress aggregator: unit count for course %d: %w", key.CourseID, err)
	}

	rec := progress.NewRecord(key.UserID, key.CourseID, totalUnits, a.clock.Now())

	var cursor event.Cursor
	for {
		events, next, err := log.ReadSince(ctx, key, cursor, rebuildPageSize)
		if err != nil {
			return nil, fmt.Errorf("progress aggregator: read log for %s: %w", key, err)
		}
		for _, e := range events {
			rec.Apply(e)
		}
		if len(events) < rebuildPageSize {
			break
		}
		cursor = next
	}

	if err := a.records.Save(ctx, rec); err != nil {
		return nil, fmt.Errorf("progress aggregator: save rebuilt record %s: %w", key, err)
	}

	_ = a.bus.Publish(shared.NewProgressRebuiltEvent(key, rec.Ratio().Float64()))

	return rec.Clone(), nil
}
