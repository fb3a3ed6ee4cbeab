package command

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lmshub/lms-analytics/internal/application/aggregator"
	"github.com/lmshub/lms-analytics/internal/domain/course"
	"github.com/lmshub/lms-analytics/internal/domain/event"
	"github.com/lmshub/lms-analytics/internal/domain/progress"
	"github.com/lmshub/lms-analytics/internal/domain/shared"
	"github.com/lmshub/lms-analytics/internal/infrastructure/persistence/memory"
	"github.com/lmshub/lms-analytics/pkg/timeutil"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type harness struct {
	handler *TrackActivityHandler
	rebuild *RebuildCourseHandler
	log     *memory.EventLog
	records *memory.ProgressStore
	courses *aggregator.CourseAggregator
}

func newHarness() *harness {
	catalog := memory.NewStaticCatalog(
		course.Info{ID: 42, Title: "Go Fundamentals", UnitCount: 4},
		course.Info{ID: 7, Title: "Databases", UnitCount: 2},
	)
	clock := timeutil.FixedClock{T: testNow}
	log := memory.NewEventLog()
	records := memory.NewProgressStore()
	snapshots := memory.NewSnapshotStore()

	progressAgg := aggregator.NewProgressAggregator(records, catalog, nil, clock)
	courseAgg := aggregator.NewCourseAggregator(snapshots, records, nil, clock)
	validator := event.NewValidator(catalog, 0, clock)

	return &harness{
		handler: NewTrackActivityHandler(validator, log, progressAgg, courseAgg, nil),
		rebuild: NewRebuildCourseHandler(log, progressAgg, courseAgg),
		log:     log,
		records: records,
		courses: courseAgg,
	}
}

func cmd(userID string, courseID int64, unitID, action string) TrackActivityCommand {
	return TrackActivityCommand{
		UserID:    userID,
		CourseID:  courseID,
		UnitID:    unitID,
		Action:    action,
		Timestamp: testNow.Format(time.RFC3339),
	}
}

func TestHandleTracksCompletion(t *testing.T) {
	h := newHarness()

	res, err := h.handler.Handle(context.Background(), cmd("user-1", 42, "unit-1", "COMPLETE"))
	require.NoError(t, err)

	assert.False(t, res.Duplicate)
	assert.True(t, res.UnitCompleted)
	assert.InDelta(t, 0.25, res.Progress, 1e-9)
	assert.True(t, res.EventID.IsValid())
}

func TestHandleLowercaseAction(t *testing.T) {
	h := newHarness()

	res, err := h.handler.Handle(context.Background(), cmd("user-1", 42, "unit-1", "complete"))
	require.NoError(t, err)
	assert.True(t, res.UnitCompleted)
}

func TestHandleDuplicateIsSuccessNoOp(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	first, err := h.handler.Handle(ctx, cmd("user-1", 42, "unit-1", "COMPLETE"))
	require.NoError(t, err)

	second, err := h.handler.Handle(ctx, cmd("user-1", 42, "unit-1", "COMPLETE"))
	require.NoError(t, err)

	assert.Equal(t, first.EventID, second.EventID)
	assert.True(t, second.Duplicate)
	assert.InDelta(t, first.Progress, second.Progress, 1e-9)

	count, err := h.log.CountByCourse(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestHandleClientEventIDWinsOverDerivation(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	c1 := cmd("user-1", 42, "unit-1", "COMPLETE")
	c1.EventID = "client-key-1"
	res, err := h.handler.Handle(ctx, c1)
	require.NoError(t, err)
	assert.Equal(t, shared.EventID("client-key-1"), res.EventID)

	// Same key, different payload field: still deduplicated.
	c2 := cmd("user-1", 42, "unit-2", "COMPLETE")
	c2.EventID = "client-key-1"
	res2, err := h.handler.Handle(ctx, c2)
	require.NoError(t, err)
	assert.True(t, res2.Duplicate)
}

func TestHandleValidationFailures(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	tests := []struct {
		name string
		cmd  TrackActivityCommand
		want error
	}{
		{"missing user", cmd("", 42, "unit-1", "VIEW"), shared.ErrMissingUserID},
		{"bad course id", cmd("user-1", -1, "unit-1", "VIEW"), shared.ErrInvalidCourseID},
		{"completion without unit", cmd("user-1", 42, "", "COMPLETE"), shared.ErrMissingUnitID},
		{"submit without unit", cmd("user-1", 42, "", "SUBMIT"), shared.ErrMissingUnitID},
		{"unknown action", cmd("user-1", 42, "unit-1", "DANCE"), shared.ErrUnknownAction},
		{"unknown course", cmd("user-1", 999, "unit-1", "VIEW"), shared.ErrUnknownCourse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.handler.Handle(ctx, tt.cmd)
			assert.ErrorIs(t, err, tt.want)
			assert.True(t, shared.IsValidation(err))
		})
	}
}

func TestHandleUnitlessActivity(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	res, err := h.handler.Handle(ctx, cmd("user-1", 42, "", "VIEW"))
	require.NoError(t, err)
	assert.False(t, res.Duplicate)
	assert.False(t, res.UnitCompleted)
	assert.InDelta(t, 0.0, res.Progress, 1e-9)

	// The event is logged and the record tracks the activity time.
	count, err := h.log.CountByCourse(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	rec, err := h.records.Get(ctx, shared.ProgressKey{UserID: "user-1", CourseID: 42})
	require.NoError(t, err)
	assert.True(t, rec.LastActivityAt.Equal(testNow))
	assert.Empty(t, rec.CompletedUnits)
}

func TestHandleRejectsMalformedTimestamp(t *testing.T) {
	h := newHarness()

	c := cmd("user-1", 42, "unit-1", "VIEW")
	c.Timestamp = "not-a-time"
	_, err := h.handler.Handle(context.Background(), c)
	assert.ErrorIs(t, err, shared.ErrBadTimestamp)
}

func TestHandleRejectsFarFutureTimestamp(t *testing.T) {
	h := newHarness()

	c := cmd("user-1", 42, "unit-1", "VIEW")
	c.Timestamp = testNow.Add(time.Hour).Format(time.RFC3339)
	_, err := h.handler.Handle(context.Background(), c)
	assert.ErrorIs(t, err, shared.ErrClockSkew)
}

func TestHandleReadAfterWrite(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	_, err := h.handler.Handle(ctx, cmd("user-1", 7, "unit-1", "SUBMIT"))
	require.NoError(t, err)

	snap, err := h.courses.GetCourseAnalytics(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, int64(1), snap.TotalUsers)
	assert.Equal(t, int64(1), snap.TotalActivities)
	assert.InDelta(t, 0.5, snap.AverageProgress(), 1e-9)
}

func TestRebuildCourseHandler(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	for _, unit := range []string{"unit-1", "unit-2"} {
		_, err := h.handler.Handle(ctx, cmd("user-1", 7, unit, "COMPLETE"))
		require.NoError(t, err)
	}

	res, err := h.rebuild.Handle(ctx, RebuildCourseCommand{CourseID: 7})
	require.NoError(t, err)

	assert.Equal(t, shared.CourseID(7), res.CourseID)
	assert.Equal(t, 1, res.RecordsRebuilt)
	assert.Equal(t, int64(1), res.TotalUsers)
	assert.Equal(t, int64(2), res.TotalActivities)
	assert.InDelta(t, 1.0, res.AverageProgress, 1e-9)
}

func TestRebuildCourseRejectsBadID(t *testing.T) {
	h := newHarness()

	_, err := h.rebuild.Handle(context.Background(), RebuildCourseCommand{CourseID: 0})
	assert.ErrorIs(t, err, shared.ErrInvalidCourseID)
}

// flakySaveStore fails a configured number of Saves before behaving normally.
type flakySaveStore struct {
	*memory.ProgressStore
	failSaves int
}

func (s *flakySaveStore) Save(ctx context.Context, rec *progress.Record) error {
	if s.failSaves > 0 {
		s.failSaves--
		return errors.New("write timeout")
	}
	return s.ProgressStore.Save(ctx, rec)
}

func TestRebuildRecoversEventFoldedIntoNeitherView(t *testing.T) {
	// The append is durable but the fold into the progress record fails.
	// The client's retry deduplicates against the log without refolding,
	// so only a log-driven rebuild can bring the views back in line.
	catalog := memory.NewStaticCatalog(course.Info{ID: 42, Title: "Go Fundamentals", UnitCount: 4})
	clock := timeutil.FixedClock{T: testNow}
	log := memory.NewEventLog()
	store := &flakySaveStore{ProgressStore: memory.NewProgressStore(), failSaves: 1}
	snapshots := memory.NewSnapshotStore()

	progressAgg := aggregator.NewProgressAggregator(store, catalog, nil, clock)
	courseAgg := aggregator.NewCourseAggregator(snapshots, store, nil, clock)
	validator := event.NewValidator(catalog, 0, clock)
	handler := NewTrackActivityHandler(validator, log, progressAgg, courseAgg, nil)
	rebuild := NewRebuildCourseHandler(log, progressAgg, courseAgg)

	ctx := context.Background()
	c := cmd("user-1", 42, "unit-1", "COMPLETE")

	_, err := handler.Handle(ctx, c)
	require.Error(t, err)

	count, err := log.CountByCourse(ctx, 42)
	require.NoError(t, err)
	require.Equal(t, int64(1), count)

	// Retry with the same payload: same derived eventId, duplicate outcome,
	// no fold. The record is still missing.
	res, err := handler.Handle(ctx, c)
	require.NoError(t, err)
	assert.True(t, res.Duplicate)
	assert.InDelta(t, 0.0, res.Progress, 1e-9)

	_, err = store.Get(ctx, shared.ProgressKey{UserID: "user-1", CourseID: 42})
	assert.ErrorIs(t, err, shared.ErrNotFound)

	// Rebuild walks the log's keys, so the orphaned event is reachable.
	out, err := rebuild.Handle(ctx, RebuildCourseCommand{CourseID: 42, Reason: "recovery"})
	require.NoError(t, err)
	assert.Equal(t, 1, out.RecordsRebuilt)
	assert.Equal(t, int64(1), out.TotalUsers)
	assert.InDelta(t, 0.25, out.AverageProgress, 1e-9)

	rec, err := store.Get(ctx, shared.ProgressKey{UserID: "user-1", CourseID: 42})
	require.NoError(t, err)
	assert.InDelta(t, 0.25, rec.Ratio().Float64(), 1e-9)
}

// gatedLog blocks the first ListKeysByCourse until released, letting a test
// hold a rebuild mid-flight.
type gatedLog struct {
	*memory.EventLog
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (l *gatedLog) ListKeysByCourse(ctx context.Context, courseID shared.CourseID) ([]shared.ProgressKey, error) {
	l.once.Do(func() {
		l.entered <- struct{}{}
		<-l.release
	})
	return l.EventLog.ListKeysByCourse(ctx, courseID)
}

func TestRebuildCourseRejectsConcurrentRun(t *testing.T) {
	catalog := memory.NewStaticCatalog(course.Info{ID: 42, Title: "Go Fundamentals", UnitCount: 4})
	clock := timeutil.FixedClock{T: testNow}
	log := &gatedLog{
		EventLog: memory.NewEventLog(),
		entered:  make(chan struct{}),
		release:  make(chan struct{}),
	}
	store := memory.NewProgressStore()
	snapshots := memory.NewSnapshotStore()

	progressAgg := aggregator.NewProgressAggregator(store, catalog, nil, clock)
	courseAgg := aggregator.NewCourseAggregator(snapshots, store, nil, clock)
	rebuild := NewRebuildCourseHandler(log, progressAgg, courseAgg)

	ctx := context.Background()
	done := make(chan error, 1)
	go func() {
		_, err := rebuild.Handle(ctx, RebuildCourseCommand{CourseID: 42})
		done <- err
	}()

	<-log.entered
	_, err := rebuild.Handle(ctx, RebuildCourseCommand{CourseID: 42})
	assert.ErrorIs(t, err, shared.ErrRebuildInProgress)

	close(log.release)
	require.NoError(t, <-done)

	// With the first run finished the course is rebuildable again.
	_, err = rebuild.Handle(ctx, RebuildCourseCommand{CourseID: 42})
	assert.NoError(t, err)
}

// capturingBus records published events for assertions.
type capturingBus struct {
	mu     sync.Mutex
	events []shared.Event
}

func (b *capturingBus) Publish(e shared.Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, e)
	return nil
}

func (b *capturingBus) types() []shared.EventType {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]shared.EventType, 0, len(b.events))
	for _, e := range b.events {
		out = append(out, e.EventType())
	}
	return out
}

func TestHandlePublishesDuplicateEvent(t *testing.T) {
	catalog := memory.NewStaticCatalog(course.Info{ID: 42, Title: "Go Fundamentals", UnitCount: 4})
	clock := timeutil.FixedClock{T: testNow}
	log := memory.NewEventLog()
	store := memory.NewProgressStore()
	snapshots := memory.NewSnapshotStore()
	bus := &capturingBus{}

	progressAgg := aggregator.NewProgressAggregator(store, catalog, nil, clock)
	courseAgg := aggregator.NewCourseAggregator(snapshots, store, nil, clock)
	validator := event.NewValidator(catalog, 0, clock)
	handler := NewTrackActivityHandler(validator, log, progressAgg, courseAgg, bus)

	ctx := context.Background()
	c := cmd("user-1", 42, "unit-1", "COMPLETE")

	_, err := handler.Handle(ctx, c)
	require.NoError(t, err)
	_, err = handler.Handle(ctx, c)
	require.NoError(t, err)

	types := bus.types()
	assert.Contains(t, types, shared.EventActivityAdmitted)
	assert.Contains(t, types, shared.EventActivityDuplicate)
}
