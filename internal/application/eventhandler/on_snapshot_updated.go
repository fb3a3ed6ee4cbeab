// Package eventhandler contains subscribers for domain events.
package eventhandler

import (
	"context"
	"log/slog"

	"github.com/lmshub/lms-analytics/internal/application/query"
	"github.com/lmshub/lms-analytics/internal/domain/shared"
)

// ═══════════════════════════════════════════════════════════════════════════
// ON SNAPSHOT UPDATED HANDLER
// Keeps the read-side cache honest: every snapshot change drops the cached
// course view so the next read sees fresh numbers.
// ═══════════════════════════════════════════════════════════════════════════

// OnSnapshotUpdatedHandler invalidates cached course analytics whenever a
// snapshot moves, whether incrementally or by rebuild.
type OnSnapshotUpdatedHandler struct {
	cache  query.SnapshotCache
	logger *slog.Logger
}

// NewOnSnapshotUpdatedHandler creates the handler. cache may be nil when
// caching is disabled; the handler then only logs.
func NewOnSnapshotUpdatedHandler(cache query.SnapshotCache, logger *slog.Logger) *OnSnapshotUpdatedHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &OnSnapshotUpdatedHandler{cache: cache, logger: logger}
}

// Register subscribes the handler on the bus.
func (h *OnSnapshotUpdatedHandler) Register(bus shared.EventSubscriber) error {
	if err := bus.Subscribe(shared.EventSnapshotUpdated, h.Handle); err != nil {
		return err
	}
	return bus.Subscribe(shared.EventSnapshotRebuilt, h.Handle)
}

// Handle processes one snapshot event.
func (h *OnSnapshotUpdatedHandler) Handle(e shared.Event) error {
	var courseID int64
	switch ev := e.(type) {
	case shared.SnapshotUpdatedEvent:
		courseID = ev.CourseID
	case shared.SnapshotRebuiltEvent:
		courseID = ev.CourseID
		h.logger.Info("course snapshot rebuilt",
			slog.Int64("course_id", ev.CourseID),
			slog.String("reason", ev.Reason),
		)
	default:
		return nil
	}

	if h.cache != nil {
		id, err := shared.NewCourseID(courseID)
		if err != nil {
			return err
		}
		h.cache.Invalidate(context.Background(), id)
		h.logger.Debug("course analytics cache invalidated",
			slog.Int64("course_id", courseID),
		)
	}
	return nil
}
