package eventhandler

import (
	"log/slog"

	"github.com/lmshub/lms-analytics/internal/domain/shared"
)

// ═══════════════════════════════════════════════════════════════════════════
// ON UNIT COMPLETED HANDLER
// Emits the audit trail of unit completions. Completion events fire once per
// (user, course, unit), so the log doubles as a dedup-checked history.
// ═══════════════════════════════════════════════════════════════════════════

// OnUnitCompletedHandler logs first-time unit completions.
type OnUnitCompletedHandler struct {
	logger *slog.Logger
}

// NewOnUnitCompletedHandler creates the handler.
func NewOnUnitCompletedHandler(logger *slog.Logger) *OnUnitCompletedHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &OnUnitCompletedHandler{logger: logger}
}

// Register subscribes the handler on the bus.
func (h *OnUnitCompletedHandler) Register(bus shared.EventSubscriber) error {
	return bus.Subscribe(shared.EventUnitCompleted, h.Handle)
}

// Handle processes one completion event.
func (h *OnUnitCompletedHandler) Handle(e shared.Event) error {
	ev, ok := e.(shared.UnitCompletedEvent)
	if !ok {
		return nil
	}

	h.logger.Info("unit completed",
		slog.String("user_id", ev.UserID),
		slog.Int64("course_id", ev.CourseID),
		slog.String("unit_id", ev.UnitID),
	)
	return nil
}
