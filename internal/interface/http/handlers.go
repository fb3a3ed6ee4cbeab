package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/lmshub/lms-analytics/internal/application/command"
	"github.com/lmshub/lms-analytics/internal/application/query"
	"github.com/lmshub/lms-analytics/internal/domain/shared"
	"github.com/lmshub/lms-analytics/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH & STATUS HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleRoot serves the root endpoint with basic API information.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	info := map[string]interface{}{
		"name":        "LMS Analytics API",
		"version":     "v1",
		"description": "Learner activity ingestion and course analytics",
		"endpoints": map[string]string{
			"health":   "/health",
			"track":    "/api/analytics/track",
			"progress": "/api/analytics/progress/{userId}/{courseId}",
			"course":   "/api/analytics/course/{courseId}",
		},
	}

	writeJSON(w, http.StatusOK, info)
}

// handleHealth handles the health check endpoint.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.deps.HealthChecker != nil {
		status := s.deps.HealthChecker.Check(r.Context())
		if !status.Healthy {
			writeJSON(w, http.StatusServiceUnavailable, status)
			return
		}
		writeJSON(w, http.StatusOK, status)
		return
	}

	// Default health response
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "healthy",
		"uptime":  s.Uptime().String(),
		"version": "v1",
	})
}

// handleReady handles the readiness probe endpoint (for Kubernetes).
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.deps.HealthChecker != nil {
		status := s.deps.HealthChecker.Check(r.Context())
		if !status.Ready {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not_ready",
				"reason": status.Message,
			})
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// handleLive handles the liveness probe endpoint (for Kubernetes).
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

// handleMetrics serves basic server metrics as JSON.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	metrics := map[string]interface{}{
		"uptime_seconds": s.Uptime().Seconds(),
		"running":        s.IsRunning(),
	}

	writeJSON(w, http.StatusOK, metrics)
}

// ══════════════════════════════════════════════════════════════════════════════
// TRACK ACTIVITY HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// trackActivityRequest is the wire format of the ingestion endpoint.
type trackActivityRequest struct {
	UserID    string `json:"userId"`
	CourseID  int64  `json:"courseId"`
	UnitID    string `json:"unitId"`
	Action    string `json:"action"`
	Timestamp string `json:"timestamp"`
	EventID   string `json:"eventId,omitempty"`
}

// trackActivityResponse acknowledges an admitted or replayed event.
type trackActivityResponse struct {
	Message       string  `json:"message"`
	EventID       string  `json:"eventId"`
	Duplicate     bool    `json:"duplicate,omitempty"`
	Progress      float64 `json:"progress"`
	UnitCompleted bool    `json:"unitCompleted,omitempty"`
}

// handleTrackActivity handles POST /api/analytics/track
func (s *Server) handleTrackActivity(w http.ResponseWriter, r *http.Request) {
	if s.deps.TrackActivityHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Tracking handler not configured")
		return
	}

	var req trackActivityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON payload")
		return
	}
	defer r.Body.Close()

	cmd := command.TrackActivityCommand{
		UserID:        req.UserID,
		CourseID:      req.CourseID,
		UnitID:        req.UnitID,
		Action:        req.Action,
		Timestamp:     req.Timestamp,
		EventID:       req.EventID,
		CorrelationID: getRequestID(r.Context()),
	}

	result, err := s.deps.TrackActivityHandler.Handle(r.Context(), cmd)
	if err != nil {
		s.writeDomainError(w, r, err, "failed to track activity")
		return
	}

	writeJSON(w, http.StatusOK, trackActivityResponse{
		Message:       "Activity tracked",
		EventID:       result.EventID.String(),
		Duplicate:     result.Duplicate,
		Progress:      result.Progress,
		UnitCompleted: result.UnitCompleted,
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// READ-SIDE HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleGetProgress handles GET /api/analytics/progress/{userId}/{courseId}
func (s *Server) handleGetProgress(w http.ResponseWriter, r *http.Request) {
	if s.deps.GetProgressHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Progress handler not configured")
		return
	}

	userID := r.PathValue("userId")
	courseID, ok := parseCourseID(w, r)
	if !ok {
		return
	}

	view, err := s.deps.GetProgressHandler.Handle(r.Context(), query.GetProgressQuery{
		UserID:   userID,
		CourseID: courseID,
	})
	if err != nil {
		s.writeDomainError(w, r, err, "failed to get progress")
		return
	}

	writeJSON(w, http.StatusOK, view)
}

// handleGetCourseAnalytics handles GET /api/analytics/course/{courseId}
func (s *Server) handleGetCourseAnalytics(w http.ResponseWriter, r *http.Request) {
	if s.deps.GetCourseAnalyticsHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Analytics handler not configured")
		return
	}

	courseID, ok := parseCourseID(w, r)
	if !ok {
		return
	}

	view, err := s.deps.GetCourseAnalyticsHandler.Handle(r.Context(), query.GetCourseAnalyticsQuery{
		CourseID: courseID,
	})
	if err != nil {
		s.writeDomainError(w, r, err, "failed to get course analytics")
		return
	}

	writeJSON(w, http.StatusOK, view)
}

// ══════════════════════════════════════════════════════════════════════════════
// ADMINISTRATIVE HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleRebuildCourse handles POST /api/analytics/course/{courseId}/rebuild
func (s *Server) handleRebuildCourse(w http.ResponseWriter, r *http.Request) {
	if s.deps.RebuildCourseHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Rebuild handler not configured")
		return
	}

	courseID, ok := parseCourseID(w, r)
	if !ok {
		return
	}

	result, err := s.deps.RebuildCourseHandler.Handle(r.Context(), command.RebuildCourseCommand{
		CourseID: courseID,
		Reason:   getQueryParam(r, "reason", "manual"),
	})
	if err != nil {
		s.writeDomainError(w, r, err, "failed to rebuild course")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// ══════════════════════════════════════════════════════════════════════════════
// ERROR MAPPING
// ══════════════════════════════════════════════════════════════════════════════

// writeDomainError maps domain errors onto HTTP statuses. Validation failures
// (unknown courses included) are client errors; durability failures tell the
// client to retry with the same eventId.
func (s *Server) writeDomainError(w http.ResponseWriter, r *http.Request, err error, logMsg string) {
	switch {
	case shared.IsValidation(err):
		writeJSONErrorWithDetails(w, http.StatusBadRequest, "validation_error", "Invalid request", domainMessage(err))
	case shared.IsNotFound(err):
		writeJSONError(w, http.StatusNotFound, "not_found", domainMessage(err))
	case errors.Is(err, shared.ErrRebuildInProgress):
		writeJSONError(w, http.StatusConflict, "rebuild_in_progress", domainMessage(err))
	case shared.IsStorageFailure(err):
		s.logger.Error(logMsg, logger.Err(err), logger.String("request_id", getRequestID(r.Context())))
		writeJSONError(w, http.StatusInternalServerError, "storage_failure", "Event could not be stored, retry with the same eventId")
	default:
		s.logger.Error(logMsg, logger.Err(err), logger.String("request_id", getRequestID(r.Context())))
		writeJSONError(w, http.StatusInternalServerError, "internal_error", "An unexpected error occurred")
	}
}

// domainMessage extracts the human-readable message from a domain error.
func domainMessage(err error) string {
	var derr *shared.DomainError
	if errors.As(err, &derr) {
		return derr.Message
	}
	return err.Error()
}

// parseCourseID reads the courseId path segment. Writes a 400 and returns
// false when it is not a number.
func parseCourseID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := r.PathValue("courseId")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "courseId must be a number")
		return 0, false
	}
	return id, true
}
