package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lmshub/lms-analytics/internal/application/aggregator"
	"github.com/lmshub/lms-analytics/internal/application/command"
	"github.com/lmshub/lms-analytics/internal/application/query"
	"github.com/lmshub/lms-analytics/internal/domain/course"
	"github.com/lmshub/lms-analytics/internal/domain/event"
	"github.com/lmshub/lms-analytics/internal/infrastructure/persistence/memory"
	"github.com/lmshub/lms-analytics/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// TEST FIXTURE
// ══════════════════════════════════════════════════════════════════════════════

// newTestServer wires the full pipeline against in-memory stores.
func newTestServer(t *testing.T, mutate func(*Config)) *Server {
	t.Helper()

	catalog := memory.NewStaticCatalog(
		course.Info{ID: 42, Title: "Algorithms", UnitCount: 4},
		course.Info{ID: 99, Title: "Databases", UnitCount: 10},
	)
	eventLog := memory.NewEventLog()
	records := memory.NewProgressStore()
	snapshots := memory.NewSnapshotStore()
	clock := timeutil.SystemClock{}

	progressAgg := aggregator.NewProgressAggregator(records, catalog, nil, clock)
	courseAgg := aggregator.NewCourseAggregator(snapshots, records, nil, clock)
	validator := event.NewValidator(catalog, 0, clock)

	config := DefaultConfig()
	config.RateLimitPerMinute = 0
	if mutate != nil {
		mutate(&config)
	}

	return NewServer(config, Dependencies{
		TrackActivityHandler:      command.NewTrackActivityHandler(validator, eventLog, progressAgg, courseAgg, nil),
		RebuildCourseHandler:      command.NewRebuildCourseHandler(eventLog, progressAgg, courseAgg),
		GetProgressHandler:        query.NewGetProgressHandler(progressAgg),
		GetCourseAnalyticsHandler: query.NewGetCourseAnalyticsHandler(courseAgg, nil),
	})
}

// do executes a request against the assembled handler and decodes the envelope.
func do(t *testing.T, s *Server, method, path, body string, headers map[string]string) (*httptest.ResponseRecorder, JSONResponse) {
	t.Helper()

	var reader *bytes.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	var envelope JSONResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	return rec, envelope
}

func trackBody(userID string, courseID int64, unitID, action, eventID string) string {
	payload := map[string]interface{}{
		"userId":    userID,
		"courseId":  courseID,
		"unitId":    unitID,
		"action":    action,
		"timestamp": timeutil.FormatTimestamp(time.Now()),
	}
	if eventID != "" {
		payload["eventId"] = eventID
	}
	b, _ := json.Marshal(payload)
	return string(b)
}

func decodeData(t *testing.T, envelope JSONResponse, out interface{}) {
	t.Helper()
	raw, err := json.Marshal(envelope.Data)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, out))
}

// ══════════════════════════════════════════════════════════════════════════════
// TRACKING
// ══════════════════════════════════════════════════════════════════════════════

func TestTrackActivity_Success(t *testing.T) {
	s := newTestServer(t, nil)

	rec, envelope := do(t, s, http.MethodPost, "/api/analytics/track",
		trackBody("user-1", 42, "unit-1", "COMPLETE", ""), nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, envelope.Success)

	var resp trackActivityResponse
	decodeData(t, envelope, &resp)
	assert.NotEmpty(t, resp.EventID)
	assert.False(t, resp.Duplicate)
	assert.InDelta(t, 0.25, resp.Progress, 1e-9)
	assert.True(t, resp.UnitCompleted)
}

func TestTrackActivity_DuplicateEventID(t *testing.T) {
	s := newTestServer(t, nil)
	body := trackBody("user-1", 42, "unit-1", "COMPLETE", "11111111-2222-3333-4444-555555555555")

	rec, _ := do(t, s, http.MethodPost, "/api/analytics/track", body, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, envelope := do(t, s, http.MethodPost, "/api/analytics/track", body, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, envelope.Success)

	var resp trackActivityResponse
	decodeData(t, envelope, &resp)
	assert.True(t, resp.Duplicate)
	assert.InDelta(t, 0.25, resp.Progress, 1e-9)
}

func TestTrackActivity_UnknownCourse(t *testing.T) {
	s := newTestServer(t, nil)

	rec, envelope := do(t, s, http.MethodPost, "/api/analytics/track",
		trackBody("user-1", 777, "unit-1", "VIEW", ""), nil)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.NotNil(t, envelope.Error)
	assert.Equal(t, "validation_error", envelope.Error.Code)
}

func TestTrackActivity_InvalidPayload(t *testing.T) {
	s := newTestServer(t, nil)

	rec, envelope := do(t, s, http.MethodPost, "/api/analytics/track", "{not json", nil)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.NotNil(t, envelope.Error)
	assert.Equal(t, "invalid_request", envelope.Error.Code)
}

func TestTrackActivity_UnknownAction(t *testing.T) {
	s := newTestServer(t, nil)

	rec, envelope := do(t, s, http.MethodPost, "/api/analytics/track",
		trackBody("user-1", 42, "unit-1", "DANCE", ""), nil)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.NotNil(t, envelope.Error)
	assert.Equal(t, "validation_error", envelope.Error.Code)
}

func TestTrackActivity_UnitlessViewAdmitted(t *testing.T) {
	s := newTestServer(t, nil)

	body := fmt.Sprintf(`{"userId":"user-1","courseId":42,"action":"VIEW","timestamp":%q}`,
		timeutil.FormatTimestamp(time.Now()))
	rec, envelope := do(t, s, http.MethodPost, "/api/analytics/track", body, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, envelope.Success)

	var resp trackActivityResponse
	decodeData(t, envelope, &resp)
	assert.False(t, resp.Duplicate)
	assert.False(t, resp.UnitCompleted)
	assert.InDelta(t, 0.0, resp.Progress, 1e-9)
}

func TestTrackActivity_UnitlessCompletionRejected(t *testing.T) {
	s := newTestServer(t, nil)

	body := fmt.Sprintf(`{"userId":"user-1","courseId":42,"action":"COMPLETE","timestamp":%q}`,
		timeutil.FormatTimestamp(time.Now()))
	rec, envelope := do(t, s, http.MethodPost, "/api/analytics/track", body, nil)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.NotNil(t, envelope.Error)
	assert.Equal(t, "validation_error", envelope.Error.Code)
}

// ══════════════════════════════════════════════════════════════════════════════
// READ SIDE
// ══════════════════════════════════════════════════════════════════════════════

func TestGetProgress_RoundTrip(t *testing.T) {
	s := newTestServer(t, nil)

	for _, unit := range []string{"unit-1", "unit-2"} {
		rec, _ := do(t, s, http.MethodPost, "/api/analytics/track",
			trackBody("user-1", 42, unit, "COMPLETE", ""), nil)
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec, envelope := do(t, s, http.MethodGet, "/api/analytics/progress/user-1/42", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var view query.ProgressView
	decodeData(t, envelope, &view)
	assert.Equal(t, "user-1", view.UserID)
	assert.Equal(t, int64(42), view.CourseID)
	assert.Equal(t, 2, view.CompletedUnits)
	assert.Equal(t, 4, view.TotalUnits)
	assert.InDelta(t, 0.5, view.Progress, 1e-9)
	assert.NotEmpty(t, view.LastActivityAt)
}

func TestGetProgress_NoActivityYieldsZeroView(t *testing.T) {
	s := newTestServer(t, nil)

	rec, envelope := do(t, s, http.MethodGet, "/api/analytics/progress/ghost/42", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var view query.ProgressView
	decodeData(t, envelope, &view)
	assert.Zero(t, view.Progress)
	assert.Zero(t, view.CompletedUnits)
}

func TestGetCourseAnalytics_RoundTrip(t *testing.T) {
	s := newTestServer(t, nil)

	rec, _ := do(t, s, http.MethodPost, "/api/analytics/track",
		trackBody("user-1", 42, "unit-1", "COMPLETE", ""), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec, _ = do(t, s, http.MethodPost, "/api/analytics/track",
		trackBody("user-2", 42, "unit-1", "VIEW", ""), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, envelope := do(t, s, http.MethodGet, "/api/analytics/course/42", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var view query.CourseAnalyticsView
	decodeData(t, envelope, &view)
	assert.Equal(t, int64(42), view.CourseID)
	assert.Equal(t, int64(2), view.TotalUsers)
	assert.Equal(t, int64(2), view.TotalActivities)
	assert.InDelta(t, 0.125, view.AverageProgress, 1e-9)
}

func TestGetCourseAnalytics_BadCourseID(t *testing.T) {
	s := newTestServer(t, nil)

	rec, envelope := do(t, s, http.MethodGet, "/api/analytics/course/abc", "", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.NotNil(t, envelope.Error)
	assert.Equal(t, "invalid_request", envelope.Error.Code)
}

// ══════════════════════════════════════════════════════════════════════════════
// ADMINISTRATIVE
// ══════════════════════════════════════════════════════════════════════════════

func TestRebuildCourse_RequiresAPIKey(t *testing.T) {
	s := newTestServer(t, func(c *Config) {
		c.APIKeys = []string{"secret-key"}
	})

	req := httptest.NewRequest(http.MethodPost, "/api/analytics/course/42/rebuild", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "missing_api_key")

	req = httptest.NewRequest(http.MethodPost, "/api/analytics/course/42/rebuild", nil)
	req.Header.Set("X-API-Key", "wrong")
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid_api_key")

	_, envelope := do(t, s, http.MethodPost, "/api/analytics/course/42/rebuild?reason=audit", "",
		map[string]string{"X-API-Key": "secret-key"})
	assert.True(t, envelope.Success)
}

func TestRebuildCourse_RestoresViews(t *testing.T) {
	s := newTestServer(t, nil)

	rec, _ := do(t, s, http.MethodPost, "/api/analytics/track",
		trackBody("user-1", 42, "unit-1", "COMPLETE", ""), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, envelope := do(t, s, http.MethodPost, "/api/analytics/course/42/rebuild", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, envelope.Success)

	rec, envelope = do(t, s, http.MethodGet, "/api/analytics/course/42", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var view query.CourseAnalyticsView
	decodeData(t, envelope, &view)
	assert.Equal(t, int64(1), view.TotalUsers)
	assert.InDelta(t, 0.25, view.AverageProgress, 1e-9)
}

// ══════════════════════════════════════════════════════════════════════════════
// INFRASTRUCTURE BEHAVIOR
// ══════════════════════════════════════════════════════════════════════════════

func TestHealthEndpoints(t *testing.T) {
	s := newTestServer(t, nil)

	for _, path := range []string{"/health", "/healthz", "/ready", "/live"} {
		rec, envelope := do(t, s, http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusOK, rec.Code, path)
		assert.True(t, envelope.Success, path)
	}
}

func TestRequestIDPropagation(t *testing.T) {
	s := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "req-abc-123")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, "req-abc-123", rec.Header().Get("X-Request-ID"))

	rec2 := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec2, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.NotEmpty(t, rec2.Header().Get("X-Request-ID"))
}

func TestSecurityHeaders(t *testing.T) {
	s := newTestServer(t, nil)

	rec, _ := do(t, s, http.MethodGet, "/health", "", nil)
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
}

func TestBodySizeLimit(t *testing.T) {
	s := newTestServer(t, func(c *Config) {
		c.MaxBodyBytes = 64
	})

	oversized := fmt.Sprintf(`{"userId":%q}`, strings.Repeat("x", 128))
	req := httptest.NewRequest(http.MethodPost, "/api/analytics/track", strings.NewReader(oversized))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}
