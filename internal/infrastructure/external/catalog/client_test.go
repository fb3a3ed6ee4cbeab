package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lmshub/lms-analytics/internal/domain/shared"
)

func TestGetCourse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/courses/42", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(CourseDTO{
			ID:        42,
			Title:     "Go Fundamentals",
			UnitCount: 4,
			Units: []UnitDTO{
				{ID: "unit-1", Title: "Basics"},
				{ID: "unit-2", Title: "Structs"},
				{ID: "unit-3", Title: "Interfaces"},
				{ID: "unit-4", Title: "Concurrency"},
			},
		})
	}))
	defer srv.Close()

	cfg := DefaultClientConfig(srv.URL)
	cfg.APIKey = "test-key"
	client := NewClient(cfg)

	course, err := client.GetCourse(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, int64(42), course.ID)
	assert.Equal(t, "Go Fundamentals", course.Title)
	assert.Equal(t, 4, course.UnitCount)
	assert.Len(t, course.Units, 4)
}

func TestGetCourseNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"code":"NOT_FOUND","message":"no such course"}`, http.StatusNotFound)
	}))
	defer srv.Close()

	client := NewClient(DefaultClientConfig(srv.URL))

	_, err := client.GetCourse(context.Background(), 999)
	require.Error(t, err)
	assert.True(t, errors.Is(err, shared.ErrCourseNotFound))
	assert.True(t, shared.IsNotFound(err))
	assert.False(t, shared.IsRetryable(err))
}

func TestGetCourseServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewClient(DefaultClientConfig(srv.URL))

	_, err := client.GetCourse(context.Background(), 42)
	require.Error(t, err)
	assert.True(t, errors.Is(err, shared.ErrCatalogUnavailable))
	assert.True(t, shared.IsRetryable(err))
}

func TestGetCourseThrottled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "slow down", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client := NewClient(DefaultClientConfig(srv.URL))

	_, err := client.GetCourse(context.Background(), 42)
	require.Error(t, err)
	assert.True(t, errors.Is(err, shared.ErrRateLimited))
	assert.True(t, shared.IsRetryable(err))
}

func TestGetCourseMalformedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json at all"))
	}))
	defer srv.Close()

	client := NewClient(DefaultClientConfig(srv.URL))

	_, err := client.GetCourse(context.Background(), 42)
	require.Error(t, err)
	assert.True(t, errors.Is(err, shared.ErrCatalogBadResponse))
	assert.False(t, shared.IsRetryable(err))
}

func TestGetCourseConnectionRefused(t *testing.T) {
	// A server that is immediately closed leaves a port nothing listens on.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	client := NewClient(DefaultClientConfig(srv.URL))

	_, err := client.GetCourse(context.Background(), 42)
	require.Error(t, err)
	assert.True(t, errors.Is(err, shared.ErrCatalogUnavailable))
}

func TestGetCourseUnits(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/courses/7/units", r.URL.Path)
		json.NewEncoder(w).Encode([]UnitDTO{
			{ID: "intro", Title: "Introduction"},
			{ID: "final", Title: "Final Project"},
		})
	}))
	defer srv.Close()

	client := NewClient(DefaultClientConfig(srv.URL))

	units, err := client.GetCourseUnits(context.Background(), 7)
	require.NoError(t, err)
	require.Len(t, units, 2)
	assert.Equal(t, "intro", units[0].ID)
	assert.Equal(t, "Final Project", units[1].Title)
}

func TestIsHealthy(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	client := NewClient(DefaultClientConfig(srv.URL))
	assert.True(t, client.IsHealthy(context.Background()))

	srv.Close()
	assert.False(t, client.IsHealthy(context.Background()))
}

func TestAPIErrorDTO(t *testing.T) {
	raw := `{"code":"FORBIDDEN","message":"api key lacks catalog scope"}`

	var apiErr APIErrorDTO
	require.NoError(t, json.Unmarshal([]byte(raw), &apiErr))
	assert.Equal(t, "FORBIDDEN", apiErr.Code)
	assert.Equal(t, "FORBIDDEN: api key lacks catalog scope", apiErr.Error())
}
