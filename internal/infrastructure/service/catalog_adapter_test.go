package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lmshub/lms-analytics/internal/domain/shared"
	"github.com/lmshub/lms-analytics/internal/infrastructure/external/catalog"
)

func newAdapter(t *testing.T, handler http.HandlerFunc) *CatalogAdapter {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewCatalogAdapter(catalog.NewClient(catalog.DefaultClientConfig(srv.URL)), nil)
}

func TestCatalogAdapterGetCourse(t *testing.T) {
	adapter := newAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(catalog.CourseDTO{ID: 42, Title: "Go Fundamentals", UnitCount: 4})
	})

	info, err := adapter.GetCourse(context.Background(), shared.CourseID(42))
	require.NoError(t, err)
	assert.Equal(t, shared.CourseID(42), info.ID)
	assert.Equal(t, 4, info.UnitCount)

	count, err := adapter.GetUnitCount(context.Background(), shared.CourseID(42))
	require.NoError(t, err)
	assert.Equal(t, 4, count)
}

func TestCatalogAdapterUnitCountFallsBackToUnitList(t *testing.T) {
	adapter := newAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(catalog.CourseDTO{
			ID:    7,
			Title: "Databases",
			Units: []catalog.UnitDTO{{ID: "a"}, {ID: "b"}, {ID: "c"}},
		})
	})

	count, err := adapter.GetUnitCount(context.Background(), shared.CourseID(7))
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestCatalogAdapterCourseExists(t *testing.T) {
	adapter := newAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/courses/42" {
			json.NewEncoder(w).Encode(catalog.CourseDTO{ID: 42, UnitCount: 4})
			return
		}
		w.WriteHeader(http.StatusNotFound)
	})

	exists, err := adapter.CourseExists(context.Background(), shared.CourseID(42))
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = adapter.CourseExists(context.Background(), shared.CourseID(999))
	require.NoError(t, err)
	assert.False(t, exists)

	// Not-found answers are definitive and leave the breaker closed.
	assert.True(t, adapter.breaker.IsClosed())
}

func TestCatalogAdapterRetriesTransientFailure(t *testing.T) {
	var calls atomic.Int64
	adapter := newAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(catalog.CourseDTO{ID: 42, UnitCount: 4})
	})

	info, err := adapter.GetCourse(context.Background(), shared.CourseID(42))
	require.NoError(t, err)
	assert.Equal(t, shared.CourseID(42), info.ID)
	assert.Equal(t, int64(2), calls.Load())
	assert.True(t, adapter.breaker.IsClosed())
}
