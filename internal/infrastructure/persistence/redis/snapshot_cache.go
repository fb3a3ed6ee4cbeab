package redis

import (
	"context"
	"errors"
	"log/slog"

	"github.com/lmshub/lms-analytics/internal/application/query"
	"github.com/lmshub/lms-analytics/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// SNAPSHOT CACHE
// ══════════════════════════════════════════════════════════════════════════════

// SnapshotCache caches rendered course analytics views. Cache failures are
// logged and treated as misses; the snapshot store stays the source of truth.
type SnapshotCache struct {
	cache  *Cache
	logger *slog.Logger
}

// NewSnapshotCache creates a SnapshotCache.
func NewSnapshotCache(cache *Cache, logger *slog.Logger) *SnapshotCache {
	if logger == nil {
		logger = slog.Default()
	}
	return &SnapshotCache{cache: cache, logger: logger}
}

// Get implements query.SnapshotCache.
func (s *SnapshotCache) Get(ctx context.Context, courseID shared.CourseID) (*query.CourseAnalyticsView, bool) {
	var view query.CourseAnalyticsView
	err := s.cache.Get(ctx, SnapshotKey(courseID.Int64()), &view)
	if err != nil {
		if !errors.Is(err, ErrCacheMiss) {
			s.logger.Warn("snapshot cache read failed", "course_id", courseID, "error", err)
		}
		return nil, false
	}
	return &view, true
}

// Set implements query.SnapshotCache.
func (s *SnapshotCache) Set(ctx context.Context, courseID shared.CourseID, view *query.CourseAnalyticsView) {
	if err := s.cache.Set(ctx, SnapshotKey(courseID.Int64()), view, TTLSnapshotView); err != nil {
		s.logger.Warn("snapshot cache write failed", "course_id", courseID, "error", err)
	}
}

// Invalidate implements query.SnapshotCache.
func (s *SnapshotCache) Invalidate(ctx context.Context, courseID shared.CourseID) {
	if err := s.cache.Delete(ctx, SnapshotKey(courseID.Int64())); err != nil {
		s.logger.Warn("snapshot cache invalidation failed", "course_id", courseID, "error", err)
	}
}

var _ query.SnapshotCache = (*SnapshotCache)(nil)
