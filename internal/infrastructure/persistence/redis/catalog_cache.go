package redis

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/lmshub/lms-analytics/internal/domain/course"
	"github.com/lmshub/lms-analytics/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// CACHED CATALOG
// ══════════════════════════════════════════════════════════════════════════════

// catalogEntry is the cached form of a catalog answer. Missing courses are
// cached too (Exists=false) so ingestion of events for a bogus course does
// not hammer the catalog.
type catalogEntry struct {
	Exists    bool   `json:"exists"`
	Title     string `json:"title,omitempty"`
	UnitCount int    `json:"unit_count,omitempty"`
}

// CachedCatalog is a read-through cache in front of a course.Catalog.
// Cache failures fall through to the source.
type CachedCatalog struct {
	source course.Catalog
	cache  *Cache
	logger *slog.Logger
}

// NewCachedCatalog creates a CachedCatalog.
func NewCachedCatalog(source course.Catalog, cache *Cache, logger *slog.Logger) *CachedCatalog {
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedCatalog{source: source, cache: cache, logger: logger}
}

// CourseExists implements course.Catalog.
func (c *CachedCatalog) CourseExists(ctx context.Context, courseID shared.CourseID) (bool, error) {
	if entry, ok := c.lookup(ctx, courseID); ok {
		return entry.Exists, nil
	}

	exists, err := c.source.CourseExists(ctx, courseID)
	if err != nil {
		return false, err
	}
	if !exists {
		c.store(ctx, courseID, catalogEntry{Exists: false}, TTLCatalogNegative)
	}
	// Positive existence is cached with full course data on GetCourse.
	return exists, nil
}

// GetCourse implements course.Catalog.
func (c *CachedCatalog) GetCourse(ctx context.Context, courseID shared.CourseID) (*course.Info, error) {
	if entry, ok := c.lookup(ctx, courseID); ok {
		if !entry.Exists {
			return nil, shared.ErrCourseNotFound
		}
		return &course.Info{ID: courseID, Title: entry.Title, UnitCount: entry.UnitCount}, nil
	}

	info, err := c.source.GetCourse(ctx, courseID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			c.store(ctx, courseID, catalogEntry{Exists: false}, TTLCatalogNegative)
		}
		return nil, err
	}

	c.store(ctx, courseID, catalogEntry{
		Exists:    true,
		Title:     info.Title,
		UnitCount: info.UnitCount,
	}, TTLCatalogEntry)
	return info, nil
}

// GetUnitCount implements course.Catalog.
func (c *CachedCatalog) GetUnitCount(ctx context.Context, courseID shared.CourseID) (int, error) {
	info, err := c.GetCourse(ctx, courseID)
	if err != nil {
		return 0, err
	}
	return info.UnitCount, nil
}

func (c *CachedCatalog) lookup(ctx context.Context, courseID shared.CourseID) (catalogEntry, bool) {
	var entry catalogEntry
	err := c.cache.Get(ctx, CatalogKey(courseID.Int64()), &entry)
	if err != nil {
		if !errors.Is(err, ErrCacheMiss) {
			c.logger.Warn("catalog cache read failed", "course_id", courseID, "error", err)
		}
		return catalogEntry{}, false
	}
	return entry, true
}

func (c *CachedCatalog) store(ctx context.Context, courseID shared.CourseID, entry catalogEntry, ttl time.Duration) {
	if err := c.cache.Set(ctx, CatalogKey(courseID.Int64()), entry, ttl); err != nil {
		c.logger.Warn("catalog cache write failed", "course_id", courseID, "error", err)
	}
}

var _ course.Catalog = (*CachedCatalog)(nil)
