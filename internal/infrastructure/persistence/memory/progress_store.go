package memory

import (
	"context"
	"sync"

	"github.com/lmshub/lms-analytics/internal/domain/progress"
	"github.com/lmshub/lms-analytics/internal/domain/shared"
)

// ProgressStore keeps progress records in a map. Records are deep-copied on
// the way in and out so callers never share mutable state with the store.
type ProgressStore struct {
	mu      sync.RWMutex
	records map[shared.ProgressKey]*progress.Record
}

// NewProgressStore creates an empty store.
func NewProgressStore() *ProgressStore {
	return &ProgressStore{
		records: make(map[shared.ProgressKey]*progress.Record),
	}
}

// Get implements progress.Repository.
func (s *ProgressStore) Get(ctx context.Context, key shared.ProgressKey) (*progress.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[key]
	if !ok {
		return nil, shared.ErrProgressNotFound
	}
	return rec.Clone(), nil
}

// Save implements progress.Repository.
func (s *ProgressStore) Save(ctx context.Context, record *progress.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[record.Key()] = record.Clone()
	return nil
}

// ListByCourse implements progress.Repository.
func (s *ProgressStore) ListByCourse(ctx context.Context, courseID shared.CourseID) ([]*progress.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*progress.Record
	for key, rec := range s.records {
		if key.CourseID == courseID {
			out = append(out, rec.Clone())
		}
	}
	return out, nil
}

// Delete implements progress.Repository.
func (s *ProgressStore) Delete(ctx context.Context, key shared.ProgressKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, key)
	return nil
}
