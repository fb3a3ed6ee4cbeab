package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/lmshub/lms-analytics/internal/domain/course"
	"github.com/lmshub/lms-analytics/internal/domain/shared"
)

// SnapshotStore keeps course snapshots in a map.
type SnapshotStore struct {
	mu        sync.RWMutex
	snapshots map[shared.CourseID]*course.Snapshot
}

// NewSnapshotStore creates an empty store.
func NewSnapshotStore() *SnapshotStore {
	return &SnapshotStore{
		snapshots: make(map[shared.CourseID]*course.Snapshot),
	}
}

// Get implements course.SnapshotRepository.
func (s *SnapshotStore) Get(ctx context.Context, courseID shared.CourseID) (*course.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap, ok := s.snapshots[courseID]
	if !ok {
		return nil, shared.ErrSnapshotNotFound
	}
	return snap.Clone(), nil
}

// Save implements course.SnapshotRepository.
func (s *SnapshotStore) Save(ctx context.Context, snapshot *course.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots[snapshot.CourseID] = snapshot.Clone()
	return nil
}

// ListCourseIDs implements course.SnapshotRepository.
func (s *SnapshotStore) ListCourseIDs(ctx context.Context) ([]shared.CourseID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]shared.CourseID, 0, len(s.snapshots))
	for id := range s.snapshots {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

// Delete implements course.SnapshotRepository.
func (s *SnapshotStore) Delete(ctx context.Context, courseID shared.CourseID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.snapshots, courseID)
	return nil
}
