package course

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewSnapshotIsZero(t *testing.T) {
	s := NewSnapshot(7, time.Now())

	assert.Equal(t, int64(0), s.TotalUsers)
	assert.Equal(t, int64(0), s.TotalActivities)
	assert.Equal(t, float64(0), s.AverageProgress())
}

func TestRecordActivityCountsUsersOnce(t *testing.T) {
	now := time.Now().UTC()
	s := NewSnapshot(7, now)

	s.RecordActivity(true, 0, now, now)
	s.RecordActivity(false, 0.25, now, now)
	s.RecordActivity(false, 0.25, now, now)

	assert.Equal(t, int64(1), s.TotalUsers)
	assert.Equal(t, int64(3), s.TotalActivities)
	assert.InDelta(t, 0.5, s.AverageProgress(), 1e-9)
}

func TestAverageProgressTwoFullyCompleteUsers(t *testing.T) {
	// Two learners each complete all 4 units of course 7.
	now := time.Now().UTC()
	s := NewSnapshot(7, now)

	for user := 0; user < 2; user++ {
		s.RecordActivity(true, 0, now, now)
		for i := 0; i < 4; i++ {
			s.RecordActivity(false, 0.25, now, now)
		}
	}

	assert.Equal(t, int64(2), s.TotalUsers)
	assert.Equal(t, int64(10), s.TotalActivities)
	assert.InDelta(t, 1.0, s.AverageProgress(), 1e-9)
}

func TestAverageProgressClamped(t *testing.T) {
	now := time.Now().UTC()
	s := NewSnapshot(7, now)
	s.TotalUsers = 1
	s.ProgressSum = 1.0000000001 // float drift from many increments

	assert.Equal(t, 1.0, s.AverageProgress())
}

func TestRecordActivityTracksLatestEvent(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := NewSnapshot(7, base)

	s.RecordActivity(true, 0, base.Add(time.Hour), base)
	s.RecordActivity(false, 0, base, base)

	assert.Equal(t, base.Add(time.Hour), s.LastEventAt)
}
