package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingJob struct {
	name string
	runs atomic.Int64
	err  error
}

func (j *countingJob) Name() string                  { return j.name }
func (j *countingJob) Description() string           { return "counts runs" }
func (j *countingJob) Run(ctx context.Context) error { j.runs.Add(1); return j.err }

func TestRegisterRejectsDuplicates(t *testing.T) {
	s := NewScheduler(DefaultSchedulerConfig())
	job := &countingJob{name: "audit"}

	require.NoError(t, s.Register(job, NewIntervalSchedule(time.Hour)))
	err := s.Register(job, NewIntervalSchedule(time.Hour))
	assert.ErrorIs(t, err, ErrJobAlreadyExists)
}

func TestRunNow(t *testing.T) {
	s := NewScheduler(DefaultSchedulerConfig())
	job := &countingJob{name: "audit"}
	require.NoError(t, s.Register(job, NewIntervalSchedule(time.Hour)))

	result, err := s.RunNow(context.Background(), "audit")
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, int64(1), job.runs.Load())

	_, err = s.RunNow(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestSchedulerLifecycle(t *testing.T) {
	s := NewScheduler(DefaultSchedulerConfig())
	require.NoError(t, s.Register(&countingJob{name: "audit"}, NewIntervalSchedule(time.Hour)))

	require.NoError(t, s.Start(context.Background()))
	assert.True(t, s.IsRunning())
	assert.ErrorIs(t, s.Start(context.Background()), ErrSchedulerAlreadyRunning)

	require.NoError(t, s.Stop())
	assert.False(t, s.IsRunning())
	assert.ErrorIs(t, s.Stop(), ErrSchedulerNotRunning)
}

func TestIntervalSchedule(t *testing.T) {
	sched := NewIntervalSchedule(15 * time.Minute)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, now.Add(15*time.Minute), sched.Next(now))
	assert.Equal(t, "@every 15m0s", sched.String())
}

func TestParseCronExpression(t *testing.T) {
	tests := []struct {
		expr    string
		from    time.Time
		want    time.Time
		wantErr bool
	}{
		{
			expr: "0 3 * * *",
			from: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
			want: time.Date(2026, 3, 2, 3, 0, 0, 0, time.UTC),
		},
		{
			expr: "*/15 * * * *",
			from: time.Date(2026, 3, 1, 12, 7, 0, 0, time.UTC),
			want: time.Date(2026, 3, 1, 12, 15, 0, 0, time.UTC),
		},
		{
			expr: "0 0 * * 0",
			from: time.Date(2026, 3, 2, 1, 0, 0, 0, time.UTC), // Monday
			want: time.Date(2026, 3, 8, 0, 0, 0, 0, time.UTC), // next Sunday
		},
		{expr: "not a cron", wantErr: true},
		{expr: "61 * * * *", wantErr: true},
	}

	for _, tt := range tests {
		ce, err := ParseCronExpression(tt.expr)
		if tt.wantErr {
			assert.Error(t, err, tt.expr)
			continue
		}
		require.NoError(t, err, tt.expr)
		assert.Equal(t, tt.want, ce.Next(tt.from), tt.expr)
		assert.Equal(t, tt.expr, ce.String())
	}
}
