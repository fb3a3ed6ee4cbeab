package scheduler

import (
	"fmt"
	"time"
)

// minInterval keeps a misconfigured schedule from turning into a busy loop
// on the scheduler's tick.
const minInterval = time.Second

// IntervalSchedule runs a job at a fixed cadence, measured from the end of
// the previous run. The consistency audit uses it when no cron expression
// is configured.
type IntervalSchedule struct {
	Interval time.Duration
}

// NewIntervalSchedule creates an IntervalSchedule. Intervals below one
// second are clamped up.
func NewIntervalSchedule(interval time.Duration) *IntervalSchedule {
	if interval < minInterval {
		interval = minInterval
	}
	return &IntervalSchedule{Interval: interval}
}

// Next implements Schedule.
func (s *IntervalSchedule) Next(t time.Time) time.Time {
	return t.Add(s.Interval)
}

// String describes the schedule for job listings and logs.
func (s *IntervalSchedule) String() string {
	return fmt.Sprintf("@every %s", s.Interval.String())
}
