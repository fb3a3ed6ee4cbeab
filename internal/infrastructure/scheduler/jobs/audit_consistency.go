// Package jobs contains implementations of scheduled jobs.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/lmshub/lms-analytics/internal/application/aggregator"
	"github.com/lmshub/lms-analytics/internal/domain/course"
	"github.com/lmshub/lms-analytics/internal/domain/event"
	"github.com/lmshub/lms-analytics/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// AUDIT CONSISTENCY JOB
// ══════════════════════════════════════════════════════════════════════════════

// AuditConsistencyJob walks every course snapshot and verifies it against a
// recomputation from the event log. Drifted snapshots are replaced with the
// recomputed values, so the incremental pipeline self-heals without manual
// intervention. The event log stays untouched.
type AuditConsistencyJob struct {
	snapshots course.SnapshotRepository
	courses   *aggregator.CourseAggregator
	log       event.Log
	logger    *slog.Logger

	config AuditConsistencyConfig

	lastAuditStats atomic.Value // *AuditStats
}

// AuditConsistencyConfig contains configuration for the audit job.
type AuditConsistencyConfig struct {
	// MaxCourses caps how many courses a single run inspects (0 = all).
	MaxCourses int

	// Timeout is the maximum duration for one audit run.
	Timeout time.Duration
}

// DefaultAuditConsistencyConfig returns sensible defaults.
func DefaultAuditConsistencyConfig() AuditConsistencyConfig {
	return AuditConsistencyConfig{
		MaxCourses: 0,
		Timeout:    5 * time.Minute,
	}
}

// AuditStats contains statistics from an audit run.
type AuditStats struct {
	RunID          string
	StartedAt      time.Time
	CompletedAt    time.Time
	Duration       time.Duration
	CoursesAudited int
	DriftsDetected int
	DriftedCourses []shared.CourseID
	Errors         []error
}

// NewAuditConsistencyJob creates a new consistency audit job.
func NewAuditConsistencyJob(
	snapshots course.SnapshotRepository,
	courses *aggregator.CourseAggregator,
	log event.Log,
	logger *slog.Logger,
	config AuditConsistencyConfig,
) *AuditConsistencyJob {
	if logger == nil {
		logger = slog.Default()
	}

	return &AuditConsistencyJob{
		snapshots: snapshots,
		courses:   courses,
		log:       log,
		logger:    logger,
		config:    config,
	}
}

// Name returns the job name.
func (j *AuditConsistencyJob) Name() string {
	return "audit_consistency"
}

// Description returns a human-readable description.
func (j *AuditConsistencyJob) Description() string {
	return "Verifies course snapshots against the event log and repairs drift"
}

// Run executes the audit job.
func (j *AuditConsistencyJob) Run(ctx context.Context) error {
	startedAt := time.Now()
	stats := &AuditStats{
		RunID:     uuid.New().String(),
		StartedAt: startedAt,
	}

	j.logger.Info("starting audit_consistency job", "run_id", stats.RunID)

	if j.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.config.Timeout)
		defer cancel()
	}

	courseIDs, err := j.snapshots.ListCourseIDs(ctx)
	if err != nil {
		return fmt.Errorf("list courses for audit: %w", err)
	}

	if j.config.MaxCourses > 0 && len(courseIDs) > j.config.MaxCourses {
		courseIDs = courseIDs[:j.config.MaxCourses]
	}

	for _, courseID := range courseIDs {
		if err := ctx.Err(); err != nil {
			stats.Errors = append(stats.Errors, err)
			break
		}

		stats.CoursesAudited++

		err := j.courses.Audit(ctx, j.log, courseID)
		if err == nil {
			continue
		}

		if shared.IsInconsistent(err) {
			stats.DriftsDetected++
			stats.DriftedCourses = append(stats.DriftedCourses, courseID)
			j.logger.Warn("snapshot drift repaired",
				"run_id", stats.RunID,
				"course_id", courseID.Int64(),
			)
			continue
		}

		stats.Errors = append(stats.Errors, err)
		j.logger.Error("audit failed for course",
			"run_id", stats.RunID,
			"course_id", courseID.Int64(),
			"error", err,
		)
	}

	stats.CompletedAt = time.Now()
	stats.Duration = stats.CompletedAt.Sub(startedAt)
	j.lastAuditStats.Store(stats)

	j.logger.Info("audit_consistency job completed",
		"run_id", stats.RunID,
		"duration", stats.Duration.String(),
		"courses_audited", stats.CoursesAudited,
		"drifts_detected", stats.DriftsDetected,
	)

	if len(stats.Errors) > 0 {
		return fmt.Errorf("audit completed with %d errors", len(stats.Errors))
	}

	return nil
}

// LastAuditStats returns statistics from the last audit run.
func (j *AuditConsistencyJob) LastAuditStats() *AuditStats {
	stats := j.lastAuditStats.Load()
	if stats == nil {
		return nil
	}
	return stats.(*AuditStats)
}
