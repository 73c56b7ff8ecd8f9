package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/dqpipe/backend/pkg/logger"
)

// RunPruner deletes run audit rows older than cutoff
type RunPruner interface {
	PruneRuns(ctx context.Context, cutoff time.Time) (int64, error)
}

// RetentionJob prunes old pipeline_runs rows
type RetentionJob struct {
	pruner   RunPruner
	schedule string
	days     int
	now      func() time.Time
	logger   *logger.Logger
}

// NewRetentionJob creates a new retention job keeping the last days of runs
func NewRetentionJob(pruner RunPruner, schedule string, days int, log *logger.Logger) *RetentionJob {
	return &RetentionJob{
		pruner:   pruner,
		schedule: schedule,
		days:     days,
		now:      time.Now,
		logger:   log,
	}
}

// Name returns the job name
func (j *RetentionJob) Name() string {
	return "retention"
}

// Schedule returns the cron schedule (default Sunday 03:00 UTC)
func (j *RetentionJob) Schedule() string {
	return j.schedule
}

// Run executes the cleanup
func (j *RetentionJob) Run(ctx context.Context) error {
	if j.days <= 0 {
		j.logger.Debug("Retention disabled")
		return nil
	}

	cutoff := j.now().UTC().AddDate(0, 0, -j.days)
	removed, err := j.pruner.PruneRuns(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("prune runs: %w", err)
	}

	if removed > 0 {
		j.logger.WithFields(map[string]interface{}{
			"removed": removed,
			"cutoff":  cutoff.Format(time.RFC3339),
		}).Info("Retention cleanup completed")
	}

	return nil
}
