package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/dqpipe/backend/internal/contracts"
	"github.com/wonny/dqpipe/backend/internal/pipeline"
	"github.com/wonny/dqpipe/backend/pkg/logger"
)

// RangeProcessor runs the pipeline over dates (pipeline.Runner)
type RangeProcessor interface {
	ProcessRange(ctx context.Context, dates []string) ([]*pipeline.DayResult, error)
}

// PartitionDailyJob processes yesterday's partition (UTC)
// ⭐ SSOT: 일별 파티션 처리 스케줄은 이 Job에서만
type PartitionDailyJob struct {
	runner   RangeProcessor
	schedule string
	now      func() time.Time
	logger   *logger.Logger
}

// NewPartitionDailyJob creates a new daily partition job
func NewPartitionDailyJob(runner RangeProcessor, schedule string, log *logger.Logger) *PartitionDailyJob {
	return &PartitionDailyJob{
		runner:   runner,
		schedule: schedule,
		now:      time.Now,
		logger:   log,
	}
}

// Name returns the job name
func (j *PartitionDailyJob) Name() string {
	return "partition_daily"
}

// Schedule returns the cron schedule (default 01:30 UTC, with seconds)
func (j *PartitionDailyJob) Schedule() string {
	return j.schedule
}

// TargetDate returns the partition the next Run processes
func (j *PartitionDailyJob) TargetDate() string {
	return j.now().UTC().AddDate(0, 0, -1).Format(contracts.DateLayout)
}

// Run processes yesterday's partition.
// 다른 워커가 락을 잡고 있으면 skipped 로 끝나며 에러가 아님.
func (j *PartitionDailyJob) Run(ctx context.Context) error {
	date := j.TargetDate()
	j.logger.WithPartition(date).Info("Starting scheduled partition run")

	results, err := j.runner.ProcessRange(ctx, []string{date})
	if err != nil {
		return fmt.Errorf("partition %s: %w", date, err)
	}

	for _, res := range results {
		if res == nil || res.Run == nil {
			continue
		}
		fields := map[string]interface{}{
			"status": string(res.Run.Status),
			"run_id": res.Run.RunID,
		}
		if res.Alert != nil {
			fields["alert_flags"] = len(res.Alert.Flags)
		}
		j.logger.WithPartition(date).WithFields(fields).Info("Scheduled partition run finished")
	}

	return nil
}
