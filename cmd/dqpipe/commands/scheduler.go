package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/dqpipe/backend/internal/api"
	"github.com/wonny/dqpipe/backend/internal/scheduler"
	"github.com/wonny/dqpipe/backend/internal/scheduler/jobs"
)

// schedulerCmd represents the scheduler command
var schedulerCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "스케줄러 관리",
	Long: `스케줄러를 시작하거나 작업을 관리합니다.

Subcommands:
  start   - 스케줄러 시작
  list    - 등록된 작업 목록
  run     - 특정 작업 즉시 실행 (완료까지 대기)

Example:
  go run ./cmd/dqpipe scheduler start
  go run ./cmd/dqpipe scheduler list
  go run ./cmd/dqpipe scheduler run partition_daily`,
}

var (
	schedulerStartCmd = &cobra.Command{
		Use:   "start",
		Short: "스케줄러 시작",
		Long: `스케줄러를 시작하고 등록된 모든 작업을 스케줄합니다 (UTC).

등록되는 작업:
- partition_daily: 매일 01:30 (전일 파티션 처리, SCHEDULE_DAILY)
- retention: 매주 일요일 03:00 (RETENTION_DAYS 보다 오래된 실행 이력 삭제)

METRICS_ENABLED=true 이면 METRICS_PORT 에서 /metrics 를 노출합니다.
스케줄러는 Ctrl+C로 종료할 수 있습니다.`,
		RunE: runScheduler,
	}

	schedulerListCmd = &cobra.Command{
		Use:   "list",
		Short: "등록된 작업 목록",
		RunE:  listJobs,
	}

	schedulerRunCmd = &cobra.Command{
		Use:   "run [job_name]",
		Short: "특정 작업 즉시 실행",
		Args:  cobra.ExactArgs(1),
		RunE:  runJob,
	}
)

func init() {
	rootCmd.AddCommand(schedulerCmd)
	schedulerCmd.AddCommand(schedulerStartCmd)
	schedulerCmd.AddCommand(schedulerListCmd)
	schedulerCmd.AddCommand(schedulerRunCmd)
}

func runScheduler(cmd *cobra.Command, args []string) error {
	fmt.Println("=== dqpipe Scheduler ===")

	a, sched, err := initScheduler()
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}
	defer a.close()

	// Metrics listener
	var metricsServer *api.Server
	if a.cfg.MetricsEnabled {
		router := api.NewRouter(api.Handlers{Prometheus: a.metrics.Handler()}, a.log)
		metricsServer = api.NewOnPort(a.cfg.MetricsPort, a.cfg.Env, a.log, router)
		go func() {
			if err := metricsServer.Start(); err != nil {
				a.log.WithError(err).Error("Metrics server stopped")
			}
		}()
	}

	// Start scheduler
	sched.Start()

	fmt.Println("\n✅ Scheduler started successfully")
	fmt.Println("\nRegistered jobs:")
	for _, jobName := range sched.GetAllJobs() {
		next, _ := sched.NextRun(jobName)
		fmt.Printf("  - %-16s next: %s\n", jobName, next.UTC().Format(time.RFC3339))
	}
	fmt.Println("\nPress Ctrl+C to stop")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	fmt.Println("\nShutting down scheduler...")
	sched.Stop()
	if metricsServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		metricsServer.Shutdown(ctx)
	}
	fmt.Println("Scheduler stopped")

	return nil
}

func listJobs(cmd *cobra.Command, args []string) error {
	a, sched, err := initScheduler()
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}
	defer a.close()

	fmt.Println("Registered jobs:")
	for name, stat := range sched.GetJobStats() {
		fmt.Printf("  - %-16s %s\n", name, stat.Schedule)
	}

	return nil
}

func runJob(cmd *cobra.Command, args []string) error {
	jobName := args[0]

	fmt.Printf("Running job: %s\n", jobName)

	a, sched, err := initScheduler()
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}
	defer a.close()

	result, err := sched.RunJobSync(jobName)
	if err != nil {
		return fmt.Errorf("run job: %w", err)
	}

	fmt.Printf("📊 %s\n", result.JobName)
	fmt.Printf("   Attempts: %d\n", result.Attempts)
	fmt.Printf("   Duration: %v\n", result.Duration.Round(time.Millisecond))
	if !result.Success {
		return fmt.Errorf("job %s failed: %s", jobName, result.Error)
	}
	fmt.Println("✅ Job completed")
	return nil
}

func initScheduler() (*app, *scheduler.Scheduler, error) {
	// 1. Config, logger, sinks, redis
	a, err := newApp(pathOverrides{})
	if err != nil {
		return nil, nil, err
	}

	// 2. Runner (no console output in daemon mode)
	runner, err := a.newRunner(io.Discard)
	if err != nil {
		a.close()
		return nil, nil, err
	}

	// 3. Create scheduler
	sched := scheduler.New(a.log, scheduler.WithRetry(2, 5*time.Minute))

	// 4. Register jobs
	registered := []scheduler.Job{
		jobs.NewPartitionDailyJob(runner, a.cfg.Schedule.Daily, a.log),
		jobs.NewRetentionJob(a.pruner, a.cfg.Schedule.Retention, a.cfg.Schedule.RetentionDays, a.log),
	}
	for _, job := range registered {
		if err := sched.AddJob(job); err != nil {
			a.close()
			return nil, nil, err
		}
	}

	return a, sched, nil
}
