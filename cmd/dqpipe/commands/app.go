package commands

import (
	"context"
	"fmt"
	"io"
	"time"

	"golang.org/x/time/rate"

	"github.com/wonny/dqpipe/backend/internal/contracts"
	"github.com/wonny/dqpipe/backend/internal/pipeline"
	"github.com/wonny/dqpipe/backend/internal/rulesconfig"
	"github.com/wonny/dqpipe/backend/internal/s0_ingest"
	"github.com/wonny/dqpipe/backend/internal/s4_alerts"
	"github.com/wonny/dqpipe/backend/internal/scheduler/jobs"
	"github.com/wonny/dqpipe/backend/pkg/config"
	"github.com/wonny/dqpipe/backend/pkg/database"
	"github.com/wonny/dqpipe/backend/pkg/httputil"
	"github.com/wonny/dqpipe/backend/pkg/logger"
	"github.com/wonny/dqpipe/backend/pkg/redis"
)

// app holds the wired dependencies shared by the commands
type app struct {
	cfg   *config.Config
	log   *logger.Logger
	rules *rulesconfig.Config

	db    *database.DB // nil in file-only mode
	redis *redis.Client

	sink     contracts.Sink
	reader   contracts.OutputReader
	recorder contracts.RunRecorder
	pruner   jobs.RunPruner

	metrics *pipeline.Metrics
}

// pathOverrides are CLI flags that win over the environment
type pathOverrides struct {
	dataDir    string
	outDir     string
	reportsDir string
	rulesFile  string
}

func (o pathOverrides) apply(cfg *config.Config) {
	if o.dataDir != "" {
		cfg.Paths.DataDir = o.dataDir
	}
	if o.outDir != "" {
		cfg.Paths.OutDir = o.outDir
	}
	if o.reportsDir != "" {
		cfg.Paths.ReportsDir = o.reportsDir
	}
	if o.rulesFile != "" {
		cfg.Paths.RulesFile = o.rulesFile
	}
}

// newApp loads config, rules and connects the optional backends.
// 순서: config → logger → rules → postgres(선택) → redis(선택) → metrics
func newApp(overrides pathOverrides) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	overrides.apply(cfg)
	if verbose {
		cfg.LogLevel = "debug"
	}

	log := logger.New(cfg)

	rules, err := loadRules(cfg)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, log: log, rules: rules}

	if cfg.Database.Enabled {
		db, err := database.New(cfg)
		if err != nil {
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := db.EnsureSchema(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("ensure schema: %w", err)
		}

		ps := pipeline.NewPostgresSink(db.Pool)
		a.db = db
		a.sink, a.reader = ps, ps
		a.recorder, a.pruner = ps.Runs(), ps.Runs()
		log.Info("Using postgres sink")
	} else {
		fs := pipeline.NewFileSink(cfg.Paths.OutDir, cfg.Paths.ReportsDir)
		a.sink, a.reader = fs, fs
		a.recorder, a.pruner = fs, fs
		log.WithFields(map[string]interface{}{
			"out_dir":     cfg.Paths.OutDir,
			"reports_dir": cfg.Paths.ReportsDir,
		}).Info("Using file sink")
	}

	rc, err := redis.New(cfg)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	a.redis = rc

	metrics, err := pipeline.NewMetrics()
	if err != nil {
		a.close()
		return nil, err
	}
	a.metrics = metrics

	return a, nil
}

// loadRules starts from the built-in tables, applies ALERT_* env thresholds,
// then the optional rules file (file wins).
func loadRules(cfg *config.Config) (*rulesconfig.Config, error) {
	base := rulesconfig.Default()
	base.Alerts = rulesconfig.Alerts{
		MissingHoursThreshold: cfg.Alerts.MissingHoursThreshold,
		TrailingDays:          cfg.Alerts.TrailingDays,
		VolumeDropPct:         cfg.Alerts.VolumeDropPct,
		ExpectedHours:         cfg.Alerts.ExpectedHours,
	}

	rules, _, err := rulesconfig.Load(cfg.Paths.RulesFile, base)
	if err != nil {
		return nil, fmt.Errorf("load rules: %w", err)
	}
	return rules, nil
}

// notifier returns the webhook notifier, or a no-op without ALERT_WEBHOOK_URL
func (a *app) notifier() contracts.AlertNotifier {
	if a.cfg.Alerts.WebhookURL == "" {
		return s4_alerts.NopNotifier{}
	}

	client := httputil.New(a.cfg, a.log).WithRetry(3, time.Second)
	if a.cfg.Alerts.WebhookRPS > 0 {
		client.WithLimiter(rate.NewLimiter(rate.Limit(a.cfg.Alerts.WebhookRPS), 1))
	}
	if a.redis.Enabled() {
		client.WithRateLimiter(redis.NewRateLimiter(a.redis, redis.Namespace), redis.WebhookRateLimit)
	}
	return s4_alerts.NewWebhookNotifier(client, a.cfg.Alerts.WebhookURL, a.log)
}

// cache returns the shared read cache (nil when redis is disabled)
func (a *app) cache() *redis.Cache {
	if !a.redis.Enabled() {
		return nil
	}
	return redis.NewCache(a.redis, redis.Namespace)
}

// newRunner wires the orchestrator; extra options are appended last
func (a *app) newRunner(console io.Writer, extra ...pipeline.Option) (*pipeline.Runner, error) {
	loader := s0_ingest.NewLoader(a.cfg.Paths.DataDir, s0_ingest.WithChunkSize(a.cfg.Pipeline.EventsChunkSize))

	opts := []pipeline.Option{
		pipeline.WithNotifier(a.notifier()),
		pipeline.WithRecorder(a.recorder),
		pipeline.WithMetrics(a.metrics),
		pipeline.WithParallelism(a.cfg.Pipeline.Parallelism),
		pipeline.WithConsole(console),
	}
	if a.redis.Enabled() {
		opts = append(opts,
			pipeline.WithCache(a.cache()),
			pipeline.WithLocks(a.redis, a.cfg.Pipeline.LockTTL),
		)
	}
	opts = append(opts, extra...)

	runner, err := pipeline.NewRunner(loader, a.sink, a.rules, a.log, opts...)
	if err != nil {
		return nil, fmt.Errorf("create runner: %w", err)
	}
	return runner, nil
}

func (a *app) close() {
	if a.redis != nil {
		a.redis.Close()
	}
	if a.db != nil {
		a.db.Close()
	}
}
