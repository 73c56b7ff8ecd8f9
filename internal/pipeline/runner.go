package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/wonny/dqpipe/backend/internal/contracts"
	"github.com/wonny/dqpipe/backend/internal/rulesconfig"
	"github.com/wonny/dqpipe/backend/internal/s1_clean"
	"github.com/wonny/dqpipe/backend/internal/s2_quality"
	"github.com/wonny/dqpipe/backend/internal/s3_metrics"
	"github.com/wonny/dqpipe/backend/internal/s4_alerts"
	"github.com/wonny/dqpipe/backend/pkg/logger"
	"github.com/wonny/dqpipe/backend/pkg/redis"
)

// Runner coordinates S0 → S4 for one partition at a time
// ⭐ SSOT: 파이프라인 조율은 여기서만
type Runner struct {
	loader   contracts.PartitionLoader
	sink     contracts.Sink
	rules    *rulesconfig.Config
	hash     string
	cleaner  *s1_clean.Cleaner
	validate *s2_quality.Validator

	notifier  contracts.AlertNotifier
	recorder  contracts.RunRecorder
	publisher contracts.RunPublisher
	metrics   *Metrics
	cache     *redis.Cache
	locks     *redis.Client

	parallelism int
	lockTTL     time.Duration
	console     io.Writer
	now         func() time.Time
	logger      *logger.Logger
}

// Option configures a Runner
type Option func(*Runner)

// WithNotifier delivers fired alerts
func WithNotifier(n contracts.AlertNotifier) Option {
	return func(r *Runner) { r.notifier = n }
}

// WithRecorder persists run audit rows
func WithRecorder(rec contracts.RunRecorder) Option {
	return func(r *Runner) { r.recorder = rec }
}

// WithPublisher broadcasts finished runs
func WithPublisher(p contracts.RunPublisher) Option {
	return func(r *Runner) { r.publisher = p }
}

// WithMetrics records Prometheus counters
func WithMetrics(m *Metrics) Option {
	return func(r *Runner) { r.metrics = m }
}

// WithCache invalidates cached API reads of a date after each run
func WithCache(c *redis.Cache) Option {
	return func(r *Runner) { r.cache = c }
}

// WithLocks guards each date with a redis lock held for ttl
func WithLocks(client *redis.Client, ttl time.Duration) Option {
	return func(r *Runner) {
		r.locks = client
		r.lockTTL = ttl
	}
}

// WithParallelism bounds concurrent dates in ProcessRange
func WithParallelism(n int) Option {
	return func(r *Runner) { r.parallelism = n }
}

// WithConsole receives the human-readable per-entity summary lines
func WithConsole(w io.Writer) Option {
	return func(r *Runner) { r.console = w }
}

// WithClock overrides "now" (run timestamps and the timestamp year window)
func WithClock(now func() time.Time) Option {
	return func(r *Runner) { r.now = now }
}

// NewRunner creates a runner over the given rules
func NewRunner(loader contracts.PartitionLoader, sink contracts.Sink, rules *rulesconfig.Config, log *logger.Logger, opts ...Option) (*Runner, error) {
	if err := rulesconfig.Validate(rules); err != nil {
		return nil, fmt.Errorf("invalid rules: %w", err)
	}
	hash, err := rulesconfig.Hash(rules)
	if err != nil {
		return nil, fmt.Errorf("hash rules: %w", err)
	}

	r := &Runner{
		loader:      loader,
		sink:        sink,
		rules:       rules,
		hash:        hash,
		notifier:    s4_alerts.NopNotifier{},
		parallelism: 1,
		console:     io.Discard,
		now:         time.Now,
		logger:      log,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.parallelism < 1 {
		r.parallelism = 1
	}

	r.cleaner = s1_clean.NewCleaner(s1_clean.NewNormalizer(rules.Tables(), s1_clean.WithClock(r.now)))
	r.validate = s2_quality.NewValidator(rules.QualityConfig(), s2_quality.WithClock(r.now))

	return r, nil
}

// RulesHash returns the hash of the rules in use
func (r *Runner) RulesHash() string {
	return r.hash
}

// DayResult holds everything produced for one partition
type DayResult struct {
	Run     *contracts.RunSummary
	Report  *contracts.ValidationReport
	Metrics *contracts.DailyMetrics
	Alert   *contracts.Alert
}

// dayRun carries one partition from S0..S3 through S4 to completion
type dayRun struct {
	run    *contracts.RunSummary
	log    *logger.Logger
	hourly []contracts.HourlyEventCount
	result *DayResult
	err    error
	unlock func()

	// settled: nothing left to run (invalid date, lock held, lock error)
	settled bool
}

// ProcessDay runs the full chain for one ingest_date without the partition lock.
// 모든 출력은 ingest_date 기준 덮어쓰기 → 같은 입력 재처리 시 같은 결과.
func (r *Runner) ProcessDay(ctx context.Context, ingestDate string) (*DayResult, error) {
	if _, err := contracts.ParseIngestDate(ingestDate); err != nil {
		return nil, err
	}

	day := r.begin(ingestDate)
	r.prepare(ctx, day)
	r.alert(ctx, day)
	return r.complete(ctx, day)
}

// ProcessLocked runs one ingest_date under its partition lock.
// A date locked by another worker comes back as a skipped run.
func (r *Runner) ProcessLocked(ctx context.Context, ingestDate string) (*DayResult, error) {
	day := r.prepareLocked(ctx, ingestDate)
	if day.settled {
		return day.result, day.err
	}
	r.alert(ctx, day)
	return r.complete(ctx, day)
}

// ProcessRange processes dates with S0..S3 running concurrently (bounded by
// parallelism), then S4 in ascending date order once every daily row of the
// range is upserted, so trailing-median history never depends on scheduling.
// Results come back in input order; a failing date does not stop the others.
// Dates locked by another worker are reported as skipped.
func (r *Runner) ProcessRange(ctx context.Context, dates []string) ([]*DayResult, error) {
	days := make([]*dayRun, len(dates))

	var g errgroup.Group
	g.SetLimit(r.parallelism)
	for i, d := range dates {
		i, d := i, d
		g.Go(func() error {
			days[i] = r.prepareLocked(ctx, d)
			return nil
		})
	}
	_ = g.Wait()

	// ⭐ S4 는 날짜 오름차순으로 직렬 실행 (YYYY-MM-DD 문자열 정렬 = 날짜 정렬)
	order := make([]int, len(dates))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return dates[order[a]] < dates[order[b]] })

	results := make([]*DayResult, len(dates))
	errs := make([]error, len(dates))
	for _, i := range order {
		day := days[i]
		if day.settled {
			results[i], errs[i] = day.result, day.err
			continue
		}
		r.alert(ctx, day)
		results[i], errs[i] = r.complete(ctx, day)
	}

	return results, errors.Join(errs...)
}

func (r *Runner) begin(ingestDate string) *dayRun {
	run := &contracts.RunSummary{
		RunID:      uuid.NewString(),
		IngestDate: ingestDate,
		Stage:      contracts.StageIngest,
		RulesHash:  r.hash,
		Counts:     make(map[contracts.Entity]contracts.EntityCounts, len(contracts.Entities)),
		StartedAt:  r.now().UTC(),
	}
	log := r.logger.WithPartition(ingestDate).WithRun(run.RunID)
	log.Info("Starting partition run")
	return &dayRun{run: run, log: log}
}

// prepareLocked takes the partition lock (held until complete) and runs S0..S3
func (r *Runner) prepareLocked(ctx context.Context, ingestDate string) *dayRun {
	if _, err := contracts.ParseIngestDate(ingestDate); err != nil {
		return &dayRun{err: err, settled: true}
	}

	var unlock func()
	if r.locks != nil {
		lock := r.locks.PartitionLock(ingestDate, r.lockTTL)
		if err := lock.Acquire(ctx); err != nil {
			if errors.Is(err, redis.ErrLockHeld) {
				return &dayRun{result: r.skipped(ingestDate), settled: true}
			}
			return &dayRun{err: err, settled: true}
		}
		stop := r.keepAlive(ctx, lock, ingestDate)
		unlock = func() {
			stop()
			if err := lock.Release(context.Background()); err != nil {
				r.logger.WithPartition(ingestDate).WithError(err).Warn("Failed to release partition lock")
			}
		}
	}

	day := r.begin(ingestDate)
	day.unlock = unlock
	r.prepare(ctx, day)
	return day
}

// complete sets the final status, records the run and releases the lock
func (r *Runner) complete(ctx context.Context, day *dayRun) (*DayResult, error) {
	if day.unlock != nil {
		defer day.unlock()
	}

	run := day.run
	if day.err != nil {
		run.Status = contracts.RunFailed
		run.Error = day.err.Error()
	} else {
		run.Status = contracts.RunSuccess
	}
	r.finish(ctx, run, day.log)

	result := day.result
	if result == nil || day.err != nil {
		result = &DayResult{}
	}
	result.Run = run
	return result, day.err
}

// prepare runs S0..S3. On success today's daily row is upserted.
func (r *Runner) prepare(ctx context.Context, day *dayRun) {
	run, log := day.run, day.log
	d := run.IngestDate

	// S0: Ingest
	raw := make(map[contracts.Entity]*contracts.RawBatch, len(contracts.Entities))
	for _, entity := range contracts.Entities {
		batch, err := r.loader.Load(ctx, d, entity)
		if err != nil {
			day.err = fmt.Errorf("S0 load %s: %w", entity, err)
			return
		}
		raw[entity] = batch
	}

	// S1: Clean + dedup (pre-dedup batches are kept for metrics)
	run.Stage = contracts.StageClean
	customersPre := r.cleaner.Customers(raw[contracts.EntityCustomers], d)
	eventsPre := r.cleaner.Events(raw[contracts.EntityEvents], d)
	ordersPre := r.cleaner.Orders(raw[contracts.EntityOrders], d)

	customerRows, customerDedup := s1_clean.DedupCustomers(customersPre.Records)
	eventRows, eventDedup := s1_clean.DedupEvents(eventsPre.Records)
	orderRows, orderDedup := s1_clean.DedupOrders(ordersPre.Records)

	// S2: Validate (customers first: events/orders need its clean keys)
	run.Stage = contracts.StageQuality
	customers := r.validate.ValidateCustomers(&contracts.CustomerBatch{Schema: customersPre.Schema, Records: customerRows}, d)
	keys := customers.CleanKeys()
	events := r.validate.ValidateEvents(&contracts.EventBatch{Schema: eventsPre.Schema, Records: eventRows}, keys, d)
	orders := r.validate.ValidateOrders(&contracts.OrderBatch{Schema: ordersPre.Schema, Records: orderRows}, keys, d)

	out := &contracts.PartitionOutput{
		IngestDate: d,
		Customers:  *customers,
		Events:     *events,
		Orders:     *orders,
	}
	if err := r.sink.WritePartition(ctx, out); err != nil {
		day.err = fmt.Errorf("S2 write partition: %w", err)
		return
	}

	run.Counts[contracts.EntityCustomers] = contracts.EntityCounts{Clean: len(customers.Clean), Quarantine: len(customers.Quarantine)}
	run.Counts[contracts.EntityEvents] = contracts.EntityCounts{Clean: len(events.Clean), Quarantine: len(events.Quarantine)}
	run.Counts[contracts.EntityOrders] = contracts.EntityCounts{Clean: len(orders.Clean), Quarantine: len(orders.Quarantine)}

	for _, entity := range contracts.Entities {
		c := run.Counts[entity]
		fmt.Fprintf(r.console, "%s clean/quarantine: %d/%d\n", entity, c.Clean, c.Quarantine)
		log.WithStage(contracts.StageQuality.ShortName()).
			WithCounts(string(entity), c.Clean, c.Quarantine).
			Info("S2 completed")
	}

	report := &contracts.ValidationReport{
		IngestDate: d,
		RunID:      run.RunID,
		Customers:  customers.Stats,
		Events:     events.Stats,
		Orders:     orders.Stats,
		Dedup: map[contracts.Entity]contracts.DedupReport{
			contracts.EntityCustomers: customerDedup,
			contracts.EntityEvents:    eventDedup,
			contracts.EntityOrders:    orderDedup,
		},
	}
	if err := r.sink.WriteValidationReport(ctx, report); err != nil {
		day.err = fmt.Errorf("S2 write report: %w", err)
		return
	}

	// S3: Metrics
	run.Stage = contracts.StageMetrics
	hourly := s3_metrics.ComputeHourlyEvents(events.Clean)
	if err := r.sink.ReplaceHourly(ctx, d, hourly); err != nil {
		day.err = fmt.Errorf("S3 replace hourly: %w", err)
		return
	}

	daily := s3_metrics.ComputeDailyMetrics(s3_metrics.DailyInput{
		IngestDate:   d,
		Customers:    customers,
		Events:       events,
		Orders:       orders,
		PreCustomers: customersPre.Records,
		PreEvents:    eventsPre.Records,
		PreOrders:    ordersPre.Records,
	})
	if err := r.sink.UpsertDailyMetrics(ctx, daily); err != nil {
		day.err = fmt.Errorf("S3 upsert daily: %w", err)
		return
	}
	log.WithFields(map[string]interface{}{
		"hours":        len(hourly),
		"events_clean": daily.EventsClean,
	}).Info("S3 completed")

	day.hourly = hourly
	day.result = &DayResult{Report: report, Metrics: daily}
}

// alert runs S4 for a prepared day. Earlier dates' daily rows must already be upserted.
func (r *Runner) alert(ctx context.Context, day *dayRun) {
	if day.err != nil {
		return
	}
	run, log := day.run, day.log
	d := run.IngestDate

	run.Stage = contracts.StageAlerts
	alertCfg := r.rules.AlertConfig()
	history, err := r.sink.DailyMetricsHistory(ctx, d, alertCfg.TrailingDays+1)
	if err != nil {
		day.err = fmt.Errorf("S4 read history: %w", err)
		return
	}

	alert := s4_alerts.DetectPartialLoad(d, day.hourly, history, alertCfg)
	if err := r.sink.WriteAlert(ctx, alert); err != nil {
		day.err = fmt.Errorf("S4 write alert: %w", err)
		return
	}
	run.AlertFlags = len(alert.Flags)
	r.metrics.observeAlert(alert)

	fmt.Fprintf(r.console, "alerts: %d flag(s)\n", len(alert.Flags))
	if alert.HasFlags() {
		log.WithFields(map[string]interface{}{
			"flags":        len(alert.Flags),
			"max_severity": string(alert.MaxSeverity()),
		}).Warn("Partial load suspected")

		// 알림 실패는 run 실패가 아님
		if err := r.notifier.Notify(ctx, alert); err != nil {
			log.WithError(err).Warn("Alert notification failed")
		}
	}

	day.result.Alert = alert
}

// finish records, publishes and counts the run; failures here are logged only
func (r *Runner) finish(ctx context.Context, run *contracts.RunSummary, log *logger.Logger) {
	run.FinishedAt = r.now().UTC()

	if r.recorder != nil {
		if err := r.recorder.RecordRun(ctx, run); err != nil {
			log.WithError(err).Warn("Failed to record run")
		}
	}
	if r.cache != nil && run.Status == contracts.RunSuccess {
		if err := r.cache.DeleteMany(ctx, redis.PartitionKeys(run.IngestDate)...); err != nil {
			log.WithError(err).Warn("Failed to invalidate cache")
		}
	}
	r.metrics.observeRun(run)
	if r.publisher != nil {
		r.publisher.Publish(run)
	}

	fields := map[string]interface{}{
		"status":      string(run.Status),
		"stage":       run.Stage.ShortName(),
		"duration_ms": run.Duration().Milliseconds(),
		"alert_flags": run.AlertFlags,
	}
	if run.Status == contracts.RunFailed {
		log.WithFields(fields).Error("Partition run failed: " + run.Error)
		return
	}
	log.WithFields(fields).Info("Partition run completed")
}

// keepAlive extends the lock every ttl/2 until stopped
func (r *Runner) keepAlive(ctx context.Context, lock *redis.Lock, ingestDate string) func() {
	if r.lockTTL <= 0 {
		return func() {}
	}

	done := make(chan struct{})
	ticker := time.NewTicker(r.lockTTL / 2)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := lock.Extend(ctx, r.lockTTL); err != nil {
					r.logger.WithPartition(ingestDate).WithError(err).Warn("Failed to extend partition lock")
				}
			}
		}
	}()
	return func() { close(done) }
}

func (r *Runner) skipped(ingestDate string) *DayResult {
	now := r.now().UTC()
	run := &contracts.RunSummary{
		RunID:      uuid.NewString(),
		IngestDate: ingestDate,
		Status:     contracts.RunSkipped,
		Stage:      contracts.StageIngest,
		RulesHash:  r.hash,
		Counts:     map[contracts.Entity]contracts.EntityCounts{},
		StartedAt:  now,
		FinishedAt: now,
	}
	r.logger.WithPartition(ingestDate).Info("Partition locked by another worker, skipping")
	if r.publisher != nil {
		r.publisher.Publish(run)
	}
	r.metrics.observeRun(run)
	return &DayResult{Run: run}
}
