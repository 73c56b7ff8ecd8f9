package pipeline

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/dqpipe/backend/internal/contracts"
	"github.com/wonny/dqpipe/backend/internal/s2_quality"
	"github.com/wonny/dqpipe/backend/internal/s3_metrics"
	"github.com/wonny/dqpipe/backend/internal/s4_alerts"
)

// PostgresSink writes pipeline outputs to the dq schema
// ⭐ SSOT: stage 별 repository 조합 (저장 로직은 각 repository 에 있음)
type PostgresSink struct {
	quality *s2_quality.Repository
	metrics *s3_metrics.Repository
	alerts  *s4_alerts.Repository
	runs    *RunRepository
}

// NewPostgresSink creates a sink over one pool
func NewPostgresSink(pool *pgxpool.Pool) *PostgresSink {
	return &PostgresSink{
		quality: s2_quality.NewRepository(pool),
		metrics: s3_metrics.NewRepository(pool),
		alerts:  s4_alerts.NewRepository(pool),
		runs:    NewRunRepository(pool),
	}
}

// WritePartition replaces the clean/quarantine rows of the date
func (s *PostgresSink) WritePartition(ctx context.Context, out *contracts.PartitionOutput) error {
	return s.quality.SavePartition(ctx, out)
}

// WriteValidationReport upserts the validation report
func (s *PostgresSink) WriteValidationReport(ctx context.Context, report *contracts.ValidationReport) error {
	return s.quality.SaveReport(ctx, report)
}

// ReplaceHourly replaces the hourly rows of the date
func (s *PostgresSink) ReplaceHourly(ctx context.Context, ingestDate string, rows []contracts.HourlyEventCount) error {
	return s.metrics.ReplaceHourly(ctx, ingestDate, rows)
}

// UpsertDailyMetrics upserts the daily row
func (s *PostgresSink) UpsertDailyMetrics(ctx context.Context, m *contracts.DailyMetrics) error {
	return s.metrics.UpsertDaily(ctx, m)
}

// WriteAlert upserts the alert report
func (s *PostgresSink) WriteAlert(ctx context.Context, alert *contracts.Alert) error {
	return s.alerts.Save(ctx, alert)
}

// DailyMetricsHistory reads history for the volume-drop heuristic
func (s *PostgresSink) DailyMetricsHistory(ctx context.Context, upTo string, limit int) ([]contracts.DailyMetrics, error) {
	return s.metrics.History(ctx, upTo, limit)
}

// GetDailyMetrics implements contracts.OutputReader
func (s *PostgresSink) GetDailyMetrics(ctx context.Context, ingestDate string) (*contracts.DailyMetrics, error) {
	return s.metrics.GetDaily(ctx, ingestDate)
}

// ListDailyMetrics implements contracts.OutputReader
func (s *PostgresSink) ListDailyMetrics(ctx context.Context, from, to string) ([]contracts.DailyMetrics, error) {
	return s.metrics.ListDaily(ctx, from, to)
}

// GetHourly implements contracts.OutputReader
func (s *PostgresSink) GetHourly(ctx context.Context, ingestDate string) ([]contracts.HourlyEventCount, error) {
	return s.metrics.GetHourly(ctx, ingestDate)
}

// GetAlert implements contracts.OutputReader
func (s *PostgresSink) GetAlert(ctx context.Context, ingestDate string) (*contracts.Alert, error) {
	return s.alerts.Get(ctx, ingestDate)
}

// GetValidationReport implements contracts.OutputReader
func (s *PostgresSink) GetValidationReport(ctx context.Context, ingestDate string) (*contracts.ValidationReport, error) {
	return s.quality.GetReport(ctx, ingestDate)
}

// Runs returns the run audit repository
func (s *PostgresSink) Runs() *RunRepository {
	return s.runs
}

var (
	_ contracts.Sink         = (*PostgresSink)(nil)
	_ contracts.OutputReader = (*PostgresSink)(nil)
	_ contracts.Sink         = (*FileSink)(nil)
	_ contracts.OutputReader = (*FileSink)(nil)
	_ contracts.RunRecorder  = (*FileSink)(nil)
	_ contracts.RunRecorder  = (*RunRepository)(nil)
)
