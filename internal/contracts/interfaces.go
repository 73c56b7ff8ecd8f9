package contracts

import (
	"context"
	"errors"
)

// Sentinel errors shared by loaders and stores
var (
	// ErrPartitionNotFound raw partition file missing
	ErrPartitionNotFound = errors.New("partition not found")

	// ErrNotFound requested output row missing
	ErrNotFound = errors.New("not found")

	// ErrInvalidDate ingest_date not in YYYY-MM-DD form
	ErrInvalidDate = errors.New("invalid ingest date")
)

// PartitionLoader reads raw batches (S0)
// ⭐ SSOT: raw 입력 인터페이스
type PartitionLoader interface {
	Load(ctx context.Context, ingestDate string, entity Entity) (*RawBatch, error)
}

// PartitionOutput is the validated output of one partition
type PartitionOutput struct {
	IngestDate string          `json:"ingest_date"`
	Customers  CustomerOutcome `json:"customers"`
	Events     EventOutcome    `json:"events"`
	Orders     OrderOutcome    `json:"orders"`
}

// Sink persists pipeline outputs.
// Every write is an overwrite keyed by ingest_date so reprocessing is idempotent.
// ⭐ SSOT: 출력 저장 인터페이스 (file / postgres)
type Sink interface {
	WritePartition(ctx context.Context, out *PartitionOutput) error
	WriteValidationReport(ctx context.Context, report *ValidationReport) error
	ReplaceHourly(ctx context.Context, ingestDate string, rows []HourlyEventCount) error
	UpsertDailyMetrics(ctx context.Context, m *DailyMetrics) error
	WriteAlert(ctx context.Context, alert *Alert) error

	// DailyMetricsHistory returns rows with ingest_date <= upTo, ascending,
	// at most limit rows (the most recent ones). limit <= 0 means all.
	DailyMetricsHistory(ctx context.Context, upTo string, limit int) ([]DailyMetrics, error)
}

// OutputReader reads persisted outputs (API)
type OutputReader interface {
	GetDailyMetrics(ctx context.Context, ingestDate string) (*DailyMetrics, error)
	ListDailyMetrics(ctx context.Context, from, to string) ([]DailyMetrics, error)
	GetHourly(ctx context.Context, ingestDate string) ([]HourlyEventCount, error)
	GetAlert(ctx context.Context, ingestDate string) (*Alert, error)
	GetValidationReport(ctx context.Context, ingestDate string) (*ValidationReport, error)
}

// AlertNotifier delivers fired alerts (S4)
type AlertNotifier interface {
	Notify(ctx context.Context, alert *Alert) error
}

// RunRecorder persists run audit rows
type RunRecorder interface {
	RecordRun(ctx context.Context, run *RunSummary) error
	ListRuns(ctx context.Context, limit int) ([]RunSummary, error)
}

// RunPublisher broadcasts finished runs (websocket feed)
type RunPublisher interface {
	Publish(run *RunSummary)
}
