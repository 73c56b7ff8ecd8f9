package s3_metrics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/dqpipe/backend/internal/contracts"
)

// ErrMetricsNotFound no daily metrics row for the requested date
var ErrMetricsNotFound = fmt.Errorf("daily metrics: %w", contracts.ErrNotFound)

// Repository handles hourly/daily metrics persistence
// ⭐ SSOT: S3 지표 저장/조회 (dq.daily_metrics, dq.hourly_events)
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new metrics repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// UpsertDaily upserts the daily row keyed by ingest_date
func (r *Repository) UpsertDaily(ctx context.Context, m *contracts.DailyMetrics) error {
	payload, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal daily metrics: %w", err)
	}

	query := `
		INSERT INTO dq.daily_metrics (ingest_date, events_clean, metrics)
		VALUES ($1::date, $2, $3)
		ON CONFLICT (ingest_date) DO UPDATE SET
			events_clean = EXCLUDED.events_clean,
			metrics = EXCLUDED.metrics,
			updated_at = NOW()
	`

	if _, err := r.pool.Exec(ctx, query, m.IngestDate, m.EventsClean, payload); err != nil {
		return fmt.Errorf("upsert daily metrics: %w", err)
	}

	return nil
}

// GetDaily retrieves the daily row of one date
func (r *Repository) GetDaily(ctx context.Context, ingestDate string) (*contracts.DailyMetrics, error) {
	query := `SELECT metrics FROM dq.daily_metrics WHERE ingest_date = $1::date`

	var payload []byte
	err := r.pool.QueryRow(ctx, query, ingestDate).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrMetricsNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get daily metrics: %w", err)
	}

	m := &contracts.DailyMetrics{}
	if err := json.Unmarshal(payload, m); err != nil {
		return nil, fmt.Errorf("decode daily metrics: %w", err)
	}
	return m, nil
}

// ListDaily returns rows with from <= ingest_date <= to, ascending
func (r *Repository) ListDaily(ctx context.Context, from, to string) ([]contracts.DailyMetrics, error) {
	query := `
		SELECT metrics
		FROM dq.daily_metrics
		WHERE ingest_date BETWEEN $1::date AND $2::date
		ORDER BY ingest_date ASC
	`

	rows, err := r.pool.Query(ctx, query, from, to)
	if err != nil {
		return nil, fmt.Errorf("list daily metrics: %w", err)
	}
	return scanDaily(rows)
}

// History returns at most limit rows with ingest_date <= upTo, ascending.
// limit <= 0 returns every row.
func (r *Repository) History(ctx context.Context, upTo string, limit int) ([]contracts.DailyMetrics, error) {
	// LIMIT NULL == no limit
	var lim *int
	if limit > 0 {
		lim = &limit
	}

	query := `
		SELECT metrics FROM (
			SELECT ingest_date, metrics
			FROM dq.daily_metrics
			WHERE ingest_date <= $1::date
			ORDER BY ingest_date DESC
			LIMIT $2
		) recent
		ORDER BY ingest_date ASC
	`

	rows, err := r.pool.Query(ctx, query, upTo, lim)
	if err != nil {
		return nil, fmt.Errorf("query metrics history: %w", err)
	}
	return scanDaily(rows)
}

func scanDaily(rows pgx.Rows) ([]contracts.DailyMetrics, error) {
	defer rows.Close()

	out := make([]contracts.DailyMetrics, 0)
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan daily metrics: %w", err)
		}
		var m contracts.DailyMetrics
		if err := json.Unmarshal(payload, &m); err != nil {
			return nil, fmt.Errorf("decode daily metrics: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate daily metrics: %w", err)
	}
	return out, nil
}

// ReplaceHourly overwrites every hourly row of the date
func (r *Repository) ReplaceHourly(ctx context.Context, ingestDate string, counts []contracts.HourlyEventCount) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin hourly replace: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM dq.hourly_events WHERE ingest_date = $1::date`, ingestDate); err != nil {
		return fmt.Errorf("delete hourly rows: %w", err)
	}

	day, err := time.Parse(contracts.DateLayout, ingestDate)
	if err != nil {
		return fmt.Errorf("parse ingest date: %w", err)
	}

	rows := make([][]interface{}, 0, len(counts))
	for _, c := range counts {
		if c.IngestDate != ingestDate {
			continue
		}
		rows = append(rows, []interface{}{day, c.HourUTC, c.EventCount})
	}

	if len(rows) > 0 {
		_, err = tx.CopyFrom(ctx,
			pgx.Identifier{"dq", "hourly_events"},
			[]string{"ingest_date", "hour_utc", "event_count"},
			pgx.CopyFromRows(rows),
		)
		if err != nil {
			return fmt.Errorf("copy hourly rows: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit hourly replace: %w", err)
	}
	return nil
}

// GetHourly returns the hourly rows of one date, by hour
func (r *Repository) GetHourly(ctx context.Context, ingestDate string) ([]contracts.HourlyEventCount, error) {
	query := `
		SELECT ingest_date::text, hour_utc, event_count
		FROM dq.hourly_events
		WHERE ingest_date = $1::date
		ORDER BY hour_utc
	`

	rows, err := r.pool.Query(ctx, query, ingestDate)
	if err != nil {
		return nil, fmt.Errorf("query hourly events: %w", err)
	}
	defer rows.Close()

	out := make([]contracts.HourlyEventCount, 0, 24)
	for rows.Next() {
		var c contracts.HourlyEventCount
		if err := rows.Scan(&c.IngestDate, &c.HourUTC, &c.EventCount); err != nil {
			return nil, fmt.Errorf("scan hourly event: %w", err)
		}
		c.HourUTC = c.HourUTC.UTC()
		out = append(out, c)
	}
	return out, rows.Err()
}
