package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/dqpipe/backend/internal/contracts"
)

// RunRepository persists run audit rows (dq.pipeline_runs)
type RunRepository struct {
	pool *pgxpool.Pool
}

// NewRunRepository creates a new run repository
func NewRunRepository(pool *pgxpool.Pool) *RunRepository {
	return &RunRepository{pool: pool}
}

// RecordRun upserts one run row keyed by run_id
func (r *RunRepository) RecordRun(ctx context.Context, run *contracts.RunSummary) error {
	counts, err := json.Marshal(run.Counts)
	if err != nil {
		return fmt.Errorf("marshal run counts: %w", err)
	}

	var finished *time.Time
	if !run.FinishedAt.IsZero() {
		finished = &run.FinishedAt
	}

	query := `
		INSERT INTO dq.pipeline_runs (
			run_id, ingest_date, status, stage, error, rules_hash,
			counts, alert_flags, started_at, finished_at
		) VALUES ($1, $2::date, $3, $4, NULLIF($5, ''), $6, $7, $8, $9, $10)
		ON CONFLICT (run_id) DO UPDATE SET
			status = EXCLUDED.status,
			stage = EXCLUDED.stage,
			error = EXCLUDED.error,
			counts = EXCLUDED.counts,
			alert_flags = EXCLUDED.alert_flags,
			finished_at = EXCLUDED.finished_at
	`

	_, err = r.pool.Exec(ctx, query,
		run.RunID,
		run.IngestDate,
		string(run.Status),
		string(run.Stage),
		run.Error,
		run.RulesHash,
		counts,
		run.AlertFlags,
		run.StartedAt,
		finished,
	)
	if err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	return nil
}

// ListRuns returns the most recent runs first (limit <= 0: 100)
func (r *RunRepository) ListRuns(ctx context.Context, limit int) ([]contracts.RunSummary, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT run_id, ingest_date::text, status, stage, COALESCE(error, ''),
		       COALESCE(rules_hash, ''), counts, alert_flags, started_at, finished_at
		FROM dq.pipeline_runs
		ORDER BY started_at DESC
		LIMIT $1
	`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	out := make([]contracts.RunSummary, 0, limit)
	for rows.Next() {
		var (
			run      contracts.RunSummary
			status   string
			stage    string
			counts   []byte
			finished *time.Time
		)
		if err := rows.Scan(
			&run.RunID, &run.IngestDate, &status, &stage, &run.Error,
			&run.RulesHash, &counts, &run.AlertFlags, &run.StartedAt, &finished,
		); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		run.Status = contracts.RunStatus(status)
		run.Stage = contracts.Stage(stage)
		if finished != nil {
			run.FinishedAt = *finished
		}
		if len(counts) > 0 {
			if err := json.Unmarshal(counts, &run.Counts); err != nil {
				return nil, fmt.Errorf("decode run counts: %w", err)
			}
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

// PruneRuns deletes rows started before cutoff
func (r *RunRepository) PruneRuns(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM dq.pipeline_runs WHERE started_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune runs: %w", err)
	}
	return tag.RowsAffected(), nil
}
