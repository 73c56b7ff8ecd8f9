package database

import (
	"context"
	"fmt"
)

// schemaStatements creates the dq schema (idempotent)
// ⭐ SSOT: 출력 테이블 정의는 여기서만
var schemaStatements = []string{
	`CREATE SCHEMA IF NOT EXISTS dq`,

	// clean / quarantine partitions (overwrite by entity + ingest_date)
	`CREATE TABLE IF NOT EXISTS dq.records (
		entity         TEXT        NOT NULL,
		ingest_date    DATE        NOT NULL,
		outcome        TEXT        NOT NULL CHECK (outcome IN ('clean', 'quarantine')),
		business_key   TEXT,
		reject_reason  TEXT,
		payload        JSONB       NOT NULL,
		loaded_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_records_partition ON dq.records (entity, ingest_date, outcome)`,

	`CREATE TABLE IF NOT EXISTS dq.validation_reports (
		ingest_date  DATE PRIMARY KEY,
		run_id       TEXT,
		report       JSONB       NOT NULL,
		updated_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	`CREATE TABLE IF NOT EXISTS dq.hourly_events (
		ingest_date  DATE        NOT NULL,
		hour_utc     TIMESTAMPTZ NOT NULL,
		event_count  INTEGER     NOT NULL,
		PRIMARY KEY (ingest_date, hour_utc)
	)`,

	`CREATE TABLE IF NOT EXISTS dq.daily_metrics (
		ingest_date   DATE PRIMARY KEY,
		events_clean  INTEGER     NOT NULL,
		metrics       JSONB       NOT NULL,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	`CREATE TABLE IF NOT EXISTS dq.alerts (
		ingest_date   DATE PRIMARY KEY,
		max_severity  TEXT,
		flags         JSONB       NOT NULL,
		updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	`CREATE TABLE IF NOT EXISTS dq.pipeline_runs (
		run_id       TEXT PRIMARY KEY,
		ingest_date  DATE        NOT NULL,
		status       TEXT        NOT NULL,
		stage        TEXT        NOT NULL,
		error        TEXT,
		rules_hash   TEXT,
		counts       JSONB,
		alert_flags  INTEGER     NOT NULL DEFAULT 0,
		started_at   TIMESTAMPTZ NOT NULL,
		finished_at  TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS idx_pipeline_runs_started ON dq.pipeline_runs (started_at DESC)`,
}

// EnsureSchema creates the dq schema and tables when missing
func (db *DB) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := db.Pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
