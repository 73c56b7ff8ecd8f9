package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/wonny/dqpipe/backend/pkg/config"
)

const (
	applicationName = "dqpipe"

	// connectTimeout bounds the startup ping; a run without its sink is useless
	connectTimeout = 5 * time.Second
)

// DB owns the pgx pool behind the postgres sink (dq.records, dq.daily_metrics,
// dq.alerts, dq.pipeline_runs ...)
// ⭐ SSOT: DB 연결은 이 패키지에서만 생성
type DB struct {
	Pool *pgxpool.Pool
}

// New opens the sink pool and pings it once
func New(cfg *config.Config) (*DB, error) {
	poolConfig, err := buildPoolConfig(cfg.Database)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{Pool: pool}, nil
}

// buildPoolConfig parses the URL and applies the session settings every
// sink query relies on
func buildPoolConfig(cfg config.DatabaseConfig) (*pgxpool.Config, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	// ingest_date / hour_utc 는 모두 UTC 기준 → 세션 타임존 고정
	poolConfig.ConnConfig.RuntimeParams["timezone"] = "UTC"
	poolConfig.ConnConfig.RuntimeParams["application_name"] = applicationName

	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = int32(cfg.MaxConns)
	}
	// 파티션 COPY 는 날짜당 커넥션 하나 → MinConns 가 MaxConns 를 넘지 않게
	if cfg.MinConns > 0 {
		poolConfig.MinConns = min(int32(cfg.MinConns), poolConfig.MaxConns)
	}
	if cfg.MaxConnLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.MaxConnIdleTime > 0 {
		poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime
	}
	return poolConfig, nil
}

// NewFromURL opens a small pool from a bare URL (CLI tools, tests)
func NewFromURL(url string) (*DB, error) {
	return New(&config.Config{
		Database: config.DatabaseConfig{
			Enabled:         true,
			URL:             url,
			MaxConns:        4,
			MinConns:        1,
			MaxConnLifetime: time.Hour,
			MaxConnIdleTime: 30 * time.Minute,
		},
	})
}

// Close closes the database connection pool
func (db *DB) Close() {
	if db.Pool != nil {
		db.Pool.Close()
	}
}

// Ping checks the sink is reachable
func (db *DB) Ping(ctx context.Context) error {
	return db.Pool.Ping(ctx)
}

// HealthCheck pings the pool and reports whether the dq tables exist
func (db *DB) HealthCheck(ctx context.Context) (*HealthStatus, error) {
	status := &HealthStatus{
		Healthy:   false,
		Timestamp: time.Now(),
	}

	start := time.Now()
	if err := db.Pool.Ping(ctx); err != nil {
		status.Error = err.Error()
		return status, err
	}
	status.ResponseTime = time.Since(start)

	var ready bool
	if err := db.Pool.QueryRow(ctx, `SELECT to_regclass('dq.records') IS NOT NULL`).Scan(&ready); err != nil {
		status.Error = err.Error()
		return status, fmt.Errorf("check dq schema: %w", err)
	}
	status.SchemaReady = ready

	status.Stats = db.Stats()
	status.Healthy = true
	return status, nil
}

// HealthStatus is the sink connectivity report (test-db command)
type HealthStatus struct {
	Healthy      bool          `json:"healthy"`
	SchemaReady  bool          `json:"schema_ready"`
	Timestamp    time.Time     `json:"timestamp"`
	ResponseTime time.Duration `json:"response_time"`
	Error        string        `json:"error,omitempty"`
	Stats        PoolStats     `json:"stats"`
}

// PoolStats is a snapshot of pgxpool.Stat
type PoolStats struct {
	AcquireCount         int64         `json:"acquire_count"`
	AcquireDuration      time.Duration `json:"acquire_duration"`
	AcquiredConns        int32         `json:"acquired_conns"`
	CanceledAcquireCount int64         `json:"canceled_acquire_count"`
	ConstructingConns    int32         `json:"constructing_conns"`
	EmptyAcquireCount    int64         `json:"empty_acquire_count"`
	IdleConns            int32         `json:"idle_conns"`
	MaxConns             int32         `json:"max_conns"`
	TotalConns           int32         `json:"total_conns"`
}

// Stats snapshots the pool counters
func (db *DB) Stats() PoolStats {
	stats := db.Pool.Stat()
	return PoolStats{
		AcquireCount:         stats.AcquireCount(),
		AcquireDuration:      stats.AcquireDuration(),
		AcquiredConns:        stats.AcquiredConns(),
		CanceledAcquireCount: stats.CanceledAcquireCount(),
		ConstructingConns:    stats.ConstructingConns(),
		EmptyAcquireCount:    stats.EmptyAcquireCount(),
		IdleConns:            stats.IdleConns(),
		MaxConns:             stats.MaxConns(),
		TotalConns:           stats.TotalConns(),
	}
}
