package s4_alerts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/dqpipe/backend/internal/contracts"
)

// ErrAlertNotFound no alert report for the requested date
var ErrAlertNotFound = fmt.Errorf("alert report: %w", contracts.ErrNotFound)

// Repository handles alert report persistence
// ⭐ SSOT: S4 알림 저장/조회 (dq.alerts, ingest_date 기준 덮어쓰기)
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new alert repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Save upserts the alert report of one date
func (r *Repository) Save(ctx context.Context, alert *contracts.Alert) error {
	flags, err := json.Marshal(alert.Flags)
	if err != nil {
		return fmt.Errorf("marshal alert flags: %w", err)
	}

	var severity *string
	if s := alert.MaxSeverity(); s != "" {
		v := string(s)
		severity = &v
	}

	query := `
		INSERT INTO dq.alerts (ingest_date, max_severity, flags)
		VALUES ($1::date, $2, $3)
		ON CONFLICT (ingest_date) DO UPDATE SET
			max_severity = EXCLUDED.max_severity,
			flags = EXCLUDED.flags,
			updated_at = NOW()
	`

	if _, err := r.pool.Exec(ctx, query, alert.IngestDate, severity, flags); err != nil {
		return fmt.Errorf("save alert: %w", err)
	}
	return nil
}

// Get retrieves the alert report of one date
func (r *Repository) Get(ctx context.Context, ingestDate string) (*contracts.Alert, error) {
	var flags []byte
	err := r.pool.QueryRow(ctx,
		`SELECT flags FROM dq.alerts WHERE ingest_date = $1::date`, ingestDate,
	).Scan(&flags)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrAlertNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get alert: %w", err)
	}

	alert := contracts.NewAlert(ingestDate)
	if err := json.Unmarshal(flags, &alert.Flags); err != nil {
		return nil, fmt.Errorf("decode alert flags: %w", err)
	}
	return alert, nil
}
