package s2_quality

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/dqpipe/backend/internal/contracts"
)

// ErrReportNotFound no validation report for the requested date
var ErrReportNotFound = fmt.Errorf("validation report: %w", contracts.ErrNotFound)

const (
	outcomeClean      = "clean"
	outcomeQuarantine = "quarantine"
)

var recordColumns = []string{"entity", "ingest_date", "outcome", "business_key", "reject_reason", "payload"}

// Repository handles clean/quarantine partition persistence
// ⭐ SSOT: S2 결과 저장 (dq.records, dq.validation_reports)
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new quality repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// SavePartition replaces every record row of the partition in one transaction.
// 재처리 시 같은 ingest_date 의 기존 row 는 모두 삭제 후 재적재.
func (r *Repository) SavePartition(ctx context.Context, out *contracts.PartitionOutput) error {
	rows, err := partitionRows(out)
	if err != nil {
		return err
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin partition save: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM dq.records WHERE ingest_date = $1::date`, out.IngestDate); err != nil {
		return fmt.Errorf("delete partition rows: %w", err)
	}

	if len(rows) > 0 {
		_, err = tx.CopyFrom(ctx,
			pgx.Identifier{"dq", "records"},
			recordColumns,
			pgx.CopyFromRows(rows),
		)
		if err != nil {
			return fmt.Errorf("copy partition rows: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit partition save: %w", err)
	}
	return nil
}

// partitionRows flattens the three outcomes into dq.records rows
func partitionRows(out *contracts.PartitionOutput) ([][]interface{}, error) {
	day, err := contracts.ParseIngestDate(out.IngestDate)
	if err != nil {
		return nil, err
	}

	rows := make([][]interface{}, 0,
		len(out.Customers.Clean)+len(out.Customers.Quarantine)+
			len(out.Events.Clean)+len(out.Events.Quarantine)+
			len(out.Orders.Clean)+len(out.Orders.Quarantine))

	add := func(entity contracts.Entity, outcome, key string, reasons contracts.Reasons, v interface{}) error {
		payload, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("marshal %s row: %w", entity, err)
		}
		var bk, reason *string
		if key != "" {
			bk = &key
		}
		if !reasons.Empty() {
			s := reasons.String()
			reason = &s
		}
		rows = append(rows, []interface{}{string(entity), day, outcome, bk, reason, payload})
		return nil
	}

	for i := range out.Customers.Clean {
		rec := &out.Customers.Clean[i]
		if err := add(contracts.EntityCustomers, outcomeClean, rec.Key(), nil, rec); err != nil {
			return nil, err
		}
	}
	for i := range out.Customers.Quarantine {
		rec := &out.Customers.Quarantine[i]
		if err := add(contracts.EntityCustomers, outcomeQuarantine, rec.Key(), rec.RejectReason, rec); err != nil {
			return nil, err
		}
	}
	for i := range out.Events.Clean {
		rec := &out.Events.Clean[i]
		if err := add(contracts.EntityEvents, outcomeClean, rec.Key(), nil, rec); err != nil {
			return nil, err
		}
	}
	for i := range out.Events.Quarantine {
		rec := &out.Events.Quarantine[i]
		if err := add(contracts.EntityEvents, outcomeQuarantine, rec.Key(), rec.RejectReason, rec); err != nil {
			return nil, err
		}
	}
	for i := range out.Orders.Clean {
		rec := &out.Orders.Clean[i]
		if err := add(contracts.EntityOrders, outcomeClean, rec.Key(), nil, rec); err != nil {
			return nil, err
		}
	}
	for i := range out.Orders.Quarantine {
		rec := &out.Orders.Quarantine[i]
		if err := add(contracts.EntityOrders, outcomeQuarantine, rec.Key(), rec.RejectReason, rec); err != nil {
			return nil, err
		}
	}

	return rows, nil
}

// SaveReport upserts the validation report of one date
func (r *Repository) SaveReport(ctx context.Context, report *contracts.ValidationReport) error {
	payload, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshal validation report: %w", err)
	}

	query := `
		INSERT INTO dq.validation_reports (ingest_date, run_id, report)
		VALUES ($1::date, $2, $3)
		ON CONFLICT (ingest_date) DO UPDATE SET
			run_id = EXCLUDED.run_id,
			report = EXCLUDED.report,
			updated_at = NOW()
	`

	if _, err := r.pool.Exec(ctx, query, report.IngestDate, report.RunID, payload); err != nil {
		return fmt.Errorf("save validation report: %w", err)
	}
	return nil
}

// GetReport retrieves the validation report of one date
func (r *Repository) GetReport(ctx context.Context, ingestDate string) (*contracts.ValidationReport, error) {
	var payload []byte
	err := r.pool.QueryRow(ctx,
		`SELECT report FROM dq.validation_reports WHERE ingest_date = $1::date`, ingestDate,
	).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrReportNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get validation report: %w", err)
	}

	report := &contracts.ValidationReport{}
	if err := json.Unmarshal(payload, report); err != nil {
		return nil, fmt.Errorf("decode validation report: %w", err)
	}
	return report, nil
}
