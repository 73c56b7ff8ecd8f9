package s1_clean

import (
	"strings"

	"github.com/wonny/dqpipe/backend/internal/contracts"
)

// Cleaner converts raw batches into typed records (S1)
// ⭐ SSOT: raw → typed 변환은 여기서만
type Cleaner struct {
	norm *Normalizer
}

// NewCleaner creates a cleaner using the given normalizer
func NewCleaner(norm *Normalizer) *Cleaner {
	return &Cleaner{norm: norm}
}

// Normalizer returns the underlying normalizer
func (c *Cleaner) Normalizer() *Normalizer {
	return c.norm
}

// columnMap describes how a cleaned column derives from the raw header
type columnMap struct {
	cleaned string
	raw     string
}

var (
	customerColumnMap = []columnMap{
		{"customer_id", "customer_id"},
		{"email", "email"},
		{"email_valid", "email"},
		{"created_at_utc", "created_at"},
		{"country", "country"},
		{"status", "status"},
	}
	eventColumnMap = []columnMap{
		{"event_id", "event_id"},
		{"customer_id", "customer_id"},
		{"event_time_utc", "event_time"},
		{"event_type", "event_type"},
		{"platform", "platform"},
		{"session_id", "session_id"},
		{"duration_ms", "duration_ms"},
	}
	orderColumnMap = []columnMap{
		{"order_id", "order_id"},
		{"customer_id", "customer_id"},
		{"order_time_utc", "order_time"},
		{"amount", "amount"},
		{"currency", "currency"},
		{"status", "status"},
	}
)

// Raw columns replaced in place by their cleaned value.
// 나머지 raw 컬럼 (event_time 원문 등)은 Extra 로 보존 → full-row 비교에 포함.
var (
	customerReplaced = []string{"customer_id", "email", "country", "status", "ingest_date"}
	eventReplaced    = []string{"event_id", "customer_id", "event_type", "platform", "session_id", "duration_ms", "ingest_date"}
	orderReplaced    = []string{"order_id", "customer_id", "amount", "currency", "status", "ingest_date"}
)

// schemaFor lists cleaned columns derivable from the raw header.
// ingest_date is always present (stamped when the source lacks it).
func schemaFor(raw *contracts.RawBatch, mapping []columnMap) contracts.Schema {
	schema := make(contracts.Schema, 0, len(mapping)+1)
	for _, m := range mapping {
		if raw.HasColumn(m.raw) {
			schema = append(schema, m.cleaned)
		}
	}
	return append(schema, "ingest_date")
}

// Customers cleans a raw customers batch
func (c *Cleaner) Customers(raw *contracts.RawBatch, ingestDate string) *contracts.CustomerBatch {
	batch := &contracts.CustomerBatch{
		Schema:  schemaFor(raw, customerColumnMap),
		Records: make([]contracts.CustomerRecord, 0, raw.Len()),
	}
	hasIngest := raw.HasColumn("ingest_date")

	for _, r := range raw.Records {
		email := strings.TrimSpace(r["email"])
		rec := contracts.CustomerRecord{
			CustomerID:   NormalizeCustomerID(r["customer_id"]),
			Email:        email,
			EmailValid:   IsValidEmail(email),
			CreatedAtUTC: c.norm.ParseTimestamp(r["created_at"]),
			Country:      c.norm.Country(r["country"]),
			Status:       c.norm.CustomerStatus(r["status"]),
			IngestDate:   ingestDateOf(r, hasIngest, ingestDate),
			Extra:        extras(raw, r, customerReplaced),
		}
		batch.Records = append(batch.Records, rec)
	}

	return batch
}

// Events cleans a raw events batch
func (c *Cleaner) Events(raw *contracts.RawBatch, ingestDate string) *contracts.EventBatch {
	batch := &contracts.EventBatch{
		Schema:  schemaFor(raw, eventColumnMap),
		Records: make([]contracts.EventRecord, 0, raw.Len()),
	}
	hasIngest := raw.HasColumn("ingest_date")

	for _, r := range raw.Records {
		rec := contracts.EventRecord{
			EventID:      strings.TrimSpace(r["event_id"]),
			CustomerID:   NormalizeCustomerID(r["customer_id"]),
			EventTimeUTC: c.norm.ParseTimestamp(r["event_time"]),
			EventType:    strings.ToLower(strings.TrimSpace(r["event_type"])),
			Platform:     c.norm.Platform(r["platform"]),
			SessionID:    strings.TrimSpace(r["session_id"]),
			DurationMs:   SafeFloat(r["duration_ms"]),
			IngestDate:   ingestDateOf(r, hasIngest, ingestDate),
			Extra:        extras(raw, r, eventReplaced),
		}
		batch.Records = append(batch.Records, rec)
	}

	return batch
}

// Orders cleans a raw orders batch
func (c *Cleaner) Orders(raw *contracts.RawBatch, ingestDate string) *contracts.OrderBatch {
	batch := &contracts.OrderBatch{
		Schema:  schemaFor(raw, orderColumnMap),
		Records: make([]contracts.OrderRecord, 0, raw.Len()),
	}
	hasIngest := raw.HasColumn("ingest_date")

	for _, r := range raw.Records {
		rec := contracts.OrderRecord{
			OrderID:      strings.TrimSpace(r["order_id"]),
			CustomerID:   NormalizeCustomerID(r["customer_id"]),
			OrderTimeUTC: c.norm.ParseTimestamp(r["order_time"]),
			Amount:       SafeFloat(r["amount"]),
			Currency:     c.norm.Currency(r["currency"]),
			Status:       c.norm.OrderStatus(r["status"]),
			IngestDate:   ingestDateOf(r, hasIngest, ingestDate),
			Extra:        extras(raw, r, orderReplaced),
		}
		batch.Records = append(batch.Records, rec)
	}

	return batch
}

// ingestDateOf keeps the source value when the batch carries the column
// (so ingest_date_mismatch can fire) and stamps the partition date otherwise.
func ingestDateOf(r contracts.RawRecord, hasColumn bool, partition string) string {
	if hasColumn {
		return strings.TrimSpace(r["ingest_date"])
	}
	return partition
}

func extras(raw *contracts.RawBatch, r contracts.RawRecord, replaced []string) map[string]string {
	var out map[string]string
	for _, col := range raw.Columns {
		if contains(replaced, col) {
			continue
		}
		v, ok := r.Get(col)
		if !ok {
			continue
		}
		if out == nil {
			out = make(map[string]string)
		}
		out[col] = v
	}
	return out
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
