package contracts

import (
	"sort"
	"strconv"
	"strings"
	"time"
)

// RawRecord is one untyped source row (column → cell text).
// A column absent from the map, or an empty cell, is null.
type RawRecord map[string]string

// Get returns the cell value and whether it is non-null
func (r RawRecord) Get(column string) (string, bool) {
	v, ok := r[column]
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// RawBatch is a raw partition file for one entity
type RawBatch struct {
	Entity  Entity      `json:"entity"`
	Columns []string    `json:"columns"`
	Records []RawRecord `json:"records"`
}

// HasColumn reports whether the source header carries the column
func (b *RawBatch) HasColumn(column string) bool {
	for _, c := range b.Columns {
		if c == column {
			return true
		}
	}
	return false
}

// Len returns the number of raw records
func (b *RawBatch) Len() int {
	return len(b.Records)
}

// Schema lists the columns structurally present in a cleaned batch
type Schema []string

// Has reports whether the column is present
func (s Schema) Has(column string) bool {
	for _, c := range s {
		if c == column {
			return true
		}
	}
	return false
}

// Missing returns the required columns absent from the schema, in required order
func (s Schema) Missing(required []string) []string {
	missing := make([]string, 0)
	for _, c := range required {
		if !s.Has(c) {
			missing = append(missing, c)
		}
	}
	return missing
}

// IsPresentText reports whether a text value counts as present:
// not blank and not one of the literal null tokens nan/none/null.
func IsPresentText(s string) bool {
	t := strings.ToLower(strings.TrimSpace(s))
	switch t {
	case "", "nan", "none", "null":
		return false
	}
	return true
}

// ============================================================================
// Cleaned records
// ============================================================================
// 텍스트 필드는 "" 가 null. 타임스탬프/숫자는 nil 이 null.

// CustomerRecord is a normalized customer row
type CustomerRecord struct {
	CustomerID   string            `json:"customer_id"`
	Email        string            `json:"email"`
	EmailValid   bool              `json:"email_valid"`
	CreatedAtUTC *time.Time        `json:"created_at_utc"`
	Country      string            `json:"country"`
	Status       string            `json:"status"`
	IngestDate   string            `json:"ingest_date"`
	Extra        map[string]string `json:"extra,omitempty"`
}

// Key returns the business key
func (c *CustomerRecord) Key() string { return c.CustomerID }

// Fingerprint identifies the full row (all fields, including extras)
func (c *CustomerRecord) Fingerprint() string {
	var f fingerprint
	f.str(c.CustomerID)
	f.str(c.Email)
	f.str(strconv.FormatBool(c.EmailValid))
	f.ts(c.CreatedAtUTC)
	f.str(c.Country)
	f.str(c.Status)
	f.str(c.IngestDate)
	f.extra(c.Extra)
	return f.String()
}

// EventRecord is a normalized event row
type EventRecord struct {
	EventID      string            `json:"event_id"`
	CustomerID   string            `json:"customer_id"`
	EventTimeUTC *time.Time        `json:"event_time_utc"`
	EventType    string            `json:"event_type"`
	Platform     string            `json:"platform"`
	SessionID    string            `json:"session_id"`
	DurationMs   *float64          `json:"duration_ms"`
	IngestDate   string            `json:"ingest_date"`
	Extra        map[string]string `json:"extra,omitempty"`
}

// Key returns the business key
func (e *EventRecord) Key() string { return e.EventID }

// Fingerprint identifies the full row (all fields, including extras)
func (e *EventRecord) Fingerprint() string {
	var f fingerprint
	f.str(e.EventID)
	f.str(e.CustomerID)
	f.ts(e.EventTimeUTC)
	f.str(e.EventType)
	f.str(e.Platform)
	f.str(e.SessionID)
	f.num(e.DurationMs)
	f.str(e.IngestDate)
	f.extra(e.Extra)
	return f.String()
}

// OrderRecord is a normalized order row
type OrderRecord struct {
	OrderID      string            `json:"order_id"`
	CustomerID   string            `json:"customer_id"`
	OrderTimeUTC *time.Time        `json:"order_time_utc"`
	Amount       *float64          `json:"amount"`
	Currency     string            `json:"currency"`
	Status       string            `json:"status"`
	IngestDate   string            `json:"ingest_date"`
	Extra        map[string]string `json:"extra,omitempty"`
}

// Key returns the business key
func (o *OrderRecord) Key() string { return o.OrderID }

// Fingerprint identifies the full row (all fields, including extras)
func (o *OrderRecord) Fingerprint() string {
	var f fingerprint
	f.str(o.OrderID)
	f.str(o.CustomerID)
	f.ts(o.OrderTimeUTC)
	f.num(o.Amount)
	f.str(o.Currency)
	f.str(o.Status)
	f.str(o.IngestDate)
	f.extra(o.Extra)
	return f.String()
}

// ============================================================================
// Batches
// ============================================================================

// CustomerBatch is a cleaned customers batch
type CustomerBatch struct {
	Schema  Schema           `json:"schema"`
	Records []CustomerRecord `json:"records"`
}

// EventBatch is a cleaned events batch
type EventBatch struct {
	Schema  Schema        `json:"schema"`
	Records []EventRecord `json:"records"`
}

// OrderBatch is a cleaned orders batch
type OrderBatch struct {
	Schema  Schema        `json:"schema"`
	Records []OrderRecord `json:"records"`
}

// Cleaned column names (schema of the typed batches)
var (
	CustomerColumns = Schema{"customer_id", "email", "email_valid", "created_at_utc", "country", "status", "ingest_date"}
	EventColumns    = Schema{"event_id", "customer_id", "event_time_utc", "event_type", "platform", "session_id", "duration_ms", "ingest_date"}
	OrderColumns    = Schema{"order_id", "customer_id", "order_time_utc", "amount", "currency", "status", "ingest_date"}
)

// Required columns; absence quarantines the whole batch
var (
	EventRequiredColumns = []string{"event_id", "customer_id", "event_time_utc", "event_type", "platform"}
	OrderRequiredColumns = []string{"order_id", "customer_id", "order_time_utc", "amount", "currency", "status"}
)

// ============================================================================
// fingerprint
// ============================================================================

const (
	fieldSep = "\x1f"
	nullMark = "\x00"
)

type fingerprint struct {
	b strings.Builder
}

func (f *fingerprint) str(s string) {
	f.b.WriteString(s)
	f.b.WriteString(fieldSep)
}

func (f *fingerprint) ts(t *time.Time) {
	if t == nil {
		f.str(nullMark)
		return
	}
	f.str(t.UTC().Format(time.RFC3339Nano))
}

func (f *fingerprint) num(v *float64) {
	if v == nil {
		f.str(nullMark)
		return
	}
	f.str(strconv.FormatFloat(*v, 'g', -1, 64))
}

func (f *fingerprint) extra(m map[string]string) {
	if len(m) == 0 {
		return
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		f.str(k + "=" + m[k])
	}
}

func (f *fingerprint) String() string {
	return f.b.String()
}
