package contracts

import "time"

// HourlyEventCount is the clean event count of one UTC hour of a partition
type HourlyEventCount struct {
	IngestDate string    `json:"ingest_date"`
	HourUTC    time.Time `json:"hour_utc"`
	EventCount int       `json:"event_count"`
}

// DailyMetrics is the single metrics row of one ingest_date
// ⭐ SSOT: ingest_date 기준 upsert (재처리 시 같은 날짜 row 교체)
type DailyMetrics struct {
	IngestDate string `json:"ingest_date"`

	// Volume
	CustomersTotal      int `json:"customers_total"`
	CustomersClean      int `json:"customers_clean"`
	CustomersQuarantine int `json:"customers_quarantine"`
	EventsTotal         int `json:"events_total"`
	EventsClean         int `json:"events_clean"`
	EventsQuarantine    int `json:"events_quarantine"`
	OrdersTotal         int `json:"orders_total"`
	OrdersClean         int `json:"orders_clean"`
	OrdersQuarantine    int `json:"orders_quarantine"`

	// Active customers
	ActiveCustomersEvents int `json:"active_customers_events"`
	ActiveCustomersOrders int `json:"active_customers_orders"`

	// Quarantine rates
	QuarantineRateCustomers float64 `json:"quarantine_rate_customers"`
	QuarantineRateEvents    float64 `json:"quarantine_rate_events"`
	QuarantineRateOrders    float64 `json:"quarantine_rate_orders"`

	// Timestamp quality
	InvalidEventTimestampRate float64 `json:"invalid_event_timestamp_rate"`
	InvalidOrderTimestampRate float64 `json:"invalid_order_timestamp_rate"`

	// Referential integrity
	OrphanRateEvents float64 `json:"orphan_rate_events"`
	OrphanRateOrders float64 `json:"orphan_rate_orders"`

	// Duplicates
	CustomerIDDuplicateRate      float64 `json:"customer_id_duplicate_rate"`
	CustomerFullRowDuplicateRate float64 `json:"customer_full_row_duplicate_rate"`
	EventIDDuplicateRate         float64 `json:"event_id_duplicate_rate"`
	EventFullRowDuplicateRate    float64 `json:"event_full_row_duplicate_rate"`
	OrderIDDuplicateRate         float64 `json:"order_id_duplicate_rate"`
	OrderFullRowDuplicateRate    float64 `json:"order_full_row_duplicate_rate"`

	// Null rates
	NullRateCustomerEmail   float64 `json:"null_rate_customer_email"`
	NullRateCustomerCountry float64 `json:"null_rate_customer_country"`
	NullRateOrderAmount     float64 `json:"null_rate_order_amount"`
	NullRateOrderCurrency   float64 `json:"null_rate_order_currency"`

	// Percentiles
	DurationMsP50 float64 `json:"duration_ms_p50"`
	DurationMsP95 float64 `json:"duration_ms_p95"`
	AmountP50     float64 `json:"amount_p50"`
	AmountP95     float64 `json:"amount_p95"`

	// Breakdowns (null → "NULL")
	EventsByEventType map[string]int `json:"events_by_event_type"`
	EventsByPlatform  map[string]int `json:"events_by_platform"`
	OrdersByStatus    map[string]int `json:"orders_by_status"`
}

// Date parses IngestDate
func (m *DailyMetrics) Date() (time.Time, error) {
	return time.Parse(DateLayout, m.IngestDate)
}
