package contracts

// QuarantinedCustomer is a customer row that failed validation
type QuarantinedCustomer struct {
	CustomerRecord
	RejectReason Reasons `json:"reject_reason"`
}

// QuarantinedEvent is an event row that failed validation
type QuarantinedEvent struct {
	EventRecord
	RejectReason Reasons `json:"reject_reason"`
}

// QuarantinedOrder is an order row that failed validation
type QuarantinedOrder struct {
	OrderRecord
	RejectReason Reasons `json:"reject_reason"`
}

// ValidationStats summarizes one entity's validation split.
// Duplicates holds rows-involved counts keyed by "full_row" and the business key.
type ValidationStats struct {
	Total      int            `json:"total"`
	Clean      int            `json:"clean"`
	Quarantine int            `json:"quarantine"`
	ByReason   map[string]int `json:"by_reason"`
	Duplicates map[string]int `json:"duplicates"`
}

// QuarantineRate returns quarantine/total (0 when empty)
func (s ValidationStats) QuarantineRate() float64 {
	if s.Total == 0 {
		return 0.0
	}
	return float64(s.Quarantine) / float64(s.Total)
}

// CustomerOutcome is the customers validation result
type CustomerOutcome struct {
	Clean      []CustomerRecord      `json:"clean"`
	Quarantine []QuarantinedCustomer `json:"quarantine"`
	Stats      ValidationStats       `json:"stats"`
}

// CleanKeys returns the set of clean customer ids
// ⭐ SSOT: events/orders orphan 판정 기준
func (o *CustomerOutcome) CleanKeys() map[string]struct{} {
	keys := make(map[string]struct{}, len(o.Clean))
	for i := range o.Clean {
		if o.Clean[i].CustomerID != "" {
			keys[o.Clean[i].CustomerID] = struct{}{}
		}
	}
	return keys
}

// EventOutcome is the events validation result
type EventOutcome struct {
	Clean      []EventRecord      `json:"clean"`
	Quarantine []QuarantinedEvent `json:"quarantine"`
	Stats      ValidationStats    `json:"stats"`
}

// OrderOutcome is the orders validation result
type OrderOutcome struct {
	Clean      []OrderRecord      `json:"clean"`
	Quarantine []QuarantinedOrder `json:"quarantine"`
	Stats      ValidationStats    `json:"stats"`
}

// DedupReport counts rows removed by the deduplicator for one entity
type DedupReport struct {
	Input              int `json:"input"`
	Output             int `json:"output"`
	FullRowDropped     int `json:"full_row_dropped"`
	BusinessKeyDropped int `json:"business_key_dropped"`
}

// ValidationReport is the per-partition validation summary written next to the outputs
type ValidationReport struct {
	IngestDate string                 `json:"ingest_date"`
	RunID      string                 `json:"run_id,omitempty"`
	Customers  ValidationStats        `json:"customers"`
	Events     ValidationStats        `json:"events"`
	Orders     ValidationStats        `json:"orders"`
	Dedup      map[Entity]DedupReport `json:"dedup,omitempty"`
}
