package contracts

import (
	"encoding/json"
	"strings"
)

// ReasonCode is a machine-readable validation rule code
type ReasonCode string

// ReasonDelimiter joins reason codes in the serialized reject_reason
const ReasonDelimiter = "|"

// Rule codes
const (
	// shared
	ReasonMissingCustomerID  ReasonCode = "missing_customer_id"
	ReasonOrphanCustomerID   ReasonCode = "orphan_customer_id"
	ReasonMissingIngestDate  ReasonCode = "missing_ingest_date"
	ReasonIngestDateMismatch ReasonCode = "ingest_date_mismatch"

	// customers
	ReasonInvalidCustomerID   ReasonCode = "invalid_customer_id"
	ReasonMissingCreatedAt    ReasonCode = "missing_created_at"
	ReasonCreatedAtOutOfRange ReasonCode = "created_at_out_of_range"
	ReasonMissingEmail        ReasonCode = "missing_email"
	ReasonInvalidEmail        ReasonCode = "invalid_email"
	ReasonInvalidStatus       ReasonCode = "invalid_status"
	ReasonInvalidCountry      ReasonCode = "invalid_country"

	// events
	ReasonMissingEventID     ReasonCode = "missing_event_id"
	ReasonMissingEventType   ReasonCode = "missing_event_type"
	ReasonMissingPlatform    ReasonCode = "missing_platform"
	ReasonInvalidEventTime   ReasonCode = "invalid_event_time"
	ReasonNegativeDuration   ReasonCode = "negative_duration"
	ReasonDurationExceedsMax ReasonCode = "duration_exceeds_max"

	// orders
	ReasonMissingOrderID               ReasonCode = "missing_order_id"
	ReasonInvalidOrderTime             ReasonCode = "invalid_order_time"
	ReasonUnknownCurrency              ReasonCode = "unknown_currency"
	ReasonMissingAmount                ReasonCode = "missing_amount"
	ReasonNegativeAmount               ReasonCode = "negative_amount"
	ReasonPaidRequiresPositiveAmount   ReasonCode = "paid_requires_positive_amount"
	ReasonFailedShouldNotHavePositive  ReasonCode = "failed_should_not_have_positive_amount"
	ReasonRefundRequiresPositiveAmount ReasonCode = "refund_requires_positive_amount"
	ReasonMissingStatus                ReasonCode = "missing_status"
)

// MissingRequiredColumns builds the batch-level reason for structurally absent columns
func MissingRequiredColumns(columns []string) ReasonCode {
	return ReasonCode("missing_required_columns:" + strings.Join(columns, ","))
}

// Reasons is an ordered set of reason codes attached to one record.
// Serialized as a single "|"-joined string.
type Reasons []ReasonCode

// Add appends the code unless it is already present
func (r Reasons) Add(code ReasonCode) Reasons {
	for _, c := range r {
		if c == code {
			return r
		}
	}
	return append(r, code)
}

// Has reports whether the code is present
func (r Reasons) Has(code ReasonCode) bool {
	for _, c := range r {
		if c == code {
			return true
		}
	}
	return false
}

// Empty reports whether no rule fired
func (r Reasons) Empty() bool {
	return len(r) == 0
}

// String joins the codes with ReasonDelimiter
func (r Reasons) String() string {
	parts := make([]string, len(r))
	for i, c := range r {
		parts[i] = string(c)
	}
	return strings.Join(parts, ReasonDelimiter)
}

// MarshalJSON encodes the reasons as the joined reject_reason string
func (r Reasons) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.String())
}

// UnmarshalJSON decodes a joined reject_reason string
func (r *Reasons) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*r = ParseReasons(s)
	return nil
}

// ParseReasons splits a serialized reject_reason
func ParseReasons(s string) Reasons {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ReasonDelimiter)
	out := make(Reasons, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			out = out.Add(ReasonCode(p))
		}
	}
	return out
}
