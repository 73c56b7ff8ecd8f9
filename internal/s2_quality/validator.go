package s2_quality

import (
	"regexp"
	"strings"
	"time"

	"github.com/wonny/dqpipe/backend/internal/contracts"
	"github.com/wonny/dqpipe/backend/internal/s1_clean"
)

var customerIDFormat = regexp.MustCompile(`(?i)^c\d{5}$`)

// Config holds validation thresholds
type Config struct {
	// MaxDurationMs upper bound of events.duration_ms (24h)
	MaxDurationMs float64

	// Accepted created_at years: [MinYear, current year + MaxYearAhead]
	MinYear      int
	MaxYearAhead int

	// CustomerStatuses allowed customers.status values
	CustomerStatuses []string
}

// DefaultConfig returns the built-in validation thresholds
func DefaultConfig() Config {
	return Config{
		MaxDurationMs:    24 * 60 * 60 * 1000,
		MinYear:          1900,
		MaxYearAhead:     1,
		CustomerStatuses: []string{"active", "inactive", "banned"},
	}
}

// Validator applies per-entity rule chains and splits batches into clean/quarantine (S2)
// ⭐ SSOT: 검증 룰은 여기서만 정의
//
// 룰은 short-circuit 하지 않음: 매칭되는 모든 룰의 코드가 순서대로 누적되고,
// 코드가 하나도 없으면 CLEAN.
type Validator struct {
	cfg      Config
	statuses map[string]struct{}
	now      func() time.Time
}

// Option configures a Validator
type Option func(*Validator)

// WithClock overrides the clock used for the created_at year window
func WithClock(now func() time.Time) Option {
	return func(v *Validator) {
		v.now = now
	}
}

// NewValidator creates a validator
func NewValidator(cfg Config, opts ...Option) *Validator {
	// 설정값은 S1 정규화와 같은 lower-case 로 맞춤
	statuses := make(map[string]struct{}, len(cfg.CustomerStatuses))
	for _, s := range cfg.CustomerStatuses {
		statuses[strings.ToLower(strings.TrimSpace(s))] = struct{}{}
	}

	v := &Validator{
		cfg:      cfg,
		statuses: statuses,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// rule is one predicate of a chain
type rule[T any] struct {
	code    contracts.ReasonCode
	matches func(r *T) bool
}

// evaluate runs every rule of the chain against the record
func evaluate[T any](r *T, chain []rule[T]) contracts.Reasons {
	var reasons contracts.Reasons
	for _, ru := range chain {
		if ru.matches(r) {
			reasons = reasons.Add(ru.code)
		}
	}
	return reasons
}

// ============================================================================
// Customers
// ============================================================================

// ValidateCustomers validates customers.
// expectedDate == "" disables ingest_date_mismatch.
func (v *Validator) ValidateCustomers(batch *contracts.CustomerBatch, expectedDate string) *contracts.CustomerOutcome {
	chain := v.customerRules(batch.Schema, expectedDate)

	out := &contracts.CustomerOutcome{
		Clean:      make([]contracts.CustomerRecord, 0, len(batch.Records)),
		Quarantine: make([]contracts.QuarantinedCustomer, 0),
	}
	byReason := make(map[string]int)

	for i := range batch.Records {
		rec := batch.Records[i]
		reasons := evaluate(&rec, chain)
		if reasons.Empty() {
			out.Clean = append(out.Clean, rec)
			continue
		}
		out.Quarantine = append(out.Quarantine, contracts.QuarantinedCustomer{CustomerRecord: rec, RejectReason: reasons})
		byReason[reasons.String()]++
	}

	dups := s1_clean.CountCustomerDuplicates(batch.Records)
	out.Stats = newStats(len(batch.Records), len(out.Clean), len(out.Quarantine), byReason,
		contracts.EntityCustomers, dups)
	return out
}

func (v *Validator) customerRules(schema contracts.Schema, expectedDate string) []rule[contracts.CustomerRecord] {
	chain := []rule[contracts.CustomerRecord]{
		{contracts.ReasonMissingCustomerID, func(r *contracts.CustomerRecord) bool {
			return !contracts.IsPresentText(r.CustomerID)
		}},
		{contracts.ReasonInvalidCustomerID, func(r *contracts.CustomerRecord) bool {
			return contracts.IsPresentText(r.CustomerID) && !customerIDFormat.MatchString(strings.TrimSpace(r.CustomerID))
		}},
		{contracts.ReasonMissingCreatedAt, func(r *contracts.CustomerRecord) bool {
			return r.CreatedAtUTC == nil
		}},
		{contracts.ReasonCreatedAtOutOfRange, func(r *contracts.CustomerRecord) bool {
			return r.CreatedAtUTC != nil && !v.yearInRange(*r.CreatedAtUTC)
		}},
		{contracts.ReasonMissingEmail, func(r *contracts.CustomerRecord) bool {
			return !contracts.IsPresentText(r.Email)
		}},
		{contracts.ReasonInvalidEmail, func(r *contracts.CustomerRecord) bool {
			return contracts.IsPresentText(r.Email) && !r.EmailValid
		}},
		{contracts.ReasonInvalidStatus, func(r *contracts.CustomerRecord) bool {
			_, ok := v.statuses[r.Status]
			return !ok
		}},
		{contracts.ReasonInvalidCountry, func(r *contracts.CustomerRecord) bool {
			return r.Country == ""
		}},
	}

	if schema.Has("ingest_date") {
		chain = append(chain, ingestDateRules(expectedDate, true,
			func(r *contracts.CustomerRecord) string { return r.IngestDate })...)
	}
	return chain
}

func (v *Validator) yearInRange(t time.Time) bool {
	y := t.UTC().Year()
	return y >= v.cfg.MinYear && y <= v.now().UTC().Year()+v.cfg.MaxYearAhead
}

// ============================================================================
// Events
// ============================================================================

// ValidateEvents validates events against the clean customer key set.
// A nil key set behaves as empty: every present customer_id is an orphan.
func (v *Validator) ValidateEvents(batch *contracts.EventBatch, customers map[string]struct{}, expectedDate string) *contracts.EventOutcome {
	out := &contracts.EventOutcome{
		Clean:      make([]contracts.EventRecord, 0, len(batch.Records)),
		Quarantine: make([]contracts.QuarantinedEvent, 0),
	}

	if missing := batch.Schema.Missing(contracts.EventRequiredColumns); len(missing) > 0 {
		reasons := contracts.Reasons{contracts.MissingRequiredColumns(missing)}
		for _, rec := range batch.Records {
			out.Quarantine = append(out.Quarantine, contracts.QuarantinedEvent{EventRecord: rec, RejectReason: reasons})
		}
		out.Stats = wholeBatchStats(len(batch.Records), reasons, contracts.EntityEvents)
		return out
	}

	chain := v.eventRules(batch.Schema, customers, expectedDate)
	byReason := make(map[string]int)

	for i := range batch.Records {
		rec := batch.Records[i]
		reasons := evaluate(&rec, chain)
		if reasons.Empty() {
			out.Clean = append(out.Clean, rec)
			continue
		}
		out.Quarantine = append(out.Quarantine, contracts.QuarantinedEvent{EventRecord: rec, RejectReason: reasons})
		byReason[reasons.String()]++
	}

	dups := s1_clean.CountEventDuplicates(batch.Records)
	out.Stats = newStats(len(batch.Records), len(out.Clean), len(out.Quarantine), byReason,
		contracts.EntityEvents, dups)
	return out
}

func (v *Validator) eventRules(schema contracts.Schema, customers map[string]struct{}, expectedDate string) []rule[contracts.EventRecord] {
	chain := []rule[contracts.EventRecord]{
		{contracts.ReasonMissingEventID, func(r *contracts.EventRecord) bool {
			return !contracts.IsPresentText(r.EventID)
		}},
		{contracts.ReasonMissingCustomerID, func(r *contracts.EventRecord) bool {
			return !contracts.IsPresentText(r.CustomerID)
		}},
		{contracts.ReasonMissingEventType, func(r *contracts.EventRecord) bool {
			return !contracts.IsPresentText(r.EventType)
		}},
		{contracts.ReasonMissingPlatform, func(r *contracts.EventRecord) bool {
			return r.Platform == ""
		}},
		{contracts.ReasonInvalidEventTime, func(r *contracts.EventRecord) bool {
			return r.EventTimeUTC == nil
		}},
	}

	if schema.Has("duration_ms") {
		chain = append(chain,
			rule[contracts.EventRecord]{contracts.ReasonNegativeDuration, func(r *contracts.EventRecord) bool {
				return r.DurationMs != nil && *r.DurationMs < 0
			}},
			rule[contracts.EventRecord]{contracts.ReasonDurationExceedsMax, func(r *contracts.EventRecord) bool {
				return r.DurationMs != nil && *r.DurationMs > v.cfg.MaxDurationMs
			}},
		)
	}

	chain = append(chain, orphanRule(customers, func(r *contracts.EventRecord) string { return r.CustomerID }))

	if schema.Has("ingest_date") {
		chain = append(chain, ingestDateRules(expectedDate, false,
			func(r *contracts.EventRecord) string { return r.IngestDate })...)
	}
	return chain
}

// ============================================================================
// Orders
// ============================================================================

// ValidateOrders validates orders against the clean customer key set
func (v *Validator) ValidateOrders(batch *contracts.OrderBatch, customers map[string]struct{}, expectedDate string) *contracts.OrderOutcome {
	out := &contracts.OrderOutcome{
		Clean:      make([]contracts.OrderRecord, 0, len(batch.Records)),
		Quarantine: make([]contracts.QuarantinedOrder, 0),
	}

	if missing := batch.Schema.Missing(contracts.OrderRequiredColumns); len(missing) > 0 {
		reasons := contracts.Reasons{contracts.MissingRequiredColumns(missing)}
		for _, rec := range batch.Records {
			out.Quarantine = append(out.Quarantine, contracts.QuarantinedOrder{OrderRecord: rec, RejectReason: reasons})
		}
		out.Stats = wholeBatchStats(len(batch.Records), reasons, contracts.EntityOrders)
		return out
	}

	chain := v.orderRules(batch.Schema, customers, expectedDate)
	byReason := make(map[string]int)

	for i := range batch.Records {
		rec := batch.Records[i]
		reasons := evaluate(&rec, chain)
		if reasons.Empty() {
			out.Clean = append(out.Clean, rec)
			continue
		}
		out.Quarantine = append(out.Quarantine, contracts.QuarantinedOrder{OrderRecord: rec, RejectReason: reasons})
		byReason[reasons.String()]++
	}

	dups := s1_clean.CountOrderDuplicates(batch.Records)
	out.Stats = newStats(len(batch.Records), len(out.Clean), len(out.Quarantine), byReason,
		contracts.EntityOrders, dups)
	return out
}

func (v *Validator) orderRules(schema contracts.Schema, customers map[string]struct{}, expectedDate string) []rule[contracts.OrderRecord] {
	status := func(r *contracts.OrderRecord) string {
		return strings.ToLower(strings.TrimSpace(r.Status))
	}

	// status/amount 정책은 amount 가 있을 때만 판단
	chain := []rule[contracts.OrderRecord]{
		{contracts.ReasonMissingOrderID, func(r *contracts.OrderRecord) bool {
			return !contracts.IsPresentText(r.OrderID)
		}},
		{contracts.ReasonMissingCustomerID, func(r *contracts.OrderRecord) bool {
			return !contracts.IsPresentText(r.CustomerID)
		}},
		{contracts.ReasonInvalidOrderTime, func(r *contracts.OrderRecord) bool {
			return r.OrderTimeUTC == nil
		}},
		{contracts.ReasonUnknownCurrency, func(r *contracts.OrderRecord) bool {
			return r.Currency == ""
		}},
		{contracts.ReasonMissingAmount, func(r *contracts.OrderRecord) bool {
			return r.Amount == nil
		}},
		{contracts.ReasonNegativeAmount, func(r *contracts.OrderRecord) bool {
			return r.Amount != nil && *r.Amount < 0
		}},
		{contracts.ReasonPaidRequiresPositiveAmount, func(r *contracts.OrderRecord) bool {
			return r.Amount != nil && status(r) == "paid" && *r.Amount <= 0
		}},
		{contracts.ReasonFailedShouldNotHavePositive, func(r *contracts.OrderRecord) bool {
			return r.Amount != nil && status(r) == "failed" && *r.Amount > 0
		}},
		{contracts.ReasonRefundRequiresPositiveAmount, func(r *contracts.OrderRecord) bool {
			s := status(r)
			return r.Amount != nil && (s == "refunded" || s == "chargeback") && *r.Amount <= 0
		}},
		{contracts.ReasonMissingStatus, func(r *contracts.OrderRecord) bool {
			return !contracts.IsPresentText(r.Status)
		}},
		orphanRule(customers, func(r *contracts.OrderRecord) string { return r.CustomerID }),
	}

	if schema.Has("ingest_date") {
		chain = append(chain, ingestDateRules(expectedDate, false,
			func(r *contracts.OrderRecord) string { return r.IngestDate })...)
	}
	return chain
}

// ============================================================================
// shared rules
// ============================================================================

// orphanRule flags present customer ids missing from the clean customer set.
// A missing id is reported only by missing_customer_id.
func orphanRule[T any](customers map[string]struct{}, customerID func(*T) string) rule[T] {
	return rule[T]{contracts.ReasonOrphanCustomerID, func(r *T) bool {
		id := customerID(r)
		if !contracts.IsPresentText(id) {
			return false
		}
		_, ok := customers[strings.TrimSpace(id)]
		return !ok
	}}
}

// ingestDateRules builds the ingest_date checks.
//
// customers: missing_ingest_date always, ingest_date_mismatch only for present values.
// events/orders: a single ingest_date_mismatch (missing counts as mismatch).
// Both mismatch checks require an expected date.
func ingestDateRules[T any](expectedDate string, separateMissing bool, ingestDate func(*T) string) []rule[T] {
	rules := make([]rule[T], 0, 2)

	if separateMissing {
		rules = append(rules, rule[T]{contracts.ReasonMissingIngestDate, func(r *T) bool {
			return !contracts.IsPresentText(ingestDate(r))
		}})
	}

	if expectedDate == "" {
		return rules
	}

	rules = append(rules, rule[T]{contracts.ReasonIngestDateMismatch, func(r *T) bool {
		d := strings.TrimSpace(ingestDate(r))
		if separateMissing && !contracts.IsPresentText(d) {
			return false
		}
		return d != expectedDate
	}})
	return rules
}

// ============================================================================
// stats
// ============================================================================

func newStats(total, clean, quarantine int, byReason map[string]int, entity contracts.Entity, dups s1_clean.DuplicateCounts) contracts.ValidationStats {
	return contracts.ValidationStats{
		Total:      total,
		Clean:      clean,
		Quarantine: quarantine,
		ByReason:   byReason,
		Duplicates: map[string]int{
			"full_row":           dups.FullRow,
			entity.BusinessKey(): dups.BusinessKey,
		},
	}
}

func wholeBatchStats(total int, reasons contracts.Reasons, entity contracts.Entity) contracts.ValidationStats {
	byReason := make(map[string]int)
	if total > 0 {
		byReason[reasons.String()] = total
	}
	return newStats(total, 0, total, byReason, entity, s1_clean.DuplicateCounts{})
}
