package s1_clean

import (
	"sort"
	"strings"
	"time"

	"github.com/wonny/dqpipe/backend/internal/contracts"
)

// Deduplication (S1)
//
// Phase 1: full-row duplicates → 마지막 occurrence 유지
// Phase 2: business key 그룹별로 품질 순위가 가장 높은 row 하나만 유지
//
// 순위는 "field present" 플래그들 → timestamp 오름차순으로 비교하고 가장 뒤에 오는 row 가 승자.
// 완전 동점이면 fingerprint 로 결정 → 입력 순서와 무관하게 같은 결과.
// business key 가 없는 row 는 그룹핑하지 않고 그대로 통과 (검증 단계에서 quarantine).

// DedupCustomers collapses customers to one row per customer_id
func DedupCustomers(rows []contracts.CustomerRecord) ([]contracts.CustomerRecord, contracts.DedupReport) {
	return dedup(rows,
		func(r *contracts.CustomerRecord) string { return r.Fingerprint() },
		func(r *contracts.CustomerRecord) (string, bool) { return r.CustomerID, r.CustomerID != "" },
		compareCustomers,
	)
}

// DedupEvents collapses events to one row per event_id.
//
// Rows whose event_id is blank or a null token are each kept as-is. They are
// not collapsed into a single "missing key" group, so two keyless rows that
// differ only in payload both reach S2 and are quarantined there.
func DedupEvents(rows []contracts.EventRecord) ([]contracts.EventRecord, contracts.DedupReport) {
	return dedup(rows,
		func(r *contracts.EventRecord) string { return r.Fingerprint() },
		func(r *contracts.EventRecord) (string, bool) { return r.EventID, contracts.IsPresentText(r.EventID) },
		compareEvents,
	)
}

// DedupOrders collapses orders to one row per order_id
func DedupOrders(rows []contracts.OrderRecord) ([]contracts.OrderRecord, contracts.DedupReport) {
	return dedup(rows,
		func(r *contracts.OrderRecord) string { return r.Fingerprint() },
		func(r *contracts.OrderRecord) (string, bool) { return r.OrderID, contracts.IsPresentText(r.OrderID) },
		compareOrders,
	)
}

// compareCustomers: has_created_at, created_at_utc, email_valid
func compareCustomers(a, b *contracts.CustomerRecord) int {
	if c := compareBool(a.CreatedAtUTC != nil, b.CreatedAtUTC != nil); c != 0 {
		return c
	}
	if c := compareTime(a.CreatedAtUTC, b.CreatedAtUTC); c != 0 {
		return c
	}
	return compareBool(a.EmailValid, b.EmailValid)
}

// compareEvents: has_event_time, has_customer, has_event_type, has_platform,
// has_session, has_duration, event_time_utc
func compareEvents(a, b *contracts.EventRecord) int {
	flags := [][2]bool{
		{a.EventTimeUTC != nil, b.EventTimeUTC != nil},
		{contracts.IsPresentText(a.CustomerID), contracts.IsPresentText(b.CustomerID)},
		{contracts.IsPresentText(a.EventType), contracts.IsPresentText(b.EventType)},
		{a.Platform != "", b.Platform != ""},
		{contracts.IsPresentText(a.SessionID), contracts.IsPresentText(b.SessionID)},
		{a.DurationMs != nil, b.DurationMs != nil},
	}
	for _, f := range flags {
		if c := compareBool(f[0], f[1]); c != 0 {
			return c
		}
	}
	return compareTime(a.EventTimeUTC, b.EventTimeUTC)
}

// compareOrders: has_order_time, has_customer, has_amount, has_currency,
// has_status, order_time_utc
func compareOrders(a, b *contracts.OrderRecord) int {
	flags := [][2]bool{
		{a.OrderTimeUTC != nil, b.OrderTimeUTC != nil},
		{contracts.IsPresentText(a.CustomerID), contracts.IsPresentText(b.CustomerID)},
		{a.Amount != nil, b.Amount != nil},
		{contracts.IsPresentText(a.Currency), contracts.IsPresentText(b.Currency)},
		{contracts.IsPresentText(a.Status), contracts.IsPresentText(b.Status)},
	}
	for _, f := range flags {
		if c := compareBool(f[0], f[1]); c != 0 {
			return c
		}
	}
	return compareTime(a.OrderTimeUTC, b.OrderTimeUTC)
}

func compareBool(a, b bool) int {
	switch {
	case a == b:
		return 0
	case !a:
		return -1
	default:
		return 1
	}
}

// compareTime orders nil before any value
func compareTime(a, b *time.Time) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	case a.Before(*b):
		return -1
	case a.After(*b):
		return 1
	default:
		return 0
	}
}

type ranked[T any] struct {
	row T
	fp  string
	key string
}

func dedup[T any](
	rows []T,
	fingerprint func(*T) string,
	keyOf func(*T) (string, bool),
	compare func(a, b *T) int,
) ([]T, contracts.DedupReport) {
	report := contracts.DedupReport{Input: len(rows)}

	// Phase 1: full-row (keep last occurrence)
	lastIdx := make(map[string]int, len(rows))
	fps := make([]string, len(rows))
	for i := range rows {
		fps[i] = fingerprint(&rows[i])
		lastIdx[fps[i]] = i
	}

	unique := make([]ranked[T], 0, len(lastIdx))
	for i := range rows {
		if lastIdx[fps[i]] != i {
			continue
		}
		key, ok := keyOf(&rows[i])
		if !ok {
			key = ""
		}
		unique = append(unique, ranked[T]{row: rows[i], fp: fps[i], key: key})
	}
	report.FullRowDropped = len(rows) - len(unique)

	// Phase 2: business key (best row sorts last)
	best := make(map[string]ranked[T])
	keyless := make([]ranked[T], 0)
	for _, r := range unique {
		if r.key == "" {
			keyless = append(keyless, r)
			continue
		}
		cur, exists := best[r.key]
		if !exists || better(&r, &cur, compare) {
			best[r.key] = r
		}
	}

	keys := make([]string, 0, len(best))
	for k := range best {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	sort.Slice(keyless, func(i, j int) bool {
		return keyless[i].fp < keyless[j].fp
	})

	out := make([]T, 0, len(keys)+len(keyless))
	for _, k := range keys {
		out = append(out, best[k].row)
	}
	for _, r := range keyless {
		out = append(out, r.row)
	}

	report.Output = len(out)
	report.BusinessKeyDropped = len(unique) - len(out)
	return out, report
}

// better reports whether a outranks b
func better[T any](a, b *ranked[T], compare func(a, b *T) int) bool {
	if c := compare(&a.row, &b.row); c != 0 {
		return c > 0
	}
	return strings.Compare(a.fp, b.fp) > 0
}
