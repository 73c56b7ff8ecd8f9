package s1_clean

import "github.com/wonny/dqpipe/backend/internal/contracts"

// DuplicateCounts counts rows involved in duplicate groups.
// A group of n >= 2 identical values contributes n (not n-1).
type DuplicateCounts struct {
	FullRow     int
	BusinessKey int
}

// CountCustomerDuplicates counts full-row and customer_id duplicates
func CountCustomerDuplicates(rows []contracts.CustomerRecord) DuplicateCounts {
	fps := make([]string, len(rows))
	keys := make([]string, len(rows))
	for i := range rows {
		fps[i] = rows[i].Fingerprint()
		keys[i] = rows[i].CustomerID
	}
	return DuplicateCounts{FullRow: rowsInvolved(fps), BusinessKey: rowsInvolved(keys)}
}

// CountEventDuplicates counts full-row and event_id duplicates
func CountEventDuplicates(rows []contracts.EventRecord) DuplicateCounts {
	fps := make([]string, len(rows))
	keys := make([]string, len(rows))
	for i := range rows {
		fps[i] = rows[i].Fingerprint()
		keys[i] = presentOrEmpty(rows[i].EventID)
	}
	return DuplicateCounts{FullRow: rowsInvolved(fps), BusinessKey: rowsInvolved(keys)}
}

// CountOrderDuplicates counts full-row and order_id duplicates
func CountOrderDuplicates(rows []contracts.OrderRecord) DuplicateCounts {
	fps := make([]string, len(rows))
	keys := make([]string, len(rows))
	for i := range rows {
		fps[i] = rows[i].Fingerprint()
		keys[i] = presentOrEmpty(rows[i].OrderID)
	}
	return DuplicateCounts{FullRow: rowsInvolved(fps), BusinessKey: rowsInvolved(keys)}
}

func presentOrEmpty(s string) string {
	if contracts.IsPresentText(s) {
		return s
	}
	return ""
}

// rowsInvolved ignores empty values (missing ids never form a group)
func rowsInvolved(values []string) int {
	counts := make(map[string]int, len(values))
	for _, v := range values {
		if v != "" {
			counts[v]++
		}
	}
	total := 0
	for _, n := range counts {
		if n > 1 {
			total += n
		}
	}
	return total
}
