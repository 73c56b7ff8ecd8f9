package s3_metrics

import (
	"github.com/wonny/dqpipe/backend/internal/contracts"
	"github.com/wonny/dqpipe/backend/internal/s1_clean"
)

// NullLabel replaces null values in categorical breakdowns
const NullLabel = "NULL"

// DailyInput is everything one daily metrics row is computed from.
//
// Pre* are the pre-validation batches (cleaned, before dedup). When nil,
// clean+quarantine of the matching outcome is used instead.
type DailyInput struct {
	IngestDate string

	Customers *contracts.CustomerOutcome
	Events    *contracts.EventOutcome
	Orders    *contracts.OrderOutcome

	PreCustomers []contracts.CustomerRecord
	PreEvents    []contracts.EventRecord
	PreOrders    []contracts.OrderRecord
}

// ComputeDailyMetrics aggregates one partition into exactly one DailyMetrics row.
// Nil outcomes are treated as empty batches; no rate is ever NaN.
func ComputeDailyMetrics(in DailyInput) *contracts.DailyMetrics {
	customers := in.Customers
	if customers == nil {
		customers = &contracts.CustomerOutcome{}
	}
	events := in.Events
	if events == nil {
		events = &contracts.EventOutcome{}
	}
	orders := in.Orders
	if orders == nil {
		orders = &contracts.OrderOutcome{}
	}

	preCustomers := in.PreCustomers
	if preCustomers == nil {
		preCustomers = allCustomers(customers)
	}
	preEvents := in.PreEvents
	if preEvents == nil {
		preEvents = allEvents(events)
	}
	preOrders := in.PreOrders
	if preOrders == nil {
		preOrders = allOrders(orders)
	}

	m := &contracts.DailyMetrics{
		IngestDate: in.IngestDate,

		CustomersClean:      len(customers.Clean),
		CustomersQuarantine: len(customers.Quarantine),
		EventsClean:         len(events.Clean),
		EventsQuarantine:    len(events.Quarantine),
		OrdersClean:         len(orders.Clean),
		OrdersQuarantine:    len(orders.Quarantine),
	}
	m.CustomersTotal = m.CustomersClean + m.CustomersQuarantine
	m.EventsTotal = m.EventsClean + m.EventsQuarantine
	m.OrdersTotal = m.OrdersClean + m.OrdersQuarantine

	// 1. Active customers
	m.ActiveCustomersEvents = distinctCustomers(len(events.Clean), func(i int) string { return events.Clean[i].CustomerID })
	m.ActiveCustomersOrders = distinctCustomers(len(orders.Clean), func(i int) string { return orders.Clean[i].CustomerID })

	// 2. Quarantine rates
	m.QuarantineRateCustomers = rate(m.CustomersQuarantine, m.CustomersTotal)
	m.QuarantineRateEvents = rate(m.EventsQuarantine, m.EventsTotal)
	m.QuarantineRateOrders = rate(m.OrdersQuarantine, m.OrdersTotal)

	// 3. Invalid timestamps (pre-validation)
	nullEventTimes := 0
	for i := range preEvents {
		if preEvents[i].EventTimeUTC == nil {
			nullEventTimes++
		}
	}
	m.InvalidEventTimestampRate = rate(nullEventTimes, len(preEvents))

	nullOrderTimes := 0
	for i := range preOrders {
		if preOrders[i].OrderTimeUTC == nil {
			nullOrderTimes++
		}
	}
	m.InvalidOrderTimestampRate = rate(nullOrderTimes, len(preOrders))

	// 4. Orphans (clean rows vs clean customer keys)
	keys := customers.CleanKeys()
	m.OrphanRateEvents = orphanRate(keys, len(events.Clean), func(i int) string { return events.Clean[i].CustomerID })
	m.OrphanRateOrders = orphanRate(keys, len(orders.Clean), func(i int) string { return orders.Clean[i].CustomerID })

	// 5. Duplicates (pre-validation)
	cd := s1_clean.CountCustomerDuplicates(preCustomers)
	m.CustomerIDDuplicateRate = rate(cd.BusinessKey, len(preCustomers))
	m.CustomerFullRowDuplicateRate = rate(cd.FullRow, len(preCustomers))

	ed := s1_clean.CountEventDuplicates(preEvents)
	m.EventIDDuplicateRate = rate(ed.BusinessKey, len(preEvents))
	m.EventFullRowDuplicateRate = rate(ed.FullRow, len(preEvents))

	od := s1_clean.CountOrderDuplicates(preOrders)
	m.OrderIDDuplicateRate = rate(od.BusinessKey, len(preOrders))
	m.OrderFullRowDuplicateRate = rate(od.FullRow, len(preOrders))

	// 6. Null rates (pre-validation)
	nullEmail, nullCountry := 0, 0
	for i := range preCustomers {
		if !contracts.IsPresentText(preCustomers[i].Email) {
			nullEmail++
		}
		if preCustomers[i].Country == "" {
			nullCountry++
		}
	}
	m.NullRateCustomerEmail = rate(nullEmail, len(preCustomers))
	m.NullRateCustomerCountry = rate(nullCountry, len(preCustomers))

	nullAmount, nullCurrency := 0, 0
	for i := range preOrders {
		if preOrders[i].Amount == nil {
			nullAmount++
		}
		if preOrders[i].Currency == "" {
			nullCurrency++
		}
	}
	m.NullRateOrderAmount = rate(nullAmount, len(preOrders))
	m.NullRateOrderCurrency = rate(nullCurrency, len(preOrders))

	// 7. Percentiles (clean rows)
	durations := make([]float64, 0, len(events.Clean))
	for i := range events.Clean {
		if d := events.Clean[i].DurationMs; d != nil {
			durations = append(durations, *d)
		}
	}
	m.DurationMsP50 = Percentile(durations, 50)
	m.DurationMsP95 = Percentile(durations, 95)

	amounts := make([]float64, 0, len(orders.Clean))
	for i := range orders.Clean {
		if a := orders.Clean[i].Amount; a != nil {
			amounts = append(amounts, *a)
		}
	}
	m.AmountP50 = Percentile(amounts, 50)
	m.AmountP95 = Percentile(amounts, 95)

	// 8. Breakdowns (clean rows)
	m.EventsByEventType = valueCounts(len(events.Clean), func(i int) string { return events.Clean[i].EventType })
	m.EventsByPlatform = valueCounts(len(events.Clean), func(i int) string { return events.Clean[i].Platform })
	m.OrdersByStatus = valueCounts(len(orders.Clean), func(i int) string { return orders.Clean[i].Status })

	return m
}

func distinctCustomers(n int, customerID func(int) string) int {
	seen := make(map[string]struct{}, n)
	for i := 0; i < n; i++ {
		if id := customerID(i); id != "" {
			seen[id] = struct{}{}
		}
	}
	return len(seen)
}

// orphanRate: no rows → 0.0, rows but no clean customers → 1.0
func orphanRate(keys map[string]struct{}, n int, customerID func(int) string) float64 {
	if n == 0 {
		return 0.0
	}
	if len(keys) == 0 {
		return 1.0
	}
	orphans := 0
	for i := 0; i < n; i++ {
		if _, ok := keys[customerID(i)]; !ok {
			orphans++
		}
	}
	return rate(orphans, n)
}

func valueCounts(n int, value func(int) string) map[string]int {
	counts := make(map[string]int)
	for i := 0; i < n; i++ {
		v := value(i)
		if !contracts.IsPresentText(v) {
			v = NullLabel
		}
		counts[v]++
	}
	return counts
}

func allCustomers(o *contracts.CustomerOutcome) []contracts.CustomerRecord {
	out := make([]contracts.CustomerRecord, 0, len(o.Clean)+len(o.Quarantine))
	out = append(out, o.Clean...)
	for i := range o.Quarantine {
		out = append(out, o.Quarantine[i].CustomerRecord)
	}
	return out
}

func allEvents(o *contracts.EventOutcome) []contracts.EventRecord {
	out := make([]contracts.EventRecord, 0, len(o.Clean)+len(o.Quarantine))
	out = append(out, o.Clean...)
	for i := range o.Quarantine {
		out = append(out, o.Quarantine[i].EventRecord)
	}
	return out
}

func allOrders(o *contracts.OrderOutcome) []contracts.OrderRecord {
	out := make([]contracts.OrderRecord, 0, len(o.Clean)+len(o.Quarantine))
	out = append(out, o.Clean...)
	for i := range o.Quarantine {
		out = append(out, o.Quarantine[i].OrderRecord)
	}
	return out
}
