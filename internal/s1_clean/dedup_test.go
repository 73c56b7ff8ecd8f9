package s1_clean

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/dqpipe/backend/internal/contracts"
)

func ts(h int) *time.Time {
	t := time.Date(2025, 12, 10, h, 0, 0, 0, time.UTC)
	return &t
}

func f64(v float64) *float64 { return &v }

func TestDedupEvents_FullRowDuplicates(t *testing.T) {
	row := contracts.EventRecord{EventID: "e1", CustomerID: "c00001", EventTimeUTC: ts(1), EventType: "click", Platform: "ios"}
	out, report := DedupEvents([]contracts.EventRecord{row, row, row})

	require.Len(t, out, 1)
	assert.Equal(t, 3, report.Input)
	assert.Equal(t, 2, report.FullRowDropped)
	assert.Equal(t, 0, report.BusinessKeyDropped)
	assert.Equal(t, 1, report.Output)
}

func TestDedupEvents_PrefersMostCompleteRow(t *testing.T) {
	rows := []contracts.EventRecord{
		// most complete, earlier time
		{EventID: "e1", CustomerID: "c00001", EventTimeUTC: ts(1), EventType: "click", Platform: "ios", SessionID: "s1", DurationMs: f64(10)},
		// later time but missing platform → loses on has_platform
		{EventID: "e1", CustomerID: "c00001", EventTimeUTC: ts(5), EventType: "click", SessionID: "s1", DurationMs: f64(10)},
		// no timestamp → loses on has_event_time
		{EventID: "e1", CustomerID: "c00001", EventType: "click", Platform: "ios", SessionID: "s1", DurationMs: f64(10)},
	}

	out, report := DedupEvents(rows)
	require.Len(t, out, 1)
	assert.Equal(t, "ios", out[0].Platform)
	assert.True(t, ts(1).Equal(*out[0].EventTimeUTC))
	assert.Equal(t, 2, report.BusinessKeyDropped)
}

func TestDedupEvents_LatestTimestampWinsOnEqualFlags(t *testing.T) {
	rows := []contracts.EventRecord{
		{EventID: "e1", CustomerID: "c00001", EventTimeUTC: ts(7), EventType: "view", Platform: "web"},
		{EventID: "e1", CustomerID: "c00001", EventTimeUTC: ts(3), EventType: "view", Platform: "web"},
	}

	out, _ := DedupEvents(rows)
	require.Len(t, out, 1)
	assert.Equal(t, 7, out[0].EventTimeUTC.Hour())
}

func TestDedupEvents_NullTokensAreNotPresent(t *testing.T) {
	rows := []contracts.EventRecord{
		{EventID: "e1", EventTimeUTC: ts(2), EventType: "click", SessionID: "s9"},
		{EventID: "e1", EventTimeUTC: ts(2), EventType: "click", SessionID: "null"},
	}

	out, _ := DedupEvents(rows)
	require.Len(t, out, 1)
	assert.Equal(t, "s9", out[0].SessionID)
}

func TestDedupEvents_OrderIndependent(t *testing.T) {
	rows := []contracts.EventRecord{
		{EventID: "e1", CustomerID: "c00001", EventTimeUTC: ts(1), EventType: "click", Platform: "ios", SessionID: "a"},
		{EventID: "e1", CustomerID: "c00001", EventTimeUTC: ts(1), EventType: "click", Platform: "ios", SessionID: "b"},
		{EventID: "e2", CustomerID: "c00002", EventTimeUTC: ts(2), EventType: "view", Platform: "web"},
		{EventID: "e2", CustomerID: "c00002", EventTimeUTC: ts(4), EventType: "view", Platform: "web"},
		{EventID: "", CustomerID: "c00003", EventType: "view"},
		{EventID: "nan", CustomerID: "c00004", EventType: "view"},
	}

	want, _ := DedupEvents(rows)

	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 20; i++ {
		shuffled := append([]contracts.EventRecord(nil), rows...)
		rng.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })

		got, _ := DedupEvents(shuffled)
		assert.Equal(t, want, got)
	}
}

func TestDedupEvents_KeylessRowsKept(t *testing.T) {
	rows := []contracts.EventRecord{
		{EventID: "", CustomerID: "c00001", EventType: "click"},
		{EventID: "", CustomerID: "c00002", EventType: "click"},
		{EventID: "NaN", CustomerID: "c00003", EventType: "view"},
	}

	out, report := DedupEvents(rows)
	assert.Len(t, out, 3)
	assert.Equal(t, 0, report.BusinessKeyDropped)
}

func TestDedupEvents_Idempotent(t *testing.T) {
	rows := []contracts.EventRecord{
		{EventID: "e1", EventTimeUTC: ts(1), EventType: "click"},
		{EventID: "e1", EventTimeUTC: ts(2), EventType: "click"},
		{EventID: "e2", EventType: "view"},
		{EventID: "e2", EventType: "view"},
	}

	once, _ := DedupEvents(rows)
	twice, report := DedupEvents(once)

	assert.Equal(t, once, twice)
	assert.Equal(t, 0, report.FullRowDropped)
	assert.Equal(t, 0, report.BusinessKeyDropped)
}

func TestDedupOrders_Ranking(t *testing.T) {
	rows := []contracts.OrderRecord{
		{OrderID: "o1", CustomerID: "c00001", OrderTimeUTC: ts(9), Currency: "USD", Status: "paid"},
		{OrderID: "o1", CustomerID: "c00001", OrderTimeUTC: ts(1), Amount: f64(10), Currency: "USD", Status: "paid"},
	}

	out, _ := DedupOrders(rows)
	require.Len(t, out, 1)
	require.NotNil(t, out[0].Amount, "has_amount outranks a later order_time")
	assert.Equal(t, 10.0, *out[0].Amount)
}

func TestDedupCustomers_Ranking(t *testing.T) {
	rows := []contracts.CustomerRecord{
		{CustomerID: "c00001", CreatedAtUTC: ts(5), Email: "bad", EmailValid: false},
		{CustomerID: "c00001", CreatedAtUTC: ts(5), Email: "a@x.com", EmailValid: true},
		{CustomerID: "c00001", Email: "b@x.com", EmailValid: true},
		{CustomerID: "c00002", CreatedAtUTC: ts(1)},
	}

	out, report := DedupCustomers(rows)
	require.Len(t, out, 2)
	assert.Equal(t, "c00001", out[0].CustomerID)
	assert.Equal(t, "a@x.com", out[0].Email)
	assert.Equal(t, "c00002", out[1].CustomerID)
	assert.Equal(t, 2, report.BusinessKeyDropped)
}

func TestCountEventDuplicates(t *testing.T) {
	row := contracts.EventRecord{EventID: "e1", EventType: "click"}
	rows := []contracts.EventRecord{
		row, row, // full-row group of 2
		{EventID: "e1", EventType: "view"}, // same id → id group of 3
		{EventID: "e2"},
		{EventID: ""}, {EventID: ""}, // missing ids never grouped
	}

	got := CountEventDuplicates(rows)
	assert.Equal(t, 2+2, got.FullRow, "two identical e1 rows + two identical blank rows")
	assert.Equal(t, 3, got.BusinessKey)
}
