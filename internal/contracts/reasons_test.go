package contracts

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReasons_AddKeepsOrderAndDedupes(t *testing.T) {
	var r Reasons
	r = r.Add(ReasonMissingEventID)
	r = r.Add(ReasonInvalidEventTime)
	r = r.Add(ReasonMissingEventID)

	assert.Equal(t, "missing_event_id|invalid_event_time", r.String())
	assert.True(t, r.Has(ReasonInvalidEventTime))
	assert.False(t, r.Empty())
}

func TestReasons_JSONRoundTrip(t *testing.T) {
	q := QuarantinedOrder{
		OrderRecord:  OrderRecord{OrderID: "o1"},
		RejectReason: Reasons{ReasonUnknownCurrency, ReasonMissingStatus},
	}

	data, err := json.Marshal(q)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"reject_reason":"unknown_currency|missing_status"`)
	assert.Contains(t, string(data), `"order_id":"o1"`)

	var back QuarantinedOrder
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, q.RejectReason, back.RejectReason)
}

func TestMissingRequiredColumns(t *testing.T) {
	code := MissingRequiredColumns([]string{"event_id", "platform"})
	assert.Equal(t, ReasonCode("missing_required_columns:event_id,platform"), code)
}

func TestSchema_Missing(t *testing.T) {
	s := Schema{"event_id", "customer_id", "event_type"}
	assert.Equal(t, []string{"event_time_utc", "platform"}, s.Missing(EventRequiredColumns))
	assert.Empty(t, EventColumns.Missing(EventRequiredColumns))
}

func TestIsPresentText(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"", false},
		{"   ", false},
		{"nan", false},
		{"NaN", false},
		{" None ", false},
		{"NULL", false},
		{"click", true},
		{"0", true},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, IsPresentText(tt.in), "input %q", tt.in)
	}
}

func TestFingerprint_DistinguishesNullFromValue(t *testing.T) {
	ts := time.Date(2025, 12, 10, 1, 0, 0, 0, time.UTC)
	zero := 0.0

	a := EventRecord{EventID: "e1", EventTimeUTC: &ts}
	b := EventRecord{EventID: "e1", EventTimeUTC: &ts, DurationMs: &zero}
	c := EventRecord{EventID: "e1", EventTimeUTC: &ts}

	assert.NotEqual(t, a.Fingerprint(), b.Fingerprint())
	assert.Equal(t, a.Fingerprint(), c.Fingerprint())
}

func TestFingerprint_ExtrasOrderIndependent(t *testing.T) {
	a := CustomerRecord{CustomerID: "c00001", Extra: map[string]string{"created_at": "x", "note": "y"}}
	b := CustomerRecord{CustomerID: "c00001", Extra: map[string]string{"note": "y", "created_at": "x"}}

	assert.Equal(t, a.Fingerprint(), b.Fingerprint())
}

func TestAlert_MaxSeverity(t *testing.T) {
	a := NewAlert("2025-12-10")
	assert.False(t, a.HasFlags())
	assert.Equal(t, Severity(""), a.MaxSeverity())

	a.Flags = append(a.Flags, AlertFlag{Type: FlagMissingHourCoverage, Severity: SeverityMedium})
	assert.Equal(t, SeverityMedium, a.MaxSeverity())

	a.Flags = append(a.Flags, AlertFlag{Type: FlagVolumeDropVsTrailingMedian, Severity: SeverityHigh})
	assert.Equal(t, SeverityHigh, a.MaxSeverity())
	assert.True(t, a.HasFlag(FlagVolumeDropVsTrailingMedian))
}

func TestDateRange(t *testing.T) {
	dates, err := DateRange("2025-12-30", "2026-01-02")
	require.NoError(t, err)
	assert.Equal(t, []string{"2025-12-30", "2025-12-31", "2026-01-01", "2026-01-02"}, dates)

	single, err := DateRange("2025-12-10", "2025-12-10")
	require.NoError(t, err)
	assert.Equal(t, []string{"2025-12-10"}, single)

	_, err = DateRange("2025-12-10", "2025-12-09")
	assert.ErrorIs(t, err, ErrInvalidDate)

	_, err = ParseIngestDate("2025-13-01")
	assert.ErrorIs(t, err, ErrInvalidDate)
}
