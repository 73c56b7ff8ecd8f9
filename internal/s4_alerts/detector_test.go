package s4_alerts

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/dqpipe/backend/internal/contracts"
)

const day = "2025-12-10"

func hours(date string, n int, count int) []contracts.HourlyEventCount {
	base, _ := time.Parse(contracts.DateLayout, date)
	rows := make([]contracts.HourlyEventCount, 0, n)
	for h := 0; h < n; h++ {
		rows = append(rows, contracts.HourlyEventCount{
			IngestDate: date,
			HourUTC:    base.Add(time.Duration(h) * time.Hour),
			EventCount: count,
		})
	}
	return rows
}

func history(pairs ...interface{}) []contracts.DailyMetrics {
	out := make([]contracts.DailyMetrics, 0, len(pairs)/2)
	for i := 0; i < len(pairs); i += 2 {
		out = append(out, contracts.DailyMetrics{
			IngestDate:  pairs[i].(string),
			EventsClean: pairs[i+1].(int),
		})
	}
	return out
}

func TestDetectPartialLoad_MissingHours(t *testing.T) {
	alert := DetectPartialLoad(day, hours(day, 2, 50), nil, DefaultConfig())

	require.Len(t, alert.Flags, 1)
	flag := alert.Flags[0]
	assert.Equal(t, contracts.FlagMissingHourCoverage, flag.Type)
	assert.Equal(t, contracts.SeverityMedium, flag.Severity)
	assert.Equal(t, 22, flag.Details["missing_hours"])
	assert.Equal(t, 0, flag.Details["zero_hours"])
	assert.Equal(t, 22, flag.Details["total_bad_hours"])
}

func TestDetectPartialLoad_EmptyHourly(t *testing.T) {
	alert := DetectPartialLoad(day, nil, nil, DefaultConfig())

	require.Len(t, alert.Flags, 1)
	assert.Equal(t, contracts.SeverityHigh, alert.Flags[0].Severity)
	assert.Equal(t, 24, alert.Flags[0].Details["missing_hours"])
}

func TestDetectPartialLoad_NoRowsForDate(t *testing.T) {
	alert := DetectPartialLoad(day, hours("2025-12-09", 24, 10), nil, DefaultConfig())

	require.Len(t, alert.Flags, 1)
	assert.Equal(t, contracts.SeverityHigh, alert.Flags[0].Severity)
	assert.Equal(t, "no hourly rows found for ingest_date", alert.Flags[0].Details["reason"])
}

func TestDetectPartialLoad_ZeroHoursCount(t *testing.T) {
	rows := hours(day, 24, 10)
	for i := 0; i < 5; i++ {
		rows[i].EventCount = 0
	}

	alert := DetectPartialLoad(day, rows, nil, DefaultConfig())
	require.Len(t, alert.Flags, 1)
	assert.Equal(t, 5, alert.Flags[0].Details["zero_hours"])

	// exactly at the threshold: no flag
	rows[4].EventCount = 3
	alert = DetectPartialLoad(day, rows, nil, DefaultConfig())
	assert.Empty(t, alert.Flags)
}

func TestDetectPartialLoad_VolumeDrop(t *testing.T) {
	hist := history("2025-12-09", 1000, day, 100)

	alert := DetectPartialLoad(day, hours(day, 24, 4), hist, DefaultConfig())

	require.Len(t, alert.Flags, 1)
	flag := alert.Flags[0]
	assert.Equal(t, contracts.FlagVolumeDropVsTrailingMedian, flag.Type)
	assert.Equal(t, contracts.SeverityHigh, flag.Severity)
	assert.Equal(t, 1, flag.Details["trailing_days_used"])
	assert.InDelta(t, 1000.0, flag.Details["trailing_median_events_clean"], 1e-9)
	assert.InDelta(t, 0.9, flag.Details["drop_ratio"], 1e-9)
	assert.InDelta(t, 100.0, flag.Details["today_events_clean"], 1e-9)
}

func TestDetectPartialLoad_Stable(t *testing.T) {
	hist := history(
		"2025-12-07", 1000,
		"2025-12-08", 1100,
		"2025-12-09", 950,
		day, 1020,
	)

	alert := DetectPartialLoad(day, hours(day, 24, 42), hist, DefaultConfig())
	assert.NotNil(t, alert.Flags)
	assert.Empty(t, alert.Flags)
	assert.False(t, alert.HasFlags())
}

func TestDetectPartialLoad_BothFlags(t *testing.T) {
	hist := history("2025-12-09", 1000, day, 10)

	alert := DetectPartialLoad(day, hours(day, 3, 3), hist, DefaultConfig())
	require.Len(t, alert.Flags, 2)
	assert.True(t, alert.HasFlag(contracts.FlagMissingHourCoverage))
	assert.True(t, alert.HasFlag(contracts.FlagVolumeDropVsTrailingMedian))
	assert.Equal(t, contracts.SeverityHigh, alert.MaxSeverity())
}

func TestDetectPartialLoad_VolumeDropPreconditions(t *testing.T) {
	cfg := DefaultConfig()
	full := hours(day, 24, 10)

	tests := []struct {
		name string
		hist []contracts.DailyMetrics
	}{
		{"no history", nil},
		{"today missing", history("2025-12-08", 1000, "2025-12-09", 1000)},
		{"no prior days", history(day, 1)},
		{"zero median", history("2025-12-09", 0, day, 0)},
		{"later days ignored", history(day, 900, "2025-12-11", 100000)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			alert := DetectPartialLoad(day, full, tt.hist, cfg)
			assert.Empty(t, alert.Flags)
		})
	}
}

func TestDetectPartialLoad_TrailingWindowTruncated(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TrailingDays = 2

	// unsorted on purpose; only the 2 most recent prior days count (median 100)
	hist := history(
		"2025-12-09", 100,
		"2025-12-01", 5000,
		"2025-12-08", 100,
		"2025-12-02", 5000,
		day, 80,
	)

	alert := DetectPartialLoad(day, hours(day, 24, 10), hist, cfg)
	assert.Empty(t, alert.Flags, "a 20 percent drop vs the 2-day window is below threshold")
}
