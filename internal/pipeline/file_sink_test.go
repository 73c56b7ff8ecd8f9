package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/dqpipe/backend/internal/contracts"
)

func TestFileSink_DailyMetricsHistory(t *testing.T) {
	ctx := context.Background()
	sink := NewFileSink(t.TempDir(), t.TempDir())

	for _, d := range []string{"2025-12-10", "2025-12-08", "2025-12-09", "2025-12-11"} {
		require.NoError(t, sink.UpsertDailyMetrics(ctx, &contracts.DailyMetrics{IngestDate: d, EventsClean: 1}))
	}
	require.NoError(t, sink.UpsertDailyMetrics(ctx, &contracts.DailyMetrics{IngestDate: "2025-12-09", EventsClean: 9}))

	hist, err := sink.DailyMetricsHistory(ctx, "2025-12-10", 2)
	require.NoError(t, err)
	require.Len(t, hist, 2)
	assert.Equal(t, "2025-12-09", hist[0].IngestDate)
	assert.Equal(t, 9, hist[0].EventsClean)
	assert.Equal(t, "2025-12-10", hist[1].IngestDate)

	all, err := sink.DailyMetricsHistory(ctx, "2025-12-31", 0)
	require.NoError(t, err)
	assert.Len(t, all, 4)
}

func TestFileSink_NotFound(t *testing.T) {
	ctx := context.Background()
	sink := NewFileSink(t.TempDir(), t.TempDir())

	_, err := sink.GetDailyMetrics(ctx, day)
	assert.ErrorIs(t, err, contracts.ErrNotFound)
	_, err = sink.GetAlert(ctx, day)
	assert.ErrorIs(t, err, contracts.ErrNotFound)
	_, err = sink.GetValidationReport(ctx, day)
	assert.ErrorIs(t, err, contracts.ErrNotFound)

	hourly, err := sink.GetHourly(ctx, day)
	require.NoError(t, err)
	assert.Empty(t, hourly)
}

func TestFileSink_ReplaceHourly(t *testing.T) {
	ctx := context.Background()
	sink := NewFileSink(t.TempDir(), t.TempDir())
	hour := func(d string, h int) time.Time {
		t0, _ := time.Parse(contracts.DateLayout, d)
		return t0.Add(time.Duration(h) * time.Hour)
	}

	require.NoError(t, sink.ReplaceHourly(ctx, "2025-12-09", []contracts.HourlyEventCount{
		{IngestDate: "2025-12-09", HourUTC: hour("2025-12-09", 1), EventCount: 5},
	}))
	require.NoError(t, sink.ReplaceHourly(ctx, day, []contracts.HourlyEventCount{
		{IngestDate: day, HourUTC: hour(day, 1), EventCount: 1},
		{IngestDate: day, HourUTC: hour(day, 2), EventCount: 2},
	}))
	require.NoError(t, sink.ReplaceHourly(ctx, day, []contracts.HourlyEventCount{
		{IngestDate: day, HourUTC: hour(day, 3), EventCount: 3},
	}))

	rows, err := sink.GetHourly(ctx, day)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 3, rows[0].EventCount)

	other, err := sink.GetHourly(ctx, "2025-12-09")
	require.NoError(t, err)
	assert.Len(t, other, 1, "other dates untouched")
}

func TestFileSink_Runs(t *testing.T) {
	ctx := context.Background()
	sink := NewFileSink(t.TempDir(), t.TempDir())
	base := time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		require.NoError(t, sink.RecordRun(ctx, &contracts.RunSummary{
			RunID:      string(rune('a' + i)),
			IngestDate: day,
			Status:     contracts.RunSuccess,
			StartedAt:  base.AddDate(0, 0, i),
		}))
	}

	runs, err := sink.ListRuns(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "e", runs[0].RunID, "newest first")

	removed, err := sink.PruneRuns(ctx, base.AddDate(0, 0, 3))
	require.NoError(t, err)
	assert.Equal(t, int64(3), removed)

	runs, err = sink.ListRuns(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, runs, 2)
}

func TestMetrics_ObserveRun(t *testing.T) {
	m, err := NewMetrics()
	require.NoError(t, err)

	start := time.Date(2025, 12, 11, 1, 0, 0, 0, time.UTC)
	m.observeRun(&contracts.RunSummary{
		Status: contracts.RunSuccess,
		Counts: map[contracts.Entity]contracts.EntityCounts{
			contracts.EntityEvents: {Clean: 3, Quarantine: 1},
		},
		StartedAt:  start,
		FinishedAt: start.Add(2 * time.Second),
	})
	m.observeAlert(&contracts.Alert{Flags: []contracts.AlertFlag{
		{Type: contracts.FlagMissingHourCoverage, Severity: contracts.SeverityMedium},
	}})

	assert.Equal(t, 1.0, testutil.ToFloat64(m.runsTotal.WithLabelValues("success")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.recordsTotal.WithLabelValues("events", "clean")))
	assert.Equal(t, 0.25, testutil.ToFloat64(m.quarantineRate.WithLabelValues("events")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.alertFlagsTotal.WithLabelValues(contracts.FlagMissingHourCoverage, "medium")))
	assert.Equal(t, float64(start.Add(2*time.Second).Unix()), testutil.ToFloat64(m.lastSuccess))

	// nil metrics are a no-op
	var none *Metrics
	none.observeRun(&contracts.RunSummary{})
}
