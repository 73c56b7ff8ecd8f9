package s4_alerts

import (
	"sort"

	"github.com/wonny/dqpipe/backend/internal/contracts"
	"github.com/wonny/dqpipe/backend/internal/s3_metrics"
)

// Config holds partial-load heuristic thresholds
type Config struct {
	// MissingHoursThreshold flag when zero+missing hours exceed this
	MissingHoursThreshold int

	// TrailingDays number of prior days in the median window
	TrailingDays int

	// VolumeDropPct flag when today drops more than this vs the trailing median
	VolumeDropPct float64

	// ExpectedHours hours per partition
	ExpectedHours int
}

// DefaultConfig returns the built-in thresholds
func DefaultConfig() Config {
	return Config{
		MissingHoursThreshold: 4,
		TrailingDays:          7,
		VolumeDropPct:         0.50,
		ExpectedHours:         24,
	}
}

// DetectPartialLoad evaluates both heuristics for one ingest_date (S4).
// Flags are independent and additive.
//
// ⭐ 전제조건: history 에는 오늘 row 가 이미 upsert 되어 있어야 함.
// 오늘 row 가 없으면 volume drop 은 조용히 건너뜀 (에러 아님).
func DetectPartialLoad(ingestDate string, hourly []contracts.HourlyEventCount, history []contracts.DailyMetrics, cfg Config) *contracts.Alert {
	alert := contracts.NewAlert(ingestDate)

	if flag := hourCoverage(ingestDate, hourly, cfg); flag != nil {
		alert.Flags = append(alert.Flags, *flag)
	}
	if flag := volumeDrop(ingestDate, history, cfg); flag != nil {
		alert.Flags = append(alert.Flags, *flag)
	}

	return alert
}

func hourCoverage(ingestDate string, hourly []contracts.HourlyEventCount, cfg Config) *contracts.AlertFlag {
	if len(hourly) == 0 {
		return &contracts.AlertFlag{
			Type:     contracts.FlagMissingHourCoverage,
			Severity: contracts.SeverityHigh,
			Details: map[string]interface{}{
				"reason":         "hourly_events is empty for ingest_date",
				"missing_hours":  cfg.ExpectedHours,
				"expected_hours": cfg.ExpectedHours,
			},
		}
	}

	zeroHours := 0
	present := make(map[int64]struct{})
	for _, h := range hourly {
		if h.IngestDate != ingestDate {
			continue
		}
		if h.EventCount == 0 {
			zeroHours++
		}
		present[h.HourUTC.Unix()] = struct{}{}
	}

	if len(present) == 0 {
		return &contracts.AlertFlag{
			Type:     contracts.FlagMissingHourCoverage,
			Severity: contracts.SeverityHigh,
			Details: map[string]interface{}{
				"reason":         "no hourly rows found for ingest_date",
				"missing_hours":  cfg.ExpectedHours,
				"expected_hours": cfg.ExpectedHours,
			},
		}
	}

	missingHours := cfg.ExpectedHours - len(present)
	if missingHours < 0 {
		missingHours = 0
	}

	totalBad := zeroHours + missingHours
	if totalBad <= cfg.MissingHoursThreshold {
		return nil
	}

	return &contracts.AlertFlag{
		Type:     contracts.FlagMissingHourCoverage,
		Severity: contracts.SeverityMedium,
		Details: map[string]interface{}{
			"zero_hours":      zeroHours,
			"missing_hours":   missingHours,
			"total_bad_hours": totalBad,
			"threshold":       cfg.MissingHoursThreshold,
			"expected_hours":  cfg.ExpectedHours,
		},
	}
}

func volumeDrop(ingestDate string, history []contracts.DailyMetrics, cfg Config) *contracts.AlertFlag {
	if len(history) == 0 {
		return nil
	}

	hist := make([]contracts.DailyMetrics, len(history))
	copy(hist, history)
	sort.SliceStable(hist, func(i, j int) bool {
		return hist[i].IngestDate < hist[j].IngestDate
	})

	var today *contracts.DailyMetrics
	prior := make([]float64, 0, len(hist))
	for i := range hist {
		switch {
		case hist[i].IngestDate == ingestDate:
			if today == nil {
				today = &hist[i]
			}
		case hist[i].IngestDate < ingestDate:
			prior = append(prior, float64(hist[i].EventsClean))
		}
	}

	if today == nil {
		return nil
	}

	if cfg.TrailingDays >= 0 && len(prior) > cfg.TrailingDays {
		prior = prior[len(prior)-cfg.TrailingDays:]
	}
	if len(prior) == 0 {
		return nil
	}

	median := s3_metrics.Median(prior)
	if median <= 0 {
		return nil
	}

	todayClean := float64(today.EventsClean)
	dropRatio := (median - todayClean) / median
	if dropRatio <= cfg.VolumeDropPct {
		return nil
	}

	return &contracts.AlertFlag{
		Type:     contracts.FlagVolumeDropVsTrailingMedian,
		Severity: contracts.SeverityHigh,
		Details: map[string]interface{}{
			"today_events_clean":           todayClean,
			"trailing_days_used":           len(prior),
			"trailing_median_events_clean": median,
			"drop_ratio":                   dropRatio,
			"threshold_drop_pct":           cfg.VolumeDropPct,
		},
	}
}
