package rulesconfig

import (
	"github.com/wonny/dqpipe/backend/internal/s1_clean"
	"github.com/wonny/dqpipe/backend/internal/s2_quality"
	"github.com/wonny/dqpipe/backend/internal/s4_alerts"
)

// Config는 데이터 품질 파이프라인의 전체 룰 설정
// 정규화 테이블 / 검증 임계값 / 알림 휴리스틱을 한 파일에서 관리
type Config struct {
	Meta          Meta          `yaml:"meta" json:"meta"`
	Normalization Normalization `yaml:"normalization" json:"normalization"`
	Timestamps    Timestamps    `yaml:"timestamps" json:"timestamps"`
	Validation    Validation    `yaml:"validation" json:"validation"`
	Alerts        Alerts        `yaml:"alerts" json:"alerts"`
}

// Meta 메타 정보
type Meta struct {
	RulesID string `yaml:"rules_id" json:"rules_id"`
	Version string `yaml:"version" json:"version"`
}

// Normalization S1: canonicalization tables
type Normalization struct {
	Currency         map[string]string `yaml:"currency" json:"currency"`
	Platform         map[string]string `yaml:"platform" json:"platform"`
	Country          map[string]string `yaml:"country" json:"country"`
	OrderStatus      map[string]string `yaml:"order_status" json:"order_status"`
	CustomerStatuses []string          `yaml:"customer_statuses" json:"customer_statuses"`
	StatusThreshold  float64           `yaml:"status_threshold" json:"status_threshold"`
}

// Timestamps accepted year window
type Timestamps struct {
	MinYear      int `yaml:"min_year" json:"min_year"`
	MaxYearAhead int `yaml:"max_year_ahead" json:"max_year_ahead"`
}

// Validation S2 thresholds
type Validation struct {
	MaxDurationMs float64 `yaml:"max_duration_ms" json:"max_duration_ms"`
}

// Alerts S4 partial-load heuristics
type Alerts struct {
	MissingHoursThreshold int     `yaml:"missing_hours_threshold" json:"missing_hours_threshold"`
	TrailingDays          int     `yaml:"trailing_days" json:"trailing_days"`
	VolumeDropPct         float64 `yaml:"volume_drop_pct" json:"volume_drop_pct"`
	ExpectedHours         int     `yaml:"expected_hours" json:"expected_hours"`
}

// Default returns the built-in rules
func Default() *Config {
	tables := s1_clean.DefaultTables()
	validation := s2_quality.DefaultConfig()
	alerts := s4_alerts.DefaultConfig()

	return &Config{
		Meta: Meta{RulesID: "builtin", Version: "1"},
		Normalization: Normalization{
			Currency:         tables.Currency,
			Platform:         tables.Platform,
			Country:          tables.Country,
			OrderStatus:      tables.OrderStatus,
			CustomerStatuses: tables.CustomerStatuses,
			StatusThreshold:  tables.StatusThreshold,
		},
		Timestamps: Timestamps{
			MinYear:      tables.MinYear,
			MaxYearAhead: tables.MaxYearAhead,
		},
		Validation: Validation{MaxDurationMs: validation.MaxDurationMs},
		Alerts: Alerts{
			MissingHoursThreshold: alerts.MissingHoursThreshold,
			TrailingDays:          alerts.TrailingDays,
			VolumeDropPct:         alerts.VolumeDropPct,
			ExpectedHours:         alerts.ExpectedHours,
		},
	}
}

// Tables maps the normalization section onto the S1 normalizer tables
func (c *Config) Tables() s1_clean.Tables {
	return s1_clean.Tables{
		Currency:         c.Normalization.Currency,
		Platform:         c.Normalization.Platform,
		Country:          c.Normalization.Country,
		OrderStatus:      c.Normalization.OrderStatus,
		CustomerStatuses: c.Normalization.CustomerStatuses,
		StatusThreshold:  c.Normalization.StatusThreshold,
		MinYear:          c.Timestamps.MinYear,
		MaxYearAhead:     c.Timestamps.MaxYearAhead,
	}
}

// QualityConfig maps onto the S2 validator thresholds.
// 검증 허용 status 는 정규화 label 목록과 동일.
func (c *Config) QualityConfig() s2_quality.Config {
	return s2_quality.Config{
		MaxDurationMs:    c.Validation.MaxDurationMs,
		MinYear:          c.Timestamps.MinYear,
		MaxYearAhead:     c.Timestamps.MaxYearAhead,
		CustomerStatuses: c.Normalization.CustomerStatuses,
	}
}

// AlertConfig maps onto the S4 detector thresholds
func (c *Config) AlertConfig() s4_alerts.Config {
	return s4_alerts.Config{
		MissingHoursThreshold: c.Alerts.MissingHoursThreshold,
		TrailingDays:          c.Alerts.TrailingDays,
		VolumeDropPct:         c.Alerts.VolumeDropPct,
		ExpectedHours:         c.Alerts.ExpectedHours,
	}
}

// clone deep-copies the tables so decoding never mutates the base
func (c *Config) clone() *Config {
	out := *c
	out.Normalization.Currency = copyTable(c.Normalization.Currency)
	out.Normalization.Platform = copyTable(c.Normalization.Platform)
	out.Normalization.Country = copyTable(c.Normalization.Country)
	out.Normalization.OrderStatus = copyTable(c.Normalization.OrderStatus)
	out.Normalization.CustomerStatuses = append([]string(nil), c.Normalization.CustomerStatuses...)
	return &out
}

func copyTable(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
