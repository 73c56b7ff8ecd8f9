package rulesconfig

import (
	"fmt"
	"strings"
)

// ValidationError 검증 실패 (프로그램 중단)
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Warning 권장 위반 (경고만)
type Warning struct {
	Code    string
	Message string
}

// Validate checks all required constraints
// 실패 시 error 반환 (프로그램 중단)
func Validate(cfg *Config) error {
	// === Normalization ===
	tables := []struct {
		field string
		table map[string]string
	}{
		{"normalization.currency", cfg.Normalization.Currency},
		{"normalization.platform", cfg.Normalization.Platform},
		{"normalization.country", cfg.Normalization.Country},
		{"normalization.order_status", cfg.Normalization.OrderStatus},
	}
	for _, t := range tables {
		if err := validateTable(t.table, t.field); err != nil {
			return err
		}
	}

	if len(cfg.Normalization.CustomerStatuses) == 0 {
		return ValidationError{"normalization.customer_statuses", "must not be empty"}
	}
	seen := make(map[string]struct{}, len(cfg.Normalization.CustomerStatuses))
	for i, s := range cfg.Normalization.CustomerStatuses {
		if strings.TrimSpace(s) == "" || s != strings.ToLower(s) {
			return ValidationError{
				Field:   fmt.Sprintf("normalization.customer_statuses[%d]", i),
				Message: "must be a non-empty lower-case label",
			}
		}
		if _, dup := seen[s]; dup {
			return ValidationError{
				Field:   fmt.Sprintf("normalization.customer_statuses[%d]", i),
				Message: fmt.Sprintf("duplicate label %q", s),
			}
		}
		seen[s] = struct{}{}
	}

	if err := validatePctRange(cfg.Normalization.StatusThreshold, "normalization.status_threshold"); err != nil {
		return err
	}

	// === Timestamps ===
	if cfg.Timestamps.MinYear < 1 {
		return ValidationError{"timestamps.min_year", "must be >= 1"}
	}
	if cfg.Timestamps.MaxYearAhead < 0 {
		return ValidationError{"timestamps.max_year_ahead", "must be >= 0"}
	}

	// === Validation ===
	if cfg.Validation.MaxDurationMs <= 0 {
		return ValidationError{"validation.max_duration_ms", "must be > 0"}
	}

	// === Alerts ===
	if cfg.Alerts.MissingHoursThreshold < 0 {
		return ValidationError{"alerts.missing_hours_threshold", "must be >= 0"}
	}
	if cfg.Alerts.TrailingDays < 1 {
		return ValidationError{"alerts.trailing_days", "must be >= 1"}
	}
	if err := validatePctRange(cfg.Alerts.VolumeDropPct, "alerts.volume_drop_pct"); err != nil {
		return err
	}
	if cfg.Alerts.ExpectedHours < 1 || cfg.Alerts.ExpectedHours > 24 {
		return ValidationError{"alerts.expected_hours", "must be in range [1, 24]"}
	}

	return nil
}

// Warn checks recommended constraints (non-fatal)
func Warn(cfg *Config) []Warning {
	var warnings []Warning

	// fuzzy 매칭이 너무 느슨하면 오타가 아닌 값도 label 로 흡수됨
	if cfg.Normalization.StatusThreshold < 0.6 {
		warnings = append(warnings, Warning{
			Code:    "LOOSE_STATUS_MATCH",
			Message: "status_threshold < 0.6: unrelated values may map onto a status label",
		})
	}

	if cfg.Alerts.MissingHoursThreshold >= cfg.Alerts.ExpectedHours {
		warnings = append(warnings, Warning{
			Code:    "HOUR_COVERAGE_DISABLED",
			Message: "missing_hours_threshold >= expected_hours: the medium coverage flag can never fire",
		})
	}

	if cfg.Alerts.TrailingDays < 3 {
		warnings = append(warnings, Warning{
			Code:    "SHORT_TRAILING_WINDOW",
			Message: "trailing_days < 3: the median is dominated by single days",
		})
	}

	return warnings
}

// === Helper Functions ===

func validateTable(table map[string]string, field string) error {
	if len(table) == 0 {
		return ValidationError{field, "must not be empty"}
	}
	for k, v := range table {
		if strings.TrimSpace(k) == "" {
			return ValidationError{field, "empty key"}
		}
		if strings.TrimSpace(v) == "" {
			return ValidationError{field, fmt.Sprintf("empty value for %q", k)}
		}
	}
	return nil
}

// validatePctRange는 비율 값이 0~1 범위인지 검증
func validatePctRange(pct float64, field string) error {
	if pct < 0 || pct > 1 {
		return ValidationError{field, "must be in range [0, 1]"}
	}
	return nil
}
