package rulesconfig

import (
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	path := "../../rules/default.yaml"
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Skip("rules file not found")
	}

	cfg, yamlData, err := Load(path, nil)
	require.NoError(t, err)
	assert.NotEmpty(t, yamlData)

	assert.Equal(t, "default", cfg.Meta.RulesID)
	// merged: file keys added, built-in keys kept
	assert.Equal(t, "EUR", cfg.Normalization.Currency["euro"])
	assert.Equal(t, "USD", cfg.Normalization.Currency["$"])
	assert.Equal(t, "DE", cfg.Normalization.Country["DEUTSCHLAND"])

	hash, err := Hash(cfg)
	require.NoError(t, err)
	assert.Len(t, hash, 64)
}

func TestLoad_NoPath(t *testing.T) {
	cfg, data, err := Load("", nil)
	require.NoError(t, err)
	assert.Nil(t, data)
	assert.Equal(t, "builtin", cfg.Meta.RulesID)
}

func TestParse_UnknownFieldFails(t *testing.T) {
	_, err := Parse([]byte("alerts:\n  trailng_days: 3\n"), Default())
	assert.Error(t, err)
}

func TestParse_DoesNotMutateBase(t *testing.T) {
	base := Default()
	_, err := Parse([]byte("normalization:\n  currency:\n    \"yen\": JPY\n"), base)
	require.NoError(t, err)

	_, ok := base.Normalization.Currency["yen"]
	assert.False(t, ok)
}

func TestParse_OverridesScalars(t *testing.T) {
	cfg, err := Parse([]byte("alerts:\n  trailing_days: 14\n  volume_drop_pct: 0.3\n"), Default())
	require.NoError(t, err)

	alerts := cfg.AlertConfig()
	assert.Equal(t, 14, alerts.TrailingDays)
	assert.Equal(t, 0.3, alerts.VolumeDropPct)
	assert.Equal(t, 24, alerts.ExpectedHours, "untouched fields keep the base value")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"empty currency table", func(c *Config) { c.Normalization.Currency = map[string]string{} }, "normalization.currency"},
		{"blank mapping value", func(c *Config) { c.Normalization.Platform["x"] = " " }, "normalization.platform"},
		{"no statuses", func(c *Config) { c.Normalization.CustomerStatuses = nil }, "normalization.customer_statuses"},
		{"upper-case status", func(c *Config) { c.Normalization.CustomerStatuses = []string{"Active"} }, "normalization.customer_statuses[0]"},
		{"duplicate status", func(c *Config) { c.Normalization.CustomerStatuses = []string{"a", "a"} }, "normalization.customer_statuses[1]"},
		{"threshold above 1", func(c *Config) { c.Normalization.StatusThreshold = 1.5 }, "normalization.status_threshold"},
		{"zero duration cap", func(c *Config) { c.Validation.MaxDurationMs = 0 }, "validation.max_duration_ms"},
		{"no trailing days", func(c *Config) { c.Alerts.TrailingDays = 0 }, "alerts.trailing_days"},
		{"negative drop pct", func(c *Config) { c.Alerts.VolumeDropPct = -0.1 }, "alerts.volume_drop_pct"},
		{"25 expected hours", func(c *Config) { c.Alerts.ExpectedHours = 25 }, "alerts.expected_hours"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			err := Validate(cfg)
			var verr ValidationError
			require.True(t, errors.As(err, &verr), "expected ValidationError, got %v", err)
			assert.Equal(t, tt.field, verr.Field)
		})
	}

	assert.NoError(t, Validate(Default()))
}

func TestWarn(t *testing.T) {
	assert.Empty(t, Warn(Default()))

	cfg := Default()
	cfg.Normalization.StatusThreshold = 0.4
	cfg.Alerts.MissingHoursThreshold = 24
	cfg.Alerts.TrailingDays = 2

	codes := make([]string, 0)
	for _, w := range Warn(cfg) {
		codes = append(codes, w.Code)
	}
	assert.Equal(t, []string{"LOOSE_STATUS_MATCH", "HOUR_COVERAGE_DISABLED", "SHORT_TRAILING_WINDOW"}, codes)
}

func TestHash_Deterministic(t *testing.T) {
	a, err := Hash(Default())
	require.NoError(t, err)
	b, err := Hash(Default())
	require.NoError(t, err)
	assert.Equal(t, a, b)

	cfg := Default()
	cfg.Alerts.TrailingDays = 8
	c, err := Hash(cfg)
	require.NoError(t, err)
	assert.NotEqual(t, a, c)
}

func TestMappings(t *testing.T) {
	cfg := Default()

	tables := cfg.Tables()
	assert.Equal(t, cfg.Normalization.StatusThreshold, tables.StatusThreshold)
	assert.Equal(t, 1900, tables.MinYear)

	quality := cfg.QualityConfig()
	assert.Equal(t, float64(86_400_000), quality.MaxDurationMs)
	assert.Equal(t, []string{"active", "inactive", "banned"}, quality.CustomerStatuses)
}
