package s1_clean

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock() time.Time {
	return time.Date(2025, 12, 15, 12, 0, 0, 0, time.UTC)
}

func newTestNormalizer() *Normalizer {
	return NewNormalizer(DefaultTables(), WithClock(fixedClock))
}

func TestIsValidEmail(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"a@x.com", true},
		{"  a@x.com  ", true},
		{"a@x", false},
		{"a x@y.com", false},
		{"@x.com", false},
		{"", false},
		{"nan", false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, IsValidEmail(tt.in), "input %q", tt.in)
	}
}

func TestNormalizer_Currency(t *testing.T) {
	n := newTestNormalizer()

	assert.Equal(t, "USD", n.Currency("$"))
	assert.Equal(t, "USD", n.Currency(" usd "))
	assert.Equal(t, "USD", n.Currency("US $"))
	assert.Equal(t, "EUR", n.Currency("EUR"))
	assert.Equal(t, "EUR", n.Currency("€"))
	assert.Equal(t, "EUR", n.Currency("â‚¬"))
	assert.Equal(t, "", n.Currency("bitcoin"))
	assert.Equal(t, "", n.Currency("???"))
	assert.Equal(t, "", n.Currency(""))
}

func TestNormalizer_PlatformAndOrderStatus(t *testing.T) {
	n := newTestNormalizer()

	assert.Equal(t, "ios", n.Platform("iPhone"))
	assert.Equal(t, "android", n.Platform(" AND "))
	assert.Equal(t, "web", n.Platform("browser"))
	assert.Equal(t, "", n.Platform("windows"))

	assert.Equal(t, "paid", n.OrderStatus("Succeeded"))
	assert.Equal(t, "chargeback", n.OrderStatus("CHARGEBACK"))
	assert.Equal(t, "", n.OrderStatus("pending"))
}

func TestNormalizer_Country(t *testing.T) {
	n := newTestNormalizer()

	assert.Equal(t, "US", n.Country("United States"))
	assert.Equal(t, "US", n.Country(" usa "))
	assert.Equal(t, "GB", n.Country("UK"))
	assert.Equal(t, "IN", n.Country("India"))
	assert.Equal(t, "", n.Country("N/A"))
	assert.Equal(t, "", n.Country(""))
	assert.Equal(t, "", n.Country("Mars"))
}

func TestNormalizer_CustomerStatus(t *testing.T) {
	n := newTestNormalizer()

	tests := []struct {
		in   string
		want string
	}{
		{"Active", "active"},
		{"  INACTIVE ", "inactive"},
		{"actve", "active"},     // 1 edit / 6 → 0.83
		{"inactve", "inactive"}, // 1 edit / 8 → 0.875
		{"banned!", "banned"},   // 1 edit / 7 → 0.86
		{"enabled", ""},
		{"", ""},
		{"none", ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, n.CustomerStatus(tt.in))
		})
	}
}

func TestNormalizer_CustomerStatus_CustomThreshold(t *testing.T) {
	tables := DefaultTables()
	tables.StatusThreshold = 0.5
	n := NewNormalizer(tables, WithClock(fixedClock))

	// "act" vs "active": 3 edits / 6 → 0.5
	assert.Equal(t, "active", n.CustomerStatus("act"))
}

func TestSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, Similarity("active", "active"), 1e-9)
	assert.InDelta(t, 1.0, Similarity("", ""), 1e-9)
	assert.InDelta(t, 0.0, Similarity("abc", ""), 1e-9)
	assert.InDelta(t, 5.0/6.0, Similarity("activ", "active"), 1e-9)
}

func TestNormalizeCustomerID(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"C12345", "c12345"},
		{" c00001 ", "c00001"},
		{"order ref c99999 xyz", "c99999"},
		{"CUST-C55555", "c55555"},
		{"12345", ""},
		{"c1234", ""},
		{"null", ""},
		{"N/A", ""},
		{"NaN", ""},
		{"", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeCustomerID(tt.in), "input %q", tt.in)
	}
}

func TestNormalizer_ParseTimestamp(t *testing.T) {
	n := newTestNormalizer()

	tests := []struct {
		name string
		in   string
		want *time.Time
	}{
		{"offset converted to UTC", "2025-12-10T10:00:00-05:00", ptrTime(2025, 12, 10, 15, 0, 0)},
		{"zulu", "2025-12-10T10:00:00Z", ptrTime(2025, 12, 10, 10, 0, 0)},
		{"naive is UTC", "2025-12-10 10:00:00", ptrTime(2025, 12, 10, 10, 0, 0)},
		{"yyyymmdd", "20250110", ptrTime(2025, 1, 10, 0, 0, 0)},
		{"invalid calendar date", "20251301", nil},
		{"short numeric ambiguous", "202512", nil},
		{"nine digits ambiguous", "123456789", nil},
		{"epoch seconds", "1765360800", ptrTime(2025, 12, 10, 10, 0, 0)},
		{"garbage", "not-a-date", nil},
		{"blank", "   ", nil},
		{"year too old", "1850-01-01T00:00:00Z", nil},
		{"year too far ahead", "2099-01-01T00:00:00Z", nil},
		{"next year allowed", "2026-06-01T00:00:00Z", ptrTime(2026, 6, 1, 0, 0, 0)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := n.ParseTimestamp(tt.in)
			if tt.want == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.True(t, tt.want.Equal(*got), "want %s got %s", tt.want, got)
			assert.Equal(t, time.UTC, got.Location())
		})
	}
}

func TestNormalizer_ParseTimestamp_EpochMillis(t *testing.T) {
	n := newTestNormalizer()

	got := n.ParseTimestamp("1765360800123")
	require.NotNil(t, got)
	assert.Equal(t, 2025, got.Year())
	assert.Equal(t, 10, got.Hour())
	assert.Equal(t, 123*int(time.Millisecond), got.Nanosecond())
}

func TestSafeFloat(t *testing.T) {
	tests := []struct {
		in   string
		want *float64
	}{
		{"12.5", ptrFloat(12.5)},
		{"  -3 ", ptrFloat(-3)},
		{"1e3", ptrFloat(1000)},
		{"", nil},
		{"   ", nil},
		{"NaN", nil},
		{"abc", nil},
		{"12,5", nil},
	}

	for _, tt := range tests {
		got := SafeFloat(tt.in)
		if tt.want == nil {
			assert.Nil(t, got, "input %q", tt.in)
			continue
		}
		require.NotNil(t, got, "input %q", tt.in)
		assert.InDelta(t, *tt.want, *got, 1e-9)
	}
}

func ptrTime(y int, m time.Month, d, h, min, s int) *time.Time {
	t := time.Date(y, m, d, h, min, s, 0, time.UTC)
	return &t
}

func ptrFloat(f float64) *float64 {
	return &f
}
