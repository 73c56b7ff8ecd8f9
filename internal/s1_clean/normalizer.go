package s1_clean

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
	"github.com/araddon/dateparse"
)

var (
	emailRe          = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
	customerIDRe     = regexp.MustCompile(`^c\d{5}$`)
	customerIDSearch = regexp.MustCompile(`c\d{5}`)
	digitsRe         = regexp.MustCompile(`^\d+$`)
)

// customer_id 로 취급하지 않는 null 토큰
var nullTokens = map[string]struct{}{
	"":     {},
	"null": {},
	"none": {},
	"nan":  {},
	"n/a":  {},
	"na":   {},
}

// epoch 값이 이 이상이면 milliseconds
const epochMillisThreshold = 1_000_000_000_000

// Normalizer canonicalizes raw field values.
// Every method is total: failure yields "" (text), nil (time/number) or false.
// ⭐ SSOT: 필드 정규화는 여기서만
type Normalizer struct {
	tables Tables
	now    func() time.Time
}

// Option configures a Normalizer
type Option func(*Normalizer)

// WithClock overrides the clock used for the "current year" bound
func WithClock(now func() time.Time) Option {
	return func(n *Normalizer) {
		n.now = now
	}
}

// NewNormalizer creates a normalizer over the given tables
func NewNormalizer(tables Tables, opts ...Option) *Normalizer {
	n := &Normalizer{
		tables: tables.normalized(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Tables returns the (folded) tables in use
func (n *Normalizer) Tables() Tables {
	return n.tables
}

// IsValidEmail checks the trimmed value against a minimal address shape
func IsValidEmail(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	return emailRe.MatchString(s)
}

// Currency maps a currency spelling to its ISO code
func (n *Normalizer) Currency(s string) string {
	key := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), " ", "")
	return n.tables.Currency[key]
}

// Platform maps a platform spelling to ios/android/web
func (n *Normalizer) Platform(s string) string {
	return n.tables.Platform[strings.ToLower(strings.TrimSpace(s))]
}

// OrderStatus maps an order status spelling to its canonical value
func (n *Normalizer) OrderStatus(s string) string {
	return n.tables.OrderStatus[strings.ToLower(strings.TrimSpace(s))]
}

// Country maps a country spelling to a 2-letter code
func (n *Normalizer) Country(s string) string {
	return n.tables.Country[strings.ToUpper(strings.TrimSpace(s))]
}

// CustomerStatus fuzzy-matches against the configured labels.
// The best label is accepted only when its similarity reaches the threshold;
// on equal scores the earlier label wins.
func (n *Normalizer) CustomerStatus(s string) string {
	v := strings.ToLower(strings.TrimSpace(s))
	if v == "" {
		return ""
	}

	best := ""
	bestScore := -1.0
	for _, label := range n.tables.CustomerStatuses {
		score := Similarity(v, label)
		if score > bestScore {
			best, bestScore = label, score
		}
	}

	if bestScore >= n.tables.StatusThreshold {
		return best
	}
	return ""
}

// Similarity is 1 - levenshtein(a, b) / max(len(a), len(b)) over runes, in [0, 1]
func Similarity(a, b string) float64 {
	maxLen := utf8.RuneCountInString(a)
	if l := utf8.RuneCountInString(b); l > maxLen {
		maxLen = l
	}
	if maxLen == 0 {
		return 1.0
	}
	d := levenshtein.ComputeDistance(a, b)
	return 1.0 - float64(d)/float64(maxLen)
}

// NormalizeCustomerID extracts the canonical c##### id.
// An exact match is returned as-is; otherwise the first embedded c##### is used.
func NormalizeCustomerID(s string) string {
	v := strings.ToLower(strings.TrimSpace(s))
	if _, isNull := nullTokens[v]; isNull {
		return ""
	}
	if customerIDRe.MatchString(v) {
		return v
	}
	return customerIDSearch.FindString(v)
}

// ParseTimestamp converts mixed-format timestamps to UTC.
//
//	8 digits      → YYYYMMDD midnight UTC
//	< 10 digits   → rejected (ambiguous)
//	>= 10 digits  → epoch seconds, or epoch millis when >= 1e12
//	anything else → flexible parse, naive values taken as UTC
//
// Results outside [MinYear, current year + MaxYearAhead] are rejected.
func (n *Normalizer) ParseTimestamp(s string) *time.Time {
	v := strings.TrimSpace(s)
	if v == "" {
		return nil
	}

	var t time.Time
	if digitsRe.MatchString(v) {
		switch {
		case len(v) == 8:
			parsed, err := time.ParseInLocation("20060102", v, time.UTC)
			if err != nil {
				return nil
			}
			t = parsed
		case len(v) < 10:
			return nil
		default:
			epoch, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return nil
			}
			if epoch >= epochMillisThreshold {
				t = time.UnixMilli(epoch)
			} else {
				t = time.Unix(epoch, 0)
			}
		}
	} else {
		parsed, err := dateparse.ParseIn(v, time.UTC)
		if err != nil {
			return nil
		}
		t = parsed
	}

	t = t.UTC()
	if !n.yearInRange(t.Year()) {
		return nil
	}
	return &t
}

func (n *Normalizer) yearInRange(year int) bool {
	return year >= n.tables.MinYear && year <= n.now().UTC().Year()+n.tables.MaxYearAhead
}

// SafeFloat parses a number; blank, NaN and non-numeric input yield nil
func SafeFloat(s string) *float64 {
	v := strings.TrimSpace(s)
	if v == "" {
		return nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsNaN(f) {
		return nil
	}
	return &f
}
