package s1_clean

import "strings"

// Tables holds the canonicalization tables and thresholds used by the Normalizer
// ⭐ SSOT: 정규화 테이블은 코드가 아닌 설정값 (rulesconfig YAML 로 override)
type Tables struct {
	Currency    map[string]string // lower-case, spaces removed → ISO code
	Platform    map[string]string // lower-case → ios/android/web
	Country     map[string]string // upper-case → ISO-3166 alpha-2
	OrderStatus map[string]string // lower-case → paid/failed/refunded/chargeback

	// CustomerStatuses is the ordered label list for fuzzy matching.
	// 동점일 경우 앞쪽 label 우선.
	CustomerStatuses []string
	StatusThreshold  float64

	// Accepted timestamp years: [MinYear, current year + MaxYearAhead]
	MinYear      int
	MaxYearAhead int
}

// DefaultTables returns the built-in tables
func DefaultTables() Tables {
	return Tables{
		Currency: map[string]string{
			"usd": "USD",
			"$":   "USD",
			"us$": "USD",
			"eur": "EUR",
			"€":   "EUR",
			"â‚¬": "EUR", // UTF-8 € read as cp1252
		},
		Platform: map[string]string{
			"ios":     "ios",
			"iphone":  "ios",
			"android": "android",
			"and":     "android",
			"web":     "web",
			"browser": "web",
		},
		Country: map[string]string{
			"US":                       "US",
			"USA":                      "US",
			"UNITED STATES":            "US",
			"UNITED STATES OF AMERICA": "US",
			"GB":                       "GB",
			"UK":                       "GB",
			"UNITED KINGDOM":           "GB",
			"GREAT BRITAIN":            "GB",
			"IN":                       "IN",
			"INDIA":                    "IN",
			"BR":                       "BR",
			"BRAZIL":                   "BR",
			"BRASIL":                   "BR",
			"CA":                       "CA",
			"CANADA":                   "CA",
			"DE":                       "DE",
			"GERMANY":                  "DE",
		},
		OrderStatus: map[string]string{
			"paid":       "paid",
			"succeeded":  "paid",
			"failed":     "failed",
			"refunded":   "refunded",
			"chargeback": "chargeback",
		},
		CustomerStatuses: []string{"active", "inactive", "banned"},
		StatusThreshold:  0.80,
		MinYear:          1900,
		MaxYearAhead:     1,
	}
}

// normalized returns a copy with keys folded to the lookup case
func (t Tables) normalized() Tables {
	out := t
	out.Currency = foldKeys(t.Currency, func(k string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(k)), " ", "")
	})
	out.Platform = foldKeys(t.Platform, func(k string) string { return strings.ToLower(strings.TrimSpace(k)) })
	out.Country = foldKeys(t.Country, func(k string) string { return strings.ToUpper(strings.TrimSpace(k)) })
	out.OrderStatus = foldKeys(t.OrderStatus, func(k string) string { return strings.ToLower(strings.TrimSpace(k)) })

	labels := make([]string, 0, len(t.CustomerStatuses))
	for _, l := range t.CustomerStatuses {
		labels = append(labels, strings.ToLower(strings.TrimSpace(l)))
	}
	out.CustomerStatuses = labels
	return out
}

func foldKeys(m map[string]string, fold func(string) string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[fold(k)] = v
	}
	return out
}
