package contracts

// Severity of an alert flag
type Severity string

const (
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Alert flag types
const (
	FlagMissingHourCoverage        = "missing_hour_coverage"
	FlagVolumeDropVsTrailingMedian = "volume_drop_vs_trailing_median"
)

// AlertFlag is one fired heuristic
type AlertFlag struct {
	Type     string                 `json:"type"`
	Severity Severity               `json:"severity"`
	Details  map[string]interface{} `json:"details"`
}

// Alert is the per-partition alert report
type Alert struct {
	IngestDate string      `json:"ingest_date"`
	Flags      []AlertFlag `json:"flags"`
}

// NewAlert creates an alert report with no flags
func NewAlert(ingestDate string) *Alert {
	return &Alert{
		IngestDate: ingestDate,
		Flags:      make([]AlertFlag, 0),
	}
}

// HasFlags reports whether any heuristic fired
func (a *Alert) HasFlags() bool {
	return len(a.Flags) > 0
}

// HasFlag reports whether a flag of the given type fired
func (a *Alert) HasFlag(flagType string) bool {
	for _, f := range a.Flags {
		if f.Type == flagType {
			return true
		}
	}
	return false
}

// MaxSeverity returns the highest severity among flags ("" when none)
func (a *Alert) MaxSeverity() Severity {
	var max Severity
	for _, f := range a.Flags {
		if f.Severity == SeverityHigh {
			return SeverityHigh
		}
		max = f.Severity
	}
	return max
}
