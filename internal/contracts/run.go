package contracts

import "time"

// RunStatus is the outcome of one partition run
type RunStatus string

const (
	RunSuccess RunStatus = "success"
	RunFailed  RunStatus = "failed"
	RunSkipped RunStatus = "skipped" // another worker holds the partition lock
)

// EntityCounts is the clean/quarantine split of one entity
type EntityCounts struct {
	Clean      int `json:"clean"`
	Quarantine int `json:"quarantine"`
}

// RunSummary is the audit row of one ProcessDay invocation
type RunSummary struct {
	RunID      string                  `json:"run_id"`
	IngestDate string                  `json:"ingest_date"`
	Status     RunStatus               `json:"status"`
	Stage      Stage                   `json:"stage"` // last stage reached
	Error      string                  `json:"error,omitempty"`
	RulesHash  string                  `json:"rules_hash"`
	Counts     map[Entity]EntityCounts `json:"counts"`
	AlertFlags int                     `json:"alert_flags"`
	StartedAt  time.Time               `json:"started_at"`
	FinishedAt time.Time               `json:"finished_at"`
}

// Duration returns the wall-clock run time
func (r *RunSummary) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
