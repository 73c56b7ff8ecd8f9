package pipeline

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/wonny/dqpipe/backend/internal/contracts"
)

const (
	partFileName       = "part-00000.jsonl"
	dailyMetricsFile   = "daily_metrics.json"
	hourlyEventsFile   = "hourly_events.json"
	validationFileName = "validation_report.json"
	alertsFileName     = "alerts.json"
	runsFileName       = "runs.jsonl"
)

// FileSink writes pipeline outputs as JSON files
// ⭐ SSOT: 파일 출력 레이아웃
//
//	<out>/{clean,quarantine}/<entity>/ingest_date=<d>/part-00000.jsonl
//	<out>/metrics/{daily_metrics,hourly_events}.json
//	<out>/runs.jsonl
//	<reports>/ingest_date=<d>/{validation_report,alerts}.json
//
// 모든 쓰기는 temp 파일 + rename. 공유 파일(metrics, runs)은 mu 로 직렬화.
type FileSink struct {
	outDir     string
	reportsDir string
	mu         sync.Mutex
}

// NewFileSink creates a file sink
func NewFileSink(outDir, reportsDir string) *FileSink {
	return &FileSink{outDir: outDir, reportsDir: reportsDir}
}

// PartitionPath returns the JSONL file of one entity/outcome/date
func (s *FileSink) PartitionPath(outcome string, entity contracts.Entity, ingestDate string) string {
	return filepath.Join(s.outDir, outcome, string(entity), "ingest_date="+ingestDate, partFileName)
}

func (s *FileSink) reportPath(ingestDate, name string) string {
	return filepath.Join(s.reportsDir, "ingest_date="+ingestDate, name)
}

func (s *FileSink) metricsPath(name string) string {
	return filepath.Join(s.outDir, "metrics", name)
}

// WritePartition overwrites the clean/quarantine files of every entity
func (s *FileSink) WritePartition(ctx context.Context, out *contracts.PartitionOutput) error {
	d := out.IngestDate
	writes := []struct {
		outcome string
		entity  contracts.Entity
		rows    int
		at      func(i int) interface{}
	}{
		{"clean", contracts.EntityCustomers, len(out.Customers.Clean), func(i int) interface{} { return &out.Customers.Clean[i] }},
		{"quarantine", contracts.EntityCustomers, len(out.Customers.Quarantine), func(i int) interface{} { return &out.Customers.Quarantine[i] }},
		{"clean", contracts.EntityEvents, len(out.Events.Clean), func(i int) interface{} { return &out.Events.Clean[i] }},
		{"quarantine", contracts.EntityEvents, len(out.Events.Quarantine), func(i int) interface{} { return &out.Events.Quarantine[i] }},
		{"clean", contracts.EntityOrders, len(out.Orders.Clean), func(i int) interface{} { return &out.Orders.Clean[i] }},
		{"quarantine", contracts.EntityOrders, len(out.Orders.Quarantine), func(i int) interface{} { return &out.Orders.Quarantine[i] }},
	}

	for _, w := range writes {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := writeJSONLines(s.PartitionPath(w.outcome, w.entity, d), w.rows, w.at); err != nil {
			return fmt.Errorf("write %s %s: %w", w.outcome, w.entity, err)
		}
	}
	return nil
}

// WriteValidationReport overwrites the report of one date
func (s *FileSink) WriteValidationReport(_ context.Context, report *contracts.ValidationReport) error {
	return writeJSON(s.reportPath(report.IngestDate, validationFileName), report)
}

// WriteAlert overwrites the alert report of one date
func (s *FileSink) WriteAlert(_ context.Context, alert *contracts.Alert) error {
	return writeJSON(s.reportPath(alert.IngestDate, alertsFileName), alert)
}

// ReplaceHourly drops every row of the date and appends the new rows
func (s *FileSink) ReplaceHourly(_ context.Context, ingestDate string, rows []contracts.HourlyEventCount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.metricsPath(hourlyEventsFile)
	all := make([]contracts.HourlyEventCount, 0)
	if err := readJSON(path, &all); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}

	kept := all[:0]
	for _, r := range all {
		if r.IngestDate != ingestDate {
			kept = append(kept, r)
		}
	}
	for _, r := range rows {
		if r.IngestDate == ingestDate {
			kept = append(kept, r)
		}
	}
	sort.SliceStable(kept, func(i, j int) bool {
		if kept[i].IngestDate != kept[j].IngestDate {
			return kept[i].IngestDate < kept[j].IngestDate
		}
		return kept[i].HourUTC.Before(kept[j].HourUTC)
	})

	return writeJSON(path, kept)
}

// UpsertDailyMetrics replaces or inserts the row of the date (sorted by date)
func (s *FileSink) UpsertDailyMetrics(_ context.Context, m *contracts.DailyMetrics) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.loadDaily()
	if err != nil {
		return err
	}

	replaced := false
	for i := range all {
		if all[i].IngestDate == m.IngestDate {
			all[i] = *m
			replaced = true
			break
		}
	}
	if !replaced {
		all = append(all, *m)
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].IngestDate < all[j].IngestDate })

	return writeJSON(s.metricsPath(dailyMetricsFile), all)
}

// DailyMetricsHistory returns the most recent limit rows with ingest_date <= upTo, ascending
func (s *FileSink) DailyMetricsHistory(_ context.Context, upTo string, limit int) ([]contracts.DailyMetrics, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.loadDaily()
	if err != nil {
		return nil, err
	}

	out := make([]contracts.DailyMetrics, 0, len(all))
	for _, m := range all {
		if m.IngestDate <= upTo {
			out = append(out, m)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (s *FileSink) loadDaily() ([]contracts.DailyMetrics, error) {
	all := make([]contracts.DailyMetrics, 0)
	if err := readJSON(s.metricsPath(dailyMetricsFile), &all); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	return all, nil
}

// ============================================================================
// OutputReader
// ============================================================================

// GetDailyMetrics returns the row of one date
func (s *FileSink) GetDailyMetrics(ctx context.Context, ingestDate string) (*contracts.DailyMetrics, error) {
	rows, err := s.ListDailyMetrics(ctx, ingestDate, ingestDate)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("daily metrics %s: %w", ingestDate, contracts.ErrNotFound)
	}
	return &rows[0], nil
}

// ListDailyMetrics returns rows with from <= ingest_date <= to, ascending
func (s *FileSink) ListDailyMetrics(_ context.Context, from, to string) ([]contracts.DailyMetrics, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.loadDaily()
	if err != nil {
		return nil, err
	}

	out := make([]contracts.DailyMetrics, 0)
	for _, m := range all {
		if m.IngestDate >= from && m.IngestDate <= to {
			out = append(out, m)
		}
	}
	return out, nil
}

// GetHourly returns the hourly rows of one date
func (s *FileSink) GetHourly(_ context.Context, ingestDate string) ([]contracts.HourlyEventCount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all := make([]contracts.HourlyEventCount, 0)
	if err := readJSON(s.metricsPath(hourlyEventsFile), &all); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	out := make([]contracts.HourlyEventCount, 0, 24)
	for _, r := range all {
		if r.IngestDate == ingestDate {
			out = append(out, r)
		}
	}
	return out, nil
}

// GetAlert returns the alert report of one date
func (s *FileSink) GetAlert(_ context.Context, ingestDate string) (*contracts.Alert, error) {
	alert := contracts.NewAlert(ingestDate)
	if err := readJSON(s.reportPath(ingestDate, alertsFileName), alert); err != nil {
		return nil, notFound("alert report", ingestDate, err)
	}
	return alert, nil
}

// GetValidationReport returns the validation report of one date
func (s *FileSink) GetValidationReport(_ context.Context, ingestDate string) (*contracts.ValidationReport, error) {
	report := &contracts.ValidationReport{}
	if err := readJSON(s.reportPath(ingestDate, validationFileName), report); err != nil {
		return nil, notFound("validation report", ingestDate, err)
	}
	return report, nil
}

func notFound(what, ingestDate string, err error) error {
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%s %s: %w", what, ingestDate, contracts.ErrNotFound)
	}
	return err
}

// ============================================================================
// RunRecorder
// ============================================================================

// RecordRun appends one audit row to runs.jsonl
func (s *FileSink) RecordRun(_ context.Context, run *contracts.RunSummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := filepath.Join(s.outDir, runsFileName)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	line, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("marshal run: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open run log: %w", err)
	}
	if _, err := f.Write(append(line, '\n')); err != nil {
		f.Close()
		return fmt.Errorf("append run: %w", err)
	}
	return f.Close()
}

// ListRuns returns the most recent runs first (limit <= 0: all)
func (s *FileSink) ListRuns(_ context.Context, limit int) ([]contracts.RunSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	runs, err := s.loadRuns()
	if err != nil {
		return nil, err
	}

	sort.SliceStable(runs, func(i, j int) bool { return runs[i].StartedAt.After(runs[j].StartedAt) })
	if limit > 0 && len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}

// PruneRuns drops audit rows started before cutoff, returns how many were removed
func (s *FileSink) PruneRuns(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	runs, err := s.loadRuns()
	if err != nil {
		return 0, err
	}

	kept := runs[:0]
	for _, r := range runs {
		if !r.StartedAt.Before(cutoff) {
			kept = append(kept, r)
		}
	}
	removed := int64(len(runs) - len(kept))
	if removed == 0 {
		return 0, nil
	}

	return removed, writeJSONLines(filepath.Join(s.outDir, runsFileName), len(kept), func(i int) interface{} { return &kept[i] })
}

func (s *FileSink) loadRuns() ([]contracts.RunSummary, error) {
	runs := make([]contracts.RunSummary, 0)

	f, err := os.Open(filepath.Join(s.outDir, runsFileName))
	if errors.Is(err, os.ErrNotExist) {
		return runs, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open run log: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		if len(scanner.Bytes()) == 0 {
			continue
		}
		var r contracts.RunSummary
		if err := json.Unmarshal(scanner.Bytes(), &r); err != nil {
			return nil, fmt.Errorf("decode run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, scanner.Err()
}

// ============================================================================
// helpers
// ============================================================================

func writeJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", filepath.Base(path), err)
	}
	return writeAtomic(path, func(w *bufio.Writer) error {
		_, err := w.Write(append(data, '\n'))
		return err
	})
}

func writeJSONLines(path string, n int, at func(i int) interface{}) error {
	return writeAtomic(path, func(w *bufio.Writer) error {
		enc := json.NewEncoder(w)
		for i := 0; i < n; i++ {
			if err := enc.Encode(at(i)); err != nil {
				return err
			}
		}
		return nil
	})
}

// writeAtomic writes to a temp file in the target directory and renames it over path
func writeAtomic(path string, write func(w *bufio.Writer) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name()) // no-op after rename

	w := bufio.NewWriter(tmp)
	if err := write(w); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func readJSON(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return nil
}
