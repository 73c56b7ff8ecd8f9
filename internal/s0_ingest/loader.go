package s0_ingest

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/wonny/dqpipe/backend/internal/contracts"
)

// partitionPrefix is the hive-style partition directory prefix
const partitionPrefix = "ingest_date="

// Loader reads raw partition CSV files (S0)
// ⭐ SSOT: <data_dir>/ingest_date=YYYY-MM-DD/{entity}_raw.csv
type Loader struct {
	dataDir   string
	chunkSize int
}

// Option configures a Loader
type Option func(*Loader)

// WithChunkSize reads events in chunks of n records (n <= 0: one pass).
// Context cancellation is checked between chunks.
func WithChunkSize(n int) Option {
	return func(l *Loader) {
		l.chunkSize = n
	}
}

// NewLoader creates a loader rooted at dataDir
func NewLoader(dataDir string, opts ...Option) *Loader {
	l := &Loader{dataDir: dataDir}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// PartitionDir returns the directory of one partition
func (l *Loader) PartitionDir(ingestDate string) string {
	return filepath.Join(l.dataDir, partitionPrefix+ingestDate)
}

// Load reads one entity file of a partition.
// Missing file → contracts.ErrPartitionNotFound.
func (l *Loader) Load(ctx context.Context, ingestDate string, entity contracts.Entity) (*contracts.RawBatch, error) {
	if _, err := contracts.ParseIngestDate(ingestDate); err != nil {
		return nil, err
	}

	path := filepath.Join(l.PartitionDir(ingestDate), entity.RawFileName())
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", path, contracts.ErrPartitionNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	chunk := 0
	if entity == contracts.EntityEvents {
		chunk = l.chunkSize
	}

	batch, err := readCSV(ctx, f, chunk)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	batch.Entity = entity
	return batch, nil
}

// Partitions lists the ingest dates present under dataDir, ascending
func (l *Loader) Partitions() ([]string, error) {
	entries, err := os.ReadDir(l.dataDir)
	if err != nil {
		return nil, fmt.Errorf("list partitions: %w", err)
	}

	dates := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() || !strings.HasPrefix(e.Name(), partitionPrefix) {
			continue
		}
		date := strings.TrimPrefix(e.Name(), partitionPrefix)
		if _, err := contracts.ParseIngestDate(date); err != nil {
			continue
		}
		dates = append(dates, date)
	}
	sort.Strings(dates)
	return dates, nil
}

// readCSV parses a header-driven CSV.
// 행 길이가 헤더와 달라도 허용: 부족한 셀은 null, 초과 셀은 무시.
func readCSV(ctx context.Context, r io.Reader, chunkSize int) (*contracts.RawBatch, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.ReuseRecord = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		// empty file: no columns, no records
		return &contracts.RawBatch{Columns: []string{}, Records: []contracts.RawRecord{}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	columns := make([]string, len(header))
	for i, h := range header {
		if i == 0 {
			h = strings.TrimPrefix(h, "\ufeff")
		}
		columns[i] = strings.TrimSpace(h)
	}

	batch := &contracts.RawBatch{
		Columns: columns,
		Records: make([]contracts.RawRecord, 0, 1024),
	}

	for {
		chunk, err := readChunk(reader, columns, chunkSize)
		batch.Records = append(batch.Records, chunk...)
		if errors.Is(err, io.EOF) {
			return batch, nil
		}
		if err != nil {
			return nil, err
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}
}

// readChunk reads up to n records (n <= 0: all). Returns io.EOF at end of input.
func readChunk(reader *csv.Reader, columns []string, n int) ([]contracts.RawRecord, error) {
	out := make([]contracts.RawRecord, 0)
	for n <= 0 || len(out) < n {
		row, err := reader.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return out, io.EOF
			}
			return out, fmt.Errorf("parse csv: %w", err)
		}

		rec := make(contracts.RawRecord, len(columns))
		for i, col := range columns {
			if i < len(row) {
				rec[col] = row[i]
			}
		}
		out = append(out, rec)
	}
	return out, nil
}
