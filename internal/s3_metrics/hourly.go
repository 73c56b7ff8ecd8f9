package s3_metrics

import (
	"sort"
	"time"

	"github.com/wonny/dqpipe/backend/internal/contracts"
)

type hourKey struct {
	ingestDate string
	hour       time.Time
}

// ComputeHourlyEvents counts clean events per (ingest_date, UTC hour).
// Rows are sorted by ingest_date then hour. Empty input → empty (non-nil) slice.
func ComputeHourlyEvents(events []contracts.EventRecord) []contracts.HourlyEventCount {
	counts := make(map[hourKey]int)
	for i := range events {
		ts := events[i].EventTimeUTC
		if ts == nil {
			continue
		}
		k := hourKey{
			ingestDate: events[i].IngestDate,
			hour:       ts.UTC().Truncate(time.Hour),
		}
		counts[k]++
	}

	rows := make([]contracts.HourlyEventCount, 0, len(counts))
	for k, n := range counts {
		rows = append(rows, contracts.HourlyEventCount{
			IngestDate: k.ingestDate,
			HourUTC:    k.hour,
			EventCount: n,
		})
	}

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].IngestDate != rows[j].IngestDate {
			return rows[i].IngestDate < rows[j].IngestDate
		}
		return rows[i].HourUTC.Before(rows[j].HourUTC)
	})
	return rows
}
