package contracts

import (
	"fmt"
	"time"
)

// Pipeline Stage 정의 (SSOT)
// 모든 로그, 리포트, DB row에서 이 상수를 사용해야 함
//
// 파이프라인 흐름:
//   S0 → S1 → S2 → S3 → S4
//   Ingest  Clean  Quality  Metrics  Alerts

// Stage represents a pipeline stage
type Stage string

const (
	// StageIngest S0: raw partition 로드
	// 위치: internal/s0_ingest/
	StageIngest Stage = "S0_INGEST"

	// StageClean S1: 필드 정규화 + 중복 제거
	// 위치: internal/s1_clean/
	StageClean Stage = "S1_CLEAN"

	// StageQuality S2: 검증 룰 적용, clean/quarantine 분리
	// 위치: internal/s2_quality/
	StageQuality Stage = "S2_QUALITY"

	// StageMetrics S3: 시간별/일별 지표 집계
	// 위치: internal/s3_metrics/
	StageMetrics Stage = "S3_METRICS"

	// StageAlerts S4: partial load / volume drop 탐지
	// 위치: internal/s4_alerts/
	StageAlerts Stage = "S4_ALERTS"
)

// String returns the stage name
func (s Stage) String() string {
	return string(s)
}

// ShortName returns abbreviated stage name (e.g., "S0", "S1")
func (s Stage) ShortName() string {
	switch s {
	case StageIngest:
		return "S0"
	case StageClean:
		return "S1"
	case StageQuality:
		return "S2"
	case StageMetrics:
		return "S3"
	case StageAlerts:
		return "S4"
	default:
		return "UNKNOWN"
	}
}

// Entity identifies one of the three record batches of a partition
type Entity string

const (
	EntityCustomers Entity = "customers"
	EntityEvents    Entity = "events"
	EntityOrders    Entity = "orders"
)

// Entities lists every entity in processing order.
// customers must come first: events/orders reference its clean key set.
var Entities = []Entity{EntityCustomers, EntityEvents, EntityOrders}

// String returns the entity name
func (e Entity) String() string {
	return string(e)
}

// BusinessKey returns the column identifying one record of the entity
func (e Entity) BusinessKey() string {
	switch e {
	case EntityCustomers:
		return "customer_id"
	case EntityEvents:
		return "event_id"
	case EntityOrders:
		return "order_id"
	default:
		return ""
	}
}

// RawFileName returns the CSV file name of the entity inside a partition directory
func (e Entity) RawFileName() string {
	return string(e) + "_raw.csv"
}

// DateLayout is the ingest_date format (partition key)
const DateLayout = "2006-01-02"

// ParseIngestDate validates a partition key
func ParseIngestDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%q: %w", s, ErrInvalidDate)
	}
	return t, nil
}

// DateRange expands an inclusive [start, end] range into partition keys
func DateRange(start, end string) ([]string, error) {
	from, err := ParseIngestDate(start)
	if err != nil {
		return nil, err
	}
	to, err := ParseIngestDate(end)
	if err != nil {
		return nil, err
	}
	if to.Before(from) {
		return nil, fmt.Errorf("end %s before start %s: %w", end, start, ErrInvalidDate)
	}

	dates := make([]string, 0, int(to.Sub(from).Hours()/24)+1)
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		dates = append(dates, d.Format(DateLayout))
	}
	return dates, nil
}
