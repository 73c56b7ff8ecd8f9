package handlers

import (
	"net/http"

	"github.com/wonny/dqpipe/backend/internal/contracts"
	"github.com/wonny/dqpipe/backend/pkg/logger"
	"github.com/wonny/dqpipe/backend/pkg/redis"
)

// MetricsHandler handles daily/hourly metrics endpoints (S3)
// ⭐ SSOT: 지표 조회 API 핸들러는 이 구조체에서만
type MetricsHandler struct {
	reader contracts.OutputReader
	cache  *redis.Cache
	logger *logger.Logger
}

// NewMetricsHandler creates a new metrics handler. cache may be nil.
func NewMetricsHandler(reader contracts.OutputReader, cache *redis.Cache, log *logger.Logger) *MetricsHandler {
	return &MetricsHandler{
		reader: reader,
		cache:  orNoCache(cache),
		logger: log,
	}
}

// orNoCache: 캐시 미설정 시 비활성 클라이언트 → GetOrSet 은 항상 fn 호출
func orNoCache(cache *redis.Cache) *redis.Cache {
	if cache != nil {
		return cache
	}
	return redis.NewCache(redis.NewFromRedis(nil), redis.Namespace)
}

// GetDaily returns the daily metrics row of one date
// GET /api/metrics/daily/{date}
func (h *MetricsHandler) GetDaily(w http.ResponseWriter, r *http.Request) {
	date, ok := pathDate(w, r)
	if !ok {
		return
	}

	var m contracts.DailyMetrics
	err := h.cache.GetOrSet(r.Context(), redis.DailyMetricsKey(date), &m, redis.TTLMedium, func() (interface{}, error) {
		return h.reader.GetDailyMetrics(r.Context(), date)
	})
	if err != nil {
		h.fail(w, err, date, "Failed to get daily metrics")
		return
	}

	respondData(w, m)
}

// ListDaily returns daily rows within [from, to]
// GET /api/metrics/daily?from=YYYY-MM-DD&to=YYYY-MM-DD (to defaults to from)
func (h *MetricsHandler) ListDaily(w http.ResponseWriter, r *http.Request) {
	from := r.URL.Query().Get("from")
	to := r.URL.Query().Get("to")
	if to == "" {
		to = from
	}

	dates, err := contracts.DateRange(from, to)
	if err != nil {
		respondError(w, http.StatusBadRequest, "from/to must be YYYY-MM-DD with from <= to")
		return
	}

	rows, err := h.reader.ListDailyMetrics(r.Context(), from, to)
	if err != nil {
		h.fail(w, err, from, "Failed to list daily metrics")
		return
	}

	respondData(w, map[string]interface{}{
		"from":  from,
		"to":    to,
		"days":  len(dates),
		"count": len(rows),
		"items": rows,
	})
}

// GetHourly returns the hourly event counts of one date
// GET /api/metrics/hourly/{date}
func (h *MetricsHandler) GetHourly(w http.ResponseWriter, r *http.Request) {
	date, ok := pathDate(w, r)
	if !ok {
		return
	}

	rows := make([]contracts.HourlyEventCount, 0)
	err := h.cache.GetOrSet(r.Context(), redis.HourlyEventsKey(date), &rows, redis.TTLMedium, func() (interface{}, error) {
		return h.reader.GetHourly(r.Context(), date)
	})
	if err != nil {
		h.fail(w, err, date, "Failed to get hourly events")
		return
	}

	respondData(w, map[string]interface{}{
		"ingest_date": date,
		"hours":       len(rows),
		"items":       rows,
	})
}

func (h *MetricsHandler) fail(w http.ResponseWriter, err error, date, msg string) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.logger.WithPartition(date).WithError(err).Error(msg)
		respondError(w, status, msg)
		return
	}
	respondError(w, status, err.Error())
}
