package handlers

import (
	"net/http"

	"github.com/wonny/dqpipe/backend/internal/contracts"
	"github.com/wonny/dqpipe/backend/pkg/logger"
	"github.com/wonny/dqpipe/backend/pkg/redis"
)

// ReportHandler serves per-partition reports (validation + alerts)
type ReportHandler struct {
	reader contracts.OutputReader
	cache  *redis.Cache
	logger *logger.Logger
}

// NewReportHandler creates a new report handler. cache may be nil.
func NewReportHandler(reader contracts.OutputReader, cache *redis.Cache, log *logger.Logger) *ReportHandler {
	return &ReportHandler{
		reader: reader,
		cache:  orNoCache(cache),
		logger: log,
	}
}

// GetAlert returns the alert report of one date
// GET /api/alerts/{date}
func (h *ReportHandler) GetAlert(w http.ResponseWriter, r *http.Request) {
	date, ok := pathDate(w, r)
	if !ok {
		return
	}

	var alert contracts.Alert
	err := h.cache.GetOrSet(r.Context(), redis.AlertKey(date), &alert, redis.TTLLong, func() (interface{}, error) {
		return h.reader.GetAlert(r.Context(), date)
	})
	if err != nil {
		h.fail(w, err, date, "Failed to get alert report")
		return
	}

	respondData(w, map[string]interface{}{
		"ingest_date":  alert.IngestDate,
		"flags":        alert.Flags,
		"has_flags":    alert.HasFlags(),
		"max_severity": alert.MaxSeverity(),
	})
}

// GetReport returns the validation report of one date (not cached: written once per run)
// GET /api/reports/{date}
func (h *ReportHandler) GetReport(w http.ResponseWriter, r *http.Request) {
	date, ok := pathDate(w, r)
	if !ok {
		return
	}

	report, err := h.reader.GetValidationReport(r.Context(), date)
	if err != nil {
		h.fail(w, err, date, "Failed to get validation report")
		return
	}

	respondData(w, report)
}

func (h *ReportHandler) fail(w http.ResponseWriter, err error, date, msg string) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.logger.WithPartition(date).WithError(err).Error(msg)
		respondError(w, status, msg)
		return
	}
	respondError(w, status, err.Error())
}
