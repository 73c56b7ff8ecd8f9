package handlers

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strconv"

	"github.com/wonny/dqpipe/backend/internal/contracts"
	"github.com/wonny/dqpipe/backend/internal/pipeline"
	"github.com/wonny/dqpipe/backend/pkg/logger"
	"github.com/wonny/dqpipe/backend/pkg/redis"
)

// DayProcessor runs one partition under its partition lock (pipeline.Runner)
type DayProcessor interface {
	ProcessLocked(ctx context.Context, ingestDate string) (*pipeline.DayResult, error)
}

// RunHandler handles run audit and manual trigger endpoints
// ⭐ SSOT: 수동 실행 트리거는 이 핸들러에서만
type RunHandler struct {
	runs    contracts.RunRecorder
	runner  DayProcessor
	limiter *redis.RateLimiter
	logger  *logger.Logger
}

// NewRunHandler creates a new run handler. limiter may be nil.
func NewRunHandler(runs contracts.RunRecorder, runner DayProcessor, limiter *redis.RateLimiter, log *logger.Logger) *RunHandler {
	return &RunHandler{
		runs:    runs,
		runner:  runner,
		limiter: limiter,
		logger:  log,
	}
}

// TriggerRequest is the body of POST /api/runs
type TriggerRequest struct {
	Date string `json:"date"`
}

// ListRuns returns recent runs, newest first
// GET /api/runs?limit=50
func (h *RunHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if s := r.URL.Query().Get("limit"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 && n <= 1000 {
			limit = n
		}
	}

	runs, err := h.runs.ListRuns(r.Context(), limit)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list runs")
		respondError(w, http.StatusInternalServerError, "Failed to list runs")
		return
	}

	respondData(w, map[string]interface{}{
		"count": len(runs),
		"items": runs,
	})
}

// TriggerRun processes one partition synchronously
// POST /api/runs {"date":"YYYY-MM-DD"}
func (h *RunHandler) TriggerRun(w http.ResponseWriter, r *http.Request) {
	var req TriggerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if _, err := contracts.ParseIngestDate(req.Date); err != nil {
		respondError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}

	if h.limiter != nil {
		allowed, _, err := h.limiter.Allow(r.Context(), redis.RunTriggerRateLimit.For(clientHost(r)))
		if err != nil {
			h.logger.WithError(err).Warn("Rate limiter unavailable, allowing run")
		} else if !allowed {
			w.Header().Set("Retry-After", strconv.Itoa(int(redis.RunTriggerRateLimit.Window.Seconds())))
			respondError(w, http.StatusTooManyRequests, "Too many run triggers, retry later")
			return
		}
	}

	log := h.logger.WithPartition(req.Date)
	log.Info("Manual run triggered")

	result, err := h.runner.ProcessLocked(r.Context(), req.Date)
	if err != nil {
		status := statusFor(err)
		if status == http.StatusInternalServerError {
			log.WithError(err).Error("Manual run failed")
		}
		body := map[string]interface{}{"error": err.Error()}
		if result != nil && result.Run != nil {
			body["run"] = result.Run
		}
		respondJSON(w, status, body)
		return
	}

	// 스케줄러 등 다른 워커가 같은 날짜를 처리 중
	if result.Run != nil && result.Run.Status == contracts.RunSkipped {
		log.Info("Partition locked by another worker")
		respondJSON(w, http.StatusConflict, map[string]interface{}{
			"error": "partition " + req.Date + " is being processed by another worker",
			"run":   result.Run,
		})
		return
	}

	data := map[string]interface{}{
		"run": result.Run,
	}
	if result.Alert != nil {
		data["alert"] = result.Alert
	}
	if result.Report != nil {
		data["report"] = result.Report
	}
	respondData(w, data)
}

// clientHost is the rate limit scope of a trigger request
func clientHost(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
