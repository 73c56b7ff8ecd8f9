package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gorilla/websocket"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/dqpipe/backend/internal/api/handlers"
	"github.com/wonny/dqpipe/backend/internal/api/ws"
	"github.com/wonny/dqpipe/backend/internal/contracts"
	"github.com/wonny/dqpipe/backend/internal/pipeline"
	"github.com/wonny/dqpipe/backend/pkg/logger"
	"github.com/wonny/dqpipe/backend/pkg/redis"
)

const (
	day       = "2025-12-10"
	lockedDay = "2025-12-02"
)

type fakeRunner struct {
	calls []string
}

func (f *fakeRunner) ProcessLocked(_ context.Context, date string) (*pipeline.DayResult, error) {
	f.calls = append(f.calls, date)
	run := &contracts.RunSummary{RunID: "run-1", IngestDate: date, Status: contracts.RunSuccess}
	if date == lockedDay {
		run.Status = contracts.RunSkipped
		return &pipeline.DayResult{Run: run}, nil
	}
	if date == "2025-12-01" {
		run.Status = contracts.RunFailed
		return &pipeline.DayResult{Run: run}, fmt.Errorf("S0 load customers: %w", contracts.ErrPartitionNotFound)
	}
	return &pipeline.DayResult{Run: run, Alert: contracts.NewAlert(date)}, nil
}

type testEnv struct {
	sink   *pipeline.FileSink
	runner *fakeRunner
	hub    *ws.Hub
	router http.Handler
}

func newTestEnv(t *testing.T, cache *redis.Cache, limiter *redis.RateLimiter) *testEnv {
	t.Helper()
	dir := t.TempDir()
	sink := pipeline.NewFileSink(dir+"/out", dir+"/reports")
	ctx := context.Background()

	require.NoError(t, sink.UpsertDailyMetrics(ctx, &contracts.DailyMetrics{IngestDate: "2025-12-09", EventsClean: 40}))
	require.NoError(t, sink.UpsertDailyMetrics(ctx, &contracts.DailyMetrics{IngestDate: day, EventsClean: 42}))
	require.NoError(t, sink.ReplaceHourly(ctx, day, []contracts.HourlyEventCount{
		{IngestDate: day, HourUTC: time.Date(2025, 12, 10, 1, 0, 0, 0, time.UTC), EventCount: 30},
		{IngestDate: day, HourUTC: time.Date(2025, 12, 10, 2, 0, 0, 0, time.UTC), EventCount: 12},
	}))
	alert := contracts.NewAlert(day)
	alert.Flags = append(alert.Flags, contracts.AlertFlag{
		Type:     contracts.FlagMissingHourCoverage,
		Severity: contracts.SeverityMedium,
		Details:  map[string]interface{}{"missing_hours": 22},
	})
	require.NoError(t, sink.WriteAlert(ctx, alert))
	require.NoError(t, sink.WriteValidationReport(ctx, &contracts.ValidationReport{IngestDate: day, RunID: "run-0"}))
	require.NoError(t, sink.RecordRun(ctx, &contracts.RunSummary{
		RunID: "run-0", IngestDate: day, Status: contracts.RunSuccess,
		StartedAt: time.Date(2025, 12, 11, 1, 30, 0, 0, time.UTC),
	}))

	log := logger.NewNop()
	runner := &fakeRunner{}
	hub := ws.NewHub(log)
	metrics, err := pipeline.NewMetrics()
	require.NoError(t, err)

	router := NewRouter(Handlers{
		Metrics:    handlers.NewMetricsHandler(sink, cache, log),
		Reports:    handlers.NewReportHandler(sink, cache, log),
		Runs:       handlers.NewRunHandler(sink, runner, limiter, log),
		RunFeed:    hub,
		Prometheus: metrics.Handler(),
	}, log)

	return &testEnv{sink: sink, runner: runner, hub: hub, router: router}
}

func newMiniredis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	return redis.NewFromRedis(goredis.NewClient(&goredis.Options{Addr: mr.Addr()}))
}

func (e *testEnv) do(t *testing.T, method, path, body string) (int, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)

	var out map[string]interface{}
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	}
	return rec.Code, out
}

func data(t *testing.T, body map[string]interface{}) map[string]interface{} {
	t.Helper()
	assert.Equal(t, true, body["success"])
	d, ok := body["data"].(map[string]interface{})
	require.True(t, ok, "data object in %v", body)
	return d
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, nil, nil)

	code, body := env.do(t, "GET", "/health", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body["status"])
}

func TestMetricsEndpoints(t *testing.T) {
	env := newTestEnv(t, nil, nil)

	t.Run("daily by date", func(t *testing.T) {
		code, body := env.do(t, "GET", "/api/metrics/daily/"+day, "")
		require.Equal(t, http.StatusOK, code)
		d := data(t, body)
		assert.Equal(t, day, d["ingest_date"])
		assert.Equal(t, 42.0, d["events_clean"])
	})

	t.Run("daily range", func(t *testing.T) {
		code, body := env.do(t, "GET", "/api/metrics/daily?from=2025-12-01&to=2025-12-31", "")
		require.Equal(t, http.StatusOK, code)
		d := data(t, body)
		assert.Equal(t, 2.0, d["count"])
		assert.Equal(t, 31.0, d["days"])
	})

	t.Run("hourly", func(t *testing.T) {
		code, body := env.do(t, "GET", "/api/metrics/hourly/"+day, "")
		require.Equal(t, http.StatusOK, code)
		assert.Equal(t, 2.0, data(t, body)["hours"])
	})

	t.Run("not found", func(t *testing.T) {
		code, body := env.do(t, "GET", "/api/metrics/daily/2025-11-01", "")
		assert.Equal(t, http.StatusNotFound, code)
		assert.Contains(t, body["error"], "not found")
	})

	t.Run("bad date", func(t *testing.T) {
		code, _ := env.do(t, "GET", "/api/metrics/daily/2025-13-01", "")
		assert.Equal(t, http.StatusBadRequest, code)

		code, _ = env.do(t, "GET", "/api/metrics/daily?from=2025-12-10&to=2025-12-01", "")
		assert.Equal(t, http.StatusBadRequest, code)
	})
}

func TestReportEndpoints(t *testing.T) {
	env := newTestEnv(t, nil, nil)

	code, body := env.do(t, "GET", "/api/alerts/"+day, "")
	require.Equal(t, http.StatusOK, code)
	d := data(t, body)
	assert.Equal(t, true, d["has_flags"])
	assert.Equal(t, "medium", d["max_severity"])

	code, body = env.do(t, "GET", "/api/reports/"+day, "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "run-0", data(t, body)["run_id"])

	code, _ = env.do(t, "GET", "/api/reports/2025-11-01", "")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestDailyMetrics_Cached(t *testing.T) {
	client := newMiniredis(t)
	env := newTestEnv(t, redis.NewCache(client, "dqpipe"), nil)
	ctx := context.Background()

	code, _ := env.do(t, "GET", "/api/metrics/daily/"+day, "")
	require.Equal(t, http.StatusOK, code)

	// a rewrite is not visible until the key is invalidated
	require.NoError(t, env.sink.UpsertDailyMetrics(ctx, &contracts.DailyMetrics{IngestDate: day, EventsClean: 7}))
	_, body := env.do(t, "GET", "/api/metrics/daily/"+day, "")
	assert.Equal(t, 42.0, data(t, body)["events_clean"])

	require.NoError(t, redis.NewCache(client, "dqpipe").DeleteMany(ctx, redis.PartitionKeys(day)...))
	_, body = env.do(t, "GET", "/api/metrics/daily/"+day, "")
	assert.Equal(t, 7.0, data(t, body)["events_clean"])
}

func TestRuns(t *testing.T) {
	env := newTestEnv(t, nil, nil)

	code, body := env.do(t, "GET", "/api/runs", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 1.0, data(t, body)["count"])

	code, body = env.do(t, "POST", "/api/runs", `{"date":"2025-12-10"}`)
	require.Equal(t, http.StatusOK, code)
	run := data(t, body)["run"].(map[string]interface{})
	assert.Equal(t, "success", run["status"])
	assert.Equal(t, []string{day}, env.runner.calls)

	code, body = env.do(t, "POST", "/api/runs", `{"date":"2025-12-01"}`)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "failed", body["run"].(map[string]interface{})["status"])

	code, body = env.do(t, "POST", "/api/runs", `{"date":"2025-12-02"}`)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "skipped", body["run"].(map[string]interface{})["status"])

	code, _ = env.do(t, "POST", "/api/runs", `{"date":"yesterday"}`)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = env.do(t, "POST", "/api/runs", `not json`)
	assert.Equal(t, http.StatusBadRequest, code)

	assert.Len(t, env.runner.calls, 3, "invalid requests never reach the runner")
}

func TestTriggerRun_RateLimited(t *testing.T) {
	limiter := redis.NewRateLimiter(newMiniredis(t), "dqpipe")
	env := newTestEnv(t, nil, limiter)

	for i := 0; i < redis.RunTriggerRateLimit.Limit; i++ {
		code, _ := env.do(t, "POST", "/api/runs", `{"date":"2025-12-10"}`)
		require.Equal(t, http.StatusOK, code)
	}

	code, _ := env.do(t, "POST", "/api/runs", `{"date":"2025-12-10"}`)
	assert.Equal(t, http.StatusTooManyRequests, code)
	assert.Len(t, env.runner.calls, redis.RunTriggerRateLimit.Limit)
}

func TestPrometheusEndpoint(t *testing.T) {
	env := newTestEnv(t, nil, nil)

	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "dqpipe_")
}

func TestRunFeed(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go env.hub.Run(ctx)

	srv := httptest.NewServer(env.router)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/runs"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return env.hub.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	env.hub.Publish(&contracts.RunSummary{RunID: "run-9", IngestDate: day, Status: contracts.RunSkipped})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg struct {
		Type string               `json:"type"`
		Data contracts.RunSummary `json:"data"`
	}
	require.NoError(t, json.NewDecoder(bytes.NewReader(raw)).Decode(&msg))
	assert.Equal(t, ws.MessageTypeRun, msg.Type)
	assert.Equal(t, "run-9", msg.Data.RunID)
	assert.Equal(t, contracts.RunSkipped, msg.Data.Status)
}
