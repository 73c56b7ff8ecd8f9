package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/dqpipe/backend/internal/api"
	"github.com/wonny/dqpipe/backend/internal/api/handlers"
	"github.com/wonny/dqpipe/backend/internal/api/ws"
	"github.com/wonny/dqpipe/backend/internal/pipeline"
	"github.com/wonny/dqpipe/backend/pkg/redis"
)

// apiCmd represents the api command
var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "API 서버 시작",
	Long: `REST API 서버를 시작합니다.

이 명령어는:
- HTTP API 서버 시작
- 지표 / 알림 / 리포트 조회 엔드포인트 제공
- 파티션 수동 실행 트리거 제공 (redis 레이트 리밋)
- 실행 완료 이벤트 websocket 피드

Endpoints:
  GET  /health                      - Health check
  GET  /api/metrics/daily?from&to   - 일별 지표 기간 조회
  GET  /api/metrics/daily/{date}    - 일별 지표
  GET  /api/metrics/hourly/{date}   - 시간별 이벤트 수
  GET  /api/alerts/{date}           - 부분 적재 알림
  GET  /api/reports/{date}          - 검증 리포트
  GET  /api/runs                    - 실행 이력
  POST /api/runs                    - 파티션 실행 {"date":"YYYY-MM-DD"}
  GET  /ws/runs                     - 실행 완료 피드 (websocket)
  GET  /metrics                     - Prometheus

Example:
  go run ./cmd/dqpipe api
  go run ./cmd/dqpipe api --port 8080`,
	RunE: runAPIServer,
}

var (
	apiPort      string
	apiOverrides pathOverrides
)

func init() {
	rootCmd.AddCommand(apiCmd)

	// Flags
	apiCmd.Flags().StringVar(&apiPort, "port", "", "API 서버 포트 (PORT)")
	apiCmd.Flags().StringVar(&apiOverrides.dataDir, "data-dir", "", "원천 파티션 디렉터리 (DATA_DIR)")
	apiCmd.Flags().StringVar(&apiOverrides.outDir, "out-dir", "", "출력 디렉터리 (OUT_DIR)")
	apiCmd.Flags().StringVar(&apiOverrides.reportsDir, "reports-dir", "", "리포트 디렉터리 (REPORTS_DIR)")
	apiCmd.Flags().StringVar(&apiOverrides.rulesFile, "rules", "", "룰 YAML 파일 (RULES_FILE)")
}

func runAPIServer(cmd *cobra.Command, args []string) error {
	fmt.Println("=== dqpipe API Server ===")

	// 1. Load config + backends
	a, err := newApp(apiOverrides)
	if err != nil {
		return err
	}
	defer a.close()

	// Override port if flag is set
	if apiPort != "" {
		a.cfg.Port = apiPort
	}
	log := a.log

	log.WithFields(map[string]interface{}{
		"port": a.cfg.Port,
		"env":  a.cfg.Env,
	}).Info("Initializing API server")

	// 2. Run feed hub
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := ws.NewHub(log)
	go hub.Run(ctx)

	// 3. Runner (manual triggers publish to the hub)
	runner, err := a.newRunner(io.Discard, pipeline.WithPublisher(hub))
	if err != nil {
		return err
	}

	// 4. Handlers
	cache := a.cache()
	var limiter *redis.RateLimiter
	if a.redis.Enabled() {
		limiter = redis.NewRateLimiter(a.redis, redis.Namespace)
	}

	routes := api.Handlers{
		Metrics: handlers.NewMetricsHandler(a.reader, cache, log),
		Reports: handlers.NewReportHandler(a.reader, cache, log),
		Runs:    handlers.NewRunHandler(a.recorder, runner, limiter, log),
		RunFeed: hub,
	}
	if a.cfg.MetricsEnabled {
		routes.Prometheus = a.metrics.Handler()
	}

	// 5. Router + server
	router := api.NewRouter(routes, log)
	server := api.New(a.cfg, log, router)

	// 6. Start server with graceful shutdown
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	log.Info("API server started successfully")
	fmt.Printf("\n✅ Server running on http://localhost:%s\n", a.cfg.Port)
	fmt.Println("\nPress Ctrl+C to stop")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	log.Info("Shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	log.Info("Server stopped")
	return nil
}
