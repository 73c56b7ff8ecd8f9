package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/wonny/dqpipe/backend/pkg/config"
	"github.com/wonny/dqpipe/backend/pkg/logger"
)

// Server represents the HTTP API server
// ⭐ SSOT: API 서버 설정은 이 파일에서만
type Server struct {
	httpServer *http.Server
	logger     *logger.Logger
	addr       string
	env        string
}

// New creates a new API server on cfg.Port
func New(cfg *config.Config, log *logger.Logger, router http.Handler) *Server {
	return NewOnPort(cfg.Port, cfg.Env, log, router)
}

// NewOnPort creates a server on an explicit port (e.g. the metrics-only listener)
func NewOnPort(port, env string, log *logger.Logger, router http.Handler) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:              ":" + port,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      5 * time.Minute, // POST /api/runs 는 파티션 하나를 동기 처리함
			IdleTimeout:       60 * time.Second,
		},
		logger: log,
		addr:   ":" + port,
		env:    env,
	}
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.WithFields(map[string]interface{}{
		"addr": s.addr,
		"env":  s.env,
	}).Info("Starting API server")

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down API server")

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}

	return nil
}
