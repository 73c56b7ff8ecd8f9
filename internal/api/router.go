package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/wonny/dqpipe/backend/internal/api/handlers"
	"github.com/wonny/dqpipe/backend/pkg/logger"
)

// Handlers groups everything the router mounts. Nil members are not routed.
type Handlers struct {
	Metrics *handlers.MetricsHandler
	Reports *handlers.ReportHandler
	Runs    *handlers.RunHandler

	// RunFeed serves /ws/runs (ws.Hub)
	RunFeed http.Handler

	// Prometheus serves /metrics (pipeline.Metrics.Handler)
	Prometheus http.Handler
}

// NewRouter creates and configures the HTTP router
// ⭐ SSOT: 라우팅 설정은 이 함수에서만
func NewRouter(h Handlers, log *logger.Logger) http.Handler {
	r := mux.NewRouter()

	// Health check
	r.HandleFunc("/health", healthCheckHandler).Methods("GET")

	if h.Prometheus != nil {
		r.Handle("/metrics", h.Prometheus).Methods("GET")
	}
	if h.RunFeed != nil {
		r.Handle("/ws/runs", h.RunFeed).Methods("GET")
	}

	api := r.PathPrefix("/api").Subrouter()

	// Metrics endpoints (S3)
	if h.Metrics != nil {
		api.HandleFunc("/metrics/daily", h.Metrics.ListDaily).Methods("GET")
		api.HandleFunc("/metrics/daily/{date}", h.Metrics.GetDaily).Methods("GET")
		api.HandleFunc("/metrics/hourly/{date}", h.Metrics.GetHourly).Methods("GET")
	}

	// Reports (S2 validation, S4 alerts)
	if h.Reports != nil {
		api.HandleFunc("/alerts/{date}", h.Reports.GetAlert).Methods("GET")
		api.HandleFunc("/reports/{date}", h.Reports.GetReport).Methods("GET")
	}

	// Runs
	if h.Runs != nil {
		api.HandleFunc("/runs", h.Runs.ListRuns).Methods("GET")
		api.HandleFunc("/runs", h.Runs.TriggerRun).Methods("POST")
	}

	// Apply middleware
	r.Use(loggingMiddleware(log))
	r.Use(recoveryMiddleware(log))

	return r
}

// healthCheckHandler returns server health status
func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":  "ok",
		"service": "dqpipe-api",
	})
}

// loggingMiddleware logs HTTP requests
func loggingMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// Call next handler
			next.ServeHTTP(w, r)

			// Log request
			log.WithFields(map[string]interface{}{
				"method":   r.Method,
				"path":     r.URL.Path,
				"duration": time.Since(start),
			}).Debug("HTTP request")
		})
	}
}

// recoveryMiddleware recovers from panics
func recoveryMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					log.WithFields(map[string]interface{}{
						"error": err,
						"path":  r.URL.Path,
					}).Error("Panic recovered")

					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					json.NewEncoder(w).Encode(map[string]string{
						"error": "Internal server error",
					})
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
