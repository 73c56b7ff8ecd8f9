package pipeline

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wonny/dqpipe/backend/internal/contracts"
)

const metricsNamespace = "dqpipe"

// Metrics holds pipeline counters on a private registry
// ⭐ SSOT: 파이프라인 Prometheus 지표는 여기서만 정의
type Metrics struct {
	registry *prometheus.Registry

	runsTotal       *prometheus.CounterVec
	runDuration     *prometheus.HistogramVec
	recordsTotal    *prometheus.CounterVec
	quarantineRate  *prometheus.GaugeVec
	alertFlagsTotal *prometheus.CounterVec
	lastSuccess     prometheus.Gauge
}

// NewMetrics creates and registers the pipeline collectors
func NewMetrics() (*Metrics, error) {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		runsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "runs_total",
			Help:      "Partition runs by final status",
		}, []string{"status"}),

		runDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "run_duration_seconds",
			Help:      "Wall-clock duration of one partition run",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}, []string{"status"}),

		recordsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "records_total",
			Help:      "Validated records by entity and outcome",
		}, []string{"entity", "outcome"}),

		quarantineRate: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "quarantine_rate",
			Help:      "Quarantine rate of the last processed partition",
		}, []string{"entity"}),

		alertFlagsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "alert_flags_total",
			Help:      "Fired partial-load flags by type and severity",
		}, []string{"type", "severity"}),

		lastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last successful partition run",
		}),
	}

	collectors := []prometheus.Collector{
		m.runsTotal,
		m.runDuration,
		m.recordsTotal,
		m.quarantineRate,
		m.alertFlagsTotal,
		m.lastSuccess,
	}
	for _, c := range collectors {
		if err := m.registry.Register(c); err != nil {
			return nil, fmt.Errorf("register collector: %w", err)
		}
	}

	return m, nil
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry (tests, extra collectors)
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// observeRun records one finished run. nil receiver is a no-op.
func (m *Metrics) observeRun(run *contracts.RunSummary) {
	if m == nil {
		return
	}

	status := string(run.Status)
	m.runsTotal.WithLabelValues(status).Inc()
	m.runDuration.WithLabelValues(status).Observe(run.Duration().Seconds())

	if run.Status == contracts.RunSuccess {
		m.lastSuccess.Set(float64(run.FinishedAt.Unix()))
	}

	for entity, c := range run.Counts {
		m.recordsTotal.WithLabelValues(string(entity), "clean").Add(float64(c.Clean))
		m.recordsTotal.WithLabelValues(string(entity), "quarantine").Add(float64(c.Quarantine))

		rate := 0.0
		if total := c.Clean + c.Quarantine; total > 0 {
			rate = float64(c.Quarantine) / float64(total)
		}
		m.quarantineRate.WithLabelValues(string(entity)).Set(rate)
	}
}

// observeAlert counts fired flags. nil receiver is a no-op.
func (m *Metrics) observeAlert(alert *contracts.Alert) {
	if m == nil || alert == nil {
		return
	}
	for _, f := range alert.Flags {
		m.alertFlagsTotal.WithLabelValues(f.Type, string(f.Severity)).Inc()
	}
}
