package metrics

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/example/trafficsim/internal/scenario"
)

// Prometheus metric names.
const (
	MetricSessionsTotal          = "trafficsim_sessions_total"
	MetricSessionDurationSeconds = "trafficsim_session_duration_seconds"
	MetricSessionsInFlight       = "trafficsim_sessions_in_flight"
	MetricSkippedTicksTotal      = "trafficsim_skipped_ticks_total"
	MetricTargetSessionsPerMin   = "trafficsim_target_sessions_per_minute"
	MetricPhasesTotal            = "trafficsim_phases_total"
	MetricEndpointsTotal         = "trafficsim_endpoints_total"
)

// PrometheusExporter exports simulator metrics via a scrape endpoint.
//
// Thread Safety: Safe for concurrent use by multiple goroutines.
type PrometheusExporter struct {
	mu sync.RWMutex

	config PrometheusExporterConfig

	registry *prometheus.Registry

	sessionsTotal          *prometheus.CounterVec
	sessionDurationSeconds prometheus.Histogram
	sessionsInFlight       prometheus.Gauge
	skippedTicksTotal      prometheus.Counter
	targetSessionsPerMin   prometheus.Gauge
	phasesTotal            *prometheus.CounterVec
	endpointsTotal         *prometheus.CounterVec

	server *http.Server
	ln     net.Listener

	running   bool
	lastError error
}

// PrometheusExporterConfig holds configuration for the Prometheus exporter.
type PrometheusExporterConfig struct {
	// Addr is the listen address for the metrics endpoint.
	// Default: ":9090"
	Addr string

	// Path is the URL path for the metrics endpoint.
	// Default: /metrics
	Path string

	// HistogramBuckets are the buckets for session duration in seconds.
	// Default: buckets sized for half-minute sessions.
	HistogramBuckets []float64
}

// DefaultPrometheusExporterConfig returns default configuration.
func DefaultPrometheusExporterConfig() PrometheusExporterConfig {
	return PrometheusExporterConfig{
		Addr:             ":9090",
		Path:             "/metrics",
		HistogramBuckets: []float64{5, 10, 15, 20, 30, 45, 60, 90, 120},
	}
}

// NewPrometheusExporter creates a new Prometheus exporter.
func NewPrometheusExporter(config PrometheusExporterConfig) *PrometheusExporter {
	defaults := DefaultPrometheusExporterConfig()
	if config.Addr == "" {
		config.Addr = defaults.Addr
	}
	if config.Path == "" {
		config.Path = defaults.Path
	}
	if len(config.HistogramBuckets) == 0 {
		config.HistogramBuckets = defaults.HistogramBuckets
	}

	// Own registry, so the exporter never collides with default metrics.
	e := &PrometheusExporter{
		config:   config,
		registry: prometheus.NewRegistry(),
	}
	e.initMetrics()
	return e
}

func (e *PrometheusExporter) initMetrics() {
	e.sessionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: MetricSessionsTotal,
			Help: "Total number of completed browser sessions by terminal status.",
		},
		[]string{"status"},
	)

	e.sessionDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    MetricSessionDurationSeconds,
			Help:    "Wall-clock duration of completed sessions in seconds.",
			Buckets: e.config.HistogramBuckets,
		},
	)

	e.sessionsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: MetricSessionsInFlight,
			Help: "Number of sessions currently executing.",
		},
	)

	e.skippedTicksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: MetricSkippedTicksTotal,
			Help: "Launch ticks dropped because all concurrency slots were busy.",
		},
	)

	e.targetSessionsPerMin = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: MetricTargetSessionsPerMin,
			Help: "Configured target session launch rate per minute.",
		},
	)

	e.phasesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: MetricPhasesTotal,
			Help: "Total phase outcomes by phase name and status.",
		},
		[]string{"phase", "status"},
	)

	e.endpointsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: MetricEndpointsTotal,
			Help: "Total backend endpoint touches attributed to sessions.",
		},
		[]string{"endpoint"},
	)

	e.registry.MustRegister(
		e.sessionsTotal,
		e.sessionDurationSeconds,
		e.sessionsInFlight,
		e.skippedTicksTotal,
		e.targetSessionsPerMin,
		e.phasesTotal,
		e.endpointsTotal,
	)
}

// Start starts the HTTP server for the metrics endpoint.
func (e *PrometheusExporter) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.running {
		return nil
	}

	ln, err := net.Listen("tcp", e.config.Addr)
	if err != nil {
		return fmt.Errorf("starting Prometheus exporter: %w", err)
	}
	e.ln = ln

	mux := http.NewServeMux()
	mux.Handle(e.config.Path, promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	}))
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	e.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := e.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			e.mu.Lock()
			e.lastError = err
			e.mu.Unlock()
		}
	}()

	e.running = true
	return nil
}

// Stop stops the HTTP server.
func (e *PrometheusExporter) Stop(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.running {
		return nil
	}
	e.running = false

	if e.server != nil {
		return e.server.Shutdown(ctx)
	}
	return nil
}

// Addr returns the bound listen address, useful when the configured port
// was 0.
func (e *PrometheusExporter) Addr() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.ln == nil {
		return e.config.Addr
	}
	return e.ln.Addr().String()
}

// LastError returns the most recent server error, if any.
func (e *PrometheusExporter) LastError() error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.lastError
}

// SessionLaunched records a session entering execution.
func (e *PrometheusExporter) SessionLaunched() {
	e.sessionsInFlight.Inc()
}

// TickSkipped records a dropped launch tick.
func (e *PrometheusExporter) TickSkipped() {
	e.skippedTicksTotal.Inc()
}

// SessionFinished records one completed session.
func (e *PrometheusExporter) SessionFinished(result *scenario.Result) {
	e.sessionsInFlight.Dec()
	e.sessionsTotal.WithLabelValues(string(result.Status)).Inc()
	e.sessionDurationSeconds.Observe(result.Duration.Seconds())

	for _, o := range result.Phases {
		e.phasesTotal.WithLabelValues(o.Phase, string(o.Status)).Inc()
	}
	for _, ep := range result.Endpoints {
		e.endpointsTotal.WithLabelValues(ep).Inc()
	}
}

// SetTargetRate publishes the configured launch rate.
func (e *PrometheusExporter) SetTargetRate(sessionsPerMinute float64) {
	e.targetSessionsPerMin.Set(sessionsPerMinute)
}

// Registry exposes the underlying registry as a Gatherer for tests.
func (e *PrometheusExporter) Registry() prometheus.Gatherer {
	return e.registry
}
