package monitoring

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Run pipeline metrics
	RunsTotal        *prometheus.CounterVec
	RunDuration      *prometheus.HistogramVec
	ValidationsTotal *prometheus.CounterVec
	CompletionsTotal prometheus.Counter

	// Progress store metrics
	StoreCalls     *prometheus.CounterVec
	StoreDuration  *prometheus.HistogramVec
	StoreFallbacks prometheus.Counter

	// WebSocket metrics
	WSConnections prometheus.Gauge
	WSMessages    *prometheus.CounterVec

	registry  prometheus.Registerer
	gatherer  prometheus.Gatherer
	startTime time.Time

	// Snapshot for the JSON health endpoint
	snapshot Snapshot
	mu       sync.RWMutex
}

// Snapshot holds current metric values for JSON API
type Snapshot struct {
	TotalRequests int64   `json:"total_requests"`
	TotalErrors   int64   `json:"total_errors"`
	TotalRuns     int64   `json:"total_runs"`
	PassedRuns    int64   `json:"passed_runs"`
	ActiveStreams int64   `json:"active_streams"`
	UptimeSeconds float64 `json:"uptime_seconds"`
}

// NewMetrics registers collectors on a fresh registry
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	return NewMetricsWith(reg, reg)
}

// NewMetricsWith registers collectors on reg and serves them from g
func NewMetricsWith(reg prometheus.Registerer, g prometheus.Gatherer) *Metrics {
	factory := promauto.With(reg)
	m := &Metrics{
		registry:  reg,
		gatherer:  g,
		startTime: time.Now(),

		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gorilin_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gorilin_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),

		RunsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gorilin_runs_total",
				Help: "Total number of lesson and playground runs",
			},
			[]string{"kind", "status"},
		),
		RunDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gorilin_run_duration_seconds",
				Help:    "Run duration in seconds, from strip to validation",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2, 5},
			},
			[]string{"kind"},
		),
		ValidationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gorilin_validations_total",
				Help: "Total number of lesson validations",
			},
			[]string{"lesson", "result"},
		),
		CompletionsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "gorilin_lesson_completions_total",
				Help: "Total number of first-time lesson completions",
			},
		),

		StoreCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gorilin_progress_store_calls_total",
				Help: "Total number of progress store calls",
			},
			[]string{"backend", "op", "status"},
		),
		StoreDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gorilin_progress_store_duration_seconds",
				Help:    "Progress store call duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"backend", "op"},
		),
		StoreFallbacks: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "gorilin_progress_store_fallbacks_total",
				Help: "Calls served by the local store because the primary failed",
			},
		),

		WSConnections: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "gorilin_ws_connections",
				Help: "Number of active WebSocket connections",
			},
		),
		WSMessages: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gorilin_ws_messages_total",
				Help: "Total number of WebSocket messages",
			},
			[]string{"direction", "type"},
		),
	}

	factory.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "gorilin_uptime_seconds",
			Help: "Service uptime in seconds",
		},
		func() float64 { return time.Since(m.startTime).Seconds() },
	)

	return m
}

// Gatherer exposes the registry for the /metrics handler
func (m *Metrics) Gatherer() prometheus.Gatherer {
	return m.gatherer
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())

	m.mu.Lock()
	m.snapshot.TotalRequests++
	if status != "" && (status[0] == '4' || status[0] == '5') {
		m.snapshot.TotalErrors++
	}
	m.mu.Unlock()
}

// RecordRun records one run of the pipeline
func (m *Metrics) RecordRun(kind, status string, duration time.Duration) {
	m.RunsTotal.WithLabelValues(kind, status).Inc()
	m.RunDuration.WithLabelValues(kind).Observe(duration.Seconds())

	m.mu.Lock()
	m.snapshot.TotalRuns++
	if status == "passed" {
		m.snapshot.PassedRuns++
	}
	m.mu.Unlock()
}

// RecordValidation records a validator verdict
func (m *Metrics) RecordValidation(lesson string, success bool) {
	result := "failed"
	if success {
		result = "passed"
	}
	m.ValidationsTotal.WithLabelValues(lesson, result).Inc()
}

// IncCompletions counts a first-time completion
func (m *Metrics) IncCompletions() {
	m.CompletionsTotal.Inc()
}

// RecordStoreCall records a progress store call
func (m *Metrics) RecordStoreCall(backend, op, status string, duration time.Duration) {
	m.StoreCalls.WithLabelValues(backend, op, status).Inc()
	m.StoreDuration.WithLabelValues(backend, op).Observe(duration.Seconds())
}

// IncStoreFallbacks counts a call served by the fallback store
func (m *Metrics) IncStoreFallbacks() {
	m.StoreFallbacks.Inc()
}

// RecordWSMessage records a WebSocket message
func (m *Metrics) RecordWSMessage(direction, msgType string) {
	m.WSMessages.WithLabelValues(direction, msgType).Inc()
}

// IncWSConnections increments WebSocket connections
func (m *Metrics) IncWSConnections() {
	m.WSConnections.Inc()
	m.mu.Lock()
	m.snapshot.ActiveStreams++
	m.mu.Unlock()
}

// DecWSConnections decrements WebSocket connections
func (m *Metrics) DecWSConnections() {
	m.WSConnections.Dec()
	m.mu.Lock()
	m.snapshot.ActiveStreams--
	m.mu.Unlock()
}

// GetSnapshot returns current values for the JSON API
func (m *Metrics) GetSnapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s := m.snapshot
	s.UptimeSeconds = time.Since(m.startTime).Seconds()
	return s
}
