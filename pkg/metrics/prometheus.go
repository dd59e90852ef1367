// Package metrics provides Prometheus metrics for the tally client.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Latency buckets in milliseconds; remote calls are dominated by the network.
var defaultBuckets = []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000} //nolint:gochecknoglobals // fixed buckets

// Outcome labels shared by the counters below.
const (
	OutcomeOK       = "ok"
	OutcomeError    = "error"
	OutcomeRejected = "rejected"
	OutcomeInvalid  = "invalid"
)

// Manager owns the Prometheus metrics of the tally client.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	registry         prometheus.Registerer

	// Refresh cycle
	refreshes       *prometheus.CounterVec
	refreshDuration prometheus.Histogram
	viewPrecincts   prometheus.Gauge
	viewMinedVotes  prometheus.Gauge
	viewPendingVote prometheus.Gauge

	// Remote service client
	clientRequests *prometheus.CounterVec
	clientLatency  *prometheus.HistogramVec
	clientErrors   *prometheus.CounterVec

	// Actions
	submissions     *prometheus.CounterVec
	mines           *prometheus.CounterVec
	rosterFallbacks *prometheus.CounterVec
	exports         *prometheus.CounterVec

	// View API
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	errorRateByEndpoint *prometheus.CounterVec
	errorRateByType     *prometheus.CounterVec
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "tally",
		subsystem:        "client",
		histogramBuckets: defaultBuckets,
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()
	return m
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every collector
	auto := promauto.With(m.registry)

	m.refreshes = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "refreshes_total",
		Help:      "Refresh cycles by outcome",
	}, []string{"outcome"})

	m.refreshDuration = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "refresh_duration_milliseconds",
		Help:      "Duration of a full refresh cycle (fetch, group, tally)",
		Buckets:   m.histogramBuckets,
	})

	m.viewPrecincts = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "view_precincts",
		Help:      "Precincts in the current view",
	})

	m.viewMinedVotes = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "view_mined_votes",
		Help:      "Finalized votes in the current view",
	})

	m.viewPendingVote = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "view_pending_votes",
		Help:      "Pending votes in the current view",
	})

	m.clientRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "remote_requests_total",
		Help:      "Requests to the tally service by endpoint and status code",
	}, []string{"endpoint", "status_code"})

	m.clientLatency = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "remote_request_duration_milliseconds",
		Help:      "Round trip time to the tally service",
		Buckets:   m.histogramBuckets,
	}, []string{"endpoint"})

	m.clientErrors = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "remote_errors_total",
		Help:      "Tally service failures by endpoint and error kind",
	}, []string{"endpoint", "kind"})

	m.submissions = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "vote_submissions_total",
		Help:      "Vote submissions by outcome",
	}, []string{"outcome"})

	m.mines = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "mine_requests_total",
		Help:      "Mine requests by outcome",
	}, []string{"outcome"})

	m.rosterFallbacks = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "roster_fallbacks_total",
		Help:      "Times the roster fell back to a local source",
	}, []string{"source"})

	m.exports = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "exports_total",
		Help:      "Exports produced by format",
	}, []string{"format"})

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "http_requests_total",
		Help:      "View API requests by endpoint and method",
	}, []string{"endpoint", "method", "status_code"})

	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "http_request_duration_milliseconds",
		Help:      "View API request duration in milliseconds",
		Buckets:   m.histogramBuckets,
	}, []string{"endpoint", "method", "status_code"})

	m.errorRateByEndpoint = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "errors_by_endpoint_total",
		Help:      "View API errors by endpoint",
	}, []string{"endpoint", "method", "error_type"})

	m.errorRateByType = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "errors_by_type_total",
		Help:      "View API errors by type and severity",
	}, []string{"error_type", "severity"})
}

// RecordRefresh counts a refresh cycle and its duration.
func RecordRefresh(outcome string, durationMs float64) {
	globalManager.refreshes.WithLabelValues(outcome).Inc()
	globalManager.refreshDuration.Observe(durationMs)
}

// UpdateView sets the gauges describing the current view.
func UpdateView(precincts, mined, pending int) {
	globalManager.viewPrecincts.Set(float64(precincts))
	globalManager.viewMinedVotes.Set(float64(mined))
	globalManager.viewPendingVote.Set(float64(pending))
}

// RecordRemoteRequest records one round trip to the tally service.
func RecordRemoteRequest(endpoint, statusCode string, durationMs float64) {
	globalManager.clientRequests.WithLabelValues(endpoint, statusCode).Inc()
	globalManager.clientLatency.WithLabelValues(endpoint).Observe(durationMs)
}

// RecordRemoteError counts a failed call by error kind.
func RecordRemoteError(endpoint, kind string) {
	globalManager.clientErrors.WithLabelValues(endpoint, kind).Inc()
}

// RecordSubmission counts a vote submission outcome.
func RecordSubmission(outcome string) {
	globalManager.submissions.WithLabelValues(outcome).Inc()
}

// RecordMine counts a mine request outcome.
func RecordMine(outcome string) {
	globalManager.mines.WithLabelValues(outcome).Inc()
}

// RecordRosterFallback counts a roster fallback to source ("file", "builtin").
func RecordRosterFallback(source string) {
	globalManager.rosterFallbacks.WithLabelValues(source).Inc()
}

// RecordExport counts an export by format.
func RecordExport(format string) {
	globalManager.exports.WithLabelValues(format).Inc()
}

// RecordHTTPRequest records a view API request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records view API request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordErrorByEndpoint records an error with endpoint, method, and error type labels.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// RecordErrorByType records an error with type and severity labels.
func RecordErrorByType(errorType, severity string) {
	globalManager.errorRateByType.WithLabelValues(errorType, severity).Inc()
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
