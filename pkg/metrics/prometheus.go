// Package metrics provides Prometheus metrics for the prefetch engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager manages all Prometheus metrics for the engine.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	registry         prometheus.Registerer

	// Pipeline metrics
	passesTotal        prometheus.Counter
	candidatesScored   prometheus.Counter
	candidatesAdmitted prometheus.Counter
	candidatesRejected *prometheus.CounterVec
	dispatchesTotal    prometheus.Counter
	immediateRequests  prometheus.Counter

	// Fetch outcome metrics
	fetchSuccess    prometheus.Counter
	fetchFailure    prometheus.Counter
	fetchLatency    prometheus.Histogram
	dispatchLatency prometheus.Histogram

	// Budget metrics
	spendTotal      prometheus.Counter
	budgetRemaining *prometheus.GaugeVec
	kvErrors        prometheus.Counter

	// Lifecycle metrics
	eventsByStage *prometheus.CounterVec
	inflightSize  prometheus.Gauge

	// HTTP metrics
	httpRequests *prometheus.CounterVec
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

// Initialize global metrics.
func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "swipedine",
		subsystem:        "prefetch",
		histogramBuckets: prometheus.DefBuckets,
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()
	return m
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.passesTotal = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "passes_total",
		Help:      "Total number of prefetch pipeline passes run",
	})

	m.candidatesScored = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "candidates_scored_total",
		Help:      "Total number of candidates scored",
	})

	m.candidatesAdmitted = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "candidates_admitted_total",
		Help:      "Total number of candidates admitted for dispatch",
	})

	m.candidatesRejected = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "candidates_rejected_total",
		Help:      "Total number of candidates rejected, by reason",
	}, []string{"reason"})

	m.dispatchesTotal = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "dispatches_total",
		Help:      "Total number of jobs handed to the fetch pool",
	})

	m.immediateRequests = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "immediate_requests_total",
		Help:      "Total number of user-triggered immediate fetches",
	})

	m.fetchSuccess = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "fetch_success_total",
		Help:      "Total number of candidates whose fetches all succeeded",
	})

	m.fetchFailure = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "fetch_failure_total",
		Help:      "Total number of candidates aborted by a transport failure",
	})

	m.fetchLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "fetch_latency_milliseconds",
		Help:      "Histogram of per-candidate fetch latency in milliseconds",
		Buckets:   m.histogramBuckets,
	})

	m.dispatchLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "dispatch_latency_milliseconds",
		Help:      "Histogram of end-to-end job processing latency in milliseconds",
		Buckets:   m.histogramBuckets,
	})

	m.spendTotal = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "spend_dollars_total",
		Help:      "Total dollars charged for speculative fetches",
	})

	m.budgetRemaining = auto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "budget_remaining_dollars",
		Help:      "Remaining budget per window (session, daily, monthly)",
	}, []string{"window"})

	m.kvErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "kv_errors_total",
		Help:      "Total counter-store failures (budget degraded to session-only)",
	})

	m.eventsByStage = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "events_total",
		Help:      "Total lifecycle events emitted, by stage",
	}, []string{"stage"})

	m.inflightSize = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "inflight_requests",
		Help:      "Current number of in-flight speculative fetches",
	})

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "http_requests_total",
		Help:      "Total HTTP requests to the ops surface",
	}, []string{"endpoint", "method", "status_code"})
}

// Package-level helpers on the global manager.

// RecordPass increments the pipeline pass counter.
func RecordPass() {
	globalManager.passesTotal.Inc()
}

// RecordCandidateScored increments the scored-candidate counter.
func RecordCandidateScored() {
	globalManager.candidatesScored.Inc()
}

// RecordCandidateAdmitted increments the admitted-candidate counter.
func RecordCandidateAdmitted() {
	globalManager.candidatesAdmitted.Inc()
}

// RecordCandidateRejected increments the rejection counter for reason.
func RecordCandidateRejected(reason string) {
	globalManager.candidatesRejected.WithLabelValues(reason).Inc()
}

// RecordDispatch increments the dispatched-job counter.
func RecordDispatch() {
	globalManager.dispatchesTotal.Inc()
}

// RecordImmediate increments the immediate-fetch counter.
func RecordImmediate() {
	globalManager.immediateRequests.Inc()
}

// RecordFetchSuccess increments the successful-candidate counter.
func RecordFetchSuccess() {
	globalManager.fetchSuccess.Inc()
}

// RecordFetchFailure increments the failed-candidate counter.
func RecordFetchFailure() {
	globalManager.fetchFailure.Inc()
}

// RecordFetchLatency records one candidate's fetch latency.
func RecordFetchLatency(latencyMs float64) {
	globalManager.fetchLatency.Observe(latencyMs)
}

// RecordDispatchLatency records one job's end-to-end latency.
func RecordDispatchLatency(latencyMs float64) {
	globalManager.dispatchLatency.Observe(latencyMs)
}

// RecordSpend adds a charge to the spend counter.
func RecordSpend(amount float64) {
	if amount > 0 {
		globalManager.spendTotal.Add(amount)
	}
}

// UpdateBudgetRemaining sets the remaining-budget gauge for a window.
func UpdateBudgetRemaining(window string, amount float64) {
	globalManager.budgetRemaining.WithLabelValues(window).Set(amount)
}

// RecordKVError increments the counter-store failure counter.
func RecordKVError() {
	globalManager.kvErrors.Inc()
}

// RecordEventStage increments the lifecycle event counter for a stage.
func RecordEventStage(stage string) {
	globalManager.eventsByStage.WithLabelValues(stage).Inc()
}

// UpdateInflightSize sets the in-flight gauge.
func UpdateInflightSize(size int) {
	globalManager.inflightSize.Set(float64(size))
}

// RecordHTTPRequest increments the HTTP request counter.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// GetRegistry returns the custom registry for HTTP exposition.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
