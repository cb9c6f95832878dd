// Package metrics provides Prometheus metrics for the trade evaluation
// and ranking engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Manager owns all Prometheus collectors for the service.
type Manager struct {
	namespace string
	registry  *prometheus.Registry

	// Trade evaluation metrics.
	tradesSubmitted  prometheus.Counter
	tradesRejected   prometheus.Counter
	cacheHits        *prometheus.CounterVec
	cacheMisses      *prometheus.CounterVec
	evaluatorCalls   prometheus.Counter
	evaluatorErrors  prometheus.Counter
	evaluatorLatency prometheus.Histogram
	staleDataFlags   prometheus.Counter

	// Audit pipeline metrics.
	auditQueueDepth prometheus.Gauge
	auditResults    *prometheus.CounterVec
	auditLatency    prometheus.Histogram
	auditDropped    prometheus.Counter

	// Leaderboard metrics.
	leaderboardUpdates prometheus.Counter
	leaderboardUsers   prometheus.Gauge
	leaderboardLatency prometheus.Histogram

	// Ledger metrics.
	ledgerWrites      prometheus.Counter
	ledgerWriteErrors prometheus.Counter

	// HTTP metrics.
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// System metrics.
	memoryUsage    prometheus.Gauge
	goroutineCount prometheus.Gauge
}

// NewManager builds a Manager with its own registry.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace: "gmtrade",
		registry:  prometheus.NewRegistry(),
	}
	for _, opt := range opts {
		opt(m)
	}

	latencyBuckets := []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000}

	m.tradesSubmitted = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Name: "trades_submitted_total",
		Help: "Total trade submissions accepted for evaluation.",
	})
	m.tradesRejected = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Name: "trades_rejected_total",
		Help: "Total trade submissions rejected as invalid.",
	})
	m.cacheHits = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Name: "cache_hits_total",
		Help: "Cache hits per result namespace.",
	}, []string{"namespace"})
	m.cacheMisses = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Name: "cache_misses_total",
		Help: "Cache misses per result namespace.",
	}, []string{"namespace"})
	m.evaluatorCalls = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Name: "evaluator_calls_total",
		Help: "Calls made to the deterministic evaluator.",
	})
	m.evaluatorErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Name: "evaluator_errors_total",
		Help: "Evaluator calls that failed or timed out.",
	})
	m.evaluatorLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Name: "evaluator_latency_ms",
		Help:    "Deterministic evaluator latency in milliseconds.",
		Buckets: latencyBuckets,
	})
	m.staleDataFlags = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Name: "stale_data_flags_total",
		Help: "Grades computed against stale roster data.",
	})
	m.auditQueueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Name: "audit_queue_depth",
		Help: "Jobs currently waiting in the audit queue.",
	})
	m.auditResults = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Name: "audit_results_total",
		Help: "Audit outcomes by status (completed, unavailable).",
	}, []string{"status"})
	m.auditLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Name: "audit_latency_ms",
		Help:    "Plausibility audit latency in milliseconds.",
		Buckets: latencyBuckets,
	})
	m.auditDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Name: "audit_jobs_dropped_total",
		Help: "Audit jobs dropped due to queue backpressure.",
	})
	m.leaderboardUpdates = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Name: "leaderboard_updates_total",
		Help: "Score updates applied to the leaderboard.",
	})
	m.leaderboardUsers = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Name: "leaderboard_users",
		Help: "Distinct users tracked across leaderboard buckets.",
	})
	m.leaderboardLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Name: "leaderboard_query_latency_ms",
		Help:    "Leaderboard query latency in milliseconds.",
		Buckets: latencyBuckets,
	})
	m.ledgerWrites = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Name: "ledger_writes_total",
		Help: "Activity rows written to the session ledger.",
	})
	m.ledgerWriteErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Name: "ledger_write_errors_total",
		Help: "Best-effort ledger writes that failed.",
	})
	m.httpRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Name: "http_requests_total",
		Help: "HTTP requests by endpoint, method and status.",
	}, []string{"endpoint", "method", "status"})
	m.httpRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Name: "http_request_duration_ms",
		Help:    "HTTP request duration in milliseconds.",
		Buckets: latencyBuckets,
	}, []string{"endpoint", "method"})
	m.memoryUsage = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Name: "system_memory_bytes",
		Help: "Allocated heap bytes.",
	})
	m.goroutineCount = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Name: "system_goroutines",
		Help: "Current goroutine count.",
	})

	m.registry.MustRegister(
		m.tradesSubmitted, m.tradesRejected,
		m.cacheHits, m.cacheMisses,
		m.evaluatorCalls, m.evaluatorErrors, m.evaluatorLatency,
		m.staleDataFlags,
		m.auditQueueDepth, m.auditResults, m.auditLatency, m.auditDropped,
		m.leaderboardUpdates, m.leaderboardUsers, m.leaderboardLatency,
		m.ledgerWrites, m.ledgerWriteErrors,
		m.httpRequests, m.httpRequestDuration,
		m.memoryUsage, m.goroutineCount,
	)

	return m
}

// Registry exposes the underlying registry for HTTP serving.
func (m *Manager) Registry() *prometheus.Registry { return m.registry }

var defaultManager = NewManager()

// GetRegistry returns the default manager's registry.
func GetRegistry() *prometheus.Registry { return defaultManager.Registry() }

// Package-level recorders against the default manager.

func RecordTradeSubmitted() { defaultManager.tradesSubmitted.Inc() }
func RecordTradeRejected()  { defaultManager.tradesRejected.Inc() }

func RecordCacheHit(namespace string)  { defaultManager.cacheHits.WithLabelValues(namespace).Inc() }
func RecordCacheMiss(namespace string) { defaultManager.cacheMisses.WithLabelValues(namespace).Inc() }

func RecordEvaluatorCall()  { defaultManager.evaluatorCalls.Inc() }
func RecordEvaluatorError() { defaultManager.evaluatorErrors.Inc() }
func RecordEvaluatorLatency(ms float64) {
	defaultManager.evaluatorLatency.Observe(ms)
}
func RecordStaleDataFlag() { defaultManager.staleDataFlags.Inc() }

func UpdateAuditQueueDepth(n int) { defaultManager.auditQueueDepth.Set(float64(n)) }
func RecordAuditResult(status string) {
	defaultManager.auditResults.WithLabelValues(status).Inc()
}
func RecordAuditLatency(ms float64) { defaultManager.auditLatency.Observe(ms) }
func RecordAuditDropped()           { defaultManager.auditDropped.Inc() }

func RecordLeaderboardUpdate()     { defaultManager.leaderboardUpdates.Inc() }
func UpdateLeaderboardUsers(n int) { defaultManager.leaderboardUsers.Set(float64(n)) }
func RecordLeaderboardQueryLatency(ms float64) {
	defaultManager.leaderboardLatency.Observe(ms)
}

func RecordLedgerWrite()      { defaultManager.ledgerWrites.Inc() }
func RecordLedgerWriteError() { defaultManager.ledgerWriteErrors.Inc() }

func RecordHTTPRequest(endpoint, method, status string) {
	defaultManager.httpRequests.WithLabelValues(endpoint, method, status).Inc()
}

func RecordHTTPRequestDuration(endpoint, method string, ms float64) {
	defaultManager.httpRequestDuration.WithLabelValues(endpoint, method).Observe(ms)
}

func UpdateSystemMemoryUsage(bytes uint64) {
	defaultManager.memoryUsage.Set(float64(bytes))
}

func UpdateSystemGoroutineCount(n int) {
	defaultManager.goroutineCount.Set(float64(n))
}
