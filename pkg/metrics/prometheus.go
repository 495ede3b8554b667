// Package metrics provides Prometheus metrics for the PlaneWar score server.
package metrics

import (
	"context"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Default metrics configuration constants.
const (
	defaultRefreshInterval = 10 * time.Second
	nanosPerMillisecond    = 1e6
)

// Manager manages all Prometheus metrics for the score server.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	refreshInterval  time.Duration
	customLabels     map[string]string
	metricPrefix     string
	registry         prometheus.Registerer

	// Score Metrics - submissions and the players behind them
	scoresSubmitted    prometheus.Counter
	scoresRejected     *prometheus.CounterVec
	scoreAppendLatency prometheus.Histogram
	scoreRecordsTotal  prometheus.Gauge
	playersRegistered  prometheus.Counter
	playersDeleted     prometheus.Counter
	logins             *prometheus.CounterVec

	// Leaderboard Metrics - per query kind (level, overall, levels)
	leaderboardQueries      *prometheus.CounterVec
	leaderboardQueryLatency *prometheus.HistogramVec
	leaderboardEntries      *prometheus.GaugeVec
	leaderboardErrors       *prometheus.CounterVec

	// Cache Metrics
	cacheHits          *prometheus.CounterVec
	cacheMisses        *prometheus.CounterVec
	cacheErrors        prometheus.Counter
	cacheInvalidations prometheus.Counter

	// Ingestion Metrics - asynchronous score events
	eventsConsumed  prometheus.Counter
	eventsDuplicate prometheus.Counter
	eventsInvalid   prometheus.Counter

	// Queue Metrics
	queueSize          prometheus.Gauge
	queueCapacity      prometheus.Gauge
	queueUtilization   prometheus.Gauge
	queueEnqueueRate   prometheus.Counter
	queueDequeueRate   prometheus.Counter
	queueEnqueueErrors prometheus.Counter

	// Worker Metrics
	workerCount             prometheus.Gauge
	workerActiveCount       prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerErrors            prometheus.Counter

	// HTTP Performance Metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Error Metrics
	errorRateByComponent *prometheus.CounterVec
	errorRateByType      *prometheus.CounterVec
	errorRateByEndpoint  *prometheus.CounterVec

	// System Performance Metrics
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // metrics registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "planewar",
		subsystem:        "server",
		histogramBuckets: prometheus.DefBuckets,
		enabled:          true,
		refreshInterval:  defaultRefreshInterval,
		customLabels:     make(map[string]string),
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	// A disabled manager still hands out live collectors, they are just never
	// exposed.
	if !m.enabled {
		m.registry = prometheus.NewRegistry()
	}

	m.initializeMetrics()

	return m
}

func (m *Manager) name(n string) string {
	if m.metricPrefix == "" {
		return n
	}
	return m.metricPrefix + "_" + n
}

func (m *Manager) counterOpts(name, help string) prometheus.CounterOpts {
	return prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name(name),
		Help:        help,
		ConstLabels: m.customLabels,
	}
}

func (m *Manager) gaugeOpts(name, help string) prometheus.GaugeOpts {
	return prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name(name),
		Help:        help,
		ConstLabels: m.customLabels,
	}
}

func (m *Manager) histogramOpts(name, help string, buckets []float64) prometheus.HistogramOpts {
	return prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name(name),
		Help:        help,
		Buckets:     buckets,
		ConstLabels: m.customLabels,
	}
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every collector
	auto := promauto.With(m.registry)

	// Score Metrics
	m.scoresSubmitted = auto.NewCounter(m.counterOpts("scores_submitted_total",
		"Total number of score records appended"))
	m.scoresRejected = auto.NewCounterVec(m.counterOpts("scores_rejected_total",
		"Total number of rejected score submissions by reason"), []string{"reason"})
	m.scoreAppendLatency = auto.NewHistogram(m.histogramOpts("score_append_latency_milliseconds",
		"Score append latency in milliseconds", m.histogramBuckets))
	m.scoreRecordsTotal = auto.NewGauge(m.gaugeOpts("score_records",
		"Number of score records held by the store"))
	m.playersRegistered = auto.NewCounter(m.counterOpts("players_registered_total",
		"Total number of registered players"))
	m.playersDeleted = auto.NewCounter(m.counterOpts("players_deleted_total",
		"Total number of deleted players"))
	m.logins = auto.NewCounterVec(m.counterOpts("logins_total",
		"Total number of login attempts by result"), []string{"result"})

	// Leaderboard Metrics
	m.leaderboardQueries = auto.NewCounterVec(m.counterOpts("leaderboard_queries_total",
		"Total number of leaderboard queries by kind"), []string{"kind"})
	m.leaderboardQueryLatency = auto.NewHistogramVec(m.histogramOpts("leaderboard_query_latency_milliseconds",
		"Leaderboard query latency in milliseconds by kind", m.histogramBuckets), []string{"kind"})
	m.leaderboardEntries = auto.NewGaugeVec(m.gaugeOpts("leaderboard_entries",
		"Number of entries returned by the last leaderboard query of a kind"), []string{"kind"})
	m.leaderboardErrors = auto.NewCounterVec(m.counterOpts("leaderboard_errors_total",
		"Total number of failed leaderboard queries by kind"), []string{"kind"})

	// Cache Metrics
	m.cacheHits = auto.NewCounterVec(m.counterOpts("cache_hits_total",
		"Total number of leaderboard cache hits by kind"), []string{"kind"})
	m.cacheMisses = auto.NewCounterVec(m.counterOpts("cache_misses_total",
		"Total number of leaderboard cache misses by kind"), []string{"kind"})
	m.cacheErrors = auto.NewCounter(m.counterOpts("cache_errors_total",
		"Total number of leaderboard cache errors"))
	m.cacheInvalidations = auto.NewCounter(m.counterOpts("cache_invalidations_total",
		"Total number of leaderboard cache invalidations"))

	// Ingestion Metrics
	m.eventsConsumed = auto.NewCounter(m.counterOpts("events_consumed_total",
		"Total number of score events consumed from the broker"))
	m.eventsDuplicate = auto.NewCounter(m.counterOpts("events_duplicate_total",
		"Total number of duplicate score events dropped"))
	m.eventsInvalid = auto.NewCounter(m.counterOpts("events_invalid_total",
		"Total number of malformed score events dropped"))

	// Queue Metrics
	m.queueSize = auto.NewGauge(m.gaugeOpts("queue_size",
		"Current number of score events in the ingestion queue"))
	m.queueCapacity = auto.NewGauge(m.gaugeOpts("queue_capacity",
		"Maximum capacity of the ingestion queue"))
	m.queueUtilization = auto.NewGauge(m.gaugeOpts("queue_utilization_ratio",
		"Ingestion queue utilization ratio (0-1)"))
	m.queueEnqueueRate = auto.NewCounter(m.counterOpts("queue_enqueue_total",
		"Total number of events enqueued"))
	m.queueDequeueRate = auto.NewCounter(m.counterOpts("queue_dequeue_total",
		"Total number of events dequeued"))
	m.queueEnqueueErrors = auto.NewCounter(m.counterOpts("queue_enqueue_errors_total",
		"Total number of enqueue failures"))

	// Worker Metrics
	m.workerCount = auto.NewGauge(m.gaugeOpts("worker_count",
		"Number of ingestion workers"))
	m.workerActiveCount = auto.NewGauge(m.gaugeOpts("worker_active_count",
		"Number of workers currently processing an event"))
	m.workerProcessingLatency = auto.NewHistogram(m.histogramOpts("worker_processing_latency_milliseconds",
		"Worker processing latency in milliseconds", m.histogramBuckets))
	m.workerErrors = auto.NewCounter(m.counterOpts("worker_errors_total",
		"Total number of worker processing errors"))

	// HTTP Performance Metrics
	m.httpRequests = auto.NewCounterVec(m.counterOpts("http_requests_total",
		"Total number of HTTP requests"), []string{"endpoint", "method", "status_code"})
	m.httpRequestDuration = auto.NewHistogramVec(m.histogramOpts("http_request_duration_milliseconds",
		"HTTP request duration in milliseconds", m.histogramBuckets), []string{"endpoint", "method", "status_code"})

	// Error Metrics
	m.errorRateByComponent = auto.NewCounterVec(m.counterOpts("errors_by_component_total",
		"Total number of errors by component"), []string{"component", "error_type"})
	m.errorRateByType = auto.NewCounterVec(m.counterOpts("errors_by_type_total",
		"Total number of errors by type and severity"), []string{"error_type", "severity"})
	m.errorRateByEndpoint = auto.NewCounterVec(m.counterOpts("errors_by_endpoint_total",
		"Total number of errors by endpoint"), []string{"endpoint", "method", "error_type"})

	// System Performance Metrics
	m.systemMemoryUsage = auto.NewGauge(m.gaugeOpts("system_memory_usage_bytes",
		"System memory usage in bytes"))
	m.systemGoroutineCount = auto.NewGauge(m.gaugeOpts("system_goroutine_count",
		"Number of goroutines"))
	m.systemGCPauseTime = auto.NewHistogram(m.histogramOpts("system_gc_pause_time_milliseconds",
		"GC pause time in milliseconds",
		[]float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000}))
}

// StartSystemCollector samples memory, goroutine and GC statistics every
// refresh interval until ctx is done.
func (m *Manager) StartSystemCollector(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(m.refreshInterval)
		defer ticker.Stop()

		var lastNumGC uint32
		for {
			var ms runtime.MemStats
			runtime.ReadMemStats(&ms)
			m.systemMemoryUsage.Set(float64(ms.Alloc))
			m.systemGoroutineCount.Set(float64(runtime.NumGoroutine()))
			if ms.NumGC > lastNumGC {
				m.systemGCPauseTime.Observe(float64(ms.PauseNs[(ms.NumGC+255)%256]) / nanosPerMillisecond)
				lastNumGC = ms.NumGC
			}

			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
}

// StartSystemCollector starts the system sampler of the global manager.
func StartSystemCollector(ctx context.Context) {
	globalManager.StartSystemCollector(ctx)
}

// Score Metrics Functions.

// RecordScoreSubmitted increments the appended scores counter.
func RecordScoreSubmitted() {
	globalManager.scoresSubmitted.Inc()
}

// RecordScoreRejected counts a rejected submission.
func RecordScoreRejected(reason string) {
	globalManager.scoresRejected.WithLabelValues(reason).Inc()
}

// RecordScoreAppendLatency records store append latency in milliseconds.
func RecordScoreAppendLatency(latencyMs float64) {
	globalManager.scoreAppendLatency.Observe(latencyMs)
}

// UpdateScoreRecordsTotal sets the number of stored score records.
func UpdateScoreRecordsTotal(count int) {
	globalManager.scoreRecordsTotal.Set(float64(count))
}

// RecordPlayerRegistered increments the registrations counter.
func RecordPlayerRegistered() {
	globalManager.playersRegistered.Inc()
}

// RecordPlayerDeleted increments the deletions counter.
func RecordPlayerDeleted() {
	globalManager.playersDeleted.Inc()
}

// RecordLogin counts a login attempt; result is "success" or "failure".
func RecordLogin(result string) {
	globalManager.logins.WithLabelValues(result).Inc()
}

// Leaderboard Metrics Functions.

// RecordLeaderboardQuery records one leaderboard query of the given kind.
func RecordLeaderboardQuery(kind string, latencyMs float64, entries int) {
	globalManager.leaderboardQueries.WithLabelValues(kind).Inc()
	globalManager.leaderboardQueryLatency.WithLabelValues(kind).Observe(latencyMs)
	globalManager.leaderboardEntries.WithLabelValues(kind).Set(float64(entries))
}

// RecordLeaderboardError increments the leaderboard errors counter.
func RecordLeaderboardError(kind string) {
	globalManager.leaderboardErrors.WithLabelValues(kind).Inc()
}

// Cache Metrics Functions.

// RecordCacheHit increments the cache hit counter.
func RecordCacheHit(kind string) {
	globalManager.cacheHits.WithLabelValues(kind).Inc()
}

// RecordCacheMiss increments the cache miss counter.
func RecordCacheMiss(kind string) {
	globalManager.cacheMisses.WithLabelValues(kind).Inc()
}

// RecordCacheError increments the cache error counter.
func RecordCacheError() {
	globalManager.cacheErrors.Inc()
}

// RecordCacheInvalidation increments the invalidation counter.
func RecordCacheInvalidation() {
	globalManager.cacheInvalidations.Inc()
}

// Ingestion Metrics Functions.

// RecordEventConsumed increments the consumed events counter.
func RecordEventConsumed() {
	globalManager.eventsConsumed.Inc()
}

// RecordEventDuplicate increments the duplicate events counter.
func RecordEventDuplicate() {
	globalManager.eventsDuplicate.Inc()
}

// RecordEventInvalid increments the malformed events counter.
func RecordEventInvalid() {
	globalManager.eventsInvalid.Inc()
}

// Queue Metrics Functions.

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the maximum queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// UpdateQueueUtilization sets the queue utilization ratio.
func UpdateQueueUtilization(utilization float64) {
	globalManager.queueUtilization.Set(utilization)
}

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() {
	globalManager.queueEnqueueRate.Inc()
}

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() {
	globalManager.queueDequeueRate.Inc()
}

// RecordQueueEnqueueError increments the enqueue error counter.
func RecordQueueEnqueueError() {
	globalManager.queueEnqueueErrors.Inc()
}

// Worker Metrics Functions.

// UpdateWorkerCount sets the current worker count.
func UpdateWorkerCount(count int) {
	globalManager.workerCount.Set(float64(count))
}

// UpdateWorkerActiveCount sets the number of busy workers.
func UpdateWorkerActiveCount(count int) {
	globalManager.workerActiveCount.Set(float64(count))
}

// RecordWorkerProcessingLatency records worker processing latency.
func RecordWorkerProcessingLatency(latencyMs float64) {
	globalManager.workerProcessingLatency.Observe(latencyMs)
}

// RecordWorkerError increments the worker error counter.
func RecordWorkerError() {
	globalManager.workerErrors.Inc()
}

// HTTP Metrics Functions.

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// Error Metrics Functions.

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorRateByComponent.WithLabelValues(component, errorType).Inc()
}

// RecordErrorByType records an error with type and severity labels.
func RecordErrorByType(errorType, severity string) {
	globalManager.errorRateByType.WithLabelValues(errorType, severity).Inc()
}

// RecordErrorByEndpoint records an error with endpoint, method, and error type labels.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
