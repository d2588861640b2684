// Package metrics provides Prometheus metrics for the gridpick BFF.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns every gridpick collector.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      prometheus.Labels
	registry         prometheus.Registerer

	// HTTP surface served to browsers
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Calls to the record store and scoring API
	upstreamRequests *prometheus.CounterVec
	upstreamLatency  *prometheus.HistogramVec

	// Prediction workflow
	confidenceSamples *prometheus.CounterVec
	ballotSubmissions *prometheus.CounterVec
	settlements       *prometheus.CounterVec
	gradeJobs         *prometheus.CounterVec

	// Standings cache
	standingsEntries   prometheus.Gauge
	standingsRefreshes *prometheus.CounterVec

	// Grade persistence queue
	queueSize          prometheus.Gauge
	queueCapacity      prometheus.Gauge
	queueUtilization   prometheus.Gauge
	queueEnqueueErrors prometheus.Counter

	// Grade persistence workers
	workerCount             prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerErrors            prometheus.Counter

	// Notifications
	notificationsPublished *prometheus.CounterVec
	notificationsDropped   prometheus.Counter
	websocketSubscribers   prometheus.Gauge

	// Errors
	errorRateByComponent *prometheus.CounterVec
	errorRateByEndpoint  *prometheus.CounterVec

	// Process
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

// NewManager creates a metrics manager. Without WithPrometheusRegistry the
// collectors are registered on prometheus.DefaultRegisterer.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "gridpick",
		subsystem:        "bff",
		histogramBuckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
	}, labels)
}

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
	})
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
	})
}

func (m *Manager) histogram(name, help string) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		Buckets:     m.histogramBuckets,
		ConstLabels: m.constLabels,
	})
}

func (m *Manager) histogramVec(name, help string, labels ...string) *prometheus.HistogramVec {
	return promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		Buckets:     m.histogramBuckets,
		ConstLabels: m.constLabels,
	}, labels)
}

func (m *Manager) initializeMetrics() {
	m.httpRequests = m.counterVec("http_requests_total",
		"HTTP requests served by endpoint, method and status", "endpoint", "method", "status_code")
	m.httpRequestDuration = m.histogramVec("http_request_duration_milliseconds",
		"HTTP request duration in milliseconds", "endpoint", "method", "status_code")

	m.upstreamRequests = m.counterVec("upstream_requests_total",
		"Calls to external collaborators by outcome", "collaborator", "endpoint", "outcome")
	m.upstreamLatency = m.histogramVec("upstream_latency_milliseconds",
		"Latency of calls to external collaborators", "collaborator", "endpoint")

	m.confidenceSamples = m.counterVec("confidence_samples_total",
		"Confidence aggregations by result (served, no_data, stale, error)", "result")
	m.ballotSubmissions = m.counterVec("ballot_submissions_total",
		"Ballot submissions by outcome", "outcome")
	m.settlements = m.counterVec("settlements_total",
		"Settlement requests by outcome", "outcome")
	m.gradeJobs = m.counterVec("grade_jobs_total",
		"Manual grade adjustments by state (queued, confirmed, superseded, reverted)", "state")

	m.standingsEntries = m.gauge("standings_entries", "Users held in the standings cache")
	m.standingsRefreshes = m.counterVec("standings_refreshes_total",
		"Standings cache refreshes by outcome", "outcome")

	m.queueSize = m.gauge("grade_queue_size", "Pending grade persistence jobs")
	m.queueCapacity = m.gauge("grade_queue_capacity", "Capacity of the grade persistence queue")
	m.queueUtilization = m.gauge("grade_queue_utilization_ratio", "Grade queue size / capacity")
	m.queueEnqueueErrors = m.counter("grade_queue_enqueue_errors_total", "Rejected grade enqueues")

	m.workerCount = m.gauge("grade_worker_count", "Grade persistence workers")
	m.workerProcessingLatency = m.histogram("grade_worker_latency_milliseconds",
		"Time to persist one grade job")
	m.workerErrors = m.counter("grade_worker_errors_total", "Grade jobs that failed to persist")

	m.notificationsPublished = m.counterVec("notifications_published_total",
		"Notifications published by level", "level")
	m.notificationsDropped = m.counter("notifications_dropped_total",
		"Notifications dropped for slow subscribers")
	m.websocketSubscribers = m.gauge("websocket_subscribers", "Open notification websockets")

	m.errorRateByComponent = m.counterVec("errors_by_component_total",
		"Errors by component and type", "component", "error_type")
	m.errorRateByEndpoint = m.counterVec("errors_by_endpoint_total",
		"Errors by endpoint, method and type", "endpoint", "method", "error_type")

	m.systemMemoryUsage = m.gauge("system_memory_bytes", "Allocated heap bytes")
	m.systemGoroutineCount = m.gauge("system_goroutines", "Number of goroutines")
	m.systemGCPauseTime = m.histogram("system_gc_pause_milliseconds", "Average GC pause")
}

// HTTP

// RecordHTTPRequest increments the HTTP request counter.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records an HTTP request duration in milliseconds.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, durationMs float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(durationMs)
}

// Collaborators

// RecordUpstream records one call to the record store or scoring API.
func RecordUpstream(collaborator, endpoint, outcome string, latencyMs float64) {
	globalManager.upstreamRequests.WithLabelValues(collaborator, endpoint, outcome).Inc()
	globalManager.upstreamLatency.WithLabelValues(collaborator, endpoint).Observe(latencyMs)
}

// Workflow

// RecordConfidenceSample counts an aggregation result.
func RecordConfidenceSample(result string) {
	globalManager.confidenceSamples.WithLabelValues(result).Inc()
}

// RecordBallotSubmission counts a submission outcome.
func RecordBallotSubmission(outcome string) {
	globalManager.ballotSubmissions.WithLabelValues(outcome).Inc()
}

// RecordSettlement counts a settlement outcome.
func RecordSettlement(outcome string) {
	globalManager.settlements.WithLabelValues(outcome).Inc()
}

// RecordGradeJob counts a grade adjustment state transition.
func RecordGradeJob(state string) {
	globalManager.gradeJobs.WithLabelValues(state).Inc()
}

// Standings

// UpdateStandingsEntries sets the number of cached standings rows.
func UpdateStandingsEntries(count int) {
	globalManager.standingsEntries.Set(float64(count))
}

// RecordStandingsRefresh counts a standings refresh.
func RecordStandingsRefresh(outcome string) {
	globalManager.standingsRefreshes.WithLabelValues(outcome).Inc()
}

// Queue

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// UpdateQueueUtilization sets queue size / capacity.
func UpdateQueueUtilization(utilization float64) {
	globalManager.queueUtilization.Set(utilization)
}

// RecordQueueEnqueueError increments the enqueue error counter.
func RecordQueueEnqueueError() {
	globalManager.queueEnqueueErrors.Inc()
}

// Workers

// UpdateWorkerCount sets the number of grade workers.
func UpdateWorkerCount(count int) {
	globalManager.workerCount.Set(float64(count))
}

// RecordWorkerProcessingLatency records how long one job took.
func RecordWorkerProcessingLatency(latencyMs float64) {
	globalManager.workerProcessingLatency.Observe(latencyMs)
}

// RecordWorkerError increments the worker error counter.
func RecordWorkerError() {
	globalManager.workerErrors.Inc()
}

// Notifications

// RecordNotificationPublished counts a published notification.
func RecordNotificationPublished(level string) {
	globalManager.notificationsPublished.WithLabelValues(level).Inc()
}

// RecordNotificationDropped counts a notification a subscriber could not take.
func RecordNotificationDropped() {
	globalManager.notificationsDropped.Inc()
}

// UpdateWebsocketSubscribers sets the number of open notification sockets.
func UpdateWebsocketSubscribers(count int) {
	globalManager.websocketSubscribers.Set(float64(count))
}

// Errors

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorRateByComponent.WithLabelValues(component, errorType).Inc()
}

// RecordErrorByEndpoint records an error with endpoint, method, and type labels.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// Process

// UpdateSystemMemoryUsage sets the allocated heap in bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// RecordSystemGCPauseTime records GC pause time in milliseconds.
func RecordSystemGCPauseTime(pauseMs float64) {
	globalManager.systemGCPauseTime.Observe(pauseMs)
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
