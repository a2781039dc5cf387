// Package metrics provides Prometheus metrics for the zonetrack service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// tickLatencyBuckets are tuned for sub-millisecond engine ticks.
var tickLatencyBuckets = []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 25, 50} //nolint:gochecknoglobals // fixed bucket layout

// Manager manages all Prometheus metrics for the zonetrack service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	customLabels     map[string]string
	metricPrefix     string
	registry         prometheus.Registerer

	// Tracking engine
	ticksTotal         prometheus.Counter
	ticksRejected      prometheus.Counter
	tickLatency        prometheus.Histogram
	tracksActive       prometheus.Gauge
	tracksCreated      prometheus.Counter
	tracksRetired      prometheus.Counter
	detectionsReceived prometheus.Counter
	detectionsSkipped  prometheus.Counter
	detectionsFiltered prometheus.Counter
	zoneEntered        prometheus.Counter
	zoneExited         prometheus.Counter
	roiVertices        prometheus.Gauge
	engineResets       prometheus.Counter

	// Frame queue
	queueSize          prometheus.Gauge
	queueCapacity      prometheus.Gauge
	queueUtilization   prometheus.Gauge
	queueEnqueued      prometheus.Counter
	queueDequeued      prometheus.Counter
	queueEnqueueErrors prometheus.Counter
	framesDuplicate    prometheus.Counter
	framesStale        prometheus.Counter

	// Crossing journal
	journalWrites      prometheus.Counter
	journalWriteErrors prometheus.Counter

	// Snapshot feed
	feedSubscribers prometheus.Gauge

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Errors
	errorRateByComponent *prometheus.CounterVec
	errorRateByType      *prometheus.CounterVec
	errorRateByEndpoint  *prometheus.CounterVec
	errorLatency         *prometheus.HistogramVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "zonetrack",
		subsystem:        "engine",
		histogramBuckets: prometheus.DefBuckets,
		customLabels:     make(map[string]string),
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()
	return m
}

func (m *Manager) counterOpts(name, help string) prometheus.CounterOpts {
	return prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.metricPrefix + name,
		Help:        help,
		ConstLabels: m.customLabels,
	}
}

func (m *Manager) gaugeOpts(name, help string) prometheus.GaugeOpts {
	return prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.metricPrefix + name,
		Help:        help,
		ConstLabels: m.customLabels,
	}
}

func (m *Manager) histogramOpts(name, help string, buckets []float64) prometheus.HistogramOpts {
	return prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.metricPrefix + name,
		Help:        help,
		Buckets:     buckets,
		ConstLabels: m.customLabels,
	}
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // long function required for comprehensive metrics initialization
	auto := promauto.With(m.registry)

	m.ticksTotal = auto.NewCounter(m.counterOpts("ticks_total", "Total number of applied engine ticks"))
	m.ticksRejected = auto.NewCounter(m.counterOpts("ticks_rejected_total", "Ticks rejected for invalid input shape"))
	m.tickLatency = auto.NewHistogram(m.histogramOpts("tick_latency_milliseconds", "Engine tick latency in milliseconds", tickLatencyBuckets))
	m.tracksActive = auto.NewGauge(m.gaugeOpts("tracks_active", "Tracks in the latest snapshot"))
	m.tracksCreated = auto.NewCounter(m.counterOpts("tracks_created_total", "Tracks created from unmatched detections"))
	m.tracksRetired = auto.NewCounter(m.counterOpts("tracks_retired_total", "Tracks retired after exceeding the dropout window"))
	m.detectionsReceived = auto.NewCounter(m.counterOpts("detections_received_total", "Detections submitted to the engine"))
	m.detectionsSkipped = auto.NewCounter(m.counterOpts("detections_skipped_total", "Malformed detections skipped by the engine"))
	m.detectionsFiltered = auto.NewCounter(m.counterOpts("detections_filtered_total", "Detections dropped by confidence or label filtering"))
	m.zoneEntered = auto.NewCounter(m.counterOpts("zone_entered_total", "Tracks that entered the region of interest"))
	m.zoneExited = auto.NewCounter(m.counterOpts("zone_exited_total", "Tracks that exited the region of interest"))
	m.roiVertices = auto.NewGauge(m.gaugeOpts("roi_vertices", "Vertices in the active region of interest (0 when undefined)"))
	m.engineResets = auto.NewCounter(m.counterOpts("engine_resets_total", "Explicit engine re-initializations"))

	m.queueSize = auto.NewGauge(m.gaugeOpts("queue_size", "Frames waiting to be ticked"))
	m.queueCapacity = auto.NewGauge(m.gaugeOpts("queue_capacity", "Maximum frame queue capacity"))
	m.queueUtilization = auto.NewGauge(m.gaugeOpts("queue_utilization_ratio", "Frame queue utilization ratio (size / capacity)"))
	m.queueEnqueued = auto.NewCounter(m.counterOpts("queue_enqueue_total", "Frames enqueued"))
	m.queueDequeued = auto.NewCounter(m.counterOpts("queue_dequeue_total", "Frames dequeued"))
	m.queueEnqueueErrors = auto.NewCounter(m.counterOpts("queue_enqueue_errors_total", "Frames refused by the queue"))
	m.framesDuplicate = auto.NewCounter(m.counterOpts("frames_duplicate_total", "Frames ignored because their id was already seen"))
	m.framesStale = auto.NewCounter(m.counterOpts("frames_stale_total", "Frames dropped for arriving with an older timestamp"))

	m.journalWrites = auto.NewCounter(m.counterOpts("journal_writes_total", "Crossing records written to the journal"))
	m.journalWriteErrors = auto.NewCounter(m.counterOpts("journal_write_errors_total", "Failed crossing journal writes"))

	m.feedSubscribers = auto.NewGauge(m.gaugeOpts("feed_subscribers", "Connected snapshot feed subscribers"))

	m.httpRequests = auto.NewCounterVec(
		m.counterOpts("http_requests_total", "Total number of HTTP requests by endpoint and method"),
		[]string{"endpoint", "method", "status_code"},
	)
	m.httpRequestDuration = auto.NewHistogramVec(
		m.histogramOpts("http_request_duration_milliseconds", "HTTP request duration in milliseconds", m.histogramBuckets),
		[]string{"endpoint", "method", "status_code"},
	)

	m.errorRateByComponent = auto.NewCounterVec(
		m.counterOpts("errors_by_component_total", "Errors by component and type"),
		[]string{"component", "error_type"},
	)
	m.errorRateByType = auto.NewCounterVec(
		m.counterOpts("errors_by_type_total", "Errors by type and severity"),
		[]string{"error_type", "severity"},
	)
	m.errorRateByEndpoint = auto.NewCounterVec(
		m.counterOpts("errors_by_endpoint_total", "Errors by endpoint, method and type"),
		[]string{"endpoint", "method", "error_type"},
	)
	m.errorLatency = auto.NewHistogramVec(
		m.histogramOpts("error_latency_milliseconds", "Latency of operations that ended in an error", m.histogramBuckets),
		[]string{"component", "error_type"},
	)

	m.systemMemoryUsage = auto.NewGauge(m.gaugeOpts("system_memory_usage_bytes", "System memory usage in bytes"))
	m.systemGoroutineCount = auto.NewGauge(m.gaugeOpts("system_goroutine_count", "Number of goroutines"))
	m.systemGCPauseTime = auto.NewHistogram(m.histogramOpts(
		"system_gc_pause_time_milliseconds",
		"GC pause time in milliseconds",
		[]float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000},
	))
}

// Tracking engine.

// RecordTick records one applied tick and its latency.
func RecordTick(latencyMs float64) {
	globalManager.ticksTotal.Inc()
	globalManager.tickLatency.Observe(latencyMs)
}

// RecordTickRejected increments the rejected tick counter.
func RecordTickRejected() {
	globalManager.ticksRejected.Inc()
}

// UpdateTracksActive sets the number of tracks in the latest snapshot.
func UpdateTracksActive(count int) {
	globalManager.tracksActive.Set(float64(count))
}

// RecordTracksCreated adds n newly created tracks.
func RecordTracksCreated(n int) {
	globalManager.tracksCreated.Add(float64(n))
}

// RecordTracksRetired adds n retired tracks.
func RecordTracksRetired(n int) {
	globalManager.tracksRetired.Add(float64(n))
}

// RecordDetections records received and skipped detections for one tick.
func RecordDetections(received, skipped int) {
	globalManager.detectionsReceived.Add(float64(received))
	globalManager.detectionsSkipped.Add(float64(skipped))
}

// RecordDetectionsFiltered adds n detections dropped before the engine.
func RecordDetectionsFiltered(n int) {
	globalManager.detectionsFiltered.Add(float64(n))
}

// RecordZoneCrossings adds per-tick enter and exit deltas.
func RecordZoneCrossings(entered, exited int) {
	globalManager.zoneEntered.Add(float64(entered))
	globalManager.zoneExited.Add(float64(exited))
}

// UpdateROIVertices sets the vertex count of the active region of interest.
func UpdateROIVertices(count int) {
	globalManager.roiVertices.Set(float64(count))
}

// RecordEngineReset increments the engine reset counter.
func RecordEngineReset() {
	globalManager.engineResets.Inc()
}

// Frame queue.

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
	globalManager.queueEnqueued.Inc()
}

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() {
	globalManager.queueDequeued.Inc()
}

// RecordQueueEnqueueError increments the enqueue error counter.
func RecordQueueEnqueueError() {
	globalManager.queueEnqueueErrors.Inc()
}

// RecordFrameDuplicate increments the duplicate frame counter.
func RecordFrameDuplicate() {
	globalManager.framesDuplicate.Inc()
}

// RecordFrameStale increments the stale frame counter.
func RecordFrameStale() {
	globalManager.framesStale.Inc()
}

// Crossing journal.

// RecordJournalWrite adds n written crossing records.
func RecordJournalWrite(n int) {
	globalManager.journalWrites.Add(float64(n))
}

// RecordJournalWriteError increments the journal error counter.
func RecordJournalWriteError() {
	globalManager.journalWriteErrors.Inc()
}

// UpdateFeedSubscribers sets the number of connected feed subscribers.
func UpdateFeedSubscribers(count int) {
	globalManager.feedSubscribers.Set(float64(count))
}

// HTTP.

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// Errors.

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

// RecordErrorLatency records the latency of an operation that resulted in an error.
func RecordErrorLatency(component, errorType string, latencyMs float64) {
	globalManager.errorLatency.WithLabelValues(component, errorType).Observe(latencyMs)
}

// System.

// UpdateSystemMemoryUsage sets the system memory usage in bytes.
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
