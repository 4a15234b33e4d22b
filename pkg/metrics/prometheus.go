// Package metrics provides Prometheus metrics for the scorecast broadcaster.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager manages all Prometheus metrics for the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      prometheus.Labels
	registry         prometheus.Registerer

	// Ingestion
	updatesReceived *prometheus.CounterVec

	// Bus
	eventsPublished prometheus.Counter
	eventsDropped   *prometheus.CounterVec
	subscribers     prometheus.Gauge

	// Fan-out
	fanoutQueueSize *prometheus.GaugeVec
	fanoutWorkers   prometheus.Gauge

	// Per-subscriber delivery
	deliveries      prometheus.Counter
	deliveryErrors  *prometheus.CounterVec
	deliveryLatency prometheus.Histogram

	// Display transport
	wsConnections  prometheus.Gauge
	wsPingFailures prometheus.Counter

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	errorsByType        *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
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
		namespace:        "scorecast",
		subsystem:        "broadcast",
		histogramBuckets: prometheus.DefBuckets,
		constLabels:      prometheus.Labels{},
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()
	return m
}

func (m *Manager) counterOpts(name, help string) prometheus.CounterOpts {
	return prometheus.CounterOpts{Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels}
}

func (m *Manager) gaugeOpts(name, help string) prometheus.GaugeOpts {
	return prometheus.GaugeOpts{Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels}
}

func (m *Manager) histogramOpts(name, help string) prometheus.HistogramOpts {
	return prometheus.HistogramOpts{Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels, Buckets: m.histogramBuckets}
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.updatesReceived = auto.NewCounterVec(m.counterOpts("updates_received_total",
		"Updates received on the ingestion endpoint by outcome"), []string{"outcome"})

	m.eventsPublished = auto.NewCounter(m.counterOpts("events_published_total",
		"Update events handed to the bus"))
	m.eventsDropped = auto.NewCounterVec(m.counterOpts("events_dropped_total",
		"Update events (or shard jobs) dropped before fan-out"), []string{"reason"})
	m.subscribers = auto.NewGauge(m.gaugeOpts("subscribers",
		"Currently registered display subscribers"))

	m.fanoutQueueSize = auto.NewGaugeVec(m.gaugeOpts("fanout_queue_size",
		"Pending fan-out jobs per shard"), []string{"shard"})
	m.fanoutWorkers = auto.NewGauge(m.gaugeOpts("fanout_workers",
		"Number of fan-out dispatcher workers"))

	m.deliveries = auto.NewCounter(m.counterOpts("deliveries_total",
		"Render tasks completed successfully"))
	m.deliveryErrors = auto.NewCounterVec(m.counterOpts("delivery_errors_total",
		"Render tasks that failed, by kind"), []string{"kind"})
	m.deliveryLatency = auto.NewHistogram(m.histogramOpts("delivery_latency_milliseconds",
		"Time from publish to the end of the subscriber's render task"))

	m.wsConnections = auto.NewGauge(m.gaugeOpts("websocket_connections",
		"Open display WebSocket connections"))
	m.wsPingFailures = auto.NewCounter(m.counterOpts("websocket_ping_failures_total",
		"Keepalive pings that could not be written"))

	m.httpRequests = auto.NewCounterVec(m.counterOpts("http_requests_total",
		"Total number of HTTP requests by endpoint and method"), []string{"endpoint", "method", "status_code"})
	m.httpRequestDuration = auto.NewHistogramVec(m.histogramOpts("http_request_duration_milliseconds",
		"HTTP request duration in milliseconds"), []string{"endpoint", "method", "status_code"})
	m.errorsByType = auto.NewCounterVec(m.counterOpts("errors_total",
		"Errors by type and severity"), []string{"type", "severity"})

	m.systemMemoryUsage = auto.NewGauge(m.gaugeOpts("system_memory_usage_bytes",
		"System memory usage in bytes"))
	m.systemGoroutineCount = auto.NewGauge(m.gaugeOpts("system_goroutine_count",
		"Number of goroutines"))
}

// RecordUpdateReceived counts an ingestion request by outcome
// (accepted, unauthorized, method_not_allowed).
func RecordUpdateReceived(outcome string) {
	globalManager.updatesReceived.WithLabelValues(outcome).Inc()
}

// RecordEventPublished increments the published events counter.
func RecordEventPublished() {
	globalManager.eventsPublished.Inc()
}

// RecordEventDropped counts an event or shard job dropped for reason.
func RecordEventDropped(reason string) {
	globalManager.eventsDropped.WithLabelValues(reason).Inc()
}

// UpdateSubscribers sets the registered subscriber gauge.
func UpdateSubscribers(count int) {
	globalManager.subscribers.Set(float64(count))
}

// UpdateFanoutQueueSize sets the pending job gauge for shard.
func UpdateFanoutQueueSize(shard string, size int) {
	globalManager.fanoutQueueSize.WithLabelValues(shard).Set(float64(size))
}

// UpdateFanoutWorkers sets the dispatcher worker gauge.
func UpdateFanoutWorkers(count int) {
	globalManager.fanoutWorkers.Set(float64(count))
}

// RecordDelivery records one successful render and its publish-to-render latency.
func RecordDelivery(latencyMs float64) {
	globalManager.deliveries.Inc()
	globalManager.deliveryLatency.Observe(latencyMs)
}

// RecordDeliveryError counts a failed render (kind is "error" or "panic").
func RecordDeliveryError(kind string) {
	globalManager.deliveryErrors.WithLabelValues(kind).Inc()
}

// WebSocketConnected increments the open connection gauge.
func WebSocketConnected() {
	globalManager.wsConnections.Inc()
}

// WebSocketDisconnected decrements the open connection gauge.
func WebSocketDisconnected() {
	globalManager.wsConnections.Dec()
}

// RecordWebSocketPingFailure counts a failed keepalive ping.
func RecordWebSocketPingFailure() {
	globalManager.wsPingFailures.Inc()
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordErrorByType records an error by type and severity.
func RecordErrorByType(errorType, severity string) {
	globalManager.errorsByType.WithLabelValues(errorType, severity).Inc()
}

// UpdateSystemMemoryUsage updates system memory usage.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount updates goroutine count.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
