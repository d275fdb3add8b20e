package fetchkit

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsCollector provides Prometheus metrics for the engine's request
// lifecycle and its resilience layers. It is safe for concurrent use and
// every recorder is a no-op on a nil receiver.
type MetricsCollector struct {
	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	requestsInFlight *prometheus.GaugeVec

	retriesTotal *prometheus.CounterVec

	circuitBreakerState *prometheus.GaugeVec

	rateLimited *prometheus.CounterVec

	cacheHits   *prometheus.CounterVec
	cacheMisses *prometheus.CounterVec
	cacheSize   prometheus.Gauge

	deduplicationHits *prometheus.CounterVec

	queueRunning prometheus.Gauge
	queuePending prometheus.Gauge

	offlineHits   *prometheus.CounterVec
	offlineMisses *prometheus.CounterVec

	errorsTotal *prometheus.CounterVec

	registry *prometheus.Registry
}

// NewMetricsCollector creates a metrics collector on the default registerer.
func NewMetricsCollector() *MetricsCollector {
	return NewMetricsCollectorWithRegistry(prometheus.DefaultRegisterer)
}

// NewMetricsCollectorWithRegistry creates a collector using supplied registerer.
func NewMetricsCollectorWithRegistry(registry prometheus.Registerer) *MetricsCollector {
	factory := promauto.With(registry)
	mc := &MetricsCollector{
		requestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fetchkit_requests_total",
				Help: "Total number of requests completed by the engine",
			},
			[]string{"method", "status_code", "source"},
		),
		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "fetchkit_request_duration_seconds",
				Help:    "Duration of engine requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "source"},
		),
		requestsInFlight: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "fetchkit_requests_in_flight",
				Help: "Number of engine requests currently in progress",
			},
			[]string{"method"},
		),
		retriesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fetchkit_retries_total",
				Help: "Total number of retry attempts",
			},
			[]string{"method", "attempt"},
		),
		circuitBreakerState: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "fetchkit_circuit_breaker_state",
				Help: "Current state of circuit breaker (0=closed, 1=half-open, 2=open)",
			},
			[]string{"name"},
		),
		rateLimited: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fetchkit_rate_limited_total",
				Help: "Total number of requests rejected by the rate limiter",
			},
			[]string{"method"},
		),
		cacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fetchkit_cache_hits_total",
				Help: "Total number of cache hits",
			},
			[]string{"method"},
		),
		cacheMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fetchkit_cache_misses_total",
				Help: "Total number of cache misses",
			},
			[]string{"method"},
		),
		cacheSize: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "fetchkit_cache_size",
				Help: "Current number of entries in cache",
			},
		),
		deduplicationHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fetchkit_deduplication_hits_total",
				Help: "Total number of requests that joined an in-flight call",
			},
			[]string{"method"},
		),
		queueRunning: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "fetchkit_queue_running",
				Help: "Number of tasks currently admitted by the queue",
			},
		),
		queuePending: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "fetchkit_queue_pending",
				Help: "Number of tasks waiting for queue admission",
			},
		),
		offlineHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fetchkit_offline_hits_total",
				Help: "Total number of offline requests served from the store",
			},
			[]string{"method"},
		),
		offlineMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fetchkit_offline_misses_total",
				Help: "Total number of offline requests with nothing stored",
			},
			[]string{"method"},
		),
		errorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fetchkit_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type", "method"},
		),
	}
	if reg, ok := registry.(*prometheus.Registry); ok {
		mc.registry = reg
	}

	return mc
}

// RecordRequest records request count and duration.
func (mc *MetricsCollector) RecordRequest(method string, statusCode int, source Source, duration time.Duration) {
	if mc == nil {
		return
	}

	mc.requestsTotal.WithLabelValues(method, strconv.Itoa(statusCode), source.String()).Inc()
	mc.requestDuration.WithLabelValues(method, source.String()).Observe(duration.Seconds())
}

// RecordRequestStart increments in-flight gauge.
func (mc *MetricsCollector) RecordRequestStart(method string) {
	if mc == nil {
		return
	}

	mc.requestsInFlight.WithLabelValues(method).Inc()
}

// RecordRequestEnd decrements in-flight gauge.
func (mc *MetricsCollector) RecordRequestEnd(method string) {
	if mc == nil {
		return
	}

	mc.requestsInFlight.WithLabelValues(method).Dec()
}

// RecordRetry increments retry counter for an attempt.
func (mc *MetricsCollector) RecordRetry(method string, attempt int) {
	if mc == nil {
		return
	}

	mc.retriesTotal.WithLabelValues(method, strconv.Itoa(attempt)).Inc()
}

// RecordCircuitBreakerState sets gauge to breaker state.
func (mc *MetricsCollector) RecordCircuitBreakerState(name string, state CircuitState) {
	if mc == nil {
		return
	}

	mc.circuitBreakerState.WithLabelValues(name).Set(float64(state))
}

// RecordRateLimited increments the rejected-by-rate-limiter counter.
func (mc *MetricsCollector) RecordRateLimited(method string) {
	if mc == nil {
		return
	}

	mc.rateLimited.WithLabelValues(method).Inc()
}

// RecordCacheHit increments cache hit counter.
func (mc *MetricsCollector) RecordCacheHit(method string) {
	if mc == nil {
		return
	}

	mc.cacheHits.WithLabelValues(method).Inc()
}

// RecordCacheMiss increments cache miss counter.
func (mc *MetricsCollector) RecordCacheMiss(method string) {
	if mc == nil {
		return
	}

	mc.cacheMisses.WithLabelValues(method).Inc()
}

// RecordCacheSize sets cache size gauge.
func (mc *MetricsCollector) RecordCacheSize(size int) {
	if mc == nil {
		return
	}

	mc.cacheSize.Set(float64(size))
}

// RecordDeduplicationHit increments de-dup hit counter.
func (mc *MetricsCollector) RecordDeduplicationHit(method string) {
	if mc == nil {
		return
	}

	mc.deduplicationHits.WithLabelValues(method).Inc()
}

// RecordQueue sets the queue occupancy gauges.
func (mc *MetricsCollector) RecordQueue(running, pending int) {
	if mc == nil {
		return
	}

	mc.queueRunning.Set(float64(running))
	mc.queuePending.Set(float64(pending))
}

// RecordOfflineHit increments the offline hit counter.
func (mc *MetricsCollector) RecordOfflineHit(method string) {
	if mc == nil {
		return
	}

	mc.offlineHits.WithLabelValues(method).Inc()
}

// RecordOfflineMiss increments the offline miss counter.
func (mc *MetricsCollector) RecordOfflineMiss(method string) {
	if mc == nil {
		return
	}

	mc.offlineMisses.WithLabelValues(method).Inc()
}

// RecordError increments error counter by type.
func (mc *MetricsCollector) RecordError(errorType ErrorType, method string) {
	if mc == nil {
		return
	}

	mc.errorsTotal.WithLabelValues(string(errorType), method).Inc()
}

// GetRegistry exposes the underlying prometheus registry. It is nil when the
// collector was built on a Registerer that is not a *prometheus.Registry.
func (mc *MetricsCollector) GetRegistry() *prometheus.Registry {
	if mc == nil {
		return nil
	}
	return mc.registry
}
