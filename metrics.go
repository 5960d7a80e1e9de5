package kaonavi

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsCollector provides Prometheus metrics for the request pipeline, the
// token cache and the mutating-call limiter. It is safe for concurrent use and
// every method is a no-op on a nil receiver.
type MetricsCollector struct {
	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	requestsInFlight *prometheus.GaugeVec

	errorsTotal *prometheus.CounterVec

	authenticationsTotal *prometheus.CounterVec

	mutatingPermitsConsumed prometheus.Gauge
	permitWaitDuration      prometheus.Histogram
	tasksSubmitted          *prometheus.CounterVec

	registry *prometheus.Registry
}

var (
	defaultCollectorOnce sync.Once
	defaultCollector     *MetricsCollector
)

// NewMetricsCollector returns the collector registered on the default
// registerer. It is created on first use and shared by every caller, so
// several clients built with WithMetrics report into the same series.
func NewMetricsCollector() *MetricsCollector {
	defaultCollectorOnce.Do(func() {
		defaultCollector = NewMetricsCollectorWithRegistry(prometheus.DefaultRegisterer)
	})
	return defaultCollector
}

// NewMetricsCollectorWithRegistry creates a collector using supplied registerer.
// It panics if the metrics are already registered there; use one registry per
// collector.
func NewMetricsCollectorWithRegistry(registry prometheus.Registerer) *MetricsCollector {
	mc := &MetricsCollector{
		requestsTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "kaonavi_requests_total",
				Help: "Total number of API requests made",
			},
			[]string{"method", "status_code", "endpoint"},
		),
		requestDuration: promauto.With(registry).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "kaonavi_request_duration_seconds",
				Help:    "Duration of API requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "status_code", "endpoint"},
		),
		requestsInFlight: promauto.With(registry).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "kaonavi_requests_in_flight",
				Help: "Number of API requests currently in flight",
			},
			[]string{"method", "endpoint"},
		),
		errorsTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "kaonavi_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type", "method", "endpoint"},
		),
		authenticationsTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "kaonavi_authentications_total",
				Help: "Total number of token requests by outcome",
			},
			[]string{"outcome"},
		),
		mutatingPermitsConsumed: promauto.With(registry).NewGauge(
			prometheus.GaugeOpts{
				Name: "kaonavi_mutating_permits_consumed",
				Help: "Mutating-call permits currently in flight or within the rolling window",
			},
		),
		permitWaitDuration: promauto.With(registry).NewHistogram(
			prometheus.HistogramOpts{
				Name:    "kaonavi_permit_wait_seconds",
				Help:    "Time spent waiting for a mutating-call permit",
				Buckets: []float64{0.001, 0.01, 0.1, 1, 5, 15, 30, 60, 120},
			},
		),
		tasksSubmitted: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "kaonavi_tasks_submitted_total",
				Help: "Total number of mutating calls that returned a task",
			},
			[]string{"method", "endpoint"},
		),
	}

	if reg, ok := registry.(*prometheus.Registry); ok {
		mc.registry = reg
	}

	return mc
}

// RecordRequest records request count and duration.
func (mc *MetricsCollector) RecordRequest(method, endpoint string, statusCode int, duration time.Duration) {
	if mc == nil {
		return
	}

	statusCodeStr := strconv.Itoa(statusCode)
	mc.requestsTotal.WithLabelValues(method, statusCodeStr, endpoint).Inc()
	mc.requestDuration.WithLabelValues(method, statusCodeStr, endpoint).Observe(duration.Seconds())
}

// RecordRequestStart increments in-flight gauge.
func (mc *MetricsCollector) RecordRequestStart(method, endpoint string) {
	if mc == nil {
		return
	}

	mc.requestsInFlight.WithLabelValues(method, endpoint).Inc()
}

// RecordRequestEnd decrements in-flight gauge.
func (mc *MetricsCollector) RecordRequestEnd(method, endpoint string) {
	if mc == nil {
		return
	}

	mc.requestsInFlight.WithLabelValues(method, endpoint).Dec()
}

// RecordError increments error counter by type.
func (mc *MetricsCollector) RecordError(errorType, method, endpoint string) {
	if mc == nil {
		return
	}

	mc.errorsTotal.WithLabelValues(errorType, method, endpoint).Inc()
}

// RecordAuthentication counts a token round trip.
func (mc *MetricsCollector) RecordAuthentication(success bool) {
	if mc == nil {
		return
	}

	outcome := "success"
	if !success {
		outcome = "failure"
	}
	mc.authenticationsTotal.WithLabelValues(outcome).Inc()
}

// RecordPermitsConsumed sets the consumed permit gauge.
func (mc *MetricsCollector) RecordPermitsConsumed(consumed int) {
	if mc == nil {
		return
	}

	mc.mutatingPermitsConsumed.Set(float64(consumed))
}

// RecordPermitWait observes how long an acquisition waited.
func (mc *MetricsCollector) RecordPermitWait(d time.Duration) {
	if mc == nil {
		return
	}

	mc.permitWaitDuration.Observe(d.Seconds())
}

// RecordTaskSubmitted counts a mutating call that returned a task handle.
func (mc *MetricsCollector) RecordTaskSubmitted(method, endpoint string) {
	if mc == nil {
		return
	}

	mc.tasksSubmitted.WithLabelValues(method, endpoint).Inc()
}

// GetRegistry exposes the underlying prometheus registry, or nil when the
// collector was built on a Registerer that is not a *prometheus.Registry.
func (mc *MetricsCollector) GetRegistry() *prometheus.Registry {
	return mc.registry
}
