// Package metrics exposes Prometheus collectors for queue depth, delivery
// outcomes and transport latency. Collection is opt-in: until InitPrometheus
// is called every recording function is a no-op, so a Client never pays for
// metrics it hasn't asked for.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusMetrics wraps the collectors backing one process's metrics.
type PrometheusMetrics struct {
	registry *prometheus.Registry

	publishedTotal   *prometheus.CounterVec
	retrievedTotal   *prometheus.CounterVec
	retriesTotal     *prometheus.CounterVec
	transportErrors  *prometheus.CounterVec
	transportLatency *prometheus.HistogramVec
	queueDepth       *prometheus.GaugeVec
}

var defaultBuckets = []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000}

var promMetrics *PrometheusMetrics

// InitPrometheus initializes the metrics subsystem under the given
// namespace. Calling it more than once replaces the previous registry.
func InitPrometheus(namespace string, buckets []float64) {
	if len(buckets) == 0 {
		buckets = defaultBuckets
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(prometheus.NewGoCollector())
	registry.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))

	pm := &PrometheusMetrics{
		registry: registry,

		publishedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "published_total",
				Help:      "Total number of publish/subscribe/unsubscribe requests pushed to the outgoing queue",
			},
			[]string{"operation"},
		),

		retrievedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "retrieved_total",
				Help:      "Total number of messages handed to Client.Retrieve",
			},
			[]string{"status"},
		),

		retriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "retries_total",
				Help:      "Total number of outgoing requests requeued after a transport failure",
			},
			[]string{"operation"},
		),

		transportErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "transport_errors_total",
				Help:      "Total number of failed RequestTransport.Perform calls",
			},
			[]string{"method"},
		),

		transportLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "transport_duration_ms",
				Help:      "Duration of RequestTransport.Perform calls in milliseconds",
				Buckets:   buckets,
			},
			[]string{"method"},
		),

		queueDepth: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "queue_depth",
				Help:      "Current number of items queued",
			},
			[]string{"queue"},
		),
	}

	registry.MustRegister(
		pm.publishedTotal,
		pm.retrievedTotal,
		pm.retriesTotal,
		pm.transportErrors,
		pm.transportLatency,
		pm.queueDepth,
	)

	promMetrics = pm
}

// RecordPublish increments the published counter for operation.
func RecordPublish(operation string) {
	if promMetrics == nil {
		return
	}
	promMetrics.publishedTotal.WithLabelValues(operation).Inc()
}

// RecordRetrieve increments the retrieved counter for status ("ok" or "timeout").
func RecordRetrieve(status string) {
	if promMetrics == nil {
		return
	}
	promMetrics.retrievedTotal.WithLabelValues(status).Inc()
}

// RecordRetry increments the retry counter for operation.
func RecordRetry(operation string) {
	if promMetrics == nil {
		return
	}
	promMetrics.retriesTotal.WithLabelValues(operation).Inc()
}

// RecordTransportResult records the latency and, on failure, the error
// counter for one RequestTransport.Perform call.
func RecordTransportResult(method string, durationMs int64, err error) {
	if promMetrics == nil {
		return
	}
	promMetrics.transportLatency.WithLabelValues(method).Observe(float64(durationMs))
	if err != nil {
		promMetrics.transportErrors.WithLabelValues(method).Inc()
	}
}

// SetQueueDepth records the current depth of the named queue ("outgoing" or
// "incoming").
func SetQueueDepth(queueName string, depth int) {
	if promMetrics == nil {
		return
	}
	promMetrics.queueDepth.WithLabelValues(queueName).Set(float64(depth))
}

// PrometheusHandler returns an HTTP handler for Prometheus scraping, or nil
// if InitPrometheus has not been called.
func PrometheusHandler() http.Handler {
	if promMetrics == nil {
		return nil
	}
	return promhttp.HandlerFor(promMetrics.registry, promhttp.HandlerOpts{})
}

// PrometheusRegistry exposes the underlying registry for tests that want to
// assert on collected samples directly.
func PrometheusRegistry() *prometheus.Registry {
	if promMetrics == nil {
		return nil
	}
	return promMetrics.registry
}
