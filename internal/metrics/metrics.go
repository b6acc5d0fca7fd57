package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	// Registry is the dedicated Prometheus registry for the API
	Registry = prometheus.NewRegistry()
	// HTTPRequests counts requests by method, route pattern, and status
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "http_requests_total", Help: "Total HTTP requests."},
		[]string{"method", "path", "status"},
	)
	// HTTPDuration records request durations in seconds
	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "http_request_duration_seconds", Help: "HTTP request duration in seconds.", Buckets: prometheus.DefBuckets},
		[]string{"method", "path", "status"},
	)

	// WebhookDeliveries counts webhook delivery outcomes by event type and outcome
	WebhookDeliveries = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "webhook_deliveries_total", Help: "Webhook deliveries by event type and outcome."},
		[]string{"event_type", "outcome"},
	)
	// WebhookAttempts counts HTTP attempt kinds (ok, rejected, timeout, network_error, local_error)
	WebhookAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "webhook_attempts_total", Help: "Webhook HTTP attempts by kind."},
		[]string{"kind"},
	)
	// WebhookLatency tracks webhook delivery latencies in milliseconds
	WebhookLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "webhook_delivery_latency_ms", Help: "Webhook delivery latency in ms.", Buckets: []float64{10, 50, 100, 200, 500, 1000, 2000, 5000}},
		[]string{"event_type", "outcome"},
	)

	// Dispatches counts dispatch calls by event type and result (noop, delivered, partial, error)
	Dispatches = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "webhook_dispatches_total", Help: "Webhook dispatch calls by event type and result."},
		[]string{"event_type", "result"},
	)
	// DispatchDuration records wall time of a whole fan-out in seconds
	DispatchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "webhook_dispatch_duration_seconds", Help: "Webhook dispatch duration in seconds.", Buckets: prometheus.DefBuckets},
		[]string{"event_type"},
	)

	// QueueDepth is the number of dispatch tasks waiting for a worker
	QueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "webhook_queue_depth", Help: "Dispatch tasks waiting in the background queue."},
	)
	// QueueDropped counts tasks rejected because the queue was full or closed
	QueueDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "webhook_queue_dropped_total", Help: "Dispatch tasks dropped by the background queue."},
		[]string{"reason"},
	)
)

// RegisterDefault registers collectors to the default registry.
func RegisterDefault() {
	regOnce.Do(func() {
		Registry.MustRegister(HTTPRequests)
		Registry.MustRegister(HTTPDuration)
		Registry.MustRegister(WebhookDeliveries)
		Registry.MustRegister(WebhookAttempts)
		Registry.MustRegister(WebhookLatency)
		Registry.MustRegister(Dispatches)
		Registry.MustRegister(DispatchDuration)
		Registry.MustRegister(QueueDepth)
		Registry.MustRegister(QueueDropped)
		// Go/process collectors on our registry
		Registry.MustRegister(collectors.NewGoCollector())
		Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	})
}

var regOnce sync.Once
