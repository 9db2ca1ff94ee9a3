package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the agent hub
type Metrics struct {
	// Dispatch metrics
	DispatchesTotal  *prometheus.CounterVec
	DispatchDuration *prometheus.HistogramVec
	ActionsPending   prometheus.Gauge

	// Classifier metrics
	ClassificationsTotal *prometheus.CounterVec
	ClassifierFallbacks  prometheus.Counter

	// Provider metrics
	ProviderRequests *prometheus.CounterVec
	ProviderErrors   *prometheus.CounterVec
	ProviderLatency  *prometheus.HistogramVec

	// Autopilot metrics
	AutopilotRuns       *prometheus.CounterVec
	AutopilotDispatches *prometheus.CounterVec
	CircuitOpen         *prometheus.GaugeVec

	// System metrics
	CacheHits           prometheus.Counter
	CacheMisses         prometheus.Counter
	EventsPublished     *prometheus.CounterVec
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

var (
	metricsOnce   sync.Once
	sharedMetrics *Metrics
)

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics() *Metrics {
	metricsOnce.Do(func() {
		sharedMetrics = &Metrics{
			DispatchesTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "agenthub_dispatches_total",
					Help: "Total number of intent dispatches",
				},
				[]string{"intent", "status"},
			),
			DispatchDuration: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "agenthub_dispatch_duration_seconds",
					Help:    "Duration of intent dispatches in seconds",
					Buckets: prometheus.ExponentialBuckets(0.05, 2, 12), // 50ms to ~200s
				},
				[]string{"intent"},
			),
			ActionsPending: promauto.NewGauge(
				prometheus.GaugeOpts{
					Name: "agenthub_actions_pending",
					Help: "Number of actions currently in flight",
				},
			),
			ClassificationsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "agenthub_classifications_total",
					Help: "Total number of intent classifications",
				},
				[]string{"intent", "model"},
			),
			ClassifierFallbacks: promauto.NewCounter(
				prometheus.CounterOpts{
					Name: "agenthub_classifier_fallbacks_total",
					Help: "Classifications that fell through every model to unknown",
				},
			),
			ProviderRequests: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "agenthub_provider_requests_total",
					Help: "Total number of provider requests",
				},
				[]string{"provider", "model"},
			),
			ProviderErrors: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "agenthub_provider_errors_total",
					Help: "Total number of provider errors",
				},
				[]string{"provider", "model"},
			),
			ProviderLatency: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "agenthub_provider_latency_seconds",
					Help:    "Provider request latency in seconds",
					Buckets: prometheus.ExponentialBuckets(0.1, 2, 10), // 100ms to ~51s
				},
				[]string{"provider", "model"},
			),
			AutopilotRuns: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "agenthub_autopilot_runs_total",
					Help: "Total number of autopilot cycles",
				},
				[]string{"tenant_id"},
			),
			AutopilotDispatches: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "agenthub_autopilot_dispatches_total",
					Help: "Intents dispatched by autopilot cycles",
				},
				[]string{"intent", "status"},
			),
			CircuitOpen: promauto.NewGaugeVec(
				prometheus.GaugeOpts{
					Name: "agenthub_circuit_open",
					Help: "Autopilot circuit breaker state per tenant (1 open, 0 closed)",
				},
				[]string{"tenant_id"},
			),
			CacheHits: promauto.NewCounter(
				prometheus.CounterOpts{
					Name: "agenthub_cache_hits_total",
					Help: "Completion cache hits",
				},
			),
			CacheMisses: promauto.NewCounter(
				prometheus.CounterOpts{
					Name: "agenthub_cache_misses_total",
					Help: "Completion cache misses",
				},
			),
			EventsPublished: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "agenthub_events_published_total",
					Help: "Lifecycle events published to the message bus",
				},
				[]string{"subject"},
			),
			HTTPRequestsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "agenthub_http_requests_total",
					Help: "Total number of HTTP requests",
				},
				[]string{"method", "path", "status"},
			),
			HTTPRequestDuration: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "agenthub_http_request_duration_seconds",
					Help:    "HTTP request duration in seconds",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"method", "path"},
			),
		}
	})
	return sharedMetrics
}
