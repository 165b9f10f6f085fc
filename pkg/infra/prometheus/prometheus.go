package prometheus

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var registry = prometheus.NewRegistry()

var registerer = prometheus.WrapRegistererWith(nil, registry)

var (
	// Latency buckets in milliseconds
	latencyBuckets = []float64{
		5, 10, 25,
		50, 100, 250,
		500, 1000, 2500,
		5000, 10000, 30000,
	}

	ActionsDispatched = promauto.With(registerer).NewCounterVec(
		prometheus.CounterOpts{
			Name: "callgate_actions_dispatched_total",
			Help: "Lifecycle actions dispatched by the api-call executor",
		},
		[]string{"type", "error"},
	)

	APICallsTotal = promauto.With(registerer).NewCounterVec(
		prometheus.CounterOpts{
			Name: "callgate_api_calls_total",
			Help: "Total number of api calls performed",
		},
		[]string{"method", "status"},
	)

	APICallLatency = promauto.With(registerer).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "callgate_api_call_latency_ms",
			Help:    "API call latency in milliseconds",
			Buckets: latencyBuckets,
		},
		[]string{"method"},
	)

	HTTPRequestsTotal = promauto.With(registerer).NewCounterVec(
		prometheus.CounterOpts{
			Name: "callgate_http_requests_total",
			Help: "Requests served by the api server",
		},
		[]string{"route", "status"},
	)

	InterceptorRewrites = promauto.With(registerer).NewCounterVec(
		prometheus.CounterOpts{
			Name: "callgate_interceptor_rewrites_total",
			Help: "API-call fields rewritten by the interceptor",
		},
		[]string{"field"},
	)
)

var initOnce sync.Once

// Initialize adds the process collector and makes the registry the default
// one. Safe to call more than once.
func Initialize() {
	initOnce.Do(func() {
		registry.MustRegister(
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		prometheus.DefaultRegisterer = registry
		prometheus.DefaultGatherer = registry
	})
}

// Handler serves the metrics of this registry.
func Handler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
