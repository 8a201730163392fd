package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "research",
		Name:      "http_requests_total",
		Help:      "Total HTTP requests by method, path and status code.",
	}, []string{"method", "path", "status"})

	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "research",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration in seconds.",
		Buckets:   []float64{0.05, 0.1, 0.3, 0.5, 1, 2, 5, 10, 20, 40},
	}, []string{"method", "path"})

	ProviderRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "research",
		Name:      "provider_requests_total",
		Help:      "Total video provider calls by operation and result status.",
	}, []string{"provider", "status"})

	ProviderRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "research",
		Name:      "provider_request_duration_seconds",
		Help:      "Video provider call duration in seconds, retries included.",
		Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 20},
	}, []string{"provider"})

	ProviderAvailable = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "research",
		Name:      "provider_available",
		Help:      "Whether a provider operation is available (1) or blocked by circuit breaker (0).",
	}, []string{"provider"})

	SubmissionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "research",
		Name:      "submissions_total",
		Help:      "Research submissions by mode (keyword or trending).",
	}, []string{"mode"})

	QueryVariants = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "research",
		Name:      "query_variants",
		Help:      "Number of query variants produced per keyword submission.",
		Buckets:   []float64{1, 2, 3, 4, 5, 6, 8, 10},
	})

	CandidatesCollected = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "research",
		Name:      "candidates_collected",
		Help:      "Unique candidate ids collected per submission before detail lookup.",
		Buckets:   []float64{0, 10, 25, 50, 75, 100, 120},
	})

	AssistantCallsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "research",
		Name:      "assistant_calls_total",
		Help:      "Text-generation calls by outcome (ok, rate_limited, error, blocked, cached).",
	}, []string{"status"})

	SessionLookupsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "research",
		Name:      "session_lookups_total",
		Help:      "Session store lookups by result (hit, miss, error).",
	}, []string{"result"})
)

func Register(reg prometheus.Registerer) {
	reg.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		ProviderRequestsTotal,
		ProviderRequestDuration,
		ProviderAvailable,
		SubmissionsTotal,
		QueryVariants,
		CandidatesCollected,
		AssistantCallsTotal,
		SessionLookupsTotal,
	)
}
