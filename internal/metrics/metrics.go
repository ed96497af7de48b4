// Package metrics provides Prometheus instrumentation for the connector.
package metrics

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "humifortis",
			Name:      "http_requests_total",
			Help:      "Total HTTP requests by method, path pattern, and status code.",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration observes request latency by method and path.
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "humifortis",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// DecisionRequestsTotal counts risk decision lookups by result.
	// Results: allow, challenge_mfa, block, default_allow (404), error.
	DecisionRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "humifortis",
			Name:      "decision_requests_total",
			Help:      "Total risk decision lookups by result.",
		},
		[]string{"result"},
	)

	// DecisionRequestDuration observes decision endpoint latency.
	DecisionRequestDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "humifortis",
			Name:      "decision_request_duration_seconds",
			Help:      "Risk decision lookup duration in seconds.",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
	)

	// AuthOutcomesTotal counts terminal login-attempt outcomes.
	AuthOutcomesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "humifortis",
			Name:      "auth_outcomes_total",
			Help:      "Terminal login attempt outcomes (success, challenge, denied).",
		},
		[]string{"outcome"},
	)

	// FallbacksTotal counts fallback activations by configured mode.
	FallbacksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "humifortis",
			Name:      "fallbacks_total",
			Help:      "Fallback policy activations by mode (open, closed).",
		},
		[]string{"mode"},
	)

	// EventDeliveriesTotal counts telemetry event delivery attempts by result.
	EventDeliveriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "humifortis",
			Name:      "event_deliveries_total",
			Help:      "Telemetry event delivery attempts by result (ok, error).",
		},
		[]string{"result"},
	)

	// EventsFilteredTotal counts user events dropped by the monitored-set filter.
	EventsFilteredTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "humifortis",
			Name:      "events_filtered_total",
			Help:      "User events dropped because their kind is not monitored.",
		},
	)

	// EventsDroppedTotal counts events dropped due to translation failures.
	EventsDroppedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "humifortis",
			Name:      "events_dropped_total",
			Help:      "Events dropped because translation failed.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		DecisionRequestsTotal,
		DecisionRequestDuration,
		AuthOutcomesTotal,
		FallbacksTotal,
		EventDeliveriesTotal,
		EventsFilteredTotal,
		EventsDroppedTotal,
	)
}

// Middleware returns a gin middleware that records request metrics.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		timer := prometheus.NewTimer(HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(), // Uses route pattern, not actual path (avoids cardinality explosion)
		))

		c.Next()

		timer.ObserveDuration()
		HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			statusBucket(c.Writer.Status()),
		).Inc()
	}
}

// Handler returns the Prometheus metrics HTTP handler for /metrics endpoint.
func Handler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

// statusBucket groups HTTP status codes into buckets (2xx, 3xx, 4xx, 5xx).
func statusBucket(code int) string {
	switch {
	case code < 200:
		return "1xx"
	case code < 300:
		return "2xx"
	case code < 400:
		return "3xx"
	case code < 500:
		return "4xx"
	default:
		return "5xx"
	}
}
