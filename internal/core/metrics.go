package core

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricNamespace = "subsignup"

// HTTP metrics, registered on the default Prometheus registry and exposed
// at GET /metrics.
var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricNamespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status_code"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: metricNamespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path"},
	)

	httpRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: metricNamespace,
			Name:      "http_requests_in_flight",
			Help:      "Current number of HTTP requests being processed",
		},
	)
)

// Webhook metrics.
var (
	webhookEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricNamespace,
			Name:      "webhook_events_total",
			Help:      "Total number of webhook events received, by event type",
		},
		[]string{"event_type"},
	)

	webhookVerifyFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: metricNamespace,
			Name:      "webhook_verification_failures_total",
			Help:      "Total number of webhook requests rejected during signature verification",
		},
	)
)

// CountWebhookEvent records a verified webhook event by type.
func CountWebhookEvent(eventType string) {
	webhookEventsTotal.WithLabelValues(eventType).Inc()
}

// CountWebhookVerifyFailure records a rejected webhook request.
func CountWebhookVerifyFailure() {
	webhookVerifyFailures.Inc()
}

// MetricsMiddleware records request count, latency, and in-flight gauge for
// every request. Path labels use the route pattern where chi resolved one,
// so cardinality stays bounded for static-asset paths.
func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		httpRequestsInFlight.Inc()
		defer httpRequestsInFlight.Dec()

		rc := &responseCapture{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		next.ServeHTTP(rc, r)

		path := routePattern(r)
		httpRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(rc.statusCode)).Inc()
		httpRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
	})
}

// routePattern returns the chi route pattern for the request, or "static"
// for requests that fell through to the static file server.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return "static"
}
