package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Webhook shapes
const (
	ShapeCardEvent       = "card_event"
	ShapePhaseTransition = "phase_transition"
)

// Webhook outcomes, one per terminal state of an inbound delivery
const (
	OutcomeAcknowledged = "acknowledged"
	OutcomeRejected     = "rejected"
	OutcomeFailed       = "failed"
)

// MetricsRecorder is what services and middleware record into.
type MetricsRecorder interface {
	RecordWebhook(shape, outcome string)
	RecordUpstream(upstream, operation string, statusCode int, duration time.Duration)
	RecordHTTPRequest(route, method string, statusCode int, duration time.Duration)
	RecordRateLimited(route string)
}

// Metrics is the Prometheus implementation of MetricsRecorder.
type Metrics struct {
	webhookEvents   *prometheus.CounterVec
	upstreamCalls   *prometheus.CounterVec
	upstreamLatency *prometheus.HistogramVec
	httpRequests    *prometheus.CounterVec
	httpLatency     *prometheus.HistogramVec
	rateLimited     *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		webhookEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pipebridge_webhook_events_total",
			Help: "Inbound webhook deliveries by payload shape and outcome.",
		}, []string{"shape", "outcome"}),
		upstreamCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pipebridge_upstream_requests_total",
			Help: "Outbound calls to the auth, data and workflow APIs. status_code is 0 on transport failure.",
		}, []string{"upstream", "operation", "status_code"}),
		upstreamLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pipebridge_upstream_request_duration_seconds",
			Help:    "Latency of outbound upstream calls.",
			Buckets: prometheus.DefBuckets,
		}, []string{"upstream", "operation"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pipebridge_http_requests_total",
			Help: "Inbound HTTP requests by route pattern, method and status.",
		}, []string{"route", "method", "status_code"}),
		httpLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pipebridge_http_request_duration_seconds",
			Help:    "Latency of inbound HTTP requests.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method"}),
		rateLimited: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pipebridge_rate_limited_total",
			Help: "Requests rejected with 429.",
		}, []string{"route"}),
	}

	reg.MustRegister(
		m.webhookEvents,
		m.upstreamCalls,
		m.upstreamLatency,
		m.httpRequests,
		m.httpLatency,
		m.rateLimited,
	)

	return m
}

// RecordWebhook counts a webhook delivery reaching a terminal state.
func (m *Metrics) RecordWebhook(shape, outcome string) {
	m.webhookEvents.WithLabelValues(shape, outcome).Inc()
}

// RecordUpstream records one outbound call.
func (m *Metrics) RecordUpstream(upstream, operation string, statusCode int, duration time.Duration) {
	m.upstreamCalls.WithLabelValues(upstream, operation, strconv.Itoa(statusCode)).Inc()
	m.upstreamLatency.WithLabelValues(upstream, operation).Observe(duration.Seconds())
}

// RecordHTTPRequest records one inbound request.
func (m *Metrics) RecordHTTPRequest(route, method string, statusCode int, duration time.Duration) {
	m.httpRequests.WithLabelValues(route, method, strconv.Itoa(statusCode)).Inc()
	m.httpLatency.WithLabelValues(route, method).Observe(duration.Seconds())
}

// RecordRateLimited counts a request rejected by the rate limiter.
func (m *Metrics) RecordRateLimited(route string) {
	m.rateLimited.WithLabelValues(route).Inc()
}

// Handler returns the Prometheus scrape handler for gatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// NopMetrics discards everything. Used when METRICS_ENABLED is false and in tests.
type NopMetrics struct{}

func (NopMetrics) RecordWebhook(string, string) {}
func (NopMetrics) RecordUpstream(string, string, int, time.Duration) {}
func (NopMetrics) RecordHTTPRequest(string, string, int, time.Duration) {}
func (NopMetrics) RecordRateLimited(string) {}
