// Package metrics exposes Prometheus instruments for API traffic, token
// caching and fetch progress. A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors on a private registry.
type Metrics struct {
	// APIRequests counts outbound Zotok API calls by operation and status.
	APIRequests *prometheus.CounterVec
	// APILatency tracks outbound call latency by operation.
	APILatency *prometheus.HistogramVec
	// Retries counts retry attempts by operation.
	Retries *prometheus.CounterVec
	// TokenRequests counts token lookups by result (cached, generated, failed).
	TokenRequests *prometheus.CounterVec
	// RecordsFetched counts records returned per endpoint.
	RecordsFetched *prometheus.CounterVec
	// FetchDuration tracks whole-fetch duration by endpoint and stop reason.
	FetchDuration *prometheus.HistogramVec
	// Uploads counts entity uploads by endpoint and outcome.
	Uploads *prometheus.CounterVec
	// HTTPRequests counts inbound requests on the local API.
	HTTPRequests *prometheus.CounterVec

	registry *prometheus.Registry
}

// New creates and registers every collector under namespace.
func New(namespace string) *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		APIRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "api_requests_total",
				Help:      "Outbound Zotok API requests",
			},
			[]string{"operation", "status"},
		),
		APILatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "api_request_duration_seconds",
				Help:      "Outbound Zotok API request latency",
				Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"operation"},
		),
		Retries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "retries_total",
				Help:      "Retried attempts after a failed API call",
			},
			[]string{"operation"},
		),
		TokenRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "token_requests_total",
				Help:      "Token lookups by result",
			},
			[]string{"result"},
		),
		RecordsFetched: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "records_fetched_total",
				Help:      "Records returned by fetches",
			},
			[]string{"endpoint"},
		),
		FetchDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "fetch_duration_seconds",
				Help:      "Duration of complete fetches",
				Buckets:   []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300},
			},
			[]string{"endpoint", "stop_reason"},
		),
		Uploads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "uploads_total",
				Help:      "Entity uploads by outcome",
			},
			[]string{"endpoint", "outcome"},
		),
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Inbound requests on the local API",
			},
			[]string{"method", "status"},
		),
	}

	registry.MustRegister(
		m.APIRequests,
		m.APILatency,
		m.Retries,
		m.TokenRequests,
		m.RecordsFetched,
		m.FetchDuration,
		m.Uploads,
		m.HTTPRequests,
	)

	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.HandlerFor(prometheus.NewRegistry(), promhttp.HandlerOpts{})
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveAPICall records one outbound call. status 0 means no response.
func (m *Metrics) ObserveAPICall(operation string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.APIRequests.WithLabelValues(operation, statusLabel(status)).Inc()
	m.APILatency.WithLabelValues(operation).Observe(elapsed.Seconds())
}

// IncRetry records one retry of operation.
func (m *Metrics) IncRetry(operation string) {
	if m == nil {
		return
	}
	m.Retries.WithLabelValues(operation).Inc()
}

// IncToken records a token lookup result.
func (m *Metrics) IncToken(result string) {
	if m == nil {
		return
	}
	m.TokenRequests.WithLabelValues(result).Inc()
}

// ObserveFetch records a completed fetch.
func (m *Metrics) ObserveFetch(endpoint, stopReason string, records int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.RecordsFetched.WithLabelValues(endpoint).Add(float64(records))
	m.FetchDuration.WithLabelValues(endpoint, stopReason).Observe(elapsed.Seconds())
}

// IncUpload records an upload outcome ("success" or "failure").
func (m *Metrics) IncUpload(endpoint, outcome string) {
	if m == nil {
		return
	}
	m.Uploads.WithLabelValues(endpoint, outcome).Inc()
}

// IncHTTPRequest records one inbound request.
func (m *Metrics) IncHTTPRequest(method string, status int) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, statusLabel(status)).Inc()
}

func statusLabel(status int) string {
	if status == 0 {
		return "network_error"
	}
	return strconv.Itoa(status)
}
