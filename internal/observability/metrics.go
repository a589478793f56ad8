package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects Prometheus metrics for the gateway.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	refreshTotal    *prometheus.CounterVec
	retriesTotal    *prometheus.CounterVec
	authFailures    *prometheus.CounterVec
	workspaces      prometheus.Gauge
}

// NewMetrics builds a private registry with the gateway metrics.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "propertyhub_http_requests_total",
		Help: "HTTP requests by route and status code.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "propertyhub_http_request_duration_seconds",
		Help:    "HTTP request duration by route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	refresh := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "propertyhub_credential_refresh_total",
		Help: "Credential renewals by outcome.",
	}, []string{"outcome"})
	retries := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "propertyhub_upstream_retries_total",
		Help: "Upstream requests re-issued by the pipeline, by reason.",
	}, []string{"reason"})
	failures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "propertyhub_auth_failures_total",
		Help: "Failed sign-in and registration attempts by kind.",
	}, []string{"kind"})
	workspaces := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "propertyhub_workspaces",
		Help: "Browser sessions with a live workspace.",
	})
	registry.MustRegister(requests, duration, refresh, retries, failures, workspaces,
		collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return &Metrics{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:   requests,
		requestDuration: duration,
		refreshTotal:    refresh,
		retriesTotal:    retries,
		authFailures:    failures,
		workspaces:      workspaces,
	}
}

// Handler returns the /metrics handler.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware records a request counter and latency per route.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(&recorder, r)
		route := routePattern(r)
		m.requestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// ObserveRefresh counts a renewal outcome.
func (m *Metrics) ObserveRefresh(err error) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	m.refreshTotal.WithLabelValues(outcome).Inc()
}

// ObserveRetry counts a pipeline retry.
func (m *Metrics) ObserveRetry(reason string) {
	if m == nil {
		return
	}
	m.retriesTotal.WithLabelValues(reason).Inc()
}

// ObserveAuthFailure counts a failed sign-in or registration.
func (m *Metrics) ObserveAuthFailure(kind string) {
	if m == nil {
		return
	}
	m.authFailures.WithLabelValues(kind).Inc()
}

// SetWorkspaces records the number of live workspaces.
func (m *Metrics) SetWorkspaces(n int) {
	if m == nil {
		return
	}
	m.workspaces.Set(float64(n))
}

// Registerer exposes the registry for custom collectors.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func routePattern(r *http.Request) string {
	if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
		if pattern := routeCtx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unknown"
}
