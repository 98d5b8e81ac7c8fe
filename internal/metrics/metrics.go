// Package metrics records Prometheus metrics for HTTP traffic, GraphQL
// operations, service calls, authorization decisions and schema builds.
package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hanpama/contractgraph/internal/eventbus"
	"github.com/hanpama/contractgraph/internal/events"
)

// Metrics owns a registry and the collectors registered on it.
type Metrics struct {
	registry *prometheus.Registry

	httpDuration *prometheus.HistogramVec
	httpRequests *prometheus.CounterVec
	operations   *prometheus.CounterVec
	calls        *prometheus.HistogramVec
	decisions    *prometheus.CounterVec
	builds       *prometheus.CounterVec
	buildTime    prometheus.Histogram
	generated    *prometheus.CounterVec
	sources      prometheus.Gauge
}

// New registers the collectors on a fresh registry, together with the Go
// runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)
	return &Metrics{
		registry: reg,
		httpDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests.",
			Buckets: prometheus.DefBuckets,
		}, []string{"path", "method", "status"}),
		httpRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		}, []string{"path", "method", "status"}),
		operations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "graphql_operations_total",
			Help: "GraphQL operations by type and whether the result carried errors.",
		}, []string{"type", "outcome"}),
		calls: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "service_call_duration_seconds",
			Help:    "Duration of bound service method calls.",
			Buckets: prometheus.DefBuckets,
		}, []string{"service", "method", "outcome"}),
		decisions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "auth_decisions_total",
			Help: "Authorization decisions on guarded operations.",
		}, []string{"field", "allowed"}),
		builds: f.NewCounterVec(prometheus.CounterOpts{
			Name: "schema_builds_total",
			Help: "Schema builds by outcome.",
		}, []string{"outcome"}),
		buildTime: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "schema_build_duration_seconds",
			Help:    "Duration of schema builds.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
		}),
		generated: f.NewCounterVec(prometheus.CounterOpts{
			Name: "contract_generations_total",
			Help: "Contract artifact generations by outcome.",
		}, []string{"outcome"}),
		sources: f.NewGauge(prometheus.GaugeOpts{
			Name: "schema_sources",
			Help: "Resolver sources in the serving schema.",
		}),
	}
}

// Registry returns the registry the collectors live on.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Middleware records RED metrics per route pattern.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		path := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			path = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		code := strconv.Itoa(status)
		m.httpDuration.WithLabelValues(path, r.Method, code).Observe(time.Since(start).Seconds())
		m.httpRequests.WithLabelValues(path, r.Method, code).Inc()
	})
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// Subscribe attaches the event collectors to the global bus.
func (m *Metrics) Subscribe() (unsubscribe func()) {
	unsubs := []func(){
		eventbus.Subscribe(func(_ context.Context, e events.OperationFinish) {
			typ, result := e.Type, "ok"
			if typ == "" {
				typ = "unknown"
			}
			if e.Errors > 0 {
				result = "error"
			}
			m.operations.WithLabelValues(typ, result).Inc()
		}),
		eventbus.Subscribe(func(_ context.Context, e events.ServiceCallFinish) {
			m.calls.WithLabelValues(e.Service, e.Method, outcome(e.Err)).Observe(e.Duration.Seconds())
		}),
		eventbus.Subscribe(func(_ context.Context, e events.AuthDecision) {
			m.decisions.WithLabelValues(e.ObjectType+"."+e.Field, strconv.FormatBool(e.Allowed)).Inc()
		}),
		eventbus.Subscribe(func(_ context.Context, e events.Generation) {
			m.generated.WithLabelValues(outcome(e.Err)).Inc()
		}),
		eventbus.Subscribe(func(_ context.Context, e events.Build) {
			m.builds.WithLabelValues(outcome(e.Err)).Inc()
			m.buildTime.Observe(e.Duration.Seconds())
			if e.Err == nil {
				m.sources.Set(float64(e.Sources))
			}
		}),
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}
