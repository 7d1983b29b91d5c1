// Package metrics exposes prometheus instrumentation for the HTTP surface
// and the security subsystems.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
)

// Metrics bundles the collectors the service records into.
type Metrics struct {
	registry *prometheus.Registry

	RequestDuration  *prometheus.HistogramVec
	RequestsTotal    *prometheus.CounterVec
	RateLimitDenied  *prometheus.CounterVec
	SecurityEvents   *prometheus.CounterVec
	AuditQueueDepth  prometheus.Gauge
	AuditDropped     prometheus.Counter
	AuditWriteErrors prometheus.Counter
}

// New builds and registers the collectors on a private registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	m := &Metrics{
		registry: registry,
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency by route and status.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests by route and status.",
		}, []string{"method", "route", "status"}),
		RateLimitDenied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rate_limit_denied_total",
			Help: "Requests denied by a rate limiter, by limiter kind.",
		}, []string{"kind"}),
		SecurityEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "security_events_total",
			Help: "Security events by type.",
		}, []string{"event"}),
		AuditQueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "audit_queue_depth",
			Help: "Entries waiting in the audit write queue.",
		}),
		AuditDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "audit_entries_dropped_total",
			Help: "Audit entries dropped because the queue was full.",
		}),
		AuditWriteErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "audit_write_errors_total",
			Help: "Audit entries that failed to persist.",
		}),
	}

	registry.MustRegister(
		m.RequestDuration,
		m.RequestsTotal,
		m.RateLimitDenied,
		m.SecurityEvents,
		m.AuditQueueDepth,
		m.AuditDropped,
		m.AuditWriteErrors,
	)
	return m
}

// Handler serves the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Module wires the metrics collectors.
var Module = fx.Module("metrics",
	fx.Provide(New),
)
