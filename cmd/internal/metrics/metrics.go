// Package metrics owns the Prometheus collectors exported by copydesk.
//
// A nil *Metrics is valid and records nothing, so components can be built
// without metrics in tests.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "copydesk"

// Metrics is the process-wide collector set.
type Metrics struct {
	registry *prometheus.Registry

	storeBackendErrors *prometheus.CounterVec
	storeSelected      *prometheus.GaugeVec
	rateLimitDecisions *prometheus.CounterVec
	sessionOps         *prometheus.CounterVec
	auditWrites        *prometheus.CounterVec
	httpRequests       *prometheus.CounterVec
	httpDuration       *prometheus.HistogramVec
}

// New builds a Metrics bound to a fresh registry (plus Go/process collectors).
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		registry: reg,
		storeBackendErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "securitystore",
			Name:      "backend_errors_total",
			Help:      "Security store backend errors by operation.",
		}, []string{"op"}),
		storeSelected: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "securitystore",
			Name:      "backend_selected",
			Help:      "1 for the security store backend currently in use.",
		}, []string{"backend"}),
		rateLimitDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ratelimit",
			Name:      "decisions_total",
			Help:      "Rate limit decisions by namespace and result.",
		}, []string{"namespace", "result"}),
		sessionOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "operations_total",
			Help:      "Session manager operations by op and result.",
		}, []string{"op", "result"}),
		auditWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "audit",
			Name:      "writes_total",
			Help:      "Security audit writes by result.",
		}, []string{"result"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by method and status class.",
		}, []string{"method", "class"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
	}

	reg.MustRegister(
		m.storeBackendErrors,
		m.storeSelected,
		m.rateLimitDecisions,
		m.sessionOps,
		m.auditWrites,
		m.httpRequests,
		m.httpDuration,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry (tests, extra collectors).
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) StoreBackendError(op string) {
	if m == nil {
		return
	}
	m.storeBackendErrors.WithLabelValues(op).Inc()
}

// StoreSelected marks backend as the active one and clears the others.
func (m *Metrics) StoreSelected(backend string) {
	if m == nil {
		return
	}
	m.storeSelected.Reset()
	m.storeSelected.WithLabelValues(backend).Set(1)
}

func (m *Metrics) RateLimitDecision(ns string, allowed bool) {
	if m == nil {
		return
	}
	result := "allowed"
	if !allowed {
		result = "denied"
	}
	m.rateLimitDecisions.WithLabelValues(ns, result).Inc()
}

func (m *Metrics) SessionOp(op, result string) {
	if m == nil {
		return
	}
	m.sessionOps.WithLabelValues(op, result).Inc()
}

func (m *Metrics) AuditWrite(ok bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "fail"
	}
	m.auditWrites.WithLabelValues(result).Inc()
}

func (m *Metrics) HTTPRequest(method, class string, d time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, class).Inc()
	m.httpDuration.WithLabelValues(method).Observe(d.Seconds())
}
