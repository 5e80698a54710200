// Package telemetry owns the process metrics (prometheus) and trace export (otel).
package telemetry

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the service collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	AuthEvents      *prometheus.CounterVec
	AccessDecisions *prometheus.CounterVec
	SessionsSwept   prometheus.Counter
	Throttled       *prometheus.CounterVec

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	gatherer prometheus.Gatherer
}

// NewMetrics creates the collectors and registers them on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		AuthEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "memorybook_auth_events_total",
				Help: "Session authenticator operations by outcome.",
			},
			[]string{"op", "outcome"},
		),
		AccessDecisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "memorybook_access_decisions_total",
				Help: "Access resolver decisions by reason.",
			},
			[]string{"reason"},
		),
		SessionsSwept: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "memorybook_sessions_swept_total",
			Help: "Expired sessions removed by the sweeper.",
		}),
		Throttled: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "memorybook_login_throttled_total",
				Help: "Login attempts rejected by the throttle.",
			},
			[]string{"scope"},
		),
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "memorybook_http_requests_total",
				Help: "HTTP requests by route and status.",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "memorybook_http_request_duration_seconds",
				Help:    "HTTP request latency.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		gatherer: reg,
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.AuthEvents,
		m.AccessDecisions,
		m.SessionsSwept,
		m.Throttled,
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
	)
	return m
}

// Handler serves the registry in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// AuthEvent counts one authenticator operation.
func (m *Metrics) AuthEvent(op, outcome string) {
	if m == nil {
		return
	}
	m.AuthEvents.WithLabelValues(op, outcome).Inc()
}

// AccessDecision counts one resolver decision.
func (m *Metrics) AccessDecision(reason string) {
	if m == nil {
		return
	}
	m.AccessDecisions.WithLabelValues(reason).Inc()
}

// Swept adds n removed sessions.
func (m *Metrics) Swept(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.SessionsSwept.Add(float64(n))
}

// Throttle counts one throttled login by scope ("ip" or "identifier").
func (m *Metrics) Throttle(scope string) {
	if m == nil {
		return
	}
	m.Throttled.WithLabelValues(scope).Inc()
}

// ObserveHTTP records one finished request.
func (m *Metrics) ObserveHTTP(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}
