// Package metrics exposes billing telemetry as Prometheus collectors.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dmitrymomot/billable/pkg/billing"
)

// Collector implements billing.Observer on top of a Prometheus registry.
type Collector struct {
	registry *prometheus.Registry

	operations  *prometheus.CounterVec
	latency     *prometheus.HistogramVec
	transitions *prometheus.CounterVec
	webhooks    *prometheus.CounterVec
	requests    *prometheus.CounterVec
	reqLatency  *prometheus.HistogramVec
}

var _ billing.Observer = (*Collector)(nil)

// New creates a Collector with its own registry under namespace.
// Go runtime and process collectors are registered as well.
func New(namespace string) *Collector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Collector{
		registry: reg,
		operations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "billing",
			Name:      "operations_total",
			Help:      "Billing operations by name and outcome.",
		}, []string{"operation", "outcome"}),
		latency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "billing",
			Name:      "operation_duration_seconds",
			Help:      "Billing operation latency including lock wait and retries.",
			Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}, []string{"operation"}),
		transitions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "billing",
			Name:      "transitions_total",
			Help:      "Subscription state transitions; allowed is false for transitions outside the lifecycle table.",
		}, []string{"from", "to", "event", "allowed"}),
		webhooks: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "billing",
			Name:      "webhooks_total",
			Help:      "Processor webhooks by event kind and disposition.",
		}, []string{"kind", "disposition"}),
		requests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by method and status code.",
		}, []string{"method", "code"}),
		reqLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
	}
}

func (c *Collector) ObserveOperation(op, outcome string, elapsed time.Duration) {
	c.operations.WithLabelValues(op, outcome).Inc()
	c.latency.WithLabelValues(op).Observe(elapsed.Seconds())
}

func (c *Collector) ObserveTransition(from, to billing.State, ev billing.Event, allowed bool) {
	c.transitions.WithLabelValues(from.String(), to.String(), ev.String(), strconv.FormatBool(allowed)).Inc()
}

func (c *Collector) ObserveWebhook(kind billing.EventKind, disposition billing.Disposition) {
	c.webhooks.WithLabelValues(kind.String(), string(disposition)).Inc()
}

// Registry returns the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// Middleware counts and times HTTP requests.
func (c *Collector) Middleware(next http.Handler) http.Handler {
	return promhttp.InstrumentHandlerCounter(c.requests,
		promhttp.InstrumentHandlerDuration(c.reqLatency, next))
}
