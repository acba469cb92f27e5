// Package metrics exposes the forwarder's operational counters and
// gauges to Prometheus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	OpensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inspfwd_opens_total",
			Help: "Total number of inspector open requests dispatched, by entity kind.",
		},
		[]string{"kind"},
	)

	ClosesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inspfwd_closes_total",
			Help: "Total number of inspectors closed, by reason.",
		},
		[]string{"reason"},
	)

	ProtocolFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inspfwd_protocol_failures_total",
			Help: "Total number of analyzer protocol failures observed, by kind.",
		},
		[]string{"kind"},
	)

	SamplesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "inspfwd_samples_total",
			Help: "Total number of samples forwarded to consumers.",
		},
	)

	SpanHz = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "inspfwd_span_hz",
			Help: "Current frequency span of the live master set, in Hz.",
		},
	)
)

// Registry bundles the collectors above behind a dedicated
// prometheus.Registry so they can be wired into an HTTP mux
// without colliding with the default global registry.
type Registry struct {
	reg *prometheus.Registry
}

func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(OpensTotal, ClosesTotal, ProtocolFailuresTotal, SamplesTotal, SpanHz)
	return &Registry{reg: reg}
}

func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}
