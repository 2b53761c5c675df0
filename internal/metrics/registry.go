// Package metrics implements the shared Prometheus registry and /metrics
// exposition handler used by every service. Each service reaches the
// registry only through a handle passed in at startup -- never a
// module-level singleton -- so tests can construct independent registries.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry bundles a private *prometheus.Registry with an HTTP handler for
// its /metrics endpoint: one CounterVec/GaugeVec/HistogramVec family per
// concern, registered against one shared per-process registry.
type Registry struct {
	reg *prometheus.Registry
}

// New returns an empty registry pre-populated with the standard Go/process
// collectors.
func New() *Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewGoCollector())
	reg.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
	return &Registry{reg: reg}
}

// Handler returns the net/http handler to mount at GET /metrics.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}

// NewCounterVec registers and returns a CounterVec scoped to this registry.
func (r *Registry) NewCounterVec(opts prometheus.CounterOpts, labels []string) *prometheus.CounterVec {
	v := prometheus.NewCounterVec(opts, labels)
	r.reg.MustRegister(v)
	return v
}

// NewGaugeVec registers and returns a GaugeVec scoped to this registry.
func (r *Registry) NewGaugeVec(opts prometheus.GaugeOpts, labels []string) *prometheus.GaugeVec {
	v := prometheus.NewGaugeVec(opts, labels)
	r.reg.MustRegister(v)
	return v
}

// NewHistogramVec registers and returns a HistogramVec scoped to this registry.
func (r *Registry) NewHistogramVec(opts prometheus.HistogramOpts, labels []string) *prometheus.HistogramVec {
	v := prometheus.NewHistogramVec(opts, labels)
	r.reg.MustRegister(v)
	return v
}
