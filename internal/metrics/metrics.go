// Package metrics exports hook dispatch counters to Prometheus.
package metrics

import (
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "hookgw"

// Recorder implements hooks.Metrics. A nil *Recorder records nothing.
type Recorder struct {
	registry *prometheus.Registry

	dispatches  *prometheus.CounterVec
	completions *prometheus.CounterVec
	callbacks   *prometheus.CounterVec
	inflight    prometheus.Gauge
}

// New creates a Recorder backed by its own registry, which also carries the
// Go runtime and process collectors.
func New() (*Recorder, error) {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		dispatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "hook_dispatches_total",
			Help:      "Hook events admitted, by kind.",
		}, []string{"kind"}),
		completions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "hook_completions_total",
			Help:      "Background hook runs finished, by kind and outcome.",
		}, []string{"kind", "outcome"}),
		callbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "callback_deliveries_total",
			Help:      "Ping callback POST attempts, by result.",
		}, []string{"result"}),
		inflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "hook_inflight",
			Help:      "Hook runs currently executing.",
		}),
	}

	cs := []prometheus.Collector{
		r.dispatches,
		r.completions,
		r.callbacks,
		r.inflight,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	}
	for _, c := range cs {
		if err := r.registry.Register(c); err != nil {
			var already prometheus.AlreadyRegisteredError
			if errors.As(err, &already) {
				continue
			}
			return nil, err
		}
	}
	return r, nil
}

// Registry exposes the underlying registry, mainly for tests.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// Handler serves the registry in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

func (r *Recorder) HookDispatched(kind string) {
	if r == nil {
		return
	}
	r.dispatches.WithLabelValues(kind).Inc()
}

func (r *Recorder) HookCompleted(kind, outcome string) {
	if r == nil {
		return
	}
	r.completions.WithLabelValues(kind, outcome).Inc()
}

func (r *Recorder) CallbackDelivered(result string) {
	if r == nil {
		return
	}
	r.callbacks.WithLabelValues(result).Inc()
}

func (r *Recorder) TaskStarted() {
	if r == nil {
		return
	}
	r.inflight.Inc()
}

func (r *Recorder) TaskFinished() {
	if r == nil {
		return
	}
	r.inflight.Dec()
}
