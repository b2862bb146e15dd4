// Package metrics exposes admission decision counters for Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collectors holds the gate's decision metrics on a private registry.
type Collectors struct {
	registry *prometheus.Registry

	decisions *prometheus.CounterVec
	duration  *prometheus.HistogramVec
	errors    *prometheus.CounterVec
}

// New registers the decision metrics plus Go runtime and process collectors.
func New() *Collectors {
	c := &Collectors{
		registry: prometheus.NewRegistry(),
		decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "styx_decisions_total",
			Help: "Admission decisions by action type and outcome.",
		}, []string{"action", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "styx_decision_duration_seconds",
			Help:    "Time spent evaluating an admission decision.",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1},
		}, []string{"action"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "styx_decision_errors_total",
			Help: "Decisions that failed and were passed through, by stage.",
		}, []string{"stage"}),
	}
	c.registry.MustRegister(
		c.decisions,
		c.duration,
		c.errors,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

// ObserveDecision counts one decision and its evaluation time.
// An empty action is reported as "none".
func (c *Collectors) ObserveDecision(action, outcome string, took time.Duration) {
	if action == "" {
		action = "none"
	}
	c.decisions.WithLabelValues(action, outcome).Inc()
	c.duration.WithLabelValues(action).Observe(took.Seconds())
}

// ObserveError counts a failed decision at stage (e.g. "integration", "connector").
func (c *Collectors) ObserveError(stage string) {
	c.errors.WithLabelValues(stage).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collectors) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
