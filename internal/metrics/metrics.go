// Package metrics exposes click and detection counters for both modes.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "cookie_idle"

// Metrics groups the collectors of one process. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	clicks  *prometheus.CounterVec
	hits    *prometheus.CounterVec
	misses  *prometheus.CounterVec
	errors  *prometheus.CounterVec
	workers prometheus.Gauge
	saves   *prometheus.CounterVec
}

// New registers every collector on a fresh registry
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		clicks: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "clicks_total",
			Help:      "Number of clicks issued, by mode.",
		}, []string{"mode"}),
		hits: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "locate_hits_total",
			Help:      "Number of successful template matches, by mode.",
		}, []string{"mode"}),
		misses: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "locate_misses_total",
			Help:      "Number of scans where the template was not on screen, by mode.",
		}, []string{"mode"}),
		errors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "primitive_errors_total",
			Help:      "Number of failed locate, click and move calls.",
		}, []string{"mode", "op"}),
		workers: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "click_workers",
			Help:      "Stationary click workers currently running.",
		}),
		saves: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "saves_total",
			Help:      "Number of settings writes, by result.",
		}, []string{"result"}),
	}
}

func (m *Metrics) Clicks(mode string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.clicks.WithLabelValues(mode).Add(float64(n))
}

func (m *Metrics) Hit(mode string) {
	if m == nil {
		return
	}
	m.hits.WithLabelValues(mode).Inc()
}

func (m *Metrics) Miss(mode string) {
	if m == nil {
		return
	}
	m.misses.WithLabelValues(mode).Inc()
}

// Error counts a failed primitive call; op is one of locate, click, move, position
func (m *Metrics) Error(mode, op string) {
	if m == nil {
		return
	}
	m.errors.WithLabelValues(mode, op).Inc()
}

func (m *Metrics) AddWorkers(n int) {
	if m == nil {
		return
	}
	m.workers.Add(float64(n))
}

// Saved records the outcome of a persistence write
func (m *Metrics) Saved(err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.saves.WithLabelValues(result).Inc()
}

// Registry returns the underlying registry, nil for a nil receiver
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
