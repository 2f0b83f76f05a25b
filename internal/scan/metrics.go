package scan

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics exposes scan activity to Prometheus. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	registry *prometheus.Registry

	runs        *prometheus.CounterVec
	units       *prometheus.CounterVec
	workerFails prometheus.Counter
	busyWorkers prometheus.Gauge
	unitSeconds prometheus.Histogram
	runSeconds  *prometheus.HistogramVec
}

// NewMetrics creates the scan collectors on a private registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "screener",
			Name:      "runs_total",
			Help:      "Scan runs by kind and outcome.",
		}, []string{"kind", "outcome"}),
		units: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "screener",
			Name:      "units_total",
			Help:      "Work units analysed, by result.",
		}, []string{"result"}),
		workerFails: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "screener",
			Name:      "worker_failures_total",
			Help:      "Work units that failed with an unexpected error or panic.",
		}),
		busyWorkers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "screener",
			Name:      "busy_workers",
			Help:      "Workers currently analysing a unit.",
		}),
		unitSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "screener",
			Name:      "unit_duration_seconds",
			Help:      "Time spent analysing one work unit.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
		}),
		runSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "screener",
			Name:      "run_duration_seconds",
			Help:      "Wall time of a scan run.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
		}, []string{"kind"}),
	}
	m.registry.MustRegister(
		m.runs, m.units, m.workerFails, m.busyWorkers, m.unitSeconds, m.runSeconds,
		collectors.NewGoCollector(),
	)
	return m
}

// Registry returns the registry holding the scan collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the collectors in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) unitStarted() {
	if m == nil {
		return
	}
	m.busyWorkers.Inc()
}

func (m *Metrics) unitFinished(r Result, seconds float64) {
	if m == nil {
		return
	}
	m.busyWorkers.Dec()
	m.unitSeconds.Observe(seconds)
	switch {
	case r.Err != nil:
		m.workerFails.Inc()
		m.units.WithLabelValues("error").Inc()
	case r.Verdict != nil:
		m.units.WithLabelValues("matched").Inc()
	default:
		m.units.WithLabelValues("skipped").Inc()
	}
}

func (m *Metrics) runFinished(kind, outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(kind, outcome).Inc()
	m.runSeconds.WithLabelValues(kind).Observe(seconds)
}
