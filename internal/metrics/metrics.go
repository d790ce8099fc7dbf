// Package metrics exposes prometheus collectors for the consumption executor
// and the reorder advisor.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Execution outcomes.
const (
	OutcomeExecuted = "executed"
	OutcomeSkipped  = "skipped"
	OutcomeConflict = "conflict"
	OutcomeError    = "error"
)

// Metrics holds the collectors on a private registry. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	registry   *prometheus.Registry
	executions *prometheus.CounterVec
	undos      prometheus.Counter
	shortages  *prometheus.CounterVec
	duration   prometheus.Histogram
	critical   *prometheus.GaugeVec
}

// New registers every collector on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		executions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "krma_consumption_executions_total",
			Help: "Daily consumption executions by outcome.",
		}, []string{"outcome"}),
		undos: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "krma_consumption_undo_total",
			Help: "Undone consumption dates.",
		}),
		shortages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "krma_feed_shortage_total",
			Help: "Feed types that blocked an execution.",
		}, []string{"feed_type"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "krma_consumption_duration_seconds",
			Help:    "Time spent executing one date.",
			Buckets: prometheus.DefBuckets,
		}),
		critical: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "krma_reorder_critical_types",
			Help: "Feed types in the critical reorder tier.",
		}, []string{"farm"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.executions, m.undos, m.shortages, m.duration, m.critical,
	)
	return m
}

// ObserveExecution records one execution attempt.
func (m *Metrics) ObserveExecution(outcome string, took time.Duration) {
	if m == nil {
		return
	}
	m.executions.WithLabelValues(outcome).Inc()
	m.duration.Observe(took.Seconds())
}

// ObserveShortage counts a feed type that blocked an execution.
func (m *Metrics) ObserveShortage(feedType string) {
	if m == nil {
		return
	}
	m.shortages.WithLabelValues(feedType).Inc()
}

func (m *Metrics) ObserveUndo() {
	if m == nil {
		return
	}
	m.undos.Inc()
}

// SetCriticalTypes publishes the number of critical feed types of a farm.
func (m *Metrics) SetCriticalTypes(farmID int64, n int) {
	if m == nil {
		return
	}
	m.critical.WithLabelValues(strconv.FormatInt(farmID, 10)).Set(float64(n))
}

// Executions returns the execution counter of one outcome.
func (m *Metrics) Executions(outcome string) prometheus.Counter {
	return m.executions.WithLabelValues(outcome)
}

// Shortages returns the shortage counter of one feed type.
func (m *Metrics) Shortages(feedType string) prometheus.Counter {
	return m.shortages.WithLabelValues(feedType)
}

// Handler serves the registry in the prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
