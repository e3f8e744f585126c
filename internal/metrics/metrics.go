// Package metrics exports pipeline activity as Prometheus metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"LearningCurator/internal/domain"
	"LearningCurator/internal/ports"
	"LearningCurator/internal/usecase"
)

const namespace = "learning_curator"

// Metrics owns a private registry so several instances can coexist in tests.
type Metrics struct {
	registry *prometheus.Registry

	fetches        *prometheus.CounterVec
	fetchedItems   *prometheus.CounterVec
	curations      *prometheus.CounterVec
	runs           *prometheus.CounterVec
	runDuration    prometheus.Histogram
	selectionItems prometheus.Gauge
	lastSuccess    prometheus.Gauge
}

var _ ports.Recorder = (*Metrics)(nil)

// New registers all collectors, plus the Go runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		fetches: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_fetches_total",
			Help:      "Source fetches by source and outcome status.",
		}, []string{"source", "status"}),
		fetchedItems: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_items_total",
			Help:      "Raw items returned by each source.",
		}, []string{"source"}),
		curations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "curations_total",
			Help:      "Topic curations by strategy and fallback reason.",
		}, []string{"strategy", "reason"}),
		runs: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Pipeline runs by outcome.",
		}, []string{"outcome"}),
		runDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of a pipeline run.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}),
		selectionItems: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "selection_items",
			Help:      "Items in the most recent run's global selection.",
		}),
		lastSuccess: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_update_timestamp_seconds",
			Help:      "Unix time of the last run that wrote the status document.",
		}),
	}
}

// ObserveFetch counts one source fetch.
func (m *Metrics) ObserveFetch(source string, status domain.FetchStatus, items int) {
	m.fetches.WithLabelValues(source, string(status)).Inc()
	if items > 0 {
		m.fetchedItems.WithLabelValues(source).Add(float64(items))
	}
}

// ObserveCuration counts one topic curation.
func (m *Metrics) ObserveCuration(strategy domain.CurationStrategy, reason string) {
	m.curations.WithLabelValues(string(strategy), reason).Inc()
}

// ObserveRun records a finished pipeline run.
func (m *Metrics) ObserveRun(outcome string, items int, elapsed time.Duration) {
	m.runs.WithLabelValues(outcome).Inc()
	m.runDuration.Observe(elapsed.Seconds())
	m.selectionItems.Set(float64(items))
	if outcome == usecase.OutcomeUpdated {
		m.lastSuccess.SetToCurrentTime()
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
