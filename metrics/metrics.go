package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles the price updater's collectors on a dedicated registry.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	Registry         *prometheus.Registry
	RunsTotal        *prometheus.CounterVec
	LinksTotal       *prometheus.CounterVec
	ExtractionsTotal *prometheus.CounterVec
	FetchDuration    prometheus.Histogram
	RunInProgress    prometheus.Gauge
}

func New() *Metrics {
	registry := prometheus.NewRegistry()

	runs := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "buildbank_runs_total",
			Help: "Batch price updates by outcome.",
		},
		[]string{"outcome"},
	)
	links := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "buildbank_links_total",
			Help: "Vendor links processed by result.",
		},
		[]string{"result"},
	)
	extractions := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "buildbank_extractions_total",
			Help: "Successful price extractions by strategy and method.",
		},
		[]string{"strategy", "method"},
	)
	fetchDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "buildbank_fetch_duration_seconds",
			Help:    "Time spent fetching one vendor link.",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 30, 60, 120},
		},
	)
	inProgress := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "buildbank_run_in_progress",
			Help: "1 while a batch price update is running.",
		},
	)

	registry.MustRegister(runs, links, extractions, fetchDuration, inProgress)

	return &Metrics{
		Registry:         registry,
		RunsTotal:        runs,
		LinksTotal:       links,
		ExtractionsTotal: extractions,
		FetchDuration:    fetchDuration,
		RunInProgress:    inProgress,
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

// IncRun counts a finished run. outcome is "completed", "cancelled" or "failed".
func (m *Metrics) IncRun(outcome string) {
	if m == nil {
		return
	}
	m.RunsTotal.WithLabelValues(outcome).Inc()
}

// IncLink counts one processed link. result is "success" or "failure".
func (m *Metrics) IncLink(result string) {
	if m == nil {
		return
	}
	m.LinksTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) IncExtraction(strategy, method string) {
	if m == nil {
		return
	}
	m.ExtractionsTotal.WithLabelValues(strategy, method).Inc()
}

func (m *Metrics) ObserveFetch(d time.Duration) {
	if m == nil {
		return
	}
	m.FetchDuration.Observe(d.Seconds())
}

// SetRunning flips the in-progress gauge.
func (m *Metrics) SetRunning(running bool) {
	if m == nil {
		return
	}
	if running {
		m.RunInProgress.Set(1)
		return
	}
	m.RunInProgress.Set(0)
}
