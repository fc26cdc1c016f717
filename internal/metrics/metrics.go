// Package metrics exposes Prometheus instrumentation for comparison cycles.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "nvdiff"

// Metrics holds the collectors for one registry
type Metrics struct {
	registry *prometheus.Registry

	// cycles counts comparison cycles.
	// Labels: dataset, method, status (committed, flagged, failed)
	cycles *prometheus.CounterVec

	// cycleDuration measures a cycle from validation to commit.
	// Labels: dataset, method
	cycleDuration *prometheus.HistogramVec

	// effects counts committed outcomes.
	// Labels: dataset, kind (element, junction), effect
	effects *prometheus.CounterVec

	// conflicts counts objects that failed with an identifier conflict.
	// Labels: dataset
	conflicts *prometheus.CounterVec

	// ledgerEntries tracks the number of committed ledger entries
	ledgerEntries prometheus.Gauge

	// unlinked counts point features with no element within reach.
	// Labels: dataset, table
	unlinked *prometheus.CounterVec
}

// New creates collectors on a fresh registry, which also carries the Go
// runtime and process collectors
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		cycles: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cycle",
			Name:      "total",
			Help:      "Comparison cycles by outcome",
		}, []string{"dataset", "method", "status"}),
		cycleDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "cycle",
			Name:      "duration_seconds",
			Help:      "Comparison cycle duration in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60, 300},
		}, []string{"dataset", "method"}),
		effects: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "effects_total",
			Help:      "Committed outcomes by object kind and effect",
		}, []string{"dataset", "kind", "effect"}),
		conflicts: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "identifier_conflicts_total",
			Help:      "Objects rejected with an identifier conflict",
		}, []string{"dataset"}),
		ledgerEntries: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "entries",
			Help:      "Committed ledger entries",
		}),
		unlinked: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "unlinked_points_total",
			Help:      "Point features with no element within linkage distance",
		}, []string{"dataset", "table"}),
	}
}

// Cycle status labels
const (
	StatusCommitted = "committed"
	StatusFlagged   = "flagged"
	StatusFailed    = "failed"
)

// ObserveCycle records one finished cycle
func (m *Metrics) ObserveCycle(dataset, method, status string, took time.Duration) {
	if m == nil {
		return
	}
	m.cycles.WithLabelValues(dataset, method, status).Inc()
	m.cycleDuration.WithLabelValues(dataset, method).Observe(took.Seconds())
}

// AddEffects records committed outcomes of one kind
func (m *Metrics) AddEffects(dataset, kind string, counts map[string]int) {
	if m == nil {
		return
	}
	for effect, n := range counts {
		m.effects.WithLabelValues(dataset, kind, effect).Add(float64(n))
	}
}

// AddConflicts records objects that failed to bind
func (m *Metrics) AddConflicts(dataset string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.conflicts.WithLabelValues(dataset).Add(float64(n))
}

// AddUnlinked records point features left without a roadnid
func (m *Metrics) AddUnlinked(dataset, table string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.unlinked.WithLabelValues(dataset, table).Add(float64(n))
}

// SetLedgerEntries sets the ledger size gauge
func (m *Metrics) SetLedgerEntries(n int) {
	if m == nil {
		return
	}
	m.ledgerEntries.Set(float64(n))
}

// Registry returns the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
