// Package metrics exposes Prometheus counters for the run engine. All
// methods are nil-safe so call sites never guard against a disabled
// collector.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics collects engine execution metrics
type Metrics struct {
	runsInflight prometheus.Gauge
	runsTotal    *prometheus.CounterVec
	runLatency   *prometheus.HistogramVec
	stepLatency  *prometheus.HistogramVec
	batchSize    prometheus.Histogram
	creditsSpent prometheus.Counter
}

// New creates and registers the engine metrics with the given registry.
// Pass prometheus.DefaultRegisterer for the global registry.
func New(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registry)

	return &Metrics{
		runsInflight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "engine",
			Name:      "runs_inflight",
			Help:      "Runs currently executing",
		}),
		runsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "engine",
			Name:      "runs_total",
			Help:      "Finished runs by terminal status",
		}, []string{"status"}),
		runLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "engine",
			Name:      "run_duration_seconds",
			Help:      "End-to-end run duration",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 5, 15, 60, 300},
		}, []string{"status"}),
		stepLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "engine",
			Name:      "step_duration_seconds",
			Help:      "Node dispatch duration by block type and outcome",
			Buckets:   []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
		}, []string{"block_id", "status"}),
		batchSize: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "engine",
			Name:      "mpc_batch_size",
			Help:      "Node count per private-compute batch submission",
			Buckets:   []float64{1, 2, 3, 5, 8, 13, 21},
		}),
		creditsSpent: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "engine",
			Name:      "credits_committed_total",
			Help:      "Credits debited for successful runs",
		}),
	}
}

// RunStarted marks a run entering execution
func (m *Metrics) RunStarted() {
	if m == nil {
		return
	}
	m.runsInflight.Inc()
}

// RunFinished records a run reaching a terminal status
func (m *Metrics) RunFinished(status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.runsInflight.Dec()
	m.runsTotal.WithLabelValues(status).Inc()
	m.runLatency.WithLabelValues(status).Observe(duration.Seconds())
}

// StepRecorded records one node dispatch outcome
func (m *Metrics) StepRecorded(blockID, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.stepLatency.WithLabelValues(blockID, status).Observe(duration.Seconds())
}

// BatchSubmitted records the size of a private-compute batch
func (m *Metrics) BatchSubmitted(size int) {
	if m == nil {
		return
	}
	m.batchSize.Observe(float64(size))
}

// CreditsCommitted records a successful debit
func (m *Metrics) CreditsCommitted(amount int) {
	if m == nil {
		return
	}
	m.creditsSpent.Add(float64(amount))
}
