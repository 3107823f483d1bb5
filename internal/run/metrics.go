package run

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the runtime's Prometheus collectors on a dedicated registry,
// so several engine instances in one process never double-register.
type Metrics struct {
	registry *prometheus.Registry

	NodeRuns    *prometheus.CounterVec
	RunDuration prometheus.Histogram
	PlanSize    prometheus.Gauge
	RunsTotal   *prometheus.CounterVec
}

// NewMetrics creates and registers the runtime collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		NodeRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "fngraph",
				Subsystem: "runtime",
				Name:      "node_runs_total",
				Help:      "Node visits by outcome.",
			},
			[]string{"status"},
		),
		RunDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "fngraph",
				Subsystem: "runtime",
				Name:      "run_duration_seconds",
				Help:      "Duration of whole graph runs.",
				Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
			},
		),
		PlanSize: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "fngraph",
				Subsystem: "runtime",
				Name:      "plan_nodes",
				Help:      "Number of nodes in the most recent plan.",
			},
		),
		RunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "fngraph",
				Subsystem: "runtime",
				Name:      "runs_total",
				Help:      "Total graph runs by outcome.",
			},
			[]string{"status"},
		),
	}
	m.registry.MustRegister(m.NodeRuns, m.RunDuration, m.PlanSize, m.RunsTotal)
	return m
}

// Registry exposes the collectors for the /metrics endpoint.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) countNode(status string) {
	if m == nil {
		return
	}
	m.NodeRuns.WithLabelValues(status).Inc()
}

func (m *Metrics) observeRun(status string, planned int, d time.Duration) {
	if m == nil {
		return
	}
	m.RunsTotal.WithLabelValues(status).Inc()
	m.PlanSize.Set(float64(planned))
	m.RunDuration.Observe(d.Seconds())
}
