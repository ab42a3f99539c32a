package appserver

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Run outcomes recorded by Metrics.
const (
	OutcomeStarted  = "started"
	OutcomeDeclined = "declined"
	OutcomeFailed   = "failed"
)

// Metrics holds the Prometheus collectors for container runs.
type Metrics struct {
	runs     *prometheus.CounterVec
	started  prometheus.Gauge
	duration prometheus.Histogram
}

// NewMetrics creates the collectors and registers them on reg. A nil reg leaves
// them unregistered, which is useful in tests.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "appserver",
			Name:      "container_runs_total",
			Help:      "Container runs by outcome.",
		}, []string{"outcome"}),
		started: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "appserver",
			Name:      "containers_started",
			Help:      "Containers whose receiver reported a successful start.",
		}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "appserver",
			Name:      "container_run_duration_seconds",
			Help:      "Time spent resolving and starting a container's receiver.",
			Buckets:   prometheus.DefBuckets,
		}),
	}

	if reg != nil {
		for _, c := range []prometheus.Collector{m.runs, m.started, m.duration} {
			if err := reg.Register(c); err != nil {
				return nil, err
			}
		}
	}
	return m, nil
}

func (m *Metrics) observeRun(outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(outcome).Inc()
	m.duration.Observe(elapsed.Seconds())
	if outcome == OutcomeStarted {
		m.started.Inc()
	}
}
