package orchestrator

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	outcomeSucceeded = "succeeded"
	outcomeTransient = "transient"
	outcomePermanent = "permanent"
	outcomeQuota     = "quota"
	outcomeCanceled  = "canceled"
)

type Metrics struct {
	requests    *prometheus.CounterVec
	retries     prometheus.Counter
	inFlight    prometheus.Gauge
	runDuration prometheus.Histogram
}

// NewMetrics builds the collectors and registers them on reg unless it is nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "distill_chunk_requests_total",
			Help: "Summarization requests by outcome.",
		}, []string{"outcome"}),
		retries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "distill_chunk_retries_total",
			Help: "Requests scheduled for retry after a transient failure.",
		}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "distill_chunk_requests_in_flight",
			Help: "Summarization requests currently waiting on the backend.",
		}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "distill_run_duration_seconds",
			Help:    "Wall time of a summarization run.",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
		}),
	}

	if reg != nil {
		reg.MustRegister(m.requests, m.retries, m.inFlight, m.runDuration)
	}

	return m
}

func (m *Metrics) request(outcome string) {
	m.requests.WithLabelValues(outcome).Inc()
}
