package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type PrometheusRecorder struct {
	outcomes  *prometheus.CounterVec
	histogram *prometheus.HistogramVec
}

// NewPrometheusRecorder registers the tunegate collectors on the default
// registry. Outcome codes are "ok" or one of the payment error codes.
func NewPrometheusRecorder() Recorder {
	outcomes := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tunegate",
			Name:      "confirm_outcomes_total",
			Help:      "Confirm request outcomes by result code",
		},
		[]string{"code"},
	)

	histogram := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "tunegate",
			Name:      "outbound_latency_seconds",
			Help:      "Latency of facilitator, settlement and generation calls",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	prometheus.MustRegister(outcomes, histogram)

	return &PrometheusRecorder{
		outcomes:  outcomes,
		histogram: histogram,
	}
}

func (p *PrometheusRecorder) IncOutcome(code string) {
	p.outcomes.With(prometheus.Labels{"code": code}).Inc()
}

func (p *PrometheusRecorder) ObserveLatency(operation string, d time.Duration) {
	p.histogram.With(prometheus.Labels{"operation": operation}).Observe(d.Seconds())
}
