package kafka

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for event publication.
type Metrics struct {
	Produced        prometheus.Counter
	ProduceFailures prometheus.Counter
	ProduceLatency  prometheus.Histogram
	BreakerState    prometheus.Gauge
	Bypassed        prometheus.Counter
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Produced: f.NewCounter(prometheus.CounterOpts{
			Name: "credentials_events_produced_total",
			Help: "Total number of credential events written to Kafka",
		}),
		ProduceFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "credentials_events_produce_failures_total",
			Help: "Total number of failed Kafka produce calls",
		}),
		ProduceLatency: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "credentials_events_produce_duration_seconds",
			Help:    "Latency of synchronous Kafka produce calls",
			Buckets: prometheus.DefBuckets,
		}),
		BreakerState: f.NewGauge(prometheus.GaugeOpts{
			Name: "credentials_events_circuit_breaker_state",
			Help: "Current circuit breaker state (0=closed/healthy, 1=open/unhealthy)",
		}),
		Bypassed: f.NewCounter(prometheus.CounterOpts{
			Name: "credentials_events_kafka_bypassed_total",
			Help: "Total number of events sent straight to the fallback while the breaker was open",
		}),
	}
}

func (m *Metrics) observeProduce(d time.Duration, err error) {
	if m == nil {
		return
	}
	m.ProduceLatency.Observe(d.Seconds())
	if err != nil {
		m.ProduceFailures.Inc()
		return
	}
	m.Produced.Inc()
}

func (m *Metrics) setBreakerOpen(open bool) {
	if m == nil {
		return
	}
	if open {
		m.BreakerState.Set(1)
	} else {
		m.BreakerState.Set(0)
	}
}

func (m *Metrics) observeBypass() {
	if m == nil {
		return
	}
	m.Bypassed.Inc()
}
