package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks the credential ledger: awards by definition kind,
// duplicate-award rejections, revocations and award latency.
type Metrics struct {
	AwardsTotal     *prometheus.CounterVec
	DuplicateAwards prometheus.Counter
	Revocations     prometheus.Counter
	AwardDuration   prometheus.Histogram
}

func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		AwardsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "credentials_awards_total",
			Help: "Total number of credentials awarded",
		}, []string{"kind"}),
		DuplicateAwards: f.NewCounter(prometheus.CounterOpts{
			Name: "credentials_awards_duplicate_total",
			Help: "Total number of awards rejected because the user already holds the credential",
		}),
		Revocations: f.NewCounter(prometheus.CounterOpts{
			Name: "credentials_revocations_total",
			Help: "Total number of credentials moved from awarded to revoked",
		}),
		AwardDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "credentials_award_duration_seconds",
			Help:    "Duration of Award operations",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
	}
}

func (m *Metrics) IncrementAwarded(kind string) {
	m.AwardsTotal.WithLabelValues(kind).Inc()
}

func (m *Metrics) IncrementDuplicate() {
	m.DuplicateAwards.Inc()
}

func (m *Metrics) IncrementRevoked() {
	m.Revocations.Inc()
}

// ObserveAward records the duration of an award. Call with time.Now() at the start.
func (m *Metrics) ObserveAward(start time.Time) {
	m.AwardDuration.Observe(time.Since(start).Seconds())
}
