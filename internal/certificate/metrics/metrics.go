package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"credentials/internal/certificate/models"
)

// Metrics tracks definition creation and duplicate rejections per kind.
type Metrics struct {
	DefinitionsCreated   *prometheus.CounterVec
	DuplicateDefinitions *prometheus.CounterVec
	CreateDuration       prometheus.Histogram
}

// New registers the certificate metrics with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		DefinitionsCreated: f.NewCounterVec(prometheus.CounterOpts{
			Name: "credentials_definitions_created_total",
			Help: "Total number of certificate definitions created",
		}, []string{"kind"}),
		DuplicateDefinitions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "credentials_definitions_duplicate_total",
			Help: "Total number of definition creates rejected as duplicates",
		}, []string{"kind"}),
		CreateDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "credentials_definition_create_duration_seconds",
			Help:    "Duration of definition create operations",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
	}
}

func (m *Metrics) IncrementCreated(kind models.Kind) {
	m.DefinitionsCreated.WithLabelValues(string(kind)).Inc()
}

func (m *Metrics) IncrementDuplicate(kind models.Kind) {
	m.DuplicateDefinitions.WithLabelValues(string(kind)).Inc()
}

// ObserveCreate records the duration of a create. Call with time.Now() at the start.
func (m *Metrics) ObserveCreate(start time.Time) {
	m.CreateDuration.Observe(time.Since(start).Seconds())
}
