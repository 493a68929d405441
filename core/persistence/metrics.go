package persistence

import (
	"time"

	"github.com/asaidimu/go-folio/core/schema"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Validation outcomes recorded by Metrics.
const (
	OutcomeAccepted = "accepted"
	OutcomeRejected = "rejected"
)

// Metrics holds the Prometheus collectors of a RecordService.
type Metrics struct {
	// RecordsValidated counts validated record payloads by outcome.
	RecordsValidated *prometheus.CounterVec
	// ValidationIssues counts reported issues by code.
	ValidationIssues *prometheus.CounterVec
	// RenderDuration observes the time spent rendering a view, by view type.
	RenderDuration *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them with reg. A nil reg
// leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		RecordsValidated: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "folio_records_validated_total",
				Help: "Record payloads validated against a template schema.",
			},
			[]string{"outcome"},
		),
		ValidationIssues: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "folio_validation_issues_total",
				Help: "Validation issues reported, by issue code.",
			},
			[]string{"code"},
		),
		RenderDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "folio_view_render_seconds",
				Help:    "Time spent rendering a view.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"view_type"},
		),
	}
}

func (m *Metrics) observeValidation(result schema.ValidationResult) {
	if m == nil {
		return
	}
	if result.OK {
		m.RecordsValidated.WithLabelValues(OutcomeAccepted).Inc()
		return
	}
	m.RecordsValidated.WithLabelValues(OutcomeRejected).Inc()
	for _, is := range result.Details {
		m.ValidationIssues.WithLabelValues(is.Code).Inc()
	}
}

func (m *Metrics) observeRender(t schema.ViewType, d time.Duration) {
	if m == nil {
		return
	}
	m.RenderDuration.WithLabelValues(string(t)).Observe(d.Seconds())
}
