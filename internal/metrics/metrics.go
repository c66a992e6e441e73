// Package metrics exposes Prometheus metrics for the registration engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels for registration and cancellation attempts.
const (
	OutcomeConfirmed         = "confirmed"
	OutcomeCancelled         = "cancelled"
	OutcomeEventFull         = "event_full"
	OutcomeAlreadyRegistered = "already_registered"
	OutcomeEventUnavailable  = "event_unavailable"
	OutcomeUserNotFound      = "user_not_found"
	OutcomeNotFound          = "not_found"
	OutcomeError             = "error"
)

// Metrics holds all Prometheus metrics for the service. A nil *Metrics is
// valid and records nothing, which keeps tests free of registry setup.
type Metrics struct {
	registrations    *prometheus.CounterVec
	cancellations    *prometheus.CounterVec
	registerDuration prometheus.Histogram
}

// New creates and registers all metrics on the default registry.
func New() *Metrics {
	return &Metrics{
		registrations: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "eventreg_registrations_total",
			Help: "Registration attempts by outcome.",
		}, []string{"outcome"}),
		cancellations: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "eventreg_cancellations_total",
			Help: "Cancellation attempts by outcome.",
		}, []string{"outcome"}),
		registerDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "eventreg_register_duration_seconds",
			Help:    "Duration of the registration transaction.",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

// RecordRegistration counts one registration attempt.
func (m *Metrics) RecordRegistration(outcome string) {
	if m == nil {
		return
	}
	m.registrations.WithLabelValues(outcome).Inc()
}

// RecordCancellation counts one cancellation attempt.
func (m *Metrics) RecordCancellation(outcome string) {
	if m == nil {
		return
	}
	m.cancellations.WithLabelValues(outcome).Inc()
}

// ObserveRegisterDuration records how long a register call took.
func (m *Metrics) ObserveRegisterDuration(seconds float64) {
	if m == nil {
		return
	}
	m.registerDuration.Observe(seconds)
}
