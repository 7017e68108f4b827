package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "cloud_tracker"

// Filter outcomes recorded by AuthMetrics
const (
	OutcomeExempt               = "exempt"
	OutcomeRejectedNoBearer     = "rejected_no_bearer"
	OutcomeMalformed            = "malformed"
	OutcomePrincipalNotFound    = "principal_not_found"
	OutcomeInvalid              = "invalid"
	OutcomeAuthenticated        = "authenticated"
	OutcomeAnonymous            = "anonymous"
	OutcomeAlreadyAuthenticated = "already_authenticated"
	OutcomeError                = "error"
)

// AuthMetrics is a prometheus.Collector for the authentication filter.
// A nil *AuthMetrics is valid and records nothing.
type AuthMetrics struct {
	outcomes      *prometheus.CounterVec
	lookupLatency *prometheus.HistogramVec
}

// NewAuthMetrics returns a new AuthMetrics collector.
func NewAuthMetrics() *AuthMetrics {
	return &AuthMetrics{
		outcomes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "auth",
				Name:      "filter_outcomes_total",
				Help:      "The number of requests handled by the JWT filter, by outcome.",
			}, []string{"outcome"},
		),
		lookupLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: "auth",
				Name:      "principal_lookup_seconds",
				Help:      "The time taken to load a principal by identifier.",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
			}, []string{"result"},
		),
	}
}

// Register registers the collector, returning the already registered
// instance if an equal collector exists.
func (m *AuthMetrics) Register(reg prometheus.Registerer) (*AuthMetrics, error) {
	if err := reg.Register(m); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*AuthMetrics); ok {
				return existing, nil
			}
		}
		return nil, err
	}
	return m, nil
}

// RecordOutcome counts one filter outcome
func (m *AuthMetrics) RecordOutcome(outcome string) {
	if m == nil {
		return
	}
	m.outcomes.WithLabelValues(outcome).Inc()
}

// ObserveLookup records the duration of a principal lookup
func (m *AuthMetrics) ObserveLookup(d time.Duration, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.lookupLatency.WithLabelValues(result).Observe(d.Seconds())
}

// Describe is part of the prometheus.Collector interface.
func (m *AuthMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.outcomes.Describe(ch)
	m.lookupLatency.Describe(ch)
}

// Collect is part of the prometheus.Collector interface.
func (m *AuthMetrics) Collect(ch chan<- prometheus.Metric) {
	m.outcomes.Collect(ch)
	m.lookupLatency.Collect(ch)
}
