package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CheckoutMetrics records checkout session transitions and submission latency.
type CheckoutMetrics struct {
	transitions *prometheus.CounterVec
	submissions *prometheus.HistogramVec
}

// NewCheckoutMetrics registers the checkout metrics on the provided registerer.
func NewCheckoutMetrics(reg prometheus.Registerer) *CheckoutMetrics {
	if reg == nil {
		return &CheckoutMetrics{}
	}
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_transitions_total",
		Help: "Checkout session state transitions.",
	}, []string{"from", "to"})
	submissions := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "checkout_submission_duration_seconds",
		Help:    "Time spent waiting on the backend for order submission.",
		Buckets: prometheus.DefBuckets,
	}, []string{"outcome"})
	reg.MustRegister(transitions, submissions)
	return &CheckoutMetrics{
		transitions: transitions,
		submissions: submissions,
	}
}

// IncTransition counts a single state change.
func (c *CheckoutMetrics) IncTransition(from, to string) {
	if c == nil || c.transitions == nil {
		return
	}
	c.transitions.WithLabelValues(normalizeLabel(from), normalizeLabel(to)).Inc()
}

// ObserveSubmission records how long a submission took and how it ended.
func (c *CheckoutMetrics) ObserveSubmission(outcome string, duration time.Duration) {
	if c == nil || c.submissions == nil {
		return
	}
	c.submissions.WithLabelValues(normalizeLabel(outcome)).Observe(duration.Seconds())
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
