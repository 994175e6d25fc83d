package metrics

import "github.com/prometheus/client_golang/prometheus"

// CartMetrics counts cart mutations by operation and result.
type CartMetrics struct {
	mutations *prometheus.CounterVec
}

func NewCartMetrics(reg prometheus.Registerer) *CartMetrics {
	if reg == nil {
		return &CartMetrics{}
	}
	mutations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cart_mutations_total",
		Help: "Cart mutations grouped by operation and result.",
	}, []string{"op", "result"})
	reg.MustRegister(mutations)
	return &CartMetrics{mutations: mutations}
}

// IncMutation records one mutation; result is "ok" or "error".
func (c *CartMetrics) IncMutation(op string, err error) {
	if c == nil || c.mutations == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	c.mutations.WithLabelValues(normalizeLabel(op), result).Inc()
}
