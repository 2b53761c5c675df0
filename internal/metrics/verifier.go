package metrics

import "github.com/prometheus/client_golang/prometheus"

// VerifierMetrics exposes the notification verifier's metric family:
// response_count{group, response_type}, grouping outcomes more coarsely than
// the load generator's per-host/per-endpoint breakdown.
type VerifierMetrics struct {
	ResponseCount *prometheus.CounterVec
}

// NewVerifierMetrics registers the verifier's metric family on reg.
func NewVerifierMetrics(reg *Registry) *VerifierMetrics {
	return &VerifierMetrics{
		ResponseCount: reg.NewCounterVec(prometheus.CounterOpts{
			Name: "response_count",
			Help: "count of notification verification outcomes",
		}, []string{"group", "response_type"}),
	}
}
