package metrics

import "github.com/prometheus/client_golang/prometheus"

// LoadGenMetrics exposes the load generator's metric families:
// response_count{host_name, endpoint, response_type}, response_rtt_histogram,
// target_request_rate{host_name}, effective_request_rate{host_name}.
type LoadGenMetrics struct {
	ResponseCount        *prometheus.CounterVec
	ResponseRTT          *prometheus.HistogramVec
	TargetRequestRate    *prometheus.GaugeVec
	EffectiveRequestRate *prometheus.GaugeVec
}

// rttBuckets are the pre-bucketed histogram boundaries, in seconds: 5ms, 10,
// 25, 50, 100, 250, 500ms, 1, 2.5, 5, 10s.
var rttBuckets = []float64{
	0.005, 0.010, 0.025, 0.050, 0.100, 0.250, 0.500, 1, 2.5, 5, 10,
}

// NewLoadGenMetrics registers the load generator's metric families on reg.
func NewLoadGenMetrics(reg *Registry) *LoadGenMetrics {
	return &LoadGenMetrics{
		ResponseCount: reg.NewCounterVec(prometheus.CounterOpts{
			Name: "response_count",
			Help: "count of load-generator responses by outcome",
		}, []string{"host_name", "endpoint", "response_type"}),
		ResponseRTT: reg.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "response_rtt_histogram",
			Help:    "round-trip latency of successfully validated responses",
			Buckets: rttBuckets,
		}, []string{"host_name", "endpoint"}),
		TargetRequestRate: reg.NewGaugeVec(prometheus.GaugeOpts{
			Name: "target_request_rate",
			Help: "configured per-second request rate for a dispatcher",
		}, []string{"host_name"}),
		EffectiveRequestRate: reg.NewGaugeVec(prometheus.GaugeOpts{
			Name: "effective_request_rate",
			Help: "measured per-second request rate for a dispatcher",
		}, []string{"host_name"}),
	}
}
