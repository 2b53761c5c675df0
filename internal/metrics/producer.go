package metrics

import "github.com/prometheus/client_golang/prometheus"

// ProducerMetrics exposes the experiment producer's single metric family:
// event_count{key, topic}.
type ProducerMetrics struct {
	EventCount *prometheus.CounterVec
}

// NewProducerMetrics registers the producer's metric family on reg.
func NewProducerMetrics(reg *Registry) *ProducerMetrics {
	return &ProducerMetrics{
		EventCount: reg.NewCounterVec(prometheus.CounterOpts{
			Name: "event_count",
			Help: "count of events produced",
		}, []string{"key", "topic"}),
	}
}
