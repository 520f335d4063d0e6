package messaging

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusCollector implements MetricsCollector on a Prometheus registry.
type PrometheusCollector struct {
	publishes *prometheus.CounterVec
	consumes  *prometheus.CounterVec
	latency   *prometheus.HistogramVec
}

// NewPrometheusCollector registers the messaging metrics on the given
// registerer and returns the collector.
func NewPrometheusCollector(reg prometheus.Registerer) *PrometheusCollector {
	factory := promauto.With(reg)

	return &PrometheusCollector{
		publishes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "intake",
			Subsystem: "messaging",
			Name:      "publishes_total",
			Help:      "Events published, by event type, exchange, and outcome.",
		}, []string{"event_type", "exchange", "outcome"}),
		consumes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "intake",
			Subsystem: "messaging",
			Name:      "consumes_total",
			Help:      "Deliveries handled, by event type, queue, and outcome.",
		}, []string{"event_type", "queue", "outcome"}),
		latency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "intake",
			Subsystem: "messaging",
			Name:      "operation_seconds",
			Help:      "Publish and handle latency in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
	}
}

// RecordPublish implements MetricsCollector.
func (p *PrometheusCollector) RecordPublish(eventType, exchange string, duration time.Duration, success bool) {
	p.publishes.WithLabelValues(eventType, exchange, outcome(success)).Inc()
	p.latency.WithLabelValues("publish").Observe(duration.Seconds())
}

// RecordConsume implements MetricsCollector.
func (p *PrometheusCollector) RecordConsume(eventType, queue string, duration time.Duration, success bool) {
	p.consumes.WithLabelValues(eventType, queue, outcome(success)).Inc()
	p.latency.WithLabelValues("consume").Observe(duration.Seconds())
}

func outcome(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}
