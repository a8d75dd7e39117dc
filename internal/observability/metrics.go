// Package observability wires Prometheus instruments for the relay.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups all Prometheus instruments used by the relay.
type Metrics struct {
	InboundMessages   *prometheus.CounterVec
	RepliesSent       *prometheus.CounterVec
	ProviderErrors    *prometheus.CounterVec
	TurnsPersisted    prometheus.Counter
	CompletionLatency prometheus.Histogram
}

// NewMetrics registers and returns the relay instruments.
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		InboundMessages: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "inbound_messages_total",
			Help:      "Inbound messages by channel and kind.",
		}, []string{"channel", "kind"}),
		RepliesSent: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "replies_sent_total",
			Help:      "Replies published to channels by reply type.",
		}, []string{"channel", "type"}),
		ProviderErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_errors_total",
			Help:      "External service failures by operation.",
		}, []string{"operation"}),
		TurnsPersisted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_persisted_total",
			Help:      "Conversation turns appended to profiles.",
		}),
		CompletionLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "completion_latency_seconds",
			Help:      "End-to-end latency of completion calls.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 30, 60, 120},
		}),
	}
}

// ObserveCompletionLatency records one completion round trip.
func (m *Metrics) ObserveCompletionLatency(d time.Duration) {
	m.CompletionLatency.Observe(d.Seconds())
}

// MetricsHandler exposes the default Prometheus registry.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
