package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Message directions
const (
	DirectionIn  = "in"
	DirectionOut = "out"
)

var (
	registerOnce sync.Once

	messages = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "webchannel",
			Name:      "messages_total",
			Help:      "Wire messages sent and received.",
		},
		[]string{"direction", "type"},
	)
	violations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "webchannel",
			Name:      "protocol_violations_total",
			Help:      "Inbound messages dropped as protocol violations.",
		},
		[]string{"kind"},
	)
	pendingCalls = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "webchannel",
			Name:      "pending_calls",
			Help:      "Calls waiting for a response.",
		},
	)
)

// RegisterMetrics registers the collectors with the default registry. It is
// safe to call more than once.
func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(messages, violations, pendingCalls)
	})
}

// RecordMessage counts one message in the given direction.
func RecordMessage(direction, msgType string) {
	RegisterMetrics()
	messages.WithLabelValues(direction, msgType).Inc()
}

// RecordViolation counts one dropped inbound message.
func RecordViolation(kind string) {
	RegisterMetrics()
	violations.WithLabelValues(kind).Inc()
}

// AddPendingCalls moves the pending call gauge by delta.
func AddPendingCalls(delta int) {
	RegisterMetrics()
	pendingCalls.Add(float64(delta))
}
