package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestConversationMetricsObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewConversationMetrics(reg)
	m.ObserveTurn("initial")
	m.ObserveLoopVariant()
	m.ObserveEscalation("loop_detected")
	m.ObserveBookingCompleted()
	m.ObserveApproval("cancel", "approved")
	m.ObserveOutbound("sent")
}

func TestConversationMetricsNilSafe(t *testing.T) {
	var m *ConversationMetrics
	m.ObserveTurn("initial")
	m.ObserveLoopVariant()
	m.ObserveEscalation("loop_detected")
	m.ObserveBookingCompleted()
	m.ObserveApproval("cancel", "rejected")
	m.ObserveOutbound("failed")
}
