package metrics

import "github.com/prometheus/client_golang/prometheus"

// ConversationMetrics exposes counters for the conversation pipeline.
type ConversationMetrics struct {
	turnsTotal        *prometheus.CounterVec
	loopVariantsTotal prometheus.Counter
	escalationsTotal  *prometheus.CounterVec
	bookingsTotal     prometheus.Counter
	approvalsTotal    *prometheus.CounterVec
	outboundTotal     *prometheus.CounterVec
}

func NewConversationMetrics(reg prometheus.Registerer) *ConversationMetrics {
	m := &ConversationMetrics{
		turnsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "atendeai",
			Subsystem: "conversation",
			Name:      "turns_total",
			Help:      "Total processed conversation turns by dialogue state",
		}, []string{"state"}),
		loopVariantsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "atendeai",
			Subsystem: "conversation",
			Name:      "loop_variants_total",
			Help:      "Total repeated replies replaced with a variant phrasing",
		}),
		escalationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "atendeai",
			Subsystem: "conversation",
			Name:      "escalations_total",
			Help:      "Total conversations handed off to a human",
		}, []string{"reason"}),
		bookingsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "atendeai",
			Subsystem: "conversation",
			Name:      "bookings_completed_total",
			Help:      "Total bookings confirmed through the bot",
		}),
		approvalsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "atendeai",
			Subsystem: "approval",
			Name:      "requests_total",
			Help:      "Total approval requests by kind and final status",
		}, []string{"kind", "status"}),
		outboundTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "atendeai",
			Subsystem: "whatsapp",
			Name:      "outbound_total",
			Help:      "Total outbound sends by delivery status",
		}, []string{"status"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(
		m.turnsTotal, m.loopVariantsTotal, m.escalationsTotal,
		m.bookingsTotal, m.approvalsTotal, m.outboundTotal,
	)
	return m
}

func (m *ConversationMetrics) ObserveTurn(state string) {
	if m == nil {
		return
	}
	m.turnsTotal.WithLabelValues(state).Inc()
}

func (m *ConversationMetrics) ObserveLoopVariant() {
	if m == nil {
		return
	}
	m.loopVariantsTotal.Inc()
}

func (m *ConversationMetrics) ObserveEscalation(reason string) {
	if m == nil {
		return
	}
	m.escalationsTotal.WithLabelValues(reason).Inc()
}

func (m *ConversationMetrics) ObserveBookingCompleted() {
	if m == nil {
		return
	}
	m.bookingsTotal.Inc()
}

func (m *ConversationMetrics) ObserveApproval(kind, status string) {
	if m == nil {
		return
	}
	m.approvalsTotal.WithLabelValues(kind, status).Inc()
}

func (m *ConversationMetrics) ObserveOutbound(status string) {
	if m == nil {
		return
	}
	m.outboundTotal.WithLabelValues(status).Inc()
}
