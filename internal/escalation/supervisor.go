// Package escalation hands conversations off to humans. The flag is
// monotonic: once a conversation escalates, only an explicit operator action
// clears it.
package escalation

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/lucasdmc/atendeai-lify-admin-sub007/internal/extract"
	"github.com/lucasdmc/atendeai-lify-admin-sub007/pkg/logging"
)

// Reason says why a conversation was escalated.
type Reason string

const (
	ReasonLoop                  Reason = "loop_detected"
	ReasonHumanRequest          Reason = "human_requested"
	ReasonFrustration           Reason = "frustration_with_repetition"
	ReasonConfirmationExhausted Reason = "confirmation_exhausted"
	ReasonCollaboratorFailure   Reason = "collaborator_failure"
)

// HandoffMessage is the fixed reply every inbound message gets once a
// conversation is escalated.
const HandoffMessage = "Entendi! Estou transferindo você para um de nossos atendentes. " +
	"Em breve alguém da equipe continuará a conversa por aqui. 😊"

// Event describes one escalation for operator notification.
type Event struct {
	Phone       string    `json:"phone"`
	Reason      Reason    `json:"reason"`
	LastMessage string    `json:"last_message"`
	At          time.Time `json:"at"`
}

// Notifier fans an escalation out to the operator channels.
type Notifier interface {
	NotifyEscalation(ctx context.Context, ev Event) error
}

// Supervisor decides when a conversation must leave the automated flow and
// notifies operators when it does.
type Supervisor struct {
	notifier Notifier
	logger   *logging.Logger
	tracer   trace.Tracer
	now      func() time.Time
}

// NewSupervisor creates an escalation supervisor. notifier may be nil; the
// handoff then happens silently (flag set, no outbound alert).
func NewSupervisor(notifier Notifier, logger *logging.Logger) *Supervisor {
	if logger == nil {
		logger = logging.Default()
	}
	return &Supervisor{
		notifier: notifier,
		logger:   logger,
		tracer:   otel.Tracer("atendeai/escalation"),
		now:      time.Now,
	}
}

// Immediate reports whether the inbound message alone warrants escalation,
// bypassing the loop counters: an explicit human request, or frustration
// co-occurring with repetition.
func (s *Supervisor) Immediate(message string, fields extract.Fields, consecutiveRepeats int) (Reason, bool) {
	if fields.Intent == extract.IntentHuman || extract.IsHumanRequest(message) {
		return ReasonHumanRequest, true
	}
	if fields.Frustrated && consecutiveRepeats >= 1 {
		return ReasonFrustration, true
	}
	return "", false
}

// Escalate records the handoff and alerts operators. Notification failure is
// logged and swallowed; the escalation flag itself is the caller's to persist
// and must not depend on the alert going out.
func (s *Supervisor) Escalate(ctx context.Context, phone string, reason Reason, lastMessage string) {
	ctx, span := s.tracer.Start(ctx, "escalation.escalate",
		trace.WithAttributes(attribute.String("escalation.reason", string(reason))),
	)
	defer span.End()

	s.logger.Warn("conversation escalated",
		"phone", phone,
		"reason", string(reason),
	)

	if s.notifier == nil {
		return
	}
	ev := Event{
		Phone:       phone,
		Reason:      reason,
		LastMessage: lastMessage,
		At:          s.now(),
	}
	if err := s.notifier.NotifyEscalation(ctx, ev); err != nil {
		span.RecordError(err)
		s.logger.Error("failed to notify operators of escalation",
			"phone", phone,
			"error", err,
		)
	}
}
