// Package notify fans operator alerts out to email and WhatsApp. It sits on
// the far side of the pipeline: failures here never block a conversation turn
// or an approval decision.
package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/lucasdmc/atendeai-lify-admin-sub007/internal/approval"
	"github.com/lucasdmc/atendeai-lify-admin-sub007/internal/escalation"
	"github.com/lucasdmc/atendeai-lify-admin-sub007/pkg/logging"
)

// Messenger sends one WhatsApp message to an operator.
type Messenger interface {
	Send(ctx context.Context, to, message string) error
}

// Config lists the operator destinations.
type Config struct {
	ClinicName     string
	OperatorEmails []string
	OperatorPhones []string
}

// Service implements the escalation and approval notifier interfaces.
type Service struct {
	email     EmailSender
	messenger Messenger
	cfg       Config
	logger    *logging.Logger
}

// NewService creates the operator notification service. email and messenger
// may each be nil; the corresponding channel is then skipped.
func NewService(email EmailSender, messenger Messenger, cfg Config, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.ClinicName == "" {
		cfg.ClinicName = "AtendeAI"
	}
	return &Service{
		email:     email,
		messenger: messenger,
		cfg:       cfg,
		logger:    logger,
	}
}

// NotifyEscalation alerts every configured operator that a conversation needs
// a human. Partial failures are joined so the caller sees every channel that
// misfired.
func (s *Service) NotifyEscalation(ctx context.Context, ev escalation.Event) error {
	subject := fmt.Sprintf("[%s] Conversa escalada: %s", s.cfg.ClinicName, ev.Phone)
	body := fmt.Sprintf(
		"Uma conversa precisa de atendimento humano.\n\nTelefone: %s\nMotivo: %s\nÚltima mensagem: %s\nQuando: %s",
		ev.Phone,
		reasonLabel(ev.Reason),
		ev.LastMessage,
		ev.At.Format("02/01/2006 15:04"),
	)
	whatsapp := fmt.Sprintf(
		"🚨 Conversa escalada!\nTelefone: %s\nMotivo: %s\nÚltima mensagem: %q",
		ev.Phone,
		reasonLabel(ev.Reason),
		ev.LastMessage,
	)
	return s.fanOut(ctx, subject, body, whatsapp)
}

// NotifyApproval alerts operators that a request is waiting for review.
func (s *Service) NotifyApproval(ctx context.Context, req approval.Request) error {
	subject := fmt.Sprintf("[%s] Pedido de %s aguardando aprovação", s.cfg.ClinicName, kindLabel(req.Kind))
	body := fmt.Sprintf(
		"Um paciente abriu um pedido que precisa de revisão.\n\nID: %s\nTelefone: %s\nTipo: %s\nDetalhes: %s",
		req.ID,
		req.Phone,
		kindLabel(req.Kind),
		req.Details,
	)
	whatsapp := fmt.Sprintf(
		"📨 Pedido de %s aguardando aprovação.\nTelefone: %s\nID: %s",
		kindLabel(req.Kind),
		req.Phone,
		req.ID,
	)
	return s.fanOut(ctx, subject, body, whatsapp)
}

func (s *Service) fanOut(ctx context.Context, subject, body, whatsapp string) error {
	var errs []error

	if s.email != nil {
		for _, to := range s.cfg.OperatorEmails {
			to = strings.TrimSpace(to)
			if to == "" {
				continue
			}
			if err := s.email.Send(ctx, EmailMessage{To: to, Subject: subject, Body: body}); err != nil {
				errs = append(errs, fmt.Errorf("notify: email to %s: %w", to, err))
			}
		}
	}

	if s.messenger != nil {
		for _, to := range s.cfg.OperatorPhones {
			to = strings.TrimSpace(to)
			if to == "" {
				continue
			}
			if err := s.messenger.Send(ctx, to, whatsapp); err != nil {
				errs = append(errs, fmt.Errorf("notify: whatsapp to %s: %w", to, err))
			}
		}
	}

	if len(errs) > 0 {
		s.logger.Error("operator notification partially failed", "failed_channels", len(errs))
	}
	return errors.Join(errs...)
}

func reasonLabel(reason escalation.Reason) string {
	switch reason {
	case escalation.ReasonLoop:
		return "conversa em loop"
	case escalation.ReasonHumanRequest:
		return "paciente pediu atendimento humano"
	case escalation.ReasonFrustration:
		return "paciente frustrado com repetições"
	case escalation.ReasonConfirmationExhausted:
		return "não foi possível confirmar os dados"
	case escalation.ReasonCollaboratorFailure:
		return "falha interna no atendimento"
	}
	return string(reason)
}

func kindLabel(kind approval.Kind) string {
	switch kind {
	case approval.KindCancel:
		return "cancelamento"
	case approval.KindReschedule:
		return "reagendamento"
	case approval.KindNewAppointment:
		return "agendamento"
	}
	return string(kind)
}
