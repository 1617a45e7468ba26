package approval

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/lucasdmc/atendeai-lify-admin-sub007/internal/observability/metrics"
	"github.com/lucasdmc/atendeai-lify-admin-sub007/pkg/logging"
)

// Notifier alerts operators that a request is waiting for review.
type Notifier interface {
	NotifyApproval(ctx context.Context, req Request) error
}

// Messenger sends the decision outcome back to the patient.
type Messenger interface {
	Send(ctx context.Context, to, message string) error
}

// Mutator applies an approved request against the clinic agenda.
type Mutator interface {
	Apply(ctx context.Context, req Request) error
}

// Service files requests from the bot flow and executes operator decisions.
type Service struct {
	store     *Store
	notifier  Notifier
	messenger Messenger
	mutator   Mutator
	logger    *logging.Logger
	tracer    trace.Tracer
	metrics   *metrics.ConversationMetrics
}

// ServiceOption configures optional collaborators.
type ServiceOption func(*Service)

// WithNotifier wires the operator notification channel.
func WithNotifier(n Notifier) ServiceOption {
	return func(s *Service) { s.notifier = n }
}

// WithMessenger wires the patient-facing outbound channel.
func WithMessenger(m Messenger) ServiceOption {
	return func(s *Service) { s.messenger = m }
}

// WithMutator wires the agenda mutation executor.
func WithMutator(m Mutator) ServiceOption {
	return func(s *Service) { s.mutator = m }
}

// WithMetrics wires the request counters.
func WithMetrics(m *metrics.ConversationMetrics) ServiceOption {
	return func(s *Service) { s.metrics = m }
}

// NewService creates the approval service.
func NewService(store *Store, logger *logging.Logger, opts ...ServiceOption) *Service {
	if store == nil {
		panic("approval: store cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	s := &Service{
		store:  store,
		logger: logger,
		tracer: otel.Tracer("atendeai/approval"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Submit files a pending request and fans the alert out to operators.
// Notification failure does not fail the submission.
func (s *Service) Submit(ctx context.Context, phone, kind, details string) error {
	ctx, span := s.tracer.Start(ctx, "approval.submit",
		trace.WithAttributes(attribute.String("approval.kind", kind)),
	)
	defer span.End()

	if !ValidKind(kind) {
		return fmt.Errorf("approval: unknown request kind %q", kind)
	}

	req, err := s.store.Create(ctx, phone, Kind(kind), details)
	if err != nil {
		span.RecordError(err)
		return err
	}

	s.logger.Info("approval request filed",
		"id", req.ID,
		"phone", req.Phone,
		"kind", string(req.Kind),
	)
	s.metrics.ObserveApproval(string(req.Kind), string(req.Status))

	if s.notifier != nil {
		if err := s.notifier.NotifyApproval(ctx, req); err != nil {
			span.RecordError(err)
			s.logger.Error("failed to notify operators of approval request",
				"id", req.ID,
				"error", err,
			)
		}
	}
	return nil
}

// Pending lists the requests waiting for review.
func (s *Service) Pending(ctx context.Context) ([]Request, error) {
	return s.store.ListPending(ctx)
}

// Decide executes an operator decision: the request transitions to approved
// or rejected, an approved mutation is applied against the agenda, and the
// patient is told the outcome on the original phone number.
func (s *Service) Decide(ctx context.Context, id string, approve bool, decidedBy string) (Request, error) {
	ctx, span := s.tracer.Start(ctx, "approval.decide",
		trace.WithAttributes(attribute.Bool("approval.approved", approve)),
	)
	defer span.End()

	status := StatusRejected
	if approve {
		status = StatusApproved
	}

	req, err := s.store.Decide(ctx, id, status, decidedBy)
	if err != nil {
		span.RecordError(err)
		return req, err
	}
	s.metrics.ObserveApproval(string(req.Kind), string(req.Status))

	if approve && s.mutator != nil {
		if err := s.mutator.Apply(ctx, req); err != nil {
			// The decision stands; operators reconcile the agenda by hand
			// from this log line.
			span.RecordError(err)
			s.logger.Error("approved mutation failed",
				"id", req.ID,
				"kind", string(req.Kind),
				"error", err,
			)
		}
	}

	if s.messenger != nil {
		if err := s.messenger.Send(ctx, req.Phone, outcomeMessage(req)); err != nil {
			span.RecordError(err)
			s.logger.Error("failed to send decision outcome",
				"id", req.ID,
				"error", err,
			)
		}
	}
	return req, nil
}

func outcomeMessage(req Request) string {
	action := "cancelamento"
	switch req.Kind {
	case KindReschedule:
		action = "reagendamento"
	case KindNewAppointment:
		action = "agendamento"
	}

	if req.Status == StatusApproved {
		return fmt.Sprintf("Boa notícia! ✅ Seu pedido de %s foi aprovado pela nossa equipe.", action)
	}
	return fmt.Sprintf("Seu pedido de %s não pôde ser aprovado. 😕 Entre em contato com a clínica para mais detalhes.", action)
}
