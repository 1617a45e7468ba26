package conversation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/lucasdmc/atendeai-lify-admin-sub007/internal/booking"
	"github.com/lucasdmc/atendeai-lify-admin-sub007/internal/escalation"
	"github.com/lucasdmc/atendeai-lify-admin-sub007/internal/extract"
	"github.com/lucasdmc/atendeai-lify-admin-sub007/internal/loop"
	"github.com/lucasdmc/atendeai-lify-admin-sub007/internal/observability/metrics"
	"github.com/lucasdmc/atendeai-lify-admin-sub007/pkg/logging"
)

// Engine is the conversation pipeline: load state, run the booking machine,
// guard the candidate reply with the loop detector, persist, reply.
type Engine struct {
	store      booking.Store
	machine    *booking.Machine
	extractor  *extract.Extractor
	detector   *loop.Detector
	escalator  *escalation.Supervisor
	llm        LLMClient
	transcript *TranscriptStore
	metrics    *metrics.ConversationMetrics
	clinicName string
	locks      *keyLocks
	logger     *logging.Logger
	tracer     trace.Tracer
	now        func() time.Time
}

// EngineOption configures optional collaborators.
type EngineOption func(*Engine)

// WithLLM wires the completion client used to enrich unrecognized turns.
func WithLLM(llm LLMClient) EngineOption {
	return func(e *Engine) { e.llm = llm }
}

// WithTranscript wires the message history store.
func WithTranscript(t *TranscriptStore) EngineOption {
	return func(e *Engine) { e.transcript = t }
}

// WithMetrics wires the pipeline counters.
func WithMetrics(m *metrics.ConversationMetrics) EngineOption {
	return func(e *Engine) { e.metrics = m }
}

// WithEngineClinicName sets the clinic name used in enrichment prompts.
func WithEngineClinicName(name string) EngineOption {
	return func(e *Engine) {
		if name != "" {
			e.clinicName = name
		}
	}
}

// NewEngine creates the conversation engine.
func NewEngine(store booking.Store, machine *booking.Machine, extractor *extract.Extractor, detector *loop.Detector, escalator *escalation.Supervisor, logger *logging.Logger, opts ...EngineOption) *Engine {
	if store == nil {
		panic("conversation: state store cannot be nil")
	}
	if machine == nil {
		panic("conversation: booking machine cannot be nil")
	}
	if extractor == nil {
		panic("conversation: extractor cannot be nil")
	}
	if detector == nil {
		panic("conversation: loop detector cannot be nil")
	}
	if escalator == nil {
		panic("conversation: escalation supervisor cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}

	e := &Engine{
		store:      store,
		machine:    machine,
		extractor:  extractor,
		detector:   detector,
		escalator:  escalator,
		clinicName: "nossa clínica",
		locks:      newKeyLocks(),
		logger:     logger,
		tracer:     otel.Tracer("atendeai/conversation"),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Process runs one turn. Turns for the same phone are serialized by an
// explicit per-key lock, so two webhook deliveries can never interleave
// their state writes.
func (e *Engine) Process(ctx context.Context, req InboundRequest) (Reply, error) {
	if req.From == "" {
		return Reply{}, fmt.Errorf("conversation: inbound message without sender")
	}

	ctx, span := e.tracer.Start(ctx, "conversation.process",
		trace.WithAttributes(attribute.String("conversation.phone", req.From)),
	)
	defer span.End()

	unlock := e.locks.lock(req.From)
	defer unlock()

	conv, err := e.store.Load(ctx, req.From)
	if err != nil {
		span.RecordError(err)
		e.logger.Error("state load failed", "phone", req.From, "error", err)
		return Reply{To: req.From, Message: apologyReply}, nil
	}
	if conv == nil {
		conv = booking.NewConversation(req.From)
	}
	conv.Touch(e.now())

	e.appendTranscript(ctx, req.From, "user", req.Text)
	e.metrics.ObserveTurn(string(conv.Current))

	// Escalated conversations stay silent except for the fixed handoff
	// reply, until an operator clears the state out-of-band.
	if conv.Escalated {
		e.save(ctx, conv)
		return e.reply(ctx, req.From, escalation.HandoffMessage), nil
	}

	fields := e.extractor.Extract(req.Text)

	if reason, ok := e.escalator.Immediate(req.Text, fields, conv.ConsecutiveRepeats); ok {
		return e.escalate(ctx, conv, reason, req.Text), nil
	}

	turn := e.machine.Handle(ctx, conv, req.Text, fields)
	if turn.Escalate {
		return e.escalate(ctx, conv, escalation.Reason(turn.EscalateReason), req.Text), nil
	}

	candidate := turn.Reply
	if turn.Unrecognized && e.llm != nil {
		if enriched, err := e.llm.Complete(ctx, systemPrompt(e.clinicName), req.Text); err == nil && enriched != "" {
			candidate = enriched
		} else if err != nil {
			e.logger.Warn("llm enrichment failed, keeping scripted reply",
				"phone", req.From,
				"error", err,
			)
		}
	}

	verdict := e.detector.Inspect(conv.LastBotMessage, candidate, conv.ConsecutiveRepeats, conv.LoopCount)
	conv.ConsecutiveRepeats = verdict.ConsecutiveRepeats
	conv.LoopCount = verdict.LoopCount
	if verdict.ShouldEscalate {
		return e.escalate(ctx, conv, escalation.ReasonLoop, req.Text), nil
	}
	if verdict.Reworded {
		e.metrics.ObserveLoopVariant()
	}

	conv.LastBotMessage = verdict.Message

	if turn.Completed {
		e.metrics.ObserveBookingCompleted()
		if err := e.store.Delete(ctx, conv.Phone); err != nil {
			e.logger.Error("state clear failed", "phone", conv.Phone, "error", err)
		}
	} else {
		e.save(ctx, conv)
	}

	return e.reply(ctx, req.From, verdict.Message), nil
}

// ClearEscalation is the operator action that releases an escalated
// conversation: the state is dropped entirely and the next message starts
// fresh.
func (e *Engine) ClearEscalation(ctx context.Context, phone string) error {
	unlock := e.locks.lock(phone)
	defer unlock()

	if err := e.store.Delete(ctx, phone); err != nil {
		return err
	}
	e.logger.Info("escalation cleared", "phone", phone)
	return nil
}

func (e *Engine) escalate(ctx context.Context, conv *booking.Conversation, reason escalation.Reason, lastMessage string) Reply {
	conv.Escalate(string(reason))
	e.escalator.Escalate(ctx, conv.Phone, reason, lastMessage)
	e.metrics.ObserveEscalation(string(reason))
	e.save(ctx, conv)
	return e.reply(ctx, conv.Phone, escalation.HandoffMessage)
}

func (e *Engine) save(ctx context.Context, conv *booking.Conversation) {
	if err := e.store.Save(ctx, conv); err != nil {
		e.logger.Error("state save failed", "phone", conv.Phone, "error", err)
	}
}

func (e *Engine) reply(ctx context.Context, phone, message string) Reply {
	e.appendTranscript(ctx, phone, "assistant", message)
	return Reply{To: phone, Message: message}
}

func (e *Engine) appendTranscript(ctx context.Context, phone, role, body string) {
	if e.transcript == nil {
		return
	}
	if err := e.transcript.Append(ctx, phone, role, body); err != nil {
		e.logger.Warn("transcript append failed", "phone", phone, "error", err)
	}
}

const apologyReply = "Desculpe, tive um problema por aqui. 😕 Pode tentar novamente em instantes?"

// keyLocks serializes processing per phone number.
type keyLocks struct {
	mu    sync.Mutex
	locks map[string]*phoneLock
}

type phoneLock struct {
	mu   sync.Mutex
	refs int
}

func newKeyLocks() *keyLocks {
	return &keyLocks{locks: make(map[string]*phoneLock)}
}

func (k *keyLocks) lock(phone string) func() {
	k.mu.Lock()
	l, ok := k.locks[phone]
	if !ok {
		l = &phoneLock{}
		k.locks[phone] = l
	}
	l.refs++
	k.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, phone)
		}
		k.mu.Unlock()
	}
}
