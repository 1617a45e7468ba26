package conversation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lucasdmc/atendeai-lify-admin-sub007/internal/availability"
	"github.com/lucasdmc/atendeai-lify-admin-sub007/internal/booking"
	"github.com/lucasdmc/atendeai-lify-admin-sub007/internal/confirm"
	"github.com/lucasdmc/atendeai-lify-admin-sub007/internal/escalation"
	"github.com/lucasdmc/atendeai-lify-admin-sub007/internal/extract"
	"github.com/lucasdmc/atendeai-lify-admin-sub007/internal/loop"
	"github.com/lucasdmc/atendeai-lify-admin-sub007/internal/validate"
)

// fixedNow is Tuesday 2026-03-10 09:00.
var fixedNow = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

func clock() time.Time { return fixedNow }

type stubRules struct{ rules []availability.Rule }

func (s stubRules) Rules(context.Context, string) ([]availability.Rule, error) {
	return s.rules, nil
}

func (s stubRules) Exceptions(context.Context, string, time.Time, time.Time) ([]availability.Exception, error) {
	return nil, nil
}

type stubCalendar struct {
	created int
	err     error
}

func (c *stubCalendar) Create(context.Context, booking.Appointment) (string, error) {
	if c.err != nil {
		return "", c.err
	}
	c.created++
	return "evt-123", nil
}

type capturedNotifier struct {
	events []escalation.Event
}

func (n *capturedNotifier) NotifyEscalation(_ context.Context, ev escalation.Event) error {
	n.events = append(n.events, ev)
	return nil
}

type stubLLM struct {
	reply string
	err   error
	calls int
}

func (l *stubLLM) Complete(context.Context, string, string) (string, error) {
	l.calls++
	if l.err != nil {
		return "", l.err
	}
	return l.reply, nil
}

func weekdayRules() []availability.Rule {
	var rules []availability.Rule
	for wd := time.Monday; wd <= time.Friday; wd++ {
		rules = append(rules, availability.Rule{
			Weekday:      wd,
			StartTime:    "09:00",
			EndTime:      "18:00",
			SlotDuration: 30,
			IsActive:     true,
		})
	}
	return rules
}

type engineFixture struct {
	engine   *Engine
	store    *booking.MemoryStore
	notifier *capturedNotifier
	calendar *stubCalendar
}

func newEngineFixture(t *testing.T, opts ...EngineOption) *engineFixture {
	t.Helper()

	rules := weekdayRules()
	avail := availability.NewEngine(stubRules{rules: rules}, nil, nil).WithClock(clock)
	extractor := extract.New(nil).WithClock(clock)
	validator := validate.New(
		availability.WorkingHours(rules),
		availability.OpenWeekdays(rules),
	).WithClock(clock)
	calendar := &stubCalendar{}

	machine := booking.NewMachine(avail, extractor, validator, confirm.NewSupervisor(3, nil), nil,
		booking.WithCalendar(calendar),
		booking.WithClinicName("Clínica Vida"),
		booking.WithMachineClock(clock),
	)

	store := booking.NewMemoryStore()
	notifier := &capturedNotifier{}
	escalator := escalation.NewSupervisor(notifier, nil)

	engine := NewEngine(store, machine, extractor, loop.NewDetector(nil), escalator, nil, opts...)
	return &engineFixture{engine: engine, store: store, notifier: notifier, calendar: calendar}
}

func (f *engineFixture) process(t *testing.T, phone, text string) Reply {
	t.Helper()
	reply, err := f.engine.Process(context.Background(), InboundRequest{From: phone, Text: text})
	require.NoError(t, err)
	return reply
}

func TestProcessRequiresSender(t *testing.T) {
	f := newEngineFixture(t)

	_, err := f.engine.Process(context.Background(), InboundRequest{Text: "oi"})
	require.Error(t, err)
}

func TestProcessGreetingSavesState(t *testing.T) {
	f := newEngineFixture(t)

	reply := f.process(t, "5511999990000", "olá, bom dia")

	assert.Equal(t, "5511999990000", reply.To)
	assert.Contains(t, reply.Message, "Clínica Vida")

	conv, err := f.store.Load(context.Background(), "5511999990000")
	require.NoError(t, err)
	require.NotNil(t, conv)
	assert.Equal(t, booking.StateInitial, conv.Current)
	assert.Equal(t, reply.Message, conv.LastBotMessage)
}

func TestProcessHumanRequestEscalates(t *testing.T) {
	f := newEngineFixture(t)

	reply := f.process(t, "5511999990000", "quero falar com um atendente, por favor")

	assert.Equal(t, escalation.HandoffMessage, reply.Message)

	conv, err := f.store.Load(context.Background(), "5511999990000")
	require.NoError(t, err)
	require.NotNil(t, conv)
	assert.True(t, conv.Escalated)
	assert.Equal(t, booking.StateEscalated, conv.Current)

	require.Len(t, f.notifier.events, 1)
	assert.Equal(t, escalation.ReasonHumanRequest, f.notifier.events[0].Reason)
}

func TestProcessEscalatedConversationShortCircuits(t *testing.T) {
	f := newEngineFixture(t)

	f.process(t, "5511999990000", "quero falar com um atendente")
	require.Len(t, f.notifier.events, 1)

	reply := f.process(t, "5511999990000", "quero agendar cardiologia para amanhã às 14h")

	assert.Equal(t, escalation.HandoffMessage, reply.Message)
	assert.Len(t, f.notifier.events, 1, "escalation must not fire again")

	conv, err := f.store.Load(context.Background(), "5511999990000")
	require.NoError(t, err)
	require.NotNil(t, conv)
	assert.Equal(t, booking.StateEscalated, conv.Current)
}

func TestProcessCompletedBookingClearsState(t *testing.T) {
	f := newEngineFixture(t)
	phone := "5511999990000"

	f.process(t, phone, "quero agendar cardiologia para amanhã às 14h")
	f.process(t, phone, "meu nome é João Silva, joao.silva@gmail.com")
	reply := f.process(t, phone, "sim")

	assert.Contains(t, reply.Message, "agendada")
	assert.Equal(t, 1, f.calendar.created)

	conv, err := f.store.Load(context.Background(), phone)
	require.NoError(t, err)
	assert.Nil(t, conv, "completed conversations start fresh on the next message")
}

func TestProcessUnrecognizedUsesLLM(t *testing.T) {
	llm := &stubLLM{reply: "Claro! Posso tirar dúvidas ou ajudar com seu agendamento."}
	f := newEngineFixture(t, WithLLM(llm))

	reply := f.process(t, "5511999990000", "vocês gostam de futebol?")

	assert.Equal(t, llm.reply, reply.Message)
	assert.Equal(t, 1, llm.calls)

	conv, err := f.store.Load(context.Background(), "5511999990000")
	require.NoError(t, err)
	require.NotNil(t, conv)
	assert.Equal(t, booking.StateInitial, conv.Current, "enrichment never advances the dialogue")
}

func TestProcessLLMFailureKeepsScriptedReply(t *testing.T) {
	llm := &stubLLM{err: errors.New("quota exceeded")}
	f := newEngineFixture(t, WithLLM(llm))

	reply := f.process(t, "5511999990000", "vocês gostam de futebol?")

	assert.Equal(t, 1, llm.calls)
	assert.NotEmpty(t, reply.Message)
	assert.Contains(t, reply.Message, "agendar")
}

func TestProcessRepeatedRepliesEventuallyEscalate(t *testing.T) {
	f := newEngineFixture(t)
	phone := "5511999990000"

	var last Reply
	for i := 0; i < 8; i++ {
		last = f.process(t, phone, "???")
		if last.Message == escalation.HandoffMessage {
			break
		}
	}

	require.Equal(t, escalation.HandoffMessage, last.Message)
	require.Len(t, f.notifier.events, 1)
	assert.Equal(t, escalation.ReasonLoop, f.notifier.events[0].Reason)

	conv, err := f.store.Load(context.Background(), phone)
	require.NoError(t, err)
	require.NotNil(t, conv)
	assert.True(t, conv.Escalated)
}

func TestClearEscalationReleasesConversation(t *testing.T) {
	f := newEngineFixture(t)
	phone := "5511999990000"

	f.process(t, phone, "quero falar com um atendente")

	require.NoError(t, f.engine.ClearEscalation(context.Background(), phone))

	conv, err := f.store.Load(context.Background(), phone)
	require.NoError(t, err)
	assert.Nil(t, conv)

	reply := f.process(t, phone, "olá")
	assert.NotEqual(t, escalation.HandoffMessage, reply.Message)
}
