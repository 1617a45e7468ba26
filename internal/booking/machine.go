package booking

import (
	"context"
	"regexp"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/lucasdmc/atendeai-lify-admin-sub007/internal/availability"
	"github.com/lucasdmc/atendeai-lify-admin-sub007/internal/confirm"
	"github.com/lucasdmc/atendeai-lify-admin-sub007/internal/extract"
	"github.com/lucasdmc/atendeai-lify-admin-sub007/internal/validate"
	"github.com/lucasdmc/atendeai-lify-admin-sub007/pkg/logging"
)

// Appointment is the payload sent to the calendar collaborator when a
// booking is confirmed.
type Appointment struct {
	Title        string
	Date         string // "2006-01-02"
	StartTime    string // "HH:MM"
	EndTime      string // "HH:MM"
	PatientEmail string
	Location     string
}

// Calendar mutates the clinic agenda. Implemented by the calendar client.
type Calendar interface {
	Create(ctx context.Context, appt Appointment) (eventID string, err error)
}

// ApprovalSubmitter files cancel/reschedule requests for human review.
type ApprovalSubmitter interface {
	Submit(ctx context.Context, phone, kind, details string) error
}

// Turn is the outcome of feeding one inbound message into the machine.
type Turn struct {
	Reply string
	// Completed: the booking finished; the conversation state should be
	// cleared instead of saved.
	Completed bool
	// Escalate: the machine gave up (confirmation budget exhausted); the
	// caller runs the escalation supervisor with this reason.
	Escalate       bool
	EscalateReason string
	// Unrecognized: the reply is a help prompt for input the machine could
	// not act on; the caller may enrich it via the AI completion path.
	Unrecognized bool
}

const defaultSlotLimit = 12

// bareNamePattern matches a plain name reply ("João Silva") sent without an
// introduction phrase such as "meu nome é".
var bareNamePattern = regexp.MustCompile(`^[\p{L}][\p{L} '\-.]{1,60}$`)

// Machine drives the booking dialogue. It owns every mutation of the
// Conversation it is handed; callers only persist the result.
type Machine struct {
	engine     *availability.Engine
	extractor  *extract.Extractor
	validator  *validate.Validator
	confirmer  *confirm.Supervisor
	calendar   Calendar
	approvals  ApprovalSubmitter
	clinicName string
	slotLimit  int
	logger     *logging.Logger
	tracer     trace.Tracer
	now        func() time.Time
}

// MachineOption configures optional collaborators.
type MachineOption func(*Machine)

// WithCalendar wires the appointment mutation collaborator.
func WithCalendar(c Calendar) MachineOption {
	return func(m *Machine) { m.calendar = c }
}

// WithApprovals wires the cancel/reschedule approval collaborator.
func WithApprovals(a ApprovalSubmitter) MachineOption {
	return func(m *Machine) { m.approvals = a }
}

// WithClinicName sets the name used in the greeting.
func WithClinicName(name string) MachineOption {
	return func(m *Machine) {
		if name != "" {
			m.clinicName = name
		}
	}
}

// WithSlotLimit caps how many slots the menu offers.
func WithSlotLimit(n int) MachineOption {
	return func(m *Machine) {
		if n > 0 {
			m.slotLimit = n
		}
	}
}

// WithMachineClock overrides the machine clock. Test hook.
func WithMachineClock(now func() time.Time) MachineOption {
	return func(m *Machine) {
		if now != nil {
			m.now = now
		}
	}
}

// NewMachine creates the booking state machine.
func NewMachine(engine *availability.Engine, extractor *extract.Extractor, validator *validate.Validator, confirmer *confirm.Supervisor, logger *logging.Logger, opts ...MachineOption) *Machine {
	if engine == nil {
		panic("booking: availability engine cannot be nil")
	}
	if extractor == nil {
		panic("booking: extractor cannot be nil")
	}
	if validator == nil {
		panic("booking: validator cannot be nil")
	}
	if confirmer == nil {
		panic("booking: confirmation supervisor cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}

	m := &Machine{
		engine:     engine,
		extractor:  extractor,
		validator:  validator,
		confirmer:  confirmer,
		clinicName: "nossa clínica",
		slotLimit:  defaultSlotLimit,
		logger:     logger,
		tracer:     otel.Tracer("atendeai/booking"),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Handle runs one turn of the dialogue. It mutates conv and returns the
// candidate reply; loop detection and escalation run in the caller.
func (m *Machine) Handle(ctx context.Context, conv *Conversation, message string, fields extract.Fields) Turn {
	ctx, span := m.tracer.Start(ctx, "booking.machine.handle",
		trace.WithAttributes(attribute.String("booking.state", string(conv.Current))),
	)
	defer span.End()

	if conv.Confirming != nil {
		return m.handleConfirming(ctx, conv, message)
	}

	switch conv.Current {
	case StateInitial:
		return m.handleInitial(ctx, conv, message, fields)
	case StateServiceSelection:
		return m.handleServiceSelection(ctx, conv, fields)
	case StateTimeSelection:
		return m.handleTimeSelection(ctx, conv, fields)
	case StateContactInfo:
		return m.handleContactInfo(ctx, conv, message, fields)
	case StateConfirmation:
		return m.handleConfirmation(ctx, conv, fields)
	default:
		m.logger.Warn("conversation in unknown state, resetting",
			"phone", conv.Phone,
			"state", string(conv.Current),
		)
		conv.Current = StateInitial
		return Turn{Reply: greetingPrompt(m.clinicName)}
	}
}

func (m *Machine) handleInitial(ctx context.Context, conv *Conversation, message string, fields extract.Fields) Turn {
	switch fields.Intent {
	case extract.IntentCancel:
		return m.submitApproval(ctx, conv, "cancel", message)
	case extract.IntentReschedule:
		return m.submitApproval(ctx, conv, "reschedule", message)
	case extract.IntentGreeting:
		return Turn{Reply: greetingPrompt(m.clinicName)}
	case extract.IntentSchedule:
		// A single message can carry everything at once and jump
		// straight to contact collection.
		if fields.Specialty != "" {
			conv.SelectedService = fields.Specialty
			if turn, done := m.applyDateTime(conv, fields); done {
				return turn
			}
			if conv.SelectedDate != "" && conv.SelectedTime != "" {
				conv.Current = StateContactInfo
				return Turn{Reply: contactPrompt()}
			}
			conv.Current = StateTimeSelection
			return Turn{Reply: m.slotMenu(ctx, conv)}
		}
		conv.Current = StateServiceSelection
		return Turn{Reply: servicePrompt(m.extractor.Specialties())}
	}
	return Turn{Reply: helpPrompt(conv.Current, m.extractor.Specialties()), Unrecognized: true}
}

func (m *Machine) handleServiceSelection(ctx context.Context, conv *Conversation, fields extract.Fields) Turn {
	if fields.Specialty == "" {
		return Turn{Reply: helpPrompt(conv.Current, m.extractor.Specialties()), Unrecognized: true}
	}

	conv.SelectedService = fields.Specialty
	if turn, done := m.applyDateTime(conv, fields); done {
		return turn
	}
	if conv.SelectedDate != "" && conv.SelectedTime != "" {
		conv.Current = StateContactInfo
		return Turn{Reply: contactPrompt()}
	}
	conv.Current = StateTimeSelection
	return Turn{Reply: m.slotMenu(ctx, conv)}
}

func (m *Machine) handleTimeSelection(ctx context.Context, conv *Conversation, fields extract.Fields) Turn {
	if fields.Date == "" && fields.Time == "" {
		return Turn{Reply: helpPrompt(conv.Current, m.extractor.Specialties()), Unrecognized: true}
	}

	if turn, done := m.applyDateTime(conv, fields); done {
		return turn
	}
	if conv.SelectedDate != "" && conv.SelectedTime != "" {
		conv.Current = StateContactInfo
		return Turn{Reply: contactPrompt()}
	}
	if conv.SelectedTime == "" {
		return Turn{Reply: "Anotei o dia! E qual horário você prefere?"}
	}
	return Turn{Reply: "Anotei o horário! E qual dia fica melhor para você?"}
}

// applyDateTime validates and stores whatever date/time the message carried.
// The bool result is true when a confirmation sub-dialogue was opened and
// the returned Turn already holds the clarifying question.
func (m *Machine) applyDateTime(conv *Conversation, fields extract.Fields) (Turn, bool) {
	if fields.Time != "" && fields.Date == "" && conv.SelectedDate == "" {
		// A bare time means "tomorrow" unless a date is already known.
		fields.Date = m.now().AddDate(0, 0, 1).Format("2006-01-02")
	}

	if fields.Date != "" {
		res := m.validator.Date(fields.Date)
		if m.confirmer.Needed(res) {
			return m.openConfirmation(conv, res), true
		}
		conv.SelectedDate = res.Value
	}
	if fields.Time != "" {
		res := m.validator.Time(fields.Time)
		if m.confirmer.Needed(res) {
			return m.openConfirmation(conv, res), true
		}
		conv.SelectedTime = res.Value
	}
	return Turn{}, false
}

func (m *Machine) handleContactInfo(_ context.Context, conv *Conversation, message string, fields extract.Fields) Turn {
	if fields.Name == "" && conv.CustomerName == "" && looksLikeBareName(message, fields) {
		// While collecting contact data a plain "João Silva" is the name,
		// even without an introduction phrase.
		fields.Name = strings.TrimSpace(message)
	}
	if fields.Name == "" && fields.Email == "" {
		return Turn{Reply: helpPrompt(conv.Current, m.extractor.Specialties()), Unrecognized: true}
	}

	if fields.Name != "" && conv.CustomerName == "" {
		res := m.validator.Name(fields.Name)
		if m.confirmer.Needed(res) {
			return m.openConfirmation(conv, res)
		}
		conv.CustomerName = res.Value
	}
	if fields.Email != "" && conv.CustomerEmail == "" {
		res := m.validator.Email(fields.Email)
		if m.confirmer.Needed(res) {
			return m.openConfirmation(conv, res)
		}
		conv.CustomerEmail = res.Value
	}
	return m.afterContactField(conv)
}

func (m *Machine) handleConfirmation(ctx context.Context, conv *Conversation, fields extract.Fields) Turn {
	switch fields.Confirmation {
	case extract.ConfirmYes:
		return m.completeBooking(ctx, conv)
	case extract.ConfirmNo:
		conv.ResetBookingData()
		conv.Current = StateServiceSelection
		return Turn{Reply: "Sem problemas, vamos recomeçar! " + servicePrompt(m.extractor.Specialties())}
	}
	return Turn{Reply: helpPrompt(conv.Current, m.extractor.Specialties()), Unrecognized: true}
}

func (m *Machine) handleConfirming(_ context.Context, conv *Conversation, message string) Turn {
	field := conv.Confirming.Field
	dec := m.confirmer.Resolve(conv.Confirming, message, m.revalidator(field))

	switch dec.Outcome {
	case confirm.OutcomeAccepted:
		conv.Confirming = nil
		m.assignField(conv, field, dec.AcceptedValue)
		return m.afterFieldAccepted(conv)
	case confirm.OutcomePending:
		conv.Confirming = dec.Session
		return Turn{Reply: dec.Reply}
	default:
		conv.Confirming = nil
		return Turn{
			Escalate:       true,
			EscalateReason: "confirmation_exhausted",
		}
	}
}

func (m *Machine) openConfirmation(conv *Conversation, res validate.Result) Turn {
	sess, question := m.confirmer.Begin(res)
	conv.Confirming = sess
	return Turn{Reply: question}
}

// revalidator builds the replacement-value validator for one field.
// Replacement replies arrive as free text ("às 15", "16/03"), so they run
// through the extractor for normalization before the field validator.
func (m *Machine) revalidator(field string) func(string) validate.Result {
	switch field {
	case "name":
		return m.validator.Name
	case "email":
		return func(raw string) validate.Result {
			if f := m.extractor.Extract(raw); f.Email != "" {
				raw = f.Email
			}
			return m.validator.Email(raw)
		}
	case "time":
		return func(raw string) validate.Result {
			if f := m.extractor.Extract(raw); f.Time != "" {
				raw = f.Time
			}
			return m.validator.Time(raw)
		}
	default:
		return func(raw string) validate.Result {
			if f := m.extractor.Extract(raw); f.Date != "" {
				raw = f.Date
			}
			return m.validator.Date(raw)
		}
	}
}

// looksLikeBareName reports whether the message can stand in as a name:
// letters only, with nothing else recognized in it.
func looksLikeBareName(message string, fields extract.Fields) bool {
	if fields.Email != "" || fields.Specialty != "" || fields.Date != "" || fields.Time != "" {
		return false
	}
	if fields.Intent != extract.IntentNone || fields.Confirmation != extract.ConfirmNone {
		return false
	}
	return bareNamePattern.MatchString(strings.TrimSpace(message))
}

func (m *Machine) assignField(conv *Conversation, field, value string) {
	switch field {
	case "name":
		conv.CustomerName = value
	case "email":
		conv.CustomerEmail = value
	case "time":
		conv.SelectedTime = value
	case "date":
		conv.SelectedDate = value
	}
}

// afterFieldAccepted resumes the flow once a confirmation sub-dialogue
// settled a field.
func (m *Machine) afterFieldAccepted(conv *Conversation) Turn {
	switch conv.Current {
	case StateContactInfo:
		return m.afterContactField(conv)
	default:
		if conv.SelectedDate != "" && conv.SelectedTime != "" {
			conv.Current = StateContactInfo
			return Turn{Reply: contactPrompt()}
		}
		if conv.SelectedService != "" {
			// The follow-up answer carries the missing date or time and
			// must land in time selection, not the entry prompt.
			conv.Current = StateTimeSelection
		}
		if conv.SelectedTime == "" {
			return Turn{Reply: "Anotei! E qual horário você prefere?"}
		}
		return Turn{Reply: "Anotei! E qual dia fica melhor para você?"}
	}
}

func (m *Machine) afterContactField(conv *Conversation) Turn {
	switch {
	case conv.CustomerName != "" && conv.CustomerEmail != "":
		conv.Current = StateConfirmation
		return Turn{Reply: summaryPrompt(conv)}
	case conv.CustomerName == "":
		return Turn{Reply: missingNamePrompt()}
	default:
		return Turn{Reply: missingEmailPrompt()}
	}
}

func (m *Machine) completeBooking(ctx context.Context, conv *Conversation) Turn {
	conv.Current = StateCompleted

	if m.calendar == nil {
		return Turn{Reply: softSuccessPrompt(), Completed: true}
	}

	appt := Appointment{
		Title:        "Consulta de " + conv.SelectedService,
		Date:         conv.SelectedDate,
		StartTime:    conv.SelectedTime,
		EndTime:      addMinutes(conv.SelectedTime, 30),
		PatientEmail: conv.CustomerEmail,
		Location:     m.clinicName,
	}
	eventID, err := m.calendar.Create(ctx, appt)
	if err != nil {
		// Deliberate soft success: the patient is never dead-ended on a
		// calendar outage, operators reconcile from the logs.
		m.logger.Error("calendar create failed, replying with soft success",
			"phone", conv.Phone,
			"error", err,
		)
		return Turn{Reply: softSuccessPrompt(), Completed: true}
	}

	m.logger.Info("appointment booked",
		"phone", conv.Phone,
		"service", conv.SelectedService,
		"date", conv.SelectedDate,
		"time", conv.SelectedTime,
		"event_id", eventID,
	)
	return Turn{Reply: completedPrompt(conv), Completed: true}
}

func (m *Machine) submitApproval(ctx context.Context, conv *Conversation, kind, details string) Turn {
	if m.approvals == nil {
		return Turn{Reply: "No momento não consigo registrar esse pedido por aqui. Nossa equipe pode ajudar pelo telefone da clínica!"}
	}
	if err := m.approvals.Submit(ctx, conv.Phone, kind, details); err != nil {
		m.logger.Error("approval submission failed",
			"phone", conv.Phone,
			"kind", kind,
			"error", err,
		)
		return Turn{Reply: apologyPrompt()}
	}
	return Turn{Reply: approvalPendingPrompt(kind)}
}

func (m *Machine) slotMenu(ctx context.Context, conv *Conversation) string {
	slots := m.engine.Generate(ctx, availability.Request{
		Service: conv.SelectedService,
		From:    m.now(),
	}, m.slotLimit)
	if len(slots) == 0 {
		// Rule-source outage: fall back to the default grid rather than
		// stalling the conversation.
		slots = availability.DefaultSlots(m.now())
		if len(slots) > m.slotLimit {
			slots = slots[:m.slotLimit]
		}
	}
	return slotMenuPrompt(conv.SelectedService, slots)
}

func addMinutes(hhmm string, minutes int) string {
	t, err := time.Parse("15:04", hhmm)
	if err != nil {
		return hhmm
	}
	return t.Add(time.Duration(minutes) * time.Minute).Format("15:04")
}
