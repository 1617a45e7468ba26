package appointments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lucasdmc/atendeai-lify-admin-sub007/internal/approval"
	"github.com/lucasdmc/atendeai-lify-admin-sub007/internal/booking"
	"github.com/lucasdmc/atendeai-lify-admin-sub007/internal/calendar"
	"github.com/lucasdmc/atendeai-lify-admin-sub007/pkg/logging"
)

// agendaClient is the slice of the calendar client the service needs.
type agendaClient interface {
	Create(ctx context.Context, data calendar.AppointmentData) (string, error)
	Delete(ctx context.Context, eventID string) error
}

// Service books appointments on behalf of the state machine and applies
// approved cancel/reschedule decisions. It satisfies booking.Calendar and
// approval.Mutator.
type Service struct {
	store  *Store
	agenda agendaClient
	logger *logging.Logger
	now    func() time.Time
}

// NewService creates the appointment service. agenda may be nil when no
// external calendar is configured; bookings are then recorded locally only.
func NewService(store *Store, agenda agendaClient, logger *logging.Logger) *Service {
	if store == nil {
		panic("appointments: store cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		store:  store,
		agenda: agenda,
		logger: logger,
		now:    time.Now,
	}
}

// WithClock overrides the service clock. Test hook.
func (s *Service) WithClock(now func() time.Time) *Service {
	if now != nil {
		s.now = now
	}
	return s
}

// Create books the appointment on the external agenda, then records it
// locally so future slot generation sees the conflict. A local insert
// failure after a successful agenda call is logged, not propagated.
func (s *Service) Create(ctx context.Context, appt booking.Appointment) (string, error) {
	return s.CreateFor(ctx, "", appt)
}

// CreateFor is Create with the phone attached, used by the conversation
// pipeline where the patient identity is known.
func (s *Service) CreateFor(ctx context.Context, phone string, appt booking.Appointment) (string, error) {
	var eventID string
	if s.agenda != nil {
		var err error
		eventID, err = s.agenda.Create(ctx, calendar.AppointmentData{
			Title:        appt.Title,
			Date:         appt.Date,
			StartTime:    appt.StartTime,
			EndTime:      appt.EndTime,
			PatientEmail: appt.PatientEmail,
			Location:     appt.Location,
		})
		if err != nil {
			return "", fmt.Errorf("appointments: agenda create failed: %w", err)
		}
	}

	record := Appointment{
		Phone:        phone,
		Service:      serviceFromTitle(appt.Title),
		Date:         appt.Date,
		StartTime:    appt.StartTime,
		EndTime:      appt.EndTime,
		PatientEmail: appt.PatientEmail,
		EventID:      eventID,
	}
	if _, err := s.store.Insert(ctx, record); err != nil {
		s.logger.Error("appointment booked on agenda but local record failed",
			"event_id", eventID,
			"error", err,
		)
	}
	return eventID, nil
}

// Apply executes an approved request: the patient's next appointment is
// removed from the agenda and marked cancelled locally. A reschedule frees
// the old slot the same way; the patient then books the new time through the
// normal flow.
func (s *Service) Apply(ctx context.Context, req approval.Request) error {
	switch req.Kind {
	case approval.KindCancel, approval.KindReschedule:
	default:
		return nil
	}

	appt, err := s.store.NextUpcoming(ctx, req.Phone, s.now())
	if errors.Is(err, ErrNotFound) {
		s.logger.Warn("approved request has no upcoming appointment",
			"request_id", req.ID,
			"phone", req.Phone,
		)
		return nil
	}
	if err != nil {
		return err
	}

	if s.agenda != nil && appt.EventID != "" {
		if err := s.agenda.Delete(ctx, appt.EventID); err != nil {
			return fmt.Errorf("appointments: agenda delete failed: %w", err)
		}
	}
	if err := s.store.Cancel(ctx, appt.ID); err != nil {
		return err
	}

	s.logger.Info("appointment cancelled",
		"request_id", req.ID,
		"appointment_id", appt.ID,
		"kind", string(req.Kind),
	)
	return nil
}

func serviceFromTitle(title string) string {
	const prefix = "Consulta de "
	if len(title) > len(prefix) && title[:len(prefix)] == prefix {
		return title[len(prefix):]
	}
	return title
}
