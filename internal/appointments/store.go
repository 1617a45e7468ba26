// Package appointments keeps the local record of booked consultations. It
// feeds conflict detection for slot generation and is the lookup source when
// an approved cancel/reschedule needs the original event.
package appointments

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lucasdmc/atendeai-lify-admin-sub007/internal/availability"
)

const (
	StatusBooked    = "booked"
	StatusCancelled = "cancelled"
)

// ErrNotFound is returned when no appointment matches the lookup.
var ErrNotFound = errors.New("appointments: not found")

// Appointment is one booked consultation.
type Appointment struct {
	ID           string    `json:"id"`
	Phone        string    `json:"phone"`
	Service      string    `json:"service"`
	Date         string    `json:"date"`       // "2006-01-02"
	StartTime    string    `json:"start_time"` // "HH:MM"
	EndTime      string    `json:"end_time"`   // "HH:MM"
	PatientName  string    `json:"patient_name,omitempty"`
	PatientEmail string    `json:"patient_email,omitempty"`
	EventID      string    `json:"event_id,omitempty"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
}

// Store persists appointments in PostgreSQL.
type Store struct {
	db *sql.DB
}

// NewStore creates an appointment store.
func NewStore(db *sql.DB) *Store {
	if db == nil {
		return nil
	}
	return &Store{db: db}
}

// Insert records a freshly booked appointment.
func (s *Store) Insert(ctx context.Context, a Appointment) (Appointment, error) {
	if s == nil || s.db == nil {
		return Appointment{}, fmt.Errorf("appointments: store not configured")
	}
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.Status == "" {
		a.Status = StatusBooked
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO appointments (
			id, phone, service, date, start_time, end_time,
			patient_name, patient_email, event_id, status, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), NULLIF($8, ''), NULLIF($9, ''), $10, $11)
	`, a.ID, a.Phone, a.Service, a.Date, a.StartTime, a.EndTime,
		a.PatientName, a.PatientEmail, a.EventID, a.Status, a.CreatedAt)
	if err != nil {
		return Appointment{}, fmt.Errorf("appointments: failed to insert: %w", err)
	}
	return a, nil
}

// Booked lists the occupied intervals for a service inside [from, to],
// feeding conflict detection in the availability engine.
func (s *Store) Booked(ctx context.Context, service string, from, to time.Time) ([]availability.BookedInterval, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("appointments: store not configured")
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT date, start_time, end_time
		FROM appointments
		WHERE service = $1 AND status = $2 AND date >= $3 AND date <= $4
		ORDER BY date ASC, start_time ASC
	`, service, StatusBooked, from.Format("2006-01-02"), to.Format("2006-01-02"))
	if err != nil {
		return nil, fmt.Errorf("appointments: failed to query booked intervals: %w", err)
	}
	defer rows.Close()

	var out []availability.BookedInterval
	for rows.Next() {
		var date, start, end string
		if err := rows.Scan(&date, &start, &end); err != nil {
			return nil, fmt.Errorf("appointments: failed to scan interval: %w", err)
		}
		out = append(out, availability.BookedInterval{
			Date:         date,
			StartMinutes: minutesOf(start),
			EndMinutes:   minutesOf(end),
		})
	}
	return out, rows.Err()
}

// NextUpcoming returns the patient's next booked appointment on or after the
// given day.
func (s *Store) NextUpcoming(ctx context.Context, phone string, from time.Time) (Appointment, error) {
	if s == nil || s.db == nil {
		return Appointment{}, fmt.Errorf("appointments: store not configured")
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT id, phone, service, date, start_time, end_time,
			   COALESCE(patient_name, ''), COALESCE(patient_email, ''),
			   COALESCE(event_id, ''), status, created_at
		FROM appointments
		WHERE phone = $1 AND status = $2 AND date >= $3
		ORDER BY date ASC, start_time ASC
		LIMIT 1
	`, phone, StatusBooked, from.Format("2006-01-02"))

	var a Appointment
	err := row.Scan(&a.ID, &a.Phone, &a.Service, &a.Date, &a.StartTime, &a.EndTime,
		&a.PatientName, &a.PatientEmail, &a.EventID, &a.Status, &a.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Appointment{}, ErrNotFound
	}
	if err != nil {
		return Appointment{}, fmt.Errorf("appointments: failed to scan appointment: %w", err)
	}
	return a, nil
}

// Cancel marks an appointment cancelled.
func (s *Store) Cancel(ctx context.Context, id string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("appointments: store not configured")
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE appointments SET status = $1 WHERE id = $2 AND status = $3
	`, StatusCancelled, id, StatusBooked)
	if err != nil {
		return fmt.Errorf("appointments: failed to cancel: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("appointments: failed to read cancel result: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func minutesOf(hhmm string) int {
	parts := strings.SplitN(hhmm, ":", 2)
	if len(parts) != 2 {
		return -1
	}
	h, err1 := strconv.Atoi(parts[0])
	m, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil {
		return -1
	}
	return h*60 + m
}
