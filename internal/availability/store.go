package availability

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Store reads and writes availability configuration in PostgreSQL.
type Store struct {
	db *sql.DB
}

// NewStore creates an availability store.
func NewStore(db *sql.DB) *Store {
	if db == nil {
		return nil
	}
	return &Store{db: db}
}

// Rules returns the weekday rules configured for a service.
func (s *Store) Rules(ctx context.Context, service string) ([]Rule, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("availability: store not configured")
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT service, weekday, start_time, end_time, slot_duration_minutes,
			   COALESCE(break_start, ''), COALESCE(break_end, ''), is_active
		FROM availability_rules
		WHERE service = $1
		ORDER BY weekday ASC
	`, service)
	if err != nil {
		return nil, fmt.Errorf("availability: failed to query rules: %w", err)
	}
	defer rows.Close()

	var rules []Rule
	for rows.Next() {
		var r Rule
		var weekday int
		if err := rows.Scan(&r.Service, &weekday, &r.StartTime, &r.EndTime,
			&r.SlotDuration, &r.BreakStart, &r.BreakEnd, &r.IsActive); err != nil {
			return nil, fmt.Errorf("availability: failed to scan rule: %w", err)
		}
		r.Weekday = time.Weekday(weekday)
		rules = append(rules, r)
	}
	return rules, rows.Err()
}

// Exceptions returns date exceptions for a service inside [from, to].
func (s *Store) Exceptions(ctx context.Context, service string, from, to time.Time) ([]Exception, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("availability: store not configured")
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT service, date, closed,
			   COALESCE(start_time, ''), COALESCE(end_time, ''), COALESCE(reason, '')
		FROM availability_exceptions
		WHERE service = $1 AND date >= $2 AND date <= $3
		ORDER BY date ASC
	`, service, from.Format("2006-01-02"), to.Format("2006-01-02"))
	if err != nil {
		return nil, fmt.Errorf("availability: failed to query exceptions: %w", err)
	}
	defer rows.Close()

	var exceptions []Exception
	for rows.Next() {
		var ex Exception
		if err := rows.Scan(&ex.Service, &ex.Date, &ex.Closed,
			&ex.StartTime, &ex.EndTime, &ex.Reason); err != nil {
			return nil, fmt.Errorf("availability: failed to scan exception: %w", err)
		}
		exceptions = append(exceptions, ex)
	}
	return exceptions, rows.Err()
}

// UpsertRule creates or replaces the rule for (service, weekday).
func (s *Store) UpsertRule(ctx context.Context, r Rule) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("availability: store not configured")
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO availability_rules (
			service, weekday, start_time, end_time, slot_duration_minutes,
			break_start, break_end, is_active, updated_at
		) VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), NULLIF($7, ''), $8, $9)
		ON CONFLICT (service, weekday) DO UPDATE SET
			start_time = EXCLUDED.start_time,
			end_time = EXCLUDED.end_time,
			slot_duration_minutes = EXCLUDED.slot_duration_minutes,
			break_start = EXCLUDED.break_start,
			break_end = EXCLUDED.break_end,
			is_active = EXCLUDED.is_active,
			updated_at = EXCLUDED.updated_at
	`, r.Service, int(r.Weekday), r.StartTime, r.EndTime, r.SlotDuration,
		r.BreakStart, r.BreakEnd, r.IsActive, time.Now())
	if err != nil {
		return fmt.Errorf("availability: failed to upsert rule: %w", err)
	}
	return nil
}

// AddException records a date exception (override or closure).
func (s *Store) AddException(ctx context.Context, ex Exception) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("availability: store not configured")
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO availability_exceptions (
			service, date, closed, start_time, end_time, reason, created_at
		) VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), NULLIF($6, ''), $7)
		ON CONFLICT (service, date) DO UPDATE SET
			closed = EXCLUDED.closed,
			start_time = EXCLUDED.start_time,
			end_time = EXCLUDED.end_time,
			reason = EXCLUDED.reason
	`, ex.Service, ex.Date, ex.Closed, ex.StartTime, ex.EndTime, ex.Reason, time.Now())
	if err != nil {
		return fmt.Errorf("availability: failed to add exception: %w", err)
	}
	return nil
}
