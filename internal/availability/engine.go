package availability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/lucasdmc/atendeai-lify-admin-sub007/pkg/logging"
)

// RuleSource provides the working-hour configuration for a service.
type RuleSource interface {
	Rules(ctx context.Context, service string) ([]Rule, error)
	Exceptions(ctx context.Context, service string, from, to time.Time) ([]Exception, error)
}

// AppointmentSource lists already-booked intervals for conflict detection.
type AppointmentSource interface {
	Booked(ctx context.Context, service string, from, to time.Time) ([]BookedInterval, error)
}

// Engine computes bookable slots from rules, exceptions and booked events.
type Engine struct {
	rules        RuleSource
	appointments AppointmentSource
	now          func() time.Time
	logger       *logging.Logger
	tracer       trace.Tracer
}

// NewEngine creates an availability engine.
func NewEngine(rules RuleSource, appointments AppointmentSource, logger *logging.Logger) *Engine {
	if rules == nil {
		panic("availability: rule source cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Engine{
		rules:        rules,
		appointments: appointments,
		now:          time.Now,
		logger:       logger,
		tracer:       otel.Tracer("atendeai.internal.availability"),
	}
}

// WithClock overrides the engine clock. Test hook.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	if now != nil {
		e.now = now
	}
	return e
}

// Generate returns up to limit bookable slots for the request, scanning the
// next 14 calendar days in stable day-then-time order. A read failure from
// the rules/exceptions source yields an empty list so the caller can fall
// back to the default slot set instead of failing the conversation.
func (e *Engine) Generate(ctx context.Context, req Request, limit int) []Slot {
	ctx, span := e.tracer.Start(ctx, "availability.generate")
	defer span.End()

	from := req.From
	if from.IsZero() {
		from = e.now()
	}

	rules, err := e.rules.Rules(ctx, req.Service)
	if err != nil {
		span.RecordError(err)
		e.logger.Error("availability rules read failed", "error", err, "service", req.Service)
		return nil
	}

	to := from.AddDate(0, 0, scanDays)
	exceptions, err := e.rules.Exceptions(ctx, req.Service, from, to)
	if err != nil {
		span.RecordError(err)
		e.logger.Error("availability exceptions read failed", "error", err, "service", req.Service)
		return nil
	}

	var booked []BookedInterval
	if e.appointments != nil {
		booked, err = e.appointments.Booked(ctx, req.Service, from, to)
		if err != nil {
			// Booked events are best-effort: without them every rule slot is
			// offered and the mutation collaborator rejects real conflicts.
			e.logger.Warn("availability booked read failed", "error", err, "service", req.Service)
			booked = nil
		}
	}

	slots := GenerateSlots(rules, exceptions, booked, from, limit)
	span.SetAttributes(
		attribute.String("availability.service", req.Service),
		attribute.Int("availability.slots", len(slots)),
	)
	return slots
}

// GenerateSlots is the pure slot arithmetic: it scans scanDays calendar days
// starting at from, resolves the weekday rule (or its date exception), steps
// through the day in slot-duration increments skipping the break window, and
// drops any step that overlaps a booked interval. Fewer than limit results is
// not an error.
func GenerateSlots(rules []Rule, exceptions []Exception, booked []BookedInterval, from time.Time, limit int) []Slot {
	if limit <= 0 {
		return nil
	}

	byWeekday := make(map[time.Weekday]Rule, len(rules))
	for _, r := range rules {
		if !r.IsActive {
			continue
		}
		if _, dup := byWeekday[r.Weekday]; !dup {
			byWeekday[r.Weekday] = r
		}
	}

	byDate := make(map[string]Exception, len(exceptions))
	for _, ex := range exceptions {
		byDate[ex.Date] = ex
	}

	bookedByDate := make(map[string][]BookedInterval, len(booked))
	for _, b := range booked {
		bookedByDate[b.Date] = append(bookedByDate[b.Date], b)
	}

	nowMinutes := from.Hour()*60 + from.Minute()
	today := from.Format("2006-01-02")

	var out []Slot
	for day := 0; day < scanDays && len(out) < limit; day++ {
		date := from.AddDate(0, 0, day)
		dateStr := date.Format("2006-01-02")

		rule, ok := byWeekday[date.Weekday()]
		if !ok {
			continue
		}

		start := parseMinutes(rule.StartTime)
		end := parseMinutes(rule.EndTime)

		if ex, found := byDate[dateStr]; found {
			if ex.Closed {
				continue
			}
			if ex.StartTime != "" {
				start = parseMinutes(ex.StartTime)
			}
			if ex.EndTime != "" {
				end = parseMinutes(ex.EndTime)
			}
		}

		duration := rule.SlotDuration
		if duration <= 0 {
			duration = defaultSlotMinutes
		}
		if start < 0 || end < 0 || start >= end {
			continue
		}

		breakStart := parseMinutes(rule.BreakStart)
		breakEnd := parseMinutes(rule.BreakEnd)
		hasBreak := breakStart >= 0 && breakEnd > breakStart

		for minute := start; minute+duration <= end && len(out) < limit; minute += duration {
			if hasBreak && Overlaps(minute, duration, breakStart, breakEnd) {
				continue
			}
			if dateStr == today && minute <= nowMinutes {
				continue
			}
			if conflicts(bookedByDate[dateStr], minute, duration) {
				continue
			}
			out = append(out, Slot{
				Date:      dateStr,
				Time:      formatMinutes(minute),
				Available: true,
			})
		}
	}
	return out
}

func conflicts(booked []BookedInterval, start, duration int) bool {
	for _, b := range booked {
		if Overlaps(start, duration, b.StartMinutes, b.EndMinutes) {
			return true
		}
	}
	return false
}

// WorkingHours returns the distinct bookable hours across the active rules,
// sorted ascending. The input validator uses it to judge requested times.
func WorkingHours(rules []Rule) []int {
	seen := make(map[int]struct{})
	for _, r := range rules {
		if !r.IsActive {
			continue
		}
		start := parseMinutes(r.StartTime)
		end := parseMinutes(r.EndTime)
		if start < 0 || end <= start {
			continue
		}
		for h := start / 60; h < (end+59)/60; h++ {
			seen[h] = struct{}{}
		}
	}
	hours := make([]int, 0, len(seen))
	for h := range seen {
		hours = append(hours, h)
	}
	for i := 0; i < len(hours); i++ {
		for j := i + 1; j < len(hours); j++ {
			if hours[j] < hours[i] {
				hours[i], hours[j] = hours[j], hours[i]
			}
		}
	}
	return hours
}

// OpenWeekdays reports which weekdays have an active rule.
func OpenWeekdays(rules []Rule) map[time.Weekday]bool {
	open := make(map[time.Weekday]bool)
	for _, r := range rules {
		if r.IsActive {
			open[r.Weekday] = true
		}
	}
	return open
}

// DefaultSlots is the hard-coded fallback offered when the rule store is
// unreachable: next two weekdays, standard commercial hours.
func DefaultSlots(from time.Time) []Slot {
	times := []string{"09:00", "10:00", "11:00", "14:00", "15:00", "16:00"}
	var out []Slot
	for day := 1; day <= 7 && len(out) < 12; day++ {
		date := from.AddDate(0, 0, day)
		if date.Weekday() == time.Saturday || date.Weekday() == time.Sunday {
			continue
		}
		for _, t := range times {
			out = append(out, Slot{
				Date:      date.Format("2006-01-02"),
				Time:      t,
				Available: true,
				Reason:    "horário padrão",
			})
		}
		if len(out) >= 12 {
			break
		}
	}
	return out
}
