package availability

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Rule describes the bookable window for one weekday of a service.
// Times are "HH:MM" in the clinic's local timezone.
type Rule struct {
	Service      string       `json:"service"`
	Weekday      time.Weekday `json:"weekday"`
	StartTime    string       `json:"start_time"`
	EndTime      string       `json:"end_time"`
	SlotDuration int          `json:"slot_duration_minutes"`
	BreakStart   string       `json:"break_start,omitempty"`
	BreakEnd     string       `json:"break_end,omitempty"`
	IsActive     bool         `json:"is_active"`
}

// Exception overrides or closes the rule for one specific calendar date.
type Exception struct {
	Service   string `json:"service"`
	Date      string `json:"date"` // "2006-01-02"
	Closed    bool   `json:"closed"`
	StartTime string `json:"start_time,omitempty"`
	EndTime   string `json:"end_time,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

// Slot is a bookable (date, time) pair of fixed duration. Ephemeral: computed
// fresh per query, never persisted as a reservation.
type Slot struct {
	Date      string `json:"date"` // "2006-01-02"
	Time      string `json:"time"` // "HH:MM"
	Available bool   `json:"available"`
	Reason    string `json:"reason,omitempty"`
}

// BookedInterval is an existing appointment seen purely as an occupied
// interval on a date.
type BookedInterval struct {
	Date         string // "2006-01-02"
	StartMinutes int    // minutes since midnight
	EndMinutes   int
}

// Request narrows a slot query.
type Request struct {
	Service string
	From    time.Time // scan starts here; zero value means now
}

const (
	// scanDays is the calendar horizon for slot generation.
	scanDays = 14

	defaultSlotMinutes = 30
)

// parseMinutes converts "HH:MM" (or "HH") into minutes since midnight.
// Returns -1 on malformed input.
func parseMinutes(hhmm string) int {
	hhmm = strings.TrimSpace(hhmm)
	if hhmm == "" {
		return -1
	}
	parts := strings.SplitN(hhmm, ":", 2)
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return -1
	}
	minute := 0
	if len(parts) == 2 {
		minute, err = strconv.Atoi(parts[1])
		if err != nil || minute < 0 || minute > 59 {
			return -1
		}
	}
	return hour*60 + minute
}

func formatMinutes(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// Overlaps reports whether a slot [start, start+duration) collides with an
// occupied interval [aStart, aEnd) on the same date.
func Overlaps(slotStart, slotDuration, aStart, aEnd int) bool {
	return slotStart < aEnd && slotStart+slotDuration > aStart
}
