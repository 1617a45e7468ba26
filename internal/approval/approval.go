// Package approval gates the harder-to-reverse appointment mutations. Cancel
// and reschedule requests wait for a human decision instead of acting
// directly on the calendar.
package approval

import (
	"time"
)

// Kind of mutation waiting for review.
type Kind string

const (
	KindCancel         Kind = "cancel"
	KindReschedule     Kind = "reschedule"
	KindNewAppointment Kind = "new_appointment"
)

// Status of a request. Approved and rejected are terminal; superseded marks a
// pending request displaced by a newer one from the same phone.
type Status string

const (
	StatusPending    Status = "pending"
	StatusApproved   Status = "approved"
	StatusRejected   Status = "rejected"
	StatusSuperseded Status = "superseded"
)

// Request is one patient-initiated mutation awaiting an operator decision.
type Request struct {
	ID        string     `json:"id"`
	Kind      Kind       `json:"kind"`
	Phone     string     `json:"phone"`
	Details   string     `json:"details,omitempty"`
	Status    Status     `json:"status"`
	CreatedAt time.Time  `json:"created_at"`
	DecidedAt *time.Time `json:"decided_at,omitempty"`
	DecidedBy string     `json:"decided_by,omitempty"`
}

// ValidKind reports whether the string names a reviewable mutation.
func ValidKind(s string) bool {
	switch Kind(s) {
	case KindCancel, KindReschedule, KindNewAppointment:
		return true
	}
	return false
}
