// Package booking holds the per-phone conversation state machine that walks a
// patient from first contact to a confirmed appointment.
package booking

import (
	"time"

	"github.com/lucasdmc/atendeai-lify-admin-sub007/internal/confirm"
)

// State is a step of the booking dialogue.
type State string

const (
	StateInitial          State = "initial"
	StateServiceSelection State = "service_selection"
	StateTimeSelection    State = "time_selection"
	StateContactInfo      State = "contact_info"
	StateConfirmation     State = "confirmation"
	StateCompleted        State = "completed"
	// StateEscalated is absorbing: every inbound message short-circuits to
	// the handoff reply until an operator clears the conversation.
	StateEscalated State = "escalated"
)

// StateTTL is how long an idle conversation stays alive. Expiry is checked
// lazily on access; the redis store additionally sets it as the key TTL.
const StateTTL = 30 * time.Minute

// Conversation is the single live state for one phone number.
type Conversation struct {
	Phone              string           `json:"phone"`
	Current            State            `json:"current_state"`
	SelectedService    string           `json:"selected_service,omitempty"`
	SelectedDate       string           `json:"selected_date,omitempty"` // "2006-01-02"
	SelectedTime       string           `json:"selected_time,omitempty"` // "HH:MM"
	CustomerName       string           `json:"customer_name,omitempty"`
	CustomerEmail      string           `json:"customer_email,omitempty"`
	LastActivity       time.Time        `json:"last_activity"`
	MessageCount       int              `json:"message_count"`
	LastBotMessage     string           `json:"last_bot_message,omitempty"`
	ConsecutiveRepeats int              `json:"consecutive_repeats"`
	LoopCount          int              `json:"loop_count"`
	Escalated          bool             `json:"escalated"`
	EscalationReason   string           `json:"escalation_reason,omitempty"`
	Confirming         *confirm.Session `json:"confirming,omitempty"`
}

// NewConversation returns a fresh state at the initial step.
func NewConversation(phone string) *Conversation {
	return &Conversation{
		Phone:        phone,
		Current:      StateInitial,
		LastActivity: time.Now().UTC(),
	}
}

// Expired reports whether the conversation idled past the TTL.
func (c *Conversation) Expired(now time.Time) bool {
	return now.Sub(c.LastActivity) > StateTTL
}

// Touch records activity for the current turn.
func (c *Conversation) Touch(now time.Time) {
	c.LastActivity = now.UTC()
	c.MessageCount++
}

// Escalate flips the conversation into the absorbing escalated state. The
// flag is one-way; only Store.Delete (an operator action) undoes it.
func (c *Conversation) Escalate(reason string) {
	c.Escalated = true
	c.Current = StateEscalated
	c.EscalationReason = reason
	c.Confirming = nil
}

// ResetBookingData clears the collected fields but keeps the loop counters,
// used when the patient asks to start over from the summary.
func (c *Conversation) ResetBookingData() {
	c.SelectedService = ""
	c.SelectedDate = ""
	c.SelectedTime = ""
	c.Confirming = nil
}
