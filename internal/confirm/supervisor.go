// Package confirm runs the micro-dialogue that resolves one ambiguous field:
// ask, interpret the reply as confirm / reject / replacement, repeat until
// the field is accepted or the attempt budget runs out.
package confirm

import (
	"fmt"
	"strings"

	"github.com/lucasdmc/atendeai-lify-admin-sub007/internal/extract"
	"github.com/lucasdmc/atendeai-lify-admin-sub007/internal/validate"
	"github.com/lucasdmc/atendeai-lify-admin-sub007/pkg/logging"
)

// Session is the transient sub-state of one pending confirmation. It lives
// inside the conversation state and is cleared on resolution.
type Session struct {
	Field     string `json:"field"`
	Candidate string `json:"candidate"`
	// Suggestion is the display text shown in the clarifying question.
	Suggestion string `json:"suggestion,omitempty"`
	// SuggestedValue is the normalized value a "sim" accepts. Empty when
	// the suggestion only lists options and cannot be taken as-is.
	SuggestedValue string   `json:"suggested_value,omitempty"`
	Issues         []string `json:"issues,omitempty"`
	Attempts       int      `json:"attempts"`
}

// Outcome says how a confirmation turn ended.
type Outcome string

const (
	// OutcomeAccepted: the field value is settled; session cleared.
	OutcomeAccepted Outcome = "accepted"
	// OutcomePending: still ambiguous; the reply asks again.
	OutcomePending Outcome = "pending"
	// OutcomeAbandoned: attempt budget exhausted; caller should escalate.
	OutcomeAbandoned Outcome = "abandoned"
)

// Decision is the result of feeding one user reply into a session.
type Decision struct {
	Outcome       Outcome
	AcceptedValue string
	Reply         string
	Session       *Session // nil once the session is resolved
}

const defaultMaxAttempts = 3

var fieldLabels = map[string]string{
	"name":  "nome",
	"email": "e-mail",
	"time":  "horário",
	"date":  "data",
}

// Supervisor decides when a validation result needs a clarifying question
// and drives the sub-dialogue until the field is settled.
type Supervisor struct {
	maxAttempts int
	logger      *logging.Logger
}

// NewSupervisor creates a confirmation supervisor. maxAttempts <= 0 uses the
// default budget of 3.
func NewSupervisor(maxAttempts int, logger *logging.Logger) *Supervisor {
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Supervisor{
		maxAttempts: maxAttempts,
		logger:      logger,
	}
}

// Needed reports whether the validation result should interrupt the flow
// with a clarifying question.
func (s *Supervisor) Needed(res validate.Result) bool {
	return !res.IsValid || res.Confidence < 0.8 || len(res.Suggestions) > 0
}

// Begin opens a session for the ambiguous field and returns the clarifying
// question to send.
func (s *Supervisor) Begin(res validate.Result) (*Session, string) {
	sess := &Session{
		Field:     res.Field,
		Candidate: res.Value,
		Issues:    res.Issues,
		Attempts:  1,
	}
	if len(res.Suggestions) > 0 {
		sess.Suggestion = res.Suggestions[0]
	}
	sess.SuggestedValue = res.Suggested

	s.logger.Debug("confirmation session opened",
		"field", res.Field,
		"confidence", res.Confidence,
		"has_suggestion", sess.Suggestion != "",
	)
	return sess, s.question(sess)
}

// Resolve interprets one user reply inside an open session. revalidate is
// called when the reply looks like a replacement value for the field.
func (s *Supervisor) Resolve(sess *Session, reply string, revalidate func(string) validate.Result) Decision {
	if sess == nil {
		return Decision{Outcome: OutcomeAccepted}
	}

	switch extract.DetectConfirmation(reply) {
	case extract.ConfirmYes:
		// A confirmed "did you mean X" accepts the normalized suggested
		// correction, not the literal first input.
		if sess.SuggestedValue != "" {
			return Decision{Outcome: OutcomeAccepted, AcceptedValue: sess.SuggestedValue}
		}
		if len(sess.Issues) == 0 {
			return Decision{Outcome: OutcomeAccepted, AcceptedValue: sess.Candidate}
		}
		// "sim" cannot settle an invalid value when the question only
		// listed options. Ask for a concrete pick instead.
		sess.Attempts++
		if sess.Attempts > s.maxAttempts {
			return s.abandon(sess)
		}
		return Decision{
			Outcome: OutcomePending,
			Reply:   s.question(sess),
			Session: sess,
		}

	case extract.ConfirmNo:
		sess.Attempts++
		if sess.Attempts > s.maxAttempts {
			return s.abandon(sess)
		}
		sess.Suggestion = ""
		sess.SuggestedValue = ""
		return Decision{
			Outcome: OutcomePending,
			Reply:   fmt.Sprintf("Sem problemas! Pode me enviar o %s correto?", label(sess.Field)),
			Session: sess,
		}
	}

	// Anything else is treated as a new candidate value and re-validated.
	res := revalidate(strings.TrimSpace(reply))
	if !s.Needed(res) {
		return Decision{Outcome: OutcomeAccepted, AcceptedValue: res.Value}
	}

	sess.Attempts++
	if sess.Attempts > s.maxAttempts {
		return s.abandon(sess)
	}

	sess.Candidate = res.Value
	sess.Issues = res.Issues
	sess.Suggestion = ""
	if len(res.Suggestions) > 0 {
		sess.Suggestion = res.Suggestions[0]
	}
	sess.SuggestedValue = res.Suggested
	return Decision{
		Outcome: OutcomePending,
		Reply:   s.question(sess),
		Session: sess,
	}
}

func (s *Supervisor) abandon(sess *Session) Decision {
	s.logger.Warn("confirmation session abandoned",
		"field", sess.Field,
		"attempts", sess.Attempts,
	)
	return Decision{Outcome: OutcomeAbandoned}
}

func (s *Supervisor) question(sess *Session) string {
	if sess.SuggestedValue != "" {
		return fmt.Sprintf(
			"Você quis dizer *%s*? Responda \"sim\" para confirmar ou envie o %s correto.",
			sess.Suggestion, label(sess.Field),
		)
	}
	if sess.Suggestion != "" {
		// Options list, not a single correction: ask for a concrete pick.
		return fmt.Sprintf(
			"Esse %s não está disponível. As opções são: *%s*. Qual prefere?",
			label(sess.Field), sess.Suggestion,
		)
	}
	if len(sess.Issues) > 0 {
		return fmt.Sprintf(
			"Não consegui entender seu %s (%s). Pode me enviar novamente?",
			label(sess.Field), strings.Join(sess.Issues, "; "),
		)
	}
	return fmt.Sprintf(
		"Só para confirmar: seu %s é *%s*? Responda \"sim\" ou envie o valor correto.",
		label(sess.Field), sess.Candidate,
	)
}

func label(field string) string {
	if l, ok := fieldLabels[field]; ok {
		return l
	}
	return field
}
