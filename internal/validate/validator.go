// Package validate scores extracted candidate fields. A Result is consumed
// immediately by the confirmation supervisor and never persisted.
package validate

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Result is the outcome of validating one candidate field.
type Result struct {
	Field   string   `json:"field"`
	IsValid bool     `json:"is_valid"`
	Value   string   `json:"value"` // normalized
	Issues  []string `json:"issues,omitempty"`
	// Suggestions hold display text for the clarifying question.
	Suggestions []string `json:"suggestions,omitempty"`
	// Suggested is the canonical machine value behind Suggestions[0]
	// ("2006-01-02" for dates, "HH:MM" for times). Empty when the
	// suggestion is informational only and cannot be accepted as-is.
	Suggested  string  `json:"suggested,omitempty"`
	Confidence float64 `json:"confidence"` // in [0, 1]
}

var (
	numericOnlyPattern = regexp.MustCompile(`^[\d\s.,+\-()]+$`)
	nameCharsPattern   = regexp.MustCompile(`^[\p{L} '\-.]+$`)
	fullEmailPattern   = regexp.MustCompile(`^[A-Za-z0-9._%+\-]+@[A-Za-z0-9\-]+(\.[A-Za-z0-9\-]+)+$`)
)

// knownDomains completes the most common Brazilian provider typos, e.g.
// "joao@gmail" -> "joao@gmail.com".
var knownDomains = map[string]string{
	"gmail":    "gmail.com",
	"hotmail":  "hotmail.com",
	"outlook":  "outlook.com",
	"yahoo":    "yahoo.com.br",
	"uol":      "uol.com.br",
	"bol":      "bol.com.br",
	"terra":    "terra.com.br",
	"icloud":   "icloud.com",
	"live":     "live.com",
	"protonmail": "protonmail.com",
}

// Validator judges candidate fields against the clinic configuration.
type Validator struct {
	workingHours []int
	openWeekdays map[time.Weekday]bool
	now          func() time.Time
}

// New creates a validator. workingHours lists the bookable hours of the day;
// openWeekdays marks which weekdays have any availability at all. Empty
// inputs disable the respective check.
func New(workingHours []int, openWeekdays map[time.Weekday]bool) *Validator {
	return &Validator{
		workingHours: workingHours,
		openWeekdays: openWeekdays,
		now:          time.Now,
	}
}

// WithClock overrides the validator clock. Test hook.
func (v *Validator) WithClock(now func() time.Time) *Validator {
	if now != nil {
		v.now = now
	}
	return v
}

// Name validates a customer name candidate.
func (v *Validator) Name(raw string) Result {
	res := Result{Field: "name", Value: strings.TrimSpace(raw)}

	switch {
	case len([]rune(res.Value)) < 2:
		res.Issues = append(res.Issues, "nome muito curto")
	case numericOnlyPattern.MatchString(res.Value):
		res.Issues = append(res.Issues, "nome não pode ser apenas números")
	case strings.Contains(res.Value, "@"):
		res.Issues = append(res.Issues, "isso parece um e-mail, não um nome")
	case !nameCharsPattern.MatchString(res.Value):
		res.Issues = append(res.Issues, "nome contém caracteres inválidos")
	}

	if len(res.Issues) > 0 {
		res.IsValid = false
		res.Confidence = 0.2
		return res
	}

	res.IsValid = true
	res.Confidence = 1.0
	if !strings.Contains(res.Value, " ") {
		// A single word is plausible but weaker evidence of a full name.
		res.Confidence = 0.8
	}
	return res
}

// Email validates an email candidate, proposing domain completions for
// near-misses such as a missing TLD.
func (v *Validator) Email(raw string) Result {
	res := Result{Field: "email", Value: strings.ToLower(strings.TrimSpace(raw))}

	at := strings.Index(res.Value, "@")
	if at < 1 {
		res.IsValid = false
		res.Confidence = 0.1
		res.Issues = append(res.Issues, "e-mail precisa conter @")
		return res
	}

	if fullEmailPattern.MatchString(res.Value) {
		res.IsValid = true
		res.Confidence = 1.0
		return res
	}

	local, domain := res.Value[:at], res.Value[at+1:]
	if domain != "" && !strings.Contains(domain, ".") {
		res.IsValid = false
		res.Issues = append(res.Issues, "o domínio do e-mail parece incompleto")
		if full, ok := knownDomains[domain]; ok {
			res.Suggested = local + "@" + full
			res.Confidence = 0.7
		} else {
			res.Suggested = local + "@" + domain + ".com"
			res.Confidence = 0.6
		}
		res.Suggestions = append(res.Suggestions, res.Suggested)
		return res
	}

	res.IsValid = false
	res.Confidence = 0.3
	res.Issues = append(res.Issues, "formato de e-mail inválido")
	return res
}

// Time validates an "HH:MM" candidate against the working-hour set.
func (v *Validator) Time(raw string) Result {
	res := Result{Field: "time", Value: strings.TrimSpace(raw)}

	var hour, minute int
	if _, err := fmt.Sscanf(res.Value, "%d:%d", &hour, &minute); err != nil || hour > 23 || minute > 59 {
		res.IsValid = false
		res.Confidence = 0.1
		res.Issues = append(res.Issues, "horário inválido")
		return res
	}

	if len(v.workingHours) > 0 && !containsInt(v.workingHours, hour) {
		res.IsValid = false
		res.Confidence = 0.4
		res.Issues = append(res.Issues, "fora do horário de atendimento")
		res.Suggestions = append(res.Suggestions, formatHours(v.workingHours))
		return res
	}

	res.IsValid = true
	res.Confidence = 1.0
	return res
}

// Date validates a "2006-01-02" candidate: it must parse, be in the future,
// and fall on an open weekday.
func (v *Validator) Date(raw string) Result {
	res := Result{Field: "date", Value: strings.TrimSpace(raw)}

	date, err := time.Parse("2006-01-02", res.Value)
	if err != nil {
		res.IsValid = false
		res.Confidence = 0.1
		res.Issues = append(res.Issues, "data inválida")
		return res
	}

	// Calendar-date comparison; Truncate would work on the absolute
	// timeline and misjudge "hoje" near midnight outside UTC.
	now := v.now()
	if res.Value < now.Format("2006-01-02") {
		res.IsValid = false
		res.Confidence = 0.3
		res.Issues = append(res.Issues, "a data já passou")
		tomorrow := now.AddDate(0, 0, 1)
		res.Suggested = tomorrow.Format("2006-01-02")
		res.Suggestions = append(res.Suggestions, tomorrow.Format("02/01/2006"))
		return res
	}

	if len(v.openWeekdays) > 0 && !v.openWeekdays[date.Weekday()] {
		res.IsValid = false
		res.Confidence = 0.4
		res.Issues = append(res.Issues, "a clínica não atende nesse dia")
		if next := v.nextOpenDay(date); !next.IsZero() {
			res.Suggested = next.Format("2006-01-02")
			res.Suggestions = append(res.Suggestions, next.Format("02/01/2006"))
		}
		return res
	}

	res.IsValid = true
	res.Confidence = 1.0
	return res
}

func (v *Validator) nextOpenDay(after time.Time) time.Time {
	for i := 1; i <= 7; i++ {
		candidate := after.AddDate(0, 0, i)
		if v.openWeekdays[candidate.Weekday()] {
			return candidate
		}
	}
	return time.Time{}
}

func containsInt(list []int, n int) bool {
	for _, v := range list {
		if v == n {
			return true
		}
	}
	return false
}

func formatHours(hours []int) string {
	parts := make([]string, len(hours))
	for i, h := range hours {
		parts[i] = fmt.Sprintf("%02dh", h)
	}
	return strings.Join(parts, ", ")
}
