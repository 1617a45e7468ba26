// Package extract turns free-text WhatsApp messages into typed candidate
// fields. Matching is a fixed ordered rule table evaluated first-match-wins
// per field; extraction never fails, it only omits what it cannot find.
package extract

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Intent is the coarse conversational intent of a message.
type Intent string

const (
	IntentNone       Intent = ""
	IntentSchedule   Intent = "schedule"
	IntentCancel     Intent = "cancel"
	IntentReschedule Intent = "reschedule"
	IntentHuman      Intent = "human"
	IntentGreeting   Intent = "greeting"
)

// ConfirmSignal classifies a reply inside a confirmation sub-dialogue.
type ConfirmSignal string

const (
	ConfirmNone ConfirmSignal = ""
	ConfirmYes  ConfirmSignal = "yes"
	ConfirmNo   ConfirmSignal = "no"
)

// Fields holds every candidate the extractor recognized in one message.
// Empty fields were simply not present.
type Fields struct {
	Name         string
	Email        string
	Date         string // "2006-01-02"
	Time         string // "HH:MM"
	Specialty    string
	Confirmation ConfirmSignal
	Intent       Intent
	Frustrated   bool
}

// Specialty maps a canonical service name to its accepted synonyms.
// Matching is case-insensitive substring, table order breaks ties.
type Specialty struct {
	Name     string
	Synonyms []string
}

// DefaultSpecialties is the clinic service table used when no custom one is
// configured.
var DefaultSpecialties = []Specialty{
	{Name: "cardiologia", Synonyms: []string{"cardiologia", "cardiologista", "cardio", "coração", "coracao"}},
	{Name: "dermatologia", Synonyms: []string{"dermatologia", "dermatologista", "dermato", "pele"}},
	{Name: "pediatria", Synonyms: []string{"pediatria", "pediatra", "criança", "crianca"}},
	{Name: "ortopedia", Synonyms: []string{"ortopedia", "ortopedista", "joelho", "coluna", "fratura"}},
	{Name: "ginecologia", Synonyms: []string{"ginecologia", "ginecologista", "gineco"}},
	{Name: "clínico geral", Synonyms: []string{"clínico geral", "clinico geral", "clínica geral", "clinica geral", "check-up", "checkup", "consulta geral"}},
}

var (
	emailPattern = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+`)
	namePattern  = regexp.MustCompile(`(?i)\b(?:meu nome é|meu nome e|me chamo|sou [oa]?)\s+([\p{L}][\p{L} '\-]{1,60})`)

	// Date patterns, evaluated in order: explicit DD/MM[/YYYY] wins over
	// relative terms.
	numericDatePattern = regexp.MustCompile(`\b(\d{1,2})/(\d{1,2})(?:/(\d{2,4}))?\b`)
	todayPattern       = regexp.MustCompile(`(?i)\bhoje\b`)
	tomorrowPattern    = regexp.MustCompile(`(?i)\bamanh[ãa]\b`)

	// Time patterns, evaluated in order: "14:30", then "14h"/"14h30",
	// then "às 14".
	clockPattern  = regexp.MustCompile(`\b(\d{1,2}):(\d{2})\b`)
	hourHPattern  = regexp.MustCompile(`\b(\d{1,2})h(\d{2})?\b`)
	atHourPattern = regexp.MustCompile(`(?i)\b[àa]s?\s+(\d{1,2})\b`)
)

var humanRequestPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bfalar com (um |uma )?(humano|atendente|pessoa|alguém|alguem)\b`),
	regexp.MustCompile(`(?i)\batendente humano\b`),
	regexp.MustCompile(`(?i)\bquero (um |uma )?(humano|atendente|pessoa de verdade)\b`),
	regexp.MustCompile(`(?i)\bpessoa de verdade\b`),
	regexp.MustCompile(`(?i)\bn[ãa]o quero falar com (rob[ôo]|bot|m[áa]quina)\b`),
}

var frustrationKeywords = []string{
	"absurdo", "ridículo", "ridiculo", "péssimo", "pessimo", "horrível", "horrivel",
	"não aguento", "nao aguento", "cansado disso", "cansada disso", "que raiva",
	"droga", "inútil", "inutil", "não funciona", "nao funciona",
}

var confirmWords = []string{
	"sim", "confirmar", "confirmo", "confirmado", "correto", "certo", "isso",
	"isso mesmo", "ok", "pode ser", "claro", "perfeito", "exato", "positivo",
}

var negateWords = []string{
	"não", "nao", "errado", "incorreto", "negativo", "alterar", "mudar", "trocar",
}

var (
	cancelIntentPattern     = regexp.MustCompile(`(?i)\b(cancelar|desmarcar)\b`)
	rescheduleIntentPattern = regexp.MustCompile(`(?i)\b(remarcar|reagendar)\b`)
	scheduleIntentPattern   = regexp.MustCompile(`(?i)\b(agendar|marcar|agendamento|consulta|hor[áa]rio|atendimento|agenda)\b`)
)

var greetingKeywords = []string{
	"oi", "olá", "ola", "bom dia", "boa tarde", "boa noite",
}

// Extractor runs the pattern tables against inbound messages.
type Extractor struct {
	specialties []Specialty
	now         func() time.Time
}

// New creates an extractor over the given specialty table. A nil or empty
// table falls back to DefaultSpecialties.
func New(specialties []Specialty) *Extractor {
	if len(specialties) == 0 {
		specialties = DefaultSpecialties
	}
	return &Extractor{
		specialties: specialties,
		now:         time.Now,
	}
}

// WithClock overrides the extractor clock. Test hook.
func (e *Extractor) WithClock(now func() time.Time) *Extractor {
	if now != nil {
		e.now = now
	}
	return e
}

// Extract runs every field matcher against the message.
func (e *Extractor) Extract(message string) Fields {
	message = strings.TrimSpace(message)
	if message == "" {
		return Fields{}
	}
	lower := strings.ToLower(message)

	return Fields{
		Name:         extractName(message),
		Email:        extractEmail(message),
		Date:         e.extractDate(lower),
		Time:         extractTime(lower),
		Specialty:    e.MatchSpecialty(lower),
		Confirmation: DetectConfirmation(lower),
		Intent:       e.detectIntent(lower),
		Frustrated:   IsFrustrated(lower),
	}
}

// MatchSpecialty resolves a specialty by case-insensitive substring against
// the synonym table. First match wins; ties break by table order.
func (e *Extractor) MatchSpecialty(message string) string {
	message = strings.ToLower(message)
	for _, sp := range e.specialties {
		for _, syn := range sp.Synonyms {
			if strings.Contains(message, syn) {
				return sp.Name
			}
		}
	}
	return ""
}

// Specialties returns the canonical service names in table order.
func (e *Extractor) Specialties() []string {
	names := make([]string, 0, len(e.specialties))
	for _, sp := range e.specialties {
		names = append(names, sp.Name)
	}
	return names
}

func extractEmail(message string) string {
	return emailPattern.FindString(message)
}

func extractName(message string) string {
	m := namePattern.FindStringSubmatch(message)
	if len(m) < 2 {
		return ""
	}
	return strings.TrimSpace(m[1])
}

func (e *Extractor) extractDate(lower string) string {
	if m := numericDatePattern.FindStringSubmatch(lower); m != nil {
		day, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		if day < 1 || day > 31 || month < 1 || month > 12 {
			return ""
		}
		year := e.now().Year()
		if m[3] != "" {
			year, _ = strconv.Atoi(m[3])
			if year < 100 {
				year += 2000
			}
		} else if month < int(e.now().Month()) {
			// "10/01" said in December means next January.
			year++
		}
		return fmt.Sprintf("%04d-%02d-%02d", year, month, day)
	}
	if tomorrowPattern.MatchString(lower) {
		return e.now().AddDate(0, 0, 1).Format("2006-01-02")
	}
	if todayPattern.MatchString(lower) {
		return e.now().Format("2006-01-02")
	}
	return ""
}

func extractTime(lower string) string {
	if m := clockPattern.FindStringSubmatch(lower); m != nil {
		return normalizeTime(m[1], m[2])
	}
	if m := hourHPattern.FindStringSubmatch(lower); m != nil {
		minute := m[2]
		if minute == "" {
			minute = "00"
		}
		return normalizeTime(m[1], minute)
	}
	if m := atHourPattern.FindStringSubmatch(lower); m != nil {
		return normalizeTime(m[1], "00")
	}
	return ""
}

func normalizeTime(hh, mm string) string {
	hour, err := strconv.Atoi(hh)
	if err != nil || hour > 23 {
		return ""
	}
	minute, err := strconv.Atoi(mm)
	if err != nil || minute > 59 {
		return ""
	}
	return fmt.Sprintf("%02d:%02d", hour, minute)
}

// DetectConfirmation classifies a short reply as yes/no/neither. Negation is
// checked first so "não, errado" never reads as agreement.
func DetectConfirmation(lower string) ConfirmSignal {
	lower = strings.TrimSpace(strings.ToLower(lower))
	for _, w := range negateWords {
		if lower == w || strings.HasPrefix(lower, w+" ") || strings.HasPrefix(lower, w+",") {
			return ConfirmNo
		}
	}
	for _, w := range confirmWords {
		if lower == w || strings.HasPrefix(lower, w+" ") || strings.HasPrefix(lower, w+",") || strings.HasPrefix(lower, w+"!") {
			return ConfirmYes
		}
	}
	return ConfirmNone
}

// IsHumanRequest reports whether the message explicitly asks for a person.
func IsHumanRequest(message string) bool {
	message = strings.TrimSpace(message)
	if message == "" {
		return false
	}
	for _, pat := range humanRequestPatterns {
		if pat.MatchString(message) {
			return true
		}
	}
	return false
}

// IsFrustrated reports whether the message carries high-urgency negative
// sentiment, judged by keyword only.
func IsFrustrated(lower string) bool {
	lower = strings.ToLower(lower)
	for _, kw := range frustrationKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

func (e *Extractor) detectIntent(lower string) Intent {
	if IsHumanRequest(lower) {
		return IntentHuman
	}
	if cancelIntentPattern.MatchString(lower) {
		return IntentCancel
	}
	if rescheduleIntentPattern.MatchString(lower) {
		return IntentReschedule
	}
	if scheduleIntentPattern.MatchString(lower) {
		return IntentSchedule
	}
	for _, kw := range greetingKeywords {
		if lower == kw || strings.HasPrefix(lower, kw+" ") || strings.HasPrefix(lower, kw+",") || strings.HasPrefix(lower, kw+"!") {
			return IntentGreeting
		}
	}
	return IntentNone
}
