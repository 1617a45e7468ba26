// Package loop keeps the bot from repeating itself. Every candidate outgoing
// message is compared against the previous one; near-duplicates get reworded,
// and a conversation that keeps cycling is flagged for escalation.
package loop

import (
	"regexp"
	"strings"

	"github.com/lucasdmc/atendeai-lify-admin-sub007/pkg/logging"
)

const (
	// similarityThreshold above which two messages count as the same thing
	// said twice.
	similarityThreshold = 0.8
	// repeatLimit consecutive near-duplicates before the phrasing is swapped.
	repeatLimit = 3
	// escalateLimit cumulative repeats before the conversation is handed off.
	escalateLimit = 3
)

// Verdict is the outcome of inspecting one candidate message.
type Verdict struct {
	Message            string // candidate, possibly reworded
	Repeated           bool
	Reworded           bool
	ConsecutiveRepeats int
	LoopCount          int
	ShouldEscalate     bool
}

// Category buckets a bot message for variant selection.
type Category string

const (
	CategoryGreeting      Category = "greeting"
	CategoryAppointment   Category = "appointment"
	CategoryClarification Category = "clarification"
	CategoryGeneral       Category = "general"
)

var categoryPatterns = []struct {
	category Category
	pattern  *regexp.Regexp
}{
	{CategoryGreeting, regexp.MustCompile(`(?i)\b(ol[áa]|bem-vindo|bom dia|boa tarde|boa noite)\b`)},
	{CategoryAppointment, regexp.MustCompile(`(?i)\b(agendar|agendamento|consulta|hor[áa]rio|especialidade|data)\b`)},
	{CategoryClarification, regexp.MustCompile(`(?i)\b(n[ãa]o entendi|pode repetir|confirmar|n[ãa]o consegui)\b`)},
}

// variants holds the alternate phrasings used when the same message would be
// sent three times in a row.
var variants = map[Category][]string{
	CategoryGreeting: {
		"Oi! Estou aqui para ajudar com seu agendamento. Como posso ajudar?",
		"Olá novamente! Me conte o que você precisa: agendar, remarcar ou cancelar?",
	},
	CategoryAppointment: {
		"Vamos tentar de outro jeito: me diga a especialidade e o dia que prefere, tudo em uma mensagem.",
		"Para agilizar, você pode escrever algo como \"cardiologia amanhã às 14h\".",
	},
	CategoryClarification: {
		"Acho que não estamos nos entendendo. Pode escrever de outra forma?",
		"Desculpe a confusão! Tente me enviar a informação em uma frase curta.",
	},
	CategoryGeneral: {
		"Deixa eu reformular: me diga com suas palavras o que você precisa.",
		"Vou tentar explicar diferente. O que você gostaria de fazer agora?",
	},
}

// Detector compares candidate replies against the conversation's last bot
// message. It is stateless; the counters live in the conversation state.
type Detector struct {
	logger *logging.Logger
}

// NewDetector creates a loop detector.
func NewDetector(logger *logging.Logger) *Detector {
	if logger == nil {
		logger = logging.Default()
	}
	return &Detector{logger: logger}
}

// Inspect compares the candidate against the previous bot message and updates
// the repeat counters. When the candidate is the third consecutive
// near-duplicate it is replaced with a category variant; when the cumulative
// loop count reaches the limit the verdict asks for escalation.
func (d *Detector) Inspect(lastBotMessage, candidate string, consecutiveRepeats, loopCount int) Verdict {
	v := Verdict{
		Message:            candidate,
		ConsecutiveRepeats: consecutiveRepeats,
		LoopCount:          loopCount,
	}

	if lastBotMessage == "" || candidate == "" {
		v.ConsecutiveRepeats = 0
		return v
	}

	if Jaccard(lastBotMessage, candidate) <= similarityThreshold {
		v.ConsecutiveRepeats = 0
		return v
	}

	v.Repeated = true
	v.ConsecutiveRepeats++
	v.LoopCount++

	// Rewording gets priority over escalation on the turn both thresholds
	// trip: the variant is the escape hatch, escalation is for when the
	// conversation keeps looping after it.
	if v.ConsecutiveRepeats >= repeatLimit {
		v.Message = d.variant(candidate, v.ConsecutiveRepeats)
		v.Reworded = true
		v.ConsecutiveRepeats = 0
		d.logger.Info("repeated reply reworded",
			"category", string(Categorize(candidate)),
			"loop_count", v.LoopCount,
		)
		return v
	}

	if v.LoopCount >= escalateLimit {
		v.ShouldEscalate = true
		d.logger.Warn("conversation loop limit reached",
			"loop_count", v.LoopCount,
			"consecutive_repeats", v.ConsecutiveRepeats,
		)
	}
	return v
}

// variant picks an alternate phrasing for the candidate, rotating through the
// category's options so retries do not repeat the variant either.
func (d *Detector) variant(candidate string, attempt int) string {
	options := variants[Categorize(candidate)]
	if len(options) == 0 {
		options = variants[CategoryGeneral]
	}
	return options[attempt%len(options)]
}

// Categorize buckets a message by its dominant content. First matching
// pattern wins; unmatched messages fall into the general bucket.
func Categorize(message string) Category {
	for _, cp := range categoryPatterns {
		if cp.pattern.MatchString(message) {
			return cp.category
		}
	}
	return CategoryGeneral
}

// Jaccard computes token-set similarity between two messages: the size of the
// intersection over the size of the union of their lowercase word sets.
func Jaccard(a, b string) float64 {
	setA := tokenSet(a)
	setB := tokenSet(b)
	if len(setA) == 0 && len(setB) == 0 {
		return 1.0
	}
	if len(setA) == 0 || len(setB) == 0 {
		return 0.0
	}

	intersection := 0
	for tok := range setA {
		if setB[tok] {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	return float64(intersection) / float64(union)
}

var tokenSplitPattern = regexp.MustCompile(`[\s.,;:!?()"*]+`)

func tokenSet(s string) map[string]bool {
	set := make(map[string]bool)
	for _, tok := range tokenSplitPattern.Split(strings.ToLower(s), -1) {
		if tok != "" {
			set[tok] = true
		}
	}
	return set
}
