package extract

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// fixedNow is Tuesday 2026-03-10 09:00.
var fixedNow = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

func newTestExtractor() *Extractor {
	return New(nil).WithClock(func() time.Time { return fixedNow })
}

func TestExtractCombinedMessage(t *testing.T) {
	e := newTestExtractor()
	fields := e.Extract("quero agendar cardiologia para amanhã às 14h")

	assert.Equal(t, IntentSchedule, fields.Intent)
	assert.Equal(t, "cardiologia", fields.Specialty)
	assert.Equal(t, "2026-03-11", fields.Date)
	assert.Equal(t, "14:00", fields.Time)
	assert.Empty(t, fields.Email)
}

func TestExtractDateFormats(t *testing.T) {
	e := newTestExtractor()
	tests := []struct {
		in   string
		want string
	}{
		{"dia 15/04", "2026-04-15"},
		{"15/04/2026", "2026-04-15"},
		{"15/04/26", "2026-04-15"},
		{"pode ser 10/01", "2027-01-10"}, // past month rolls into next year
		{"hoje", "2026-03-10"},
		{"amanhã", "2026-03-11"},
		{"amanha de manhã", "2026-03-11"},
		{"45/99", ""},
		{"sem data nenhuma", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, e.Extract(tt.in).Date, "input %q", tt.in)
	}
}

func TestExtractTimeFormats(t *testing.T) {
	e := newTestExtractor()
	tests := []struct {
		in   string
		want string
	}{
		{"14:30", "14:30"},
		{"às 14:30", "14:30"},
		{"14h", "14:00"},
		{"14h45", "14:45"},
		{"às 9", "09:00"},
		{"as 16", "16:00"},
		{"25:00", ""},
		{"nenhum horário aqui", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, e.Extract(tt.in).Time, "input %q", tt.in)
	}
}

func TestExtractEmailAndName(t *testing.T) {
	e := newTestExtractor()

	fields := e.Extract("meu nome é João Silva, email joao.silva@gmail.com")
	assert.Equal(t, "João Silva", fields.Name)
	assert.Equal(t, "joao.silva@gmail.com", fields.Email)

	fields = e.Extract("me chamo Maria")
	assert.Equal(t, "Maria", fields.Name)

	fields = e.Extract("joao@gmail")
	assert.Equal(t, "joao@gmail", fields.Email)
	assert.Empty(t, fields.Name)
}

func TestMatchSpecialtySynonyms(t *testing.T) {
	e := newTestExtractor()
	tests := []struct {
		in   string
		want string
	}{
		{"preciso de um cardiologista", "cardiologia"},
		{"consulta de pele", "dermatologia"},
		{"é para minha criança", "pediatria"},
		{"CARDIO", "cardiologia"},
		{"quero marcar consulta", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, e.MatchSpecialty(tt.in), "input %q", tt.in)
	}
}

func TestMatchSpecialtyFirstMatchWins(t *testing.T) {
	e := newTestExtractor()
	// Both cardiologia and dermatologia appear; table order decides.
	assert.Equal(t, "cardiologia", e.MatchSpecialty("cardiologia ou dermatologia?"))
}

func TestDetectConfirmation(t *testing.T) {
	tests := []struct {
		in   string
		want ConfirmSignal
	}{
		{"sim", ConfirmYes},
		{"Sim, pode confirmar", ConfirmYes},
		{"correto", ConfirmYes},
		{"pode ser", ConfirmYes},
		{"não", ConfirmNo},
		{"nao, errado", ConfirmNo},
		{"alterar", ConfirmNo},
		{"joao@gmail.com", ConfirmNone},
		{"talvez", ConfirmNone},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, DetectConfirmation(tt.in), "input %q", tt.in)
	}
}

func TestDetectIntent(t *testing.T) {
	e := newTestExtractor()
	tests := []struct {
		in   string
		want Intent
	}{
		{"quero agendar uma consulta", IntentSchedule},
		{"preciso cancelar minha consulta", IntentCancel},
		{"quero remarcar", IntentReschedule},
		{"quero falar com um humano", IntentHuman},
		{"atendente humano agora", IntentHuman},
		{"oi", IntentGreeting},
		{"bom dia", IntentGreeting},
		{"qual o endereço de vocês?", IntentNone},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, e.Extract(tt.in).Intent, "input %q", tt.in)
	}
}

func TestHumanRequestBeatsCancel(t *testing.T) {
	e := newTestExtractor()
	// Explicit human request has priority even when other intents co-occur.
	fields := e.Extract("quero falar com atendente para cancelar")
	assert.Equal(t, IntentHuman, fields.Intent)
}

func TestIsFrustrated(t *testing.T) {
	assert.True(t, IsFrustrated("isso é um absurdo"))
	assert.True(t, IsFrustrated("que raiva, não funciona"))
	assert.False(t, IsFrustrated("obrigado pela ajuda"))
}

func TestExtractEmptyMessage(t *testing.T) {
	e := newTestExtractor()
	assert.Equal(t, Fields{}, e.Extract("   "))
}
