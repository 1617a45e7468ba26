package loop

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJaccard(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want float64
	}{
		{"identical", "qual horário você prefere?", "qual horário você prefere?", 1.0},
		{"disjoint", "bom dia", "qual especialidade?", 0.0},
		{"case and punctuation ignored", "Qual horário?", "qual horário", 1.0},
		{"both empty", "", "", 1.0},
		{"one empty", "oi", "", 0.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Jaccard(tt.a, tt.b), 0.001)
		})
	}
}

func TestJaccardPartialOverlap(t *testing.T) {
	// 3 shared tokens of 5 total -> 0.6, below the repeat threshold.
	sim := Jaccard("qual horário você prefere", "qual horário você gostaria")
	assert.InDelta(t, 0.6, sim, 0.001)
}

func TestInspectDistinctMessagesResetRepeats(t *testing.T) {
	d := NewDetector(nil)

	v := d.Inspect("qual especialidade você deseja?", "qual horário prefere?", 2, 1)
	assert.False(t, v.Repeated)
	assert.Equal(t, 0, v.ConsecutiveRepeats)
	assert.Equal(t, 1, v.LoopCount)
	assert.False(t, v.ShouldEscalate)
}

func TestInspectThreeIdenticalTriggersVariant(t *testing.T) {
	d := NewDetector(nil)
	msg := "Qual especialidade você deseja agendar?"

	v := d.Inspect(msg, msg, 0, 0)
	require.True(t, v.Repeated)
	assert.Equal(t, 1, v.ConsecutiveRepeats)
	assert.False(t, v.Reworded)

	v = d.Inspect(msg, msg, v.ConsecutiveRepeats, v.LoopCount)
	assert.Equal(t, 2, v.ConsecutiveRepeats)
	assert.False(t, v.Reworded)

	// Third repeat: the phrasing changes instead of sending the identical
	// text again, and the repeat run resets.
	v = d.Inspect(msg, msg, v.ConsecutiveRepeats, v.LoopCount)
	require.True(t, v.Reworded)
	assert.NotEqual(t, msg, v.Message)
	assert.Equal(t, 0, v.ConsecutiveRepeats)
	assert.Equal(t, 3, v.LoopCount)
	assert.False(t, v.ShouldEscalate)
}

func TestInspectLoopAfterVariantEscalates(t *testing.T) {
	d := NewDetector(nil)
	msg := "Qual especialidade você deseja agendar?"

	// The variant already fired once (loopCount 3); the next repeat hands
	// the conversation to a human.
	v := d.Inspect(msg, msg, 0, 3)
	assert.True(t, v.ShouldEscalate)
	assert.Equal(t, 4, v.LoopCount)
}

func TestInspectCumulativeLoopCountEscalates(t *testing.T) {
	d := NewDetector(nil)
	msg := "Não entendi, pode repetir?"

	v := d.Inspect(msg, msg, 0, 2)
	assert.True(t, v.ShouldEscalate)
	assert.Equal(t, 3, v.LoopCount)
}

func TestInspectFirstMessageNeverRepeats(t *testing.T) {
	d := NewDetector(nil)

	v := d.Inspect("", "Olá! Bem-vindo à clínica.", 0, 0)
	assert.False(t, v.Repeated)
	assert.Equal(t, "Olá! Bem-vindo à clínica.", v.Message)
}

func TestCategorize(t *testing.T) {
	tests := []struct {
		in   string
		want Category
	}{
		{"Olá! Bem-vindo à clínica.", CategoryGreeting},
		{"Qual especialidade você deseja agendar?", CategoryAppointment},
		{"Desculpe, não entendi. Pode repetir?", CategoryClarification},
		{"Tudo certo por aqui.", CategoryGeneral},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Categorize(tt.in), "input %q", tt.in)
	}
}

func TestVariantRotates(t *testing.T) {
	d := NewDetector(nil)
	msg := "Qual especialidade você deseja agendar?"

	first := d.variant(msg, 3)
	second := d.variant(msg, 4)
	assert.NotEqual(t, first, second)
}
