package escalation

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lucasdmc/atendeai-lify-admin-sub007/internal/extract"
)

type capturedNotifier struct {
	events []Event
	err    error
}

func (n *capturedNotifier) NotifyEscalation(_ context.Context, ev Event) error {
	n.events = append(n.events, ev)
	return n.err
}

func TestImmediateHumanRequest(t *testing.T) {
	s := NewSupervisor(nil, nil)

	reason, ok := s.Immediate("quero falar com um atendente", extract.Fields{Intent: extract.IntentHuman}, 0)
	require.True(t, ok)
	assert.Equal(t, ReasonHumanRequest, reason)
}

func TestImmediateFrustrationNeedsRepetition(t *testing.T) {
	s := NewSupervisor(nil, nil)

	// Frustration alone is not enough.
	_, ok := s.Immediate("isso é um absurdo", extract.Fields{Frustrated: true}, 0)
	assert.False(t, ok)

	reason, ok := s.Immediate("isso é um absurdo", extract.Fields{Frustrated: true}, 1)
	require.True(t, ok)
	assert.Equal(t, ReasonFrustration, reason)
}

func TestImmediateOrdinaryMessage(t *testing.T) {
	s := NewSupervisor(nil, nil)

	_, ok := s.Immediate("quero agendar cardiologia", extract.Fields{Intent: extract.IntentSchedule}, 2)
	assert.False(t, ok)
}

func TestEscalateNotifiesOperators(t *testing.T) {
	notifier := &capturedNotifier{}
	s := NewSupervisor(notifier, nil)

	s.Escalate(context.Background(), "5511999990000", ReasonLoop, "não entendi")

	require.Len(t, notifier.events, 1)
	ev := notifier.events[0]
	assert.Equal(t, "5511999990000", ev.Phone)
	assert.Equal(t, ReasonLoop, ev.Reason)
	assert.Equal(t, "não entendi", ev.LastMessage)
	assert.False(t, ev.At.IsZero())
}

func TestEscalateSwallowsNotifierFailure(t *testing.T) {
	notifier := &capturedNotifier{err: errors.New("smtp down")}
	s := NewSupervisor(notifier, nil)

	assert.NotPanics(t, func() {
		s.Escalate(context.Background(), "5511999990000", ReasonHumanRequest, "oi")
	})
}

func TestEscalateNilNotifier(t *testing.T) {
	s := NewSupervisor(nil, nil)
	assert.NotPanics(t, func() {
		s.Escalate(context.Background(), "5511999990000", ReasonLoop, "")
	})
}
