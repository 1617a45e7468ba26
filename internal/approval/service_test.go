package approval

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingNotifier struct {
	requests []Request
}

func (n *recordingNotifier) NotifyApproval(_ context.Context, req Request) error {
	n.requests = append(n.requests, req)
	return nil
}

type recordingMessenger struct {
	sent map[string]string
	err  error
}

func (m *recordingMessenger) Send(_ context.Context, to, message string) error {
	if m.err != nil {
		return m.err
	}
	if m.sent == nil {
		m.sent = make(map[string]string)
	}
	m.sent[to] = message
	return nil
}

type recordingMutator struct {
	applied []Request
	err     error
}

func (m *recordingMutator) Apply(_ context.Context, req Request) error {
	if m.err != nil {
		return m.err
	}
	m.applied = append(m.applied, req)
	return nil
}

func expectCreate(mock sqlmock.Sqlmock) {
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE approval_requests").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO approval_requests").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
}

func expectDecide(mock sqlmock.Sqlmock, status string) {
	now := time.Now().UTC()
	mock.ExpectExec("UPDATE approval_requests").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT id, kind, phone").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "kind", "phone", "details", "status", "created_at", "decided_at", "decided_by",
		}).AddRow("req-1", "cancel", "5511999990000", "", status, now, now, "maria@clinica"))
}

func TestSubmitNotifiesOperators(t *testing.T) {
	store, mock := newMockStore(t)
	expectCreate(mock)

	notifier := &recordingNotifier{}
	svc := NewService(store, nil, WithNotifier(notifier))

	require.NoError(t, svc.Submit(context.Background(), "5511999990000", "cancel", "quero cancelar"))
	require.Len(t, notifier.requests, 1)
	assert.Equal(t, KindCancel, notifier.requests[0].Kind)
}

func TestSubmitRejectsUnknownKind(t *testing.T) {
	store, _ := newMockStore(t)
	svc := NewService(store, nil)

	err := svc.Submit(context.Background(), "5511999990000", "delete_everything", "")
	assert.Error(t, err)
}

func TestDecideApproveAppliesMutationAndMessagesPatient(t *testing.T) {
	store, mock := newMockStore(t)
	expectDecide(mock, "approved")

	messenger := &recordingMessenger{}
	mutator := &recordingMutator{}
	svc := NewService(store, nil, WithMessenger(messenger), WithMutator(mutator))

	req, err := svc.Decide(context.Background(), "req-1", true, "maria@clinica")
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, req.Status)

	require.Len(t, mutator.applied, 1)
	assert.Contains(t, messenger.sent["5511999990000"], "aprovado")
}

func TestDecideRejectSkipsMutation(t *testing.T) {
	store, mock := newMockStore(t)
	expectDecide(mock, "rejected")

	messenger := &recordingMessenger{}
	mutator := &recordingMutator{}
	svc := NewService(store, nil, WithMessenger(messenger), WithMutator(mutator))

	req, err := svc.Decide(context.Background(), "req-1", false, "maria@clinica")
	require.NoError(t, err)
	assert.Equal(t, StatusRejected, req.Status)

	assert.Empty(t, mutator.applied)
	assert.Contains(t, messenger.sent["5511999990000"], "não pôde ser aprovado")
}

func TestDecideMutationFailureKeepsDecision(t *testing.T) {
	store, mock := newMockStore(t)
	expectDecide(mock, "approved")

	messenger := &recordingMessenger{}
	mutator := &recordingMutator{err: errors.New("calendar down")}
	svc := NewService(store, nil, WithMessenger(messenger), WithMutator(mutator))

	req, err := svc.Decide(context.Background(), "req-1", true, "maria@clinica")
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, req.Status)
	// Patient still hears back even when the agenda call failed.
	assert.NotEmpty(t, messenger.sent["5511999990000"])
}
