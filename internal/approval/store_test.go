package approval

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewStore(db), mock
}

func TestCreateSupersedesOlderPending(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE approval_requests").
		WithArgs(string(StatusSuperseded), sqlmock.AnyArg(), "5511999990000", string(KindCancel), string(StatusPending)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO approval_requests").
		WithArgs(sqlmock.AnyArg(), string(KindCancel), "5511999990000", "quero cancelar", string(StatusPending), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	req, err := store.Create(context.Background(), "5511999990000", KindCancel, "quero cancelar")
	require.NoError(t, err)
	assert.NotEmpty(t, req.ID)
	assert.Equal(t, StatusPending, req.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateRequiresPhone(t *testing.T) {
	store, _ := newMockStore(t)

	_, err := store.Create(context.Background(), "", KindCancel, "")
	assert.Error(t, err)
}

func TestDecideApproves(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now().UTC()

	mock.ExpectExec("UPDATE approval_requests").
		WithArgs(string(StatusApproved), sqlmock.AnyArg(), "maria@clinica", "req-1", string(StatusPending)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT id, kind, phone").
		WithArgs("req-1").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "kind", "phone", "details", "status", "created_at", "decided_at", "decided_by",
		}).AddRow("req-1", "cancel", "5511999990000", "", "approved", now, now, "maria@clinica"))

	req, err := store.Decide(context.Background(), "req-1", StatusApproved, "maria@clinica")
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, req.Status)
	assert.Equal(t, "maria@clinica", req.DecidedBy)
	require.NotNil(t, req.DecidedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDecideAlreadyDecided(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now().UTC()

	mock.ExpectExec("UPDATE approval_requests").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT id, kind, phone").
		WithArgs("req-1").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "kind", "phone", "details", "status", "created_at", "decided_at", "decided_by",
		}).AddRow("req-1", "cancel", "5511999990000", "", "rejected", now, now, "maria@clinica"))

	req, err := store.Decide(context.Background(), "req-1", StatusApproved, "joao@clinica")
	assert.ErrorIs(t, err, ErrAlreadyDecided)
	assert.Equal(t, StatusRejected, req.Status)
}

func TestDecideRejectsInvalidStatus(t *testing.T) {
	store, _ := newMockStore(t)

	_, err := store.Decide(context.Background(), "req-1", StatusPending, "x")
	assert.Error(t, err)
}

func TestGetNotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("SELECT id, kind, phone").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "kind", "phone", "details", "status", "created_at", "decided_at", "decided_by",
		}))

	_, err := store.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListPending(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now().UTC()

	mock.ExpectQuery("SELECT id, kind, phone").
		WithArgs(string(StatusPending)).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "kind", "phone", "details", "status", "created_at", "decided_at", "decided_by",
		}).
			AddRow("req-1", "cancel", "5511999990000", "quero cancelar", "pending", now, nil, "").
			AddRow("req-2", "reschedule", "5511888880000", "", "pending", now, nil, ""))

	reqs, err := store.ListPending(context.Background())
	require.NoError(t, err)
	require.Len(t, reqs, 2)
	assert.Equal(t, KindCancel, reqs[0].Kind)
	assert.Nil(t, reqs[0].DecidedAt)
}
