package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lucasdmc/atendeai-lify-admin-sub007/internal/approval"
	"github.com/lucasdmc/atendeai-lify-admin-sub007/internal/availability"
)

func newApprovalsFixture(t *testing.T) (*AdminApprovalsHandler, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	svc := approval.NewService(approval.NewStore(db), nil)
	return NewAdminApprovalsHandler(svc, nil), mock
}

func requestRows(id string) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "kind", "phone", "details", "status", "created_at", "decided_at", "decided_by",
	}).AddRow(id, "cancel", "5511999990000", "cancelar consulta", "pending", time.Now(), nil, "")
}

func TestListPendingApprovals(t *testing.T) {
	handler, mock := newApprovalsFixture(t)
	mock.ExpectQuery(`SELECT id, kind, phone, .* FROM approval_requests`).
		WithArgs("pending").
		WillReturnRows(requestRows("req-1"))

	req := httptest.NewRequest(http.MethodGet, "/admin/approvals", nil)
	rec := httptest.NewRecorder()
	handler.ListPending(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "req-1")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListPendingApprovalsEmpty(t *testing.T) {
	handler, mock := newApprovalsFixture(t)
	mock.ExpectQuery(`SELECT id, kind, phone, .* FROM approval_requests`).
		WithArgs("pending").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "kind", "phone", "details", "status", "created_at", "decided_at", "decided_by",
		}))

	rec := httptest.NewRecorder()
	handler.ListPending(rec, httptest.NewRequest(http.MethodGet, "/admin/approvals", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"requests":[]`)
}

func decideRequest(handler *AdminApprovalsHandler, id, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/admin/approvals/"+id+"/decision", strings.NewReader(body))
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("requestID", id)
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
	rec := httptest.NewRecorder()
	handler.Decide(rec, req)
	return rec
}

func TestDecideApprovalApproves(t *testing.T) {
	handler, mock := newApprovalsFixture(t)
	mock.ExpectExec(`UPDATE approval_requests`).
		WithArgs("approved", sqlmock.AnyArg(), "operator", "req-1", "pending").
		WillReturnResult(sqlmock.NewResult(0, 1))
	approvedRows := sqlmock.NewRows([]string{
		"id", "kind", "phone", "details", "status", "created_at", "decided_at", "decided_by",
	}).AddRow("req-1", "cancel", "5511999990000", "", "approved", time.Now(), time.Now(), "operator")
	mock.ExpectQuery(`SELECT id, kind, phone, .* WHERE id =`).
		WithArgs("req-1").
		WillReturnRows(approvedRows)

	rec := decideRequest(handler, "req-1", `{"approve":true}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"approved"`)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDecideApprovalAlreadyDecided(t *testing.T) {
	handler, mock := newApprovalsFixture(t)
	mock.ExpectExec(`UPDATE approval_requests`).
		WithArgs("rejected", sqlmock.AnyArg(), "operator", "req-1", "pending").
		WillReturnResult(sqlmock.NewResult(0, 0))
	decidedRows := sqlmock.NewRows([]string{
		"id", "kind", "phone", "details", "status", "created_at", "decided_at", "decided_by",
	}).AddRow("req-1", "cancel", "5511999990000", "", "approved", time.Now(), time.Now(), "someone")
	mock.ExpectQuery(`SELECT id, kind, phone, .* WHERE id =`).
		WithArgs("req-1").
		WillReturnRows(decidedRows)

	rec := decideRequest(handler, "req-1", `{"approve":false}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

type stubClearer struct {
	cleared []string
}

func (c *stubClearer) ClearEscalation(_ context.Context, phone string) error {
	c.cleared = append(c.cleared, phone)
	return nil
}

func TestClearEscalation(t *testing.T) {
	clearer := &stubClearer{}
	handler := NewAdminConversationsHandler(clearer, nil, nil)

	req := httptest.NewRequest(http.MethodPost, "/admin/conversations/5511999990000/clear-escalation", nil)
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("phone", "5511999990000")
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
	rec := httptest.NewRecorder()
	handler.ClearEscalation(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"5511999990000"}, clearer.cleared)
}

type staticRules struct{ rules []availability.Rule }

func (s staticRules) Rules(context.Context, string) ([]availability.Rule, error) {
	return s.rules, nil
}

func (s staticRules) Exceptions(context.Context, string, time.Time, time.Time) ([]availability.Exception, error) {
	return nil, nil
}

func newAvailabilityFixture(t *testing.T) (*AdminAvailabilityHandler, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	store := availability.NewStore(db)
	engine := availability.NewEngine(store, nil, nil)
	return NewAdminAvailabilityHandler(store, engine, nil), mock
}

func TestUpsertRuleValidatesPayload(t *testing.T) {
	handler, _ := newAvailabilityFixture(t)

	req := httptest.NewRequest(http.MethodPut, "/admin/availability/rules",
		strings.NewReader(`{"service":"cardiologia"}`))
	rec := httptest.NewRecorder()
	handler.UpsertRule(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpsertRulePersists(t *testing.T) {
	handler, mock := newAvailabilityFixture(t)
	mock.ExpectExec(`INSERT INTO availability_rules`).
		WithArgs("cardiologia", 1, "09:00", "18:00", 30, "", "", true, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	body := `{"service":"cardiologia","weekday":1,"start_time":"09:00","end_time":"18:00","slot_duration_minutes":30,"is_active":true}`
	req := httptest.NewRequest(http.MethodPut, "/admin/availability/rules", strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.UpsertRule(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAddExceptionValidatesDate(t *testing.T) {
	handler, _ := newAvailabilityFixture(t)

	body := `{"service":"cardiologia","date":"15/04/2026","closed":true}`
	req := httptest.NewRequest(http.MethodPost, "/admin/availability/exceptions", strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.AddException(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
