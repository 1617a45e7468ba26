package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/lucasdmc/atendeai-lify-admin-sub007/internal/approval"
	"github.com/lucasdmc/atendeai-lify-admin-sub007/internal/http/middleware"
	"github.com/lucasdmc/atendeai-lify-admin-sub007/pkg/logging"
)

// AdminApprovalsHandler exposes the operator review queue.
type AdminApprovalsHandler struct {
	approvals *approval.Service
	logger    *logging.Logger
}

// NewAdminApprovalsHandler creates the approvals admin handler.
func NewAdminApprovalsHandler(approvals *approval.Service, logger *logging.Logger) *AdminApprovalsHandler {
	if approvals == nil {
		panic("handlers: approval service cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &AdminApprovalsHandler{approvals: approvals, logger: logger}
}

// ListPending returns every request waiting for review, oldest first.
func (h *AdminApprovalsHandler) ListPending(w http.ResponseWriter, r *http.Request) {
	requests, err := h.approvals.Pending(r.Context())
	if err != nil {
		h.logger.Error("failed to list pending approvals", "error", err)
		http.Error(w, "failed to list approvals", http.StatusInternalServerError)
		return
	}
	if requests == nil {
		requests = []approval.Request{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"requests": requests})
}

type decisionPayload struct {
	Approve bool `json:"approve"`
}

// Decide executes an operator decision on one request. The operator identity
// comes from the admin JWT subject.
func (h *AdminApprovalsHandler) Decide(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "requestID")
	if id == "" {
		http.Error(w, "request id required", http.StatusBadRequest)
		return
	}

	var payload decisionPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}

	decidedBy := "operator"
	if claims, ok := middleware.AdminClaimsFromContext(r.Context()); ok && claims.Subject != "" {
		decidedBy = claims.Subject
	}

	req, err := h.approvals.Decide(r.Context(), id, payload.Approve, decidedBy)
	switch {
	case errors.Is(err, approval.ErrNotFound):
		http.Error(w, "approval request not found", http.StatusNotFound)
		return
	case errors.Is(err, approval.ErrAlreadyDecided):
		writeJSON(w, http.StatusConflict, map[string]any{
			"error":   "request already decided",
			"request": req,
		})
		return
	case err != nil:
		h.logger.Error("failed to decide approval", "error", err, "id", id)
		http.Error(w, "failed to decide request", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"request": req})
}
