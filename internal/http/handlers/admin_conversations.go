package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/lucasdmc/atendeai-lify-admin-sub007/internal/conversation"
	"github.com/lucasdmc/atendeai-lify-admin-sub007/pkg/logging"
)

// EscalationClearer releases an escalated conversation back to the bot.
type EscalationClearer interface {
	ClearEscalation(ctx context.Context, phone string) error
}

// AdminConversationsHandler lets operators inspect transcripts and release
// escalated conversations.
type AdminConversationsHandler struct {
	engine     EscalationClearer
	transcript *conversation.TranscriptStore
	logger     *logging.Logger
}

// NewAdminConversationsHandler creates the conversations admin handler.
// transcript may be nil; history endpoints then return empty lists.
func NewAdminConversationsHandler(engine EscalationClearer, transcript *conversation.TranscriptStore, logger *logging.Logger) *AdminConversationsHandler {
	if engine == nil {
		panic("handlers: conversation engine cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &AdminConversationsHandler{
		engine:     engine,
		transcript: transcript,
		logger:     logger,
	}
}

// ClearEscalation drops an escalated conversation's state so the next inbound
// message starts the automated flow from scratch.
func (h *AdminConversationsHandler) ClearEscalation(w http.ResponseWriter, r *http.Request) {
	phone := chi.URLParam(r, "phone")
	if phone == "" {
		http.Error(w, "phone required", http.StatusBadRequest)
		return
	}

	if err := h.engine.ClearEscalation(r.Context(), phone); err != nil {
		h.logger.Error("failed to clear escalation", "error", err, "phone", phone)
		http.Error(w, "failed to clear escalation", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cleared", "phone": phone})
}

// GetTranscript returns the stored message history for a phone, oldest first.
func (h *AdminConversationsHandler) GetTranscript(w http.ResponseWriter, r *http.Request) {
	phone := chi.URLParam(r, "phone")
	if phone == "" {
		http.Error(w, "phone required", http.StatusBadRequest)
		return
	}

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	messages, err := h.transcript.History(r.Context(), phone, limit)
	if err != nil {
		h.logger.Error("failed to load transcript", "error", err, "phone", phone)
		http.Error(w, "failed to load transcript", http.StatusInternalServerError)
		return
	}
	if messages == nil {
		messages = []conversation.TranscriptMessage{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"phone": phone, "messages": messages})
}
