// Package handlers holds the HTTP endpoints: the WhatsApp inbound webhook and
// the operator admin API.
package handlers

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/lucasdmc/atendeai-lify-admin-sub007/internal/conversation"
	"github.com/lucasdmc/atendeai-lify-admin-sub007/pkg/logging"
)

// InboundPublisher enqueues a webhook delivery for asynchronous processing.
type InboundPublisher interface {
	EnqueueInbound(ctx context.Context, req conversation.InboundRequest) error
}

// webhookPayload is the gateway's inbound message delivery.
type webhookPayload struct {
	From      string    `json:"from"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
	PushName  string    `json:"pushName,omitempty"`
}

// WhatsAppWebhookHandler accepts inbound message deliveries from the WhatsApp
// gateway and queues them. The reply goes out asynchronously; the gateway only
// needs a fast 202.
type WhatsAppWebhookHandler struct {
	publisher InboundPublisher
	token     string
	logger    *logging.Logger
}

// NewWhatsAppWebhookHandler creates the webhook handler. token, when set, must
// match the X-Webhook-Token header on every delivery.
func NewWhatsAppWebhookHandler(publisher InboundPublisher, token string, logger *logging.Logger) *WhatsAppWebhookHandler {
	if publisher == nil {
		panic("handlers: publisher cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &WhatsAppWebhookHandler{
		publisher: publisher,
		token:     token,
		logger:    logger,
	}
}

// Handle processes one POST delivery.
func (h *WhatsAppWebhookHandler) Handle(w http.ResponseWriter, r *http.Request) {
	if h.token != "" {
		got := r.Header.Get("X-Webhook-Token")
		if subtle.ConstantTimeCompare([]byte(got), []byte(h.token)) != 1 {
			http.Error(w, "invalid webhook token", http.StatusUnauthorized)
			return
		}
	}

	var payload webhookPayload
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10)).Decode(&payload); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}

	payload.From = strings.TrimSpace(payload.From)
	payload.Text = strings.TrimSpace(payload.Text)
	if payload.From == "" || payload.Text == "" {
		http.Error(w, "from and text are required", http.StatusBadRequest)
		return
	}
	if payload.Timestamp.IsZero() {
		payload.Timestamp = time.Now().UTC()
	}

	req := conversation.InboundRequest{
		From:      payload.From,
		Text:      payload.Text,
		Timestamp: payload.Timestamp,
		PushName:  payload.PushName,
	}
	if err := h.publisher.EnqueueInbound(r.Context(), req); err != nil {
		h.logger.Error("failed to enqueue inbound message", "error", err, "from", payload.From)
		http.Error(w, "failed to queue message", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
