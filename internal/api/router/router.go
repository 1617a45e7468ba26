// Package router assembles the HTTP surface: the public webhook and health
// endpoints, the metrics scrape target and the JWT-protected admin API.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/lucasdmc/atendeai-lify-admin-sub007/internal/http/handlers"
	httpmiddleware "github.com/lucasdmc/atendeai-lify-admin-sub007/internal/http/middleware"
	"github.com/lucasdmc/atendeai-lify-admin-sub007/pkg/logging"
)

// Config holds router configuration.
type Config struct {
	Logger *logging.Logger

	Webhook            *handlers.WhatsAppWebhookHandler
	AdminApprovals     *handlers.AdminApprovalsHandler
	AdminConversations *handlers.AdminConversationsHandler
	AdminAvailability  *handlers.AdminAvailabilityHandler

	AdminAuthSecret string
	MetricsHandler  http.Handler

	// WebhookRate limits inbound webhook deliveries per IP. Zero disables.
	WebhookRate  float64
	WebhookBurst int
}

// New creates a chi router with all routes configured.
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	r.Group(func(public chi.Router) {
		public.Get("/health", handleHealth)
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
		if cfg.Webhook != nil {
			public.Route("/webhooks/whatsapp", func(wh chi.Router) {
				if cfg.WebhookRate > 0 {
					wh.Use(httpmiddleware.RateLimit(cfg.WebhookRate, cfg.WebhookBurst))
				}
				wh.Post("/", cfg.Webhook.Handle)
			})
		}
	})

	if cfg.AdminApprovals == nil && cfg.AdminConversations == nil && cfg.AdminAvailability == nil {
		return r
	}

	r.Route("/admin", func(admin chi.Router) {
		admin.Use(httpmiddleware.AdminJWT(cfg.AdminAuthSecret))

		if cfg.AdminApprovals != nil {
			admin.Get("/approvals", cfg.AdminApprovals.ListPending)
			admin.Post("/approvals/{requestID}/decision", cfg.AdminApprovals.Decide)
		}
		if cfg.AdminConversations != nil {
			admin.Get("/conversations/{phone}", cfg.AdminConversations.GetTranscript)
			admin.Post("/conversations/{phone}/clear-escalation", cfg.AdminConversations.ClearEscalation)
		}
		if cfg.AdminAvailability != nil {
			admin.Get("/availability/rules", cfg.AdminAvailability.ListRules)
			admin.Put("/availability/rules", cfg.AdminAvailability.UpsertRule)
			admin.Post("/availability/exceptions", cfg.AdminAvailability.AddException)
			admin.Get("/availability/slots", cfg.AdminAvailability.PreviewSlots)
		}
	})

	return r
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
