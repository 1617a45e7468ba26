package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/lucasdmc/atendeai-lify-admin-sub007/internal/availability"
	"github.com/lucasdmc/atendeai-lify-admin-sub007/pkg/logging"
)

// AdminAvailabilityHandler manages the working-hour configuration and lets
// operators preview the slots patients will be offered.
type AdminAvailabilityHandler struct {
	store  *availability.Store
	engine *availability.Engine
	logger *logging.Logger
}

// NewAdminAvailabilityHandler creates the availability admin handler.
func NewAdminAvailabilityHandler(store *availability.Store, engine *availability.Engine, logger *logging.Logger) *AdminAvailabilityHandler {
	if store == nil {
		panic("handlers: availability store cannot be nil")
	}
	if engine == nil {
		panic("handlers: availability engine cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &AdminAvailabilityHandler{store: store, engine: engine, logger: logger}
}

// ListRules returns the weekday rules for ?service=.
func (h *AdminAvailabilityHandler) ListRules(w http.ResponseWriter, r *http.Request) {
	service := r.URL.Query().Get("service")
	if service == "" {
		http.Error(w, "service query parameter required", http.StatusBadRequest)
		return
	}

	rules, err := h.store.Rules(r.Context(), service)
	if err != nil {
		h.logger.Error("failed to list availability rules", "error", err, "service", service)
		http.Error(w, "failed to list rules", http.StatusInternalServerError)
		return
	}
	if rules == nil {
		rules = []availability.Rule{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"service": service, "rules": rules})
}

// UpsertRule creates or replaces the rule for (service, weekday).
func (h *AdminAvailabilityHandler) UpsertRule(w http.ResponseWriter, r *http.Request) {
	var rule availability.Rule
	if err := json.NewDecoder(r.Body).Decode(&rule); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}
	if rule.Service == "" || rule.StartTime == "" || rule.EndTime == "" {
		http.Error(w, "service, start_time and end_time are required", http.StatusBadRequest)
		return
	}
	if rule.Weekday < time.Sunday || rule.Weekday > time.Saturday {
		http.Error(w, "weekday out of range", http.StatusBadRequest)
		return
	}

	if err := h.store.UpsertRule(r.Context(), rule); err != nil {
		h.logger.Error("failed to upsert availability rule", "error", err, "service", rule.Service)
		http.Error(w, "failed to save rule", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"rule": rule})
}

// AddException records a date override or closure.
func (h *AdminAvailabilityHandler) AddException(w http.ResponseWriter, r *http.Request) {
	var ex availability.Exception
	if err := json.NewDecoder(r.Body).Decode(&ex); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}
	if ex.Service == "" || ex.Date == "" {
		http.Error(w, "service and date are required", http.StatusBadRequest)
		return
	}
	if _, err := time.Parse("2006-01-02", ex.Date); err != nil {
		http.Error(w, "date must be YYYY-MM-DD", http.StatusBadRequest)
		return
	}

	if err := h.store.AddException(r.Context(), ex); err != nil {
		h.logger.Error("failed to add availability exception", "error", err, "service", ex.Service)
		http.Error(w, "failed to save exception", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"exception": ex})
}

// PreviewSlots returns the slots the bot would offer for ?service= right now.
func (h *AdminAvailabilityHandler) PreviewSlots(w http.ResponseWriter, r *http.Request) {
	service := r.URL.Query().Get("service")
	if service == "" {
		http.Error(w, "service query parameter required", http.StatusBadRequest)
		return
	}

	slots := h.engine.Generate(r.Context(), availability.Request{Service: service}, 24)
	if slots == nil {
		slots = []availability.Slot{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"service": service, "slots": slots})
}
