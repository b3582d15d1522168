// Package handlers implements the HTTP handlers for the support bot API.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/adrianfolkeson/vallhamragruppen-support-bot/internal/api/middleware"
	"github.com/adrianfolkeson/vallhamragruppen-support-bot/internal/bot"
	"github.com/adrianfolkeson/vallhamragruppen-support-bot/internal/llm"
	"github.com/adrianfolkeson/vallhamragruppen-support-bot/internal/memory"
	"github.com/adrianfolkeson/vallhamragruppen-support-bot/internal/metrics"
	"github.com/adrianfolkeson/vallhamragruppen-support-bot/internal/tenant"
	"github.com/adrianfolkeson/vallhamragruppen-support-bot/pkg/models"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Handlers holds all handler dependencies.
type Handlers struct {
	Bot       *bot.Orchestrator
	Sessions  *memory.Store
	Tenants   *tenant.Registry
	Collector *metrics.Collector
	Models    *llm.Registry
}

// New creates a Handlers instance.
func New(orch *bot.Orchestrator, sessions *memory.Store, tenants *tenant.Registry, collector *metrics.Collector, models *llm.Registry) *Handlers {
	return &Handlers{
		Bot:       orch,
		Sessions:  sessions,
		Tenants:   tenants,
		Collector: collector,
		Models:    models,
	}
}

type chatRequest struct {
	Message   string              `json:"message"`
	SessionID string              `json:"session_id,omitempty"`
	History   []models.TurnRecord `json:"history,omitempty"`
}

type chatResponse struct {
	SessionID string `json:"session_id"`
	*models.RouterResult
}

// Chat handles POST /api/v1/chat. A missing session ID starts a new
// conversation.
func (h *Handlers) Chat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.SessionID == "" {
		req.SessionID = uuid.NewString()
	}

	msg := &models.IncomingMessage{
		Text:      req.Message,
		SessionID: req.SessionID,
		TenantID:  middleware.GetTenantID(r.Context()),
		History:   req.History,
	}

	result, err := h.Bot.Process(r.Context(), msg)
	if err != nil {
		writeProcessError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, chatResponse{SessionID: req.SessionID, RouterResult: result})
}

// GetSession handles GET /api/v1/sessions/{id}.
func (h *Handlers) GetSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	session, err := h.Sessions.Get(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	writeJSON(w, http.StatusOK, session)
}

// ResetSession handles POST /api/v1/sessions/{id}/reset. Resetting clears
// the escalation flag so the bot resumes answering.
func (h *Handlers) ResetSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.Sessions.Reset(r.Context(), id); err != nil {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	log.Info().Str("session", id).Msg("Session reset")
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset", "session_id": id})
}

// Health handles GET /health. Registered model drivers are pinged and
// reported per kind; a failing driver does not mark the service down,
// the cascade degrades to its fallback reply without it.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	out := map[string]any{
		"status":  "healthy",
		"service": "support-bot",
	}
	if h.Models != nil {
		drivers := make(map[string]string)
		for kind, err := range h.Models.HealthCheckAll(r.Context()) {
			if err != nil {
				drivers[kind] = err.Error()
			} else {
				drivers[kind] = "ok"
			}
		}
		out["models"] = drivers
	}
	writeJSON(w, http.StatusOK, out)
}

// Metrics handles GET /api/v1/metrics.
func (h *Handlers) Metrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Collector.Snapshot(h.Sessions.Len()))
}

// ReloadTenant handles POST /api/v1/tenants/{id}/reload.
func (h *Handlers) ReloadTenant(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := h.Tenants.Reload(r.Context(), id); err != nil {
		writeProcessError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "reloaded", "tenant": id})
}

// writeProcessError maps domain errors to HTTP status codes. Remote model
// errors never reach here: the orchestrator degrades them to fallback
// replies.
func writeProcessError(w http.ResponseWriter, err error) {
	switch {
	case models.IsValidation(err):
		writeError(w, http.StatusBadRequest, err.Error())
	case models.IsTenantNotFound(err):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, models.ErrSessionNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		log.Error().Err(err).Msg("Request failed")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
