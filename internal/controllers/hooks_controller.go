package controllers

import (
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/lnkday/automation-service/internal/domain"
	"github.com/lnkday/automation-service/internal/engine"
)

// HooksController receives inbound webhook triggers. These routes are
// unauthenticated by design; each workflow guards itself with a shared
// secret and an optional source allow-list.
type HooksController struct {
	Definitions engine.DefinitionRepo
	Runner      workflowRunner
}

func NewHooksController(definitions engine.DefinitionRepo, runner workflowRunner) *HooksController {
	return &HooksController{Definitions: definitions, Runner: runner}
}

func (c *HooksController) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/hooks/{id}", c.handleInboundHook)
}

func (c *HooksController) handleInboundHook(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	wf, err := c.Definitions.FindByID(id)
	if err != nil {
		slog.Error("Failed to load workflow for hook", "workflow_id", id, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if wf == nil || wf.Trigger.Type != domain.TriggerWebhook {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	if !wf.Enabled {
		http.Error(w, "workflow disabled", http.StatusConflict)
		return
	}

	cfg := wf.Trigger.Config
	if cfg.Secret != "" {
		given := r.Header.Get("X-Webhook-Secret")
		if subtle.ConstantTimeCompare([]byte(given), []byte(cfg.Secret)) != 1 {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
	}
	if len(cfg.AllowedSources) > 0 {
		source := r.Header.Get("X-Event-Source")
		if !contains(cfg.AllowedSources, source) {
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
	}

	var payload map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil && err.Error() != "EOF" {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if payload == nil {
		payload = map[string]interface{}{}
	}

	log, err := c.Runner.Run(r.Context(), wf, "webhook", payload)
	if err != nil {
		slog.Error("Webhook-triggered run failed", "workflow_id", wf.ID, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]string{
		"executionId": log.ID,
		"status":      string(log.Status),
	})
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
