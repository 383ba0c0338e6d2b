package controllers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/lnkday/automation-service/internal/core"
	"github.com/lnkday/automation-service/internal/domain"
	"github.com/lnkday/automation-service/internal/engine"
	"github.com/lnkday/automation-service/internal/models"
)

// jobLister exposes the scheduler's live timer snapshot.
type jobLister interface {
	Jobs() []models.ScheduledJobInfo
}

type StatsController struct {
	AuthController
	Definitions engine.DefinitionRepo
	Logs        engine.ExecutionLogRepo
	Schedules   jobLister
}

func NewStatsController(definitions engine.DefinitionRepo, logs engine.ExecutionLogRepo,
	schedules jobLister, userRepo engine.UserRepo, clock core.Clock) *StatsController {
	if clock == nil {
		clock = core.NewRealClock()
	}
	return &StatsController{
		Definitions: definitions,
		Logs:        logs,
		Schedules:   schedules,
		AuthController: AuthController{
			UserRepo: userRepo,
			Clock:    clock,
		},
	}
}

func (c *StatsController) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/workflows/stats", c.RequireAuth(c.handleGetStats))
	mux.HandleFunc("GET /api/scheduler/jobs", c.RequireAuth(c.handleGetSchedules))
}

func (c *StatsController) handleGetStats(w http.ResponseWriter, r *http.Request) {
	total, enabled, err := c.Definitions.CountByEnabled()
	if err != nil {
		slog.Error("Failed to count workflows", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	since := c.Clock.Now().UTC().Add(-24 * time.Hour)
	success, err := c.Logs.CountByStatusSince(domain.ExecutionSuccess, since)
	if err != nil {
		slog.Error("Failed to count successful runs", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	failed, err := c.Logs.CountByStatusSince(domain.ExecutionFailed, since)
	if err != nil {
		slog.Error("Failed to count failed runs", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(models.WorkflowStatsResponse{
		Total:         total,
		Enabled:       enabled,
		Disabled:      total - enabled,
		Success24h:    success,
		Failed24h:     failed,
		ScheduledJobs: len(c.Schedules.Jobs()),
	})
}

func (c *StatsController) handleGetSchedules(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(c.Schedules.Jobs())
}
