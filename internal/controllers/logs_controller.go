package controllers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/lnkday/automation-service/internal/core"
	"github.com/lnkday/automation-service/internal/engine"
	"github.com/lnkday/automation-service/internal/models"
)

type LogsController struct {
	AuthController
	Logs engine.ExecutionLogRepo
}

func NewLogsController(logs engine.ExecutionLogRepo, userRepo engine.UserRepo, clock core.Clock) *LogsController {
	if clock == nil {
		clock = core.NewRealClock()
	}
	return &LogsController{
		Logs: logs,
		AuthController: AuthController{
			UserRepo: userRepo,
			Clock:    clock,
		},
	}
}

func (c *LogsController) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/workflows/{id}/logs", c.RequireAuth(c.handleListLogs))
	mux.HandleFunc("GET /api/logs/{id}", c.RequireAuth(c.handleGetLog))
}

func (c *LogsController) handleListLogs(w http.ResponseWriter, r *http.Request) {
	workflowID := r.PathValue("id")
	if workflowID == "" {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}
	limit := queryInt(r, "limit", 0)
	offset := queryInt(r, "offset", 0)

	logs, err := c.Logs.FindByWorkflowID(workflowID, limit, offset)
	if err != nil {
		slog.Error("Failed to list execution logs", "workflow_id", workflowID, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	out := make([]models.ExecutionLogApiResponse, 0, len(*logs))
	for i := range *logs {
		out = append(out, toLogApiResponse(&(*logs)[i]))
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(out)
}

func (c *LogsController) handleGetLog(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}
	log, err := c.Logs.FindByID(id)
	if err != nil {
		slog.Error("Failed to load execution log", "execution_id", id, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if log == nil {
		http.Error(w, "execution log not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toLogApiResponse(log))
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return fallback
	}
	return v
}
