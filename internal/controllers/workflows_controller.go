package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/lnkday/automation-service/internal/core"
	"github.com/lnkday/automation-service/internal/domain"
	"github.com/lnkday/automation-service/internal/engine"
	"github.com/lnkday/automation-service/internal/models"
)

// workflowRunner is the slice of the orchestrator the controller needs for
// manual executions.
type workflowRunner interface {
	Run(ctx context.Context, wf *domain.WorkflowDefinition, triggerEvent string, payload map[string]interface{}) (*domain.ExecutionLog, error)
}

// timerReconciler keeps the cron timers in line after workflow mutations.
type timerReconciler interface {
	ReconcileWorkflow(wf *domain.WorkflowDefinition) error
	Unschedule(workflowID string)
}

type WorkflowsController struct {
	AuthController
	Definitions engine.DefinitionRepo
	Runner      workflowRunner
	Timers      timerReconciler
}

func NewWorkflowsController(definitions engine.DefinitionRepo, runner workflowRunner,
	timers timerReconciler, userRepo engine.UserRepo, clock core.Clock) *WorkflowsController {
	if clock == nil {
		clock = core.NewRealClock()
	}
	return &WorkflowsController{
		Definitions: definitions,
		Runner:      runner,
		Timers:      timers,
		AuthController: AuthController{
			UserRepo: userRepo,
			Clock:    clock,
		},
	}
}

func (c *WorkflowsController) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/workflows", c.RequireAuth(c.handleCreateWorkflow))
	mux.HandleFunc("GET /api/workflows", c.RequireAuth(c.handleListWorkflows))
	mux.HandleFunc("GET /api/workflows/{id}", c.RequireAuth(c.handleGetWorkflow))
	mux.HandleFunc("PUT /api/workflows/{id}", c.RequireAuth(c.handleUpdateWorkflow))
	mux.HandleFunc("DELETE /api/workflows/{id}", c.RequireAuth(c.handleDeleteWorkflow))
	mux.HandleFunc("POST /api/workflows/{id}/toggle", c.RequireAuth(c.handleToggleWorkflow))
	mux.HandleFunc("POST /api/workflows/{id}/duplicate", c.RequireAuth(c.handleDuplicateWorkflow))
	mux.HandleFunc("POST /api/workflows/{id}/execute", c.RequireAuth(c.handleExecuteWorkflow))
}

func (c *WorkflowsController) handleCreateWorkflow(w http.ResponseWriter, r *http.Request) {
	var req models.CreateWorkflowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	wf := &domain.WorkflowDefinition{
		Name:        req.Name,
		Description: req.Description,
		Trigger:     req.Trigger,
		Actions:     req.Actions,
		Conditions:  req.Conditions,
		Enabled:     req.Enabled == nil || *req.Enabled,
	}
	if err := validateDefinition(wf); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	id, err := c.Definitions.Save(wf)
	if err != nil {
		slog.Error("Failed to save workflow", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	wf.ID = id
	c.reconcileTimers(wf)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(models.CreateWorkflowResponse{ID: id})
}

func (c *WorkflowsController) handleListWorkflows(w http.ResponseWriter, r *http.Request) {
	defs, err := c.Definitions.FindAll()
	if err != nil {
		slog.Error("Failed to list workflows", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	out := make([]models.WorkflowApiResponse, 0, len(*defs))
	for i := range *defs {
		out = append(out, toApiResponse(&(*defs)[i]))
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(out)
}

func (c *WorkflowsController) handleGetWorkflow(w http.ResponseWriter, r *http.Request) {
	wf, ok := c.loadWorkflow(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toApiResponse(wf))
}

func (c *WorkflowsController) handleUpdateWorkflow(w http.ResponseWriter, r *http.Request) {
	wf, ok := c.loadWorkflow(w, r)
	if !ok {
		return
	}
	var req models.UpdateWorkflowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	wf.Name = req.Name
	wf.Description = req.Description
	wf.Trigger = req.Trigger
	wf.Actions = req.Actions
	wf.Conditions = req.Conditions
	if req.Enabled != nil {
		wf.Enabled = *req.Enabled
	}
	if err := validateDefinition(wf); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := c.Definitions.Update(wf); err != nil {
		slog.Error("Failed to update workflow", "workflow_id", wf.ID, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	c.reconcileTimers(wf)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toApiResponse(wf))
}

func (c *WorkflowsController) handleDeleteWorkflow(w http.ResponseWriter, r *http.Request) {
	wf, ok := c.loadWorkflow(w, r)
	if !ok {
		return
	}
	if err := c.Definitions.Delete(wf.ID); err != nil {
		slog.Error("Failed to delete workflow", "workflow_id", wf.ID, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	c.Timers.Unschedule(wf.ID)
	w.WriteHeader(http.StatusNoContent)
}

func (c *WorkflowsController) handleToggleWorkflow(w http.ResponseWriter, r *http.Request) {
	wf, ok := c.loadWorkflow(w, r)
	if !ok {
		return
	}
	wf.Enabled = !wf.Enabled
	if err := c.Definitions.SetEnabled(wf.ID, wf.Enabled); err != nil {
		slog.Error("Failed to toggle workflow", "workflow_id", wf.ID, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	c.reconcileTimers(wf)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(models.ToggleWorkflowResponse{ID: wf.ID, Enabled: wf.Enabled})
}

// handleDuplicateWorkflow copies a workflow under a new id. Copies start
// disabled with zeroed run stats so a duplicate never fires by surprise.
func (c *WorkflowsController) handleDuplicateWorkflow(w http.ResponseWriter, r *http.Request) {
	wf, ok := c.loadWorkflow(w, r)
	if !ok {
		return
	}
	dup := &domain.WorkflowDefinition{
		Name:        wf.Name + " (copy)",
		Description: wf.Description,
		Trigger:     wf.Trigger,
		Actions:     wf.Actions,
		Conditions:  wf.Conditions,
		Enabled:     false,
	}
	id, err := c.Definitions.Save(dup)
	if err != nil {
		slog.Error("Failed to duplicate workflow", "workflow_id", wf.ID, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(models.CreateWorkflowResponse{ID: id})
}

// handleExecuteWorkflow runs a workflow immediately with an optional input
// payload. Manual runs bypass the enabled flag; the caller asked explicitly.
func (c *WorkflowsController) handleExecuteWorkflow(w http.ResponseWriter, r *http.Request) {
	wf, ok := c.loadWorkflow(w, r)
	if !ok {
		return
	}
	var req models.ExecuteWorkflowRequest
	if r.Body != nil {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
	}
	if req.Input == nil {
		req.Input = map[string]interface{}{}
	}

	log, err := c.Runner.Run(r.Context(), wf, "manual", req.Input)
	if err != nil {
		slog.Error("Manual workflow run failed", "workflow_id", wf.ID, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toLogApiResponse(log))
}

func (c *WorkflowsController) loadWorkflow(w http.ResponseWriter, r *http.Request) (*domain.WorkflowDefinition, bool) {
	id := r.PathValue("id")
	if id == "" {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return nil, false
	}
	wf, err := c.Definitions.FindByID(id)
	if err != nil {
		slog.Error("Failed to load workflow", "workflow_id", id, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return nil, false
	}
	if wf == nil {
		http.Error(w, "workflow not found", http.StatusNotFound)
		return nil, false
	}
	return wf, true
}

func (c *WorkflowsController) reconcileTimers(wf *domain.WorkflowDefinition) {
	if err := c.Timers.ReconcileWorkflow(wf); err != nil {
		slog.Error("Failed to reconcile workflow timer", "workflow_id", wf.ID, "error", err)
	}
}

func validateDefinition(wf *domain.WorkflowDefinition) error {
	if wf.Name == "" {
		return fmt.Errorf("name is required")
	}
	switch wf.Trigger.Type {
	case domain.TriggerEvent:
		if wf.Trigger.Config.EventType == "" {
			return fmt.Errorf("event trigger requires an eventType")
		}
	case domain.TriggerSchedule:
		if wf.Trigger.Config.CronExpression == "" {
			return fmt.Errorf("schedule trigger requires a cronExpression")
		}
	case domain.TriggerWebhook, domain.TriggerManual:
	default:
		return fmt.Errorf("unknown trigger type: %s", wf.Trigger.Type)
	}
	if len(wf.Actions) == 0 {
		return fmt.Errorf("at least one action is required")
	}
	for i, action := range wf.Actions {
		if !domain.KnownActionType(action.Type) {
			return fmt.Errorf("action %d has unknown type: %s", i, action.Type)
		}
		if action.Condition != nil && !domain.KnownOperator(action.Condition.Operator) {
			return fmt.Errorf("action %d condition has unknown operator: %s", i, action.Condition.Operator)
		}
	}
	return nil
}

func toApiResponse(wf *domain.WorkflowDefinition) models.WorkflowApiResponse {
	out := models.WorkflowApiResponse{
		ID:             wf.ID,
		Name:           wf.Name,
		Description:    wf.Description,
		Trigger:        wf.Trigger,
		Actions:        wf.Actions,
		Conditions:     wf.Conditions,
		Enabled:        wf.Enabled,
		ExecutionCount: wf.ExecutionCount,
		Created:        wf.Created,
		Updated:        wf.Updated,
	}
	if wf.LastExecutedAt.Valid {
		t := wf.LastExecutedAt.Time
		out.LastExecutedAt = &t
	}
	if wf.LastStatus.Valid {
		out.LastStatus = wf.LastStatus.String
	}
	return out
}

func toLogApiResponse(log *domain.ExecutionLog) models.ExecutionLogApiResponse {
	out := models.ExecutionLogApiResponse{
		ID:           log.ID,
		WorkflowID:   log.WorkflowID,
		Status:       string(log.Status),
		TriggerEvent: log.TriggerEvent,
		StartedAt:    log.StartedAt,
		InputData:    log.InputData,
		OutputData:   log.OutputData,
	}
	if log.CompletedAt.Valid {
		t := log.CompletedAt.Time
		out.CompletedAt = &t
	}
	if log.Error.Valid {
		out.Error = log.Error.String
	}
	return out
}
