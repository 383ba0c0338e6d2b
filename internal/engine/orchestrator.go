package engine

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/lnkday/automation-service/internal/core"
	"github.com/lnkday/automation-service/internal/domain"
)

// Orchestrator runs a workflow end to end: condition gate, sequential
// actions, execution log persistence and run-stat bookkeeping.
type Orchestrator struct {
	Definitions DefinitionRepo
	Logs        ExecutionLogRepo
	Actions     ActionRunner

	clock core.Clock
}

func NewOrchestrator(definitions DefinitionRepo, logs ExecutionLogRepo, actions ActionRunner, clock core.Clock) *Orchestrator {
	if clock == nil {
		clock = core.NewRealClock()
	}
	return &Orchestrator{
		Definitions: definitions,
		Logs:        logs,
		Actions:     actions,
		clock:       clock,
	}
}

// Run executes one workflow for one triggering event. It never returns an
// error for action failures; those are recorded in the execution log. A
// non-nil error means the run could not be recorded at all.
func (o *Orchestrator) Run(ctx context.Context, wf *domain.WorkflowDefinition, triggerEvent string, payload map[string]interface{}) (*domain.ExecutionLog, error) {
	if !EvaluateConditions(wf.Conditions, payload) {
		slog.Debug("Workflow conditions not met", "workflow_id", wf.ID, "workflow_name", wf.Name, "trigger_event", triggerEvent)
		return o.recordSkip(wf, triggerEvent, payload)
	}

	log := &domain.ExecutionLog{
		WorkflowID:   wf.ID,
		Status:       domain.ExecutionRunning,
		TriggerEvent: triggerEvent,
		StartedAt:    o.clock.Now().UTC(),
		InputData:    payload,
	}
	id, err := o.Logs.Create(log)
	if err != nil {
		return nil, fmt.Errorf("creating execution log for workflow %s: %w", wf.ID, err)
	}
	log.ID = id

	slog.Info("Workflow run started", "workflow_id", wf.ID, "workflow_name", wf.Name, "execution_id", id, "trigger_event", triggerEvent)

	ec := NewExecutionContext(wf.ID, wf.Name, triggerEvent, payload, o.clock)
	status, runErr := o.runActions(ctx, wf, ec, log)

	log.Status = status
	log.CompletedAt = sql.NullTime{Time: o.clock.Now().UTC(), Valid: true}
	if runErr != "" {
		log.Error = sql.NullString{String: runErr, Valid: true}
	}
	if err := o.Logs.Finalize(log); err != nil {
		slog.Error("Failed to finalize execution log", "execution_id", log.ID, "error", err)
	}
	if err := o.Definitions.UpdateRunStats(wf.ID, status, log.CompletedAt.Time); err != nil {
		slog.Error("Failed to update workflow run stats", "workflow_id", wf.ID, "error", err)
	}

	slog.Info("Workflow run finished", "workflow_id", wf.ID, "execution_id", log.ID, "status", status, "actions", len(log.OutputData))
	return log, nil
}

// runActions executes the action list in order, stopping at the first
// failure. A panic inside an action is converted into a failed result so a
// single bad workflow can never take the engine down.
func (o *Orchestrator) runActions(ctx context.Context, wf *domain.WorkflowDefinition, ec *ExecutionContext, log *domain.ExecutionLog) (status domain.ExecutionStatus, runErr string) {
	status = domain.ExecutionSuccess

	defer func() {
		if r := recover(); r != nil {
			slog.Error("Recovered from panic during workflow run", "workflow_id", wf.ID, "execution_id", log.ID, "panic", r)
			status = domain.ExecutionFailed
			runErr = fmt.Sprintf("panic during action execution: %v", r)
		}
	}()

	for i, action := range wf.Actions {
		result := o.Actions.Execute(ctx, action, ec)
		result.Index = i
		log.OutputData = append(log.OutputData, result)

		if !result.Success {
			status = domain.ExecutionFailed
			runErr = fmt.Sprintf("action %d (%s) failed: %s", i, action.Type, result.Error)
			slog.Warn("Workflow action failed, aborting remaining actions",
				"workflow_id", wf.ID, "execution_id", log.ID, "action_index", i, "action_type", action.Type)
			return status, runErr
		}
		ec.AppendActionOutput(i, result.Output)
	}
	return status, runErr
}

// recordSkip writes a completed log for a run whose workflow-level conditions
// did not match. Skips count as successes; no actions were attempted.
func (o *Orchestrator) recordSkip(wf *domain.WorkflowDefinition, triggerEvent string, payload map[string]interface{}) (*domain.ExecutionLog, error) {
	now := o.clock.Now().UTC()
	log := &domain.ExecutionLog{
		WorkflowID:   wf.ID,
		Status:       domain.ExecutionRunning,
		TriggerEvent: triggerEvent,
		StartedAt:    now,
		InputData:    payload,
	}
	id, err := o.Logs.Create(log)
	if err != nil {
		return nil, fmt.Errorf("creating execution log for workflow %s: %w", wf.ID, err)
	}
	log.ID = id
	log.Status = domain.ExecutionSuccess
	log.CompletedAt = sql.NullTime{Time: now, Valid: true}
	log.Error = sql.NullString{String: "skipped: conditions not met", Valid: true}
	if err := o.Logs.Finalize(log); err != nil {
		slog.Error("Failed to finalize skipped execution log", "execution_id", log.ID, "error", err)
	}
	if err := o.Definitions.UpdateRunStats(wf.ID, domain.ExecutionSuccess, now); err != nil {
		slog.Error("Failed to update workflow run stats", "workflow_id", wf.ID, "error", err)
	}
	return log, nil
}
