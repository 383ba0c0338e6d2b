package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/robfig/cron/v3"

	"github.com/lnkday/automation-service/internal/core"
	"github.com/lnkday/automation-service/internal/domain"
	"github.com/lnkday/automation-service/internal/models"
)

// workflowRunner is the slice of the orchestrator the scheduler needs.
type workflowRunner interface {
	Run(ctx context.Context, wf *domain.WorkflowDefinition, triggerEvent string, payload map[string]interface{}) (*domain.ExecutionLog, error)
}

// definitionRepo is the slice of the definition repository the scheduler needs.
type definitionRepo interface {
	FindByID(id string) (*domain.WorkflowDefinition, error)
	FindEnabledByTriggerType(t domain.TriggerType) (*[]domain.WorkflowDefinition, error)
}

// Scheduler owns one cron timer per enabled schedule-triggered workflow. All
// timer map mutations go through Schedule/Unschedule under the mutex; a
// periodic reconcile sweep repairs any drift against the database.
type Scheduler struct {
	runner      workflowRunner
	definitions definitionRepo
	clock       core.Clock

	cron    *cron.Cron
	mu      sync.Mutex
	baseCtx context.Context
	entries map[string]cron.EntryID
	specs   map[string]string
}

func NewScheduler(runner workflowRunner, definitions definitionRepo, clock core.Clock) *Scheduler {
	if clock == nil {
		clock = core.NewRealClock()
	}
	return &Scheduler{
		runner:      runner,
		definitions: definitions,
		clock:       clock,
		cron:        cron.New(),
		baseCtx:     context.Background(),
		entries:     make(map[string]cron.EntryID),
		specs:       make(map[string]string),
	}
}

// Start runs the initial reconcile, starts the cron runner and keeps a
// background sweep going until ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context, reconcileInterval time.Duration) {
	s.mu.Lock()
	s.baseCtx = ctx
	s.mu.Unlock()

	if err := s.ReconcileAll(); err != nil {
		slog.Error("Initial scheduler reconcile reported errors", "error", err)
	}
	s.cron.Start()

	go func() {
		ticker := time.NewTicker(reconcileInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				s.cron.Stop()
				return
			case <-ticker.C:
				if err := s.ReconcileAll(); err != nil {
					slog.Error("Scheduler reconcile reported errors", "error", err)
				}
			}
		}
	}()
}

// Schedule registers a cron timer for wf, replacing any existing one. The
// caller must have checked ShouldBeScheduled. Fires run under the scheduler's
// own context, never the caller's: a timer installed from an HTTP request
// must outlive that request.
func (s *Scheduler) Schedule(wf *domain.WorkflowDefinition) error {
	spec := cronSpec(wf)

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.entries[wf.ID]; ok {
		if s.specs[wf.ID] == spec {
			return nil
		}
		s.cron.Remove(existing)
		delete(s.entries, wf.ID)
		delete(s.specs, wf.ID)
	}

	workflowID := wf.ID
	entryID, err := s.cron.AddFunc(spec, func() {
		s.fire(s.runContext(), workflowID)
	})
	if err != nil {
		return fmt.Errorf("invalid cron expression %q for workflow %s: %w", wf.Trigger.Config.CronExpression, wf.ID, err)
	}
	s.entries[wf.ID] = entryID
	s.specs[wf.ID] = spec
	slog.Info("Scheduled workflow", "workflow_id", wf.ID, "workflow_name", wf.Name, "cron", wf.Trigger.Config.CronExpression)
	return nil
}

// Unschedule removes the timer for workflowID if one exists.
func (s *Scheduler) Unschedule(workflowID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entryID, ok := s.entries[workflowID]; ok {
		s.cron.Remove(entryID)
		delete(s.entries, workflowID)
		delete(s.specs, workflowID)
		slog.Info("Unscheduled workflow", "workflow_id", workflowID)
	}
}

// ReconcileWorkflow brings the timer for one workflow in line with its
// current definition. Called after every API mutation.
func (s *Scheduler) ReconcileWorkflow(wf *domain.WorkflowDefinition) error {
	if wf.ShouldBeScheduled() {
		return s.Schedule(wf)
	}
	s.Unschedule(wf.ID)
	return nil
}

func (s *Scheduler) runContext() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.baseCtx
}

// ReconcileAll sweeps the database: schedules every enabled cron workflow and
// drops timers whose workflow no longer qualifies. Safe to call repeatedly.
func (s *Scheduler) ReconcileAll() error {
	defs, err := s.definitions.FindEnabledByTriggerType(domain.TriggerSchedule)
	if err != nil {
		return fmt.Errorf("loading scheduled workflows: %w", err)
	}

	var result *multierror.Error
	wanted := make(map[string]bool, len(*defs))
	for i := range *defs {
		wf := &(*defs)[i]
		if !wf.ShouldBeScheduled() {
			continue
		}
		wanted[wf.ID] = true
		if err := s.Schedule(wf); err != nil {
			result = multierror.Append(result, err)
		}
	}

	s.mu.Lock()
	var stale []string
	for id := range s.entries {
		if !wanted[id] {
			stale = append(stale, id)
		}
	}
	s.mu.Unlock()
	for _, id := range stale {
		s.Unschedule(id)
	}

	return result.ErrorOrNil()
}

// Jobs returns a snapshot of the live timers for the stats endpoint. The
// timer table is snapshotted under the mutex; the per-workflow name lookup
// hits the database and runs outside it.
func (s *Scheduler) Jobs() []models.ScheduledJobInfo {
	s.mu.Lock()
	jobs := make([]models.ScheduledJobInfo, 0, len(s.entries))
	for id, entryID := range s.entries {
		entry := s.cron.Entry(entryID)
		info := models.ScheduledJobInfo{
			WorkflowID:     id,
			CronExpression: s.specs[id],
			NextFire:       entry.Next,
		}
		if !entry.Prev.IsZero() {
			prev := entry.Prev
			info.LastFire = &prev
		}
		jobs = append(jobs, info)
	}
	s.mu.Unlock()

	for i := range jobs {
		if wf, err := s.definitions.FindByID(jobs[i].WorkflowID); err == nil && wf != nil {
			jobs[i].Name = wf.Name
		}
	}
	return jobs
}

// fire runs one scheduled workflow. The definition is re-read so a disable
// or edit between timer install and fire is always honored.
func (s *Scheduler) fire(ctx context.Context, workflowID string) {
	wf, err := s.definitions.FindByID(workflowID)
	if err != nil {
		slog.Error("Scheduled fire could not load workflow", "workflow_id", workflowID, "error", err)
		return
	}
	if wf == nil || !wf.ShouldBeScheduled() {
		slog.Warn("Scheduled fire for workflow that no longer qualifies, removing timer", "workflow_id", workflowID)
		s.Unschedule(workflowID)
		return
	}

	payload := map[string]interface{}{
		"firedAt":        s.clock.Now().UTC().Format(time.RFC3339),
		"cronExpression": wf.Trigger.Config.CronExpression,
	}
	if _, err := s.runner.Run(ctx, wf, "schedule", payload); err != nil {
		slog.Error("Scheduled workflow run failed to record", "workflow_id", workflowID, "error", err)
	}
}

// cronSpec prefixes the expression with CRON_TZ when the trigger carries a
// timezone, so the parser evaluates fire times in that zone.
func cronSpec(wf *domain.WorkflowDefinition) string {
	expr := wf.Trigger.Config.CronExpression
	if tz := wf.Trigger.Config.Timezone; tz != "" {
		return "CRON_TZ=" + tz + " " + expr
	}
	return expr
}
