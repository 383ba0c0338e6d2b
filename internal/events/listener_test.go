package events

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/lnkday/automation-service/internal/domain"
	"github.com/lnkday/automation-service/internal/engine"
)

type mockRunner struct {
	mu   sync.Mutex
	runs []string

	RunFunc func(ctx context.Context, wf *domain.WorkflowDefinition, triggerEvent string, payload map[string]interface{}) (*domain.ExecutionLog, error)
}

func (m *mockRunner) Run(ctx context.Context, wf *domain.WorkflowDefinition, triggerEvent string, payload map[string]interface{}) (*domain.ExecutionLog, error) {
	m.mu.Lock()
	m.runs = append(m.runs, wf.ID)
	m.mu.Unlock()
	if m.RunFunc != nil {
		return m.RunFunc(ctx, wf, triggerEvent, payload)
	}
	return &domain.ExecutionLog{}, nil
}

func (m *mockRunner) ranWorkflows() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string{}, m.runs...)
}

type mockDefinitionRepo struct {
	defs []domain.WorkflowDefinition
	err  error
}

func (m *mockDefinitionRepo) FindEnabledByTriggerType(t domain.TriggerType) (*[]domain.WorkflowDefinition, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &m.defs, nil
}

func eventWorkflow(id, eventType string, filters map[string]interface{}) domain.WorkflowDefinition {
	return domain.WorkflowDefinition{
		ID:      id,
		Name:    "wf " + id,
		Enabled: true,
		Trigger: domain.Trigger{
			Type:   domain.TriggerEvent,
			Config: domain.TriggerConfig{EventType: eventType, Filters: filters},
		},
	}
}

func testEvent(eventType string, data map[string]interface{}) *domain.Event {
	return &domain.Event{
		ID:        "evt-1",
		Type:      eventType,
		Timestamp: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		Source:    "redirect-service",
		Data:      data,
	}
}

func TestMatches_EventType(t *testing.T) {
	wf := eventWorkflow("wf-1", "link.created", nil)

	if !Matches(&wf, testEvent("link.created", nil)) {
		t.Error("Expected matching event type to match")
	}
	if Matches(&wf, testEvent("link.deleted", nil)) {
		t.Error("Expected different event type not to match")
	}
}

func TestMatches_Filters(t *testing.T) {
	wf := eventWorkflow("wf-1", "click.recorded", map[string]interface{}{
		"data.country": "DE",
	})

	if !Matches(&wf, testEvent("click.recorded", map[string]interface{}{"country": "DE"})) {
		t.Error("Expected filter match")
	}
	if Matches(&wf, testEvent("click.recorded", map[string]interface{}{"country": "US"})) {
		t.Error("Expected filter mismatch to exclude the workflow")
	}
	if Matches(&wf, testEvent("click.recorded", nil)) {
		t.Error("Expected missing filter field to exclude the workflow")
	}
}

func TestMatches_FiltersOnEnvelopeMetadata(t *testing.T) {
	wf := eventWorkflow("wf-1", "click.recorded", map[string]interface{}{
		"_event.source": "redirect-service",
	})

	if !Matches(&wf, testEvent("click.recorded", nil)) {
		t.Error("Expected envelope source filter to match")
	}
}

func TestDispatch_RunsAllMatchingWorkflows(t *testing.T) {
	runner := &mockRunner{}
	repo := &mockDefinitionRepo{defs: []domain.WorkflowDefinition{
		eventWorkflow("wf-1", "link.created", nil),
		eventWorkflow("wf-2", "link.created", nil),
		eventWorkflow("wf-3", "link.deleted", nil),
	}}
	l := NewListener("amqp://localhost", "automation.events", 10, runner, repo)

	l.Dispatch(context.Background(), testEvent("link.created", map[string]interface{}{"linkId": "lnk-1"}))

	ran := runner.ranWorkflows()
	if len(ran) != 2 {
		t.Fatalf("Expected 2 workflow runs, got %v", ran)
	}
	for _, id := range ran {
		if id == "wf-3" {
			t.Error("Expected wf-3 not to run for link.created")
		}
	}
}

func TestDispatch_OneFailureDoesNotAffectOthers(t *testing.T) {
	runner := &mockRunner{
		RunFunc: func(ctx context.Context, wf *domain.WorkflowDefinition, triggerEvent string, payload map[string]interface{}) (*domain.ExecutionLog, error) {
			if wf.ID == "wf-1" {
				return nil, context.DeadlineExceeded
			}
			return &domain.ExecutionLog{}, nil
		},
	}
	repo := &mockDefinitionRepo{defs: []domain.WorkflowDefinition{
		eventWorkflow("wf-1", "link.created", nil),
		eventWorkflow("wf-2", "link.created", nil),
	}}
	l := NewListener("amqp://localhost", "automation.events", 10, runner, repo)

	l.Dispatch(context.Background(), testEvent("link.created", nil))

	if len(runner.ranWorkflows()) != 2 {
		t.Errorf("Expected both workflows attempted, got %v", runner.ranWorkflows())
	}
}

func TestDispatch_PassesEventDataAndEnvelope(t *testing.T) {
	var gotTrigger string
	var gotPayload map[string]interface{}
	runner := &mockRunner{
		RunFunc: func(ctx context.Context, wf *domain.WorkflowDefinition, triggerEvent string, payload map[string]interface{}) (*domain.ExecutionLog, error) {
			gotTrigger = triggerEvent
			gotPayload = payload
			return &domain.ExecutionLog{}, nil
		},
	}
	repo := &mockDefinitionRepo{defs: []domain.WorkflowDefinition{
		eventWorkflow("wf-1", "click.recorded", nil),
	}}
	l := NewListener("amqp://localhost", "automation.events", 10, runner, repo)

	l.Dispatch(context.Background(), testEvent("click.recorded", map[string]interface{}{"country": "DE"}))

	if gotTrigger != "click.recorded" {
		t.Errorf("Expected trigger event to be the event type, got %q", gotTrigger)
	}
	data, ok := gotPayload["data"].(map[string]interface{})
	if !ok {
		t.Fatalf("Expected event body nested under data, got %v", gotPayload)
	}
	if data["country"] != "DE" {
		t.Errorf("Expected event data under data, got %v", data)
	}
	meta, ok := gotPayload["_event"].(map[string]interface{})
	if !ok {
		t.Fatal("Expected _event metadata in payload")
	}
	if meta["source"] != "redirect-service" || meta["type"] != "click.recorded" {
		t.Errorf("Unexpected event metadata: %v", meta)
	}
	if meta["timestamp"] != "2025-06-01T12:00:00Z" {
		t.Errorf("Expected RFC3339 event timestamp, got %v", meta["timestamp"])
	}
}

func TestDispatch_ConcurrentRunsComplete(t *testing.T) {
	var started sync.WaitGroup
	started.Add(3)
	release := make(chan struct{})
	runner := &mockRunner{
		RunFunc: func(ctx context.Context, wf *domain.WorkflowDefinition, triggerEvent string, payload map[string]interface{}) (*domain.ExecutionLog, error) {
			started.Done()
			<-release
			return &domain.ExecutionLog{}, nil
		},
	}
	repo := &mockDefinitionRepo{defs: []domain.WorkflowDefinition{
		eventWorkflow("wf-1", "link.created", nil),
		eventWorkflow("wf-2", "link.created", nil),
		eventWorkflow("wf-3", "link.created", nil),
	}}
	l := NewListener("amqp://localhost", "automation.events", 10, runner, repo)

	done := make(chan struct{})
	go func() {
		l.Dispatch(context.Background(), testEvent("link.created", nil))
		close(done)
	}()

	// all three runs must start before any of them finish, proving they run
	// concurrently
	started.Wait()
	close(release)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Dispatch did not return after all runs completed")
	}
	if len(runner.ranWorkflows()) != 3 {
		t.Errorf("Expected 3 runs, got %v", runner.ranWorkflows())
	}
}

func TestDispatch_RepoErrorReturnsError(t *testing.T) {
	runner := &mockRunner{}
	repo := &mockDefinitionRepo{err: context.DeadlineExceeded}
	l := NewListener("amqp://localhost", "automation.events", 10, runner, repo)

	if err := l.Dispatch(context.Background(), testEvent("link.created", nil)); err == nil {
		t.Fatal("Expected an error when the definition store is unavailable")
	}
	if len(runner.ranWorkflows()) != 0 {
		t.Errorf("Expected no runs, got %v", runner.ranWorkflows())
	}
}

// stubDefinitionStore and stubLogStore are the smallest stores a real
// orchestrator needs to complete a run.
type stubDefinitionStore struct {
	defs []domain.WorkflowDefinition
}

func (s *stubDefinitionStore) Save(def *domain.WorkflowDefinition) (string, error) { return "", nil }
func (s *stubDefinitionStore) Update(def *domain.WorkflowDefinition) error         { return nil }
func (s *stubDefinitionStore) FindByID(id string) (*domain.WorkflowDefinition, error) {
	return nil, nil
}
func (s *stubDefinitionStore) FindAll() (*[]domain.WorkflowDefinition, error) { return &s.defs, nil }
func (s *stubDefinitionStore) FindEnabledByTriggerType(t domain.TriggerType) (*[]domain.WorkflowDefinition, error) {
	return &s.defs, nil
}
func (s *stubDefinitionStore) SetEnabled(id string, enabled bool) error { return nil }
func (s *stubDefinitionStore) Delete(id string) error                   { return nil }
func (s *stubDefinitionStore) UpdateRunStats(id string, lastStatus domain.ExecutionStatus, executedAt time.Time) error {
	return nil
}
func (s *stubDefinitionStore) CountByEnabled() (int, int, error) { return 0, 0, nil }

type stubLogStore struct {
	mu        sync.Mutex
	finalized []domain.ExecutionLog
}

func (s *stubLogStore) Create(log *domain.ExecutionLog) (string, error) { return "log-1", nil }
func (s *stubLogStore) Finalize(log *domain.ExecutionLog) error {
	s.mu.Lock()
	s.finalized = append(s.finalized, *log)
	s.mu.Unlock()
	return nil
}
func (s *stubLogStore) FindByID(id string) (*domain.ExecutionLog, error) { return nil, nil }
func (s *stubLogStore) FindByWorkflowID(workflowID string, limit int, offset int) (*[]domain.ExecutionLog, error) {
	return &[]domain.ExecutionLog{}, nil
}
func (s *stubLogStore) CountByStatusSince(status domain.ExecutionStatus, since time.Time) (int, error) {
	return 0, nil
}

type recordingActionRunner struct {
	mu       sync.Mutex
	executed []domain.ActionType
}

func (r *recordingActionRunner) Execute(ctx context.Context, action domain.ActionSpec, ec *engine.ExecutionContext) domain.ActionResult {
	r.mu.Lock()
	r.executed = append(r.executed, action.Type)
	r.mu.Unlock()
	return domain.ActionResult{Type: action.Type, Success: true}
}

// An event-triggered workflow guarded on an event body field: a link created
// in the US runs its action, a link created in Canada is recorded as skipped.
func TestDispatch_ConditionOnEventBodyField(t *testing.T) {
	wf := eventWorkflow("wf-1", "link.created", nil)
	wf.Conditions = []domain.Condition{
		{Field: "data.country", Operator: "eq", Value: "US"},
	}
	wf.Actions = []domain.ActionSpec{
		{Type: domain.ActionSendEmail, Config: map[string]interface{}{"to": "ops@lnk.day"}},
	}

	logs := &stubLogStore{}
	actions := &recordingActionRunner{}
	orch := engine.NewOrchestrator(&stubDefinitionStore{}, logs, actions, nil)
	repo := &mockDefinitionRepo{defs: []domain.WorkflowDefinition{wf}}
	l := NewListener("amqp://localhost", "automation.events", 10, orch, repo)

	if err := l.Dispatch(context.Background(), testEvent("link.created", map[string]interface{}{"country": "US"})); err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}
	if len(actions.executed) != 1 {
		t.Fatalf("Expected the US event to run the action, executed %v", actions.executed)
	}
	if len(logs.finalized) != 1 || logs.finalized[0].Status != domain.ExecutionSuccess {
		t.Fatalf("Expected one successful run, got %+v", logs.finalized)
	}

	if err := l.Dispatch(context.Background(), testEvent("link.created", map[string]interface{}{"country": "CA"})); err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}
	if len(actions.executed) != 1 {
		t.Errorf("Expected the CA event not to run the action, executed %v", actions.executed)
	}
	if len(logs.finalized) != 2 {
		t.Fatalf("Expected a skip record for the CA event, got %+v", logs.finalized)
	}
	if logs.finalized[1].Error.String != "skipped: conditions not met" {
		t.Errorf("Expected the CA run to be recorded as skipped, got %+v", logs.finalized[1])
	}
}
