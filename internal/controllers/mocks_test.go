package controllers

import (
	"context"
	"time"

	"github.com/lnkday/automation-service/internal/domain"
)

type fakeClock struct {
	now time.Time
}

func (f *fakeClock) Now() time.Time                         { return f.now }
func (f *fakeClock) After(d time.Duration) <-chan time.Time { return time.After(0) }
func (f *fakeClock) Sleep(d time.Duration)                  {}

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

type MockDefinitionRepo struct {
	SaveFunc                     func(def *domain.WorkflowDefinition) (string, error)
	UpdateFunc                   func(def *domain.WorkflowDefinition) error
	FindByIDFunc                 func(id string) (*domain.WorkflowDefinition, error)
	FindAllFunc                  func() (*[]domain.WorkflowDefinition, error)
	FindEnabledByTriggerTypeFunc func(t domain.TriggerType) (*[]domain.WorkflowDefinition, error)
	SetEnabledFunc               func(id string, enabled bool) error
	DeleteFunc                   func(id string) error
	UpdateRunStatsFunc           func(id string, lastStatus domain.ExecutionStatus, executedAt time.Time) error
	CountByEnabledFunc           func() (int, int, error)
}

func (m *MockDefinitionRepo) Save(def *domain.WorkflowDefinition) (string, error) {
	if m.SaveFunc != nil {
		return m.SaveFunc(def)
	}
	return "wf-new", nil
}
func (m *MockDefinitionRepo) Update(def *domain.WorkflowDefinition) error {
	if m.UpdateFunc != nil {
		return m.UpdateFunc(def)
	}
	return nil
}
func (m *MockDefinitionRepo) FindByID(id string) (*domain.WorkflowDefinition, error) {
	if m.FindByIDFunc != nil {
		return m.FindByIDFunc(id)
	}
	return nil, nil
}
func (m *MockDefinitionRepo) FindAll() (*[]domain.WorkflowDefinition, error) {
	if m.FindAllFunc != nil {
		return m.FindAllFunc()
	}
	return &[]domain.WorkflowDefinition{}, nil
}
func (m *MockDefinitionRepo) FindEnabledByTriggerType(t domain.TriggerType) (*[]domain.WorkflowDefinition, error) {
	if m.FindEnabledByTriggerTypeFunc != nil {
		return m.FindEnabledByTriggerTypeFunc(t)
	}
	return &[]domain.WorkflowDefinition{}, nil
}
func (m *MockDefinitionRepo) SetEnabled(id string, enabled bool) error {
	if m.SetEnabledFunc != nil {
		return m.SetEnabledFunc(id, enabled)
	}
	return nil
}
func (m *MockDefinitionRepo) Delete(id string) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(id)
	}
	return nil
}
func (m *MockDefinitionRepo) UpdateRunStats(id string, lastStatus domain.ExecutionStatus, executedAt time.Time) error {
	if m.UpdateRunStatsFunc != nil {
		return m.UpdateRunStatsFunc(id, lastStatus, executedAt)
	}
	return nil
}
func (m *MockDefinitionRepo) CountByEnabled() (int, int, error) {
	if m.CountByEnabledFunc != nil {
		return m.CountByEnabledFunc()
	}
	return 0, 0, nil
}

type MockExecutionLogRepo struct {
	CreateFunc             func(log *domain.ExecutionLog) (string, error)
	FinalizeFunc           func(log *domain.ExecutionLog) error
	FindByIDFunc           func(id string) (*domain.ExecutionLog, error)
	FindByWorkflowIDFunc   func(workflowID string, limit int, offset int) (*[]domain.ExecutionLog, error)
	CountByStatusSinceFunc func(status domain.ExecutionStatus, since time.Time) (int, error)
}

func (m *MockExecutionLogRepo) Create(log *domain.ExecutionLog) (string, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(log)
	}
	return "exec-1", nil
}
func (m *MockExecutionLogRepo) Finalize(log *domain.ExecutionLog) error {
	if m.FinalizeFunc != nil {
		return m.FinalizeFunc(log)
	}
	return nil
}
func (m *MockExecutionLogRepo) FindByID(id string) (*domain.ExecutionLog, error) {
	if m.FindByIDFunc != nil {
		return m.FindByIDFunc(id)
	}
	return nil, nil
}
func (m *MockExecutionLogRepo) FindByWorkflowID(workflowID string, limit int, offset int) (*[]domain.ExecutionLog, error) {
	if m.FindByWorkflowIDFunc != nil {
		return m.FindByWorkflowIDFunc(workflowID, limit, offset)
	}
	return &[]domain.ExecutionLog{}, nil
}
func (m *MockExecutionLogRepo) CountByStatusSince(status domain.ExecutionStatus, since time.Time) (int, error) {
	if m.CountByStatusSinceFunc != nil {
		return m.CountByStatusSinceFunc(status, since)
	}
	return 0, nil
}

type MockUserRepo struct {
	FindByUsernameFunc         func(username string) (*domain.User, error)
	FindBySessionIDFunc        func(sessionID string, now time.Time) (*domain.User, error)
	FindByApiKeyFunc           func(apiKey string) (*domain.User, error)
	UpdateSessionFunc          func(userID int64, sessionID string, expiry time.Time) error
	ClearSessionBySessionIDFunc func(sessionID string) error
}

func (m *MockUserRepo) FindByUsername(username string) (*domain.User, error) {
	if m.FindByUsernameFunc != nil {
		return m.FindByUsernameFunc(username)
	}
	return nil, nil
}
func (m *MockUserRepo) FindBySessionID(sessionID string, now time.Time) (*domain.User, error) {
	if m.FindBySessionIDFunc != nil {
		return m.FindBySessionIDFunc(sessionID, now)
	}
	return nil, nil
}
func (m *MockUserRepo) FindByApiKey(apiKey string) (*domain.User, error) {
	if m.FindByApiKeyFunc != nil {
		return m.FindByApiKeyFunc(apiKey)
	}
	return nil, nil
}
func (m *MockUserRepo) UpdateSession(userID int64, sessionID string, expiry time.Time) error {
	if m.UpdateSessionFunc != nil {
		return m.UpdateSessionFunc(userID, sessionID, expiry)
	}
	return nil
}
func (m *MockUserRepo) ClearSessionBySessionID(sessionID string) error {
	if m.ClearSessionBySessionIDFunc != nil {
		return m.ClearSessionBySessionIDFunc(sessionID)
	}
	return nil
}

// apiKeyUserRepo authenticates any request carrying the key "test-key".
func apiKeyUserRepo() *MockUserRepo {
	return &MockUserRepo{
		FindByApiKeyFunc: func(apiKey string) (*domain.User, error) {
			if apiKey == "test-key" {
				return &domain.User{ID: 1, Username: "admin"}, nil
			}
			return nil, nil
		},
	}
}

type MockRunner struct {
	RunFunc func(ctx context.Context, wf *domain.WorkflowDefinition, triggerEvent string, payload map[string]interface{}) (*domain.ExecutionLog, error)
}

func (m *MockRunner) Run(ctx context.Context, wf *domain.WorkflowDefinition, triggerEvent string, payload map[string]interface{}) (*domain.ExecutionLog, error) {
	if m.RunFunc != nil {
		return m.RunFunc(ctx, wf, triggerEvent, payload)
	}
	return &domain.ExecutionLog{ID: "exec-1", WorkflowID: wf.ID, Status: domain.ExecutionSuccess, TriggerEvent: triggerEvent}, nil
}

type MockTimers struct {
	ReconcileWorkflowFunc func(wf *domain.WorkflowDefinition) error
	UnscheduleFunc        func(workflowID string)
}

func (m *MockTimers) ReconcileWorkflow(wf *domain.WorkflowDefinition) error {
	if m.ReconcileWorkflowFunc != nil {
		return m.ReconcileWorkflowFunc(wf)
	}
	return nil
}
func (m *MockTimers) Unschedule(workflowID string) {
	if m.UnscheduleFunc != nil {
		m.UnscheduleFunc(workflowID)
	}
}
