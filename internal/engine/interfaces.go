package engine

import (
	"context"
	"time"

	"github.com/lnkday/automation-service/internal/domain"
)

// DefinitionRepo defines the interface for workflow definition persistence,
// matching repository.WorkflowDefinitionRepository.
type DefinitionRepo interface {
	Save(def *domain.WorkflowDefinition) (string, error)
	Update(def *domain.WorkflowDefinition) error
	FindByID(id string) (*domain.WorkflowDefinition, error)
	FindAll() (*[]domain.WorkflowDefinition, error)
	FindEnabledByTriggerType(t domain.TriggerType) (*[]domain.WorkflowDefinition, error)
	SetEnabled(id string, enabled bool) error
	Delete(id string) error
	UpdateRunStats(id string, lastStatus domain.ExecutionStatus, executedAt time.Time) error
	CountByEnabled() (total int, enabled int, err error)
}

// ExecutionLogRepo defines the interface for execution log persistence.
type ExecutionLogRepo interface {
	Create(log *domain.ExecutionLog) (string, error)
	Finalize(log *domain.ExecutionLog) error
	FindByID(id string) (*domain.ExecutionLog, error)
	FindByWorkflowID(workflowID string, limit int, offset int) (*[]domain.ExecutionLog, error)
	CountByStatusSince(status domain.ExecutionStatus, since time.Time) (int, error)
}

// UserRepo defines the interface for user persistence.
type UserRepo interface {
	FindByUsername(username string) (*domain.User, error)
	FindBySessionID(sessionID string, now time.Time) (*domain.User, error)
	FindByApiKey(apiKey string) (*domain.User, error)
	UpdateSession(userID int64, sessionID string, expiry time.Time) error
	ClearSessionBySessionID(sessionID string) error
}

// ActionRunner executes one action against an execution context. It never
// returns an error; failures are carried inside the result.
type ActionRunner interface {
	Execute(ctx context.Context, action domain.ActionSpec, ec *ExecutionContext) domain.ActionResult
}

// Notifier sends templated emails through the notification service.
type Notifier interface {
	SendEmail(ctx context.Context, to string, subject string, template string, data map[string]interface{}) error
}

// LinkClient talks to the link-management service.
type LinkClient interface {
	UpdateLink(ctx context.Context, linkID string, fields map[string]interface{}) error
	DisableLink(ctx context.Context, linkID string) error
	AddTag(ctx context.Context, linkID string, tag string) error
}

// TeamClient looks up team membership in the team directory.
type TeamClient interface {
	GetMembers(ctx context.Context, teamID string) ([]domain.TeamMember, error)
}

// WebhookSender posts JSON bodies to arbitrary webhook and chat-webhook URLs.
type WebhookSender interface {
	Send(ctx context.Context, url string, body map[string]interface{}) error
	SendChat(ctx context.Context, url string, msg domain.ChatMessage) error
}

// ReportClient requests report generation from the analytics service.
type ReportClient interface {
	GenerateReport(ctx context.Context, req domain.ReportRequest) (string, error)
}
