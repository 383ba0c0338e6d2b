package models

import (
	"time"

	"github.com/lnkday/automation-service/internal/domain"
)

// CreateWorkflowRequest is the payload for creating a workflow.
type CreateWorkflowRequest struct {
	Name        string              `json:"name"`
	Description string              `json:"description,omitempty"`
	Trigger     domain.Trigger      `json:"trigger"`
	Actions     []domain.ActionSpec `json:"actions"`
	Conditions  []domain.Condition  `json:"conditions,omitempty"`
	Enabled     *bool               `json:"enabled,omitempty"`
}

// UpdateWorkflowRequest replaces the mutable parts of a workflow definition.
type UpdateWorkflowRequest struct {
	Name        string              `json:"name"`
	Description string              `json:"description,omitempty"`
	Trigger     domain.Trigger      `json:"trigger"`
	Actions     []domain.ActionSpec `json:"actions"`
	Conditions  []domain.Condition  `json:"conditions,omitempty"`
	Enabled     *bool               `json:"enabled,omitempty"`
}

type CreateWorkflowResponse struct {
	ID string `json:"id"`
}

// WorkflowApiResponse represents the API view of a workflow definition.
type WorkflowApiResponse struct {
	ID             string              `json:"id"`
	Name           string              `json:"name"`
	Description    string              `json:"description,omitempty"`
	Trigger        domain.Trigger      `json:"trigger"`
	Actions        []domain.ActionSpec `json:"actions"`
	Conditions     []domain.Condition  `json:"conditions,omitempty"`
	Enabled        bool                `json:"enabled"`
	ExecutionCount int                 `json:"executionCount"`
	LastExecutedAt *time.Time          `json:"lastExecutedAt,omitempty"`
	LastStatus     string              `json:"lastStatus,omitempty"`
	Created        time.Time           `json:"created"`
	Updated        time.Time           `json:"updated"`
}

// ExecuteWorkflowRequest carries the optional input payload for a manual run.
type ExecuteWorkflowRequest struct {
	Input map[string]interface{} `json:"input,omitempty"`
}

type ToggleWorkflowResponse struct {
	ID      string `json:"id"`
	Enabled bool   `json:"enabled"`
}

// ExecutionLogApiResponse is the API view of one run.
type ExecutionLogApiResponse struct {
	ID           string                 `json:"id"`
	WorkflowID   string                 `json:"workflowId"`
	Status       string                 `json:"status"`
	TriggerEvent string                 `json:"triggerEvent"`
	StartedAt    time.Time              `json:"startedAt"`
	CompletedAt  *time.Time             `json:"completedAt,omitempty"`
	Error        string                 `json:"error,omitempty"`
	InputData    map[string]interface{} `json:"inputData,omitempty"`
	OutputData   []domain.ActionResult  `json:"outputData,omitempty"`
}

// WorkflowStatsResponse gives health-at-a-glance counts for the dashboard.
type WorkflowStatsResponse struct {
	Total         int `json:"total"`
	Enabled       int `json:"enabled"`
	Disabled      int `json:"disabled"`
	Success24h    int `json:"success24h"`
	Failed24h     int `json:"failed24h"`
	ScheduledJobs int `json:"scheduledJobs"`
}

// ScheduledJobInfo describes one live cron timer.
type ScheduledJobInfo struct {
	WorkflowID     string     `json:"workflowId"`
	Name           string     `json:"name"`
	CronExpression string     `json:"cronExpression"`
	NextFire       time.Time  `json:"nextFire"`
	LastFire       *time.Time `json:"lastFire,omitempty"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	OK bool `json:"ok"`
}
