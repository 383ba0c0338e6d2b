package domain

import (
	"database/sql"
	"time"
)

type ExecutionStatus string

const (
	ExecutionRunning ExecutionStatus = "running"
	ExecutionSuccess ExecutionStatus = "success"
	ExecutionFailed  ExecutionStatus = "failed"
)

// ActionResult is the outcome of a single action within a run.
type ActionResult struct {
	Index   int         `json:"index"`
	Type    ActionType  `json:"type"`
	Success bool        `json:"success"`
	Output  interface{} `json:"output,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// ExecutionLog is the append-only record of one workflow run. It is created
// with status running and finalized exactly once; never touched afterwards.
type ExecutionLog struct {
	ID           string
	WorkflowID   string
	Status       ExecutionStatus
	TriggerEvent string
	StartedAt    time.Time
	CompletedAt  sql.NullTime
	Error        sql.NullString
	InputData    map[string]interface{}
	OutputData   []ActionResult
}
