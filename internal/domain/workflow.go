package domain

import (
	"database/sql"
	"time"
)

type TriggerType string

const (
	TriggerEvent    TriggerType = "event"
	TriggerSchedule TriggerType = "schedule"
	TriggerWebhook  TriggerType = "webhook"
	TriggerManual   TriggerType = "manual"
)

// TriggerConfig is the union of per-trigger-type settings. Only the fields
// matching the trigger type are populated.
type TriggerConfig struct {
	EventType      string                 `json:"eventType,omitempty"`
	Filters        map[string]interface{} `json:"filters,omitempty"`
	CronExpression string                 `json:"cronExpression,omitempty"`
	Timezone       string                 `json:"timezone,omitempty"`
	Secret         string                 `json:"secret,omitempty"`
	AllowedSources []string               `json:"allowedSources,omitempty"`
}

type Trigger struct {
	Type   TriggerType   `json:"type"`
	Config TriggerConfig `json:"config"`
}

// Condition is a single guard predicate over the triggering payload.
// Field is a dot path into the payload; top-level conditions are AND-ed.
type Condition struct {
	Field    string      `json:"field"`
	Operator string      `json:"operator"`
	Value    interface{} `json:"value,omitempty"`
}

type ActionType string

const (
	ActionSendEmail       ActionType = "send_email"
	ActionSendWebhook     ActionType = "send_webhook"
	ActionSendChatMessage ActionType = "send_chat_message"
	ActionUpdateLink      ActionType = "update_link"
	ActionAddTag          ActionType = "add_tag"
	ActionDisableLink     ActionType = "disable_link"
	ActionNotifyTeam      ActionType = "notify_team"
	ActionCreateReport    ActionType = "create_report"
	ActionLogEvent        ActionType = "log_event"
)

// KnownActionType reports whether t belongs to the closed action set.
func KnownActionType(t ActionType) bool {
	switch t {
	case ActionSendEmail, ActionSendWebhook, ActionSendChatMessage,
		ActionUpdateLink, ActionAddTag, ActionDisableLink,
		ActionNotifyTeam, ActionCreateReport, ActionLogEvent:
		return true
	}
	return false
}

// KnownOperator reports whether op is a supported condition operator.
func KnownOperator(op string) bool {
	switch op {
	case "eq", "ne", "gt", "lt", "gte", "lte",
		"contains", "not_contains", "exists", "not_exists",
		"in", "not_in", "regex":
		return true
	}
	return false
}

type ActionSpec struct {
	Type      ActionType             `json:"type"`
	Config    map[string]interface{} `json:"config"`
	Condition *Condition             `json:"condition,omitempty"`
}

type WorkflowDefinition struct {
	ID             string
	Name           string
	Description    string
	Trigger        Trigger
	Actions        []ActionSpec
	Conditions     []Condition
	Enabled        bool
	ExecutionCount int
	LastExecutedAt sql.NullTime
	LastStatus     sql.NullString
	Created        time.Time
	Updated        time.Time
}

// ShouldBeScheduled reports whether the definition must own a live cron timer.
func (w *WorkflowDefinition) ShouldBeScheduled() bool {
	return w.Enabled &&
		w.Trigger.Type == TriggerSchedule &&
		w.Trigger.Config.CronExpression != ""
}
