package engine

import (
	"encoding/json"
	"fmt"
	"regexp"
	"time"

	"github.com/lnkday/automation-service/internal/core"
)

// ExecutionContext is the per-run bag of data visible to template resolution.
// Data starts as a copy of the triggering payload and grows one
// _action<i>_output entry after each successful action.
type ExecutionContext struct {
	WorkflowID   string
	WorkflowName string
	TriggerEvent string
	Data         map[string]interface{}

	triggerData map[string]interface{}
	clock       core.Clock
}

func NewExecutionContext(workflowID, workflowName, triggerEvent string, payload map[string]interface{}, clock core.Clock) *ExecutionContext {
	data := make(map[string]interface{}, len(payload)+4)
	trigger := make(map[string]interface{}, len(payload))
	for k, v := range payload {
		data[k] = v
		trigger[k] = v
	}
	if clock == nil {
		clock = core.NewRealClock()
	}
	return &ExecutionContext{
		WorkflowID:   workflowID,
		WorkflowName: workflowName,
		TriggerEvent: triggerEvent,
		Data:         data,
		triggerData:  trigger,
		clock:        clock,
	}
}

// TriggerData returns the payload as it was when the run started, before any
// action outputs were appended.
func (ec *ExecutionContext) TriggerData() map[string]interface{} {
	return ec.triggerData
}

// AppendActionOutput records an action's output under _action<i>_output so
// later actions in the same run can reference it.
func (ec *ExecutionContext) AppendActionOutput(index int, output interface{}) {
	if output == nil {
		return
	}
	ec.Data[fmt.Sprintf("_action%d_output", index)] = output
}

var templateVarPattern = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_.]+)\s*\}\}`)

// ResolveTemplate substitutes {{...}} placeholders in s. The builtins
// workflowName, workflowId, triggerEvent and timestamp are always available;
// any other key is looked up in the context data by dot path. Unresolvable
// placeholders are left untouched so downstream collaborators can expand
// their own (for example {{team_admins}} and {{current_user}}).
func (ec *ExecutionContext) ResolveTemplate(s string) string {
	return templateVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		key := templateVarPattern.FindStringSubmatch(match)[1]
		switch key {
		case "workflowName":
			return ec.WorkflowName
		case "workflowId":
			return ec.WorkflowID
		case "triggerEvent":
			return ec.TriggerEvent
		case "timestamp":
			return ec.clock.Now().UTC().Format(time.RFC3339)
		}
		if v, ok := LookupPath(ec.Data, key); ok && v != nil {
			return stringifyTemplateValue(v)
		}
		return match
	})
}

// ResolveValue applies template resolution recursively through strings,
// slices and maps, leaving every other type as-is.
func (ec *ExecutionContext) ResolveValue(v interface{}) interface{} {
	switch val := v.(type) {
	case string:
		return ec.ResolveTemplate(val)
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, item := range val {
			out[i] = ec.ResolveValue(item)
		}
		return out
	case map[string]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, item := range val {
			out[k] = ec.ResolveValue(item)
		}
		return out
	default:
		return v
	}
}

// ResolveConfig resolves every templated value of an action config map.
func (ec *ExecutionContext) ResolveConfig(config map[string]interface{}) map[string]interface{} {
	resolved := ec.ResolveValue(config)
	m, ok := resolved.(map[string]interface{})
	if !ok {
		return map[string]interface{}{}
	}
	return m
}

// ResolveRecipients normalizes a recipient config value (string or array)
// into a resolved slice. Dynamic placeholders that the notification service
// expands itself pass through unresolved.
func (ec *ExecutionContext) ResolveRecipients(v interface{}) []string {
	switch val := v.(type) {
	case string:
		return []string{ec.ResolveTemplate(val)}
	case []interface{}:
		out := make([]string, 0, len(val))
		for _, item := range val {
			if s, ok := item.(string); ok {
				out = append(out, ec.ResolveTemplate(s))
			}
		}
		return out
	case []string:
		out := make([]string, 0, len(val))
		for _, s := range val {
			out = append(out, ec.ResolveTemplate(s))
		}
		return out
	default:
		return nil
	}
}

func stringifyTemplateValue(v interface{}) string {
	switch s := v.(type) {
	case string:
		return s
	case float64, int, int64, bool:
		return stringify(v)
	default:
		// Structured values render as compact JSON.
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(b)
	}
}
