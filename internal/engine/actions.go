package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/lnkday/automation-service/internal/core"
	"github.com/lnkday/automation-service/internal/domain"
)

// ActionExecutor dispatches one action to its downstream collaborator.
// Execute never returns an error to the caller; every failure is captured in
// the ActionResult so the orchestrator can decide what to do with the run.
type ActionExecutor struct {
	Notifier Notifier
	Links    LinkClient
	Teams    TeamClient
	Webhooks WebhookSender
	Reports  ReportClient

	clock core.Clock
}

func NewActionExecutor(notifier Notifier, links LinkClient, teams TeamClient, webhooks WebhookSender, reports ReportClient, clock core.Clock) *ActionExecutor {
	if clock == nil {
		clock = core.NewRealClock()
	}
	return &ActionExecutor{
		Notifier: notifier,
		Links:    links,
		Teams:    teams,
		Webhooks: webhooks,
		Reports:  reports,
		clock:    clock,
	}
}

func (e *ActionExecutor) Execute(ctx context.Context, action domain.ActionSpec, ec *ExecutionContext) domain.ActionResult {
	result := domain.ActionResult{Type: action.Type}

	if action.Condition != nil && !EvaluateConditions([]domain.Condition{*action.Condition}, ec.Data) {
		result.Success = true
		result.Output = map[string]interface{}{"skipped": true, "reason": "action condition not met"}
		return result
	}

	config := ec.ResolveConfig(action.Config)

	var output interface{}
	var err error
	switch action.Type {
	case domain.ActionSendEmail:
		output, err = e.sendEmail(ctx, config, ec)
	case domain.ActionSendWebhook:
		output, err = e.sendWebhook(ctx, config, ec)
	case domain.ActionSendChatMessage:
		output, err = e.sendChatMessage(ctx, config)
	case domain.ActionUpdateLink:
		output, err = e.updateLink(ctx, config)
	case domain.ActionDisableLink:
		output, err = e.disableLink(ctx, config)
	case domain.ActionAddTag:
		output, err = e.addTag(ctx, config)
	case domain.ActionNotifyTeam:
		output, err = e.notifyTeam(ctx, config, ec)
	case domain.ActionCreateReport:
		output, err = e.createReport(ctx, config)
	case domain.ActionLogEvent:
		output, err = e.logEvent(config, ec)
	default:
		err = fmt.Errorf("unknown action type: %s", action.Type)
	}

	if err != nil {
		result.Success = false
		result.Error = fmt.Sprintf("%s action failed: %v", action.Type, err)
		return result
	}
	result.Success = true
	result.Output = output
	return result
}

func (e *ActionExecutor) sendEmail(ctx context.Context, config map[string]interface{}, ec *ExecutionContext) (interface{}, error) {
	recipients := ec.ResolveRecipients(config["to"])
	if len(recipients) == 0 {
		return nil, fmt.Errorf("no recipients configured")
	}
	subject := configString(config, "subject")
	template := configString(config, "template")
	if template == "" {
		template = "automation-generic"
	}
	variables, _ := config["variables"].(map[string]interface{})

	sent := 0
	for _, to := range recipients {
		if err := e.Notifier.SendEmail(ctx, to, subject, template, variables); err != nil {
			return nil, fmt.Errorf("sending to %s: %w", to, err)
		}
		sent++
	}
	return map[string]interface{}{"sent": sent, "recipients": recipients}, nil
}

func (e *ActionExecutor) sendWebhook(ctx context.Context, config map[string]interface{}, ec *ExecutionContext) (interface{}, error) {
	url := configString(config, "url")
	if url == "" {
		return nil, fmt.Errorf("url is required")
	}

	body := map[string]interface{}{}
	if userBody, ok := config["body"].(map[string]interface{}); ok {
		for k, v := range userBody {
			body[k] = v
		}
	}
	// Attach the automation envelope and the full triggering payload so the
	// receiver can correlate the call without parsing the user body.
	body["_automation"] = map[string]interface{}{
		"workflowId":   ec.WorkflowID,
		"workflowName": ec.WorkflowName,
		"triggerEvent": ec.TriggerEvent,
		"timestamp":    e.clock.Now().UTC().Format(time.RFC3339),
	}
	body["_eventData"] = ec.TriggerData()

	if err := e.Webhooks.Send(ctx, url, body); err != nil {
		return nil, err
	}
	return map[string]interface{}{"url": url, "delivered": true}, nil
}

func (e *ActionExecutor) sendChatMessage(ctx context.Context, config map[string]interface{}) (interface{}, error) {
	url := configString(config, "webhookUrl")
	if url == "" {
		url = configString(config, "url")
	}
	if url == "" {
		return nil, fmt.Errorf("webhookUrl is required")
	}
	msg := domain.ChatMessage{
		Text:    configString(config, "text"),
		Channel: configString(config, "channel"),
	}
	if attachments, ok := config["attachments"].([]interface{}); ok {
		msg.Attachments = attachments
	}
	if err := e.Webhooks.SendChat(ctx, url, msg); err != nil {
		return nil, err
	}
	return map[string]interface{}{"delivered": true}, nil
}

func (e *ActionExecutor) updateLink(ctx context.Context, config map[string]interface{}) (interface{}, error) {
	linkID := configString(config, "linkId")
	if linkID == "" {
		return nil, fmt.Errorf("linkId is required")
	}
	fields, _ := config["updates"].(map[string]interface{})
	if len(fields) == 0 {
		return nil, fmt.Errorf("updates are required")
	}
	if err := e.Links.UpdateLink(ctx, linkID, fields); err != nil {
		return nil, err
	}
	return map[string]interface{}{"linkId": linkID, "updated": true}, nil
}

func (e *ActionExecutor) disableLink(ctx context.Context, config map[string]interface{}) (interface{}, error) {
	linkID := configString(config, "linkId")
	if linkID == "" {
		return nil, fmt.Errorf("linkId is required")
	}
	if err := e.Links.DisableLink(ctx, linkID); err != nil {
		return nil, err
	}
	return map[string]interface{}{"linkId": linkID, "disabled": true}, nil
}

func (e *ActionExecutor) addTag(ctx context.Context, config map[string]interface{}) (interface{}, error) {
	linkID := configString(config, "linkId")
	tag := configString(config, "tag")
	if linkID == "" || tag == "" {
		return nil, fmt.Errorf("linkId and tag are required")
	}
	if err := e.Links.AddTag(ctx, linkID, tag); err != nil {
		return nil, err
	}
	return map[string]interface{}{"linkId": linkID, "tag": tag}, nil
}

func (e *ActionExecutor) notifyTeam(ctx context.Context, config map[string]interface{}, ec *ExecutionContext) (interface{}, error) {
	teamID := configString(config, "teamId")
	if teamID == "" {
		return nil, fmt.Errorf("teamId is required")
	}
	members, err := e.Teams.GetMembers(ctx, teamID)
	if err != nil {
		return nil, fmt.Errorf("looking up team %s: %w", teamID, err)
	}
	subject := configString(config, "subject")
	template := configString(config, "template")
	if template == "" {
		template = "automation-team-notification"
	}
	variables, _ := config["variables"].(map[string]interface{})

	notified := 0
	for _, m := range members {
		if m.Email == "" {
			continue
		}
		if err := e.Notifier.SendEmail(ctx, m.Email, subject, template, variables); err != nil {
			slog.Warn("Failed to notify team member", "team_id", teamID, "email", m.Email, "error", err)
			continue
		}
		notified++
	}
	return map[string]interface{}{"teamId": teamID, "notified": notified, "members": len(members)}, nil
}

func (e *ActionExecutor) createReport(ctx context.Context, config map[string]interface{}) (interface{}, error) {
	req := domain.ReportRequest{
		TeamID:     configString(config, "teamId"),
		ReportType: configString(config, "reportType"),
		Format:     configString(config, "format"),
	}
	if req.ReportType == "" {
		req.ReportType = "weekly"
	}
	if req.Format == "" {
		req.Format = "pdf"
	}
	if recipients, ok := config["recipients"]; ok {
		switch v := recipients.(type) {
		case []interface{}:
			for _, r := range v {
				if s, ok := r.(string); ok {
					req.Recipients = append(req.Recipients, s)
				}
			}
		case string:
			req.Recipients = []string{v}
		}
	}
	reportID, err := e.Reports.GenerateReport(ctx, req)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"reportId": reportID}, nil
}

// logEvent performs no external call; it records a structured entry and
// returns it as the action output.
func (e *ActionExecutor) logEvent(config map[string]interface{}, ec *ExecutionContext) (interface{}, error) {
	message := configString(config, "message")
	slog.Info("Workflow log event",
		"workflow_id", ec.WorkflowID,
		"workflow_name", ec.WorkflowName,
		"trigger_event", ec.TriggerEvent,
		"message", message)
	return map[string]interface{}{
		"message":   message,
		"timestamp": e.clock.Now().UTC().Format(time.RFC3339),
	}, nil
}

func configString(config map[string]interface{}, key string) string {
	if v, ok := config[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
