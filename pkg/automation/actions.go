package automation

import (
	"context"
	"errors"
	"strings"

	"github.com/platinummonkey/sprintflow/pkg/notifications"
)

// ErrUnsupportedAction is the per-action error for unknown action types
var ErrUnsupportedAction = errors.New("unsupported_action_type")

// Notifier delivers notifications for the notify action
type Notifier interface {
	Dispatch(ctx context.Context, req *notifications.Request) ([]notifications.ChannelResult, error)
}

// FieldUpdater changes one issue field for the update_field action
type FieldUpdater interface {
	UpdateField(ctx context.Context, issueID, field string, value interface{}) error
}

// WebhookPublisher forwards events to subscribers for the call_webhook action
type WebhookPublisher interface {
	Publish(ctx context.Context, eventType string, payload interface{}) error
}

// ActionResult is the outcome of one action
type ActionResult struct {
	Type    string      `json:"type"`
	Success bool        `json:"success"`
	Result  interface{} `json:"result,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// executeActions runs every action in order. A failing action never stops
// the ones after it.
func (e *Engine) executeActions(ctx context.Context, rule *Rule, env *Env) []ActionResult {
	results := make([]ActionResult, 0, len(rule.Actions))
	for _, action := range rule.Actions {
		result, err := e.executeAction(ctx, rule, action, env)
		if err != nil {
			e.metrics.AutomationActionsTotal.WithLabelValues(action.Type, "failure").Inc()
			results = append(results, ActionResult{Type: action.Type, Success: false, Error: err.Error()})
			continue
		}
		e.metrics.AutomationActionsTotal.WithLabelValues(action.Type, "success").Inc()
		results = append(results, ActionResult{Type: action.Type, Success: true, Result: result})
	}
	return results
}

func (e *Engine) executeAction(ctx context.Context, rule *Rule, action Action, env *Env) (interface{}, error) {
	switch action.Type {
	case ActionNotify:
		return e.notify(ctx, rule, action, env)
	case ActionUpdateField:
		return e.updateField(ctx, action, env)
	case ActionCallWebhook:
		return e.callWebhook(ctx, rule, action, env)
	default:
		return nil, ErrUnsupportedAction
	}
}

func (e *Engine) notify(ctx context.Context, rule *Rule, action Action, env *Env) (interface{}, error) {
	if e.notifier == nil {
		return nil, errors.New("notifier not configured")
	}

	channels := action.Channels
	if len(channels) == 0 {
		channels = []string{notifications.ChannelInApp}
	}
	priority := action.Priority
	if priority == "" {
		priority = notifications.PriorityNormal
	}

	data := map[string]interface{}{}
	if tpl, ok := action.Data["template"].(string); ok {
		data["message"] = env.Render(tpl)
	} else if action.Data != nil {
		for k, v := range action.Data {
			data[k] = v
		}
	}
	data["event"] = env.Event.Data
	data["rule_id"] = rule.ID

	results, err := e.notifier.Dispatch(ctx, &notifications.Request{
		EventType:  "automation." + env.Event.Type,
		Recipients: env.interpolateRecipients(action.Recipients),
		Channels:   channels,
		Data:       data,
		Priority:   priority,
		Metadata:   map[string]interface{}{"source": "automation"},
	})
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"results": results}, nil
}

func (e *Engine) updateField(ctx context.Context, action Action, env *Env) (interface{}, error) {
	if e.updater == nil {
		return nil, errors.New("field updater not configured")
	}
	if strings.TrimSpace(action.Field) == "" {
		return nil, errors.New("update_field: field required")
	}

	issueID := "{issue.id}"
	if action.IssueID != "" {
		issueID = action.IssueID
	}
	issueID = env.Interpolate(issueID)
	if issueID == "" {
		return nil, errors.New("update_field: issue id unresolved")
	}

	value := action.Value
	if s, ok := value.(string); ok {
		value = env.Interpolate(s)
	}

	if err := e.updater.UpdateField(ctx, issueID, action.Field, value); err != nil {
		return nil, err
	}
	return map[string]interface{}{"issue_id": issueID, "field": action.Field}, nil
}

func (e *Engine) callWebhook(ctx context.Context, rule *Rule, action Action, env *Env) (interface{}, error) {
	if e.webhooks == nil {
		return nil, errors.New("webhook publisher not configured")
	}

	eventType := action.EventType
	if eventType == "" {
		eventType = "automation." + env.Event.Type
	}
	payload := map[string]interface{}{
		"rule_id": rule.ID,
		"trigger": env.Event.Type,
		"data":    env.Event.Data,
	}
	if err := e.webhooks.Publish(ctx, eventType, payload); err != nil {
		return nil, err
	}
	return map[string]interface{}{"event_type": eventType}, nil
}
