package automation

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/platinummonkey/sprintflow/pkg/notifications"
)

// Action types
const (
	ActionNotify      = "notify"
	ActionUpdateField = "update_field"
	ActionCallWebhook = "call_webhook"
)

// Trigger names the event type a rule listens for
type Trigger struct {
	Type string `json:"type" yaml:"type"`
}

// Action is one step a matched rule performs. Which fields apply depends on Type.
type Action struct {
	Type string `json:"type" yaml:"type"`

	// notify
	Channels   []string                  `json:"channels,omitempty" yaml:"channels,omitempty"`
	Recipients []notifications.Recipient `json:"recipients,omitempty" yaml:"recipients,omitempty"`
	Data       map[string]interface{}    `json:"data,omitempty" yaml:"data,omitempty"`
	Priority   string                    `json:"priority,omitempty" yaml:"priority,omitempty"`

	// update_field
	IssueID string      `json:"issue_id,omitempty" yaml:"issue_id,omitempty"`
	Field   string      `json:"field,omitempty" yaml:"field,omitempty"`
	Value   interface{} `json:"value,omitempty" yaml:"value,omitempty"`

	// call_webhook
	EventType string `json:"event_type,omitempty" yaml:"event_type,omitempty"`
}

// Rule matches events by trigger and conditions and runs its actions in order
type Rule struct {
	ID         string          `json:"id" yaml:"id"`
	Name       string          `json:"name" yaml:"name"`
	Enabled    bool            `json:"enabled" yaml:"enabled"`
	Trigger    Trigger         `json:"trigger" yaml:"trigger"`
	Conditions []ConditionSpec `json:"conditions" yaml:"conditions"`
	Actions    []Action        `json:"actions" yaml:"actions"`

	compiled []Condition
}

// Compile validates the rule and compiles its conditions
func (r *Rule) Compile() error {
	if strings.TrimSpace(r.ID) == "" {
		return fmt.Errorf("rule id required")
	}
	if strings.TrimSpace(r.Trigger.Type) == "" {
		return fmt.Errorf("rule %s: trigger type required", r.ID)
	}
	compiled, err := compileAll(r.Conditions)
	if err != nil {
		return fmt.Errorf("rule %s: %w", r.ID, err)
	}
	r.compiled = compiled
	return nil
}

// Matches reports whether the rule applies to the event in env.
// Top-level conditions are AND-ed.
func (r *Rule) Matches(env *Env) bool {
	if !r.Enabled || r.Trigger.Type != env.Event.Type {
		return false
	}
	for _, c := range r.compiled {
		if !c.Evaluate(env) {
			return false
		}
	}
	return true
}

// DefaultRules is the built-in rule set
func DefaultRules() []Rule {
	return []Rule{
		{
			ID:      "rule-issue-created-notify-project",
			Name:    "Notify project room on issue create",
			Enabled: true,
			Trigger: Trigger{Type: "issue.created"},
			Conditions: []ConditionSpec{
				{
					Type: ConditionAnyOf,
					Conditions: []ConditionSpec{
						{Type: ConditionFieldEquals, Field: "issue.priority", Value: "high"},
						{Type: ConditionUserInRoles, Roles: []string{"org_admin", "project_admin"}},
					},
				},
			},
			Actions: []Action{
				{
					Type:       ActionNotify,
					Channels:   []string{notifications.ChannelInApp},
					Recipients: []notifications.Recipient{{ProjectSocketRoom: "project:{project_id}"}},
					Data:       map[string]interface{}{"template": "New issue: {event.data.issue.title}"},
					Priority:   notifications.PriorityNormal,
				},
			},
		},
	}
}

var placeholder = regexp.MustCompile(`\{([^}]+)\}`)

// Interpolate replaces {key} placeholders with values from event data,
// falling back to the event itself. Unknown keys become empty.
func (e *Env) Interpolate(s string) string {
	return placeholder.ReplaceAllStringFunc(s, func(match string) string {
		key := match[1 : len(match)-1]
		if v, ok := getByPath(e.Event.Data, key); ok {
			return stringify(v)
		}
		if v, ok := getByPath(e.root, key); ok {
			return stringify(v)
		}
		return ""
	})
}

// Render expands {event.<path>} references in a message template
func (e *Env) Render(tpl string) string {
	scope := map[string]interface{}{"event": e.root}
	return placeholder.ReplaceAllStringFunc(tpl, func(match string) string {
		v, ok := getByPath(scope, match[1:len(match)-1])
		if !ok {
			return ""
		}
		return stringify(v)
	})
}

func stringify(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case []interface{}:
		parts := make([]string, len(val))
		for i, item := range val {
			parts[i] = stringify(item)
		}
		return strings.Join(parts, ",")
	default:
		return fmt.Sprint(val)
	}
}

func (e *Env) interpolateRecipients(recipients []notifications.Recipient) []notifications.Recipient {
	out := make([]notifications.Recipient, len(recipients))
	for i, r := range recipients {
		out[i] = notifications.Recipient{
			ID:                e.Interpolate(r.ID),
			Email:             e.Interpolate(r.Email),
			TeamsWebhookURL:   e.Interpolate(r.TeamsWebhookURL),
			UserSocketRoom:    e.Interpolate(r.UserSocketRoom),
			ProjectSocketRoom: e.Interpolate(r.ProjectSocketRoom),
		}
	}
	return out
}
