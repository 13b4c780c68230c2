package automation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/platinummonkey/sprintflow/pkg/async"
	"github.com/platinummonkey/sprintflow/pkg/audit"
	"github.com/platinummonkey/sprintflow/pkg/observability"
)

// runTimeout bounds a background evaluation started by Trigger
const runTimeout = 30 * time.Second

// RuleDetail lists the action outcomes of one matched rule
type RuleDetail struct {
	RuleID   string         `json:"ruleId"`
	RuleName string         `json:"ruleName"`
	Actions  []ActionResult `json:"actions"`
}

// Result summarizes one evaluation
type Result struct {
	Matched  int          `json:"matched"`
	Executed int          `json:"executed"`
	Details  []RuleDetail `json:"details"`
}

// Engine evaluates rules against events and runs the actions of matches
type Engine struct {
	mu    sync.RWMutex
	rules []Rule

	notifier    Notifier
	updater     FieldUpdater
	webhooks    WebhookPublisher
	auditLogger audit.Logger
	metrics     *observability.Metrics
}

// Option configures an Engine
type Option func(*Engine)

// WithNotifier enables the notify action
func WithNotifier(n Notifier) Option {
	return func(e *Engine) { e.notifier = n }
}

// WithFieldUpdater enables the update_field action
func WithFieldUpdater(u FieldUpdater) Option {
	return func(e *Engine) { e.updater = u }
}

// WithWebhookPublisher enables the call_webhook action
func WithWebhookPublisher(p WebhookPublisher) Option {
	return func(e *Engine) { e.webhooks = p }
}

// WithAuditLogger records every run
func WithAuditLogger(l audit.Logger) Option {
	return func(e *Engine) { e.auditLogger = l }
}

// WithMetrics meters runs and actions
func WithMetrics(m *observability.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// NewEngine creates an engine loaded with DefaultRules
func NewEngine(opts ...Option) *Engine {
	e := &Engine{auditLogger: audit.NoOpLogger{}}
	for _, opt := range opts {
		opt(e)
	}
	if e.metrics == nil {
		e.metrics = observability.NewNopMetrics()
	}
	if err := e.SetRules(DefaultRules()); err != nil {
		panic(fmt.Sprintf("invalid default automation rules: %v", err))
	}
	return e
}

// SetRules compiles and installs rules, replacing the current set.
// Nothing changes if any rule is invalid.
func (e *Engine) SetRules(rules []Rule) error {
	compiled := make([]Rule, len(rules))
	seen := make(map[string]bool, len(rules))
	for i := range rules {
		compiled[i] = rules[i]
		if err := compiled[i].Compile(); err != nil {
			return err
		}
		if seen[compiled[i].ID] {
			return fmt.Errorf("duplicate rule id %s", compiled[i].ID)
		}
		seen[compiled[i].ID] = true
	}

	e.mu.Lock()
	e.rules = compiled
	e.mu.Unlock()
	return nil
}

// Rules returns the installed rules
func (e *Engine) Rules() []Rule {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]Rule, len(e.rules))
	copy(out, e.rules)
	return out
}

// Match returns the rules that apply to event without running them
func (e *Engine) Match(ctx context.Context, event Event) []Rule {
	if event.Type == "" {
		return nil
	}
	env := NewEnv(ctx, event)

	e.mu.RLock()
	defer e.mu.RUnlock()

	var matched []Rule
	for i := range e.rules {
		if e.rules[i].Matches(env) {
			matched = append(matched, e.rules[i])
		}
	}
	return matched
}

// EvaluateAndExecute runs the actions of every matching rule. Action
// failures are reported in the result, never as an error.
func (e *Engine) EvaluateAndExecute(ctx context.Context, event Event) (*Result, error) {
	result := &Result{Details: []RuleDetail{}}
	if event.Type == "" {
		return result, nil
	}

	start := time.Now()
	defer func() {
		e.metrics.AutomationRunsTotal.WithLabelValues(event.Type).Inc()
		e.metrics.AutomationRunDuration.Observe(time.Since(start).Seconds())
	}()

	env := NewEnv(ctx, event)
	matched := e.Match(ctx, event)
	for i := range matched {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		actions := e.executeActions(ctx, &matched[i], env)
		result.Executed += len(actions)
		result.Details = append(result.Details, RuleDetail{
			RuleID:   matched[i].ID,
			RuleName: matched[i].Name,
			Actions:  actions,
		})
	}
	result.Matched = len(matched)

	auditEvent := audit.NewEvent(ctx, audit.EventTypeAutomationRun, audit.EventStatusSuccess)
	auditEvent.ResourceType = audit.ResourceTypeRule
	auditEvent.ResourceID = event.Type
	auditEvent.Metadata["matched"] = result.Matched
	auditEvent.Metadata["executed"] = result.Executed
	audit.Record(ctx, e.auditLogger, auditEvent)

	observability.FromContext(ctx).WithFields(map[string]interface{}{
		"event_type": event.Type,
		"matched":    result.Matched,
		"executed":   result.Executed,
	}).Debug("automation evaluated")

	return result, nil
}

// Trigger evaluates event in the background. The caller never sees the outcome.
func (e *Engine) Trigger(ctx context.Context, event Event) {
	async.SafeGo(ctx, runTimeout, "automation "+event.Type, func(ctx context.Context) error {
		_, err := e.EvaluateAndExecute(ctx, event)
		return err
	})
}
