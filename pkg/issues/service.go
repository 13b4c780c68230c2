package issues

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/platinummonkey/sprintflow/pkg/apperr"
	"github.com/platinummonkey/sprintflow/pkg/async"
	"github.com/platinummonkey/sprintflow/pkg/audit"
	"github.com/platinummonkey/sprintflow/pkg/auth"
	"github.com/platinummonkey/sprintflow/pkg/automation"
	"github.com/platinummonkey/sprintflow/pkg/observability"
)

const sideEffectTimeout = 5 * time.Second

// Broadcaster pushes events to realtime rooms
type Broadcaster interface {
	Emit(room, event string, payload interface{})
}

// AutomationTrigger evaluates automation rules in the background
type AutomationTrigger interface {
	Trigger(ctx context.Context, event automation.Event)
}

// ProjectValidator rejects unknown project ids
type ProjectValidator interface {
	ValidateProject(ctx context.Context, projectID string) error
}

// SprintValidator rejects sprints that cannot take issues of a project
type SprintValidator interface {
	ValidateSprint(ctx context.Context, projectID, sprintID string) error
}

// Service implements the issue lifecycle
type Service struct {
	repo        Repository
	projects    ProjectValidator
	sprints     SprintValidator
	auditLogger audit.Logger
	broadcaster Broadcaster
	automation  AutomationTrigger
}

// Option configures a Service
type Option func(*Service)

// WithAuditLogger records issue changes
func WithAuditLogger(l audit.Logger) Option {
	return func(s *Service) { s.auditLogger = l }
}

// WithBroadcaster emits realtime issue events
func WithBroadcaster(b Broadcaster) Option {
	return func(s *Service) { s.broadcaster = b }
}

// WithAutomation fires rules on issue creation
func WithAutomation(t AutomationTrigger) Option {
	return func(s *Service) { s.automation = t }
}

// WithProjects checks project_id on creation
func WithProjects(p ProjectValidator) Option {
	return func(s *Service) { s.projects = p }
}

// WithSprints checks sprint_id on creation and update
func WithSprints(v SprintValidator) Option {
	return func(s *Service) { s.sprints = v }
}

// NewService creates an issue service
func NewService(repo Repository, opts ...Option) *Service {
	s := &Service{repo: repo, auditLogger: audit.NoOpLogger{}}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create creates an issue reported by the principal in ctx
func (s *Service) Create(ctx context.Context, in CreateIssueInput) (*Issue, error) {
	in.ProjectID = strings.TrimSpace(in.ProjectID)
	in.Title = strings.TrimSpace(in.Title)
	if in.ProjectID == "" || in.Title == "" {
		return nil, apperr.BadRequest("project_id and title required")
	}
	if s.projects != nil {
		if err := s.projects.ValidateProject(ctx, in.ProjectID); err != nil {
			return nil, err
		}
	}
	if err := s.validateSprint(ctx, in.ProjectID, in.SprintID); err != nil {
		return nil, err
	}

	issue := &Issue{
		ProjectID:   in.ProjectID,
		Title:       in.Title,
		Description: in.Description,
		TypeID:      in.TypeID,
		SprintID:    in.SprintID,
		Status:      DefaultStatus,
		Priority:    strings.TrimSpace(in.Priority),
	}
	if issue.Priority == "" {
		issue.Priority = DefaultPriority
	}

	principal := auth.PrincipalFromContext(ctx)
	if principal != nil && principal.UserID != "" {
		reporter := principal.UserID
		issue.ReporterID = &reporter
	}

	if err := s.repo.CreateIssue(ctx, issue); err != nil {
		return nil, err
	}

	s.record(ctx, audit.EventTypeIssueCreate, issue.ID, map[string]interface{}{
		"key":        issue.Key,
		"project_id": issue.ProjectID,
	})
	s.emit(ctx, issue.ProjectID, EventIssueCreated, issue)
	s.trigger(ctx, principal, issue)
	return issue, nil
}

// Get returns an issue by id
func (s *Service) Get(ctx context.Context, id string) (*Issue, error) {
	if strings.TrimSpace(id) == "" {
		return nil, apperr.BadRequest("issue_id required")
	}
	return s.repo.GetIssue(ctx, id)
}

// List returns issues matching filter, newest first
func (s *Service) List(ctx context.Context, filter ListFilter) ([]*Issue, error) {
	return s.repo.ListIssues(ctx, filter)
}

// Backlog returns the issues of a project that are in no sprint
func (s *Service) Backlog(ctx context.Context, projectID string) ([]*Issue, error) {
	projectID = strings.TrimSpace(projectID)
	if projectID == "" {
		return nil, apperr.BadRequest("project_id required")
	}
	return s.repo.ListIssues(ctx, ListFilter{ProjectID: projectID, Backlog: true})
}

// Update applies the whitelisted entries of fields. Other keys are ignored.
func (s *Service) Update(ctx context.Context, id string, fields map[string]interface{}) (*Issue, error) {
	return s.update(ctx, audit.EventTypeIssueUpdate, id, fields)
}

// Transition moves an issue to a new status
func (s *Service) Transition(ctx context.Context, id, toStatus string) (*Issue, error) {
	if strings.TrimSpace(id) == "" || strings.TrimSpace(toStatus) == "" {
		return nil, apperr.BadRequest("issue_id and to_status required")
	}
	return s.update(ctx, audit.EventTypeIssueTransition, id, map[string]interface{}{"status": toStatus})
}

// UpdateField changes a single field
func (s *Service) UpdateField(ctx context.Context, issueID, field string, value interface{}) error {
	_, err := s.Update(ctx, issueID, map[string]interface{}{field: value})
	return err
}

// SetStatus sets the status of an issue after a board move. A missing issue is ignored.
func (s *Service) SetStatus(ctx context.Context, issueID, status string) error {
	return s.repo.SetStatus(ctx, issueID, status)
}

// Delete removes an issue
func (s *Service) Delete(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return apperr.BadRequest("issue_id required")
	}

	issue, err := s.repo.DeleteIssue(ctx, id)
	if err != nil {
		return err
	}

	s.record(ctx, audit.EventTypeIssueDelete, issue.ID, map[string]interface{}{
		"key":        issue.Key,
		"project_id": issue.ProjectID,
	})
	s.emit(ctx, issue.ProjectID, EventIssueDeleted, map[string]string{
		"id":         issue.ID,
		"project_id": issue.ProjectID,
	})
	return nil
}

func (s *Service) update(ctx context.Context, eventType audit.EventType, id string, fields map[string]interface{}) (*Issue, error) {
	if strings.TrimSpace(id) == "" || fields == nil {
		return nil, apperr.BadRequest("issue_id and fields required")
	}

	values, err := normalizeFields(fields)
	if err != nil {
		return nil, err
	}
	if len(values) == 0 {
		return nil, apperr.BadRequest("No valid fields to update")
	}
	if err := s.checkSprintChange(ctx, id, values); err != nil {
		return nil, err
	}

	issue, err := s.repo.UpdateIssue(ctx, id, values)
	if err != nil {
		return nil, err
	}

	changed := make([]string, len(values))
	for i, v := range values {
		changed[i] = v.Field
	}
	s.record(ctx, eventType, issue.ID, map[string]interface{}{"changed": changed})
	s.emit(ctx, issue.ProjectID, EventIssueUpdated, issue)
	return issue, nil
}

func (s *Service) validateSprint(ctx context.Context, projectID string, sprintID *string) error {
	if s.sprints == nil || sprintID == nil || *sprintID == "" {
		return nil
	}
	return s.sprints.ValidateSprint(ctx, projectID, *sprintID)
}

// checkSprintChange validates a non-null sprint_id against the issue's project
func (s *Service) checkSprintChange(ctx context.Context, id string, values []FieldValue) error {
	if s.sprints == nil {
		return nil
	}
	for _, v := range values {
		sprintID, ok := v.Value.(string)
		if v.Field != "sprint_id" || !ok {
			continue
		}
		current, err := s.repo.GetIssue(ctx, id)
		if err != nil {
			return err
		}
		return s.validateSprint(ctx, current.ProjectID, &sprintID)
	}
	return nil
}

// normalizeFields keeps the whitelisted fields in a fixed order and checks
// their value types
func normalizeFields(fields map[string]interface{}) ([]FieldValue, error) {
	var out []FieldValue
	for _, name := range UpdatableFields {
		raw, ok := fields[name]
		if !ok {
			continue
		}

		switch name {
		case "points":
			v, err := normalizePoints(raw)
			if err != nil {
				return nil, err
			}
			out = append(out, FieldValue{Field: name, Value: v})

		case "status", "title", "priority":
			str, ok := raw.(string)
			if !ok || strings.TrimSpace(str) == "" {
				return nil, apperr.BadRequest("%s must be a non-empty string", name)
			}
			out = append(out, FieldValue{Field: name, Value: strings.TrimSpace(str)})

		default:
			if raw == nil {
				out = append(out, FieldValue{Field: name, Value: nil})
				continue
			}
			str, ok := raw.(string)
			if !ok {
				return nil, apperr.BadRequest("%s must be a string or null", name)
			}
			out = append(out, FieldValue{Field: name, Value: str})
		}
	}
	return out, nil
}

func normalizePoints(raw interface{}) (interface{}, error) {
	switch v := raw.(type) {
	case nil:
		return nil, nil
	case int:
		if v >= 0 {
			return int64(v), nil
		}
	case int64:
		if v >= 0 {
			return v, nil
		}
	case float64:
		if v >= 0 && v == math.Trunc(v) && v <= math.MaxInt32 {
			return int64(v), nil
		}
	}
	return nil, apperr.BadRequest("points must be a non-negative integer or null")
}

func (s *Service) record(ctx context.Context, eventType audit.EventType, issueID string, metadata map[string]interface{}) {
	event := audit.NewEvent(ctx, eventType, audit.EventStatusSuccess)
	event.ResourceType = audit.ResourceTypeIssue
	event.ResourceID = issueID
	for k, v := range metadata {
		event.Metadata[k] = v
	}
	audit.Record(ctx, s.auditLogger, event)
}

func (s *Service) emit(ctx context.Context, projectID, event string, payload interface{}) {
	if s.broadcaster == nil {
		return
	}
	async.SafeGoNoError(ctx, sideEffectTimeout, "realtime "+event, func(ctx context.Context) {
		s.broadcaster.Emit(ProjectRoom(projectID), event, payload)
	})
}

func (s *Service) trigger(ctx context.Context, principal *auth.Principal, issue *Issue) {
	if s.automation == nil {
		return
	}
	event, err := automation.NewEvent(TriggerIssueCreated, map[string]interface{}{
		"issue":      issue,
		"project_id": issue.ProjectID,
	}, principal)
	if err != nil {
		observability.FromContext(ctx).WithError(err).Warn("failed to build automation event")
		return
	}
	s.automation.Trigger(ctx, event)
}
