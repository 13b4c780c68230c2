package sprints

import (
	"context"
	"strings"
	"time"

	"github.com/platinummonkey/sprintflow/pkg/apperr"
	"github.com/platinummonkey/sprintflow/pkg/async"
	"github.com/platinummonkey/sprintflow/pkg/audit"
)

const sideEffectTimeout = 5 * time.Second

// Broadcaster pushes events to realtime rooms
type Broadcaster interface {
	Emit(room, event string, payload interface{})
}

// ProjectValidator rejects unknown project ids
type ProjectValidator interface {
	ValidateProject(ctx context.Context, projectID string) error
}

// Service implements the sprint lifecycle
type Service struct {
	repo        Repository
	projects    ProjectValidator
	auditLogger audit.Logger
	broadcaster Broadcaster
}

// Option configures a Service
type Option func(*Service)

// WithProjects checks that new sprints belong to an existing project
func WithProjects(p ProjectValidator) Option {
	return func(s *Service) { s.projects = p }
}

// WithAuditLogger records sprint changes
func WithAuditLogger(l audit.Logger) Option {
	return func(s *Service) { s.auditLogger = l }
}

// WithBroadcaster emits realtime sprint events
func WithBroadcaster(b Broadcaster) Option {
	return func(s *Service) { s.broadcaster = b }
}

// NewService creates a sprint service
func NewService(repo Repository, opts ...Option) *Service {
	s := &Service{repo: repo, auditLogger: audit.NoOpLogger{}}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create creates a planned sprint
func (s *Service) Create(ctx context.Context, in CreateSprintInput) (*Sprint, error) {
	projectID := strings.TrimSpace(in.ProjectID)
	name := strings.TrimSpace(in.Name)
	if projectID == "" || name == "" {
		return nil, apperr.BadRequest("project_id and name required")
	}

	start, err := parseDate("start_date", in.StartDate)
	if err != nil {
		return nil, err
	}
	end, err := parseDate("end_date", in.EndDate)
	if err != nil {
		return nil, err
	}
	if start != nil && end != nil && *end < *start {
		return nil, apperr.BadRequest("end_date must not be before start_date")
	}

	if s.projects != nil {
		if err := s.projects.ValidateProject(ctx, projectID); err != nil {
			return nil, err
		}
	}

	sprint := &Sprint{
		ProjectID: projectID,
		Name:      name,
		Goal:      in.Goal,
		StartDate: start,
		EndDate:   end,
	}
	if err := s.repo.CreateSprint(ctx, sprint); err != nil {
		return nil, err
	}

	s.record(ctx, audit.EventTypeSprintCreate, sprint.ID, map[string]interface{}{
		"project_id": sprint.ProjectID,
	})
	s.emit(ctx, sprint.ProjectID, EventSprintCreated, sprint)
	return sprint, nil
}

// Get returns a sprint by id
func (s *Service) Get(ctx context.Context, id string) (*Sprint, error) {
	if strings.TrimSpace(id) == "" {
		return nil, apperr.BadRequest("sprint_id required")
	}
	return s.repo.GetSprint(ctx, id)
}

// List returns a project's sprints, newest first
func (s *Service) List(ctx context.Context, projectID string) ([]*Sprint, error) {
	projectID = strings.TrimSpace(projectID)
	if projectID == "" {
		return nil, apperr.BadRequest("project_id required")
	}
	return s.repo.ListSprints(ctx, projectID)
}

// UpdateState moves a sprint between planned and started. Finishing a sprint
// goes through Complete so its issues are carried over.
func (s *Service) UpdateState(ctx context.Context, id string, state State) (*Sprint, error) {
	if strings.TrimSpace(id) == "" || state == "" {
		return nil, apperr.BadRequest("sprint_id and state required")
	}
	switch state {
	case StatePlanned, StateStarted:
	case StateCompleted:
		return nil, apperr.BadRequest("use complete to finish a sprint")
	default:
		return nil, apperr.BadRequest("invalid sprint state: %s", state)
	}

	sprint, err := s.repo.UpdateState(ctx, id, state)
	if err != nil {
		return nil, err
	}

	s.record(ctx, audit.EventTypeSprintStateUpdate, sprint.ID, map[string]interface{}{
		"state": string(state),
	})
	s.emit(ctx, sprint.ProjectID, EventSprintUpdated, sprint)
	return sprint, nil
}

// Complete finishes a sprint. Unfinished issues go to the backlog unless
// carry is "next".
func (s *Service) Complete(ctx context.Context, id string, carry CarryOver) (*CompleteResult, error) {
	if strings.TrimSpace(id) == "" {
		return nil, apperr.BadRequest("sprint_id required")
	}
	switch carry {
	case "":
		carry = CarryOverBacklog
	case CarryOverBacklog, CarryOverNext:
	default:
		return nil, apperr.BadRequest("move_incomplete must be backlog or next")
	}

	result, err := s.repo.Complete(ctx, id, carry)
	if err != nil {
		return nil, err
	}

	metadata := map[string]interface{}{
		"move_incomplete": string(carry),
		"moved":           result.Moved,
	}
	if result.TargetSprintID != nil {
		metadata["target_sprint_id"] = *result.TargetSprintID
	}
	s.record(ctx, audit.EventTypeSprintComplete, result.Sprint.ID, metadata)
	s.emit(ctx, result.Sprint.ProjectID, EventSprintCompleted, result)
	return result, nil
}

// ValidateSprint checks that sprintID names a sprint of projectID that can
// still take issues
func (s *Service) ValidateSprint(ctx context.Context, projectID, sprintID string) error {
	sprint, err := s.repo.GetSprint(ctx, sprintID)
	if apperr.KindOf(err) == apperr.KindNotFound {
		return apperr.BadRequest("Unknown sprint id: %s", sprintID)
	}
	if err != nil {
		return err
	}
	if sprint.ProjectID != projectID {
		return apperr.BadRequest("Sprint %s belongs to another project", sprintID)
	}
	if sprint.State == StateCompleted {
		return apperr.BadRequest("Sprint %s is completed", sprintID)
	}
	return nil
}

func parseDate(field string, value *string) (*string, error) {
	if value == nil || strings.TrimSpace(*value) == "" {
		return nil, nil
	}
	v := strings.TrimSpace(*value)
	if _, err := time.Parse(DateLayout, v); err != nil {
		return nil, apperr.BadRequest("%s must be a YYYY-MM-DD date", field)
	}
	return &v, nil
}

func (s *Service) record(ctx context.Context, eventType audit.EventType, sprintID string, metadata map[string]interface{}) {
	event := audit.NewEvent(ctx, eventType, audit.EventStatusSuccess)
	event.ResourceType = audit.ResourceTypeSprint
	event.ResourceID = sprintID
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
