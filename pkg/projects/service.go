package projects

import (
	"context"
	"strings"
	"time"

	"github.com/platinummonkey/sprintflow/pkg/apperr"
	"github.com/platinummonkey/sprintflow/pkg/async"
	"github.com/platinummonkey/sprintflow/pkg/audit"
	"github.com/platinummonkey/sprintflow/pkg/auth"
)

const sideEffectTimeout = 5 * time.Second

// Broadcaster pushes events to realtime rooms
type Broadcaster interface {
	Emit(room, event string, payload interface{})
}

// Service manages workspaces and projects
type Service struct {
	repo        Repository
	auditLogger audit.Logger
	broadcaster Broadcaster
}

// Option configures a Service
type Option func(*Service)

// WithAuditLogger records workspace and project creation
func WithAuditLogger(l audit.Logger) Option {
	return func(s *Service) { s.auditLogger = l }
}

// WithBroadcaster announces new projects on the global room
func WithBroadcaster(b Broadcaster) Option {
	return func(s *Service) { s.broadcaster = b }
}

// NewService creates a project service
func NewService(repo Repository, opts ...Option) *Service {
	s := &Service{repo: repo, auditLogger: audit.NoOpLogger{}}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateWorkspace creates a workspace owned by the principal in ctx
func (s *Service) CreateWorkspace(ctx context.Context, in CreateWorkspaceInput) (*Workspace, error) {
	name := strings.TrimSpace(in.Name)
	key := strings.ToUpper(strings.TrimSpace(in.Key))
	if name == "" || key == "" {
		return nil, apperr.BadRequest("name and key required")
	}
	if !keyPattern.MatchString(key) {
		return nil, apperr.BadRequest("invalid key %q: use 2-10 letters or digits starting with a letter", in.Key)
	}

	ws := &Workspace{Name: name, Key: key, CreatedBy: principalID(ctx)}
	if err := s.repo.CreateWorkspace(ctx, ws); err != nil {
		return nil, err
	}

	s.record(ctx, audit.EventTypeWorkspaceCreate, audit.ResourceTypeWorkspace, ws.ID, ws.Key)
	s.emit(ctx, EventWorkspaceCreated, ws)
	return ws, nil
}

// ListWorkspaces returns every workspace, newest first
func (s *Service) ListWorkspaces(ctx context.Context) ([]*Workspace, error) {
	return s.repo.ListWorkspaces(ctx)
}

// CreateProject creates a project led by the principal in ctx
func (s *Service) CreateProject(ctx context.Context, in CreateProjectInput) (*Project, error) {
	workspaceID := strings.TrimSpace(in.WorkspaceID)
	name := strings.TrimSpace(in.Name)
	key := strings.ToUpper(strings.TrimSpace(in.Key))
	if workspaceID == "" || name == "" || key == "" {
		return nil, apperr.BadRequest("workspace_id, name and key required")
	}
	if !keyPattern.MatchString(key) {
		return nil, apperr.BadRequest("invalid key %q: use 2-10 letters or digits starting with a letter", in.Key)
	}

	if _, err := s.repo.GetWorkspace(ctx, workspaceID); err != nil {
		if apperr.KindOf(err) == apperr.KindNotFound {
			return nil, apperr.BadRequest("Unknown workspace id: %s", workspaceID)
		}
		return nil, err
	}

	projectType := strings.TrimSpace(in.Type)
	if projectType == "" {
		projectType = DefaultProjectType
	}

	p := &Project{
		WorkspaceID: workspaceID,
		Name:        name,
		Key:         key,
		Type:        projectType,
		LeadID:      principalID(ctx),
	}
	if err := s.repo.CreateProject(ctx, p); err != nil {
		return nil, err
	}

	s.record(ctx, audit.EventTypeProjectCreate, audit.ResourceTypeProject, p.ID, p.Key)
	s.emit(ctx, EventProjectCreated, p)
	return p, nil
}

// GetProject returns a project by id
func (s *Service) GetProject(ctx context.Context, id string) (*Project, error) {
	if strings.TrimSpace(id) == "" {
		return nil, apperr.BadRequest("project_id required")
	}
	return s.repo.GetProject(ctx, id)
}

// ListProjects returns projects newest first. An empty workspaceID lists all.
func (s *Service) ListProjects(ctx context.Context, workspaceID string) ([]*Project, error) {
	return s.repo.ListProjects(ctx, strings.TrimSpace(workspaceID))
}

// ValidateProject reports an unknown project id as BadRequest
func (s *Service) ValidateProject(ctx context.Context, projectID string) error {
	_, err := s.repo.GetProject(ctx, projectID)
	if apperr.KindOf(err) == apperr.KindNotFound {
		return apperr.BadRequest("Unknown project id: %s", projectID)
	}
	return err
}

func principalID(ctx context.Context) *string {
	p := auth.PrincipalFromContext(ctx)
	if p == nil || p.UserID == "" {
		return nil
	}
	id := p.UserID
	return &id
}

func (s *Service) record(ctx context.Context, eventType audit.EventType, resourceType audit.ResourceType, id, key string) {
	event := audit.NewEvent(ctx, eventType, audit.EventStatusSuccess)
	event.ResourceType = resourceType
	event.ResourceID = id
	event.Metadata["key"] = key
	audit.Record(ctx, s.auditLogger, event)
}

func (s *Service) emit(ctx context.Context, event string, payload interface{}) {
	if s.broadcaster == nil {
		return
	}
	async.SafeGoNoError(ctx, sideEffectTimeout, "realtime "+event, func(ctx context.Context) {
		s.broadcaster.Emit(GlobalRoom, event, payload)
	})
}
