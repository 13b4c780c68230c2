package projects

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/platinummonkey/sprintflow/pkg/apperr"
)

// Repository is the persistence the project service needs
type Repository interface {
	CreateWorkspace(ctx context.Context, ws *Workspace) error
	GetWorkspace(ctx context.Context, id string) (*Workspace, error)
	ListWorkspaces(ctx context.Context) ([]*Workspace, error)
	CreateProject(ctx context.Context, p *Project) error
	GetProject(ctx context.Context, id string) (*Project, error)
	ListProjects(ctx context.Context, workspaceID string) ([]*Project, error)
}

// Store persists workspaces and projects in SQL
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// NewStore creates a new project store
func NewStore(db *sql.DB) *Store {
	return &Store{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// CreateWorkspace inserts a workspace. A taken key is a Conflict.
func (s *Store) CreateWorkspace(ctx context.Context, ws *Workspace) error {
	if ws.ID == "" {
		ws.ID = uuid.NewString()
	}
	ws.CreatedAt = s.now()

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO workspaces (id, name, key, created_by, created_at) VALUES ($1, $2, $3, $4, $5)",
		ws.ID, ws.Name, ws.Key, ws.CreatedBy, ws.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperr.Conflict("workspace key %s already exists", ws.Key)
		}
		return fmt.Errorf("failed to create workspace: %w", err)
	}
	return nil
}

// GetWorkspace returns a workspace or a NotFound error
func (s *Store) GetWorkspace(ctx context.Context, id string) (*Workspace, error) {
	var ws Workspace
	var createdBy sql.NullString
	err := s.db.QueryRowContext(ctx,
		"SELECT id, name, key, created_by, created_at FROM workspaces WHERE id = $1", id,
	).Scan(&ws.ID, &ws.Name, &ws.Key, &createdBy, &ws.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("Workspace not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get workspace: %w", err)
	}
	ws.CreatedBy = nullable(createdBy)
	return &ws, nil
}

// ListWorkspaces lists workspaces newest first
func (s *Store) ListWorkspaces(ctx context.Context) ([]*Workspace, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, key, created_by, created_at FROM workspaces ORDER BY created_at DESC")
	if err != nil {
		return nil, fmt.Errorf("failed to list workspaces: %w", err)
	}
	defer rows.Close()

	out := make([]*Workspace, 0)
	for rows.Next() {
		var ws Workspace
		var createdBy sql.NullString
		if err := rows.Scan(&ws.ID, &ws.Name, &ws.Key, &createdBy, &ws.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan workspace: %w", err)
		}
		ws.CreatedBy = nullable(createdBy)
		out = append(out, &ws)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate workspaces: %w", err)
	}
	return out, nil
}

const projectColumns = "id, workspace_id, name, key, type, lead_id, created_at"

// CreateProject inserts a project. A key taken in the workspace is a Conflict.
func (s *Store) CreateProject(ctx context.Context, p *Project) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	p.CreatedAt = s.now()

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO projects ("+projectColumns+") VALUES ($1, $2, $3, $4, $5, $6, $7)",
		p.ID, p.WorkspaceID, p.Name, p.Key, p.Type, p.LeadID, p.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperr.Conflict("project key %s already exists in workspace", p.Key)
		}
		return fmt.Errorf("failed to create project: %w", err)
	}
	return nil
}

// GetProject returns a project or a NotFound error
func (s *Store) GetProject(ctx context.Context, id string) (*Project, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+projectColumns+" FROM projects WHERE id = $1", id)
	p, err := scanProject(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("Project not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get project: %w", err)
	}
	return p, nil
}

// ListProjects lists projects newest first, optionally within one workspace
func (s *Store) ListProjects(ctx context.Context, workspaceID string) ([]*Project, error) {
	query := "SELECT " + projectColumns + " FROM projects"
	var args []interface{}
	if workspaceID != "" {
		query += " WHERE workspace_id = $1"
		args = append(args, workspaceID)
	}
	query += " ORDER BY created_at DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	out := make([]*Project, 0)
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate projects: %w", err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanProject(row scanner) (*Project, error) {
	var p Project
	var leadID sql.NullString
	if err := row.Scan(&p.ID, &p.WorkspaceID, &p.Name, &p.Key, &p.Type, &leadID, &p.CreatedAt); err != nil {
		return nil, err
	}
	p.LeadID = nullable(leadID)
	return &p, nil
}

func nullable(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
