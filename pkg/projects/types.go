package projects

import (
	"regexp"
	"time"
)

// DefaultProjectType is used when a project is created without a type
const DefaultProjectType = "software"

// Realtime events
const (
	EventProjectCreated   = "project:created"
	EventWorkspaceCreated = "workspace:created"
)

// GlobalRoom receives project and workspace announcements
const GlobalRoom = "global"

// keyPattern is the shape of workspace and project keys, e.g. "PLAT" or "WEB2"
var keyPattern = regexp.MustCompile(`^[A-Z][A-Z0-9]{1,9}$`)

// Workspace groups projects
type Workspace struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Key       string    `json:"key"`
	CreatedBy *string   `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
}

// Project owns issues, boards and sprints
type Project struct {
	ID          string    `json:"id"`
	WorkspaceID string    `json:"workspace_id"`
	Name        string    `json:"name"`
	Key         string    `json:"key"`
	Type        string    `json:"type"`
	LeadID      *string   `json:"lead_id"`
	CreatedAt   time.Time `json:"created_at"`
}

// CreateWorkspaceInput is the payload for creating a workspace
type CreateWorkspaceInput struct {
	Name string `json:"name"`
	Key  string `json:"key"`
}

// CreateProjectInput is the payload for creating a project
type CreateProjectInput struct {
	WorkspaceID string `json:"workspace_id"`
	Name        string `json:"name"`
	Key         string `json:"key"`
	Type        string `json:"type,omitempty"`
}
