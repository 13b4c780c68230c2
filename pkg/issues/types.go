package issues

import "time"

// Defaults for new issues
const (
	DefaultStatus   = "todo"
	DefaultPriority = "medium"
)

// Realtime events emitted to the project room
const (
	EventIssueCreated = "issue:created"
	EventIssueUpdated = "issue:updated"
	EventIssueDeleted = "issue:deleted"
)

// TriggerIssueCreated is the automation event fired after creation
const TriggerIssueCreated = "issue.created"

// UpdatableFields lists the fields Update accepts, in the order they are written
var UpdatableFields = []string{
	"status",
	"assignee_id",
	"points",
	"title",
	"description",
	"priority",
	"sprint_id",
	"type_id",
}

// Issue is a unit of work within a project
type Issue struct {
	ID          string    `json:"id"`
	ProjectID   string    `json:"project_id"`
	Key         string    `json:"key"`
	Title       string    `json:"title"`
	Description *string   `json:"description"`
	TypeID      *string   `json:"type_id"`
	Status      string    `json:"status"`
	Priority    string    `json:"priority"`
	AssigneeID  *string   `json:"assignee_id"`
	ReporterID  *string   `json:"reporter_id"`
	SprintID    *string   `json:"sprint_id"`
	Points      *int      `json:"points"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// CreateIssueInput is the payload for creating an issue
type CreateIssueInput struct {
	ProjectID   string  `json:"project_id"`
	SprintID    *string `json:"sprint_id,omitempty"`
	TypeID      *string `json:"type_id,omitempty"`
	Title       string  `json:"title"`
	Description *string `json:"description,omitempty"`
	Priority    string  `json:"priority,omitempty"`
}

// ListFilter narrows ListIssues. Empty fields are ignored.
type ListFilter struct {
	ProjectID string
	SprintID  string
	// Backlog keeps only issues outside any sprint
	Backlog bool
}

// FieldValue is one column assignment of an update
type FieldValue struct {
	Field string
	Value interface{}
}

// ProjectRoom returns the realtime room for a project
func ProjectRoom(projectID string) string {
	return "project:" + projectID
}
