package sprints

import "time"

// State is the lifecycle stage of a sprint
type State string

const (
	StatePlanned   State = "planned"
	StateStarted   State = "started"
	StateCompleted State = "completed"
)

// CarryOver says where Complete moves unfinished issues
type CarryOver string

const (
	CarryOverBacklog CarryOver = "backlog"
	CarryOverNext    CarryOver = "next"
)

// DoneStatuses are the issue statuses that count as finished
var DoneStatuses = []string{"done", "completed"}

// Realtime events
const (
	EventSprintCreated   = "sprint:created"
	EventSprintUpdated   = "sprint:updated"
	EventSprintCompleted = "sprint:completed"
)

// DateLayout is the wire format of start_date and end_date
const DateLayout = "2006-01-02"

// Sprint is a time box of work within a project
type Sprint struct {
	ID          string     `json:"id"`
	ProjectID   string     `json:"project_id"`
	Name        string     `json:"name"`
	Goal        *string    `json:"goal"`
	StartDate   *string    `json:"start_date"`
	EndDate     *string    `json:"end_date"`
	State       State      `json:"state"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at"`
}

// CreateSprintInput is the payload for creating a sprint
type CreateSprintInput struct {
	ProjectID string  `json:"project_id"`
	Name      string  `json:"name"`
	Goal      *string `json:"goal,omitempty"`
	StartDate *string `json:"start_date,omitempty"`
	EndDate   *string `json:"end_date,omitempty"`
}

// CompleteResult reports a completed sprint and how many issues moved
type CompleteResult struct {
	Sprint         *Sprint   `json:"sprint"`
	MoveIncomplete CarryOver `json:"move_incomplete"`
	TargetSprintID *string   `json:"target_sprint_id,omitempty"`
	Moved          int       `json:"moved"`
}

// ProjectRoom returns the realtime room for a project
func ProjectRoom(projectID string) string {
	return "project:" + projectID
}
