package boards

import (
	"time"
)

// BoardType is the board workflow flavour
type BoardType string

const (
	BoardTypeScrum  BoardType = "scrum"
	BoardTypeKanban BoardType = "kanban"
)

// Board is a project board and its position document
type Board struct {
	ID        string           `json:"id"`
	ProjectID string           `json:"project_id"`
	Name      string           `json:"name"`
	Type      BoardType        `json:"type"`
	Config    PositionDocument `json:"config"`
	Version   int64            `json:"version"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// CreateBoardInput is the input to CreateBoard
type CreateBoardInput struct {
	ProjectID string            `json:"project_id"`
	Name      string            `json:"name"`
	Type      BoardType         `json:"type,omitempty"`
	Config    *PositionDocument `json:"config,omitempty"`
}

// MoveIssueInput is the input to MoveIssue. FromColumnID is informational:
// the issue is taken out of whichever column holds it, so a stale source
// never leaves a second copy behind.
type MoveIssueInput struct {
	BoardID      string `json:"board_id"`
	IssueID      string `json:"issue_id"`
	FromColumnID string `json:"from_column_id,omitempty"`
	ToColumnID   string `json:"to_column_id"`
	Position     int    `json:"position"`
}

// ReorderIssueInput is the input to ReorderIssue
type ReorderIssueInput struct {
	BoardID  string `json:"board_id"`
	ColumnID string `json:"column_id"`
	IssueID  string `json:"issue_id"`
	Position *int   `json:"position"`
}

// MoveResult reports where an issue landed
type MoveResult struct {
	BoardID      string `json:"board_id"`
	IssueID      string `json:"issue_id"`
	FromColumnID string `json:"from_column_id,omitempty"`
	ToColumnID   string `json:"to_column_id"`
	Position     int    `json:"position"`
	Status       string `json:"status,omitempty"`
}

// Realtime event names
const (
	EventBoardCreated   = "board:created"
	EventColumnsUpdated = "board:columns_updated"
	EventIssueMoved     = "board:issue_moved"
	EventIssueReordered = "board:issue_reordered"
)

// Room returns the realtime room for a board
func Room(boardID string) string {
	return "board:" + boardID
}
