package sprints

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/platinummonkey/sprintflow/pkg/apperr"
)

// Repository is the persistence the sprint service needs
type Repository interface {
	CreateSprint(ctx context.Context, sprint *Sprint) error
	GetSprint(ctx context.Context, id string) (*Sprint, error)
	ListSprints(ctx context.Context, projectID string) ([]*Sprint, error)
	UpdateState(ctx context.Context, id string, state State) (*Sprint, error)
	Complete(ctx context.Context, id string, carry CarryOver) (*CompleteResult, error)
}

// Store persists sprints in SQL. Completing a sprint also rewrites the
// sprint_id of its unfinished issues.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// NewStore creates a new sprint store
func NewStore(db *sql.DB) *Store {
	return &Store{db: db, now: func() time.Time { return time.Now().UTC() }}
}

const sprintColumns = "id, project_id, name, goal, start_date, end_date, state, created_at, completed_at"

// CreateSprint inserts a planned sprint
func (s *Store) CreateSprint(ctx context.Context, sprint *Sprint) error {
	if sprint.ID == "" {
		sprint.ID = uuid.NewString()
	}
	sprint.State = StatePlanned
	sprint.CreatedAt = s.now()

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO sprints (id, project_id, name, goal, start_date, end_date, state, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)",
		sprint.ID, sprint.ProjectID, sprint.Name, sprint.Goal, sprint.StartDate, sprint.EndDate,
		string(sprint.State), sprint.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create sprint: %w", err)
	}
	return nil
}

// GetSprint returns a sprint or a NotFound error
func (s *Store) GetSprint(ctx context.Context, id string) (*Sprint, error) {
	return getSprint(ctx, s.db, id)
}

// ListSprints lists a project's sprints newest first
func (s *Store) ListSprints(ctx context.Context, projectID string) ([]*Sprint, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+sprintColumns+" FROM sprints WHERE project_id = $1 ORDER BY created_at DESC", projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list sprints: %w", err)
	}
	defer rows.Close()

	out := make([]*Sprint, 0)
	for rows.Next() {
		sprint, err := scanSprint(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sprint: %w", err)
		}
		out = append(out, sprint)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate sprints: %w", err)
	}
	return out, nil
}

// UpdateState changes the state of a sprint that is not yet completed
func (s *Store) UpdateState(ctx context.Context, id string, state State) (*Sprint, error) {
	result, err := s.db.ExecContext(ctx,
		"UPDATE sprints SET state = $1 WHERE id = $2 AND state <> $3",
		string(state), id, string(StateCompleted),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update sprint state: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to read update result: %w", err)
	}

	sprint, err := s.GetSprint(ctx, id)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, apperr.BadRequest("Sprint %s is already completed", id)
	}
	return sprint, nil
}

// Complete marks a sprint completed and moves its unfinished issues to the
// backlog or to the project's next planned sprint, atomically
func (s *Store) Complete(ctx context.Context, id string, carry CarryOver) (*CompleteResult, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	sprint, err := getSprint(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if sprint.State == StateCompleted {
		return nil, apperr.BadRequest("Sprint %s is already completed", id)
	}

	var target *string
	if carry == CarryOverNext {
		var next string
		err := tx.QueryRowContext(ctx, `
			SELECT id FROM sprints
			WHERE project_id = $1 AND state = $2 AND id <> $3
			ORDER BY start_date IS NULL, start_date, created_at
			LIMIT 1`,
			sprint.ProjectID, string(StatePlanned), sprint.ID,
		).Scan(&next)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.BadRequest("Project %s has no planned sprint to receive unfinished issues", sprint.ProjectID)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to find next sprint: %w", err)
		}
		target = &next
	}

	now := s.now()
	if _, err := tx.ExecContext(ctx,
		"UPDATE sprints SET state = $1, completed_at = $2 WHERE id = $3",
		string(StateCompleted), now, sprint.ID,
	); err != nil {
		return nil, fmt.Errorf("failed to complete sprint: %w", err)
	}

	args := []interface{}{target, now, sprint.ID}
	placeholders := make([]string, len(DoneStatuses))
	for i, status := range DoneStatuses {
		args = append(args, status)
		placeholders[i] = fmt.Sprintf("$%d", len(args))
	}
	result, err := tx.ExecContext(ctx,
		"UPDATE issues SET sprint_id = $1, updated_at = $2 WHERE sprint_id = $3 AND status NOT IN ("+
			strings.Join(placeholders, ", ")+")",
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to carry over issues: %w", err)
	}
	moved, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to read carry-over result: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit sprint completion: %w", err)
	}

	sprint.State = StateCompleted
	sprint.CompletedAt = &now
	return &CompleteResult{
		Sprint:         sprint,
		MoveIncomplete: carry,
		TargetSprintID: target,
		Moved:          int(moved),
	}, nil
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

func getSprint(ctx context.Context, q queryer, id string) (*Sprint, error) {
	row := q.QueryRowContext(ctx, "SELECT "+sprintColumns+" FROM sprints WHERE id = $1", id)
	sprint, err := scanSprint(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("Sprint not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get sprint: %w", err)
	}
	return sprint, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanSprint(row scanner) (*Sprint, error) {
	var sprint Sprint
	var state string
	var goal, startDate, endDate sql.NullString
	var completedAt sql.NullTime

	if err := row.Scan(&sprint.ID, &sprint.ProjectID, &sprint.Name, &goal, &startDate, &endDate,
		&state, &sprint.CreatedAt, &completedAt); err != nil {
		return nil, err
	}

	sprint.State = State(state)
	sprint.Goal = nullable(goal)
	sprint.StartDate = nullable(startDate)
	sprint.EndDate = nullable(endDate)
	if completedAt.Valid {
		t := completedAt.Time
		sprint.CompletedAt = &t
	}
	return &sprint, nil
}

func nullable(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}
