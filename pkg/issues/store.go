package issues

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/platinummonkey/sprintflow/pkg/apperr"
)

// Repository is the persistence the issue service needs
type Repository interface {
	CreateIssue(ctx context.Context, issue *Issue) error
	GetIssue(ctx context.Context, id string) (*Issue, error)
	ListIssues(ctx context.Context, filter ListFilter) ([]*Issue, error)
	UpdateIssue(ctx context.Context, id string, fields []FieldValue) (*Issue, error)
	SetStatus(ctx context.Context, id, status string) error
	DeleteIssue(ctx context.Context, id string) (*Issue, error)
}

// Store persists issues in SQL
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// NewStore creates a new issue store
func NewStore(db *sql.DB) *Store {
	return &Store{db: db, now: func() time.Time { return time.Now().UTC() }}
}

const issueColumns = `id, project_id, key, title, description, type_id, status, priority,
	assignee_id, reporter_id, sprint_id, points, created_at, updated_at`

// CreateIssue inserts issue with the next key of its project
func (s *Store) CreateIssue(ctx context.Context, issue *Issue) error {
	if issue.ID == "" {
		issue.ID = uuid.NewString()
	}
	issue.CreatedAt = s.now()
	issue.UpdatedAt = issue.CreatedAt

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	// Keys come from a per-project counter so a deleted issue's key is never
	// handed out again
	var next int
	if err := tx.QueryRowContext(ctx, `
		INSERT INTO issue_key_sequences (project_id, last_key) VALUES ($1, 1)
		ON CONFLICT (project_id) DO UPDATE SET last_key = issue_key_sequences.last_key + 1
		RETURNING last_key`, issue.ProjectID,
	).Scan(&next); err != nil {
		return fmt.Errorf("failed to allocate issue key: %w", err)
	}
	issue.Key = strconv.Itoa(next)

	_, err = tx.ExecContext(ctx, `
		INSERT INTO issues (id, project_id, key, title, description, type_id, status, priority,
			assignee_id, reporter_id, sprint_id, points, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		issue.ID, issue.ProjectID, issue.Key, issue.Title, issue.Description, issue.TypeID,
		issue.Status, issue.Priority, issue.AssigneeID, issue.ReporterID, issue.SprintID,
		issue.Points, issue.CreatedAt, issue.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperr.Conflict("issue key %s already taken in project %s", issue.Key, issue.ProjectID)
		}
		return fmt.Errorf("failed to create issue: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit issue: %w", err)
	}
	return nil
}

// GetIssue returns an issue or a NotFound error
func (s *Store) GetIssue(ctx context.Context, id string) (*Issue, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+issueColumns+" FROM issues WHERE id = $1", id)
	issue, err := scanIssue(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("Issue not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get issue: %w", err)
	}
	return issue, nil
}

// ListIssues lists issues newest first
func (s *Store) ListIssues(ctx context.Context, filter ListFilter) ([]*Issue, error) {
	query := "SELECT " + issueColumns + " FROM issues"
	var conds []string
	var args []interface{}
	if filter.ProjectID != "" {
		args = append(args, filter.ProjectID)
		conds = append(conds, fmt.Sprintf("project_id = $%d", len(args)))
	}
	if filter.SprintID != "" {
		args = append(args, filter.SprintID)
		conds = append(conds, fmt.Sprintf("sprint_id = $%d", len(args)))
	}
	if filter.Backlog {
		conds = append(conds, "sprint_id IS NULL")
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list issues: %w", err)
	}
	defer rows.Close()

	issues := make([]*Issue, 0)
	for rows.Next() {
		issue, err := scanIssue(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan issue: %w", err)
		}
		issues = append(issues, issue)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate issues: %w", err)
	}
	return issues, nil
}

// UpdateIssue writes fields and returns the updated issue
func (s *Store) UpdateIssue(ctx context.Context, id string, fields []FieldValue) (*Issue, error) {
	if len(fields) == 0 {
		return nil, apperr.BadRequest("No valid fields to update")
	}

	sets := make([]string, 0, len(fields)+1)
	args := make([]interface{}, 0, len(fields)+2)
	for _, f := range fields {
		args = append(args, f.Value)
		sets = append(sets, fmt.Sprintf("%s = $%d", f.Field, len(args)))
	}
	args = append(args, s.now())
	sets = append(sets, fmt.Sprintf("updated_at = $%d", len(args)))
	args = append(args, id)

	query := fmt.Sprintf("UPDATE issues SET %s WHERE id = $%d", strings.Join(sets, ", "), len(args))
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to update issue: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to read update result: %w", err)
	}
	if n == 0 {
		return nil, apperr.NotFound("Issue not found")
	}
	return s.GetIssue(ctx, id)
}

// SetStatus sets an issue's status. An unknown id is not an error.
func (s *Store) SetStatus(ctx context.Context, id, status string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE issues SET status = $1, updated_at = $2 WHERE id = $3",
		status, s.now(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to set issue status: %w", err)
	}
	return nil
}

// DeleteIssue removes an issue and returns what was deleted
func (s *Store) DeleteIssue(ctx context.Context, id string) (*Issue, error) {
	issue, err := s.GetIssue(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := s.db.ExecContext(ctx, "DELETE FROM issues WHERE id = $1", id); err != nil {
		return nil, fmt.Errorf("failed to delete issue: %w", err)
	}
	return issue, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanIssue(row scanner) (*Issue, error) {
	var issue Issue
	var description, typeID, assigneeID, reporterID, sprintID sql.NullString
	var points sql.NullInt64

	if err := row.Scan(&issue.ID, &issue.ProjectID, &issue.Key, &issue.Title, &description,
		&typeID, &issue.Status, &issue.Priority, &assigneeID, &reporterID, &sprintID, &points,
		&issue.CreatedAt, &issue.UpdatedAt); err != nil {
		return nil, err
	}

	issue.Description = nullable(description)
	issue.TypeID = nullable(typeID)
	issue.AssigneeID = nullable(assigneeID)
	issue.ReporterID = nullable(reporterID)
	issue.SprintID = nullable(sprintID)
	if points.Valid {
		p := int(points.Int64)
		issue.Points = &p
	}
	return &issue, nil
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
