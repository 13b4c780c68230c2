package boards

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/platinummonkey/sprintflow/pkg/apperr"
)

// Repository is the persistence the board service needs
type Repository interface {
	CreateBoard(ctx context.Context, board *Board) error
	GetBoard(ctx context.Context, id string) (*Board, error)
	ListBoards(ctx context.Context, projectID string) ([]*Board, error)
	CompareAndSwap(ctx context.Context, id string, version int64, doc PositionDocument) (bool, error)
}

// Store persists boards in SQL
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// NewStore creates a new board store
func NewStore(db *sql.DB) *Store {
	return &Store{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// CreateBoard inserts board, assigning its id and version
func (s *Store) CreateBoard(ctx context.Context, board *Board) error {
	if board.ID == "" {
		board.ID = uuid.NewString()
	}
	board.Config.Normalize()
	board.Version = 1
	board.CreatedAt = s.now()
	board.UpdatedAt = board.CreatedAt

	config, err := json.Marshal(board.Config)
	if err != nil {
		return fmt.Errorf("failed to encode board config: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO boards (id, project_id, name, type, config, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		board.ID, board.ProjectID, board.Name, string(board.Type), string(config),
		board.Version, board.CreatedAt, board.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create board: %w", err)
	}
	return nil
}

// GetBoard returns a board or a NotFound error
func (s *Store) GetBoard(ctx context.Context, id string) (*Board, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, project_id, name, type, config, version, created_at, updated_at
		FROM boards WHERE id = $1`, id)

	board, err := scanBoard(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("Board not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get board: %w", err)
	}
	return board, nil
}

// ListBoards lists boards, newest first. An empty projectID lists all.
func (s *Store) ListBoards(ctx context.Context, projectID string) ([]*Board, error) {
	query := `
		SELECT id, project_id, name, type, config, version, created_at, updated_at
		FROM boards`
	args := []interface{}{}
	if projectID != "" {
		query += " WHERE project_id = $1"
		args = append(args, projectID)
	}
	query += " ORDER BY created_at DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list boards: %w", err)
	}
	defer rows.Close()

	boards := make([]*Board, 0)
	for rows.Next() {
		board, err := scanBoard(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan board: %w", err)
		}
		boards = append(boards, board)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate boards: %w", err)
	}
	return boards, nil
}

// CompareAndSwap writes doc only if the stored version still equals version.
// It reports false when another writer got there first.
func (s *Store) CompareAndSwap(ctx context.Context, id string, version int64, doc PositionDocument) (bool, error) {
	doc.Normalize()
	config, err := json.Marshal(doc)
	if err != nil {
		return false, fmt.Errorf("failed to encode board config: %w", err)
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE boards SET config = $1, version = version + 1, updated_at = $2
		WHERE id = $3 AND version = $4`,
		string(config), s.now(), id, version,
	)
	if err != nil {
		return false, fmt.Errorf("failed to update board: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read update result: %w", err)
	}
	return n == 1, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanBoard(row scanner) (*Board, error) {
	var board Board
	var boardType string
	var config []byte

	if err := row.Scan(&board.ID, &board.ProjectID, &board.Name, &boardType, &config,
		&board.Version, &board.CreatedAt, &board.UpdatedAt); err != nil {
		return nil, err
	}
	board.Type = BoardType(boardType)

	if len(config) > 0 {
		if err := json.Unmarshal(config, &board.Config); err != nil {
			return nil, fmt.Errorf("failed to decode board config: %w", err)
		}
	}
	board.Config.Normalize()
	return &board, nil
}
