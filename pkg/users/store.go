package users

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

// Repository persists users
type Repository interface {
	CreateUser(ctx context.Context, user *User) error
	GetUser(ctx context.Context, id string) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
}

// Store persists users in SQL
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// NewStore creates a new user store
func NewStore(db *sql.DB) *Store {
	return &Store{db: db, now: func() time.Time { return time.Now().UTC() }}
}

const userColumns = "id, email, name, password_hash, roles, created_at, updated_at"

// CreateUser inserts user. A taken email is a Conflict.
func (s *Store) CreateUser(ctx context.Context, user *User) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	if user.Roles == nil {
		user.Roles = []string{}
	}
	user.CreatedAt = s.now()
	user.UpdatedAt = user.CreatedAt

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, email, name, password_hash, roles, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		user.ID, user.Email, user.Name, user.PasswordHash, pq.StringArray(user.Roles),
		user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperr.Conflict("User already exists")
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// GetUser returns a user by id
func (s *Store) GetUser(ctx context.Context, id string) (*User, error) {
	return s.get(ctx, "SELECT "+userColumns+" FROM users WHERE id = $1", id)
}

// GetUserByEmail returns a user by email address
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	return s.get(ctx, "SELECT "+userColumns+" FROM users WHERE email = $1", email)
}

func (s *Store) get(ctx context.Context, query string, arg string) (*User, error) {
	var user User
	var roles pq.StringArray
	err := s.db.QueryRowContext(ctx, query, arg).Scan(&user.ID, &user.Email, &user.Name,
		&user.PasswordHash, &roles, &user.CreatedAt, &user.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("User not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	user.Roles = []string(roles)
	return &user, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
