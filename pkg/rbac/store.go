package rbac

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/platinummonkey/sprintflow/pkg/apperr"
	"github.com/platinummonkey/sprintflow/pkg/storage"
)

// PermissionStore is the read side the resolver depends on
type PermissionStore interface {
	GetPermissionsForRoles(ctx context.Context, roles []string) ([]Permission, error)
}

// Store handles RBAC data persistence
type Store struct {
	db *sql.DB
}

// NewStore creates a new RBAC store
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// ListRoles lists all roles with their permissions
func (s *Store) ListRoles(ctx context.Context) ([]Role, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.id, r.name, r.description, r.created_at, p.name
		FROM roles r
		LEFT JOIN role_permissions rp ON rp.role_id = r.id
		LEFT JOIN permissions p ON p.id = rp.permission_id
		ORDER BY r.name ASC, p.name ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list roles: %w", err)
	}
	defer rows.Close()

	var roles []Role
	index := make(map[string]int)
	for rows.Next() {
		var role Role
		var perm sql.NullString
		if err := rows.Scan(&role.ID, &role.Name, &role.Description, &role.CreatedAt, &perm); err != nil {
			return nil, fmt.Errorf("failed to scan role: %w", err)
		}

		i, seen := index[role.ID]
		if !seen {
			i = len(roles)
			index[role.ID] = i
			roles = append(roles, role)
		}
		if perm.Valid {
			roles[i].Permissions = append(roles[i].Permissions, Permission(perm.String))
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate roles: %w", err)
	}

	return roles, nil
}

// ListPermissions lists all known permissions
func (s *Store) ListPermissions(ctx context.Context) ([]PermissionRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, description, created_at
		FROM permissions
		ORDER BY name ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list permissions: %w", err)
	}
	defer rows.Close()

	var perms []PermissionRecord
	for rows.Next() {
		var p PermissionRecord
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan permission: %w", err)
		}
		perms = append(perms, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate permissions: %w", err)
	}

	return perms, nil
}

// GetPermissionsForRoles returns the distinct permissions granted to any of roles
func (s *Store) GetPermissionsForRoles(ctx context.Context, roles []string) ([]Permission, error) {
	if len(roles) == 0 {
		return nil, nil
	}

	args := make([]interface{}, len(roles))
	for i, r := range roles {
		args[i] = r
	}

	query := `
		SELECT DISTINCT p.name
		FROM roles r
		JOIN role_permissions rp ON rp.role_id = r.id
		JOIN permissions p ON p.id = rp.permission_id
		WHERE r.name IN (` + storage.Placeholders(1, len(roles)) + `)
		ORDER BY p.name
	`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get permissions for roles: %w", err)
	}
	defer rows.Close()

	var perms []Permission
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan permission: %w", err)
		}
		perms = append(perms, Permission(name))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate permissions: %w", err)
	}

	return perms, nil
}

// CreateRole creates a new role
func (s *Store) CreateRole(ctx context.Context, name, description string) (*Role, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperr.BadRequest("role name required")
	}

	role := &Role{
		ID:          uuid.NewString(),
		Name:        name,
		Description: description,
		CreatedAt:   time.Now().UTC(),
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO roles (id, name, description, created_at) VALUES ($1, $2, $3, $4)`,
		role.ID, role.Name, role.Description, role.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create role: %w", err)
	}

	return role, nil
}

// CreatePermission registers a new permission
func (s *Store) CreatePermission(ctx context.Context, name, description string) (*PermissionRecord, error) {
	perm, err := ParsePermission(name)
	if err != nil {
		return nil, err
	}

	rec := &PermissionRecord{
		ID:          uuid.NewString(),
		Name:        perm,
		Description: description,
		CreatedAt:   time.Now().UTC(),
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO permissions (id, name, description, created_at) VALUES ($1, $2, $3, $4)`,
		rec.ID, string(rec.Name), rec.Description, rec.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create permission: %w", err)
	}

	return rec, nil
}

// GrantPermission adds perm to role. Granting an existing grant is a no-op.
func (s *Store) GrantPermission(ctx context.Context, role string, perm Permission) error {
	roleID, permID, err := s.lookupGrant(ctx, role, perm)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO role_permissions (role_id, permission_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		roleID, permID,
	)
	if err != nil {
		return fmt.Errorf("failed to grant permission: %w", err)
	}
	return nil
}

// RevokePermission removes perm from role
func (s *Store) RevokePermission(ctx context.Context, role string, perm Permission) error {
	roleID, permID, err := s.lookupGrant(ctx, role, perm)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx,
		`DELETE FROM role_permissions WHERE role_id = $1 AND permission_id = $2`,
		roleID, permID,
	)
	if err != nil {
		return fmt.Errorf("failed to revoke permission: %w", err)
	}
	return nil
}

func (s *Store) lookupGrant(ctx context.Context, role string, perm Permission) (string, string, error) {
	var roleID string
	err := s.db.QueryRowContext(ctx, `SELECT id FROM roles WHERE name = $1`, role).Scan(&roleID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", "", apperr.NotFound("role not found: %s", role)
	}
	if err != nil {
		return "", "", fmt.Errorf("failed to get role: %w", err)
	}

	var permID string
	err = s.db.QueryRowContext(ctx, `SELECT id FROM permissions WHERE name = $1`, string(perm)).Scan(&permID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", "", apperr.NotFound("permission not found: %s", perm)
	}
	if err != nil {
		return "", "", fmt.Errorf("failed to get permission: %w", err)
	}

	return roleID, permID, nil
}
