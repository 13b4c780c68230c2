package rbac

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/platinummonkey/sprintflow/pkg/storage"
)

// Migrations returns the RBAC schema migrations
func Migrations() []storage.Migration {
	return []storage.Migration{
		{
			Version:     1,
			Description: "Create roles and permissions tables",
			SQL: `
				CREATE TABLE IF NOT EXISTS roles (
					id UUID PRIMARY KEY,
					name VARCHAR(64) NOT NULL UNIQUE,
					description TEXT NOT NULL DEFAULT '',
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);

				CREATE TABLE IF NOT EXISTS permissions (
					id UUID PRIMARY KEY,
					name VARCHAR(128) NOT NULL UNIQUE,
					description TEXT NOT NULL DEFAULT '',
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);

				CREATE TABLE IF NOT EXISTS role_permissions (
					role_id UUID NOT NULL REFERENCES roles(id) ON DELETE CASCADE,
					permission_id UUID NOT NULL REFERENCES permissions(id) ON DELETE CASCADE,
					PRIMARY KEY (role_id, permission_id)
				);

				CREATE INDEX IF NOT EXISTS idx_role_permissions_permission_id ON role_permissions(permission_id);
			`,
		},
	}
}

// Seed inserts the built-in roles, permissions and grants. It is idempotent.
func Seed(ctx context.Context, db *sql.DB) error {
	now := time.Now().UTC()

	for _, perm := range BuiltInPermissions() {
		if _, err := db.ExecContext(ctx,
			`INSERT INTO permissions (id, name, description, created_at) VALUES ($1, $2, $3, $4) ON CONFLICT (name) DO NOTHING`,
			uuid.NewString(), string(perm), "", now,
		); err != nil {
			return fmt.Errorf("failed to seed permission %s: %w", perm, err)
		}
	}

	for _, role := range BuiltInRoles() {
		if _, err := db.ExecContext(ctx,
			`INSERT INTO roles (id, name, description, created_at) VALUES ($1, $2, $3, $4) ON CONFLICT (name) DO NOTHING`,
			uuid.NewString(), role.Name, role.Description, now,
		); err != nil {
			return fmt.Errorf("failed to seed role %s: %w", role.Name, err)
		}

		for _, perm := range role.Permissions {
			if _, err := db.ExecContext(ctx, `
				INSERT INTO role_permissions (role_id, permission_id)
				SELECT r.id, p.id FROM roles r, permissions p
				WHERE r.name = $1 AND p.name = $2
				ON CONFLICT DO NOTHING`,
				role.Name, string(perm),
			); err != nil {
				return fmt.Errorf("failed to seed grant %s -> %s: %w", role.Name, perm, err)
			}
		}
	}

	return nil
}
