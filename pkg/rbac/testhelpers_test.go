package rbac

import (
	"context"
	"database/sql"
	"sync"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"
)

// sqlite variant of Migrations(); TIMESTAMP lets the driver scan time.Time
const testSchema = `
	CREATE TABLE roles (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		description TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL
	);
	CREATE TABLE permissions (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		description TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL
	);
	CREATE TABLE role_permissions (
		role_id TEXT NOT NULL,
		permission_id TEXT NOT NULL,
		PRIMARY KEY (role_id, permission_id)
	);
`

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(testSchema)
	require.NoError(t, err)
	return db
}

func setupSeededStore(t *testing.T) *Store {
	t.Helper()
	db := setupTestDB(t)
	require.NoError(t, Seed(context.Background(), db))
	return NewStore(db)
}

// countingStore records lookups and serves a fixed role table
type countingStore struct {
	mu    sync.Mutex
	roles map[string][]Permission
	calls int
	err   error
}

func (s *countingStore) GetPermissionsForRoles(ctx context.Context, roles []string) ([]Permission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	set := NewPermissionSet()
	for _, r := range roles {
		set.Add(s.roles[r]...)
	}
	return set.List(), nil
}

func (s *countingStore) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}
