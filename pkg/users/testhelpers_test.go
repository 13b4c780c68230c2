package users

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/platinummonkey/sprintflow/pkg/audit"
	"github.com/platinummonkey/sprintflow/pkg/auth"
	"github.com/platinummonkey/sprintflow/pkg/rbac"
	"github.com/stretchr/testify/require"
)

const testSchema = `
	CREATE TABLE users (
		id TEXT PRIMARY KEY,
		email TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		password_hash TEXT NOT NULL,
		roles TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);
`

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(testSchema)
	require.NoError(t, err)
	return NewStore(db)
}

// roleTable serves fixed role grants
type roleTable map[string][]rbac.Permission

func (r roleTable) GetPermissionsForRoles(ctx context.Context, roles []string) ([]rbac.Permission, error) {
	var out []rbac.Permission
	for _, role := range roles {
		out = append(out, r[role]...)
	}
	return out, nil
}

var testRoles = roleTable{
	"viewer":    {rbac.PermProjectRead, rbac.PermIssueRead, rbac.PermBoardRead},
	"developer": {rbac.PermIssueRead, rbac.PermIssueWrite, rbac.PermBoardRead, rbac.PermBoardWrite},
}

func newTestTokens(t *testing.T) *auth.TokenManager {
	t.Helper()
	tokens, err := auth.NewTokenManager("test-secret", "sprintflow", time.Hour)
	require.NoError(t, err)
	return tokens
}

func newTestService(t *testing.T, opts ...Option) (*Service, *auth.TokenManager) {
	t.Helper()
	tokens := newTestTokens(t)
	return NewService(setupTestStore(t), rbac.NewResolver(testRoles), tokens, opts...), tokens
}

type recordingAudit struct {
	events chan *audit.AuditEvent
}

func newRecordingAudit() *recordingAudit {
	return &recordingAudit{events: make(chan *audit.AuditEvent, 16)}
}

func (r *recordingAudit) Log(ctx context.Context, event *audit.AuditEvent) error {
	r.events <- event
	return nil
}

func (r *recordingAudit) Close() error { return nil }
