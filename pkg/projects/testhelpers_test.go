package projects

import (
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"
)

const testSchema = `
	CREATE TABLE workspaces (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		key TEXT NOT NULL UNIQUE,
		created_by TEXT,
		created_at TIMESTAMP NOT NULL
	);
	CREATE TABLE projects (
		id TEXT PRIMARY KEY,
		workspace_id TEXT NOT NULL,
		name TEXT NOT NULL,
		key TEXT NOT NULL,
		type TEXT NOT NULL,
		lead_id TEXT,
		created_at TIMESTAMP NOT NULL,
		UNIQUE (workspace_id, key)
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

type emitted struct {
	room  string
	event string
}

type fakeBroadcaster struct {
	ch chan emitted
}

func newFakeBroadcaster() *fakeBroadcaster {
	return &fakeBroadcaster{ch: make(chan emitted, 8)}
}

func (f *fakeBroadcaster) Emit(room, event string, payload interface{}) {
	f.ch <- emitted{room, event}
}
