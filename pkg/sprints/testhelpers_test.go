package sprints

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/platinummonkey/sprintflow/pkg/apperr"
	"github.com/stretchr/testify/require"
)

const testSchema = `
	CREATE TABLE sprints (
		id TEXT PRIMARY KEY,
		project_id TEXT NOT NULL,
		name TEXT NOT NULL,
		goal TEXT,
		start_date TEXT,
		end_date TEXT,
		state TEXT NOT NULL DEFAULT 'planned',
		created_at TIMESTAMP NOT NULL,
		completed_at TIMESTAMP
	);
	CREATE TABLE issues (
		id TEXT PRIMARY KEY,
		project_id TEXT NOT NULL,
		status TEXT NOT NULL,
		sprint_id TEXT,
		updated_at TIMESTAMP NOT NULL
	);
`

func setupTestDB(t *testing.T) (*sql.DB, *Store) {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(testSchema)
	require.NoError(t, err)
	return db, NewStore(db)
}

func insertIssue(t *testing.T, db *sql.DB, id, projectID, status string, sprintID *string) {
	t.Helper()
	_, err := db.Exec("INSERT INTO issues (id, project_id, status, sprint_id, updated_at) VALUES ($1, $2, $3, $4, $5)",
		id, projectID, status, sprintID, time.Now().UTC())
	require.NoError(t, err)
}

func sprintOf(t *testing.T, db *sql.DB, issueID string) *string {
	t.Helper()
	var sprintID sql.NullString
	require.NoError(t, db.QueryRow("SELECT sprint_id FROM issues WHERE id = $1", issueID).Scan(&sprintID))
	return nullable(sprintID)
}

func strPtr(s string) *string { return &s }

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

type fakeProjects map[string]bool

func (f fakeProjects) ValidateProject(ctx context.Context, projectID string) error {
	if !f[projectID] {
		return apperr.BadRequest("Unknown project id: %s", projectID)
	}
	return nil
}
