package issues

import (
	"context"
	"database/sql"
	"sync"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/platinummonkey/sprintflow/pkg/apperr"
	"github.com/platinummonkey/sprintflow/pkg/audit"
	"github.com/platinummonkey/sprintflow/pkg/automation"
	"github.com/stretchr/testify/require"
)

const testSchema = `
	CREATE TABLE issues (
		id TEXT PRIMARY KEY,
		project_id TEXT NOT NULL,
		key TEXT NOT NULL,
		title TEXT NOT NULL,
		description TEXT,
		type_id TEXT,
		status TEXT NOT NULL,
		priority TEXT NOT NULL,
		assignee_id TEXT,
		reporter_id TEXT,
		sprint_id TEXT,
		points INTEGER,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL,
		UNIQUE (project_id, key)
	);
	CREATE TABLE issue_key_sequences (
		project_id TEXT PRIMARY KEY,
		last_key INTEGER NOT NULL
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

func seedIssue(t *testing.T, store *Store, projectID, title string) *Issue {
	t.Helper()
	issue := &Issue{
		ProjectID: projectID,
		Title:     title,
		Status:    DefaultStatus,
		Priority:  DefaultPriority,
	}
	require.NoError(t, store.CreateIssue(context.Background(), issue))
	return issue
}

type emitted struct {
	room    string
	event   string
	payload interface{}
}

type fakeBroadcaster struct {
	ch chan emitted
}

func newFakeBroadcaster() *fakeBroadcaster {
	return &fakeBroadcaster{ch: make(chan emitted, 32)}
}

func (f *fakeBroadcaster) Emit(room, event string, payload interface{}) {
	f.ch <- emitted{room, event, payload}
}

type fakeTrigger struct {
	mu     sync.Mutex
	events []automation.Event
}

func (f *fakeTrigger) Trigger(ctx context.Context, event automation.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
}

func (f *fakeTrigger) fired() []automation.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]automation.Event(nil), f.events...)
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

func strPtr(s string) *string { return &s }

type fakeProjects map[string]bool

func (f fakeProjects) ValidateProject(ctx context.Context, projectID string) error {
	if !f[projectID] {
		return apperr.BadRequest("Unknown project id: %s", projectID)
	}
	return nil
}

// fakeSprints maps sprint id to project id
type fakeSprints map[string]string

func (f fakeSprints) ValidateSprint(ctx context.Context, projectID, sprintID string) error {
	if f[sprintID] != projectID {
		return apperr.BadRequest("Unknown sprint id: %s", sprintID)
	}
	return nil
}
