package boards

import (
	"context"
	"database/sql"
	"sync"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"
)

const testSchema = `
	CREATE TABLE boards (
		id TEXT PRIMARY KEY,
		project_id TEXT NOT NULL,
		name TEXT NOT NULL,
		type TEXT NOT NULL DEFAULT 'scrum',
		config TEXT NOT NULL,
		version INTEGER NOT NULL DEFAULT 1,
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

// seedBoard creates the two column board used across tests
func seedBoard(t *testing.T, store *Store) *Board {
	t.Helper()
	board := &Board{
		ProjectID: "p-1",
		Name:      "Sprint board",
		Type:      BoardTypeScrum,
		Config:    twoColumnDoc(),
	}
	require.NoError(t, store.CreateBoard(context.Background(), board))
	return board
}

type statusCall struct {
	issueID string
	status  string
}

type fakeIssues struct {
	mu    sync.Mutex
	calls []statusCall
	err   error
}

func (f *fakeIssues) SetStatus(ctx context.Context, issueID, status string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, statusCall{issueID, status})
	return f.err
}

type emitted struct {
	room  string
	event string
}

type fakeBroadcaster struct {
	ch chan emitted
}

func newFakeBroadcaster() *fakeBroadcaster {
	return &fakeBroadcaster{ch: make(chan emitted, 32)}
}

func (f *fakeBroadcaster) Emit(room, event string, payload interface{}) {
	f.ch <- emitted{room, event}
}

// racingRepo loses the first n compare-and-swap calls
type racingRepo struct {
	Repository
	mu     sync.Mutex
	losses int
	swaps  int
}

func (r *racingRepo) CompareAndSwap(ctx context.Context, id string, version int64, doc PositionDocument) (bool, error) {
	r.mu.Lock()
	r.swaps++
	if r.losses > 0 {
		r.losses--
		r.mu.Unlock()
		return false, nil
	}
	r.mu.Unlock()
	return r.Repository.CompareAndSwap(ctx, id, version, doc)
}
