package webhooks

import (
	"context"
	"database/sql"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"
)

const testSchema = `
	CREATE TABLE webhooks (
		id TEXT PRIMARY KEY,
		url TEXT NOT NULL,
		events TEXT NOT NULL,
		secret TEXT NOT NULL DEFAULT '',
		active BOOLEAN NOT NULL DEFAULT 1,
		description TEXT NOT NULL DEFAULT '',
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

// newStartedManager returns a running manager whose retry sweep never fires on
// its own; tests drive it through processRetries
func newStartedManager(t *testing.T, opts ...Option) *Manager {
	t.Helper()
	manager := NewManager(setupTestStore(t), opts...)
	require.NoError(t, manager.Start(context.Background(), "@every 1h"))
	t.Cleanup(func() { manager.Stop(2 * time.Second) })
	return manager
}

func register(t *testing.T, manager *Manager, url string, events ...string) *Webhook {
	t.Helper()
	webhook, err := manager.Register(context.Background(), CreateWebhookInput{
		URL:    url,
		Events: events,
		Secret: "s3cret",
	})
	require.NoError(t, err)
	return webhook
}

type capturedRequest struct {
	header http.Header
	body   []byte
}

// receiver is an endpoint that answers with a scripted sequence of statuses,
// repeating the last one
type receiver struct {
	mu       sync.Mutex
	statuses []int
	requests []capturedRequest
	server   *httptest.Server
}

func newReceiver(t *testing.T, statuses ...int) *receiver {
	t.Helper()
	if len(statuses) == 0 {
		statuses = []int{http.StatusOK}
	}
	rc := &receiver{statuses: statuses}
	rc.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)

		rc.mu.Lock()
		rc.requests = append(rc.requests, capturedRequest{header: r.Header.Clone(), body: body})
		status := rc.statuses[0]
		if len(rc.statuses) > 1 {
			rc.statuses = rc.statuses[1:]
		}
		rc.mu.Unlock()

		w.WriteHeader(status)
	}))
	t.Cleanup(rc.server.Close)
	return rc
}

func (rc *receiver) received() []capturedRequest {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return append([]capturedRequest(nil), rc.requests...)
}

// waitForStatus waits until the single delivery of webhookID reaches status
func waitForStatus(t *testing.T, manager *Manager, webhookID string, status DeliveryStatus) DeliveryLog {
	t.Helper()
	var last DeliveryLog
	require.Eventually(t, func() bool {
		logs := manager.DeliveryLogs(webhookID, 10)
		if len(logs) != 1 {
			return false
		}
		last = logs[0]
		return last.Status == status
	}, 3*time.Second, 10*time.Millisecond)
	return last
}
