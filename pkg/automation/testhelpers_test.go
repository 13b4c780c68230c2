package automation

import (
	"context"
	"errors"
	"sync"

	"github.com/platinummonkey/sprintflow/pkg/notifications"
)

type recordingNotifier struct {
	mu       sync.Mutex
	requests []*notifications.Request
	err      error
}

func (n *recordingNotifier) Dispatch(ctx context.Context, req *notifications.Request) ([]notifications.ChannelResult, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return nil, n.err
	}
	n.requests = append(n.requests, req)
	results := make([]notifications.ChannelResult, len(req.Channels))
	for i, c := range req.Channels {
		results[i] = notifications.ChannelResult{Channel: c, Success: true}
	}
	return results, nil
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.requests)
}

type fieldUpdate struct {
	issueID string
	field   string
	value   interface{}
}

type recordingUpdater struct {
	updates []fieldUpdate
	fail    bool
}

func (u *recordingUpdater) UpdateField(ctx context.Context, issueID, field string, value interface{}) error {
	if u.fail {
		return errors.New("issue not found")
	}
	u.updates = append(u.updates, fieldUpdate{issueID, field, value})
	return nil
}

type published struct {
	eventType string
	payload   interface{}
}

type recordingPublisher struct {
	events []published
}

func (p *recordingPublisher) Publish(ctx context.Context, eventType string, payload interface{}) error {
	p.events = append(p.events, published{eventType, payload})
	return nil
}

func issueCreated(priority string, roles ...string) Event {
	event := Event{
		Type: "issue.created",
		Data: map[string]interface{}{
			"project_id": "p-1",
			"issue": map[string]interface{}{
				"id":       "i-1",
				"title":    "Login bug",
				"priority": priority,
			},
		},
	}
	if len(roles) > 0 {
		event.Actor = &Actor{ID: "u-1", Roles: roles}
	}
	return event
}
