package automation

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/platinummonkey/sprintflow/pkg/auth"
	"github.com/platinummonkey/sprintflow/pkg/contextkeys"
)

// Actor is the user that caused an event
type Actor struct {
	ID    string   `json:"id"`
	Roles []string `json:"roles"`
}

// Event is a domain event offered to the rule engine
type Event struct {
	Type  string                 `json:"type"`
	Data  map[string]interface{} `json:"data"`
	Actor *Actor                 `json:"actor,omitempty"`
}

// NewEvent builds an event whose data is the JSON form of data, so rule
// paths see the same field names as API clients
func NewEvent(eventType string, data interface{}, actor *auth.Principal) (Event, error) {
	event := Event{Type: eventType, Data: map[string]interface{}{}}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return Event{}, fmt.Errorf("failed to encode event data: %w", err)
		}
		if err := json.Unmarshal(raw, &event.Data); err != nil {
			return Event{}, fmt.Errorf("event data must be an object: %w", err)
		}
	}
	if actor != nil {
		event.Actor = &Actor{ID: actor.UserID, Roles: actor.Roles}
	}
	return event, nil
}

// Env is what conditions and templates evaluate against
type Env struct {
	Event   Event
	root    map[string]interface{}
	context map[string]interface{}
}

// NewEnv prepares an evaluation environment for event
func NewEnv(ctx context.Context, event Event) *Env {
	root := map[string]interface{}{
		"type": event.Type,
		"data": event.Data,
	}
	if event.Actor != nil {
		roles := make([]interface{}, len(event.Actor.Roles))
		for i, r := range event.Actor.Roles {
			roles[i] = r
		}
		root["actor"] = map[string]interface{}{"id": event.Actor.ID, "roles": roles}
	}

	scope := map[string]interface{}{}
	if id := contextkeys.GetRequestID(ctx); id != "" {
		scope["request_id"] = id
	}
	if id := contextkeys.GetUserID(ctx); id != "" {
		scope["user_id"] = id
	}

	return &Env{Event: event, root: root, context: scope}
}

// Lookup resolves a dotted path against event data, then the event itself,
// then the request context. Missing and null values fall through.
func (e *Env) Lookup(path string) (interface{}, bool) {
	for _, scope := range []map[string]interface{}{e.Event.Data, e.root, e.context} {
		if v, ok := getByPath(scope, path); ok {
			return v, true
		}
	}
	return nil, false
}
