package webhooks

import (
	"time"
)

// Event types published by the board and automation services
const (
	EventBoardIssueMoved     = "board.issue_moved"
	EventBoardIssueReordered = "board.issue_reordered"
	EventAutomationPrefix    = "automation."

	// EventAll subscribes a webhook to every event type
	EventAll = "*"
)

// Event is the JSON body of a webhook delivery
type Event struct {
	ID        string      `json:"id"`
	Type      string      `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}

// Webhook is a registered delivery target
type Webhook struct {
	ID          string    `json:"id"`
	URL         string    `json:"url"`
	Events      []string  `json:"events"`
	Secret      string    `json:"secret,omitempty"`
	Active      bool      `json:"active"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Subscribed reports whether the webhook wants eventType
func (w *Webhook) Subscribed(eventType string) bool {
	for _, e := range w.Events {
		if e == EventAll || e == eventType {
			return true
		}
	}
	return false
}

// Redacted returns a copy without the signing secret
func (w *Webhook) Redacted() *Webhook {
	c := *w
	c.Secret = ""
	return &c
}

// CreateWebhookInput is the payload for registering a webhook
type CreateWebhookInput struct {
	URL         string   `json:"url"`
	Events      []string `json:"events"`
	Secret      string   `json:"secret,omitempty"`
	Description string   `json:"description,omitempty"`
}
