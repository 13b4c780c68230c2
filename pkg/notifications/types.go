package notifications

import (
	"context"
	"strings"
)

// Channel names
const (
	ChannelEmail = "email"
	ChannelTeams = "teams"
	ChannelInApp = "in-app"
)

// Priority values
const (
	PriorityLow    = "low"
	PriorityNormal = "normal"
	PriorityHigh   = "high"
)

// Recipient addresses one target. Each channel reads the field it understands.
type Recipient struct {
	ID                string `json:"id,omitempty" yaml:"id,omitempty"`
	Email             string `json:"email,omitempty" yaml:"email,omitempty"`
	TeamsWebhookURL   string `json:"teams_webhook_url,omitempty" yaml:"teams_webhook_url,omitempty"`
	UserSocketRoom    string `json:"user_socket_room,omitempty" yaml:"user_socket_room,omitempty"`
	ProjectSocketRoom string `json:"project_socket_room,omitempty" yaml:"project_socket_room,omitempty"`
}

// Request is one notification to fan out over channels
type Request struct {
	EventType  string                 `json:"event_type"`
	Recipients []Recipient            `json:"recipients"`
	Channels   []string               `json:"channels"`
	Data       map[string]interface{} `json:"data,omitempty"`
	Priority   string                 `json:"priority,omitempty"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
}

// Delivery describes where a channel sent the notification
type Delivery struct {
	Provider string   `json:"provider"`
	SentTo   []string `json:"sent_to"`
}

// ChannelResult is the outcome of one channel
type ChannelResult struct {
	Channel string    `json:"channel"`
	Success bool      `json:"success"`
	Details *Delivery `json:"details,omitempty"`
	Error   string    `json:"error,omitempty"`
}

// Channel formats and delivers a notification over one transport
type Channel interface {
	Name() string
	Deliver(ctx context.Context, req *Request) (*Delivery, error)
}

// Emitter pushes events into realtime rooms
type Emitter interface {
	Emit(room, event string, payload interface{})
}

func priorityOf(req *Request) string {
	if req.Priority == "" {
		return PriorityNormal
	}
	return req.Priority
}

// normalizeChannel accepts "in_app" as a spelling of "in-app"
func normalizeChannel(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "in_app" {
		return ChannelInApp
	}
	return name
}
