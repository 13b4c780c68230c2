package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"time"
)

// ErrNoTeamsWebhooks is returned when no recipient has a Teams webhook URL
var ErrNoTeamsWebhooks = errors.New("no_webhooks_for_teams")

// TeamsMessage represents a Microsoft Teams webhook message
type TeamsMessage struct {
	Type       string         `json:"@type"`
	Context    string         `json:"@context"`
	Summary    string         `json:"summary,omitempty"`
	Title      string         `json:"title,omitempty"`
	Text       string         `json:"text,omitempty"`
	ThemeColor string         `json:"themeColor,omitempty"`
	Sections   []TeamsSection `json:"sections,omitempty"`
}

// TeamsSection represents a section in a Teams message
type TeamsSection struct {
	ActivityTitle string      `json:"activityTitle,omitempty"`
	Facts         []TeamsFact `json:"facts,omitempty"`
	Text          string      `json:"text,omitempty"`
}

// TeamsFact represents a fact in a Teams section
type TeamsFact struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// TeamsChannel posts MessageCards to incoming webhooks
type TeamsChannel struct {
	client *http.Client
}

// NewTeamsChannel creates the Teams channel. timeout bounds each POST.
func NewTeamsChannel(timeout time.Duration) *TeamsChannel {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &TeamsChannel{client: &http.Client{Timeout: timeout}}
}

// Name returns the channel name
func (c *TeamsChannel) Name() string {
	return ChannelTeams
}

// FormatTeamsMessage renders req as a MessageCard
func FormatTeamsMessage(req *Request) TeamsMessage {
	priority := priorityOf(req)
	title := fmt.Sprintf("SprintFlow %s (priority: %s)", req.EventType, priority)

	facts := []TeamsFact{
		{Name: "Event Type", Value: req.EventType},
		{Name: "Priority", Value: priority},
	}
	keys := make([]string, 0, len(req.Data))
	for k := range req.Data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if s, ok := req.Data[k].(string); ok {
			facts = append(facts, TeamsFact{Name: k, Value: s})
		}
	}

	var text string
	if message, ok := req.Data["message"].(string); ok {
		text = message
	}

	return TeamsMessage{
		Type:       "MessageCard",
		Context:    "http://schema.org/extensions",
		Summary:    title,
		Title:      title,
		ThemeColor: themeColor(priority),
		Sections:   []TeamsSection{{Facts: facts, Text: text}},
	}
}

// Deliver posts the card to every recipient webhook. Every URL is attempted;
// the call fails if any of them fails.
func (c *TeamsChannel) Deliver(ctx context.Context, req *Request) (*Delivery, error) {
	var urls []string
	for _, r := range req.Recipients {
		if r.TeamsWebhookURL != "" {
			urls = append(urls, r.TeamsWebhookURL)
		}
	}
	if len(urls) == 0 {
		return nil, ErrNoTeamsWebhooks
	}

	payload, err := json.Marshal(FormatTeamsMessage(req))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	var errs []error
	sent := make([]string, 0, len(urls))
	for _, url := range urls {
		if err := c.post(ctx, url, payload); err != nil {
			errs = append(errs, err)
			continue
		}
		sent = append(sent, url)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return &Delivery{Provider: "teams-webhook", SentTo: sent}, nil
}

func (c *TeamsChannel) post(ctx context.Context, url string, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("teams webhook returned non-2xx status: %d", resp.StatusCode)
	}
	return nil
}

func themeColor(priority string) string {
	switch priority {
	case PriorityHigh:
		return "FF0000"
	case PriorityLow:
		return "808080"
	default:
		return "0078D7"
	}
}
