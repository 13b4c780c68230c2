package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"

	"github.com/platinummonkey/sprintflow/pkg/observability"
)

// ErrNoEmailRecipients is returned when no recipient has an email address
var ErrNoEmailRecipients = errors.New("no_recipients_for_email")

// EmailMessage is a rendered email
type EmailMessage struct {
	To      []string
	Subject string
	Text    string
	HTML    string
}

// Sender hands a rendered email to a mail transport
type Sender interface {
	Send(ctx context.Context, msg *EmailMessage) error
	Provider() string
}

// LogSender writes emails to the structured log instead of sending them
type LogSender struct {
	logger *observability.Logger
}

// NewLogSender creates a sender that logs each message
func NewLogSender(logger *observability.Logger) *LogSender {
	if logger == nil {
		logger = observability.Default()
	}
	return &LogSender{logger: logger.WithField("component", "email")}
}

// Send logs msg
func (s *LogSender) Send(ctx context.Context, msg *EmailMessage) error {
	s.logger.WithFields(map[string]interface{}{
		"to":      msg.To,
		"subject": msg.Subject,
	}).Info("email send")
	return nil
}

// Provider names the transport
func (s *LogSender) Provider() string {
	return "log-email"
}

// EmailChannel renders notifications as email
type EmailChannel struct {
	sender Sender
}

// NewEmailChannel creates the email channel
func NewEmailChannel(sender Sender) *EmailChannel {
	return &EmailChannel{sender: sender}
}

// Name returns the channel name
func (c *EmailChannel) Name() string {
	return ChannelEmail
}

// Format renders req without sending it
func (c *EmailChannel) Format(req *Request) (*EmailMessage, error) {
	body, err := json.MarshalIndent(req.Data, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode notification data: %w", err)
	}

	priority := priorityOf(req)
	msg := &EmailMessage{
		Subject: fmt.Sprintf("[SprintFlow] %s", req.EventType),
		Text:    fmt.Sprintf("Event: %s\nPriority: %s\n\n%s", req.EventType, priority, body),
		HTML: fmt.Sprintf("<p><strong>Event:</strong> %s</p><p><strong>Priority:</strong> %s</p><pre>%s</pre>",
			html.EscapeString(req.EventType), html.EscapeString(priority), html.EscapeString(string(body))),
	}
	for _, r := range req.Recipients {
		if r.Email != "" {
			msg.To = append(msg.To, r.Email)
		}
	}
	return msg, nil
}

// Deliver renders and sends the email
func (c *EmailChannel) Deliver(ctx context.Context, req *Request) (*Delivery, error) {
	msg, err := c.Format(req)
	if err != nil {
		return nil, err
	}
	if len(msg.To) == 0 {
		return nil, ErrNoEmailRecipients
	}
	if err := c.sender.Send(ctx, msg); err != nil {
		return nil, fmt.Errorf("failed to send email: %w", err)
	}
	return &Delivery{Provider: c.sender.Provider(), SentTo: msg.To}, nil
}
