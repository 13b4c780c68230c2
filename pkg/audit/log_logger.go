package audit

import (
	"context"

	"github.com/platinummonkey/sprintflow/pkg/observability"
	"github.com/sirupsen/logrus"
)

// LogLogger writes audit events as structured log entries
type LogLogger struct {
	logger *observability.Logger
}

// NewLogLogger creates an audit logger backed by the application logger
func NewLogLogger(logger *observability.Logger) *LogLogger {
	if logger == nil {
		logger = observability.Default()
	}
	return &LogLogger{logger: logger.WithField("audit", true)}
}

// Log emits the event at info level, or warn for failures and denials
func (l *LogLogger) Log(ctx context.Context, event *AuditEvent) error {
	fields := logrus.Fields{
		"event_type": event.EventType,
		"status":     event.Status,
	}
	if event.UserID != "" {
		fields["user_id"] = event.UserID
	}
	if event.ResourceType != "" {
		fields["resource_type"] = event.ResourceType
		fields["resource_id"] = event.ResourceID
	}
	if event.RequestID != "" {
		fields["request_id"] = event.RequestID
	}
	if event.ErrorMessage != "" {
		fields["error"] = event.ErrorMessage
	}
	for k, v := range event.Metadata {
		fields["meta."+k] = v
	}

	entry := l.logger.Entry().WithFields(fields)
	msg := event.Message
	if msg == "" {
		msg = string(event.EventType)
	}

	if event.Status == EventStatusSuccess {
		entry.Info(msg)
	} else {
		entry.Warn(msg)
	}
	return nil
}

// Close is a no-op
func (l *LogLogger) Close() error {
	return nil
}
