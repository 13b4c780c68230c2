package audit

import (
	"context"
	"time"

	"github.com/platinummonkey/sprintflow/pkg/async"
	"github.com/platinummonkey/sprintflow/pkg/contextkeys"
)

// Logger is the interface for audit logging
type Logger interface {
	// Log logs an audit event
	Log(ctx context.Context, event *AuditEvent) error

	// Close closes the logger and flushes any buffered logs
	Close() error
}

// WriteTimeout bounds a single fire-and-forget audit write
const WriteTimeout = 5 * time.Second

// WithLogger adds an audit logger to the context
func WithLogger(ctx context.Context, logger Logger) context.Context {
	return contextkeys.WithAuditLogger(ctx, logger)
}

// FromContext retrieves the audit logger from context
func FromContext(ctx context.Context) Logger {
	if logger, ok := ctx.Value(contextkeys.AuditLoggerKey).(Logger); ok {
		return logger
	}
	return NoOpLogger{}
}

// NoOpLogger discards every event
type NoOpLogger struct{}

func (NoOpLogger) Log(ctx context.Context, event *AuditEvent) error {
	return nil
}

func (NoOpLogger) Close() error {
	return nil
}

// NewEvent creates an event populated from the request context
func NewEvent(ctx context.Context, eventType EventType, status EventStatus) *AuditEvent {
	return &AuditEvent{
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		Status:    status,
		UserID:    contextkeys.GetUserID(ctx),
		RequestID: contextkeys.GetRequestID(ctx),
		Metadata:  make(map[string]interface{}),
	}
}

// Record writes event in the background. Failures are logged and never
// reach the caller.
func Record(ctx context.Context, logger Logger, event *AuditEvent) {
	if logger == nil {
		return
	}
	if _, ok := logger.(NoOpLogger); ok {
		return
	}
	async.SafeGo(ctx, WriteTimeout, "audit "+string(event.EventType), func(ctx context.Context) error {
		return logger.Log(ctx, event)
	})
}
