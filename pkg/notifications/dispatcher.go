package notifications

import (
	"context"
	"strings"
	"time"

	"github.com/platinummonkey/sprintflow/pkg/apperr"
	"github.com/platinummonkey/sprintflow/pkg/async"
	"github.com/platinummonkey/sprintflow/pkg/audit"
	"github.com/platinummonkey/sprintflow/pkg/observability"
	"golang.org/x/sync/errgroup"
)

// EventReceived is emitted to the global room for every accepted notification
const EventReceived = "notification:received"

// ErrUnsupportedChannel is the result error for channels with no adapter
const ErrUnsupportedChannel = "unsupported_channel"

const emitTimeout = 5 * time.Second

// Dispatcher validates notifications and delivers them on every requested channel
type Dispatcher struct {
	channels    map[string]Channel
	emitter     Emitter
	auditLogger audit.Logger
	metrics     *observability.Metrics
}

// Option configures a Dispatcher
type Option func(*Dispatcher)

// WithChannel registers or replaces a channel adapter
func WithChannel(c Channel) Option {
	return func(d *Dispatcher) { d.channels[normalizeChannel(c.Name())] = c }
}

// WithEmitter announces accepted notifications on the global room
func WithEmitter(e Emitter) Option {
	return func(d *Dispatcher) { d.emitter = e }
}

// WithAuditLogger records each channel attempt
func WithAuditLogger(l audit.Logger) Option {
	return func(d *Dispatcher) { d.auditLogger = l }
}

// WithMetrics counts deliveries per channel
func WithMetrics(m *observability.Metrics) Option {
	return func(d *Dispatcher) { d.metrics = m }
}

// NewDispatcher creates a dispatcher with the given channel adapters
func NewDispatcher(opts ...Option) *Dispatcher {
	d := &Dispatcher{
		channels:    make(map[string]Channel),
		auditLogger: audit.NoOpLogger{},
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.metrics == nil {
		d.metrics = observability.NewNopMetrics()
	}
	return d
}

// Validate reports every problem with req
func Validate(req *Request) []string {
	if req == nil {
		return []string{"payload required"}
	}
	var errs []string
	if strings.TrimSpace(req.EventType) == "" {
		errs = append(errs, "event_type required")
	}
	if len(req.Recipients) == 0 {
		errs = append(errs, "recipients array required")
	}
	if len(req.Channels) == 0 {
		errs = append(errs, "channels array required")
	}
	return errs
}

// Dispatch delivers req on each of its channels concurrently. Results keep
// the order of req.Channels. A failing channel never fails the call; only an
// invalid request does.
func (d *Dispatcher) Dispatch(ctx context.Context, req *Request) ([]ChannelResult, error) {
	if errs := Validate(req); len(errs) > 0 {
		return nil, apperr.BadRequest("Invalid notification payload: %s", strings.Join(errs, "; "))
	}

	if d.emitter != nil {
		announcement := map[string]interface{}{
			"event_type": req.EventType,
			"channels":   req.Channels,
			"priority":   priorityOf(req),
		}
		async.SafeGoNoError(ctx, emitTimeout, "realtime "+EventReceived, func(ctx context.Context) {
			d.emitter.Emit("global", EventReceived, announcement)
		})
	}

	results := make([]ChannelResult, len(req.Channels))
	var g errgroup.Group
	for i, name := range req.Channels {
		i, name := i, name
		g.Go(func() error {
			results[i] = d.deliver(ctx, name, req)
			return nil
		})
	}
	g.Wait()

	return results, nil
}

func (d *Dispatcher) deliver(ctx context.Context, name string, req *Request) ChannelResult {
	channel, ok := d.channels[normalizeChannel(name)]
	if !ok {
		d.metrics.NotificationsTotal.WithLabelValues(name, "unsupported").Inc()
		return ChannelResult{Channel: name, Success: false, Error: ErrUnsupportedChannel}
	}

	delivery, err := channel.Deliver(ctx, req)
	if err != nil {
		observability.FromContext(ctx).WithError(err).WithFields(map[string]interface{}{
			"channel":    name,
			"event_type": req.EventType,
		}).Warn("notification dispatch failed")
		d.metrics.NotificationsTotal.WithLabelValues(name, "failure").Inc()
		d.record(ctx, req, name, audit.EventStatusFailure, map[string]interface{}{"error": err.Error()})
		return ChannelResult{Channel: name, Success: false, Error: err.Error()}
	}

	d.metrics.NotificationsTotal.WithLabelValues(name, "success").Inc()
	d.record(ctx, req, name, audit.EventStatusSuccess, map[string]interface{}{"count": len(delivery.SentTo)})
	return ChannelResult{Channel: name, Success: true, Details: delivery}
}

func (d *Dispatcher) record(ctx context.Context, req *Request, channel string, status audit.EventStatus, metadata map[string]interface{}) {
	event := audit.NewEvent(ctx, audit.EventTypeNotificationDispatch, status)
	event.ResourceType = audit.ResourceTypeNotification
	event.ResourceID = req.EventType
	event.Metadata["channel"] = channel
	for k, v := range metadata {
		event.Metadata[k] = v
	}
	if msg, ok := metadata["error"].(string); ok {
		event.ErrorMessage = msg
	}
	audit.Record(ctx, d.auditLogger, event)
}
