package webhooks

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/platinummonkey/sprintflow/pkg/apperr"
	"github.com/platinummonkey/sprintflow/pkg/async"
	"github.com/platinummonkey/sprintflow/pkg/audit"
	"github.com/platinummonkey/sprintflow/pkg/observability"
)

// Delivery request headers
const (
	HeaderSignature = "X-SprintFlow-Signature"
	HeaderEvent     = "X-SprintFlow-Event"
	HeaderEventID   = "X-SprintFlow-Event-ID"
	HeaderDelivery  = "X-SprintFlow-Delivery"
)

const (
	DefaultWorkers         = 4
	DefaultDeliveryTimeout = 10 * time.Second
	defaultDeliveryLogs    = 1000
	maxResponseDrain       = 64 << 10
)

// ErrNotStarted is returned when events are dispatched before Start
var ErrNotStarted = errors.New("webhook delivery is not started")

// Manager registers webhooks and delivers events to them
type Manager struct {
	repo        Repository
	deliveries  *DeliveryLogStore
	client      *http.Client
	policy      *RetryPolicy
	limiter     *RateLimiter
	retry       *RetryWorker
	auditLogger audit.Logger
	metrics     *observability.Metrics
	workers     int

	mu   sync.RWMutex
	pool *async.WorkerPool
}

// Option configures a Manager
type Option func(*Manager)

// WithHTTPClient replaces the delivery client
func WithHTTPClient(client *http.Client) Option {
	return func(m *Manager) { m.client = client }
}

// WithRetryConfig sets the backoff used for failed deliveries
func WithRetryConfig(config RetryConfig) Option {
	return func(m *Manager) { m.policy = NewRetryPolicy(config) }
}

// WithRateLimit allows maxRequests per period to each webhook
func WithRateLimit(maxRequests int, period time.Duration) Option {
	return func(m *Manager) { m.limiter = NewRateLimiter(maxRequests, period) }
}

// WithWorkers sets the number of concurrent deliveries
func WithWorkers(n int) Option {
	return func(m *Manager) { m.workers = n }
}

// WithDeliveryLogLimit bounds the in-memory delivery history
func WithDeliveryLogLimit(n int) Option {
	return func(m *Manager) { m.deliveries = NewDeliveryLogStore(n) }
}

// WithAuditLogger records webhook registrations
func WithAuditLogger(l audit.Logger) Option {
	return func(m *Manager) { m.auditLogger = l }
}

// WithMetrics counts deliveries by outcome
func WithMetrics(metrics *observability.Metrics) Option {
	return func(m *Manager) { m.metrics = metrics }
}

// NewManager creates a webhook manager. Call Start before dispatching.
func NewManager(repo Repository, opts ...Option) *Manager {
	m := &Manager{
		repo:        repo,
		deliveries:  NewDeliveryLogStore(defaultDeliveryLogs),
		client:      &http.Client{Timeout: DefaultDeliveryTimeout},
		policy:      NewRetryPolicy(DefaultRetryConfig()),
		limiter:     NewRateLimiter(100, time.Minute),
		auditLogger: audit.NoOpLogger{},
		workers:     DefaultWorkers,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.retry = NewRetryWorker(m)
	return m
}

// Start launches the delivery workers and the retry sweep
func (m *Manager) Start(ctx context.Context, retrySchedule string) error {
	if retrySchedule == "" {
		retrySchedule = DefaultRetrySchedule
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pool != nil {
		return errors.New("webhook manager already started")
	}

	timeout := m.client.Timeout
	if timeout <= 0 {
		timeout = DefaultDeliveryTimeout
	}
	pool := async.NewWorkerPool(ctx, m.workers, "webhook delivery", timeout)
	if err := m.retry.Start(ctx, retrySchedule); err != nil {
		pool.Shutdown(time.Second)
		return err
	}
	m.pool = pool
	return nil
}

// Stop stops the retry sweep and waits up to timeout for queued deliveries
func (m *Manager) Stop(timeout time.Duration) error {
	m.retry.Stop()

	m.mu.Lock()
	pool := m.pool
	m.pool = nil
	m.mu.Unlock()

	if pool == nil {
		return nil
	}
	return pool.Shutdown(timeout)
}

// Register validates and stores a new active webhook
func (m *Manager) Register(ctx context.Context, in CreateWebhookInput) (*Webhook, error) {
	target := strings.TrimSpace(in.URL)
	u, err := url.Parse(target)
	if target == "" || err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, apperr.BadRequest("webhook url must be an absolute http or https URL")
	}

	events := make([]string, 0, len(in.Events))
	for _, e := range in.Events {
		if e = strings.TrimSpace(e); e != "" {
			events = append(events, e)
		}
	}
	if len(events) == 0 {
		return nil, apperr.BadRequest("at least one event type is required")
	}

	webhook := &Webhook{
		URL:         target,
		Events:      events,
		Secret:      in.Secret,
		Description: in.Description,
	}
	if err := m.repo.CreateWebhook(ctx, webhook); err != nil {
		return nil, err
	}

	m.record(ctx, audit.EventTypeWebhookCreate, webhook.ID, map[string]interface{}{
		"url":    webhook.URL,
		"events": webhook.Events,
	})
	return webhook, nil
}

// Unregister removes a webhook. Queued retries for it fail on the next sweep.
func (m *Manager) Unregister(ctx context.Context, id string) error {
	if err := m.repo.DeleteWebhook(ctx, id); err != nil {
		return err
	}
	m.limiter.Reset(id)
	m.record(ctx, audit.EventTypeWebhookDelete, id, nil)
	return nil
}

// Get returns a webhook by id
func (m *Manager) Get(ctx context.Context, id string) (*Webhook, error) {
	return m.repo.GetWebhook(ctx, id)
}

// List returns every registered webhook
func (m *Manager) List(ctx context.Context) ([]*Webhook, error) {
	return m.repo.ListWebhooks(ctx)
}

// Activate resumes delivery to a webhook
func (m *Manager) Activate(ctx context.Context, id string) error {
	return m.repo.SetActive(ctx, id, true)
}

// Deactivate pauses delivery to a webhook
func (m *Manager) Deactivate(ctx context.Context, id string) error {
	return m.repo.SetActive(ctx, id, false)
}

// DeliveryLogs returns the newest delivery logs of a webhook
func (m *Manager) DeliveryLogs(webhookID string, limit int) []DeliveryLog {
	return m.deliveries.GetByWebhook(webhookID, limit)
}

// DeliveryStats summarizes the delivery history of a webhook
func (m *Manager) DeliveryStats(webhookID string) DeliveryStats {
	return m.deliveries.GetStats(webhookID)
}

// Publish dispatches payload as an event of eventType
func (m *Manager) Publish(ctx context.Context, eventType string, payload interface{}) error {
	_, err := m.Dispatch(ctx, &Event{Type: eventType, Data: payload})
	return err
}

// Dispatch queues event for every active webhook subscribed to its type and
// returns how many deliveries were queued
func (m *Manager) Dispatch(ctx context.Context, event *Event) (int, error) {
	if strings.TrimSpace(event.Type) == "" {
		return 0, apperr.BadRequest("event type is required")
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	body, err := json.Marshal(event)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal event: %w", err)
	}

	webhooks, err := m.repo.ListActive(ctx)
	if err != nil {
		return 0, err
	}

	queued := 0
	for _, webhook := range webhooks {
		if !webhook.Subscribed(event.Type) {
			continue
		}

		log := DeliveryLog{
			ID:        uuid.NewString(),
			WebhookID: webhook.ID,
			EventID:   event.ID,
			EventType: event.Type,
			URL:       webhook.URL,
			Status:    DeliveryStatusPending,
			CreatedAt: time.Now(),
			Payload:   body,
		}
		m.deliveries.Add(log)

		if err := m.enqueue(webhook, log); err != nil {
			m.finish(log, DeliveryStatusFailed, err.Error())
			return queued, err
		}
		queued++
	}
	return queued, nil
}

// enqueue hands a delivery attempt to the worker pool
func (m *Manager) enqueue(webhook *Webhook, log DeliveryLog) error {
	m.mu.RLock()
	pool := m.pool
	m.mu.RUnlock()
	if pool == nil {
		return ErrNotStarted
	}

	log.Status = DeliveryStatusPending
	log.NextRetryAt = nil
	m.deliveries.Update(log)

	return pool.Submit(func(ctx context.Context) error {
		m.deliver(ctx, webhook, log)
		return nil
	})
}

// deliver makes one attempt and records its outcome
func (m *Manager) deliver(ctx context.Context, webhook *Webhook, log DeliveryLog) {
	log.Attempts++
	start := time.Now()
	err := m.send(ctx, webhook, &log)
	log.Duration = time.Since(start)

	switch {
	case err == nil:
		m.finish(log, DeliveryStatusSuccess, "")

	case m.policy.ShouldRetry(log.Attempts, err):
		next := m.policy.NextRetryTime(log.Attempts)
		log.Status = DeliveryStatusRetrying
		log.NextRetryAt = &next
		log.ErrorMessage = err.Error()
		m.deliveries.Update(log)
		m.count(log.EventType, DeliveryStatusRetrying)

		observability.FromContext(ctx).WithError(err).WithFields(map[string]interface{}{
			"webhook_id": webhook.ID,
			"event_type": log.EventType,
			"attempts":   log.Attempts,
		}).Warn("webhook delivery failed, will retry")

	default:
		m.finish(log, DeliveryStatusFailed, fmt.Sprintf("max retries exceeded: %v", err))
	}
}

// send POSTs the signed payload and fills the request details of log
func (m *Manager) send(ctx context.Context, webhook *Webhook, log *DeliveryLog) error {
	if !m.limiter.Allow(webhook.ID) {
		return fmt.Errorf("rate limit exceeded for webhook %s", webhook.ID)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, webhook.URL, bytes.NewReader(log.Payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderEvent, log.EventType)
	req.Header.Set(HeaderEventID, log.EventID)
	req.Header.Set(HeaderDelivery, log.ID)
	if webhook.Secret != "" {
		req.Header.Set(HeaderSignature, generateSignature(log.Payload, webhook.Secret))
	}

	log.RequestHeaders = make(map[string]string, len(req.Header))
	for key, values := range req.Header {
		if len(values) > 0 {
			log.RequestHeaders[key] = values[0]
		}
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send webhook: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseDrain))

	log.StatusCode = resp.StatusCode
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned non-2xx status: %d", resp.StatusCode)
	}
	return nil
}

// finish records a terminal outcome for log
func (m *Manager) finish(log DeliveryLog, status DeliveryStatus, message string) {
	now := time.Now()
	log.Status = status
	log.ErrorMessage = message
	log.NextRetryAt = nil
	log.CompletedAt = &now
	m.deliveries.Update(log)
	m.count(log.EventType, status)
}

func (m *Manager) count(eventType string, status DeliveryStatus) {
	if m.metrics != nil {
		m.metrics.WebhookDeliveriesTotal.WithLabelValues(eventType, string(status)).Inc()
	}
}

func (m *Manager) record(ctx context.Context, eventType audit.EventType, webhookID string, metadata map[string]interface{}) {
	event := audit.NewEvent(ctx, eventType, audit.EventStatusSuccess)
	event.ResourceType = audit.ResourceTypeWebhook
	event.ResourceID = webhookID
	for k, v := range metadata {
		event.Metadata[k] = v
	}
	audit.Record(ctx, m.auditLogger, event)
}

// VerifySignature checks a HeaderSignature value against payload
func VerifySignature(payload []byte, signature, secret string) bool {
	expected := generateSignature(payload, secret)
	return hmac.Equal([]byte(expected), []byte(signature))
}

// generateSignature returns "sha256=" followed by the hex HMAC-SHA256 of payload
func generateSignature(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}
