package webhooks

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/platinummonkey/sprintflow/pkg/apperr"
	"github.com/platinummonkey/sprintflow/pkg/observability"
	"github.com/robfig/cron/v3"
)

// DefaultRetrySchedule is how often the retry sweep runs
const DefaultRetrySchedule = "@every 30s"

// RetryConfig configures retry behavior
type RetryConfig struct {
	MaxAttempts       int           `json:"max_attempts"`
	InitialDelay      time.Duration `json:"initial_delay"`
	MaxDelay          time.Duration `json:"max_delay"`
	BackoffMultiplier float64       `json:"backoff_multiplier"`
}

// DefaultRetryConfig returns the default retry configuration
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:       5,
		InitialDelay:      1 * time.Second,
		MaxDelay:          5 * time.Minute,
		BackoffMultiplier: 2.0,
	}
}

// RetryPolicy implements exponential backoff retry logic
type RetryPolicy struct {
	config RetryConfig
}

// NewRetryPolicy creates a retry policy, filling unset fields with defaults
func NewRetryPolicy(config RetryConfig) *RetryPolicy {
	defaults := DefaultRetryConfig()
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = defaults.MaxAttempts
	}
	if config.InitialDelay <= 0 {
		config.InitialDelay = defaults.InitialDelay
	}
	if config.MaxDelay <= 0 {
		config.MaxDelay = defaults.MaxDelay
	}
	if config.BackoffMultiplier <= 1.0 {
		config.BackoffMultiplier = defaults.BackoffMultiplier
	}
	return &RetryPolicy{config: config}
}

// ShouldRetry reports whether a delivery that failed with err after attempts
// tries gets another one
func (p *RetryPolicy) ShouldRetry(attempts int, err error) bool {
	return err != nil && attempts < p.config.MaxAttempts
}

// NextRetryDelay returns initialDelay * multiplier^(attempts-1), capped at MaxDelay
func (p *RetryPolicy) NextRetryDelay(attempts int) time.Duration {
	if attempts <= 0 {
		return p.config.InitialDelay
	}

	delay := float64(p.config.InitialDelay) * math.Pow(p.config.BackoffMultiplier, float64(attempts-1))
	if delay > float64(p.config.MaxDelay) {
		return p.config.MaxDelay
	}
	return time.Duration(delay)
}

// NextRetryTime calculates when the next retry should occur
func (p *RetryPolicy) NextRetryTime(attempts int) time.Time {
	return time.Now().Add(p.NextRetryDelay(attempts))
}

// RetryWorker periodically requeues failed deliveries that are due
type RetryWorker struct {
	manager *Manager

	mu        sync.Mutex
	scheduler *cron.Cron
}

// NewRetryWorker creates a new retry worker
func NewRetryWorker(manager *Manager) *RetryWorker {
	return &RetryWorker{manager: manager}
}

// Start runs the retry sweep on schedule, a robfig/cron spec such as "@every 30s"
func (w *RetryWorker) Start(ctx context.Context, schedule string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.scheduler != nil {
		return errors.New("retry worker already started")
	}

	logger := cron.PrintfLogger(observability.Default().WithField("component", "webhook_retry").Entry())
	scheduler := cron.New(cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)))
	if _, err := scheduler.AddFunc(schedule, func() { w.processRetries(ctx) }); err != nil {
		return fmt.Errorf("invalid retry schedule %q: %w", schedule, err)
	}
	scheduler.Start()
	w.scheduler = scheduler
	return nil
}

// Stop stops the sweep and waits for a running one to finish
func (w *RetryWorker) Stop() {
	w.mu.Lock()
	scheduler := w.scheduler
	w.scheduler = nil
	w.mu.Unlock()

	if scheduler != nil {
		<-scheduler.Stop().Done()
	}
}

// processRetries requeues every due delivery whose webhook is still active
func (w *RetryWorker) processRetries(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	logger := observability.FromContext(ctx)
	for _, log := range w.manager.deliveries.GetPendingRetries(time.Now()) {
		webhook, err := w.manager.repo.GetWebhook(ctx, log.WebhookID)
		switch {
		case errors.Is(err, apperr.ErrNotFound):
			w.manager.finish(log, DeliveryStatusFailed, "webhook not found")
			continue
		case err != nil:
			logger.WithError(err).WithField("webhook_id", log.WebhookID).Warn("failed to load webhook for retry")
			continue
		case !webhook.Active:
			w.manager.finish(log, DeliveryStatusFailed, "webhook is inactive")
			continue
		}

		if err := w.manager.enqueue(webhook, log); err != nil {
			logger.WithError(err).WithField("delivery_id", log.ID).Warn("failed to requeue webhook delivery")
		}
	}
}
