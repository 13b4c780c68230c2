package webhooks

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/platinummonkey/sprintflow/pkg/apperr"
)

// Repository persists webhook registrations
type Repository interface {
	CreateWebhook(ctx context.Context, webhook *Webhook) error
	GetWebhook(ctx context.Context, id string) (*Webhook, error)
	ListWebhooks(ctx context.Context) ([]*Webhook, error)
	ListActive(ctx context.Context) ([]*Webhook, error)
	SetActive(ctx context.Context, id string, active bool) error
	DeleteWebhook(ctx context.Context, id string) error
}

// Store persists webhooks in SQL
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// NewStore creates a new webhook store
func NewStore(db *sql.DB) *Store {
	return &Store{db: db, now: func() time.Time { return time.Now().UTC() }}
}

const webhookColumns = "id, url, events, secret, active, description, created_at, updated_at"

// CreateWebhook inserts webhook as active
func (s *Store) CreateWebhook(ctx context.Context, webhook *Webhook) error {
	if webhook.ID == "" {
		webhook.ID = uuid.NewString()
	}
	webhook.Active = true
	webhook.CreatedAt = s.now()
	webhook.UpdatedAt = webhook.CreatedAt

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO webhooks (id, url, events, secret, active, description, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		webhook.ID, webhook.URL, pq.StringArray(webhook.Events), webhook.Secret, webhook.Active,
		webhook.Description, webhook.CreatedAt, webhook.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create webhook: %w", err)
	}
	return nil
}

// GetWebhook returns a webhook or a NotFound error
func (s *Store) GetWebhook(ctx context.Context, id string) (*Webhook, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+webhookColumns+" FROM webhooks WHERE id = $1", id)
	webhook, err := scanWebhook(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("Webhook not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get webhook: %w", err)
	}
	return webhook, nil
}

// ListWebhooks returns every webhook, oldest first
func (s *Store) ListWebhooks(ctx context.Context) ([]*Webhook, error) {
	return s.list(ctx, "SELECT "+webhookColumns+" FROM webhooks ORDER BY created_at")
}

// ListActive returns the webhooks eligible for delivery
func (s *Store) ListActive(ctx context.Context) ([]*Webhook, error) {
	return s.list(ctx, "SELECT "+webhookColumns+" FROM webhooks WHERE active = $1 ORDER BY created_at", true)
}

// SetActive enables or disables delivery to a webhook
func (s *Store) SetActive(ctx context.Context, id string, active bool) error {
	result, err := s.db.ExecContext(ctx,
		"UPDATE webhooks SET active = $1, updated_at = $2 WHERE id = $3",
		active, s.now(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to update webhook: %w", err)
	}
	return requireRow(result)
}

// DeleteWebhook removes a webhook
func (s *Store) DeleteWebhook(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM webhooks WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete webhook: %w", err)
	}
	return requireRow(result)
}

func (s *Store) list(ctx context.Context, query string, args ...interface{}) ([]*Webhook, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list webhooks: %w", err)
	}
	defer rows.Close()

	webhooks := make([]*Webhook, 0)
	for rows.Next() {
		webhook, err := scanWebhook(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan webhook: %w", err)
		}
		webhooks = append(webhooks, webhook)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate webhooks: %w", err)
	}
	return webhooks, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanWebhook(row scanner) (*Webhook, error) {
	var webhook Webhook
	var events pq.StringArray
	if err := row.Scan(&webhook.ID, &webhook.URL, &events, &webhook.Secret, &webhook.Active,
		&webhook.Description, &webhook.CreatedAt, &webhook.UpdatedAt); err != nil {
		return nil, err
	}
	webhook.Events = []string(events)
	return &webhook, nil
}

func requireRow(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read result: %w", err)
	}
	if n == 0 {
		return apperr.NotFound("Webhook not found")
	}
	return nil
}
