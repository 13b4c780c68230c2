package webhooks

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/platinummonkey/sprintflow/pkg/apperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_CreateAndGet(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	webhook := &Webhook{
		URL:         "https://example.com/hook",
		Events:      []string{EventBoardIssueMoved, "automation.issue.created"},
		Secret:      "s3cret",
		Description: "CI",
	}
	require.NoError(t, store.CreateWebhook(ctx, webhook))
	assert.NotEmpty(t, webhook.ID)
	assert.True(t, webhook.Active)

	got, err := store.GetWebhook(ctx, webhook.ID)
	require.NoError(t, err)
	assert.Equal(t, webhook.URL, got.URL)
	assert.Equal(t, webhook.Events, got.Events)
	assert.Equal(t, "s3cret", got.Secret)
	assert.True(t, got.Active)

	_, err = store.GetWebhook(ctx, "missing")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestStore_ListActive(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	on := &Webhook{URL: "https://a.example.com", Events: []string{EventAll}}
	off := &Webhook{URL: "https://b.example.com", Events: []string{EventAll}}
	require.NoError(t, store.CreateWebhook(ctx, on))
	require.NoError(t, store.CreateWebhook(ctx, off))
	require.NoError(t, store.SetActive(ctx, off.ID, false))

	all, err := store.ListWebhooks(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	active, err := store.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, on.ID, active[0].ID)

	assert.ErrorIs(t, store.SetActive(ctx, "missing", true), apperr.ErrNotFound)
}

func TestStore_Delete(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	webhook := &Webhook{URL: "https://example.com", Events: []string{EventAll}}
	require.NoError(t, store.CreateWebhook(ctx, webhook))

	require.NoError(t, store.DeleteWebhook(ctx, webhook.ID))
	assert.ErrorIs(t, store.DeleteWebhook(ctx, webhook.ID), apperr.ErrNotFound)
}

func TestStore_CreateEncodesEventsAsArray(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(`INSERT INTO webhooks`).
		WithArgs(sqlmock.AnyArg(), "https://example.com", pq.StringArray{"a.b", "c.d"}, "", true, "",
			sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = NewStore(db).CreateWebhook(context.Background(), &Webhook{URL: "https://example.com", Events: []string{"a.b", "c.d"}})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
