package webhooks

import (
	"github.com/platinummonkey/sprintflow/pkg/storage"
)

// Migrations returns the webhook schema migrations
func Migrations() []storage.Migration {
	return []storage.Migration{
		{
			Version:     1,
			Description: "Create webhooks table",
			SQL: `
				CREATE TABLE IF NOT EXISTS webhooks (
					id UUID PRIMARY KEY,
					url TEXT NOT NULL,
					events TEXT[] NOT NULL,
					secret TEXT NOT NULL DEFAULT '',
					active BOOLEAN NOT NULL DEFAULT TRUE,
					description TEXT NOT NULL DEFAULT '',
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);

				CREATE INDEX IF NOT EXISTS idx_webhooks_active ON webhooks(active);
			`,
		},
	}
}
