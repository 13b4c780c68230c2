package boards

import (
	"github.com/platinummonkey/sprintflow/pkg/storage"
)

// Migrations returns the board schema migrations
func Migrations() []storage.Migration {
	return []storage.Migration{
		{
			Version:     1,
			Description: "Create boards table",
			SQL: `
				CREATE TABLE IF NOT EXISTS boards (
					id UUID PRIMARY KEY,
					project_id VARCHAR(64) NOT NULL,
					name VARCHAR(255) NOT NULL,
					type VARCHAR(20) NOT NULL DEFAULT 'scrum',
					config JSONB NOT NULL DEFAULT '{"columns":[],"issuePositions":{}}',
					version BIGINT NOT NULL DEFAULT 1,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);

				CREATE INDEX IF NOT EXISTS idx_boards_project_id ON boards(project_id);
			`,
		},
	}
}
