package sprints

import (
	"github.com/platinummonkey/sprintflow/pkg/storage"
)

// Migrations returns the sprint schema migrations
func Migrations() []storage.Migration {
	return []storage.Migration{
		{
			Version:     1,
			Description: "Create sprints table",
			SQL: `
				CREATE TABLE IF NOT EXISTS sprints (
					id UUID PRIMARY KEY,
					project_id VARCHAR(64) NOT NULL,
					name VARCHAR(255) NOT NULL,
					goal TEXT,
					start_date VARCHAR(10),
					end_date VARCHAR(10),
					state VARCHAR(20) NOT NULL DEFAULT 'planned',
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					completed_at TIMESTAMPTZ
				);

				CREATE INDEX IF NOT EXISTS idx_sprints_project_id ON sprints(project_id);
			`,
		},
	}
}
