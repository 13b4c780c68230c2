package issues

import (
	"github.com/platinummonkey/sprintflow/pkg/storage"
)

// Migrations returns the issue schema migrations
func Migrations() []storage.Migration {
	return []storage.Migration{
		{
			Version:     1,
			Description: "Create issues table",
			SQL: `
				CREATE TABLE IF NOT EXISTS issues (
					id UUID PRIMARY KEY,
					project_id VARCHAR(64) NOT NULL,
					key VARCHAR(32) NOT NULL,
					title VARCHAR(500) NOT NULL,
					description TEXT,
					type_id VARCHAR(64),
					status VARCHAR(64) NOT NULL DEFAULT 'todo',
					priority VARCHAR(32) NOT NULL DEFAULT 'medium',
					assignee_id VARCHAR(64),
					reporter_id VARCHAR(64),
					sprint_id VARCHAR(64),
					points INTEGER,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					UNIQUE (project_id, key)
				);

				CREATE INDEX IF NOT EXISTS idx_issues_project_id ON issues(project_id);
				CREATE INDEX IF NOT EXISTS idx_issues_sprint_id ON issues(sprint_id);
			`,
		},
		{
			Version:     2,
			Description: "Track per-project issue keys",
			SQL: `
				CREATE TABLE IF NOT EXISTS issue_key_sequences (
					project_id VARCHAR(64) PRIMARY KEY,
					last_key INTEGER NOT NULL
				);

				INSERT INTO issue_key_sequences (project_id, last_key)
				SELECT project_id, MAX(CAST(key AS INTEGER)) FROM issues GROUP BY project_id
				ON CONFLICT (project_id) DO NOTHING;
			`,
		},
	}
}
