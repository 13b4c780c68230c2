package projects

import (
	"github.com/platinummonkey/sprintflow/pkg/storage"
)

// Migrations returns the workspace and project schema migrations
func Migrations() []storage.Migration {
	return []storage.Migration{
		{
			Version:     1,
			Description: "Create workspaces and projects tables",
			SQL: `
				CREATE TABLE IF NOT EXISTS workspaces (
					id UUID PRIMARY KEY,
					name VARCHAR(255) NOT NULL,
					key VARCHAR(10) NOT NULL UNIQUE,
					created_by VARCHAR(64),
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);

				CREATE TABLE IF NOT EXISTS projects (
					id UUID PRIMARY KEY,
					workspace_id UUID NOT NULL REFERENCES workspaces(id) ON DELETE CASCADE,
					name VARCHAR(255) NOT NULL,
					key VARCHAR(10) NOT NULL,
					type VARCHAR(32) NOT NULL DEFAULT 'software',
					lead_id VARCHAR(64),
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					UNIQUE (workspace_id, key)
				);

				CREATE INDEX IF NOT EXISTS idx_projects_workspace_id ON projects(workspace_id);
			`,
		},
	}
}
