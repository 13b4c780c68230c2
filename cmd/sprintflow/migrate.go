package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/platinummonkey/sprintflow/pkg/boards"
	"github.com/platinummonkey/sprintflow/pkg/config"
	"github.com/platinummonkey/sprintflow/pkg/issues"
	"github.com/platinummonkey/sprintflow/pkg/observability"
	"github.com/platinummonkey/sprintflow/pkg/projects"
	"github.com/platinummonkey/sprintflow/pkg/rbac"
	"github.com/platinummonkey/sprintflow/pkg/sprints"
	"github.com/platinummonkey/sprintflow/pkg/storage"
	"github.com/platinummonkey/sprintflow/pkg/users"
	"github.com/platinummonkey/sprintflow/pkg/webhooks"
)

// component migrations in dependency order
var components = []struct {
	name       string
	migrations func() []storage.Migration
}{
	{"rbac", rbac.Migrations},
	{"users", users.Migrations},
	{"projects", projects.Migrations},
	{"sprints", sprints.Migrations},
	{"boards", boards.Migrations},
	{"issues", issues.Migrations},
	{"webhooks", webhooks.Migrations},
}

func migrateCmd() *cobra.Command {
	var skipSeed bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations and seed the built-in roles",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadRuntime()
			if err != nil {
				return err
			}
			ctx := observability.WithLogger(cmd.Context(), logger)

			db, err := storage.OpenPostgres(cfg.Storage)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := migrateAll(ctx, db, !skipSeed); err != nil {
				return err
			}
			logger.Info("migrations complete")
			return nil
		},
	}
	cmd.Flags().BoolVar(&skipSeed, "skip-seed", false, "do not insert the built-in roles and permissions")
	return cmd
}

// migrateAll brings every component's schema up to date
func migrateAll(ctx context.Context, db *sql.DB, seed bool) error {
	for _, c := range components {
		if err := storage.Migrate(ctx, db, c.name, c.migrations()); err != nil {
			return fmt.Errorf("migrate %s: %w", c.name, err)
		}
	}
	if !seed {
		return nil
	}
	if err := rbac.Seed(ctx, db); err != nil {
		return fmt.Errorf("seed rbac: %w", err)
	}
	return nil
}

// loadRuntime loads configuration and installs the process logger
func loadRuntime() (*config.Config, *observability.Logger, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, nil, err
	}
	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout).WithField("service", "sprintflow")
	observability.SetDefault(logger)
	return cfg, logger, nil
}
