package main

import (
	"encoding/json"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/platinummonkey/sprintflow/pkg/auth"
	"github.com/platinummonkey/sprintflow/pkg/observability"
	"github.com/platinummonkey/sprintflow/pkg/rbac"
	"github.com/platinummonkey/sprintflow/pkg/storage"
	"github.com/platinummonkey/sprintflow/pkg/users"
)

func userCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "user", Short: "Manage users"}
	cmd.AddCommand(userCreateCmd())
	return cmd
}

// userCreateCmd is the only way to create a user with roles other than the
// self-registration default
func userCreateCmd() *cobra.Command {
	var (
		email    string
		name     string
		password string
		roles    []string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a user with the given roles",
		Example: `  SPRINTFLOW_USER_PASSWORD=... sprintflow user create --email admin@example.com --name Admin --roles org_admin`,
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

			tokens, err := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.TokenTTL)
			if err != nil {
				return err
			}
			svc := users.NewService(users.NewStore(db), rbac.NewResolver(rbac.NewStore(db)), tokens)

			if password == "" {
				password = os.Getenv("SPRINTFLOW_USER_PASSWORD")
			}
			user, err := svc.Register(ctx, users.RegisterInput{
				Email:    email,
				Name:     name,
				Password: password,
				Roles:    trimAll(roles),
			})
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(user)
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "user email")
	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().StringVar(&password, "password", "", "password (defaults to $SPRINTFLOW_USER_PASSWORD)")
	cmd.Flags().StringSliceVar(&roles, "roles", []string{users.DefaultRole}, "roles to assign")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func trimAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
