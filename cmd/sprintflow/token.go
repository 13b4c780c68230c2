package main

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/platinummonkey/sprintflow/pkg/auth"
	"github.com/platinummonkey/sprintflow/pkg/observability"
	"github.com/platinummonkey/sprintflow/pkg/rbac"
	"github.com/platinummonkey/sprintflow/pkg/storage"
	"github.com/platinummonkey/sprintflow/pkg/users"
)

// tokenCmd issues a session token without a password, for operators and
// service accounts
func tokenCmd() *cobra.Command {
	var email string

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a session token for an existing user",
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
			store := users.NewStore(db)
			svc := users.NewService(store, rbac.NewResolver(rbac.NewStore(db)), tokens)

			user, err := store.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
			if err != nil {
				return err
			}
			token, expiresAt, err := svc.IssueToken(ctx, user)
			if err != nil {
				return err
			}

			return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]interface{}{
				"token":      token,
				"expires_at": expiresAt.Format(time.RFC3339),
			})
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "email of the user")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}
