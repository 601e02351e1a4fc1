package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/akmatori/incidentsync/internal/middleware"
)

func newTokenCmd(c *cli) *cobra.Command {
	var user string

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint an API token signed with the configured JWT secret",
		RunE: func(cmd *cobra.Command, args []string) error {
			if user == "" {
				user = c.cfg.AdminUsername
			}
			jwtAuth := middleware.NewJWTAuthMiddleware(&middleware.JWTAuthConfig{
				JWTSecret:      c.cfg.JWTSecret,
				JWTExpiryHours: c.cfg.JWTExpiryHours,
				Logger:         c.logger,
			})
			token, err := jwtAuth.GenerateToken(user)
			if err != nil {
				return fmt.Errorf("failed to generate token: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&user, "user", "", "token subject (default: ADMIN_USERNAME)")
	return cmd
}
