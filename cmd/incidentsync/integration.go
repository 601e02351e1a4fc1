package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/akmatori/incidentsync/internal/database"
	"github.com/akmatori/incidentsync/internal/integrations"
)

func newIntegrationCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "integration",
		Short: "Manage org integrations stored in the database",
	}
	cmd.AddCommand(newIntegrationEnableCmd(c))
	return cmd
}

func newIntegrationEnableCmd(c *cli) *cobra.Command {
	var (
		orgID    string
		provider string
		tokenEnv string
		baseURL  string
	)

	cmd := &cobra.Command{
		Use:   "enable",
		Short: "Create or re-enable an org's provider integration",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := database.ParseIncidentProvider(provider)
			if err != nil {
				return err
			}

			db, err := openDatabase(c.cfg)
			if err != nil {
				return err
			}
			defer database.Close(db)

			settings := database.JSONB{}
			if tokenEnv != "" {
				settings[integrations.SettingTokenEnv] = tokenEnv
			}
			if baseURL != "" {
				settings[integrations.SettingBaseURL] = baseURL
			}

			integration, err := database.EnsureOrgIntegration(db, orgID, p, settings)
			if err != nil {
				return err
			}
			c.logger.Info("Integration enabled",
				slog.String("org_id", integration.OrgID),
				slog.String("provider", string(integration.Provider)))
			fmt.Fprintf(cmd.OutOrStdout(), "%s/%s enabled\n", integration.OrgID, integration.Provider)
			return nil
		},
	}

	cmd.Flags().StringVar(&orgID, "org", "", "org ID")
	cmd.Flags().StringVar(&provider, "provider", "", "pagerduty or opsgenie")
	cmd.Flags().StringVar(&tokenEnv, "token-env", "", "environment variable holding the API token")
	cmd.Flags().StringVar(&baseURL, "base-url", "", "API base URL override")
	_ = cmd.MarkFlagRequired("org")
	_ = cmd.MarkFlagRequired("provider")
	return cmd
}
