package main

import (
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/akmatori/incidentsync/internal/config"
)

// cli carries state shared by the subcommands
type cli struct {
	cfg    *config.Config
	logger *slog.Logger
	stderr io.Writer
}

func newRootCmd() *cobra.Command {
	c := &cli{stderr: os.Stderr}

	root := &cobra.Command{
		Use:           "incidentsync",
		Short:         "incidentsync copies incidents from PagerDuty and Opsgenie into a local store",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			c.cfg = cfg
			c.stderr = cmd.ErrOrStderr()
			c.logger = newLogger(cfg, c.stderr)
			slog.SetDefault(c.logger)
			return nil
		},
	}

	root.AddCommand(
		newServeCmd(c),
		newSyncCmd(c),
		newTokenCmd(c),
		newIntegrationCmd(c),
	)
	return root
}

// newLogger builds the process logger from LOG_LEVEL and LOG_FORMAT
func newLogger(cfg *config.Config, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	if cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
