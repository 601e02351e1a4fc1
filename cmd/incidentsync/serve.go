package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/akmatori/incidentsync/internal/handlers"
	"github.com/akmatori/incidentsync/internal/jobs"
	"github.com/akmatori/incidentsync/internal/middleware"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(c *cli) *cobra.Command {
	var noScheduler bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the periodic sync scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log := c.cfg, c.logger

			if cfg.AdminPassword == "" {
				return errors.New("ADMIN_PASSWORD is not set")
			}
			passwordHash, err := middleware.HashPassword(cfg.AdminPassword)
			if err != nil {
				return fmt.Errorf("failed to hash admin password: %w", err)
			}

			a, err := newApp(cfg, log)
			if err != nil {
				return err
			}
			defer a.Close()

			jwtAuth := middleware.NewJWTAuthMiddleware(&middleware.JWTAuthConfig{
				Enabled:           true,
				AdminUsername:     cfg.AdminUsername,
				AdminPasswordHash: passwordHash,
				JWTSecret:         cfg.JWTSecret,
				JWTExpiryHours:    cfg.JWTExpiryHours,
				SkipPaths:         []string{"/health", "/auth/login"},
				Logger:            log,
			})

			sqlDB, err := a.db.DB()
			if err != nil {
				return fmt.Errorf("failed to get database handle: %w", err)
			}

			mux := http.NewServeMux()
			handlers.NewHTTPHandler(sqlDB, log).SetupRoutes(mux)
			handlers.NewAuthHandler(jwtAuth, time.Duration(cfg.JWTExpiryHours)*time.Hour, log).SetupRoutes(mux)
			handlers.NewOrgsHandler(a.directory, a.syncer, a.repo, log).SetupRoutes(mux)

			httpServer := &http.Server{
				Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
				Handler:           middleware.RequestIDMiddleware(middleware.AccessLog(log)(jwtAuth.Wrap(mux))),
				ReadHeaderTimeout: 10 * time.Second,
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			stopScheduler := make(chan struct{})
			schedulerDone := make(chan struct{})
			if noScheduler {
				close(schedulerDone)
			} else {
				scheduler := jobs.NewSyncScheduler(a.directory, a.syncer, log)
				go func() {
					defer close(schedulerDone)
					scheduler.Start(cfg.SyncInterval, stopScheduler)
				}()
				log.Info("Sync scheduler started", slog.Duration("interval", cfg.SyncInterval))
			}

			serverErr := make(chan error, 1)
			go func() {
				log.Info("Starting HTTP server", slog.Int("port", cfg.HTTPPort))
				if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					serverErr <- err
				}
				close(serverErr)
			}()

			select {
			case <-ctx.Done():
				log.Info("Received shutdown signal, cleaning up")
			case err := <-serverErr:
				if err != nil {
					close(stopScheduler)
					<-schedulerDone
					return fmt.Errorf("HTTP server error: %w", err)
				}
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				log.Warn("Error shutting down HTTP server", slog.Any("error", err))
			}
			close(stopScheduler)
			<-schedulerDone

			log.Info("Shutdown complete")
			return nil
		},
	}

	cmd.Flags().BoolVar(&noScheduler, "no-scheduler", false, "serve the API without periodic sync")
	return cmd
}
