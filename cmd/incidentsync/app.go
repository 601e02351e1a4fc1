package main

import (
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/akmatori/incidentsync/internal/config"
	"github.com/akmatori/incidentsync/internal/database"
	"github.com/akmatori/incidentsync/internal/etl"
	"github.com/akmatori/incidentsync/internal/integrations"
	"github.com/akmatori/incidentsync/internal/providers"
	"github.com/akmatori/incidentsync/internal/providers/adapters"
	"github.com/akmatori/incidentsync/internal/providers/httpclient"
	"github.com/akmatori/incidentsync/internal/services"
	slacknotify "github.com/akmatori/incidentsync/internal/slack"
)

// app is the wired sync engine shared by serve and sync
type app struct {
	db        *gorm.DB
	directory integrations.Directory
	cache     *integrations.CachedDirectory
	repo      *services.IncidentsRepoService
	syncer    *etl.Syncer
}

// openDatabase connects and migrates the incident store
func openDatabase(cfg *config.Config) (*gorm.DB, error) {
	level := logger.Warn
	if cfg.LogLevel == "debug" {
		level = logger.Info
	}
	db, err := database.Connect(cfg.DatabaseURL, level)
	if err != nil {
		return nil, err
	}
	if err := database.AutoMigrate(db); err != nil {
		_ = database.Close(db)
		return nil, err
	}
	return db, nil
}

func newApp(cfg *config.Config, log *slog.Logger) (*app, error) {
	db, err := openDatabase(cfg)
	if err != nil {
		return nil, err
	}
	a := &app{db: db, repo: services.NewIncidentsRepoService(db)}

	if cfg.IntegrationsFile != "" {
		dir, err := integrations.LoadFileDirectory(cfg.IntegrationsFile)
		if err != nil {
			_ = database.Close(db)
			return nil, fmt.Errorf("failed to load integrations file: %w", err)
		}
		a.directory = dir
		log.Info("Using integrations file", slog.String("path", cfg.IntegrationsFile))
	} else {
		a.directory = integrations.NewDBDirectory(db)
		log.Info("Using org_integrations table")
	}
	if cfg.IntegrationsCacheTTL > 0 {
		a.cache = integrations.NewCachedDirectory(a.directory, cfg.IntegrationsCacheTTL)
		a.directory = a.cache
	}

	registry := providers.NewRegistry()
	adapters.RegisterDefaults(registry, a.directory, httpclient.Config{
		Timeout:    cfg.ProviderTimeout,
		MaxRetries: cfg.ProviderMaxRetries,
		RateLimit:  cfg.ProviderRateLimit,
	}, time.Now)

	a.syncer = etl.NewSyncer(a.directory, registry, a.repo, log, etl.SyncerConfig{
		ProviderWorkers: cfg.ProviderWorkers,
		Handler:         etl.HandlerConfig{ServiceWorkers: cfg.ServiceWorkers},
	})
	if notifier := slacknotify.NewNotifier(cfg.SlackWebhookURL, log); notifier.Enabled() {
		a.syncer.WithNotifier(notifier)
		log.Info("Slack failure notifications enabled")
	}

	return a, nil
}

// Close stops the directory cache and closes the database
func (a *app) Close() error {
	if a.cache != nil {
		a.cache.Stop()
	}
	return database.Close(a.db)
}
