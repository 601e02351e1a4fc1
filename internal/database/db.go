package database

import (
	"fmt"
	"log/slog"
	"strings"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// SQLiteScheme prefixes DSNs that should be opened with the SQLite driver
const SQLiteScheme = "sqlite://"

// Connect opens the incident store. DSNs starting with sqlite:// use SQLite
// (local runs, tests); everything else is treated as a PostgreSQL DSN.
func Connect(dsn string, logLevel logger.LogLevel) (*gorm.DB, error) {
	var dialector gorm.Dialector
	if strings.HasPrefix(dsn, SQLiteScheme) {
		dialector = sqlite.Open(strings.TrimPrefix(dsn, SQLiteScheme))
	} else {
		dialector = postgres.Open(dsn)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("Database connection established", slog.String("dialect", db.Dialector.Name()))
	return db, nil
}

// AutoMigrate creates or updates the incident tables
func AutoMigrate(db *gorm.DB) error {
	slog.Info("Running database migrations")

	err := db.AutoMigrate(
		&OrgIncidentService{},
		&Incident{},
		&IncidentOrgIncidentServiceMap{},
		&IncidentsBookmark{},
		&OrgIntegration{},
	)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	slog.Info("Database migrations completed successfully")
	return nil
}

// EnsureOrgIntegration creates or re-enables a provider integration for an org
func EnsureOrgIntegration(db *gorm.DB, orgID string, provider IncidentProvider, settings JSONB) (*OrgIntegration, error) {
	var integration OrgIntegration
	err := db.Where("org_id = ? AND provider = ?", orgID, provider).First(&integration).Error
	if err == gorm.ErrRecordNotFound {
		integration = OrgIntegration{
			OrgID:    orgID,
			Provider: provider,
			Enabled:  true,
			Settings: settings,
		}
		if err := db.Create(&integration).Error; err != nil {
			return nil, fmt.Errorf("failed to create integration %s/%s: %w", orgID, provider, err)
		}
		return &integration, nil
	}
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{"enabled": true}
	if settings != nil {
		updates["settings"] = settings
	}
	if err := db.Model(&integration).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("failed to update integration %s/%s: %w", orgID, provider, err)
	}
	return &integration, nil
}

// Close closes the underlying connection pool
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
