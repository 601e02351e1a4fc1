package database

import (
	"testing"

	"gorm.io/gorm/logger"
)

func TestConnect_SQLite(t *testing.T) {
	db, err := Connect(SQLiteScheme+":memory:", logger.Silent)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer Close(db)

	if db.Dialector.Name() != "sqlite" {
		t.Errorf("expected sqlite dialect, got %s", db.Dialector.Name())
	}

	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)

	if err := AutoMigrate(db); err != nil {
		t.Fatalf("AutoMigrate() error = %v", err)
	}

	for _, table := range []string{
		"org_incident_services",
		"incidents",
		"incident_org_incident_service_map",
		"incidents_bookmarks",
		"org_integrations",
	} {
		if !db.Migrator().HasTable(table) {
			t.Errorf("expected table %s to exist", table)
		}
	}
}

func TestEnsureOrgIntegration(t *testing.T) {
	db, err := Connect(SQLiteScheme+":memory:", logger.Silent)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer Close(db)
	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)
	if err := AutoMigrate(db); err != nil {
		t.Fatalf("AutoMigrate() error = %v", err)
	}

	first, err := EnsureOrgIntegration(db, "org-1", IncidentProviderPagerDuty, nil)
	if err != nil {
		t.Fatalf("EnsureOrgIntegration() error = %v", err)
	}
	if !first.Enabled {
		t.Error("expected new integration to be enabled")
	}

	// Disable it, then ensure again: the same row must be re-enabled.
	db.Model(first).Update("enabled", false)

	second, err := EnsureOrgIntegration(db, "org-1", IncidentProviderPagerDuty, JSONB{"base_url": "http://pd.local"})
	if err != nil {
		t.Fatalf("EnsureOrgIntegration() error = %v", err)
	}
	if second.ID != first.ID {
		t.Errorf("expected same integration row, got %d and %d", first.ID, second.ID)
	}

	var count int64
	db.Model(&OrgIntegration{}).Count(&count)
	if count != 1 {
		t.Errorf("expected 1 integration, got %d", count)
	}

	var reloaded OrgIntegration
	db.First(&reloaded, first.ID)
	if !reloaded.Enabled {
		t.Error("expected integration to be re-enabled")
	}
	if reloaded.Settings["base_url"] != "http://pd.local" {
		t.Errorf("expected settings to be updated, got %v", reloaded.Settings)
	}
}
