package integrations

import (
	"context"
	"errors"
	"fmt"
	"os"

	"gorm.io/gorm"

	"github.com/akmatori/incidentsync/internal/database"
	"github.com/akmatori/incidentsync/internal/providers"
)

// Settings keys read from OrgIntegration.Settings
const (
	SettingToken    = "token"
	SettingTokenEnv = "token_env"
	SettingBaseURL  = "base_url"
)

// DBDirectory is a Directory backed by the org_integrations table
type DBDirectory struct {
	db *gorm.DB
}

// NewDBDirectory creates a new DBDirectory
func NewDBDirectory(db *gorm.DB) *DBDirectory {
	return &DBDirectory{db: db}
}

// GetOrgProviders returns the org's enabled providers ordered by provider name
func (d *DBDirectory) GetOrgProviders(ctx context.Context, orgID string) ([]string, error) {
	var names []string
	err := d.db.WithContext(ctx).Model(&database.OrgIntegration{}).
		Where("org_id = ? AND enabled = ?", orgID, true).
		Order("provider ASC").
		Pluck("provider", &names).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list integrations for org %s: %w", orgID, err)
	}
	return names, nil
}

// ListOrgs returns orgs with at least one enabled integration
func (d *DBDirectory) ListOrgs(ctx context.Context) ([]string, error) {
	var ids []string
	err := d.db.WithContext(ctx).Model(&database.OrgIntegration{}).
		Where("enabled = ?", true).
		Distinct().
		Order("org_id ASC").
		Pluck("org_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list orgs: %w", err)
	}
	return ids, nil
}

// GetCredentials reads the token (or the env var naming it) from the integration settings
func (d *DBDirectory) GetCredentials(ctx context.Context, orgID string, provider database.IncidentProvider) (providers.Credentials, error) {
	var integration database.OrgIntegration
	err := d.db.WithContext(ctx).
		Where("org_id = ? AND provider = ? AND enabled = ?", orgID, provider, true).
		First(&integration).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return providers.Credentials{}, fmt.Errorf("%w: %s for org %s", ErrIntegrationNotFound, provider, orgID)
	}
	if err != nil {
		return providers.Credentials{}, fmt.Errorf("failed to load integration: %w", err)
	}

	creds := providers.Credentials{
		APIToken: settingString(integration.Settings, SettingToken),
		BaseURL:  settingString(integration.Settings, SettingBaseURL),
	}
	if env := settingString(integration.Settings, SettingTokenEnv); env != "" {
		creds.APIToken = os.Getenv(env)
	}
	return creds, nil
}

func settingString(settings database.JSONB, key string) string {
	if v, ok := settings[key].(string); ok {
		return v
	}
	return ""
}
