package integrations

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/akmatori/incidentsync/internal/database"
	"github.com/akmatori/incidentsync/internal/providers"
)

// FileConfig is the integrations file layout:
//
//	orgs:
//	  - id: org-1
//	    integrations:
//	      - provider: pagerduty
//	        token_env: ORG1_PAGERDUTY_TOKEN
//	      - provider: opsgenie
//	        token: "..."
//	        base_url: https://api.eu.opsgenie.com
//	        enabled: false
type FileConfig struct {
	Orgs []FileOrg `yaml:"orgs" validate:"required,dive"`
}

// FileOrg is one org entry of the integrations file
type FileOrg struct {
	ID           string            `yaml:"id" validate:"required"`
	Integrations []FileIntegration `yaml:"integrations" validate:"dive"`
}

// FileIntegration is one provider integration of an org
type FileIntegration struct {
	Provider string `yaml:"provider" validate:"required,oneof=pagerduty opsgenie"`
	Token    string `yaml:"token" validate:"required_without=TokenEnv"`
	TokenEnv string `yaml:"token_env" validate:"required_without=Token"`
	BaseURL  string `yaml:"base_url" validate:"omitempty,url"`
	Enabled  *bool  `yaml:"enabled"`
}

// IsEnabled reports whether the integration is on; unset means enabled
func (i FileIntegration) IsEnabled() bool {
	return i.Enabled == nil || *i.Enabled
}

// FileDirectory is a Directory backed by a YAML file read once at startup
type FileDirectory struct {
	orgs map[string]FileOrg
}

// LoadFileDirectory reads and validates an integrations file
func LoadFileDirectory(path string) (*FileDirectory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read integrations file: %w", err)
	}
	return ParseFileDirectory(data)
}

// ParseFileDirectory parses and validates integrations YAML
func ParseFileDirectory(data []byte) (*FileDirectory, error) {
	var cfg FileConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse integrations file: %w", err)
	}
	for i := range cfg.Orgs {
		for j := range cfg.Orgs[i].Integrations {
			p := &cfg.Orgs[i].Integrations[j].Provider
			*p = strings.ToLower(strings.TrimSpace(*p))
		}
	}
	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid integrations file: %w", err)
	}

	orgs := make(map[string]FileOrg, len(cfg.Orgs))
	for _, org := range cfg.Orgs {
		if _, dup := orgs[org.ID]; dup {
			return nil, fmt.Errorf("invalid integrations file: org %s listed twice", org.ID)
		}
		orgs[org.ID] = org
	}
	return &FileDirectory{orgs: orgs}, nil
}

// GetOrgProviders returns the org's enabled providers in file order
func (d *FileDirectory) GetOrgProviders(ctx context.Context, orgID string) ([]string, error) {
	org, ok := d.orgs[orgID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrOrgNotFound, orgID)
	}
	var names []string
	for _, integration := range org.Integrations {
		if integration.IsEnabled() {
			names = append(names, integration.Provider)
		}
	}
	return names, nil
}

// ListOrgs returns orgs with at least one enabled integration, sorted
func (d *FileDirectory) ListOrgs(ctx context.Context) ([]string, error) {
	var ids []string
	for id, org := range d.orgs {
		for _, integration := range org.Integrations {
			if integration.IsEnabled() {
				ids = append(ids, id)
				break
			}
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// GetCredentials resolves the token of an org's integration, reading
// token_env from the environment at call time
func (d *FileDirectory) GetCredentials(ctx context.Context, orgID string, provider database.IncidentProvider) (providers.Credentials, error) {
	org, ok := d.orgs[orgID]
	if !ok {
		return providers.Credentials{}, fmt.Errorf("%w: %s", ErrOrgNotFound, orgID)
	}
	for _, integration := range org.Integrations {
		if integration.Provider != string(provider) || !integration.IsEnabled() {
			continue
		}
		token := integration.Token
		if integration.TokenEnv != "" {
			token = os.Getenv(integration.TokenEnv)
		}
		return providers.Credentials{APIToken: token, BaseURL: integration.BaseURL}, nil
	}
	return providers.Credentials{}, fmt.Errorf("%w: %s for org %s", ErrIntegrationNotFound, provider, orgID)
}
