// Package integrations answers which incident providers an org is integrated
// with and which credentials reach them.
package integrations

import (
	"context"
	"errors"

	"github.com/akmatori/incidentsync/internal/providers"
)

// ErrOrgNotFound is returned for orgs the directory does not know
var ErrOrgNotFound = errors.New("org not found")

// ErrIntegrationNotFound is returned when an org has no enabled integration for a provider
var ErrIntegrationNotFound = errors.New("integration not found")

// Directory lists orgs and their enabled incident provider integrations
type Directory interface {
	providers.CredentialSource

	// GetOrgProviders returns the provider names of the org's enabled integrations
	GetOrgProviders(ctx context.Context, orgID string) ([]string, error)

	// ListOrgs returns every org with at least one enabled integration
	ListOrgs(ctx context.Context) ([]string, error)
}
