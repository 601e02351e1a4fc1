package providers

import (
	"context"

	"github.com/akmatori/incidentsync/internal/database"
)

// Credentials are what an adapter needs to reach one org's provider account
type Credentials struct {
	APIToken string
	BaseURL  string // empty means the provider's public API
}

// CredentialSource looks up provider credentials for an org
type CredentialSource interface {
	GetCredentials(ctx context.Context, orgID string, provider database.IncidentProvider) (Credentials, error)
}
