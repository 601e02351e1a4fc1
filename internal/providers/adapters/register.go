package adapters

import (
	"context"
	"fmt"
	"time"

	"github.com/akmatori/incidentsync/internal/database"
	"github.com/akmatori/incidentsync/internal/providers"
	"github.com/akmatori/incidentsync/internal/providers/httpclient"
)

// RegisterDefaults registers the PagerDuty and Opsgenie adapters. Each
// resolution looks up the org's credentials and builds a fresh client.
func RegisterDefaults(registry *providers.Registry, creds providers.CredentialSource, cfg httpclient.Config, now func() time.Time) {
	registry.Register(database.IncidentProviderPagerDuty, func(ctx context.Context, orgID string) (providers.IncidentsETLProvider, error) {
		c, err := lookupCredentials(ctx, creds, orgID, database.IncidentProviderPagerDuty)
		if err != nil {
			return nil, err
		}
		return NewPagerDutyAdapter(orgID, NewPagerDutyClient(c, cfg), now), nil
	})

	registry.Register(database.IncidentProviderOpsgenie, func(ctx context.Context, orgID string) (providers.IncidentsETLProvider, error) {
		c, err := lookupCredentials(ctx, creds, orgID, database.IncidentProviderOpsgenie)
		if err != nil {
			return nil, err
		}
		return NewOpsgenieAdapter(orgID, NewOpsgenieClient(c, cfg), now), nil
	})
}

func lookupCredentials(ctx context.Context, creds providers.CredentialSource, orgID string, provider database.IncidentProvider) (providers.Credentials, error) {
	c, err := creds.GetCredentials(ctx, orgID, provider)
	if err != nil {
		return providers.Credentials{}, fmt.Errorf("failed to get %s credentials: %w", provider, err)
	}
	if c.APIToken == "" {
		return providers.Credentials{}, fmt.Errorf("no %s API token configured for org %s", provider, orgID)
	}
	return c, nil
}
