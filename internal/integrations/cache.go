package integrations

import (
	"context"
	"time"

	"github.com/jellydator/ttlcache/v3"

	"github.com/akmatori/incidentsync/internal/database"
	"github.com/akmatori/incidentsync/internal/providers"
)

const orgsCacheKey = "orgs"

// CachedDirectory wraps a Directory and keeps lookups for a TTL.
// Errors are never cached.
type CachedDirectory struct {
	inner       Directory
	providers   *ttlcache.Cache[string, []string]
	orgs        *ttlcache.Cache[string, []string]
	credentials *ttlcache.Cache[string, providers.Credentials]
}

// NewCachedDirectory creates a caching wrapper; call Stop when done
func NewCachedDirectory(inner Directory, ttl time.Duration) *CachedDirectory {
	d := &CachedDirectory{
		inner:       inner,
		providers:   ttlcache.New(ttlcache.WithTTL[string, []string](ttl)),
		orgs:        ttlcache.New(ttlcache.WithTTL[string, []string](ttl)),
		credentials: ttlcache.New(ttlcache.WithTTL[string, providers.Credentials](ttl)),
	}
	go d.providers.Start()
	go d.orgs.Start()
	go d.credentials.Start()
	return d
}

// Stop stops the expiry goroutines
func (d *CachedDirectory) Stop() {
	d.providers.Stop()
	d.orgs.Stop()
	d.credentials.Stop()
}

// GetOrgProviders returns the cached provider list or loads it
func (d *CachedDirectory) GetOrgProviders(ctx context.Context, orgID string) ([]string, error) {
	if item := d.providers.Get(orgID); item != nil {
		return item.Value(), nil
	}
	names, err := d.inner.GetOrgProviders(ctx, orgID)
	if err != nil {
		return nil, err
	}
	d.providers.Set(orgID, names, ttlcache.DefaultTTL)
	return names, nil
}

// ListOrgs returns the cached org list or loads it
func (d *CachedDirectory) ListOrgs(ctx context.Context) ([]string, error) {
	if item := d.orgs.Get(orgsCacheKey); item != nil {
		return item.Value(), nil
	}
	ids, err := d.inner.ListOrgs(ctx)
	if err != nil {
		return nil, err
	}
	d.orgs.Set(orgsCacheKey, ids, ttlcache.DefaultTTL)
	return ids, nil
}

// GetCredentials returns cached credentials or loads them
func (d *CachedDirectory) GetCredentials(ctx context.Context, orgID string, provider database.IncidentProvider) (providers.Credentials, error) {
	key := orgID + "/" + string(provider)
	if item := d.credentials.Get(key); item != nil {
		return item.Value(), nil
	}
	creds, err := d.inner.GetCredentials(ctx, orgID, provider)
	if err != nil {
		return providers.Credentials{}, err
	}
	d.credentials.Set(key, creds, ttlcache.DefaultTTL)
	return creds, nil
}
