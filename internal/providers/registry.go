package providers

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/akmatori/incidentsync/internal/database"
)

// ErrUnsupportedProvider is returned when no adapter is registered for a provider
var ErrUnsupportedProvider = errors.New("unsupported incident provider")

// Factory builds the adapter of one provider for one organization
type Factory func(ctx context.Context, orgID string) (IncidentsETLProvider, error)

// Registry is the lookup table from provider to adapter factory
type Registry struct {
	mu        sync.RWMutex
	factories map[database.IncidentProvider]Factory
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{factories: make(map[database.IncidentProvider]Factory)}
}

// Register registers (or replaces) the factory for a provider
func (r *Registry) Register(provider database.IncidentProvider, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[provider] = factory
}

// Resolve builds the adapter for provider and org
func (r *Registry) Resolve(ctx context.Context, provider database.IncidentProvider, orgID string) (IncidentsETLProvider, error) {
	r.mu.RLock()
	factory, ok := r.factories[provider]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedProvider, provider)
	}

	adapter, err := factory(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to build %s adapter for org %s: %w", provider, orgID, err)
	}
	return adapter, nil
}

// Providers lists the registered providers in a stable order
func (r *Registry) Providers() []database.IncidentProvider {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]database.IncidentProvider, 0, len(r.factories))
	for p := range r.factories {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
