package providers

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/akmatori/incidentsync/internal/database"
)

// ServiceIncidentsBatch is the result of fetching one service's incidents
type ServiceIncidentsBatch struct {
	Incidents  []database.Incident
	ServiceMap database.IncidentServiceMap
	Bookmark   database.IncidentsBookmark
}

// IncidentsETLProvider defines provider-specific fetch logic for one organization
type IncidentsETLProvider interface {
	// GetProvider returns the provider this adapter talks to
	GetProvider() database.IncidentProvider

	// GetUpdatedIncidentServices reconciles the locally known services against
	// the provider's current service list and returns the authoritative set
	GetUpdatedIncidentServices(ctx context.Context, existing []database.OrgIncidentService) ([]database.OrgIncidentService, error)

	// ProcessServiceIncidents fetches every incident of the service since the
	// bookmark cursor and returns them with an advanced bookmark
	ProcessServiceIncidents(ctx context.Context, service database.OrgIncidentService, bookmark database.IncidentsBookmark) (*ServiceIncidentsBatch, error)
}

// BaseAdapter provides common functionality for all provider adapters
type BaseAdapter struct {
	Provider database.IncidentProvider
	OrgID    string
}

// GetProvider returns the provider this adapter talks to
func (b *BaseAdapter) GetProvider() database.IncidentProvider {
	return b.Provider
}

// ReconcileServices merges the services reported by the provider into the
// locally known ones. Matching is by key: existing IDs are kept, new services
// get a fresh ID, and services the provider stopped listing are retained.
// The result is sorted by key so repeated calls yield the same set.
func (b *BaseAdapter) ReconcileServices(existing, fetched []database.OrgIncidentService) []database.OrgIncidentService {
	byKey := make(map[string]database.OrgIncidentService, len(existing)+len(fetched))
	for _, svc := range existing {
		byKey[svc.Key] = svc
	}

	for _, svc := range fetched {
		current, ok := byKey[svc.Key]
		if !ok {
			current = database.OrgIncidentService{
				ID:        uuid.NewString(),
				OrgID:     b.OrgID,
				Provider:  b.Provider,
				Key:       svc.Key,
				CreatedBy: svc.CreatedBy,
			}
		}
		current.Name = svc.Name
		current.Status = svc.Status
		current.AutoResolveTimeout = svc.AutoResolveTimeout
		current.AcknowledgementTimeout = svc.AcknowledgementTimeout
		current.ProviderTeamKeys = svc.ProviderTeamKeys
		current.Meta = svc.Meta
		if svc.CreatedBy != "" {
			current.CreatedBy = svc.CreatedBy
		}
		byKey[svc.Key] = current
	}

	updated := make([]database.OrgIncidentService, 0, len(byKey))
	for _, svc := range byKey {
		svc.OrgID = b.OrgID
		svc.Provider = b.Provider
		updated = append(updated, svc)
	}
	sort.Slice(updated, func(i, j int) bool { return updated[i].Key < updated[j].Key })
	return updated
}

// AdvanceCursor computes the next bookmark cursor after a fetch.
// With incidents, the cursor moves to the latest provider-side activity.
// Without incidents, it moves to windowEnd, the time captured before the
// first provider request of the fetch. Activity later than windowEnd is
// capped at windowEnd so incidents created after the window are not skipped.
// The cursor never moves backwards.
func AdvanceCursor(prev, windowEnd time.Time, incidents []database.Incident) time.Time {
	next := prev
	if len(incidents) == 0 {
		if windowEnd.After(next) {
			next = windowEnd
		}
		return next.UTC()
	}

	for i := range incidents {
		activity := incidents[i].LastActivity()
		if activity.After(windowEnd) {
			activity = windowEnd
		}
		if activity.After(next) {
			next = activity
		}
	}
	return next.UTC()
}
