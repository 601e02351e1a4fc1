package adapters

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/akmatori/incidentsync/internal/database"
	"github.com/akmatori/incidentsync/internal/providers"
)

// OpsgenieAdapter syncs services and incidents from an Opsgenie account.
// Opsgenie incidents may impact several services; every known impacted
// service gets an edge.
type OpsgenieAdapter struct {
	providers.BaseAdapter
	client *OpsgenieClient
	now    func() time.Time

	mu         sync.RWMutex
	serviceIDs map[string]string // provider key -> org incident service ID
}

// NewOpsgenieAdapter creates a new Opsgenie adapter for an org
func NewOpsgenieAdapter(orgID string, client *OpsgenieClient, now func() time.Time) *OpsgenieAdapter {
	if now == nil {
		now = time.Now
	}
	return &OpsgenieAdapter{
		BaseAdapter: providers.BaseAdapter{Provider: database.IncidentProviderOpsgenie, OrgID: orgID},
		client:      client,
		now:         now,
		serviceIDs:  make(map[string]string),
	}
}

// GetUpdatedIncidentServices reconciles known services with the account's service list
func (a *OpsgenieAdapter) GetUpdatedIncidentServices(ctx context.Context, existing []database.OrgIncidentService) ([]database.OrgIncidentService, error) {
	remote, err := a.client.ListServices(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list opsgenie services: %w", err)
	}

	fetched := make([]database.OrgIncidentService, 0, len(remote))
	for _, svc := range remote {
		fetched = append(fetched, opsgenieToService(svc))
	}
	updated := a.ReconcileServices(existing, fetched)
	a.rememberServices(updated)
	return updated, nil
}

// ProcessServiceIncidents fetches incidents impacting the service updated since the bookmark
func (a *OpsgenieAdapter) ProcessServiceIncidents(ctx context.Context, service database.OrgIncidentService, bookmark database.IncidentsBookmark) (*providers.ServiceIncidentsBatch, error) {
	windowEnd := a.now().UTC()

	remote, err := a.client.ListIncidents(ctx, service.Key, bookmark.Bookmark, windowEnd)
	if err != nil {
		return nil, fmt.Errorf("failed to list opsgenie incidents for service %s: %w", service.Key, err)
	}

	batch := &providers.ServiceIncidentsBatch{
		Incidents:  make([]database.Incident, 0, len(remote)),
		ServiceMap: database.IncidentServiceMap{},
		Bookmark:   bookmark,
	}

	a.mu.RLock()
	for _, raw := range remote {
		incident := opsgenieToIncident(raw)
		batch.Incidents = append(batch.Incidents, incident)
		batch.ServiceMap.Add(incident.Key, service.ID)
		for _, key := range raw.ImpactedServices {
			if id, ok := a.serviceIDs[key]; ok {
				batch.ServiceMap.Add(incident.Key, id)
			}
		}
	}
	a.mu.RUnlock()

	batch.Bookmark.Bookmark = providers.AdvanceCursor(bookmark.Bookmark, windowEnd, batch.Incidents)
	return batch, nil
}

func (a *OpsgenieAdapter) rememberServices(services []database.OrgIncidentService) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, svc := range services {
		a.serviceIDs[svc.Key] = svc.ID
	}
}

func opsgenieToService(svc OpsgenieService) database.OrgIncidentService {
	out := database.OrgIncidentService{
		Key:  svc.ID,
		Name: svc.Name,
		Meta: database.JSONB{
			"description": svc.Description,
			"tags":        svc.Tags,
		},
	}
	if svc.TeamID != "" {
		out.ProviderTeamKeys = database.StringList{svc.TeamID}
	}
	return out
}

func opsgenieToIncident(raw OpsgenieIncident) database.Incident {
	incident := database.Incident{
		Provider:       database.IncidentProviderOpsgenie,
		Key:            raw.ID,
		IncidentNumber: raw.TinyID,
		Title:          raw.Message,
		Status:         raw.Status,
		Urgency:        raw.Priority,
		URL:            raw.Links.Web,
		AssignedTo:     raw.OwnerTeam,
		CreationDate:   raw.CreatedAt.UTC(),
		Meta:           database.JSONB{"impacted_services": raw.ImpactedServices},
	}
	for _, r := range raw.Responders {
		incident.Assignees = append(incident.Assignees, r.ID)
	}

	if !raw.UpdatedAt.IsZero() {
		updated := raw.UpdatedAt.UTC()
		incident.UpdatedDate = &updated
		if raw.Status == "resolved" || raw.Status == "closed" {
			incident.ResolvedDate = &updated
		}
	}
	return incident
}
