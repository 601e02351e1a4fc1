package adapters

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/akmatori/incidentsync/internal/database"
	"github.com/akmatori/incidentsync/internal/providers"
)

// PagerDutyAdapter syncs services and incidents from a PagerDuty account
type PagerDutyAdapter struct {
	providers.BaseAdapter
	client *PagerDutyClient
	now    func() time.Time
}

// NewPagerDutyAdapter creates a new PagerDuty adapter for an org
func NewPagerDutyAdapter(orgID string, client *PagerDutyClient, now func() time.Time) *PagerDutyAdapter {
	if now == nil {
		now = time.Now
	}
	return &PagerDutyAdapter{
		BaseAdapter: providers.BaseAdapter{Provider: database.IncidentProviderPagerDuty, OrgID: orgID},
		client:      client,
		now:         now,
	}
}

// GetUpdatedIncidentServices reconciles known services with the account's service list
func (a *PagerDutyAdapter) GetUpdatedIncidentServices(ctx context.Context, existing []database.OrgIncidentService) ([]database.OrgIncidentService, error) {
	remote, err := a.client.ListServices(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list pagerduty services: %w", err)
	}

	fetched := make([]database.OrgIncidentService, 0, len(remote))
	for _, svc := range remote {
		fetched = append(fetched, pagerDutyToService(svc))
	}
	return a.ReconcileServices(existing, fetched), nil
}

// ProcessServiceIncidents fetches the service's incidents created or changed since the bookmark
func (a *PagerDutyAdapter) ProcessServiceIncidents(ctx context.Context, service database.OrgIncidentService, bookmark database.IncidentsBookmark) (*providers.ServiceIncidentsBatch, error) {
	windowEnd := a.now().UTC()

	remote, err := a.client.ListUpdatedIncidents(ctx, service.Key, bookmark.Bookmark, windowEnd)
	if err != nil {
		return nil, fmt.Errorf("failed to list pagerduty incidents for service %s: %w", service.Key, err)
	}

	batch := &providers.ServiceIncidentsBatch{
		Incidents:  make([]database.Incident, 0, len(remote)),
		ServiceMap: database.IncidentServiceMap{},
		Bookmark:   bookmark,
	}
	for _, raw := range remote {
		incident := pagerDutyToIncident(raw)
		batch.Incidents = append(batch.Incidents, incident)
		batch.ServiceMap.Add(incident.Key, service.ID)
	}
	batch.Bookmark.Bookmark = providers.AdvanceCursor(bookmark.Bookmark, windowEnd, batch.Incidents)
	return batch, nil
}

func pagerDutyToService(svc PagerDutyService) database.OrgIncidentService {
	out := database.OrgIncidentService{
		Key:    svc.ID,
		Name:   svc.Name,
		Status: svc.Status,
		Meta: database.JSONB{
			"description":       svc.Description,
			"html_url":          svc.HTMLURL,
			"escalation_policy": svc.EscalationPolicy.ID,
			"created_at":        svc.CreatedAt,
		},
	}
	if svc.AutoResolveTimeout != nil {
		out.AutoResolveTimeout = *svc.AutoResolveTimeout
	}
	if svc.AcknowledgementTimeout != nil {
		out.AcknowledgementTimeout = *svc.AcknowledgementTimeout
	}
	for _, team := range svc.Teams {
		out.ProviderTeamKeys = append(out.ProviderTeamKeys, team.ID)
	}
	return out
}

func pagerDutyToIncident(raw PagerDutyIncident) database.Incident {
	incident := database.Incident{
		Provider:       database.IncidentProviderPagerDuty,
		Key:            raw.ID,
		IncidentNumber: strconv.Itoa(raw.IncidentNumber),
		Title:          raw.Title,
		Status:         raw.Status,
		Urgency:        raw.Urgency,
		URL:            raw.HTMLURL,
		CreationDate:   raw.CreatedAt.UTC(),
		Meta:           database.JSONB{"service_id": raw.Service.ID},
	}
	if raw.Priority != nil {
		incident.Meta["priority"] = raw.Priority.Summary
	}

	for _, a := range raw.Assignments {
		incident.Assignees = append(incident.Assignees, a.Assignee.ID)
	}
	if len(raw.Assignments) > 0 {
		incident.AssignedTo = raw.Assignments[0].Assignee.Summary
	}

	if raw.UpdatedAt != nil {
		updated := raw.UpdatedAt.UTC()
		incident.UpdatedDate = &updated
	}
	// the status change timestamp is the only acknowledge/resolve time in the listing
	if raw.LastStatusChangeAt != nil {
		changed := raw.LastStatusChangeAt.UTC()
		switch raw.Status {
		case "acknowledged":
			incident.AcknowledgedDate = &changed
		case "resolved":
			incident.ResolvedDate = &changed
		}
		if incident.UpdatedDate == nil {
			incident.UpdatedDate = &changed
		}
	}
	return incident
}
