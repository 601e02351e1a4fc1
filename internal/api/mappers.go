package api

import (
	"time"

	"github.com/akmatori/incidentsync/internal/database"
	"github.com/akmatori/incidentsync/internal/etl"
)

// SummaryToResponse converts a sync summary into its wire form.
func SummaryToResponse(summary *etl.SyncSummary) SyncResponse {
	resp := SyncResponse{
		OrgID:      summary.OrgID,
		StartedAt:  summary.StartedAt,
		FinishedAt: summary.FinishedAt,
		Counts:     summary.Counts(),
		Error:      errString(summary.Err),
		Providers:  make([]ProviderSyncResponse, 0, len(summary.Providers)),
	}

	for _, p := range summary.Providers {
		pr := ProviderSyncResponse{
			Provider: p.Provider,
			Error:    errString(p.Err),
			Services: make([]ServiceSyncResponse, 0, len(p.Services)),
		}
		for _, s := range p.Services {
			sr := ServiceSyncResponse{
				ServiceID:       s.ServiceID,
				ServiceKey:      s.ServiceKey,
				IncidentsSynced: s.IncidentsSynced,
				Error:           errString(s.Err),
			}
			if !s.Bookmark.IsZero() {
				bookmark := s.Bookmark
				sr.Bookmark = &bookmark
			}
			pr.Services = append(pr.Services, sr)
		}
		resp.Providers = append(resp.Providers, pr)
	}
	return resp
}

// ServiceToResponse converts a stored service and its optional bookmark.
func ServiceToResponse(s database.OrgIncidentService, bookmark *time.Time) ServiceResponse {
	teams := []string(s.ProviderTeamKeys)
	if teams == nil {
		teams = []string{}
	}
	return ServiceResponse{
		ID:               s.ID,
		Provider:         s.Provider,
		Key:              s.Key,
		Name:             s.Name,
		Status:           s.Status,
		ProviderTeamKeys: teams,
		Bookmark:         bookmark,
		UpdatedAt:        s.UpdatedAt,
	}
}

// IncidentsToListItems converts stored incidents to list items.
func IncidentsToListItems(incidents []database.Incident) []IncidentListItem {
	items := make([]IncidentListItem, len(incidents))
	for i, inc := range incidents {
		items[i] = IncidentListItem{
			ID:           inc.ID,
			Provider:     inc.Provider,
			Key:          inc.Key,
			Title:        inc.Title,
			Status:       inc.Status,
			Urgency:      inc.Urgency,
			URL:          inc.URL,
			CreationDate: inc.CreationDate,
			ResolvedDate: inc.ResolvedDate,
		}
	}
	return items
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
