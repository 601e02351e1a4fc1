package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/akmatori/incidentsync/internal/database"
)

// IncidentsRepoService is the persistence boundary for services, incidents and bookmarks
type IncidentsRepoService struct {
	db *gorm.DB
}

// NewIncidentsRepoService creates a new IncidentsRepoService
func NewIncidentsRepoService(db *gorm.DB) *IncidentsRepoService {
	return &IncidentsRepoService{db: db}
}

// ========== Org Incident Service Operations ==========

// GetOrgIncidentServices returns the known services of an org for one provider
func (s *IncidentsRepoService) GetOrgIncidentServices(ctx context.Context, orgID string, provider database.IncidentProvider) ([]database.OrgIncidentService, error) {
	var services []database.OrgIncidentService
	err := s.db.WithContext(ctx).
		Where("org_id = ? AND provider = ?", orgID, provider).
		Order(`"key" ASC`).
		Find(&services).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load services for org %s: %w", orgID, err)
	}
	return services, nil
}

// UpdateOrgIncidentServices upserts services by (org_id, provider, key).
// The stored IDs are written back into the slice so callers always see the
// persisted identity, even when another run created the row first.
func (s *IncidentsRepoService) UpdateOrgIncidentServices(ctx context.Context, orgID string, services []database.OrgIncidentService) error {
	if len(services) == 0 {
		return nil
	}

	for i := range services {
		services[i].OrgID = orgID
	}
	unique := dedupeServices(services)

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "org_id"}, {Name: "provider"}, {Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"name",
				"status",
				"auto_resolve_timeout",
				"acknowledgement_timeout",
				"created_by",
				"provider_team_keys",
				"meta",
				"updated_at",
			}),
		}).Create(&unique).Error
		if err != nil {
			return fmt.Errorf("failed to upsert services for org %s: %w", orgID, err)
		}

		keysByProvider := make(map[database.IncidentProvider][]string)
		for _, svc := range unique {
			keysByProvider[svc.Provider] = append(keysByProvider[svc.Provider], svc.Key)
		}

		idByKey := make(map[string]string, len(unique))
		for provider, keys := range keysByProvider {
			var stored []database.OrgIncidentService
			err := tx.Select("id", "provider", "key").
				Where(`org_id = ? AND provider = ? AND "key" IN ?`, orgID, provider, keys).
				Find(&stored).Error
			if err != nil {
				return fmt.Errorf("failed to reload services for org %s: %w", orgID, err)
			}
			for _, svc := range stored {
				idByKey[string(svc.Provider)+"/"+svc.Key] = svc.ID
			}
		}
		for i := range services {
			if id, ok := idByKey[string(services[i].Provider)+"/"+services[i].Key]; ok {
				services[i].ID = id
			}
		}
		return nil
	})
}

// ========== Bookmark Operations ==========

// GetIncidentsBookmark returns the bookmark for an entity, or nil when none exists
func (s *IncidentsRepoService) GetIncidentsBookmark(ctx context.Context, entityID string, entityType database.IncidentBookmarkType, provider database.IncidentProvider) (*database.IncidentsBookmark, error) {
	var bookmark database.IncidentsBookmark
	err := s.db.WithContext(ctx).
		Where("entity_id = ? AND entity_type = ? AND provider = ?", entityID, entityType, provider).
		First(&bookmark).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load bookmark for %s %s: %w", entityType, entityID, err)
	}
	return &bookmark, nil
}

// SaveIncidentsBookmark upserts a bookmark by (entity_id, entity_type, provider).
// The stored cursor only moves forward: when a concurrent run already saved a
// later cursor, that one is kept and copied back into bookmark.
func (s *IncidentsRepoService) SaveIncidentsBookmark(ctx context.Context, bookmark *database.IncidentsBookmark) error {
	bookmark.Bookmark = bookmark.Bookmark.UTC()

	// identity is the (entity, type, provider) triple; the stored ID wins
	row := *bookmark
	row.ID = ""
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "entity_id"}, {Name: "entity_type"}, {Name: "provider"}},
		DoUpdates: clause.Set{
			{Column: clause.Column{Name: "bookmark"}, Value: gorm.Expr(laterBookmarkExpr)},
			{Column: clause.Column{Name: "updated_at"}, Value: gorm.Expr("excluded.updated_at")},
		},
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("failed to save bookmark for %s %s: %w", bookmark.EntityType, bookmark.EntityID, err)
	}

	var stored database.IncidentsBookmark
	err = s.db.WithContext(ctx).Select("id", "bookmark").
		Where("entity_id = ? AND entity_type = ? AND provider = ?", bookmark.EntityID, bookmark.EntityType, bookmark.Provider).
		First(&stored).Error
	if err == nil {
		bookmark.ID = stored.ID
		bookmark.Bookmark = stored.Bookmark.UTC()
	}
	return nil
}

// laterBookmarkExpr keeps the greater of the stored and the incoming cursor
const laterBookmarkExpr = "CASE WHEN excluded.bookmark > incidents_bookmarks.bookmark " +
	"THEN excluded.bookmark ELSE incidents_bookmarks.bookmark END"

// ========== Incident Operations ==========

// SaveIncidentsData upserts incidents by (provider, key) and links them to
// their services. Re-saving the same data is a no-op apart from updated columns.
func (s *IncidentsRepoService) SaveIncidentsData(ctx context.Context, incidents []database.Incident, serviceMap database.IncidentServiceMap) error {
	if len(incidents) == 0 {
		return nil
	}
	incidents = dedupeIncidents(incidents)

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "provider"}, {Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"incident_number",
				"title",
				"status",
				"urgency",
				"url",
				"assigned_to",
				"assignees",
				"creation_date",
				"acknowledged_date",
				"resolved_date",
				"updated_date",
				"meta",
				"updated_at",
			}),
		}).Create(&incidents).Error
		if err != nil {
			return fmt.Errorf("failed to upsert incidents: %w", err)
		}

		keysByProvider := make(map[database.IncidentProvider][]string)
		for _, inc := range incidents {
			keysByProvider[inc.Provider] = append(keysByProvider[inc.Provider], inc.Key)
		}

		var edges []database.IncidentOrgIncidentServiceMap
		now := time.Now().UTC()
		for provider, keys := range keysByProvider {
			var stored []database.Incident
			if err := tx.Select("id", "key").Where(`provider = ? AND "key" IN ?`, provider, keys).Find(&stored).Error; err != nil {
				return fmt.Errorf("failed to reload incidents: %w", err)
			}
			for _, inc := range stored {
				seen := make(map[string]bool)
				for _, serviceID := range serviceMap[inc.Key] {
					if serviceID == "" || seen[serviceID] {
						continue
					}
					seen[serviceID] = true
					edges = append(edges, database.IncidentOrgIncidentServiceMap{
						IncidentID: inc.ID,
						ServiceID:  serviceID,
						CreatedAt:  now,
					})
				}
			}
		}
		if len(edges) == 0 {
			return nil
		}

		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&edges).Error; err != nil {
			return fmt.Errorf("failed to link incidents to services: %w", err)
		}
		return nil
	})
}

// dedupeServices keeps the last occurrence of each (provider, key); a single
// upsert statement may not touch the same row twice on PostgreSQL
func dedupeServices(services []database.OrgIncidentService) []database.OrgIncidentService {
	index := make(map[string]int, len(services))
	out := services[:0:0]
	for _, svc := range services {
		k := string(svc.Provider) + "/" + svc.Key
		if i, ok := index[k]; ok {
			out[i] = svc
			continue
		}
		index[k] = len(out)
		out = append(out, svc)
	}
	return out
}

func dedupeIncidents(incidents []database.Incident) []database.Incident {
	index := make(map[string]int, len(incidents))
	out := incidents[:0:0]
	for _, inc := range incidents {
		k := string(inc.Provider) + "/" + inc.Key
		if i, ok := index[k]; ok {
			out[i] = inc
			continue
		}
		index[k] = len(out)
		out = append(out, inc)
	}
	return out
}

// GetServiceIncidents returns the incidents linked to a service, newest first
func (s *IncidentsRepoService) GetServiceIncidents(ctx context.Context, serviceID string) ([]database.Incident, error) {
	var incidents []database.Incident
	err := s.db.WithContext(ctx).
		Joins("JOIN incident_org_incident_service_map m ON m.incident_id = incidents.id").
		Where("m.service_id = ?", serviceID).
		Order("incidents.creation_date DESC").
		Find(&incidents).Error
	return incidents, err
}

// CountIncidents returns the number of stored incidents for a provider
func (s *IncidentsRepoService) CountIncidents(ctx context.Context, provider database.IncidentProvider) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&database.Incident{}).Where("provider = ?", provider).Count(&count).Error
	return count, err
}

// ListOrgIncidents returns a page of incidents linked to any service of an org,
// newest first, together with the total count. An empty provider matches all.
func (s *IncidentsRepoService) ListOrgIncidents(ctx context.Context, orgID string, provider database.IncidentProvider, offset, limit int) ([]database.Incident, int64, error) {
	orgIncidents := s.db.Table("incident_org_incident_service_map m").
		Select("m.incident_id").
		Joins("JOIN org_incident_services s ON s.id = m.service_id").
		Where("s.org_id = ?", orgID)

	scoped := func() *gorm.DB {
		q := s.db.WithContext(ctx).Model(&database.Incident{}).Where("incidents.id IN (?)", orgIncidents)
		if provider != "" {
			q = q.Where("incidents.provider = ?", provider)
		}
		return q
	}

	var total int64
	if err := scoped().Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count incidents for org %s: %w", orgID, err)
	}

	var incidents []database.Incident
	err := scoped().Order("incidents.creation_date DESC").Offset(offset).Limit(limit).Find(&incidents).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list incidents for org %s: %w", orgID, err)
	}
	return incidents, total, nil
}
