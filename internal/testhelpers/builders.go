package testhelpers

import (
	"time"

	"github.com/google/uuid"

	"github.com/akmatori/incidentsync/internal/database"
)

// ========================================
// Org Incident Service Builder
// ========================================

// ServiceBuilder builds OrgIncidentService instances for testing
type ServiceBuilder struct {
	service database.OrgIncidentService
}

// NewServiceBuilder creates a new service builder with defaults
func NewServiceBuilder() *ServiceBuilder {
	return &ServiceBuilder{
		service: database.OrgIncidentService{
			OrgID:    "org-1",
			Provider: database.IncidentProviderPagerDuty,
			Key:      "PSVC1",
			Name:     "Test Service",
			Status:   "active",
		},
	}
}

// WithID sets the service ID
func (b *ServiceBuilder) WithID(id string) *ServiceBuilder {
	b.service.ID = id
	return b
}

// WithOrg sets the owning org
func (b *ServiceBuilder) WithOrg(orgID string) *ServiceBuilder {
	b.service.OrgID = orgID
	return b
}

// WithProvider sets the provider
func (b *ServiceBuilder) WithProvider(provider database.IncidentProvider) *ServiceBuilder {
	b.service.Provider = provider
	return b
}

// WithKey sets the provider-native key
func (b *ServiceBuilder) WithKey(key string) *ServiceBuilder {
	b.service.Key = key
	return b
}

// WithName sets the display name
func (b *ServiceBuilder) WithName(name string) *ServiceBuilder {
	b.service.Name = name
	return b
}

// WithTeams sets the provider team keys
func (b *ServiceBuilder) WithTeams(teams ...string) *ServiceBuilder {
	b.service.ProviderTeamKeys = teams
	return b
}

// Build returns the constructed service
func (b *ServiceBuilder) Build() database.OrgIncidentService {
	return b.service
}

// ========================================
// Incident Builder
// ========================================

// IncidentBuilder builds Incident instances for testing
type IncidentBuilder struct {
	incident database.Incident
}

// NewIncidentBuilder creates a new incident builder
func NewIncidentBuilder() *IncidentBuilder {
	return &IncidentBuilder{
		incident: database.Incident{
			Provider:     database.IncidentProviderPagerDuty,
			Key:          "PINC-" + uuid.NewString()[:8],
			Title:        "Test Incident",
			Status:       "triggered",
			Urgency:      "high",
			CreationDate: time.Now().UTC(),
		},
	}
}

// WithKey sets the provider-native incident key
func (b *IncidentBuilder) WithKey(key string) *IncidentBuilder {
	b.incident.Key = key
	return b
}

// WithProvider sets the provider
func (b *IncidentBuilder) WithProvider(provider database.IncidentProvider) *IncidentBuilder {
	b.incident.Provider = provider
	return b
}

// WithTitle sets the title
func (b *IncidentBuilder) WithTitle(title string) *IncidentBuilder {
	b.incident.Title = title
	return b
}

// WithStatus sets the status
func (b *IncidentBuilder) WithStatus(status string) *IncidentBuilder {
	b.incident.Status = status
	return b
}

// CreatedAt sets the provider-side creation date
func (b *IncidentBuilder) CreatedAt(t time.Time) *IncidentBuilder {
	b.incident.CreationDate = t.UTC()
	return b
}

// ResolvedAt marks the incident resolved at t
func (b *IncidentBuilder) ResolvedAt(t time.Time) *IncidentBuilder {
	resolved := t.UTC()
	b.incident.Status = "resolved"
	b.incident.ResolvedDate = &resolved
	return b
}

// Build returns the constructed incident
func (b *IncidentBuilder) Build() database.Incident {
	return b.incident
}

// ========================================
// Bookmark Builder
// ========================================

// BookmarkBuilder builds IncidentsBookmark instances for testing
type BookmarkBuilder struct {
	bookmark database.IncidentsBookmark
}

// NewBookmarkBuilder creates a service bookmark builder
func NewBookmarkBuilder(entityID string) *BookmarkBuilder {
	return &BookmarkBuilder{
		bookmark: database.IncidentsBookmark{
			EntityID:   entityID,
			EntityType: database.IncidentBookmarkTypeService,
			Provider:   database.IncidentProviderPagerDuty,
			Bookmark:   time.Now().UTC(),
		},
	}
}

// WithProvider sets the provider
func (b *BookmarkBuilder) WithProvider(provider database.IncidentProvider) *BookmarkBuilder {
	b.bookmark.Provider = provider
	return b
}

// ForOrg makes this an org-level bookmark
func (b *BookmarkBuilder) ForOrg() *BookmarkBuilder {
	b.bookmark.EntityType = database.IncidentBookmarkTypeOrg
	return b
}

// At sets the cursor
func (b *BookmarkBuilder) At(t time.Time) *BookmarkBuilder {
	b.bookmark.Bookmark = t.UTC()
	return b
}

// Build returns the constructed bookmark
func (b *BookmarkBuilder) Build() database.IncidentsBookmark {
	return b.bookmark
}
