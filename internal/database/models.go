package database

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// JSONB is a custom type for PostgreSQL JSONB columns
type JSONB map[string]interface{}

// Scan implements the sql.Scanner interface
func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = make(map[string]interface{})
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, j)
	case string:
		return json.Unmarshal([]byte(v), j)
	default:
		return errors.New("type assertion to []byte failed")
	}
}

// Value implements the driver.Valuer interface
func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

// StringList is a JSON-encoded list of strings (team keys, assignees)
type StringList []string

// Scan implements the sql.Scanner interface
func (s *StringList) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		*s = StringList{}
		return nil
	case []byte:
		return json.Unmarshal(v, s)
	case string:
		return json.Unmarshal([]byte(v), s)
	default:
		return fmt.Errorf("unsupported type for StringList: %T", value)
	}
}

// Value implements the driver.Valuer interface
func (s StringList) Value() (driver.Value, error) {
	if s == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(s)
}

// IncidentProvider identifies an external incident-management system
type IncidentProvider string

const (
	IncidentProviderPagerDuty IncidentProvider = "pagerduty"
	IncidentProviderOpsgenie  IncidentProvider = "opsgenie"
)

// ValidIncidentProviders returns every supported provider
func ValidIncidentProviders() []IncidentProvider {
	return []IncidentProvider{IncidentProviderPagerDuty, IncidentProviderOpsgenie}
}

// ParseIncidentProvider converts a configured provider name into an IncidentProvider.
// Matching is case-insensitive so "PAGERDUTY" and "pagerduty" are the same provider.
func ParseIncidentProvider(name string) (IncidentProvider, error) {
	normalized := IncidentProvider(strings.ToLower(strings.TrimSpace(name)))
	for _, p := range ValidIncidentProviders() {
		if p == normalized {
			return p, nil
		}
	}
	return "", fmt.Errorf("unknown incident provider %q", name)
}

// IncidentBookmarkType discriminates what a bookmark is scoped to
type IncidentBookmarkType string

const (
	IncidentBookmarkTypeOrg     IncidentBookmarkType = "org"
	IncidentBookmarkTypeService IncidentBookmarkType = "service"
)

// OrgIncidentService is a provider service scoped to an organization
type OrgIncidentService struct {
	ID                     string           `gorm:"primaryKey;type:varchar(36)" json:"id"`
	OrgID                  string           `gorm:"type:varchar(255);not null;uniqueIndex:idx_org_provider_key" json:"org_id"`
	Provider               IncidentProvider `gorm:"type:varchar(50);not null;uniqueIndex:idx_org_provider_key" json:"provider"`
	Key                    string           `gorm:"type:varchar(255);not null;uniqueIndex:idx_org_provider_key" json:"key"`
	Name                   string           `gorm:"type:varchar(255)" json:"name"`
	Status                 string           `gorm:"type:varchar(50)" json:"status"`
	AutoResolveTimeout     int              `json:"auto_resolve_timeout"`
	AcknowledgementTimeout int              `json:"acknowledgement_timeout"`
	CreatedBy              string           `gorm:"type:varchar(255)" json:"created_by"`
	ProviderTeamKeys       StringList       `gorm:"type:jsonb" json:"provider_team_keys"`
	Meta                   JSONB            `gorm:"type:jsonb" json:"meta"`
	CreatedAt              time.Time        `json:"created_at"`
	UpdatedAt              time.Time        `json:"updated_at"`
}

// BeforeCreate assigns a system-generated ID when none is set
func (s *OrgIncidentService) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return nil
}

func (OrgIncidentService) TableName() string {
	return "org_incident_services"
}

// Incident is an incident record fetched from a provider
type Incident struct {
	ID               string           `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Provider         IncidentProvider `gorm:"type:varchar(50);not null;uniqueIndex:idx_incident_provider_key" json:"provider"`
	Key              string           `gorm:"type:varchar(255);not null;uniqueIndex:idx_incident_provider_key" json:"key"` // provider-native incident id
	IncidentNumber   string           `gorm:"type:varchar(64)" json:"incident_number"`
	Title            string           `gorm:"type:text" json:"title"`
	Status           string           `gorm:"type:varchar(50)" json:"status"`
	Urgency          string           `gorm:"type:varchar(50)" json:"urgency"`
	URL              string           `gorm:"type:text" json:"url"`
	AssignedTo       string           `gorm:"type:varchar(255)" json:"assigned_to"`
	Assignees        StringList       `gorm:"type:jsonb" json:"assignees"`
	CreationDate     time.Time        `gorm:"not null;index" json:"creation_date"`
	AcknowledgedDate *time.Time       `json:"acknowledged_date,omitempty"`
	ResolvedDate     *time.Time       `json:"resolved_date,omitempty"`
	UpdatedDate      *time.Time       `json:"updated_date,omitempty"`
	Meta             JSONB            `gorm:"type:jsonb" json:"meta"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
}

// BeforeCreate assigns a system-generated ID when none is set
func (i *Incident) BeforeCreate(tx *gorm.DB) error {
	if i.ID == "" {
		i.ID = uuid.NewString()
	}
	return nil
}

// LastActivity returns the most recent provider-side timestamp of the incident
func (i *Incident) LastActivity() time.Time {
	latest := i.CreationDate
	for _, t := range []*time.Time{i.AcknowledgedDate, i.ResolvedDate, i.UpdatedDate} {
		if t != nil && t.After(latest) {
			latest = *t
		}
	}
	return latest
}

func (Incident) TableName() string {
	return "incidents"
}

// IncidentOrgIncidentServiceMap links an incident to a service it touched
type IncidentOrgIncidentServiceMap struct {
	IncidentID string    `gorm:"primaryKey;type:varchar(36)" json:"incident_id"`
	ServiceID  string    `gorm:"primaryKey;type:varchar(36);index" json:"service_id"`
	CreatedAt  time.Time `json:"created_at"`
}

func (IncidentOrgIncidentServiceMap) TableName() string {
	return "incident_org_incident_service_map"
}

// IncidentServiceMap maps a provider-native incident key to the IDs of the
// org incident services the incident touched
type IncidentServiceMap map[string][]string

// Add links an incident key to a service ID, ignoring duplicates
func (m IncidentServiceMap) Add(incidentKey, serviceID string) {
	for _, id := range m[incidentKey] {
		if id == serviceID {
			return
		}
	}
	m[incidentKey] = append(m[incidentKey], serviceID)
}

// IncidentsBookmark records how far incidents of an entity have been synced
type IncidentsBookmark struct {
	ID         string               `gorm:"primaryKey;type:varchar(36)" json:"id"`
	EntityID   string               `gorm:"type:varchar(255);not null;uniqueIndex:idx_bookmark_entity" json:"entity_id"`
	EntityType IncidentBookmarkType `gorm:"type:varchar(20);not null;uniqueIndex:idx_bookmark_entity" json:"entity_type"`
	Provider   IncidentProvider     `gorm:"type:varchar(50);not null;uniqueIndex:idx_bookmark_entity" json:"provider"`
	Bookmark   time.Time            `gorm:"not null" json:"bookmark"`
	CreatedAt  time.Time            `json:"created_at"`
	UpdatedAt  time.Time            `json:"updated_at"`
}

// BeforeCreate assigns a system-generated ID when none is set
func (b *IncidentsBookmark) BeforeCreate(tx *gorm.DB) error {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	return nil
}

func (IncidentsBookmark) TableName() string {
	return "incidents_bookmarks"
}

// OrgIntegration marks a provider as configured for an organization
type OrgIntegration struct {
	ID        uint             `gorm:"primaryKey" json:"id"`
	OrgID     string           `gorm:"type:varchar(255);not null;uniqueIndex:idx_org_integration" json:"org_id"`
	Provider  IncidentProvider `gorm:"type:varchar(50);not null;uniqueIndex:idx_org_integration" json:"provider"`
	Enabled   bool             `gorm:"not null" json:"enabled"`
	Settings  JSONB            `gorm:"type:jsonb" json:"settings"` // provider-specific settings (base URL override, etc.)
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

func (OrgIntegration) TableName() string {
	return "org_integrations"
}
