package api

import (
	"time"

	"github.com/akmatori/incidentsync/internal/database"
	"github.com/akmatori/incidentsync/internal/etl"
)

// ========== Auth Types ==========

// LoginRequest is the request body for POST /auth/login.
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse carries a bearer token.
type LoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ========== Sync Types ==========

// SyncResponse is the response body for POST /api/orgs/{org_id}/sync.
type SyncResponse struct {
	OrgID      string                 `json:"org_id"`
	StartedAt  time.Time              `json:"started_at"`
	FinishedAt time.Time              `json:"finished_at"`
	Counts     etl.Counts             `json:"counts"`
	Error      string                 `json:"error,omitempty"`
	Providers  []ProviderSyncResponse `json:"providers"`
}

// ProviderSyncResponse is the outcome of one provider within a run.
type ProviderSyncResponse struct {
	Provider string                `json:"provider"`
	Error    string                `json:"error,omitempty"`
	Services []ServiceSyncResponse `json:"services"`
}

// ServiceSyncResponse is the outcome of one service within a run.
type ServiceSyncResponse struct {
	ServiceID       string     `json:"service_id"`
	ServiceKey      string     `json:"service_key"`
	IncidentsSynced int        `json:"incidents_synced"`
	Bookmark        *time.Time `json:"bookmark,omitempty"`
	Error           string     `json:"error,omitempty"`
}

// ========== Service Types ==========

// ServiceResponse is an org incident service with its sync bookmark.
type ServiceResponse struct {
	ID               string                    `json:"id"`
	Provider         database.IncidentProvider `json:"provider"`
	Key              string                    `json:"key"`
	Name             string                    `json:"name"`
	Status           string                    `json:"status"`
	ProviderTeamKeys []string                  `json:"provider_team_keys"`
	Bookmark         *time.Time                `json:"bookmark,omitempty"`
	UpdatedAt        time.Time                 `json:"updated_at"`
}

// ========== Incident Types ==========

// IncidentListItem is a compact representation of an incident for list views.
type IncidentListItem struct {
	ID           string                    `json:"id"`
	Provider     database.IncidentProvider `json:"provider"`
	Key          string                    `json:"key"`
	Title        string                    `json:"title"`
	Status       string                    `json:"status"`
	Urgency      string                    `json:"urgency,omitempty"`
	URL          string                    `json:"url,omitempty"`
	CreationDate time.Time                 `json:"creation_date"`
	ResolvedDate *time.Time                `json:"resolved_date,omitempty"`
}

// ========== Pagination Types ==========

// PaginationMeta contains pagination metadata for list responses.
type PaginationMeta struct {
	Page       int   `json:"page"`
	PerPage    int   `json:"per_page"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
}

// PaginatedResponse wraps a list response with pagination metadata.
type PaginatedResponse struct {
	Data       interface{}    `json:"data"`
	Pagination PaginationMeta `json:"pagination"`
}
