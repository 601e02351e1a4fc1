package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/akmatori/incidentsync/internal/api"
	"github.com/akmatori/incidentsync/internal/database"
	"github.com/akmatori/incidentsync/internal/etl"
	"github.com/akmatori/incidentsync/internal/integrations"
)

// OrgDirectory lists orgs and their integrations
type OrgDirectory interface {
	GetOrgProviders(ctx context.Context, orgID string) ([]string, error)
	ListOrgs(ctx context.Context) ([]string, error)
}

// OrgSyncer runs an on-demand org sync
type OrgSyncer interface {
	SyncOrgIncidents(ctx context.Context, orgID string) *etl.SyncSummary
}

// OrgReader reads synced state
type OrgReader interface {
	GetOrgIncidentServices(ctx context.Context, orgID string, provider database.IncidentProvider) ([]database.OrgIncidentService, error)
	GetIncidentsBookmark(ctx context.Context, entityID string, entityType database.IncidentBookmarkType, provider database.IncidentProvider) (*database.IncidentsBookmark, error)
	ListOrgIncidents(ctx context.Context, orgID string, provider database.IncidentProvider, offset, limit int) ([]database.Incident, int64, error)
}

// OrgsHandler serves the operator API under /api/orgs
type OrgsHandler struct {
	directory OrgDirectory
	syncer    OrgSyncer
	repo      OrgReader
	logger    *slog.Logger
}

// NewOrgsHandler creates a new orgs handler
func NewOrgsHandler(directory OrgDirectory, syncer OrgSyncer, repo OrgReader, logger *slog.Logger) *OrgsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &OrgsHandler{directory: directory, syncer: syncer, repo: repo, logger: logger}
}

// SetupRoutes sets up org routes
func (h *OrgsHandler) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/orgs", h.handleListOrgs)
	mux.HandleFunc("POST /api/orgs/{org_id}/sync", h.handleSyncOrg)
	mux.HandleFunc("GET /api/orgs/{org_id}/services", h.handleListServices)
	mux.HandleFunc("GET /api/orgs/{org_id}/incidents", h.handleListIncidents)
}

func (h *OrgsHandler) handleListOrgs(w http.ResponseWriter, r *http.Request) {
	orgs, err := h.directory.ListOrgs(r.Context())
	if err != nil {
		h.logger.Error("Failed to list orgs", slog.Any("error", err))
		api.RespondErrorCode(w, http.StatusInternalServerError, api.CodeDirectory, "Failed to list orgs")
		return
	}
	if orgs == nil {
		orgs = []string{}
	}
	api.RespondJSON(w, http.StatusOK, map[string]interface{}{"orgs": orgs})
}

// handleSyncOrg runs a full org pass and returns its summary. Unit failures
// are part of the summary; the status is 200 whenever the pass ran.
func (h *OrgsHandler) handleSyncOrg(w http.ResponseWriter, r *http.Request) {
	orgID := r.PathValue("org_id")
	if !h.requireOrg(w, r, orgID) {
		return
	}

	summary := h.syncer.SyncOrgIncidents(r.Context(), orgID)
	api.RespondJSON(w, http.StatusOK, api.SummaryToResponse(summary))
}

func (h *OrgsHandler) handleListServices(w http.ResponseWriter, r *http.Request) {
	orgID := r.PathValue("org_id")
	filter, ok := providerFilter(w, r)
	if !ok {
		return
	}
	providerNames, ok := h.providersFor(w, r, orgID, filter)
	if !ok {
		return
	}

	out := []api.ServiceResponse{}
	for _, provider := range providerNames {
		services, err := h.repo.GetOrgIncidentServices(r.Context(), orgID, provider)
		if err != nil {
			h.logger.Error("Failed to load services", slog.String("org_id", orgID), slog.Any("error", err))
			api.RespondOrgError(w, http.StatusInternalServerError, api.CodeStorage, orgID, "Failed to load services")
			return
		}
		for _, svc := range services {
			var cursor *time.Time
			bookmark, err := h.repo.GetIncidentsBookmark(r.Context(), svc.ID, database.IncidentBookmarkTypeService, provider)
			if err != nil {
				h.logger.Error("Failed to load bookmark", slog.String("service_key", svc.Key), slog.Any("error", err))
				api.RespondOrgError(w, http.StatusInternalServerError, api.CodeStorage, orgID, "Failed to load services")
				return
			}
			if bookmark != nil {
				cursor = &bookmark.Bookmark
			}
			out = append(out, api.ServiceToResponse(svc, cursor))
		}
	}
	api.RespondJSON(w, http.StatusOK, map[string]interface{}{"services": out})
}

func (h *OrgsHandler) handleListIncidents(w http.ResponseWriter, r *http.Request) {
	orgID := r.PathValue("org_id")
	provider, ok := providerFilter(w, r)
	if !ok || !h.requireOrg(w, r, orgID) {
		return
	}

	page := api.ParsePagination(r)
	incidents, total, err := h.repo.ListOrgIncidents(r.Context(), orgID, provider, page.Offset(), page.PerPage)
	if err != nil {
		h.logger.Error("Failed to list incidents", slog.String("org_id", orgID), slog.Any("error", err))
		api.RespondOrgError(w, http.StatusInternalServerError, api.CodeStorage, orgID, "Failed to list incidents")
		return
	}

	api.RespondJSON(w, http.StatusOK, api.PaginatedResponse{
		Data:       api.IncidentsToListItems(incidents),
		Pagination: page.Meta(total),
	})
}

// requireOrg answers 404 for orgs without enabled integrations
func (h *OrgsHandler) requireOrg(w http.ResponseWriter, r *http.Request, orgID string) bool {
	_, ok := h.providersFor(w, r, orgID, "")
	return ok
}

// providerFilter parses the optional ?provider= query; an empty result means all providers
func providerFilter(w http.ResponseWriter, r *http.Request) (database.IncidentProvider, bool) {
	name := r.URL.Query().Get("provider")
	if name == "" {
		return "", true
	}
	p, err := database.ParseIncidentProvider(name)
	if err != nil {
		api.RespondErrorCode(w, http.StatusBadRequest, api.CodeUnknownProvider, err.Error())
		return "", false
	}
	return p, true
}

// providersFor resolves the org's providers, keeping only filter when it is set
func (h *OrgsHandler) providersFor(w http.ResponseWriter, r *http.Request, orgID string, filter database.IncidentProvider) ([]database.IncidentProvider, bool) {
	names, err := h.directory.GetOrgProviders(r.Context(), orgID)
	if errors.Is(err, integrations.ErrOrgNotFound) || (err == nil && len(names) == 0) {
		api.RespondOrgError(w, http.StatusNotFound, api.CodeOrgNotFound, orgID, "Org has no enabled integrations")
		return nil, false
	}
	if err != nil {
		h.logger.Error("Failed to list org integrations", slog.String("org_id", orgID), slog.Any("error", err))
		api.RespondOrgError(w, http.StatusInternalServerError, api.CodeDirectory, orgID, "Failed to list org integrations")
		return nil, false
	}

	var out []database.IncidentProvider
	for _, name := range names {
		p, err := database.ParseIncidentProvider(name)
		if err != nil {
			continue
		}
		if filter != "" && p != filter {
			continue
		}
		out = append(out, p)
	}
	return out, true
}
