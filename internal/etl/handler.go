// Package etl runs incremental incident synchronization: for each provider an
// org is integrated with, reconcile the provider's services and pull every
// service's incidents since its bookmark.
package etl

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/akmatori/incidentsync/internal/database"
	"github.com/akmatori/incidentsync/internal/providers"
)

// IncidentsRepo is the persistence the sync handler needs
type IncidentsRepo interface {
	GetOrgIncidentServices(ctx context.Context, orgID string, provider database.IncidentProvider) ([]database.OrgIncidentService, error)
	UpdateOrgIncidentServices(ctx context.Context, orgID string, services []database.OrgIncidentService) error
	GetIncidentsBookmark(ctx context.Context, entityID string, entityType database.IncidentBookmarkType, provider database.IncidentProvider) (*database.IncidentsBookmark, error)
	SaveIncidentsBookmark(ctx context.Context, bookmark *database.IncidentsBookmark) error
	SaveIncidentsData(ctx context.Context, incidents []database.Incident, serviceMap database.IncidentServiceMap) error
}

// DefaultServiceWorkers bounds concurrent service syncs within one provider run
const DefaultServiceWorkers = 4

// HandlerConfig tunes an IncidentsETLHandler
type HandlerConfig struct {
	ServiceWorkers int
	Now            func() time.Time
}

// IncidentsETLHandler syncs one provider for one org
type IncidentsETLHandler struct {
	provider       database.IncidentProvider
	repo           IncidentsRepo
	etlProvider    providers.IncidentsETLProvider
	logger         *slog.Logger
	serviceWorkers int
	now            func() time.Time
}

// NewIncidentsETLHandler creates a handler bound to one provider adapter
func NewIncidentsETLHandler(provider database.IncidentProvider, repo IncidentsRepo, etlProvider providers.IncidentsETLProvider, logger *slog.Logger, cfg HandlerConfig) *IncidentsETLHandler {
	if cfg.ServiceWorkers <= 0 {
		cfg.ServiceWorkers = DefaultServiceWorkers
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &IncidentsETLHandler{
		provider:       provider,
		repo:           repo,
		etlProvider:    etlProvider,
		logger:         logger,
		serviceWorkers: cfg.ServiceWorkers,
		now:            cfg.Now,
	}
}

// SyncOrgIncidentServices reconciles the org's services for this provider and
// syncs each service's incidents. A failure loading or reconciling services
// aborts the run; a failing service never stops the others.
func (h *IncidentsETLHandler) SyncOrgIncidentServices(ctx context.Context, orgID string) ProviderResult {
	result := ProviderResult{Provider: string(h.provider)}
	logger := h.logger.With(slog.String("org_id", orgID), slog.String("provider", string(h.provider)))
	runStart := h.now().UTC()

	services, err := h.reconcileServices(ctx, orgID)
	if err != nil {
		logger.Error("Error syncing incident services for org", slog.Any("error", err))
		result.Err = err
		return result
	}

	result.Services = make([]ServiceResult, len(services))
	var g errgroup.Group
	g.SetLimit(h.serviceWorkers)
	for i := range services {
		g.Go(func() error {
			result.Services[i] = h.syncServiceIncidents(ctx, services[i], logger)
			return nil
		})
	}
	_ = g.Wait()

	if len(result.FailedServices()) == 0 {
		if err := h.saveOrgBookmark(ctx, orgID, runStart); err != nil {
			logger.Warn("Failed to save org bookmark", slog.Any("error", err))
		}
	}

	logger.Debug("Provider sync finished",
		slog.Int("services", len(services)),
		slog.Int("failed_services", len(result.FailedServices())),
		slog.Int("incidents", result.IncidentsSynced()))
	return result
}

func (h *IncidentsETLHandler) reconcileServices(ctx context.Context, orgID string) ([]database.OrgIncidentService, error) {
	existing, err := h.repo.GetOrgIncidentServices(ctx, orgID, h.provider)
	if err != nil {
		return nil, err
	}

	var updated []database.OrgIncidentService
	err = recoverPanic(func() error {
		var err error
		updated, err = h.etlProvider.GetUpdatedIncidentServices(ctx, existing)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to reconcile services: %w", err)
	}

	if err := h.repo.UpdateOrgIncidentServices(ctx, orgID, updated); err != nil {
		return nil, err
	}
	return updated, nil
}

// syncServiceIncidents runs bookmark -> fetch -> save incidents -> save
// bookmark for one service. The bookmark only moves after the incidents are
// stored, so a failure anywhere re-fetches the same window next cycle.
func (h *IncidentsETLHandler) syncServiceIncidents(ctx context.Context, service database.OrgIncidentService, logger *slog.Logger) ServiceResult {
	result := ServiceResult{ServiceID: service.ID, ServiceKey: service.Key}
	logger = logger.With(slog.String("service_key", service.Key))

	err := recoverPanic(func() error {
		bookmark, err := h.getOrCreateBookmark(ctx, service.ID, database.IncidentBookmarkTypeService)
		if err != nil {
			return err
		}

		batch, err := h.etlProvider.ProcessServiceIncidents(ctx, service, *bookmark)
		if err != nil {
			return err
		}
		if batch == nil {
			return errors.New("provider returned no incident batch")
		}

		if err := h.repo.SaveIncidentsData(ctx, batch.Incidents, batch.ServiceMap); err != nil {
			return err
		}

		next := *bookmark
		next.Bookmark = batch.Bookmark.Bookmark
		if next.Bookmark.Before(bookmark.Bookmark) {
			logger.Warn("Provider returned an older bookmark, keeping previous cursor",
				slog.Time("previous", bookmark.Bookmark),
				slog.Time("returned", batch.Bookmark.Bookmark))
			next.Bookmark = bookmark.Bookmark
		}
		if err := h.repo.SaveIncidentsBookmark(ctx, &next); err != nil {
			return err
		}

		result.IncidentsSynced = len(batch.Incidents)
		result.Bookmark = next.Bookmark
		return nil
	})
	if err != nil {
		logger.Error("Error syncing incidents for service", slog.Any("error", err))
		result.Err = err
		return result
	}

	logger.Debug("Synced service incidents",
		slog.Int("incidents", result.IncidentsSynced),
		slog.Time("bookmark", result.Bookmark))
	return result
}

// getOrCreateBookmark returns the stored bookmark or a new unsaved one whose
// cursor is the current time
func (h *IncidentsETLHandler) getOrCreateBookmark(ctx context.Context, entityID string, entityType database.IncidentBookmarkType) (*database.IncidentsBookmark, error) {
	bookmark, err := h.repo.GetIncidentsBookmark(ctx, entityID, entityType, h.provider)
	if err != nil {
		return nil, err
	}
	if bookmark != nil {
		return bookmark, nil
	}
	return &database.IncidentsBookmark{
		EntityID:   entityID,
		EntityType: entityType,
		Provider:   h.provider,
		Bookmark:   h.now().UTC(),
	}, nil
}

// saveOrgBookmark records the start of the last run in which every service
// of this provider synced
func (h *IncidentsETLHandler) saveOrgBookmark(ctx context.Context, orgID string, runStart time.Time) error {
	bookmark, err := h.getOrCreateBookmark(ctx, orgID, database.IncidentBookmarkTypeOrg)
	if err != nil {
		return err
	}
	if bookmark.ID == "" || runStart.After(bookmark.Bookmark) {
		bookmark.Bookmark = runStart
	}
	return h.repo.SaveIncidentsBookmark(ctx, bookmark)
}

func recoverPanic(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn()
}
