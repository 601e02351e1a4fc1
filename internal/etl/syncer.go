package etl

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/akmatori/incidentsync/internal/database"
	"github.com/akmatori/incidentsync/internal/providers"
)

// ProviderDirectory lists the providers an org is integrated with
type ProviderDirectory interface {
	GetOrgProviders(ctx context.Context, orgID string) ([]string, error)
}

// AdapterResolver builds the adapter for a provider and org
type AdapterResolver interface {
	Resolve(ctx context.Context, provider database.IncidentProvider, orgID string) (providers.IncidentsETLProvider, error)
}

// FailureNotifier is told about org passes with failed units
type FailureNotifier interface {
	NotifySyncFailures(ctx context.Context, summary *SyncSummary) error
}

// DefaultProviderWorkers bounds concurrent provider runs within one org pass
const DefaultProviderWorkers = 2

// SyncerConfig tunes a Syncer
type SyncerConfig struct {
	ProviderWorkers int
	Handler         HandlerConfig
}

// Syncer is the entry point for syncing an org's incidents
type Syncer struct {
	directory ProviderDirectory
	resolver  AdapterResolver
	repo      IncidentsRepo
	logger    *slog.Logger
	cfg       SyncerConfig
	notifier  FailureNotifier
}

// NewSyncer creates a new Syncer
func NewSyncer(directory ProviderDirectory, resolver AdapterResolver, repo IncidentsRepo, logger *slog.Logger, cfg SyncerConfig) *Syncer {
	if cfg.ProviderWorkers <= 0 {
		cfg.ProviderWorkers = DefaultProviderWorkers
	}
	if cfg.Handler.Now == nil {
		cfg.Handler.Now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Syncer{
		directory: directory,
		resolver:  resolver,
		repo:      repo,
		logger:    logger,
		cfg:       cfg,
	}
}

// WithNotifier sets the notifier told about passes with failures
func (s *Syncer) WithNotifier(n FailureNotifier) *Syncer {
	s.notifier = n
	return s
}

// SyncOrgIncidents syncs every provider the org is integrated with. Providers
// fail independently; outcomes are reported in the summary, never as an error.
func (s *Syncer) SyncOrgIncidents(ctx context.Context, orgID string) *SyncSummary {
	summary := &SyncSummary{OrgID: orgID, StartedAt: s.cfg.Handler.Now().UTC()}
	logger := s.logger.With(slog.String("org_id", orgID))

	names, err := s.directory.GetOrgProviders(ctx, orgID)
	if err != nil {
		logger.Error("Error listing incident providers for org", slog.Any("error", err))
		summary.Err = fmt.Errorf("failed to list incident providers: %w", err)
		summary.FinishedAt = s.cfg.Handler.Now().UTC()
		s.notify(ctx, summary, logger)
		return summary
	}
	names = uniqueProviders(names)

	summary.Providers = make([]ProviderResult, len(names))
	var g errgroup.Group
	g.SetLimit(s.cfg.ProviderWorkers)
	for i := range names {
		g.Go(func() error {
			summary.Providers[i] = s.syncProvider(ctx, orgID, names[i], logger)
			return nil
		})
	}
	_ = g.Wait()
	summary.FinishedAt = s.cfg.Handler.Now().UTC()

	counts := summary.Counts()
	logger.Info("Synced incidents for org",
		slog.Int("providers_failed", counts.ProvidersFailed),
		slog.Int("services_synced", counts.ServicesSucceeded),
		slog.Int("services_failed", counts.ServicesFailed),
		slog.Int("incidents", counts.IncidentsSynced))

	s.notify(ctx, summary, logger)
	return summary
}

func (s *Syncer) notify(ctx context.Context, summary *SyncSummary, logger *slog.Logger) {
	if s.notifier == nil || !summary.HasFailures() {
		return
	}
	if err := s.notifier.NotifySyncFailures(ctx, summary); err != nil {
		logger.Warn("Failed to send sync failure notification", slog.Any("error", err))
	}
}

func (s *Syncer) syncProvider(ctx context.Context, orgID, name string, logger *slog.Logger) (result ProviderResult) {
	result.Provider = name
	logger = logger.With(slog.String("provider", name))

	defer func() {
		if r := recover(); r != nil {
			result.Err = fmt.Errorf("panic: %v", r)
			logger.Error("Error syncing incidents for provider", slog.Any("error", result.Err))
		}
	}()

	provider, err := database.ParseIncidentProvider(name)
	if err != nil {
		logger.Error("Error syncing incidents for provider", slog.Any("error", err))
		result.Err = err
		return result
	}

	adapter, err := s.resolver.Resolve(ctx, provider, orgID)
	if err != nil {
		logger.Error("Error syncing incidents for provider", slog.Any("error", err))
		result.Err = err
		return result
	}

	handler := NewIncidentsETLHandler(provider, s.repo, adapter, s.logger, s.cfg.Handler)
	return handler.SyncOrgIncidentServices(ctx, orgID)
}

// uniqueProviders drops repeated provider names, keeping first-seen order
func uniqueProviders(names []string) []string {
	seen := make(map[string]bool, len(names))
	out := make([]string, 0, len(names))
	for _, name := range names {
		k := strings.ToLower(strings.TrimSpace(name))
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, name)
	}
	return out
}
