package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/akmatori/incidentsync/internal/etl"
)

// OrgLister lists the orgs to sync
type OrgLister interface {
	ListOrgs(ctx context.Context) ([]string, error)
}

// OrgSyncer syncs one org
type OrgSyncer interface {
	SyncOrgIncidents(ctx context.Context, orgID string) *etl.SyncSummary
}

// SyncScheduler periodically syncs every org in the directory
type SyncScheduler struct {
	orgs    OrgLister
	syncer  OrgSyncer
	logger  *slog.Logger
	running sync.Mutex
}

// NewSyncScheduler creates a new sync scheduler
func NewSyncScheduler(orgs OrgLister, syncer OrgSyncer, logger *slog.Logger) *SyncScheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &SyncScheduler{orgs: orgs, syncer: syncer, logger: logger}
}

// ErrPassInProgress is returned by RunOnce when a previous pass has not finished
var ErrPassInProgress = errors.New("sync pass already in progress")

// RunOnce syncs every org sequentially and returns their summaries.
// It returns ErrPassInProgress while another pass is running.
func (s *SyncScheduler) RunOnce(ctx context.Context) ([]*etl.SyncSummary, error) {
	if !s.running.TryLock() {
		return nil, ErrPassInProgress
	}
	defer s.running.Unlock()

	orgIDs, err := s.orgs.ListOrgs(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list orgs: %w", err)
	}

	summaries := make([]*etl.SyncSummary, 0, len(orgIDs))
	for _, orgID := range orgIDs {
		if ctx.Err() != nil {
			break
		}
		summaries = append(summaries, s.syncer.SyncOrgIncidents(ctx, orgID))
	}
	return summaries, ctx.Err()
}

// Start runs a pass immediately and then every interval until stop is closed
func (s *SyncScheduler) Start(interval time.Duration, stop <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-stop:
			cancel()
		case <-ctx.Done():
		}
	}()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.runPass(ctx)
	for {
		select {
		case <-ticker.C:
			s.runPass(ctx)
		case <-stop:
			s.logger.Info("Sync scheduler stopped")
			return
		}
	}
}

func (s *SyncScheduler) runPass(ctx context.Context) {
	started := time.Now()
	summaries, err := s.RunOnce(ctx)
	if errors.Is(err, ErrPassInProgress) {
		s.logger.Warn("Skipping sync pass, previous pass still running")
		return
	}
	if err != nil {
		s.logger.Error("Sync pass error", slog.Any("error", err))
	}

	failed := 0
	for _, summary := range summaries {
		if summary.HasFailures() {
			failed++
		}
	}
	s.logger.Info("Sync pass finished",
		slog.Int("orgs", len(summaries)),
		slog.Int("orgs_with_failures", failed),
		slog.Duration("took", time.Since(started)))
}
