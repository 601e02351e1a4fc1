package etl

import (
	"time"

	"github.com/akmatori/incidentsync/internal/database"
)

// ServiceResult is the outcome of syncing one service
type ServiceResult struct {
	ServiceID       string    `json:"service_id"`
	ServiceKey      string    `json:"service_key"`
	IncidentsSynced int       `json:"incidents_synced"`
	Bookmark        time.Time `json:"bookmark,omitempty"`
	Err             error     `json:"-"`
}

// Failed reports whether the service sync failed
func (r ServiceResult) Failed() bool {
	return r.Err != nil
}

// ProviderResult is the outcome of syncing one provider of an org.
// Err is set when the run aborted before any service work.
type ProviderResult struct {
	Provider string          `json:"provider"`
	Services []ServiceResult `json:"services"`
	Err      error           `json:"-"`
}

// FailedServices returns the services whose sync failed
func (r ProviderResult) FailedServices() []ServiceResult {
	var failed []ServiceResult
	for _, s := range r.Services {
		if s.Failed() {
			failed = append(failed, s)
		}
	}
	return failed
}

// IncidentsSynced sums the incidents persisted across services
func (r ProviderResult) IncidentsSynced() int {
	total := 0
	for _, s := range r.Services {
		total += s.IncidentsSynced
	}
	return total
}

// SyncSummary is the outcome of one org pass.
// Err is set when the org's providers could not be listed.
type SyncSummary struct {
	OrgID      string           `json:"org_id"`
	StartedAt  time.Time        `json:"started_at"`
	FinishedAt time.Time        `json:"finished_at"`
	Providers  []ProviderResult `json:"providers"`
	Err        error            `json:"-"`
}

// Counts of units in a summary
type Counts struct {
	ProvidersSucceeded int `json:"providers_succeeded"`
	ProvidersFailed    int `json:"providers_failed"`
	ServicesSucceeded  int `json:"services_succeeded"`
	ServicesFailed     int `json:"services_failed"`
	IncidentsSynced    int `json:"incidents_synced"`
}

// Counts tallies succeeded and failed units
func (s *SyncSummary) Counts() Counts {
	var c Counts
	for _, p := range s.Providers {
		if p.Err != nil {
			c.ProvidersFailed++
		} else {
			c.ProvidersSucceeded++
		}
		for _, svc := range p.Services {
			if svc.Failed() {
				c.ServicesFailed++
			} else {
				c.ServicesSucceeded++
			}
		}
		c.IncidentsSynced += p.IncidentsSynced()
	}
	return c
}

// HasFailures reports whether the pass or any provider or service unit failed
func (s *SyncSummary) HasFailures() bool {
	if s.Err != nil {
		return true
	}
	c := s.Counts()
	return c.ProvidersFailed > 0 || c.ServicesFailed > 0
}

// Provider returns the result for a provider, if it was attempted
func (s *SyncSummary) Provider(provider database.IncidentProvider) (ProviderResult, bool) {
	for _, p := range s.Providers {
		if p.Provider == string(provider) {
			return p, true
		}
	}
	return ProviderResult{}, false
}
