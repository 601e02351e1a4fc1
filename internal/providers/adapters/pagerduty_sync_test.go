package adapters

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akmatori/incidentsync/internal/database"
	"github.com/akmatori/incidentsync/internal/etl"
	"github.com/akmatori/incidentsync/internal/providers"
	"github.com/akmatori/incidentsync/internal/services"
	"github.com/akmatori/incidentsync/internal/testhelpers"
)

type fakePagerDutyIncident struct {
	id      string
	created time.Time
	status  string
	changed time.Time
}

func (i *fakePagerDutyIncident) toJSON() map[string]any {
	return map[string]any{
		"id":                    i.id,
		"title":                 "incident " + i.id,
		"status":                i.status,
		"urgency":               "high",
		"created_at":            i.created.Format(time.RFC3339),
		"last_status_change_at": i.changed.Format(time.RFC3339),
		"service":               map[string]any{"id": "PSVC1"},
	}
}

type fakeLogEntry struct {
	incidentID string
	kind       string
	at         time.Time
}

// fakePagerDutyAPI keeps incident state and filters GET /incidents on
// created_at the way PagerDuty does
type fakePagerDutyAPI struct {
	mu        sync.Mutex
	incidents []*fakePagerDutyIncident
	log       []fakeLogEntry
}

func (api *fakePagerDutyAPI) trigger(id string, at time.Time) {
	api.mu.Lock()
	defer api.mu.Unlock()
	api.incidents = append(api.incidents, &fakePagerDutyIncident{id: id, created: at, status: "triggered", changed: at})
	api.log = append(api.log, fakeLogEntry{incidentID: id, kind: "trigger_log_entry", at: at})
}

func (api *fakePagerDutyAPI) resolve(id string, at time.Time) {
	api.mu.Lock()
	defer api.mu.Unlock()
	for _, inc := range api.incidents {
		if inc.id == id {
			inc.status = "resolved"
			inc.changed = at
		}
	}
	api.log = append(api.log, fakeLogEntry{incidentID: id, kind: "resolve_log_entry", at: at})
}

func (api *fakePagerDutyAPI) server(t *testing.T) *httptest.Server {
	window := func(r *http.Request) (time.Time, time.Time) {
		since, err := time.Parse(time.RFC3339, r.URL.Query().Get("since"))
		require.NoError(t, err)
		until, err := time.Parse(time.RFC3339, r.URL.Query().Get("until"))
		require.NoError(t, err)
		return since, until
	}
	inWindow := func(at, since, until time.Time) bool {
		return !at.Before(since) && !at.After(until)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/services", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, map[string]any{
			"services": []map[string]any{{"id": "PSVC1", "name": "Checkout", "status": "active"}},
			"more":     false,
		})
	})
	mux.HandleFunc("/incidents", func(w http.ResponseWriter, r *http.Request) {
		since, until := window(r)
		api.mu.Lock()
		defer api.mu.Unlock()
		out := []map[string]any{}
		for _, inc := range api.incidents {
			if inWindow(inc.created, since, until) {
				out = append(out, inc.toJSON())
			}
		}
		writeJSON(t, w, map[string]any{"incidents": out, "more": false})
	})
	mux.HandleFunc("/log_entries", func(w http.ResponseWriter, r *http.Request) {
		since, until := window(r)
		api.mu.Lock()
		defer api.mu.Unlock()
		out := []map[string]any{}
		for _, entry := range api.log {
			if inWindow(entry.at, since, until) {
				out = append(out, map[string]any{
					"type":       entry.kind,
					"created_at": entry.at.Format(time.RFC3339),
					"incident":   map[string]any{"id": entry.incidentID},
					"service":    map[string]any{"id": "PSVC1"},
				})
			}
		}
		writeJSON(t, w, map[string]any{"log_entries": out, "more": false})
	})
	mux.HandleFunc("/incidents/{id}", func(w http.ResponseWriter, r *http.Request) {
		api.mu.Lock()
		defer api.mu.Unlock()
		for _, inc := range api.incidents {
			if inc.id == r.PathValue("id") {
				writeJSON(t, w, map[string]any{"incident": inc.toJSON()})
				return
			}
		}
		w.WriteHeader(http.StatusNotFound)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestPagerDutySync_PicksUpResolutionOfOlderIncident(t *testing.T) {
	start := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	clock := testhelpers.NewSteppingClock(start)
	db := testhelpers.SetupTestDB(t)
	repo := services.NewIncidentsRepoService(db)
	ctx := context.Background()

	api := &fakePagerDutyAPI{}
	client := NewPagerDutyClient(providers.Credentials{APIToken: "pd-token", BaseURL: api.server(t).URL}, testHTTPConfig)
	runSync := func() {
		t.Helper()
		adapter := NewPagerDutyAdapter("org-1", client, clock.Now)
		handler := etl.NewIncidentsETLHandler(database.IncidentProviderPagerDuty, repo, adapter, testhelpers.DiscardLogger(), etl.HandlerConfig{
			ServiceWorkers: 1,
			Now:            clock.Now,
		})
		result := handler.SyncOrgIncidentServices(ctx, "org-1")
		require.NoError(t, result.Err)
		require.Empty(t, result.FailedServices())
	}
	stored := func(key string) database.Incident {
		t.Helper()
		var inc database.Incident
		require.NoError(t, db.Where(`provider = ? AND "key" = ?`, database.IncidentProviderPagerDuty, key).First(&inc).Error)
		return inc
	}

	// first run only establishes the cursor
	runSync()

	api.trigger("PINC1", start.Add(1*time.Minute))
	api.trigger("PINC2", start.Add(3*time.Minute))
	clock.Advance(5 * time.Minute)
	runSync()
	assert.Equal(t, "triggered", stored("PINC1").Status)

	// the cursor now sits past PINC1's creation time
	resolvedAt := start.Add(30 * time.Minute)
	api.resolve("PINC1", resolvedAt)
	clock.Advance(35 * time.Minute)
	runSync()

	inc := stored("PINC1")
	assert.Equal(t, "resolved", inc.Status)
	require.NotNil(t, inc.ResolvedDate)
	assert.True(t, inc.ResolvedDate.Equal(resolvedAt), "resolved %v", inc.ResolvedDate)

	count, err := repo.CountIncidents(ctx, database.IncidentProviderPagerDuty)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}
