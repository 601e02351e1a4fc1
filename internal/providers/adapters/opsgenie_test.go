package adapters

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akmatori/incidentsync/internal/database"
	"github.com/akmatori/incidentsync/internal/providers"
)

func newOpsgenieServer(t *testing.T) *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/services", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "GenieKey og-token", r.Header.Get("Authorization"))
		writeJSON(t, w, map[string]any{
			"data": []map[string]any{
				{"id": "og-svc-1", "name": "Checkout", "teamId": "team-1"},
				{"id": "og-svc-2", "name": "Payments", "teamId": "team-2"},
			},
			"totalCount": 2,
		})
	})
	mux.HandleFunc("/v1/incidents", func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query().Get("query")
		assert.True(t, strings.HasPrefix(query, "impactedServices:og-svc-1 AND updatedAt>="), query)
		writeJSON(t, w, map[string]any{
			"data": []map[string]any{{
				"id":               "og-inc-1",
				"tinyId":           "7",
				"message":          "Checkout errors",
				"status":           "resolved",
				"priority":         "P1",
				"ownerTeam":        "team-1",
				"impactedServices": []string{"og-svc-1", "og-svc-2", "og-svc-unknown"},
				"createdAt":        "2024-05-01T10:00:00Z",
				"updatedAt":        "2024-05-01T10:45:00Z",
			}},
			"totalCount": 1,
		})
	})
	return httptest.NewServer(mux)
}

func newTestOpsgenieAdapter(url string, now time.Time) *OpsgenieAdapter {
	client := NewOpsgenieClient(providers.Credentials{APIToken: "og-token", BaseURL: url}, testHTTPConfig)
	return NewOpsgenieAdapter("org-1", client, func() time.Time { return now })
}

func TestOpsgenieAdapter_MultiServiceIncidents(t *testing.T) {
	srv := newOpsgenieServer(t)
	defer srv.Close()

	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	adapter := newTestOpsgenieAdapter(srv.URL, now)
	ctx := context.Background()

	services, err := adapter.GetUpdatedIncidentServices(ctx, nil)
	require.NoError(t, err)
	require.Len(t, services, 2)
	assert.Equal(t, database.StringList{"team-1"}, services[0].ProviderTeamKeys)

	// created before the cursor, resolved after it
	bookmark := database.IncidentsBookmark{Bookmark: time.Date(2024, 5, 1, 10, 30, 0, 0, time.UTC)}
	batch, err := adapter.ProcessServiceIncidents(ctx, services[0], bookmark)
	require.NoError(t, err)
	require.Len(t, batch.Incidents, 1)

	incident := batch.Incidents[0]
	assert.Equal(t, database.IncidentProviderOpsgenie, incident.Provider)
	assert.Equal(t, "og-inc-1", incident.Key)
	assert.Equal(t, "7", incident.IncidentNumber)
	require.NotNil(t, incident.ResolvedDate)

	assert.ElementsMatch(t, []string{services[0].ID, services[1].ID}, batch.ServiceMap["og-inc-1"])
	assert.True(t, batch.Bookmark.Bookmark.Equal(time.Date(2024, 5, 1, 10, 45, 0, 0, time.UTC)))
}

func TestOpsgenieAdapter_PagesByTotalCount(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		data := make([]map[string]any, 0, opsgeniePageSize)
		if r.URL.Query().Get("offset") == "0" {
			for i := 0; i < opsgeniePageSize; i++ {
				data = append(data, map[string]any{"id": fmt.Sprintf("svc-%d", i), "name": "n"})
			}
		} else {
			data = append(data, map[string]any{"id": "svc-last", "name": "n"})
		}
		writeJSON(t, w, map[string]any{"data": data, "totalCount": opsgeniePageSize + 1})
	}))
	defer srv.Close()

	client := NewOpsgenieClient(providers.Credentials{APIToken: "og-token", BaseURL: srv.URL}, testHTTPConfig)
	services, err := client.ListServices(context.Background())
	require.NoError(t, err)
	assert.Len(t, services, opsgeniePageSize+1)
	assert.Equal(t, 2, calls)
}

type staticCredentials map[database.IncidentProvider]providers.Credentials

func (s staticCredentials) GetCredentials(ctx context.Context, orgID string, provider database.IncidentProvider) (providers.Credentials, error) {
	c, ok := s[provider]
	if !ok {
		return providers.Credentials{}, errors.New("not configured")
	}
	return c, nil
}

func TestRegisterDefaults(t *testing.T) {
	registry := providers.NewRegistry()
	RegisterDefaults(registry, staticCredentials{
		database.IncidentProviderPagerDuty: {APIToken: "pd-token"},
		database.IncidentProviderOpsgenie:  {},
	}, testHTTPConfig, time.Now)

	assert.Equal(t, []database.IncidentProvider{
		database.IncidentProviderOpsgenie,
		database.IncidentProviderPagerDuty,
	}, registry.Providers())

	adapter, err := registry.Resolve(context.Background(), database.IncidentProviderPagerDuty, "org-1")
	require.NoError(t, err)
	assert.IsType(t, &PagerDutyAdapter{}, adapter)

	_, err = registry.Resolve(context.Background(), database.IncidentProviderOpsgenie, "org-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no opsgenie API token")
}
