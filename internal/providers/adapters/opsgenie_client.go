package adapters

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/akmatori/incidentsync/internal/providers"
	"github.com/akmatori/incidentsync/internal/providers/httpclient"
)

// OpsgenieAPIURL is the public Opsgenie API (EU accounts use api.eu.opsgenie.com)
const OpsgenieAPIURL = "https://api.opsgenie.com"

const opsgeniePageSize = 100

// OpsgenieService is a service as returned by GET /v1/services
type OpsgenieService struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	TeamID      string   `json:"teamId"`
	Tags        []string `json:"tags"`
}

// OpsgenieIncident is an incident as returned by GET /v1/incidents
type OpsgenieIncident struct {
	ID               string    `json:"id"`
	TinyID           string    `json:"tinyId"`
	Message          string    `json:"message"`
	Status           string    `json:"status"` // open, resolved, closed
	Priority         string    `json:"priority"`
	OwnerTeam        string    `json:"ownerTeam"`
	ImpactedServices []string  `json:"impactedServices"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
	Responders       []struct {
		Type string `json:"type"`
		ID   string `json:"id"`
	} `json:"responders"`
	Links struct {
		Web string `json:"web"`
	} `json:"links"`
}

type opsgenieServicesPage struct {
	Data       []OpsgenieService `json:"data"`
	TotalCount int               `json:"totalCount"`
}

type opsgenieIncidentsPage struct {
	Data       []OpsgenieIncident `json:"data"`
	TotalCount int                `json:"totalCount"`
}

// OpsgenieClient talks to the Opsgenie REST API v1
type OpsgenieClient struct {
	http *httpclient.Client
}

// NewOpsgenieClient creates a client authenticated with an API integration key
func NewOpsgenieClient(creds providers.Credentials, cfg httpclient.Config) *OpsgenieClient {
	cfg.BaseURL = creds.BaseURL
	if cfg.BaseURL == "" {
		cfg.BaseURL = OpsgenieAPIURL
	}
	cfg.Headers = map[string]string{
		"Authorization": "GenieKey " + creds.APIToken,
	}
	return &OpsgenieClient{http: httpclient.New(cfg)}
}

// ListServices returns every service of the account
func (c *OpsgenieClient) ListServices(ctx context.Context) ([]OpsgenieService, error) {
	var services []OpsgenieService
	for offset := 0; ; offset += opsgeniePageSize {
		query := url.Values{
			"limit":  {strconv.Itoa(opsgeniePageSize)},
			"offset": {strconv.Itoa(offset)},
		}
		var page opsgenieServicesPage
		if err := c.http.GetJSON(ctx, "/v1/services", query, &page); err != nil {
			return nil, err
		}
		services = append(services, page.Data...)
		if len(page.Data) == 0 || offset+len(page.Data) >= page.TotalCount {
			return services, nil
		}
	}
}

// ListIncidents returns incidents impacting serviceID updated in [since, until]
func (c *OpsgenieClient) ListIncidents(ctx context.Context, serviceID string, since, until time.Time) ([]OpsgenieIncident, error) {
	search := fmt.Sprintf("impactedServices:%s AND updatedAt>=%d AND updatedAt<=%d",
		serviceID, since.UnixMilli(), until.UnixMilli())

	var incidents []OpsgenieIncident
	for offset := 0; ; offset += opsgeniePageSize {
		query := url.Values{
			"query":  {search},
			"sort":   {"createdAt"},
			"order":  {"asc"},
			"limit":  {strconv.Itoa(opsgeniePageSize)},
			"offset": {strconv.Itoa(offset)},
		}
		var page opsgenieIncidentsPage
		if err := c.http.GetJSON(ctx, "/v1/incidents", query, &page); err != nil {
			return nil, err
		}
		incidents = append(incidents, page.Data...)
		if len(page.Data) == 0 || offset+len(page.Data) >= page.TotalCount {
			return incidents, nil
		}
	}
}
