package adapters

import (
	"context"
	"net/url"
	"strconv"
	"time"

	"github.com/akmatori/incidentsync/internal/providers"
	"github.com/akmatori/incidentsync/internal/providers/httpclient"
)

// PagerDutyAPIURL is the public PagerDuty REST API
const PagerDutyAPIURL = "https://api.pagerduty.com"

const pagerDutyPageSize = 100

// PagerDutyService is a service as returned by GET /services
type PagerDutyService struct {
	ID                     string `json:"id"`
	Name                   string `json:"name"`
	Description            string `json:"description"`
	Status                 string `json:"status"` // active, warning, critical, maintenance, disabled
	HTMLURL                string `json:"html_url"`
	AutoResolveTimeout     *int   `json:"auto_resolve_timeout"`
	AcknowledgementTimeout *int   `json:"acknowledgement_timeout"`
	CreatedAt              string `json:"created_at"`
	Teams                  []struct {
		ID string `json:"id"`
	} `json:"teams"`
	EscalationPolicy struct {
		ID string `json:"id"`
	} `json:"escalation_policy"`
}

// PagerDutyIncident is an incident as returned by GET /incidents
type PagerDutyIncident struct {
	ID                 string     `json:"id"`
	IncidentNumber     int        `json:"incident_number"`
	Title              string     `json:"title"`
	Status             string     `json:"status"` // triggered, acknowledged, resolved
	Urgency            string     `json:"urgency"`
	HTMLURL            string     `json:"html_url"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          *time.Time `json:"updated_at"`
	LastStatusChangeAt *time.Time `json:"last_status_change_at"`
	Service            struct {
		ID string `json:"id"`
	} `json:"service"`
	Assignments []struct {
		Assignee struct {
			ID      string `json:"id"`
			Summary string `json:"summary"`
		} `json:"assignee"`
	} `json:"assignments"`
	Priority *struct {
		Summary string `json:"summary"`
	} `json:"priority"`
}

// PagerDutyLogEntry is an incident state change as returned by GET /log_entries
type PagerDutyLogEntry struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"` // trigger_log_entry, acknowledge_log_entry, resolve_log_entry, ...
	CreatedAt time.Time `json:"created_at"`
	Incident  struct {
		ID string `json:"id"`
	} `json:"incident"`
	Service struct {
		ID string `json:"id"`
	} `json:"service"`
}

type pagerDutyServicesPage struct {
	Services []PagerDutyService `json:"services"`
	More     bool               `json:"more"`
}

type pagerDutyIncidentsPage struct {
	Incidents []PagerDutyIncident `json:"incidents"`
	More      bool                `json:"more"`
}

type pagerDutyLogEntriesPage struct {
	LogEntries []PagerDutyLogEntry `json:"log_entries"`
	More       bool                `json:"more"`
}

// PagerDutyClient talks to the PagerDuty REST API v2
type PagerDutyClient struct {
	http *httpclient.Client
}

// NewPagerDutyClient creates a client authenticated with an account API token
func NewPagerDutyClient(creds providers.Credentials, cfg httpclient.Config) *PagerDutyClient {
	cfg.BaseURL = creds.BaseURL
	if cfg.BaseURL == "" {
		cfg.BaseURL = PagerDutyAPIURL
	}
	cfg.Headers = map[string]string{
		"Authorization": "Token token=" + creds.APIToken,
		"Accept":        "application/vnd.pagerduty+json;version=2",
	}
	return &PagerDutyClient{http: httpclient.New(cfg)}
}

// ListServices returns every service of the account
func (c *PagerDutyClient) ListServices(ctx context.Context) ([]PagerDutyService, error) {
	var services []PagerDutyService
	for offset := 0; ; offset += pagerDutyPageSize {
		query := url.Values{
			"limit":  {strconv.Itoa(pagerDutyPageSize)},
			"offset": {strconv.Itoa(offset)},
		}
		var page pagerDutyServicesPage
		if err := c.http.GetJSON(ctx, "/services", query, &page); err != nil {
			return nil, err
		}
		services = append(services, page.Services...)
		if !page.More || len(page.Services) == 0 {
			return services, nil
		}
	}
}

// ListUpdatedIncidents returns the incidents of one service that were created
// or changed state in [since, until]. The incidents endpoint filters on
// creation time only, so state changes of older incidents are found through
// the log entries of the same window.
func (c *PagerDutyClient) ListUpdatedIncidents(ctx context.Context, serviceID string, since, until time.Time) ([]PagerDutyIncident, error) {
	incidents, err := c.ListIncidents(ctx, serviceID, since, until)
	if err != nil {
		return nil, err
	}
	changed, err := c.ListChangedIncidentIDs(ctx, serviceID, since, until)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(incidents))
	for _, inc := range incidents {
		seen[inc.ID] = true
	}
	for _, id := range changed {
		if seen[id] {
			continue
		}
		inc, err := c.GetIncident(ctx, id)
		if err != nil {
			return nil, err
		}
		seen[id] = true
		incidents = append(incidents, inc)
	}
	return incidents, nil
}

// ListIncidents returns the incidents of one service created in [since, until]
func (c *PagerDutyClient) ListIncidents(ctx context.Context, serviceID string, since, until time.Time) ([]PagerDutyIncident, error) {
	var incidents []PagerDutyIncident
	for offset := 0; ; offset += pagerDutyPageSize {
		query := url.Values{
			"service_ids[]": {serviceID},
			"since":         {since.UTC().Format(time.RFC3339)},
			"until":         {until.UTC().Format(time.RFC3339)},
			"sort_by":       {"created_at:asc"},
			"limit":         {strconv.Itoa(pagerDutyPageSize)},
			"offset":        {strconv.Itoa(offset)},
		}
		var page pagerDutyIncidentsPage
		if err := c.http.GetJSON(ctx, "/incidents", query, &page); err != nil {
			return nil, err
		}
		incidents = append(incidents, page.Incidents...)
		if !page.More || len(page.Incidents) == 0 {
			return incidents, nil
		}
	}
}

// ListChangedIncidentIDs returns the IDs of the service's incidents with a
// state change logged in [since, until], in log order
func (c *PagerDutyClient) ListChangedIncidentIDs(ctx context.Context, serviceID string, since, until time.Time) ([]string, error) {
	var ids []string
	seen := make(map[string]bool)
	for offset := 0; ; offset += pagerDutyPageSize {
		query := url.Values{
			"since":       {since.UTC().Format(time.RFC3339)},
			"until":       {until.UTC().Format(time.RFC3339)},
			"is_overview": {"true"},
			"limit":       {strconv.Itoa(pagerDutyPageSize)},
			"offset":      {strconv.Itoa(offset)},
		}
		var page pagerDutyLogEntriesPage
		if err := c.http.GetJSON(ctx, "/log_entries", query, &page); err != nil {
			return nil, err
		}
		for _, entry := range page.LogEntries {
			if entry.Service.ID != serviceID || entry.Incident.ID == "" || seen[entry.Incident.ID] {
				continue
			}
			seen[entry.Incident.ID] = true
			ids = append(ids, entry.Incident.ID)
		}
		if !page.More || len(page.LogEntries) == 0 {
			return ids, nil
		}
	}
}

// GetIncident returns one incident by ID
func (c *PagerDutyClient) GetIncident(ctx context.Context, id string) (PagerDutyIncident, error) {
	var resp struct {
		Incident PagerDutyIncident `json:"incident"`
	}
	if err := c.http.GetJSON(ctx, "/incidents/"+url.PathEscape(id), nil, &resp); err != nil {
		return PagerDutyIncident{}, err
	}
	return resp.Incident, nil
}
