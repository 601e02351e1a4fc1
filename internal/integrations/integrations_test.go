package integrations

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akmatori/incidentsync/internal/database"
	"github.com/akmatori/incidentsync/internal/providers"
	"github.com/akmatori/incidentsync/internal/testhelpers"
)

const sampleFile = `
orgs:
  - id: org-2
    integrations:
      - provider: opsgenie
        token: og-secret
        base_url: https://api.eu.opsgenie.com
  - id: org-1
    integrations:
      - provider: PagerDuty
        token_env: TEST_ORG1_PD_TOKEN
      - provider: opsgenie
        token: unused
        enabled: false
  - id: org-3
    integrations:
      - provider: pagerduty
        token: x
        enabled: false
`

func TestFileDirectory(t *testing.T) {
	t.Setenv("TEST_ORG1_PD_TOKEN", "pd-from-env")
	dir, err := ParseFileDirectory([]byte(sampleFile))
	require.NoError(t, err)
	ctx := context.Background()

	orgs, err := dir.ListOrgs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"org-1", "org-2"}, orgs)

	names, err := dir.GetOrgProviders(ctx, "org-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"pagerduty"}, names)

	creds, err := dir.GetCredentials(ctx, "org-1", database.IncidentProviderPagerDuty)
	require.NoError(t, err)
	assert.Equal(t, "pd-from-env", creds.APIToken)

	creds, err = dir.GetCredentials(ctx, "org-2", database.IncidentProviderOpsgenie)
	require.NoError(t, err)
	assert.Equal(t, providers.Credentials{APIToken: "og-secret", BaseURL: "https://api.eu.opsgenie.com"}, creds)

	_, err = dir.GetCredentials(ctx, "org-1", database.IncidentProviderOpsgenie)
	assert.ErrorIs(t, err, ErrIntegrationNotFound)

	_, err = dir.GetOrgProviders(ctx, "org-404")
	assert.ErrorIs(t, err, ErrOrgNotFound)
}

func TestFileDirectory_Validation(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"unknown provider", "orgs:\n  - id: a\n    integrations:\n      - provider: zendesk\n        token: x\n"},
		{"missing token", "orgs:\n  - id: a\n    integrations:\n      - provider: pagerduty\n"},
		{"missing org id", "orgs:\n  - integrations: []\n"},
		{"bad base url", "orgs:\n  - id: a\n    integrations:\n      - provider: opsgenie\n        token: x\n        base_url: not a url\n"},
		{"duplicate org", "orgs:\n  - id: a\n  - id: a\n"},
		{"not yaml", "orgs: [\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseFileDirectory([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestLoadFileDirectory(t *testing.T) {
	path := testhelpers.WriteTestFile(t, t.TempDir(), "integrations.yaml", sampleFile)
	dir, err := LoadFileDirectory(path)
	require.NoError(t, err)

	names, err := dir.GetOrgProviders(context.Background(), "org-2")
	require.NoError(t, err)
	assert.Equal(t, []string{"opsgenie"}, names)

	_, err = LoadFileDirectory(path + ".missing")
	assert.Error(t, err)
}

func TestDBDirectory(t *testing.T) {
	db := testhelpers.SetupTestDB(t)
	ctx := context.Background()
	t.Setenv("TEST_DB_PD_TOKEN", "pd-env")

	_, err := database.EnsureOrgIntegration(db, "org-1", database.IncidentProviderPagerDuty, database.JSONB{SettingTokenEnv: "TEST_DB_PD_TOKEN"})
	require.NoError(t, err)
	_, err = database.EnsureOrgIntegration(db, "org-1", database.IncidentProviderOpsgenie, database.JSONB{SettingToken: "og", SettingBaseURL: "https://og.example"})
	require.NoError(t, err)
	disabled, err := database.EnsureOrgIntegration(db, "org-2", database.IncidentProviderPagerDuty, nil)
	require.NoError(t, err)
	require.NoError(t, db.Model(disabled).Update("enabled", false).Error)

	dir := NewDBDirectory(db)

	orgs, err := dir.ListOrgs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"org-1"}, orgs)

	names, err := dir.GetOrgProviders(ctx, "org-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"opsgenie", "pagerduty"}, names)

	creds, err := dir.GetCredentials(ctx, "org-1", database.IncidentProviderPagerDuty)
	require.NoError(t, err)
	assert.Equal(t, "pd-env", creds.APIToken)

	creds, err = dir.GetCredentials(ctx, "org-1", database.IncidentProviderOpsgenie)
	require.NoError(t, err)
	assert.Equal(t, "https://og.example", creds.BaseURL)

	_, err = dir.GetCredentials(ctx, "org-2", database.IncidentProviderPagerDuty)
	assert.ErrorIs(t, err, ErrIntegrationNotFound)
}

type countingDirectory struct {
	calls int32
	err   error
}

func (d *countingDirectory) GetOrgProviders(ctx context.Context, orgID string) ([]string, error) {
	atomic.AddInt32(&d.calls, 1)
	if d.err != nil {
		return nil, d.err
	}
	return []string{"pagerduty"}, nil
}

func (d *countingDirectory) ListOrgs(ctx context.Context) ([]string, error) {
	atomic.AddInt32(&d.calls, 1)
	return []string{"org-1"}, d.err
}

func (d *countingDirectory) GetCredentials(ctx context.Context, orgID string, provider database.IncidentProvider) (providers.Credentials, error) {
	atomic.AddInt32(&d.calls, 1)
	return providers.Credentials{APIToken: "t"}, d.err
}

func TestCachedDirectory(t *testing.T) {
	inner := &countingDirectory{}
	dir := NewCachedDirectory(inner, time.Minute)
	defer dir.Stop()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := dir.GetOrgProviders(ctx, "org-1")
		require.NoError(t, err)
		_, err = dir.ListOrgs(ctx)
		require.NoError(t, err)
		_, err = dir.GetCredentials(ctx, "org-1", database.IncidentProviderPagerDuty)
		require.NoError(t, err)
	}
	assert.Equal(t, int32(3), atomic.LoadInt32(&inner.calls))
}

func TestCachedDirectory_DoesNotCacheErrors(t *testing.T) {
	inner := &countingDirectory{err: errors.New("db down")}
	dir := NewCachedDirectory(inner, time.Minute)
	defer dir.Stop()

	for i := 0; i < 2; i++ {
		_, err := dir.GetOrgProviders(context.Background(), "org-1")
		assert.Error(t, err)
	}
	assert.Equal(t, int32(2), atomic.LoadInt32(&inner.calls))
}
