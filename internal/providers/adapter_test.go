package providers

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akmatori/incidentsync/internal/database"
)

func newBase() *BaseAdapter {
	return &BaseAdapter{Provider: database.IncidentProviderPagerDuty, OrgID: "org-1"}
}

func TestBaseAdapter_GetProvider(t *testing.T) {
	assert.Equal(t, database.IncidentProviderPagerDuty, newBase().GetProvider())
}

func TestReconcileServices_KeepsExistingIDs(t *testing.T) {
	b := newBase()
	existing := []database.OrgIncidentService{
		{ID: "id-a", OrgID: "org-1", Provider: database.IncidentProviderPagerDuty, Key: "svc-a", Name: "Old name"},
	}
	fetched := []database.OrgIncidentService{
		{Key: "svc-a", Name: "New name", Status: "active"},
		{Key: "svc-b", Name: "Brand new"},
	}

	updated := b.ReconcileServices(existing, fetched)
	require.Len(t, updated, 2)

	assert.Equal(t, "svc-a", updated[0].Key)
	assert.Equal(t, "id-a", updated[0].ID)
	assert.Equal(t, "New name", updated[0].Name)
	assert.Equal(t, "active", updated[0].Status)

	assert.Equal(t, "svc-b", updated[1].Key)
	assert.NotEmpty(t, updated[1].ID)
	assert.Equal(t, "org-1", updated[1].OrgID)
	assert.Equal(t, database.IncidentProviderPagerDuty, updated[1].Provider)
}

func TestReconcileServices_RetainsServicesMissingUpstream(t *testing.T) {
	b := newBase()
	existing := []database.OrgIncidentService{
		{ID: "id-a", Key: "svc-a", Name: "A"},
		{ID: "id-z", Key: "svc-z", Name: "Z"},
	}

	updated := b.ReconcileServices(existing, []database.OrgIncidentService{{Key: "svc-a", Name: "A2"}})
	require.Len(t, updated, 2)
	assert.Equal(t, "svc-z", updated[1].Key)
	assert.Equal(t, "Z", updated[1].Name)
}

func TestReconcileServices_Idempotent(t *testing.T) {
	b := newBase()
	fetched := []database.OrgIncidentService{{Key: "svc-b"}, {Key: "svc-a"}}

	first := b.ReconcileServices(nil, fetched)
	second := b.ReconcileServices(first, fetched)

	require.Len(t, second, len(first))
	for i := range first {
		assert.Equal(t, first[i].ID, second[i].ID)
		assert.Equal(t, first[i].Key, second[i].Key)
	}
}

func TestAdvanceCursor(t *testing.T) {
	prev := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	windowEnd := prev.Add(time.Hour)
	older := prev.Add(-time.Hour)
	newer := prev.Add(10 * time.Minute)
	resolved := prev.Add(20 * time.Minute)

	tests := []struct {
		name      string
		incidents []database.Incident
		want      time.Time
	}{
		{
			name: "empty fetch advances to window end",
			want: windowEnd,
		},
		{
			name:      "latest creation date wins",
			incidents: []database.Incident{{CreationDate: older}, {CreationDate: newer}},
			want:      newer,
		},
		{
			name:      "resolution counts as activity",
			incidents: []database.Incident{{CreationDate: newer, ResolvedDate: &resolved}},
			want:      resolved,
		},
		{
			name:      "activity after the window is capped",
			incidents: []database.Incident{{CreationDate: windowEnd.Add(time.Minute)}},
			want:      windowEnd,
		},
		{
			name:      "never moves backwards",
			incidents: []database.Incident{{CreationDate: older}},
			want:      prev,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := AdvanceCursor(prev, windowEnd, tt.incidents)
			assert.True(t, got.Equal(tt.want), "got %v, want %v", got, tt.want)
		})
	}
}

func TestAdvanceCursor_EmptyFetchWithStaleWindow(t *testing.T) {
	prev := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	got := AdvanceCursor(prev, prev.Add(-time.Minute), nil)
	assert.True(t, got.Equal(prev))
}
