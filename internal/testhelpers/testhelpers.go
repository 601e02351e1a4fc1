// Package testhelpers provides reusable testing utilities for incidentsync.
//
// This package contains:
// - An in-memory SQLite store with the incident schema migrated
// - A scripted provider adapter for ETL tests
// - HTTP test helpers (requests, recorders, assertions)
package testhelpers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/akmatori/incidentsync/internal/database"
	"github.com/akmatori/incidentsync/internal/providers"
)

// ========================================
// Database Helpers
// ========================================

// SetupTestDB opens a fresh in-memory SQLite database with all incident
// tables migrated. The pool is pinned to one connection so concurrent
// goroutines see the same in-memory database.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := database.AutoMigrate(db); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	t.Cleanup(func() {
		sqlDB.Close()
	})
	return db
}

// DiscardLogger returns a logger that drops everything
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// ========================================
// Fake Provider
// ========================================

// FakeProvider implements providers.IncidentsETLProvider from scripted data.
// Upstream services and incidents can be changed between runs to simulate
// provider-side activity.
type FakeProvider struct {
	providers.BaseAdapter

	mu            sync.Mutex
	now           func() time.Time
	upstream      []database.OrgIncidentService
	incidents     map[string][]database.Incident
	servicesErr   error
	failServices  map[string]error
	panicServices map[string]bool
	processed     []string
}

// NewFakeProvider creates a fake adapter for one org
func NewFakeProvider(provider database.IncidentProvider, orgID string) *FakeProvider {
	return &FakeProvider{
		BaseAdapter:   providers.BaseAdapter{Provider: provider, OrgID: orgID},
		now:           time.Now,
		incidents:     make(map[string][]database.Incident),
		failServices:  make(map[string]error),
		panicServices: make(map[string]bool),
	}
}

// WithClock overrides the clock used to compute the fetch window end
func (f *FakeProvider) WithClock(now func() time.Time) *FakeProvider {
	f.now = now
	return f
}

// WithServices sets the services the provider currently lists
func (f *FakeProvider) WithServices(services ...database.OrgIncidentService) *FakeProvider {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upstream = services
	return f
}

// WithIncidents sets the incidents the provider holds for a service key
func (f *FakeProvider) WithIncidents(serviceKey string, incidents ...database.Incident) *FakeProvider {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.incidents[serviceKey] = incidents
	return f
}

// WithServicesError makes service reconciliation fail
func (f *FakeProvider) WithServicesError(err error) *FakeProvider {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.servicesErr = err
	return f
}

// FailService makes incident fetches for a service key fail; a nil error clears it
func (f *FakeProvider) FailService(serviceKey string, err error) *FakeProvider {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.failServices, serviceKey)
	} else {
		f.failServices[serviceKey] = err
	}
	return f
}

// PanicOnService makes incident fetches for a service key panic
func (f *FakeProvider) PanicOnService(serviceKey string) *FakeProvider {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.panicServices[serviceKey] = true
	return f
}

// Processed returns the service keys ProcessServiceIncidents was called with
func (f *FakeProvider) Processed() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.processed...)
}

// GetUpdatedIncidentServices reconciles existing services with the scripted upstream list
func (f *FakeProvider) GetUpdatedIncidentServices(ctx context.Context, existing []database.OrgIncidentService) ([]database.OrgIncidentService, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.servicesErr != nil {
		return nil, f.servicesErr
	}
	return f.ReconcileServices(existing, f.upstream), nil
}

// ProcessServiceIncidents returns the scripted incidents with activity after
// the cursor, the same update-based selection the real adapters make
func (f *FakeProvider) ProcessServiceIncidents(ctx context.Context, service database.OrgIncidentService, bookmark database.IncidentsBookmark) (*providers.ServiceIncidentsBatch, error) {
	windowEnd := f.now().UTC()

	f.mu.Lock()
	f.processed = append(f.processed, service.Key)
	shouldPanic := f.panicServices[service.Key]
	failErr := f.failServices[service.Key]
	scripted := f.incidents[service.Key]
	f.mu.Unlock()

	if shouldPanic {
		panic(fmt.Sprintf("scripted panic for service %s", service.Key))
	}
	if failErr != nil {
		return nil, failErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	batch := &providers.ServiceIncidentsBatch{
		ServiceMap: database.IncidentServiceMap{},
		Bookmark:   bookmark,
	}
	for _, inc := range scripted {
		if !inc.LastActivity().After(bookmark.Bookmark) {
			continue
		}
		inc.Provider = f.Provider
		batch.Incidents = append(batch.Incidents, inc)
		batch.ServiceMap.Add(inc.Key, service.ID)
	}
	batch.Bookmark.Bookmark = providers.AdvanceCursor(bookmark.Bookmark, windowEnd, batch.Incidents)
	return batch, nil
}

// ========================================
// HTTP Test Helpers
// ========================================

// HTTPTestContext holds components for HTTP handler testing
type HTTPTestContext struct {
	T        *testing.T
	Recorder *httptest.ResponseRecorder
	Request  *http.Request
}

// NewHTTPTestContext creates a new HTTP test context
func NewHTTPTestContext(t *testing.T, method, path string, body io.Reader) *HTTPTestContext {
	t.Helper()
	return &HTTPTestContext{
		T:        t,
		Recorder: httptest.NewRecorder(),
		Request:  httptest.NewRequest(method, path, body),
	}
}

// WithHeader adds a header to the request
func (ctx *HTTPTestContext) WithHeader(key, value string) *HTTPTestContext {
	ctx.Request.Header.Set(key, value)
	return ctx
}

// WithJSONBody sets JSON body on the request
func (ctx *HTTPTestContext) WithJSONBody(v interface{}) *HTTPTestContext {
	ctx.T.Helper()
	body, err := json.Marshal(v)
	if err != nil {
		ctx.T.Fatalf("failed to marshal JSON body: %v", err)
	}
	req := httptest.NewRequest(ctx.Request.Method, ctx.Request.URL.String(), bytes.NewReader(body))
	req.Header = ctx.Request.Header.Clone()
	req.Header.Set("Content-Type", "application/json")
	ctx.Request = req
	return ctx
}

// WithBearerToken adds Authorization Bearer header
func (ctx *HTTPTestContext) WithBearerToken(token string) *HTTPTestContext {
	return ctx.WithHeader("Authorization", "Bearer "+token)
}

// Execute runs the handler and returns the response
func (ctx *HTTPTestContext) Execute(handler http.Handler) *HTTPTestContext {
	handler.ServeHTTP(ctx.Recorder, ctx.Request)
	return ctx
}

// AssertStatus checks the response status code
func (ctx *HTTPTestContext) AssertStatus(expected int) *HTTPTestContext {
	ctx.T.Helper()
	if ctx.Recorder.Code != expected {
		ctx.T.Errorf("expected status %d, got %d. Body: %s", expected, ctx.Recorder.Code, ctx.Recorder.Body.String())
	}
	return ctx
}

// AssertBodyContains checks if response body contains substring
func (ctx *HTTPTestContext) AssertBodyContains(substr string) *HTTPTestContext {
	ctx.T.Helper()
	if body := ctx.Recorder.Body.String(); !strings.Contains(body, substr) {
		ctx.T.Errorf("expected body to contain %q, got: %s", substr, body)
	}
	return ctx
}

// DecodeJSON decodes response body as JSON
func (ctx *HTTPTestContext) DecodeJSON(v interface{}) *HTTPTestContext {
	ctx.T.Helper()
	if err := json.NewDecoder(ctx.Recorder.Body).Decode(v); err != nil {
		ctx.T.Fatalf("failed to decode JSON response: %v", err)
	}
	return ctx
}

// ========================================
// Timing Helpers
// ========================================

// MustCompleteWithin fails the test if the function takes longer than the timeout
func MustCompleteWithin(t *testing.T, timeout time.Duration, fn func()) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		fn()
		close(done)
	}()

	select {
	case <-done:
		return
	case <-time.After(timeout):
		t.Fatalf("function did not complete within %v", timeout)
	}
}
