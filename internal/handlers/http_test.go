package handlers

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/akmatori/incidentsync/internal/testhelpers"
)

type stubPinger struct{ err error }

func (p stubPinger) PingContext(ctx context.Context) error { return p.err }

func TestHTTPHandler_Health(t *testing.T) {
	mux := http.NewServeMux()
	NewHTTPHandler(stubPinger{}, testhelpers.DiscardLogger()).SetupRoutes(mux)

	var body map[string]string
	testhelpers.NewHTTPTestContext(t, http.MethodGet, "/health", nil).
		Execute(mux).
		AssertStatus(http.StatusOK).
		DecodeJSON(&body)

	if body["status"] != "ok" || body["version"] != Version {
		t.Errorf("unexpected body %v", body)
	}
}

func TestHTTPHandler_HealthDatabaseDown(t *testing.T) {
	mux := http.NewServeMux()
	NewHTTPHandler(stubPinger{err: errors.New("connection refused")}, testhelpers.DiscardLogger()).SetupRoutes(mux)

	testhelpers.NewHTTPTestContext(t, http.MethodGet, "/health", nil).
		Execute(mux).
		AssertStatus(http.StatusServiceUnavailable).
		AssertBodyContains("unavailable")
}

func TestHTTPHandler_HealthMethodNotAllowed(t *testing.T) {
	mux := http.NewServeMux()
	NewHTTPHandler(nil, nil).SetupRoutes(mux)

	for _, method := range []string{http.MethodPost, http.MethodPut, http.MethodDelete} {
		t.Run(method, func(t *testing.T) {
			testhelpers.NewHTTPTestContext(t, method, "/health", nil).
				Execute(mux).
				AssertStatus(http.StatusMethodNotAllowed)
		})
	}
}
