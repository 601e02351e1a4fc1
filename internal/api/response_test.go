package api

import (
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRespondJSON(t *testing.T) {
	w := httptest.NewRecorder()
	RespondJSON(w, http.StatusCreated, map[string]int{"id": 42})

	if w.Code != http.StatusCreated {
		t.Errorf("status = %d, want %d", w.Code, http.StatusCreated)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}
	if got := w.Body.String(); got != "{\"id\":42}\n" {
		t.Errorf("body = %q", got)
	}
}

func TestRespondJSON_NilData(t *testing.T) {
	w := httptest.NewRecorder()
	RespondJSON(w, http.StatusAccepted, nil)

	if w.Code != http.StatusAccepted || w.Body.Len() != 0 {
		t.Errorf("expected empty 202, got %d %q", w.Code, w.Body.String())
	}
}

func TestRespondJSON_UnencodableBodyIs500(t *testing.T) {
	w := httptest.NewRecorder()
	w.Header().Set(RequestIDHeader, "req-1")
	RespondJSON(w, http.StatusOK, map[string]float64{"ratio": math.NaN()})

	var resp ErrorResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if w.Code != http.StatusInternalServerError || resp.Code != CodeInternal {
		t.Errorf("unexpected response %d %+v", w.Code, resp)
	}
	if resp.RequestID != "req-1" {
		t.Errorf("request_id = %q, want req-1", resp.RequestID)
	}
}

func TestRespondError_CodeFromStatus(t *testing.T) {
	tests := []struct {
		status int
		want   ErrorCode
	}{
		{http.StatusBadRequest, CodeBadRequest},
		{http.StatusUnauthorized, CodeUnauthorized},
		{http.StatusNotFound, CodeNotFound},
		{http.StatusMethodNotAllowed, CodeMethodNotAllowed},
		{http.StatusServiceUnavailable, CodeUnavailable},
		{http.StatusBadGateway, CodeInternal},
		{http.StatusConflict, CodeBadRequest},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			w := httptest.NewRecorder()
			RespondError(w, tt.status, "boom")

			var resp ErrorResponse
			if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
				t.Fatalf("failed to decode: %v", err)
			}
			if w.Code != tt.status || resp.Code != tt.want || resp.Error != "boom" {
				t.Errorf("got %d %+v, want %d code %q", w.Code, resp, tt.status, tt.want)
			}
		})
	}
}

func TestRespondOrgError(t *testing.T) {
	w := httptest.NewRecorder()
	w.Header().Set(RequestIDHeader, "req-42")
	RespondOrgError(w, http.StatusNotFound, CodeOrgNotFound, "org-9", "Org has no enabled integrations")

	var resp ErrorResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
	if resp.Code != CodeOrgNotFound || resp.OrgID != "org-9" || resp.RequestID != "req-42" {
		t.Errorf("unexpected response %+v", resp)
	}
	if resp.Details != nil {
		t.Errorf("expected no details, got %+v", resp.Details)
	}
}

func TestRespondErrorCode_WithoutRequestID(t *testing.T) {
	w := httptest.NewRecorder()
	RespondErrorCode(w, http.StatusBadRequest, CodeUnknownProvider, `unknown incident provider "nagios"`)

	var raw map[string]any
	if err := json.NewDecoder(w.Body).Decode(&raw); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if raw["code"] != string(CodeUnknownProvider) {
		t.Errorf("code = %v", raw["code"])
	}
	for _, key := range []string{"request_id", "org_id", "details"} {
		if _, ok := raw[key]; ok {
			t.Errorf("expected %s to be omitted, got %v", key, raw)
		}
	}
}

func TestRespondValidationError(t *testing.T) {
	w := httptest.NewRecorder()
	RespondValidationError(w, map[string]string{"username": "is required"})

	var resp ErrorResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422", w.Code)
	}
	if resp.Code != CodeValidation || resp.Details["username"] != "is required" {
		t.Errorf("unexpected response %+v", resp)
	}
}
