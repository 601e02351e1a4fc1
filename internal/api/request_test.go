package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestDecodeJSON(t *testing.T) {
	var dst LoginRequest
	r := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"username":"admin","password":"x"}`))

	if err := DecodeJSON(r, &dst); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dst.Username != "admin" || dst.Password != "x" {
		t.Errorf("unexpected decode result %+v", dst)
	}
}

func TestDecodeJSON_Errors(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{"empty body", "", "request body is empty"},
		{"malformed", `{"username":`, "malformed JSON"},
		{"type mismatch", `{"username":42}`, `invalid value for field "username"`},
		{"unknown field", `{"user":"admin"}`, `unknown field "user"`},
		{"oversized", `{"username":"` + strings.Repeat("a", MaxBodySize) + `"}`, "exceeds maximum size"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var dst LoginRequest
			r := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(tt.body))

			err := DecodeJSON(r, &dst)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %q, want it to contain %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestDecodeJSON_NilBody(t *testing.T) {
	r, _ := http.NewRequest(http.MethodPost, "/auth/login", nil)

	if err := DecodeJSON(r, &LoginRequest{}); err == nil || err.Error() != "request body is empty" {
		t.Errorf("expected empty body error, got %v", err)
	}
}
