package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// RequestIDHeader carries the per-request correlation id.
const RequestIDHeader = "X-Request-ID"

// ErrorCode is the machine-readable reason in an error body.
type ErrorCode string

const (
	CodeBadRequest       ErrorCode = "bad_request"
	CodeValidation       ErrorCode = "validation_error"
	CodeUnauthorized     ErrorCode = "unauthorized"
	CodeNotFound         ErrorCode = "not_found"
	CodeMethodNotAllowed ErrorCode = "method_not_allowed"
	CodeInternal         ErrorCode = "internal_error"
	CodeUnavailable      ErrorCode = "unavailable"

	CodeOrgNotFound     ErrorCode = "org_not_found"
	CodeUnknownProvider ErrorCode = "unknown_provider"
	CodeDirectory       ErrorCode = "directory_unavailable"
	CodeStorage         ErrorCode = "storage_error"
)

// ErrorResponse is the error body of every endpoint. RequestID matches the
// X-Request-ID response header so a failed call can be found in the sync logs.
type ErrorResponse struct {
	Error     string            `json:"error"`
	Code      ErrorCode         `json:"code"`
	RequestID string            `json:"request_id,omitempty"`
	OrgID     string            `json:"org_id,omitempty"`
	Details   map[string]string `json:"details,omitempty"`
}

// RespondJSON writes data as a JSON response with the given status code.
// A body that cannot be encoded becomes a 500 instead of a truncated 2xx.
func RespondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if data == nil {
		w.WriteHeader(status)
		return
	}

	body, err := json.Marshal(data)
	if err != nil {
		slog.Warn("Failed to encode JSON response", slog.Int("status", status), slog.Any("error", err))
		status = http.StatusInternalServerError
		body, _ = json.Marshal(ErrorResponse{
			Error:     "Failed to encode response",
			Code:      CodeInternal,
			RequestID: w.Header().Get(RequestIDHeader),
		})
	}
	w.WriteHeader(status)
	_, _ = w.Write(append(body, '\n'))
}

// RespondError writes an error whose code follows from the status.
func RespondError(w http.ResponseWriter, status int, message string) {
	RespondErrorCode(w, status, codeForStatus(status), message)
}

// RespondErrorCode writes an error with an explicit code.
func RespondErrorCode(w http.ResponseWriter, status int, code ErrorCode, message string) {
	writeError(w, status, ErrorResponse{Error: message, Code: code})
}

// RespondOrgError writes an error about one org's sync state.
func RespondOrgError(w http.ResponseWriter, status int, code ErrorCode, orgID, message string) {
	writeError(w, status, ErrorResponse{Error: message, Code: code, OrgID: orgID})
}

// RespondValidationError writes field-level validation errors as a 422 response.
func RespondValidationError(w http.ResponseWriter, fieldErrors map[string]string) {
	writeError(w, http.StatusUnprocessableEntity, ErrorResponse{
		Error:   "Validation failed",
		Code:    CodeValidation,
		Details: fieldErrors,
	})
}

func writeError(w http.ResponseWriter, status int, body ErrorResponse) {
	body.RequestID = w.Header().Get(RequestIDHeader)
	RespondJSON(w, status, body)
}

func codeForStatus(status int) ErrorCode {
	switch status {
	case http.StatusBadRequest:
		return CodeBadRequest
	case http.StatusUnauthorized:
		return CodeUnauthorized
	case http.StatusNotFound:
		return CodeNotFound
	case http.StatusMethodNotAllowed:
		return CodeMethodNotAllowed
	case http.StatusUnprocessableEntity:
		return CodeValidation
	case http.StatusServiceUnavailable:
		return CodeUnavailable
	}
	if status >= 500 {
		return CodeInternal
	}
	return CodeBadRequest
}
