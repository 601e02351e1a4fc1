package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/akmatori/incidentsync/internal/api"
)

// Version is reported by the health endpoint
const Version = "1.0.0"

// Pinger checks that a dependency is reachable
type Pinger interface {
	PingContext(ctx context.Context) error
}

// HTTPHandler serves the unauthenticated health endpoint
type HTTPHandler struct {
	db     Pinger
	logger *slog.Logger
}

// NewHTTPHandler creates a new HTTP handler; db may be nil
func NewHTTPHandler(db Pinger, logger *slog.Logger) *HTTPHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPHandler{db: db, logger: logger}
}

// SetupRoutes configures all HTTP routes
func (h *HTTPHandler) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", h.handleHealth)
}

// handleHealth reports ok, or 503 when the database does not answer
func (h *HTTPHandler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		api.RespondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	response := map[string]string{"status": "ok", "version": Version}

	if h.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.db.PingContext(ctx); err != nil {
			h.logger.Warn("Health check failed", slog.Any("error", err))
			response["status"] = "unavailable"
			api.RespondJSON(w, http.StatusServiceUnavailable, response)
			return
		}
	}

	api.RespondJSON(w, http.StatusOK, response)
}
