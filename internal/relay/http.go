package relay

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Fetcher is the relay operation the handler needs
type Fetcher interface {
	Fetch(ctx context.Context, raw string) (*Response, error)
}

// Handler serves /api/proxy
type Handler struct {
	relay Fetcher
}

// NewHandler creates a relay HTTP handler
func NewHandler(relay Fetcher) *Handler {
	return &Handler{relay: relay}
}

// RegisterRoutes registers the relay route on a router mounted at /api.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/proxy", h.handleProxy)
}

func (h *Handler) handleProxy(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("url")
	if raw == "" {
		writeError(w, http.StatusBadRequest, "MISSING_PARAMETER", "url is required")
		return
	}

	resp, err := h.relay.Fetch(r.Context(), raw)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, resp)
	case errors.Is(err, ErrInvalidURL):
		writeError(w, http.StatusBadRequest, "INVALID_URL", err.Error())
	case errors.Is(err, ErrHostNotAllowed):
		writeError(w, http.StatusForbidden, "HOST_NOT_ALLOWED", err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusGatewayTimeout, "TIMEOUT", "Upstream request timed out")
	default:
		writeError(w, http.StatusBadGateway, "UPSTREAM_ERROR", err.Error())
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]string{"error": message, "code": code})
}
