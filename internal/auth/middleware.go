// Package auth guards expensive endpoints with API keys.
package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/pendergraft/contractlens/internal/config"
	"github.com/pendergraft/contractlens/internal/storage"
)

// TypeAPIKey enables key checks; any other AUTH_TYPE leaves routes open.
const TypeAPIKey = "api-key"

type contextKey string

const apiKeyContextKey contextKey = "apiKey"

// ErrorWriter writes a {error, code} body.
type ErrorWriter func(w http.ResponseWriter, status int, code, message string)

// KeyFromContext returns the validated key, if any.
func KeyFromContext(ctx context.Context) *storage.APIKey {
	if key, ok := ctx.Value(apiKeyContextKey).(*storage.APIKey); ok {
		return key
	}
	return nil
}

// KeyFromRequest reads X-API-Key, then a Bearer token.
func KeyFromRequest(r *http.Request) string {
	if key := r.Header.Get("X-API-Key"); key != "" {
		return key
	}
	if token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return ""
}

// Middleware rejects requests without a valid, unrevoked key.
func Middleware(store storage.APIKeyStore, writeError ErrorWriter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := KeyFromRequest(r)
			if raw == "" {
				writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "API key required")
				return
			}

			key, err := store.ValidateAPIKey(r.Context(), raw)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid API key")
				return
			}

			ctx := context.WithValue(r.Context(), apiKeyContextKey, key)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ForConfig returns Middleware when cfg enables API keys and a pass-through
// otherwise.
func ForConfig(cfg config.AuthConfig, store storage.APIKeyStore, writeError ErrorWriter) func(http.Handler) http.Handler {
	if cfg.Type != TypeAPIKey {
		return func(next http.Handler) http.Handler { return next }
	}
	return Middleware(store, writeError)
}
