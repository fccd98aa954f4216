package middleware

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"

	"go.uber.org/zap"
)

type contextKey string

const (
	// APIKeyHeader is the default header carrying the API key
	APIKeyHeader = "X-API-Key"

	apiKeyContextKey contextKey = "api_key"
)

// AuthConfig holds configuration for the authentication middleware
type AuthConfig struct {
	// Header carries the key; empty means APIKeyHeader
	Header string

	// APIKeys maps valid keys to labels used in logs
	APIKeys map[string]string

	// AllowedPaths bypass authentication
	AllowedPaths map[string]bool
}

// APIKeyFromContext returns the label of the authenticated key
func APIKeyFromContext(ctx context.Context) (string, bool) {
	key, ok := ctx.Value(apiKeyContextKey).(string)
	return key, ok
}

// APIKeyAuth rejects requests without a valid key with 401.
// The key is read from the configured header, the api_key query parameter
// (browsers cannot set headers on WebSocket upgrades) or a bearer token.
func APIKeyAuth(cfg AuthConfig, logger *zap.Logger) func(http.Handler) http.Handler {
	header := cfg.Header
	if header == "" {
		header = APIKeyHeader
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if cfg.AllowedPaths[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			key := r.Header.Get(header)
			if key == "" {
				key = r.URL.Query().Get("api_key")
			}
			if key == "" {
				if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
					key = strings.TrimPrefix(auth, "Bearer ")
				}
			}

			if key == "" {
				logger.Debug("request missing API key",
					zap.String("path", r.URL.Path),
					zap.String("ip", extractClientIP(r)),
				)
				writeUnauthorized(w, "missing API key")
				return
			}

			label, valid := validateAPIKey(cfg.APIKeys, key)
			if !valid {
				logger.Warn("invalid API key",
					zap.String("path", r.URL.Path),
					zap.String("ip", extractClientIP(r)),
				)
				writeUnauthorized(w, "invalid API key")
				return
			}

			ctx := context.WithValue(r.Context(), apiKeyContextKey, label)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// validateAPIKey compares in constant time
func validateAPIKey(keys map[string]string, provided string) (string, bool) {
	for key, label := range keys {
		if subtle.ConstantTimeCompare([]byte(key), []byte(provided)) == 1 {
			return label, true
		}
	}
	return "", false
}

func writeUnauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"unauthorized","message":"` + message + `"}`))
}
