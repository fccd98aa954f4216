package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
}

func TestAPIKeyAuth(t *testing.T) {
	cfg := AuthConfig{
		Header:       "X-Admin-Key",
		APIKeys:      map[string]string{"secret": "admin"},
		AllowedPaths: map[string]bool{"/health": true},
	}

	var label string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		label, _ = APIKeyFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})
	h := APIKeyAuth(cfg, zap.NewNop())(next)

	tests := []struct {
		name   string
		path   string
		header http.Header
		want   int
	}{
		{"configured header", "/ws/admin", http.Header{"X-Admin-Key": {"secret"}}, http.StatusOK},
		{"query parameter", "/ws/admin?api_key=secret", nil, http.StatusOK},
		{"bearer token", "/ws/admin", http.Header{"Authorization": {"Bearer secret"}}, http.StatusOK},
		{"default header ignored", "/ws/admin", http.Header{"X-Api-Key": {"secret"}}, http.StatusUnauthorized},
		{"wrong key", "/ws/admin", http.Header{"X-Admin-Key": {"nope"}}, http.StatusUnauthorized},
		{"missing key", "/ws/admin", nil, http.StatusUnauthorized},
		{"allowed path", "/health", nil, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			label = ""
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			for k, v := range tt.header {
				req.Header[k] = v
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.want, rec.Code)
			if tt.want == http.StatusUnauthorized {
				assert.Contains(t, rec.Body.String(), "unauthorized")
			}
			if tt.want == http.StatusOK && tt.path != "/health" {
				assert.Equal(t, "admin", label)
			}
		})
	}
}

func TestRateLimiter_Allow(t *testing.T) {
	limiter := NewRateLimiter(10, 10, zap.NewNop())
	defer limiter.Stop()

	for i := 0; i < 10; i++ {
		assert.True(t, limiter.Allow("192.168.1.1"), "request %d within burst", i+1)
	}
	assert.False(t, limiter.Allow("192.168.1.1"), "burst exceeded")
	assert.True(t, limiter.Allow("192.168.1.2"), "different IP has its own bucket")
	assert.Equal(t, 2, limiter.LimiterCount())
}

func TestRateLimiter_Cleanup(t *testing.T) {
	limiter := NewRateLimiter(10, 10, zap.NewNop())
	defer limiter.Stop()

	limiter.Allow("10.0.0.1")
	limiter.Allow("10.0.0.2")
	require.Equal(t, 2, limiter.LimiterCount())

	limiter.cleanup(time.Now().Add(-time.Hour))
	assert.Equal(t, 2, limiter.LimiterCount(), "recently used entries survive")

	limiter.cleanup(time.Now().Add(time.Second))
	assert.Equal(t, 0, limiter.LimiterCount())
}

func TestRateLimitMiddleware(t *testing.T) {
	limiter := NewRateLimiter(1, 2, zap.NewNop())
	defer limiter.Stop()
	h := RateLimitWith(limiter)(okHandler())

	codes := make([]int, 3)
	for i := range codes {
		req := httptest.NewRequest(http.MethodGet, "/tokens", nil)
		req.RemoteAddr = "10.1.1.1:5555"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		codes[i] = rec.Code
		if rec.Code == http.StatusTooManyRequests {
			assert.Equal(t, "1", rec.Header().Get("Retry-After"))
		}
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestExtractClientIP(t *testing.T) {
	tests := []struct {
		name   string
		header http.Header
		remote string
		want   string
	}{
		{"forwarded", http.Header{"X-Forwarded-For": {"1.2.3.4, 10.0.0.1"}}, "9.9.9.9:1", "1.2.3.4"},
		{"invalid forwarded", http.Header{"X-Forwarded-For": {"garbage"}}, "9.9.9.9:1", "9.9.9.9"},
		{"real ip", http.Header{"X-Real-Ip": {"5.6.7.8"}}, "9.9.9.9:1", "5.6.7.8"},
		{"remote addr", nil, "9.9.9.9:1", "9.9.9.9"},
		{"remote without port", nil, "9.9.9.9", "9.9.9.9"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.header {
				req.Header[k] = v
			}
			assert.Equal(t, tt.want, extractClientIP(req))
		})
	}
}

func TestRecovery(t *testing.T) {
	h := Recovery(zap.NewNop())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	assert.NotPanics(t, func() {
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
}

func TestLoggerWithLevel_CapturesStatus(t *testing.T) {
	h := LoggerWithLevel(zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)
}

func TestCORS(t *testing.T) {
	h := CORS([]string{"https://app.example"})(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/tokens", nil)
	req.Header.Set("Origin", "https://app.example")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "https://app.example", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/tokens", nil)
	req.Header.Set("Origin", "https://other.example")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodOptions, "/tokens", nil)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Body.String(), "preflight does not reach the handler")
}
