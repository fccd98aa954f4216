package api

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/0xmhha/token-screener/pkg/api/websocket"
)

// Health status values
const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

// HealthResponse is the body of GET /health
type HealthResponse struct {
	Status     string            `json:"status"`
	Timestamp  string            `json:"timestamp"`
	Version    string            `json:"version,omitempty"`
	Storage    ComponentHealth   `json:"storage"`
	RPC        *ComponentHealth  `json:"rpc,omitempty"`
	Subscriber *SubscriberHealth `json:"subscriber,omitempty"`
	WebSocket  *WebSocketHealth  `json:"websocket,omitempty"`
	Cache      CacheHealth       `json:"cache"`
	Goroutines int               `json:"goroutine_count"`
}

// ComponentHealth represents the health of a component
type ComponentHealth struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Latency string `json:"latency,omitempty"`
	Tokens  int64  `json:"tokens,omitempty"`
}

// SubscriberHealth reports the chain subscription
type SubscriberHealth struct {
	Connected         bool `json:"connected"`
	ConsecutiveErrors int  `json:"consecutive_errors"`
	Topics            int  `json:"topics"`
}

// WebSocketHealth reports connected clients per channel
type WebSocketHealth struct {
	General int `json:"general"`
	Admin   int `json:"admin"`
}

// CacheHealth reports the latest tokens view
type CacheHealth struct {
	Entries int `json:"entries"`
}

const healthCheckTimeout = 2 * time.Second

// handleHealth reports unhealthy when storage is unreachable and degraded
// when the chain subscription or the RPC endpoint is down.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	resp := HealthResponse{
		Status:     StatusHealthy,
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
		Version:    s.deps.Version,
		Cache:      CacheHealth{Entries: s.deps.Cache.Len()},
		Goroutines: runtime.NumGoroutine(),
	}

	start := time.Now()
	count, err := s.deps.Store.Count(ctx)
	resp.Storage = ComponentHealth{Status: StatusHealthy, Latency: time.Since(start).String(), Tokens: count}
	if err != nil {
		resp.Storage.Status = StatusUnhealthy
		resp.Storage.Message = err.Error()
		resp.Status = StatusUnhealthy
	}

	if s.deps.Chain != nil {
		start := time.Now()
		err := s.deps.Chain.Ping(ctx)
		resp.RPC = &ComponentHealth{Status: StatusHealthy, Latency: time.Since(start).String()}
		if err != nil {
			resp.RPC.Status = StatusUnhealthy
			resp.RPC.Message = err.Error()
			if resp.Status == StatusHealthy {
				resp.Status = StatusDegraded
			}
		}
	}

	if s.deps.Subscriber != nil {
		st := s.deps.Subscriber.Snapshot()
		resp.Subscriber = &SubscriberHealth{
			Connected:         st.Connected,
			ConsecutiveErrors: st.ConsecutiveErrors,
			Topics:            len(st.Topics),
		}
		if !st.Connected && resp.Status == StatusHealthy {
			resp.Status = StatusDegraded
		}
	}

	if s.deps.Registry != nil {
		resp.WebSocket = &WebSocketHealth{
			General: s.deps.Registry.ClientCount(websocket.ChannelGeneral),
			Admin:   s.deps.Registry.ClientCount(websocket.ChannelAdmin),
		}
	}

	status := http.StatusOK
	if resp.Status == StatusUnhealthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}
