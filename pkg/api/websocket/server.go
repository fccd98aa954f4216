package websocket

import (
	"net/http"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	applog "github.com/0xmhha/token-screener/internal/logger"
)

// Server upgrades HTTP requests into registry clients
type Server struct {
	registry *Registry
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

// NewServer creates a WebSocket server for registry.
// An empty origin list or "*" accepts any origin.
func NewServer(registry *Registry, allowedOrigins []string, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		registry: registry,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
		logger: applog.WithComponent(logger, "websocket"),
	}
}

// Handler returns an http.Handler attaching clients to channel
func (s *Server) Handler(channel Channel) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(w, r, nil)
		if err != nil {
			s.logger.Error("failed to upgrade connection", zap.Error(err))
			return
		}

		client := NewClient(s.registry, conn, channel, s.logger)
		s.registry.Register(client)

		go client.WritePump()
		go client.ReadPump()
	})
}

func originChecker(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		set[o] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[origin]
		return ok
	}
}
