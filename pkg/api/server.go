package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/0xmhha/token-screener/internal/constants"
	applog "github.com/0xmhha/token-screener/internal/logger"
	"github.com/0xmhha/token-screener/pkg/api/graphql"
	apimiddleware "github.com/0xmhha/token-screener/pkg/api/middleware"
	"github.com/0xmhha/token-screener/pkg/api/websocket"
	"github.com/0xmhha/token-screener/pkg/subscriber"
	"github.com/0xmhha/token-screener/pkg/token"
)

// TokenStore is the read side of storage the API serves from
type TokenStore interface {
	Get(ctx context.Context, address common.Address) (*token.Record, error)
	Query(ctx context.Context, q token.Query) ([]token.Record, error)
	Count(ctx context.Context) (int64, error)
}

// LatestCache is the latest tokens view
type LatestCache interface {
	List(ctx context.Context) ([]token.Record, error)
	Refresh(ctx context.Context) error
	Len() int
}

// SubscriberStatus reports the chain subscription state
type SubscriberStatus interface {
	Snapshot() subscriber.State
}

// ChainPinger checks the chain RPC connection
type ChainPinger interface {
	Ping(ctx context.Context) error
}

// Deps are the components the server exposes
type Deps struct {
	Store      TokenStore
	Cache      LatestCache
	Registry   *websocket.Registry
	Subscriber SubscriberStatus
	Chain      ChainPinger

	// Gatherer backs /metrics; nil uses the default registry
	Gatherer prometheus.Gatherer

	Version string
}

// Server represents the API server
type Server struct {
	config   *Config
	logger   *zap.Logger
	deps     Deps
	router   *chi.Mux
	server   *http.Server
	wsServer *websocket.Server
}

// NewServer creates a new API server
func NewServer(config *Config, logger *zap.Logger, deps Deps) (*Server, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if deps.Store == nil || deps.Cache == nil {
		return nil, fmt.Errorf("store and cache are required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Server{
		config: config,
		logger: applog.WithComponent(logger, "api"),
		deps:   deps,
		router: chi.NewRouter(),
	}

	s.setupMiddleware()
	if err := s.setupRoutes(); err != nil {
		return nil, err
	}

	s.server = &http.Server{
		Addr:           config.Address(),
		Handler:        s.router,
		ReadTimeout:    config.ReadTimeout,
		WriteTimeout:   config.WriteTimeout,
		IdleTimeout:    config.IdleTimeout,
		MaxHeaderBytes: config.MaxHeaderBytes,
	}

	return s, nil
}

// setupMiddleware configures the middleware stack
func (s *Server) setupMiddleware() {
	// Recovery middleware (must be first)
	s.router.Use(apimiddleware.Recovery(s.logger))
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(apimiddleware.LoggerWithLevel(s.logger))

	if s.config.EnableRateLimit {
		s.router.Use(apimiddleware.RateLimit(
			s.config.RateLimitPerSecond,
			s.config.RateLimitBurst,
			s.logger,
		))
		s.logger.Info("rate limiting enabled",
			zap.Float64("rate_per_second", s.config.RateLimitPerSecond),
			zap.Int("burst", s.config.RateLimitBurst),
		)
	}

	if s.config.EnableCORS {
		s.router.Use(apimiddleware.CORS(s.config.AllowedOrigins))
	}
}

// setupRoutes configures the API routes
func (s *Server) setupRoutes() error {
	if s.config.EnableWebSocket && s.deps.Registry != nil {
		s.wsServer = websocket.NewServer(s.deps.Registry, s.config.AllowedOrigins, s.logger)
		s.router.Get(s.config.UpdatesSocketPath, s.wsServer.Handler(websocket.ChannelGeneral).ServeHTTP)
		s.logger.Info("update socket enabled", zap.String("path", s.config.UpdatesSocketPath))

		if s.config.AdminAPIKey != "" {
			s.router.With(s.adminAuth()).Get(s.config.AdminSocketPath, s.wsServer.Handler(websocket.ChannelAdmin).ServeHTTP)
			s.logger.Info("admin socket enabled", zap.String("path", s.config.AdminSocketPath))
		} else {
			s.logger.Warn("admin socket disabled: no admin API key configured")
		}
	}

	s.router.Get(constants.DefaultHealthPath, s.handleHealth)
	s.router.Get("/version", s.handleVersion)

	if s.deps.Gatherer != nil {
		s.router.Handle(constants.DefaultMetricsPath, promhttp.HandlerFor(s.deps.Gatherer, promhttp.HandlerOpts{}))
	} else {
		s.router.Handle(constants.DefaultMetricsPath, promhttp.Handler())
	}

	s.router.Get(constants.DefaultTokenRoutePrefix+"/{address}", s.handleGetToken)
	s.router.Get(constants.DefaultAllTokensRoute, s.handleGetAllTokens)
	s.router.Get(constants.DefaultTokenQueryRoute, s.handleQueryTokens)

	refresh := s.router.With()
	if s.config.AdminAPIKey != "" {
		refresh = s.router.With(s.adminAuth())
	}
	refresh.Get(constants.DefaultRefreshTokensRoute, s.handleRefreshLatest)
	refresh.Post(constants.DefaultRefreshTokensRoute, s.handleRefreshLatest)

	if s.config.EnableGraphQL {
		h, err := graphql.NewHandler(s.deps.Store, s.deps.Cache, s.logger)
		if err != nil {
			return fmt.Errorf("failed to create GraphQL handler: %w", err)
		}
		s.router.Handle(s.config.GraphQLPath, h)
		s.router.Get(s.config.GraphQLPlaygroundPath, h.PlaygroundHandler(s.config.GraphQLPath))
		s.logger.Info("GraphQL API enabled", zap.String("path", s.config.GraphQLPath))
	}

	return nil
}

func (s *Server) adminAuth() func(http.Handler) http.Handler {
	return apimiddleware.APIKeyAuth(apimiddleware.AuthConfig{
		Header:  constants.DefaultAdminAPIKeyHeader,
		APIKeys: map[string]string{s.config.AdminAPIKey: "admin"},
	}, s.logger)
}

// Start serves until Stop is called
func (s *Server) Start() error {
	s.logger.Info("starting API server",
		zap.String("address", s.config.Address()),
		zap.Bool("graphql", s.config.EnableGraphQL),
		zap.Bool("websocket", s.config.EnableWebSocket),
	)

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}

	return nil
}

// Stop gracefully stops the API server
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("stopping API server")

	shutdownCtx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
	defer cancel()

	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	s.logger.Info("API server stopped gracefully")
	return nil
}

// Router returns the underlying chi router (for testing)
func (s *Server) Router() *chi.Mux {
	return s.router
}
