package api

import (
	"errors"
	"fmt"
	"time"

	"github.com/0xmhha/token-screener/internal/config"
	"github.com/0xmhha/token-screener/internal/constants"
)

// Config holds API server configuration
type Config struct {
	// Host is the server host (default: localhost)
	Host string

	// Port is the server port (default: 8080)
	Port int

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	// EnableCORS enables CORS middleware
	EnableCORS bool

	// AllowedOrigins applies to CORS and WebSocket upgrades
	AllowedOrigins []string

	MaxHeaderBytes int

	// EnableGraphQL enables the GraphQL read API
	EnableGraphQL bool

	// EnableWebSocket enables the update and admin sockets
	EnableWebSocket bool

	GraphQLPath           string
	GraphQLPlaygroundPath string
	UpdatesSocketPath     string
	AdminSocketPath       string

	// AdminAPIKey protects the admin socket and refresh endpoint.
	// Empty disables the admin socket.
	AdminAPIKey string

	ShutdownTimeout time.Duration

	// EnableRateLimit enables per-IP rate limiting
	EnableRateLimit    bool
	RateLimitPerSecond float64
	RateLimitBurst     int
}

// DefaultConfig returns a default API server configuration
func DefaultConfig() *Config {
	return &Config{
		Host:                  constants.DefaultAPIHost,
		Port:                  constants.DefaultAPIPort,
		ReadTimeout:           constants.DefaultReadTimeout,
		WriteTimeout:          constants.DefaultWriteTimeout,
		IdleTimeout:           constants.DefaultIdleTimeout,
		EnableCORS:            true,
		AllowedOrigins:        []string{"*"},
		MaxHeaderBytes:        constants.DefaultMaxHeaderBytes,
		EnableGraphQL:         true,
		EnableWebSocket:       true,
		GraphQLPath:           constants.DefaultGraphQLPath,
		GraphQLPlaygroundPath: constants.DefaultGraphQLPlaygroundUI,
		UpdatesSocketPath:     constants.DefaultUpdatesSocketPath,
		AdminSocketPath:       constants.DefaultAdminSocketPath,
		ShutdownTimeout:       constants.DefaultShutdownTimeout,
		RateLimitPerSecond:    constants.DefaultRateLimitPerSecond,
		RateLimitBurst:        constants.DefaultRateLimitBurst,
	}
}

// FromAppConfig builds the server configuration from the api config section
func FromAppConfig(c config.APIConfig) *Config {
	cfg := DefaultConfig()
	if c.Host != "" {
		cfg.Host = c.Host
	}
	if c.Port != 0 {
		cfg.Port = c.Port
	}
	cfg.EnableCORS = c.EnableCORS
	if len(c.AllowedOrigins) > 0 {
		cfg.AllowedOrigins = c.AllowedOrigins
	}
	cfg.EnableGraphQL = c.EnableGraphQL
	cfg.EnableWebSocket = c.EnableWebSocket
	cfg.AdminAPIKey = c.AdminAPIKey
	cfg.EnableRateLimit = c.RateLimit.Enabled
	if c.RateLimit.RequestsPerSecond > 0 {
		cfg.RateLimitPerSecond = c.RateLimit.RequestsPerSecond
	}
	if c.RateLimit.Burst > 0 {
		cfg.RateLimitBurst = c.RateLimit.Burst
	}
	return cfg
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Host == "" {
		return errors.New("host cannot be empty")
	}
	if c.Port < constants.MinPort || c.Port > constants.MaxPort {
		return fmt.Errorf("port must be between %d and %d", constants.MinPort, constants.MaxPort)
	}
	if c.ReadTimeout <= 0 {
		return errors.New("read timeout must be positive")
	}
	if c.WriteTimeout <= 0 {
		return errors.New("write timeout must be positive")
	}
	if c.IdleTimeout <= 0 {
		return errors.New("idle timeout must be positive")
	}
	if c.MaxHeaderBytes <= 0 {
		return errors.New("max header bytes must be positive")
	}
	if c.ShutdownTimeout <= 0 {
		return errors.New("shutdown timeout must be positive")
	}
	if c.EnableRateLimit && (c.RateLimitPerSecond <= 0 || c.RateLimitBurst <= 0) {
		return errors.New("rate limit and burst must be positive when rate limiting is enabled")
	}
	return nil
}

// Address returns the server address in host:port format
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
