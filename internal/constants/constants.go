package constants

import "time"

// API Server Constants
const (
	// DefaultAPIHost is the default API server host
	DefaultAPIHost = "localhost"

	// DefaultAPIPort is the default API server port
	DefaultAPIPort = 8080

	// MinPort is the minimum valid port number
	MinPort = 1

	// MaxPort is the maximum valid port number
	MaxPort = 65535

	// DefaultReadTimeout is the default HTTP read timeout
	DefaultReadTimeout = 15 * time.Second

	// DefaultWriteTimeout is the default HTTP write timeout
	DefaultWriteTimeout = 15 * time.Second

	// DefaultIdleTimeout is the default HTTP idle timeout
	DefaultIdleTimeout = 60 * time.Second

	// DefaultShutdownTimeout is the default graceful shutdown timeout
	DefaultShutdownTimeout = 30 * time.Second

	// DefaultMaxHeaderBytes is the default maximum request header size (1 MB)
	DefaultMaxHeaderBytes = 1 << 20

	// DefaultRateLimitPerSecond is the default rate limit (requests per second)
	DefaultRateLimitPerSecond = 100

	// DefaultRateLimitBurst is the default rate limit burst size
	DefaultRateLimitBurst = 200
)

// API Paths
const (
	DefaultGraphQLPath         = "/graphql"
	DefaultUpdatesSocketPath   = "/ws/updates"
	DefaultAdminSocketPath     = "/ws/admin"
	DefaultAdminAPIKeyHeader   = "X-Admin-Key"
	DefaultMetricsPath         = "/metrics"
	DefaultHealthPath          = "/health"
	DefaultTokenRoutePrefix    = "/get_token"
	DefaultAllTokensRoute      = "/get_all_tokens"
	DefaultRefreshTokensRoute  = "/refresh_latest_tokens"
	DefaultTokenQueryRoute     = "/tokens"
	DefaultGraphQLPlaygroundUI = "/playground"
)

// Subscriber Constants
const (
	// DefaultSubscriberErrorLimit is the number of consecutive subscribe
	// failures tolerated before the subscriber gives up
	DefaultSubscriberErrorLimit = 5

	// DefaultSubscriberRetryDelay is the wait between subscribe attempts
	DefaultSubscriberRetryDelay = 5 * time.Second

	// DefaultHandlerWorkers bounds concurrent per-log handlers
	DefaultHandlerWorkers = 16

	// DefaultHandlerQueueSize is the buffered queue between the receive loop and the handlers
	DefaultHandlerQueueSize = 1024

	// DefaultLogChannelSize is the buffer of the raw log/header channel
	DefaultLogChannelSize = 256

	// DefaultHandlerTimeout bounds a single log's pipeline run
	DefaultHandlerTimeout = 2 * time.Minute
)

// Subscriber modes
const (
	SubscriberModeLogs    = "logs"
	SubscriberModeHeaders = "headers"
)

// Cache Constants
const (
	// DefaultLatestTokensCapacity is the size of the latest tokens view
	DefaultLatestTokensCapacity = 100
)

// Storage Constants
const (
	StorageBackendPebble   = "pebble"
	StorageBackendPostgres = "postgres"

	// DefaultQueryLimit is applied when a token query has no limit
	DefaultQueryLimit = 100

	// MaxQueryLimit caps a single token query
	MaxQueryLimit = 1000
)

// Verifier Constants
const (
	// DefaultVerifierBaseURL is the Etherscan-compatible API endpoint
	DefaultVerifierBaseURL = "https://api.etherscan.io/api"

	// DefaultVerifierTimeout is the HTTP timeout for verification lookups
	DefaultVerifierTimeout = 10 * time.Second

	// DefaultVerifierRateLimit is requests per second allowed by the free Etherscan tier
	DefaultVerifierRateLimit = 5

	// DefaultVerifierCacheTTL is how long a verification result is reused
	DefaultVerifierCacheTTL = 10 * time.Minute
)

// WebSocket Constants
const (
	// DefaultClientSendBuffer is the per-client outbound message buffer
	DefaultClientSendBuffer = 256

	// DefaultBroadcastBuffer is the registry's broadcast queue size
	DefaultBroadcastBuffer = 256
)

// Relay Constants
const (
	RelayTypeNone  = "none"
	RelayTypeRedis = "redis"
	RelayTypeKafka = "kafka"

	DefaultRedisChannelPrefix = "screener"
	DefaultKafkaTopic         = "token-updates"
	DefaultRelayWriteTimeout  = 3 * time.Second
)

// Logging Constants
const (
	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"
)

// Database Constants
const (
	DefaultDatabasePath = "./data"
	DefaultRPCTimeout   = 30 * time.Second
)
