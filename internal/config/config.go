package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/0xmhha/token-screener/internal/constants"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the screener
type Config struct {
	RPC        RPCConfig        `yaml:"rpc"`
	Subscriber SubscriberConfig `yaml:"subscriber"`
	Database   DatabaseConfig   `yaml:"database"`
	Verifier   VerifierConfig   `yaml:"verifier"`
	Cache      CacheConfig      `yaml:"cache"`
	Log        LogConfig        `yaml:"log"`
	API        APIConfig        `yaml:"api"`
	Relay      RelayConfig      `yaml:"relay"`
	ABI        ABIConfig        `yaml:"abi"`
}

// RPCConfig holds RPC client configuration. Log subscriptions need a
// websocket or IPC endpoint.
type RPCConfig struct {
	Endpoint string        `yaml:"endpoint"`
	Timeout  time.Duration `yaml:"timeout"`
}

// SubscriberConfig controls the chain log subscription
type SubscriberConfig struct {
	// Mode is "logs" (filter subscription) or "headers" (bloom pre-filter)
	Mode       string        `yaml:"mode"`
	ErrorLimit int           `yaml:"error_limit"`
	RetryDelay time.Duration `yaml:"retry_delay"`
	// Workers bounds concurrent per-log handlers
	Workers   int `yaml:"workers"`
	QueueSize int `yaml:"queue_size"`
	// HandlerTimeout bounds one log's trip through the pipeline
	HandlerTimeout time.Duration `yaml:"handler_timeout"`
}

// DatabaseConfig holds token storage configuration
type DatabaseConfig struct {
	// Backend is "pebble" or "postgres"
	Backend  string `yaml:"backend"`
	Path     string `yaml:"path"`
	ReadOnly bool   `yaml:"readonly"`
	// DSN is the postgres connection string
	DSN string `yaml:"dsn,omitempty"`
}

// VerifierConfig holds the contract verification service settings
type VerifierConfig struct {
	Enabled   bool          `yaml:"enabled"`
	BaseURL   string        `yaml:"base_url"`
	APIKey    string        `yaml:"api_key,omitempty"`
	Timeout   time.Duration `yaml:"timeout"`
	RateLimit float64       `yaml:"rate_limit"`
	CacheTTL  time.Duration `yaml:"cache_ttl"`
}

// CacheConfig holds the latest tokens view settings
type CacheConfig struct {
	Capacity int `yaml:"capacity"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// APIConfig holds API server configuration
type APIConfig struct {
	Enabled         bool            `yaml:"enabled"`
	Host            string          `yaml:"host"`
	Port            int             `yaml:"port"`
	EnableGraphQL   bool            `yaml:"enable_graphql"`
	EnableWebSocket bool            `yaml:"enable_websocket"`
	EnableCORS      bool            `yaml:"enable_cors"`
	AllowedOrigins  []string        `yaml:"allowed_origins"`
	AdminAPIKey     string          `yaml:"admin_api_key,omitempty"`
	RateLimit       RateLimitConfig `yaml:"rate_limit"`
}

// RateLimitConfig holds per-client request limiting
type RateLimitConfig struct {
	Enabled           bool    `yaml:"enabled"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
}

// RelayConfig selects where token updates are mirrored outside the process
type RelayConfig struct {
	// Type is "none", "redis" or "kafka"
	Type  string           `yaml:"type"`
	Redis RelayRedisConfig `yaml:"redis"`
	Kafka RelayKafkaConfig `yaml:"kafka"`
}

// RelayRedisConfig holds Redis Pub/Sub relay settings
type RelayRedisConfig struct {
	Addresses     []string      `yaml:"addresses"`
	Password      string        `yaml:"password,omitempty"`
	DB            int           `yaml:"db"`
	ClusterMode   bool          `yaml:"cluster_mode"`
	ChannelPrefix string        `yaml:"channel_prefix"`
	WriteTimeout  time.Duration `yaml:"write_timeout"`
}

// RelayKafkaConfig holds Kafka relay settings
type RelayKafkaConfig struct {
	Brokers      []string      `yaml:"brokers"`
	Topic        string        `yaml:"topic"`
	ClientID     string        `yaml:"client_id"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// ABIConfig points at per-contract interface descriptors
type ABIConfig struct {
	// Dir holds <address>.json ABI files; empty means generic ERC20 only
	Dir string `yaml:"dir"`
}

// NewConfig creates a new configuration with default values
func NewConfig() *Config {
	cfg := &Config{
		API: APIConfig{
			Enabled:         true,
			EnableGraphQL:   true,
			EnableWebSocket: true,
			EnableCORS:      true,
		},
	}
	cfg.SetDefaults()
	return cfg
}

// SetDefaults fills every unset value
func (c *Config) SetDefaults() {
	if c.RPC.Timeout == 0 {
		c.RPC.Timeout = constants.DefaultRPCTimeout
	}

	if c.Subscriber.Mode == "" {
		c.Subscriber.Mode = constants.SubscriberModeLogs
	}
	if c.Subscriber.ErrorLimit == 0 {
		c.Subscriber.ErrorLimit = constants.DefaultSubscriberErrorLimit
	}
	if c.Subscriber.RetryDelay == 0 {
		c.Subscriber.RetryDelay = constants.DefaultSubscriberRetryDelay
	}
	if c.Subscriber.Workers == 0 {
		c.Subscriber.Workers = constants.DefaultHandlerWorkers
	}
	if c.Subscriber.QueueSize == 0 {
		c.Subscriber.QueueSize = constants.DefaultHandlerQueueSize
	}
	if c.Subscriber.HandlerTimeout == 0 {
		c.Subscriber.HandlerTimeout = constants.DefaultHandlerTimeout
	}

	if c.Database.Backend == "" {
		c.Database.Backend = constants.StorageBackendPebble
	}
	if c.Database.Path == "" {
		c.Database.Path = constants.DefaultDatabasePath
	}

	if c.Verifier.BaseURL == "" {
		c.Verifier.BaseURL = constants.DefaultVerifierBaseURL
	}
	if c.Verifier.Timeout == 0 {
		c.Verifier.Timeout = constants.DefaultVerifierTimeout
	}
	if c.Verifier.RateLimit == 0 {
		c.Verifier.RateLimit = constants.DefaultVerifierRateLimit
	}
	if c.Verifier.CacheTTL == 0 {
		c.Verifier.CacheTTL = constants.DefaultVerifierCacheTTL
	}

	if c.Cache.Capacity == 0 {
		c.Cache.Capacity = constants.DefaultLatestTokensCapacity
	}

	if c.Log.Level == "" {
		c.Log.Level = constants.DefaultLogLevel
	}
	if c.Log.Format == "" {
		c.Log.Format = constants.DefaultLogFormat
	}

	if c.API.Host == "" {
		c.API.Host = constants.DefaultAPIHost
	}
	if c.API.Port == 0 {
		c.API.Port = constants.DefaultAPIPort
	}
	if c.API.AllowedOrigins == nil {
		c.API.AllowedOrigins = []string{"*"}
	}
	if c.API.RateLimit.RequestsPerSecond == 0 {
		c.API.RateLimit.RequestsPerSecond = constants.DefaultRateLimitPerSecond
	}
	if c.API.RateLimit.Burst == 0 {
		c.API.RateLimit.Burst = constants.DefaultRateLimitBurst
	}

	if c.Relay.Type == "" {
		c.Relay.Type = constants.RelayTypeNone
	}
	if c.Relay.Redis.ChannelPrefix == "" {
		c.Relay.Redis.ChannelPrefix = constants.DefaultRedisChannelPrefix
	}
	if c.Relay.Redis.WriteTimeout == 0 {
		c.Relay.Redis.WriteTimeout = constants.DefaultRelayWriteTimeout
	}
	if c.Relay.Kafka.Topic == "" {
		c.Relay.Kafka.Topic = constants.DefaultKafkaTopic
	}
	if c.Relay.Kafka.ClientID == "" {
		c.Relay.Kafka.ClientID = "token-screener"
	}
	if c.Relay.Kafka.WriteTimeout == 0 {
		c.Relay.Kafka.WriteTimeout = constants.DefaultRelayWriteTimeout
	}
}

// LoadFromEnv overrides values from SCREENER_* environment variables.
// ETHERSCAN_API_KEY and DATABASE_URL are honored as well.
func (c *Config) LoadFromEnv() error {
	// RPC
	if endpoint := os.Getenv("SCREENER_RPC_ENDPOINT"); endpoint != "" {
		c.RPC.Endpoint = endpoint
	}
	if timeout := os.Getenv("SCREENER_RPC_TIMEOUT"); timeout != "" {
		duration, err := time.ParseDuration(timeout)
		if err != nil {
			return fmt.Errorf("invalid SCREENER_RPC_TIMEOUT: %w", err)
		}
		c.RPC.Timeout = duration
	}

	// Subscriber
	if mode := os.Getenv("SCREENER_SUBSCRIBER_MODE"); mode != "" {
		c.Subscriber.Mode = mode
	}
	if limit := os.Getenv("SCREENER_SUBSCRIBER_ERROR_LIMIT"); limit != "" {
		val, err := strconv.Atoi(limit)
		if err != nil {
			return fmt.Errorf("invalid SCREENER_SUBSCRIBER_ERROR_LIMIT: %w", err)
		}
		c.Subscriber.ErrorLimit = val
	}
	if delay := os.Getenv("SCREENER_SUBSCRIBER_RETRY_DELAY"); delay != "" {
		duration, err := time.ParseDuration(delay)
		if err != nil {
			return fmt.Errorf("invalid SCREENER_SUBSCRIBER_RETRY_DELAY: %w", err)
		}
		c.Subscriber.RetryDelay = duration
	}
	if workers := os.Getenv("SCREENER_SUBSCRIBER_WORKERS"); workers != "" {
		val, err := strconv.Atoi(workers)
		if err != nil {
			return fmt.Errorf("invalid SCREENER_SUBSCRIBER_WORKERS: %w", err)
		}
		c.Subscriber.Workers = val
	}

	// Database
	if backend := os.Getenv("SCREENER_DB_BACKEND"); backend != "" {
		c.Database.Backend = backend
	}
	if path := os.Getenv("SCREENER_DB_PATH"); path != "" {
		c.Database.Path = path
	}
	if readonly := os.Getenv("SCREENER_DB_READONLY"); readonly != "" {
		val, err := strconv.ParseBool(readonly)
		if err != nil {
			return fmt.Errorf("invalid SCREENER_DB_READONLY: %w", err)
		}
		c.Database.ReadOnly = val
	}
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		c.Database.DSN = dsn
	}
	if dsn := os.Getenv("SCREENER_DB_DSN"); dsn != "" {
		c.Database.DSN = dsn
	}

	// Verifier
	if enabled := os.Getenv("SCREENER_VERIFIER_ENABLED"); enabled != "" {
		val, err := strconv.ParseBool(enabled)
		if err != nil {
			return fmt.Errorf("invalid SCREENER_VERIFIER_ENABLED: %w", err)
		}
		c.Verifier.Enabled = val
	}
	if baseURL := os.Getenv("SCREENER_VERIFIER_BASE_URL"); baseURL != "" {
		c.Verifier.BaseURL = baseURL
	}
	if key := os.Getenv("ETHERSCAN_API_KEY"); key != "" {
		c.Verifier.APIKey = key
	}
	if key := os.Getenv("SCREENER_VERIFIER_API_KEY"); key != "" {
		c.Verifier.APIKey = key
	}

	// Cache
	if capacity := os.Getenv("SCREENER_CACHE_CAPACITY"); capacity != "" {
		val, err := strconv.Atoi(capacity)
		if err != nil {
			return fmt.Errorf("invalid SCREENER_CACHE_CAPACITY: %w", err)
		}
		c.Cache.Capacity = val
	}

	// Log
	if level := os.Getenv("SCREENER_LOG_LEVEL"); level != "" {
		c.Log.Level = level
	}
	if format := os.Getenv("SCREENER_LOG_FORMAT"); format != "" {
		c.Log.Format = format
	}

	// API
	if enabled := os.Getenv("SCREENER_API_ENABLED"); enabled != "" {
		val, err := strconv.ParseBool(enabled)
		if err != nil {
			return fmt.Errorf("invalid SCREENER_API_ENABLED: %w", err)
		}
		c.API.Enabled = val
	}
	if host := os.Getenv("SCREENER_API_HOST"); host != "" {
		c.API.Host = host
	}
	if port := os.Getenv("SCREENER_API_PORT"); port != "" {
		val, err := strconv.Atoi(port)
		if err != nil {
			return fmt.Errorf("invalid SCREENER_API_PORT: %w", err)
		}
		c.API.Port = val
	}
	if origins := os.Getenv("SCREENER_API_CORS_ALLOWED_ORIGINS"); origins != "" {
		c.API.AllowedOrigins = splitList(origins)
		if len(c.API.AllowedOrigins) == 0 {
			c.API.AllowedOrigins = []string{"*"}
		}
	}
	if key := os.Getenv("SCREENER_ADMIN_API_KEY"); key != "" {
		c.API.AdminAPIKey = key
	}

	// Relay
	if relayType := os.Getenv("SCREENER_RELAY_TYPE"); relayType != "" {
		c.Relay.Type = relayType
	}
	if addrs := os.Getenv("SCREENER_RELAY_REDIS_ADDRESSES"); addrs != "" {
		c.Relay.Redis.Addresses = splitList(addrs)
	}
	if password := os.Getenv("SCREENER_RELAY_REDIS_PASSWORD"); password != "" {
		c.Relay.Redis.Password = password
	}
	if brokers := os.Getenv("SCREENER_RELAY_KAFKA_BROKERS"); brokers != "" {
		c.Relay.Kafka.Brokers = splitList(brokers)
	}
	if topic := os.Getenv("SCREENER_RELAY_KAFKA_TOPIC"); topic != "" {
		c.Relay.Kafka.Topic = topic
	}

	if dir := os.Getenv("SCREENER_ABI_DIR"); dir != "" {
		c.ABI.Dir = dir
	}

	return nil
}

func splitList(value string) []string {
	items := make([]string, 0)
	for _, item := range strings.Split(value, ",") {
		item = strings.TrimSpace(item)
		if item != "" {
			items = append(items, item)
		}
	}
	return items
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(filename string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// Validate checks the configuration for consistency
func (c *Config) Validate() error {
	if c.RPC.Endpoint == "" {
		return fmt.Errorf("RPC endpoint is required")
	}
	if c.RPC.Timeout <= 0 {
		return fmt.Errorf("RPC timeout must be positive")
	}

	validModes := map[string]bool{
		constants.SubscriberModeLogs:    true,
		constants.SubscriberModeHeaders: true,
	}
	if !validModes[c.Subscriber.Mode] {
		return fmt.Errorf("invalid subscriber mode %q, must be one of: logs, headers", c.Subscriber.Mode)
	}
	if c.Subscriber.ErrorLimit <= 0 {
		return fmt.Errorf("subscriber error limit must be positive")
	}
	if c.Subscriber.RetryDelay < 0 {
		return fmt.Errorf("subscriber retry delay cannot be negative")
	}
	if c.Subscriber.Workers <= 0 {
		return fmt.Errorf("subscriber worker count must be positive")
	}
	if c.Subscriber.QueueSize <= 0 {
		return fmt.Errorf("subscriber queue size must be positive")
	}

	switch c.Database.Backend {
	case constants.StorageBackendPebble:
		if c.Database.Path == "" {
			return fmt.Errorf("database path is required")
		}
	case constants.StorageBackendPostgres:
		if c.Database.DSN == "" {
			return fmt.Errorf("database dsn is required for postgres backend")
		}
	default:
		return fmt.Errorf("invalid database backend %q, must be one of: pebble, postgres", c.Database.Backend)
	}

	if c.Verifier.Enabled {
		if c.Verifier.BaseURL == "" {
			return fmt.Errorf("verifier base url is required when verifier is enabled")
		}
		if c.Verifier.RateLimit <= 0 {
			return fmt.Errorf("verifier rate limit must be positive")
		}
	}

	if c.Cache.Capacity <= 0 {
		return fmt.Errorf("cache capacity must be positive")
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.Log.Level] {
		return fmt.Errorf("invalid log level %q, must be one of: debug, info, warn, error", c.Log.Level)
	}

	validLogFormats := map[string]bool{
		"json":    true,
		"console": true,
	}
	if !validLogFormats[c.Log.Format] {
		return fmt.Errorf("invalid log format %q, must be one of: json, console", c.Log.Format)
	}

	if c.API.Enabled {
		if c.API.Port < constants.MinPort || c.API.Port > constants.MaxPort {
			return fmt.Errorf("invalid API port %d", c.API.Port)
		}
	}

	validRelayTypes := map[string]bool{
		constants.RelayTypeNone:  true,
		constants.RelayTypeRedis: true,
		constants.RelayTypeKafka: true,
	}
	if !validRelayTypes[c.Relay.Type] {
		return fmt.Errorf("invalid relay type %q, must be one of: none, redis, kafka", c.Relay.Type)
	}
	if c.Relay.Type == constants.RelayTypeRedis && len(c.Relay.Redis.Addresses) == 0 {
		return fmt.Errorf("redis relay selected but no addresses configured")
	}
	if c.Relay.Type == constants.RelayTypeKafka {
		if len(c.Relay.Kafka.Brokers) == 0 {
			return fmt.Errorf("kafka relay selected but no brokers configured")
		}
		if c.Relay.Kafka.Topic == "" {
			return fmt.Errorf("kafka topic is required when kafka relay is selected")
		}
	}

	return nil
}

// Load reads defaults, then the file (if any), then the environment, and validates.
func Load(configFile string) (*Config, error) {
	cfg := NewConfig()

	if configFile != "" {
		if err := cfg.LoadFromFile(configFile); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	if err := cfg.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load config from environment: %w", err)
	}

	cfg.SetDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}
