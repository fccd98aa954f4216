package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"
)

func validConfig() *Config {
	cfg := NewConfig()
	cfg.RPC.Endpoint = "ws://localhost:8546"
	return cfg
}

func TestNewConfig(t *testing.T) {
	cfg := NewConfig()
	if cfg == nil {
		t.Fatal("NewConfig() returned nil")
	}

	if cfg.Log.Level != "info" {
		t.Errorf("Expected default log level 'info', got %q", cfg.Log.Level)
	}
	if cfg.Log.Format != "json" {
		t.Errorf("Expected default log format 'json', got %q", cfg.Log.Format)
	}
	if cfg.Subscriber.Mode != "logs" {
		t.Errorf("Expected default subscriber mode 'logs', got %q", cfg.Subscriber.Mode)
	}
	if cfg.Subscriber.ErrorLimit != 5 {
		t.Errorf("Expected default error limit 5, got %d", cfg.Subscriber.ErrorLimit)
	}
	if cfg.Subscriber.RetryDelay != 5*time.Second {
		t.Errorf("Expected default retry delay 5s, got %v", cfg.Subscriber.RetryDelay)
	}
	if cfg.Cache.Capacity != 100 {
		t.Errorf("Expected default cache capacity 100, got %d", cfg.Cache.Capacity)
	}
	if cfg.Database.Backend != "pebble" {
		t.Errorf("Expected default backend 'pebble', got %q", cfg.Database.Backend)
	}
	if cfg.Relay.Type != "none" {
		t.Errorf("Expected default relay 'none', got %q", cfg.Relay.Type)
	}
	if !cfg.API.Enabled || !cfg.API.EnableGraphQL || !cfg.API.EnableWebSocket {
		t.Error("Expected API, GraphQL and WebSocket to be enabled by default")
	}
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
		errMsg  string
	}{
		{
			name:   "valid config",
			mutate: func(c *Config) {},
		},
		{
			name:    "missing RPC endpoint",
			mutate:  func(c *Config) { c.RPC.Endpoint = "" },
			wantErr: true,
			errMsg:  "RPC endpoint is required",
		},
		{
			name:    "non-positive RPC timeout",
			mutate:  func(c *Config) { c.RPC.Timeout = 0 },
			wantErr: true,
			errMsg:  "RPC timeout must be positive",
		},
		{
			name:    "unknown subscriber mode",
			mutate:  func(c *Config) { c.Subscriber.Mode = "poll" },
			wantErr: true,
			errMsg:  "invalid subscriber mode",
		},
		{
			name:    "zero error limit",
			mutate:  func(c *Config) { c.Subscriber.ErrorLimit = 0 },
			wantErr: true,
			errMsg:  "error limit must be positive",
		},
		{
			name:    "zero workers",
			mutate:  func(c *Config) { c.Subscriber.Workers = 0 },
			wantErr: true,
			errMsg:  "worker count must be positive",
		},
		{
			name:    "postgres without dsn",
			mutate:  func(c *Config) { c.Database.Backend = "postgres" },
			wantErr: true,
			errMsg:  "dsn is required",
		},
		{
			name: "postgres with dsn",
			mutate: func(c *Config) {
				c.Database.Backend = "postgres"
				c.Database.DSN = "postgres://localhost/screener"
			},
		},
		{
			name:    "unknown backend",
			mutate:  func(c *Config) { c.Database.Backend = "sqlite" },
			wantErr: true,
			errMsg:  "invalid database backend",
		},
		{
			name:    "zero cache capacity",
			mutate:  func(c *Config) { c.Cache.Capacity = 0 },
			wantErr: true,
			errMsg:  "cache capacity must be positive",
		},
		{
			name:    "invalid log level",
			mutate:  func(c *Config) { c.Log.Level = "trace" },
			wantErr: true,
			errMsg:  "invalid log level",
		},
		{
			name:    "invalid log format",
			mutate:  func(c *Config) { c.Log.Format = "xml" },
			wantErr: true,
			errMsg:  "invalid log format",
		},
		{
			name: "invalid API port",
			mutate: func(c *Config) {
				c.API.Enabled = true
				c.API.Port = 70000
			},
			wantErr: true,
			errMsg:  "invalid API port",
		},
		{
			name:    "redis relay without addresses",
			mutate:  func(c *Config) { c.Relay.Type = "redis" },
			wantErr: true,
			errMsg:  "no addresses configured",
		},
		{
			name:    "kafka relay without brokers",
			mutate:  func(c *Config) { c.Relay.Type = "kafka" },
			wantErr: true,
			errMsg:  "no brokers configured",
		},
		{
			name:    "unknown relay",
			mutate:  func(c *Config) { c.Relay.Type = "nats" },
			wantErr: true,
			errMsg:  "invalid relay type",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr && !strings.Contains(err.Error(), tt.errMsg) {
				t.Errorf("Validate() error = %q, want it to contain %q", err.Error(), tt.errMsg)
			}
		})
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("SCREENER_RPC_ENDPOINT", "ws://node:8546")
	t.Setenv("SCREENER_RPC_TIMEOUT", "10s")
	t.Setenv("SCREENER_SUBSCRIBER_MODE", "headers")
	t.Setenv("SCREENER_SUBSCRIBER_ERROR_LIMIT", "7")
	t.Setenv("SCREENER_SUBSCRIBER_RETRY_DELAY", "1s")
	t.Setenv("SCREENER_DB_PATH", "/tmp/screener")
	t.Setenv("ETHERSCAN_API_KEY", "from-legacy")
	t.Setenv("SCREENER_VERIFIER_API_KEY", "from-screener")
	t.Setenv("SCREENER_LOG_LEVEL", "debug")
	t.Setenv("SCREENER_API_CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("SCREENER_RELAY_KAFKA_BROKERS", "k1:9092,k2:9092")

	cfg := NewConfig()
	if err := cfg.LoadFromEnv(); err != nil {
		t.Fatalf("LoadFromEnv() error = %v", err)
	}

	if cfg.RPC.Endpoint != "ws://node:8546" {
		t.Errorf("endpoint = %q", cfg.RPC.Endpoint)
	}
	if cfg.RPC.Timeout != 10*time.Second {
		t.Errorf("timeout = %v", cfg.RPC.Timeout)
	}
	if cfg.Subscriber.Mode != "headers" {
		t.Errorf("mode = %q", cfg.Subscriber.Mode)
	}
	if cfg.Subscriber.ErrorLimit != 7 {
		t.Errorf("error limit = %d", cfg.Subscriber.ErrorLimit)
	}
	if cfg.Subscriber.RetryDelay != time.Second {
		t.Errorf("retry delay = %v", cfg.Subscriber.RetryDelay)
	}
	if cfg.Database.Path != "/tmp/screener" {
		t.Errorf("db path = %q", cfg.Database.Path)
	}
	if cfg.Verifier.APIKey != "from-screener" {
		t.Errorf("api key = %q, SCREENER_ variable should win", cfg.Verifier.APIKey)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("log level = %q", cfg.Log.Level)
	}
	wantOrigins := []string{"https://a.example", "https://b.example"}
	if !reflect.DeepEqual(cfg.API.AllowedOrigins, wantOrigins) {
		t.Errorf("origins = %v, want %v", cfg.API.AllowedOrigins, wantOrigins)
	}
	wantBrokers := []string{"k1:9092", "k2:9092"}
	if !reflect.DeepEqual(cfg.Relay.Kafka.Brokers, wantBrokers) {
		t.Errorf("brokers = %v, want %v", cfg.Relay.Kafka.Brokers, wantBrokers)
	}
}

func TestLoadFromEnvInvalidValues(t *testing.T) {
	tests := []struct {
		key   string
		value string
	}{
		{"SCREENER_RPC_TIMEOUT", "soon"},
		{"SCREENER_SUBSCRIBER_ERROR_LIMIT", "many"},
		{"SCREENER_SUBSCRIBER_RETRY_DELAY", "later"},
		{"SCREENER_SUBSCRIBER_WORKERS", "x"},
		{"SCREENER_DB_READONLY", "maybe"},
		{"SCREENER_VERIFIER_ENABLED", "perhaps"},
		{"SCREENER_CACHE_CAPACITY", "big"},
		{"SCREENER_API_ENABLED", "sure"},
		{"SCREENER_API_PORT", "eighty"},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			cfg := NewConfig()
			err := cfg.LoadFromEnv()
			if err == nil {
				t.Fatalf("expected error for %s=%s", tt.key, tt.value)
			}
			if !strings.Contains(err.Error(), tt.key) {
				t.Errorf("error %q should name %s", err.Error(), tt.key)
			}
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
rpc:
  endpoint: ws://file:8546
  timeout: 15s
subscriber:
  mode: headers
  workers: 4
database:
  backend: postgres
  dsn: postgres://user@db/screener
verifier:
  enabled: true
  api_key: file-key
cache:
  capacity: 50
relay:
  type: redis
  redis:
    addresses: ["redis:6379"]
abi:
  dir: /etc/screener/abi
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg := NewConfig()
	if err := cfg.LoadFromFile(path); err != nil {
		t.Fatalf("LoadFromFile() error = %v", err)
	}

	if cfg.RPC.Endpoint != "ws://file:8546" || cfg.RPC.Timeout != 15*time.Second {
		t.Errorf("rpc = %+v", cfg.RPC)
	}
	if cfg.Subscriber.Mode != "headers" || cfg.Subscriber.Workers != 4 {
		t.Errorf("subscriber = %+v", cfg.Subscriber)
	}
	if cfg.Database.Backend != "postgres" || cfg.Database.DSN != "postgres://user@db/screener" {
		t.Errorf("database = %+v", cfg.Database)
	}
	if !cfg.Verifier.Enabled || cfg.Verifier.APIKey != "file-key" {
		t.Errorf("verifier = %+v", cfg.Verifier)
	}
	if cfg.Cache.Capacity != 50 {
		t.Errorf("cache capacity = %d", cfg.Cache.Capacity)
	}
	if cfg.Relay.Type != "redis" || len(cfg.Relay.Redis.Addresses) != 1 {
		t.Errorf("relay = %+v", cfg.Relay)
	}
	if cfg.ABI.Dir != "/etc/screener/abi" {
		t.Errorf("abi dir = %q", cfg.ABI.Dir)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestLoadFromFileErrors(t *testing.T) {
	cfg := NewConfig()
	if err := cfg.LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}

	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("rpc: [unclosed"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if err := cfg.LoadFromFile(path); err == nil {
		t.Error("expected error for invalid YAML")
	}
}

func TestLoadPriority(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "rpc:\n  endpoint: ws://file:8546\nlog:\n  level: warn\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("SCREENER_LOG_LEVEL", "error")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.RPC.Endpoint != "ws://file:8546" {
		t.Errorf("endpoint = %q, file value expected", cfg.RPC.Endpoint)
	}
	if cfg.Log.Level != "error" {
		t.Errorf("log level = %q, env should override file", cfg.Log.Level)
	}
}

func TestLoadInvalidConfig(t *testing.T) {
	t.Setenv("SCREENER_RPC_ENDPOINT", "")
	if _, err := Load(""); err == nil {
		t.Error("Load() without an endpoint should fail validation")
	}
}
