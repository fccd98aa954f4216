package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/0xmhha/token-screener/internal/constants"
	"github.com/0xmhha/token-screener/pkg/token"
)

var (
	// ErrNotFound is returned when no record exists for an address
	ErrNotFound = errors.New("not found")

	// ErrClosed is returned when operating on a closed storage
	ErrClosed = errors.New("storage closed")

	// ErrReadOnly is returned when attempting to write to a read-only storage
	ErrReadOnly = errors.New("storage is read-only")

	// ErrInvalidRecord is returned for records without a valid address
	ErrInvalidRecord = errors.New("invalid token record")
)

// Store persists token records keyed by contract address
type Store interface {
	// Get returns the record for address or ErrNotFound
	Get(ctx context.Context, address common.Address) (*token.Record, error)

	// Upsert inserts or fully replaces the record
	Upsert(ctx context.Context, rec *token.Record) error

	// Query returns the records matching q in q.SortBy order
	Query(ctx context.Context, q token.Query) ([]token.Record, error)

	// Delete removes the record; deleting a missing record is not an error
	Delete(ctx context.Context, address common.Address) error

	// Count returns the number of stored records
	Count(ctx context.Context) (int64, error)

	// Close releases the backend
	Close() error
}

// Config holds storage configuration
type Config struct {
	// Backend selects the implementation: "pebble" or "postgres"
	Backend string

	// Path to the Pebble database directory
	Path string

	// DSN is the PostgreSQL connection string
	DSN string

	// Cache size in MB (default: 128)
	Cache int

	// MaxOpenFiles is the maximum number of open files (default: 1000)
	MaxOpenFiles int

	// WriteBuffer size in MB (default: 64)
	WriteBuffer int

	// DisableWAL disables write-ahead log (not recommended)
	DisableWAL bool

	// ReadOnly opens the database in read-only mode
	ReadOnly bool

	// CompactionConcurrency for background compaction (default: 1)
	CompactionConcurrency int
}

// DefaultConfig returns a default Pebble configuration
func DefaultConfig(path string) *Config {
	return &Config{
		Backend:               constants.StorageBackendPebble,
		Path:                  path,
		Cache:                 128,
		MaxOpenFiles:          1000,
		WriteBuffer:           64,
		CompactionConcurrency: 1,
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	switch c.Backend {
	case "", constants.StorageBackendPebble:
		if c.Path == "" {
			return errors.New("path cannot be empty")
		}
	case constants.StorageBackendPostgres:
		if c.DSN == "" {
			return errors.New("dsn cannot be empty for postgres backend")
		}
		return nil
	default:
		return fmt.Errorf("unknown storage backend %q", c.Backend)
	}

	if c.Cache < 0 {
		return errors.New("cache size cannot be negative")
	}
	if c.MaxOpenFiles < 0 {
		return errors.New("max open files cannot be negative")
	}
	if c.WriteBuffer < 0 {
		return errors.New("write buffer size cannot be negative")
	}
	if c.CompactionConcurrency < 1 {
		return errors.New("compaction concurrency must be at least 1")
	}
	return nil
}

// Open creates the store selected by cfg.Backend
func Open(ctx context.Context, cfg *Config, logger *zap.Logger) (Store, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	switch cfg.Backend {
	case constants.StorageBackendPostgres:
		return NewPostgresStore(ctx, cfg.DSN, logger)
	default:
		s, err := NewPebbleStore(cfg)
		if err != nil {
			return nil, err
		}
		if logger != nil {
			s.SetLogger(logger)
		}
		return s, nil
	}
}

// normalizeQuery applies the default and maximum limit and the default sort
func normalizeQuery(q token.Query) token.Query {
	if q.Limit <= 0 {
		q.Limit = constants.DefaultQueryLimit
	}
	if q.Limit > constants.MaxQueryLimit {
		q.Limit = constants.MaxQueryLimit
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	if q.SortBy == "" {
		q.SortBy = token.SortDateCreatedDesc
	}
	return q
}
