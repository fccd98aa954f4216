package cache

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/0xmhha/token-screener/internal/constants"
	applog "github.com/0xmhha/token-screener/internal/logger"
	"github.com/0xmhha/token-screener/pkg/metrics"
	"github.com/0xmhha/token-screener/pkg/token"
)

// Querier loads records from storage
type Querier interface {
	Query(ctx context.Context, q token.Query) ([]token.Record, error)
}

// LatestTokens is a bounded most-recent-first view of token records.
//
// Touch replaces an existing entry in place or inserts at the front; when
// over capacity the oldest inserted entry is evicted. An empty cache is
// reloaded from storage on the next List. The lock is never held across
// a storage call.
type LatestTokens struct {
	mu       sync.RWMutex
	entries  []*token.Record
	capacity int
	store    Querier
	logger   *zap.Logger
	metrics  *metrics.Metrics
}

// Config holds cache configuration
type Config struct {
	Capacity int
	Logger   *zap.Logger
	Metrics  *metrics.Metrics
}

// NewLatestTokens creates an empty cache backed by store
func NewLatestTokens(store Querier, cfg Config) *LatestTokens {
	if cfg.Capacity <= 0 {
		cfg.Capacity = constants.DefaultLatestTokensCapacity
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &LatestTokens{
		entries:  make([]*token.Record, 0, cfg.Capacity),
		capacity: cfg.Capacity,
		store:    store,
		logger:   applog.WithComponent(cfg.Logger, "cache"),
		metrics:  cfg.Metrics,
	}
}

// Capacity returns the maximum number of entries
func (c *LatestTokens) Capacity() int {
	return c.capacity
}

// Len returns the current number of entries
func (c *LatestTokens) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Touch records rec as the latest state of its contract
func (c *LatestTokens) Touch(rec *token.Record) {
	if rec == nil {
		return
	}
	entry := rec.Clone()

	c.mu.Lock()
	defer c.mu.Unlock()

	for i, e := range c.entries {
		if e.ContractAddress == entry.ContractAddress {
			c.entries[i] = entry
			return
		}
	}

	c.entries = append(c.entries, nil)
	copy(c.entries[1:], c.entries)
	c.entries[0] = entry
	if len(c.entries) > c.capacity {
		c.entries[len(c.entries)-1] = nil
		c.entries = c.entries[:c.capacity]
	}
	c.metrics.UpdateCachedTokens(len(c.entries))
}

// List returns copies of the cached records, newest first.
// An empty cache is loaded from storage first.
func (c *LatestTokens) List(ctx context.Context) ([]token.Record, error) {
	c.mu.RLock()
	if len(c.entries) > 0 {
		out := c.snapshotLocked()
		c.mu.RUnlock()
		return out, nil
	}
	c.mu.RUnlock()

	loaded, err := c.load(ctx)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	// A concurrent Touch or load may have filled the cache meanwhile.
	if len(c.entries) == 0 {
		c.entries = loaded
		c.metrics.UpdateCachedTokens(len(c.entries))
	}
	return c.snapshotLocked(), nil
}

// Refresh unconditionally reloads the cache from storage
func (c *LatestTokens) Refresh(ctx context.Context) error {
	loaded, err := c.load(ctx)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.entries = loaded
	c.mu.Unlock()

	c.metrics.UpdateCachedTokens(len(loaded))
	c.logger.Info("latest tokens refreshed", zap.Int("count", len(loaded)))
	return nil
}

func (c *LatestTokens) load(ctx context.Context) ([]*token.Record, error) {
	records, err := c.store.Query(ctx, token.LatestQuery(c.capacity))
	if err != nil {
		return nil, fmt.Errorf("failed to load latest tokens: %w", err)
	}
	if len(records) > c.capacity {
		records = records[:c.capacity]
	}

	entries := make([]*token.Record, len(records))
	for i := range records {
		entries[i] = records[i].Clone()
	}
	return entries, nil
}

func (c *LatestTokens) snapshotLocked() []token.Record {
	out := make([]token.Record, len(c.entries))
	for i, e := range c.entries {
		out[i] = *e.Clone()
	}
	return out
}
