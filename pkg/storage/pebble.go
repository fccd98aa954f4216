package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/cockroachdb/pebble"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/0xmhha/token-screener/pkg/token"
)

// PebbleStore implements Store using PebbleDB
type PebbleStore struct {
	db     *pebble.DB
	config *Config
	logger *zap.Logger
	closed atomic.Bool
}

var _ Store = (*PebbleStore)(nil)

// NewPebbleStore opens a PebbleDB at cfg.Path
func NewPebbleStore(cfg *Config) (*PebbleStore, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	opts := &pebble.Options{
		Cache:                    pebble.NewCache(int64(cfg.Cache) << 20), // MB to bytes
		MaxOpenFiles:             cfg.MaxOpenFiles,
		MemTableSize:             uint64(cfg.WriteBuffer) << 20,
		DisableWAL:               cfg.DisableWAL,
		MaxConcurrentCompactions: func() int { return cfg.CompactionConcurrency },
		ReadOnly:                 cfg.ReadOnly,
	}

	db, err := pebble.Open(cfg.Path, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	return &PebbleStore{
		db:     db,
		config: cfg,
		logger: zap.NewNop(),
	}, nil
}

// SetLogger sets the logger for the storage
func (s *PebbleStore) SetLogger(logger *zap.Logger) {
	s.logger = logger
}

func (s *PebbleStore) ensureNotClosed() error {
	if s.closed.Load() {
		return ErrClosed
	}
	return nil
}

func (s *PebbleStore) ensureNotReadOnly() error {
	if s.config.ReadOnly {
		return ErrReadOnly
	}
	return nil
}

// Close closes the storage and releases resources
func (s *PebbleStore) Close() error {
	if s.closed.Swap(true) {
		return nil
	}

	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Get retrieves a token record by contract address
func (s *PebbleStore) Get(ctx context.Context, address common.Address) (*token.Record, error) {
	if err := s.ensureNotClosed(); err != nil {
		return nil, err
	}
	return s.getByKey(TokenKey(address))
}

func (s *PebbleStore) getByKey(key []byte) (*token.Record, error) {
	value, closer, err := s.db.Get(key)
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get token: %w", err)
	}
	defer closer.Close()

	var rec token.Record
	if err := json.Unmarshal(value, &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal token: %w", err)
	}
	return &rec, nil
}

// Upsert saves the record and keeps the date_created index in step
func (s *PebbleStore) Upsert(ctx context.Context, rec *token.Record) error {
	if err := s.ensureNotClosed(); err != nil {
		return err
	}
	if err := s.ensureNotReadOnly(); err != nil {
		return err
	}

	address, err := rec.Address()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}
	stored := *rec
	stored.ContractAddress = token.NormalizeAddress(address)

	data, err := json.Marshal(&stored)
	if err != nil {
		return fmt.Errorf("failed to marshal token: %w", err)
	}

	batch := s.db.NewBatch()
	defer batch.Close()

	old, err := s.getByKey(TokenKey(address))
	switch {
	case err == nil:
		if !old.DateCreated.Equal(stored.DateCreated) {
			if err := batch.Delete(CreatedIndexKey(old.DateCreated, old.ContractAddress), nil); err != nil {
				return fmt.Errorf("failed to delete created index: %w", err)
			}
		}
	case !errors.Is(err, ErrNotFound):
		return err
	}

	if err := batch.Set(TokenKey(address), data, nil); err != nil {
		return fmt.Errorf("failed to set token: %w", err)
	}
	if err := batch.Set(CreatedIndexKey(stored.DateCreated, stored.ContractAddress), nil, nil); err != nil {
		return fmt.Errorf("failed to set created index: %w", err)
	}

	return batch.Commit(pebble.Sync)
}

// Delete removes a token record and its index entry
func (s *PebbleStore) Delete(ctx context.Context, address common.Address) error {
	if err := s.ensureNotClosed(); err != nil {
		return err
	}
	if err := s.ensureNotReadOnly(); err != nil {
		return err
	}

	rec, err := s.Get(ctx, address)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return err
	}

	batch := s.db.NewBatch()
	defer batch.Close()

	if err := batch.Delete(TokenKey(address), nil); err != nil {
		return fmt.Errorf("failed to delete token: %w", err)
	}
	if err := batch.Delete(CreatedIndexKey(rec.DateCreated, rec.ContractAddress), nil); err != nil {
		return fmt.Errorf("failed to delete created index: %w", err)
	}

	return batch.Commit(pebble.Sync)
}

// Count returns the number of stored tokens
func (s *PebbleStore) Count(ctx context.Context) (int64, error) {
	if err := s.ensureNotClosed(); err != nil {
		return 0, err
	}

	prefix := TokenKeyPrefix()
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: prefixUpperBound(prefix),
	})
	if err != nil {
		return 0, err
	}
	defer iter.Close()

	var count int64
	for iter.First(); iter.Valid(); iter.Next() {
		count++
	}
	return count, iter.Error()
}

// Query filters tokens after a scan. Date orderings walk the created index
// and stop once the page is full; name orderings sort the filtered set.
func (s *PebbleStore) Query(ctx context.Context, q token.Query) ([]token.Record, error) {
	if err := s.ensureNotClosed(); err != nil {
		return nil, err
	}
	q = normalizeQuery(q)

	switch q.SortBy {
	case token.SortDateCreatedAsc, token.SortDateCreatedDesc:
		return s.queryByCreated(ctx, q, q.SortBy == token.SortDateCreatedDesc)
	case token.SortNameAsc, token.SortNameDesc:
		return s.queryByName(ctx, q, q.SortBy == token.SortNameDesc)
	default:
		return nil, fmt.Errorf("%w: %q", token.ErrInvalidSortKey, q.SortBy)
	}
}

func (s *PebbleStore) queryByCreated(ctx context.Context, q token.Query, desc bool) ([]token.Record, error) {
	prefix := CreatedIndexPrefix()
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: prefixUpperBound(prefix),
	})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	first, next := iter.First, iter.Next
	if desc {
		first, next = iter.Last, iter.Prev
	}

	results := make([]token.Record, 0, q.Limit)
	skipped := 0
	for valid := first(); valid; valid = next() {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		address, err := addressFromCreatedIndexKey(iter.Key())
		if err != nil {
			s.logger.Warn("skipping malformed index key", zap.Error(err))
			continue
		}
		rec, err := s.getByKey([]byte(prefixTokens + address))
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			return nil, err
		}
		if !q.Matches(rec) {
			continue
		}
		if skipped < q.Offset {
			skipped++
			continue
		}
		results = append(results, *rec)
		if len(results) >= q.Limit {
			break
		}
	}

	return results, iter.Error()
}

func (s *PebbleStore) queryByName(ctx context.Context, q token.Query, desc bool) ([]token.Record, error) {
	prefix := TokenKeyPrefix()
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: prefixUpperBound(prefix),
	})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var matched []token.Record
	for iter.First(); iter.Valid(); iter.Next() {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		var rec token.Record
		if err := json.Unmarshal(iter.Value(), &rec); err != nil {
			s.logger.Warn("skipping undecodable token",
				zap.ByteString("key", iter.Key()),
				zap.Error(err))
			continue
		}
		if q.Matches(&rec) {
			matched = append(matched, rec)
		}
	}
	if err := iter.Error(); err != nil {
		return nil, err
	}

	sort.SliceStable(matched, func(i, j int) bool {
		a, b := strings.ToLower(matched[i].Name), strings.ToLower(matched[j].Name)
		if a == b {
			return matched[i].ContractAddress < matched[j].ContractAddress
		}
		if desc {
			return a > b
		}
		return a < b
	})

	return paginate(matched, q.Offset, q.Limit), nil
}

func paginate(records []token.Record, offset, limit int) []token.Record {
	if offset >= len(records) {
		return []token.Record{}
	}
	end := offset + limit
	if end > len(records) {
		end = len(records)
	}
	return records[offset:end]
}
