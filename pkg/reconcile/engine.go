package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	applog "github.com/0xmhha/token-screener/internal/logger"
	"github.com/0xmhha/token-screener/pkg/storage"
	"github.com/0xmhha/token-screener/pkg/token"
)

// Store is the slice of storage.Store the engine needs
type Store interface {
	Get(ctx context.Context, address common.Address) (*token.Record, error)
	Upsert(ctx context.Context, rec *token.Record) error
}

// Engine saves records with merge-on-save semantics
type Engine struct {
	store  Store
	locks  *KeyedMutex
	logger *zap.Logger
	now    func() time.Time
}

// NewEngine creates a reconciliation engine over store
func NewEngine(store Store, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		store:  store,
		locks:  NewKeyedMutex(),
		logger: applog.WithComponent(logger, "reconcile"),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Save inserts rec or merges it into the stored record.
// It returns the stored state and whether anything changed.
// Saves for the same address never interleave.
func (e *Engine) Save(ctx context.Context, rec *token.Record) (*token.Record, bool, error) {
	if !rec.HasSupply() {
		return nil, false, token.ErrZeroSupply
	}
	address, err := rec.Address()
	if err != nil {
		return nil, false, err
	}

	unlock := e.locks.Lock(token.NormalizeAddress(address))
	defer unlock()

	existing, err := e.store.Get(ctx, address)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return e.insert(ctx, rec)
	case err != nil:
		return nil, false, fmt.Errorf("failed to load token %s: %w", rec.ContractAddress, err)
	}

	merged, changed := Merge(existing, rec, e.now())
	if !changed {
		e.logger.Debug("token unchanged", zap.String("contract", existing.ContractAddress))
		return existing, false, nil
	}

	if err := e.store.Upsert(ctx, merged); err != nil {
		return nil, false, fmt.Errorf("failed to update token %s: %w", merged.ContractAddress, err)
	}

	e.logger.Info("token updated",
		zap.String("contract", merged.ContractAddress),
		zap.String("symbol", merged.Symbol),
		zap.Bool("renounced", merged.IsRenounced),
		zap.Bool("verified", merged.IsVerified))
	return merged, true, nil
}

func (e *Engine) insert(ctx context.Context, rec *token.Record) (*token.Record, bool, error) {
	fresh := rec.Clone()
	if fresh.DateCreated.IsZero() {
		fresh.DateCreated = e.now()
	}
	fresh.DateUpdated = nil

	if err := e.store.Upsert(ctx, fresh); err != nil {
		return nil, false, fmt.Errorf("failed to insert token %s: %w", fresh.ContractAddress, err)
	}

	e.logger.Info("token saved",
		zap.String("contract", fresh.ContractAddress),
		zap.String("name", fresh.Name),
		zap.String("symbol", fresh.Symbol))
	return fresh, true, nil
}
