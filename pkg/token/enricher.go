package token

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"go.uber.org/zap"

	applog "github.com/0xmhha/token-screener/internal/logger"
	"github.com/0xmhha/token-screener/pkg/verifier"
)

// Enricher fills in on-chain metadata and verification status of a record
type Enricher struct {
	client   EthClient
	fetcher  *MetadataFetcher
	verifier verifier.Verifier
	logger   *zap.Logger
	now      func() time.Time
}

// NewEnricher creates an enricher. A nil verifier disables the verification step.
func NewEnricher(client EthClient, registry *Registry, v verifier.Verifier, logger *zap.Logger) *Enricher {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = applog.WithComponent(logger, "enricher")
	return &Enricher{
		client:   client,
		fetcher:  NewMetadataFetcher(client, registry, logger),
		verifier: v,
		logger:   logger,
		now:      time.Now,
	}
}

// Enrich mutates rec in place.
//
// ErrNotContract and ErrZeroSupply mean the record must not be persisted.
// RPC failures while reading metadata are returned wrapped in ErrEnrichment.
// Verification lookup failures are logged and never returned.
func (e *Enricher) Enrich(ctx context.Context, rec *Record) error {
	address, err := rec.Address()
	if err != nil {
		return err
	}

	if rec.Name == "" || rec.Symbol == "" {
		if err := e.fillMetadata(ctx, address, rec); err != nil {
			return err
		}
	}

	if !rec.IsVerified && e.verifier != nil {
		e.applyVerification(ctx, address, rec)
	}
	return nil
}

func (e *Enricher) fillMetadata(ctx context.Context, address common.Address, rec *Record) error {
	code, err := e.client.CodeAt(ctx, address, nil)
	if err != nil {
		return fmt.Errorf("%w: failed to get code: %v", ErrEnrichment, err)
	}
	if len(code) == 0 {
		return ErrNotContract
	}

	meta := e.fetcher.FetchERC20Metadata(ctx, address)
	if !meta.HasSupply() {
		if supplyErr, ok := meta.Errors[FieldTotalSupply]; ok {
			e.logger.Debug("totalSupply unavailable, treating as zero",
				zap.String("address", rec.ContractAddress),
				zap.Error(supplyErr))
		}
		return ErrZeroSupply
	}

	rec.Name = meta.Name
	rec.Symbol = meta.Symbol
	rec.Decimals = int32(meta.Decimals)
	rec.TotalSupply = meta.TotalSupply.String()
	rec.DateCreated = e.now().UTC()

	codeHex := UnwrapBytecode(hexutil.Encode(code))
	rec.Code = &codeHex

	e.logger.Debug("token metadata fetched",
		zap.String("address", rec.ContractAddress),
		zap.String("name", rec.Name),
		zap.String("symbol", rec.Symbol),
		zap.Stringer("descriptor", meta.Descriptor),
		zap.Int("failed_calls", len(meta.Errors)))
	return nil
}

func (e *Enricher) applyVerification(ctx context.Context, address common.Address, rec *Record) {
	result, err := e.verifier.GetABI(ctx, address)
	if err != nil {
		e.logger.Warn("verification lookup failed",
			zap.String("address", rec.ContractAddress),
			zap.Error(err))
		return
	}
	if !result.IsSuccess() {
		return
	}

	rec.IsVerified = true
	if !result.HasABI() {
		return
	}

	abiJSON, err := verifier.CanonicalABI(result.Result)
	if err != nil {
		e.logger.Warn("verified ABI is not valid JSON, storing it as returned",
			zap.String("address", rec.ContractAddress),
			zap.Error(err))
		abiJSON = result.Result
	}
	rec.ABI = &abiJSON
}
