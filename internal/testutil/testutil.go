// Package testutil holds chain log and token record fixtures shared by tests.
package testutil

import (
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/0xmhha/token-screener/internal/constants"
	"github.com/0xmhha/token-screener/pkg/token"
)

// DefaultSupply is a non-zero total supply for fixture records
const DefaultSupply = "1000000000000000000000000"

// NewTestLogger returns a logger that writes through t.Log
func NewTestLogger(t *testing.T) *zap.Logger {
	t.Helper()
	return zaptest.NewLogger(t, zaptest.Level(zap.WarnLevel))
}

// AddressTopic left-pads an address into an indexed topic
func AddressTopic(a common.Address) common.Hash {
	return common.BytesToHash(a.Bytes())
}

// NewLog builds a log emitted by emitter at block with the given topics
func NewLog(emitter common.Address, block uint64, topics ...common.Hash) types.Log {
	return types.Log{
		Address:     emitter,
		Topics:      topics,
		BlockNumber: block,
		TxHash:      common.BigToHash(new(big.Int).SetUint64(block)),
	}
}

// PairCreatedLog builds a v2 PairCreated log for the pair (token0, token1)
func PairCreatedLog(factory, token0, token1 common.Address, block uint64) types.Log {
	return NewLog(factory, block,
		common.HexToHash(constants.TopicV2PairCreated),
		AddressTopic(token0),
		AddressTopic(token1))
}

// V3NewTokenLog builds a v3 token creation log for the pair (token0, token1)
func V3NewTokenLog(factory, token0, token1 common.Address, block uint64) types.Log {
	return NewLog(factory, block,
		common.HexToHash(constants.TopicV3NewToken),
		AddressTopic(token0),
		AddressTopic(token1))
}

// OwnershipTransferredLog builds an OwnershipTransferred log emitted by contract
func OwnershipTransferredLog(contract, previous, next common.Address, block uint64) types.Log {
	return NewLog(contract, block,
		common.HexToHash(constants.TopicOwnershipTransferred),
		AddressTopic(previous),
		AddressTopic(next))
}

// NewRecord returns an enriched record for address created at created
func NewRecord(address common.Address, name, symbol string, created time.Time) *token.Record {
	rec := token.NewRecord(address)
	rec.Name = name
	rec.Symbol = symbol
	rec.Decimals = 18
	rec.TotalSupply = DefaultSupply
	rec.IsActive = true
	rec.DateCreated = created
	return rec
}
