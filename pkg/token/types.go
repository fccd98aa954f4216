package token

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
)

// EthClient is the slice of the chain RPC the token package needs.
// *ethclient.Client and *client.Client both satisfy it.
type EthClient interface {
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	CodeAt(ctx context.Context, contract common.Address, blockNumber *big.Int) ([]byte, error)
}

// Metadata field names used as keys of MetadataResult.Errors
const (
	FieldName        = "name"
	FieldSymbol      = "symbol"
	FieldDecimals    = "decimals"
	FieldTotalSupply = "totalSupply"
)

// MetadataResult holds what the ERC20 read calls returned.
// Failed calls are recorded in Errors and leave the field zero.
type MetadataResult struct {
	Name        string
	Symbol      string
	Decimals    uint8
	TotalSupply *big.Int
	Descriptor  DescriptorKind
	Errors      map[string]error
}

// HasSupply reports whether totalSupply returned a positive value
func (m *MetadataResult) HasSupply() bool {
	return m.TotalSupply != nil && m.TotalSupply.Sign() > 0
}
