package token

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

// MetadataFetcher reads ERC20 metadata through the resolved interface descriptor
type MetadataFetcher struct {
	client   EthClient
	registry *Registry
	logger   *zap.Logger
}

// NewMetadataFetcher creates a new metadata fetcher
func NewMetadataFetcher(client EthClient, registry *Registry, logger *zap.Logger) *MetadataFetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if registry == nil {
		registry = NewRegistry()
	}
	return &MetadataFetcher{
		client:   client,
		registry: registry,
		logger:   logger,
	}
}

// FetchERC20Metadata calls name, symbol, decimals and totalSupply
func (f *MetadataFetcher) FetchERC20Metadata(ctx context.Context, address common.Address) *MetadataResult {
	desc := f.registry.Resolve(address)
	result := &MetadataResult{
		Descriptor: desc.Kind,
		Errors:     make(map[string]error),
	}

	name, err := f.callString(ctx, desc, address, FieldName)
	if err != nil {
		result.Errors[FieldName] = err
		f.logger.Debug("failed to fetch token name",
			zap.String("address", address.Hex()),
			zap.Error(err))
	} else {
		result.Name = name
	}

	symbol, err := f.callString(ctx, desc, address, FieldSymbol)
	if err != nil {
		result.Errors[FieldSymbol] = err
		f.logger.Debug("failed to fetch token symbol",
			zap.String("address", address.Hex()),
			zap.Error(err))
	} else {
		result.Symbol = symbol
	}

	decimals, err := f.callUint8(ctx, desc, address, FieldDecimals)
	if err != nil {
		result.Errors[FieldDecimals] = err
		f.logger.Debug("failed to fetch token decimals",
			zap.String("address", address.Hex()),
			zap.Error(err))
	} else {
		result.Decimals = decimals
	}

	totalSupply, err := f.callUint256(ctx, desc, address, FieldTotalSupply)
	if err != nil {
		result.Errors[FieldTotalSupply] = err
		f.logger.Debug("failed to fetch token totalSupply",
			zap.String("address", address.Hex()),
			zap.Error(err))
	} else {
		result.TotalSupply = totalSupply
	}

	return result
}

// methodDescriptor falls back to the generic interface when a registered
// contract interface does not declare the method.
func (f *MetadataFetcher) methodDescriptor(desc *Descriptor, method string) (*Descriptor, error) {
	if desc.HasMethod(method) {
		return desc, nil
	}
	if generic := f.registry.Generic(); generic.HasMethod(method) {
		return generic, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrMethodNotFound, method)
}

func (f *MetadataFetcher) call(ctx context.Context, desc *Descriptor, address common.Address, method string) (*Descriptor, []byte, error) {
	desc, err := f.methodDescriptor(desc, method)
	if err != nil {
		return nil, nil, err
	}

	input, err := desc.ABI.Pack(method)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to pack %s: %w", method, err)
	}

	output, err := f.client.CallContract(ctx, ethereum.CallMsg{
		To:   &address,
		Data: input,
	}, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("contract call failed: %w", err)
	}
	if len(output) == 0 {
		return nil, nil, fmt.Errorf("empty result for %s", method)
	}
	return desc, output, nil
}

func (f *MetadataFetcher) callString(ctx context.Context, desc *Descriptor, address common.Address, method string) (string, error) {
	desc, output, err := f.call(ctx, desc, address, method)
	if err != nil {
		return "", err
	}

	values, err := desc.ABI.Unpack(method, output)
	if err == nil && len(values) == 1 {
		if s, ok := values[0].(string); ok {
			return s, nil
		}
	}
	// Some older tokens return bytes32 instead of string.
	return decodeString(output)
}

func (f *MetadataFetcher) callUint8(ctx context.Context, desc *Descriptor, address common.Address, method string) (uint8, error) {
	desc, output, err := f.call(ctx, desc, address, method)
	if err != nil {
		return 0, err
	}

	values, err := desc.ABI.Unpack(method, output)
	if err != nil {
		return 0, fmt.Errorf("failed to unpack %s: %w", method, err)
	}
	if len(values) != 1 {
		return 0, fmt.Errorf("unexpected %s result count: %d", method, len(values))
	}

	switch v := values[0].(type) {
	case uint8:
		return v, nil
	case *big.Int:
		if !v.IsUint64() || v.Uint64() > 255 {
			return 0, fmt.Errorf("%s out of range: %s", method, v)
		}
		return uint8(v.Uint64()), nil
	default:
		return 0, fmt.Errorf("unexpected %s result type %T", method, values[0])
	}
}

func (f *MetadataFetcher) callUint256(ctx context.Context, desc *Descriptor, address common.Address, method string) (*big.Int, error) {
	desc, output, err := f.call(ctx, desc, address, method)
	if err != nil {
		return nil, err
	}

	values, err := desc.ABI.Unpack(method, output)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack %s: %w", method, err)
	}
	if len(values) != 1 {
		return nil, fmt.Errorf("unexpected %s result count: %d", method, len(values))
	}
	v, ok := values[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected %s result type %T", method, values[0])
	}
	return v, nil
}

// decodeString decodes a dynamic ABI string, or a raw bytes32 value padded with zeros
func decodeString(data []byte) (string, error) {
	if len(data) < 64 {
		return strings.TrimRight(string(data), "\x00"), nil
	}

	offset := new(big.Int).SetBytes(data[0:32])
	if !offset.IsUint64() || offset.Uint64()+32 > uint64(len(data)) {
		// Not a dynamic encoding; treat the first word as bytes32.
		return strings.TrimRight(string(data[:32]), "\x00"), nil
	}

	start := offset.Uint64()
	length := new(big.Int).SetBytes(data[start : start+32])
	if !length.IsUint64() {
		return "", fmt.Errorf("invalid string length")
	}
	begin := start + 32
	end := begin + length.Uint64()
	if end > uint64(len(data)) {
		end = uint64(len(data))
	}
	return string(data[begin:end]), nil
}
