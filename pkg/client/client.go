package client

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"go.uber.org/zap"

	applog "github.com/0xmhha/token-screener/internal/logger"
)

// Client wraps the Ethereum JSON-RPC client with the calls the screener makes
type Client struct {
	ethClient *ethclient.Client
	endpoint  string
	logger    *zap.Logger
}

// Config holds client configuration
type Config struct {
	Endpoint string
	Timeout  time.Duration
	Logger   *zap.Logger
}

// NewClient dials the endpoint and verifies it answers eth_chainId.
// Log and header subscriptions need a ws:// or ipc endpoint.
func NewClient(cfg *Config) (*Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("endpoint cannot be empty")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = applog.WithComponent(logger, "rpc-client")

	ctx := context.Background()
	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	rpcClient, err := rpc.DialContext(ctx, cfg.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RPC endpoint: %w", err)
	}

	client := &Client{
		ethClient: ethclient.NewClient(rpcClient),
		endpoint:  cfg.Endpoint,
		logger:    logger,
	}

	chainID, err := client.GetChainID(ctx)
	if err != nil {
		rpcClient.Close()
		return nil, fmt.Errorf("failed to ping RPC endpoint: %w", err)
	}

	logger.Info("connected to Ethereum RPC",
		zap.String("endpoint", cfg.Endpoint),
		zap.String("chain_id", chainID.String()))

	return client, nil
}

// Ping verifies the connection to the RPC endpoint
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.ethClient.ChainID(ctx)
	return err
}

// Close closes the client connection
func (c *Client) Close() {
	if c.ethClient != nil {
		c.ethClient.Close()
	}
}

// Endpoint returns the URL the client was dialed with
func (c *Client) Endpoint() string {
	return c.endpoint
}

// GetChainID returns the chain ID
func (c *Client) GetChainID(ctx context.Context) (*big.Int, error) {
	chainID, err := c.ethClient.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get chain ID: %w", err)
	}
	return chainID, nil
}

// GetLatestBlockNumber returns the latest block number
func (c *Client) GetLatestBlockNumber(ctx context.Context) (uint64, error) {
	blockNumber, err := c.ethClient.BlockNumber(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to get latest block number: %w", err)
	}
	return blockNumber, nil
}

// SubscribeFilterLogs streams logs matching q into ch
func (c *Client) SubscribeFilterLogs(ctx context.Context, q ethereum.FilterQuery, ch chan<- types.Log) (ethereum.Subscription, error) {
	sub, err := c.ethClient.SubscribeFilterLogs(ctx, q, ch)
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to logs: %w", err)
	}
	return sub, nil
}

// FilterLogs fetches the logs matching q
func (c *Client) FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	logs, err := c.ethClient.FilterLogs(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to filter logs: %w", err)
	}
	return logs, nil
}

// SubscribeNewHead subscribes to new block headers
func (c *Client) SubscribeNewHead(ctx context.Context, ch chan<- *types.Header) (ethereum.Subscription, error) {
	sub, err := c.ethClient.SubscribeNewHead(ctx, ch)
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to new heads: %w", err)
	}
	return sub, nil
}

// CodeAt returns the deployed bytecode of a contract.
// If blockNumber is nil, the latest state is used.
func (c *Client) CodeAt(ctx context.Context, contract common.Address, blockNumber *big.Int) ([]byte, error) {
	code, err := c.ethClient.CodeAt(ctx, contract, blockNumber)
	if err != nil {
		return nil, fmt.Errorf("failed to get code for %s: %w", contract.Hex(), err)
	}
	return code, nil
}

// CallContract executes a read-only message call
func (c *Client) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	out, err := c.ethClient.CallContract(ctx, msg, blockNumber)
	if err != nil {
		return nil, fmt.Errorf("eth_call failed: %w", err)
	}
	return out, nil
}
