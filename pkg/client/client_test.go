package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// ---- Mock JSON-RPC Server Infrastructure ----

type jrpcRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
	ID      json.RawMessage `json:"id"`
}

type jrpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *jrpcError      `json:"error,omitempty"`
	ID      json.RawMessage `json:"id"`
}

type jrpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type methodHandler func(params json.RawMessage) (json.RawMessage, *jrpcError)

func newMockRPCServer(t *testing.T, handlers map[string]methodHandler) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "bad request", 400)
			return
		}
		defer r.Body.Close()

		w.Header().Set("Content-Type", "application/json")

		trimmed := strings.TrimSpace(string(body))
		if strings.HasPrefix(trimmed, "[") {
			var reqs []jrpcRequest
			if err := json.Unmarshal(body, &reqs); err != nil {
				http.Error(w, "invalid batch", 400)
				return
			}
			var responses []jrpcResponse
			for _, req := range reqs {
				responses = append(responses, dispatchRequest(req, handlers))
			}
			json.NewEncoder(w).Encode(responses)
			return
		}

		var req jrpcRequest
		if err := json.Unmarshal(body, &req); err != nil {
			http.Error(w, "invalid request", 400)
			return
		}
		json.NewEncoder(w).Encode(dispatchRequest(req, handlers))
	}))
	t.Cleanup(server.Close)
	return server
}

func dispatchRequest(req jrpcRequest, handlers map[string]methodHandler) jrpcResponse {
	resp := jrpcResponse{JSONRPC: "2.0", ID: req.ID}
	handler, ok := handlers[req.Method]
	if !ok {
		resp.Error = &jrpcError{Code: -32601, Message: "method not found: " + req.Method}
		return resp
	}
	result, rpcErr := handler(req.Params)
	if rpcErr != nil {
		resp.Error = rpcErr
	} else {
		resp.Result = result
	}
	return resp
}

func newTestClient(t *testing.T, handlers map[string]methodHandler) *Client {
	t.Helper()
	server := newMockRPCServer(t, handlers)
	rpcClient, err := rpc.DialContext(context.Background(), server.URL)
	require.NoError(t, err)
	t.Cleanup(rpcClient.Close)

	return &Client{
		ethClient: ethclient.NewClient(rpcClient),
		endpoint:  server.URL,
		logger:    zap.NewNop(),
	}
}

// ---- JSON Response Helpers ----

const testTopic = "0x8be0079c531659141344cd1fd0a4f28419497f9722a3daafe3b4186f6b6457e0"

func chainIDHandler() methodHandler {
	return func(_ json.RawMessage) (json.RawMessage, *jrpcError) {
		return json.RawMessage(`"0x1"`), nil
	}
}

func rpcErrorHandler(msg string) methodHandler {
	return func(_ json.RawMessage) (json.RawMessage, *jrpcError) {
		return nil, &jrpcError{Code: -32000, Message: msg}
	}
}

func resultHandler(result string) methodHandler {
	return func(_ json.RawMessage) (json.RawMessage, *jrpcError) {
		return json.RawMessage(result), nil
	}
}

func makeLogJSON(address string, blockNumber uint64) string {
	return fmt.Sprintf(`{
		"address":"%s",
		"topics":["%s"],
		"data":"0x",
		"blockNumber":"0x%x",
		"transactionHash":"0x00000000000000000000000000000000000000000000000000000000000000aa",
		"transactionIndex":"0x0",
		"blockHash":"0xb903239f8543d04b5dc1ba6579132b143087c68db1b2168786408fcbce568238",
		"logIndex":"0x0",
		"removed":false
	}`, address, testTopic, blockNumber)
}

// ---- Tests: NewClient ----

func TestNewClient(t *testing.T) {
	t.Run("nil config", func(t *testing.T) {
		client, err := NewClient(nil)
		assert.Error(t, err)
		assert.Nil(t, client)
		assert.Contains(t, err.Error(), "config cannot be nil")
	})

	t.Run("empty endpoint", func(t *testing.T) {
		client, err := NewClient(&Config{Endpoint: ""})
		assert.Error(t, err)
		assert.Nil(t, client)
		assert.Contains(t, err.Error(), "endpoint cannot be empty")
	})

	t.Run("invalid endpoint", func(t *testing.T) {
		client, err := NewClient(&Config{
			Endpoint: "invalid://endpoint",
			Timeout:  5 * time.Second,
		})
		assert.Error(t, err)
		assert.Nil(t, client)
	})

	t.Run("success", func(t *testing.T) {
		server := newMockRPCServer(t, map[string]methodHandler{
			"eth_chainId": chainIDHandler(),
		})
		client, err := NewClient(&Config{
			Endpoint: server.URL,
			Timeout:  5 * time.Second,
			Logger:   zap.NewNop(),
		})
		require.NoError(t, err)
		require.NotNil(t, client)
		defer client.Close()

		assert.Equal(t, server.URL, client.Endpoint())
	})

	t.Run("ping failure", func(t *testing.T) {
		server := newMockRPCServer(t, map[string]methodHandler{
			"eth_chainId": rpcErrorHandler("connection refused"),
		})
		client, err := NewClient(&Config{
			Endpoint: server.URL,
			Timeout:  5 * time.Second,
		})
		assert.Error(t, err)
		assert.Nil(t, client)
		assert.Contains(t, err.Error(), "failed to ping")
	})
}

func TestClient_Close(t *testing.T) {
	client := newTestClient(t, map[string]methodHandler{
		"eth_chainId": chainIDHandler(),
	})
	client.Close()

	c := &Client{}
	c.Close() // nil ethClient must not panic
}

func TestClient_Ping(t *testing.T) {
	ok := newTestClient(t, map[string]methodHandler{"eth_chainId": chainIDHandler()})
	assert.NoError(t, ok.Ping(context.Background()))

	failing := newTestClient(t, map[string]methodHandler{"eth_chainId": rpcErrorHandler("node unavailable")})
	assert.Error(t, failing.Ping(context.Background()))
}

func TestClient_GetLatestBlockNumber(t *testing.T) {
	client := newTestClient(t, map[string]methodHandler{
		"eth_blockNumber": resultHandler(`"0x2a"`),
	})
	n, err := client.GetLatestBlockNumber(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(42), n)
}

// ---- Tests: Contract reads ----

func TestClient_CodeAt(t *testing.T) {
	var gotParams []interface{}
	client := newTestClient(t, map[string]methodHandler{
		"eth_getCode": func(params json.RawMessage) (json.RawMessage, *jrpcError) {
			_ = json.Unmarshal(params, &gotParams)
			return json.RawMessage(`"0x6080604052"`), nil
		},
	})

	addr := common.HexToAddress("0x1111111111111111111111111111111111111111")
	code, err := client.CodeAt(context.Background(), addr, nil)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x60, 0x80, 0x60, 0x40, 0x52}, code)
	require.Len(t, gotParams, 2)
	assert.Equal(t, "latest", gotParams[1])
}

func TestClient_CodeAtError(t *testing.T) {
	client := newTestClient(t, map[string]methodHandler{
		"eth_getCode": rpcErrorHandler("header not found"),
	})
	_, err := client.CodeAt(context.Background(), common.Address{}, big.NewInt(1))
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to get code")
}

func TestClient_CallContract(t *testing.T) {
	word := "0x" + strings.Repeat("0", 62) + "12"
	client := newTestClient(t, map[string]methodHandler{
		"eth_call": resultHandler(`"` + word + `"`),
	})

	to := common.HexToAddress("0x1111111111111111111111111111111111111111")
	out, err := client.CallContract(context.Background(), ethereum.CallMsg{To: &to, Data: []byte{0x31, 0x3c, 0xe5, 0x67}}, nil)
	require.NoError(t, err)
	require.Len(t, out, 32)
	assert.Equal(t, byte(0x12), out[31])

	failing := newTestClient(t, map[string]methodHandler{"eth_call": rpcErrorHandler("execution reverted")})
	_, err = failing.CallContract(context.Background(), ethereum.CallMsg{To: &to}, nil)
	assert.Error(t, err)
}

// ---- Tests: Logs ----

func TestClient_FilterLogs(t *testing.T) {
	var gotFilter []map[string]interface{}
	client := newTestClient(t, map[string]methodHandler{
		"eth_getLogs": func(params json.RawMessage) (json.RawMessage, *jrpcError) {
			_ = json.Unmarshal(params, &gotFilter)
			return json.RawMessage("[" + makeLogJSON("0x00000000000000000000000000000000000000ee", 7) + "]"), nil
		},
	})

	q := ethereum.FilterQuery{
		FromBlock: big.NewInt(7),
		ToBlock:   big.NewInt(7),
		Topics:    [][]common.Hash{{common.HexToHash(testTopic)}},
	}
	logs, err := client.FilterLogs(context.Background(), q)
	require.NoError(t, err)
	require.Len(t, logs, 1)

	assert.Equal(t, uint64(7), logs[0].BlockNumber)
	assert.Equal(t, common.HexToAddress("0xee"), logs[0].Address)
	assert.Equal(t, []common.Hash{common.HexToHash(testTopic)}, logs[0].Topics)

	require.Len(t, gotFilter, 1)
	assert.Equal(t, "0x7", gotFilter[0]["fromBlock"])
	assert.Equal(t, "0x7", gotFilter[0]["toBlock"])
}

func TestClient_FilterLogsError(t *testing.T) {
	client := newTestClient(t, map[string]methodHandler{
		"eth_getLogs": rpcErrorHandler("query returned more than 10000 results"),
	})
	_, err := client.FilterLogs(context.Background(), ethereum.FilterQuery{})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to filter logs")
}

func TestClient_SubscriptionsNeedStreamingTransport(t *testing.T) {
	client := newTestClient(t, map[string]methodHandler{})

	_, err := client.SubscribeFilterLogs(context.Background(), ethereum.FilterQuery{}, make(chan types.Log))
	assert.Error(t, err)

	_, err = client.SubscribeNewHead(context.Background(), make(chan *types.Header))
	assert.Error(t, err)
}
