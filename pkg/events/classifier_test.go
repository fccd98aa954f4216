package events

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/0xmhha/token-screener/internal/constants"
	"github.com/0xmhha/token-screener/internal/testutil"
)

var (
	weth    = common.HexToAddress(constants.TokenWETH)
	usdc    = common.HexToAddress(constants.TokenUSDC)
	tokenA  = common.HexToAddress("0x00000000000000000000000000000000000000AA")
	tokenB  = common.HexToAddress("0x00000000000000000000000000000000000000BB")
	emitter = common.HexToAddress("0x00000000000000000000000000000000000000EE")
)

var addrTopic = testutil.AddressTopic

func newLog(topics ...common.Hash) types.Log {
	return testutil.NewLog(emitter, 100, topics...)
}

func TestClassify_PairCreated(t *testing.T) {
	tests := []struct {
		name         string
		topic0       string
		legs         []common.Address
		wantVersion  Version
		wantContract common.Address
	}{
		{"v2 base token first", constants.TopicV2PairCreated, []common.Address{weth, tokenA}, V2, tokenA},
		{"v2 base token second", constants.TopicV2PairCreated, []common.Address{tokenA, usdc}, V2, tokenA},
		{"v3 base token first", constants.TopicV3NewToken, []common.Address{weth, tokenB}, V3, tokenB},
		{"no base token falls back to emitter", constants.TopicV2PairCreated, []common.Address{tokenA, tokenB}, V2, emitter},
		{"missing legs falls back to emitter", constants.TopicV3NewToken, nil, V3, emitter},
		{"single base leg falls back to emitter", constants.TopicV2PairCreated, []common.Address{weth}, V2, emitter},
	}

	c := NewClassifier(nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			topics := []common.Hash{common.HexToHash(tt.topic0)}
			for _, leg := range tt.legs {
				topics = append(topics, addrTopic(leg))
			}

			ev, ok := c.Classify(newLog(topics...))
			require.True(t, ok)
			assert.Equal(t, KindPairCreated, ev.Kind)
			assert.Equal(t, tt.wantVersion, ev.Version)
			assert.Equal(t, tt.wantContract, ev.Contract)
			assert.Equal(t, uint64(100), ev.BlockNumber)

			rec := ev.ToRecord()
			assert.Equal(t, tt.wantVersion == V3, rec.IsV3)
			assert.Nil(t, rec.Owner)
		})
	}
}

func TestClassify_OwnershipRenounced(t *testing.T) {
	c := NewClassifier(nil)
	ev, ok := c.Classify(newLog(
		common.HexToHash(constants.TopicOwnershipTransferred),
		addrTopic(tokenA),
		addrTopic(common.Address{}),
	))
	require.True(t, ok)
	assert.Equal(t, KindOwnershipTransferred, ev.Kind)
	assert.Equal(t, emitter, ev.Contract)
	assert.True(t, ev.Renounced)

	rec := ev.ToRecord()
	assert.Equal(t, "0x00000000000000000000000000000000000000ee", rec.ContractAddress)
	assert.True(t, rec.IsRenounced)
	require.NotNil(t, rec.Owner)
	assert.Equal(t, constants.ZeroAddress, *rec.Owner)
}

func TestClassify_OwnershipTransferred(t *testing.T) {
	c := NewClassifier(nil)
	ev, ok := c.Classify(newLog(
		common.HexToHash(constants.TopicOwnershipTransferred),
		addrTopic(common.Address{}),
		addrTopic(tokenB),
	))
	require.True(t, ok)
	assert.False(t, ev.Renounced)

	rec := ev.ToRecord()
	assert.False(t, rec.IsRenounced)
	require.NotNil(t, rec.Owner)
	assert.Equal(t, "0x00000000000000000000000000000000000000bb", *rec.Owner)
}

func TestClassify_OwnershipMissingTopics(t *testing.T) {
	c := NewClassifier(nil)
	ev, ok := c.Classify(newLog(common.HexToHash(constants.TopicOwnershipTransferred)))
	require.True(t, ok)
	assert.Nil(t, ev.Topic2)
	assert.False(t, ev.Renounced)
	assert.Nil(t, ev.ToRecord().Owner)
}

func TestClassify_Unrecognized(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	c := NewClassifier(zap.New(core))

	ev, ok := c.Classify(newLog(common.HexToHash("0xdeadbeef")))
	assert.False(t, ok)
	assert.Nil(t, ev)

	ev, ok = c.Classify(types.Log{Address: emitter})
	assert.False(t, ok)
	assert.Nil(t, ev)

	assert.Equal(t, 1, logs.FilterMessage("unrecognized event").Len())
	assert.Equal(t, 1, logs.FilterMessage("log without topics ignored").Len())
}

func TestWatchedTopics(t *testing.T) {
	topics := WatchedTopics()
	assert.Len(t, topics, 3)
	assert.Contains(t, topics, common.HexToHash(constants.TopicOwnershipTransferred))
	assert.True(t, IsBaseToken(weth))
	assert.False(t, IsBaseToken(tokenA))
}
