package testutil

import (
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"

	"github.com/0xmhha/token-screener/internal/constants"
)

func TestLogFixtures(t *testing.T) {
	factory := common.HexToAddress("0xff")
	weth := common.HexToAddress(constants.TokenWETH)
	tok := common.HexToAddress("0xaa")

	l := PairCreatedLog(factory, weth, tok, 7)
	assert.Equal(t, factory, l.Address)
	assert.Equal(t, uint64(7), l.BlockNumber)
	assert.Len(t, l.Topics, 3)
	assert.Equal(t, common.HexToHash(constants.TopicV2PairCreated), l.Topics[0])
	assert.Equal(t, tok, common.BytesToAddress(l.Topics[2].Bytes()))

	l = V3NewTokenLog(factory, tok, weth, 8)
	assert.Equal(t, common.HexToHash(constants.TopicV3NewToken), l.Topics[0])

	l = OwnershipTransferredLog(tok, weth, common.Address{}, 9)
	assert.Equal(t, tok, l.Address)
	assert.Equal(t, common.Hash{}, l.Topics[2])
}

func TestNewRecord(t *testing.T) {
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rec := NewRecord(common.HexToAddress("0xAA"), "Alpha", "ALP", created)

	assert.Equal(t, "0x00000000000000000000000000000000000000aa", rec.ContractAddress)
	assert.True(t, rec.HasSupply())
	assert.Equal(t, created, rec.DateCreated)
	assert.NotNil(t, NewTestLogger(t))
}
