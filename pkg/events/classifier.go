package events

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"github.com/0xmhha/token-screener/internal/constants"
)

var (
	topicV2PairCreated        = common.HexToHash(constants.TopicV2PairCreated)
	topicV3NewToken           = common.HexToHash(constants.TopicV3NewToken)
	topicOwnershipTransferred = common.HexToHash(constants.TopicOwnershipTransferred)

	baseTokens = map[common.Address]struct{}{
		common.HexToAddress(constants.TokenWETH): {},
		common.HexToAddress(constants.TokenUSDC): {},
		common.HexToAddress(constants.TokenUSDT): {},
	}
)

// WatchedTopics returns the event signatures the screener subscribes to
func WatchedTopics() []common.Hash {
	return []common.Hash{topicV2PairCreated, topicV3NewToken, topicOwnershipTransferred}
}

// IsBaseToken reports whether addr is one of the quote tokens pairs are created against
func IsBaseToken(addr common.Address) bool {
	_, ok := baseTokens[addr]
	return ok
}

// Classifier turns raw logs into domain events
type Classifier struct {
	logger *zap.Logger
}

// NewClassifier creates a classifier
func NewClassifier(logger *zap.Logger) *Classifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Classifier{logger: logger}
}

// Classify dispatches on topics[0]. Unknown or malformed logs return false.
func (c *Classifier) Classify(log types.Log) (*DomainEvent, bool) {
	if len(log.Topics) == 0 {
		c.logger.Debug("log without topics ignored",
			zap.String("address", log.Address.Hex()),
			zap.String("tx", log.TxHash.Hex()))
		return nil, false
	}

	ev := &DomainEvent{
		Emitter:     log.Address,
		Topic1:      topicAddress(log.Topics, 1),
		Topic2:      topicAddress(log.Topics, 2),
		BlockNumber: log.BlockNumber,
		TxHash:      log.TxHash,
	}

	switch log.Topics[0] {
	case topicV2PairCreated:
		ev.Kind, ev.Version = KindPairCreated, V2
		ev.Contract = resolvePairToken(ev)
	case topicV3NewToken:
		ev.Kind, ev.Version = KindPairCreated, V3
		ev.Contract = resolvePairToken(ev)
	case topicOwnershipTransferred:
		ev.Kind = KindOwnershipTransferred
		ev.Contract = log.Address
		ev.Renounced = ev.Topic2 != nil && *ev.Topic2 == (common.Address{})
	default:
		c.logger.Debug("unrecognized event",
			zap.String("topic", log.Topics[0].Hex()),
			zap.String("address", log.Address.Hex()))
		return nil, false
	}

	return ev, true
}

// resolvePairToken picks the non-base leg of a pair; when neither leg is a
// base token the emitting contract is used.
func resolvePairToken(ev *DomainEvent) common.Address {
	if ev.Topic1 != nil && IsBaseToken(*ev.Topic1) && ev.Topic2 != nil {
		return *ev.Topic2
	}
	if ev.Topic2 != nil && IsBaseToken(*ev.Topic2) && ev.Topic1 != nil {
		return *ev.Topic1
	}
	return ev.Emitter
}

func topicAddress(topics []common.Hash, i int) *common.Address {
	if i >= len(topics) {
		return nil
	}
	addr := common.BytesToAddress(topics[i].Bytes()[12:])
	return &addr
}
