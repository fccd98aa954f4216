package websocket

import (
	"context"
	"encoding/json"
	"strings"

	"go.uber.org/zap"

	"github.com/0xmhha/token-screener/internal/constants"
	applog "github.com/0xmhha/token-screener/internal/logger"
	"github.com/0xmhha/token-screener/pkg/metrics"
	"github.com/0xmhha/token-screener/pkg/token"
)

// Sink mirrors token update envelopes outside the process
type Sink interface {
	Name() string
	Publish(ctx context.Context, key string, payload []byte) error
}

type relayItem struct {
	key     string
	payload []byte
}

// Broadcaster pushes token updates to connected clients and relay sinks.
// All sends are best-effort; Publish never blocks on a client or sink.
type Broadcaster struct {
	registry *Registry
	sinks    []Sink
	relayQ   chan relayItem
	logger   *zap.Logger
	metrics  *metrics.Metrics
}

// NewBroadcaster creates a broadcaster over registry.
// Sinks are only fed while Run is active.
func NewBroadcaster(registry *Registry, logger *zap.Logger, m *metrics.Metrics, sinks ...Sink) *Broadcaster {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Broadcaster{
		registry: registry,
		sinks:    sinks,
		relayQ:   make(chan relayItem, constants.DefaultBroadcastBuffer),
		logger:   applog.WithComponent(logger, "broadcaster"),
		metrics:  m,
	}
}

// Publish sends a tokenupdate envelope for rec to every general client
func (b *Broadcaster) Publish(rec *token.Record) {
	if rec == nil {
		return
	}
	data, err := json.Marshal(Envelope{Type: TypeTokenUpdate, Data: rec})
	if err != nil {
		b.logger.Error("failed to marshal token update",
			zap.String("contract", rec.ContractAddress),
			zap.Error(err))
		return
	}

	b.registry.Broadcast(ChannelGeneral, data)
	b.relay(strings.ToLower(rec.ContractAddress), data)
}

// PublishAdmin sends an envelope of msgType to every admin client
func (b *Broadcaster) PublishAdmin(msgType string, payload interface{}) {
	data, err := json.Marshal(Envelope{Type: msgType, Data: payload})
	if err != nil {
		b.logger.Error("failed to marshal admin message",
			zap.String("type", msgType),
			zap.Error(err))
		return
	}
	b.registry.Broadcast(ChannelAdmin, data)
}

func (b *Broadcaster) relay(key string, data []byte) {
	if len(b.sinks) == 0 {
		return
	}
	select {
	case b.relayQ <- relayItem{key: key, payload: data}:
	default:
		b.logger.Warn("relay queue full, dropping update", zap.String("contract", key))
		b.metrics.RecordRelayError("queue")
	}
}

// Run drains the relay queue into the sinks until ctx is done
func (b *Broadcaster) Run(ctx context.Context) error {
	if len(b.sinks) == 0 {
		<-ctx.Done()
		return nil
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case item := <-b.relayQ:
			for _, sink := range b.sinks {
				if err := sink.Publish(ctx, item.key, item.payload); err != nil {
					b.logger.Warn("relay publish failed",
						zap.String("sink", sink.Name()),
						zap.String("contract", item.key),
						zap.Error(err))
					b.metrics.RecordRelayError(sink.Name())
				}
			}
		}
	}
}
