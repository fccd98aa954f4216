package relay

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/0xmhha/token-screener/internal/config"
	applog "github.com/0xmhha/token-screener/internal/logger"
	"github.com/0xmhha/token-screener/pkg/api/websocket"
)

// messageWriter is the subset of *kafka.Writer the relay uses
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaRelay writes envelopes to a Kafka topic keyed by contract address,
// so all updates of one contract land on the same partition in order.
type KafkaRelay struct {
	writer messageWriter
	topic  string
	closed atomic.Bool
	logger *zap.Logger
}

// NewKafkaRelay creates a synchronous writer for cfg.Topic
func NewKafkaRelay(cfg config.RelayKafkaConfig, logger *zap.Logger) (*KafkaRelay, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("%w: no Kafka brokers configured", ErrInvalidConfiguration)
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("%w: kafka topic is required", ErrInvalidConfiguration)
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		WriteTimeout: cfg.WriteTimeout,
		RequiredAcks: kafka.RequireOne,
		Transport:    &kafka.Transport{ClientID: cfg.ClientID},
	}

	return newKafkaRelay(writer, cfg, logger), nil
}

func newKafkaRelay(writer messageWriter, cfg config.RelayKafkaConfig, logger *zap.Logger) *KafkaRelay {
	if logger == nil {
		logger = zap.NewNop()
	}
	k := &KafkaRelay{
		writer: writer,
		topic:  cfg.Topic,
		logger: applog.WithComponent(logger, "kafka-relay").With(zap.String("topic", cfg.Topic)),
	}
	k.logger.Info("kafka relay configured", zap.Strings("brokers", cfg.Brokers))
	return k
}

// Name returns the sink name used in logs and metrics
func (k *KafkaRelay) Name() string {
	return "kafka"
}

// Publish writes one message with key as the partition key
func (k *KafkaRelay) Publish(ctx context.Context, key string, payload []byte) error {
	if k.closed.Load() {
		return ErrClosed
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(websocket.TypeTokenUpdate)},
			{Key: "timestamp", Value: []byte(time.Now().UTC().Format(time.RFC3339Nano))},
		},
	}
	if err := k.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to write to kafka: %w", err)
	}
	return nil
}

// Close flushes and closes the writer
func (k *KafkaRelay) Close() error {
	if k.closed.Swap(true) {
		return nil
	}
	if err := k.writer.Close(); err != nil {
		k.logger.Error("error closing kafka writer", zap.Error(err))
		return err
	}
	return nil
}
