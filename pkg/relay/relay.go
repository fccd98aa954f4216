// Package relay mirrors token update envelopes to external brokers so other
// services can follow the screener without a WebSocket connection.
package relay

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/0xmhha/token-screener/internal/config"
	"github.com/0xmhha/token-screener/internal/constants"
	"github.com/0xmhha/token-screener/pkg/api/websocket"
)

var (
	// ErrInvalidConfiguration is returned when a relay cannot be built from config
	ErrInvalidConfiguration = errors.New("invalid relay configuration")

	// ErrClosed is returned when publishing to a closed relay
	ErrClosed = errors.New("relay closed")
)

// Relay is a websocket.Sink that owns a broker connection
type Relay interface {
	websocket.Sink
	Close() error
}

// New builds the relay selected by cfg.Type. It returns nil for "none".
func New(cfg config.RelayConfig, logger *zap.Logger) (Relay, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	switch cfg.Type {
	case "", constants.RelayTypeNone:
		return nil, nil
	case constants.RelayTypeRedis:
		r, err := NewRedisRelay(cfg.Redis, logger)
		if err != nil {
			return nil, err
		}
		return r, nil
	case constants.RelayTypeKafka:
		k, err := NewKafkaRelay(cfg.Kafka, logger)
		if err != nil {
			return nil, err
		}
		return k, nil
	default:
		return nil, fmt.Errorf("%w: unknown relay type %q", ErrInvalidConfiguration, cfg.Type)
	}
}
