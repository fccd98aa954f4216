package relay

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/0xmhha/token-screener/internal/config"
	applog "github.com/0xmhha/token-screener/internal/logger"
	"github.com/0xmhha/token-screener/pkg/api/websocket"
)

// redisPublisher is the subset of redis.UniversalClient the relay uses
type redisPublisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
	Close() error
}

// RedisRelay publishes envelopes to a Redis Pub/Sub channel
type RedisRelay struct {
	client  redisPublisher
	channel string
	cfg     config.RelayRedisConfig
	closed  atomic.Bool
	logger  *zap.Logger
}

// NewRedisRelay creates a standalone or cluster client from cfg.
// The connection is established lazily on the first publish.
func NewRedisRelay(cfg config.RelayRedisConfig, logger *zap.Logger) (*RedisRelay, error) {
	if len(cfg.Addresses) == 0 {
		return nil, fmt.Errorf("%w: no Redis addresses configured", ErrInvalidConfiguration)
	}

	var client redis.UniversalClient
	if cfg.ClusterMode {
		client = redis.NewClusterClient(&redis.ClusterOptions{
			Addrs:        cfg.Addresses,
			Password:     cfg.Password,
			WriteTimeout: cfg.WriteTimeout,
		})
	} else {
		client = redis.NewClient(&redis.Options{
			Addr:         cfg.Addresses[0],
			Password:     cfg.Password,
			DB:           cfg.DB,
			WriteTimeout: cfg.WriteTimeout,
		})
	}

	return newRedisRelay(client, cfg, logger), nil
}

func newRedisRelay(client redisPublisher, cfg config.RelayRedisConfig, logger *zap.Logger) *RedisRelay {
	if logger == nil {
		logger = zap.NewNop()
	}
	channel := cfg.ChannelPrefix + ":" + websocket.TypeTokenUpdate
	r := &RedisRelay{
		client:  client,
		channel: channel,
		cfg:     cfg,
		logger:  applog.WithComponent(logger, "redis-relay").With(zap.String("channel", channel)),
	}
	r.logger.Info("redis relay configured",
		zap.Strings("addresses", cfg.Addresses),
		zap.Bool("cluster", cfg.ClusterMode))
	return r
}

// Name returns the sink name used in logs and metrics
func (r *RedisRelay) Name() string {
	return "redis"
}

// Channel returns the Pub/Sub channel updates are published to
func (r *RedisRelay) Channel() string {
	return r.channel
}

// Publish sends payload to the update channel. Pub/Sub has no keys; key is
// only used for logging.
func (r *RedisRelay) Publish(ctx context.Context, key string, payload []byte) error {
	if r.closed.Load() {
		return ErrClosed
	}
	if r.cfg.WriteTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.WriteTimeout)
		defer cancel()
	}

	receivers, err := r.client.Publish(ctx, r.channel, payload).Result()
	if err != nil {
		return fmt.Errorf("failed to publish to redis: %w", err)
	}
	r.logger.Debug("update relayed",
		zap.String("contract", key),
		zap.Int64("receivers", receivers))
	return nil
}

// Close closes the Redis client
func (r *RedisRelay) Close() error {
	if r.closed.Swap(true) {
		return nil
	}
	return r.client.Close()
}
