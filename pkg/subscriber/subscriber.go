package subscriber

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/0xmhha/token-screener/internal/constants"
	"github.com/0xmhha/token-screener/internal/logger"
	"github.com/0xmhha/token-screener/pkg/metrics"
)

// ErrErrorLimitExceeded is returned by Run after too many consecutive
// subscription failures. It wraps the last transport error.
var ErrErrorLimitExceeded = errors.New("subscription error limit exceeded")

// ErrInvalidMode is returned for an unknown subscription mode
var ErrInvalidMode = errors.New("invalid subscriber mode")

// Chain is the RPC surface the subscriber needs
type Chain interface {
	SubscribeFilterLogs(ctx context.Context, q ethereum.FilterQuery, ch chan<- types.Log) (ethereum.Subscription, error)
	SubscribeNewHead(ctx context.Context, ch chan<- *types.Header) (ethereum.Subscription, error)
	FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error)
}

// Handler processes a single log. It runs on a worker goroutine.
type Handler func(ctx context.Context, log types.Log)

// Config holds subscriber configuration
type Config struct {
	// Topics are the event signatures to watch (topic 0)
	Topics []common.Hash

	// Mode is constants.SubscriberModeLogs or constants.SubscriberModeHeaders
	Mode string

	// ErrorLimit is the number of consecutive failures that stops Run
	ErrorLimit int

	// RetryDelay is the wait before re-subscribing after a failure
	RetryDelay time.Duration

	// Workers bounds concurrent handlers
	Workers int

	// QueueSize is the buffer between the receive loop and the workers
	QueueSize int

	// HandlerTimeout bounds one handler call; zero means no bound
	HandlerTimeout time.Duration

	Logger  *zap.Logger
	Metrics *metrics.Metrics
}

func (c *Config) setDefaults() {
	if c.Mode == "" {
		c.Mode = constants.SubscriberModeLogs
	}
	if c.ErrorLimit <= 0 {
		c.ErrorLimit = constants.DefaultSubscriberErrorLimit
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = constants.DefaultSubscriberRetryDelay
	}
	if c.Workers <= 0 {
		c.Workers = constants.DefaultHandlerWorkers
	}
	if c.QueueSize <= 0 {
		c.QueueSize = constants.DefaultHandlerQueueSize
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
}

// State is a point-in-time view of the subscription
type State struct {
	Topics            []common.Hash
	ConsecutiveErrors int
	Connected         bool
}

// Subscriber streams matching logs from the chain into a Handler
type Subscriber struct {
	chain   Chain
	handler Handler
	cfg     Config
	logger  *zap.Logger
	metrics *metrics.Metrics

	mu    sync.RWMutex
	state State
}

// New creates a subscriber
func New(chain Chain, handler Handler, cfg Config) (*Subscriber, error) {
	cfg.setDefaults()

	switch cfg.Mode {
	case constants.SubscriberModeLogs, constants.SubscriberModeHeaders:
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidMode, cfg.Mode)
	}
	if len(cfg.Topics) == 0 {
		return nil, fmt.Errorf("at least one topic is required")
	}
	if chain == nil || handler == nil {
		return nil, fmt.Errorf("chain and handler are required")
	}

	topics := append([]common.Hash(nil), cfg.Topics...)
	return &Subscriber{
		chain:   chain,
		handler: handler,
		cfg:     cfg,
		logger:  logger.WithComponent(cfg.Logger, "subscriber").With(zap.String("mode", cfg.Mode)),
		metrics: cfg.Metrics,
		state:   State{Topics: topics},
	}, nil
}

// Snapshot returns a copy of the current state
func (s *Subscriber) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := s.state
	st.Topics = append([]common.Hash(nil), s.state.Topics...)
	return st
}

// Run subscribes and dispatches logs until ctx is cancelled, in which case
// it returns nil, or until the error limit is reached. Handlers that are
// already running finish with a context detached from ctx.
func (s *Subscriber) Run(ctx context.Context) error {
	queue := make(chan types.Log, s.cfg.QueueSize)
	handlerCtx := context.WithoutCancel(ctx)

	var workers errgroup.Group
	workers.SetLimit(s.cfg.Workers)

	dispatched := make(chan struct{})
	go func() {
		defer close(dispatched)
		for log := range queue {
			if ctx.Err() != nil {
				continue
			}
			// Go blocks while every worker is busy
			workers.Go(func() error {
				s.handle(handlerCtx, log)
				return nil
			})
		}
	}()

	s.logger.Info("subscriber started",
		zap.Int("topics", len(s.state.Topics)),
		zap.Int("workers", s.cfg.Workers))

	err := s.loop(ctx, queue)

	close(queue)
	<-dispatched
	_ = workers.Wait()
	s.setConnected(false)

	if err != nil {
		s.logger.Error("subscriber stopped", zap.Error(err))
		return err
	}
	s.logger.Info("subscriber stopped")
	return nil
}

func (s *Subscriber) loop(ctx context.Context, queue chan<- types.Log) error {
	for {
		var err error
		if s.cfg.Mode == constants.SubscriberModeHeaders {
			err = s.streamHeaders(ctx, queue)
		} else {
			err = s.streamLogs(ctx, queue)
		}
		s.setConnected(false)

		if ctx.Err() != nil {
			return nil
		}
		if err == nil {
			err = errors.New("subscription closed")
		}

		n := s.recordError()
		s.metrics.RecordSubscriberError()
		s.logger.Warn("subscription failed",
			zap.Error(err),
			zap.Int("consecutive_errors", n),
			zap.Int("error_limit", s.cfg.ErrorLimit))

		if n >= s.cfg.ErrorLimit {
			return fmt.Errorf("%w after %d attempts: %w", ErrErrorLimitExceeded, n, err)
		}

		timer := time.NewTimer(s.cfg.RetryDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}
		s.logger.Info("resubscribing", zap.Int("attempt", n+1))
	}
}

func (s *Subscriber) filterQuery() ethereum.FilterQuery {
	return ethereum.FilterQuery{Topics: [][]common.Hash{s.state.Topics}}
}

func (s *Subscriber) streamLogs(ctx context.Context, queue chan<- types.Log) error {
	logs := make(chan types.Log, constants.DefaultLogChannelSize)
	sub, err := s.chain.SubscribeFilterLogs(ctx, s.filterQuery(), logs)
	if err != nil {
		return fmt.Errorf("failed to subscribe to logs: %w", err)
	}
	defer sub.Unsubscribe()
	s.setConnected(true)

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-sub.Err():
			return err
		case log := <-logs:
			s.resetErrors()
			if !s.enqueue(ctx, queue, log) {
				return nil
			}
		}
	}
}

func (s *Subscriber) streamHeaders(ctx context.Context, queue chan<- types.Log) error {
	headers := make(chan *types.Header, constants.DefaultLogChannelSize)
	sub, err := s.chain.SubscribeNewHead(ctx, headers)
	if err != nil {
		return fmt.Errorf("failed to subscribe to new heads: %w", err)
	}
	defer sub.Unsubscribe()
	s.setConnected(true)

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-sub.Err():
			return err
		case header := <-headers:
			if header == nil || header.Number == nil {
				continue
			}
			// a delivered header proves the stream healthy even without logs
			s.resetErrors()
			if !s.bloomMatches(header.Bloom) {
				continue
			}
			if err := s.fetchBlockLogs(ctx, header.Number, queue); err != nil {
				return err
			}
		}
	}
}

// bloomMatches reports whether any watched topic may be in the block
func (s *Subscriber) bloomMatches(bloom types.Bloom) bool {
	for _, topic := range s.state.Topics {
		if types.BloomLookup(bloom, topic) {
			return true
		}
	}
	return false
}

func (s *Subscriber) fetchBlockLogs(ctx context.Context, number *big.Int, queue chan<- types.Log) error {
	q := s.filterQuery()
	q.FromBlock = new(big.Int).Set(number)
	q.ToBlock = new(big.Int).Set(number)

	logs, err := s.chain.FilterLogs(ctx, q)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("failed to filter logs for block %s: %w", number, err)
	}
	s.logger.Debug("bloom hit",
		zap.String("block", number.String()),
		zap.Int("logs", len(logs)))

	for _, log := range logs {
		if !s.enqueue(ctx, queue, log) {
			return nil
		}
	}
	return nil
}

// enqueue hands log to the workers. It reports false if ctx ended first.
func (s *Subscriber) enqueue(ctx context.Context, queue chan<- types.Log, log types.Log) bool {
	if log.Removed || len(log.Topics) == 0 {
		s.logger.Debug("skipping log",
			zap.Bool("removed", log.Removed),
			zap.String("tx", log.TxHash.Hex()))
		return true
	}
	s.metrics.RecordLogReceived()

	select {
	case queue <- log:
		return true
	case <-ctx.Done():
		return false
	}
}

func (s *Subscriber) handle(ctx context.Context, log types.Log) {
	if s.cfg.HandlerTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.HandlerTimeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("handler panic",
				zap.Any("panic", r),
				zap.String("tx", log.TxHash.Hex()))
		}
	}()

	s.handler(ctx, log)
}

func (s *Subscriber) recordError() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.ConsecutiveErrors++
	return s.state.ConsecutiveErrors
}

func (s *Subscriber) resetErrors() {
	s.mu.Lock()
	s.state.ConsecutiveErrors = 0
	s.mu.Unlock()
}

func (s *Subscriber) setConnected(connected bool) {
	s.mu.Lock()
	s.state.Connected = connected
	s.mu.Unlock()
	s.metrics.SetSubscriberConnected(connected)
}
