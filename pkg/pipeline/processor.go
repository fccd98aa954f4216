// Package pipeline turns a raw chain log into a persisted, cached and
// broadcast token record.
package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"github.com/0xmhha/token-screener/internal/logger"
	"github.com/0xmhha/token-screener/pkg/api/websocket"
	"github.com/0xmhha/token-screener/pkg/events"
	"github.com/0xmhha/token-screener/pkg/metrics"
	"github.com/0xmhha/token-screener/pkg/token"
)

// Save outcomes used as metric labels
const (
	OutcomeInserted  = "inserted"
	OutcomeUpdated   = "updated"
	OutcomeUnchanged = "unchanged"
	OutcomeDropped   = "dropped"
	OutcomeFailed    = "failed"
)

// Pipeline stages reported to admins
const (
	StageEnrich = "enrich"
	StageSave   = "save"
)

// Classifier turns raw logs into domain events
type Classifier interface {
	Classify(log types.Log) (*events.DomainEvent, bool)
}

// Enricher fills on-chain metadata into a record
type Enricher interface {
	Enrich(ctx context.Context, rec *token.Record) error
}

// Saver persists a record with merge-on-save semantics
type Saver interface {
	Save(ctx context.Context, rec *token.Record) (*token.Record, bool, error)
}

// Cache receives every persisted record
type Cache interface {
	Touch(rec *token.Record)
}

// Publisher fans records out to live subscribers
type Publisher interface {
	Publish(rec *token.Record)
	PublishAdmin(msgType string, payload interface{})
}

// Processor runs one log through classify, enrich, save, cache and publish
type Processor struct {
	classifier Classifier
	enricher   Enricher
	saver      Saver
	cache      Cache
	publisher  Publisher
	logger     *zap.Logger
	metrics    *metrics.Metrics
}

// Config wires the processor stages
type Config struct {
	Classifier Classifier
	Enricher   Enricher
	Saver      Saver
	Cache      Cache
	Publisher  Publisher
	Logger     *zap.Logger
	Metrics    *metrics.Metrics
}

// NewProcessor creates a processor. Cache and Publisher are optional.
func NewProcessor(cfg Config) *Processor {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Processor{
		classifier: cfg.Classifier,
		enricher:   cfg.Enricher,
		saver:      cfg.Saver,
		cache:      cfg.Cache,
		publisher:  cfg.Publisher,
		logger:     logger.WithComponent(cfg.Logger, "pipeline"),
		metrics:    cfg.Metrics,
	}
}

// Handle processes a single log. It has the subscriber.Handler signature.
func (p *Processor) Handle(ctx context.Context, log types.Log) {
	start := time.Now()
	defer func() { p.metrics.ObserveHandle(time.Since(start)) }()

	ev, ok := p.classifier.Classify(log)
	if !ok {
		return
	}
	p.metrics.RecordEventClassified(string(ev.Kind))

	p.Process(ctx, ev)
}

// Process enriches and saves the record described by ev and returns the
// stored state, or nil when the event was dropped.
func (p *Processor) Process(ctx context.Context, ev *events.DomainEvent) *token.Record {
	rec := ev.ToRecord()
	log := logger.WithToken(p.logger, rec.ContractAddress).With(
		zap.String("kind", string(ev.Kind)),
		zap.Uint64("block", ev.BlockNumber))

	if err := p.enricher.Enrich(ctx, rec); err != nil {
		p.handleEnrichError(log, rec, err)
		return nil
	}

	stored, changed, err := p.saver.Save(ctx, rec)
	if err != nil {
		if errors.Is(err, token.ErrZeroSupply) {
			log.Debug("token has no supply, dropping")
			p.metrics.RecordTokenSaved(OutcomeDropped)
			return nil
		}
		log.Error("failed to save token", zap.Error(err))
		p.metrics.RecordTokenSaved(OutcomeFailed)
		p.notifyAdmin(rec.ContractAddress, StageSave, err)
		return nil
	}

	if !changed {
		p.metrics.RecordTokenSaved(OutcomeUnchanged)
		return stored
	}

	if stored.DateUpdated == nil {
		p.metrics.RecordTokenSaved(OutcomeInserted)
		log.Info("new token saved",
			zap.String("name", stored.Name),
			zap.String("symbol", stored.Symbol))
	} else {
		p.metrics.RecordTokenSaved(OutcomeUpdated)
	}

	if p.cache != nil {
		p.cache.Touch(stored)
	}
	if p.publisher != nil {
		p.publisher.Publish(stored)
	}
	return stored
}

func (p *Processor) handleEnrichError(log *zap.Logger, rec *token.Record, err error) {
	switch {
	case errors.Is(err, token.ErrNotContract):
		log.Debug("address has no code, dropping")
		p.metrics.RecordEnrichmentFailed("not_contract")
	case errors.Is(err, token.ErrZeroSupply):
		log.Debug("token has no supply, dropping")
		p.metrics.RecordEnrichmentFailed("zero_supply")
	case errors.Is(err, token.ErrInvalidAddress):
		log.Warn("invalid contract address, dropping", zap.Error(err))
		p.metrics.RecordEnrichmentFailed("invalid_address")
	default:
		log.Warn("enrichment failed, skipping event", zap.Error(err))
		p.metrics.RecordEnrichmentFailed("rpc")
		p.notifyAdmin(rec.ContractAddress, StageEnrich, err)
	}
}

func (p *Processor) notifyAdmin(contract, stage string, err error) {
	if p.publisher == nil {
		return
	}
	p.publisher.PublishAdmin(websocket.TypeError, websocket.PipelineError{
		Contract: contract,
		Stage:    stage,
		Error:    err.Error(),
	})
}
