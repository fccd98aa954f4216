package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/0xmhha/token-screener/internal/config"
	"github.com/0xmhha/token-screener/internal/logger"
	"github.com/0xmhha/token-screener/pkg/api"
	"github.com/0xmhha/token-screener/pkg/api/websocket"
	"github.com/0xmhha/token-screener/pkg/cache"
	"github.com/0xmhha/token-screener/pkg/client"
	"github.com/0xmhha/token-screener/pkg/events"
	"github.com/0xmhha/token-screener/pkg/metrics"
	"github.com/0xmhha/token-screener/pkg/pipeline"
	"github.com/0xmhha/token-screener/pkg/reconcile"
	"github.com/0xmhha/token-screener/pkg/relay"
	"github.com/0xmhha/token-screener/pkg/storage"
	"github.com/0xmhha/token-screener/pkg/subscriber"
	"github.com/0xmhha/token-screener/pkg/token"
	"github.com/0xmhha/token-screener/pkg/verifier"
)

var (
	// Version information (injected at build time)
	version   = "dev"
	commit    = "none"
	buildTime = "unknown"
)

// flagOverrides are command-line values applied over file and environment config
type flagOverrides struct {
	rpcEndpoint string
	dbPath      string
	mode        string
	logLevel    string
	logFormat   string
	apiPort     int
	disableAPI  bool
}

func main() {
	var (
		configFile  = flag.String("config", "", "Path to configuration file (YAML)")
		showVersion = flag.Bool("version", false, "Show version information and exit")
		o           flagOverrides
	)
	flag.StringVar(&o.rpcEndpoint, "rpc", "", "Ethereum websocket RPC endpoint")
	flag.StringVar(&o.dbPath, "db", "", "Pebble database path")
	flag.StringVar(&o.mode, "mode", "", "Subscription mode (logs, headers)")
	flag.StringVar(&o.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	flag.StringVar(&o.logFormat, "log-format", "", "Log format (json, console)")
	flag.IntVar(&o.apiPort, "api-port", 0, "API server port")
	flag.BoolVar(&o.disableAPI, "no-api", false, "Disable the HTTP API")
	flag.Parse()

	if *showVersion {
		fmt.Printf("token-screener version %s\n", version)
		fmt.Printf("  commit: %s\n", commit)
		fmt.Printf("  built:  %s\n", buildTime)
		os.Exit(0)
	}

	cfg, err := loadConfig(*configFile, o)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	log.Info("Starting token screener",
		zap.String("version", version),
		zap.String("commit", commit),
		zap.String("build_time", buildTime),
		zap.String("rpc_endpoint", cfg.RPC.Endpoint),
		zap.String("storage", cfg.Database.Backend),
		zap.String("mode", cfg.Subscriber.Mode),
		zap.Int("workers", cfg.Subscriber.Workers),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("Screener stopped with error", zap.Error(err))
		_ = log.Sync()
		os.Exit(1)
	}
	log.Info("Screener stopped")
}

// logChainHead records where the subscription starts. Failures are not fatal.
func logChainHead(ctx context.Context, c *client.Client, log *zap.Logger) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	chainID, err := c.GetChainID(ctx)
	if err != nil {
		log.Warn("failed to read chain ID", zap.Error(err))
		return
	}
	head, err := c.GetLatestBlockNumber(ctx)
	if err != nil {
		log.Warn("failed to read head block", zap.Error(err))
		return
	}
	log.Info("Watching chain",
		zap.String("endpoint", c.Endpoint()),
		zap.String("chain_id", chainID.String()),
		zap.Uint64("head_block", head))
}

func run(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	m := metrics.NewMetrics("", prometheus.DefaultRegisterer)

	ethClient, err := client.NewClient(&client.Config{
		Endpoint: cfg.RPC.Endpoint,
		Timeout:  cfg.RPC.Timeout,
		Logger:   log,
	})
	if err != nil {
		return fmt.Errorf("failed to create Ethereum client: %w", err)
	}
	defer ethClient.Close()
	logChainHead(ctx, ethClient, log)

	storageConfig := storage.DefaultConfig(cfg.Database.Path)
	storageConfig.Backend = cfg.Database.Backend
	storageConfig.DSN = cfg.Database.DSN
	storageConfig.ReadOnly = cfg.Database.ReadOnly
	store, err := storage.Open(ctx, storageConfig, log)
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Error("Failed to close storage", zap.Error(err))
		}
	}()

	var v verifier.Verifier
	if cfg.Verifier.Enabled {
		ev, err := verifier.NewEtherscanVerifier(&verifier.Config{
			BaseURL:   cfg.Verifier.BaseURL,
			APIKey:    cfg.Verifier.APIKey,
			Timeout:   cfg.Verifier.Timeout,
			RateLimit: cfg.Verifier.RateLimit,
			CacheTTL:  cfg.Verifier.CacheTTL,
			Logger:    log,
		})
		if err != nil {
			return fmt.Errorf("failed to create verifier: %w", err)
		}
		v = ev
	} else {
		log.Warn("Contract verification disabled")
	}

	abiRegistry := token.NewRegistry()
	if cfg.ABI.Dir != "" {
		n, err := abiRegistry.LoadDir(cfg.ABI.Dir)
		if err != nil {
			return fmt.Errorf("failed to load ABI descriptors: %w", err)
		}
		log.Info("Loaded ABI descriptors", zap.String("dir", cfg.ABI.Dir), zap.Int("count", n))
	}

	sink, err := relay.New(cfg.Relay, log)
	if err != nil {
		return fmt.Errorf("failed to create relay: %w", err)
	}
	var sinks []websocket.Sink
	if sink != nil {
		defer func() { _ = sink.Close() }()
		sinks = append(sinks, sink)
	}

	registry := websocket.NewRegistry(log, m)
	go registry.Run()
	defer registry.Stop()
	broadcaster := websocket.NewBroadcaster(registry, log, m, sinks...)

	latest := cache.NewLatestTokens(store, cache.Config{
		Capacity: cfg.Cache.Capacity,
		Logger:   log,
		Metrics:  m,
	})
	if err := latest.Refresh(ctx); err != nil {
		log.Warn("Failed to warm latest tokens cache", zap.Error(err))
	}

	proc := pipeline.NewProcessor(pipeline.Config{
		Classifier: events.NewClassifier(log),
		Enricher:   token.NewEnricher(ethClient, abiRegistry, v, log),
		Saver:      reconcile.NewEngine(store, log),
		Cache:      latest,
		Publisher:  broadcaster,
		Logger:     log,
		Metrics:    m,
	})

	sub, err := subscriber.New(ethClient, proc.Handle, subscriber.Config{
		Topics:         events.WatchedTopics(),
		Mode:           cfg.Subscriber.Mode,
		ErrorLimit:     cfg.Subscriber.ErrorLimit,
		RetryDelay:     cfg.Subscriber.RetryDelay,
		Workers:        cfg.Subscriber.Workers,
		QueueSize:      cfg.Subscriber.QueueSize,
		HandlerTimeout: cfg.Subscriber.HandlerTimeout,
		Logger:         log,
		Metrics:        m,
	})
	if err != nil {
		return fmt.Errorf("failed to create subscriber: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return broadcaster.Run(gctx)
	})

	g.Go(func() error {
		err := sub.Run(gctx)
		if errors.Is(err, subscriber.ErrErrorLimitExceeded) {
			broadcaster.PublishAdmin(websocket.TypeError, websocket.PipelineError{
				Stage: "subscribe",
				Error: err.Error(),
			})
		}
		return err
	})

	if cfg.API.Enabled {
		srv, err := api.NewServer(api.FromAppConfig(cfg.API), log, api.Deps{
			Store:      store,
			Cache:      latest,
			Registry:   registry,
			Subscriber: sub,
			Chain:      ethClient,
			Gatherer:   prometheus.DefaultGatherer,
			Version:    version,
		})
		if err != nil {
			return fmt.Errorf("failed to create API server: %w", err)
		}
		g.Go(srv.Start)
		g.Go(func() error {
			<-gctx.Done()
			return srv.Stop(context.Background())
		})
	}

	return g.Wait()
}

// loadConfig layers defaults, the YAML file, .env and the environment,
// then command-line flags, and validates the result.
func loadConfig(configFile string, o flagOverrides) (*config.Config, error) {
	if err := loadDotEnv(); err != nil {
		return nil, err
	}

	cfg := config.NewConfig()
	if configFile != "" {
		if err := cfg.LoadFromFile(configFile); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}
	if err := cfg.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load config from environment: %w", err)
	}

	applyFlags(cfg, o)
	cfg.SetDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// loadDotEnv loads environment variables from a .env file if it exists.
func loadDotEnv() error {
	info, err := os.Stat(".env")
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to stat .env: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf(".env exists but is a directory")
	}
	if err := godotenv.Load(".env"); err != nil {
		return fmt.Errorf("failed to load .env: %w", err)
	}
	return nil
}

func applyFlags(cfg *config.Config, o flagOverrides) {
	if o.rpcEndpoint != "" {
		cfg.RPC.Endpoint = o.rpcEndpoint
	}
	if o.dbPath != "" {
		cfg.Database.Path = o.dbPath
	}
	if o.mode != "" {
		cfg.Subscriber.Mode = o.mode
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}
	if o.logFormat != "" {
		cfg.Log.Format = o.logFormat
	}
	if o.apiPort != 0 {
		cfg.API.Port = o.apiPort
	}
	if o.disableAPI {
		cfg.API.Enabled = false
	}
}
