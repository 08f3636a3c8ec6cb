package bootstrap

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	ballotengine "contestvote/contexts/contest-voting/ballot-engine"
	ballotcache "contestvote/contexts/contest-voting/ballot-engine/adapters/cache"
	"contestvote/contexts/contest-voting/ballot-engine/adapters/live"
	"contestvote/contexts/contest-voting/ballot-engine/adapters/memory"
	postgresadapter "contestvote/contexts/contest-voting/ballot-engine/adapters/postgres"
	workerapp "contestvote/contexts/contest-voting/ballot-engine/application/workers"
	"contestvote/contexts/contest-voting/ballot-engine/domain/entities"
	"contestvote/contexts/contest-voting/ballot-engine/ports"
	"contestvote/internal/platform/config"
	"contestvote/internal/platform/db"
	"contestvote/internal/platform/httpserver"
	"contestvote/internal/platform/kv"
	"contestvote/internal/platform/messaging"
	"contestvote/internal/platform/metrics"

	"github.com/redis/go-redis/v9"
)

// Package bootstrap is the composition root.
// Keep construction/wiring here so module code stays framework-agnostic.

type ballotBackend interface {
	ports.BallotRepository
	ports.IdempotencyStore
	ports.OutboxRepository
}

type eventBus interface {
	ports.EventPublisher
	ports.EventSubscriber
}

// infra is what the API and worker processes share.
type infra struct {
	backend  ballotBackend
	clock    ports.Clock
	idGen    ports.IDGenerator
	database *db.Database
	redis    *redis.Client
	bus      eventBus
}

type APIApp struct {
	server       *httpserver.Server
	infra        infra
	relay        workerapp.OutboxRelay
	refresher    workerapp.ResultsRefresher
	runRelay     bool
	runRefresher bool
	metrics      *metrics.Metrics
	pollInterval time.Duration
	logger       *slog.Logger
}

type WorkerApp struct {
	infra        infra
	outboxRelay  workerapp.OutboxRelay
	metrics      *metrics.Metrics
	pollInterval time.Duration
	logger       *slog.Logger
}

func BuildAPI() (*APIApp, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger := newLogger(cfg).With("service", cfg.ServiceName, "process", "api")

	shared, err := buildInfra(cfg, logger)
	if err != nil {
		return nil, err
	}

	var appMetrics *metrics.Metrics
	var engineMetrics ports.Metrics
	var liveGauge live.Gauge
	if cfg.EnableMetrics {
		appMetrics = metrics.New()
		engineMetrics = appMetrics
		liveGauge = appMetrics.LiveSubscribers()
	}

	resultCache, err := buildResultCache(cfg, shared.redis)
	if err != nil {
		shared.close()
		return nil, err
	}

	module := ballotengine.NewModule(ballotengine.Dependencies{
		Repository:         shared.backend,
		Idempotency:        shared.backend,
		Cache:              resultCache,
		Metrics:            engineMetrics,
		Clock:              shared.clock,
		IDGen:              shared.idGen,
		IdempotencyTTL:     cfg.IdempotencyTTL,
		ResultsConcurrency: cfg.ResultsConcurrency,
		WinnerPolicy:       entities.WinnerPolicy(cfg.WinnerPolicy),
		Logger:             logger,
	})

	var hub *live.Hub
	var livePublisher ports.LivePublisher
	if cfg.EnableLiveResults {
		hub = live.NewHub(liveGauge, logger)
		livePublisher = hub
	}

	server := httpserver.New(module, httpserver.Options{
		Live:              hub,
		Metrics:           appMetrics,
		VoteRateLimit:     cfg.VoteRateLimit,
		VoteRateBurst:     cfg.VoteRateBurst,
		EnableSwagger:     cfg.EnableSwagger,
		TrustForwardedFor: cfg.TrustProxyHeaders,
	}, logger, normalizeAddr(cfg.HTTPPort))

	return &APIApp{
		server: server,
		infra:  shared,
		relay: workerapp.OutboxRelay{
			Outbox:    shared.backend,
			Publisher: shared.bus,
			Clock:     shared.clock,
			BatchSize: cfg.OutboxBatchSize,
			Logger:    logger,
		},
		refresher: workerapp.ResultsRefresher{
			Subscriber: shared.bus,
			Results:    module.Results,
			Contests:   shared.backend,
			Live:       livePublisher,
			Clock:      shared.clock,
			Logger:     logger,
		},
		runRelay:     cfg.EnableEmbeddedRelay,
		runRefresher: cfg.EnableResultRefresher,
		metrics:      appMetrics,
		pollInterval: cfg.OutboxPollInterval,
		logger:       logger,
	}, nil
}

func BuildWorker() (*WorkerApp, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger := newLogger(cfg).With("service", cfg.ServiceName, "process", "worker")
	if cfg.StorageDriver == "memory" {
		return nil, errors.New("worker requires a persistent STORAGE_DRIVER")
	}

	shared, err := buildInfra(cfg, logger)
	if err != nil {
		return nil, err
	}

	var appMetrics *metrics.Metrics
	if cfg.EnableMetrics {
		appMetrics = metrics.New()
	}
	return &WorkerApp{
		infra: shared,
		outboxRelay: workerapp.OutboxRelay{
			Outbox:    shared.backend,
			Publisher: shared.bus,
			Clock:     shared.clock,
			BatchSize: cfg.OutboxBatchSize,
			Logger:    logger,
		},
		metrics:      appMetrics,
		pollInterval: cfg.OutboxPollInterval,
		logger:       logger,
	}, nil
}

func (a *APIApp) Run(ctx context.Context) error {
	if a.runRefresher {
		if err := a.refresher.Start(ctx); err != nil {
			return err
		}
	}
	if a.runRelay {
		go func() {
			if err := runRelayLoop(ctx, a.relay, a.metrics, a.pollInterval); err != nil {
				a.logger.Error("embedded outbox relay stopped",
					"event", "bootstrap_embedded_relay_stopped",
					"module", "internal/app/bootstrap",
					"layer", "platform",
					"error", err.Error(),
				)
			}
		}()
	}

	a.logger.Info("api app started",
		"event", "bootstrap_api_started",
		"module", "internal/app/bootstrap",
		"layer", "platform",
		"embedded_relay", a.runRelay,
		"result_refresher", a.runRefresher,
	)

	serverErr := make(chan error, 1)
	go func() {
		if err := a.server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return a.server.Shutdown(shutdownCtx)
}

func (a *APIApp) Close() error {
	return a.infra.close()
}

func (w *WorkerApp) Run(ctx context.Context) error {
	w.logger.Info("worker app started",
		"event", "bootstrap_worker_started",
		"module", "internal/app/bootstrap",
		"layer", "platform",
		"poll_interval", w.pollInterval.String(),
	)
	return runRelayLoop(ctx, w.outboxRelay, w.metrics, w.pollInterval)
}

func (w *WorkerApp) Close() error {
	return w.infra.close()
}

func runRelayLoop(ctx context.Context, relay workerapp.OutboxRelay, m *metrics.Metrics, interval time.Duration) error {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		published, err := relay.RunOnce(ctx)
		if m != nil {
			m.ObserveRelayCycle(published, err)
		}
		if err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func buildInfra(cfg config.Config, logger *slog.Logger) (infra, error) {
	var shared infra
	switch cfg.StorageDriver {
	case "memory":
		store := memory.NewStore()
		shared.backend = store
		shared.clock = store
		shared.idGen = store
	default:
		database, err := db.Connect(cfg.StorageDriver, cfg.DatabaseDSN)
		if err != nil {
			return infra{}, err
		}
		repo := postgresadapter.NewRepository(database.DB, logger)
		if cfg.AutoMigrate {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			err := repo.Migrate(ctx)
			cancel()
			if err != nil {
				_ = database.Close()
				return infra{}, err
			}
		}
		shared.database = database
		shared.backend = repo
		shared.clock = postgresadapter.SystemClock{}
		shared.idGen = postgresadapter.UUIDGenerator{}
	}

	if cfg.EventBus == "redis" || cfg.ResultsCache == "redis" {
		client, err := kv.Connect(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			shared.close()
			return infra{}, err
		}
		shared.redis = client
	}

	if cfg.EventBus == "redis" {
		shared.bus = messaging.NewRedisBus(shared.redis, logger)
	} else {
		shared.bus = messaging.NewMemoryBus(logger)
	}
	return shared, nil
}

func buildResultCache(cfg config.Config, client *redis.Client) (ports.ResultCache, error) {
	switch cfg.ResultsCache {
	case "local":
		return ballotcache.NewLocalResultCache(cfg.ResultsCacheSizeMB, cfg.ResultsCacheTTL), nil
	case "redis":
		if client == nil {
			return nil, errors.New("redis results cache requires REDIS_ADDR")
		}
		return ballotcache.NewRedisResultCache(client, cfg.ResultsCacheTTL), nil
	default:
		return nil, nil
	}
}

func (i infra) close() error {
	var errs []error
	if i.redis != nil {
		errs = append(errs, i.redis.Close())
	}
	if i.database != nil {
		errs = append(errs, i.database.Close())
	}
	return errors.Join(errs...)
}

func newLogger(cfg config.Config) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

func normalizeAddr(port string) string {
	value := strings.TrimSpace(port)
	if value == "" {
		return ":8080"
	}
	if strings.HasPrefix(value, ":") {
		return value
	}
	return ":" + value
}
