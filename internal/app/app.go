package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/riskibarqy/prediction-settlement/external/sportmonks"
	"github.com/riskibarqy/prediction-settlement/internal/config"
	"github.com/riskibarqy/prediction-settlement/internal/domain/matching"
	"github.com/riskibarqy/prediction-settlement/internal/domain/prediction"
	"github.com/riskibarqy/prediction-settlement/internal/domain/teamname"
	"github.com/riskibarqy/prediction-settlement/internal/infrastructure/redisstore"
	"github.com/riskibarqy/prediction-settlement/internal/infrastructure/repository/memory"
	"github.com/riskibarqy/prediction-settlement/internal/infrastructure/repository/postgres"
	"github.com/riskibarqy/prediction-settlement/internal/interfaces/httpapi"
	"github.com/riskibarqy/prediction-settlement/internal/observability"
	"github.com/riskibarqy/prediction-settlement/internal/platform/cache"
	"github.com/riskibarqy/prediction-settlement/internal/platform/id"
	"github.com/riskibarqy/prediction-settlement/internal/platform/logging"
	"github.com/riskibarqy/prediction-settlement/internal/platform/resilience"
	"github.com/riskibarqy/prediction-settlement/internal/usecase"
)

// App owns every long-lived component of the settlement worker.
type App struct {
	cfg        config.Config
	logger     *logging.Logger
	server     *http.Server
	scheduler  *cron.Cron
	settlement *usecase.SettlementService
	baseCtx    context.Context
	cancelBase context.CancelFunc
	closers    []namedCloser
}

type namedCloser struct {
	name  string
	close func(context.Context) error
}

// New wires the worker. Resources opened before a failure are released
// before returning.
func New(ctx context.Context, cfg config.Config, logger *logging.Logger) (_ *App, err error) {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.HTTPAddr == "" {
		return nil, fmt.Errorf("http server addr cannot be empty")
	}

	a := &App{cfg: cfg, logger: logger}
	a.baseCtx, a.cancelBase = context.WithCancel(context.WithoutCancel(ctx))
	defer func() {
		if err != nil {
			a.cancelBase()
			_ = a.close(context.Background())
		}
	}()

	if err := a.initObservability(); err != nil {
		return nil, err
	}

	var metrics *observability.Metrics
	if cfg.MetricsEnabled {
		metrics = observability.NewMetrics()
	}

	repo, err := a.openPredictionRepository(ctx)
	if err != nil {
		return nil, err
	}

	ids := id.NewUUIDGenerator()
	feedOpts := []usecase.FixtureFeedOption{}
	settlementOpts := []usecase.SettlementOption{}
	if cfg.RedisURL != "" {
		redisClient, err := redisstore.New(ctx, cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		a.addCloser("redis", func(context.Context) error { return redisClient.Close() })
		feedOpts = append(feedOpts, usecase.WithSnapshotStore(redisstore.NewFixtureStore(redisClient, cfg.FixtureCacheStaleBound)))
		settlementOpts = append(settlementOpts, usecase.WithCycleLocker(redisstore.NewCycleLock(redisClient, ids)))
	}
	if metrics != nil {
		feedOpts = append(feedOpts, usecase.WithFeedMetrics(metrics))
		settlementOpts = append(settlementOpts, usecase.WithCycleMetrics(metrics))
	}

	clientCfg := sportmonks.ClientConfig{
		BaseURL:      cfg.SportMonksBaseURL,
		Token:        cfg.SportMonksToken,
		Timeout:      cfg.SportMonksTimeout,
		MaxRetries:   cfg.SportMonksMaxRetries,
		RetryBackoff: cfg.SportMonksRetryBackoff,
		RateLimit:    cfg.SportMonksRateLimit,
		RateBurst:    cfg.SportMonksRateBurst,
		Logger:       logger.With("component", "sportmonks"),
		CircuitBreaker: resilience.CircuitBreakerConfig{
			Enabled:          cfg.SportMonksCircuitEnabled,
			FailureThreshold: cfg.SportMonksCircuitFailureCount,
			OpenTimeout:      cfg.SportMonksCircuitOpenTimeout,
			HalfOpenMaxReq:   cfg.SportMonksCircuitHalfOpenMaxReq,
		},
	}
	if metrics != nil {
		clientCfg.Metrics = metrics
	}
	provider := sportmonks.NewClient(clientCfg)

	feedCfg := usecase.FixtureFeedConfig{
		DateTTL:      cfg.FixtureCacheDateTTL,
		DetailTTL:    cfg.FixtureCacheDetailTTL,
		StaleBound:   cfg.FixtureCacheStaleBound,
		FetchTimeout: cfg.SyncFetchTimeout,

		FinishedRetention: cfg.FixtureCacheFinishedRetention,
	}
	store := cache.NewStore(feedCfg.DateTTL,
		cache.WithRetention(feedCfg.StaleBound),
		cache.WithMaxAge(feedCfg.FinishedRetention),
	)
	feed := usecase.NewFixtureFeed(provider, store, feedCfg, logger.With("component", "fixture_feed"), feedOpts...)

	matcher := matching.NewMatcher(matching.Config{
		KickoffWindow:   cfg.MatchKickoffWindow,
		SideThreshold:   cfg.MatchSideThreshold,
		AcceptThreshold: cfg.MatchAcceptThreshold,
	}, teamname.NewNormalizer(cfg.TeamAliases))

	a.settlement = usecase.NewSettlementService(repo, feed, matcher, ids, usecase.SettlementConfig{
		WorkerCount:   cfg.SyncWorkerCount,
		PageSize:      cfg.SyncPageSize,
		KickoffWindow: cfg.MatchKickoffWindow,
		LockTTL:       cfg.RedisLockTTL,
		LiveWarmup:    cfg.SyncLiveWarmup,
	}, logger.With("component", "settlement"), settlementOpts...)

	var metricsHandler http.Handler
	if metrics != nil {
		metricsHandler = metrics.Handler()
	}
	handler := httpapi.NewHandler(a.settlement, logger)
	a.server = &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      httpapi.NewRouter(handler, logger, metricsHandler, cfg.InternalJobToken),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		BaseContext:  func(_ net.Listener) context.Context { return a.baseCtx },
	}

	if cfg.SyncEnabled {
		if err := a.initScheduler(); err != nil {
			return nil, err
		}
	}

	return a, nil
}

func (a *App) initObservability() error {
	shutdownTracing, err := observability.InitUptrace(a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("init uptrace: %w", err)
	}
	a.addCloser("uptrace", shutdownTracing)

	stopProfiler, err := observability.InitPyroscope(a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("init pyroscope: %w", err)
	}
	a.addCloser("pyroscope", func(context.Context) error { return stopProfiler() })

	stopPprof, err := observability.StartPprofServer(a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("start pprof: %w", err)
	}
	a.addCloser("pprof", stopPprof)

	return nil
}

func (a *App) openPredictionRepository(ctx context.Context) (prediction.Repository, error) {
	switch a.cfg.StoreDriver {
	case config.StoreDriverPostgres:
		db, err := openPostgres(ctx, a.cfg)
		if err != nil {
			return nil, err
		}
		a.addCloser("postgres", func(context.Context) error { return db.Close() })
		a.logger.Info("prediction store ready", "driver", config.StoreDriverPostgres)
		return postgres.NewPredictionRepository(db), nil
	case config.StoreDriverMemory:
		a.logger.Warn("prediction store is in memory, state is lost on restart", "driver", config.StoreDriverMemory)
		return memory.NewPredictionRepository(memory.SeedPredictions(time.Now())), nil
	default:
		return nil, fmt.Errorf("unsupported store driver %q", a.cfg.StoreDriver)
	}
}

func (a *App) initScheduler() error {
	cronLogger := logging.NewCronLogger(a.logger)
	a.scheduler = cron.New(
		cron.WithLocation(time.UTC),
		cron.WithLogger(cronLogger),
		cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
	)

	if _, err := a.scheduler.AddFunc(a.cfg.SyncSchedule, a.runScheduledCycle); err != nil {
		return fmt.Errorf("schedule settlement sync %q: %w", a.cfg.SyncSchedule, err)
	}
	return nil
}

func (a *App) runScheduledCycle() {
	if _, err := a.settlement.RunCycle(a.baseCtx, usecase.SyncInput{}); err != nil {
		if errors.Is(err, usecase.ErrCycleInProgress) {
			a.logger.Debug("scheduled settlement cycle skipped, another cycle is running")
			return
		}
		a.logger.Error("scheduled settlement cycle failed", "error", err)
	}
}

// Start serves HTTP and begins scheduled cycles. It returns once both are
// running; serve errors are reported on the returned channel.
func (a *App) Start() <-chan error {
	errs := make(chan error, 1)
	go func() {
		a.logger.Info("http server starting", "addr", a.cfg.HTTPAddr)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs <- fmt.Errorf("http server: %w", err)
		}
	}()

	if a.scheduler != nil {
		a.scheduler.Start()
		a.logger.Info("settlement scheduler started", "schedule", a.cfg.SyncSchedule)
		if a.cfg.SyncRunOnStart {
			go a.runScheduledCycle()
		}
	}
	return errs
}

// Shutdown stops accepting requests, waits for a running cycle and releases
// every resource.
func (a *App) Shutdown(ctx context.Context) error {
	var errs []error
	if a.server != nil {
		if err := a.server.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("http server shutdown: %w", err))
		}
	}
	if a.scheduler != nil {
		select {
		case <-a.scheduler.Stop().Done():
		case <-ctx.Done():
			errs = append(errs, fmt.Errorf("wait for running cycle: %w", ctx.Err()))
		}
	}
	a.cancelBase()
	if err := a.close(ctx); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (a *App) Settlement() *usecase.SettlementService {
	return a.settlement
}

func (a *App) Handler() http.Handler {
	return a.server.Handler
}

func (a *App) addCloser(name string, fn func(context.Context) error) {
	a.closers = append(a.closers, namedCloser{name: name, close: fn})
}

func (a *App) close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		closer := a.closers[i]
		if err := closer.close(ctx); err != nil {
			a.logger.Warn("close resource failed", "resource", closer.name, "error", err)
			errs = append(errs, fmt.Errorf("close %s: %w", closer.name, err))
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
