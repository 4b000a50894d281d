package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/vats98754/aus-job-fetcher/common/cache"
	"github.com/vats98754/aus-job-fetcher/common/cache/memory"
	rediscache "github.com/vats98754/aus-job-fetcher/common/cache/redis"
	"github.com/vats98754/aus-job-fetcher/common/database"
	"github.com/vats98754/aus-job-fetcher/common/database/postgres"
	"github.com/vats98754/aus-job-fetcher/common/telemetry"
	"github.com/vats98754/aus-job-fetcher/internal/aggregator"
	"github.com/vats98754/aus-job-fetcher/internal/config"
	"github.com/vats98754/aus-job-fetcher/internal/filter"
	"github.com/vats98754/aus-job-fetcher/internal/messaging"
	"github.com/vats98754/aus-job-fetcher/internal/recency"
	"github.com/vats98754/aus-job-fetcher/internal/runlock"
	"github.com/vats98754/aus-job-fetcher/internal/scheduler"
	"github.com/vats98754/aus-job-fetcher/internal/sources"
	"github.com/vats98754/aus-job-fetcher/internal/store"
)

const (
	serviceName    = "aus-job-fetcher"
	serviceVersion = "1.0.0"
	connectTimeout = 30 * time.Second
)

type runFlags struct {
	once  bool
	fresh bool
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	zcfg := zap.NewProductionConfig()
	if cfg.IsLocal() {
		zcfg = zap.NewDevelopmentConfig()
	}

	level, err := zap.ParseAtomicLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	zcfg.Level = level
	return zcfg.Build()
}

func newCache(cfg *config.Config, lc fx.Lifecycle, logger *zap.Logger) cache.Cache {
	opts := cache.DefaultOptions()
	opts.DefaultTTL = cfg.CacheTTL

	var c cache.Cache
	if cfg.RedisAddr != "" {
		opts.RedisAddr = cfg.RedisAddr
		opts.RedisPassword = cfg.RedisPassword
		opts.RedisDB = cfg.RedisDB
		rc := rediscache.New(opts)
		lc.Append(fx.Hook{
			OnStart: func(ctx context.Context) error {
				if err := rc.Ping(ctx); err != nil {
					logger.Warn("redis is not reachable, responses will not be cached", zap.Error(err))
				}
				return nil
			},
		})
		c = rc
	} else {
		c = memory.New(opts)
	}

	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return c.Close()
		},
	})
	return c
}

func newRunLock(cfg *config.Config, c cache.Cache, logger *zap.Logger) runlock.Locker {
	if rc, ok := c.(*rediscache.Cache); ok {
		return runlock.NewRedis(rc.Client(), runlock.DefaultKey, cfg.RunLockTTL, logger)
	}
	return runlock.NewLocal()
}

func newStore(cfg *config.Config, lc fx.Lifecycle, logger *zap.Logger) (store.Store, error) {
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	switch cfg.StoreBackend {
	case config.StoreClickHouse:
		db, err := database.New(ctx, database.Options{
			DSN:             cfg.ClickHouseDSN,
			MaxOpenConns:    cfg.ClickHouseMaxOpenConns,
			MaxIdleConns:    cfg.ClickHouseMaxIdleConns,
			ConnMaxLifetime: cfg.ClickHouseConnMaxLife,
			Username:        cfg.ClickHouseUsername,
			Password:        cfg.ClickHousePassword,
			Database:        cfg.ClickHouseDatabase,
		}, logger)
		if err != nil {
			return nil, err
		}
		lc.Append(fx.Hook{
			OnStop: func(context.Context) error {
				return db.Close()
			},
		})
		return store.NewClickHouseStore(db.Conn(), logger), nil

	case config.StorePostgres:
		pool, err := postgres.NewPool(ctx, cfg.DatabaseURL, int32(cfg.PostgresMaxConns))
		if err != nil {
			return nil, err
		}
		lc.Append(fx.Hook{
			OnStop: func(context.Context) error {
				pool.Close()
				return nil
			},
		})
		s := store.NewPostgresStore(pool, logger)
		if err := s.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		return s, nil

	default:
		return store.NewFileStore(cfg.StoreJSONPath, cfg.StoreCSVPath, logger), nil
	}
}

func newFetcher(cfg *config.Config, c cache.Cache, logger *zap.Logger) *sources.Fetcher {
	client := &http.Client{Timeout: cfg.SourceTimeout}
	return sources.NewFetcher(client, cache.Prefixed(c, serviceName+":"), cfg.CacheTTL, cfg.UserAgent, logger)
}

func newTopicFilter(cfg *config.Config) *filter.TopicFilter {
	return filter.New(filter.Vocabulary{
		Role:   cfg.RoleKeywords,
		Region: cfg.RegionKeywords,
	}, filter.Options{StrictAbbreviations: cfg.StrictAbbreviations})
}

func newEngine(cfg *config.Config, srcs []sources.Source, st store.Store, tf *filter.TopicFilter, logger *zap.Logger) *aggregator.Engine {
	return aggregator.NewEngine(srcs, st, tf, recency.NewResolver(nil), aggregator.Options{
		Incremental:   cfg.Incremental,
		SourceTimeout: cfg.SourceTimeout,
		Exemptions:    sources.Exemptions(cfg.PrevettedSources),
		Workers:       cfg.SourceWorkers,
		MergePolicy:   aggregator.MergePolicy(cfg.MergePolicy),
	}, logger)
}

// newNATSConnection returns a nil connection when NATS_URL is unset.
func newNATSConnection(cfg *config.Config, logger *zap.Logger) (*nats.Conn, error) {
	if cfg.NATSURL == "" {
		logger.Info("NATS not configured, run events will not be published")
		return nil, nil
	}
	return messaging.Connect(cfg.NATSURL, serviceName, cfg.NATSConnTimeout)
}

func newPublisher(conn *nats.Conn, lc fx.Lifecycle, logger *zap.Logger) messaging.Publisher {
	if conn == nil {
		return messaging.Noop{}
	}
	pub := messaging.NewPublisher(conn, logger)
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			pub.Close()
			return nil
		},
	})
	return pub
}

func newCycle(engine *aggregator.Engine, lock runlock.Locker, pub messaging.Publisher, logger *zap.Logger) *scheduler.Cycle {
	return scheduler.NewCycle(engine, engine.WithIncremental(false), lock, pub, logger)
}

func startTracing(cfg *config.Config, lc fx.Lifecycle, logger *zap.Logger) {
	if cfg.OTelCollectorURL == "" {
		return
	}

	var shutdown func(context.Context) error
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			var err error
			shutdown, err = telemetry.InitTracer(ctx, telemetry.Options{
				ServiceName:    serviceName,
				ServiceVersion: serviceVersion,
				CollectorURL:   cfg.OTelCollectorURL,
				SampleRatio:    cfg.OTelSampleRatio,
			})
			if err != nil {
				logger.Warn("tracing disabled", zap.Error(err))
			}
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if shutdown == nil {
				return nil
			}
			return shutdown(ctx)
		},
	})
}

// runOnce performs a single aggregation after startup and shuts the app
// down with a non-zero exit code if the results were not persisted.
func runOnce(flags runFlags, cycle *scheduler.Cycle, lc fx.Lifecycle, shutdowner fx.Shutdowner, logger *zap.Logger) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				defer close(done)
				code := 0
				_, err := cycle.Run(ctx, flags.fresh)
				switch {
				case errors.Is(err, runlock.ErrHeld):
					logger.Info("another run is in progress, nothing to do")
				case err != nil:
					logger.Error("run failed", zap.Error(err))
					code = 1
				}
				if err := shutdowner.Shutdown(fx.ExitCode(code)); err != nil {
					logger.Error("failed to shut down", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			cancel()
			select {
			case <-done:
				return nil
			case <-stopCtx.Done():
				return stopCtx.Err()
			}
		},
	})
}

func runScheduled(cfg *config.Config, cycle *scheduler.Cycle, conn *nats.Conn, lc fx.Lifecycle, logger *zap.Logger) error {
	sched, err := scheduler.NewJobScheduler(cycle, scheduler.Options{
		Schedule:   cfg.Schedule,
		RunOnStart: true,
		RunTimeout: cfg.RunLockTTL,
	}, logger)
	if err != nil {
		return err
	}

	lc.Append(fx.Hook{
		OnStart: sched.Start,
		OnStop:  sched.Stop,
	})

	if conn == nil {
		return nil
	}
	handler := messaging.NewHandler(logger, conn, sched.Trigger)
	return handler.RegisterSubscriptions(lc)
}

func start(flags runFlags, cfg *config.Config, cycle *scheduler.Cycle, conn *nats.Conn, lc fx.Lifecycle, shutdowner fx.Shutdowner, logger *zap.Logger) error {
	if flags.once || cfg.Schedule == "" {
		runOnce(flags, cycle, lc, shutdowner, logger)
		return nil
	}
	return runScheduled(cfg, cycle, conn, lc, logger)
}

func run() int {
	envFile := flag.String("env", ".env", "path to a KEY=VALUE file loaded before reading the environment")
	once := flag.Bool("once", false, "run one aggregation and exit, even when SCHEDULE is set")
	fresh := flag.Bool("fresh", false, "replace the stored set with this run's results instead of merging")
	flag.Parse()

	if _, err := config.LoadEnvFile(*envFile); err != nil {
		log.Printf("failed to load %s: %v", *envFile, err)
		return 1
	}

	app := fx.New(
		fx.Supply(runFlags{once: *once, fresh: *fresh}),
		fx.Provide(
			config.LoadConfig,
			newLogger,
			newCache,
			newRunLock,
			newStore,
			newFetcher,
			sources.Build,
			newTopicFilter,
			newEngine,
			newNATSConnection,
			newPublisher,
			newCycle,
		),
		fx.WithLogger(func(logger *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: logger.Named("fx")}
		}),
		fx.Invoke(startTracing, start),
	)

	startCtx, cancel := context.WithTimeout(context.Background(), fx.DefaultTimeout)
	defer cancel()
	if err := app.Start(startCtx); err != nil {
		log.Print(err)
		return 1
	}

	sig := <-app.Wait()

	stopCtx, stopCancel := context.WithTimeout(context.Background(), fx.DefaultTimeout)
	defer stopCancel()
	if err := app.Stop(stopCtx); err != nil {
		log.Print(err)
	}
	return sig.ExitCode
}

func main() {
	os.Exit(run())
}
