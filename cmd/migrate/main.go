package main

import (
	"context"
	"flag"
	"log"
	"time"

	"go.uber.org/zap"

	"github.com/vats98754/aus-job-fetcher/common/database"
	"github.com/vats98754/aus-job-fetcher/common/database/postgres"
	"github.com/vats98754/aus-job-fetcher/common/database/schema"
	"github.com/vats98754/aus-job-fetcher/common/database/schema/migrations"
	"github.com/vats98754/aus-job-fetcher/internal/config"
	"github.com/vats98754/aus-job-fetcher/internal/store"
)

func main() {
	envFile := flag.String("env", ".env", "path to a KEY=VALUE file loaded before reading the environment")
	timeout := flag.Duration("timeout", 2*time.Minute, "overall migration timeout")
	down := flag.Int("down", 0, "roll back this many clickhouse migrations instead of applying")
	flag.Parse()

	logger, err := zap.NewDevelopment()
	if err != nil {
		log.Fatalf("failed to create logger: %v", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	if _, err := config.LoadEnvFile(*envFile); err != nil {
		logger.Fatal("failed to load env file", zap.String("path", *envFile), zap.Error(err))
	}
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
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
			logger.Fatal("failed to connect to clickhouse", zap.Error(err))
		}
		defer db.Close()

		migrator := schema.NewMigrator(db.Conn(), logger)
		if *down > 0 {
			rolledBack, err := migrator.Down(ctx, migrations.All(), *down)
			if err != nil {
				logger.Fatal("rollback failed", zap.Int("rolled_back", rolledBack), zap.Error(err))
			}
			logger.Info("clickhouse rollback complete", zap.Int("rolled_back", rolledBack))
			return
		}

		applied, err := migrator.Up(ctx, migrations.All())
		if err != nil {
			logger.Fatal("migration failed", zap.Error(err))
		}
		logger.Info("clickhouse migrations complete", zap.Int("applied", applied))

	case config.StorePostgres:
		pool, err := postgres.NewPool(ctx, cfg.DatabaseURL, int32(cfg.PostgresMaxConns))
		if err != nil {
			logger.Fatal("failed to connect to postgres", zap.Error(err))
		}
		defer pool.Close()

		if err := store.NewPostgresStore(pool, logger).EnsureSchema(ctx); err != nil {
			logger.Fatal("migration failed", zap.Error(err))
		}
		logger.Info("postgres schema is up to date")

	default:
		logger.Info("file store needs no migrations", zap.String("backend", cfg.StoreBackend))
	}
}
