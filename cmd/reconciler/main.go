package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/arklim/blog-platform/internal/infra/config"
	"github.com/arklim/blog-platform/internal/infra/database"
	"github.com/arklim/blog-platform/internal/infra/logger"
	redisinfra "github.com/arklim/blog-platform/internal/infra/redis"
	"github.com/arklim/blog-platform/internal/infra/telemetry"
	postgresrepo "github.com/arklim/blog-platform/internal/repository/postgres"
	redisrepo "github.com/arklim/blog-platform/internal/repository/redis"
	"github.com/arklim/blog-platform/internal/usecase"
)

func main() {
	once := flag.Bool("once", false, "run a single reconciliation pass and exit")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, *once); err != nil {
		log.Printf("reconciler stopped: %v", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.AppConfig, once bool) error {
	zlog, err := logger.New(cfg.App.Env)
	if err != nil {
		return err
	}
	defer func() {
		_ = zlog.Sync()
	}()

	pool, err := database.NewPostgresPool(ctx, cfg.Postgres, zlog)
	if err != nil {
		return err
	}
	defer pool.Close()

	redisClient, err := redisinfra.NewClient(cfg.Redis, zlog)
	if err != nil {
		return err
	}
	defer func() {
		_ = redisClient.Close()
	}()

	repos := postgresrepo.NewRepositories(pool)
	cache := redisrepo.NewViewCounterRepository(redisClient.Client(), cfg.Redis.ViewCounterPrefix)

	txRunner := func(ctx context.Context, fn func(usecase.ViewUpdater) error) error {
		return repos.Posts.InTx(ctx, func(tx pgx.Tx) error {
			return fn(repos.Posts.WithTx(tx))
		})
	}

	service := usecase.NewReconcileService(cache, txRunner).
		WithLogger(zlog).
		WithMetrics(telemetry.NewMetrics())

	if once {
		_, err := service.Run(ctx)
		return err
	}

	interval := cfg.Reconcile.Interval
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	zlog.Info("reconciler started", zap.Duration("interval", interval))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			zlog.Info("reconciler shutting down")
			return nil
		case <-ticker.C:
			// A failed pass is retried on the next tick; counts stay safe
			// in the cache meanwhile.
			if _, err := service.Run(ctx); err != nil {
				zlog.Error("reconciliation pass failed", zap.Error(err))
			}
		}
	}
}
