package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/arklim/blog-platform/internal/core/port"
	"github.com/arklim/blog-platform/internal/infra/config"
	"github.com/arklim/blog-platform/internal/infra/database"
	kafkainfra "github.com/arklim/blog-platform/internal/infra/kafka"
	"github.com/arklim/blog-platform/internal/infra/logger"
	redisinfra "github.com/arklim/blog-platform/internal/infra/redis"
	"github.com/arklim/blog-platform/internal/infra/telemetry"
	postgresrepo "github.com/arklim/blog-platform/internal/repository/postgres"
	redisrepo "github.com/arklim/blog-platform/internal/repository/redis"
	"github.com/arklim/blog-platform/internal/transport/http/middleware"
	"github.com/arklim/blog-platform/internal/transport/http/routes"
	"github.com/arklim/blog-platform/internal/usecase"
)

// Application bundles the API process: HTTP engine plus the connections it
// owns and must close on shutdown.
type Application struct {
	cfg    *config.AppConfig
	engine *gin.Engine
	logger *zap.Logger
	pool   *pgxpool.Pool
	redis  *redisinfra.Client
}

// New wires the API from configuration: durable store, cache store, event
// publisher, services, and routes.
func New(ctx context.Context, cfg *config.AppConfig) (*Application, error) {
	log, err := logger.New(cfg.App.Env)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	pool, err := database.NewPostgresPool(ctx, cfg.Postgres, log)
	if err != nil {
		return nil, fmt.Errorf("init postgres: %w", err)
	}

	redisClient, err := redisinfra.NewClient(cfg.Redis, log)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("init redis: %w", err)
	}

	repos := postgresrepo.NewRepositories(pool)

	viewCounterCache := redisrepo.NewViewCounterRepository(redisClient.Client(), cfg.Redis.ViewCounterPrefix)
	trendingStore := redisrepo.NewTrendingRepository(redisClient.Client(), cfg.Redis.TrendingKey)

	rateLimitWindow := cfg.RateLimit.WindowDuration
	if rateLimitWindow <= 0 {
		rateLimitWindow = time.Minute
	}
	rateLimitStore := redisrepo.NewRateLimitRepository(redisClient.Client(), redisrepo.SlidingWindowConfig{
		KeyPrefix: cfg.Redis.RateLimitPrefix,
		Window:    rateLimitWindow,
	})

	eventPublisher := newEventPublisher(cfg, log)

	metrics := telemetry.NewMetrics()

	counterService := usecase.NewCounterService(viewCounterCache, trendingStore, rateLimitStore, eventPublisher).
		WithLogger(log).
		WithMetrics(metrics)

	postService := usecase.NewPostService(repos.Posts, counterService, eventPublisher).
		WithLogger(log)

	httpMetrics, err := middleware.NewHTTPMetrics(middleware.HTTPMetricsOptions{})
	if err != nil {
		_ = redisClient.Close()
		pool.Close()
		return nil, fmt.Errorf("init http metrics: %w", err)
	}

	engine := routes.Register(routes.Dependencies{
		Config:   cfg,
		Logger:   log,
		Metrics:  httpMetrics,
		Database: pool,
		Cache:    redisClient,
		Services: routes.ServiceSet{
			Posts:   postService,
			Counter: counterService,
		},
	})

	return &Application{
		cfg:    cfg,
		engine: engine,
		logger: log,
		pool:   pool,
		redis:  redisClient,
	}, nil
}

// newEventPublisher prefers the Kafka publisher and degrades to the logging
// stub when brokers are absent or unreachable. Events are best-effort, so a
// broken broker never blocks startup.
func newEventPublisher(cfg *config.AppConfig, log *zap.Logger) port.EventPublisher {
	if len(cfg.Kafka.Brokers) == 0 {
		log.Info("kafka brokers not configured, using stub publisher")
		return kafkainfra.NewStubPublisher(log)
	}

	producer, err := kafkainfra.NewProducer(cfg.Kafka, log)
	if err != nil {
		log.Warn("failed to init kafka producer, using stub publisher", zap.Error(err))
		return kafkainfra.NewStubPublisher(log)
	}

	log.Info("kafka event publisher initialized", zap.Strings("brokers", cfg.Kafka.Brokers))
	return kafkainfra.NewEventPublisher(producer, cfg.App)
}

// Run serves HTTP until the context is cancelled, then shuts down
// gracefully.
func (a *Application) Run(ctx context.Context) error {
	defer func() {
		_ = a.logger.Sync()
	}()
	defer func() {
		if a.pool != nil {
			a.pool.Close()
		}
	}()
	defer func() {
		if a.redis != nil {
			_ = a.redis.Close()
		}
	}()

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", a.cfg.App.Host, a.cfg.App.Port),
		Handler:           a.engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	a.logger.Info("starting blog API",
		zap.String("env", a.cfg.App.Env),
		zap.String("address", srv.Addr),
	)

	serverErrCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrCh <- fmt.Errorf("run server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown server: %w", err)
		}
		return nil
	case err := <-serverErrCh:
		return err
	}
}
