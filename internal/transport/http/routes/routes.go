package routes

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/arklim/blog-platform/internal/core/domain"
	"github.com/arklim/blog-platform/internal/infra/config"
	"github.com/arklim/blog-platform/internal/transport/http/handlers"
	"github.com/arklim/blog-platform/internal/transport/http/middleware"
	"github.com/arklim/blog-platform/internal/usecase"
)

// ServiceSet groups the services the HTTP layer depends on.
type ServiceSet struct {
	Posts   *usecase.PostService
	Counter *usecase.CounterService
}

// Dependencies encapsulates the objects required to register routes.
type Dependencies struct {
	Config   *config.AppConfig
	Logger   *zap.Logger
	Services ServiceSet
	Metrics  *middleware.HTTPMetrics
	Database DatabaseChecker
	Cache    CacheChecker
}

// DatabaseChecker exposes readiness behaviour for database connections.
type DatabaseChecker interface {
	Ping(ctx context.Context) error
}

// CacheChecker exposes readiness behaviour for cache backends.
type CacheChecker interface {
	HealthCheck(ctx context.Context) error
}

// Register configures the Gin engine with routes and middleware.
func Register(deps Dependencies) *gin.Engine {
	if deps.Config.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.EnrichContext())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(deps.Logger))
	r.Use(middleware.CORS(deps.Config.App.CORSAllowedOrigins))

	if deps.Metrics != nil {
		r.Use(deps.Metrics.Handler())
	}

	authMiddleware := middleware.RequireAuth(deps.Config.Auth.JWTSecret)

	healthOptions := make([]handlers.HealthOption, 0, 2)
	if deps.Database != nil {
		healthOptions = append(healthOptions, handlers.WithReadinessCheck("database", deps.Database.Ping))
	}
	if deps.Cache != nil {
		healthOptions = append(healthOptions, handlers.WithReadinessCheck("redis", deps.Cache.HealthCheck))
	}

	healthHandler := handlers.NewHealthHandler(healthOptions...)

	r.GET("/healthz", healthHandler.Status)
	r.GET("/readyz", healthHandler.Readiness)

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api/v1")
	{
		limiter := buildRateLimiter(deps)

		createLimit := limitHandler(limiter, "create-post", deps.Config.RateLimit.CreatePostMax, deps.Config.RateLimit.WindowDuration)
		updateLimit := limitHandler(limiter, "update-post", deps.Config.RateLimit.UpdatePostMax, deps.Config.RateLimit.WindowDuration)
		likeLimit := limitHandler(limiter, "like", deps.Config.RateLimit.LikeMax, deps.Config.RateLimit.WindowDuration)

		postHandler := handlers.NewPostHandler(deps.Services.Posts, deps.Services.Counter)
		postHandler.RegisterRoutes(api.Group("/posts"), authMiddleware, createLimit, updateLimit)

		viewHandler := handlers.NewViewHandler(deps.Services.Posts, deps.Services.Counter)
		viewHandler.RegisterRoutes(api, authMiddleware, likeLimit)
	}

	return r
}

// buildRateLimiter bridges the middleware to the counter service's
// fail-open sliding-window check.
func buildRateLimiter(deps Dependencies) *middleware.RateLimiter {
	if deps.Services.Counter == nil {
		return nil
	}

	check := func(c *gin.Context, subject string, limit int, window time.Duration) domain.RateLimitDecision {
		return deps.Services.Counter.CheckRateLimit(c.Request.Context(), subject, limit, window)
	}

	return middleware.NewRateLimiter(check, deps.Logger)
}

func limitHandler(limiter *middleware.RateLimiter, name string, limit int, window time.Duration) gin.HandlerFunc {
	if limiter == nil || limit <= 0 || window <= 0 {
		return nil
	}

	return limiter.RateLimit(middleware.RateLimitRule{
		Name:       name,
		Limit:      limit,
		Window:     window,
		Identifier: middleware.AuthorIdentifier(),
	})
}
