package routes

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/arklim/social-platform-chat/internal/infra/config"
	"github.com/arklim/social-platform-chat/internal/transport/http/handlers"
	"github.com/arklim/social-platform-chat/internal/transport/http/middleware"
	"github.com/arklim/social-platform-chat/internal/usecase"
)

// ServiceSet groups the services the HTTP layer depends on.
type ServiceSet struct {
	KeyExchange *usecase.KeyExchangeService
	Messages    *usecase.MessageLifecycleService
	Anomaly     *usecase.AnomalyService
}

// Dependencies encapsulates the objects required to register routes.
type Dependencies struct {
	Config      *config.AppConfig
	Logger      *zap.Logger
	RateLimiter *middleware.RateLimiter
	Metrics     *middleware.HTTPMetrics
	TokenParser middleware.TokenParser
	Services    ServiceSet
	Database    DatabaseChecker
	Cache       CacheChecker
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
	r.Use(deps.Metrics.Handler())

	authMiddleware := middleware.RequireAuth(deps.TokenParser)

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
		keysGroup := api.Group("/keys")
		keysGroup.Use(authMiddleware)
		if mw := buildRateLimitMiddleware(deps, "key_exchange", deps.Config.RateLimit.KeyExchangeAttempts); mw != nil {
			keysGroup.Use(mw)
		}
		handlers.NewKeyExchangeHandler(deps.Services.KeyExchange).RegisterRoutes(keysGroup)

		messagesGroup := api.Group("/messages")
		messagesGroup.Use(authMiddleware)
		if mw := buildRateLimitMiddleware(deps, "message_read", deps.Config.RateLimit.MessageReadAttempts); mw != nil {
			messagesGroup.Use(mw)
		}
		handlers.NewMessageHandler(deps.Services.Messages).RegisterRoutes(messagesGroup)

		riskHandler := handlers.NewRiskHandler(deps.Services.Anomaly)

		riskGroup := api.Group("/risk")
		riskGroup.Use(authMiddleware)
		riskHandler.RegisterRoutes(riskGroup)

		adminGroup := api.Group("/admin")
		adminGroup.Use(authMiddleware, middleware.RequireRole("admin"))
		if mw := buildRateLimitMiddleware(deps, "admin", deps.Config.RateLimit.AdminAttempts); mw != nil {
			adminGroup.Use(mw)
		}
		riskHandler.RegisterAdminRoutes(adminGroup)
	}

	return r
}

func buildRateLimitMiddleware(deps Dependencies, name string, limit int) gin.HandlerFunc {
	if deps.RateLimiter == nil || deps.Config == nil || limit <= 0 {
		return nil
	}

	window := deps.Config.RateLimit.WindowDuration
	if window <= 0 {
		window = time.Minute
	}

	rule := middleware.RateLimitRule{
		Name:       name,
		Limit:      limit,
		Window:     window,
		Identifier: middleware.UserIdentifier(),
	}

	return deps.RateLimiter.RateLimit(rule)
}
