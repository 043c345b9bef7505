package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/arklim/social-platform-chat/internal/core/port"
	"github.com/arklim/social-platform-chat/internal/infra/config"
	"github.com/arklim/social-platform-chat/internal/infra/database"
	kafkainfra "github.com/arklim/social-platform-chat/internal/infra/kafka"
	"github.com/arklim/social-platform-chat/internal/infra/logger"
	redisinfra "github.com/arklim/social-platform-chat/internal/infra/redis"
	destructscheduler "github.com/arklim/social-platform-chat/internal/infra/scheduler"
	"github.com/arklim/social-platform-chat/internal/infra/security"
	"github.com/arklim/social-platform-chat/internal/infra/telemetry"
	postgresrepo "github.com/arklim/social-platform-chat/internal/repository/postgres"
	redisrepo "github.com/arklim/social-platform-chat/internal/repository/redis"
	"github.com/arklim/social-platform-chat/internal/transport/http/middleware"
	"github.com/arklim/social-platform-chat/internal/transport/http/routes"
	"github.com/arklim/social-platform-chat/internal/transport/realtime"
	"github.com/arklim/social-platform-chat/internal/usecase"
)

// expiredSweeper is the optional session-repository capability the background
// sweep uses. Lazy expiry on read remains the authoritative mechanism.
type expiredSweeper interface {
	DeactivateExpired(ctx context.Context, at time.Time) (int, error)
}

type Application struct {
	cfg         *config.AppConfig
	engine      *gin.Engine
	logger      *zap.Logger
	pool        *pgxpool.Pool
	redis       *redisinfra.Client
	producer    *kafkainfra.Producer
	tracer      *telemetry.TracerProvider
	scheduler   *destructscheduler.DestructScheduler
	coordinator *realtime.Coordinator
	sweeper     expiredSweeper
}

func New(ctx context.Context, cfg *config.AppConfig) (*Application, error) {
	log, err := logger.New(cfg.App.Env)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	collectors, err := telemetry.Attach(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}

	tracer, err := telemetry.NewTracerProvider(ctx, cfg.Telemetry, log)
	if err != nil {
		return nil, fmt.Errorf("init tracing: %w", err)
	}

	pool, err := database.NewPostgresPool(ctx, cfg.Postgres, log)
	if err != nil {
		return nil, fmt.Errorf("init postgres: %w", err)
	}

	redisClient, err := redisinfra.NewClient(cfg.Redis, log)
	if err != nil {
		return nil, fmt.Errorf("init redis: %w", err)
	}

	sessions := postgresrepo.NewSessionRepository(pool)
	messages := postgresrepo.NewMessageRepository(pool)
	rooms := postgresrepo.NewRoomRepository(pool)

	activityLog := redisrepo.NewActivityLog(redisClient.Client(), redisrepo.ActivityLogConfig{
		KeyPrefix: cfg.Redis.ActivityPrefix,
		TTL:       cfg.Redis.ActivityTTL,
	})
	patterns := redisrepo.NewUserPatternStore(redisClient.Client(), cfg.Redis.PatternPrefix)
	bus := redisrepo.NewRealtimeBus(redisClient.Client())

	rateLimitTTL := cfg.Redis.RateLimitTTL
	if rateLimitTTL <= 0 {
		rateLimitTTL = 2 * cfg.RateLimit.WindowDuration
	}
	rateLimitStore := redisrepo.NewRateLimitStore(redisClient.Client(), cfg.Redis.RateLimitPrefix, rateLimitTTL)

	var eventPublisher port.EventPublisher
	var producer *kafkainfra.Producer
	if len(cfg.Kafka.Brokers) > 0 {
		producer, err = kafkainfra.NewProducer(cfg.Kafka, log)
		if err != nil {
			log.Warn("failed to init kafka producer, using stub publisher", zap.Error(err))
			eventPublisher = kafkainfra.NewStubPublisher(log)
		} else {
			eventPublisher = kafkainfra.NewEventPublisher(producer, cfg.App, log)
			log.Info("kafka event publisher initialized", zap.Strings("brokers", cfg.Kafka.Brokers))
		}
	} else {
		log.Info("kafka brokers not configured, using stub publisher")
		eventPublisher = kafkainfra.NewStubPublisher(log)
	}

	destructTimers := destructscheduler.New(log).WithPendingGauge(collectors.PendingDestructions())

	keyExchange := usecase.NewKeyExchangeService(sessions, rooms, security.NewKeyGenerator(), eventPublisher, log)
	if cfg.Session.TTL > 0 {
		keyExchange.WithSessionTTL(cfg.Session.TTL)
	}

	lifecycle := usecase.NewMessageLifecycleService(messages, bus, destructTimers, eventPublisher, log)

	anomalyMetric := collectors.AnomalyCounter()
	anomaly := usecase.NewAnomalyService(activityLog, patterns, security.NewFingerprintHasher(), eventPublisher, log).
		WithThresholds(thresholdsFromConfig(cfg.Anomaly)).
		WithObserver(func(anomalyType, severity string) {
			anomalyMetric.WithLabelValues(anomalyType, severity).Inc()
		})

	coordinator := realtime.NewCoordinator(keyExchange, lifecycle, bus, log)

	metrics, err := middleware.NewHTTPMetrics(middleware.HTTPMetricsOptions{})
	if err != nil {
		return nil, fmt.Errorf("init http metrics: %w", err)
	}

	engine := routes.Register(routes.Dependencies{
		Config:      cfg,
		Logger:      log,
		RateLimiter: middleware.NewRateLimiter(rateLimitStore, log),
		Metrics:     metrics,
		TokenParser: middleware.NewHMACTokenParser(cfg.JWT.Secret),
		Database:    pool,
		Cache:       redisClient,
		Services: routes.ServiceSet{
			KeyExchange: keyExchange,
			Messages:    lifecycle,
			Anomaly:     anomaly,
		},
	})

	return &Application{
		cfg:         cfg,
		engine:      engine,
		logger:      log,
		pool:        pool,
		redis:       redisClient,
		producer:    producer,
		tracer:      tracer,
		scheduler:   destructTimers,
		coordinator: coordinator,
		sweeper:     sessions,
	}, nil
}

// Coordinator exposes the realtime protocol surface for the socket layer.
func (a *Application) Coordinator() *realtime.Coordinator {
	return a.coordinator
}

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
	defer func() {
		if a.producer != nil {
			_ = a.producer.Close()
		}
	}()
	defer a.scheduler.Stop()

	if a.cfg.Session.SweepPeriod > 0 && a.sweeper != nil {
		go a.sweepExpiredSessions(ctx, a.cfg.Session.SweepPeriod)
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", a.cfg.App.Host, a.cfg.App.Port),
		Handler:           a.engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	a.logger.Info("starting chat security API",
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
		if a.tracer != nil {
			if err := a.tracer.Shutdown(shutdownCtx); err != nil {
				a.logger.Warn("tracer shutdown failed", zap.Error(err))
			}
		}
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown server: %w", err)
		}
		return nil
	case err := <-serverErrCh:
		return err
	}
}

func (a *Application) sweepExpiredSessions(ctx context.Context, period time.Duration) {
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			sweepCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
			count, err := a.sweeper.DeactivateExpired(sweepCtx, now)
			cancel()
			if err != nil {
				a.logger.Warn("session sweep failed", zap.Error(err))
				continue
			}
			if count > 0 {
				a.logger.Info("expired sessions deactivated", zap.Int("count", count))
			}
		}
	}
}

func thresholdsFromConfig(cfg config.AnomalySettings) usecase.AnomalyThresholds {
	thresholds := usecase.DefaultAnomalyThresholds()

	if cfg.MessagesPerMinute > 0 {
		thresholds.MessagesPerMinute = cfg.MessagesPerMinute
	}
	if cfg.MessagesPerHour > 0 {
		thresholds.MessagesPerHour = cfg.MessagesPerHour
	}
	if cfg.FailedLogins > 0 {
		thresholds.FailedLogins = cfg.FailedLogins
	}
	if cfg.FailedLoginWindow > 0 {
		thresholds.FailedLoginWindow = cfg.FailedLoginWindow
	}
	if cfg.MinLoginHistory > 0 {
		thresholds.MinLoginHistory = cfg.MinLoginHistory
	}
	if cfg.TypicalHourShare > 0 {
		thresholds.TypicalHourShare = cfg.TypicalHourShare
	}
	if cfg.MaxTravelSpeedKmH > 0 {
		thresholds.MaxTravelSpeedKmH = cfg.MaxTravelSpeedKmH
	}
	if cfg.UploadsPerHour > 0 {
		thresholds.UploadsPerHour = cfg.UploadsPerHour
	}
	if cfg.UploadBytesPerHour > 0 {
		thresholds.UploadBytesPerHour = cfg.UploadBytesPerHour
	}
	if cfg.MaxSingleFileBytes > 0 {
		thresholds.MaxSingleFileBytes = cfg.MaxSingleFileBytes
	}

	return thresholds
}
