package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/arklim/api-starter/internal/core/domain"
	"github.com/arklim/api-starter/internal/core/port"
	"github.com/arklim/api-starter/internal/infra/config"
	"github.com/arklim/api-starter/internal/infra/database"
	kafkainfra "github.com/arklim/api-starter/internal/infra/kafka"
	"github.com/arklim/api-starter/internal/infra/logger"
	redisinfra "github.com/arklim/api-starter/internal/infra/redis"
	"github.com/arklim/api-starter/internal/infra/security"
	"github.com/arklim/api-starter/internal/infra/telemetry"
	postgresrepo "github.com/arklim/api-starter/internal/repository/postgres"
	redisrepo "github.com/arklim/api-starter/internal/repository/redis"
	"github.com/arklim/api-starter/internal/transport/http/middleware"
	"github.com/arklim/api-starter/internal/transport/http/routes"
	"github.com/arklim/api-starter/internal/usecase"
)

// Application owns the wired service graph and the HTTP server lifecycle.
type Application struct {
	cfg       *config.AppConfig
	engine    *gin.Engine
	logger    *zap.Logger
	pool      *pgxpool.Pool
	redis     *redisinfra.Client
	telemetry *telemetry.Provider
}

// New builds the full dependency graph from configuration: stores,
// crypto, services, and the HTTP engine. Postgres and Redis must be
// reachable; Kafka degrades to a logging stub when unavailable.
func New(ctx context.Context, cfg *config.AppConfig) (*Application, error) {
	log, err := logger.New(cfg.App.Env)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	tel, err := telemetry.Attach(ctx, cfg, log)
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}

	pool, err := database.NewPostgresPool(ctx, cfg.Postgres, log)
	if err != nil {
		return nil, fmt.Errorf("init postgres: %w", err)
	}

	codec, err := security.NewTokenCodec(security.CodecOptions{
		Secret:     []byte(cfg.JWT.Secret),
		Issuer:     cfg.JWT.Issuer,
		Audience:   cfg.JWT.Audience,
		AccessTTL:  cfg.JWT.AccessTokenTTL,
		RefreshTTL: cfg.JWT.RefreshTokenTTL,
	})
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("init token codec: %w", err)
	}

	hasher, err := security.NewArgon2Hasher(port.Argon2Params{
		Memory:      cfg.Argon2.Memory,
		Iterations:  cfg.Argon2.Iterations,
		Parallelism: cfg.Argon2.Parallelism,
		SaltLength:  cfg.Argon2.SaltLength,
		KeyLength:   cfg.Argon2.KeyLength,
	})
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("init password hasher: %w", err)
	}

	redisClient, err := redisinfra.NewClient(cfg.Redis, log)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("init redis: %w", err)
	}

	repos := postgresrepo.NewRepositories(pool)

	refreshTokens := redisrepo.NewRefreshTokenRepository(redisClient.Client(), cfg.Redis.RefreshTokenPrefix)
	blacklist := redisrepo.NewBlacklistRepository(redisClient.Client(), cfg.Redis.BlacklistPrefix)
	sessions := redisrepo.NewSessionRepository(redisClient.Client(), cfg.Redis.SessionPrefix)

	rateLimitWindow := cfg.RateLimit.WindowDuration
	if rateLimitWindow <= 0 {
		rateLimitWindow = time.Minute
	}
	rateLimitStore := redisrepo.NewRateLimitRepository(redisClient.Client(), redisrepo.SlidingWindowConfig{
		KeyPrefix: "starter:rate-limit",
		TTL:       rateLimitWindow * 2,
	})
	rateLimiter := middleware.NewRateLimiter(rateLimitStore, log)

	var eventPublisher port.EventPublisher
	if len(cfg.Kafka.Brokers) > 0 {
		kafkaProducer, err := kafkainfra.NewProducer(cfg.Kafka, log)
		if err != nil {
			log.Warn("failed to init kafka producer, using stub publisher", zap.Error(err))
			eventPublisher = kafkainfra.NewStubPublisher(log)
		} else {
			eventPublisher = kafkainfra.NewEventPublisher(kafkaProducer, cfg.App, log)
			log.Info("kafka event publisher initialized", zap.Strings("brokers", cfg.Kafka.Brokers))
		}
	} else {
		log.Info("kafka brokers not configured, using stub publisher")
		eventPublisher = kafkainfra.NewStubPublisher(log)
	}

	passwordPolicy := security.NewPasswordPolicy()
	degradation := domain.NewDegradationPolicy(domain.ParseDegradationMode(cfg.Revocation.DegradationPolicy))

	accessService := usecase.NewAccessService(repos.Users, repos.Roles, repos.Permissions)
	authService := usecase.NewAuthService(
		repos.Users,
		repos.Roles,
		refreshTokens,
		blacklist,
		sessions,
		codec,
		hasher,
		passwordPolicy,
		accessService,
		eventPublisher,
		degradation,
		log,
	).WithRevocationCheckTimeout(cfg.Revocation.CheckTimeout)

	userService := usecase.NewUserService(repos.Users, repos.Roles, hasher, passwordPolicy, eventPublisher, log)
	roleService := usecase.NewRoleService(repos.Roles, repos.Users, repos.Permissions, eventPublisher, log)
	permissionService := usecase.NewPermissionService(repos.Permissions, log)

	engine := routes.Register(routes.Dependencies{
		Config:      cfg,
		Logger:      log,
		RateLimiter: rateLimiter,
		Database:    pool,
		Cache:       redisClient,
		Services: routes.ServiceSet{
			Auth:        authService,
			Access:      accessService,
			Users:       userService,
			Roles:       roleService,
			Permissions: permissionService,
		},
	})

	return &Application{
		cfg:       cfg,
		engine:    engine,
		logger:    log,
		pool:      pool,
		redis:     redisClient,
		telemetry: tel,
	}, nil
}

// Run serves HTTP until the context is canceled or the server fails,
// then shuts down gracefully and releases every held resource.
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
		if a.telemetry != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = a.telemetry.Shutdown(shutdownCtx)
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

	a.logger.Info("starting API server",
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
