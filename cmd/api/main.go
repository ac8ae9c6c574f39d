package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	httpAdapter "github.com/lorrc/trusted-invoker/internal/adapters/primary/http"
	mw "github.com/lorrc/trusted-invoker/internal/adapters/primary/http/middleware"
	"github.com/lorrc/trusted-invoker/internal/adapters/secondary/httpsclient"
	"github.com/lorrc/trusted-invoker/internal/adapters/secondary/postgres"
	"github.com/lorrc/trusted-invoker/internal/adapters/secondary/truststore"
	"github.com/lorrc/trusted-invoker/internal/auth"
	"github.com/lorrc/trusted-invoker/internal/config"
	"github.com/lorrc/trusted-invoker/internal/core/domain"
	"github.com/lorrc/trusted-invoker/internal/core/services"
	"github.com/lorrc/trusted-invoker/internal/infrastructure/logging"
)

// healthProbeUser is the identity the readiness probe uses to load the trust store.
const healthProbeUser = "health-probe"

func main() {
	// 1. Load Configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// 2. Initialize Structured Logger
	logger := logging.NewLogger(logging.Config{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		Output:      os.Stdout,
		ServiceName: cfg.App.Name,
		Environment: cfg.App.Environment,
	})

	logger.Info("starting service",
		"version", cfg.App.Version,
		"environment", cfg.App.Environment,
		"config", cfg.String(),
	)

	// 3. Initialize Database Pool
	ctx := context.Background()

	if cfg.Database.AutoMigrate {
		if err := postgres.RunMigrations(cfg.Database.MigrationsPath, cfg.Database.URL); err != nil {
			logger.Error("failed to apply migrations", "error", err)
			os.Exit(1)
		}
		logger.Info("database migrations applied", "path", cfg.Database.MigrationsPath)
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.Database.URL)
	if err != nil {
		logger.Error("failed to parse database URL", "error", err)
		os.Exit(1)
	}

	poolConfig.MaxConns = int32(cfg.Database.MaxOpenConns)
	poolConfig.MinConns = int32(cfg.Database.MaxIdleConns)
	poolConfig.MaxConnLifetime = cfg.Database.ConnMaxLifetime
	poolConfig.MaxConnIdleTime = cfg.Database.ConnMaxIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		logger.Error("database ping failed", "error", err)
		os.Exit(1)
	}
	logger.Info("database connection established")

	// 4. Identity and trust material
	tokenManager := auth.NewTokenManager(cfg.JWT.Secret, cfg.JWT.TokenTTL)
	identityResolver := auth.NewJWTIdentityResolver(tokenManager)

	trustStores, err := truststore.NewProvider(cfg.TrustStore, logger)
	if err != nil {
		logger.Error("failed to configure trust store", "error", err)
		os.Exit(1)
	}

	if !cfg.Invoker.VerifyHostname {
		logger.Warn("hostname verification disabled for outbound calls; certificate chains are still verified against the trust store",
			"endpoint", cfg.Invoker.Endpoint,
		)
	}

	// 5. Initialize Rate Limiter
	var rateLimiter *mw.RateLimiter
	if cfg.RateLimit.Enabled {
		rateLimiter = mw.NewRateLimiter(mw.RateLimiterConfig{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			BurstSize:         cfg.RateLimit.BurstSize,
			CleanupInterval:   time.Minute,
			TTL:               3 * time.Minute,
		})
		defer rateLimiter.Stop()
	}

	// 6. Dependency Injection (Wiring the Hexagon)
	errorHandler := httpAdapter.NewErrorHandler(logger)

	directory := postgres.NewUserDirectory(pool)

	userInfoService := services.NewUserInfoService(directory, logger)
	invokerService, err := services.NewAPIInvokerService(
		trustStores,
		httpsclient.NewClientFactory(cfg.Invoker.Timeout, cfg.Invoker.VerifyHostname),
		services.APIInvokerConfig{
			Endpoint:     cfg.Invoker.Endpoint,
			Timeout:      cfg.Invoker.Timeout,
			MaxBodyBytes: cfg.Invoker.MaxBodyBytes,
		},
		logger,
	)
	if err != nil {
		logger.Error("failed to configure API invoker", "error", err)
		os.Exit(1)
	}

	healthHandler := httpAdapter.NewHealthHandler(cfg.App.Version,
		httpAdapter.NamedCheck{Name: "database", Checker: directory, Critical: true},
		httpAdapter.NamedCheck{Name: "truststore", Checker: httpAdapter.HealthCheckFunc(func(ctx context.Context) error {
			_, err := trustStores.TrustStore(ctx, domain.NewIdentity(healthProbeUser))
			return err
		})},
	)

	// 7. Setup Router
	router := httpAdapter.NewRouter(httpAdapter.RouterConfig{
		Logger:           logger,
		IdentityResolver: identityResolver,
		ErrorHandler:     errorHandler,
		UserInfo:         httpAdapter.NewUserInfoHandler(userInfoService, errorHandler, logger),
		Invoker:          httpAdapter.NewInvokerHandler(invokerService, errorHandler, logger),
		Health:           healthHandler,
		RateLimiter:      rateLimiter,
		AllowedOrigins:   cfg.CORS.AllowedOrigins,
		CORSMaxAge:       cfg.CORS.MaxAge,
	})

	// 8. Start Server with Graceful Shutdown
	srv := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.Info("server starting", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	logger.Info("shutdown signal received", "signal", sig.String())

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
		os.Exit(1)
	}

	logger.Info("server shutdown complete")
}
