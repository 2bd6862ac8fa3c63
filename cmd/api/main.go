// Copyright (c) 2026 Workhub. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Command api is the entry point for the Workhub HTTP API server.
//
// # Startup Sequence
//
//  1. Initialize structured logger.
//  2. Load configuration from environment variables.
//  3. Connect to PostgreSQL (pgxpool).
//  4. Run database migrations (idempotent).
//  5. Connect to Redis.
//  6. Wire domain services and HTTP handlers.
//  7. Make sure an active SUPER_ADMIN exists.
//  8. Start HTTP server with graceful shutdown.
//
// No business logic lives here. All wiring is explicit constructor injection.
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

	"github.com/prometheus/client_golang/prometheus"

	"github.com/taibuivan/workhub/internal/api"
	"github.com/taibuivan/workhub/internal/platform/apperr"
	"github.com/taibuivan/workhub/internal/platform/config"
	"github.com/taibuivan/workhub/internal/platform/constants"
	"github.com/taibuivan/workhub/internal/platform/metrics"
	"github.com/taibuivan/workhub/internal/platform/migration"
	pgstore "github.com/taibuivan/workhub/internal/platform/postgres"
	redisstore "github.com/taibuivan/workhub/internal/platform/redis"
	"github.com/taibuivan/workhub/internal/platform/sec"
	"github.com/taibuivan/workhub/internal/users/account"
	"github.com/taibuivan/workhub/internal/users/auth"
	"github.com/taibuivan/workhub/internal/users/hierarchy"
)

func main() {
	// ── 1. Logger ──────────────────────────────────────────────────────────
	// Initialize first so that subsequent startup errors are structured JSON.
	log := newLogger(slog.LevelInfo)
	slog.SetDefault(log)

	log.Info("service_initializing")

	// ── 2. Configuration ──────────────────────────────────────────────────
	cfg, err := config.Load()
	must(log, err, "load configuration")

	if cfg.Debug {
		log = newLogger(slog.LevelDebug)
		slog.SetDefault(log)
		log.Debug("debug_logging_enabled")
	}

	log.Info("configuration_loaded",
		slog.String("environment", cfg.Environment),
		slog.String("port", cfg.ServerPort),
		slog.Duration("hierarchy_cache_ttl", cfg.HierarchyCacheTTL),
	)

	// Root context for startup. A deadline catches misconfiguration quickly
	// rather than hanging indefinitely.
	startupCtx, startupCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer startupCancel()

	// ── 3. PostgreSQL ─────────────────────────────────────────────────────
	pool, err := pgstore.NewPool(startupCtx, cfg.DatabaseURL, log)
	must(log, err, "connect to postgres")
	defer func() {
		log.Info("closing_postgres_pool")
		pool.Close()
	}()

	// ── 4. Migrations ─────────────────────────────────────────────────────
	must(log, migration.RunUp(cfg.DatabaseURL, cfg.MigrationPath, log), "run migrations")

	// ── 5. Redis ──────────────────────────────────────────────────────────
	rdb, err := redisstore.NewClient(startupCtx, cfg.RedisURL, log)
	must(log, err, "connect to redis")
	defer func() {
		log.Info("closing_redis_client")
		if cerr := rdb.Close(); cerr != nil {
			log.Error("redis_close_error", slog.Any("error", cerr))
		}
	}()

	// ── 6. Observability ──────────────────────────────────────────────────
	appMetrics := metrics.New(prometheus.NewRegistry())
	appMetrics.ObservePool(pool)

	// ── 7. Domain Wiring ──────────────────────────────────────────────────
	jwtSvc, err := sec.NewTokenService(cfg.JWTPrivKeyPath, cfg.JWTPubKeyPath, constants.AuthIssuer)
	must(log, err, "initialize jwt service")

	var snapshots hierarchy.SnapshotCache
	if cfg.HierarchyCacheTTL > 0 {
		snapshots = hierarchy.NewRedisSnapshotCache(rdb, cfg.HierarchyCacheTTL)
	}

	userRepository := auth.NewUserRepository(pool)
	authService := auth.NewService(userRepository, jwtSvc, cfg.AccessTokenTTL)
	accountService := account.NewService(userRepository)
	hierarchyService := hierarchy.NewService(hierarchy.NewRepository(pool), snapshots, appMetrics)

	// ── 8. SUPER_ADMIN Invariant ──────────────────────────────────────────
	promoted, err := hierarchyService.EnsureSuperAdmin(startupCtx, cfg.BootstrapSuperAdminEmail)
	switch {
	case apperr.HasCode(err, apperr.CodeLastSuperAdmin):
		log.Warn("no_super_admin", slog.String("hint", "set BOOTSTRAP_SUPER_ADMIN_EMAIL to an existing account"))
	case err != nil:
		must(log, err, "ensure super admin")
	case promoted:
		log.Info("super_admin_bootstrap_applied", slog.String("email", cfg.BootstrapSuperAdminEmail))
	}

	if _, err := hierarchyService.VerifySuperAdminCount(startupCtx); err != nil {
		log.Warn("super_admin_count_failed", slog.Any("error", err))
	}

	// ── 9. HTTP Server ────────────────────────────────────────────────────
	liveness, readiness := api.NewHealthHandlers(api.HealthDependencies{
		CheckDatabase: func(ctx context.Context) error {
			return pgstore.Ping(ctx, pool)
		},
		CheckCache: func(ctx context.Context) error {
			return redisstore.Ping(ctx, rdb)
		},
	}, log)

	handlers := api.Handlers{
		Liveness:  liveness,
		Readiness: readiness,
		Auth:      auth.NewHandler(authService),
		Account:   account.NewHandler(accountService),
		Hierarchy: hierarchy.NewHandler(hierarchyService),
		Metrics:   appMetrics,
	}

	serverCtx, serverCancel := context.WithCancel(context.Background())
	defer serverCancel()

	server := api.NewServer(serverCtx, cfg, log, jwtSvc, handlers)

	// ── 10. Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)

	serverErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Block until OS signal or server error.
	select {
	case sig := <-quit:
		log.Info("shutdown_signal_received", slog.String("signal", sig.String()))
	case err := <-serverErr:
		log.Error("server_startup_error", slog.Any("error", err))
	}

	shutdownTimeout := constants.ShutdownTimeout
	log.Info("shutting_down_server", slog.Duration("timeout", shutdownTimeout))

	if err := server.Shutdown(shutdownTimeout); err != nil {
		log.Error("shutdown_error", slog.Any("error", err))
		os.Exit(1)
	}

	log.Info("server_stopped_cleanly")
}

// newLogger builds the JSON logger every entry of which carries the app name.
func newLogger(level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	})).With(slog.String(constants.FieldApp, constants.AppName))
}

// must logs a structured fatal error and terminates the process if err is non-nil.
//
// It is limited to startup wiring. After startup, all errors are returned
// and handled explicitly.
func must(log *slog.Logger, err error, step string) {
	if err != nil {
		log.Error("startup_failure",
			slog.String("step", step),
			slog.Any("error", err),
		)
		os.Exit(1)
	}
}
