// Copyright (c) 2026 PronounDB. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Command api is the entry point for the PronounDB HTTP API server.
//
// # Startup Sequence
//
//  1. Initialize structured logger.
//  2. Load configuration from environment variables.
//  3. Connect to PostgreSQL (pgxpool).
//  4. Connect to Redis when REDIS_URL is set, else keep flow state in memory.
//  5. Run database migrations (idempotent).
//  6. Wire HTTP handlers.
//  7. Start HTTP server with graceful shutdown.
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
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pronoundb/pronoundb/internal/api"
	"github.com/pronoundb/pronoundb/internal/lookup"
	"github.com/pronoundb/pronoundb/internal/oauth"
	"github.com/pronoundb/pronoundb/internal/platform/config"
	"github.com/pronoundb/pronoundb/internal/platform/constants"
	"github.com/pronoundb/pronoundb/internal/platform/metrics"
	"github.com/pronoundb/pronoundb/internal/platform/middleware"
	"github.com/pronoundb/pronoundb/internal/platform/migration"
	pgstore "github.com/pronoundb/pronoundb/internal/platform/postgres"
	redisstore "github.com/pronoundb/pronoundb/internal/platform/redis"
	"github.com/pronoundb/pronoundb/internal/platform/sec"
	"github.com/pronoundb/pronoundb/internal/platform/statestore"
	"github.com/pronoundb/pronoundb/internal/users/account"
	"github.com/pronoundb/pronoundb/internal/users/auth"
)

// stores groups the short-lived state shared by request handlers.
type stores struct {
	oauthStates statestore.Store[time.Time]
	pkce        statestore.Store[string]
	csrf        statestore.Store[string]
	stats       statestore.Store[account.Stats]
	closers     []func()
}

func main() {
	// ── 1. Logger ──────────────────────────────────────────────────────────
	// Initialize first so that subsequent startup errors are structured JSON.
	log := newLogger(slog.LevelInfo)
	slog.SetDefault(log)

	log.Info("service_initializing", slog.String("version", constants.AppVersion))

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
		slog.String("public_url", cfg.PublicURL),
	)

	// Root context for startup. Use a 30s deadline so misconfiguration is
	// caught quickly rather than hanging indefinitely.
	startupCtx, startupCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer startupCancel()

	// ── 3. PostgreSQL ─────────────────────────────────────────────────────
	pool, err := pgstore.NewPool(startupCtx, cfg.DatabaseURL, log)
	must(log, err, "connect to postgres")
	defer func() {
		log.Info("postgres_pool_closing")
		pool.Close()
	}()

	healthDeps := api.HealthDependencies{
		CheckDatabase: func(ctx context.Context) error { return pgstore.Ping(ctx, pool) },
	}

	// ── 4. State Stores ───────────────────────────────────────────────────
	var state stores
	if cfg.RedisURL != "" {
		rdb, err := redisstore.NewClient(startupCtx, cfg.RedisURL, log)
		must(log, err, "connect to redis")
		defer func() {
			log.Info("redis_client_closing")
			if cerr := rdb.Close(); cerr != nil {
				log.Error("redis_close_failed", slog.Any("error", cerr))
			}
		}()

		state = stores{
			oauthStates: statestore.NewRedis[time.Time](rdb, constants.RedisPrefixOAuthState),
			pkce:        statestore.NewRedis[string](rdb, constants.RedisPrefixOAuthPKCE),
			csrf:        statestore.NewRedis[string](rdb, constants.RedisPrefixCsrf),
			stats:       statestore.NewRedis[account.Stats](rdb, constants.RedisPrefixStats),
		}
		healthDeps.CheckCache = func(ctx context.Context) error { return redisstore.Ping(ctx, rdb) }
	} else {
		log.Warn("redis_disabled", slog.String("reason", "REDIS_URL not set, flow state is kept in process memory"))
		state = newMemoryStores()
	}
	defer state.close()

	// ── 5. Migrations ─────────────────────────────────────────────────────
	must(log, migration.RunUp(cfg.DatabaseURL, cfg.MigrationPath, log), "run migrations")

	// ── 6. Metrics ────────────────────────────────────────────────────────
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector, err := metrics.New(registry)
	must(log, err, "register metrics")

	// ── 7. Domain Wiring ──────────────────────────────────────────────────
	tokens, err := sec.NewSessionTokens(cfg.SecretKey, constants.SessionTTL)
	must(log, err, "initialize session tokens")

	accountRepository := account.NewPostgresRepository(pool, collector)
	accountService := account.NewService(accountRepository, log)
	authService := auth.NewService(tokens, state.csrf, accountService, cfg.IsProduction(), log)
	lookupService := lookup.NewService(accountRepository, state.stats, log)

	providers := oauth.NewRegistryFromConfig(cfg)
	log.Info("oauth_providers_enabled", slog.Any("platforms", providers.Platforms()))

	engine := oauth.NewEngine(oauth.EngineConfig{
		Registry:  providers,
		States:    state.oauthStates,
		Verifiers: state.pkce,
		PublicURL: cfg.PublicURL,
		Secure:    cfg.IsProduction(),
		Logger:    log,
	})

	liveness, readiness := api.NewHealthHandlers(healthDeps, log)

	handlers := api.Handlers{
		Liveness:  liveness,
		Readiness: readiness,
		Metrics:   promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		Auth:      auth.NewHandler(authService),
		Account:   account.NewHandler(accountService, authService),
		OAuth:     oauth.NewHandler(engine, accountService, authService, collector),
		Lookup:    lookup.NewHandler(lookupService, authService, collector),
	}

	// ── 8. HTTP Server ────────────────────────────────────────────────────
	runCtx, runCancel := context.WithCancel(context.Background())
	defer runCancel()

	proxies, err := middleware.ParseProxyTrust(cfg.TrustedProxies)
	must(log, err, "parse trusted proxies")

	limiter := middleware.NewRateLimiter(constants.DefaultRateLimitRPS, constants.DefaultRateLimitBurst, proxies)
	go limiter.Run(runCtx)

	server := api.NewServer(log, api.Options{
		Port:     cfg.ServerPort,
		Verifier: tokens,
		Limiter:  limiter,
		Proxies:  proxies,
	}, handlers)

	// ── 9. Graceful Shutdown ──────────────────────────────────────────────
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
		log.Error("server_startup_failed", slog.Any("error", err))
	}

	// Give in-flight requests enough time to complete.
	shutdownTimeout := constants.ShutdownTimeout
	log.Info("server_shutting_down", slog.Duration("timeout", shutdownTimeout))

	if err := server.Shutdown(shutdownTimeout); err != nil {
		log.Error("shutdown_failed", slog.Any("error", err))
		return
	}

	log.Info("server_stopped")
}

func newLogger(level slog.Level) *slog.Logger {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	return slog.New(handler).With(slog.String("app", constants.AppName))
}

func newMemoryStores() stores {
	oauthStates := statestore.NewMemory[time.Time]()
	pkce := statestore.NewMemory[string]()
	csrf := statestore.NewMemory[string]()
	stats := statestore.NewMemory[account.Stats]()

	return stores{
		oauthStates: oauthStates,
		pkce:        pkce,
		csrf:        csrf,
		stats:       stats,
		closers:     []func(){oauthStates.Close, pkce.Close, csrf.Close, stats.Close},
	}
}

func (s stores) close() {
	for _, closer := range s.closers {
		closer()
	}
}

// must logs a structured fatal error and terminates the process if err is non-nil.
//
// It is intentionally limited to startup wiring. After startup, all errors
// must be returned and handled explicitly (never panic).
func must(log *slog.Logger, err error, context string) {
	if err != nil {
		log.Error("startup_failed",
			slog.String("context", context),
			slog.Any("error", err),
		)
		os.Exit(1)
	}
}
