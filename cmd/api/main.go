package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"nummerwacht_backend/internal/events"
	apphttp "nummerwacht_backend/internal/http"
	"nummerwacht_backend/internal/http/router"
	"nummerwacht_backend/internal/lookups"
	"nummerwacht_backend/internal/lookups/service"
	"nummerwacht_backend/internal/profiles"
	"nummerwacht_backend/internal/scheduler"
	"nummerwacht_backend/internal/status"
	"nummerwacht_backend/internal/webhook"
	"nummerwacht_backend/platform/cache"
	"nummerwacht_backend/platform/config"
	"nummerwacht_backend/platform/db"
	"nummerwacht_backend/platform/logger"
	"nummerwacht_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	// Initialize structured logger
	log := logger.New(cfg.Env)
	log.Info("starting server", "env", cfg.Env, "addr", cfg.HTTPAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ========================================================================
	// Infrastructure Layer
	// ========================================================================

	if err := withRetry(ctx, log, "database migrations", 5, 2*time.Second, func() error {
		return db.RunMigrations(ctx, cfg, "migrations")
	}); err != nil {
		log.Error("failed to run database migrations", "error", err)
		panic("failed to run database migrations: " + err.Error())
	}
	log.Info("database migrations complete")

	var pool *pgxpool.Pool
	if err := withRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()
	log.Info("database connection established")

	// Event bus for decoupled communication between modules
	eventBus := events.NewInMemoryBus(log)

	dispatcher, closeDispatcher := initCallDispatcher(cfg, log)
	if closeDispatcher != nil {
		defer closeDispatcher()
	}

	// Shared validator instance for dependency injection
	val := validator.New()

	snapshotCache := initSnapshotCache(cfg, log)

	// ========================================================================
	// Domain Modules (Composition Root)
	// ========================================================================

	profileSvc := profiles.NewService(profiles.NewRepository(pool), eventBus, log)

	lookupsModule := lookups.NewModule(pool, dispatcher, profileSvc, eventBus, val, log)
	statusModule := status.NewModule(lookupsModule.Repository(), profileSvc, snapshotCache, cfg, cfg, log)
	webhookModule := webhook.NewModule(cfg, lookupsModule.Repository(), profileSvc, eventBus, log)

	// Snapshot cache invalidation rides on lookup/call events
	statusModule.RegisterHandlers(eventBus)

	// ========================================================================
	// HTTP Layer
	// ========================================================================

	app := &apphttp.App{
		Config:   cfg,
		Logger:   log,
		Health:   db.NewPoolAdapter(pool),
		EventBus: eventBus,
		Modules: []apphttp.Module{
			lookupsModule,
			statusModule,
			webhookModule,
		},
	}

	engine := router.New(app)

	srvErr := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.HTTPAddr)
		srvErr <- engine.Run(cfg.HTTPAddr)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received, gracefully shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = shutdownCtx
	case err := <-srvErr:
		if err != nil {
			log.Error("server error", "error", err)
			panic("server error: " + err.Error())
		}
	}
}

// initCallDispatcher builds the asynq client that hands lookups to the
// worker process. Without Redis every lookup fails fast instead of
// sitting in pending forever.
func initCallDispatcher(cfg config.SchedulerConfig, log *logger.Logger) (service.CallDispatcher, func()) {
	if cfg.GetRedisURL() == "" {
		log.Warn("REDIS_URL not configured; lookups will fail at dispatch")
		return nil, nil
	}

	client, err := scheduler.NewClient(cfg)
	if err != nil {
		log.Error("failed to initialize call dispatcher client", "error", err)
		return nil, nil
	}

	return client, func() {
		_ = client.Close()
	}
}

// initSnapshotCache prefers Redis so multiple API replicas share one
// snapshot cache; it falls back to per-process memory.
func initSnapshotCache(cfg config.CacheConfig, log *logger.Logger) cache.Cache {
	if url := cfg.GetCacheRedisURL(); url != "" {
		redisCache, err := cache.NewRedis(url)
		if err == nil {
			log.Info("snapshot cache using redis")
			return redisCache
		}
		log.Warn("snapshot cache redis unavailable, using memory", "error", err)
	}
	return cache.NewMemory()
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return errors.New(name + ": invalid retry attempts")
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return errors.New(name + ": " + lastErr.Error())
}
