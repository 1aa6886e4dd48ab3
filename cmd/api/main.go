package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"leadstats_backend/internal/calendar"
	"leadstats_backend/internal/crm"
	apphttp "leadstats_backend/internal/http"
	"leadstats_backend/internal/http/router"
	"leadstats_backend/internal/scheduler"
	"leadstats_backend/internal/stats"
	"leadstats_backend/platform/cache"
	"leadstats_backend/platform/config"
	"leadstats_backend/platform/db"
	"leadstats_backend/platform/logger"
	"leadstats_backend/platform/validator"

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

	// Redis-backed stats cache. Optional: a nil cache degrades to
	// recomputing every request.
	statsCache, err := cache.New(cfg, log)
	if err != nil {
		log.Warn("stats cache unavailable, continuing without caching", "error", err)
	}
	if statsCache != nil {
		defer statsCache.Close()
	}

	// Shared validator instance for dependency injection
	val := validator.New()

	// ========================================================================
	// Domain Layer
	// ========================================================================

	creds := crm.NewCredentialManager(cfg, log)
	crmClient := crm.NewClient(cfg, creds, log)
	cal := calendar.New(cfg.GetBusinessUTCOffsetMinutes())

	statsModule := stats.NewModule(pool, crmClient, cal, statsCache, val, log)

	// Optional on-demand sync trigger. The periodic sync itself runs in
	// the scheduler binary.
	if cfg.GetRedisURL() != "" {
		syncClient, err := scheduler.NewClient(cfg)
		if err != nil {
			log.Warn("mirror sync trigger unavailable", "error", err)
		} else {
			defer func() { _ = syncClient.Close() }()
			if err := syncClient.TriggerMirrorSync(ctx, "startup"); err != nil {
				log.Warn("failed to enqueue startup mirror sync", "error", err)
			}
		}
	} else {
		log.Warn("REDIS_URL not configured; mirror sync disabled")
	}

	// ========================================================================
	// HTTP Layer
	// ========================================================================

	app := &apphttp.App{
		Config: cfg,
		Logger: log,
		Health: db.NewPoolAdapter(pool),
		Modules: []apphttp.Module{
			statsModule,
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
