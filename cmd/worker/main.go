// Package main is the entry point for the DareZone ledger worker.
//
// The worker owns everything that happens after a ledger write commits:
// it consumes reminder events and delivers pushes, tracks which challenges
// have stale aggregates, and sweeps them on a schedule to rebuild ranks,
// habit aggregates and summaries.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/darezone/darezone-ledger/config"
	statsapp "github.com/darezone/darezone-ledger/internal/application/stats"
	"github.com/darezone/darezone-ledger/internal/infrastructure/messaging"
	"github.com/darezone/darezone-ledger/internal/infrastructure/persistence/postgres"
	"github.com/darezone/darezone-ledger/internal/infrastructure/persistence/redis"
	"github.com/darezone/darezone-ledger/internal/infrastructure/scheduler"
	"github.com/darezone/darezone-ledger/internal/infrastructure/scheduler/jobs"
	"github.com/darezone/darezone-ledger/internal/infrastructure/service"
	"github.com/darezone/darezone-ledger/pkg/logger"
	"github.com/darezone/darezone-ledger/pkg/timeutil"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. CONFIGURATION
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 2. LOGGING
	// ─────────────────────────────────────────────────────────────────────────
	log := logger.New(logger.Options{
		Output: os.Stdout,
		Level:  logger.ParseLevel(cfg.Observability.LogLevel),
	})

	slogLevel := slog.LevelInfo
	if cfg.App.Debug {
		slogLevel = slog.LevelDebug
	}
	slogger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slogLevel}))

	log.Info("starting darezone ledger worker",
		logger.String("env", string(cfg.App.Environment)),
		logger.String("version", cfg.App.Version),
		logger.String("timezone", cfg.App.Timezone),
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 3. DATABASE
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("connecting to database")
	conn, err := postgres.NewConnection(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer conn.Close()

	if err := conn.Ping(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	migrator := postgres.NewMigrator(conn)
	if err := migrator.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	log.Info("database schema is up to date")

	// ─────────────────────────────────────────────────────────────────────────
	// 4. REDIS (optional)
	// ─────────────────────────────────────────────────────────────────────────
	var rankCache statsapp.RankCache
	if !cfg.Redis.Disabled {
		client, err := redis.NewClient(ctx, cfg.Redis.Config)
		if err != nil {
			log.Warn("redis unavailable, rank cache disabled", logger.Err(err))
		} else {
			defer client.Close()
			rankCache = redis.NewRankCache(client)
			log.Info("redis connection established")
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 5. EVENT BUS
	// ─────────────────────────────────────────────────────────────────────────
	bus := messaging.NewInMemoryEventBus(messaging.Config{
		AsyncMode:      true,
		WorkerPoolSize: 10,
		Logger:         slogger,
	})
	defer func() {
		log.Info("closing event bus")
		_ = bus.Close()
	}()

	// ─────────────────────────────────────────────────────────────────────────
	// 6. SERVICES
	// ─────────────────────────────────────────────────────────────────────────
	// The ledger and reminder services are driven by the API transport,
	// which is deployed separately; the worker only rebuilds aggregates.
	store := postgres.NewLedgerStore(conn)
	clock := timeutil.SystemClock{}
	statsSvc := statsapp.NewService(store, rankCache, clock, bus, log)

	// ─────────────────────────────────────────────────────────────────────────
	// 7. EVENT CONSUMERS
	// ─────────────────────────────────────────────────────────────────────────
	notifier := service.NewLogNotifier(log)
	notificationSvc := service.NewNotificationService(notifier, log, service.NotificationConfig{
		RatePerSecond: cfg.Notification.RatePerSecond,
		Burst:         cfg.Notification.Burst,
		SendTimeout:   cfg.Notification.SendTimeout,
	})
	if err := notificationSvc.Register(bus); err != nil {
		return fmt.Errorf("failed to register notification service: %w", err)
	}

	trigger := service.NewRefreshTrigger()
	if err := trigger.Register(bus); err != nil {
		return fmt.Errorf("failed to register refresh trigger: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 8. SCHEDULER
	// ─────────────────────────────────────────────────────────────────────────
	if cfg.Scheduler.Enabled {
		sched := scheduler.New(scheduler.Config{
			Logger:   slogger,
			Timezone: cfg.App.Location,
		})

		refreshJob := jobs.NewRefreshStatsJob(trigger, statsSvc, slogger, jobs.RefreshStatsConfig{
			Timeout: cfg.Scheduler.RefreshTimeout,
		})
		if err := sched.Register(refreshJob, scheduler.NewIntervalSchedule(cfg.Scheduler.RefreshInterval)); err != nil {
			return fmt.Errorf("failed to register refresh job: %w", err)
		}

		if err := sched.Start(ctx); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
		defer func() {
			log.Info("stopping scheduler")
			_ = sched.Stop()
		}()
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 9. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("darezone ledger worker is running")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("shutdown signal received", logger.String("signal", sig.String()))
	case <-ctx.Done():
		log.Info("context cancelled")
	}

	return nil
}
