package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/ghanadude-checkout/internal/cart"
	"github.com/angelmondragon/ghanadude-checkout/internal/checkout"
	"github.com/angelmondragon/ghanadude-checkout/internal/cron"
	"github.com/angelmondragon/ghanadude-checkout/pkg/config"
	"github.com/angelmondragon/ghanadude-checkout/pkg/db"
	"github.com/angelmondragon/ghanadude-checkout/pkg/instance"
	"github.com/angelmondragon/ghanadude-checkout/pkg/logger"
	"github.com/angelmondragon/ghanadude-checkout/pkg/metrics"
	"github.com/angelmondragon/ghanadude-checkout/pkg/migrate"
	"github.com/angelmondragon/ghanadude-checkout/pkg/redis"
)

const lockKeyFormat = "ghanadude:retention-worker:lock:%s"

func main() {
	once := flag.Bool("once", false, "run a single retention cycle and exit")
	flag.Parse()

	logg := logger.New(logger.Options{ServiceName: "retention-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.LoadWorker()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "retention-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	var lock cron.Lock = &cron.LocalLock{}
	if cfg.Redis.Enabled() {
		redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to bootstrap redis", err)
			os.Exit(1)
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing redis", err)
			}
		}()
		if lock, err = cron.NewRedisLock(redisClient, lockKey(cfg.App.Env), 0); err != nil {
			logg.Error(context.Background(), "failed to create retention lock", err)
			os.Exit(1)
		}
	} else {
		logg.Warn(context.Background(), "redis not configured; run a single retention worker")
	}

	registry, err := buildRegistry(cfg, logg, dbClient)
	if err != nil {
		logg.Error(context.Background(), "failed to register retention jobs", err)
		os.Exit(1)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     lock,
		Metrics:  metrics.NewRetentionJobMetrics(prometheus.DefaultRegisterer),
		Interval: cfg.Retention.Interval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create retention service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"instance": instance.ID(),
		"jobs":     len(registry.Jobs()),
	})
	if *once {
		runOnce(ctx, logg, service)
		return
	}

	logg.Info(ctx, "starting retention worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "retention worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "retention worker shutting down gracefully")
}

func buildRegistry(cfg *config.Config, logg *logger.Logger, dbClient *db.Client) (*cron.Registry, error) {
	registry := cron.NewRegistry()

	if cfg.Cart.Backend() == config.CartStoreDB && cfg.Cart.TTL > 0 {
		snapshots, err := cart.NewSnapshotRepository(dbClient.DB())
		if err != nil {
			return nil, err
		}
		job, err := cron.NewPurgeJob(cron.PurgeJobParams{
			Name:      "cart-snapshot-retention",
			Logger:    logg,
			DB:        dbClient,
			Purger:    snapshots,
			Retention: cfg.Cart.TTL,
		})
		if err != nil {
			return nil, err
		}
		if err := registry.Register(job); err != nil {
			return nil, err
		}
	}

	sessions, err := checkout.NewGormRecorder(dbClient.DB())
	if err != nil {
		return nil, err
	}
	job, err := cron.NewPurgeJob(cron.PurgeJobParams{
		Name:      "checkout-session-retention",
		Logger:    logg,
		DB:        dbClient,
		Purger:    sessions,
		Retention: cfg.Retention.SessionRetention,
	})
	if err != nil {
		return nil, err
	}
	if err := registry.Register(job); err != nil {
		return nil, err
	}
	return registry, nil
}

func lockKey(env string) string {
	if env == "" {
		env = "local"
	}
	return fmt.Sprintf(lockKeyFormat, env)
}

func runOnce(ctx context.Context, logg *logger.Logger, service *cron.Service) {
	report, err := service.RunOnce(ctx)
	switch {
	case errors.Is(err, cron.ErrLockHeld):
		logg.Warn(ctx, "another retention worker holds the lock; nothing to do")
	case err != nil:
		logg.Error(ctx, "retention cycle failed", err)
		os.Exit(1)
	default:
		logg.Info(logg.WithFields(ctx, map[string]any{
			"jobs":   report.Jobs,
			"purged": report.Purged,
		}), "retention cycle complete")
	}
}
