package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/multierr"

	"github.com/angelmondragon/ghanadude-checkout/api/routes"
	"github.com/angelmondragon/ghanadude-checkout/internal/cart"
	"github.com/angelmondragon/ghanadude-checkout/internal/checkout"
	"github.com/angelmondragon/ghanadude-checkout/internal/facade"
	"github.com/angelmondragon/ghanadude-checkout/internal/payment"
	"github.com/angelmondragon/ghanadude-checkout/pkg/config"
	"github.com/angelmondragon/ghanadude-checkout/pkg/db"
	"github.com/angelmondragon/ghanadude-checkout/pkg/instance"
	"github.com/angelmondragon/ghanadude-checkout/pkg/logger"
	"github.com/angelmondragon/ghanadude-checkout/pkg/metrics"
	"github.com/angelmondragon/ghanadude-checkout/pkg/migrate"
	"github.com/angelmondragon/ghanadude-checkout/pkg/redis"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	if err := run(cfg, logg); err != nil {
		logg.Error(context.Background(), "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logg *logger.Logger) (err error) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, dbClient.Close()) }()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		return err
	}

	var redisClient *redis.Client
	if cfg.Redis.Enabled() {
		if redisClient, err = redis.New(ctx, cfg.Redis, logg); err != nil {
			return err
		}
		defer func() { err = multierr.Append(err, redisClient.Close()) }()
	} else {
		logg.Warn(ctx, "redis not configured; idempotency and rate limiting disabled")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	cartMetrics := metrics.NewCartMetrics(registry)
	checkoutMetrics := metrics.NewCheckoutMetrics(registry)

	persister, err := cartPersister(cfg, dbClient, redisClient)
	if err != nil {
		return err
	}
	carts, err := cart.NewManager(persister, cart.Options{Logger: logg, Metrics: cartMetrics})
	if err != nil {
		return err
	}

	backend, err := facade.NewClient(cfg.Facade, nil, logg)
	if err != nil {
		return err
	}

	deps := checkout.Dependencies{
		Backend:  backend,
		Observer: checkout.NewObserver(checkoutMetrics, logg),
		Logger:   logg,
	}
	if gateway, gwErr := payment.NewGateway(ctx, cfg.Payment, logg); gwErr != nil {
		logg.Warn(logg.WithField(ctx, "reason", gwErr.Error()), "payment gateway disabled; card orders need a backend payment url")
	} else {
		deps.Gateway = gateway
	}
	if deps.Recorder, err = checkout.NewGormRecorder(dbClient.DB()); err != nil {
		return err
	}

	pointValue, err := cfg.Checkout.PointValue()
	if err != nil {
		return err
	}
	sessions, err := checkout.NewRegistry(carts, deps, checkout.Settings{
		SubmitTimeout: cfg.Checkout.SubmitTimeout,
		PointValue:    pointValue,
		VerifyStock:   cfg.FeatureFlags.VerifyStock,
	})
	if err != nil {
		return err
	}

	addr := ":" + cfg.App.Port
	if port := os.Getenv("PORT"); port != "" {
		addr = ":" + port
	}
	logCtx := logg.WithFields(ctx, map[string]any{
		"env":        cfg.App.Env,
		"addr":       addr,
		"instance":   instance.ID(),
		"cart_store": cfg.Cart.Backend(),
	})
	logg.Info(logCtx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(cfg, logg, routes.Dependencies{
			DB:       dbClient,
			Redis:    redisClient,
			Facade:   backend,
			Carts:    carts,
			Stock:    backend,
			Sessions: sessions,
			Rewards:  backend,
			Gatherer: registry,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}

	logg.Info(logCtx, "shutting down api server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func cartPersister(cfg *config.Config, dbClient *db.Client, redisClient *redis.Client) (cart.Persister, error) {
	switch cfg.Cart.Backend() {
	case config.CartStoreRedis:
		if redisClient == nil {
			return nil, errors.New("cart store redis requires GHANADUDE_REDIS_URL or GHANADUDE_REDIS_ADDR")
		}
		return cart.NewRedisPersister(redisClient, cfg.Cart.TTL)
	case config.CartStoreDB:
		return cart.NewSnapshotRepository(dbClient.DB())
	default:
		return cart.NewMemoryPersister(), nil
	}
}
