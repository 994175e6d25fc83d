package routes

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/ghanadude-checkout/api/controllers"
	"github.com/angelmondragon/ghanadude-checkout/api/middleware"
	"github.com/angelmondragon/ghanadude-checkout/pkg/config"
	"github.com/angelmondragon/ghanadude-checkout/pkg/logger"
	"github.com/angelmondragon/ghanadude-checkout/pkg/redis"
)

// Dependencies are the services the HTTP surface is built on. DB, Redis,
// Facade and Stock may be nil; Gatherer defaults to the global registry.
type Dependencies struct {
	DB       controllers.Pinger
	Redis    *redis.Client
	Facade   controllers.Pinger
	Carts    controllers.CartStores
	Stock    controllers.StockChecker
	Sessions controllers.CheckoutSessions
	Rewards  controllers.RewardSource
	Gatherer prometheus.Gatherer
	Now      func() time.Time
}

func NewRouter(cfg *config.Config, logg *logger.Logger, deps Dependencies) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	checks := []controllers.ReadinessCheck{
		{Name: "db", Pinger: deps.DB},
		{Name: "facade", Pinger: deps.Facade},
	}

	// a nil *redis.Client must not reach the interface-typed middleware params
	var (
		idempotencyStore redis.IdempotencyStore
		limiter          middleware.RateLimitStore
	)
	if deps.Redis != nil {
		idempotencyStore = deps.Redis
		limiter = deps.Redis
		checks = append(checks, controllers.ReadinessCheck{Name: "redis", Pinger: deps.Redis})
	}

	var stock controllers.StockChecker
	if cfg.FeatureFlags.VerifyStock && deps.Stock != nil {
		stock = deps.Stock
	}

	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, checks...))
	})
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	checkoutPolicy := middleware.NewRateLimitPolicy(
		"checkout",
		cfg.RateLimit.CheckoutWindow,
		cfg.RateLimit.CheckoutLimit,
	)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Owner(cfg.JWT, logg))

		r.Get("/cart", controllers.CartFetch(deps.Carts, logg))
		r.Delete("/cart", controllers.CartClear(deps.Carts, logg))
		r.Post("/cart/items", controllers.CartAddItem(deps.Carts, stock, logg))
		r.Put("/cart/items", controllers.CartSetQuantity(deps.Carts, logg))
		r.Delete("/cart/items", controllers.CartRemoveItem(deps.Carts, logg))
		r.Post("/cart/items/decrement", controllers.CartDecrementItem(deps.Carts, logg))

		r.Get("/rewards", controllers.RewardsFetch(deps.Rewards, deps.Now, logg))

		r.Get("/checkout", controllers.CheckoutStatus(deps.Sessions, logg))
		r.With(
			middleware.RateLimit(checkoutPolicy, limiter, logg, http.MethodPost),
			middleware.Idempotency(idempotencyStore, cfg.Checkout.IdempotencyTTL, logg),
		).Post("/checkout", controllers.CheckoutSubmit(deps.Sessions, cfg.Checkout.SubmitTimeout, logg))
		r.Post("/checkout/preview", controllers.CheckoutPreview(deps.Sessions, logg))
		r.Post("/checkout/abandon", controllers.CheckoutAbandon(deps.Sessions, logg))
		r.Post("/checkout/payment/navigation", controllers.PaymentNavigation(deps.Sessions, logg))
		r.Post("/checkout/payment/success", controllers.PaymentSuccess(deps.Sessions, logg))
		r.Post("/checkout/payment/cancel", controllers.PaymentCancel(deps.Sessions, logg))
		r.Post("/checkout/payment/failure", controllers.PaymentFailure(deps.Sessions, logg))
	})

	return r
}
