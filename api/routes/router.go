package routes

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/storefront-backend/api/controllers"
	cartcontrollers "github.com/angelmondragon/storefront-backend/api/controllers/cart"
	"github.com/angelmondragon/storefront-backend/api/middleware"
	"github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/pkg/auth/session"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	"github.com/angelmondragon/storefront-backend/pkg/redis"
)

// cacheClient is the redis surface the router needs. A nil cache disables
// idempotency replay and the redis readiness check.
type cacheClient interface {
	redis.IdempotencyStore
	Ping(ctx context.Context) error
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	cache cacheClient,
	sessions session.AccessSessionChecker,
	cartService cart.Service,
	httpMetrics *metrics.HTTPMetrics,
	gatherer prometheus.Gatherer,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.Metrics(httpMetrics),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	var cachePinger controllers.Pinger
	var idempotencyStore redis.IdempotencyStore
	if cache != nil {
		cachePinger = cache
		idempotencyStore = cache
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, cachePinger))
	})

	if gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, sessions, logg))

		// Inline so the idempotency rules see the full route pattern.
		idempotent := r.With(middleware.Idempotency(idempotencyStore, cfg.Cart.MergeIdempotencyTTL, logg))

		r.Get("/cart", cartcontrollers.CartFetch(cartService, logg))
		idempotent.Put("/cart", cartcontrollers.CartReplace(cartService, logg))
		idempotent.Post("/cart/merge", cartcontrollers.CartMerge(cartService, logg))
	})

	return r
}
