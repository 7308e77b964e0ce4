package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/utafrali/lagosbazaar/pkg/health"
	"github.com/utafrali/lagosbazaar/pkg/middleware"
)

// RouterConfig carries the cross-cutting settings of the router.
type RouterConfig struct {
	CORS           middleware.CORSConfig
	PprofCIDRs     []string
	AILimiter      *middleware.RateLimiter
	CatalogMaxAge  time.Duration
	RequestTimeout time.Duration
}

// NewRouter creates a chi router with all storefront routes registered.
func NewRouter(
	h *StorefrontHandler,
	healthHandler *health.Handler,
	cfg RouterConfig,
	logger *slog.Logger,
) http.Handler {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}
	if cfg.CatalogMaxAge <= 0 {
		cfg.CatalogMaxAge = 5 * time.Minute
	}

	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.CORS(cfg.CORS))
	r.Use(chimw.Compress(5))
	r.Use(chimw.Timeout(cfg.RequestTimeout))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.PrometheusMetrics("storefront"))
	r.Use(middleware.Tracing("storefront"))
	r.Use(middleware.RequestLogger(logger))

	// Health check endpoints
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	// Pprof debug endpoints with IP allowlist.
	middleware.RegisterPprof(r, cfg.PprofCIDRs, logger)

	r.Route("/api/v1/storefront", func(r chi.Router) {
		r.Use(ContentTypeJSON)
		r.Use(SessionFromHeader)

		// Catalog reads never change; cache them client side.
		r.Group(func(r chi.Router) {
			r.Use(middleware.CacheControl(cfg.CatalogMaxAge))
			r.Get("/categories", h.ListCategories)
			r.Get("/products/{productId}", h.GetProduct)
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.NoStore)
			r.Use(h.AdmitSession)

			r.Get("/state", h.GetState)
			r.Get("/products", h.ListProducts)
			r.Put("/filter", h.SetFilter)
			r.Post("/products/{productId}/select", h.SelectProduct)

			r.Post("/cart/items", h.AddItem)
			r.Patch("/cart/items/{productId}", h.UpdateItemQuantity)
			r.Delete("/cart/items/{productId}", h.RemoveItem)
			r.Post("/cart/open", h.OpenCart)
			r.Post("/cart/close", h.CloseCart)
			r.Post("/checkout", h.Checkout)

			r.Post("/navigate/home", h.NavigateHome)
			r.Post("/navigate/back", h.NavigateBack)

			// Generative endpoints cost money per call.
			r.Group(func(r chi.Router) {
				if cfg.AILimiter != nil {
					r.Use(cfg.AILimiter.Middleware)
				}
				r.Post("/ai-content", h.RequestAIContent)
				r.Get("/hero", h.GetHero)
			})
		})
	})

	return r
}
