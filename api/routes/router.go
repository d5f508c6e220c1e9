package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/storefront-backend/api/controllers"
	"github.com/angelmondragon/storefront-backend/api/middleware"
	"github.com/angelmondragon/storefront-backend/internal/consistency"
	products "github.com/angelmondragon/storefront-backend/internal/products"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	pkgredis "github.com/angelmondragon/storefront-backend/pkg/redis"
)

// Params collects what the router needs. Redis and Gatherer may be nil.
type Params struct {
	Config      *config.Config
	Logger      *logger.Logger
	Products    products.Service
	Repair      consistency.Service
	Ready       map[string]controllers.Pinger
	Idempotency pkgredis.IdempotencyStore
	HTTPMetrics *metrics.HTTPMetrics
	Gatherer    prometheus.Gatherer
}

func NewRouter(p Params) http.Handler {
	cfg, logg := p.Config, p.Logger
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.Metrics(p.HTTPMetrics),
		middleware.CORS(cfg.HTTP.CORSOrigins),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, p.Ready))
	})
	if p.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(p.Gatherer))
	}

	maxUpload := cfg.Staging.MaxUploadBytes()
	r.Route("/api/admin/v1", func(r chi.Router) {
		if cfg.HTTP.RequestTimeout > 0 {
			r.Use(chimiddleware.Timeout(cfg.HTTP.RequestTimeout))
		}

		r.Route("/products", func(r chi.Router) {
			r.With(middleware.Idempotency(p.Idempotency, cfg.HTTP.IdempotencyTTL, maxUpload, logg)).
				Post("/", controllers.AdminCreateProduct(p.Products, maxUpload, logg))
			r.Get("/{productId}", controllers.AdminGetProduct(p.Products, logg))
			r.Patch("/{productId}", controllers.AdminUpdateProduct(p.Products, maxUpload, logg))
			r.Delete("/{productId}", controllers.AdminDeleteProduct(p.Products, logg))
		})

		r.Post("/maintenance/repair-categories", controllers.AdminRepairCategories(p.Repair, logg))
	})

	return r
}
