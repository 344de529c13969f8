package api

import (
	"net/http"

	"github.com/ashureev/taleweaver/internal/middleware"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
)

// RouteRegistrar mounts additional routes, such as the live feed.
type RouteRegistrar interface {
	RegisterRoutes(r chi.Router)
}

// RouterConfig holds the dependencies of the HTTP surface.
type RouterConfig struct {
	Campaigns      CampaignService
	Store          Pinger
	ProviderName   string
	Live           RouteRegistrar
	AllowedOrigins []string
	RateLimiter    *middleware.RateLimiter
	Gatherer       prometheus.Gatherer

	// Static serves every path no other route matches.
	Static http.Handler
}

// NewRouter builds the chi router serving every endpoint.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(middleware.CORS(cfg.AllowedOrigins))

	NewHealthHandler(cfg.Store, cfg.ProviderName).RegisterHealth(r)
	if cfg.Gatherer != nil {
		RegisterMetrics(r, cfg.Gatherer)
	}

	r.Group(func(r chi.Router) {
		if cfg.RateLimiter != nil {
			r.Use(cfg.RateLimiter.Middleware)
		}
		NewCampaignHandler(cfg.Campaigns).RegisterRoutes(r)
		RegisterDiceRoutes(r)
	})

	if cfg.Live != nil {
		cfg.Live.RegisterRoutes(r)
	}

	if cfg.Static != nil {
		r.Handle("/*", cfg.Static)
	}

	return r
}
