package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/siege-masterclass/checkout/internal/platform/httpx"
)

// RouteRegistrar registers a set of routes against the provided router.
type RouteRegistrar func(r chi.Router)

type routerConfig struct {
	basePath    string
	middlewares []func(http.Handler) http.Handler
	health      *HealthHandlers

	checkout     RouteRegistrar
	fields       RouteRegistrar
	installments RouteRegistrar
	leads        RouteRegistrar

	limiter rateLimiter
}

// Option customises the router configuration before construction.
type Option func(*routerConfig)

const (
	defaultAPIPrefix  = "/api/v1"
	defaultTimeout    = 60 * time.Second
	errorNotFoundCode = "route_not_found"
)

// NewRouter constructs the chi router with shared middleware and the checkout route groups.
func NewRouter(opts ...Option) chi.Router {
	cfg := routerConfig{
		basePath: defaultAPIPrefix,
		middlewares: []func(http.Handler) http.Handler{
			middleware.RequestID,
			middleware.RealIP,
			middleware.Timeout(defaultTimeout),
		},
	}

	for _, opt := range opts {
		opt(&cfg)
	}

	r := chi.NewRouter()

	if cfg.health == nil {
		cfg.health = NewHealthHandlers()
	}

	for _, mw := range cfg.middlewares {
		if mw != nil {
			r.Use(mw)
		}
	}

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		httpx.WriteError(req.Context(), w, httpx.NewError(errorNotFoundCode, fmt.Sprintf("no route for %s", req.URL.Path), http.StatusNotFound))
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		httpx.WriteError(req.Context(), w, httpx.NewError("method_not_allowed", fmt.Sprintf("method %s not allowed on %s", req.Method, req.URL.Path), http.StatusMethodNotAllowed))
	})

	r.Get("/healthz", cfg.health.Healthz)
	r.Get("/readyz", cfg.health.Readyz)

	r.Route(cfg.basePath, func(api chi.Router) {
		api.Use(rateLimitMutations(cfg.limiter))
		for _, registrar := range []RouteRegistrar{cfg.checkout, cfg.fields, cfg.installments, cfg.leads} {
			if registrar != nil {
				registrar(api)
			}
		}
	})

	return r
}

// WithMiddlewares appends additional global middleware to the router.
func WithMiddlewares(mw ...func(http.Handler) http.Handler) Option {
	return func(cfg *routerConfig) {
		cfg.middlewares = append(cfg.middlewares, mw...)
	}
}

// WithHealthHandlers overrides the handlers used for /healthz and /readyz endpoints.
func WithHealthHandlers(h *HealthHandlers) Option {
	return func(cfg *routerConfig) {
		cfg.health = h
	}
}

// WithCheckoutRoutes configures the registrar responsible for checkout session endpoints.
func WithCheckoutRoutes(reg RouteRegistrar) Option {
	return func(cfg *routerConfig) {
		cfg.checkout = reg
	}
}

// WithFieldRoutes configures the registrar responsible for field formatting endpoints.
func WithFieldRoutes(reg RouteRegistrar) Option {
	return func(cfg *routerConfig) {
		cfg.fields = reg
	}
}

// WithInstallmentRoutes configures the registrar responsible for installment quotes.
func WithInstallmentRoutes(reg RouteRegistrar) Option {
	return func(cfg *routerConfig) {
		cfg.installments = reg
	}
}

// WithLeadRoutes configures the registrar responsible for lead capture.
func WithLeadRoutes(reg RouteRegistrar) Option {
	return func(cfg *routerConfig) {
		cfg.leads = reg
	}
}

// WithRateLimit limits mutating API requests to perMinute per client IP. Zero disables limiting.
func WithRateLimit(perMinute int, clock func() time.Time) Option {
	return func(cfg *routerConfig) {
		cfg.limiter = newSimpleRateLimiter(perMinute, time.Minute, clock)
	}
}
