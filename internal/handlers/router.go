package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/personaliza/api/internal/platform/httpx"
)

// RouteRegistrar adds the routes of one area to a chi group.
type RouteRegistrar func(r chi.Router)

// Middleware wraps an http.Handler.
type Middleware = func(http.Handler) http.Handler

const (
	defaultAPIPrefix  = "/api/v1"
	defaultTimeout    = 60 * time.Second
	errorNotFoundCode = "route_not_found"
)

// Route groups mounted under the API prefix, in mount order.
const (
	groupMe       = "me"
	groupCart     = "cart"
	groupCheckout = "checkout"
	groupOrders   = "orders"
	groupShipping = "shipping"
	groupAdmin    = "admin"
	groupWebhooks = "webhooks"
	groupInternal = "internal"
)

var routeGroups = []string{groupMe, groupCart, groupCheckout, groupOrders, groupShipping, groupAdmin, groupWebhooks, groupInternal}

type routeGroup struct {
	registrar   RouteRegistrar
	middlewares []Middleware
}

type routerConfig struct {
	basePath    string
	middlewares []Middleware
	health      *HealthHandlers
	groups      map[string]*routeGroup
}

func (cfg *routerConfig) group(name string) *routeGroup {
	g, ok := cfg.groups[name]
	if !ok {
		g = &routeGroup{}
		cfg.groups[name] = g
	}
	return g
}

// Option customises the router.
type Option func(*routerConfig)

// NewRouter builds the API router. Groups without a registrar answer 501 so clients can tell a
// disabled area from a missing route.
func NewRouter(opts ...Option) chi.Router {
	cfg := routerConfig{
		basePath:    defaultAPIPrefix,
		middlewares: []Middleware{middleware.RequestID, middleware.RealIP, middleware.Timeout(defaultTimeout)},
		groups:      map[string]*routeGroup{},
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.health == nil {
		cfg.health = NewHealthHandlers()
	}

	r := chi.NewRouter()
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
		for _, name := range routeGroups {
			g := cfg.group(name)
			api.Route("/"+name, func(sub chi.Router) {
				for _, mw := range g.middlewares {
					if mw != nil {
						sub.Use(mw)
					}
				}
				if g.registrar == nil {
					disabledGroup(sub, name)
					return
				}
				g.registrar(sub)
			})
		}
	})
	return r
}

func disabledGroup(r chi.Router, name string) {
	handler := func(w http.ResponseWriter, req *http.Request) {
		httpx.WriteError(req.Context(), w, httpx.NewError("not_implemented", fmt.Sprintf("%s routes are not enabled", name), http.StatusNotImplemented))
	}
	r.HandleFunc("/", handler)
	r.HandleFunc("/*", handler)
}

// WithMiddlewares appends global middleware.
func WithMiddlewares(mw ...Middleware) Option {
	return func(cfg *routerConfig) { cfg.middlewares = append(cfg.middlewares, mw...) }
}

// WithHealthHandlers replaces the /healthz and /readyz handlers.
func WithHealthHandlers(h *HealthHandlers) Option {
	return func(cfg *routerConfig) { cfg.health = h }
}

func withGroupRoutes(name string, reg RouteRegistrar) Option {
	return func(cfg *routerConfig) { cfg.group(name).registrar = reg }
}

func withGroupMiddlewares(name string, mw []Middleware) Option {
	return func(cfg *routerConfig) {
		g := cfg.group(name)
		g.middlewares = append(g.middlewares, mw...)
	}
}

// WithMeRoutes mounts buyer profile routes (saved addresses) under /me.
func WithMeRoutes(reg RouteRegistrar) Option { return withGroupRoutes(groupMe, reg) }

// WithCartRoutes mounts the server cart under /cart.
func WithCartRoutes(reg RouteRegistrar) Option { return withGroupRoutes(groupCart, reg) }

// WithCheckoutRoutes mounts order placement under /checkout.
func WithCheckoutRoutes(reg RouteRegistrar) Option { return withGroupRoutes(groupCheckout, reg) }

// WithOrderRoutes mounts buyer order, payment and status routes under /orders.
func WithOrderRoutes(reg RouteRegistrar) Option { return withGroupRoutes(groupOrders, reg) }

// WithShippingRoutes mounts shipping quotes under /shipping.
func WithShippingRoutes(reg RouteRegistrar) Option { return withGroupRoutes(groupShipping, reg) }

// WithAdminRoutes mounts the back-office order console and catalog lifecycle under /admin.
func WithAdminRoutes(reg RouteRegistrar) Option { return withGroupRoutes(groupAdmin, reg) }

// WithAdminMiddlewares guards the /admin group, typically with staff role checks.
func WithAdminMiddlewares(mw ...Middleware) Option { return withGroupMiddlewares(groupAdmin, mw) }

// WithWebhookRoutes mounts payment gateway callbacks under /webhooks.
func WithWebhookRoutes(reg RouteRegistrar) Option { return withGroupRoutes(groupWebhooks, reg) }

// WithWebhookMiddlewares wraps the /webhooks group.
func WithWebhookMiddlewares(mw ...Middleware) Option {
	return withGroupMiddlewares(groupWebhooks, mw)
}

// WithInternalRoutes mounts scheduler-only routes such as payment reconciliation under /internal.
func WithInternalRoutes(reg RouteRegistrar) Option { return withGroupRoutes(groupInternal, reg) }

// WithInternalMiddlewares guards the /internal group, typically with OIDC.
func WithInternalMiddlewares(mw ...Middleware) Option {
	return withGroupMiddlewares(groupInternal, mw)
}

// CombineRoutes registers several registrars on the same group, skipping nil ones.
func CombineRoutes(regs ...RouteRegistrar) RouteRegistrar {
	return func(r chi.Router) {
		for _, reg := range regs {
			if reg != nil {
				reg(r)
			}
		}
	}
}
