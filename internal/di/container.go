package di

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/personaliza/api/internal/payments"
	"github.com/personaliza/api/internal/platform/config"
	"github.com/personaliza/api/internal/platform/observability"
	"github.com/personaliza/api/internal/repositories"
	"github.com/personaliza/api/internal/services"
)

// Services bundles the service-layer contracts that handlers rely upon. Concrete implementations
// are assembled via dependency injection in NewContainer.
type Services struct {
	Orders    services.OrderService
	Checkout  services.CheckoutService
	Payments  services.PaymentService
	Cart      services.CartService
	Shipping  services.ShippingService
	Addresses services.AddressService
	Catalog   services.CatalogLifecycleService
	System    services.SystemService
}

// Dependencies carries the non-repository collaborators shared by services.
type Dependencies struct {
	Gateway payments.Gateway
	Events  services.OrderEventPublisher
	Images  services.ImageRemover
	Metrics *observability.Metrics
	Logger  *zap.Logger
	Build   services.BuildInfo
	Clock   func() time.Time
}

// Container wires repositories, services, and background infrastructure for runtime use.
type Container struct {
	Config       config.Config
	Repositories repositories.Registry
	Services     Services
}

// NewContainer constructs the runtime dependencies. Production wiring passes the registry from
// OpenInfrastructure, while tests can supply in-memory registries.
func NewContainer(ctx context.Context, cfg config.Config, reg repositories.Registry, deps Dependencies) (*Container, error) {
	if reg == nil {
		return nil, errors.New("repositories registry is required")
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}

	svc, err := buildServices(ctx, reg, cfg, deps)
	if err != nil {
		return nil, err
	}

	return &Container{
		Config:       cfg,
		Repositories: reg,
		Services:     svc,
	}, nil
}

// Close releases resources such as repository clients, background workers, or caches.
func (c *Container) Close(ctx context.Context) error {
	if c == nil || c.Repositories == nil {
		return nil
	}
	return c.Repositories.Close(ctx)
}

func buildServices(_ context.Context, reg repositories.Registry, cfg config.Config, deps Dependencies) (Services, error) {
	var svc Services
	logFor := func(name string) observability.LogFunc {
		return observability.ServiceLogger(deps.Logger.Named(name))
	}

	if healthRepo := reg.Health(); healthRepo != nil {
		systemSvc, err := services.NewSystemService(services.SystemServiceDeps{
			HealthRepository: healthRepo,
			Orders:           reg.Orders(),
			Clock:            deps.Clock,
			Build:            deps.Build,
		})
		if err != nil {
			return Services{}, fmt.Errorf("build system service: %w", err)
		}
		svc.System = systemSvc
	}

	rates, err := services.LoadShippingRates(cfg.Shipping.RatesFile)
	if err != nil {
		return Services{}, fmt.Errorf("build shipping service: %w", err)
	}
	shippingSvc, err := services.NewShippingService(services.ShippingServiceDeps{
		Rates:              rates,
		FreeThresholdCents: cfg.Shipping.FreeThresholdCents,
		PickupName:         cfg.Shipping.PickupName,
		PickupDays:         cfg.Shipping.PickupPreparationDays,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build shipping service: %w", err)
	}
	svc.Shipping = shippingSvc

	if cartRepo := reg.Carts(); cartRepo != nil {
		cartSvc, err := services.NewCartService(services.CartServiceDeps{
			Repository: cartRepo,
			Clock:      deps.Clock,
			Logger:     logFor("cart"),
		})
		if err != nil {
			return Services{}, fmt.Errorf("build cart service: %w", err)
		}
		svc.Cart = cartSvc
	}

	if addressRepo := reg.Addresses(); addressRepo != nil {
		addressSvc, err := services.NewAddressService(services.AddressServiceDeps{
			Repository: addressRepo,
			Clock:      deps.Clock,
			Logger:     logFor("address"),
		})
		if err != nil {
			return Services{}, fmt.Errorf("build address service: %w", err)
		}
		svc.Addresses = addressSvc
	}

	if catalogRepo := reg.Catalog(); catalogRepo != nil {
		catalogSvc, err := services.NewCatalogLifecycleService(services.CatalogLifecycleServiceDeps{
			Repository: catalogRepo,
			Images:     deps.Images,
			Metrics:    deps.Metrics,
			Logger:     logFor("catalog"),
		})
		if err != nil {
			return Services{}, fmt.Errorf("build catalog service: %w", err)
		}
		svc.Catalog = catalogSvc
	}

	ordersRepo := reg.Orders()
	counterRepo := reg.Counters()
	if ordersRepo != nil && counterRepo != nil {
		orderSvc, err := services.NewOrderService(services.OrderServiceDeps{
			Orders:      ordersRepo,
			Audit:       reg.OrderAudit(),
			Counters:    counterRepo,
			StatusCache: reg.StatusCache(),
			Refunds:     deps.Gateway,
			UnitOfWork:  reg,
			Clock:       deps.Clock,
			Events:      deps.Events,
			Metrics:     deps.Metrics,
			Logger:      logFor("orders"),
		})
		if err != nil {
			return Services{}, fmt.Errorf("build order service: %w", err)
		}
		svc.Orders = orderSvc

		if deps.Gateway != nil {
			paymentSvc, err := services.NewPaymentService(services.PaymentServiceDeps{
				Orders:         orderSvc,
				Repository:     ordersRepo,
				Gateway:        deps.Gateway,
				ReconcileAfter: cfg.PSP.ReconcileAfter,
				Clock:          deps.Clock,
				Metrics:        deps.Metrics,
				Logger:         logFor("payments"),
			})
			if err != nil {
				return Services{}, fmt.Errorf("build payment service: %w", err)
			}
			svc.Payments = paymentSvc
		}
	}

	catalogRepo := reg.Catalog()
	if svc.Cart != nil && svc.Orders != nil && svc.Addresses != nil && catalogRepo != nil {
		checkoutSvc, err := services.NewCheckoutService(services.CheckoutServiceDeps{
			Carts:     svc.Cart,
			Orders:    svc.Orders,
			Addresses: svc.Addresses,
			Shipping:  svc.Shipping,
			Prices:    catalogRepo,
			Metrics:   deps.Metrics,
			Logger:    logFor("checkout"),
		})
		if err != nil {
			return Services{}, fmt.Errorf("build checkout service: %w", err)
		}
		svc.Checkout = checkoutSvc
	}

	return svc, nil
}
