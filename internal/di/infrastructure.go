package di

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	gcs "cloud.google.com/go/storage"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/personaliza/api/internal/payments"
	"github.com/personaliza/api/internal/platform/config"
	"github.com/personaliza/api/internal/platform/events"
	pfirestore "github.com/personaliza/api/internal/platform/firestore"
	"github.com/personaliza/api/internal/platform/observability"
	ppostgres "github.com/personaliza/api/internal/platform/postgres"
	pstorage "github.com/personaliza/api/internal/platform/storage"
	"github.com/personaliza/api/internal/repositories"
	firestoreRepo "github.com/personaliza/api/internal/repositories/firestore"
	pgRepo "github.com/personaliza/api/internal/repositories/postgres"
	"github.com/personaliza/api/internal/repositories/rediscache"
	"github.com/personaliza/api/internal/services"
)

const probeTimeout = 2 * time.Second

// Infrastructure owns every external client opened at startup and implements
// repositories.Registry over them.
type Infrastructure struct {
	DB        *ppostgres.DB
	Firestore *pfirestore.Provider
	Redis     *redis.Client
	Storage   *gcs.Client
	Events    events.Sink
	Gateway   payments.Gateway
	Images    services.ImageRemover

	orders    repositories.OrderRepository
	audit     repositories.OrderAuditRepository
	counters  repositories.CounterRepository
	addresses repositories.AddressRepository
	carts     repositories.CartRepository
	catalog   repositories.CatalogRepository
	cache     repositories.OrderStatusCache
	health    repositories.HealthRepository
}

var _ repositories.Registry = (*Infrastructure)(nil)

// OpenInfrastructure connects Postgres, Firestore, Redis, the event sink, object storage and the
// payment gateway. On failure everything opened so far is closed.
func OpenInfrastructure(ctx context.Context, cfg config.Config, logger *zap.Logger) (_ *Infrastructure, err error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	infra := &Infrastructure{}
	defer func() {
		if err != nil {
			_ = infra.Close(context.Background())
		}
	}()

	db, err := ppostgres.Connect(ctx, cfg.Postgres.DSN, ppostgres.Options{
		MaxConns: int32(cfg.Postgres.MaxConns),
		MinConns: int32(cfg.Postgres.MinConns),
	})
	if err != nil {
		return nil, err
	}
	infra.DB = db
	if cfg.Postgres.MigrateOnStart {
		if err := db.Migrate(logger.Named("migrate")); err != nil {
			return nil, err
		}
	}
	if infra.orders, err = pgRepo.NewOrderRepository(db); err != nil {
		return nil, err
	}
	if infra.audit, err = pgRepo.NewOrderAuditRepository(db); err != nil {
		return nil, err
	}
	if infra.counters, err = pgRepo.NewCounterRepository(db); err != nil {
		return nil, err
	}
	if infra.addresses, err = pgRepo.NewAddressRepository(db); err != nil {
		return nil, err
	}
	if infra.catalog, err = pgRepo.NewCatalogRepository(db); err != nil {
		return nil, err
	}

	var providerOpts []pfirestore.ProviderOption
	if host := strings.TrimSpace(cfg.Firestore.EmulatorHost); host != "" {
		providerOpts = append(providerOpts, pfirestore.WithEmulatorHost(host))
	}
	infra.Firestore = pfirestore.NewProvider(cfg.Firestore.ProjectID, providerOpts...)
	if infra.carts, err = firestoreRepo.NewCartRepository(infra.Firestore); err != nil {
		return nil, err
	}

	if addr := strings.TrimSpace(cfg.Redis.Addr); addr != "" {
		infra.Redis = rediscache.NewClient(addr, cfg.Redis.Password, cfg.Redis.DB)
		cache, err := rediscache.NewOrderStatusCache(infra.Redis, cfg.Redis.StatusTTL)
		if err != nil {
			return nil, err
		}
		infra.cache = cache
	} else {
		logger.Warn("redis not configured; order status reads go to postgres")
	}

	if infra.Events, err = events.Open(ctx, cfg.Events, cfg.Firebase.ProjectID, logger.Named("events")); err != nil {
		return nil, err
	}

	if bucket := strings.TrimSpace(cfg.Storage.AssetsBucket); bucket != "" {
		client, err := gcs.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("storage client: %w", err)
		}
		infra.Storage = client
		remover, err := pstorage.NewObjectRemover(client, bucket)
		if err != nil {
			return nil, err
		}
		infra.Images = remover
	}

	if infra.Gateway, err = newGateway(cfg.PSP, logger.Named("stripe")); err != nil {
		return nil, err
	}

	if infra.health, err = repositories.NewProbeHealthRepository(infra.probes(), time.Now); err != nil {
		return nil, err
	}
	return infra, nil
}

func newGateway(cfg config.PSPConfig, logger *zap.Logger) (payments.Gateway, error) {
	if cfg.Sandbox {
		return payments.NewSandboxGateway(payments.SandboxConfig{}), nil
	}
	gateway, err := payments.NewStripeGateway(payments.StripeConfig{
		APIKey:    cfg.StripeAPIKey,
		Currency:  cfg.Currency,
		PixExpiry: cfg.PixExpiry,
		Logger:    payments.StripeLogger(observability.ServiceLogger(logger)),
	})
	if err != nil {
		return nil, err
	}
	return gateway, nil
}

func (i *Infrastructure) probes() []repositories.Probe {
	probes := []repositories.Probe{
		{
			Name:    "postgres",
			Timeout: probeTimeout,
			Check:   i.DB.Ping,
		},
		{
			Name:     "firestore",
			Timeout:  probeTimeout,
			Optional: true,
			Check: func(ctx context.Context) error {
				_, err := i.Firestore.Client(ctx)
				return err
			},
		},
	}
	if i.Redis != nil {
		probes = append(probes, repositories.Probe{
			Name:     "redis",
			Timeout:  probeTimeout,
			Optional: true,
			Check: func(ctx context.Context) error {
				return i.Redis.Ping(ctx).Err()
			},
		})
	}
	return probes
}

func (i *Infrastructure) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return i.DB.RunInTx(ctx, fn)
}

func (i *Infrastructure) Orders() repositories.OrderRepository          { return i.orders }
func (i *Infrastructure) OrderAudit() repositories.OrderAuditRepository { return i.audit }
func (i *Infrastructure) Counters() repositories.CounterRepository      { return i.counters }
func (i *Infrastructure) Addresses() repositories.AddressRepository     { return i.addresses }
func (i *Infrastructure) Carts() repositories.CartRepository            { return i.carts }
func (i *Infrastructure) Catalog() repositories.CatalogRepository       { return i.catalog }
func (i *Infrastructure) StatusCache() repositories.OrderStatusCache    { return i.cache }
func (i *Infrastructure) Health() repositories.HealthRepository         { return i.health }

// Close releases every client that was opened.
func (i *Infrastructure) Close(context.Context) error {
	if i == nil {
		return nil
	}
	var errs []error
	if i.Events != nil {
		errs = append(errs, i.Events.Close())
	}
	if i.Storage != nil {
		errs = append(errs, i.Storage.Close())
	}
	if i.Redis != nil {
		errs = append(errs, i.Redis.Close())
	}
	if i.Firestore != nil {
		errs = append(errs, i.Firestore.Close())
	}
	if i.DB != nil {
		i.DB.Close()
	}
	return errors.Join(errs...)
}
