package repositories

import (
	"context"
	"errors"
	"time"

	domain "github.com/personaliza/api/internal/domain"
)

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// DependencyConflictError is implemented by errors raised when a delete hits a foreign key.
type DependencyConflictError interface {
	error
	IsDependencyConflict() bool
}

// IsNotFound reports whether err is a RepositoryError for a missing record.
func IsNotFound(err error) bool {
	var repoErr RepositoryError
	return errors.As(err, &repoErr) && repoErr.IsNotFound()
}

// IsDependencyConflict reports whether err signals that dependents still reference the record.
func IsDependencyConflict(err error) bool {
	var depErr DependencyConflictError
	return errors.As(err, &depErr) && depErr.IsDependencyConflict()
}

// UnitOfWork groups repository operations in one transaction. Repositories called with the
// context passed to fn join that transaction.
type UnitOfWork interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// OrderRepository persists orders with their item snapshots.
type OrderRepository interface {
	Insert(ctx context.Context, order domain.Order) error
	Update(ctx context.Context, order domain.Order) error
	FindByID(ctx context.Context, orderID string) (domain.Order, error)
	// FindByIDForUpdate locks the order row until the surrounding transaction ends.
	FindByIDForUpdate(ctx context.Context, orderID string) (domain.Order, error)
	FindByPaymentID(ctx context.Context, paymentID string) (domain.Order, error)
	List(ctx context.Context, filter domain.OrderListFilter) (domain.CursorPage[domain.Order], error)
	ListAwaitingPayment(ctx context.Context, createdBefore time.Time, limit int) ([]domain.Order, error)
}

// OrderAuditRepository appends and reads the order audit trail.
type OrderAuditRepository interface {
	Append(ctx context.Context, entry domain.OrderAuditEntry) error
	ListByOrder(ctx context.Context, orderID string) ([]domain.OrderAuditEntry, error)
}

// CounterRepository issues monotonically increasing sequence values.
type CounterRepository interface {
	Next(ctx context.Context, name string) (int64, error)
}

// AddressRepository stores saved buyer addresses.
type AddressRepository interface {
	List(ctx context.Context, userID string) ([]domain.Address, error)
	Get(ctx context.Context, userID, addressID string) (domain.Address, error)
	Insert(ctx context.Context, address domain.Address) error
}

// CartRepository stores the server-held cart keyed by user.
type CartRepository interface {
	GetCart(ctx context.Context, userID string) (domain.Cart, error)
	// UpdateCart applies mutate atomically over the stored cart. A missing cart is passed as empty.
	UpdateCart(ctx context.Context, userID string, mutate func(domain.Cart) (domain.Cart, error)) (domain.Cart, error)
	ClearCart(ctx context.Context, userID string) error
}

// CatalogRepository supports the soft/hard delete lifecycle of products, sizes and colors.
type CatalogRepository interface {
	Get(ctx context.Context, kind domain.CatalogKind, id string) (domain.CatalogEntity, error)
	Deactivate(ctx context.Context, kind domain.CatalogKind, id string) error
	HasDependents(ctx context.Context, kind domain.CatalogKind, id string) (bool, error)
	ListProductImages(ctx context.Context, productID string) ([]domain.ProductImage, error)
	// PriceFor resolves the unit price in cents of an active product. A size override wins over
	// the product price. Unknown or inactive products are not found.
	PriceFor(ctx context.Context, productID, sizeID string) (int64, error)
	// Delete removes the record. Products cascade their images and size/color links first.
	// A remaining reference surfaces as a DependencyConflictError.
	Delete(ctx context.Context, kind domain.CatalogKind, id string) error
}

// OrderStatusCache keeps the latest status of an order for polling clients.
type OrderStatusCache interface {
	GetStatus(ctx context.Context, orderID string) (domain.OrderStatusEntry, bool, error)
	SetStatus(ctx context.Context, orderID string, entry domain.OrderStatusEntry) error
	Invalidate(ctx context.Context, orderID string) error
}

// HealthRepository aggregates dependency probes.
type HealthRepository interface {
	Collect(ctx context.Context) (domain.SystemHealthReport, error)
}

// Registry exposes the repositories assembled for the running process. Accessors return nil
// when the backing store is not configured.
type Registry interface {
	UnitOfWork
	Orders() OrderRepository
	OrderAudit() OrderAuditRepository
	Counters() CounterRepository
	Addresses() AddressRepository
	Carts() CartRepository
	Catalog() CatalogRepository
	StatusCache() OrderStatusCache
	Health() HealthRepository
	Close(ctx context.Context) error
}
