// Package console holds the back-office order console state: the loaded order list, the open
// order detail and the optimistic commands that mutate them.
package console

import (
	"context"
	"errors"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/personaliza/api/internal/domain"
	"github.com/personaliza/api/internal/platform/textutil"
	"github.com/personaliza/api/internal/storefront/apiclient"
)

var (
	// ErrTrackingStep is returned when an order is moved to Shipped without tracking. The UI opens
	// the tracking capture step instead; no request is sent.
	ErrTrackingStep = errors.New("console: shipping requires tracking code, company and url")
	// ErrInvalidTransition mirrors the server transition table.
	ErrInvalidTransition = errors.New("console: invalid status transition")
	// ErrNotConfirmed is returned when the operator dismisses a confirmation prompt.
	ErrNotConfirmed = errors.New("console: action not confirmed")
	// ErrRefundNotRequested is returned when deciding a refund that was never requested.
	ErrRefundNotRequested = errors.New("console: refund not requested")
	// ErrMissingAdmin is returned when the console has no acting operator.
	ErrMissingAdmin = errors.New("console: admin user id is required")
)

// Backend is the subset of the API client used by the console.
type Backend interface {
	ListAdminOrders(ctx context.Context, q apiclient.OrderQuery) (apiclient.OrderPage, error)
	GetAdminOrder(ctx context.Context, orderID string) (apiclient.Order, error)
	UpdateOrderStatus(ctx context.Context, orderID string, update apiclient.StatusUpdate) (apiclient.Order, error)
	UpdateTracking(ctx context.Context, order apiclient.Order, adminUserID string) (apiclient.Order, error)
	ApproveRefund(ctx context.Context, orderID, adminUserID string) (apiclient.Order, error)
	RejectRefund(ctx context.Context, orderID, adminUserID string) (apiclient.Order, error)
	DeleteCatalogEntity(ctx context.Context, kind domain.CatalogKind, id string) (domain.DeleteOutcome, error)
}

// Console is the in-memory state behind the admin order list and detail views.
type Console struct {
	backend Backend
	adminID string
	logger  *zap.Logger

	mu     sync.Mutex
	orders []apiclient.Order
	detail *apiclient.Order
}

// Option customises the Console.
type Option func(*Console)

// WithLogger sets the console logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Console) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New builds a console acting as adminUserID.
func New(backend Backend, adminUserID string, opts ...Option) *Console {
	c := &Console{
		backend: backend,
		adminID: strings.TrimSpace(adminUserID),
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// Load replaces the order list with one page from the API.
func (c *Console) Load(ctx context.Context, q apiclient.OrderQuery) error {
	page, err := c.backend.ListAdminOrders(ctx, q)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.orders = make([]apiclient.Order, 0, len(page.Items))
	for _, order := range page.Items {
		c.orders = append(c.orders, cloneOrder(order))
	}
	return nil
}

// Open fetches one order into the detail view.
func (c *Console) Open(ctx context.Context, orderID string) (apiclient.Order, error) {
	order, err := c.backend.GetAdminOrder(ctx, orderID)
	if err != nil {
		return apiclient.Order{}, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	detail := cloneOrder(order)
	c.detail = &detail
	return cloneOrder(order), nil
}

// Orders returns a copy of the loaded list.
func (c *Console) Orders() []apiclient.Order {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]apiclient.Order, 0, len(c.orders))
	for _, order := range c.orders {
		out = append(out, cloneOrder(order))
	}
	return out
}

// Detail returns the open order, if any.
func (c *Console) Detail() (apiclient.Order, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.detail == nil {
		return apiclient.Order{}, false
	}
	return cloneOrder(*c.detail), true
}

// Search filters the loaded list by id, order number or customer name, ignoring case and
// accents, and by status when statuses is non-empty.
func (c *Console) Search(query string, statuses ...domain.OrderStatus) []apiclient.Order {
	allowed := make(map[domain.OrderStatus]struct{}, len(statuses))
	for _, status := range statuses {
		allowed[status] = struct{}{}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]apiclient.Order, 0, len(c.orders))
	for _, order := range c.orders {
		if len(allowed) > 0 {
			status, ok := domain.ParseOrderStatus(order.Status)
			if !ok {
				continue
			}
			if _, ok := allowed[status]; !ok {
				continue
			}
		}
		if !matchesQuery(order, query) {
			continue
		}
		out = append(out, cloneOrder(order))
	}
	return out
}

func matchesQuery(order apiclient.Order, query string) bool {
	if strings.TrimSpace(query) == "" {
		return true
	}
	return textutil.ContainsFold(order.ID, query) ||
		textutil.ContainsFold(order.OrderNumber, query) ||
		textutil.ContainsFold(order.CustomerName, query)
}

// lookup returns the freshest local copy of the order: the open detail first, then the list.
func (c *Console) lookup(orderID string) (apiclient.Order, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.detail != nil && c.detail.ID == orderID {
		return cloneOrder(*c.detail), true
	}
	for _, order := range c.orders {
		if order.ID == orderID {
			return cloneOrder(order), true
		}
	}
	return apiclient.Order{}, false
}

func cloneOrder(order apiclient.Order) apiclient.Order {
	if order.Items != nil {
		items := make([]apiclient.OrderItem, len(order.Items))
		copy(items, order.Items)
		order.Items = items
	}
	return order
}
