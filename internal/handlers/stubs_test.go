package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/go-chi/chi/v5"

	domain "github.com/personaliza/api/internal/domain"
	"github.com/personaliza/api/internal/payments"
	"github.com/personaliza/api/internal/platform/auth"
	"github.com/personaliza/api/internal/services"
)

var errNotStubbed = errors.New("not implemented")

type stubOrderService struct {
	createFn     func(context.Context, services.CreateOrderCommand) (services.Order, error)
	getFn        func(context.Context, string) (services.Order, error)
	getBuyerFn   func(context.Context, string, string) (services.Order, error)
	listFn       func(context.Context, services.OrderListFilter) (domain.CursorPage[services.Order], error)
	statusFn     func(context.Context, string, string) (services.OrderStatus, error)
	transitionFn func(context.Context, services.OrderStatusTransitionCommand) (services.Order, error)
	trackingFn   func(context.Context, services.UpdateTrackingCommand) (services.Order, error)
	refundFn     func(context.Context, services.RequestRefundCommand) (services.Order, error)
	approveFn    func(context.Context, services.RefundDecisionCommand) (services.Order, error)
	rejectFn     func(context.Context, services.RefundDecisionCommand) (services.Order, error)
	auditFn      func(context.Context, string) ([]services.OrderAuditEntry, error)
	statusCalls  int
}

func (s *stubOrderService) CreateOrder(ctx context.Context, cmd services.CreateOrderCommand) (services.Order, error) {
	if s.createFn != nil {
		return s.createFn(ctx, cmd)
	}
	return services.Order{}, errNotStubbed
}

func (s *stubOrderService) GetOrder(ctx context.Context, orderID string) (services.Order, error) {
	if s.getFn != nil {
		return s.getFn(ctx, orderID)
	}
	return services.Order{}, errNotStubbed
}

func (s *stubOrderService) GetBuyerOrder(ctx context.Context, userID, orderID string) (services.Order, error) {
	if s.getBuyerFn != nil {
		return s.getBuyerFn(ctx, userID, orderID)
	}
	return services.Order{}, errNotStubbed
}

func (s *stubOrderService) ListOrders(ctx context.Context, filter services.OrderListFilter) (domain.CursorPage[services.Order], error) {
	if s.listFn != nil {
		return s.listFn(ctx, filter)
	}
	return domain.CursorPage[services.Order]{}, nil
}

func (s *stubOrderService) GetStatus(ctx context.Context, userID, orderID string) (services.OrderStatus, error) {
	s.statusCalls++
	if s.statusFn != nil {
		return s.statusFn(ctx, userID, orderID)
	}
	return "", errNotStubbed
}

func (s *stubOrderService) TransitionStatus(ctx context.Context, cmd services.OrderStatusTransitionCommand) (services.Order, error) {
	if s.transitionFn != nil {
		return s.transitionFn(ctx, cmd)
	}
	return services.Order{}, errNotStubbed
}

func (s *stubOrderService) UpdateTracking(ctx context.Context, cmd services.UpdateTrackingCommand) (services.Order, error) {
	if s.trackingFn != nil {
		return s.trackingFn(ctx, cmd)
	}
	return services.Order{}, errNotStubbed
}

func (s *stubOrderService) RecordPaymentAttempt(context.Context, services.RecordPaymentAttemptCommand) (services.Order, error) {
	return services.Order{}, errNotStubbed
}

func (s *stubOrderService) ConfirmPayment(context.Context, services.ConfirmPaymentCommand) (services.Order, error) {
	return services.Order{}, errNotStubbed
}

func (s *stubOrderService) RequestRefund(ctx context.Context, cmd services.RequestRefundCommand) (services.Order, error) {
	if s.refundFn != nil {
		return s.refundFn(ctx, cmd)
	}
	return services.Order{}, errNotStubbed
}

func (s *stubOrderService) ApproveRefund(ctx context.Context, cmd services.RefundDecisionCommand) (services.Order, error) {
	if s.approveFn != nil {
		return s.approveFn(ctx, cmd)
	}
	return services.Order{}, errNotStubbed
}

func (s *stubOrderService) RejectRefund(ctx context.Context, cmd services.RefundDecisionCommand) (services.Order, error) {
	if s.rejectFn != nil {
		return s.rejectFn(ctx, cmd)
	}
	return services.Order{}, errNotStubbed
}

func (s *stubOrderService) ListAudit(ctx context.Context, orderID string) ([]services.OrderAuditEntry, error) {
	if s.auditFn != nil {
		return s.auditFn(ctx, orderID)
	}
	return nil, nil
}

type stubPaymentService struct {
	dispatchFn  func(context.Context, services.DispatchPaymentCommand) (services.PaymentOutcome, error)
	webhookFn   func(context.Context, payments.WebhookEvent) error
	reconcileFn func(context.Context, services.ReconcileCommand) (services.ReconcileResult, error)
}

func (s *stubPaymentService) DispatchPayment(ctx context.Context, cmd services.DispatchPaymentCommand) (services.PaymentOutcome, error) {
	if s.dispatchFn != nil {
		return s.dispatchFn(ctx, cmd)
	}
	return services.PaymentOutcome{}, errNotStubbed
}

func (s *stubPaymentService) RecordWebhookEvent(ctx context.Context, event payments.WebhookEvent) error {
	if s.webhookFn != nil {
		return s.webhookFn(ctx, event)
	}
	return nil
}

func (s *stubPaymentService) ReconcilePending(ctx context.Context, cmd services.ReconcileCommand) (services.ReconcileResult, error) {
	if s.reconcileFn != nil {
		return s.reconcileFn(ctx, cmd)
	}
	return services.ReconcileResult{}, nil
}

type stubCheckoutService struct {
	placeFn func(context.Context, services.PlaceOrderCommand) (services.PlacedOrder, error)
}

func (s *stubCheckoutService) PlaceOrder(ctx context.Context, cmd services.PlaceOrderCommand) (services.PlacedOrder, error) {
	if s.placeFn != nil {
		return s.placeFn(ctx, cmd)
	}
	return services.PlacedOrder{}, errNotStubbed
}

type stubCartService struct {
	getFn     func(context.Context, string) (services.Cart, error)
	replaceFn func(context.Context, services.ReplaceCartCommand) (services.Cart, error)
	addFn     func(context.Context, services.AddCartItemCommand) (services.Cart, error)
	removeFn  func(context.Context, string, string) (services.Cart, error)
}

func (s *stubCartService) GetCart(ctx context.Context, userID string) (services.Cart, error) {
	if s.getFn != nil {
		return s.getFn(ctx, userID)
	}
	return services.Cart{UserID: userID, Items: []services.CartItem{}}, nil
}

func (s *stubCartService) ReplaceItems(ctx context.Context, cmd services.ReplaceCartCommand) (services.Cart, error) {
	if s.replaceFn != nil {
		return s.replaceFn(ctx, cmd)
	}
	return services.Cart{}, errNotStubbed
}

func (s *stubCartService) AddItem(ctx context.Context, cmd services.AddCartItemCommand) (services.Cart, error) {
	if s.addFn != nil {
		return s.addFn(ctx, cmd)
	}
	return services.Cart{}, errNotStubbed
}

func (s *stubCartService) RemoveItem(ctx context.Context, userID, lineID string) (services.Cart, error) {
	if s.removeFn != nil {
		return s.removeFn(ctx, userID, lineID)
	}
	return services.Cart{}, errNotStubbed
}

func (s *stubCartService) ClearCart(context.Context, string) error {
	return nil
}

type stubShippingService struct {
	quoteFn func(context.Context, services.ShippingQuoteCommand) ([]services.ShippingOption, error)
}

func (s *stubShippingService) Quote(ctx context.Context, cmd services.ShippingQuoteCommand) ([]services.ShippingOption, error) {
	if s.quoteFn != nil {
		return s.quoteFn(ctx, cmd)
	}
	return nil, errNotStubbed
}

type stubAddressService struct {
	listFn   func(context.Context, string) ([]services.Address, error)
	createFn func(context.Context, services.CreateAddressCommand) (services.Address, error)
}

func (s *stubAddressService) ListAddresses(ctx context.Context, userID string) ([]services.Address, error) {
	if s.listFn != nil {
		return s.listFn(ctx, userID)
	}
	return nil, nil
}

func (s *stubAddressService) GetAddress(context.Context, string, string) (services.Address, error) {
	return services.Address{}, services.ErrAddressNotFound
}

func (s *stubAddressService) CreateAddress(ctx context.Context, cmd services.CreateAddressCommand) (services.Address, error) {
	if s.createFn != nil {
		return s.createFn(ctx, cmd)
	}
	return services.Address{}, errNotStubbed
}

type stubCatalogLifecycle struct {
	deleteFn func(context.Context, services.CatalogDeleteCommand) (services.DeleteResult, error)
	bulkFn   func(context.Context, services.CatalogBulkDeleteCommand) (services.BulkDeleteSummary, error)
}

func (s *stubCatalogLifecycle) Delete(ctx context.Context, cmd services.CatalogDeleteCommand) (services.DeleteResult, error) {
	if s.deleteFn != nil {
		return s.deleteFn(ctx, cmd)
	}
	return services.DeleteResult{}, errNotStubbed
}

func (s *stubCatalogLifecycle) BulkDelete(ctx context.Context, cmd services.CatalogBulkDeleteCommand) (services.BulkDeleteSummary, error) {
	if s.bulkFn != nil {
		return s.bulkFn(ctx, cmd)
	}
	return services.BulkDeleteSummary{}, errNotStubbed
}

type stubSystemService struct {
	report services.SystemHealthReport
	err    error
}

func (s *stubSystemService) HealthReport(context.Context) (services.SystemHealthReport, error) {
	return s.report, s.err
}

var (
	_ services.OrderService            = (*stubOrderService)(nil)
	_ services.PaymentService          = (*stubPaymentService)(nil)
	_ services.CheckoutService         = (*stubCheckoutService)(nil)
	_ services.CartService             = (*stubCartService)(nil)
	_ services.ShippingService         = (*stubShippingService)(nil)
	_ services.AddressService          = (*stubAddressService)(nil)
	_ services.CatalogLifecycleService = (*stubCatalogLifecycle)(nil)
	_ services.SystemService           = (*stubSystemService)(nil)
)

// serve mounts routes at prefix and runs one request as uid (empty for anonymous).
func serve(routes func(chi.Router), prefix, method, target, body, uid string, roles ...string) *httptest.ResponseRecorder {
	router := chi.NewRouter()
	router.Route(prefix, routes)

	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	if uid != "" {
		identity := &auth.Identity{UID: uid, Email: uid + "@example.com", Roles: roles}
		req = req.WithContext(auth.WithIdentity(req.Context(), identity))
	}
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}
