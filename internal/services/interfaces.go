package services

import (
	"context"
	"time"

	domain "github.com/personaliza/api/internal/domain"
	"github.com/personaliza/api/internal/payments"
)

// Type aliases expose domain models to the services package without reversing dependency direction.
type (
	Order              = domain.Order
	OrderItem          = domain.OrderItem
	OrderStatus        = domain.OrderStatus
	OrderAuditEntry    = domain.OrderAuditEntry
	OrderListFilter    = domain.OrderListFilter
	Tracking           = domain.Tracking
	Cart               = domain.Cart
	CartItem           = domain.CartItem
	Address            = domain.Address
	ShippingOption     = domain.ShippingOption
	CatalogKind        = domain.CatalogKind
	DeleteResult       = domain.DeleteResult
	BulkDeleteSummary  = domain.BulkDeleteSummary
	SystemHealthReport = domain.SystemHealthReport
)

// OrderService owns the order aggregate: creation, the status state machine, tracking,
// payment confirmation and the refund sub-workflow.
type OrderService interface {
	CreateOrder(ctx context.Context, cmd CreateOrderCommand) (Order, error)
	GetOrder(ctx context.Context, orderID string) (Order, error)
	GetBuyerOrder(ctx context.Context, userID, orderID string) (Order, error)
	ListOrders(ctx context.Context, filter OrderListFilter) (domain.CursorPage[Order], error)
	GetStatus(ctx context.Context, userID, orderID string) (OrderStatus, error)
	TransitionStatus(ctx context.Context, cmd OrderStatusTransitionCommand) (Order, error)
	UpdateTracking(ctx context.Context, cmd UpdateTrackingCommand) (Order, error)
	RecordPaymentAttempt(ctx context.Context, cmd RecordPaymentAttemptCommand) (Order, error)
	ConfirmPayment(ctx context.Context, cmd ConfirmPaymentCommand) (Order, error)
	RequestRefund(ctx context.Context, cmd RequestRefundCommand) (Order, error)
	ApproveRefund(ctx context.Context, cmd RefundDecisionCommand) (Order, error)
	RejectRefund(ctx context.Context, cmd RefundDecisionCommand) (Order, error)
	ListAudit(ctx context.Context, orderID string) ([]OrderAuditEntry, error)
}

// CheckoutService validates a checkout request and turns the server cart into a pending order.
type CheckoutService interface {
	PlaceOrder(ctx context.Context, cmd PlaceOrderCommand) (PlacedOrder, error)
}

// PaymentService dispatches payments for pending orders and folds gateway notifications back
// into the order state machine.
type PaymentService interface {
	DispatchPayment(ctx context.Context, cmd DispatchPaymentCommand) (PaymentOutcome, error)
	RecordWebhookEvent(ctx context.Context, event payments.WebhookEvent) error
	ReconcilePending(ctx context.Context, cmd ReconcileCommand) (ReconcileResult, error)
}

// CartService manages the server-held cart of an authenticated buyer.
type CartService interface {
	GetCart(ctx context.Context, userID string) (Cart, error)
	ReplaceItems(ctx context.Context, cmd ReplaceCartCommand) (Cart, error)
	AddItem(ctx context.Context, cmd AddCartItemCommand) (Cart, error)
	RemoveItem(ctx context.Context, userID, lineID string) (Cart, error)
	ClearCart(ctx context.Context, userID string) error
}

// ShippingService quotes shipping options for a postal code.
type ShippingService interface {
	Quote(ctx context.Context, cmd ShippingQuoteCommand) ([]ShippingOption, error)
}

// AddressService manages saved buyer addresses.
type AddressService interface {
	ListAddresses(ctx context.Context, userID string) ([]Address, error)
	GetAddress(ctx context.Context, userID, addressID string) (Address, error)
	CreateAddress(ctx context.Context, cmd CreateAddressCommand) (Address, error)
}

// CatalogLifecycleService applies the deactivate-then-delete rule to products, sizes and colors.
type CatalogLifecycleService interface {
	Delete(ctx context.Context, cmd CatalogDeleteCommand) (DeleteResult, error)
	BulkDelete(ctx context.Context, cmd CatalogBulkDeleteCommand) (BulkDeleteSummary, error)
}

// SystemService exposes operational metadata.
type SystemService interface {
	HealthReport(ctx context.Context) (SystemHealthReport, error)
}

// CreateOrderCommand carries a validated checkout into the order aggregate.
type CreateOrderCommand struct {
	UserID          string
	CustomerName    string
	CustomerEmail   string
	Phone           string
	Items           []OrderItem
	Shipping        ShippingOption
	Pickup          bool
	AddressID       string
	ShippingAddress *domain.AddressSnapshot
	PaymentMethod   domain.PaymentMethod
}

// OrderStatusTransitionCommand moves an order to TargetStatus on behalf of an operator.
type OrderStatusTransitionCommand struct {
	OrderID        string
	TargetStatus   OrderStatus
	ActorID        string
	Note           string
	Tracking       *Tracking
	ExpectedStatus *OrderStatus
}

// UpdateTrackingCommand attaches carrier tracking and moves the order to Shipped.
type UpdateTrackingCommand struct {
	OrderID        string
	ActorID        string
	Tracking       Tracking
	ExpectedStatus *OrderStatus
}

// RecordPaymentAttemptCommand stores the gateway payment reference on a pending order.
type RecordPaymentAttemptCommand struct {
	OrderID   string
	PaymentID string
	Detail    string
}

// ConfirmPaymentCommand marks a pending order as paid. Either OrderID or PaymentID locates it.
type ConfirmPaymentCommand struct {
	OrderID   string
	PaymentID string
	Source    string
	PaidAt    *time.Time
}

// RequestRefundCommand is the buyer side of the refund sub-workflow.
type RequestRefundCommand struct {
	OrderID string
	UserID  string
	Reason  string
}

// RefundDecisionCommand approves or rejects a requested refund.
type RefundDecisionCommand struct {
	OrderID string
	ActorID string
}

// PlaceOrderCommand is the checkout request as received from the storefront.
type PlaceOrderCommand struct {
	UserID         string
	Email          string
	FullName       string
	Phone          string
	PickupInStore  bool
	ShippingCode   string
	ShippingAmount *int64
	AddressID      string
	Address        *CheckoutAddress
	PaymentMethod  domain.PaymentMethod
	CPF            string
}

// CheckoutAddress holds the raw fields used to create an address during checkout.
type CheckoutAddress struct {
	Street       string
	Number       string
	Complement   string
	Neighborhood string
	City         string
	State        string
	ZipCode      string
	Country      string
}

// PlacedOrder is the checkout response.
type PlacedOrder struct {
	OrderID     string
	OrderNumber string
	Total       int64
}

// DispatchPaymentCommand submits a card token or requests a PIX payload for an order.
type DispatchPaymentCommand struct {
	OrderID         string
	UserID          string
	Method          domain.PaymentMethod
	CardToken       string
	PaymentMethodID string
	Installments    int
	PayerEmail      string
	PayerCPF        string
	IdempotencyKey  string
}

// PaymentOutcome is returned to the storefront after a dispatch.
type PaymentOutcome struct {
	OrderID      string
	PaymentID    string
	Status       payments.ChargeStatus
	StatusDetail string
	Message      string
	QRCode       string
	QRCodeBase64 string
	QRCodeURL    string
	ExpiresAt    *time.Time
}

// ReconcileCommand bounds one reconciliation sweep.
type ReconcileCommand struct {
	OlderThan time.Duration
	Limit     int
}

// ReconcileResult reports what a sweep did.
type ReconcileResult struct {
	Checked   int
	Confirmed int
	Failed    int
}

// ReplaceCartCommand replaces every cart line.
type ReplaceCartCommand struct {
	UserID string
	Items  []CartItem
}

// AddCartItemCommand adds a line or merges it into an equivalent one.
type AddCartItemCommand struct {
	UserID string
	Item   CartItem
}

// ShippingQuoteCommand asks for options to a postal code.
type ShippingQuoteCommand struct {
	ZipCode  string
	Subtotal int64
}

// CreateAddressCommand creates a saved address.
type CreateAddressCommand struct {
	UserID       string
	Recipient    string
	Street       string
	Number       string
	Complement   string
	Neighborhood string
	City         string
	State        string
	ZipCode      string
	Country      string
	Phone        string
	IsDefault    bool
}

// CatalogDeleteCommand deletes one catalog entity.
type CatalogDeleteCommand struct {
	Kind    CatalogKind
	ID      string
	ActorID string
}

// CatalogBulkDeleteCommand applies the delete rule to each id independently.
type CatalogBulkDeleteCommand struct {
	Kind    CatalogKind
	IDs     []string
	ActorID string
}
