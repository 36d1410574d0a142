package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/personaliza/api/internal/domain"
	"github.com/personaliza/api/internal/format"
	"github.com/personaliza/api/internal/payments"
	"github.com/personaliza/api/internal/storefront/apiclient"
)

var (
	// ErrMissingCardToken is returned when a card payment has no gateway token.
	ErrMissingCardToken = errors.New("checkout: card token is required")
	// ErrPaymentDispatch wraps failures after the order was created. The order stays Pending.
	ErrPaymentDispatch = errors.New("checkout: payment dispatch failed")
)

const paymentDispatchMessage = "Seu pedido foi criado, mas não conseguimos processar o pagamento. Você pode tentar novamente em Meus pedidos."

// API is the subset of the API client used during checkout.
type API interface {
	PlaceOrder(ctx context.Context, req apiclient.CheckoutRequest) (apiclient.CheckoutResult, error)
	DispatchPayment(ctx context.Context, orderID string, req apiclient.PaymentRequest, idempotencyKey string) (apiclient.PaymentResult, error)
	OrderStatus(ctx context.Context, orderID string) (domain.OrderStatus, error)
}

// Cart is cleared once the order exists.
type Cart interface {
	Clear()
}

// ShippingChoice is the option picked from the shipping quote. Price is in cents.
type ShippingChoice struct {
	Code          string
	Name          string
	Price         int64
	EstimatedDays int
}

// CardPayment is the payload produced by the gateway's client-side tokenization.
type CardPayment struct {
	Token           string
	PaymentMethodID string
	Installments    int
}

// Form is what the buyer filled in on the checkout page.
type Form struct {
	Authenticated bool
	FullName      string
	Email         string
	Phone         string
	PickupInStore bool
	Shipping      *ShippingChoice
	AddressID     string
	Address       *domain.CheckoutAddressFields
	PaymentMethod domain.PaymentMethod
	CPF           string
	Card          *CardPayment
}

// View is the page the buyer lands on after submitting.
type View string

const (
	ViewSuccess View = "success"
	ViewPending View = "pending"
	ViewFailure View = "failure"
	// ViewPix shows the QR code while the order is polled.
	ViewPix View = "pix"
)

// PixCode is the QR payload shown to the buyer.
type PixCode struct {
	QRCode       string
	QRCodeBase64 string
	QRCodeURL    string
	ExpiresAt    string
}

// Result describes what happened to the submitted checkout. OrderID is set as soon as the order
// exists, including when payment dispatch fails.
type Result struct {
	OrderID     string
	OrderNumber string
	Total       int64
	View        View
	Message     string
	PaymentID   string
	Pix         *PixCode
}

// Flow runs checkout for the storefront: validate, create the order, clear the cart and
// dispatch payment.
type Flow struct {
	api          API
	cart         Cart
	logger       *zap.Logger
	pollInterval time.Duration
	newKey       func() string
}

// Option customises the Flow.
type Option func(*Flow)

// WithLogger sets the flow logger.
func WithLogger(logger *zap.Logger) Option {
	return func(f *Flow) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// WithPollInterval overrides the PIX status polling interval.
func WithPollInterval(interval time.Duration) Option {
	return func(f *Flow) {
		if interval > 0 {
			f.pollInterval = interval
		}
	}
}

// NewFlow wires the flow to the API client and the local cart store.
func NewFlow(api API, cart Cart, opts ...Option) *Flow {
	f := &Flow{
		api:          api,
		cart:         cart,
		logger:       zap.NewNop(),
		pollInterval: PixPollInterval,
		newKey:       uuid.NewString,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(f)
		}
	}
	return f
}

// Validate applies the checkout rules without touching the network. The returned error is a
// *domain.CheckoutFieldError or ErrMissingCardToken.
func (f *Flow) Validate(form Form) error {
	if fieldErr := domain.ValidateCheckout(form.input()); fieldErr != nil {
		return fieldErr
	}
	if form.PaymentMethod == domain.PaymentMethodCard {
		if form.Card == nil || strings.TrimSpace(form.Card.Token) == "" {
			return ErrMissingCardToken
		}
	}
	return nil
}

// Submit validates the form, creates the order, clears the cart and dispatches payment.
// A payment failure returns ErrPaymentDispatch together with a Result carrying the order id;
// neither the order nor the cleared cart is rolled back.
func (f *Flow) Submit(ctx context.Context, form Form) (Result, error) {
	if err := f.Validate(form); err != nil {
		return Result{}, err
	}

	placed, err := f.api.PlaceOrder(ctx, form.checkoutRequest())
	if err != nil {
		f.logger.Warn("checkout: place order failed", zap.Error(err))
		return Result{}, err
	}
	if f.cart != nil {
		f.cart.Clear()
	}

	result := Result{OrderID: placed.OrderID, OrderNumber: placed.OrderNumber, Total: placed.Total}
	payment, err := f.api.DispatchPayment(ctx, placed.OrderID, form.paymentRequest(), f.newKey())
	if err != nil {
		f.logger.Warn("checkout: payment dispatch failed",
			zap.String("orderId", placed.OrderID),
			zap.String("kind", apiclient.ClassifyError(err).String()),
			zap.Error(err),
		)
		result.View = ViewFailure
		result.Message = paymentDispatchMessage
		return result, fmt.Errorf("%w: %w", ErrPaymentDispatch, err)
	}

	result.PaymentID = payment.PaymentID
	if form.PaymentMethod == domain.PaymentMethodPix {
		result.View = ViewPix
		result.Message = payments.StatusDetailMessage(payments.DetailPendingWaitingPix)
		result.Pix = &PixCode{
			QRCode:       payment.QRCode,
			QRCodeBase64: payment.QRCodeBase64,
			QRCodeURL:    payment.QRCodeURL,
			ExpiresAt:    payment.ExpiresAt,
		}
		return result, nil
	}

	result.View, result.Message = cardView(payment)
	f.logger.Info("checkout: card payment dispatched",
		zap.String("orderId", placed.OrderID),
		zap.String("status", payment.Status),
		zap.String("view", string(result.View)),
	)
	return result, nil
}

// WatchPix starts polling the order created by Submit until payment is confirmed.
func (f *Flow) WatchPix(ctx context.Context, orderID string) *PixPoller {
	return StartPixPoller(ctx, f.api, orderID, WithPollerInterval(f.pollInterval), WithPollerLogger(f.logger))
}

func cardView(payment apiclient.PaymentResult) (View, string) {
	switch payments.ChargeStatus(strings.ToLower(strings.TrimSpace(payment.Status))) {
	case payments.ChargeApproved:
		return ViewSuccess, ""
	case payments.ChargeRejected, payments.ChargeCancelled:
		if msg := strings.TrimSpace(payment.Message); msg != "" && payment.StatusDetail == "" {
			return ViewFailure, msg
		}
		return ViewFailure, payments.StatusDetailMessage(payment.StatusDetail)
	default:
		return ViewPending, payments.StatusDetailMessage(payments.DetailPendingContingency)
	}
}

func (form Form) input() domain.CheckoutInput {
	return domain.CheckoutInput{
		Authenticated:  form.Authenticated,
		FullName:       form.FullName,
		Phone:          form.Phone,
		PickupInStore:  form.PickupInStore,
		ShippingChosen: form.Shipping != nil,
		AddressID:      form.AddressID,
		Address:        form.Address,
		PaymentMethod:  form.PaymentMethod,
		CPF:            form.CPF,
	}
}

func (form Form) checkoutRequest() apiclient.CheckoutRequest {
	req := apiclient.CheckoutRequest{
		PickupInStore: form.PickupInStore,
		ShippingPhone: format.NormalizePhone(form.Phone),
		FullName:      strings.TrimSpace(form.FullName),
		Email:         strings.TrimSpace(form.Email),
		PaymentMethod: string(form.PaymentMethod),
		CPF:           format.DigitsOnly(form.CPF),
	}
	if !form.PickupInStore && form.Shipping != nil {
		req.ShippingAmount = form.Shipping.Price
		req.ShippingCode = form.Shipping.Code
		req.ShippingName = form.Shipping.Name
		req.ShippingEstimatedDays = form.Shipping.EstimatedDays
	}
	if form.PickupInStore {
		return req
	}
	if id := strings.TrimSpace(form.AddressID); id != "" {
		req.ShippingAddressID = id
		return req
	}
	if addr := form.Address; addr != nil {
		req.Address = &apiclient.CheckoutAddress{
			Street:       strings.TrimSpace(addr.Street),
			Number:       strings.TrimSpace(addr.Number),
			Complement:   strings.TrimSpace(addr.Complement),
			Neighborhood: strings.TrimSpace(addr.Neighborhood),
			City:         strings.TrimSpace(addr.City),
			State:        strings.TrimSpace(addr.State),
			ZipCode:      format.SanitizeCep(addr.ZipCode),
			Country:      "BR",
		}
	}
	return req
}

func (form Form) paymentRequest() apiclient.PaymentRequest {
	payer := apiclient.PaymentPayer{Email: strings.TrimSpace(form.Email)}
	if cpf := format.DigitsOnly(form.CPF); cpf != "" {
		payer.Identification = apiclient.PaymentIdentification{Type: "CPF", Number: cpf}
	}
	if form.PaymentMethod == domain.PaymentMethodPix {
		return apiclient.PaymentRequest{PaymentMethodID: string(domain.PaymentMethodPix), Payer: payer}
	}
	token := strings.TrimSpace(form.Card.Token)
	return apiclient.PaymentRequest{
		Token:           &token,
		PaymentMethodID: form.Card.PaymentMethodID,
		Installments:    form.Card.Installments,
		Payer:           payer,
	}
}
