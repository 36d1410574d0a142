package apiclient

import (
	"context"
	"errors"
	"net/http"
	"strings"

	domain "github.com/personaliza/api/internal/domain"
)

// ErrMissingOrderID is returned when an order scoped call has no order id.
var ErrMissingOrderID = errors.New("apiclient: order id is required")

// CartItem mirrors a server cart line. Price is in cents.
type CartItem struct {
	ID                  string `json:"id,omitempty"`
	ProductID           string `json:"productId"`
	Name                string `json:"name"`
	ImageURL            string `json:"imageUrl,omitempty"`
	Price               int64  `json:"price"`
	Quantity            int    `json:"quantity"`
	SizeID              string `json:"sizeId,omitempty"`
	SizeName            string `json:"sizeName,omitempty"`
	ColorID             string `json:"colorId,omitempty"`
	ColorName           string `json:"colorName,omitempty"`
	PersonalizationText string `json:"personalizationText,omitempty"`
}

// Cart is the server-held cart of the signed-in buyer.
type Cart struct {
	Items      []CartItem `json:"items"`
	ItemsCount int        `json:"itemsCount"`
	Subtotal   int64      `json:"subtotal"`
}

// CheckoutAddress carries raw address fields for on-the-fly address creation.
type CheckoutAddress struct {
	Street       string `json:"street"`
	Number       string `json:"number"`
	Complement   string `json:"complement,omitempty"`
	Neighborhood string `json:"neighborhood"`
	City         string `json:"city"`
	State        string `json:"state"`
	ZipCode      string `json:"zipCode"`
	Country      string `json:"country,omitempty"`
}

// CheckoutRequest creates a pending order from the server cart. Amounts are in cents.
type CheckoutRequest struct {
	ShippingAmount        int64            `json:"shippingAmount"`
	ShippingCode          string           `json:"shippingCode,omitempty"`
	ShippingName          string           `json:"shippingName,omitempty"`
	ShippingEstimatedDays int              `json:"shippingEstimatedDays,omitempty"`
	PickupInStore         bool             `json:"pickupInStore"`
	ShippingAddressID     string           `json:"shippingAddressId,omitempty"`
	ShippingPhone         string           `json:"shippingPhone"`
	FullName              string           `json:"fullName"`
	Email                 string           `json:"email,omitempty"`
	Address               *CheckoutAddress `json:"address,omitempty"`
	PaymentMethod         string           `json:"paymentMethod"`
	CPF                   string           `json:"cpf,omitempty"`
}

// CheckoutResult identifies the created order.
type CheckoutResult struct {
	OrderID     string `json:"orderId"`
	OrderNumber string `json:"orderNumber"`
	Total       int64  `json:"total"`
}

// PaymentIdentification is the payer tax document.
type PaymentIdentification struct {
	Type   string `json:"type"`
	Number string `json:"number"`
}

// PaymentPayer describes who pays.
type PaymentPayer struct {
	Email          string                `json:"email,omitempty"`
	Identification PaymentIdentification `json:"identification"`
}

// PaymentRequest is shared by card and PIX dispatch. Token is nil for PIX.
type PaymentRequest struct {
	Token           *string      `json:"token"`
	PaymentMethodID string       `json:"payment_method_id"`
	Installments    int          `json:"installments,omitempty"`
	Payer           PaymentPayer `json:"payer"`
}

// PaymentResult is the gateway outcome relayed by the API.
type PaymentResult struct {
	Status       string `json:"status"`
	StatusDetail string `json:"status_detail,omitempty"`
	Message      string `json:"message,omitempty"`
	PaymentID    string `json:"paymentId,omitempty"`
	QRCode       string `json:"qrCode,omitempty"`
	QRCodeBase64 string `json:"qrCodeBase64,omitempty"`
	QRCodeURL    string `json:"qrCodeUrl,omitempty"`
	ExpiresAt    string `json:"expiresAt,omitempty"`
}

type statusPayload struct {
	OrderID     string `json:"orderId"`
	Status      string `json:"status"`
	StatusLabel string `json:"statusLabel"`
}

// GetCart fetches the server cart.
func (c *Client) GetCart(ctx context.Context) (Cart, error) {
	var cart Cart
	if err := c.do(ctx, http.MethodGet, []string{"cart"}, nil, &cart, requestOptions{}); err != nil {
		return Cart{}, err
	}
	return cart, nil
}

// PlaceOrder creates a pending order from the server cart.
func (c *Client) PlaceOrder(ctx context.Context, req CheckoutRequest) (CheckoutResult, error) {
	var result CheckoutResult
	if err := c.do(ctx, http.MethodPost, []string{"checkout", "orders"}, req, &result, requestOptions{}); err != nil {
		return CheckoutResult{}, err
	}
	return result, nil
}

// DispatchPayment charges a card or generates a PIX code. An empty idempotencyKey gets a fresh one.
func (c *Client) DispatchPayment(ctx context.Context, orderID string, req PaymentRequest, idempotencyKey string) (PaymentResult, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return PaymentResult{}, ErrMissingOrderID
	}
	var result PaymentResult
	err := c.do(ctx, http.MethodPost, []string{"orders", orderID, "payments"}, req, &result, requestOptions{
		idempotencyKey: ensureIdempotencyKey(idempotencyKey),
	})
	if err != nil {
		return PaymentResult{}, err
	}
	return result, nil
}

// OrderStatus reads the lightweight status used by PIX polling.
func (c *Client) OrderStatus(ctx context.Context, orderID string) (domain.OrderStatus, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return "", ErrMissingOrderID
	}
	var payload statusPayload
	if err := c.do(ctx, http.MethodGet, []string{"orders", orderID, "status"}, nil, &payload, requestOptions{}); err != nil {
		return "", err
	}
	status, ok := domain.ParseOrderStatus(payload.Status)
	if !ok {
		return "", &APIError{Status: http.StatusOK, Code: "invalid_status", Message: "unknown order status " + payload.Status}
	}
	return status, nil
}
