package apiclient

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	domain "github.com/personaliza/api/internal/domain"
)

// Order mirrors the order DTO served by the API. Amounts are in cents.
type Order struct {
	ID                string      `json:"id"`
	OrderNumber       string      `json:"orderNumber"`
	UserID            string      `json:"userId"`
	CustomerName      string      `json:"customerName,omitempty"`
	CustomerEmail     string      `json:"customerEmail,omitempty"`
	Phone             string      `json:"phone,omitempty"`
	Status            string      `json:"status"`
	StatusLabel       string      `json:"statusLabel"`
	Currency          string      `json:"currency"`
	Subtotal          int64       `json:"subtotal"`
	ShippingAmount    int64       `json:"shippingAmount"`
	Total             int64       `json:"total"`
	ShippingCode      string      `json:"shippingCode,omitempty"`
	ShippingName      string      `json:"shippingName,omitempty"`
	ShippingDays      int         `json:"shippingEstimatedDays,omitempty"`
	PickupInStore     bool        `json:"pickupInStore"`
	ShippingAddressID string      `json:"shippingAddressId,omitempty"`
	PaymentMethod     string      `json:"paymentMethod"`
	PaymentID         string      `json:"paymentId,omitempty"`
	TrackingCode      string      `json:"trackingCode,omitempty"`
	TrackingCompany   string      `json:"trackingCompany,omitempty"`
	TrackingURL       string      `json:"trackingUrl,omitempty"`
	RefundStatus      string      `json:"refundStatus"`
	RefundReason      string      `json:"refundReason,omitempty"`
	RefundRequestedAt string      `json:"refundRequestedAt,omitempty"`
	RefundProcessedAt string      `json:"refundProcessedAt,omitempty"`
	Items             []OrderItem `json:"items"`
	CreatedAt         string      `json:"createdAt"`
	UpdatedAt         string      `json:"updatedAt,omitempty"`
	DeliveredAt       string      `json:"deliveredAt,omitempty"`
}

// OrderItem is a purchased line snapshot.
type OrderItem struct {
	ID                  string `json:"id"`
	ProductID           string `json:"productId"`
	ProductName         string `json:"productName"`
	UnitPrice           int64  `json:"unitPrice"`
	Quantity            int    `json:"quantity"`
	LineTotal           int64  `json:"lineTotal"`
	SizeName            string `json:"sizeName,omitempty"`
	ColorName           string `json:"colorName,omitempty"`
	PersonalizationText string `json:"personalizationText,omitempty"`
}

// OrderQuery filters the admin order list.
type OrderQuery struct {
	Query     string
	Statuses  []domain.OrderStatus
	PageSize  int
	PageToken string
}

// OrderPage is one page of orders.
type OrderPage struct {
	Items         []Order `json:"items"`
	NextPageToken string  `json:"nextPageToken,omitempty"`
}

// StatusUpdate is the body of PUT /admin/orders/{id}/status. NewStatus carries the backend enum name.
type StatusUpdate struct {
	NewStatus       string `json:"newStatus"`
	AdminUserID     string `json:"adminUserId,omitempty"`
	Note            string `json:"note,omitempty"`
	ExpectedStatus  string `json:"expectedStatus,omitempty"`
	TrackingCode    string `json:"trackingCode,omitempty"`
	TrackingCompany string `json:"trackingCompany,omitempty"`
	TrackingURL     string `json:"trackingUrl,omitempty"`
}

type trackingUpdate struct {
	Order
	AdminUserID string `json:"adminUserId,omitempty"`
}

type refundDecision struct {
	AdminUserID string `json:"adminUserId,omitempty"`
}

// ListAdminOrders searches orders across all buyers.
func (c *Client) ListAdminOrders(ctx context.Context, q OrderQuery) (OrderPage, error) {
	values := url.Values{}
	if query := strings.TrimSpace(q.Query); query != "" {
		values.Set("q", query)
	}
	for _, status := range q.Statuses {
		values.Add("status", string(status))
	}
	if q.PageSize > 0 {
		values.Set("pageSize", strconv.Itoa(q.PageSize))
	}
	if token := strings.TrimSpace(q.PageToken); token != "" {
		values.Set("pageToken", token)
	}

	var page OrderPage
	if err := c.do(ctx, http.MethodGet, []string{"admin", "orders"}, nil, &page, requestOptions{query: values}); err != nil {
		return OrderPage{}, err
	}
	return page, nil
}

// GetAdminOrder fetches one order with items and refund state.
func (c *Client) GetAdminOrder(ctx context.Context, orderID string) (Order, error) {
	return c.orderCall(ctx, http.MethodGet, orderID, nil)
}

// UpdateOrderStatus moves the order to update.NewStatus.
func (c *Client) UpdateOrderStatus(ctx context.Context, orderID string, update StatusUpdate) (Order, error) {
	return c.orderCall(ctx, http.MethodPut, orderID, update, "status")
}

// UpdateTracking sends the full order DTO with tracking fields. The server forces Shipped.
func (c *Client) UpdateTracking(ctx context.Context, order Order, adminUserID string) (Order, error) {
	return c.orderCall(ctx, http.MethodPut, order.ID, trackingUpdate{Order: order, AdminUserID: adminUserID}, "tracking")
}

// ApproveRefund approves a requested refund; the API reverses the payment.
func (c *Client) ApproveRefund(ctx context.Context, orderID, adminUserID string) (Order, error) {
	return c.orderCall(ctx, http.MethodPost, orderID, refundDecision{AdminUserID: adminUserID}, "refund", "approve")
}

// RejectRefund rejects a requested refund.
func (c *Client) RejectRefund(ctx context.Context, orderID, adminUserID string) (Order, error) {
	return c.orderCall(ctx, http.MethodPost, orderID, refundDecision{AdminUserID: adminUserID}, "refund", "reject")
}

func (c *Client) orderCall(ctx context.Context, method, orderID string, body any, suffix ...string) (Order, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return Order{}, ErrMissingOrderID
	}
	segments := append([]string{"admin", "orders", orderID}, suffix...)
	var order Order
	if err := c.do(ctx, method, segments, body, &order, requestOptions{}); err != nil {
		return Order{}, err
	}
	return order, nil
}

// DeleteCatalogEntity applies the delete lifecycle to one product, size or color and returns the
// outcome reported by the API. A linked entity comes back as an *APIError classified as
// KindDependencyConflict.
func (c *Client) DeleteCatalogEntity(ctx context.Context, kind domain.CatalogKind, id string) (domain.DeleteOutcome, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", &APIError{Status: http.StatusBadRequest, Code: "invalid_request", Message: "id is required"}
	}
	var header http.Header
	if err := c.do(ctx, http.MethodDelete, []string{"admin", string(kind), id}, nil, nil, requestOptions{header: &header}); err != nil {
		return "", err
	}
	outcome := domain.DeleteOutcome(strings.TrimSpace(header.Get("X-Delete-Outcome")))
	if outcome == "" {
		outcome = domain.DeleteOutcomeDeleted
	}
	return outcome, nil
}
