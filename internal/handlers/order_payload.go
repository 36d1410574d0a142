package handlers

import (
	"time"

	domain "github.com/personaliza/api/internal/domain"
)

// Amounts are integer cents.
type orderPayload struct {
	ID                string             `json:"id"`
	OrderNumber       string             `json:"orderNumber"`
	UserID            string             `json:"userId"`
	CustomerName      string             `json:"customerName,omitempty"`
	CustomerEmail     string             `json:"customerEmail,omitempty"`
	Phone             string             `json:"phone,omitempty"`
	Status            string             `json:"status"`
	StatusLabel       string             `json:"statusLabel"`
	Currency          string             `json:"currency"`
	Subtotal          int64              `json:"subtotal"`
	ShippingAmount    int64              `json:"shippingAmount"`
	Total             int64              `json:"total"`
	ShippingCode      string             `json:"shippingCode,omitempty"`
	ShippingName      string             `json:"shippingName,omitempty"`
	ShippingDays      int                `json:"shippingEstimatedDays,omitempty"`
	PickupInStore     bool               `json:"pickupInStore"`
	ShippingAddressID string             `json:"shippingAddressId,omitempty"`
	ShippingAddress   *addressPayload    `json:"shippingAddress,omitempty"`
	PaymentMethod     string             `json:"paymentMethod"`
	PaymentID         string             `json:"paymentId,omitempty"`
	PaymentDetail     string             `json:"paymentDetail,omitempty"`
	TrackingCode      string             `json:"trackingCode,omitempty"`
	TrackingCompany   string             `json:"trackingCompany,omitempty"`
	TrackingURL       string             `json:"trackingUrl,omitempty"`
	RefundStatus      string             `json:"refundStatus"`
	RefundReason      string             `json:"refundReason,omitempty"`
	RefundRequestedAt string             `json:"refundRequestedAt,omitempty"`
	RefundProcessedAt string             `json:"refundProcessedAt,omitempty"`
	Items             []orderItemPayload `json:"items"`
	CreatedAt         string             `json:"createdAt"`
	UpdatedAt         string             `json:"updatedAt,omitempty"`
	PaidAt            string             `json:"paidAt,omitempty"`
	ShippedAt         string             `json:"shippedAt,omitempty"`
	DeliveredAt       string             `json:"deliveredAt,omitempty"`
	CancelledAt       string             `json:"cancelledAt,omitempty"`
}

type orderItemPayload struct {
	ID                  string `json:"id"`
	ProductID           string `json:"productId"`
	ProductName         string `json:"productName"`
	ImageURL            string `json:"imageUrl,omitempty"`
	UnitPrice           int64  `json:"unitPrice"`
	Quantity            int    `json:"quantity"`
	LineTotal           int64  `json:"lineTotal"`
	SizeID              string `json:"sizeId,omitempty"`
	SizeName            string `json:"sizeName,omitempty"`
	ColorID             string `json:"colorId,omitempty"`
	ColorName           string `json:"colorName,omitempty"`
	PersonalizationText string `json:"personalizationText,omitempty"`
}

type addressPayload struct {
	ID           string `json:"id,omitempty"`
	Recipient    string `json:"recipient,omitempty"`
	Street       string `json:"street"`
	Number       string `json:"number"`
	Complement   string `json:"complement,omitempty"`
	Neighborhood string `json:"neighborhood"`
	City         string `json:"city"`
	State        string `json:"state"`
	ZipCode      string `json:"zipCode"`
	Country      string `json:"country"`
	Phone        string `json:"phone,omitempty"`
	IsDefault    bool   `json:"isDefault,omitempty"`
}

type orderListResponse struct {
	Items         []orderPayload `json:"items"`
	NextPageToken string         `json:"nextPageToken,omitempty"`
}

func buildOrderPayload(order domain.Order) orderPayload {
	payload := orderPayload{
		ID:                order.ID,
		OrderNumber:       order.Number,
		UserID:            order.UserID,
		CustomerName:      order.CustomerName,
		CustomerEmail:     order.CustomerEmail,
		Phone:             order.Phone,
		Status:            string(order.Status),
		StatusLabel:       order.Status.Label(),
		Currency:          order.Currency,
		Subtotal:          order.Subtotal,
		ShippingAmount:    order.Shipping,
		Total:             order.Total,
		ShippingCode:      order.ShippingMethod.Code,
		ShippingName:      order.ShippingMethod.Name,
		ShippingDays:      order.ShippingMethod.EstimatedDays,
		PickupInStore:     order.ShippingMethod.Pickup,
		ShippingAddressID: order.AddressID,
		PaymentMethod:     string(order.PaymentMethod),
		PaymentID:         order.PaymentID,
		PaymentDetail:     order.PaymentDetail,
		RefundStatus:      string(order.Refund.State),
		RefundReason:      order.Refund.Reason,
		RefundRequestedAt: formatTimePtr(order.Refund.RequestedAt),
		RefundProcessedAt: formatTimePtr(order.Refund.ProcessedAt),
		Items:             make([]orderItemPayload, 0, len(order.Items)),
		CreatedAt:         formatTime(order.CreatedAt),
		UpdatedAt:         formatTime(order.UpdatedAt),
		PaidAt:            formatTimePtr(order.PaidAt),
		ShippedAt:         formatTimePtr(order.ShippedAt),
		DeliveredAt:       formatTimePtr(order.DeliveredAt),
		CancelledAt:       formatTimePtr(order.CancelledAt),
	}
	if payload.RefundStatus == "" {
		payload.RefundStatus = string(domain.RefundStateNone)
	}
	if order.Tracking != nil {
		payload.TrackingCode = order.Tracking.Code
		payload.TrackingCompany = order.Tracking.Company
		payload.TrackingURL = order.Tracking.URL
	}
	if snap := order.ShippingAddress; snap != nil {
		payload.ShippingAddress = &addressPayload{
			Recipient:    snap.Recipient,
			Street:       snap.Street,
			Number:       snap.Number,
			Complement:   snap.Complement,
			Neighborhood: snap.Neighborhood,
			City:         snap.City,
			State:        snap.State,
			ZipCode:      snap.ZipCode,
			Country:      snap.Country,
			Phone:        snap.Phone,
		}
	}
	for _, item := range order.Items {
		payload.Items = append(payload.Items, orderItemPayload{
			ID:                  item.ID,
			ProductID:           item.ProductID,
			ProductName:         item.ProductName,
			ImageURL:            item.ImageURL,
			UnitPrice:           item.UnitPrice,
			Quantity:            item.Quantity,
			LineTotal:           item.LineTotal,
			SizeID:              item.SizeID,
			SizeName:            item.SizeName,
			ColorID:             item.ColorID,
			ColorName:           item.ColorName,
			PersonalizationText: item.PersonalizationText,
		})
	}
	return payload
}

func buildOrderList(page domain.CursorPage[domain.Order]) orderListResponse {
	items := make([]orderPayload, 0, len(page.Items))
	for _, order := range page.Items {
		items = append(items, buildOrderPayload(order))
	}
	return orderListResponse{Items: items, NextPageToken: page.NextPageToken}
}

func buildAddressPayload(addr domain.Address) addressPayload {
	return addressPayload{
		ID:           addr.ID,
		Recipient:    addr.Recipient,
		Street:       addr.Street,
		Number:       addr.Number,
		Complement:   addr.Complement,
		Neighborhood: addr.Neighborhood,
		City:         addr.City,
		State:        addr.State,
		ZipCode:      addr.ZipCode,
		Country:      addr.Country,
		Phone:        addr.Phone,
		IsDefault:    addr.IsDefault,
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return formatTime(*t)
}
