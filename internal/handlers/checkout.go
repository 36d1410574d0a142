package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	domain "github.com/personaliza/api/internal/domain"
	"github.com/personaliza/api/internal/platform/auth"
	"github.com/personaliza/api/internal/platform/httpx"
	"github.com/personaliza/api/internal/services"
)

// CheckoutHandlers turns the server cart into a pending order.
type CheckoutHandlers struct {
	authn    *auth.Authenticator
	checkout services.CheckoutService
}

// NewCheckoutHandlers constructs checkout handlers guarded by Firebase authentication.
func NewCheckoutHandlers(authn *auth.Authenticator, checkout services.CheckoutService) *CheckoutHandlers {
	return &CheckoutHandlers{
		authn:    authn,
		checkout: checkout,
	}
}

// Routes registers checkout endpoints under the provided router.
func (h *CheckoutHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireFirebaseAuth())
	}
	r.Post("/orders", h.placeOrder)
}

type checkoutRequest struct {
	ShippingAmount        *int64                  `json:"shippingAmount"`
	ShippingCode          string                  `json:"shippingCode"`
	ShippingName          string                  `json:"shippingName"`
	ShippingEstimatedDays int                     `json:"shippingEstimatedDays"`
	PickupInStore         bool                    `json:"pickupInStore"`
	ShippingAddressID     string                  `json:"shippingAddressId"`
	ShippingPhone         string                  `json:"shippingPhone"`
	FullName              string                  `json:"fullName"`
	Email                 string                  `json:"email"`
	Address               *checkoutAddressRequest `json:"address"`
	PaymentMethod         string                  `json:"paymentMethod"`
	CPF                   string                  `json:"cpf"`
}

type checkoutAddressRequest struct {
	Street       string `json:"street"`
	Number       string `json:"number"`
	Complement   string `json:"complement"`
	Neighborhood string `json:"neighborhood"`
	City         string `json:"city"`
	State        string `json:"state"`
	ZipCode      string `json:"zipCode"`
	Country      string `json:"country"`
}

type checkoutResponse struct {
	OrderID     string `json:"orderId"`
	OrderNumber string `json:"orderNumber"`
	Total       int64  `json:"total"`
}

// placeOrder leaves field validation to the service so the ordered checkout rules are applied
// in one place.
func (h *CheckoutHandlers) placeOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.checkout == nil {
		httpx.WriteError(ctx, w, unavailable("checkout"))
		return
	}
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}

	var req checkoutRequest
	if err := httpx.DecodeJSON(r, &req, maxRequestBody); err != nil {
		httpx.WriteError(ctx, w, httpx.BadRequest(err))
		return
	}

	cmd := services.PlaceOrderCommand{
		UserID:         identity.UID,
		Email:          firstNonBlank(req.Email, identity.Email),
		FullName:       firstNonBlank(req.FullName, identity.Name),
		Phone:          req.ShippingPhone,
		PickupInStore:  req.PickupInStore,
		ShippingCode:   req.ShippingCode,
		ShippingAmount: req.ShippingAmount,
		AddressID:      req.ShippingAddressID,
		PaymentMethod:  domain.PaymentMethod(req.PaymentMethod),
		CPF:            req.CPF,
	}
	if req.Address != nil {
		cmd.Address = &services.CheckoutAddress{
			Street:       req.Address.Street,
			Number:       req.Address.Number,
			Complement:   req.Address.Complement,
			Neighborhood: req.Address.Neighborhood,
			City:         req.Address.City,
			State:        req.Address.State,
			ZipCode:      req.Address.ZipCode,
			Country:      req.Address.Country,
		}
	}

	placed, err := h.checkout.PlaceOrder(ctx, cmd)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, checkoutResponse{
		OrderID:     placed.OrderID,
		OrderNumber: placed.OrderNumber,
		Total:       placed.Total,
	})
}
