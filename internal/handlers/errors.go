package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	domain "github.com/personaliza/api/internal/domain"
	"github.com/personaliza/api/internal/platform/auth"
	"github.com/personaliza/api/internal/platform/httpx"
	"github.com/personaliza/api/internal/services"
)

const maxRequestBody = 16 * 1024

func unauthenticated() httpx.Error {
	return httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized)
}

func unavailable(name string) httpx.Error {
	return httpx.NewError(name+"_unavailable", name+" service unavailable", http.StatusServiceUnavailable)
}

// requireIdentity returns the caller or writes a 401.
func requireIdentity(ctx context.Context, w http.ResponseWriter) (*auth.Identity, bool) {
	identity, ok := auth.IdentityFromContext(ctx)
	if !ok || identity == nil || strings.TrimSpace(identity.UID) == "" {
		httpx.WriteError(ctx, w, unauthenticated())
		return nil, false
	}
	return identity, true
}

// writeServiceError maps service sentinels onto the JSON error envelope.
func writeServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}

	var fieldErr *domain.CheckoutFieldError
	if errors.As(err, &fieldErr) {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_field", fieldErr.Message, http.StatusBadRequest).
			WithDetails(map[string]any{"field": string(fieldErr.Field)}))
		return
	}
	var addrErr *services.AddressValidationError
	if errors.As(err, &addrErr) {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_address", "address validation failed", http.StatusBadRequest).
			WithDetails(map[string]any{"fields": addrErr.Fields}))
		return
	}

	switch {
	case errors.Is(err, services.ErrCheckoutAuthRequired):
		httpx.WriteError(ctx, w, unauthenticated())
	case errors.Is(err, services.ErrCheckoutCartEmpty):
		httpx.WriteError(ctx, w, httpx.NewError("cart_empty", "cart is empty", http.StatusConflict))
	case errors.Is(err, services.ErrCheckoutShippingMismatch):
		httpx.WriteError(ctx, w, httpx.NewError("shipping_mismatch", "shipping amount no longer matches the quote", http.StatusConflict))
	case errors.Is(err, services.ErrOrderTrackingRequired):
		httpx.WriteError(ctx, w, httpx.NewError("tracking_required", "trackingCode, trackingCompany and trackingUrl are required", http.StatusUnprocessableEntity))
	case errors.Is(err, services.ErrOrderNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("order_not_found", "order not found", http.StatusNotFound))
	case errors.Is(err, services.ErrAddressNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("address_not_found", "address not found", http.StatusNotFound))
	case errors.Is(err, services.ErrOrderConflict):
		httpx.WriteError(ctx, w, httpx.NewError("order_conflict", "order changed; refresh and retry", http.StatusConflict))
	case errors.Is(err, services.ErrOrderInvalidState),
		errors.Is(err, services.ErrPaymentOrderNotPending):
		httpx.WriteError(ctx, w, httpx.NewError("order_invalid_state", err.Error(), http.StatusConflict))
	case errors.Is(err, services.ErrCartConflict):
		httpx.WriteError(ctx, w, httpx.NewError("cart_conflict", "cart changed; retry", http.StatusConflict))
	case errors.Is(err, services.ErrOrderPaymentFailed),
		errors.Is(err, services.ErrPaymentGatewayFailure):
		httpx.WriteError(ctx, w, httpx.NewError("payment_gateway_error", "payment provider failed; try again", http.StatusBadGateway))
	case errors.Is(err, services.ErrCheckoutInvalidInput),
		errors.Is(err, services.ErrOrderInvalidInput),
		errors.Is(err, services.ErrPaymentInvalidInput),
		errors.Is(err, services.ErrCartInvalidInput),
		errors.Is(err, services.ErrAddressInvalidInput),
		errors.Is(err, services.ErrShippingInvalidCep),
		errors.Is(err, services.ErrCatalogInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrCartUnavailable),
		errors.Is(err, services.ErrCatalogUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("service_unavailable", "service temporarily unavailable", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("internal_error", "failed to process request", http.StatusInternalServerError))
	}
}
