package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/personaliza/api/internal/platform/httpx"
	"github.com/personaliza/api/internal/services"
)

// ShippingHandlers serves shipping quotes. The endpoint is public so the cart page can quote
// before login.
type ShippingHandlers struct {
	shipping services.ShippingService
}

// NewShippingHandlers constructs shipping handlers.
func NewShippingHandlers(shipping services.ShippingService) *ShippingHandlers {
	return &ShippingHandlers{shipping: shipping}
}

// Routes registers the /shipping endpoints.
func (h *ShippingHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/quote", h.quote)
}

type shippingOptionPayload struct {
	Code          string `json:"code"`
	Name          string `json:"name"`
	Carrier       string `json:"carrier,omitempty"`
	Price         int64  `json:"price"`
	EstimatedDays int    `json:"estimatedDays"`
	FreeShipping  bool   `json:"freeShipping"`
	Pickup        bool   `json:"pickup"`
}

type shippingQuoteResponse struct {
	Options []shippingOptionPayload `json:"options"`
}

func (h *ShippingHandlers) quote(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.shipping == nil {
		httpx.WriteError(ctx, w, unavailable("shipping"))
		return
	}

	query := r.URL.Query()
	var subtotal int64
	if raw := strings.TrimSpace(query.Get("subtotal")); raw != "" {
		value, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || value < 0 {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "subtotal must be a non-negative integer in cents", http.StatusBadRequest))
			return
		}
		subtotal = value
	}

	options, err := h.shipping.Quote(ctx, services.ShippingQuoteCommand{
		ZipCode:  query.Get("cep"),
		Subtotal: subtotal,
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}

	resp := shippingQuoteResponse{Options: make([]shippingOptionPayload, 0, len(options))}
	for _, opt := range options {
		resp.Options = append(resp.Options, shippingOptionPayload{
			Code:          opt.Code,
			Name:          opt.Name,
			Carrier:       opt.Carrier,
			Price:         opt.Price,
			EstimatedDays: opt.EstimatedDays,
			FreeShipping:  opt.FreeShipping,
			Pickup:        opt.Pickup,
		})
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}
