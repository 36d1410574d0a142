package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	domain "github.com/personaliza/api/internal/domain"
	"github.com/personaliza/api/internal/platform/auth"
	"github.com/personaliza/api/internal/platform/httpx"
	"github.com/personaliza/api/internal/services"
)

// CartHandlers exposes the server-held cart of the authenticated buyer.
type CartHandlers struct {
	authn *auth.Authenticator
	carts services.CartService
}

// NewCartHandlers constructs cart handlers.
func NewCartHandlers(authn *auth.Authenticator, carts services.CartService) *CartHandlers {
	return &CartHandlers{authn: authn, carts: carts}
}

// Routes registers the /cart endpoints.
func (h *CartHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireFirebaseAuth())
	}
	r.Get("/", h.getCart)
	r.Put("/", h.replaceCart)
	r.Post("/items", h.addItem)
	r.Delete("/items/{lineID}", h.removeItem)
}

// cartItemPayload mirrors the storefront cart line; price is integer cents.
type cartItemPayload struct {
	ID                  string `json:"id,omitempty"`
	ProductID           string `json:"productId" validate:"required"`
	Name                string `json:"name"`
	ImageURL            string `json:"imageUrl,omitempty"`
	Price               int64  `json:"price" validate:"gte=0"`
	Quantity            int    `json:"quantity"`
	SizeID              string `json:"sizeId,omitempty"`
	SizeName            string `json:"sizeName,omitempty"`
	ColorID             string `json:"colorId,omitempty"`
	ColorName           string `json:"colorName,omitempty"`
	PersonalizationText string `json:"personalizationText,omitempty"`
}

type replaceCartRequest struct {
	Items []cartItemPayload `json:"items" validate:"max=100,dive"`
}

type cartResponse struct {
	Items      []cartItemPayload `json:"items"`
	ItemsCount int               `json:"itemsCount"`
	Subtotal   int64             `json:"subtotal"`
	UpdatedAt  string            `json:"updatedAt,omitempty"`
}

func (h *CartHandlers) getCart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.carts == nil {
		httpx.WriteError(ctx, w, unavailable("cart"))
		return
	}
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}
	cart, err := h.carts.GetCart(ctx, identity.UID)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, buildCartResponse(cart))
}

func (h *CartHandlers) replaceCart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.carts == nil {
		httpx.WriteError(ctx, w, unavailable("cart"))
		return
	}
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}

	var req replaceCartRequest
	if err := httpx.DecodeJSON(r, &req, 4*maxRequestBody); err != nil {
		httpx.WriteError(ctx, w, httpx.BadRequest(err))
		return
	}
	items := make([]domain.CartItem, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, item.toDomain())
	}

	cart, err := h.carts.ReplaceItems(ctx, services.ReplaceCartCommand{UserID: identity.UID, Items: items})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, buildCartResponse(cart))
}

func (h *CartHandlers) addItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.carts == nil {
		httpx.WriteError(ctx, w, unavailable("cart"))
		return
	}
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}

	var req cartItemPayload
	if err := httpx.DecodeJSON(r, &req, maxRequestBody); err != nil {
		httpx.WriteError(ctx, w, httpx.BadRequest(err))
		return
	}

	cart, err := h.carts.AddItem(ctx, services.AddCartItemCommand{UserID: identity.UID, Item: req.toDomain()})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, buildCartResponse(cart))
}

func (h *CartHandlers) removeItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.carts == nil {
		httpx.WriteError(ctx, w, unavailable("cart"))
		return
	}
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}

	cart, err := h.carts.RemoveItem(ctx, identity.UID, chi.URLParam(r, "lineID"))
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, buildCartResponse(cart))
}

func (p cartItemPayload) toDomain() domain.CartItem {
	return domain.CartItem{
		ID:                  p.ID,
		ProductID:           p.ProductID,
		Name:                p.Name,
		ImageURL:            p.ImageURL,
		UnitPrice:           p.Price,
		Quantity:            p.Quantity,
		SizeID:              p.SizeID,
		SizeName:            p.SizeName,
		ColorID:             p.ColorID,
		ColorName:           p.ColorName,
		PersonalizationText: p.PersonalizationText,
	}
}

func buildCartResponse(cart domain.Cart) cartResponse {
	resp := cartResponse{
		Items:     make([]cartItemPayload, 0, len(cart.Items)),
		UpdatedAt: formatTime(cart.UpdatedAt),
	}
	for _, item := range cart.Items {
		resp.Items = append(resp.Items, cartItemPayload{
			ID:                  item.ID,
			ProductID:           item.ProductID,
			Name:                item.Name,
			ImageURL:            item.ImageURL,
			Price:               item.UnitPrice,
			Quantity:            item.Quantity,
			SizeID:              item.SizeID,
			SizeName:            item.SizeName,
			ColorID:             item.ColorID,
			ColorName:           item.ColorName,
			PersonalizationText: item.PersonalizationText,
		})
		resp.ItemsCount += item.Quantity
		resp.Subtotal += item.UnitPrice * int64(item.Quantity)
	}
	return resp
}
