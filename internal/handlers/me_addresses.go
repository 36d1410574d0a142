package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/personaliza/api/internal/platform/auth"
	"github.com/personaliza/api/internal/platform/httpx"
	"github.com/personaliza/api/internal/services"
)

// MeHandlers exposes the buyer's saved addresses under /me.
type MeHandlers struct {
	authn     *auth.Authenticator
	addresses services.AddressService
}

// NewMeHandlers constructs /me handlers.
func NewMeHandlers(authn *auth.Authenticator, addresses services.AddressService) *MeHandlers {
	return &MeHandlers{authn: authn, addresses: addresses}
}

// Routes registers the /me endpoints.
func (h *MeHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireFirebaseAuth())
	}
	r.Get("/addresses", h.listAddresses)
	r.Post("/addresses", h.createAddress)
}

type createAddressRequest struct {
	Recipient    string `json:"recipient"`
	Street       string `json:"street"`
	Number       string `json:"number"`
	Complement   string `json:"complement"`
	Neighborhood string `json:"neighborhood"`
	City         string `json:"city"`
	State        string `json:"state"`
	ZipCode      string `json:"zipCode"`
	Country      string `json:"country"`
	Phone        string `json:"phone"`
	IsDefault    bool   `json:"isDefault"`
}

type addressListResponse struct {
	Items []addressPayload `json:"items"`
}

func (h *MeHandlers) listAddresses(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.addresses == nil {
		httpx.WriteError(ctx, w, unavailable("address"))
		return
	}
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}

	addresses, err := h.addresses.ListAddresses(ctx, identity.UID)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	resp := addressListResponse{Items: make([]addressPayload, 0, len(addresses))}
	for _, addr := range addresses {
		resp.Items = append(resp.Items, buildAddressPayload(addr))
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}

func (h *MeHandlers) createAddress(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.addresses == nil {
		httpx.WriteError(ctx, w, unavailable("address"))
		return
	}
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}

	var req createAddressRequest
	if err := httpx.DecodeJSON(r, &req, maxRequestBody); err != nil {
		httpx.WriteError(ctx, w, httpx.BadRequest(err))
		return
	}

	addr, err := h.addresses.CreateAddress(ctx, services.CreateAddressCommand{
		UserID:       identity.UID,
		Recipient:    firstNonBlank(req.Recipient, identity.Name),
		Street:       req.Street,
		Number:       req.Number,
		Complement:   req.Complement,
		Neighborhood: req.Neighborhood,
		City:         req.City,
		State:        req.State,
		ZipCode:      req.ZipCode,
		Country:      req.Country,
		Phone:        req.Phone,
		IsDefault:    req.IsDefault,
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, buildAddressPayload(addr))
}
