package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	domain "github.com/personaliza/api/internal/domain"
	"github.com/personaliza/api/internal/platform/auth"
	"github.com/personaliza/api/internal/platform/httpx"
	"github.com/personaliza/api/internal/platform/pagination"
	"github.com/personaliza/api/internal/platform/requestctx"
	"github.com/personaliza/api/internal/services"
)

const pixPaymentMethodID = "pix"

// OrderHandlers exposes the buyer side of the order aggregate: history, status polling,
// payment dispatch and refund requests.
type OrderHandlers struct {
	authn       *auth.Authenticator
	orders      services.OrderService
	payments    services.PaymentService
	idempotency func(http.Handler) http.Handler
	statusLimit *pollBudget
}

// OrderHandlersOption customises OrderHandlers.
type OrderHandlersOption func(*OrderHandlers)

// WithPaymentIdempotency guards the payment endpoint with the given middleware.
func WithPaymentIdempotency(mw func(http.Handler) http.Handler) OrderHandlersOption {
	return func(h *OrderHandlers) {
		h.idempotency = mw
	}
}

// WithStatusRateLimit caps status polls per buyer and order within window.
func WithStatusRateLimit(limit int, window time.Duration, clock func() time.Time) OrderHandlersOption {
	return func(h *OrderHandlers) {
		h.statusLimit = newPollBudget(limit, window, clock)
	}
}

// NewOrderHandlers constructs buyer order handlers.
func NewOrderHandlers(authn *auth.Authenticator, orders services.OrderService, payments services.PaymentService, opts ...OrderHandlersOption) *OrderHandlers {
	h := &OrderHandlers{
		authn:    authn,
		orders:   orders,
		payments: payments,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// Routes registers the /orders endpoints.
func (h *OrderHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireFirebaseAuth())
	}
	r.Get("/", h.listOrders)
	r.Get("/{orderID}", h.getOrder)
	r.Get("/{orderID}/status", h.getStatus)
	r.Post("/{orderID}/refund", h.requestRefund)

	payments := r
	if h.idempotency != nil {
		payments = r.With(h.idempotency)
	}
	payments.Post("/{orderID}/payments", h.dispatchPayment)
}

func (h *OrderHandlers) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, unavailable("order"))
		return
	}
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}

	params, err := pagination.FromRequest(r, pagination.Options{})
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}
	statuses, ok := parseStatusFilter(r.URL.Query()["status"])
	if !ok {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "unknown status filter", http.StatusBadRequest))
		return
	}

	page, err := h.orders.ListOrders(ctx, domain.OrderListFilter{
		UserID:   identity.UID,
		Statuses: statuses,
		Pagination: domain.Pagination{
			PageSize:  params.PageSize,
			PageToken: params.PageToken,
		},
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, buildOrderList(page))
}

func (h *OrderHandlers) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, unavailable("order"))
		return
	}
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}

	order, err := h.orders.GetBuyerOrder(ctx, identity.UID, chi.URLParam(r, "orderID"))
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, buildOrderPayload(order))
}

type orderStatusResponse struct {
	OrderID     string `json:"orderId"`
	Status      string `json:"status"`
	StatusLabel string `json:"statusLabel"`
}

func (h *OrderHandlers) getStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, unavailable("order"))
		return
	}
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}

	orderID := strings.TrimSpace(chi.URLParam(r, "orderID"))
	if !spendOrReject(h.statusLimit, identity.UID+"/"+orderID, w, r) {
		return
	}
	status, err := h.orders.GetStatus(ctx, identity.UID, orderID)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	httpx.WriteJSON(w, http.StatusOK, orderStatusResponse{
		OrderID:     orderID,
		Status:      string(status),
		StatusLabel: status.Label(),
	})
}

type refundRequest struct {
	Reason string `json:"reason" validate:"required"`
}

func (h *OrderHandlers) requestRefund(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, unavailable("order"))
		return
	}
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}

	var req refundRequest
	if err := httpx.DecodeJSON(r, &req, maxRequestBody); err != nil {
		httpx.WriteError(ctx, w, httpx.BadRequest(err))
		return
	}

	order, err := h.orders.RequestRefund(ctx, services.RequestRefundCommand{
		OrderID: chi.URLParam(r, "orderID"),
		UserID:  identity.UID,
		Reason:  req.Reason,
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, buildOrderPayload(order))
}

// paymentRequest accepts both the card token payload and the PIX shape
// {token:null, payment_method_id:"pix", payer:{email, identification:{type:"CPF", number}}}.
type paymentRequest struct {
	Token           *string      `json:"token"`
	PaymentMethodID string       `json:"payment_method_id"`
	Installments    int          `json:"installments" validate:"gte=0,lte=12"`
	Payer           paymentPayer `json:"payer"`
}

type paymentPayer struct {
	Email          string                `json:"email" validate:"omitempty,email"`
	Identification paymentIdentification `json:"identification"`
}

type paymentIdentification struct {
	Type   string `json:"type"`
	Number string `json:"number"`
}

type paymentResponse struct {
	Status       string `json:"status"`
	StatusDetail string `json:"status_detail,omitempty"`
	Message      string `json:"message,omitempty"`
	PaymentID    string `json:"paymentId,omitempty"`
	QRCode       string `json:"qrCode,omitempty"`
	QRCodeBase64 string `json:"qrCodeBase64,omitempty"`
	QRCodeURL    string `json:"qrCodeUrl,omitempty"`
	ExpiresAt    string `json:"expiresAt,omitempty"`
}

func (h *OrderHandlers) dispatchPayment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.payments == nil {
		httpx.WriteError(ctx, w, unavailable("payment"))
		return
	}
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}

	var req paymentRequest
	if err := httpx.DecodeJSON(r, &req, maxRequestBody); err != nil {
		httpx.WriteError(ctx, w, httpx.BadRequest(err))
		return
	}

	cmd := services.DispatchPaymentCommand{
		OrderID:         chi.URLParam(r, "orderID"),
		UserID:          identity.UID,
		Method:          domain.PaymentMethodCard,
		PaymentMethodID: strings.TrimSpace(req.PaymentMethodID),
		Installments:    req.Installments,
		PayerEmail:      firstNonBlank(req.Payer.Email, identity.Email),
		IdempotencyKey:  firstNonBlank(requestctx.IdempotencyKey(ctx), r.Header.Get("Idempotency-Key")),
	}
	if strings.EqualFold(cmd.PaymentMethodID, pixPaymentMethodID) {
		cmd.Method = domain.PaymentMethodPix
		cmd.PayerCPF = req.Payer.Identification.Number
	} else if req.Token != nil {
		cmd.CardToken = *req.Token
	}

	outcome, err := h.payments.DispatchPayment(ctx, cmd)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}

	resp := paymentResponse{
		Status:       string(outcome.Status),
		StatusDetail: outcome.StatusDetail,
		Message:      outcome.Message,
		PaymentID:    outcome.PaymentID,
		QRCode:       outcome.QRCode,
		QRCodeBase64: outcome.QRCodeBase64,
		QRCodeURL:    outcome.QRCodeURL,
	}
	if outcome.ExpiresAt != nil {
		resp.ExpiresAt = outcome.ExpiresAt.UTC().Format(time.RFC3339)
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}

// parseStatusFilter accepts repeated or comma separated values in either vocabulary.
func parseStatusFilter(values []string) ([]domain.OrderStatus, bool) {
	var out []domain.OrderStatus
	seen := map[domain.OrderStatus]struct{}{}
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			status, ok := domain.ParseOrderStatus(part)
			if !ok {
				return nil, false
			}
			if _, dup := seen[status]; dup {
				continue
			}
			seen[status] = struct{}{}
			out = append(out, status)
		}
	}
	return out, true
}

func firstNonBlank(values ...string) string {
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
