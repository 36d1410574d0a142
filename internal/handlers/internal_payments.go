package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/personaliza/api/internal/platform/httpx"
	"github.com/personaliza/api/internal/services"
)

// InternalPaymentHandlers exposes maintenance endpoints invoked by Cloud Scheduler. The
// /internal group is guarded by OIDC.
type InternalPaymentHandlers struct {
	payments services.PaymentService
}

// NewInternalPaymentHandlers constructs internal payment handlers.
func NewInternalPaymentHandlers(payments services.PaymentService) *InternalPaymentHandlers {
	return &InternalPaymentHandlers{payments: payments}
}

// Routes registers the /internal endpoints.
func (h *InternalPaymentHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/payments/reconcile", h.reconcile)
}

type reconcileRequest struct {
	OlderThanSeconds int `json:"olderThanSeconds" validate:"gte=0"`
	Limit            int `json:"limit" validate:"gte=0,lte=500"`
}

type reconcileResponse struct {
	Checked   int `json:"checked"`
	Confirmed int `json:"confirmed"`
	Failed    int `json:"failed"`
}

func (h *InternalPaymentHandlers) reconcile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.payments == nil {
		httpx.WriteError(ctx, w, unavailable("payment"))
		return
	}

	var req reconcileRequest
	if err := httpx.DecodeJSON(r, &req, maxRequestBody); err != nil && !errors.Is(err, httpx.ErrEmptyBody) {
		httpx.WriteError(ctx, w, httpx.BadRequest(err))
		return
	}

	result, err := h.payments.ReconcilePending(ctx, services.ReconcileCommand{
		OlderThan: time.Duration(req.OlderThanSeconds) * time.Second,
		Limit:     req.Limit,
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, reconcileResponse{
		Checked:   result.Checked,
		Confirmed: result.Confirmed,
		Failed:    result.Failed,
	})
}
