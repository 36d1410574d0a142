package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	domain "github.com/personaliza/api/internal/domain"
	"github.com/personaliza/api/internal/platform/auth"
	"github.com/personaliza/api/internal/platform/httpx"
	"github.com/personaliza/api/internal/platform/pagination"
	"github.com/personaliza/api/internal/services"
)

// AdminOrderHandlers backs the order console: search, detail, status transitions, tracking,
// refund decisions and the audit trail.
type AdminOrderHandlers struct {
	orders services.OrderService
}

// NewAdminOrderHandlers constructs admin order handlers. Authentication is applied by the
// /admin group.
func NewAdminOrderHandlers(orders services.OrderService) *AdminOrderHandlers {
	return &AdminOrderHandlers{orders: orders}
}

// Routes registers /orders beneath the admin group.
func (h *AdminOrderHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Route("/orders", func(rt chi.Router) {
		rt.Get("/", h.listOrders)
		rt.Get("/{orderID}", h.getOrder)
		rt.Put("/{orderID}/status", h.updateStatus)
		rt.Put("/{orderID}/tracking", h.updateTracking)
		rt.Post("/{orderID}/refund/approve", h.approveRefund)
		rt.Post("/{orderID}/refund/reject", h.rejectRefund)
		rt.Get("/{orderID}/audit", h.listAudit)
	})
}

func (h *AdminOrderHandlers) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, unavailable("order"))
		return
	}

	params, err := pagination.FromRequest(r, pagination.Options{DefaultPageSize: 50})
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}
	query := r.URL.Query()
	statuses, ok := parseStatusFilter(query["status"])
	if !ok {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "unknown status filter", http.StatusBadRequest))
		return
	}

	page, err := h.orders.ListOrders(ctx, domain.OrderListFilter{
		Statuses: statuses,
		Query:    strings.TrimSpace(query.Get("q")),
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

func (h *AdminOrderHandlers) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, unavailable("order"))
		return
	}
	order, err := h.orders.GetOrder(ctx, chi.URLParam(r, "orderID"))
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, buildOrderPayload(order))
}

// updateStatusRequest carries the backend enum name; storefront labels are accepted too.
// Tracking fields are only consulted for a transition to Shipped.
type updateStatusRequest struct {
	NewStatus       string `json:"newStatus" validate:"required"`
	AdminUserID     string `json:"adminUserId"`
	Note            string `json:"note" validate:"max=500"`
	ExpectedStatus  string `json:"expectedStatus"`
	TrackingCode    string `json:"trackingCode"`
	TrackingCompany string `json:"trackingCompany"`
	TrackingURL     string `json:"trackingUrl"`
}

func (h *AdminOrderHandlers) updateStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, unavailable("order"))
		return
	}

	var req updateStatusRequest
	if err := httpx.DecodeJSON(r, &req, maxRequestBody); err != nil {
		httpx.WriteError(ctx, w, httpx.BadRequest(err))
		return
	}
	target, ok := domain.ParseOrderStatus(req.NewStatus)
	if !ok {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "newStatus is not a known order status", http.StatusBadRequest))
		return
	}
	expected, ok := parseExpectedStatus(req.ExpectedStatus)
	if !ok {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "expectedStatus is not a known order status", http.StatusBadRequest))
		return
	}

	cmd := services.OrderStatusTransitionCommand{
		OrderID:        chi.URLParam(r, "orderID"),
		TargetStatus:   target,
		ActorID:        adminActor(r, req.AdminUserID),
		Note:           req.Note,
		ExpectedStatus: expected,
	}
	if req.TrackingCode != "" || req.TrackingCompany != "" || req.TrackingURL != "" {
		cmd.Tracking = &domain.Tracking{Code: req.TrackingCode, Company: req.TrackingCompany, URL: req.TrackingURL}
	}

	order, err := h.orders.TransitionStatus(ctx, cmd)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, buildOrderPayload(order))
}

// updateTrackingRequest accepts the full order DTO; only the tracking fields, the acting
// operator and the optional status precondition are read.
type updateTrackingRequest struct {
	AdminUserID     string `json:"adminUserId"`
	Status          string `json:"status"`
	TrackingCode    string `json:"trackingCode"`
	TrackingCompany string `json:"trackingCompany"`
	TrackingURL     string `json:"trackingUrl"`
}

func (h *AdminOrderHandlers) updateTracking(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, unavailable("order"))
		return
	}

	var req updateTrackingRequest
	if err := httpx.DecodeJSON(r, &req, maxRequestBody); err != nil {
		httpx.WriteError(ctx, w, httpx.BadRequest(err))
		return
	}
	expected, ok := parseExpectedStatus(req.Status)
	if !ok {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "status is not a known order status", http.StatusBadRequest))
		return
	}

	order, err := h.orders.UpdateTracking(ctx, services.UpdateTrackingCommand{
		OrderID: chi.URLParam(r, "orderID"),
		ActorID: adminActor(r, req.AdminUserID),
		Tracking: domain.Tracking{
			Code:    req.TrackingCode,
			Company: req.TrackingCompany,
			URL:     req.TrackingURL,
		},
		ExpectedStatus: expected,
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, buildOrderPayload(order))
}

type refundDecisionRequest struct {
	AdminUserID string `json:"adminUserId"`
}

func (h *AdminOrderHandlers) approveRefund(w http.ResponseWriter, r *http.Request) {
	if h.orders == nil {
		httpx.WriteError(r.Context(), w, unavailable("order"))
		return
	}
	h.decideRefund(w, r, h.orders.ApproveRefund)
}

func (h *AdminOrderHandlers) rejectRefund(w http.ResponseWriter, r *http.Request) {
	if h.orders == nil {
		httpx.WriteError(r.Context(), w, unavailable("order"))
		return
	}
	h.decideRefund(w, r, h.orders.RejectRefund)
}

func (h *AdminOrderHandlers) decideRefund(w http.ResponseWriter, r *http.Request, decide func(context.Context, services.RefundDecisionCommand) (domain.Order, error)) {
	ctx := r.Context()

	var req refundDecisionRequest
	if r.ContentLength != 0 {
		if err := httpx.DecodeJSON(r, &req, maxRequestBody); err != nil && !errors.Is(err, httpx.ErrEmptyBody) {
			httpx.WriteError(ctx, w, httpx.BadRequest(err))
			return
		}
	}

	order, err := decide(ctx, services.RefundDecisionCommand{
		OrderID: chi.URLParam(r, "orderID"),
		ActorID: adminActor(r, req.AdminUserID),
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, buildOrderPayload(order))
}

type auditEntryPayload struct {
	ID         string `json:"id"`
	ActorID    string `json:"actorId"`
	Action     string `json:"action"`
	FromStatus string `json:"fromStatus,omitempty"`
	ToStatus   string `json:"toStatus,omitempty"`
	Note       string `json:"note,omitempty"`
	CreatedAt  string `json:"createdAt"`
}

type auditListResponse struct {
	Items []auditEntryPayload `json:"items"`
}

func (h *AdminOrderHandlers) listAudit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, unavailable("order"))
		return
	}
	entries, err := h.orders.ListAudit(ctx, chi.URLParam(r, "orderID"))
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	resp := auditListResponse{Items: make([]auditEntryPayload, 0, len(entries))}
	for _, entry := range entries {
		resp.Items = append(resp.Items, auditEntryPayload{
			ID:         entry.ID,
			ActorID:    entry.ActorID,
			Action:     entry.Action,
			FromStatus: string(entry.FromStatus),
			ToStatus:   string(entry.ToStatus),
			Note:       entry.Note,
			CreatedAt:  formatTime(entry.CreatedAt),
		})
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}

// adminActor prefers the verified identity over the adminUserId echoed by the console.
func adminActor(r *http.Request, claimed string) string {
	if identity, ok := auth.IdentityFromContext(r.Context()); ok {
		return identity.UID
	}
	return strings.TrimSpace(claimed)
}

func parseExpectedStatus(raw string) (*domain.OrderStatus, bool) {
	if strings.TrimSpace(raw) == "" {
		return nil, true
	}
	status, ok := domain.ParseOrderStatus(raw)
	if !ok {
		return nil, false
	}
	return &status, true
}
