package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	domain "github.com/personaliza/api/internal/domain"
	"github.com/personaliza/api/internal/services"
)

func TestAdminOrderHandlersListOrdersSearch(t *testing.T) {
	var captured services.OrderListFilter
	service := &stubOrderService{
		listFn: func(_ context.Context, filter services.OrderListFilter) (domain.CursorPage[services.Order], error) {
			captured = filter
			return domain.CursorPage[services.Order]{Items: []services.Order{{ID: "ord_1", Status: domain.OrderStatusPending}}}, nil
		},
	}
	handler := NewAdminOrderHandlers(service)

	rr := serve(handler.Routes, "/admin", http.MethodGet, "/admin/orders?q=%20ana%20&status=pendente", "", "staff-1", "admin")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if captured.UserID != "" {
		t.Fatalf("expected admin listing not to be scoped to a user, got %q", captured.UserID)
	}
	if captured.Query != "ana" {
		t.Fatalf("expected trimmed query, got %q", captured.Query)
	}
	if captured.Pagination.PageSize != 50 {
		t.Fatalf("expected default page size 50, got %d", captured.Pagination.PageSize)
	}
	if len(captured.Statuses) != 1 || captured.Statuses[0] != domain.OrderStatusPending {
		t.Fatalf("unexpected statuses %v", captured.Statuses)
	}
}

func TestAdminOrderHandlersUpdateStatus(t *testing.T) {
	var captured services.OrderStatusTransitionCommand
	service := &stubOrderService{
		transitionFn: func(_ context.Context, cmd services.OrderStatusTransitionCommand) (services.Order, error) {
			captured = cmd
			return services.Order{ID: cmd.OrderID, Status: cmd.TargetStatus}, nil
		},
	}
	handler := NewAdminOrderHandlers(service)

	body := `{"newStatus":"InProduction","adminUserId":"spoofed","note":"bordado iniciado","expectedStatus":"aprovado"}`
	rr := serve(handler.Routes, "/admin", http.MethodPut, "/admin/orders/ord_1/status", body, "staff-1", "admin")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if captured.OrderID != "ord_1" || captured.TargetStatus != domain.OrderStatusInProduction {
		t.Fatalf("unexpected command %#v", captured)
	}
	if captured.ActorID != "staff-1" {
		t.Fatalf("expected actor from identity, got %q", captured.ActorID)
	}
	if captured.ExpectedStatus == nil || *captured.ExpectedStatus != domain.OrderStatusPaid {
		t.Fatalf("expected precondition Paid, got %v", captured.ExpectedStatus)
	}
	if captured.Tracking != nil {
		t.Fatalf("expected no tracking, got %#v", captured.Tracking)
	}

	var resp orderPayload
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Status != "InProduction" || resp.StatusLabel != "em_producao" {
		t.Fatalf("unexpected status payload %q/%q", resp.Status, resp.StatusLabel)
	}
}

func TestAdminOrderHandlersUpdateStatusShippedForwardsTracking(t *testing.T) {
	var captured services.OrderStatusTransitionCommand
	service := &stubOrderService{
		transitionFn: func(_ context.Context, cmd services.OrderStatusTransitionCommand) (services.Order, error) {
			captured = cmd
			return services.Order{ID: cmd.OrderID, Status: cmd.TargetStatus, Tracking: cmd.Tracking}, nil
		},
	}
	handler := NewAdminOrderHandlers(service)

	body := `{"newStatus":"Shipped","trackingCode":"BR123","trackingCompany":"Correios","trackingUrl":"https://rastreio.example/BR123"}`
	rr := serve(handler.Routes, "/admin", http.MethodPut, "/admin/orders/ord_1/status", body, "staff-1", "admin")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if captured.Tracking == nil || captured.Tracking.Code != "BR123" || captured.Tracking.Company != "Correios" {
		t.Fatalf("expected tracking forwarded, got %#v", captured.Tracking)
	}
	var resp orderPayload
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.TrackingCode != "BR123" || resp.TrackingURL != "https://rastreio.example/BR123" {
		t.Fatalf("unexpected tracking payload %#v", resp)
	}
}

func TestAdminOrderHandlersUpdateStatusErrors(t *testing.T) {
	cases := []struct {
		name string
		body string
		err  error
		want int
		code string
	}{
		{name: "tracking required", body: `{"newStatus":"Shipped"}`, err: services.ErrOrderTrackingRequired, want: http.StatusUnprocessableEntity, code: "tracking_required"},
		{name: "illegal transition", body: `{"newStatus":"Pending"}`, err: services.ErrOrderInvalidState, want: http.StatusConflict, code: "order_invalid_state"},
		{name: "stale precondition", body: `{"newStatus":"Paid","expectedStatus":"Pending"}`, err: services.ErrOrderConflict, want: http.StatusConflict, code: "order_conflict"},
		{name: "unknown status", body: `{"newStatus":"Lost"}`, want: http.StatusBadRequest, code: "invalid_request"},
		{name: "missing status", body: `{"note":"x"}`, want: http.StatusBadRequest, code: "invalid_request"},
		{name: "unknown expected", body: `{"newStatus":"Paid","expectedStatus":"??"}`, want: http.StatusBadRequest, code: "invalid_request"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			service := &stubOrderService{
				transitionFn: func(context.Context, services.OrderStatusTransitionCommand) (services.Order, error) {
					if tc.err == nil {
						t.Fatalf("service should not be called")
					}
					return services.Order{}, tc.err
				},
			}
			handler := NewAdminOrderHandlers(service)
			rr := serve(handler.Routes, "/admin", http.MethodPut, "/admin/orders/ord_1/status", tc.body, "staff-1", "admin")
			if rr.Code != tc.want {
				t.Fatalf("expected %d, got %d: %s", tc.want, rr.Code, rr.Body.String())
			}
			var body map[string]any
			if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode error: %v", err)
			}
			if body["error"] != tc.code {
				t.Fatalf("expected code %s, got %v", tc.code, body["error"])
			}
		})
	}
}

func TestAdminOrderHandlersUpdateTracking(t *testing.T) {
	var captured services.UpdateTrackingCommand
	service := &stubOrderService{
		trackingFn: func(_ context.Context, cmd services.UpdateTrackingCommand) (services.Order, error) {
			captured = cmd
			return services.Order{ID: cmd.OrderID, Status: domain.OrderStatusShipped, Tracking: &cmd.Tracking}, nil
		},
	}
	handler := NewAdminOrderHandlers(service)

	body := `{"id":"ord_1","status":"em_producao","trackingCode":"BR9","trackingCompany":"Jadlog","trackingUrl":"https://t.example/BR9","total":100}`
	rr := serve(handler.Routes, "/admin", http.MethodPut, "/admin/orders/ord_1/tracking", body, "staff-1", "admin")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if captured.Tracking.Code != "BR9" || captured.Tracking.Company != "Jadlog" || captured.ActorID != "staff-1" {
		t.Fatalf("unexpected tracking command %#v", captured)
	}
	if captured.ExpectedStatus == nil || *captured.ExpectedStatus != domain.OrderStatusInProduction {
		t.Fatalf("expected precondition InProduction, got %v", captured.ExpectedStatus)
	}
}

func TestAdminOrderHandlersRefundDecisions(t *testing.T) {
	processed := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	var approved, rejected services.RefundDecisionCommand
	service := &stubOrderService{
		approveFn: func(_ context.Context, cmd services.RefundDecisionCommand) (services.Order, error) {
			approved = cmd
			return services.Order{
				ID:     cmd.OrderID,
				Status: domain.OrderStatusRefunded,
				Refund: domain.Refund{State: domain.RefundStateApproved, ProcessedAt: &processed},
			}, nil
		},
		rejectFn: func(_ context.Context, cmd services.RefundDecisionCommand) (services.Order, error) {
			rejected = cmd
			return services.Order{}, services.ErrOrderInvalidState
		},
	}
	handler := NewAdminOrderHandlers(service)

	rr := serve(handler.Routes, "/admin", http.MethodPost, "/admin/orders/ord_1/refund/approve", "", "staff-1", "admin")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if approved.OrderID != "ord_1" || approved.ActorID != "staff-1" {
		t.Fatalf("unexpected approve command %#v", approved)
	}
	var resp orderPayload
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Status != "Refunded" || resp.RefundStatus != "approved" || resp.RefundProcessedAt == "" {
		t.Fatalf("unexpected refund payload %#v", resp)
	}

	rr = serve(handler.Routes, "/admin", http.MethodPost, "/admin/orders/ord_2/refund/reject", `{"adminUserId":"ignored"}`, "staff-2", "admin")
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rr.Code)
	}
	if rejected.OrderID != "ord_2" || rejected.ActorID != "staff-2" {
		t.Fatalf("unexpected reject command %#v", rejected)
	}
}

func TestAdminOrderHandlersListAudit(t *testing.T) {
	at := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	service := &stubOrderService{
		auditFn: func(_ context.Context, orderID string) ([]services.OrderAuditEntry, error) {
			return []services.OrderAuditEntry{{
				ID:         "aud_1",
				OrderID:    orderID,
				ActorID:    "staff-1",
				Action:     "status_changed",
				FromStatus: domain.OrderStatusPaid,
				ToStatus:   domain.OrderStatusInProduction,
				CreatedAt:  at,
			}}, nil
		},
	}
	handler := NewAdminOrderHandlers(service)

	rr := serve(handler.Routes, "/admin", http.MethodGet, "/admin/orders/ord_1/audit", "", "staff-1", "admin")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var resp auditListResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Items) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(resp.Items))
	}
	entry := resp.Items[0]
	if entry.FromStatus != "Paid" || entry.ToStatus != "InProduction" || entry.CreatedAt != "2025-06-01T10:00:00Z" {
		t.Fatalf("unexpected audit entry %#v", entry)
	}
}

func TestAdminActorFallsBackToClaimedID(t *testing.T) {
	handler := NewAdminOrderHandlers(&stubOrderService{
		approveFn: func(_ context.Context, cmd services.RefundDecisionCommand) (services.Order, error) {
			if cmd.ActorID != "console-user" {
				t.Fatalf("expected claimed actor, got %q", cmd.ActorID)
			}
			return services.Order{ID: cmd.OrderID, Status: domain.OrderStatusRefunded}, nil
		},
	})

	rr := serve(handler.Routes, "/admin", http.MethodPost, "/admin/orders/ord_1/refund/approve", `{"adminUserId":" console-user "}`, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
}
