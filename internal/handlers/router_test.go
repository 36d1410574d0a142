package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	domain "github.com/personaliza/api/internal/domain"
	"github.com/personaliza/api/internal/platform/auth"
	"github.com/personaliza/api/internal/services"
)

func TestNewRouterHealthEndpoints(t *testing.T) {
	router := NewRouter()

	for _, path := range []string{"/healthz", "/readyz"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		if rr.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", path, rr.Code)
		}
	}
}

func TestNewRouterUnconfiguredGroupsReturnNotImplemented(t *testing.T) {
	router := NewRouter()

	for _, path := range []string{"/api/v1/cart", "/api/v1/orders/ord_1", "/api/v1/admin/orders", "/api/v1/webhooks/payments/stripe"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		if rr.Code != http.StatusNotImplemented {
			t.Fatalf("%s: expected 501, got %d", path, rr.Code)
		}
	}
}

func TestNewRouterUnknownRoute(t *testing.T) {
	router := NewRouter()

	req := httptest.NewRequest(http.MethodGet, "/nope", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if body["error"] != errorNotFoundCode {
		t.Fatalf("expected %s, got %v", errorNotFoundCode, body["error"])
	}
}

func TestNewRouterMountsRegistrars(t *testing.T) {
	orders := &stubOrderService{
		statusFn: func(context.Context, string, string) (services.OrderStatus, error) {
			return domain.OrderStatusShipped, nil
		},
		getFn: func(_ context.Context, orderID string) (services.Order, error) {
			return services.Order{ID: orderID, Status: domain.OrderStatusPaid}, nil
		},
	}
	catalog := &stubCatalogLifecycle{
		deleteFn: func(_ context.Context, cmd services.CatalogDeleteCommand) (services.DeleteResult, error) {
			return services.DeleteResult{ID: cmd.ID, Outcome: domain.DeleteOutcomeDeleted}, nil
		},
	}
	withIdentity := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := auth.WithIdentity(r.Context(), &auth.Identity{UID: "user-1", Roles: []string{"admin"}})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
	var adminGuarded bool
	adminGuard := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			adminGuarded = true
			next.ServeHTTP(w, r)
		})
	}

	router := NewRouter(
		WithMiddlewares(withIdentity),
		WithOrderRoutes(NewOrderHandlers(nil, orders, nil).Routes),
		WithShippingRoutes(NewShippingHandlers(&stubShippingService{}).Routes),
		WithAdminRoutes(CombineRoutes(NewAdminOrderHandlers(orders).Routes, NewAdminCatalogHandlers(catalog).Routes)),
		WithAdminMiddlewares(adminGuard),
	)

	cases := []struct {
		method string
		path   string
		want   int
	}{
		{http.MethodGet, "/api/v1/orders/ord_1/status", http.StatusOK},
		{http.MethodGet, "/api/v1/admin/orders/ord_1", http.StatusOK},
		{http.MethodDelete, "/api/v1/admin/products/prod_1", http.StatusNoContent},
		{http.MethodGet, "/api/v1/me/addresses", http.StatusNotImplemented},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(tc.method, tc.path, nil)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		if rr.Code != tc.want {
			t.Fatalf("%s %s: expected %d, got %d: %s", tc.method, tc.path, tc.want, rr.Code, rr.Body.String())
		}
	}
	if !adminGuarded {
		t.Fatalf("expected admin middleware to run for admin routes")
	}
}

func TestCombineRoutesSkipsNil(t *testing.T) {
	var calls int
	reg := CombineRoutes(nil, func(chi.Router) { calls++ }, func(chi.Router) { calls++ })
	reg(chi.NewRouter())
	if calls != 2 {
		t.Fatalf("expected 2 registrars to run, got %d", calls)
	}
}
