package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	domain "github.com/personaliza/api/internal/domain"
	"github.com/personaliza/api/internal/services"
)

func TestCartHandlersGetCartTotals(t *testing.T) {
	service := &stubCartService{
		getFn: func(_ context.Context, userID string) (services.Cart, error) {
			return services.Cart{
				UserID: userID,
				Items: []services.CartItem{
					{ID: "l1", ProductID: "p1", Name: "Camiseta", UnitPrice: 4990, Quantity: 2, SizeID: "m"},
					{ID: "l2", ProductID: "p2", Name: "Caneca", UnitPrice: 2500, Quantity: 1},
				},
			}, nil
		},
	}
	handler := NewCartHandlers(nil, service)

	rr := serve(handler.Routes, "/cart", http.MethodGet, "/cart", "", "buyer-1")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var resp cartResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.ItemsCount != 3 || resp.Subtotal != 12480 {
		t.Fatalf("unexpected totals count=%d subtotal=%d", resp.ItemsCount, resp.Subtotal)
	}
	if len(resp.Items) != 2 || resp.Items[0].Price != 4990 || resp.Items[0].SizeID != "m" {
		t.Fatalf("unexpected items %#v", resp.Items)
	}
}

func TestCartHandlersAddItem(t *testing.T) {
	var captured services.AddCartItemCommand
	service := &stubCartService{
		addFn: func(_ context.Context, cmd services.AddCartItemCommand) (services.Cart, error) {
			captured = cmd
			return services.Cart{UserID: cmd.UserID, Items: []services.CartItem{cmd.Item}}, nil
		},
	}
	handler := NewCartHandlers(nil, service)

	body := `{"productId":"p1","name":"Camiseta","price":4990,"quantity":1,"colorId":"azul","personalizationText":"Ana"}`
	rr := serve(handler.Routes, "/cart", http.MethodPost, "/cart/items", body, "buyer-1")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if captured.UserID != "buyer-1" {
		t.Fatalf("expected user buyer-1, got %q", captured.UserID)
	}
	item := captured.Item
	if item.ProductID != "p1" || item.UnitPrice != 4990 || item.ColorID != "azul" || item.PersonalizationText != "Ana" {
		t.Fatalf("unexpected item %#v", item)
	}
}

func TestCartHandlersAddItemValidation(t *testing.T) {
	handler := NewCartHandlers(nil, &stubCartService{})

	rr := serve(handler.Routes, "/cart", http.MethodPost, "/cart/items", `{"name":"sem produto","price":100,"quantity":1}`, "buyer-1")
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing productId, got %d", rr.Code)
	}

	rr = serve(handler.Routes, "/cart", http.MethodPost, "/cart/items", `{"productId":"p1","price":-1,"quantity":1}`, "buyer-1")
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for negative price, got %d", rr.Code)
	}
}

func TestCartHandlersReplaceItems(t *testing.T) {
	var captured services.ReplaceCartCommand
	service := &stubCartService{
		replaceFn: func(_ context.Context, cmd services.ReplaceCartCommand) (services.Cart, error) {
			captured = cmd
			return services.Cart{UserID: cmd.UserID, Items: cmd.Items}, nil
		},
	}
	handler := NewCartHandlers(nil, service)

	body := `{"items":[{"productId":"p1","price":100,"quantity":2},{"productId":"p2","price":300,"quantity":1}]}`
	rr := serve(handler.Routes, "/cart", http.MethodPut, "/cart", body, "buyer-1")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if len(captured.Items) != 2 || captured.Items[1].ProductID != "p2" {
		t.Fatalf("unexpected replace command %#v", captured)
	}
	var resp cartResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Subtotal != 500 {
		t.Fatalf("expected subtotal 500, got %d", resp.Subtotal)
	}
}

func TestCartHandlersRemoveItem(t *testing.T) {
	var removed string
	service := &stubCartService{
		removeFn: func(_ context.Context, userID, lineID string) (services.Cart, error) {
			removed = lineID
			return services.Cart{UserID: userID, Items: []domain.CartItem{}}, nil
		},
	}
	handler := NewCartHandlers(nil, service)

	rr := serve(handler.Routes, "/cart", http.MethodDelete, "/cart/items/l1", "", "buyer-1")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if removed != "l1" {
		t.Fatalf("expected line l1 removed, got %q", removed)
	}
}

func TestCartHandlersConflict(t *testing.T) {
	service := &stubCartService{
		addFn: func(context.Context, services.AddCartItemCommand) (services.Cart, error) {
			return services.Cart{}, services.ErrCartConflict
		},
	}
	handler := NewCartHandlers(nil, service)

	rr := serve(handler.Routes, "/cart", http.MethodPost, "/cart/items", `{"productId":"p1","price":100,"quantity":1}`, "buyer-1")
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rr.Code)
	}
}

func TestCartHandlersRequireIdentity(t *testing.T) {
	handler := NewCartHandlers(nil, &stubCartService{})

	rr := serve(handler.Routes, "/cart", http.MethodGet, "/cart", "", "")
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
}
