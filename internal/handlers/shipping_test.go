package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/personaliza/api/internal/services"
)

func TestShippingHandlersQuote(t *testing.T) {
	var captured services.ShippingQuoteCommand
	service := &stubShippingService{
		quoteFn: func(_ context.Context, cmd services.ShippingQuoteCommand) ([]services.ShippingOption, error) {
			captured = cmd
			return []services.ShippingOption{
				{Code: "pac", Name: "PAC", Carrier: "Correios", Price: 0, EstimatedDays: 8, FreeShipping: true},
				{Code: "pickup", Name: "Retirar na loja", Pickup: true},
			}, nil
		},
	}
	handler := NewShippingHandlers(service)

	rr := serve(handler.Routes, "/shipping", http.MethodGet, "/shipping/quote?cep=01001-000&subtotal=25000", "", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if captured.ZipCode != "01001-000" || captured.Subtotal != 25000 {
		t.Fatalf("unexpected quote command %#v", captured)
	}
	var resp shippingQuoteResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Options) != 2 || !resp.Options[0].FreeShipping || !resp.Options[1].Pickup {
		t.Fatalf("unexpected options %#v", resp.Options)
	}
}

func TestShippingHandlersQuoteErrors(t *testing.T) {
	service := &stubShippingService{
		quoteFn: func(context.Context, services.ShippingQuoteCommand) ([]services.ShippingOption, error) {
			return nil, services.ErrShippingInvalidCep
		},
	}
	handler := NewShippingHandlers(service)

	rr := serve(handler.Routes, "/shipping", http.MethodGet, "/shipping/quote?cep=123", "", "")
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid cep, got %d", rr.Code)
	}

	rr = serve(handler.Routes, "/shipping", http.MethodGet, "/shipping/quote?cep=01001000&subtotal=abc", "", "")
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid subtotal, got %d", rr.Code)
	}
}
