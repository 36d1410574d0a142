package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/personaliza/api/internal/services"
)

func TestMeHandlersListAddresses(t *testing.T) {
	service := &stubAddressService{
		listFn: func(_ context.Context, userID string) ([]services.Address, error) {
			if userID != "buyer-1" {
				t.Fatalf("unexpected user %q", userID)
			}
			return []services.Address{{ID: "addr_1", Recipient: "Ana", ZipCode: "01001-000", IsDefault: true}}, nil
		},
	}
	handler := NewMeHandlers(nil, service)

	rr := serve(handler.Routes, "/me", http.MethodGet, "/me/addresses", "", "buyer-1")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var resp addressListResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Items) != 1 || resp.Items[0].ID != "addr_1" || !resp.Items[0].IsDefault {
		t.Fatalf("unexpected addresses %#v", resp.Items)
	}
}

func TestMeHandlersCreateAddress(t *testing.T) {
	var captured services.CreateAddressCommand
	service := &stubAddressService{
		createFn: func(_ context.Context, cmd services.CreateAddressCommand) (services.Address, error) {
			captured = cmd
			return services.Address{ID: "addr_2", UserID: cmd.UserID, Recipient: cmd.Recipient, ZipCode: cmd.ZipCode}, nil
		},
	}
	handler := NewMeHandlers(nil, service)

	body := `{"recipient":"Ana Souza","street":"Rua A","number":"10","city":"São Paulo","state":"SP","zipCode":"01001-000"}`
	rr := serve(handler.Routes, "/me", http.MethodPost, "/me/addresses", body, "buyer-1")
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	if captured.UserID != "buyer-1" || captured.Recipient != "Ana Souza" || captured.State != "SP" {
		t.Fatalf("unexpected command %#v", captured)
	}
}

func TestMeHandlersCreateAddressValidation(t *testing.T) {
	service := &stubAddressService{
		createFn: func(context.Context, services.CreateAddressCommand) (services.Address, error) {
			return services.Address{}, &services.AddressValidationError{Fields: []string{"zipCode", "street"}}
		},
	}
	handler := NewMeHandlers(nil, service)

	rr := serve(handler.Routes, "/me", http.MethodPost, "/me/addresses", `{"zipCode":"123"}`, "buyer-1")
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	var body struct {
		Error  string   `json:"error"`
		Fields []string `json:"fields"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if body.Error != "invalid_address" || len(body.Fields) != 2 {
		t.Fatalf("unexpected error body %#v", body)
	}
}
