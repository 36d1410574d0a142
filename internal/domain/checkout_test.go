package domain

import "testing"

func validCheckoutInput() CheckoutInput {
	return CheckoutInput{
		Authenticated:  true,
		FullName:       "Ana Souza",
		Phone:          "(11) 98765-4321",
		ShippingChosen: true,
		Address: &CheckoutAddressFields{
			Street:       "Av. Paulista",
			Number:       "1000",
			Neighborhood: "Bela Vista",
			City:         "São Paulo",
			State:        "SP",
			ZipCode:      "01310-100",
		},
		PaymentMethod: PaymentMethodCard,
	}
}

func TestValidateCheckoutOrder(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*CheckoutInput)
		field  CheckoutField
	}{
		{"anonymous fails before name", func(in *CheckoutInput) { in.Authenticated = false; in.FullName = "" }, CheckoutFieldAuth},
		{"name before phone", func(in *CheckoutInput) { in.FullName = " "; in.Phone = "" }, CheckoutFieldFullName},
		{"short phone", func(in *CheckoutInput) { in.Phone = "98765-432" }, CheckoutFieldPhone},
		{"missing address", func(in *CheckoutInput) { in.Address = nil }, CheckoutFieldAddress},
		{"blank street", func(in *CheckoutInput) { in.Address.Street = "" }, CheckoutFieldAddress},
		{"seven digit cep", func(in *CheckoutInput) { in.Address.ZipCode = "0131010" }, CheckoutFieldZipCode},
		{"address before shipping", func(in *CheckoutInput) { in.Address = nil; in.ShippingChosen = false }, CheckoutFieldAddress},
		{"no shipping option", func(in *CheckoutInput) { in.ShippingChosen = false }, CheckoutFieldShipping},
		{"pix without cpf", func(in *CheckoutInput) { in.PaymentMethod = PaymentMethodPix }, CheckoutFieldCPF},
		{"pix with malformed cpf", func(in *CheckoutInput) { in.PaymentMethod = PaymentMethodPix; in.CPF = "529.982.24725" }, CheckoutFieldCPF},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := validCheckoutInput()
			addr := *in.Address
			in.Address = &addr
			tc.mutate(&in)
			err := ValidateCheckout(in)
			if err == nil {
				t.Fatalf("expected %s failure", tc.field)
			}
			if err.Field != tc.field {
				t.Fatalf("expected field %s, got %s", tc.field, err.Field)
			}
			if err.Message == "" {
				t.Fatalf("expected a message")
			}
		})
	}
}

func TestValidateCheckoutAccepts(t *testing.T) {
	if err := ValidateCheckout(validCheckoutInput()); err != nil {
		t.Fatalf("unexpected error %v", err)
	}

	pickup := validCheckoutInput()
	pickup.PickupInStore = true
	pickup.Address = nil
	pickup.ShippingChosen = false
	if err := ValidateCheckout(pickup); err != nil {
		t.Fatalf("pickup skips address and shipping, got %v", err)
	}

	saved := validCheckoutInput()
	saved.Address = nil
	saved.AddressID = "addr_1"
	if err := ValidateCheckout(saved); err != nil {
		t.Fatalf("saved address skips raw fields, got %v", err)
	}

	pix := validCheckoutInput()
	pix.PaymentMethod = PaymentMethodPix
	pix.CPF = "529.982.247-25"
	if err := ValidateCheckout(pix); err != nil {
		t.Fatalf("unexpected pix error %v", err)
	}
}
