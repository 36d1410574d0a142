package domain

import (
	"strings"

	"github.com/personaliza/api/internal/format"
)

// CheckoutField names the input rejected by ValidateCheckout.
type CheckoutField string

const (
	CheckoutFieldAuth     CheckoutField = "auth"
	CheckoutFieldFullName CheckoutField = "fullName"
	CheckoutFieldPhone    CheckoutField = "phone"
	CheckoutFieldAddress  CheckoutField = "address"
	CheckoutFieldZipCode  CheckoutField = "zipCode"
	CheckoutFieldShipping CheckoutField = "shipping"
	CheckoutFieldCPF      CheckoutField = "cpf"
)

// CheckoutAddressFields are the raw fields used to create an address during checkout.
type CheckoutAddressFields struct {
	Street       string
	Number       string
	Complement   string
	Neighborhood string
	City         string
	State        string
	ZipCode      string
}

// CheckoutInput is what both the storefront and the API validate before creating an order.
type CheckoutInput struct {
	Authenticated  bool
	FullName       string
	Phone          string
	PickupInStore  bool
	ShippingChosen bool
	AddressID      string
	Address        *CheckoutAddressFields
	PaymentMethod  PaymentMethod
	CPF            string
}

// CheckoutFieldError is the first failed checkout rule.
type CheckoutFieldError struct {
	Field   CheckoutField
	Message string
}

func (e *CheckoutFieldError) Error() string {
	return string(e.Field) + ": " + e.Message
}

// ValidateCheckout applies the checkout rules in order and reports the first failure.
func ValidateCheckout(in CheckoutInput) *CheckoutFieldError {
	if !in.Authenticated {
		return &CheckoutFieldError{Field: CheckoutFieldAuth, Message: "Faça login para finalizar a compra."}
	}
	if strings.TrimSpace(in.FullName) == "" {
		return &CheckoutFieldError{Field: CheckoutFieldFullName, Message: "Informe seu nome completo."}
	}
	if !format.ValidPhone(in.Phone) {
		return &CheckoutFieldError{Field: CheckoutFieldPhone, Message: "Informe um telefone válido com DDD."}
	}
	if !in.PickupInStore && strings.TrimSpace(in.AddressID) == "" {
		addr := in.Address
		if addr == nil || blank(addr.Street, addr.Number, addr.Neighborhood, addr.City, addr.State, addr.ZipCode) {
			return &CheckoutFieldError{Field: CheckoutFieldAddress, Message: "Preencha todos os campos do endereço."}
		}
		if !format.ValidCep(addr.ZipCode) {
			return &CheckoutFieldError{Field: CheckoutFieldZipCode, Message: "CEP deve ter 8 dígitos."}
		}
	}
	if !in.PickupInStore && !in.ShippingChosen {
		return &CheckoutFieldError{Field: CheckoutFieldShipping, Message: "Selecione uma opção de frete."}
	}
	if in.PaymentMethod == PaymentMethodPix && !format.ValidCPF(in.CPF) {
		return &CheckoutFieldError{Field: CheckoutFieldCPF, Message: "Informe um CPF válido para pagar com PIX."}
	}
	return nil
}

func blank(values ...string) bool {
	for _, v := range values {
		if strings.TrimSpace(v) == "" {
			return true
		}
	}
	return false
}
