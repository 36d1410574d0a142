package payments

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stripe/stripe-go/v78"
)

type fakeIntents struct {
	newParams *stripe.PaymentIntentParams
	newResult *stripe.PaymentIntent
	newErr    error
	getResult *stripe.PaymentIntent
	getErr    error
}

func (f *fakeIntents) New(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
	f.newParams = params
	return f.newResult, f.newErr
}

func (f *fakeIntents) Get(id string, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
	return f.getResult, f.getErr
}

type fakeRefunds struct {
	params *stripe.RefundParams
	result *stripe.Refund
	err    error
}

func (f *fakeRefunds) New(params *stripe.RefundParams) (*stripe.Refund, error) {
	f.params = params
	return f.result, f.err
}

func newTestGateway(t *testing.T, intents *fakeIntents, refunds *fakeRefunds) *StripeGateway {
	t.Helper()
	gateway, err := NewStripeGateway(StripeConfig{
		Clients: &stripeClients{intents: intents, refunds: refunds},
		Clock: func() time.Time {
			return time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
		},
	})
	if err != nil {
		t.Fatalf("new gateway: %v", err)
	}
	return gateway
}

func TestStripeGatewayCardApproved(t *testing.T) {
	intents := &fakeIntents{newResult: &stripe.PaymentIntent{ID: "pi_1", Status: stripe.PaymentIntentStatusSucceeded}}
	gateway := newTestGateway(t, intents, &fakeRefunds{})

	result, err := gateway.Charge(context.Background(), ChargeRequest{
		OrderID:        "ord_1",
		OrderNumber:    "PZ-2025-000001",
		Amount:         17000,
		Method:         MethodCard,
		CardToken:      "pm_card_visa",
		Installments:   3,
		IdempotencyKey: "key-1",
	})
	if err != nil {
		t.Fatalf("charge: %v", err)
	}
	if result.Status != ChargeApproved || result.PaymentID != "pi_1" {
		t.Fatalf("unexpected result %+v", result)
	}
	params := intents.newParams
	if params == nil || *params.Amount != 17000 || *params.Currency != "brl" {
		t.Fatalf("unexpected params %+v", params)
	}
	if params.Metadata["order_id"] != "ord_1" {
		t.Fatalf("expected order metadata, got %v", params.Metadata)
	}
	if params.PaymentMethodOptions == nil || *params.PaymentMethodOptions.Card.Installments.Plan.Count != 3 {
		t.Fatalf("expected installment plan")
	}
	if params.IdempotencyKey == nil || *params.IdempotencyKey != "key-1" {
		t.Fatalf("expected idempotency key to be forwarded")
	}
}

func TestStripeGatewayCardDeclineIsRejectedResult(t *testing.T) {
	intents := &fakeIntents{newErr: &stripe.Error{
		Type:        stripe.ErrorTypeCard,
		Code:        stripe.ErrorCodeCardDeclined,
		DeclineCode: "insufficient_funds",
	}}
	gateway := newTestGateway(t, intents, &fakeRefunds{})

	result, err := gateway.Charge(context.Background(), ChargeRequest{OrderID: "ord_1", Amount: 100, Method: MethodCard, CardToken: "tok"})
	if err != nil {
		t.Fatalf("expected decline to be a result, got %v", err)
	}
	if result.Status != ChargeRejected || result.StatusDetail != DetailInsufficientAmount {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestStripeGatewayTransportErrorIsReturned(t *testing.T) {
	intents := &fakeIntents{newErr: errors.New("connection reset")}
	gateway := newTestGateway(t, intents, &fakeRefunds{})

	if _, err := gateway.Charge(context.Background(), ChargeRequest{OrderID: "ord_1", Amount: 100, Method: MethodCard, CardToken: "tok"}); err == nil {
		t.Fatalf("expected error")
	}
}

func TestStripeGatewayPixReturnsQRCode(t *testing.T) {
	intents := &fakeIntents{newResult: &stripe.PaymentIntent{
		ID:     "pi_pix",
		Status: stripe.PaymentIntentStatusRequiresAction,
		NextAction: &stripe.PaymentIntentNextAction{
			PixDisplayQRCode: &stripe.PaymentIntentNextActionPixDisplayQRCode{
				Data:        "00020126pix",
				ImageURLPNG: "https://qr.stripe.test/pix.png",
				ExpiresAt:   1740833400,
			},
		},
	}}
	gateway := newTestGateway(t, intents, &fakeRefunds{})

	result, err := gateway.Charge(context.Background(), ChargeRequest{
		OrderID: "ord_1",
		Amount:  5000,
		Method:  MethodPix,
		Payer:   Payer{Email: "ana@example.com", CPF: "12345678901"},
	})
	if err != nil {
		t.Fatalf("charge: %v", err)
	}
	if result.Status != ChargeInProcess || result.StatusDetail != DetailPendingWaitingPix {
		t.Fatalf("unexpected status %+v", result)
	}
	if result.QRCode != "00020126pix" || result.QRCodeImageURL == "" || result.ExpiresAt == nil {
		t.Fatalf("expected qr code fields, got %+v", result)
	}
	if got := intents.newParams.PaymentMethodTypes; len(got) != 1 || *got[0] != "pix" {
		t.Fatalf("expected pix payment method type")
	}
	if intents.newParams.Metadata["payer_cpf"] != "12345678901" {
		t.Fatalf("expected cpf metadata")
	}
}

func TestStripeGatewayPixRequiresCPF(t *testing.T) {
	gateway := newTestGateway(t, &fakeIntents{}, &fakeRefunds{})
	_, err := gateway.Charge(context.Background(), ChargeRequest{OrderID: "ord_1", Amount: 5000, Method: MethodPix, Payer: Payer{Email: "a@b.c"}})
	if !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest, got %v", err)
	}
}

func TestStripeGatewayRefund(t *testing.T) {
	refunds := &fakeRefunds{result: &stripe.Refund{ID: "re_1", Status: stripe.RefundStatusSucceeded}}
	gateway := newTestGateway(t, &fakeIntents{}, refunds)

	result, err := gateway.Refund(context.Background(), RefundRequest{PaymentID: "pi_1", OrderID: "ord_1", Reason: "tamanho errado"})
	if err != nil {
		t.Fatalf("refund: %v", err)
	}
	if result.RefundID != "re_1" {
		t.Fatalf("unexpected refund %+v", result)
	}
	if *refunds.params.PaymentIntent != "pi_1" {
		t.Fatalf("expected refund for pi_1")
	}
}

func TestStripeGatewayRefundFailedStatus(t *testing.T) {
	refunds := &fakeRefunds{result: &stripe.Refund{ID: "re_1", Status: stripe.RefundStatusFailed}}
	gateway := newTestGateway(t, &fakeIntents{}, refunds)

	_, err := gateway.Refund(context.Background(), RefundRequest{PaymentID: "pi_1"})
	if !errors.Is(err, ErrRefundFailed) {
		t.Fatalf("expected ErrRefundFailed, got %v", err)
	}
}

func TestStripeGatewayLookup(t *testing.T) {
	intents := &fakeIntents{getResult: &stripe.PaymentIntent{
		ID:       "pi_1",
		Status:   stripe.PaymentIntentStatusSucceeded,
		Amount:   17000,
		Currency: stripe.CurrencyBRL,
		Created:  1740830000,
		Metadata: map[string]string{"order_id": "ord_1"},
	}}
	gateway := newTestGateway(t, intents, &fakeRefunds{})

	details, err := gateway.Lookup(context.Background(), "pi_1")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if details.Status != StatusSucceeded || details.OrderID != "ord_1" || details.PaidAt == nil {
		t.Fatalf("unexpected details %+v", details)
	}
	if details.Currency != "BRL" {
		t.Fatalf("expected upper-case currency, got %q", details.Currency)
	}
}

func TestStripeGatewayLookupMissing(t *testing.T) {
	intents := &fakeIntents{getErr: &stripe.Error{Code: stripe.ErrorCodeResourceMissing}}
	gateway := newTestGateway(t, intents, &fakeRefunds{})

	if _, err := gateway.Lookup(context.Background(), "pi_x"); !errors.Is(err, ErrPaymentNotFound) {
		t.Fatalf("expected ErrPaymentNotFound, got %v", err)
	}
}

func TestStatusDetailMessageFallback(t *testing.T) {
	if got := StatusDetailMessage(DetailInsufficientAmount); got != "O cartão possui saldo insuficiente." {
		t.Fatalf("unexpected message %q", got)
	}
	if got := StatusDetailMessage("something_new"); got != GenericRejectionMessage {
		t.Fatalf("expected generic message, got %q", got)
	}
}
