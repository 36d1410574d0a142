package checkout

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/personaliza/api/internal/domain"
	"github.com/personaliza/api/internal/payments"
	"github.com/personaliza/api/internal/storefront/apiclient"
)

type stubAPI struct {
	placeOrderFn      func(ctx context.Context, req apiclient.CheckoutRequest) (apiclient.CheckoutResult, error)
	dispatchPaymentFn func(ctx context.Context, orderID string, req apiclient.PaymentRequest, key string) (apiclient.PaymentResult, error)
	orderStatusFn     func(ctx context.Context, orderID string) (domain.OrderStatus, error)

	calls atomic.Int32
}

func (s *stubAPI) PlaceOrder(ctx context.Context, req apiclient.CheckoutRequest) (apiclient.CheckoutResult, error) {
	s.calls.Add(1)
	if s.placeOrderFn == nil {
		return apiclient.CheckoutResult{OrderID: "ord_1", OrderNumber: "PZ-2025-000001", Total: 17000}, nil
	}
	return s.placeOrderFn(ctx, req)
}

func (s *stubAPI) DispatchPayment(ctx context.Context, orderID string, req apiclient.PaymentRequest, key string) (apiclient.PaymentResult, error) {
	s.calls.Add(1)
	if s.dispatchPaymentFn == nil {
		return apiclient.PaymentResult{Status: string(payments.ChargeApproved), PaymentID: "pi_1"}, nil
	}
	return s.dispatchPaymentFn(ctx, orderID, req, key)
}

func (s *stubAPI) OrderStatus(ctx context.Context, orderID string) (domain.OrderStatus, error) {
	s.calls.Add(1)
	if s.orderStatusFn == nil {
		return domain.OrderStatusPending, nil
	}
	return s.orderStatusFn(ctx, orderID)
}

type stubCart struct {
	cleared int
}

func (c *stubCart) Clear() { c.cleared++ }

func deliveryForm() Form {
	return Form{
		Authenticated: true,
		FullName:      "Ana Souza",
		Email:         "ana@example.com",
		Phone:         "(11) 98765-4321",
		Shipping:      &ShippingChoice{Code: "sedex", Name: "SEDEX", Price: 2000, EstimatedDays: 3},
		Address: &domain.CheckoutAddressFields{
			Street:       "Av. Paulista",
			Number:       "1000",
			Neighborhood: "Bela Vista",
			City:         "São Paulo",
			State:        "SP",
			ZipCode:      "01310-100",
		},
		PaymentMethod: domain.PaymentMethodCard,
		Card:          &CardPayment{Token: "tok_visa", PaymentMethodID: "visa", Installments: 1},
	}
}

func TestFlowValidateBlocksBeforeNetwork(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		mutate func(*Form)
		field  domain.CheckoutField
	}{
		{"unauthenticated", func(f *Form) { f.Authenticated = false }, domain.CheckoutFieldAuth},
		{"empty zip", func(f *Form) { f.Address.ZipCode = "" }, domain.CheckoutFieldAddress},
		{"short zip", func(f *Form) { f.Address.ZipCode = "0131" }, domain.CheckoutFieldZipCode},
		{"no shipping", func(f *Form) { f.Shipping = nil }, domain.CheckoutFieldShipping},
		{"pix without cpf", func(f *Form) { f.PaymentMethod = domain.PaymentMethodPix; f.CPF = "" }, domain.CheckoutFieldCPF},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			api := &stubAPI{}
			cart := &stubCart{}
			flow := NewFlow(api, cart)
			form := deliveryForm()
			tc.mutate(&form)

			_, err := flow.Submit(context.Background(), form)
			var fieldErr *domain.CheckoutFieldError
			require.ErrorAs(t, err, &fieldErr)
			require.Equal(t, tc.field, fieldErr.Field)
			require.Zero(t, api.calls.Load())
			require.Zero(t, cart.cleared)
		})
	}
}

func TestFlowValidateRequiresCardToken(t *testing.T) {
	t.Parallel()

	form := deliveryForm()
	form.Card = nil
	require.ErrorIs(t, NewFlow(&stubAPI{}, nil).Validate(form), ErrMissingCardToken)
}

func TestFlowSubmitCardApproved(t *testing.T) {
	t.Parallel()

	var placed apiclient.CheckoutRequest
	var paid apiclient.PaymentRequest
	api := &stubAPI{
		placeOrderFn: func(_ context.Context, req apiclient.CheckoutRequest) (apiclient.CheckoutResult, error) {
			placed = req
			return apiclient.CheckoutResult{OrderID: "ord_1", OrderNumber: "PZ-2025-000001", Total: 17000}, nil
		},
		dispatchPaymentFn: func(_ context.Context, orderID string, req apiclient.PaymentRequest, key string) (apiclient.PaymentResult, error) {
			require.Equal(t, "ord_1", orderID)
			require.NotEmpty(t, key)
			paid = req
			return apiclient.PaymentResult{Status: "approved", PaymentID: "pi_1"}, nil
		},
	}
	cart := &stubCart{}

	result, err := NewFlow(api, cart).Submit(context.Background(), deliveryForm())
	require.NoError(t, err)
	require.Equal(t, ViewSuccess, result.View)
	require.Equal(t, "ord_1", result.OrderID)
	require.Equal(t, 1, cart.cleared)

	require.Equal(t, int64(2000), placed.ShippingAmount)
	require.Equal(t, "11987654321", placed.ShippingPhone)
	require.NotNil(t, placed.Address)
	require.Equal(t, "01310100", placed.Address.ZipCode)

	require.NotNil(t, paid.Token)
	require.Equal(t, "tok_visa", *paid.Token)
	require.Equal(t, "visa", paid.PaymentMethodID)
}

func TestFlowSubmitPickupIgnoresShipping(t *testing.T) {
	t.Parallel()

	var placed apiclient.CheckoutRequest
	api := &stubAPI{placeOrderFn: func(_ context.Context, req apiclient.CheckoutRequest) (apiclient.CheckoutResult, error) {
		placed = req
		return apiclient.CheckoutResult{OrderID: "ord_2"}, nil
	}}
	form := deliveryForm()
	form.PickupInStore = true
	form.Address = nil

	_, err := NewFlow(api, &stubCart{}).Submit(context.Background(), form)
	require.NoError(t, err)
	require.True(t, placed.PickupInStore)
	require.Zero(t, placed.ShippingAmount)
	require.Empty(t, placed.ShippingCode)
	require.Nil(t, placed.Address)
}

func TestFlowSubmitSavedAddress(t *testing.T) {
	t.Parallel()

	var placed apiclient.CheckoutRequest
	api := &stubAPI{placeOrderFn: func(_ context.Context, req apiclient.CheckoutRequest) (apiclient.CheckoutResult, error) {
		placed = req
		return apiclient.CheckoutResult{OrderID: "ord_3"}, nil
	}}
	form := deliveryForm()
	form.AddressID = "addr_1"
	form.Address = nil

	_, err := NewFlow(api, &stubCart{}).Submit(context.Background(), form)
	require.NoError(t, err)
	require.Equal(t, "addr_1", placed.ShippingAddressID)
	require.Nil(t, placed.Address)
}

func TestFlowSubmitCardOutcomes(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		payment apiclient.PaymentResult
		view    View
		message string
	}{
		{"in process", apiclient.PaymentResult{Status: "in_process"}, ViewPending, payments.StatusDetailMessage(payments.DetailPendingContingency)},
		{"rejected funds", apiclient.PaymentResult{Status: "rejected", StatusDetail: payments.DetailInsufficientAmount}, ViewFailure, "O cartão possui saldo insuficiente."},
		{"cancelled unmapped", apiclient.PaymentResult{Status: "cancelled", StatusDetail: "mystery"}, ViewFailure, payments.GenericRejectionMessage},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			api := &stubAPI{dispatchPaymentFn: func(context.Context, string, apiclient.PaymentRequest, string) (apiclient.PaymentResult, error) {
				return tc.payment, nil
			}}
			result, err := NewFlow(api, &stubCart{}).Submit(context.Background(), deliveryForm())
			require.NoError(t, err)
			require.Equal(t, tc.view, result.View)
			require.Equal(t, tc.message, result.Message)
		})
	}
}

func TestFlowPlaceOrderFailureKeepsCart(t *testing.T) {
	t.Parallel()

	api := &stubAPI{placeOrderFn: func(context.Context, apiclient.CheckoutRequest) (apiclient.CheckoutResult, error) {
		return apiclient.CheckoutResult{}, &apiclient.APIError{Status: 422, Code: "shipping_mismatch"}
	}}
	cart := &stubCart{}

	_, err := NewFlow(api, cart).Submit(context.Background(), deliveryForm())
	require.Error(t, err)
	require.Zero(t, cart.cleared)
}

func TestFlowPaymentFailureKeepsOrderAndClearedCart(t *testing.T) {
	t.Parallel()

	api := &stubAPI{dispatchPaymentFn: func(context.Context, string, apiclient.PaymentRequest, string) (apiclient.PaymentResult, error) {
		return apiclient.PaymentResult{}, &apiclient.APIError{Status: 502, Code: "payment_gateway_error"}
	}}
	cart := &stubCart{}

	result, err := NewFlow(api, cart).Submit(context.Background(), deliveryForm())
	require.ErrorIs(t, err, ErrPaymentDispatch)
	require.Equal(t, apiclient.KindTransient, apiclient.ClassifyError(err))
	require.Equal(t, "ord_1", result.OrderID)
	require.Equal(t, ViewFailure, result.View)
	require.NotEmpty(t, result.Message)
	require.Equal(t, 1, cart.cleared)
}

func TestFlowSubmitPix(t *testing.T) {
	t.Parallel()

	var paid apiclient.PaymentRequest
	api := &stubAPI{dispatchPaymentFn: func(_ context.Context, _ string, req apiclient.PaymentRequest, _ string) (apiclient.PaymentResult, error) {
		paid = req
		return apiclient.PaymentResult{Status: "pending", PaymentID: "pix_1", QRCode: "000201", QRCodeBase64: "iVBOR"}, nil
	}}
	form := deliveryForm()
	form.PaymentMethod = domain.PaymentMethodPix
	form.CPF = "123.456.789-09"
	form.Card = nil

	result, err := NewFlow(api, &stubCart{}).Submit(context.Background(), form)
	require.NoError(t, err)
	require.Equal(t, ViewPix, result.View)
	require.NotNil(t, result.Pix)
	require.Equal(t, "000201", result.Pix.QRCode)

	require.Nil(t, paid.Token)
	require.Equal(t, "pix", paid.PaymentMethodID)
	require.Equal(t, "CPF", paid.Payer.Identification.Type)
	require.Equal(t, "12345678909", paid.Payer.Identification.Number)
	require.Equal(t, "ana@example.com", paid.Payer.Email)
}

func TestPixPollerStopsWhenPaid(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	var polledIDs []string
	responses := []domain.OrderStatus{domain.OrderStatusPending, domain.OrderStatusCancelled, domain.OrderStatusPaid}
	polls := 0
	api := &stubAPI{orderStatusFn: func(_ context.Context, orderID string) (domain.OrderStatus, error) {
		mu.Lock()
		defer mu.Unlock()
		polledIDs = append(polledIDs, orderID)
		polls++
		if polls == 2 {
			return "", errors.New("network down")
		}
		status := responses[0]
		if len(responses) > 1 {
			responses = responses[1:]
		}
		return status, nil
	}}

	poller := NewFlow(api, nil, WithPollInterval(time.Millisecond)).WatchPix(context.Background(), "ord_1")

	select {
	case status, ok := <-poller.Confirmed():
		require.True(t, ok)
		require.Equal(t, domain.OrderStatusPaid, status)
	case <-time.After(2 * time.Second):
		t.Fatal("poller did not confirm payment")
	}
	<-poller.Done()
	poller.Stop()

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, 4, polls)
	require.Equal(t, []string{"ord_1", "ord_1", "ord_1", "ord_1"}, polledIDs)
}

func TestPixPollerStop(t *testing.T) {
	t.Parallel()

	api := &stubAPI{}
	poller := StartPixPoller(context.Background(), api, "ord_1", WithPollerInterval(time.Millisecond))
	time.Sleep(10 * time.Millisecond)
	poller.Stop()
	poller.Stop()

	_, ok := <-poller.Confirmed()
	require.False(t, ok)

	calls := api.calls.Load()
	time.Sleep(10 * time.Millisecond)
	require.Equal(t, calls, api.calls.Load())
}

func TestPixPollerContextCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	poller := StartPixPoller(ctx, &stubAPI{}, "ord_1", WithPollerInterval(time.Hour))
	cancel()

	select {
	case <-poller.Done():
	case <-time.After(time.Second):
		t.Fatal("poller did not exit after cancellation")
	}
}
