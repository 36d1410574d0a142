package payments

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/client"
)

const defaultPixExpiry = 30 * time.Minute

// StripeLogger defines the logging contract for Stripe gateway operations.
type StripeLogger func(ctx context.Context, event string, fields map[string]any)

type stripePaymentIntentAPI interface {
	New(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
	Get(id string, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
}

type stripeRefundAPI interface {
	New(params *stripe.RefundParams) (*stripe.Refund, error)
}

type stripeClients struct {
	intents stripePaymentIntentAPI
	refunds stripeRefundAPI
}

// StripeConfig configures the StripeGateway.
type StripeConfig struct {
	APIKey    string
	AccountID string
	Currency  string
	PixExpiry time.Duration
	Backends  *stripe.Backends
	Logger    StripeLogger
	Clock     func() time.Time
	Clients   *stripeClients
}

// StripeGateway charges cards and generates PIX codes through Stripe PaymentIntents.
type StripeGateway struct {
	api       stripeClients
	account   string
	currency  string
	pixExpiry time.Duration
	clock     func() time.Time
	logger    StripeLogger
}

var _ Gateway = (*StripeGateway)(nil)

// NewStripeGateway constructs a Stripe-backed Gateway.
func NewStripeGateway(cfg StripeConfig) (*StripeGateway, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" && cfg.Clients == nil {
		return nil, errors.New("stripe: api key is required")
	}

	var clients stripeClients
	if cfg.Clients != nil {
		clients = *cfg.Clients
	} else {
		sc := client.New(apiKey, cfg.Backends)
		clients = stripeClients{intents: sc.PaymentIntents, refunds: sc.Refunds}
	}
	if clients.intents == nil || clients.refunds == nil {
		return nil, errors.New("stripe: incomplete client configuration")
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	currency := strings.ToLower(strings.TrimSpace(cfg.Currency))
	if currency == "" {
		currency = "brl"
	}
	pixExpiry := cfg.PixExpiry
	if pixExpiry <= 0 {
		pixExpiry = defaultPixExpiry
	}

	return &StripeGateway{
		api:       clients,
		account:   strings.TrimSpace(cfg.AccountID),
		currency:  currency,
		pixExpiry: pixExpiry,
		clock: func() time.Time {
			return clock().UTC()
		},
		logger: logger,
	}, nil
}

// Charge creates and confirms a PaymentIntent. Card declines are returned as a rejected result,
// not as an error.
func (g *StripeGateway) Charge(ctx context.Context, req ChargeRequest) (ChargeResult, error) {
	if err := validateCharge(req); err != nil {
		return ChargeResult{}, err
	}

	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(req.Amount),
		Currency: stripe.String(g.currencyFor(req.Currency)),
		Confirm:  stripe.Bool(true),
	}
	params.Context = ctx
	if key := strings.TrimSpace(req.IdempotencyKey); key != "" {
		params.SetIdempotencyKey(key)
	}
	if g.account != "" {
		params.SetStripeAccount(g.account)
	}
	if req.OrderNumber != "" {
		params.Description = stripe.String("Pedido " + req.OrderNumber)
	}
	if req.Payer.Email != "" {
		params.ReceiptEmail = stripe.String(req.Payer.Email)
	}
	params.Metadata = map[string]string{
		"order_id":     req.OrderID,
		"order_number": req.OrderNumber,
	}

	switch req.Method {
	case MethodCard:
		params.PaymentMethodTypes = stripe.StringSlice([]string{"card"})
		params.PaymentMethod = stripe.String(req.CardToken)
		if req.Installments > 1 {
			params.PaymentMethodOptions = &stripe.PaymentIntentPaymentMethodOptionsParams{
				Card: &stripe.PaymentIntentPaymentMethodOptionsCardParams{
					Installments: &stripe.PaymentIntentPaymentMethodOptionsCardInstallmentsParams{
						Enabled: stripe.Bool(true),
						Plan: &stripe.PaymentIntentPaymentMethodOptionsCardInstallmentsPlanParams{
							Count:    stripe.Int64(int64(req.Installments)),
							Interval: stripe.String("month"),
							Type:     stripe.String("fixed_count"),
						},
					},
				},
			}
		}
	case MethodPix:
		params.PaymentMethodTypes = stripe.StringSlice([]string{"pix"})
		params.PaymentMethodData = &stripe.PaymentIntentPaymentMethodDataParams{
			Type: stripe.String("pix"),
		}
		params.PaymentMethodOptions = &stripe.PaymentIntentPaymentMethodOptionsParams{
			Pix: &stripe.PaymentIntentPaymentMethodOptionsPixParams{
				ExpiresAfterSeconds: stripe.Int64(int64(g.pixExpiry / time.Second)),
			},
		}
		params.Metadata["payer_cpf"] = req.Payer.CPF
		if req.Installments > 0 {
			params.Metadata["installments"] = strconv.Itoa(req.Installments)
		}
	}

	intent, err := g.api.intents.New(params)
	if err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) && stripeErr.Type == stripe.ErrorTypeCard {
			detail := detailForDecline(string(stripeErr.DeclineCode))
			if stripeErr.DeclineCode == "" {
				detail = detailForDecline(string(stripeErr.Code))
			}
			paymentID := ""
			if stripeErr.PaymentIntent != nil {
				paymentID = stripeErr.PaymentIntent.ID
			}
			g.logger(ctx, "payments.stripe.charge.declined", map[string]any{
				"orderId":     req.OrderID,
				"declineCode": string(stripeErr.DeclineCode),
			})
			return ChargeResult{PaymentID: paymentID, Status: ChargeRejected, StatusDetail: detail}, nil
		}
		return ChargeResult{}, fmt.Errorf("stripe: create payment intent: %w", err)
	}

	result := g.chargeResult(intent)
	g.logger(ctx, "payments.stripe.charge.created", map[string]any{
		"orderId":       req.OrderID,
		"paymentIntent": intent.ID,
		"status":        string(result.Status),
		"method":        string(req.Method),
	})
	return result, nil
}

// Refund reverses the full amount of the PaymentIntent. A pending refund counts as accepted.
func (g *StripeGateway) Refund(ctx context.Context, req RefundRequest) (RefundResult, error) {
	if strings.TrimSpace(req.PaymentID) == "" {
		return RefundResult{}, errors.Join(ErrInvalidRequest, errors.New("payment id is required"))
	}
	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(req.PaymentID),
		Reason:        stripe.String(string(stripe.RefundReasonRequestedByCustomer)),
	}
	params.Context = ctx
	if key := strings.TrimSpace(req.IdempotencyKey); key != "" {
		params.SetIdempotencyKey(key)
	}
	if g.account != "" {
		params.SetStripeAccount(g.account)
	}
	params.Metadata = map[string]string{"order_id": req.OrderID}
	if reason := strings.TrimSpace(req.Reason); reason != "" {
		params.Metadata["buyer_reason"] = truncate(reason, 500)
	}

	refund, err := g.api.refunds.New(params)
	if err != nil {
		return RefundResult{}, fmt.Errorf("%w: stripe: %v", ErrRefundFailed, err)
	}
	switch refund.Status {
	case stripe.RefundStatusFailed, stripe.RefundStatusCanceled:
		return RefundResult{}, fmt.Errorf("%w: stripe refund %s is %s", ErrRefundFailed, refund.ID, refund.Status)
	}
	g.logger(ctx, "payments.stripe.refund.created", map[string]any{
		"paymentIntent": req.PaymentID,
		"refundId":      refund.ID,
		"status":        string(refund.Status),
	})
	return RefundResult{RefundID: refund.ID, Status: string(refund.Status)}, nil
}

// Lookup retrieves the PaymentIntent for reconciliation.
func (g *StripeGateway) Lookup(ctx context.Context, paymentID string) (PaymentDetails, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx
	params.AddExpand("latest_charge")
	if g.account != "" {
		params.SetStripeAccount(g.account)
	}
	intent, err := g.api.intents.Get(paymentID, params)
	if err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) && stripeErr.Code == stripe.ErrorCodeResourceMissing {
			return PaymentDetails{}, fmt.Errorf("%w: %s", ErrPaymentNotFound, paymentID)
		}
		return PaymentDetails{}, fmt.Errorf("stripe: lookup payment intent: %w", err)
	}
	return paymentDetailsFromIntent(intent), nil
}

func (g *StripeGateway) currencyFor(currency string) string {
	if c := strings.ToLower(strings.TrimSpace(currency)); c != "" {
		return c
	}
	return g.currency
}

func (g *StripeGateway) chargeResult(intent *stripe.PaymentIntent) ChargeResult {
	result := ChargeResult{PaymentID: intent.ID}
	switch intent.Status {
	case stripe.PaymentIntentStatusSucceeded:
		result.Status = ChargeApproved
		result.StatusDetail = DetailAccredited
	case stripe.PaymentIntentStatusCanceled:
		result.Status = ChargeCancelled
		result.StatusDetail = DetailCancelledByCollector
	case stripe.PaymentIntentStatusRequiresPaymentMethod:
		result.Status = ChargeRejected
		result.StatusDetail = DetailOtherReason
		if intent.LastPaymentError != nil {
			code := string(intent.LastPaymentError.DeclineCode)
			if code == "" {
				code = string(intent.LastPaymentError.Code)
			}
			result.StatusDetail = detailForDecline(code)
		}
	default:
		result.Status = ChargeInProcess
		result.StatusDetail = DetailPendingContingency
	}

	if intent.NextAction != nil && intent.NextAction.PixDisplayQRCode != nil {
		qr := intent.NextAction.PixDisplayQRCode
		result.Status = ChargeInProcess
		result.StatusDetail = DetailPendingWaitingPix
		result.QRCode = qr.Data
		result.QRCodeImageURL = qr.ImageURLPNG
		if qr.ExpiresAt > 0 {
			expires := time.Unix(qr.ExpiresAt, 0).UTC()
			result.ExpiresAt = &expires
		} else {
			expires := g.clock().Add(g.pixExpiry)
			result.ExpiresAt = &expires
		}
	}
	return result
}

func paymentDetailsFromIntent(intent *stripe.PaymentIntent) PaymentDetails {
	if intent == nil {
		return PaymentDetails{}
	}
	details := PaymentDetails{
		PaymentID: intent.ID,
		OrderID:   intent.Metadata["order_id"],
		Status:    StatusPending,
		Amount:    intent.Amount,
		Currency:  strings.ToUpper(string(intent.Currency)),
	}
	switch intent.Status {
	case stripe.PaymentIntentStatusSucceeded:
		details.Status = StatusSucceeded
		paidAt := time.Unix(intent.Created, 0).UTC()
		if charge := intent.LatestCharge; charge != nil && charge.Created > 0 {
			paidAt = time.Unix(charge.Created, 0).UTC()
			if charge.Refunded || (charge.Amount > 0 && charge.AmountRefunded >= charge.Amount) {
				details.Status = StatusRefunded
			}
		}
		details.PaidAt = &paidAt
	case stripe.PaymentIntentStatusCanceled:
		details.Status = StatusFailed
	}
	return details
}

func truncate(value string, limit int) string {
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}
	return string(runes[:limit])
}
