package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	domain "github.com/personaliza/api/internal/domain"
	"github.com/personaliza/api/internal/format"
	"github.com/personaliza/api/internal/payments"
	"github.com/personaliza/api/internal/platform/observability"
	"github.com/personaliza/api/internal/repositories"
)

const (
	paymentSourceDispatch  = "dispatch"
	paymentSourceWebhook   = "webhook"
	paymentSourceReconcile = "reconcile"

	defaultReconcileAge   = 2 * time.Minute
	defaultReconcileLimit = 50
	maxReconcileLimit     = 500
)

var (
	// ErrPaymentInvalidInput indicates the dispatch request is incomplete.
	ErrPaymentInvalidInput = errors.New("payment: invalid input")
	// ErrPaymentOrderNotPending indicates the order no longer accepts payments.
	ErrPaymentOrderNotPending = errors.New("payment: order is not awaiting payment")
	// ErrPaymentGatewayFailure indicates the gateway could not be reached or failed.
	ErrPaymentGatewayFailure = errors.New("payment: gateway failure")
)

// PaymentServiceDeps bundles collaborators required to construct the payment service.
type PaymentServiceDeps struct {
	Orders     OrderService
	Repository repositories.OrderRepository
	Gateway    payments.Gateway

	// ReconcileAfter is the sweep age used when a reconcile command leaves OlderThan unset.
	ReconcileAfter time.Duration
	Clock          func() time.Time
	Metrics        *observability.Metrics
	Logger         func(ctx context.Context, event string, fields map[string]any)
}

type paymentService struct {
	orders  OrderService
	repo    repositories.OrderRepository
	gateway payments.Gateway
	minAge  time.Duration
	clock   func() time.Time
	metrics *observability.Metrics
	logger  func(context.Context, string, map[string]any)
}

// NewPaymentService wires the gateway to the order state machine.
func NewPaymentService(deps PaymentServiceDeps) (PaymentService, error) {
	if deps.Orders == nil {
		return nil, errors.New("payment service: order service is required")
	}
	if deps.Repository == nil {
		return nil, errors.New("payment service: order repository is required")
	}
	if deps.Gateway == nil {
		return nil, errors.New("payment service: gateway is required")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	minAge := deps.ReconcileAfter
	if minAge <= 0 {
		minAge = defaultReconcileAge
	}
	return &paymentService{
		orders:  deps.Orders,
		repo:    deps.Repository,
		gateway: deps.Gateway,
		minAge:  minAge,
		clock: func() time.Time {
			return clock().UTC()
		},
		metrics: deps.Metrics,
		logger:  logger,
	}, nil
}

// DispatchPayment charges the order total. Gateway errors leave the order pending and recoverable.
func (s *paymentService) DispatchPayment(ctx context.Context, cmd DispatchPaymentCommand) (PaymentOutcome, error) {
	orderID := strings.TrimSpace(cmd.OrderID)
	userID := strings.TrimSpace(cmd.UserID)
	if orderID == "" || userID == "" {
		return PaymentOutcome{}, fmt.Errorf("%w: order id and user id are required", ErrPaymentInvalidInput)
	}
	if !cmd.Method.Valid() {
		return PaymentOutcome{}, fmt.Errorf("%w: unsupported payment method %q", ErrPaymentInvalidInput, cmd.Method)
	}

	order, err := s.orders.GetBuyerOrder(ctx, userID, orderID)
	if err != nil {
		return PaymentOutcome{}, err
	}
	if order.Status != domain.OrderStatusPending {
		return PaymentOutcome{}, fmt.Errorf("%w: order is %s", ErrPaymentOrderNotPending, order.Status)
	}

	req := payments.ChargeRequest{
		OrderID:        order.ID,
		OrderNumber:    order.Number,
		Amount:         order.Total,
		Currency:       order.Currency,
		Method:         payments.Method(cmd.Method),
		Installments:   cmd.Installments,
		IdempotencyKey: strings.TrimSpace(cmd.IdempotencyKey),
		Payer: payments.Payer{
			Email: firstNonEmpty(strings.TrimSpace(cmd.PayerEmail), order.CustomerEmail),
			Name:  order.CustomerName,
		},
	}
	switch cmd.Method {
	case domain.PaymentMethodPix:
		if !format.ValidCPF(cmd.PayerCPF) {
			return PaymentOutcome{}, fmt.Errorf("%w: a valid CPF is required for pix", ErrPaymentInvalidInput)
		}
		if req.Payer.Email == "" {
			return PaymentOutcome{}, fmt.Errorf("%w: payer email is required for pix", ErrPaymentInvalidInput)
		}
		req.Payer.CPF = format.DigitsOnly(cmd.PayerCPF)
	case domain.PaymentMethodCard:
		req.CardToken = strings.TrimSpace(cmd.CardToken)
		if req.CardToken == "" {
			return PaymentOutcome{}, fmt.Errorf("%w: card token is required", ErrPaymentInvalidInput)
		}
	}

	result, err := s.gateway.Charge(ctx, req)
	if err != nil {
		if errors.Is(err, payments.ErrInvalidRequest) {
			return PaymentOutcome{}, fmt.Errorf("%w: %v", ErrPaymentInvalidInput, err)
		}
		s.logger(ctx, "payment.dispatch.failed", map[string]any{
			"order":  order.ID,
			"method": string(cmd.Method),
			"error":  err.Error(),
		})
		s.metrics.PaymentResult(ctx, string(cmd.Method), "error")
		return PaymentOutcome{}, fmt.Errorf("%w: %v", ErrPaymentGatewayFailure, err)
	}
	s.metrics.PaymentResult(ctx, string(cmd.Method), string(result.Status))

	if result.PaymentID != "" {
		if _, err := s.orders.RecordPaymentAttempt(ctx, RecordPaymentAttemptCommand{
			OrderID:   order.ID,
			PaymentID: result.PaymentID,
			Detail:    result.StatusDetail,
		}); err != nil {
			s.logger(ctx, "payment.attempt.record_failed", map[string]any{
				"order":   order.ID,
				"payment": result.PaymentID,
				"error":   err.Error(),
			})
		}
	}
	if result.Status == payments.ChargeApproved {
		if _, err := s.orders.ConfirmPayment(ctx, ConfirmPaymentCommand{
			OrderID:   order.ID,
			PaymentID: result.PaymentID,
			Source:    paymentSourceDispatch,
		}); err != nil {
			s.logger(ctx, "payment.confirm.failed", map[string]any{
				"order":   order.ID,
				"payment": result.PaymentID,
				"error":   err.Error(),
			})
		}
	}

	outcome := PaymentOutcome{
		OrderID:      order.ID,
		PaymentID:    result.PaymentID,
		Status:       result.Status,
		StatusDetail: result.StatusDetail,
		QRCode:       result.QRCode,
		QRCodeBase64: result.QRCodeBase64,
		QRCodeURL:    result.QRCodeImageURL,
		ExpiresAt:    result.ExpiresAt,
	}
	if result.Status != payments.ChargeApproved {
		outcome.Message = payments.StatusDetailMessage(result.StatusDetail)
	}
	s.logger(ctx, "payment.dispatched", map[string]any{
		"order":  order.ID,
		"method": string(cmd.Method),
		"status": string(result.Status),
		"detail": result.StatusDetail,
	})
	return outcome, nil
}

// RecordWebhookEvent applies a verified gateway notification. Notifications for unknown or
// cancelled orders are acknowledged so the gateway stops retrying.
func (s *paymentService) RecordWebhookEvent(ctx context.Context, event payments.WebhookEvent) error {
	fields := map[string]any{
		"eventId": event.ID,
		"type":    string(event.Type),
		"order":   event.OrderID,
		"payment": event.PaymentID,
	}
	switch event.Type {
	case payments.WebhookPaymentSucceeded:
		_, err := s.orders.ConfirmPayment(ctx, ConfirmPaymentCommand{
			OrderID:   event.OrderID,
			PaymentID: event.PaymentID,
			Source:    paymentSourceWebhook,
		})
		switch {
		case err == nil:
			s.logger(ctx, "payment.webhook.confirmed", fields)
			return nil
		case errors.Is(err, ErrOrderNotFound), errors.Is(err, ErrOrderInvalidState):
			fields["error"] = err.Error()
			s.logger(ctx, "payment.webhook.ignored", fields)
			return nil
		default:
			return err
		}
	case payments.WebhookPaymentFailed, payments.WebhookPaymentCanceled:
		fields["failureCode"] = event.FailureCode
		s.logger(ctx, "payment.webhook.failed", fields)
		s.metrics.PaymentResult(ctx, "", "rejected")
		if event.OrderID != "" && event.PaymentID != "" {
			detail := event.FailureCode
			if event.Type == payments.WebhookPaymentCanceled {
				detail = payments.DetailCancelledByCollector
			}
			if _, err := s.orders.RecordPaymentAttempt(ctx, RecordPaymentAttemptCommand{
				OrderID:   event.OrderID,
				PaymentID: event.PaymentID,
				Detail:    detail,
			}); err != nil && !errors.Is(err, ErrOrderInvalidState) && !errors.Is(err, ErrOrderNotFound) {
				return err
			}
		}
		return nil
	default:
		return nil
	}
}

// ReconcilePending asks the gateway about pending orders whose payment is older than the
// threshold and confirms the ones that settled.
func (s *paymentService) ReconcilePending(ctx context.Context, cmd ReconcileCommand) (ReconcileResult, error) {
	age := cmd.OlderThan
	if age <= 0 {
		age = s.minAge
	}
	limit := cmd.Limit
	switch {
	case limit <= 0:
		limit = defaultReconcileLimit
	case limit > maxReconcileLimit:
		limit = maxReconcileLimit
	}

	orders, err := s.repo.ListAwaitingPayment(ctx, s.clock().Add(-age), limit)
	if err != nil {
		return ReconcileResult{}, fmt.Errorf("payment: list awaiting payment: %w", err)
	}

	result := ReconcileResult{Checked: len(orders)}
	for _, order := range orders {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		details, err := s.gateway.Lookup(ctx, order.PaymentID)
		if err != nil {
			result.Failed++
			s.logger(ctx, "payment.reconcile.lookup_failed", map[string]any{
				"order":   order.ID,
				"payment": order.PaymentID,
				"error":   err.Error(),
			})
			continue
		}
		if details.Status != payments.StatusSucceeded {
			continue
		}
		if _, err := s.orders.ConfirmPayment(ctx, ConfirmPaymentCommand{
			OrderID:   order.ID,
			PaymentID: order.PaymentID,
			Source:    paymentSourceReconcile,
			PaidAt:    details.PaidAt,
		}); err != nil {
			result.Failed++
			s.logger(ctx, "payment.reconcile.confirm_failed", map[string]any{
				"order": order.ID,
				"error": err.Error(),
			})
			continue
		}
		result.Confirmed++
	}

	s.logger(ctx, "payment.reconcile.completed", map[string]any{
		"checked":   result.Checked,
		"confirmed": result.Confirmed,
		"failed":    result.Failed,
	})
	return result, nil
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
