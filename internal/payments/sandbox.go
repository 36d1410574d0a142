package payments

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

const (
	sandboxPendingToken = "pending"
	sandboxRejectPrefix = "reject:"
	defaultSettleDelay  = 10 * time.Second
)

// SandboxConfig configures the in-memory gateway used for local development and tests.
type SandboxConfig struct {
	// PixSettleDelay is how long a generated PIX stays pending before Lookup reports it paid.
	PixSettleDelay time.Duration
	Clock          func() time.Time
}

type sandboxPayment struct {
	orderID   string
	amount    int64
	currency  string
	status    Status
	method    Method
	createdAt time.Time
	paidAt    *time.Time
}

// SandboxGateway approves cards by default. Card tokens "pending" and "reject:<detail>" select
// the other outcomes. PIX payments settle after PixSettleDelay.
type SandboxGateway struct {
	mu       sync.Mutex
	payments map[string]*sandboxPayment
	settle   time.Duration
	clock    func() time.Time
}

var _ Gateway = (*SandboxGateway)(nil)

// NewSandboxGateway constructs a sandbox gateway.
func NewSandboxGateway(cfg SandboxConfig) *SandboxGateway {
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	settle := cfg.PixSettleDelay
	if settle <= 0 {
		settle = defaultSettleDelay
	}
	return &SandboxGateway{
		payments: make(map[string]*sandboxPayment),
		settle:   settle,
		clock: func() time.Time {
			return clock().UTC()
		},
	}
}

func (g *SandboxGateway) Charge(_ context.Context, req ChargeRequest) (ChargeResult, error) {
	if err := validateCharge(req); err != nil {
		return ChargeResult{}, err
	}
	now := g.clock()
	id := "sbx_" + ulid.MustNew(ulid.Timestamp(now), rand.Reader).String()
	payment := &sandboxPayment{
		orderID:   req.OrderID,
		amount:    req.Amount,
		currency:  strings.ToUpper(req.Currency),
		status:    StatusPending,
		method:    req.Method,
		createdAt: now,
	}

	result := ChargeResult{PaymentID: id}
	switch req.Method {
	case MethodPix:
		payload := fmt.Sprintf("00020126BR.GOV.BCB.PIX0136%s5204000053039865802BR6304", id)
		expires := now.Add(30 * time.Minute)
		result.Status = ChargeInProcess
		result.StatusDetail = DetailPendingWaitingPix
		result.QRCode = payload
		result.QRCodeBase64 = base64.StdEncoding.EncodeToString([]byte(payload))
		result.ExpiresAt = &expires
	default:
		token := strings.TrimSpace(req.CardToken)
		switch {
		case token == sandboxPendingToken:
			result.Status = ChargeInProcess
			result.StatusDetail = DetailPendingContingency
		case strings.HasPrefix(token, sandboxRejectPrefix):
			detail := strings.TrimPrefix(token, sandboxRejectPrefix)
			if detail == "" {
				detail = DetailOtherReason
			}
			result.Status = ChargeRejected
			result.StatusDetail = detail
			payment.status = StatusFailed
		default:
			result.Status = ChargeApproved
			result.StatusDetail = DetailAccredited
			payment.status = StatusSucceeded
			payment.paidAt = &now
		}
	}

	g.mu.Lock()
	g.payments[id] = payment
	g.mu.Unlock()
	return result, nil
}

func (g *SandboxGateway) Refund(_ context.Context, req RefundRequest) (RefundResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	payment, ok := g.payments[req.PaymentID]
	if !ok {
		return RefundResult{}, fmt.Errorf("%w: %w", ErrRefundFailed, ErrPaymentNotFound)
	}
	g.settleLocked(payment)
	if payment.status != StatusSucceeded {
		return RefundResult{}, fmt.Errorf("%w: payment %s is %s", ErrRefundFailed, req.PaymentID, payment.status)
	}
	payment.status = StatusRefunded
	return RefundResult{RefundID: "sbx_re_" + req.PaymentID, Status: "succeeded"}, nil
}

func (g *SandboxGateway) Lookup(_ context.Context, paymentID string) (PaymentDetails, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	payment, ok := g.payments[paymentID]
	if !ok {
		return PaymentDetails{}, fmt.Errorf("%w: %s", ErrPaymentNotFound, paymentID)
	}
	g.settleLocked(payment)
	return PaymentDetails{
		PaymentID: paymentID,
		OrderID:   payment.orderID,
		Status:    payment.status,
		Amount:    payment.amount,
		Currency:  payment.currency,
		PaidAt:    payment.paidAt,
	}, nil
}

// Settle forces a pending payment to succeed immediately.
func (g *SandboxGateway) Settle(paymentID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	payment, ok := g.payments[paymentID]
	if !ok {
		return ErrPaymentNotFound
	}
	if payment.status != StatusPending {
		return errors.New("payments: sandbox payment is not pending")
	}
	now := g.clock()
	payment.status = StatusSucceeded
	payment.paidAt = &now
	return nil
}

func (g *SandboxGateway) settleLocked(payment *sandboxPayment) {
	if payment.method != MethodPix || payment.status != StatusPending {
		return
	}
	now := g.clock()
	if now.Sub(payment.createdAt) >= g.settle {
		payment.status = StatusSucceeded
		payment.paidAt = &now
	}
}
