package payments

import (
	"context"
	"errors"
	"time"
)

// Status enumerates the normalised payment states reported by Lookup.
type Status string

const (
	StatusPending   Status = "pending"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusRefunded  Status = "refunded"
)

// ChargeStatus is the result vocabulary returned to the storefront after dispatching a payment.
type ChargeStatus string

const (
	ChargeApproved  ChargeStatus = "approved"
	ChargeInProcess ChargeStatus = "in_process"
	ChargeRejected  ChargeStatus = "rejected"
	ChargeCancelled ChargeStatus = "cancelled"
)

// Method names the payment rails supported by the gateway.
type Method string

const (
	MethodCard Method = "card"
	MethodPix  Method = "pix"
)

var (
	// ErrInvalidRequest is returned before any gateway call when the request is incomplete.
	ErrInvalidRequest = errors.New("payments: invalid request")
	// ErrPaymentNotFound is returned when the gateway does not know the payment id.
	ErrPaymentNotFound = errors.New("payments: payment not found")
	// ErrRefundFailed is returned when the gateway refuses or fails a reversal.
	ErrRefundFailed = errors.New("payments: refund failed")
)

// Payer identifies the buyer to the gateway.
type Payer struct {
	Email string
	Name  string
	CPF   string
}

// ChargeRequest is one payment attempt for an order.
type ChargeRequest struct {
	OrderID        string
	OrderNumber    string
	Amount         int64
	Currency       string
	Method         Method
	CardToken      string
	Installments   int
	Payer          Payer
	IdempotencyKey string
}

// ChargeResult is the gateway answer to a charge.
type ChargeResult struct {
	PaymentID      string
	Status         ChargeStatus
	StatusDetail   string
	QRCode         string
	QRCodeBase64   string
	QRCodeImageURL string
	ExpiresAt      *time.Time
}

// RefundRequest reverses a captured payment in full.
type RefundRequest struct {
	PaymentID      string
	OrderID        string
	Reason         string
	IdempotencyKey string
}

// RefundResult reports the reversal accepted by the gateway.
type RefundResult struct {
	RefundID string
	Status   string
}

// PaymentDetails normalises gateway payment state for reconciliation.
type PaymentDetails struct {
	PaymentID string
	OrderID   string
	Status    Status
	Amount    int64
	Currency  string
	PaidAt    *time.Time
}

// Gateway is the contract implemented by the Stripe and sandbox gateways.
type Gateway interface {
	Charge(ctx context.Context, req ChargeRequest) (ChargeResult, error)
	Refund(ctx context.Context, req RefundRequest) (RefundResult, error)
	Lookup(ctx context.Context, paymentID string) (PaymentDetails, error)
}

func validateCharge(req ChargeRequest) error {
	switch {
	case req.OrderID == "":
		return errors.Join(ErrInvalidRequest, errors.New("order id is required"))
	case req.Amount <= 0:
		return errors.Join(ErrInvalidRequest, errors.New("amount must be positive"))
	case req.Method == MethodCard && req.CardToken == "":
		return errors.Join(ErrInvalidRequest, errors.New("card token is required"))
	case req.Method == MethodPix && (req.Payer.Email == "" || req.Payer.CPF == ""):
		return errors.Join(ErrInvalidRequest, errors.New("pix requires payer email and cpf"))
	case req.Method != MethodCard && req.Method != MethodPix:
		return errors.Join(ErrInvalidRequest, errors.New("unsupported payment method"))
	}
	return nil
}
