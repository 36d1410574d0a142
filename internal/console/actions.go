package console

import (
	"context"
	"fmt"
	"strings"

	"github.com/personaliza/api/internal/domain"
	"github.com/personaliza/api/internal/storefront/apiclient"
)

// StatusChange is an operator request to move an order. Tracking is mandatory for Shipped.
type StatusChange struct {
	Target   domain.OrderStatus
	Note     string
	Tracking *domain.Tracking
}

// ChangeStatus moves the order optimistically and sends the transition. Shipped without complete
// tracking returns ErrTrackingStep before any request is made.
func (c *Console) ChangeStatus(ctx context.Context, orderID string, change StatusChange) (apiclient.Order, error) {
	if c.adminID == "" {
		return apiclient.Order{}, ErrMissingAdmin
	}
	if !change.Target.Valid() {
		return apiclient.Order{}, fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, change.Target)
	}
	if domain.PaymentConfirmationOnly(change.Target) {
		return apiclient.Order{}, fmt.Errorf("%w: %s is set by payment confirmation", ErrInvalidTransition, change.Target)
	}
	if change.Target == domain.OrderStatusShipped && (change.Tracking == nil || !change.Tracking.Complete()) {
		return apiclient.Order{}, ErrTrackingStep
	}

	update := apiclient.StatusUpdate{
		NewStatus:   string(change.Target),
		AdminUserID: c.adminID,
		Note:        strings.TrimSpace(change.Note),
	}
	if current, ok := c.lookup(orderID); ok {
		if from, known := domain.ParseOrderStatus(current.Status); known {
			if !domain.OperatorCanTransition(from, change.Target) {
				return apiclient.Order{}, fmt.Errorf("%w: %s to %s", ErrInvalidTransition, from, change.Target)
			}
			update.ExpectedStatus = string(from)
		}
	}
	if change.Tracking != nil {
		update.TrackingCode = strings.TrimSpace(change.Tracking.Code)
		update.TrackingCompany = strings.TrimSpace(change.Tracking.Company)
		update.TrackingURL = strings.TrimSpace(change.Tracking.URL)
	}

	cmd := c.NewCommand(orderID, func(o *apiclient.Order) {
		setStatus(o, change.Target)
		if change.Tracking != nil {
			setTracking(o, *change.Tracking)
		}
	})
	return cmd.Run(ctx, func(ctx context.Context) (apiclient.Order, error) {
		return c.backend.UpdateOrderStatus(ctx, orderID, update)
	})
}

// UpdateTracking records tracking and moves the order to Shipped in one call. The request carries
// the order as last seen so the server can detect a concurrent status change.
func (c *Console) UpdateTracking(ctx context.Context, orderID string, tracking domain.Tracking) (apiclient.Order, error) {
	if c.adminID == "" {
		return apiclient.Order{}, ErrMissingAdmin
	}
	if !tracking.Complete() {
		return apiclient.Order{}, ErrTrackingStep
	}

	current, ok := c.lookup(orderID)
	if !ok {
		fetched, err := c.backend.GetAdminOrder(ctx, orderID)
		if err != nil {
			return apiclient.Order{}, err
		}
		current = fetched
	}
	dto := cloneOrder(current)
	setTracking(&dto, tracking)

	cmd := c.NewCommand(orderID, func(o *apiclient.Order) {
		setTracking(o, tracking)
		setStatus(o, domain.OrderStatusShipped)
	})
	return cmd.Run(ctx, func(ctx context.Context) (apiclient.Order, error) {
		return c.backend.UpdateTracking(ctx, dto, c.adminID)
	})
}

// RefundPrompt describes the decision shown in the confirmation dialog.
type RefundPrompt struct {
	OrderID     string
	OrderNumber string
	Approve     bool
	Reason      string
	Total       int64
}

// Confirm asks the operator to confirm a decision. Returning false cancels it.
type Confirm func(ctx context.Context, prompt RefundPrompt) bool

// DecideRefund approves or rejects a requested refund after confirm returns true.
func (c *Console) DecideRefund(ctx context.Context, orderID string, approve bool, confirm Confirm) (apiclient.Order, error) {
	if c.adminID == "" {
		return apiclient.Order{}, ErrMissingAdmin
	}
	current, ok := c.lookup(orderID)
	if !ok {
		fetched, err := c.Open(ctx, orderID)
		if err != nil {
			return apiclient.Order{}, err
		}
		current = fetched
	}
	if domain.RefundState(current.RefundStatus) != domain.RefundStateRequested {
		return apiclient.Order{}, ErrRefundNotRequested
	}
	prompt := RefundPrompt{
		OrderID:     current.ID,
		OrderNumber: current.OrderNumber,
		Approve:     approve,
		Reason:      current.RefundReason,
		Total:       current.Total,
	}
	if confirm == nil || !confirm(ctx, prompt) {
		return apiclient.Order{}, ErrNotConfirmed
	}

	decided := domain.RefundStateRejected
	if approve {
		decided = domain.RefundStateApproved
	}
	cmd := c.NewCommand(orderID, func(o *apiclient.Order) {
		o.RefundStatus = string(decided)
	})
	return cmd.Run(ctx, func(ctx context.Context) (apiclient.Order, error) {
		if approve {
			return c.backend.ApproveRefund(ctx, orderID, c.adminID)
		}
		return c.backend.RejectRefund(ctx, orderID, c.adminID)
	})
}

func setStatus(o *apiclient.Order, status domain.OrderStatus) {
	o.Status = string(status)
	o.StatusLabel = status.Label()
}

func setTracking(o *apiclient.Order, tracking domain.Tracking) {
	o.TrackingCode = strings.TrimSpace(tracking.Code)
	o.TrackingCompany = strings.TrimSpace(tracking.Company)
	o.TrackingURL = strings.TrimSpace(tracking.URL)
}
