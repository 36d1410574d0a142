package services

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/personaliza/api/internal/domain"
	"github.com/personaliza/api/internal/payments"
	"github.com/personaliza/api/internal/platform/observability"
	"github.com/personaliza/api/internal/platform/pagination"
	"github.com/personaliza/api/internal/platform/textutil"
	"github.com/personaliza/api/internal/repositories"
)

const (
	orderEventCreated         = "order.created"
	orderEventStatusChanged   = "order.status_changed"
	orderEventTrackingUpdated = "order.tracking_updated"
	orderEventRefundRequested = "order.refund_requested"
	orderEventRefundApproved  = "order.refund_approved"
	orderEventRefundRejected  = "order.refund_rejected"

	auditActionCreated          = "order.created"
	auditActionStatusChanged    = "status.changed"
	auditActionTrackingUpdated  = "tracking.updated"
	auditActionPaymentAttempted = "payment.attempted"
	auditActionPaymentConfirmed = "payment.confirmed"
	auditActionRefundRequested  = "refund.requested"
	auditActionRefundApproved   = "refund.approved"
	auditActionRefundRejected   = "refund.rejected"

	orderIDPrefix      = "ord_"
	orderItemIDPrefix  = "itm_"
	auditIDPrefix      = "aud_"
	orderNumberCounter = "orders"

	pickupShippingCode = "pickup"
	pickupShippingName = "Retirar na loja"

	maxNoteLength   = 500
	maxReasonLength = 500
)

var (
	// ErrOrderInvalidInput signals the caller provided invalid data.
	ErrOrderInvalidInput = errors.New("order: invalid input")
	// ErrOrderNotFound indicates the order could not be located or belongs to someone else.
	ErrOrderNotFound = errors.New("order: not found")
	// ErrOrderInvalidState indicates an invalid status transition was attempted.
	ErrOrderInvalidState = errors.New("order: invalid status transition")
	// ErrOrderConflict indicates the order changed since the caller read it.
	ErrOrderConflict = errors.New("order: conflict")
	// ErrOrderTrackingRequired indicates a Shipped transition without complete tracking.
	ErrOrderTrackingRequired = errors.New("order: tracking code, company and url are required")
	// ErrOrderPaymentFailed indicates the gateway refused a reversal.
	ErrOrderPaymentFailed = errors.New("order: payment gateway failure")

	errOrderAuditUnavailable   = errors.New("order: audit repository not configured")
	errOrderGatewayUnavailable = errors.New("order: payment gateway not configured")
)

// OrderEventPublisher publishes order domain events for downstream consumers.
type OrderEventPublisher interface {
	PublishOrderEvent(ctx context.Context, event OrderEvent) error
}

// OrderEvent captures metadata for emitted order domain events.
type OrderEvent struct {
	Type           string
	OrderID        string
	OrderNumber    string
	PreviousStatus string
	CurrentStatus  string
	ActorID        string
	OccurredAt     time.Time
	Metadata       map[string]any
}

// OrderServiceDeps bundles collaborators required to construct the order service.
type OrderServiceDeps struct {
	Orders      repositories.OrderRepository
	Audit       repositories.OrderAuditRepository
	Counters    repositories.CounterRepository
	StatusCache repositories.OrderStatusCache
	Refunds     payments.Gateway
	UnitOfWork  repositories.UnitOfWork
	Clock       func() time.Time
	IDGenerator func() string
	Events      OrderEventPublisher
	Metrics     *observability.Metrics
	Logger      func(ctx context.Context, event string, fields map[string]any)
}

type orderService struct {
	orders     repositories.OrderRepository
	audit      repositories.OrderAuditRepository
	counters   repositories.CounterRepository
	cache      repositories.OrderStatusCache
	refunds    payments.Gateway
	unitOfWork repositories.UnitOfWork
	clock      func() time.Time
	newID      func() string
	events     OrderEventPublisher
	metrics    *observability.Metrics
	logger     func(context.Context, string, map[string]any)
}

// orderChange describes one committed mutation. skip leaves the order untouched.
type orderChange struct {
	skip     bool
	action   string
	note     string
	event    string
	metadata map[string]any
}

// NewOrderService wires dependencies into a concrete OrderService implementation.
func NewOrderService(deps OrderServiceDeps) (OrderService, error) {
	if deps.Orders == nil {
		return nil, errors.New("order service: order repository is required")
	}
	if deps.Counters == nil {
		return nil, errors.New("order service: counter repository is required")
	}

	unit := deps.UnitOfWork
	if unit == nil {
		unit = noopUnitOfWork{}
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string {
			return ulid.Make().String()
		}
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &orderService{
		orders:     deps.Orders,
		audit:      deps.Audit,
		counters:   deps.Counters,
		cache:      deps.StatusCache,
		refunds:    deps.Refunds,
		unitOfWork: unit,
		clock: func() time.Time {
			return clock().UTC()
		},
		newID:   idGen,
		events:  deps.Events,
		metrics: deps.Metrics,
		logger:  logger,
	}, nil
}

func (s *orderService) CreateOrder(ctx context.Context, cmd CreateOrderCommand) (Order, error) {
	userID := strings.TrimSpace(cmd.UserID)
	if userID == "" {
		return Order{}, fmt.Errorf("%w: user id is required", ErrOrderInvalidInput)
	}
	if len(cmd.Items) == 0 {
		return Order{}, fmt.Errorf("%w: order must contain at least one item", ErrOrderInvalidInput)
	}
	if !cmd.PaymentMethod.Valid() {
		return Order{}, fmt.Errorf("%w: unsupported payment method %q", ErrOrderInvalidInput, cmd.PaymentMethod)
	}

	items := make([]OrderItem, 0, len(cmd.Items))
	for _, item := range cmd.Items {
		if item.Quantity < 1 || item.UnitPrice < 0 {
			return Order{}, fmt.Errorf("%w: item %q has invalid quantity or price", ErrOrderInvalidInput, item.ProductID)
		}
		item.ID = orderItemIDPrefix + s.newID()
		item.LineTotal = item.UnitPrice * int64(item.Quantity)
		items = append(items, item)
	}

	totals := domain.ComputeTotals(items, cmd.Shipping.Price, cmd.Pickup)
	now := s.now()

	selection := domain.ShippingSelection{
		Code:          cmd.Shipping.Code,
		Name:          cmd.Shipping.Name,
		EstimatedDays: cmd.Shipping.EstimatedDays,
	}
	if cmd.Pickup {
		selection = domain.ShippingSelection{Code: pickupShippingCode, Name: pickupShippingName, Pickup: true}
	}

	order := Order{
		ID:             s.nextOrderID(),
		UserID:         userID,
		CustomerName:   strings.TrimSpace(cmd.CustomerName),
		CustomerEmail:  strings.TrimSpace(cmd.CustomerEmail),
		Phone:          strings.TrimSpace(cmd.Phone),
		Status:         domain.OrderStatusPending,
		Currency:       totals.Currency,
		Subtotal:       totals.Subtotal,
		Shipping:       totals.Shipping,
		Total:          totals.Total,
		ShippingMethod: selection,
		PaymentMethod:  cmd.PaymentMethod,
		Refund:         domain.Refund{State: domain.RefundStateNone},
		Items:          items,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if !cmd.Pickup {
		order.AddressID = strings.TrimSpace(cmd.AddressID)
		if cmd.ShippingAddress != nil {
			snapshot := *cmd.ShippingAddress
			order.ShippingAddress = &snapshot
		}
	}

	err := s.runInTx(ctx, func(txCtx context.Context) error {
		number, err := s.generateOrderNumber(txCtx, now)
		if err != nil {
			return err
		}
		order.Number = number
		if err := s.orders.Insert(txCtx, order); err != nil {
			return s.mapRepositoryError(err)
		}
		return s.appendAudit(txCtx, order, userID, orderChange{action: auditActionCreated}, "", now)
	})
	if err != nil {
		return Order{}, err
	}

	s.publishEvent(ctx, OrderEvent{
		Type:          orderEventCreated,
		OrderID:       order.ID,
		OrderNumber:   order.Number,
		CurrentStatus: string(order.Status),
		ActorID:       userID,
		OccurredAt:    now,
		Metadata: map[string]any{
			"total":         order.Total,
			"paymentMethod": string(order.PaymentMethod),
			"pickup":        cmd.Pickup,
		},
	})

	return order, nil
}

func (s *orderService) GetOrder(ctx context.Context, orderID string) (Order, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return Order{}, s.mapRepositoryError(err)
	}
	return order, nil
}

func (s *orderService) GetBuyerOrder(ctx context.Context, userID, orderID string) (Order, error) {
	order, err := s.GetOrder(ctx, orderID)
	if err != nil {
		return Order{}, err
	}
	if order.UserID != strings.TrimSpace(userID) {
		return Order{}, fmt.Errorf("%w: %s", ErrOrderNotFound, orderID)
	}
	return order, nil
}

func (s *orderService) ListOrders(ctx context.Context, filter OrderListFilter) (domain.CursorPage[Order], error) {
	filter.UserID = strings.TrimSpace(filter.UserID)
	filter.Query = strings.TrimSpace(filter.Query)
	for _, status := range filter.Statuses {
		if !status.Valid() {
			return domain.CursorPage[Order]{}, fmt.Errorf("%w: unknown status %q", ErrOrderInvalidInput, status)
		}
	}
	page, err := s.orders.List(ctx, filter)
	if err != nil {
		if errors.Is(err, pagination.ErrInvalidPageToken) {
			return domain.CursorPage[Order]{}, fmt.Errorf("%w: %v", ErrOrderInvalidInput, err)
		}
		return domain.CursorPage[Order]{}, s.mapRepositoryError(err)
	}
	return page, nil
}

// GetStatus serves PIX polling. Cached entries carry the owner so the ownership check holds on a hit.
func (s *orderService) GetStatus(ctx context.Context, userID, orderID string) (OrderStatus, error) {
	userID = strings.TrimSpace(userID)
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return "", fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}

	if s.cache != nil {
		entry, ok, err := s.cache.GetStatus(ctx, orderID)
		switch {
		case err != nil:
			s.logger(ctx, "order.status.cache.read_failed", map[string]any{"order": orderID, "error": err.Error()})
		case ok:
			if entry.UserID != userID {
				return "", fmt.Errorf("%w: %s", ErrOrderNotFound, orderID)
			}
			return entry.Status, nil
		}
	}

	order, err := s.GetBuyerOrder(ctx, userID, orderID)
	if err != nil {
		return "", err
	}
	if s.cache != nil {
		if err := s.cache.SetStatus(ctx, orderID, domain.OrderStatusEntry{Status: order.Status, UserID: order.UserID}); err != nil {
			s.logger(ctx, "order.status.cache.write_failed", map[string]any{"order": orderID, "error": err.Error()})
		}
	}
	return order.Status, nil
}

func (s *orderService) TransitionStatus(ctx context.Context, cmd OrderStatusTransitionCommand) (Order, error) {
	orderID := strings.TrimSpace(cmd.OrderID)
	if orderID == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}
	target := cmd.TargetStatus
	if !target.Valid() {
		return Order{}, fmt.Errorf("%w: unknown target status %q", ErrOrderInvalidInput, target)
	}
	if domain.PaymentConfirmationOnly(target) {
		return Order{}, fmt.Errorf("%w: orders become paid only through payment confirmation", ErrOrderInvalidState)
	}
	var tracking *Tracking
	if target == domain.OrderStatusShipped {
		if cmd.Tracking == nil || !cmd.Tracking.Complete() {
			return Order{}, ErrOrderTrackingRequired
		}
		tracking = normaliseTracking(*cmd.Tracking)
	}
	note := textutil.Sanitize(cmd.Note, maxNoteLength)

	return s.mutate(ctx, orderID, strings.TrimSpace(cmd.ActorID), cmd.ExpectedStatus, func(order *Order, now time.Time) (orderChange, error) {
		if err := applyStatusTransition(order, target, now); err != nil {
			return orderChange{}, err
		}
		metadata := map[string]any{}
		if tracking != nil {
			order.Tracking = tracking
			metadata["trackingCode"] = tracking.Code
			metadata["trackingCompany"] = tracking.Company
		}
		if note != "" {
			metadata["note"] = note
		}
		return orderChange{
			action:   auditActionStatusChanged,
			note:     note,
			event:    orderEventStatusChanged,
			metadata: metadata,
		}, nil
	})
}

// UpdateTracking stores tracking and forces Shipped. An already shipped order only gets its
// tracking fields replaced.
func (s *orderService) UpdateTracking(ctx context.Context, cmd UpdateTrackingCommand) (Order, error) {
	orderID := strings.TrimSpace(cmd.OrderID)
	if orderID == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}
	if !cmd.Tracking.Complete() {
		return Order{}, ErrOrderTrackingRequired
	}
	tracking := normaliseTracking(cmd.Tracking)

	return s.mutate(ctx, orderID, strings.TrimSpace(cmd.ActorID), cmd.ExpectedStatus, func(order *Order, now time.Time) (orderChange, error) {
		metadata := map[string]any{
			"trackingCode":    tracking.Code,
			"trackingCompany": tracking.Company,
			"trackingUrl":     tracking.URL,
		}
		if order.Status == domain.OrderStatusShipped {
			order.Tracking = tracking
			return orderChange{action: auditActionTrackingUpdated, event: orderEventTrackingUpdated, metadata: metadata}, nil
		}
		if err := applyStatusTransition(order, domain.OrderStatusShipped, now); err != nil {
			return orderChange{}, err
		}
		order.Tracking = tracking
		return orderChange{action: auditActionStatusChanged, event: orderEventStatusChanged, metadata: metadata}, nil
	})
}

func (s *orderService) RecordPaymentAttempt(ctx context.Context, cmd RecordPaymentAttemptCommand) (Order, error) {
	orderID := strings.TrimSpace(cmd.OrderID)
	paymentID := strings.TrimSpace(cmd.PaymentID)
	if orderID == "" || paymentID == "" {
		return Order{}, fmt.Errorf("%w: order id and payment id are required", ErrOrderInvalidInput)
	}
	return s.mutate(ctx, orderID, "", nil, func(order *Order, _ time.Time) (orderChange, error) {
		if order.Status != domain.OrderStatusPending {
			return orderChange{}, fmt.Errorf("%w: order is %s", ErrOrderInvalidState, order.Status)
		}
		order.PaymentID = paymentID
		order.PaymentDetail = strings.TrimSpace(cmd.Detail)
		return orderChange{action: auditActionPaymentAttempted, note: order.PaymentDetail}, nil
	})
}

// ConfirmPayment is the only path from Pending to Paid. Confirming a paid order again is a no-op.
func (s *orderService) ConfirmPayment(ctx context.Context, cmd ConfirmPaymentCommand) (Order, error) {
	orderID := strings.TrimSpace(cmd.OrderID)
	paymentID := strings.TrimSpace(cmd.PaymentID)
	if orderID == "" {
		if paymentID == "" {
			return Order{}, fmt.Errorf("%w: order id or payment id is required", ErrOrderInvalidInput)
		}
		order, err := s.orders.FindByPaymentID(ctx, paymentID)
		if err != nil {
			return Order{}, s.mapRepositoryError(err)
		}
		orderID = order.ID
	}
	source := strings.TrimSpace(cmd.Source)

	return s.mutate(ctx, orderID, "", nil, func(order *Order, now time.Time) (orderChange, error) {
		switch order.Status {
		case domain.OrderStatusPending:
		case domain.OrderStatusCancelled:
			s.logger(ctx, "order.payment.confirmed_after_cancel", map[string]any{
				"order":   order.ID,
				"payment": paymentID,
				"source":  source,
			})
			return orderChange{}, fmt.Errorf("%w: order %s is cancelled", ErrOrderInvalidState, order.ID)
		default:
			return orderChange{skip: true}, nil
		}
		paidAt := now
		if cmd.PaidAt != nil && !cmd.PaidAt.IsZero() {
			paidAt = cmd.PaidAt.UTC()
		}
		if err := applyStatusTransition(order, domain.OrderStatusPaid, now); err != nil {
			return orderChange{}, err
		}
		order.PaidAt = &paidAt
		if paymentID != "" {
			order.PaymentID = paymentID
		}
		order.PaymentDetail = payments.DetailAccredited
		return orderChange{
			action:   auditActionPaymentConfirmed,
			note:     source,
			event:    orderEventStatusChanged,
			metadata: map[string]any{"paymentId": order.PaymentID, "source": source},
		}, nil
	})
}

func (s *orderService) RequestRefund(ctx context.Context, cmd RequestRefundCommand) (Order, error) {
	orderID := strings.TrimSpace(cmd.OrderID)
	userID := strings.TrimSpace(cmd.UserID)
	if orderID == "" || userID == "" {
		return Order{}, fmt.Errorf("%w: order id and user id are required", ErrOrderInvalidInput)
	}
	reason := textutil.Sanitize(cmd.Reason, maxReasonLength)
	if reason == "" {
		return Order{}, fmt.Errorf("%w: refund reason is required", ErrOrderInvalidInput)
	}

	return s.mutate(ctx, orderID, userID, nil, func(order *Order, now time.Time) (orderChange, error) {
		if order.UserID != userID {
			return orderChange{}, fmt.Errorf("%w: %s", ErrOrderNotFound, orderID)
		}
		if !domain.RefundableStatus(order.Status) {
			return orderChange{}, fmt.Errorf("%w: refunds cannot be requested for %s orders", ErrOrderInvalidState, order.Status)
		}
		if state := refundState(*order); state != domain.RefundStateNone {
			return orderChange{}, fmt.Errorf("%w: refund already %s", ErrOrderInvalidState, state)
		}
		order.Refund = domain.Refund{
			State:       domain.RefundStateRequested,
			Reason:      reason,
			RequestedAt: &now,
		}
		return orderChange{
			action:   auditActionRefundRequested,
			note:     reason,
			event:    orderEventRefundRequested,
			metadata: map[string]any{"reason": reason},
		}, nil
	})
}

// ApproveRefund reverses the payment first. A gateway failure leaves the order unchanged.
func (s *orderService) ApproveRefund(ctx context.Context, cmd RefundDecisionCommand) (Order, error) {
	if s.refunds == nil {
		return Order{}, errOrderGatewayUnavailable
	}
	orderID := strings.TrimSpace(cmd.OrderID)
	if orderID == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}
	actor := strings.TrimSpace(cmd.ActorID)

	order, err := s.GetOrder(ctx, orderID)
	if err != nil {
		return Order{}, err
	}
	if err := checkRefundDecidable(order); err != nil {
		return Order{}, err
	}
	if !domain.CanTransition(order.Status, domain.OrderStatusRefunded) {
		return Order{}, fmt.Errorf("%w: cannot refund a %s order", ErrOrderInvalidState, order.Status)
	}
	if strings.TrimSpace(order.PaymentID) == "" {
		return Order{}, fmt.Errorf("%w: order has no captured payment", ErrOrderInvalidState)
	}

	result, err := s.refunds.Refund(ctx, payments.RefundRequest{
		PaymentID:      order.PaymentID,
		OrderID:        order.ID,
		Reason:         order.Refund.Reason,
		IdempotencyKey: "refund_" + order.ID,
	})
	if err != nil {
		s.logger(ctx, "order.refund.gateway_failed", map[string]any{
			"order":   order.ID,
			"payment": order.PaymentID,
			"error":   err.Error(),
		})
		return Order{}, fmt.Errorf("%w: %v", ErrOrderPaymentFailed, err)
	}

	return s.mutate(ctx, orderID, actor, nil, func(order *Order, now time.Time) (orderChange, error) {
		if refundState(*order) == domain.RefundStateApproved && order.Status == domain.OrderStatusRefunded {
			return orderChange{skip: true}, nil
		}
		if err := checkRefundDecidable(*order); err != nil {
			return orderChange{}, err
		}
		if err := applyStatusTransition(order, domain.OrderStatusRefunded, now); err != nil {
			return orderChange{}, err
		}
		order.Refund.State = domain.RefundStateApproved
		order.Refund.ProcessedAt = &now
		order.Refund.DecidedBy = actor
		return orderChange{
			action:   auditActionRefundApproved,
			event:    orderEventRefundApproved,
			metadata: map[string]any{"refundId": result.RefundID, "paymentId": order.PaymentID},
		}, nil
	})
}

func (s *orderService) RejectRefund(ctx context.Context, cmd RefundDecisionCommand) (Order, error) {
	orderID := strings.TrimSpace(cmd.OrderID)
	if orderID == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}
	actor := strings.TrimSpace(cmd.ActorID)
	return s.mutate(ctx, orderID, actor, nil, func(order *Order, now time.Time) (orderChange, error) {
		if err := checkRefundDecidable(*order); err != nil {
			return orderChange{}, err
		}
		order.Refund.State = domain.RefundStateRejected
		order.Refund.ProcessedAt = &now
		order.Refund.DecidedBy = actor
		return orderChange{action: auditActionRefundRejected, event: orderEventRefundRejected}, nil
	})
}

func (s *orderService) ListAudit(ctx context.Context, orderID string) ([]OrderAuditEntry, error) {
	if s.audit == nil {
		return nil, errOrderAuditUnavailable
	}
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return nil, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}
	if _, err := s.orders.FindByID(ctx, orderID); err != nil {
		return nil, s.mapRepositoryError(err)
	}
	entries, err := s.audit.ListByOrder(ctx, orderID)
	if err != nil {
		return nil, s.mapRepositoryError(err)
	}
	return entries, nil
}

// mutate locks the order row, applies fn and writes the order plus its audit entry in one
// transaction. Cache invalidation and event publication run after commit.
func (s *orderService) mutate(ctx context.Context, orderID, actor string, expected *OrderStatus, fn func(order *Order, now time.Time) (orderChange, error)) (Order, error) {
	var (
		updated Order
		prev    OrderStatus
		change  orderChange
	)
	now := s.now()

	err := s.runInTx(ctx, func(txCtx context.Context) error {
		order, err := s.orders.FindByIDForUpdate(txCtx, orderID)
		if err != nil {
			return s.mapRepositoryError(err)
		}
		if expected != nil && order.Status != *expected {
			return fmt.Errorf("%w: expected status %q but was %q", ErrOrderConflict, *expected, order.Status)
		}
		prev = order.Status

		change, err = fn(&order, now)
		if err != nil {
			return err
		}
		if change.skip {
			updated = order
			return nil
		}
		order.UpdatedAt = now
		if err := s.orders.Update(txCtx, order); err != nil {
			return s.mapRepositoryError(err)
		}
		if err := s.appendAudit(txCtx, order, actor, change, prev, now); err != nil {
			return err
		}
		updated = order
		return nil
	})
	if err != nil {
		return Order{}, err
	}
	if change.skip {
		return updated, nil
	}

	s.invalidateStatus(ctx, updated.ID)
	if prev != updated.Status {
		s.metrics.Transition(ctx, string(prev), string(updated.Status))
	}
	if change.event != "" {
		s.publishEvent(ctx, OrderEvent{
			Type:           change.event,
			OrderID:        updated.ID,
			OrderNumber:    updated.Number,
			PreviousStatus: string(prev),
			CurrentStatus:  string(updated.Status),
			ActorID:        actor,
			OccurredAt:     now,
			Metadata:       change.metadata,
		})
	}
	return updated, nil
}

func (s *orderService) appendAudit(ctx context.Context, order Order, actor string, change orderChange, from OrderStatus, now time.Time) error {
	if s.audit == nil {
		return nil
	}
	entry := domain.OrderAuditEntry{
		ID:         auditIDPrefix + s.newID(),
		OrderID:    order.ID,
		ActorID:    actor,
		Action:     change.action,
		FromStatus: from,
		ToStatus:   order.Status,
		Note:       change.note,
		CreatedAt:  now,
	}
	if err := s.audit.Append(ctx, entry); err != nil {
		return s.mapRepositoryError(err)
	}
	return nil
}

func (s *orderService) invalidateStatus(ctx context.Context, orderID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, orderID); err != nil {
		s.logger(ctx, "order.status.cache.invalidate_failed", map[string]any{
			"order": orderID,
			"error": err.Error(),
		})
	}
}

func (s *orderService) mapRepositoryError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrOrderInvalidInput) || errors.Is(err, ErrOrderNotFound) ||
		errors.Is(err, ErrOrderConflict) || errors.Is(err, ErrOrderInvalidState) {
		return err
	}

	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %v", ErrOrderNotFound, err)
		case repoErr.IsConflict():
			return fmt.Errorf("%w: %v", ErrOrderConflict, err)
		case repoErr.IsUnavailable():
			return fmt.Errorf("order: repository unavailable: %w", err)
		}
	}

	return err
}

func (s *orderService) generateOrderNumber(ctx context.Context, now time.Time) (string, error) {
	seq, err := s.counters.Next(ctx, orderNumberCounter)
	if err != nil {
		return "", fmt.Errorf("order: allocate order number: %w", err)
	}
	return fmt.Sprintf("PZ-%04d-%06d", now.Year(), seq), nil
}

func (s *orderService) runInTx(ctx context.Context, fn func(context.Context) error) error {
	if s.unitOfWork == nil {
		return fn(ctx)
	}
	return s.unitOfWork.RunInTx(ctx, fn)
}

func (s *orderService) now() time.Time {
	return s.clock()
}

func (s *orderService) nextOrderID() string {
	return orderIDPrefix + s.newID()
}

func (s *orderService) publishEvent(ctx context.Context, event OrderEvent) {
	if s.events == nil {
		return
	}
	if event.Metadata != nil {
		event.Metadata = maps.Clone(event.Metadata)
	}
	if err := s.events.PublishOrderEvent(ctx, event); err != nil {
		s.logger(ctx, "order.event.publish.failed", map[string]any{
			"type":   event.Type,
			"order":  event.OrderID,
			"error":  err.Error(),
			"status": event.CurrentStatus,
		})
	}
}

type noopUnitOfWork struct{}

func (noopUnitOfWork) RunInTx(ctx context.Context, fn func(context.Context) error) error {
	return fn(ctx)
}

func applyStatusTransition(order *Order, target OrderStatus, now time.Time) error {
	if !domain.CanTransition(order.Status, target) {
		return fmt.Errorf("%w: cannot transition from %s to %s", ErrOrderInvalidState, order.Status, target)
	}
	order.Status = target
	switch target {
	case domain.OrderStatusPaid:
		if order.PaidAt == nil {
			order.PaidAt = &now
		}
	case domain.OrderStatusShipped:
		order.ShippedAt = &now
	case domain.OrderStatusDelivered:
		order.DeliveredAt = &now
	case domain.OrderStatusCancelled:
		order.CancelledAt = &now
	}
	return nil
}

func checkRefundDecidable(order Order) error {
	if state := refundState(order); state != domain.RefundStateRequested {
		return fmt.Errorf("%w: refund is %s, not requested", ErrOrderInvalidState, state)
	}
	return nil
}

func refundState(order Order) domain.RefundState {
	if order.Refund.State == "" {
		return domain.RefundStateNone
	}
	return order.Refund.State
}

func normaliseTracking(t Tracking) *Tracking {
	return &Tracking{
		Code:    strings.TrimSpace(t.Code),
		Company: strings.TrimSpace(t.Company),
		URL:     strings.TrimSpace(t.URL),
	}
}
