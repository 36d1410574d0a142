package domain

import "strings"

// OrderStatus is the single order status enum. The value is the backend name;
// Label returns the storefront vocabulary.
type OrderStatus string

const (
	OrderStatusPending      OrderStatus = "Pending"
	OrderStatusPaid         OrderStatus = "Paid"
	OrderStatusInProduction OrderStatus = "InProduction"
	OrderStatusShipped      OrderStatus = "Shipped"
	OrderStatusDelivered    OrderStatus = "Delivered"
	OrderStatusRefunded     OrderStatus = "Refunded"
	OrderStatusCancelled    OrderStatus = "Cancelled"
)

var orderStatusLabels = map[OrderStatus]string{
	OrderStatusPending:      "pendente",
	OrderStatusPaid:         "aprovado",
	OrderStatusInProduction: "em_producao",
	OrderStatusShipped:      "a_caminho",
	OrderStatusDelivered:    "entregue",
	OrderStatusRefunded:     "reembolsado",
	OrderStatusCancelled:    "cancelado",
}

var orderStatusByLabel = func() map[string]OrderStatus {
	out := make(map[string]OrderStatus, len(orderStatusLabels))
	for status, label := range orderStatusLabels {
		out[label] = status
	}
	return out
}()

var orderStatusByName = func() map[string]OrderStatus {
	out := make(map[string]OrderStatus, len(orderStatusLabels))
	for status := range orderStatusLabels {
		out[strings.ToLower(string(status))] = status
	}
	return out
}()

// orderTransitions lists the statuses reachable from each state.
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:      {OrderStatusPaid, OrderStatusCancelled},
	OrderStatusPaid:         {OrderStatusInProduction, OrderStatusRefunded, OrderStatusCancelled},
	OrderStatusInProduction: {OrderStatusShipped, OrderStatusRefunded, OrderStatusCancelled},
	OrderStatusShipped:      {OrderStatusDelivered, OrderStatusRefunded},
	OrderStatusDelivered:    {OrderStatusRefunded},
	OrderStatusRefunded:     {},
	OrderStatusCancelled:    {},
}

// OrderStatuses returns every status in lifecycle order.
func OrderStatuses() []OrderStatus {
	return []OrderStatus{
		OrderStatusPending,
		OrderStatusPaid,
		OrderStatusInProduction,
		OrderStatusShipped,
		OrderStatusDelivered,
		OrderStatusRefunded,
		OrderStatusCancelled,
	}
}

// Valid reports whether the status is a known enum value.
func (s OrderStatus) Valid() bool {
	_, ok := orderStatusLabels[s]
	return ok
}

// Label returns the storefront label, or an empty string for unknown values.
func (s OrderStatus) Label() string {
	return orderStatusLabels[s]
}

// Terminal reports whether no further transition is allowed.
func (s OrderStatus) Terminal() bool {
	next, ok := orderTransitions[s]
	return ok && len(next) == 0
}

// StatusFromLabel maps a storefront label back to the enum.
func StatusFromLabel(label string) (OrderStatus, bool) {
	status, ok := orderStatusByLabel[strings.ToLower(strings.TrimSpace(label))]
	return status, ok
}

// ParseOrderStatus accepts either the backend name (case-insensitive) or the storefront label.
func ParseOrderStatus(raw string) (OrderStatus, bool) {
	key := strings.ToLower(strings.TrimSpace(raw))
	if key == "" {
		return "", false
	}
	if status, ok := orderStatusByName[key]; ok {
		return status, true
	}
	return StatusFromLabel(key)
}

// CanTransition reports whether moving from one status to another is allowed.
func CanTransition(from, to OrderStatus) bool {
	for _, candidate := range orderTransitions[from] {
		if candidate == to {
			return true
		}
	}
	return false
}

// PaymentConfirmationOnly reports whether s can only be reached through a confirmed payment.
func PaymentConfirmationOnly(s OrderStatus) bool {
	return s == OrderStatusPaid
}

// OperatorCanTransition is CanTransition restricted to the moves an operator may request.
func OperatorCanTransition(from, to OrderStatus) bool {
	return !PaymentConfirmationOnly(to) && CanTransition(from, to)
}

// RefundableStatus reports whether a buyer may request a refund in this status.
func RefundableStatus(s OrderStatus) bool {
	switch s {
	case OrderStatusPaid, OrderStatusInProduction, OrderStatusShipped, OrderStatusDelivered:
		return true
	default:
		return false
	}
}
