package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/personaliza/api"

// Metrics records checkout, payment and catalog lifecycle counters.
type Metrics struct {
	ordersCreated  metric.Int64Counter
	payments       metric.Int64Counter
	transitions    metric.Int64Counter
	catalogDeletes metric.Int64Counter
}

// NewMetrics registers the counters on the global meter provider.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)
	ordersCreated, err := meter.Int64Counter("checkout.orders.created",
		metric.WithDescription("Orders created by checkout"))
	if err != nil {
		return nil, err
	}
	payments, err := meter.Int64Counter("checkout.payments",
		metric.WithDescription("Payment dispatch results by method and status"))
	if err != nil {
		return nil, err
	}
	transitions, err := meter.Int64Counter("orders.status.transitions",
		metric.WithDescription("Committed order status transitions"))
	if err != nil {
		return nil, err
	}
	catalogDeletes, err := meter.Int64Counter("catalog.delete.outcomes",
		metric.WithDescription("Catalog delete lifecycle outcomes"))
	if err != nil {
		return nil, err
	}
	return &Metrics{
		ordersCreated:  ordersCreated,
		payments:       payments,
		transitions:    transitions,
		catalogDeletes: catalogDeletes,
	}, nil
}

// OrderCreated counts an order created through checkout.
func (m *Metrics) OrderCreated(ctx context.Context, method string, pickup bool) {
	if m == nil {
		return
	}
	m.ordersCreated.Add(ctx, 1, metric.WithAttributes(
		attribute.String("payment_method", method),
		attribute.Bool("pickup", pickup),
	))
}

// PaymentResult counts a gateway result.
func (m *Metrics) PaymentResult(ctx context.Context, method, status string) {
	if m == nil {
		return
	}
	m.payments.Add(ctx, 1, metric.WithAttributes(
		attribute.String("payment_method", method),
		attribute.String("status", status),
	))
}

// Transition counts a committed status change.
func (m *Metrics) Transition(ctx context.Context, from, to string) {
	if m == nil {
		return
	}
	m.transitions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("from", from),
		attribute.String("to", to),
	))
}

// CatalogDelete counts one delete lifecycle outcome.
func (m *Metrics) CatalogDelete(ctx context.Context, kind, outcome string) {
	if m == nil {
		return
	}
	m.catalogDeletes.Add(ctx, 1, metric.WithAttributes(
		attribute.String("kind", kind),
		attribute.String("outcome", outcome),
	))
}
