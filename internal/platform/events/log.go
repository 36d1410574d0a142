package events

import (
	"context"

	"go.uber.org/zap"

	"github.com/personaliza/api/internal/services"
)

// LogPublisher writes events to the structured log. Used when no broker is configured.
type LogPublisher struct {
	logger *zap.Logger
}

var _ services.OrderEventPublisher = (*LogPublisher)(nil)

func NewLogPublisher(logger *zap.Logger) *LogPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) PublishOrderEvent(_ context.Context, event services.OrderEvent) error {
	env, _, err := encode(event)
	if err != nil {
		return err
	}
	p.logger.Info("order event",
		zap.String("event_id", env.ID),
		zap.String("type", env.Type),
		zap.String("order_id", env.OrderID),
		zap.String("previous_status", env.PreviousStatus),
		zap.String("current_status", env.CurrentStatus),
		zap.String("actor_id", env.ActorID),
		zap.Time("occurred_at", env.OccurredAt),
	)
	return nil
}

func (p *LogPublisher) Close() error { return nil }
