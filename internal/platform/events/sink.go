package events

import (
	"context"
	"fmt"

	"cloud.google.com/go/pubsub"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/personaliza/api/internal/platform/config"
	"github.com/personaliza/api/internal/services"
)

// Sink is an order event publisher that owns broker resources.
type Sink interface {
	services.OrderEventPublisher
	Close() error
}

// Open builds the sink selected by cfg.Sink.
func Open(ctx context.Context, cfg config.EventsConfig, projectID string, logger *zap.Logger, opts ...option.ClientOption) (Sink, error) {
	switch cfg.Sink {
	case config.EventSinkPubSub:
		client, err := pubsub.NewClient(ctx, projectID, opts...)
		if err != nil {
			return nil, fmt.Errorf("events: pubsub client: %w", err)
		}
		publisher, err := NewPubSubPublisher(client.Topic(cfg.Topic))
		if err != nil {
			_ = client.Close()
			return nil, err
		}
		return &pubsubSink{PubSubPublisher: publisher, client: client}, nil
	case config.EventSinkKafka:
		return NewKafkaPublisher(cfg.KafkaBrokers, cfg.Topic)
	case config.EventSinkLog, "":
		return NewLogPublisher(logger), nil
	default:
		return nil, fmt.Errorf("events: unknown sink %q", cfg.Sink)
	}
}

type pubsubSink struct {
	*PubSubPublisher
	client *pubsub.Client
}

func (s *pubsubSink) Close() error {
	_ = s.PubSubPublisher.Close()
	return s.client.Close()
}
