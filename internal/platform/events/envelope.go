package events

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/personaliza/api/internal/services"
)

// Envelope is the wire shape of an order event on every sink.
type Envelope struct {
	ID             string         `json:"id"`
	Type           string         `json:"type"`
	OrderID        string         `json:"orderId"`
	OrderNumber    string         `json:"orderNumber,omitempty"`
	PreviousStatus string         `json:"previousStatus,omitempty"`
	CurrentStatus  string         `json:"currentStatus,omitempty"`
	ActorID        string         `json:"actorId,omitempty"`
	OccurredAt     time.Time      `json:"occurredAt"`
	Metadata       map[string]any `json:"metadata,omitempty"`
}

func newEnvelope(event services.OrderEvent) Envelope {
	return Envelope{
		ID:             uuid.NewString(),
		Type:           strings.TrimSpace(event.Type),
		OrderID:        strings.TrimSpace(event.OrderID),
		OrderNumber:    event.OrderNumber,
		PreviousStatus: event.PreviousStatus,
		CurrentStatus:  event.CurrentStatus,
		ActorID:        event.ActorID,
		OccurredAt:     event.OccurredAt.UTC(),
		Metadata:       event.Metadata,
	}
}

func encode(event services.OrderEvent) (Envelope, []byte, error) {
	if strings.TrimSpace(event.Type) == "" || strings.TrimSpace(event.OrderID) == "" {
		return Envelope{}, nil, fmt.Errorf("events: type and order id are required")
	}
	env := newEnvelope(event)
	data, err := json.Marshal(env)
	if err != nil {
		return Envelope{}, nil, fmt.Errorf("events: marshal %s: %w", env.Type, err)
	}
	return env, data, nil
}

func attributes(env Envelope) map[string]string {
	attrs := make(map[string]string)
	setAttr(attrs, "eventId", env.ID)
	setAttr(attrs, "type", env.Type)
	setAttr(attrs, "orderId", env.OrderID)
	setAttr(attrs, "status", env.CurrentStatus)
	return attrs
}

func setAttr(attrs map[string]string, key string, value string) {
	if v := strings.TrimSpace(value); v != "" {
		attrs[key] = v
	}
}
