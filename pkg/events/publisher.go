package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
)

// Publisher delivers events to a bus. Implementations must be safe for concurrent use.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// NoopPublisher drops every event
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, Event) error { return nil }

// BusPublisher publishes onto a watermill publisher, one topic per event type
type BusPublisher struct {
	pub message.Publisher
}

func NewBusPublisher(pub message.Publisher) *BusPublisher {
	return &BusPublisher{pub: pub}
}

func (p *BusPublisher) Publish(ctx context.Context, event Event) error {
	data, err := Encode(event)
	if err != nil {
		return err
	}

	msg := message.NewMessage(watermill.NewUUID(), data)
	msg.SetContext(ctx)
	if err := p.pub.Publish(event.EventType(), msg); err != nil {
		return fmt.Errorf("failed to publish event %s: %w", event.EventType(), err)
	}
	return nil
}

// Encode serializes the event envelope
func Encode(event Event) ([]byte, error) {
	data, err := json.Marshal(BaseEvent{
		Type:       event.EventType(),
		Data:       event.Payload(),
		OccurredAt: event.Timestamp(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event: %w", err)
	}
	return data, nil
}

// Decode is the inverse of Encode
func Decode(data []byte) (BaseEvent, error) {
	var e BaseEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return BaseEvent{}, fmt.Errorf("failed to unmarshal event: %w", err)
	}
	return e, nil
}
