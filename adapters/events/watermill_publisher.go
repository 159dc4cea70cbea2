package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"

	"github.com/openquant/etrade-mcp/ports"
)

const (
	// TopicAuthorized carries events for completed handshakes
	TopicAuthorized = "etrade.session.authorized"

	// TopicInvalidated carries events for cleared token pairs
	TopicInvalidated = "etrade.session.invalidated"
)

// AuthorizedEvent is emitted when a handshake produced a new access token pair
type AuthorizedEvent struct {
	Environment string    `json:"environment"`
	At          time.Time `json:"at"`
}

// InvalidatedEvent is emitted when the stored pair was cleared
type InvalidatedEvent struct {
	Environment string    `json:"environment"`
	Reason      string    `json:"reason"`
	At          time.Time `json:"at"`
}

// WatermillPublisher implements the EventPublisher interface using Watermill
type WatermillPublisher struct {
	publisher message.Publisher
}

// NewWatermillPublisher creates a new Watermill publisher
func NewWatermillPublisher(publisher message.Publisher) ports.EventPublisher {
	return &WatermillPublisher{publisher: publisher}
}

// PublishAuthorized publishes a session authorized event
func (p *WatermillPublisher) PublishAuthorized(ctx context.Context, environment string) error {
	return p.publish(TopicAuthorized, AuthorizedEvent{
		Environment: environment,
		At:          time.Now().UTC(),
	})
}

// PublishInvalidated publishes a session invalidated event
func (p *WatermillPublisher) PublishInvalidated(ctx context.Context, environment, reason string) error {
	return p.publish(TopicInvalidated, InvalidatedEvent{
		Environment: environment,
		Reason:      reason,
		At:          time.Now().UTC(),
	})
}

func (p *WatermillPublisher) publish(topic string, event any) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := message.NewMessage(uuid.New().String(), payload)

	if err := p.publisher.Publish(topic, msg); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	return nil
}
