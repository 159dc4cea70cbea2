package ports

import "context"

// EventPublisher publishes session lifecycle events to notify other consumers
type EventPublisher interface {
	// PublishAuthorized is emitted after a completed handshake produced a new pair
	PublishAuthorized(ctx context.Context, environment string) error

	// PublishInvalidated is emitted after the stored pair was cleared
	PublishInvalidated(ctx context.Context, environment, reason string) error
}
