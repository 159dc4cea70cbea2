package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatermillPublisherEvents(t *testing.T) {
	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	defer pubSub.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	authorized, err := pubSub.Subscribe(ctx, TopicAuthorized)
	require.NoError(t, err)
	invalidated, err := pubSub.Subscribe(ctx, TopicInvalidated)
	require.NoError(t, err)

	publisher := NewWatermillPublisher(pubSub)

	require.NoError(t, publisher.PublishAuthorized(ctx, "sandbox"))
	require.NoError(t, publisher.PublishInvalidated(ctx, "sandbox", "api call returned 401"))

	select {
	case msg := <-authorized:
		var event AuthorizedEvent
		require.NoError(t, json.Unmarshal(msg.Payload, &event))
		assert.Equal(t, "sandbox", event.Environment)
		assert.False(t, event.At.IsZero())
		msg.Ack()
	case <-ctx.Done():
		t.Fatal("no authorized event received")
	}

	select {
	case msg := <-invalidated:
		var event InvalidatedEvent
		require.NoError(t, json.Unmarshal(msg.Payload, &event))
		assert.Equal(t, "api call returned 401", event.Reason)
		msg.Ack()
	case <-ctx.Done():
		t.Fatal("no invalidated event received")
	}
}
