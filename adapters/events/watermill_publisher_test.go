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

func TestPublishLogout(t *testing.T) {
	pubsub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	defer pubsub.Close()

	ctx := context.Background()
	messages, err := pubsub.Subscribe(ctx, LogoutTopic)
	require.NoError(t, err)

	publisher := NewWatermillPublisher(pubsub)
	require.NoError(t, publisher.PublishLogout(ctx, "0xabc", "session-1"))

	select {
	case msg := <-messages:
		var event AuthEvent
		require.NoError(t, json.Unmarshal(msg.Payload, &event))
		assert.Equal(t, "0xabc", event.Address)
		assert.Equal(t, "session-1", event.SessionID)
		msg.Ack()
	case <-time.After(time.Second):
		t.Fatal("no logout event received")
	}
}

func TestPublishLogin(t *testing.T) {
	pubsub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	defer pubsub.Close()

	ctx := context.Background()
	messages, err := pubsub.Subscribe(ctx, LoginTopic)
	require.NoError(t, err)

	publisher := NewWatermillPublisher(pubsub)
	require.NoError(t, publisher.PublishLogin(ctx, "0xdef", "session-2"))

	select {
	case msg := <-messages:
		var event AuthEvent
		require.NoError(t, json.Unmarshal(msg.Payload, &event))
		assert.Equal(t, "0xdef", event.Address)
		msg.Ack()
	case <-time.After(time.Second):
		t.Fatal("no login event received")
	}
}
