package integrationtests

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"license-backend/internal/events"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRabbitMQ(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	publisher, receiver := setupRabbitMQContainer(t, ctx)

	t.Run("Publish and Receive StatusChange", func(t *testing.T) {
		expiresAt := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
		payload := events.StatusChangePayload{
			EventId:   uuid.New(),
			Timestamp: time.Now().UTC().Truncate(time.Millisecond),
			Activated: true,
			Source:    "remote",
			ExpiresAt: &expiresAt,
		}
		err := publisher.PublishStatusChange(ctx, payload)
		require.NoError(t, err)

		select {
		case event := <-receiver.Events():
			assert.Equal(t, events.StatusQueue, event.Type())

			var received events.StatusChangePayload
			err := json.Unmarshal(event.Payload(), &received)
			require.NoError(t, err)
			assert.Equal(t, payload.EventId, received.EventId)
			assert.True(t, received.Activated)
			require.NotNil(t, received.ExpiresAt)
			assert.True(t, expiresAt.Equal(*received.ExpiresAt))

			err = event.Ack()
			require.NoError(t, err)
		case <-time.After(4 * time.Second):
			t.Fatal("Timed out waiting for event")
		}
	})

	t.Run("Events are ordered", func(t *testing.T) {
		first := events.StatusChangePayload{EventId: uuid.New(), Activated: false, Source: "remote"}
		second := events.StatusChangePayload{EventId: uuid.New(), Activated: true, Source: "remote"}

		require.NoError(t, publisher.PublishStatusChange(ctx, first))
		require.NoError(t, publisher.PublishStatusChange(ctx, second))

		for _, expected := range []events.StatusChangePayload{first, second} {
			select {
			case event := <-receiver.Events():
				var received events.StatusChangePayload
				require.NoError(t, json.Unmarshal(event.Payload(), &received))
				assert.Equal(t, expected.EventId, received.EventId)
				require.NoError(t, event.Ack())
			case <-time.After(4 * time.Second):
				t.Fatal("Timed out waiting for event")
			}
		}
	})
}
