package integrationtests

import (
	"context"
	"testing"

	"license-backend/internal/events"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/rabbitmq"
	"github.com/testcontainers/testcontainers-go/modules/redis"
)

func setupRabbitMQContainer(t *testing.T, ctx context.Context) (events.Publisher, events.Receiver) {
	rabbitmqContainer, err := rabbitmq.Run(ctx, "rabbitmq:3.12.11-management-alpine")
	require.NoError(t, err, "Failed to start RabbitMQ container")

	t.Cleanup(func() {
		err := rabbitmqContainer.Terminate(context.Background())
		require.NoError(t, err, "Failed to terminate RabbitMQ container")
	})

	connStr, err := rabbitmqContainer.AmqpURL(ctx)
	require.NoError(t, err, "Failed to get RabbitMQ AMQP URL")

	publisher, err := events.NewRabbitMQPublisher(connStr)
	require.NoError(t, err, "Failed to create publisher")
	t.Cleanup(publisher.Close)

	receiver, err := events.NewRabbitMQReceiver(connStr)
	require.NoError(t, err, "Failed to create receiver")
	t.Cleanup(receiver.Close)

	return publisher, receiver
}

func setupRedisContainer(t *testing.T, ctx context.Context) string {
	redisContainer, err := redis.Run(ctx, "redis:7-alpine")
	require.NoError(t, err, "Failed to start Redis container")

	t.Cleanup(func() {
		err := redisContainer.Terminate(context.Background())
		require.NoError(t, err, "Failed to terminate Redis container")
	})

	connStr, err := redisContainer.ConnectionString(ctx)
	require.NoError(t, err, "Failed to get Redis connection string")

	return connStr
}
