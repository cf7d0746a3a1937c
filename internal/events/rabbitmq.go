package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

func connectToRabbitMQ(url string) (*amqp.Connection, error) {
	var conn *amqp.Connection
	var err error
	for i := 0; i < MaxConnectRetry; i++ {
		conn, err = amqp.Dial(url)
		if err == nil {
			slog.Info("connected to rabbitmq")
			return conn, nil
		}
		slog.Warn("failed to connect to rabbitmq", "attempt", i+1, "max_attempts", MaxConnectRetry, "error", err)
		time.Sleep(RetryDelay)
	}
	slog.Error("failed to connect to rabbitmq", "attempts", MaxConnectRetry, "error", err)
	return nil, fmt.Errorf("failed to connect after %d attempts: %w", MaxConnectRetry, err)
}

type RabbitMQPublisher struct {
	connLock   sync.RWMutex
	conn       *amqp.Connection
	channel    *amqp.Channel
	url        string
	destructor sync.Once
}

func NewRabbitMQPublisher(rabbitMQURL string) (*RabbitMQPublisher, error) {
	p := &RabbitMQPublisher{url: rabbitMQURL}
	if err := p.connect(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *RabbitMQPublisher) connect() error {
	var err error
	p.conn, err = connectToRabbitMQ(p.url)
	if err != nil {
		return err
	}

	p.channel, err = p.conn.Channel()
	if err != nil {
		p.conn.Close()
		slog.Error("failed to open rabbitmq channel", "error", err)
		return fmt.Errorf("failed to open rabbitmq channel: %w", err)
	}

	if _, err := p.channel.QueueDeclare(StatusQueue, true, false, false, false, nil); err != nil {
		p.conn.Close()
		return fmt.Errorf("failed to declare rabbitmq queue %s: %w", StatusQueue, err)
	}

	slog.Info("rabbitmq channel opened and queue declared")

	// Handle reconnects in background
	go p.handleReconnect()

	return nil
}

func (p *RabbitMQPublisher) handleReconnect() {
	notifyClose := make(chan *amqp.Error)
	p.channel.NotifyClose(notifyClose)

	err, ok := <-notifyClose
	if !ok { // channel is just closed on graceful close
		slog.Info("rabbitmq connection closed", "error", err)
		return
	}

	slog.Warn("rabbitmq connection closed, attempting to reconnect", "error", err)

	p.connLock.Lock() // This is to ensure that the connection is not used while we are reconnecting
	defer p.connLock.Unlock()

	p.channel = nil
	p.conn = nil
	for {
		if p.connect() == nil {
			slog.Info("successfully reconnected to rabbitmq")
			return
		}
		time.Sleep(RetryDelay * 10)
	}
}

func (p *RabbitMQPublisher) PublishStatusChange(ctx context.Context, payload StatusChangePayload) error {
	p.connLock.RLock()
	defer p.connLock.RUnlock()

	if p.channel == nil || p.channel.IsClosed() {
		return fmt.Errorf("rabbitmq connection is closed")
	}

	body, err := json.Marshal(payload)
	if err != nil {
		slog.Error("failed to marshal status change payload", "error", err)
		return fmt.Errorf("failed to marshal status change payload: %w", err)
	}

	err = p.channel.PublishWithContext(ctx,
		"",          // exchange (default)
		StatusQueue, // routing key (queue name)
		false,       // mandatory
		false,       // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
		})

	if err != nil {
		slog.Error("failed to publish status change, potential connection issue", "error", err)
		return fmt.Errorf("failed to publish status change: %w", err)
	}

	return nil
}

func (p *RabbitMQPublisher) Close() {
	p.destructor.Do(func() {
		if err := p.conn.Close(); err != nil {
			slog.Error("error closing rabbitmq connection", "error", err)
		}
	})
}

type rabbitMQEvent struct {
	d amqp.Delivery
}

func (e *rabbitMQEvent) Type() string {
	return e.d.RoutingKey
}

func (e *rabbitMQEvent) Payload() []byte {
	return e.d.Body
}

func (e *rabbitMQEvent) Ack() error {
	return e.d.Ack(false)
}

func (e *rabbitMQEvent) Nack() error {
	return e.d.Nack(false, false)
}

func (e *rabbitMQEvent) Reject() error {
	return e.d.Reject(false)
}

type RabbitMQReceiver struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	events  chan Event
}

func NewRabbitMQReceiver(rabbitMQURL string) (*RabbitMQReceiver, error) {
	conn, err := connectToRabbitMQ(rabbitMQURL)
	if err != nil {
		return nil, err
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open rabbitmq channel: %w", err)
	}

	if _, err := channel.QueueDeclare(StatusQueue, true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to declare rabbitmq queue %s: %w", StatusQueue, err)
	}

	deliveries, err := channel.Consume(StatusQueue, "license-events-receiver", false, false, false, false, nil)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to consume from %s: %w", StatusQueue, err)
	}

	receiver := &RabbitMQReceiver{conn: conn, channel: channel, events: make(chan Event)}

	go func() {
		for d := range deliveries {
			receiver.events <- &rabbitMQEvent{d: d}
		}
		close(receiver.events)
	}()

	return receiver, nil
}

func (r *RabbitMQReceiver) Events() <-chan Event {
	return r.events
}

func (r *RabbitMQReceiver) Close() {
	if err := r.conn.Close(); err != nil {
		slog.Error("error closing rabbitmq connection", "error", err)
	}
}
