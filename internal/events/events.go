package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

const (
	StatusQueue     = "license_status_events"
	RetryDelay      = 5 * time.Second
	MaxConnectRetry = 5
)

// StatusChangePayload describes one activation transition: a license turning
// active or inactive, or its expiry moving. Consumers (the POS frontend,
// reporting) react without polling the license endpoint.
type StatusChangePayload struct {
	EventId   uuid.UUID  `json:"event_id"`
	Timestamp time.Time  `json:"timestamp"`
	Activated bool       `json:"activated"`
	Source    string     `json:"source"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	Message   string     `json:"message,omitempty"`
}

type Event interface {
	Type() string

	Payload() []byte

	Ack() error

	Nack() error

	Reject() error
}

type Publisher interface {
	PublishStatusChange(ctx context.Context, payload StatusChangePayload) error

	Close()
}

type Receiver interface {
	Events() <-chan Event

	Close()
}
