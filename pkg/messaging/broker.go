package messaging

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Broker defines the interface for message brokers
type Broker interface {
	Publish(ctx context.Context, channel string, message interface{}) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	Close() error
}

// Publisher emits communication events.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

const (
	EventMessagePublished = "message.published"
	EventMessageScheduled = "message.scheduled"
)

// Event is the payload written to the communication events channel.
type Event struct {
	Type            string     `json:"type"`
	MessageID       uuid.UUID  `json:"message_id"`
	Status          string     `json:"status"`
	TotalRecipients int        `json:"total_recipients"`
	Sent            int        `json:"sent,omitempty"`
	Failed          int        `json:"failed,omitempty"`
	ScheduledAt     *time.Time `json:"scheduled_at,omitempty"`
	OccurredAt      time.Time  `json:"occurred_at"`
}
