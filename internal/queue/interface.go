package queue

import (
	"context"
	"time"
)

// Publisher publishes completion events
type Publisher interface {
	Publish(ctx context.Context, event *Event) error
	Close() error
}

// MessageInterface defines the interface for consumed messages
// This enables better testability by allowing mock implementations
type MessageInterface interface {
	Ack() error
	Nack(requeue bool) error
	GetEvent() *Event
}

// Consumer delivers events to the worker
type Consumer interface {
	// Consume returns a channel of messages from the queue
	// The caller is responsible for acknowledging each message
	// Prefetch controls how many unacknowledged messages each consumer can hold
	// Returns a channel that will be closed when the context is cancelled or an error occurs
	Consume(ctx context.Context, prefetchCount int) (<-chan MessageInterface, <-chan error, error)

	// HealthCheck verifies the queue connection is healthy
	HealthCheck(ctx context.Context) error

	Close() error
}

// DLQPurger drops dead-lettered messages older than retention
type DLQPurger interface {
	PurgeOlderThan(ctx context.Context, retention time.Duration) (int, error)
}
