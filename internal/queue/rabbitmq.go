package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	// DefaultExchangeName is the topic exchange completion events are published to
	DefaultExchangeName = "contact_events"
	// DefaultQueueName is the queue the worker consumes
	DefaultQueueName = "contact_events_log"
	// DefaultDLQName receives events the worker could not handle
	DefaultDLQName = "contact_events_dlq"

	dlqRoutingKey = "dlq"
)

// ErrConsumerClosed reports that the broker closed the delivery channel
// while the consumer was still wanted
var ErrConsumerClosed = errors.New("delivery channel closed")

// RabbitMQBus publishes and consumes completion events over RabbitMQ
type RabbitMQBus struct {
	conn         *amqp.Connection
	mu           sync.Mutex // guards channel; amqp channels are not safe for concurrent publish
	channel      *amqp.Channel
	queueName    string
	dlqName      string
	exchangeName string
}

// NewRabbitMQBus connects to amqpURL and declares the exchange and queues
func NewRabbitMQBus(amqpURL string) (*RabbitMQBus, error) {
	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	bus := &RabbitMQBus{
		conn:         conn,
		channel:      ch,
		queueName:    DefaultQueueName,
		dlqName:      DefaultDLQName,
		exchangeName: DefaultExchangeName,
	}

	if err := bus.setup(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to setup queues: %w", err)
	}

	return bus, nil
}

// setup configures the exchange, the event queue and its dead letter queue
func (q *RabbitMQBus) setup() error {
	err := q.channel.ExchangeDeclare(
		q.exchangeName,
		"topic",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to declare exchange: %w", err)
	}

	if _, err = q.channel.QueueDeclare(q.dlqName, true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare DLQ: %w", err)
	}
	if err = q.channel.QueueBind(q.dlqName, dlqRoutingKey, q.exchangeName, false, nil); err != nil {
		return fmt.Errorf("failed to bind DLQ: %w", err)
	}

	queueArgs := amqp.Table{
		"x-dead-letter-exchange":    q.exchangeName,
		"x-dead-letter-routing-key": dlqRoutingKey,
	}
	if _, err = q.channel.QueueDeclare(q.queueName, true, false, false, false, queueArgs); err != nil {
		return fmt.Errorf("failed to declare queue: %w", err)
	}
	if err = q.channel.QueueBind(q.queueName, string(EventContactSubmitted), q.exchangeName, false, nil); err != nil {
		return fmt.Errorf("failed to bind queue to exchange: %w", err)
	}

	return nil
}

// Publish implements Publisher
func (q *RabbitMQBus) Publish(ctx context.Context, event *Event) error {
	if err := event.Validate(); err != nil {
		return err
	}
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	publishing := amqp.Publishing{
		ContentType:   "application/json",
		Body:          body,
		DeliveryMode:  amqp.Persistent,
		MessageId:     event.ID.String(),
		CorrelationId: event.RequestID,
		Timestamp:     event.OccurredAt,
		Type:          string(event.Type),
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if err := q.channel.PublishWithContext(ctx, q.exchangeName, event.RoutingKey(), false, false, publishing); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

// Consume implements Consumer using async delivery on a dedicated channel
func (q *RabbitMQBus) Consume(ctx context.Context, prefetchCount int) (<-chan MessageInterface, <-chan error, error) {
	if prefetchCount <= 0 {
		prefetchCount = 1
	}

	consumeCh, err := q.conn.Channel()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create consumer channel: %w", err)
	}

	if err := consumeCh.Qos(prefetchCount, 0, false); err != nil {
		_ = consumeCh.Close()
		return nil, nil, fmt.Errorf("failed to set QoS: %w", err)
	}

	deliveries, err := consumeCh.Consume(
		q.queueName,
		"",    // consumer tag (empty = auto-generate)
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		_ = consumeCh.Close()
		return nil, nil, fmt.Errorf("failed to start consuming: %w", err)
	}

	msgChan := make(chan MessageInterface, prefetchCount)
	errChan := make(chan error, 1)

	go func() {
		defer func() { _ = consumeCh.Close() }()
		forwardDeliveries(ctx, deliveries, consumeCh, msgChan, errChan)
	}()

	return msgChan, errChan, nil
}

// forwardDeliveries decodes deliveries onto msgChan until ctx ends or the
// broker closes the delivery channel. It owns and closes msgChan and errChan.
func forwardDeliveries(ctx context.Context, deliveries <-chan amqp.Delivery, ch *amqp.Channel, msgChan chan<- MessageInterface, errChan chan<- error) {
	defer close(msgChan)
	defer close(errChan)

	for {
		select {
		case <-ctx.Done():
			return
		case delivery, ok := <-deliveries:
			if !ok {
				// the reader may be gone already; never block on the report
				select {
				case errChan <- ErrConsumerClosed:
				default:
				}
				return
			}

			event, err := DecodeEvent(delivery.Body)
			if err != nil {
				// undecodable, dead-letter it
				_ = delivery.Nack(false, false)
				select {
				case errChan <- err:
				default:
				}
				continue
			}

			msg := &Message{Event: event, DeliveryTag: delivery.DeliveryTag, Channel: ch}
			select {
			case <-ctx.Done():
				_ = delivery.Nack(false, true)
				return
			case msgChan <- msg:
			}
		}
	}
}

// PurgeOlderThan drops dead-lettered events older than retention. The DLQ is
// FIFO, so it stops at the first message young enough to keep.
func (q *RabbitMQBus) PurgeOlderThan(ctx context.Context, retention time.Duration) (int, error) {
	cutoff := time.Now().Add(-retention)

	q.mu.Lock()
	defer q.mu.Unlock()

	purged := 0
	for {
		if err := ctx.Err(); err != nil {
			return purged, err
		}
		msg, ok, err := q.channel.Get(q.dlqName, false)
		if err != nil {
			return purged, fmt.Errorf("failed to get DLQ message: %w", err)
		}
		if !ok {
			return purged, nil
		}
		if msg.Timestamp.IsZero() || msg.Timestamp.Before(cutoff) {
			if err := msg.Ack(false); err != nil {
				return purged, fmt.Errorf("failed to ack DLQ message: %w", err)
			}
			purged++
			continue
		}
		if err := msg.Nack(false, true); err != nil {
			return purged, fmt.Errorf("failed to requeue DLQ message: %w", err)
		}
		return purged, nil
	}
}

// HealthCheck verifies the connection and channel are open
func (q *RabbitMQBus) HealthCheck(ctx context.Context) error {
	if q.conn == nil || q.conn.IsClosed() {
		return errors.New("rabbitmq connection closed")
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.channel == nil || q.channel.IsClosed() {
		return errors.New("rabbitmq channel closed")
	}
	return nil
}

// Close closes the channel and connection
func (q *RabbitMQBus) Close() error {
	var err error
	q.mu.Lock()
	if q.channel != nil {
		err = q.channel.Close()
	}
	q.mu.Unlock()
	if q.conn != nil {
		if closeErr := q.conn.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}
	return err
}

// Message wraps an Event with its RabbitMQ delivery information
type Message struct {
	Event       *Event
	DeliveryTag uint64
	Channel     *amqp.Channel
}

// Ack acknowledges the message
func (m *Message) Ack() error {
	return m.Channel.Ack(m.DeliveryTag, false)
}

// Nack negatively acknowledges the message
func (m *Message) Nack(requeue bool) error {
	return m.Channel.Nack(m.DeliveryTag, false, requeue)
}

// GetEvent returns the decoded event
func (m *Message) GetEvent() *Event {
	return m.Event
}
