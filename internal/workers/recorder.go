package workers

import (
	"context"
	"fmt"
	"sync"
	"time"

	logpkg "github.com/benvon/contact-relay/internal/logger"
	"github.com/benvon/contact-relay/internal/mailer"
	"github.com/benvon/contact-relay/internal/queue"
	"go.uber.org/zap"
)

// Tally is the number of delivered submissions seen on one UTC day
type Tally struct {
	Day     string
	Total   int
	Backup  int
	Retried int
}

// EventRecorder consumes completion events and keeps daily tallies. It is the
// analytics sink for the contact pipeline; no submission content ever
// reaches it.
type EventRecorder struct {
	logger *zap.Logger

	mu      sync.Mutex
	tallies map[string]*Tally
	seen    map[string]string // event id -> day
}

// NewEventRecorder creates a recorder
func NewEventRecorder(logger *zap.Logger) *EventRecorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventRecorder{
		logger:  logger,
		tallies: map[string]*Tally{},
		seen:    map[string]string{},
	}
}

// ProcessMessage records one event and settles the message. Malformed and
// unknown events are dead-lettered.
func (r *EventRecorder) ProcessMessage(ctx context.Context, msg queue.MessageInterface) error {
	event := msg.GetEvent()
	if event == nil {
		if nackErr := msg.Nack(false); nackErr != nil {
			r.logger.Warn("failed_to_nack_empty_message", zap.Error(nackErr))
		}
		return fmt.Errorf("%w: empty message", queue.ErrInvalidEvent)
	}
	if err := event.Validate(); err != nil {
		if nackErr := msg.Nack(false); nackErr != nil {
			r.logger.Warn("failed_to_nack_invalid_event", zap.Error(nackErr))
		}
		return err
	}

	switch event.Type {
	case queue.EventContactSubmitted:
		duplicate := r.record(event)
		r.logger.Info("contact_event_recorded",
			zap.String("event_id", event.ID.String()),
			zap.String("source", logpkg.SanitizeString(event.Source, logpkg.MaxIdentityLength)),
			zap.String("request_id", logpkg.SanitizeString(event.RequestID, logpkg.MaxIdentityLength)),
			zap.String("recipient", event.Recipient),
			zap.Int("attempts", event.Attempts),
			zap.Time("occurred_at", event.OccurredAt),
			zap.Bool("duplicate", duplicate),
		)
		if ackErr := msg.Ack(); ackErr != nil {
			return fmt.Errorf("failed to ack event: %w", ackErr)
		}
		return nil

	default:
		if nackErr := msg.Nack(false); nackErr != nil {
			r.logger.Warn("failed_to_nack_unknown_event", zap.Error(nackErr))
		}
		return fmt.Errorf("unknown event type: %s", event.Type)
	}
}

// record adds event to its day's tally. Redelivered events are counted once.
func (r *EventRecorder) record(event *queue.Event) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := event.ID.String()
	if _, ok := r.seen[id]; ok {
		return true
	}
	day := event.OccurredAt.UTC().Format(time.DateOnly)
	r.seen[id] = day

	tally, ok := r.tallies[day]
	if !ok {
		tally = &Tally{Day: day}
		r.tallies[day] = tally
	}
	tally.Total++
	if event.Recipient == string(mailer.RecipientBackup) {
		tally.Backup++
	}
	if event.Attempts > 1 {
		tally.Retried++
	}
	return false
}

// Tally returns the counts for day (YYYY-MM-DD)
func (r *EventRecorder) Tally(day string) Tally {
	r.mu.Lock()
	defer r.mu.Unlock()
	if tally, ok := r.tallies[day]; ok {
		return *tally
	}
	return Tally{Day: day}
}

// Forget drops tallies and dedupe state for days before cutoff
func (r *EventRecorder) Forget(cutoff time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	limit := cutoff.UTC().Format(time.DateOnly)
	dropped := 0
	for day := range r.tallies {
		if day < limit {
			delete(r.tallies, day)
			dropped++
		}
	}
	for id, day := range r.seen {
		if day < limit {
			delete(r.seen, id)
		}
	}
	return dropped
}

// Run consumes from consumer until ctx is cancelled or the delivery channel
// closes, in which case it returns queue.ErrConsumerClosed. Processing errors
// are logged and do not stop the loop.
func (r *EventRecorder) Run(ctx context.Context, consumer queue.Consumer, prefetch int) error {
	msgChan, errChan, err := consumer.Consume(ctx, prefetch)
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err, ok := <-errChan:
			if !ok {
				errChan = nil
				continue
			}
			r.logger.Error("queue_error", zap.String("error", logpkg.SanitizeError(err)))
		case msg, ok := <-msgChan:
			if !ok {
				if err := ctx.Err(); err != nil {
					return err
				}
				r.logger.Error("message_channel_closed")
				return queue.ErrConsumerClosed
			}
			if err := r.ProcessMessage(ctx, msg); err != nil {
				r.logger.Error("failed_to_process_event", zap.String("error", logpkg.SanitizeError(err)))
			}
		}
	}
}
