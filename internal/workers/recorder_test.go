package workers

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/benvon/contact-relay/internal/queue"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

// mockMessage is a mock implementation of MessageInterface
type mockMessage struct {
	event    *queue.Event
	acked    int
	nacked   int
	requeued bool
	ackErr   error
}

func (m *mockMessage) Ack() error {
	m.acked++
	return m.ackErr
}

func (m *mockMessage) Nack(requeue bool) error {
	m.nacked++
	m.requeued = requeue
	return nil
}

func (m *mockMessage) GetEvent() *queue.Event {
	return m.event
}

var _ queue.MessageInterface = (*mockMessage)(nil)

// mockConsumer feeds a fixed set of messages and then closes
type mockConsumer struct {
	messages []queue.MessageInterface
	errs     []error
}

func (c *mockConsumer) Consume(ctx context.Context, prefetchCount int) (<-chan queue.MessageInterface, <-chan error, error) {
	msgChan := make(chan queue.MessageInterface, len(c.messages))
	errChan := make(chan error, len(c.errs))
	for _, m := range c.messages {
		msgChan <- m
	}
	for _, err := range c.errs {
		errChan <- err
	}
	close(msgChan)
	return msgChan, errChan, nil
}

func (c *mockConsumer) HealthCheck(ctx context.Context) error { return nil }
func (c *mockConsumer) Close() error                          { return nil }

var _ queue.Consumer = (*mockConsumer)(nil)

var testDay = time.Date(2024, 5, 17, 9, 30, 0, 0, time.UTC)

func newEvent(recipient string, attempts int) *queue.Event {
	e := queue.NewEvent(queue.SourceContactForm, testDay)
	e.Recipient = recipient
	e.Attempts = attempts
	return e
}

func TestEventRecorder_ProcessMessage(t *testing.T) {
	t.Parallel()

	unknown := newEvent("primary", 1)
	unknown.Type = "contact.deleted"
	invalid := newEvent("primary", 1)
	invalid.ID = uuid.Nil

	tests := []struct {
		name       string
		event      *queue.Event
		wantErr    bool
		wantAcked  int
		wantNacked int
		wantTotal  int
	}{
		{name: "delivered to primary", event: newEvent("primary", 1), wantAcked: 1, wantTotal: 1},
		{name: "unknown type dead-lettered", event: unknown, wantErr: true, wantNacked: 1},
		{name: "invalid event dead-lettered", event: invalid, wantErr: true, wantNacked: 1},
		{name: "empty message dead-lettered", event: nil, wantErr: true, wantNacked: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			r := NewEventRecorder(zap.NewNop())
			msg := &mockMessage{event: tt.event}

			err := r.ProcessMessage(context.Background(), msg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ProcessMessage() error = %v, wantErr %v", err, tt.wantErr)
			}
			if msg.acked != tt.wantAcked || msg.nacked != tt.wantNacked {
				t.Errorf("acked=%d nacked=%d, want %d/%d", msg.acked, msg.nacked, tt.wantAcked, tt.wantNacked)
			}
			if msg.requeued {
				t.Error("message was requeued; failures must go to the dead letter queue")
			}
			if got := r.Tally(testDay.Format(time.DateOnly)).Total; got != tt.wantTotal {
				t.Errorf("Total = %d, want %d", got, tt.wantTotal)
			}
		})
	}
}

func TestEventRecorder_Tally(t *testing.T) {
	t.Parallel()
	r := NewEventRecorder(nil)

	first := newEvent("primary", 1)
	backup := newEvent("backup", 2)
	for _, e := range []*queue.Event{first, backup, first} {
		if err := r.ProcessMessage(context.Background(), &mockMessage{event: e}); err != nil {
			t.Fatalf("ProcessMessage() error = %v", err)
		}
	}

	got := r.Tally("2024-05-17")
	want := Tally{Day: "2024-05-17", Total: 2, Backup: 1, Retried: 1}
	if got != want {
		t.Errorf("Tally() = %+v, want %+v", got, want)
	}

	if dropped := r.Forget(testDay.AddDate(0, 0, 1)); dropped != 1 {
		t.Errorf("Forget() dropped %d days, want 1", dropped)
	}
	if got := r.Tally("2024-05-17").Total; got != 0 {
		t.Errorf("Total after Forget = %d, want 0", got)
	}
}

func TestEventRecorder_AckFailure(t *testing.T) {
	t.Parallel()
	r := NewEventRecorder(nil)

	msg := &mockMessage{event: newEvent("primary", 1), ackErr: errors.New("channel closed")}
	if err := r.ProcessMessage(context.Background(), msg); err == nil {
		t.Error("expected error when ack fails")
	}
}

func TestEventRecorder_Run(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zap.InfoLevel)
	r := NewEventRecorder(zap.New(core))

	good := &mockMessage{event: newEvent("primary", 1)}
	bad := &mockMessage{event: nil}
	consumer := &mockConsumer{messages: []queue.MessageInterface{good, bad}}

	if err := r.Run(context.Background(), consumer, 1); !errors.Is(err, queue.ErrConsumerClosed) {
		t.Fatalf("Run() error = %v, want %v", err, queue.ErrConsumerClosed)
	}
	if good.acked != 1 || bad.nacked != 1 {
		t.Errorf("good acked=%d, bad nacked=%d", good.acked, bad.nacked)
	}
	if logs.FilterMessage("contact_event_recorded").Len() != 1 {
		t.Error("expected one contact_event_recorded entry")
	}
	if logs.FilterMessage("failed_to_process_event").Len() != 1 {
		t.Error("expected one failed_to_process_event entry")
	}
}

func TestEventRecorder_RunCancelled(t *testing.T) {
	t.Parallel()

	r := NewEventRecorder(zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	consumer := &mockConsumer{messages: []queue.MessageInterface{&mockMessage{event: newEvent("primary", 1)}}}
	if err := r.Run(ctx, consumer, 1); !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() error = %v, want context.Canceled", err)
	}
}

func TestEventRecorder_LogsSanitizedFields(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zap.InfoLevel)
	r := NewEventRecorder(zap.New(core))

	e := newEvent("primary", 1)
	e.RequestID = "req-42\nlevel=error forged"
	e.Source = "contact-form\r"
	if err := r.ProcessMessage(context.Background(), &mockMessage{event: e}); err != nil {
		t.Fatalf("ProcessMessage() error = %v", err)
	}

	entries := logs.FilterMessage("contact_event_recorded").All()
	if len(entries) != 1 {
		t.Fatalf("got %d contact_event_recorded entries, want 1", len(entries))
	}
	fields := entries[0].ContextMap()
	if got := fields["request_id"]; got != "req-42level=error forged" {
		t.Errorf("request_id = %q, want control characters stripped", got)
	}
	if got := fields["source"]; got != "contact-form" {
		t.Errorf("source = %q, want %q", got, "contact-form")
	}
	if got := fields["duplicate"]; got != false {
		t.Errorf("duplicate = %v, want false", got)
	}
}
