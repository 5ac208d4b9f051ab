package queue

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EventType names a completion event
type EventType string

const (
	// EventContactSubmitted is published after a submission was delivered
	EventContactSubmitted EventType = "contact.submitted"

	// SourceContactForm identifies the public contact form
	SourceContactForm = "contact-form"
)

// ErrInvalidEvent is returned when a decoded event is missing required fields
var ErrInvalidEvent = errors.New("invalid event")

// Event is a completion notification. It deliberately carries no submission
// content: submissions are relayed, never stored.
type Event struct {
	ID         uuid.UUID `json:"id"`
	Type       EventType `json:"type"`
	Source     string    `json:"source"`
	RequestID  string    `json:"request_id,omitempty"`
	Recipient  string    `json:"recipient,omitempty"` // primary or backup
	Attempts   int       `json:"attempts,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// NewEvent creates a contact.submitted event
func NewEvent(source string, occurredAt time.Time) *Event {
	if source == "" {
		source = SourceContactForm
	}
	return &Event{
		ID:         uuid.New(),
		Type:       EventContactSubmitted,
		Source:     source,
		OccurredAt: occurredAt.UTC(),
	}
}

// RoutingKey returns the routing key the event is published under
func (e *Event) RoutingKey() string {
	return string(e.Type)
}

// Validate checks the fields consumers rely on
func (e *Event) Validate() error {
	switch {
	case e.ID == uuid.Nil:
		return fmt.Errorf("%w: missing id", ErrInvalidEvent)
	case e.Type == "":
		return fmt.Errorf("%w: missing type", ErrInvalidEvent)
	case e.OccurredAt.IsZero():
		return fmt.Errorf("%w: missing occurred_at", ErrInvalidEvent)
	}
	return nil
}

// DecodeEvent parses and validates an event body
func DecodeEvent(body []byte) (*Event, error) {
	var e Event
	if err := json.Unmarshal(body, &e); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}
	if err := e.Validate(); err != nil {
		return nil, err
	}
	return &e, nil
}
