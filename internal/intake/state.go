package intake

import (
	"errors"
	"fmt"
)

// State is the client-side lifecycle state of a form
type State string

const (
	StateIdle       State = "idle"
	StateValidating State = "validating"
	StateSubmitting State = "submitting"
	StateSucceeded  State = "succeeded"
	StateFailed     State = "failed"
)

var (
	// ErrBusy is returned when a submission is requested while another is in flight
	ErrBusy = errors.New("submission already in progress")
	// ErrNotInitialized is returned by Submit before Init has run
	ErrNotInitialized = errors.New("form not initialized")
	// ErrInvalidTransition indicates a bug in the guard's state handling
	ErrInvalidTransition = errors.New("invalid state transition")
)

var transitions = map[State][]State{
	StateIdle:       {StateValidating},
	StateValidating: {StateIdle, StateSubmitting},
	StateSubmitting: {StateSucceeded, StateFailed},
	StateSucceeded:  {StateIdle},
	StateFailed:     {StateIdle},
}

// machine tracks the current state. Callers hold the guard mutex.
type machine struct {
	state State
}

func (m *machine) to(next State) error {
	for _, allowed := range transitions[m.state] {
		if allowed == next {
			m.state = next
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, m.state, next)
}

// beginValidation: Idle -> Validating
func (m *machine) beginValidation() error {
	if m.state != StateIdle {
		return ErrBusy
	}
	return m.to(StateValidating)
}

// rejectLocally: Validating -> Idle
func (m *machine) rejectLocally() error { return m.to(StateIdle) }

// beginSubmitting: Validating -> Submitting
func (m *machine) beginSubmitting() error { return m.to(StateSubmitting) }

// succeed: Submitting -> Succeeded
func (m *machine) succeed() error { return m.to(StateSucceeded) }

// fail: Submitting -> Failed
func (m *machine) fail() error { return m.to(StateFailed) }

// settle: Succeeded|Failed -> Idle
func (m *machine) settle() error { return m.to(StateIdle) }
