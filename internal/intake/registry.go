package intake

import (
	"context"
	"fmt"
	"sync"
)

// Binding pairs a form identifier with its view
type Binding struct {
	ID   string
	View View
}

// Registry binds forms to guards. Setup may run any number of times, for
// example after every page transition; each form is bound exactly once.
type Registry struct {
	submitter Submitter
	opts      []Option

	mu       sync.Mutex
	guards   map[string]*Guard
	handlers map[string][]func(context.Context) (Outcome, error)
}

// NewRegistry creates a registry whose guards share submitter and opts
func NewRegistry(submitter Submitter, opts ...Option) *Registry {
	return &Registry{
		submitter: submitter,
		opts:      opts,
		guards:    map[string]*Guard{},
		handlers:  map[string][]func(context.Context) (Outcome, error){},
	}
}

// Setup initialises every binding not seen before and returns the guards in
// binding order.
func (r *Registry) Setup(bindings ...Binding) []*Guard {
	r.mu.Lock()
	defer r.mu.Unlock()

	guards := make([]*Guard, 0, len(bindings))
	for _, b := range bindings {
		g, ok := r.guards[b.ID]
		if !ok {
			g = NewGuard(b.View, r.submitter, r.opts...)
			r.guards[b.ID] = g
		}
		if g.Init() {
			r.handlers[b.ID] = append(r.handlers[b.ID], g.Submit)
		}
		guards = append(guards, g)
	}
	return guards
}

// Guard returns the guard bound to id
func (r *Registry) Guard(id string) (*Guard, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, ok := r.guards[id]
	return g, ok
}

// Click dispatches one submit action to every handler bound to id and
// returns the last outcome.
func (r *Registry) Click(ctx context.Context, id string) (Outcome, error) {
	r.mu.Lock()
	handlers := append([]func(context.Context) (Outcome, error){}, r.handlers[id]...)
	r.mu.Unlock()

	if len(handlers) == 0 {
		return Outcome{}, fmt.Errorf("form %q: %w", id, ErrNotInitialized)
	}

	var (
		outcome Outcome
		err     error
	)
	for _, handle := range handlers {
		outcome, err = handle(ctx)
	}
	return outcome, err
}
