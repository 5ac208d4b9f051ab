// Package intake implements the client side of the contact form: local
// validation, anti-bot signals, the submission round trip and the status
// shown to the visitor. The guard renders through a View so it can drive a
// terminal client as well as tests.
package intake

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	logpkg "github.com/benvon/contact-relay/internal/logger"
	"github.com/benvon/contact-relay/internal/models"
	"github.com/benvon/contact-relay/internal/validation"
	"go.uber.org/zap"
)

// Fields collected by the form beyond the validated ones.
const (
	FieldCompany  models.FieldKey = "company"
	FieldBudget   models.FieldKey = "budget"
	FieldHoneypot models.FieldKey = "honeypot"
)

// SourceContactForm tags completions raised by the guard
const SourceContactForm = "contact-form"

// AnalyticsSubmitSuccess is tracked after every delivered submission
const AnalyticsSubmitSuccess = "contact_form_submit_success"

// SuccessDisplay is how long the success status stays before reverting
const SuccessDisplay = 6 * time.Second

// Texts shown to the visitor.
const (
	TextDefault      = "We usually reply within the same business day."
	TextBotSuspected = "We couldn't process your submission."
	TextTooFast      = "Please check the fields and try again."
	TextFieldInvalid = "Please correct the highlighted fields to send your message."
	TextSending      = "Sending your message to the team..."
	TextSent         = "Message sent successfully. We'll get back to you soon."
	TextSendFailed   = "Sending failed. Please try again."

	LabelSubmit  = "Send message"
	LabelSending = "Sending..."
)

// StatusKind tells the view how to style a status line
type StatusKind string

const (
	StatusDefault StatusKind = "default"
	StatusPending StatusKind = "pending"
	StatusSuccess StatusKind = "success"
	StatusError   StatusKind = "error"
)

// ErrorKind classifies a submission that did not go through
type ErrorKind string

const (
	KindLocalValidationFailed ErrorKind = "local_validation_failed"
	KindNetworkOrServerError  ErrorKind = "network_or_server_error"
)

// Rejection names the local check that stopped a submission
type Rejection string

const (
	RejectBotSuspected Rejection = "bot_suspected"
	RejectFilledTooFast Rejection = "filled_too_fast"
	RejectFieldInvalid Rejection = "field_invalid"
)

// View is the rendering surface of one form
type View interface {
	SetStatus(kind StatusKind, text string)
	SetFieldError(field models.FieldKey, message string)
	Focus(field models.FieldKey)
	SetSubmitEnabled(enabled bool, label string)
	Reset()
	SetStartedAt(ms int64)
}

// Completion is emitted to listeners after a delivered submission
type Completion struct {
	Source string
}

// Outcome describes how a Submit call ended
type Outcome struct {
	Delivered bool
	Kind      ErrorKind
	Reason    Rejection
	Message   string
}

// Timer is the handle returned by an AfterFunc
type Timer interface {
	Stop() bool
}

// Option configures a Guard
type Option func(*Guard)

// WithLogger sets the guard's logger
func WithLogger(logger *zap.Logger) Option {
	return func(g *Guard) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(g *Guard) { g.now = now }
}

// WithAfterFunc replaces time.AfterFunc for the success display timer
func WithAfterFunc(after func(d time.Duration, f func()) Timer) Option {
	return func(g *Guard) { g.afterFunc = after }
}

// WithTracker receives analytics event names
func WithTracker(track func(event string)) Option {
	return func(g *Guard) { g.track = track }
}

// Guard owns one form's state machine
type Guard struct {
	view      View
	submitter Submitter
	logger    *zap.Logger
	now       func() time.Time
	afterFunc func(d time.Duration, f func()) Timer
	track     func(event string)

	mu          sync.Mutex
	machine     machine
	initialized bool
	startedAt   int64
	values      map[models.FieldKey]string
	listeners   []func(Completion)
	revert      Timer

	// viewMu serialises calls into the view, including from the revert timer
	viewMu sync.Mutex
}

// NewGuard creates a guard bound to view that sends through submitter
func NewGuard(view View, submitter Submitter, opts ...Option) *Guard {
	g := &Guard{
		view:      view,
		submitter: submitter,
		logger:    zap.NewNop(),
		now:       time.Now,
		afterFunc: func(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) },
		machine:   machine{state: StateIdle},
		values:    map[models.FieldKey]string{},
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Init records the start time and renders the initial status. Only the
// first call has any effect; it reports whether this call initialised.
func (g *Guard) Init() bool {
	g.mu.Lock()
	if g.initialized {
		g.mu.Unlock()
		return false
	}
	g.initialized = true
	g.startedAt = g.now().UnixMilli()
	startedAt := g.startedAt
	g.mu.Unlock()

	g.render(func(v View) {
		v.SetStartedAt(startedAt)
		v.SetStatus(StatusDefault, TextDefault)
		v.SetSubmitEnabled(true, LabelSubmit)
	})
	return true
}

// Initialized reports whether Init has run
func (g *Guard) Initialized() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.initialized
}

// State returns the current state
func (g *Guard) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.machine.state
}

// StartedAt returns the recorded start time in epoch milliseconds
func (g *Guard) StartedAt() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.startedAt
}

// OnCompletion registers a listener for delivered submissions
func (g *Guard) OnCompletion(listener func(Completion)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.listeners = append(g.listeners, listener)
}

// Input records a field change. Validated fields are re-checked immediately.
func (g *Guard) Input(field models.FieldKey, value string) {
	g.mu.Lock()
	g.values[field] = value
	g.mu.Unlock()

	switch field {
	case models.FieldName, models.FieldEmail, models.FieldMessage:
		msg := validation.ValidateField(field, value)
		g.render(func(v View) { v.SetFieldError(field, msg) })
	}
}

// Submit runs the guard chain and, if every local check passes, sends the
// submission. Local rejections and server failures are reported through the
// Outcome; the error is reserved for misuse such as re-entry.
func (g *Guard) Submit(ctx context.Context) (Outcome, error) {
	g.mu.Lock()
	if !g.initialized {
		g.mu.Unlock()
		return Outcome{}, ErrNotInitialized
	}
	if err := g.machine.beginValidation(); err != nil {
		g.mu.Unlock()
		return Outcome{}, err
	}
	sub := g.snapshot()
	g.mu.Unlock()

	if sub.Honeypot != "" {
		return g.rejectLocally(RejectBotSuspected, TextBotSuspected)
	}
	if validation.FilledTooFast(sub.StartedAt, sub.StartedAtValid, g.now()) {
		return g.rejectLocally(RejectFilledTooFast, TextTooFast)
	}

	verdict := validation.ValidateSubmission(sub)
	first, invalid := verdict.FirstInvalid()
	g.render(func(v View) {
		for _, key := range models.ValidatedFields {
			v.SetFieldError(key, verdict[key])
		}
		if invalid {
			v.Focus(first)
		}
	})
	if invalid {
		return g.rejectLocally(RejectFieldInvalid, TextFieldInvalid)
	}

	if err := g.locked(g.machine.beginSubmitting); err != nil {
		return Outcome{}, err
	}
	g.cancelRevert()
	g.render(func(v View) {
		v.SetSubmitEnabled(false, LabelSending)
		v.SetStatus(StatusPending, TextSending)
	})
	defer func() {
		g.render(func(v View) { v.SetSubmitEnabled(true, LabelSubmit) })
		if err := g.locked(g.machine.settle); err != nil {
			g.logger.Error("contact_form_settle_failed", zap.Error(err))
		}
	}()

	reply, err := g.submitter.Submit(ctx, sub)
	if err != nil {
		return g.failed(err)
	}
	return g.succeeded(reply)
}

// snapshot builds the submission from the current values. Callers hold g.mu.
func (g *Guard) snapshot() models.Submission {
	return models.Submission{
		Name:           strings.TrimSpace(g.values[models.FieldName]),
		Email:          strings.TrimSpace(g.values[models.FieldEmail]),
		Company:        strings.TrimSpace(g.values[FieldCompany]),
		Budget:         strings.TrimSpace(g.values[FieldBudget]),
		Message:        strings.TrimSpace(g.values[models.FieldMessage]),
		Honeypot:       strings.TrimSpace(g.values[FieldHoneypot]),
		StartedAt:      float64(g.startedAt),
		StartedAtValid: true,
	}
}

func (g *Guard) rejectLocally(reason Rejection, text string) (Outcome, error) {
	if err := g.locked(g.machine.rejectLocally); err != nil {
		return Outcome{}, err
	}
	g.render(func(v View) { v.SetStatus(StatusError, text) })
	g.logger.Debug("contact_form_rejected_locally", zap.String("reason", string(reason)))
	return Outcome{Kind: KindLocalValidationFailed, Reason: reason, Message: text}, nil
}

func (g *Guard) failed(err error) (Outcome, error) {
	if lockErr := g.locked(g.machine.fail); lockErr != nil {
		return Outcome{}, lockErr
	}
	text := failureText(err)
	g.render(func(v View) { v.SetStatus(StatusError, text) })
	g.logger.Warn("contact_form_submit_failed", zap.String("error", logpkg.SanitizeError(err)))
	return Outcome{Kind: KindNetworkOrServerError, Message: text}, nil
}

func (g *Guard) succeeded(reply Response) (Outcome, error) {
	g.mu.Lock()
	if err := g.machine.succeed(); err != nil {
		g.mu.Unlock()
		return Outcome{}, err
	}
	g.values = map[models.FieldKey]string{}
	g.startedAt = g.now().UnixMilli()
	startedAt := g.startedAt
	listeners := append([]func(Completion){}, g.listeners...)
	g.mu.Unlock()

	text := reply.Message
	if text == "" {
		text = TextSent
	}
	g.render(func(v View) {
		v.SetStatus(StatusSuccess, text)
		v.Reset()
		v.SetStartedAt(startedAt)
		for _, key := range models.ValidatedFields {
			v.SetFieldError(key, "")
		}
	})

	for _, listener := range listeners {
		listener(Completion{Source: SourceContactForm})
	}
	if g.track != nil {
		g.track(AnalyticsSubmitSuccess)
	}
	g.scheduleRevert()

	return Outcome{Delivered: true, Message: text}, nil
}

// scheduleRevert restores the default status after SuccessDisplay
func (g *Guard) scheduleRevert() {
	timer := g.afterFunc(SuccessDisplay, func() {
		g.render(func(v View) { v.SetStatus(StatusDefault, TextDefault) })
	})
	g.mu.Lock()
	previous := g.revert
	g.revert = timer
	g.mu.Unlock()
	if previous != nil {
		previous.Stop()
	}
}

func (g *Guard) cancelRevert() {
	g.mu.Lock()
	timer := g.revert
	g.revert = nil
	g.mu.Unlock()
	if timer != nil {
		timer.Stop()
	}
}

func (g *Guard) locked(step func() error) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return step()
}

func (g *Guard) render(draw func(View)) {
	g.viewMu.Lock()
	defer g.viewMu.Unlock()
	draw(g.view)
}

// failureText never exposes transport detail: only a message the server
// chose to send back is shown verbatim.
func failureText(err error) string {
	var serverErr *SubmitError
	if errors.As(err, &serverErr) && strings.TrimSpace(serverErr.Message) != "" {
		return serverErr.Message
	}
	return TextSendFailed
}
