package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/benvon/contact-relay/internal/config"
	logpkg "github.com/benvon/contact-relay/internal/logger"
	"github.com/benvon/contact-relay/internal/mailer"
	"github.com/benvon/contact-relay/internal/metrics"
	"github.com/benvon/contact-relay/internal/models"
	"github.com/benvon/contact-relay/internal/queue"
	"github.com/benvon/contact-relay/internal/ratelimit"
	"github.com/benvon/contact-relay/internal/request"
	"github.com/benvon/contact-relay/internal/telemetry"
	"github.com/benvon/contact-relay/internal/validation"
	"github.com/gorilla/mux"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

// Client-facing messages. None of them carry internal detail.
const (
	MessageSent           = "Message sent successfully. We'll get back to you soon."
	MessageRateLimited    = "Too many attempts. Please try again in a few minutes."
	MessageInvalidRequest = "Invalid request."
	MessageTooFast        = "Please fill in the form carefully."
	MessageInvalidFields  = "Invalid data."
	MessageUnavailable    = "The contact form is temporarily unavailable. Please try again later."
	MessageSendFailed     = "Sending failed. Please try again."
	MessageTooLarge       = "Request is too large."
)

// ErrorKind classifies why a submission was not relayed
type ErrorKind string

const (
	KindRateLimited         ErrorKind = "rate_limited"
	KindInvalidRequest      ErrorKind = "invalid_request"
	KindBotSuspected        ErrorKind = "bot_suspected"
	KindFilledTooFast       ErrorKind = "filled_too_fast"
	KindInvalidFields       ErrorKind = "invalid_fields"
	KindServerMisconfigured ErrorKind = "server_misconfigured"
	KindDeliveryFailed      ErrorKind = "delivery_failed"
	KindInternalError       ErrorKind = "internal_error"
)

// rejection maps an ErrorKind to its response and final state
type rejection struct {
	status  int
	message string
	state   models.SubmissionState
}

var rejections = map[ErrorKind]rejection{
	KindRateLimited:         {http.StatusTooManyRequests, MessageRateLimited, models.StateRateLimited},
	KindInvalidRequest:      {http.StatusBadRequest, MessageInvalidRequest, models.StateInvalid},
	KindBotSuspected:        {http.StatusBadRequest, MessageInvalidRequest, models.StateBotRejected},
	KindFilledTooFast:       {http.StatusBadRequest, MessageTooFast, models.StateTimingRejected},
	KindInvalidFields:       {http.StatusBadRequest, MessageInvalidFields, models.StateInvalid},
	KindServerMisconfigured: {http.StatusInternalServerError, MessageUnavailable, models.StateMisconfigured},
	KindDeliveryFailed:      {http.StatusInternalServerError, MessageSendFailed, models.StateFailed},
	KindInternalError:       {http.StatusInternalServerError, MessageSendFailed, models.StateFailed},
}

// publishTimeout bounds the best-effort completion event
const publishTimeout = 5 * time.Second

// ContactHandler validates contact submissions and relays them by mail
type ContactHandler struct {
	limiter   ratelimit.Limiter
	mail      config.MailConfig
	transport mailer.Transport
	publisher queue.Publisher
	logger    *zap.Logger
	now       func() time.Time
}

// ContactOption configures optional ContactHandler collaborators
type ContactOption func(*ContactHandler)

// WithPublisher publishes a completion event after each delivered submission
func WithPublisher(p queue.Publisher) ContactOption {
	return func(h *ContactHandler) { h.publisher = p }
}

// WithClock replaces time.Now, for tests
func WithClock(now func() time.Time) ContactOption {
	return func(h *ContactHandler) { h.now = now }
}

// NewContactHandler creates a contact handler. transport may be nil when the
// mail settings are incomplete; submissions then fail as misconfigured.
func NewContactHandler(limiter ratelimit.Limiter, mail config.MailConfig, transport mailer.Transport, logger *zap.Logger, opts ...ContactOption) *ContactHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &ContactHandler{
		limiter:   limiter,
		mail:      mail,
		transport: transport,
		logger:    logger,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// RegisterRoutes registers the submit endpoint
func (h *ContactHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/api/contact", h.Submit).Methods(http.MethodPost)
}

// Submit handles POST /api/contact. Checks run in a fixed order and stop at
// the first failure.
func (h *ContactHandler) Submit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logpkg.ForRequest(ctx, h.logger)
	identity := request.ClientIP(r)

	state := models.StateReceived
	var result mailer.Result
	defer func() {
		metrics.ObserveSubmission(string(state))
		log.Info("contact_submission_finished",
			zap.String("state", string(state)),
			zap.String("ip", logpkg.SanitizeIdentity(identity)),
			zap.Int("delivery_attempts", result.Attempts),
		)
	}()

	reject := func(kind ErrorKind, fields ...zap.Field) {
		rej := rejections[kind]
		state = rej.state
		log.Warn("contact_submission_rejected", append([]zap.Field{zap.String("reason", string(kind))}, fields...)...)
		respondMessage(w, rej.status, rej.message)
	}

	allowed, err := h.limiter.Allow(ctx, identity)
	if err != nil {
		// the store is unavailable; fail open rather than drop real leads
		log.Error("contact_rate_limit_store_error", zap.String("error", logpkg.SanitizeError(err)))
		allowed = true
	}
	if !allowed {
		reject(KindRateLimited)
		return
	}

	submission, err := decodeSubmission(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			state = models.StateInvalid
			respondMessage(w, http.StatusRequestEntityTooLarge, MessageTooLarge)
			return
		}
		reject(KindInvalidRequest, zap.String("error", logpkg.SanitizeError(err)))
		return
	}

	if submission.Honeypot != "" {
		reject(KindBotSuspected)
		return
	}

	if validation.FilledTooFast(submission.StartedAt, submission.StartedAtValid, h.now()) {
		reject(KindFilledTooFast, zap.Bool("started_at_present", submission.StartedAtValid))
		return
	}

	if verdict := validation.ValidateSubmission(submission); !verdict.OK() {
		invalid, _ := verdict.FirstInvalid()
		reject(KindInvalidFields, zap.String("first_invalid_field", string(invalid)))
		return
	}
	state = models.StateValidated

	if ok, absent := h.mail.Ready(); !ok {
		// the absent keys go to the log only
		reject(KindServerMisconfigured, zap.Strings("missing", absent))
		return
	}
	if h.transport == nil {
		reject(KindInternalError, zap.String("error", "mail transport not initialised"))
		return
	}

	msg := mailer.Compose(submission)
	deliverer := mailer.NewDeliverer(h.transport, h.mail.To, h.mail.ToBackup, log)

	state = models.StatePrimaryAttempted
	deliverCtx, span := telemetry.Tracer().Start(ctx, "contact.deliver")
	result, err = deliverer.Deliver(deliverCtx, msg)
	span.SetAttributes(
		attribute.Int("contact.delivery_attempts", result.Attempts),
		attribute.Bool("contact.backup_configured", deliverer.HasBackup()),
	)
	if err != nil {
		span.SetStatus(codes.Error, "delivery failed")
	} else {
		span.SetAttributes(attribute.String("contact.recipient", string(result.Recipient)))
	}
	span.End()
	if err != nil {
		if result.Attempts > 1 {
			state = models.StateBackupAttempted
		}
		kind := KindInternalError
		if errors.Is(err, mailer.ErrDeliveryFailed) {
			kind = KindDeliveryFailed
		}
		log.Error("contact_delivery_failed",
			zap.String("error", logpkg.SanitizeError(err)),
			zap.String("from_state", string(state)),
		)
		reject(kind)
		return
	}

	state = models.StateDelivered
	log.Info("contact_submission_delivered",
		zap.String("recipient", string(result.Recipient)),
		zap.String("reply_to", logpkg.MaskEmail(submission.Email)),
	)
	respondMessage(w, http.StatusOK, MessageSent)

	h.publishCompletion(ctx, log, result)
}

// publishCompletion emits the completion event. Failures are logged only; the
// visitor already has their answer.
func (h *ContactHandler) publishCompletion(ctx context.Context, log *zap.Logger, result mailer.Result) {
	if h.publisher == nil {
		return
	}
	event := queue.NewEvent(queue.SourceContactForm, h.now())
	event.RequestID = request.RequestIDFromContext(ctx)
	event.Recipient = string(result.Recipient)
	event.Attempts = result.Attempts

	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := h.publisher.Publish(pubCtx, event); err != nil {
		log.Warn("contact_event_publish_failed",
			zap.String("event_id", event.ID.String()),
			zap.String("error", logpkg.SanitizeError(err)),
		)
		return
	}
	log.Debug("contact_event_published", zap.String("event_id", event.ID.String()))
}

// decodeSubmission parses the body into a generic value and coerces it. An
// empty body or invalid JSON is an error; a valid non-object body yields a
// submission with every field empty.
func decodeSubmission(body io.Reader) (models.Submission, error) {
	dec := json.NewDecoder(body)
	dec.UseNumber()

	var payload any
	if err := dec.Decode(&payload); err != nil {
		return models.Submission{}, err
	}
	return models.SubmissionFromPayload(payload), nil
}
