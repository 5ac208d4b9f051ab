package intake

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/benvon/contact-relay/internal/models"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	// DefaultSubmitTimeout bounds a single submission round trip
	DefaultSubmitTimeout = 45 * time.Second
	// maxResponseBytes caps how much of the server reply is read
	maxResponseBytes = 64 << 10
)

// ErrSubmitFailed wraps every failed submission, whatever the cause
var ErrSubmitFailed = errors.New("submission failed")

// Response is the server's reply to a submission
type Response struct {
	Message string `json:"message"`
}

// Submitter sends a submission to the server
type Submitter interface {
	Submit(ctx context.Context, s models.Submission) (Response, error)
}

// SubmitError is returned when the server answered with a non-2xx status
type SubmitError struct {
	Status  int
	Message string
}

func (e *SubmitError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned status %d", e.Status)
	}
	return fmt.Sprintf("server returned status %d: %s", e.Status, e.Message)
}

func (e *SubmitError) Unwrap() error { return ErrSubmitFailed }

// payload is the wire form of a submission. startedAt travels as a string,
// exactly as it was recorded.
type payload struct {
	Name      string `json:"name"`
	Email     string `json:"email"`
	Company   string `json:"company"`
	Budget    string `json:"budget"`
	Message   string `json:"message"`
	Honeypot  string `json:"honeypot"`
	StartedAt string `json:"startedAt"`
}

// HTTPSubmitter posts submissions as JSON to the contact endpoint
type HTTPSubmitter struct {
	endpoint string
	client   *http.Client
}

// NewHTTPSubmitter creates a submitter for endpoint. A nil client gets a traced
// client with DefaultSubmitTimeout.
func NewHTTPSubmitter(endpoint string, client *http.Client) *HTTPSubmitter {
	if client == nil {
		client = &http.Client{
			Timeout:   DefaultSubmitTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}
	return &HTTPSubmitter{endpoint: endpoint, client: client}
}

// Submit posts s and decodes the {message} reply
func (h *HTTPSubmitter) Submit(ctx context.Context, s models.Submission) (Response, error) {
	body, err := json.Marshal(payload{
		Name:      s.Name,
		Email:     s.Email,
		Company:   s.Company,
		Budget:    s.Budget,
		Message:   s.Message,
		Honeypot:  s.Honeypot,
		StartedAt: strconv.FormatInt(int64(s.StartedAt), 10),
	})
	if err != nil {
		return Response{}, fmt.Errorf("%w: encode: %w", ErrSubmitFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.endpoint, bytes.NewReader(body))
	if err != nil {
		return Response{}, fmt.Errorf("%w: build request: %w", ErrSubmitFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return Response{}, fmt.Errorf("%w: %w", ErrSubmitFailed, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	var reply Response
	decodeErr := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&reply)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Response{}, &SubmitError{Status: resp.StatusCode, Message: reply.Message}
	}
	if decodeErr != nil {
		return Response{}, fmt.Errorf("%w: decode reply: %w", ErrSubmitFailed, decodeErr)
	}
	return reply, nil
}
