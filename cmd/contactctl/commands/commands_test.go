package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benvon/contact-relay/internal/config"
	"github.com/benvon/contact-relay/internal/handlers"
	"github.com/benvon/contact-relay/internal/intake"
	"github.com/benvon/contact-relay/internal/mailer"
	"github.com/benvon/contact-relay/internal/models"
	"go.uber.org/zap"
)

func TestRunHealth(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		extended   bool
		response   handlers.HealthResponse
		status     int
		wantErr    error
		wantOutput []string
	}{
		{
			name:       "ready",
			response:   handlers.HealthResponse{OK: true, Service: "contact-relay", Missing: []string{}},
			status:     http.StatusOK,
			wantOutput: []string{"✓ Mail transport configured", "✓ Ready"},
		},
		{
			name:       "missing keys",
			response:   handlers.HealthResponse{Service: "contact-relay", Missing: []string{"SMTP_HOST", "SMTP_PASS"}},
			status:     http.StatusServiceUnavailable,
			wantErr:    ErrNotReady,
			wantOutput: []string{"- SMTP_HOST", "- SMTP_PASS"},
		},
		{
			name:     "extended checks",
			extended: true,
			response: handlers.HealthResponse{
				Service: "contact-relay",
				Missing: []string{},
				Checks:  map[string]string{"redis": "healthy", "rabbitmq": "unhealthy: connection refused"},
			},
			status:     http.StatusServiceUnavailable,
			wantErr:    ErrNotReady,
			wantOutput: []string{"rabbitmq: unhealthy", "redis: healthy"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/api/contact" {
					t.Errorf("path = %q, want /api/contact", r.URL.Path)
				}
				if got := r.URL.Query().Get("mode") == "extended"; got != tt.extended {
					t.Errorf("extended mode = %v, want %v", got, tt.extended)
				}
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_ = json.NewEncoder(w).Encode(tt.response)
			}))
			defer server.Close()

			var out bytes.Buffer
			err := runHealth(context.Background(), server.Client(), server.URL, tt.extended, &out)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("runHealth() error = %v, want %v", err, tt.wantErr)
			}
			for _, want := range tt.wantOutput {
				if !strings.Contains(out.String(), want) {
					t.Errorf("output missing %q:\n%s", want, out.String())
				}
			}
		})
	}
}

func TestRunHealth_BadResponse(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("<html>bad gateway</html>"))
	}))
	defer server.Close()

	if err := runHealth(context.Background(), server.Client(), server.URL, false, &bytes.Buffer{}); err == nil {
		t.Error("expected an error for a non-JSON response")
	}
}

func TestRunConfig(t *testing.T) {
	t.Parallel()

	complete := config.MailConfig{
		Host: "smtp.example.com", Port: 587, RawPort: "587",
		User: "relay@example.com", Password: "secret",
		To: "team@example.com", From: "relay@example.com", FromName: "Website",
		Timeout: config.DefaultSMTPTimeout,
	}

	var out bytes.Buffer
	if err := runConfig(&out, complete); err != nil {
		t.Fatalf("runConfig() error = %v", err)
	}
	if !strings.Contains(out.String(), "✓ Mail transport ready") {
		t.Errorf("unexpected output:\n%s", out.String())
	}
	if strings.Contains(out.String(), "secret") {
		t.Error("password must never be printed")
	}

	incomplete := complete
	incomplete.Host = ""
	incomplete.Password = ""
	out.Reset()
	if err := runConfig(&out, incomplete); err == nil {
		t.Fatal("expected an error for incomplete configuration")
	}
	for _, want := range []string{"SMTP_HOST is not set", "SMTP_PASS is not set", "host, password"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("output missing %q:\n%s", want, out.String())
		}
	}
}

func TestPromptMissing(t *testing.T) {
	t.Parallel()

	values := map[models.FieldKey]string{models.FieldName: "Ana Pop"}
	in := strings.NewReader("ana@example.com\nWe need a new website for our shop.\n")
	var out bytes.Buffer

	if err := promptMissing(in, &out, values); err != nil {
		t.Fatalf("promptMissing() error = %v", err)
	}
	if values[models.FieldEmail] != "ana@example.com" {
		t.Errorf("email = %q", values[models.FieldEmail])
	}
	if values[models.FieldMessage] != "We need a new website for our shop." {
		t.Errorf("message = %q", values[models.FieldMessage])
	}
	if strings.Contains(out.String(), "Name:") {
		t.Error("a field given on the command line must not be prompted for")
	}
	if _, ok := values[intake.FieldCompany]; ok {
		t.Error("optional fields must not be prompted for")
	}
}

// steppingClock advances by step on every reading
func steppingClock(step time.Duration) func() time.Time {
	var mu sync.Mutex
	current := time.Date(2024, 5, 17, 9, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		current = current.Add(step)
		return current
	}
}

func TestRunSubmit(t *testing.T) {
	t.Parallel()

	valid := map[models.FieldKey]string{
		models.FieldName:    "Ana Pop",
		models.FieldEmail:   "ana@example.com",
		intake.FieldCompany: "Pop SRL",
		models.FieldMessage: "We need a new website for our shop.",
	}
	invalidEmail := map[models.FieldKey]string{
		models.FieldName:    "Ana Pop",
		models.FieldEmail:   "ana@",
		models.FieldMessage: "We need a new website for our shop.",
	}

	tests := []struct {
		name          string
		values        map[models.FieldKey]string
		status        int
		reply         string
		wantDelivered bool
		wantHits      int32
		wantMessage   string
	}{
		{
			name:          "delivered",
			values:        valid,
			status:        http.StatusOK,
			reply:         `{"message":"Thanks, we got it."}`,
			wantDelivered: true,
			wantHits:      1,
			wantMessage:   "Thanks, we got it.",
		},
		{
			name:        "server message shown on failure",
			values:      valid,
			status:      http.StatusTooManyRequests,
			reply:       `{"message":"Too many requests. Please try again later."}`,
			wantHits:    1,
			wantMessage: "Too many requests. Please try again later.",
		},
		{
			name:        "invalid field never reaches the server",
			values:      invalidEmail,
			wantHits:    0,
			wantMessage: intake.TextFieldInvalid,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var hits atomic.Int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				hits.Add(1)
				var body map[string]string
				if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
					t.Errorf("decode body: %v", err)
				}
				if body["startedAt"] == "" {
					t.Error("startedAt missing from payload")
				}
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.reply))
			}))
			defer server.Close()

			submitter := intake.NewHTTPSubmitter(server.URL+"/api/contact", server.Client())
			var out bytes.Buffer
			outcome, err := runSubmit(context.Background(), &out, submitter, tt.values, steppingClock(3*time.Second), zap.NewNop())
			if err != nil {
				t.Fatalf("runSubmit() error = %v", err)
			}
			if outcome.Delivered != tt.wantDelivered {
				t.Errorf("Delivered = %v, want %v", outcome.Delivered, tt.wantDelivered)
			}
			if outcome.Message != tt.wantMessage {
				t.Errorf("Message = %q, want %q", outcome.Message, tt.wantMessage)
			}
			if got := hits.Load(); got != tt.wantHits {
				t.Errorf("server hits = %d, want %d", got, tt.wantHits)
			}
			if !strings.Contains(out.String(), tt.wantMessage) {
				t.Errorf("terminal output missing %q:\n%s", tt.wantMessage, out.String())
			}
		})
	}
}

func TestRunSubmit_CancelledWhileWaiting(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	frozen := time.Date(2024, 5, 17, 9, 0, 0, 0, time.UTC)
	submitter := intake.NewHTTPSubmitter("http://127.0.0.1:0/api/contact", nil)
	_, err := runSubmit(ctx, &bytes.Buffer{}, submitter, map[models.FieldKey]string{}, func() time.Time { return frozen }, zap.NewNop())
	if !errors.Is(err, context.Canceled) {
		t.Errorf("runSubmit() error = %v, want context.Canceled", err)
	}
}

// recordingTransport captures sent messages and fails for listed recipients
type recordingTransport struct {
	mu     sync.Mutex
	sent   []mailer.Message
	failTo map[string]bool
}

func (r *recordingTransport) Send(_ context.Context, msg mailer.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, msg)
	if r.failTo[msg.To] {
		return errors.New("550 mailbox unavailable")
	}
	return nil
}

func TestRunSendTest(t *testing.T) {
	t.Parallel()

	mail := config.MailConfig{To: "team@example.com", ToBackup: "backup@example.com", From: "relay@example.com"}

	tests := []struct {
		name       string
		failTo     map[string]bool
		wantErr    bool
		wantSent   int
		wantOutput string
	}{
		{name: "primary accepts", wantSent: 1, wantOutput: "Delivered to primary recipient after 1 attempt(s)"},
		{name: "backup accepts", failTo: map[string]bool{"team@example.com": true}, wantSent: 2, wantOutput: "Delivered to backup recipient after 2 attempt(s)"},
		{name: "both fail", failTo: map[string]bool{"team@example.com": true, "backup@example.com": true}, wantErr: true, wantSent: 2, wantOutput: "Delivery failed after 2 attempt(s)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			transport := &recordingTransport{failTo: tt.failTo}
			var out bytes.Buffer
			err := runSendTest(context.Background(), &out, transport, mail, sampleSubmission("Relay Test", ""), zap.NewNop())
			if (err != nil) != tt.wantErr {
				t.Fatalf("runSendTest() error = %v, wantErr %v", err, tt.wantErr)
			}
			if len(transport.sent) != tt.wantSent {
				t.Fatalf("sent %d messages, want %d", len(transport.sent), tt.wantSent)
			}
			if got := transport.sent[0].ReplyTo; got != mail.From {
				t.Errorf("ReplyTo = %q, want %q", got, mail.From)
			}
			if !strings.Contains(out.String(), tt.wantOutput) {
				t.Errorf("output missing %q:\n%s", tt.wantOutput, out.String())
			}
		})
	}
}
