package intake

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/benvon/contact-relay/internal/models"
)

func TestHTTPSubmitter_Submit(t *testing.T) {
	t.Parallel()

	var received map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %q", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"message":"ok"}`))
	}))
	defer server.Close()

	s := NewHTTPSubmitter(server.URL+"/api/contact", server.Client())
	reply, err := s.Submit(context.Background(), models.Submission{
		Name:      "Ana",
		Email:     "ana@example.com",
		Message:   "Hello there, team!",
		StartedAt: 1_700_000_000_000,
	})
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if reply.Message != "ok" {
		t.Errorf("Message = %q, want ok", reply.Message)
	}

	if received["startedAt"] != "1700000000000" {
		t.Errorf("startedAt = %#v, want string 1700000000000", received["startedAt"])
	}
	for _, key := range []string{"name", "email", "company", "budget", "message", "honeypot"} {
		if _, ok := received[key]; !ok {
			t.Errorf("payload missing %q", key)
		}
	}
}

func TestHTTPSubmitter_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		status      int
		body        string
		wantMessage string
		wantServer  bool
	}{
		{"server message", http.StatusTooManyRequests, `{"message":"slow down"}`, "slow down", true},
		{"non-json error", http.StatusBadGateway, `<html>bad gateway</html>`, "", true},
		{"2xx with garbage", http.StatusOK, `not json`, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			_, err := NewHTTPSubmitter(server.URL, server.Client()).Submit(context.Background(), models.Submission{})
			if !errors.Is(err, ErrSubmitFailed) {
				t.Fatalf("error = %v, want ErrSubmitFailed", err)
			}
			var serverErr *SubmitError
			if got := errors.As(err, &serverErr); got != tt.wantServer {
				t.Fatalf("errors.As(SubmitError) = %v, want %v", got, tt.wantServer)
			}
			if tt.wantServer && serverErr.Message != tt.wantMessage {
				t.Errorf("Message = %q, want %q", serverErr.Message, tt.wantMessage)
			}
		})
	}
}

func TestHTTPSubmitter_Unreachable(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	_, err := NewHTTPSubmitter(url, nil).Submit(context.Background(), models.Submission{})
	if !errors.Is(err, ErrSubmitFailed) {
		t.Errorf("error = %v, want ErrSubmitFailed", err)
	}
	if got := failureText(err); got != TextSendFailed {
		t.Errorf("failureText() = %q, want generic text", got)
	}
}
