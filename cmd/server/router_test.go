package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/benvon/contact-relay/api/openapi"
	"github.com/benvon/contact-relay/internal/config"
	"github.com/benvon/contact-relay/internal/handlers"
	"github.com/benvon/contact-relay/internal/mailer"
	"github.com/benvon/contact-relay/internal/middleware"
	"github.com/benvon/contact-relay/internal/ratelimit"
	"go.uber.org/zap"
)

var routerNow = time.UnixMilli(1_700_000_100_000)

type countingTransport struct {
	mu   sync.Mutex
	sent []mailer.Message
}

func (c *countingTransport) Send(_ context.Context, msg mailer.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, msg)
	return nil
}

func (c *countingTransport) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sent)
}

func testMail() config.MailConfig {
	return config.MailConfig{
		Host:     "smtp.example.com",
		Port:     587,
		RawPort:  "587",
		User:     "inbox@example.com",
		Password: "secret",
		To:       "primary@example.com",
		From:     "noreply@example.com",
		FromName: "Website",
	}
}

func newTestRouter(t *testing.T, transport mailer.Transport) http.Handler {
	t.Helper()

	global, err := middleware.GlobalRateLimit("100-M", nil, zap.NewNop())
	if err != nil {
		t.Fatalf("GlobalRateLimit() error = %v", err)
	}
	openAPI, err := handlers.NewOpenAPIHandler(openapi.Document)
	if err != nil {
		t.Fatalf("NewOpenAPIHandler() error = %v", err)
	}
	contact := handlers.NewContactHandler(
		ratelimit.NewMemoryLimiter(ratelimit.Options{}),
		testMail(),
		transport,
		zap.NewNop(),
		handlers.WithClock(func() time.Time { return routerNow }),
	)

	return newRouter(routerConfig{
		logger:          zap.NewNop(),
		frontendURL:     "https://example.com",
		globalRateLimit: global,
		contact:         contact,
		health:          handlers.NewHealthChecker(testMail()),
		openAPI:         openAPI,
	})
}

func contactBody() string {
	body, _ := json.Marshal(map[string]string{
		"name":      "Ana Pop",
		"email":     "ana@example.com",
		"message":   "We need a new website for our shop.",
		"honeypot":  "",
		"startedAt": strconv.FormatInt(routerNow.UnixMilli()-10_000, 10),
	})
	return string(body)
}

func TestRouter_ContactAcceptsAnyContentType(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		contentType string
		body        string
		wantStatus  int
		wantSends   int
	}{
		{name: "json", contentType: "application/json", body: contactBody(), wantStatus: http.StatusOK, wantSends: 1},
		{name: "no content type", body: contactBody(), wantStatus: http.StatusOK, wantSends: 1},
		{name: "text plain", contentType: "text/plain;charset=UTF-8", body: contactBody(), wantStatus: http.StatusOK, wantSends: 1},
		{name: "undecodable body", contentType: "text/plain", body: "name=Ana", wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			transport := &countingTransport{}
			r := newTestRouter(t, transport)

			req := httptest.NewRequest(http.MethodPost, "/api/contact", strings.NewReader(tt.body))
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}
			req.Header.Set("X-Forwarded-For", "203.0.113.7")
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (body %s)", w.Code, tt.wantStatus, w.Body.String())
			}
			if got := transport.count(); got != tt.wantSends {
				t.Errorf("sends = %d, want %d", got, tt.wantSends)
			}
			var resp handlers.MessageResponse
			if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil || resp.Message == "" {
				t.Errorf("response is not {message} JSON: %q", w.Body.String())
			}
		})
	}
}

func TestRouter_Routes(t *testing.T) {
	t.Parallel()

	r := newTestRouter(t, &countingTransport{})

	tests := []struct {
		method     string
		path       string
		wantStatus int
	}{
		{http.MethodGet, "/api/contact", http.StatusOK},
		{http.MethodGet, "/healthz", http.StatusOK},
		{http.MethodGet, "/version", http.StatusOK},
		{http.MethodGet, "/api/openapi.yaml", http.StatusOK},
		{http.MethodOptions, "/api/contact", http.StatusNoContent},
	}

	for _, tt := range tests {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(tt.method, tt.path, nil))
		if w.Code != tt.wantStatus {
			t.Errorf("%s %s status = %d, want %d", tt.method, tt.path, w.Code, tt.wantStatus)
		}
		if w.Header().Get("X-Content-Type-Options") != "nosniff" {
			t.Errorf("%s %s missing security headers", tt.method, tt.path)
		}
	}
}
