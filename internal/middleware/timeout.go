package middleware

import (
	"context"
	"net/http"
	"time"
)

const (
	// DefaultRequestTimeout leaves room for one primary and one backup SMTP
	// attempt at the default send timeout.
	DefaultRequestTimeout = 75 * time.Second

	// MessageTimeout is the body written when a request exceeds its deadline
	MessageTimeout = `{"message":"The request took too long. Please try again later."}`
)

// Timeout creates a middleware that enforces a timeout on request handlers
func Timeout(timeout time.Duration) func(http.Handler) http.Handler {
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()

			r = r.WithContext(ctx)

			handler := http.TimeoutHandler(next, timeout, MessageTimeout)
			handler.ServeHTTP(w, r)
		})
	}
}
