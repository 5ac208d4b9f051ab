package middleware

import (
	"net/http"
)

const (
	// DefaultMaxRequestSize is the default maximum request body size. A contact
	// form never comes close.
	DefaultMaxRequestSize int64 = 64 << 10

	// MessageRequestTooLarge is returned when Content-Length exceeds the limit
	MessageRequestTooLarge = "Request is too large."
)

// MaxRequestSize limits the size of request bodies
func MaxRequestSize(maxBytes int64) func(http.Handler) http.Handler {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxRequestSize
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Check Content-Length header early if present
			if r.ContentLength > maxBytes {
				writeError(w, r, http.StatusRequestEntityTooLarge, MessageRequestTooLarge, nil)
				return
			}

			// Bodies without a declared length are cut off while reading
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			defer r.Body.Close()

			next.ServeHTTP(w, r)
		})
	}
}
