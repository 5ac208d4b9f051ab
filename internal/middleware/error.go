package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/benvon/contact-relay/internal/request"
	"go.uber.org/zap"
)

// MessageInternalError is returned to clients when a handler panics
const MessageInternalError = "An unexpected error occurred. Please try again later."

// ErrorResponse is the body written by middleware-level rejections. It uses
// the same {message} shape as the contact endpoint so clients need one decoder.
type ErrorResponse struct {
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

// ErrorHandler creates error handling middleware
func ErrorHandler(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					// Log panic details server-side but don't expose to client
					logger.Error("panic_recovered",
						zap.Any("error", err),
						zap.String("path", r.URL.Path),
						zap.String("method", r.Method),
						zap.String("request_id", request.RequestIDFromContext(r.Context())),
					)
					writeError(w, r, http.StatusInternalServerError, MessageInternalError, logger)
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}

// writeError sends an ErrorResponse
func writeError(w http.ResponseWriter, r *http.Request, status int, message string, logger *zap.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	response := ErrorResponse{
		Message:   message,
		RequestID: request.RequestIDFromContext(r.Context()),
	}

	if err := json.NewEncoder(w).Encode(response); err != nil && logger != nil {
		logger.Error("failed_to_encode_error_response",
			zap.Error(err),
			zap.Int("status_code", status),
			zap.String("path", r.URL.Path),
		)
	}
}
