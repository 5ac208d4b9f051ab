package middleware

import (
	"net/http"

	logpkg "github.com/benvon/contact-relay/internal/logger"
	"github.com/benvon/contact-relay/internal/request"
	"go.uber.org/zap"
)

// Audit logs security-related responses: rate-limit violations and requests
// rejected for their size or content type.
func Audit(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(wrapped, r)

			var event string
			switch wrapped.statusCode {
			case http.StatusTooManyRequests:
				event = "rate_limit_violation"
			case http.StatusRequestEntityTooLarge, http.StatusUnsupportedMediaType:
				event = "request_rejected"
			default:
				return
			}

			logpkg.ForRequest(r.Context(), logger).Warn(event,
				zap.Int("status_code", wrapped.statusCode),
				zap.String("method", r.Method),
				zap.String("path", logpkg.SanitizePath(r.URL.Path)),
				zap.String("ip", logpkg.SanitizeIdentity(request.ClientIP(r))),
			)
		})
	}
}
