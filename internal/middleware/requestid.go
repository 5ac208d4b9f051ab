package middleware

import (
	"net/http"
	"strings"

	"github.com/benvon/contact-relay/internal/request"
)

// maxInboundRequestIDLength caps caller-supplied request IDs
const maxInboundRequestIDLength = 64

// RequestID propagates the caller's X-Request-ID, or generates one, into the
// request context and the response headers.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(request.RequestIDHeader))
		if len(id) > maxInboundRequestIDLength || !printableASCII(id) {
			id = ""
		}
		ctx := request.WithRequestID(r.Context(), id)
		w.Header().Set(request.RequestIDHeader, request.RequestIDFromContext(ctx))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func printableASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < 0x21 || s[i] > 0x7e {
			return false
		}
	}
	return true
}
