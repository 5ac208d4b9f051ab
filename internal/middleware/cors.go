package middleware

import (
	"net/http"
	"strings"

	"github.com/benvon/contact-relay/internal/request"
	"github.com/rs/cors"
	"go.uber.org/zap"
)

// DefaultFrontendOrigin is allowed when FRONTEND_URL is empty
const DefaultFrontendOrigin = "http://localhost:4321"

// AllowedOrigins parses a comma-separated origin list, dropping blanks and
// duplicates.
func AllowedOrigins(frontendURL string) []string {
	var origins []string
	seen := map[string]bool{}
	for _, origin := range strings.Split(frontendURL, ",") {
		trimmed := strings.TrimRight(strings.TrimSpace(origin), "/")
		if trimmed == "" || seen[trimmed] {
			continue
		}
		seen[trimmed] = true
		origins = append(origins, trimmed)
	}
	if len(origins) == 0 {
		origins = []string{DefaultFrontendOrigin}
	}
	return origins
}

// CORS wraps rs/cors for the origins listed in frontendURL. The contact form
// posts without credentials, so none are allowed.
func CORS(frontendURL string, logger *zap.Logger) func(http.Handler) http.Handler {
	origins := AllowedOrigins(frontendURL)
	logger.Info("cors_configured", zap.Strings("allowed_origins", origins))

	c := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", request.RequestIDHeader},
		ExposedHeaders: []string{request.RequestIDHeader, "Retry-After"},
		MaxAge:         86400,
	})
	return c.Handler
}
