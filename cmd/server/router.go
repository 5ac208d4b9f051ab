package main

import (
	"net/http"

	"github.com/benvon/contact-relay/internal/handlers"
	"github.com/benvon/contact-relay/internal/metrics"
	"github.com/benvon/contact-relay/internal/middleware"
	"github.com/gorilla/mux"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"
	"go.uber.org/zap"
)

// routerConfig carries everything the HTTP surface is assembled from
type routerConfig struct {
	logger          *zap.Logger
	frontendURL     string
	enableHSTS      bool
	tracing         bool
	metrics         bool
	globalRateLimit func(http.Handler) http.Handler

	contact *handlers.ContactHandler
	health  *handlers.HealthChecker
	openAPI *handlers.OpenAPIHandler
}

// newRouter builds the middleware chain and routes. The contact endpoint
// accepts any Content-Type; the handler rejects undecodable bodies itself.
func newRouter(rc routerConfig) *mux.Router {
	r := mux.NewRouter()

	// 0. OpenTelemetry tracing (if enabled)
	if rc.tracing {
		r.Use(otelmux.Middleware(serviceName))
	}
	// 1. Request metrics
	if rc.metrics {
		r.Use(metrics.HTTPMetrics)
	}
	// 2. Security headers on every response
	r.Use(middleware.SecurityHeaders(rc.enableHSTS))
	// 3. CORS against FRONTEND_URL
	r.Use(middleware.CORS(rc.frontendURL, rc.logger))
	// 4. Request ID for log correlation
	r.Use(middleware.RequestID)
	// 5. Global flood guard, per client IP
	if rc.globalRateLimit != nil {
		r.Use(rc.globalRateLimit)
	}
	// 6. Request size limits
	r.Use(middleware.MaxRequestSize(middleware.DefaultMaxRequestSize))
	// 7. Request timeout
	r.Use(middleware.Timeout(middleware.DefaultRequestTimeout))
	// 8. Panic recovery
	r.Use(middleware.ErrorHandler(rc.logger))
	// 9. Security event audit
	r.Use(middleware.Audit(rc.logger))
	// 10. Request logging
	r.Use(middleware.Logging(rc.logger))

	rc.health.RegisterRoutes(r)
	rc.contact.RegisterRoutes(r)
	if rc.openAPI != nil {
		rc.openAPI.RegisterRoutes(r)
	}
	r.HandleFunc("/version", handlers.VersionInfo).Methods(http.MethodGet)
	if rc.metrics {
		r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)
	}

	// Preflight requests are answered by the CORS middleware; this only
	// gives them a route to match
	r.Methods(http.MethodOptions).HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	return r
}
