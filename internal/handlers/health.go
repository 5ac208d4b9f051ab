package handlers

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/benvon/contact-relay/internal/config"
	logpkg "github.com/benvon/contact-relay/internal/logger"
	"github.com/gorilla/mux"
)

// ServiceName is reported by the health probe
const ServiceName = "contact"

// isoMillis matches the millisecond ISO-8601 timestamps browsers produce
const isoMillis = "2006-01-02T15:04:05.000Z07:00"

// CheckFunc verifies one dependency
type CheckFunc func(ctx context.Context) error

// HealthChecker reports whether the mail transport is configured. Extended
// mode additionally runs the registered dependency checks.
type HealthChecker struct {
	mail config.MailConfig
	now  func() time.Time

	mu     sync.RWMutex
	checks map[string]CheckFunc
}

// NewHealthChecker creates a new health checker
func NewHealthChecker(mail config.MailConfig) *HealthChecker {
	return &HealthChecker{
		mail:   mail,
		now:    time.Now,
		checks: map[string]CheckFunc{},
	}
}

// AddCheck registers a dependency check for extended mode
func (h *HealthChecker) AddCheck(name string, check CheckFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks[name] = check
}

// HealthResponse represents the health check response
type HealthResponse struct {
	OK        bool              `json:"ok"`
	Service   string            `json:"service"`
	Timestamp string            `json:"timestamp"`
	Missing   []string          `json:"missing"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// RegisterRoutes registers the probe on /api/contact and the /healthz alias
func (h *HealthChecker) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/api/contact", h.HealthCheck).Methods(http.MethodGet)
	r.HandleFunc("/healthz", h.HealthCheck).Methods(http.MethodGet)
}

// HealthCheck reports configuration completeness. It has no side effects.
func (h *HealthChecker) HealthCheck(w http.ResponseWriter, r *http.Request) {
	missing := h.mail.MissingKeys()
	response := HealthResponse{
		OK:        len(missing) == 0,
		Service:   ServiceName,
		Timestamp: h.now().UTC().Format(isoMillis),
		Missing:   missing,
	}

	if r.URL.Query().Get("mode") == "extended" {
		response.Checks = h.runChecks(r.Context())
		for _, result := range response.Checks {
			if result != "healthy" {
				response.OK = false
			}
		}
	}

	status := http.StatusOK
	if !response.OK {
		status = http.StatusServiceUnavailable
	}
	respondJSON(w, status, response)
}

func (h *HealthChecker) runChecks(ctx context.Context) map[string]string {
	h.mu.RLock()
	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	h.mu.RUnlock()
	sort.Strings(names)

	results := make(map[string]string, len(names))
	for _, name := range names {
		h.mu.RLock()
		check := h.checks[name]
		h.mu.RUnlock()

		checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := check(checkCtx)
		cancel()

		if err != nil {
			results[name] = "unhealthy: " + logpkg.SanitizeError(err)
		} else {
			results[name] = "healthy"
		}
	}
	return results
}
