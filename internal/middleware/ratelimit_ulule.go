package middleware

import (
	"fmt"
	"net/http"
	"strconv"

	logpkg "github.com/benvon/contact-relay/internal/logger"
	"github.com/benvon/contact-relay/internal/request"
	"github.com/redis/go-redis/v9"
	"github.com/ulule/limiter/v3"
	stdlibmw "github.com/ulule/limiter/v3/drivers/middleware/stdlib"
	memorystore "github.com/ulule/limiter/v3/drivers/store/memory"
	redisstore "github.com/ulule/limiter/v3/drivers/store/redis"
	"go.uber.org/zap"
)

const (
	// DefaultGlobalRate is the per-client flood guard applied to every route
	DefaultGlobalRate = "60-M"

	globalRateKeyPrefix = "contact:global"

	// MessageTooManyRequests is returned when the flood guard trips
	MessageTooManyRequests = "Too many requests. Please try again later."
)

// GlobalRateLimit returns a coarse per-client limiter built on ulule/limiter.
// It counts every request, unlike the contact submission limiter, and uses
// Redis when redisClient is non-nil. Store errors fail open.
func GlobalRateLimit(rate string, redisClient *redis.Client, logger *zap.Logger) (func(http.Handler) http.Handler, error) {
	if rate == "" {
		rate = DefaultGlobalRate
	}
	parsed, err := limiter.NewRateFromFormatted(rate)
	if err != nil {
		return nil, fmt.Errorf("invalid global rate %q: %w", rate, err)
	}

	var store limiter.Store
	if redisClient != nil {
		store, err = redisstore.NewStoreWithOptions(redisClient, limiter.StoreOptions{Prefix: globalRateKeyPrefix})
		if err != nil {
			return nil, fmt.Errorf("failed to create redis limiter store: %w", err)
		}
	} else {
		store = memorystore.NewStoreWithOptions(limiter.StoreOptions{
			Prefix:          globalRateKeyPrefix,
			CleanUpInterval: limiter.DefaultCleanUpInterval,
		})
	}

	instance := limiter.New(store, parsed)
	retryAfter := strconv.Itoa(int(parsed.Period.Seconds()))

	return func(next http.Handler) http.Handler {
		mw := stdlibmw.NewMiddleware(instance,
			stdlibmw.WithKeyGetter(request.ClientIP),
			stdlibmw.WithLimitReachedHandler(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Retry-After", retryAfter)
				writeError(w, r, http.StatusTooManyRequests, MessageTooManyRequests, logger)
			}),
			stdlibmw.WithErrorHandler(func(w http.ResponseWriter, r *http.Request, err error) {
				// fail open: a store outage must not take the form down
				logger.Error("global_rate_limit_store_error",
					zap.String("error", logpkg.SanitizeError(err)),
				)
				next.ServeHTTP(w, r)
			}),
		)
		return mw.Handler(next)
	}, nil
}
