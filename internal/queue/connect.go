package queue

import (
	"context"
	"fmt"
	"time"

	logpkg "github.com/benvon/contact-relay/internal/logger"
	"go.uber.org/zap"
)

// RetryPolicy controls ConnectWithRetry's exponential backoff
type RetryPolicy struct {
	MaxRetries   int
	InitialDelay time.Duration
	MaxDelay     time.Duration
}

// DefaultRetryPolicy tolerates a broker that starts after the service
var DefaultRetryPolicy = RetryPolicy{
	MaxRetries:   10,
	InitialDelay: 2 * time.Second,
	MaxDelay:     30 * time.Second,
}

// ConnectWithRetry dials RabbitMQ, backing off between failed attempts
func ConnectWithRetry(ctx context.Context, amqpURL string, policy RetryPolicy, logger *zap.Logger) (*RabbitMQBus, error) {
	return retry(ctx, policy, logger, func() (*RabbitMQBus, error) {
		return NewRabbitMQBus(amqpURL)
	})
}

func retry[T any](ctx context.Context, policy RetryPolicy, logger *zap.Logger, dial func() (T, error)) (T, error) {
	if policy.MaxRetries <= 0 {
		policy.MaxRetries = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	var (
		zero    T
		lastErr error
	)
	for attempt := 0; attempt < policy.MaxRetries; attempt++ {
		conn, err := dial()
		if err == nil {
			return conn, nil
		}
		lastErr = err

		if attempt == policy.MaxRetries-1 {
			break
		}
		delay := policy.InitialDelay * time.Duration(1<<uint(attempt))
		if policy.MaxDelay > 0 && delay > policy.MaxDelay {
			delay = policy.MaxDelay
		}
		logger.Warn("failed_to_connect_to_rabbitmq_retrying",
			zap.Int("attempt", attempt+1),
			zap.Int("max_retries", policy.MaxRetries),
			zap.String("error", logpkg.SanitizeError(err)),
			zap.Duration("retry_delay", delay),
		)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, ctx.Err()
		case <-timer.C:
		}
	}
	return zero, fmt.Errorf("gave up after %d attempts: %w", policy.MaxRetries, lastErr)
}
