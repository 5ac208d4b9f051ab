// Package ratelimit implements the per-identity sliding-window limit applied
// to contact submissions.
package ratelimit

import (
	"context"
	"time"
)

const (
	// DefaultWindow is the trailing window over which requests are counted
	DefaultWindow = 10 * time.Minute
	// DefaultMaxRequests is the number of accepted requests allowed per window
	DefaultMaxRequests = 5
)

// Limiter decides whether an identity may make another request. Only accepted
// requests consume a slot; a rejected attempt is not recorded.
type Limiter interface {
	Allow(ctx context.Context, identity string) (bool, error)
}

// Options configures a sliding-window limiter.
type Options struct {
	Window      time.Duration
	MaxRequests int
}

func (o Options) withDefaults() Options {
	if o.Window <= 0 {
		o.Window = DefaultWindow
	}
	if o.MaxRequests <= 0 {
		o.MaxRequests = DefaultMaxRequests
	}
	return o
}
