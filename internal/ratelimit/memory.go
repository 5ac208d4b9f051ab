package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemoryLimiter keeps request timestamps per identity in process memory.
// Each Allow call prunes, counts and appends under one lock, and Sweep drops
// identities with no timestamps inside the window.
type MemoryLimiter struct {
	opts    Options
	now     func() time.Time
	mu      sync.Mutex
	entries map[string][]time.Time
}

// NewMemoryLimiter creates an in-memory sliding-window limiter.
func NewMemoryLimiter(opts Options) *MemoryLimiter {
	return &MemoryLimiter{
		opts:    opts.withDefaults(),
		now:     time.Now,
		entries: make(map[string][]time.Time),
	}
}

// SetClock replaces the time source. Intended for tests.
func (l *MemoryLimiter) SetClock(now func() time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.now = now
}

// Allow implements Limiter.
func (l *MemoryLimiter) Allow(_ context.Context, identity string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	recent := prune(l.entries[identity], now, l.opts.Window)

	if len(recent) >= l.opts.MaxRequests {
		l.entries[identity] = recent
		return false, nil
	}

	l.entries[identity] = append(recent, now)
	return true, nil
}

// Sweep removes identities whose every timestamp has left the window and
// returns how many were evicted.
func (l *MemoryLimiter) Sweep() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	evicted := 0
	for identity, times := range l.entries {
		recent := prune(times, now, l.opts.Window)
		if len(recent) == 0 {
			delete(l.entries, identity)
			evicted++
			continue
		}
		l.entries[identity] = recent
	}
	return evicted
}

// Size returns the number of tracked identities.
func (l *MemoryLimiter) Size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Start runs Sweep every interval until ctx is cancelled. A non-positive
// interval defaults to the window length.
func (l *MemoryLimiter) Start(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = l.opts.Window
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.Sweep()
		}
	}
}

// prune drops timestamps at least window old. times is ordered, so the kept
// suffix is found by scanning from the front.
func prune(times []time.Time, now time.Time, window time.Duration) []time.Time {
	i := 0
	for i < len(times) && now.Sub(times[i]) >= window {
		i++
	}
	if i == 0 {
		return times
	}
	kept := make([]time.Time, len(times)-i)
	copy(kept, times[i:])
	return kept
}
