package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/soulforge-labs/soulgate/ports"
)

type window struct {
	count     int
	resetTime time.Time
}

// MemoryRateLimiter is an in-memory fixed-window counter. Bursts aligned at
// window boundaries can momentarily exceed the nominal rate by up to 2x,
// which is acceptable for advisory abuse control.
type MemoryRateLimiter struct {
	mu      sync.Mutex
	windows map[string]*window
}

// NewMemoryRateLimiter creates a new in-memory rate limiter.
func NewMemoryRateLimiter() *MemoryRateLimiter {
	return &MemoryRateLimiter{
		windows: make(map[string]*window),
	}
}

func (l *MemoryRateLimiter) Check(ctx context.Context, key string, maxRequests int, windowSize time.Duration) (ports.RateLimitResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()

	w, ok := l.windows[key]
	if !ok || now.After(w.resetTime) {
		w = &window{resetTime: now.Add(windowSize)}
		l.windows[key] = w
	}

	// A fresh window goes through the same gate as a running one, so a zero
	// quota rejects its very first request.
	w.count++

	remaining := maxRequests - w.count
	if remaining < 0 {
		remaining = 0
	}

	return ports.RateLimitResult{
		Allowed:   w.count <= maxRequests,
		Remaining: remaining,
		ResetTime: w.resetTime,
	}, nil
}

func (l *MemoryRateLimiter) SweepExpired(ctx context.Context) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	swept := 0
	for key, w := range l.windows {
		if now.After(w.resetTime) {
			delete(l.windows, key)
			swept++
		}
	}
	return swept, nil
}
