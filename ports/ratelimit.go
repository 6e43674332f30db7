package ports

import (
	"context"
	"time"
)

// RateLimitResult describes the outcome of a rate-limit check.
type RateLimitResult struct {
	Allowed   bool
	Remaining int
	ResetTime time.Time
}

// RateLimiter is a fixed-window request counter. Keys compose an endpoint
// class with a client identity so distinct quota classes never contend.
// Counters are advisory abuse control, not a security boundary; losing them
// on restart is acceptable.
type RateLimiter interface {
	// Check counts a request against the window for key and reports whether
	// it is allowed. The first request after the window's reset time starts
	// a fresh window.
	Check(ctx context.Context, key string, maxRequests int, window time.Duration) (RateLimitResult, error)

	// SweepExpired drops counters whose window has lapsed.
	SweepExpired(ctx context.Context) (int, error)
}
