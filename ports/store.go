package ports

import (
	"context"
	"errors"
	"time"

	"github.com/soulforge-labs/soulgate/core"
)

// ErrNotFound is returned when a store cannot find a record for a key.
var ErrNotFound = errors.New("store: not found")

// ChallengeStore holds live authentication challenges. Records expire after
// their TTL; SweepExpired reclaims anything the backend does not expire on
// its own.
type ChallengeStore interface {
	// Set stores a challenge keyed by its ID with the given TTL.
	Set(ctx context.Context, challenge *core.Challenge, ttl time.Duration) error

	// Get retrieves a challenge by ID. Returns ErrNotFound when absent.
	Get(ctx context.Context, id string) (*core.Challenge, error)

	// Delete removes a challenge by ID and reports whether this call removed
	// it. The compare-and-delete contract is what makes consumption atomic:
	// of two racing consumers exactly one observes true.
	Delete(ctx context.Context, id string) (bool, error)

	// DeleteByAddress removes every live challenge bound to the address.
	DeleteByAddress(ctx context.Context, address string) error

	// SweepExpired removes expired challenges and reports how many were removed.
	SweepExpired(ctx context.Context) (int, error)

	// Count reports the number of live challenges.
	Count(ctx context.Context) (int, error)
}

// SessionStore holds live sessions, indexed by bearer and refresh credential.
type SessionStore interface {
	// Set stores a session under both of its credentials with the given TTL.
	Set(ctx context.Context, session *core.Session, ttl time.Duration) error

	// GetByToken retrieves a session by its bearer token.
	GetByToken(ctx context.Context, token string) (*core.Session, error)

	// GetByRefreshToken retrieves a session by its refresh token.
	GetByRefreshToken(ctx context.Context, refreshToken string) (*core.Session, error)

	// Delete removes a session and both credential indexes, reporting whether
	// this call removed it. Refresh rotation relies on the same
	// compare-and-delete contract as challenge consumption.
	Delete(ctx context.Context, sessionID string) (bool, error)

	// SweepExpired removes sessions whose refresh capability has lapsed.
	SweepExpired(ctx context.Context) (int, error)

	// Count reports the number of live sessions.
	Count(ctx context.Context) (int, error)
}
