package core

import "time"

// Challenge is a one-time message a wallet must sign to prove key possession.
type Challenge struct {
	ID        string    `json:"id"`         // Unique identifier for the challenge
	Address   string    `json:"address"`    // Lowercased wallet address the challenge is bound to
	Nonce     string    `json:"nonce"`      // Random nonce embedded in the message
	Message   string    `json:"message"`    // Human-readable message presented to the signer
	IssuedAt  time.Time `json:"issued_at"`  // When the challenge was created
	ExpiresAt time.Time `json:"expires_at"` // When the challenge expires
}

// Expired reports whether the challenge is past its expiry at the given time.
func (c *Challenge) Expired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}

// Session is an authenticated wallet session backed by a pair of opaque
// credentials. A wallet may hold several concurrent sessions (one per device).
type Session struct {
	ID            string    `json:"id"`             // Unique session identifier
	Address       string    `json:"address"`        // Lowercased wallet address
	Token         string    `json:"token"`          // Opaque bearer credential
	RefreshToken  string    `json:"refresh_token"`  // Opaque refresh credential
	IssuedAt      time.Time `json:"issued_at"`      // When the session was created
	ExpiresAt     time.Time `json:"expires_at"`     // When the bearer token expires
	RefreshExpiry time.Time `json:"refresh_expiry"` // When the refresh capability expires
}

// SessionInfo is the soft-fail result of validating a bearer token. It is
// always well-formed: an unknown, malformed, expired or revoked token yields
// Authenticated == false and zero values elsewhere.
type SessionInfo struct {
	Authenticated bool          `json:"authenticated"`
	Address       string        `json:"address,omitempty"`
	SessionID     string        `json:"session_id,omitempty"`
	ExpiresAt     time.Time     `json:"expires_at,omitzero"`
	TimeRemaining time.Duration `json:"time_remaining,omitempty"`
	Expired       bool          `json:"expired,omitempty"`
}

// Unauthenticated is the SessionInfo returned for any token that does not
// resolve to a live session.
func Unauthenticated() SessionInfo {
	return SessionInfo{Authenticated: false}
}
