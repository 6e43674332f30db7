package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/soulforge-labs/soulgate/core"
	"github.com/soulforge-labs/soulgate/internal/eth"
	"github.com/soulforge-labs/soulgate/ports"
)

const (
	// DefaultChallengeTTL bounds how long a challenge stays signable.
	DefaultChallengeTTL = 5 * time.Minute

	// DefaultAccessTTL is the bearer token lifetime.
	DefaultAccessTTL = time.Hour

	// DefaultRefreshTTL is the refresh token lifetime.
	DefaultRefreshTTL = 7 * 24 * time.Hour

	nonceBytes      = 32
	credentialBytes = 32
)

// Config carries the token lifetimes. Zero fields fall back to the defaults.
type Config struct {
	ChallengeTTL time.Duration
	AccessTTL    time.Duration
	RefreshTTL   time.Duration
}

// AuthService handles the wallet challenge/response authentication flow:
// challenge issuance, signature verification, session minting, soft-fail
// validation, refresh rotation and idempotent revocation.
type AuthService struct {
	challenges ports.ChallengeStore
	sessions   ports.SessionStore
	eventPub   ports.EventPublisher
	logger     *slog.Logger

	challengeTTL time.Duration
	accessTTL    time.Duration
	refreshTTL   time.Duration
}

// NewAuthService creates a new authentication service.
func NewAuthService(
	challenges ports.ChallengeStore,
	sessions ports.SessionStore,
	eventPub ports.EventPublisher,
	logger *slog.Logger,
	cfg Config,
) *AuthService {
	if cfg.ChallengeTTL <= 0 {
		cfg.ChallengeTTL = DefaultChallengeTTL
	}
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = DefaultAccessTTL
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = DefaultRefreshTTL
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &AuthService{
		challenges:   challenges,
		sessions:     sessions,
		eventPub:     eventPub,
		logger:       logger,
		challengeTTL: cfg.ChallengeTTL,
		accessTTL:    cfg.AccessTTL,
		refreshTTL:   cfg.RefreshTTL,
	}
}

// CreateChallenge generates a new authentication challenge for the wallet.
// Concurrent challenges for the same wallet are independent; the first one
// consumed by a successful verify invalidates the rest.
func (s *AuthService) CreateChallenge(ctx context.Context, address string) (*core.Challenge, error) {
	if !eth.ValidAddress(address) {
		return nil, core.ErrInvalidAddress
	}
	address = eth.NormalizeAddress(address)

	nonce, err := randomHex(nonceBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	now := time.Now()
	challenge := &core.Challenge{
		ID:        uuid.New().String(),
		Address:   address,
		Nonce:     nonce,
		IssuedAt:  now,
		ExpiresAt: now.Add(s.challengeTTL),
	}
	challenge.Message = challengeMessage(challenge)

	if err := s.challenges.Set(ctx, challenge, s.challengeTTL); err != nil {
		return nil, fmt.Errorf("failed to store challenge: %w", err)
	}

	s.logger.Debug("challenge issued", "address", address, "challenge_id", challenge.ID)

	return challenge, nil
}

// Verify checks a signature over a previously issued challenge message and
// mints a session on success. The challenge is consumed, together with every
// other live challenge for the wallet, so none of them can be replayed.
func (s *AuthService) Verify(ctx context.Context, address, signature, challengeID string) (*core.Session, error) {
	if !eth.ValidAddress(address) {
		return nil, core.ErrInvalidAddress
	}
	address = eth.NormalizeAddress(address)

	challenge, err := s.challenges.Get(ctx, challengeID)
	if err != nil {
		if errors.Is(err, ports.ErrNotFound) {
			return nil, core.ErrChallengeNotFound
		}
		return nil, fmt.Errorf("failed to load challenge: %w", err)
	}

	if challenge.Expired(time.Now()) {
		return nil, core.ErrChallengeExpired
	}

	// A challenge only authenticates the wallet it was issued to.
	if challenge.Address != address {
		return nil, core.ErrChallengeNotFound
	}

	sig, err := eth.DecodeSignature(signature)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrInvalidSignature, err)
	}

	recovered, err := eth.RecoverSigner(challenge.Message, sig)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrSignatureMismatch, err)
	}
	if !eth.SameAddress(recovered.Hex(), address) {
		return nil, core.ErrSignatureMismatch
	}

	// Compare-and-delete is the single-use guarantee: of concurrent verifies
	// racing on the same challenge, only the one that removes it proceeds.
	consumed, err := s.challenges.Delete(ctx, challengeID)
	if err != nil {
		return nil, fmt.Errorf("failed to consume challenge: %w", err)
	}
	if !consumed {
		return nil, core.ErrChallengeNotFound
	}

	// Best-effort sibling invalidation; the consumed challenge is already gone.
	if err := s.challenges.DeleteByAddress(ctx, address); err != nil {
		s.logger.Warn("failed to invalidate sibling challenges", "error", err, "address", address)
	}

	session, err := s.issueSession(ctx, address)
	if err != nil {
		return nil, err
	}

	s.logger.Info("wallet authenticated", "address", address, "session_id", session.ID)

	return session, nil
}

// Validate resolves a bearer token to a SessionInfo. It never fails: any
// unknown, malformed, expired or revoked token yields an unauthenticated
// result so status endpoints can always report auth state.
func (s *AuthService) Validate(ctx context.Context, token string) core.SessionInfo {
	if token == "" {
		return core.Unauthenticated()
	}

	session, err := s.sessions.GetByToken(ctx, token)
	if err != nil {
		if !errors.Is(err, ports.ErrNotFound) {
			s.logger.Warn("session lookup failed", "error", err)
		}
		return core.Unauthenticated()
	}

	now := time.Now()
	if now.After(session.ExpiresAt) {
		return core.SessionInfo{Authenticated: false, Expired: true}
	}

	return core.SessionInfo{
		Authenticated: true,
		Address:       session.Address,
		SessionID:     session.ID,
		ExpiresAt:     session.ExpiresAt,
		TimeRemaining: session.ExpiresAt.Sub(now),
	}
}

// Refresh rotates a session's credentials. The old pair is invalidated before
// the new one is returned, so a stolen refresh token is useless after the
// legitimate holder rotates.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*core.Session, error) {
	if refreshToken == "" {
		return nil, core.ErrRefreshFailed
	}

	session, err := s.sessions.GetByRefreshToken(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, ports.ErrNotFound) {
			return nil, core.ErrRefreshFailed
		}
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	if time.Now().After(session.RefreshExpiry) {
		return nil, core.ErrRefreshFailed
	}

	// Only the caller that retires the old session may mint its replacement;
	// a concurrent refresh on the same token loses the race here.
	removed, err := s.sessions.Delete(ctx, session.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to rotate session: %w", err)
	}
	if !removed {
		return nil, core.ErrRefreshFailed
	}

	rotated, err := s.issueSession(ctx, session.Address)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("session rotated", "address", session.Address, "session_id", rotated.ID)

	return rotated, nil
}

// Revoke destroys the session behind a bearer token. It always reports
// success: logout must never block a client from clearing its local state,
// so unknown tokens and internal failures are swallowed.
func (s *AuthService) Revoke(ctx context.Context, token string) bool {
	if token == "" {
		return true
	}

	session, err := s.sessions.GetByToken(ctx, token)
	if err != nil {
		if !errors.Is(err, ports.ErrNotFound) {
			s.logger.Warn("session lookup failed during logout", "error", err)
		}
		return true
	}

	if _, err := s.sessions.Delete(ctx, session.ID); err != nil {
		s.logger.Warn("failed to delete session during logout", "error", err, "session_id", session.ID)
		return true
	}

	if s.eventPub != nil {
		if err := s.eventPub.PublishLogout(ctx, session.Address, session.ID); err != nil {
			s.logger.Warn("failed to publish logout event", "error", err)
		}
	}

	s.logger.Info("session revoked", "address", session.Address, "session_id", session.ID)

	return true
}

// ActiveSessions reports the number of live sessions.
func (s *AuthService) ActiveSessions(ctx context.Context) (int, error) {
	return s.sessions.Count(ctx)
}

// ActiveChallenges reports the number of live challenges.
func (s *AuthService) ActiveChallenges(ctx context.Context) (int, error) {
	return s.challenges.Count(ctx)
}

// SweepExpired reclaims expired challenges and sessions from both stores.
func (s *AuthService) SweepExpired(ctx context.Context) {
	if n, err := s.challenges.SweepExpired(ctx); err != nil {
		s.logger.Warn("challenge sweep failed", "error", err)
	} else if n > 0 {
		s.logger.Debug("swept expired challenges", "count", n)
	}

	if n, err := s.sessions.SweepExpired(ctx); err != nil {
		s.logger.Warn("session sweep failed", "error", err)
	} else if n > 0 {
		s.logger.Debug("swept expired sessions", "count", n)
	}
}

// RunSweeper sweeps both stores on the given interval until ctx is done.
func (s *AuthService) RunSweeper(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.SweepExpired(ctx)
		}
	}
}

func (s *AuthService) issueSession(ctx context.Context, address string) (*core.Session, error) {
	token, err := randomHex(credentialBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}

	refreshToken, err := randomHex(credentialBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to generate refresh token: %w", err)
	}

	now := time.Now()
	session := &core.Session{
		ID:            uuid.New().String(),
		Address:       address,
		Token:         token,
		RefreshToken:  refreshToken,
		IssuedAt:      now,
		ExpiresAt:     now.Add(s.accessTTL),
		RefreshExpiry: now.Add(s.refreshTTL),
	}

	if err := s.sessions.Set(ctx, session, s.refreshTTL); err != nil {
		return nil, fmt.Errorf("failed to store session: %w", err)
	}

	if s.eventPub != nil {
		if err := s.eventPub.PublishLogin(ctx, session.Address, session.ID); err != nil {
			s.logger.Warn("failed to publish login event", "error", err)
		}
	}

	return session, nil
}

// challengeMessage renders the deterministic text the wallet signs. It embeds
// the address, nonce and expiry so the signer can confirm what is being
// signed and the signature cannot be replayed for another wallet.
func challengeMessage(c *core.Challenge) string {
	return fmt.Sprintf(
		"soulgate wants you to verify ownership of wallet:\n%s\n\nNonce: %s\nIssued At: %s\nExpires At: %s",
		c.Address,
		c.Nonce,
		c.IssuedAt.UTC().Format(time.RFC3339),
		c.ExpiresAt.UTC().Format(time.RFC3339),
	)
}

func randomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
