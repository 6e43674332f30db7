package http

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/soulforge-labs/soulgate/core"
	"github.com/soulforge-labs/soulgate/service"
)

// AuthHandlers contains HTTP handlers for the auth endpoints.
type AuthHandlers struct {
	authService *service.AuthService
	quotas      Quotas
	logger      *slog.Logger
}

// NewAuthHandlers creates new auth handlers.
func NewAuthHandlers(authService *service.AuthService, quotas Quotas, logger *slog.Logger) *AuthHandlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthHandlers{
		authService: authService,
		quotas:      quotas,
		logger:      logger,
	}
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func errorResponse(code, message string) gin.H {
	return gin.H{
		"success": false,
		"error":   errorBody{Code: code, Message: message},
	}
}

// writeError maps a domain error onto the wire taxonomy. Validation failures
// surface verbatim; anything unexpected is logged and returned as a generic
// internal error so nothing leaks.
func (h *AuthHandlers) writeError(c *gin.Context, err error) {
	code := core.CodeFor(err)

	var status int
	message := err.Error()
	switch code {
	case core.CodeValidation:
		status = http.StatusBadRequest
	case core.CodeChallengeNotFound, core.CodeChallengeExpired, core.CodeSignatureMismatch, core.CodeRefreshFailed:
		status = http.StatusUnauthorized
	case core.CodeRateLimited:
		status = http.StatusTooManyRequests
	default:
		status = http.StatusInternalServerError
		message = "internal server error"
		h.logger.Error("request failed", "error", err, "path", c.Request.URL.Path)
	}

	c.JSON(status, errorResponse(code, message))
}

// Challenge issues a new signing challenge for a wallet.
func (h *AuthHandlers) Challenge(c *gin.Context) {
	var req struct {
		Address string `json:"address" binding:"required,eth_addr"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(core.CodeValidation, "address must be a 0x-prefixed 20-byte hex address"))
		return
	}

	challenge, err := h.authService.CreateChallenge(c.Request.Context(), req.Address)
	if err != nil {
		h.writeError(c, err)
		return
	}

	challengesIssued.Inc()

	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"challenge_id": challenge.ID,
		"message":      challenge.Message,
		"expires_at":   challenge.ExpiresAt.UTC().Format(time.RFC3339),
	})
}

// Verify checks a signature over a challenge and returns a fresh token pair.
func (h *AuthHandlers) Verify(c *gin.Context) {
	var req struct {
		Address     string `json:"address" binding:"required,eth_addr"`
		Signature   string `json:"signature" binding:"required"`
		ChallengeID string `json:"challenge_id" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(core.CodeValidation, "address, signature and challenge_id are required"))
		return
	}

	session, err := h.authService.Verify(c.Request.Context(), req.Address, req.Signature, req.ChallengeID)
	if err != nil {
		h.writeError(c, err)
		return
	}

	loginsTotal.Inc()

	c.JSON(http.StatusOK, gin.H{
		"success":        true,
		"token":          session.Token,
		"refresh_token":  session.RefreshToken,
		"expires_at":     session.ExpiresAt.UTC().Format(time.RFC3339),
		"wallet_address": session.Address,
	})
}

// Refresh rotates a token pair.
func (h *AuthHandlers) Refresh(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnauthorized, errorResponse(core.CodeRefreshFailed, "refresh_token is required, please re-authenticate"))
		return
	}

	session, err := h.authService.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		if errors.Is(err, core.ErrRefreshFailed) {
			c.JSON(http.StatusUnauthorized, errorResponse(core.CodeRefreshFailed, "refresh token rejected, please re-authenticate"))
			return
		}
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":       true,
		"token":         session.Token,
		"refresh_token": session.RefreshToken,
		"expires_at":    session.ExpiresAt.UTC().Format(time.RFC3339),
	})
}

// Logout revokes the bearer session. It always reports success so clients can
// clear local credentials regardless of server-side state.
func (h *AuthHandlers) Logout(c *gin.Context) {
	h.authService.Revoke(c.Request.Context(), bearerToken(c))
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// Status reports auth state for an optional bearer token plus system-wide
// counters and the rate-limit tiers.
func (h *AuthHandlers) Status(c *gin.Context) {
	info := SessionInfoFrom(c)

	sessions, err := h.authService.ActiveSessions(c.Request.Context())
	if err != nil {
		h.logger.Warn("failed to count sessions", "error", err)
	}
	challenges, err := h.authService.ActiveChallenges(c.Request.Context())
	if err != nil {
		h.logger.Warn("failed to count challenges", "error", err)
	}

	activeSessions.Set(float64(sessions))
	activeChallenges.Set(float64(challenges))

	resp := gin.H{
		"authenticated": info.Authenticated,
		"system": gin.H{
			"active_sessions":   sessions,
			"active_challenges": challenges,
		},
		"rate_limits": gin.H{
			"auth":              quotaBody(h.quotas.Auth),
			"status":            quotaBody(h.quotas.Status),
			"api_authenticated": quotaBody(h.quotas.APIAuth),
			"api_anonymous":     quotaBody(h.quotas.APIAnon),
		},
	}
	if info.Authenticated {
		resp["session"] = gin.H{
			"wallet_address":         info.Address,
			"session_id":             info.SessionID,
			"expires_at":             info.ExpiresAt.UTC().Format(time.RFC3339),
			"time_remaining_seconds": int(info.TimeRemaining.Seconds()),
		}
	}

	c.JSON(http.StatusOK, resp)
}

// Me returns the wallet behind the authenticated session.
func (h *AuthHandlers) Me(c *gin.Context) {
	info := SessionInfoFrom(c)
	c.JSON(http.StatusOK, gin.H{
		"wallet_address": info.Address,
		"session_id":     info.SessionID,
	})
}

func quotaBody(q Quota) gin.H {
	return gin.H{
		"max_requests":   q.MaxRequests,
		"window_seconds": int(q.Window.Seconds()),
	}
}
