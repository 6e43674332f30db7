package http

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/soulforge-labs/soulgate/core"
	"github.com/soulforge-labs/soulgate/service"
)

const sessionInfoKey = "sessionInfo"

// bearerToken extracts the token from the Authorization header. A missing or
// malformed header yields an empty token, not an error, so optional-auth
// endpoints can degrade to the unauthenticated path.
func bearerToken(c *gin.Context) string {
	auth := c.GetHeader("Authorization")
	if !strings.HasPrefix(auth, "Bearer ") {
		return ""
	}
	return strings.TrimPrefix(auth, "Bearer ")
}

// OptionalAuth resolves the bearer token to a SessionInfo and stores it in
// the request context. It never aborts; handlers decide whether to fall back
// to an unauthenticated code path.
func OptionalAuth(authService *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		info := authService.Validate(c.Request.Context(), bearerToken(c))
		c.Set(sessionInfoKey, info)
		c.Next()
	}
}

// RequireAuth short-circuits with 401 unless the request carries a valid
// session. It must run after OptionalAuth.
func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !SessionInfoFrom(c).Authenticated {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse(core.CodeUnauthorized, "authentication required"))
			return
		}
		c.Next()
	}
}

// SessionInfoFrom returns the SessionInfo placed in the context by
// OptionalAuth, or an unauthenticated one when absent.
func SessionInfoFrom(c *gin.Context) core.SessionInfo {
	v, ok := c.Get(sessionInfoKey)
	if !ok {
		return core.Unauthenticated()
	}
	info, ok := v.(core.SessionInfo)
	if !ok {
		return core.Unauthenticated()
	}
	return info
}

// RequestLogger logs each request with method, path, status and latency.
func RequestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency", time.Since(start),
			"ip", c.ClientIP(),
		)
	}
}
