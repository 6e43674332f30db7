package http

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/soulforge-labs/soulgate/ports"
	"github.com/soulforge-labs/soulgate/service"
)

// SetupRouter wires the gin router: public auth routes behind the auth-class
// rate limit, the optional-auth status route, and the protected API behind
// the tiered limit plus required auth.
func SetupRouter(authService *service.AuthService, limiter ports.RateLimiter, quotas Quotas, logger *slog.Logger) *gin.Engine {
	if logger == nil {
		logger = slog.Default()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(RequestLogger(logger))

	handlers := NewAuthHandlers(authService, quotas, logger)

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	auth := router.Group("/auth")
	{
		limited := auth.Group("")
		limited.Use(RateLimit(limiter, "auth", quotas.Auth))
		{
			limited.POST("/challenge", handlers.Challenge)
			limited.POST("/verify", handlers.Verify)
			limited.POST("/refresh", handlers.Refresh)
		}

		// Logout is deliberately unthrottled: it must never fail outward.
		auth.POST("/logout", handlers.Logout)

		auth.GET("/status",
			OptionalAuth(authService),
			RateLimit(limiter, "status", quotas.Status),
			handlers.Status,
		)
	}

	api := router.Group("/api")
	api.Use(
		OptionalAuth(authService),
		TieredRateLimit(limiter, quotas),
		RequireAuth(),
	)
	{
		api.GET("/me", handlers.Me)
	}

	return router
}
