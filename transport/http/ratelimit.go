package http

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/soulforge-labs/soulgate/core"
	"github.com/soulforge-labs/soulgate/ports"
)

// Quota is a request budget for one endpoint class.
type Quota struct {
	MaxRequests int
	Window      time.Duration
}

// Quotas groups the per-class budgets. Classes use independent counters so
// exhausting one never blocks another.
type Quotas struct {
	Auth    Quota // challenge, verify, refresh
	Status  Quota // auth state checks
	APIAuth Quota // protected API, authenticated tier
	APIAnon Quota // protected API, anonymous tier
}

// DefaultQuotas are the budgets used when config leaves them unset.
func DefaultQuotas() Quotas {
	return Quotas{
		Auth:    Quota{MaxRequests: 20, Window: time.Minute},
		Status:  Quota{MaxRequests: 60, Window: time.Minute},
		APIAuth: Quota{MaxRequests: 100, Window: time.Hour},
		APIAnon: Quota{MaxRequests: 30, Window: time.Hour},
	}
}

// RateLimit throttles requests against the class quota, keyed by client IP.
func RateLimit(limiter ports.RateLimiter, class string, quota Quota) gin.HandlerFunc {
	return func(c *gin.Context) {
		applyQuota(c, limiter, class, quota)
	}
}

// TieredRateLimit picks the authenticated or anonymous quota based on the
// SessionInfo resolved by OptionalAuth. The two tiers count independently.
func TieredRateLimit(limiter ports.RateLimiter, quotas Quotas) gin.HandlerFunc {
	return func(c *gin.Context) {
		if SessionInfoFrom(c).Authenticated {
			applyQuota(c, limiter, "api:authed", quotas.APIAuth)
			return
		}
		applyQuota(c, limiter, "api:anon", quotas.APIAnon)
	}
}

func applyQuota(c *gin.Context, limiter ports.RateLimiter, class string, quota Quota) {
	key := class + ":" + c.ClientIP()

	result, err := limiter.Check(c.Request.Context(), key, quota.MaxRequests, quota.Window)
	if err != nil {
		// Advisory control only: a broken limiter must not take auth down.
		c.Next()
		return
	}

	c.Header("X-RateLimit-Limit", fmt.Sprintf("%d", quota.MaxRequests))
	c.Header("X-RateLimit-Remaining", fmt.Sprintf("%d", result.Remaining))
	c.Header("X-RateLimit-Reset", fmt.Sprintf("%d", result.ResetTime.Unix()))

	if !result.Allowed {
		throttledRequests.WithLabelValues(class).Inc()
		retryAfter := int(time.Until(result.ResetTime).Seconds())
		if retryAfter < 1 {
			retryAfter = 1
		}
		c.Header("Retry-After", fmt.Sprintf("%d", retryAfter))
		c.AbortWithStatusJSON(http.StatusTooManyRequests, errorResponse(core.CodeRateLimited, "too many requests"))
		return
	}

	c.Next()
}
