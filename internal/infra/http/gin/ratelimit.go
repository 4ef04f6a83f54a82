package ginserver

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	gin "github.com/gin-gonic/gin"

	"hiddystays/internal/app/policies"
)

// RateLimit caps requests per principal, or per client IP when anonymous.
// A limiter outage lets traffic through.
func RateLimit(limiter policies.RateLimiter, scope string, limit int, window time.Duration, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := "ip:" + c.ClientIP()
		if p, ok := currentPrincipal(c); ok {
			key = "user:" + p.ID
		}
		allowed, err := limiter.Allow(c.Request.Context(), scope+":"+key, limit, window)
		if err != nil {
			if logger != nil {
				logger.Warn("rate limiter unavailable", "scope", scope, "error", err)
			}
			c.Next()
			return
		}
		if !allowed {
			c.Header("Retry-After", retryAfter(window))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": policies.ErrRateLimited.Error()})
			return
		}
		c.Next()
	}
}

func retryAfter(window time.Duration) string {
	return strconv.Itoa(max(int(window.Seconds()), 1))
}
