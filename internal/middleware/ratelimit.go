package middleware

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mx-space/console/internal/pkg/redis"
	"github.com/mx-space/console/internal/pkg/response"
	"go.uber.org/zap"
)

const (
	rateLimitMax    = 50
	rateLimitWindow = time.Second
)

// RateLimit enforces a per-IP fixed window of 50 requests per second for
// unauthenticated callers. A nil client disables the limit.
func RateLimit(rdb *redis.Client, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if rdb == nil || IsAuthenticated(c) {
			c.Next()
			return
		}

		ip := c.ClientIP()
		if ip == "" {
			c.Next()
			return
		}

		key := fmt.Sprintf("mx:rate_limit:%s:%d", ip, time.Now().Unix())
		count, err := rdb.IncrWindow(c.Request.Context(), key, rateLimitWindow+time.Second)
		if err != nil {
			c.Next()
			return
		}

		if count > rateLimitMax {
			if log != nil {
				log.Warn("rate limited", zap.String("ip", ip), zap.String("path", c.Request.URL.Path))
			}
			response.TooManyRequests(c)
			return
		}

		c.Next()
	}
}
