package middleware

import (
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Diggleda/PeptideWebsitewithkinesiology-sub003/pkg/redis"
	"github.com/Diggleda/PeptideWebsitewithkinesiology-sub003/pkg/response"
)

// RateLimit fixed-window limiter backed by redis. Authenticated callers
// are keyed by user id, anonymous ones by client IP. A nil client or a
// redis error lets the request through.
func RateLimit(rdb *redis.Client, prefix string, limit int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if rdb == nil || limit <= 0 {
			c.Next()
			return
		}

		subject := c.GetString("user_id")
		if subject == "" {
			subject = "ip:" + c.ClientIP()
		}
		key := fmt.Sprintf("rate_limit:%s:%s", prefix, subject)

		allowed, retryAfter, err := rdb.CheckRateLimit(c.Request.Context(), key, limit, window)
		if err != nil {
			c.Next()
			return
		}

		if !allowed {
			secs := int(math.Ceil(retryAfter.Seconds()))
			if secs < 1 {
				secs = 1
			}
			c.Header("Retry-After", strconv.Itoa(secs))
			response.TooManyRequests(c, 10004, "too many requests, please retry later")
			c.Abort()
			return
		}

		c.Next()
	}
}
