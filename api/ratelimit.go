package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"maintflow/logger"
)

// RateLimiter is a fixed-window counter kept in Redis. Each caller gets limit
// mutating requests per window; reads are never counted.
type RateLimiter struct {
	client redis.Cmdable
	limit  int
	window time.Duration
	prefix string
	now    func() time.Time
	log    *zap.Logger
}

func NewRateLimiter(client redis.Cmdable, limit int, window time.Duration, log *zap.Logger) *RateLimiter {
	if window < time.Second {
		window = time.Minute
	}
	return &RateLimiter{
		client: client,
		limit:  limit,
		window: window,
		prefix: "maintflow:ratelimit",
		now:    time.Now,
		log:    logger.OrNop(log),
	}
}

// Middleware counts the request against the caller's window. A Redis failure
// lets the request through.
func (l *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if l == nil || l.limit <= 0 || isRead(c.Request.Method) {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		bucket := l.now().Unix() / int64(l.window.Seconds())
		key := fmt.Sprintf("%s:%s:%d", l.prefix, l.subject(c), bucket)

		count, err := l.client.Incr(ctx, key).Result()
		if err != nil {
			l.log.Warn("rate limit counter unavailable", zap.String("key", key), zap.Error(err))
			c.Next()
			return
		}
		if count == 1 {
			if err := l.client.Expire(ctx, key, l.window).Err(); err != nil {
				l.log.Warn("rate limit expiry not set", zap.String("key", key), zap.Error(err))
			}
		}

		remaining := int64(l.limit) - count
		if remaining < 0 {
			remaining = 0
		}
		c.Header("X-RateLimit-Limit", strconv.Itoa(l.limit))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))

		if count > int64(l.limit) {
			c.Header("Retry-After", strconv.Itoa(int(l.window.Seconds())))
			abortWith(c, errRateLimited)
			return
		}
		c.Next()
	}
}

func (l *RateLimiter) subject(c *gin.Context) string {
	if claims, ok := claimsFrom(c); ok && claims.UserID != "" {
		return "user:" + claims.UserID
	}
	return "ip:" + c.ClientIP()
}

func isRead(method string) bool {
	return method == http.MethodGet || method == http.MethodHead || method == http.MethodOptions
}
