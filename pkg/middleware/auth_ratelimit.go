package middleware

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/recoverly/followup-agent/pkg/errors"
)

// AuthRateLimiter throttles credential endpoints per client IP, with a
// penalty block once the attempt window is exhausted.
type AuthRateLimiter struct {
	client      *redis.Client
	maxAttempts int
	window      time.Duration
	block       time.Duration
}

func NewAuthRateLimiter(client *redis.Client, maxAttempts, windowSec, blockSec int) *AuthRateLimiter {
	return &AuthRateLimiter{
		client:      client,
		maxAttempts: maxAttempts,
		window:      time.Duration(windowSec) * time.Second,
		block:       time.Duration(blockSec) * time.Second,
	}
}

func (l *AuthRateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		ip := c.ClientIP()
		attemptKey := "auth_ratelimit:" + ip
		blockKey := "auth_blocked:" + ip

		if n, err := l.client.Exists(ctx, blockKey).Result(); err == nil && n > 0 {
			ttl, _ := l.client.TTL(ctx, blockKey).Result()
			l.reject(c, int(ttl.Seconds()))
			return
		}

		count, err := l.client.Incr(ctx, attemptKey).Result()
		if err != nil {
			// Redis down; let the request through rather than lock
			// every tenant out of login.
			c.Next()
			return
		}
		if count == 1 {
			l.client.Expire(ctx, attemptKey, l.window)
		}

		if count > int64(l.maxAttempts) {
			l.client.Set(ctx, blockKey, "1", l.block)
			l.reject(c, int(l.block.Seconds()))
			return
		}

		c.Header("X-RateLimit-Limit", fmt.Sprintf("%d", l.maxAttempts))
		c.Header("X-RateLimit-Remaining", fmt.Sprintf("%d", l.maxAttempts-int(count)))
		c.Next()
	}
}

func (l *AuthRateLimiter) reject(c *gin.Context, retryAfter int) {
	c.Header("X-RateLimit-Limit", fmt.Sprintf("%d", l.maxAttempts))
	c.Header("X-RateLimit-Remaining", "0")
	c.Header("Retry-After", fmt.Sprintf("%d", retryAfter))
	errors.TooManyRequests(c, "too many authentication attempts")
	c.Abort()
}
