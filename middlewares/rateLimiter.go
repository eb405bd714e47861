package middlewares

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

// RateLimiter is a fixed-window request counter per client IP, shared
// across instances through Redis.
type RateLimiter struct {
	client *redis.Client
	limit  int64
	window time.Duration
}

func NewRateLimiter(client *redis.Client, limit int64, window time.Duration) *RateLimiter {
	return &RateLimiter{
		client: client,
		limit:  limit,
		window: window,
	}
}

func (rl *RateLimiter) RateLimitMiddleware(c *gin.Context) {
	key := "ratelimit:" + c.ClientIP()

	count, err := rl.client.Incr(c.Request.Context(), key).Result()
	if err != nil {
		c.AbortWithError(http.StatusInternalServerError, err)
		return
	}
	// first hit in the window starts the expiry
	if count == 1 {
		if err := rl.client.Expire(c.Request.Context(), key, rl.window).Err(); err != nil {
			c.AbortWithError(http.StatusInternalServerError, err)
			return
		}
	}

	if count > rl.limit {
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"error": fmt.Sprintf("Rate limit exceeded. Try again in %d seconds", int(rl.window.Seconds())),
		})
		return
	}

	c.Next()
}

// LoginThrottle is an in-process token bucket per client IP for the auth
// routes. Idle buckets are evicted by the cache.
type LoginThrottle struct {
	buckets *cache.Cache
	every   rate.Limit
	burst   int
}

func NewLoginThrottle(every time.Duration, burst int) *LoginThrottle {
	return &LoginThrottle{
		buckets: cache.New(15*time.Minute, 30*time.Minute),
		every:   rate.Every(every),
		burst:   burst,
	}
}

func (t *LoginThrottle) limiter(key string) *rate.Limiter {
	if v, ok := t.buckets.Get(key); ok {
		return v.(*rate.Limiter)
	}
	limiter := rate.NewLimiter(t.every, t.burst)
	if err := t.buckets.Add(key, limiter, cache.DefaultExpiration); err != nil {
		// lost the race; use the stored one
		if v, ok := t.buckets.Get(key); ok {
			return v.(*rate.Limiter)
		}
	}
	return limiter
}

func (t *LoginThrottle) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !t.limiter(c.ClientIP()).Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many attempts, slow down"})
			return
		}
		c.Next()
	}
}
