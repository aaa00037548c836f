package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"github.com/flarexio/marketfit/conf"
)

// RateLimiter keeps one token bucket per client IP. Idle buckets expire.
type RateLimiter struct {
	limit    conf.Limit
	limiters *cache.Cache
}

func NewRateLimiter(limit conf.Limit) *RateLimiter {
	ttl := 2 * limit.Per
	if ttl < time.Minute {
		ttl = time.Minute
	}

	return &RateLimiter{
		limit:    limit,
		limiters: cache.New(ttl, 2*ttl),
	}
}

func (rl *RateLimiter) newLimiter() *rate.Limiter {
	every := rl.limit.Per / time.Duration(rl.limit.Requests)
	return rate.NewLimiter(rate.Every(every), rl.limit.Requests)
}

// Allow reports whether key may make a request now.
func (rl *RateLimiter) Allow(key string) bool {
	if rl.limit.Requests <= 0 {
		return true
	}

	limiter := rl.newLimiter()
	if err := rl.limiters.Add(key, limiter, cache.DefaultExpiration); err != nil {
		v, ok := rl.limiters.Get(key)
		if ok {
			limiter = v.(*rate.Limiter)
		}
	}

	// sliding expiry, an active client keeps its bucket
	rl.limiters.SetDefault(key, limiter)

	return limiter.Allow()
}

// Middleware limits every route except the given ones, which carry their own limiter.
func (rl *RateLimiter) Middleware(except ...string) gin.HandlerFunc {
	msg := "Rate limit exceeded: " + strconv.Itoa(rl.limit.Requests) + " per " + rl.limit.Per.String()

	skip := make(map[string]struct{}, len(except))
	for _, path := range except {
		skip[path] = struct{}{}
	}

	return func(c *gin.Context) {
		if _, ok := skip[c.FullPath()]; ok {
			c.Next()
			return
		}

		if rl.Allow(c.ClientIP()) {
			c.Next()
			return
		}

		c.Header("Retry-After", strconv.Itoa(int(rl.limit.Per.Seconds())))
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": msg})
	}
}
