package app

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/pratyushraj/noticebazaar-sub008/internal/logger"
)

type rateBucket struct {
	tokens     float64
	lastRefill time.Time
}

// rateLimiter is a per-client token bucket refilled at rpm/60 tokens per
// second, with a burst of rpm.
type rateLimiter struct {
	now       func() time.Time
	rpm       int
	mu        sync.Mutex
	buckets   map[string]*rateBucket
	lastSweep time.Time
}

// sweepInterval bounds how often idle buckets are dropped.
const sweepInterval = time.Minute

func newRateLimiter(rpm int) *rateLimiter {
	return &rateLimiter{
		now:     time.Now,
		rpm:     rpm,
		buckets: make(map[string]*rateBucket),
	}
}

// allow reports whether key may proceed and, if not, how many seconds until
// a token is available.
func (r *rateLimiter) allow(key string) (bool, int) {
	now := r.now()
	capacity := float64(r.rpm)
	refillPerSec := capacity / 60.0

	r.mu.Lock()
	defer r.mu.Unlock()

	if now.Sub(r.lastSweep) >= sweepInterval {
		r.sweep(now, capacity, refillPerSec)
		r.lastSweep = now
	}

	bucket, ok := r.buckets[key]
	if !ok {
		r.buckets[key] = &rateBucket{tokens: capacity - 1, lastRefill: now}
		return true, 0
	}
	if elapsed := now.Sub(bucket.lastRefill).Seconds(); elapsed > 0 {
		bucket.tokens = math.Min(capacity, bucket.tokens+elapsed*refillPerSec)
		bucket.lastRefill = now
	}
	if bucket.tokens >= 1 {
		bucket.tokens--
		return true, 0
	}
	retry := int(math.Ceil((1 - bucket.tokens) / refillPerSec))
	if retry < 1 {
		retry = 1
	}
	return false, retry
}

// sweep drops buckets that would be full by now. A new bucket starts full,
// so forgetting them changes no decision.
func (r *rateLimiter) sweep(now time.Time, capacity, refillPerSec float64) {
	for key, b := range r.buckets {
		if b.tokens+now.Sub(b.lastRefill).Seconds()*refillPerSec >= capacity {
			delete(r.buckets, key)
		}
	}
}

// RateLimit throttles model-backed routes per client IP. rpm <= 0 disables it.
func RateLimit(rpm int) gin.HandlerFunc {
	if rpm <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	return rateLimitWith(newRateLimiter(rpm))
}

func rateLimitWith(limiter *rateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		ok, retry := limiter.allow(c.ClientIP())
		if !ok {
			logger.Warn(c.Request.Context(), "rate limit exceeded", "client_ip", c.ClientIP(), "retry_after", retry)
			c.Header("Retry-After", strconv.Itoa(retry))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "rate limit exceeded, please try again later",
			})
			return
		}
		c.Next()
	}
}
