package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// RateLimitRule bounds request throughput for a route group.
type RateLimitRule struct {
	Rate  rate.Limit
	Burst int
}

// RateLimiter keeps one token bucket per client key.
type RateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rule     RateLimitRule
}

// NewRateLimiter constructs a limiter for the given rule.
func NewRateLimiter(rule RateLimitRule) *RateLimiter {
	return &RateLimiter{
		limiters: make(map[string]*rate.Limiter),
		rule:     rule,
	}
}

func (l *RateLimiter) limiterFor(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	lim, ok := l.limiters[key]
	if !ok {
		lim = rate.NewLimiter(l.rule.Rate, l.rule.Burst)
		l.limiters[key] = lim
	}
	return lim
}

// Allow reports whether a request under key may proceed, and how long to wait otherwise.
func (l *RateLimiter) Allow(key string) (bool, time.Duration) {
	if l == nil || l.rule.Rate <= 0 || l.rule.Burst <= 0 {
		return true, 0
	}
	lim := l.limiterFor(key)
	res := lim.Reserve()
	if !res.OK() {
		return false, time.Second
	}
	delay := res.Delay()
	if delay > 0 {
		res.Cancel()
		return false, delay
	}
	return true, 0
}

// RateLimit rejects requests exceeding the rule, keyed by client IP.
func RateLimit(limiter *RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := strings.TrimSpace(c.ClientIP())
		allowed, retryAfter := limiter.Allow(key)
		if allowed {
			c.Next()
			return
		}
		retryAfterSeconds := int(retryAfter / time.Second)
		if retryAfterSeconds <= 0 {
			retryAfterSeconds = 1
		}
		c.Header("Retry-After", strconv.Itoa(retryAfterSeconds))
		c.JSON(http.StatusTooManyRequests, gin.H{
			"error":        "rate_limited",
			"retryAfterMs": int(retryAfter / time.Millisecond),
		})
		c.Abort()
	}
}
