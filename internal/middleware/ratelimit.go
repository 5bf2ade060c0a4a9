package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/guttosm/firdspulse/internal/domain/dto"
)

// Defaults used by RateLimiter.
var (
	window = time.Minute
	limit  = 60
)

type client struct {
	windowStart time.Time
	count       int
}

// limiter is a fixed-window per-IP request counter.
// In-memory only: each instance counts on its own.
type limiter struct {
	mu      sync.Mutex
	clients map[string]*client
	limit   int
	window  time.Duration
	swept   time.Time
}

func newLimiter(limit int, window time.Duration) *limiter {
	return &limiter{clients: make(map[string]*client), limit: limit, window: window}
}

// allow counts one request for key at now and reports whether it is within the limit.
func (l *limiter) allow(key string, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.swept) > l.window {
		for k, cl := range l.clients {
			if now.Sub(cl.windowStart) > l.window {
				delete(l.clients, k)
			}
		}
		l.swept = now
	}

	cl, ok := l.clients[key]
	if !ok || now.Sub(cl.windowStart) > l.window {
		cl = &client{windowStart: now}
		l.clients[key] = cl
	}
	cl.count++
	return cl.count <= l.limit
}

// RateLimiter limits each client IP to the package defaults (60 requests per minute).
func RateLimiter() gin.HandlerFunc {
	return NewRateLimiter(limit, window)
}

// NewRateLimiter limits each client IP to n requests per window and answers 429 beyond that.
func NewRateLimiter(n int, per time.Duration) gin.HandlerFunc {
	l := newLimiter(n, per)
	retryAfter := retryAfterSeconds(per)
	return func(c *gin.Context) {
		if !l.allow(c.ClientIP(), time.Now()) {
			c.Header("Retry-After", retryAfter)
			c.AbortWithStatusJSON(http.StatusTooManyRequests, dto.NewErrorResponse("rate limit exceeded", nil))
			return
		}
		c.Next()
	}
}

// retryAfterSeconds renders d as Retry-After delta-seconds, rounded up and at least 1.
func retryAfterSeconds(d time.Duration) string {
	secs := int((d + time.Second - 1) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return strconv.Itoa(secs)
}
