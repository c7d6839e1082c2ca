package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// visitor tracks the limiter for a single identifier
type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter manages per-identifier token buckets
type RateLimiter struct {
	visitors map[string]*visitor
	mu       sync.Mutex
	rate     rate.Limit
	burst    int
	cleanup  time.Duration
}

// NewRateLimiter creates a rate limiter allowing r requests per second
// with the given burst size.
func NewRateLimiter(r rate.Limit, b int) *RateLimiter {
	rl := &RateLimiter{
		visitors: make(map[string]*visitor),
		rate:     r,
		burst:    b,
		cleanup:  5 * time.Minute,
	}

	go rl.evictStale()

	return rl
}

// GetLimiter returns the limiter for an identifier, creating it on first use
func (rl *RateLimiter) GetLimiter(identifier string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	v, exists := rl.visitors[identifier]
	if !exists {
		v = &visitor{
			limiter:  rate.NewLimiter(rl.rate, rl.burst),
			lastSeen: time.Now(),
		}
		rl.visitors[identifier] = v
	} else {
		v.lastSeen = time.Now()
	}

	return v.limiter
}

func (rl *RateLimiter) evictStale() {
	ticker := time.NewTicker(rl.cleanup)
	defer ticker.Stop()

	for range ticker.C {
		rl.mu.Lock()
		for id, v := range rl.visitors {
			if time.Since(v.lastSeen) > rl.cleanup {
				delete(rl.visitors, id)
			}
		}
		rl.mu.Unlock()
	}
}

// PerIP creates middleware that rate limits by client IP
func PerIP(requestsPerSecond float64, burst int) gin.HandlerFunc {
	limiter := NewRateLimiter(rate.Limit(requestsPerSecond), burst)

	return func(c *gin.Context) {
		if !limiter.GetLimiter(c.ClientIP()).Allow() {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error": "Rate limit exceeded. Please try again later.",
			})
			c.Abort()
			return
		}
		c.Next()
	}
}

// PerUser creates middleware that rate limits by authenticated user ID
func PerUser(requestsPerSecond float64, burst int) gin.HandlerFunc {
	limiter := NewRateLimiter(rate.Limit(requestsPerSecond), burst)

	return func(c *gin.Context) {
		userID, ok := GetUserID(c)
		if !ok {
			// Not authenticated, IP limiting still applies
			c.Next()
			return
		}

		if !limiter.GetLimiter(userID).Allow() {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error": "Rate limit exceeded. Please slow down.",
			})
			c.Abort()
			return
		}
		c.Next()
	}
}

// WebSocketLimiter throttles messages on a single WebSocket connection
type WebSocketLimiter struct {
	limiter *rate.Limiter
}

// NewWebSocketLimiter creates a limiter allowing messagesPerMinute messages
func NewWebSocketLimiter(messagesPerMinute int) *WebSocketLimiter {
	return &WebSocketLimiter{
		limiter: rate.NewLimiter(rate.Limit(messagesPerMinute)/60.0, messagesPerMinute),
	}
}

// Allow reports whether another message may be processed now
func (wsl *WebSocketLimiter) Allow() bool {
	return wsl.limiter.Allow()
}
