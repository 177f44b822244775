package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

const (
	visitorTTL    = 5 * time.Minute
	pruneInterval = 3 * time.Minute
	maxTrackedIPs = 10000
)

type visitor struct {
	limiter *rate.Limiter
	seen    time.Time
}

// RateLimiter enforces a per-client-IP token bucket.
type RateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	rps      rate.Limit
	burst    int
}

// NewRateLimiter allows rps requests per second per IP with the given burst.
func NewRateLimiter(rps float64, burst int) *RateLimiter {
	rl := &RateLimiter{
		visitors: make(map[string]*visitor),
		rps:      rate.Limit(rps),
		burst:    burst,
	}
	go func() {
		for range time.Tick(pruneInterval) {
			rl.prune()
		}
	}()
	return rl
}

func (rl *RateLimiter) allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	v := rl.visitors[ip]
	if v == nil {
		// A flood of spoofed IPs must not grow the map without bound
		if len(rl.visitors) >= maxTrackedIPs {
			rl.pruneLocked(0)
		}
		v = &visitor{limiter: rate.NewLimiter(rl.rps, rl.burst)}
		rl.visitors[ip] = v
	}
	v.seen = time.Now()
	return v.limiter.Allow()
}

func (rl *RateLimiter) prune() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.pruneLocked(visitorTTL)
}

func (rl *RateLimiter) pruneLocked(ttl time.Duration) {
	cutoff := time.Now().Add(-ttl)
	for ip, v := range rl.visitors {
		if v.seen.Before(cutoff) {
			delete(rl.visitors, ip)
		}
	}
}

// Middleware rejects requests over the limit with 429.
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !rl.allow(c.ClientIP()) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"code":    429,
				"message": "too many requests, please try again later",
			})
			return
		}
		c.Next()
	}
}

// RateLimit builds a limiter and returns its middleware in one call.
func RateLimit(rps float64, burst int) gin.HandlerFunc {
	return NewRateLimiter(rps, burst).Middleware()
}
