package middlewares

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

type clientBucket struct {
	tokens   float64
	lastSeen time.Time
}

// RateLimiter is a per-IP token bucket. Buckets refill at rate tokens
// per second up to burst; a request with an empty bucket is rejected
// with 429.
type RateLimiter struct {
	mu      sync.Mutex
	rate    float64
	burst   float64
	clients map[string]*clientBucket
}

func NewRateLimiter(rate, burst int) *RateLimiter {
	return &RateLimiter{
		rate:    float64(rate),
		burst:   float64(burst),
		clients: make(map[string]*clientBucket),
	}
}

// allow refills and drains the caller's bucket under the lock.
func (rl *RateLimiter) allow(ip string, now time.Time) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	bucket, ok := rl.clients[ip]
	if !ok {
		bucket = &clientBucket{tokens: rl.burst, lastSeen: now}
		rl.clients[ip] = bucket
		rl.maybeSweep(now)
	}

	bucket.tokens += now.Sub(bucket.lastSeen).Seconds() * rl.rate
	if bucket.tokens > rl.burst {
		bucket.tokens = rl.burst
	}
	bucket.lastSeen = now

	if bucket.tokens < 1 {
		return false
	}
	bucket.tokens--
	return true
}

// maybeSweep drops buckets idle long enough to have refilled completely.
// Called with the lock held, only when a new client appears, so steady
// traffic never pays for it.
func (rl *RateLimiter) maybeSweep(now time.Time) {
	if len(rl.clients) < 10_000 {
		return
	}
	idle := time.Duration(rl.burst/rl.rate) * time.Second
	for ip, bucket := range rl.clients {
		if now.Sub(bucket.lastSeen) > idle {
			delete(rl.clients, ip)
		}
	}
}

func (rl *RateLimiter) RateLimitMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !rl.allow(c.ClientIP(), time.Now()) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}
