package logic

import (
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nas-ai/uploads-api/src/config"
	"golang.org/x/time/rate"
)

const (
	limiterTTL      = 10 * time.Minute
	cleanupInterval = 2 * time.Minute
)

// RateLimiter limits requests per client IP with a token bucket per IP.
// Buckets idle for longer than the TTL are dropped.
type RateLimiter struct {
	limiters map[string]*limiterEntry
	mu       sync.RWMutex
	rate     rate.Limit
	burst    int
	ttl      time.Duration
	stop     chan struct{}
	once     sync.Once
}

type limiterEntry struct {
	limiter        *rate.Limiter
	lastAccessUnix int64 // atomic
}

// NewRateLimiter builds a limiter from rate_limit_per_min. A non-positive
// limit disables limiting.
func NewRateLimiter(cfg *config.Config) *RateLimiter {
	return NewRateLimiterPerMinute(cfg.RateLimitPerMin)
}

// NewRateLimiterPerMinute is NewRateLimiter for an explicit limit, used for
// tighter limits on individual route groups.
func NewRateLimiterPerMinute(perMin int) *RateLimiter {
	rl := &RateLimiter{
		limiters: make(map[string]*limiterEntry),
		rate:     rate.Limit(float64(perMin) / 60.0),
		burst:    perMin,
		ttl:      limiterTTL,
		stop:     make(chan struct{}),
	}
	if perMin > 0 {
		go rl.cleanupLoop()
	}
	return rl
}

// Allow reports whether ip may make another request now.
func (rl *RateLimiter) Allow(ip string) bool {
	if rl.burst <= 0 {
		return true
	}
	return rl.getLimiter(ip).Allow()
}

// Stop ends the background cleanup.
func (rl *RateLimiter) Stop() {
	rl.once.Do(func() { close(rl.stop) })
}

func (rl *RateLimiter) getLimiter(ip string) *rate.Limiter {
	now := time.Now().Unix()

	rl.mu.RLock()
	if entry, ok := rl.limiters[ip]; ok {
		atomic.StoreInt64(&entry.lastAccessUnix, now)
		rl.mu.RUnlock()
		return entry.limiter
	}
	rl.mu.RUnlock()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	// Double-check after acquiring write lock
	if entry, ok := rl.limiters[ip]; ok {
		atomic.StoreInt64(&entry.lastAccessUnix, now)
		return entry.limiter
	}

	limiter := rate.NewLimiter(rl.rate, rl.burst)
	rl.limiters[ip] = &limiterEntry{limiter: limiter, lastAccessUnix: now}
	return limiter
}

func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanup(time.Now())
		case <-rl.stop:
			return
		}
	}
}

func (rl *RateLimiter) cleanup(now time.Time) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	removed := 0
	for ip, entry := range rl.limiters {
		lastAccess := time.Unix(atomic.LoadInt64(&entry.lastAccessUnix), 0)
		if now.Sub(lastAccess) > rl.ttl {
			delete(rl.limiters, ip)
			removed++
		}
	}
	return removed
}

// Middleware rejects requests over the limit with 429.
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	retryAfter := 60
	if rl.rate > 0 {
		retryAfter = int(1/float64(rl.rate)) + 1
	}

	return func(c *gin.Context) {
		if rl.Allow(c.ClientIP()) {
			c.Next()
			return
		}

		c.Header("Retry-After", strconv.Itoa(retryAfter))
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"error": gin.H{
				"code":        "rate_limit_exceeded",
				"message":     "Too many requests. Please try again later.",
				"request_id":  c.GetString("request_id"),
				"retry_after": retryAfter,
			},
		})
	}
}
