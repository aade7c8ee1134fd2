package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/brewbuds/server/config"
	"github.com/brewbuds/server/metrics"
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

const limiterIdle = 10 * time.Minute

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// limiterSet holds one token bucket per client IP. Idle buckets are swept
// on access at most once per limiterIdle.
type limiterSet struct {
	mu        sync.Mutex
	rps       rate.Limit
	burst     int
	clients   map[string]*clientLimiter
	lastSweep time.Time
}

func (s *limiterSet) get(ip string, now time.Time) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()
	if now.Sub(s.lastSweep) > limiterIdle {
		for k, cl := range s.clients {
			if now.Sub(cl.lastSeen) > limiterIdle {
				delete(s.clients, k)
			}
		}
		s.lastSweep = now
	}
	cl, ok := s.clients[ip]
	if !ok {
		cl = &clientLimiter{limiter: rate.NewLimiter(s.rps, s.burst)}
		s.clients[ip] = cl
	}
	cl.lastSeen = now
	return cl.limiter
}

// RateLimit applies a per-IP token bucket of sec.RateLimitRPS requests per
// second with sec.RateLimitBurst burst. A non-positive rate disables it.
func RateLimit(sec config.SecurityConfig) gin.HandlerFunc {
	if sec.RateLimitRPS <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	burst := sec.RateLimitBurst
	if burst <= 0 {
		burst = int(math.Ceil(sec.RateLimitRPS))
	}
	set := &limiterSet{
		rps:       rate.Limit(sec.RateLimitRPS),
		burst:     burst,
		clients:   make(map[string]*clientLimiter),
		lastSweep: time.Now(),
	}
	retryAfter := strconv.Itoa(int(math.Max(1, math.Ceil(1/sec.RateLimitRPS))))

	return func(c *gin.Context) {
		if !set.get(c.ClientIP(), time.Now()).Allow() {
			metrics.RateLimited.Inc()
			c.Header("Retry-After", retryAfter)
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many requests", "code": "rate_limited"})
			return
		}
		c.Next()
	}
}
