package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"
)

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// limiterPool hands out one token bucket per key.
type limiterPool struct {
	mu    sync.Mutex
	m     map[string]*limiterEntry
	rps   float64
	burst int
	calls int
	now   func() time.Time
}

const (
	sweepEvery = 1000
	idleTTL    = 10 * time.Minute
)

func newLimiterPool(rps float64, burst int) *limiterPool {
	if rps <= 0 {
		rps = 1
	}
	if burst <= 0 {
		burst = 5
	}
	return &limiterPool{m: make(map[string]*limiterEntry), rps: rps, burst: burst, now: time.Now}
}

func (p *limiterPool) allow(key string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, ok := p.m[key]
	if !ok {
		e = &limiterEntry{limiter: rate.NewLimiter(rate.Limit(p.rps), p.burst)}
		p.m[key] = e
	}
	e.lastSeen = p.now()
	p.calls++
	if p.calls%sweepEvery == 0 {
		p.sweepLocked(idleTTL)
	}
	return e.limiter.AllowN(e.lastSeen, 1)
}

// sweep drops buckets idle for longer than ttl.
func (p *limiterPool) sweep(ttl time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sweepLocked(ttl)
}

func (p *limiterPool) sweepLocked(ttl time.Duration) {
	cutoff := p.now().Add(-ttl)
	for k, e := range p.m {
		if e.lastSeen.Before(cutoff) {
			delete(p.m, k)
		}
	}
}

// RateLimit limits requests per authenticated user. It must run after
// AuthMiddleware. rejected may be nil.
func RateLimit(rps float64, burst int, rejected prometheus.Counter) gin.HandlerFunc {
	pool := newLimiterPool(rps, burst)

	return func(c *gin.Context) {
		key := c.ClientIP()
		if v, ok := c.Get(UserIDKey); ok {
			key = "user:" + v.(uuid.UUID).String()
		}

		if !pool.allow(key) {
			if rejected != nil {
				rejected.Inc()
			}
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many requests"})
			return
		}

		c.Next()
	}
}
