package handler

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	limiterSweepInterval = 5 * time.Minute
	limiterIdleEviction  = 10 * time.Minute
)

type visitor struct {
	bucket   *rate.Limiter
	lastSeen time.Time
	limited  bool // previous request from this IP was rejected
}

// visitorLimits keeps one token bucket per client IP. Buckets idle past
// limiterIdleEviction are evicted by a background sweep so the map cannot
// grow without bound under address churn.
type visitorLimits struct {
	mu       sync.Mutex
	rps      rate.Limit
	burst    int
	visitors map[string]*visitor
	logger   *zap.Logger
}

func newVisitorLimits(rps, burst int, logger *zap.Logger) *visitorLimits {
	v := &visitorLimits{
		rps:      rate.Limit(rps),
		burst:    burst,
		visitors: make(map[string]*visitor),
		logger:   logger,
	}
	go v.sweep()
	return v
}

func (v *visitorLimits) sweep() {
	for {
		time.Sleep(limiterSweepInterval)
		v.mu.Lock()
		for ip, vis := range v.visitors {
			if time.Since(vis.lastSeen) > limiterIdleEviction {
				delete(v.visitors, ip)
			}
		}
		v.mu.Unlock()
	}
}

// allow charges one token for ip. The first rejection in a run is logged;
// repeats are not, so a flood cannot flood the log as well.
func (v *visitorLimits) allow(ip string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	vis, ok := v.visitors[ip]
	if !ok {
		vis = &visitor{bucket: rate.NewLimiter(v.rps, v.burst)}
		v.visitors[ip] = vis
	}
	vis.lastSeen = time.Now()

	allowed := vis.bucket.Allow()
	if !allowed && !vis.limited {
		v.logger.Warn("rate limit exceeded", zap.String("client_ip", ip))
	}
	vis.limited = !allowed
	return allowed
}

// RateLimiter enforces a per-IP token bucket across all API routes. rps is
// the steady-state request rate, burst the bucket depth. Citizen intake and
// operator actions share one bucket per address; the engine sits behind a
// proxy, so c.ClientIP() reflects the forwarded caller.
func RateLimiter(rps, burst int, logger *zap.Logger) gin.HandlerFunc {
	limits := newVisitorLimits(rps, burst, logger)
	return func(c *gin.Context) {
		if !limits.allow(c.ClientIP()) {
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"code":  "rate_limited",
				"error": "too many requests",
			})
			return
		}
		c.Next()
	}
}
