package server

import (
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	limiterIdleTTL       = 10 * time.Minute
	limiterSweepInterval = time.Minute
)

type ipLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// ipRateLimiter keeps one token bucket per client IP. Buckets idle for
// longer than idleTTL are dropped on the next sweep.
type ipRateLimiter struct {
	mu        sync.Mutex
	limiters  map[string]*ipLimiter
	rate      rate.Limit
	burst     int
	idleTTL   time.Duration
	sweep     time.Duration
	lastSweep time.Time
	now       func() time.Time
}

func newIPRateLimiter(rps int, burst int) *ipRateLimiter {
	return &ipRateLimiter{
		limiters:  make(map[string]*ipLimiter),
		rate:      rate.Limit(rps),
		burst:     burst,
		idleTTL:   limiterIdleTTL,
		sweep:     limiterSweepInterval,
		lastSweep: time.Now(),
		now:       time.Now,
	}
}

func (i *ipRateLimiter) limiter(ip string) *rate.Limiter {
	i.mu.Lock()
	defer i.mu.Unlock()

	now := i.now()
	if now.Sub(i.lastSweep) >= i.sweep {
		i.evictIdle(now)
	}

	l, ok := i.limiters[ip]
	if !ok {
		l = &ipLimiter{limiter: rate.NewLimiter(i.rate, i.burst)}
		i.limiters[ip] = l
	}
	l.lastSeen = now
	return l.limiter
}

// evictIdle must be called with mu held.
func (i *ipRateLimiter) evictIdle(now time.Time) {
	for ip, l := range i.limiters {
		if now.Sub(l.lastSeen) > i.idleTTL {
			delete(i.limiters, ip)
		}
	}
	i.lastSweep = now
}

func (i *ipRateLimiter) size() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return len(i.limiters)
}

// Middleware rejects requests beyond the client's budget with 429.
// RemoteAddr is expected to be rewritten by middleware.RealIP first.
func (i *ipRateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !i.limiter(clientIP(r)).Allow() {
			w.Header().Set("Retry-After", "1")
			writeJSON(w, http.StatusTooManyRequests, errorBody{
				Error: "Too many requests. Please wait a moment.",
				Code:  codeRateLimited,
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
