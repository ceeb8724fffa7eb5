// Rate limiter for admin endpoints that disturb the simulation.
// Token bucket per client IP.
package api

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter hands out a token bucket per IP.
type RateLimiter struct {
	mu        sync.Mutex
	visitors  map[string]*visitor
	limit     rate.Limit
	burst     int
	window    time.Duration
	lastSweep time.Time
	now       func() time.Time
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter allows maxRate requests per window for each IP, refilling
// evenly across the window.
func NewRateLimiter(maxRate int, window time.Duration) *RateLimiter {
	if maxRate < 1 {
		maxRate = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &RateLimiter{
		visitors: make(map[string]*visitor),
		limit:    rate.Every(window / time.Duration(maxRate)),
		burst:    maxRate,
		window:   window,
		now:      time.Now,
	}
}

func (rl *RateLimiter) get(ip string) *rate.Limiter {
	now := rl.now()
	if now.Sub(rl.lastSweep) > rl.window {
		rl.sweep(now)
	}
	v, ok := rl.visitors[ip]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.visitors[ip] = v
	}
	v.lastSeen = now
	return v.limiter
}

// Allow reports whether the IP may make a request now and consumes a token
// if so.
func (rl *RateLimiter) Allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return rl.get(ip).AllowN(rl.now(), 1)
}

// RetryAfter returns how many whole seconds until the IP gets a token.
func (rl *RateLimiter) RetryAfter(ip string) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	r := rl.get(ip).ReserveN(now, 1)
	if !r.OK() {
		return int(rl.window.Seconds())
	}
	delay := r.DelayFrom(now)
	r.CancelAt(now)
	return int(math.Ceil(delay.Seconds()))
}

// sweep drops visitors idle for two windows. Called with mu held.
func (rl *RateLimiter) sweep(now time.Time) {
	for ip, v := range rl.visitors {
		if now.Sub(v.lastSeen) > 2*rl.window {
			delete(rl.visitors, ip)
		}
	}
	rl.lastSweep = now
}

// clientIP returns the remote address. Behind a trusted reverse proxy the
// first X-Forwarded-For entry wins; otherwise the header is ignored, since
// any client can set it.
func clientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			first, _, _ := strings.Cut(xff, ",")
			if first = strings.TrimSpace(first); first != "" {
				return first
			}
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// RateLimitMiddleware wraps a handler with rate limiting. Returns 429 if exceeded.
// trustProxy keys clients by X-Forwarded-For instead of the remote address.
func RateLimitMiddleware(rl *RateLimiter, trustProxy bool, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r, trustProxy)
		if !rl.Allow(ip) {
			w.Header().Set("Retry-After", strconv.Itoa(rl.RetryAfter(ip)))
			http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
			return
		}
		next(w, r)
	}
}
