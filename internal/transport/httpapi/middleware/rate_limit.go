package middleware

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/kislikjeka/walletcore/internal/shared/apierror"
)

// RateLimiter implements a per-client token bucket keyed by IP.
type RateLimiter struct {
	visitors map[string]*rate.Limiter
	mu       sync.Mutex
	r        rate.Limit
	b        int
}

// NewRateLimiter creates a rate limiter allowing r requests per second with
// bursts of b, and starts the periodic visitor cleanup.
func NewRateLimiter(r rate.Limit, b int) *RateLimiter {
	rl := &RateLimiter{
		visitors: make(map[string]*rate.Limiter),
		r:        r,
		b:        b,
	}
	go rl.cleanupVisitors()
	return rl
}

// getVisitor retrieves or creates a limiter for a client IP.
func (rl *RateLimiter) getVisitor(ip string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	limiter, exists := rl.visitors[ip]
	if !exists {
		limiter = rate.NewLimiter(rl.r, rl.b)
		rl.visitors[ip] = limiter
	}
	return limiter
}

// cleanupVisitors drops the visitor map every minute so idle clients do not
// accumulate. Active clients simply get a fresh bucket.
func (rl *RateLimiter) cleanupVisitors() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for range ticker.C {
		rl.mu.Lock()
		rl.visitors = make(map[string]*rate.Limiter)
		rl.mu.Unlock()
	}
}

// Middleware returns the rate limiting middleware.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Honor X-Forwarded-For when running behind a proxy
		ip := r.Header.Get("X-Forwarded-For")
		if ip == "" {
			ip = r.RemoteAddr
		}

		if !rl.getVisitor(ip).Allow() {
			env := apierror.TooManyRequests("rate limit exceeded, please try again later", r.URL.Path)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(env.Status)
			_ = json.NewEncoder(w).Encode(env)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// RateLimit returns a rate limiting middleware with the given per-client
// rate and burst.
func RateLimit(requestsPerSecond float64, burst int) func(http.Handler) http.Handler {
	limiter := NewRateLimiter(rate.Limit(requestsPerSecond), burst)
	return limiter.Middleware
}
