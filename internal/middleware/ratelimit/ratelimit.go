// Package ratelimit provides per-client token bucket limiting.
package ratelimit

import (
	"encoding/json"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/time/rate"

	"github.com/pendergraft/contractlens/internal/middleware/realip"
)

// Config holds the configuration for one limiter
type Config struct {
	Enabled        bool
	RequestsPerMin int
	BurstSize      int
	// CleanupMinutes is how long an idle client keeps its bucket
	CleanupMinutes int
	// MaxClients bounds the number of tracked clients
	MaxClients int
}

// exempt paths are never limited
var exempt = map[string]bool{
	"/health":  true,
	"/healthz": true,
	"/readyz":  true,
	"/metrics": true,
}

// Limiter hands out one token bucket per client IP. Idle buckets expire
// after CleanupMinutes.
type Limiter struct {
	mu       sync.Mutex
	buckets  *expirable.LRU[string, *rate.Limiter]
	limit    rate.Limit
	burst    int
	retryAfter string
}

// New creates a Limiter.
func New(cfg Config) *Limiter {
	perMin := max(cfg.RequestsPerMin, 1)
	idle := time.Duration(cfg.CleanupMinutes) * time.Minute
	if idle <= 0 {
		idle = 10 * time.Minute
	}
	size := cfg.MaxClients
	if size <= 0 {
		size = 10000
	}

	return &Limiter{
		buckets:  expirable.NewLRU[string, *rate.Limiter](size, nil, idle),
		limit:    rate.Limit(float64(perMin) / 60.0),
		burst:    max(cfg.BurstSize, 1),
		retryAfter: strconv.Itoa(int(math.Ceil(60.0 / float64(perMin)))),
	}
}

// Allow consumes a token for key.
func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	b, ok := l.buckets.Get(key)
	if !ok {
		b = rate.NewLimiter(l.limit, l.burst)
	}
	// re-adding refreshes the idle expiry
	l.buckets.Add(key, b)
	l.mu.Unlock()

	return b.Allow()
}

// Clients returns the number of tracked clients.
func (l *Limiter) Clients() int {
	return l.buckets.Len()
}

// Middleware rejects over-limit clients with 429.
func (l *Limiter) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if exempt[r.URL.Path] || l.Allow(realip.GetClientIP(r)) {
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Retry-After", l.retryAfter)
			w.WriteHeader(http.StatusTooManyRequests)
			json.NewEncoder(w).Encode(map[string]string{
				"error": "Too many requests. Please try again later.",
				"code":  "RATE_LIMITED",
			})
		})
	}
}

// Middleware returns a limiting middleware, or a pass-through when cfg is
// disabled.
func Middleware(cfg Config) func(http.Handler) http.Handler {
	if !cfg.Enabled {
		return func(next http.Handler) http.Handler { return next }
	}
	return New(cfg).Middleware()
}
