package httpx

import (
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimitConfig defines the rate limiting parameters for a route.
type RateLimitConfig struct {
	// RequestsPerWindow is the number of requests allowed in the window.
	RequestsPerWindow int
	// Window is the time window for rate limiting.
	Window time.Duration
	// Burst allows for temporary bursts above the rate limit.
	Burst int
}

// Common rate limit profiles for different endpoint types.
var (
	// StrictLimit for credential endpoints (brute force prevention).
	StrictLimit = RateLimitConfig{RequestsPerWindow: 5, Window: time.Minute, Burst: 5}

	// ModerateLimit for authenticated mutating operations.
	ModerateLimit = RateLimitConfig{RequestsPerWindow: 20, Window: time.Minute, Burst: 20}

	// LenientLimit for authenticated reads and health checks.
	LenientLimit = RateLimitConfig{RequestsPerWindow: 100, Window: time.Minute, Burst: 100}
)

// limiterPool tracks one token bucket per key, dropping buckets that
// have been idle for a while so the map does not grow without bound.
type limiterPool struct {
	mu       sync.Mutex
	cfg      RateLimitConfig
	limiters map[string]*limiterEntry
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newLimiterPool(cfg RateLimitConfig) *limiterPool {
	p := &limiterPool{
		cfg:      cfg,
		limiters: make(map[string]*limiterEntry),
	}
	go p.evictLoop()
	return p
}

func (p *limiterPool) allow(key string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	entry, ok := p.limiters[key]
	if !ok {
		limit := rate.Limit(float64(p.cfg.RequestsPerWindow) / p.cfg.Window.Seconds())
		entry = &limiterEntry{limiter: rate.NewLimiter(limit, p.cfg.Burst)}
		p.limiters[key] = entry
	}
	entry.lastSeen = time.Now()
	return entry.limiter.Allow()
}

func (p *limiterPool) evictLoop() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		cutoff := time.Now().Add(-10 * time.Minute)
		p.mu.Lock()
		for key, entry := range p.limiters {
			if entry.lastSeen.Before(cutoff) {
				delete(p.limiters, key)
			}
		}
		p.mu.Unlock()
	}
}

// RateLimitByIP limits requests per client IP. Used on unauthenticated
// endpoints where the caller identity is unknown.
func RateLimitByIP(cfg RateLimitConfig) Middleware {
	pool := newLimiterPool(cfg)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !pool.allow(clientIP(r)) {
				writeRateLimited(w)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RateLimitByUser limits requests per authenticated user, falling back
// to the client IP when no identity is in context.
func RateLimitByUser(cfg RateLimitConfig) Middleware {
	pool := newLimiterPool(cfg)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := UserIDFromContext(r.Context())
			if key == "" {
				key = clientIP(r)
			}
			if !pool.allow(key) {
				writeRateLimited(w)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeRateLimited(w http.ResponseWriter) {
	w.Header().Set("Retry-After", "60")
	WriteError(w, http.StatusTooManyRequests, "rate_limited", "Too many requests")
}
