package middleware

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"
)

// RateLimitMiddleware provides basic rate limiting
type RateLimitMiddleware struct {
	requests  map[string][]int64 // IP -> timestamps
	lastSweep int64
	mu        sync.Mutex
	now       func() time.Time
}

// NewRateLimitMiddleware creates a new rate limiting middleware
func NewRateLimitMiddleware() *RateLimitMiddleware {
	return &RateLimitMiddleware{
		requests: make(map[string][]int64),
		now:      time.Now,
	}
}

// RateLimit allows at most maxRequests per client IP within a sliding window.
func (m *RateLimitMiddleware) RateLimit(maxRequests int, window time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !m.allow(getClientIP(r), maxRequests, window) {
				w.Header().Set("Retry-After", "1")
				http.Error(w, "Rate limit exceeded", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (m *RateLimitMiddleware) allow(clientIP string, maxRequests int, window time.Duration) bool {
	now := m.now().UnixNano()
	windowStart := now - window.Nanoseconds()

	m.mu.Lock()
	defer m.mu.Unlock()

	if now-m.lastSweep >= window.Nanoseconds() {
		m.sweep(windowStart)
		m.lastSweep = now
	}

	kept := m.requests[clientIP][:0]
	for _, ts := range m.requests[clientIP] {
		if ts > windowStart {
			kept = append(kept, ts)
		}
	}
	if len(kept) >= maxRequests {
		m.requests[clientIP] = kept
		return false
	}
	m.requests[clientIP] = append(kept, now)
	return true
}

// sweep forgets clients with no request after windowStart. Timestamps are appended
// in order, so the last one is the newest.
func (m *RateLimitMiddleware) sweep(windowStart int64) {
	for ip, ts := range m.requests {
		if len(ts) == 0 || ts[len(ts)-1] <= windowStart {
			delete(m.requests, ip)
		}
	}
}

// getClientIP extracts the client IP from the request
func getClientIP(r *http.Request) string {
	if ip := r.Header.Get("X-Forwarded-For"); ip != "" {
		return strings.TrimSpace(strings.Split(ip, ",")[0])
	}
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
