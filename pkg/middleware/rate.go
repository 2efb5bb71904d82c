// Package middleware provides the HTTP middleware stack of the storefront API.
package middleware

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/shashiranjanraj/storefront/pkg/response"
)

// bucket is a fixed-window counter for one client.
type bucket struct {
	mu      sync.Mutex
	count   int
	resetAt time.Time
}

func (b *bucket) allow(max int, window time.Duration, now time.Time) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if now.After(b.resetAt) {
		b.count = 0
		b.resetAt = now.Add(window)
	}

	b.count++
	return b.count <= max
}

// limiter owns the buckets of one RateLimit middleware instance.
type limiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	max     int
	window  time.Duration
	sweptAt time.Time
}

func (l *limiter) get(key string, now time.Time) *bucket {
	l.mu.Lock()
	defer l.mu.Unlock()

	// Evict expired buckets at most once per window.
	if now.Sub(l.sweptAt) > l.window {
		for k, b := range l.buckets {
			b.mu.Lock()
			expired := now.After(b.resetAt)
			b.mu.Unlock()
			if expired {
				delete(l.buckets, k)
			}
		}
		l.sweptAt = now
	}

	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{resetAt: now.Add(l.window)}
		l.buckets[key] = b
	}
	return b
}

// RateLimit limits each client IP to max requests per window.
//
//	middleware.RateLimit(200, time.Minute)
func RateLimit(max int, window time.Duration) func(http.Handler) http.Handler {
	l := &limiter{buckets: map[string]*bucket{}, max: max, window: window, sweptAt: time.Now()}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			now := time.Now()
			if !l.get(clientIP(r), now).allow(l.max, l.window, now) {
				response.Error(w, http.StatusTooManyRequests, "Too Many Requests")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return strings.TrimSpace(strings.SplitN(fwd, ",", 2)[0])
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
