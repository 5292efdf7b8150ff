package middleware

import (
	"net"
	"net/http"
	"strings"
	"sync"

	"golang.org/x/time/rate"
)

// IPRateLimiter limits requests per client IP using a token bucket per IP.
type IPRateLimiter struct {
	ips   map[string]*rate.Limiter
	mu    sync.Mutex
	limit rate.Limit
	burst int
}

// NewIPRateLimiter creates a per-IP rate limiter. limit is events per second;
// for N per minute use rate.Limit(float64(N)/60.0). burst is max tokens per bucket.
func NewIPRateLimiter(limit rate.Limit, burst int) *IPRateLimiter {
	return &IPRateLimiter{
		ips:   make(map[string]*rate.Limiter),
		limit: limit,
		burst: burst,
	}
}

func (l *IPRateLimiter) getLimiter(ip string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	lim, ok := l.ips[ip]
	if !ok {
		lim = rate.NewLimiter(l.limit, l.burst)
		l.ips[ip] = lim
	}
	return lim
}

// clientIP returns the client IP from X-Forwarded-For, X-Real-IP, or RemoteAddr without its port.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return strings.TrimSpace(strings.Split(xff, ",")[0])
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// Middleware returns 429 when the client IP exceeds the rate.
func (l *IPRateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.getLimiter(clientIP(r)).Allow() {
			jsonError(w, "too many requests", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// LoginRateLimiter returns a limiter suitable for login: 10 requests per minute per IP, burst 5.
func LoginRateLimiter() *IPRateLimiter {
	return NewIPRateLimiter(rate.Limit(10.0/60.0), 5)
}
