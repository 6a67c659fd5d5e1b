package middleware

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type visitor struct {
	lim  *rate.Limiter
	seen time.Time
}

// limiter keeps one token bucket per client and forgets idle clients.
type limiter struct {
	every rate.Limit
	burst int
	ttl   time.Duration

	mu       sync.Mutex
	visitors map[string]*visitor
	lastGC   time.Time
}

func newLimiter(perMin, burst int, ttl time.Duration) *limiter {
	return &limiter{
		every:    rate.Limit(float64(perMin) / 60.0),
		burst:    burst,
		ttl:      ttl,
		visitors: make(map[string]*visitor),
	}
}

func (l *limiter) allow(key string, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.lastGC) > l.ttl {
		for k, v := range l.visitors {
			if now.Sub(v.seen) > l.ttl {
				delete(l.visitors, k)
			}
		}
		l.lastGC = now
	}

	v := l.visitors[key]
	if v == nil {
		v = &visitor{lim: rate.NewLimiter(l.every, l.burst)}
		l.visitors[key] = v
	}
	v.seen = now
	return v.lim.AllowN(now, 1)
}

// RateLimit limits requests per client IP.
// Example: RateLimit(120, 60) => 120 req/min with burst 60
func RateLimit(reqPerMin int, burst int) func(http.Handler) http.Handler {
	if reqPerMin <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	if burst < 1 {
		burst = 1
	}
	l := newLimiter(reqPerMin, burst, 10*time.Minute)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !l.allow(clientIP(r), time.Now()) {
				w.Header().Set("Retry-After", "1")
				writeJSONError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
