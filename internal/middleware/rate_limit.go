package middleware

import (
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/spatialdeez/microstore/internal/api/httpx"
)

type tokenBucket struct {
	tokens int
	last   time.Time
}

// limiter keeps one bucket per client address.
type limiter struct {
	mu      sync.Mutex
	rate    int
	burst   int
	buckets map[string]*tokenBucket
	swept   time.Time
}

func (l *limiter) allow(key string, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.swept) > time.Minute {
		for k, b := range l.buckets {
			if now.Sub(b.last) > time.Minute {
				delete(l.buckets, k)
			}
		}
		l.swept = now
	}

	tb, ok := l.buckets[key]
	if !ok {
		tb = &tokenBucket{tokens: l.burst, last: now}
		l.buckets[key] = tb
	}
	if refill := int(now.Sub(tb.last).Seconds() * float64(l.rate)); refill > 0 {
		tb.tokens = min(tb.tokens+refill, l.burst)
		tb.last = now
	}
	if tb.tokens <= 0 {
		return false
	}
	tb.tokens--
	return true
}

func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// RateLimit allows rps requests per second per client address. rps <= 0
// disables limiting.
func RateLimit(rps int) func(http.Handler) http.Handler {
	if rps <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	l := &limiter{rate: rps, burst: rps, buckets: map[string]*tokenBucket{}, swept: time.Now()}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !l.allow(clientKey(r), time.Now()) {
				w.Header().Set("Retry-After", "1")
				httpx.WriteError(w, http.StatusTooManyRequests, "rate_limited", "too many requests", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
