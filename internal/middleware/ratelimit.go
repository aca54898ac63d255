package middleware

import (
	"context"
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"
)

// trackedIPLimit caps the visitor table so an address-spoofing client
// cannot grow it without bound.
const trackedIPLimit = 100_000

// verdict is the outcome of one admission check.
type verdict struct {
	allowed   bool
	remaining int
	retryIn   time.Duration
}

type visitor struct {
	tokens float64
	seen   time.Time
}

// RateLimiter applies a per-IP token bucket to incoming requests. It
// shields the model backend from a single client hammering the chat
// endpoints.
type RateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	rate     float64 // tokens added per second
	burst    float64
}

// NewRateLimiter creates a limiter with the given sustained rate in
// requests per second and burst size.
func NewRateLimiter(rate float64, burst int) *RateLimiter {
	return &RateLimiter{
		visitors: make(map[string]*visitor),
		rate:     rate,
		burst:    float64(burst),
	}
}

// Handler returns HTTP middleware that enforces the limit and reports
// the bucket state through X-RateLimit headers.
func (rl *RateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		v := rl.take(clientIP(r))

		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(v.remaining))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(time.Second).Unix(), 10))

		if !v.allowed {
			w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(v.retryIn.Seconds()))))
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":"rate limit exceeded"}`))
			return
		}

		next.ServeHTTP(w, r)
	})
}

// take refills the visitor's bucket for the elapsed time and tries to
// consume one token.
func (rl *RateLimiter) take(ip string) verdict {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	v, ok := rl.visitors[ip]
	switch {
	case ok:
		v.tokens = min(v.tokens+now.Sub(v.seen).Seconds()*rl.rate, rl.burst)
		v.seen = now
	case len(rl.visitors) >= trackedIPLimit:
		return verdict{retryIn: rl.tokenInterval()}
	default:
		v = &visitor{tokens: rl.burst, seen: now}
		rl.visitors[ip] = v
	}

	if v.tokens < 1 {
		wait := time.Duration((1 - v.tokens) / rl.rate * float64(time.Second))
		return verdict{retryIn: wait}
	}
	v.tokens--
	return verdict{allowed: true, remaining: int(v.tokens)}
}

func (rl *RateLimiter) tokenInterval() time.Duration {
	return time.Duration(float64(time.Second) / rl.rate)
}

// StartCleanup spawns a goroutine that prunes visitors not seen for
// maxIdle, checking every interval. The returned function stops it.
func (rl *RateLimiter) StartCleanup(interval, maxIdle time.Duration) func() {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				rl.cleanup(maxIdle)
			}
		}
	}()
	return cancel
}

func (rl *RateLimiter) cleanup(maxIdle time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	cutoff := time.Now().Add(-maxIdle)
	for ip, v := range rl.visitors {
		if v.seen.Before(cutoff) {
			delete(rl.visitors, ip)
		}
	}
}

// Len reports how many IPs are currently tracked.
func (rl *RateLimiter) Len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.visitors)
}

// clientIP derives the caller's address from RemoteAddr. Proxy headers
// are not trusted; they can be spoofed to dodge the limit.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
