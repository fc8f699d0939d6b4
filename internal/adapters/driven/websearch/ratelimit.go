package websearch

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// DefaultRetryAfter is the pause applied after a 429 without a Retry-After header.
const DefaultRetryAfter = 5 * time.Second

// RateLimiter throttles outbound search requests with a token bucket and
// honours server-requested backoff after 429 responses.
type RateLimiter struct {
	mu      sync.Mutex
	limiter *rate.Limiter
	retryAt time.Time
}

// NewRateLimiter creates a limiter allowing requestsPerSecond with the given burst.
// A non-positive rate disables the token bucket.
func NewRateLimiter(requestsPerSecond float64, burst int) *RateLimiter {
	limit := rate.Inf
	if requestsPerSecond > 0 {
		limit = rate.Limit(requestsPerSecond)
	}
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{limiter: rate.NewLimiter(limit, burst)}
}

// Wait blocks until a request may be sent or ctx is done.
func (r *RateLimiter) Wait(ctx context.Context) error {
	r.mu.Lock()
	retryAt := r.retryAt
	r.mu.Unlock()

	if d := time.Until(retryAt); d > 0 {
		timer := time.NewTimer(d)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}

	return r.limiter.Wait(ctx)
}

// RecordRateLimited pushes the next allowed request out by retryAfter.
func (r *RateLimiter) RecordRateLimited(retryAfter time.Duration) {
	if retryAfter <= 0 {
		retryAfter = DefaultRetryAfter
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if next := time.Now().Add(retryAfter); next.After(r.retryAt) {
		r.retryAt = next
	}
}

// RetryAfter parses the Retry-After header in either seconds or HTTP-date form.
// It returns 0 when the header is absent or unparseable.
func RetryAfter(h http.Header) time.Duration {
	v := h.Get("Retry-After")
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		return time.Until(t)
	}
	return 0
}
