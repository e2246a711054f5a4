package util

import (
	"context"
	"math/rand"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

var (
	// DefaultRequestsPerMinute matches Hardcover's published API ceiling
	DefaultRequestsPerMinute = 50
	// DefaultBurst is the default number of requests allowed back to back
	DefaultBurst = 5
	// MaxInterval caps the backoff applied by OnRateLimit
	MaxInterval = 10 * time.Second
)

// RateLimiter is a token bucket shared by every caller of one remote API.
// Waiters reserve consecutive slots, so N concurrent callers are spread out
// rather than released together.
type RateLimiter struct {
	mu           sync.Mutex
	tokens       float64
	maxTokens    float64
	last         time.Time
	rate         time.Duration
	minRate      time.Duration
	lastRateDrop time.Time
	now          func() time.Time
}

// NewRateLimiter allows requestsPerMinute on average with bursts of burst.
func NewRateLimiter(requestsPerMinute, burst int) *RateLimiter {
	if requestsPerMinute <= 0 {
		requestsPerMinute = DefaultRequestsPerMinute
	}
	return newRateLimiter(time.Minute/time.Duration(requestsPerMinute), burst)
}

func newRateLimiter(interval time.Duration, burst int) *RateLimiter {
	if burst <= 0 {
		burst = DefaultBurst
	}
	now := time.Now()
	return &RateLimiter{
		tokens:    float64(burst),
		maxTokens: float64(burst),
		last:      now,
		rate:      interval,
		minRate:   interval,
		now:       time.Now,
	}
}

func (r *RateLimiter) refill(now time.Time) {
	if elapsed := now.Sub(r.last); elapsed > 0 {
		r.tokens += float64(elapsed) / float64(r.rate)
		if r.tokens > r.maxTokens {
			r.tokens = r.maxTokens
		}
		r.last = now
	}
}

// Wait blocks until the caller may issue one request or ctx is done.
func (r *RateLimiter) Wait(ctx context.Context) error {
	r.mu.Lock()
	r.refill(r.now())
	r.tokens--
	if r.tokens >= 0 {
		r.mu.Unlock()
		return nil
	}
	wait := time.Duration(-r.tokens * float64(r.rate))
	r.mu.Unlock()

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		r.mu.Lock()
		r.tokens++
		r.mu.Unlock()
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// OnRateLimit slows the limiter after a 429 and returns how long to back off.
func (r *RateLimiter) OnRateLimit(retryAfter time.Duration) time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	r.refill(now)

	// repeated throttling within five minutes backs off harder
	factor := 1.2
	if !r.lastRateDrop.IsZero() && now.Sub(r.lastRateDrop) < 5*time.Minute {
		factor = 1.5
	}
	r.rate = time.Duration(factor * float64(r.rate))
	if r.rate > MaxInterval {
		r.rate = MaxInterval
	}
	r.lastRateDrop = now
	r.tokens = 0

	log.Warn().
		Dur("new_interval", r.rate).
		Dur("retry_after", retryAfter).
		Msg("Rate limited, increasing delay between requests")

	backoff := r.rate + time.Duration(rand.Float64()*0.2*float64(r.rate))
	if retryAfter > backoff {
		return retryAfter
	}
	return backoff
}

// ResetRate restores the configured interval.
func (r *RateLimiter) ResetRate() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rate = r.minRate
	r.lastRateDrop = time.Time{}
}

// GetRate returns the current minimum interval between requests.
func (r *RateLimiter) GetRate() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rate
}

// ParseRetryAfter reads a Retry-After header given in seconds or as an HTTP date.
func ParseRetryAfter(value string) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	if secs, err := strconv.Atoi(value); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(value); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}
