package safety

import (
	"sync"
	"time"
)

// RateLimiter is the auth rate limiter gating the external dashboard
// boundary (§4.1): per remote address, ≥N failures within a sliding window
// blocks further attempts until the window clears.
type RateLimiter struct {
	mu         sync.Mutex
	window     time.Duration
	maxFailures int
	failures   map[string][]time.Time
}

// NewRateLimiter creates a limiter with the given sliding window and
// failure threshold (spec.md default: 10 failures / 15 minutes).
func NewRateLimiter(window time.Duration, maxFailures int) *RateLimiter {
	return &RateLimiter{
		window:      window,
		maxFailures: maxFailures,
		failures:    make(map[string][]time.Time),
	}
}

// Allow reports whether remoteAddr may attempt authentication right now.
func (r *RateLimiter) Allow(remoteAddr string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.prune(remoteAddr, time.Now())
	return len(r.failures[remoteAddr]) < r.maxFailures
}

// RecordFailure records an authentication failure for remoteAddr.
func (r *RateLimiter) RecordFailure(remoteAddr string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	r.prune(remoteAddr, now)
	r.failures[remoteAddr] = append(r.failures[remoteAddr], now)
}

// RecordSuccess clears the failure history for remoteAddr, so a successful
// auth resets the window rather than letting old failures linger.
func (r *RateLimiter) RecordSuccess(remoteAddr string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.failures, remoteAddr)
}

// prune drops failure timestamps older than the sliding window. Caller
// must hold r.mu.
func (r *RateLimiter) prune(remoteAddr string, now time.Time) {
	times := r.failures[remoteAddr]
	if len(times) == 0 {
		return
	}
	cutoff := now.Add(-r.window)
	kept := times[:0]
	for _, t := range times {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	if len(kept) == 0 {
		delete(r.failures, remoteAddr)
	} else {
		r.failures[remoteAddr] = kept
	}
}
