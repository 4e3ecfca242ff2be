package progress

import (
	"sync"
	"time"
)

// DefaultEmitInterval is the minimum spacing between throttled progress
// events. 100 ms keeps a UI responsive without flooding it during fast
// transfers.
const DefaultEmitInterval = 100 * time.Millisecond

// RateLimiter decides whether a non-critical event may be emitted. One
// instance serves one session; its last-emission time is shared state
// mutated by whichever task is about to emit, so it carries its own lock.
//
// Critical events (session start, session terminal, per-file terminal
// transitions) never consult the limiter.
type RateLimiter struct {
	mu       sync.Mutex
	last     time.Time
	interval time.Duration
	clock    TimeProvider
}

// NewRateLimiter creates a rate limiter with the given minimum interval.
func NewRateLimiter(interval time.Duration) *RateLimiter {
	return &RateLimiter{
		interval: interval,
		clock:    DefaultTimeProvider{},
	}
}

// SetTimeProvider sets a custom time provider for deterministic testing.
func (r *RateLimiter) SetTimeProvider(tp TimeProvider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clock = tp
}

// ShouldEmit reports whether enough time has passed since the last emission.
// It records the emission time when it returns true, so at most one caller
// wins each interval.
func (r *RateLimiter) ShouldEmit() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.clock.Now()
	if shouldEmit(now, r.last, r.interval) {
		r.last = now
		return true
	}
	return false
}

// ForceEmit resets the last emission time so the next ShouldEmit call
// returns true regardless of elapsed time.
func (r *RateLimiter) ForceEmit() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.last = time.Time{}
}

// shouldEmit is the pure decision: emit iff the interval has elapsed since
// the last emission. A zero last-emission time always permits emission.
func shouldEmit(now, last time.Time, interval time.Duration) bool {
	if last.IsZero() {
		return true
	}
	return now.Sub(last) >= interval
}
