package progress

import "time"

// TimeProvider abstracts time operations for deterministic testing.
type TimeProvider interface {
	Now() time.Time
	Since(t time.Time) time.Duration
}

// DefaultTimeProvider uses the standard library time functions.
type DefaultTimeProvider struct{}

// Now returns the current time.
func (DefaultTimeProvider) Now() time.Time { return time.Now() }

// Since returns the duration since t.
func (DefaultTimeProvider) Since(t time.Time) time.Duration { return time.Since(t) }

// rateAlpha is the smoothing factor for the exponential moving average of
// transfer rates. Bursty network primitives make instantaneous rates jumpy;
// the EMA keeps displayed rates and ETAs stable.
const rateAlpha = 0.3

// rateMeter smooths byte-delta observations into a bytes-per-second rate.
type rateMeter struct {
	speed     float64
	lastBytes uint64
	lastTime  time.Time
}

// observe folds a new cumulative byte count into the moving average.
// Observations that do not advance the byte count are ignored.
func (r *rateMeter) observe(totalBytes uint64, now time.Time) {
	if r.lastTime.IsZero() {
		r.lastBytes = totalBytes
		r.lastTime = now
		return
	}
	if totalBytes <= r.lastBytes {
		return
	}

	elapsed := now.Sub(r.lastTime).Seconds()
	if elapsed <= 0 {
		return
	}

	instant := float64(totalBytes-r.lastBytes) / elapsed
	if r.speed == 0 {
		r.speed = instant
	} else {
		r.speed = (1-rateAlpha)*r.speed + rateAlpha*instant
	}
	r.lastBytes = totalBytes
	r.lastTime = now
}

// rate returns the smoothed rate in whole bytes per second.
func (r *rateMeter) rate() uint64 {
	if r.speed <= 0 {
		return 0
	}
	return uint64(r.speed)
}
