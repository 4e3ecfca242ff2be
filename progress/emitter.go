package progress

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// DefaultEventBuffer is the channel capacity between producers and the
// consumer. Large enough to absorb bursts between consumer reads.
const DefaultEventBuffer = 128

// criticalSendTimeout bounds how long a producer will wait to deliver a
// critical event to a consumer that has stopped draining the channel.
const criticalSendTimeout = 5 * time.Second

// Emitter delivers an ordered stream of events to exactly one consumer per
// session, throttling non-critical events through a RateLimiter.
//
// Producers never block indefinitely: throttled events are dropped when the
// consumer falls behind, and critical events give up after a bounded wait.
// A dropped event never affects the underlying transfer, which always runs
// to completion so the tracker stays internally consistent.
type Emitter struct {
	events  chan Event
	limiter *RateLimiter

	mu     sync.RWMutex
	closed bool
}

// NewEmitter creates an emitter with the given throttle interval and
// channel capacity. Non-positive arguments select the defaults.
func NewEmitter(interval time.Duration, buffer int) *Emitter {
	if interval <= 0 {
		interval = DefaultEmitInterval
	}
	if buffer <= 0 {
		buffer = DefaultEventBuffer
	}
	return &Emitter{
		events:  make(chan Event, buffer),
		limiter: NewRateLimiter(interval),
	}
}

// Events returns the consumer side of the stream. The channel is closed by
// Close once the session's terminal event has been emitted.
func (e *Emitter) Events() <-chan Event {
	return e.events
}

// Limiter exposes the session rate limiter, mainly so tests can install a
// deterministic time provider.
func (e *Emitter) Limiter() *RateLimiter {
	return e.limiter
}

// Emit delivers one event. Critical events bypass the limiter and wait up to
// criticalSendTimeout for a slow consumer; non-critical events are gated by
// the limiter and dropped immediately when the channel is full. It reports
// whether the event was delivered to the channel.
func (e *Emitter) Emit(ev Event) bool {
	if !ev.Critical() && !e.limiter.ShouldEmit() {
		return false
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.closed {
		logrus.WithFields(logrus.Fields{
			"function": "Emit",
			"event":    ev.Kind,
		}).Debug("Dropping event: emitter closed")
		return false
	}

	if ev.Critical() {
		select {
		case e.events <- ev:
			return true
		case <-time.After(criticalSendTimeout):
			logrus.WithFields(logrus.Fields{
				"function": "Emit",
				"event":    ev.Kind,
			}).Warn("Dropping critical event: consumer not draining")
			return false
		}
	}

	select {
	case e.events <- ev:
		return true
	default:
		logrus.WithFields(logrus.Fields{
			"function": "Emit",
			"event":    ev.Kind,
		}).Debug("Dropping event: channel full")
		return false
	}
}

// Close closes the stream. Only the orchestrator calls it, after the
// terminal event; subsequent Emit calls become no-ops rather than panics.
func (e *Emitter) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return
	}
	e.closed = true
	close(e.events)
}
