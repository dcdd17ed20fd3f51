// Package circuit implements the per-vendor circuit breaker state
// machine: CLOSED -> OPEN on consecutive failures, OPEN -> HALF_OPEN
// after a cooldown, with exactly one admitted probe in HALF_OPEN.
//
// This intentionally diverges from the teacher's CircuitBreakerManager
// (suprachakra-Airline-Revenue-Optimization-System/services/api_gateway/src/circuit),
// whose IsOpen/RecordSuccess/RecordFailure three-call protocol allows
// more than one concurrent call to observe HALF_OPEN before either
// records an outcome. Single-admission HALF_OPEN probing needs the
// check-and-transition to happen atomically with admission, which is
// why Allow returns a closure that records the single in-flight
// call's outcome.
package circuit

import (
	"errors"
	"sync"
	"time"
)

// ErrOpen is returned when the breaker refuses a call because it is
// OPEN. It is not counted as a failure and must never itself trip
// the breaker.
var ErrOpen = errors.New("circuit: breaker open")

// State is one of CLOSED, OPEN, HALF_OPEN.
type State int

const (
	Closed State = iota
	Open
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "CLOSED"
	case Open:
		return "OPEN"
	case HalfOpen:
		return "HALF_OPEN"
	default:
		return "UNKNOWN"
	}
}

// Breaker is a single vendor's circuit breaker.
type Breaker struct {
	threshold int
	cooldown  time.Duration

	mu                 sync.Mutex
	state              State
	consecutiveFailures int
	openedAt           time.Time
	probeInFlight      bool
}

// New returns a Breaker starting CLOSED, tripping after threshold
// consecutive failures and waiting cooldown before admitting a probe.
func New(threshold int, cooldown time.Duration) *Breaker {
	return &Breaker{threshold: threshold, cooldown: cooldown, state: Closed}
}

// Allow requests permission to start a call at instant now. On
// success it returns a Done closure that the caller MUST invoke
// exactly once with the call's outcome. On refusal it returns
// ErrOpen and a nil Done.
func (b *Breaker) Allow(now time.Time) (done func(success bool), err error) {
	b.mu.Lock()

	switch b.state {
	case Open:
		if now.Sub(b.openedAt) >= b.cooldown && !b.probeInFlight {
			b.state = HalfOpen
			b.probeInFlight = true
			b.mu.Unlock()
			return b.complete(true, now), nil
		}
		b.mu.Unlock()
		return nil, ErrOpen
	case HalfOpen:
		if b.probeInFlight {
			b.mu.Unlock()
			return nil, ErrOpen
		}
		b.probeInFlight = true
		b.mu.Unlock()
		return b.complete(true, now), nil
	default: // Closed
		b.mu.Unlock()
		return b.complete(false, now), nil
	}
}

// complete builds the Done closure for one admitted call. isProbe
// marks whether this call is the single HALF_OPEN probe, so the
// completion logic can clear probeInFlight regardless of outcome.
// now is the instant admission was granted, reused as opened_at on a
// failure so the whole breaker runs off the caller's injected clock.
func (b *Breaker) complete(isProbe bool, now time.Time) func(success bool) {
	return func(success bool) {
		b.mu.Lock()
		defer b.mu.Unlock()

		if isProbe {
			b.probeInFlight = false
		}

		if success {
			b.consecutiveFailures = 0
			b.state = Closed
			b.openedAt = time.Time{}
			return
		}

		b.consecutiveFailures++
		if b.state == HalfOpen || b.consecutiveFailures >= b.threshold {
			b.state = Open
			b.openedAt = now
		}
	}
}

// State returns the breaker's current state, for introspection.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// ConsecutiveFailures returns the current failure streak.
func (b *Breaker) ConsecutiveFailures() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.consecutiveFailures
}

// Reset forces the breaker back to CLOSED, for administrative use.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = Closed
	b.consecutiveFailures = 0
	b.openedAt = time.Time{}
	b.probeInFlight = false
}
