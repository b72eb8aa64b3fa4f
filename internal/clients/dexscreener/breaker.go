package dexscreener

import (
	"sync"
	"time"
)

type breakerState int

const (
	stateClosed breakerState = iota
	stateOpen
	stateHalfOpen
)

// circuitBreaker implements the CLOSED/OPEN/HALF_OPEN state machine from
// SPEC_FULL.md §4.2. No pack example implements an HTTP-level breaker (the
// closest analog is a business-level "consecutive loss -> hibernate" counter
// in the teacher's satellites/bucket_service.go); this is synthesized in the
// teacher's general idiom: a small mutex-guarded struct holding only counters,
// with the lock held just for the state transition.
type circuitBreaker struct {
	failureThreshold int
	recoveryTimeout  time.Duration
	halfOpenMaxCalls int

	mu               sync.Mutex
	state            breakerState
	consecutiveFails int
	openedAt         time.Time
	halfOpenCalls    int
}

func newCircuitBreaker(failureThreshold int, recoveryTimeout time.Duration, halfOpenMaxCalls int) *circuitBreaker {
	return &circuitBreaker{
		failureThreshold: failureThreshold,
		recoveryTimeout:  recoveryTimeout,
		halfOpenMaxCalls: halfOpenMaxCalls,
		state:            stateClosed,
	}
}

// allow reports whether a call may proceed, transitioning OPEN->HALF_OPEN
// once recoveryTimeout has elapsed.
func (b *circuitBreaker) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case stateClosed:
		return true
	case stateOpen:
		if time.Since(b.openedAt) >= b.recoveryTimeout {
			b.state = stateHalfOpen
			b.halfOpenCalls = 0
			return b.admitHalfOpenLocked()
		}
		return false
	case stateHalfOpen:
		return b.admitHalfOpenLocked()
	default:
		return true
	}
}

func (b *circuitBreaker) admitHalfOpenLocked() bool {
	if b.halfOpenCalls >= b.halfOpenMaxCalls {
		return false
	}
	b.halfOpenCalls++
	return true
}

func (b *circuitBreaker) recordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.consecutiveFails = 0
	b.state = stateClosed
}

func (b *circuitBreaker) recordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == stateHalfOpen {
		b.state = stateOpen
		b.openedAt = time.Now()
		return
	}

	b.consecutiveFails++
	if b.consecutiveFails >= b.failureThreshold {
		b.state = stateOpen
		b.openedAt = time.Now()
	}
}
