// Package resilience implements a circuit breaker guarding dispatch to a
// single agent: repeated failures trip it open, a cooldown lets it probe
// half-open, and a single success closes it again.
package resilience

import (
	"sync"
	"time"
)

type state int

const (
	stateClosed state = iota
	stateOpen
	stateHalfOpen
)

// Breaker is a single-key circuit breaker; callers typically keep one
// instance per agent.
type Breaker struct {
	mu               sync.Mutex
	state            state
	failures         int
	halfOpenInFlight int

	failureThreshold int
	resetTimeout     time.Duration
	halfOpenMax      int
	openedAt         time.Time
}

func New(failureThreshold int, resetTimeout time.Duration, halfOpenMax int) *Breaker {
	if halfOpenMax <= 0 {
		halfOpenMax = 1
	}
	return &Breaker{
		failureThreshold: failureThreshold,
		resetTimeout:     resetTimeout,
		halfOpenMax:      halfOpenMax,
	}
}

// Allow reports whether a call may proceed, transitioning open->half-open
// once the reset timeout has elapsed.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case stateClosed:
		return true
	case stateOpen:
		if time.Since(b.openedAt) >= b.resetTimeout {
			b.state = stateHalfOpen
			b.halfOpenInFlight = 0
		} else {
			return false
		}
		fallthrough
	case stateHalfOpen:
		if b.halfOpenInFlight < b.halfOpenMax {
			b.halfOpenInFlight++
			return true
		}
		return false
	}
	return false
}

// RecordSuccess closes the breaker from half-open or clears the failure
// count when closed.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = 0
	b.state = stateClosed
}

// RecordFailure increments the failure count and trips the breaker open
// once the threshold is reached; a failure while half-open re-opens it
// immediately.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == stateHalfOpen {
		b.state = stateOpen
		b.openedAt = time.Now()
		return
	}

	b.failures++
	if b.failures >= b.failureThreshold {
		b.state = stateOpen
		b.openedAt = time.Now()
	}
}

// IsOpen reports whether the breaker is currently rejecting calls.
func (b *Breaker) IsOpen() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state == stateOpen
}
