// Package circuitbreaker guards outbound webhook URLs: after enough
// consecutive failures a URL is cut off until a cooldown passes, then a
// single probe decides whether it reopens or closes.
package circuitbreaker

import (
	"errors"
	"sync"
	"time"
)

var ErrCircuitOpen = errors.New("circuit breaker is open")

type state int

const (
	stateClosed state = iota
	stateOpen
	stateHalfOpen
)

type urlState struct {
	state               state
	consecutiveFailures int
	openedAt            time.Time
}

type CircuitBreaker struct {
	mu        sync.Mutex
	states    map[string]*urlState
	threshold int
	cooldown  time.Duration

	clock func() time.Time
}

func New(threshold int, cooldown time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		states:    make(map[string]*urlState),
		threshold: threshold,
		cooldown:  cooldown,
		clock:     time.Now,
	}
}

// WithClock sets the time source. Used by tests to step through cooldowns.
func (cb *CircuitBreaker) WithClock(clock func() time.Time) *CircuitBreaker {
	cb.clock = clock
	return cb
}

// Allow reports whether a delivery to url may proceed. An open circuit past
// its cooldown admits exactly one probe; further calls are denied until the
// probe's outcome is recorded.
func (cb *CircuitBreaker) Allow(url string) error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	s, ok := cb.states[url]
	if !ok {
		return nil
	}

	switch s.state {
	case stateClosed:
		return nil
	case stateOpen:
		if cb.clock().Sub(s.openedAt) >= cb.cooldown {
			s.state = stateHalfOpen
			return nil
		}
		return ErrCircuitOpen
	case stateHalfOpen:
		return ErrCircuitOpen
	default:
		return nil
	}
}

// RecordSuccess closes the circuit and clears the failure streak.
func (cb *CircuitBreaker) RecordSuccess(url string) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	s, ok := cb.states[url]
	if !ok {
		return
	}
	s.state = stateClosed
	s.consecutiveFailures = 0
}

// RecordFailure counts a failed delivery. Reaching the threshold opens the
// circuit; a failed half-open probe re-opens it immediately.
func (cb *CircuitBreaker) RecordFailure(url string) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	s, ok := cb.states[url]
	if !ok {
		s = &urlState{}
		cb.states[url] = s
	}

	s.consecutiveFailures++
	if s.consecutiveFailures >= cb.threshold {
		s.state = stateOpen
		s.openedAt = cb.clock()
	}
}
