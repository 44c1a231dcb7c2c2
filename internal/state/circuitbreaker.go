package state

import (
	"fmt"
	"sync"
	"time"
)

// CircuitBreaker tracks log-fetch failures per instance over a sliding
// window. An instance whose failures in the window reach the threshold is
// skipped until the cooldown elapses. It then goes half-open: one probe
// fetch is allowed through. If it succeeds the breaker resets; if it fails
// it re-trips.
type CircuitBreaker struct {
	mu        sync.RWMutex
	threshold int           // failures within window that trip the breaker
	window    time.Duration // sliding window duration
	cooldown  time.Duration // cooldown before half-open (default = window)
	states    map[string]*instanceState
	now       func() time.Time
}

type instanceState struct {
	failures  []time.Time
	tripped   bool
	trippedAt time.Time
	halfOpen  bool // In half-open state, one probe is allowed through
}

// NewCircuitBreaker creates a circuit breaker that trips after threshold
// failures within window.
func NewCircuitBreaker(threshold int, window time.Duration) *CircuitBreaker {
	if threshold <= 0 {
		threshold = 3
	}
	if window <= 0 {
		window = time.Hour
	}
	return &CircuitBreaker{
		threshold: threshold,
		window:    window,
		cooldown:  window,
		states:    make(map[string]*instanceState),
		now:       time.Now,
	}
}

func (cb *CircuitBreaker) getOrCreate(id string) *instanceState {
	s, ok := cb.states[id]
	if !ok {
		s = &instanceState{}
		cb.states[id] = s
	}
	return s
}

// RecordSuccess clears the failure history of an instance and closes its
// breaker.
func (cb *CircuitBreaker) RecordSuccess(id string) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	s, ok := cb.states[id]
	if !ok {
		return
	}
	s.failures = nil
	s.tripped = false
	s.halfOpen = false
}

// RecordFailure records a failed fetch. The breaker trips once the failures
// within the window reach the threshold. A failed half-open probe re-trips
// immediately.
func (cb *CircuitBreaker) RecordFailure(id string) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	now := cb.now()
	s := cb.getOrCreate(id)
	s.failures = append(s.failures, now)

	if s.halfOpen {
		s.halfOpen = false
		s.tripped = true
		s.trippedAt = now
		return
	}

	s.failures = pruneOlderThan(s.failures, now.Add(-cb.window))
	if len(s.failures) >= cb.threshold && !s.tripped {
		s.tripped = true
		s.trippedAt = now
	}
}

// IsTripped reports whether fetches to the instance should be skipped. Once
// the cooldown has elapsed it moves the breaker to half-open and returns
// false so one probe goes through.
func (cb *CircuitBreaker) IsTripped(id string) bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	s, ok := cb.states[id]
	if !ok || !s.tripped {
		return false
	}
	if s.halfOpen {
		return false
	}
	if cb.now().Sub(s.trippedAt) >= cb.cooldown {
		s.halfOpen = true
		return false
	}
	return true
}

// Retain forgets every instance not in ids, so destroyed rentals do not
// accumulate.
func (cb *CircuitBreaker) Retain(ids []string) {
	keep := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		keep[id] = struct{}{}
	}
	cb.mu.Lock()
	defer cb.mu.Unlock()
	for id := range cb.states {
		if _, ok := keep[id]; !ok {
			delete(cb.states, id)
		}
	}
}

// Status returns a human-readable status for the given instance.
func (cb *CircuitBreaker) Status(id string) string {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	s, ok := cb.states[id]
	if !ok {
		return "closed"
	}
	if s.halfOpen {
		return fmt.Sprintf("half-open (since %s)", s.trippedAt.Format(time.RFC3339))
	}
	if s.tripped {
		return fmt.Sprintf("tripped (since %s)", s.trippedAt.Format(time.RFC3339))
	}
	return "closed"
}

// Tripped lists the instances whose breaker is currently open or half-open.
func (cb *CircuitBreaker) Tripped() map[string]string {
	cb.mu.RLock()
	ids := make([]string, 0, len(cb.states))
	for id, s := range cb.states {
		if s.tripped {
			ids = append(ids, id)
		}
	}
	cb.mu.RUnlock()

	out := make(map[string]string, len(ids))
	for _, id := range ids {
		out[id] = cb.Status(id)
	}
	return out
}

func pruneOlderThan(times []time.Time, cutoff time.Time) []time.Time {
	idx := 0
	for _, t := range times {
		if t.After(cutoff) {
			times[idx] = t
			idx++
		}
	}
	return times[:idx]
}
