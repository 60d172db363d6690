package transport

import (
	"sync"
	"time"
)

// MaxConsecutiveFailures marks an engine unhealthy.
const MaxConsecutiveFailures = 3

// State is the reachability of an engine.
type State string

const (
	StateUnknown   State = "unknown"
	StateReady     State = "ready"
	StateUnhealthy State = "unhealthy"
)

// Health tracks call outcomes for one engine.
type Health struct {
	mu                  sync.RWMutex
	state               State
	lastResponse        time.Time
	consecutiveFailures int
}

func newHealth() *Health {
	return &Health{state: StateUnknown}
}

// RecordSuccess resets the failure count and marks the engine ready.
func (h *Health) RecordSuccess() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lastResponse = time.Now()
	h.consecutiveFailures = 0
	h.state = StateReady
}

// RecordFailure counts a failure and degrades the state past the limit.
func (h *Health) RecordFailure() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.consecutiveFailures++
	if h.consecutiveFailures >= MaxConsecutiveFailures {
		h.state = StateUnhealthy
	}
}

// State returns the current state.
func (h *Health) State() State {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.state
}

// ConsecutiveFailures returns the failures since the last success.
func (h *Health) ConsecutiveFailures() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.consecutiveFailures
}

// LastResponse is the time of the last successful call.
func (h *Health) LastResponse() time.Time {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.lastResponse
}
