package companion

import (
	"log/slog"
	"sync"
	"time"
)

// reconnectPhase names a state of the reconnect machine.
type reconnectPhase int

const (
	reconnectIdle reconnectPhase = iota
	reconnectScheduled
	reconnectAttempting
	reconnectConnected
	reconnectExhausted
)

func (p reconnectPhase) String() string {
	switch p {
	case reconnectIdle:
		return "idle"
	case reconnectScheduled:
		return "scheduled"
	case reconnectAttempting:
		return "attempting"
	case reconnectConnected:
		return "connected"
	case reconnectExhausted:
		return "exhausted"
	default:
		return "unknown"
	}
}

// reconnector is the bounded exponential backoff state machine behind
// automatic reconnects. The retry count and timer handle live here rather
// than as loose fields on the client, so the bounded-retry and
// cancel-on-manual-disconnect invariants can be tested in isolation.
type reconnector struct {
	base       time.Duration
	cap        time.Duration
	maxRetries int

	mu       sync.Mutex
	phase    reconnectPhase
	attempts int
	timer    *time.Timer
}

func newReconnector(base, maxDelay time.Duration, maxRetries int) *reconnector {
	return &reconnector{
		base:       base,
		cap:        maxDelay,
		maxRetries: maxRetries,
	}
}

// delayFor returns the scheduled delay before attempt n (1-based):
// min(base * 2^(n-1), cap).
func (r *reconnector) delayFor(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := r.base
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= r.cap {
			return r.cap
		}
	}
	if delay > r.cap {
		return r.cap
	}
	return delay
}

// Schedule arms the timer for the next attempt and returns true, or returns
// false when the retry ceiling is reached or an attempt is already pending.
// fn runs on the timer goroutine.
func (r *reconnector) Schedule(fn func()) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.phase == reconnectScheduled || r.phase == reconnectAttempting {
		return false
	}
	if r.attempts >= r.maxRetries {
		r.phase = reconnectExhausted
		slog.Warn("Reconnect retries exhausted", "attempts", r.attempts)
		return false
	}

	r.attempts++
	delay := r.delayFor(r.attempts)
	r.phase = reconnectScheduled
	slog.Info("Reconnect scheduled", "attempt", r.attempts, "delay", delay)

	r.timer = time.AfterFunc(delay, func() {
		r.mu.Lock()
		if r.phase != reconnectScheduled {
			r.mu.Unlock()
			return
		}
		r.phase = reconnectAttempting
		r.mu.Unlock()
		fn()
	})
	return true
}

// Settle records the outcome of an attempt started by Schedule. A successful
// connect resets the attempt counter.
func (r *reconnector) Settle(connected bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if connected {
		r.phase = reconnectConnected
		r.attempts = 0
		return
	}
	r.phase = reconnectIdle
}

// Cancel stops any pending timer and returns the machine to idle with the
// counter cleared. Called on manual disconnect.
func (r *reconnector) Cancel() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
	r.phase = reconnectIdle
	r.attempts = 0
}

// Phase returns the current machine state.
func (r *reconnector) Phase() reconnectPhase {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.phase
}

// Attempts returns how many attempts have been scheduled since the last
// reset.
func (r *reconnector) Attempts() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.attempts
}
