// Package resilience keeps speech and coaching backends usable when one of
// them degrades. A whisper.cpp recognizer that runs out of memory or an LLM
// endpoint that starts timing out should not take every attempt submission
// down with it.
//
// [CircuitBreaker] is a three-state breaker (closed, open, half-open) that
// stops hammering a backend after repeated failures. [FallbackGroup] chains
// several backends of the same kind behind per-backend breakers, so a tripped
// primary recognizer is bypassed in favour of a smaller fallback model.
// [STTFallback] and [CoachFallback] are the typed wrappers the app wires in.
//
// All types are safe for concurrent use.
package resilience

import (
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrCircuitOpen is returned by [CircuitBreaker.Execute] when the breaker is
// open and the reset timeout has not yet elapsed.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// State represents the current operating mode of a [CircuitBreaker].
type State int

const (
	// StateClosed is the normal operating state; all calls reach the backend.
	StateClosed State = iota

	// StateOpen means the backend failed too many times in a row. Calls are
	// rejected with [ErrCircuitOpen] until the reset timeout elapses.
	StateOpen

	// StateHalfOpen is the recovery state entered after the reset timeout.
	// A bounded number of trial calls reach the backend; if they succeed the
	// breaker closes, on any failure it re-opens.
	StateHalfOpen
)

// String returns the human-readable name of the state.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitBreakerConfig holds tuning knobs for a [CircuitBreaker].
type CircuitBreakerConfig struct {
	// Name identifies the guarded backend in log messages, e.g. "whisper-base"
	// or "openai".
	Name string

	// MaxFailures is the number of consecutive failures in the closed state
	// before the breaker opens. Default: 5.
	MaxFailures int

	// ResetTimeout is how long the breaker stays open before allowing trial
	// calls again. Default: 30s.
	ResetTimeout time.Duration

	// HalfOpenMax is the number of trial calls permitted in the half-open
	// state before the breaker decides to close or re-open. Default: 3.
	HalfOpenMax int
}

// CircuitBreaker guards a single backend with the three-state breaker
// pattern. It is safe for concurrent use from multiple goroutines.
type CircuitBreaker struct {
	name         string
	maxFailures  int
	resetTimeout time.Duration
	halfOpenMax  int

	mu          sync.Mutex
	state       State
	failures    int
	lastFailure time.Time
	trialCalls  int
	trialFails  int
}

// NewCircuitBreaker creates a [CircuitBreaker] with the supplied
// configuration. Zero-value config fields fall back to the defaults.
func NewCircuitBreaker(cfg CircuitBreakerConfig) *CircuitBreaker {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 5
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = 30 * time.Second
	}
	if cfg.HalfOpenMax <= 0 {
		cfg.HalfOpenMax = 3
	}
	return &CircuitBreaker{
		name:         cfg.Name,
		maxFailures:  cfg.MaxFailures,
		resetTimeout: cfg.ResetTimeout,
		halfOpenMax:  cfg.HalfOpenMax,
		state:        StateClosed,
	}
}

// Execute runs fn against the backend if the breaker allows it. In the open
// state it returns [ErrCircuitOpen] without calling fn; in the half-open
// state only the trial budget is let through.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	cb.mu.Lock()
	switch cb.state {
	case StateOpen:
		if time.Since(cb.lastFailure) < cb.resetTimeout {
			cb.mu.Unlock()
			return ErrCircuitOpen
		}
		cb.state = StateHalfOpen
		cb.trialCalls = 0
		cb.trialFails = 0
		slog.Info("backend breaker half-open, allowing trial calls",
			"backend", cb.name)

	case StateHalfOpen:
		if cb.trialCalls >= cb.halfOpenMax {
			// Trial budget spent. Stay open until an outcome lands.
			cb.mu.Unlock()
			return ErrCircuitOpen
		}
	}

	trial := cb.state == StateHalfOpen
	if trial {
		cb.trialCalls++
	}
	cb.mu.Unlock()

	err := fn()

	cb.mu.Lock()
	defer cb.mu.Unlock()

	if err != nil {
		cb.noteFailure(trial)
	} else {
		cb.noteSuccess(trial)
	}
	return err
}

// noteFailure updates failure accounting. Must be called with cb.mu held.
func (cb *CircuitBreaker) noteFailure(trial bool) {
	cb.lastFailure = time.Now()

	if trial {
		cb.trialFails++
		// One failed trial call is enough to re-open.
		cb.state = StateOpen
		cb.failures = cb.maxFailures
		slog.Warn("backend breaker re-opened, trial call failed",
			"backend", cb.name)
		return
	}

	cb.failures++
	if cb.failures >= cb.maxFailures {
		cb.state = StateOpen
		slog.Warn("backend breaker opened",
			"backend", cb.name,
			"consecutive_failures", cb.failures)
	}
}

// noteSuccess updates success accounting. Must be called with cb.mu held.
func (cb *CircuitBreaker) noteSuccess(trial bool) {
	if trial {
		if cb.trialCalls-cb.trialFails >= cb.halfOpenMax {
			cb.state = StateClosed
			cb.failures = 0
			cb.trialCalls = 0
			cb.trialFails = 0
			slog.Info("backend breaker closed, backend recovered",
				"backend", cb.name)
		}
		return
	}

	// A success in the closed state clears the failure streak.
	cb.failures = 0
}

// State returns the current [State] of the breaker. If the breaker is open
// and the reset timeout has elapsed, it reports [StateHalfOpen]; the actual
// transition happens on the next [CircuitBreaker.Execute] call.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateOpen && time.Since(cb.lastFailure) >= cb.resetTimeout {
		return StateHalfOpen
	}
	return cb.state
}

// Reset forces the breaker back to [StateClosed] and clears all counters.
// Used when an operator knows the backend is healthy again, e.g. after a
// model reload.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.state = StateClosed
	cb.failures = 0
	cb.trialCalls = 0
	cb.trialFails = 0
	slog.Info("backend breaker manually reset", "backend", cb.name)
}
