// Package resilience shields the analysis pipeline from flaky upstreams.
//
// Every outbound dependency of an analysis request — the speech-to-text
// service, the language model, the credential probes — is a remote call that
// can start failing in bulk. [CircuitBreaker] stops hammering an upstream
// that is clearly down, and [FallbackGroup] routes around it to the next
// configured backend while the breaker recovers.
//
// All types are safe for concurrent use.
package resilience

import (
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrCircuitOpen is returned without invoking the upstream when a breaker
// has tripped and its reset timeout has not yet elapsed.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// State is the operating mode of a [CircuitBreaker].
type State int

const (
	// StateClosed forwards every call. Normal operation.
	StateClosed State = iota

	// StateOpen rejects every call with [ErrCircuitOpen]. Entered after too
	// many consecutive failures; left once the reset timeout elapses.
	StateOpen

	// StateHalfOpen lets a bounded number of probe calls through to test
	// whether the upstream has recovered. All probes succeeding closes the
	// breaker; any probe failing re-opens it.
	StateHalfOpen
)

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

// CircuitBreakerConfig tunes a [CircuitBreaker]. Zero values select the
// defaults documented per field.
type CircuitBreakerConfig struct {
	// Name labels the protected upstream in log output, e.g. "gspeech" or
	// "openai".
	Name string

	// MaxFailures is how many consecutive failures trip the breaker from
	// closed to open. Default: 5.
	MaxFailures int

	// ResetTimeout is how long a tripped breaker rejects calls before
	// allowing recovery probes. Default: 30s.
	ResetTimeout time.Duration

	// HalfOpenMax is the probe budget in the half-open state. Default: 3.
	HalfOpenMax int
}

// CircuitBreaker is a three-state breaker guarding one upstream. Transcription
// and model calls cost real time and money, so once an upstream shows a streak
// of failures the breaker fails fast instead of burning the caller's request
// deadline on a dead service.
type CircuitBreaker struct {
	name         string
	maxFailures  int
	resetTimeout time.Duration
	halfOpenMax  int

	mu          sync.Mutex
	state       State
	failures    int
	trippedAt   time.Time
	probesSent  int
	probeFailed bool
}

// NewCircuitBreaker builds a breaker from cfg, filling in defaults for any
// zero fields.
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

// Execute runs fn unless the breaker is rejecting calls. The error from fn is
// returned unchanged so callers can still classify it; [ErrCircuitOpen] is
// returned when fn was never invoked.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	probing, err := cb.admit()
	if err != nil {
		return err
	}

	err = fn()
	cb.settle(probing, err)
	return err
}

// admit decides whether a call may proceed, performing the open → half-open
// transition when the reset timeout has elapsed. It reports whether the call
// counts against the half-open probe budget.
func (cb *CircuitBreaker) admit() (probing bool, err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateOpen:
		if time.Since(cb.trippedAt) < cb.resetTimeout {
			return false, ErrCircuitOpen
		}
		cb.state = StateHalfOpen
		cb.probesSent = 0
		cb.probeFailed = false
		slog.Info("circuit breaker probing upstream", "name", cb.name)

	case StateHalfOpen:
		if cb.probesSent >= cb.halfOpenMax {
			return false, ErrCircuitOpen
		}
	}

	if cb.state == StateHalfOpen {
		cb.probesSent++
		return true, nil
	}
	return false, nil
}

// settle applies the outcome of a completed call. Any failure while probing
// re-opens immediately; a full budget of successful probes closes the breaker.
func (cb *CircuitBreaker) settle(probing bool, err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if err != nil {
		cb.trippedAt = time.Now()
		if probing {
			cb.probeFailed = true
			cb.state = StateOpen
			cb.failures = cb.maxFailures
			slog.Warn("circuit breaker re-opened, probe failed", "name", cb.name)
			return
		}
		cb.failures++
		if cb.failures >= cb.maxFailures {
			cb.state = StateOpen
			slog.Warn("circuit breaker opened",
				"name", cb.name,
				"consecutive_failures", cb.failures)
		}
		return
	}

	if probing {
		if !cb.probeFailed && cb.probesSent >= cb.halfOpenMax {
			cb.state = StateClosed
			cb.failures = 0
			cb.probesSent = 0
			slog.Info("circuit breaker closed, upstream recovered", "name", cb.name)
		}
		return
	}
	cb.failures = 0
}

// State reports the breaker's current mode. An open breaker whose reset
// timeout has elapsed reports [StateHalfOpen] even though the transition is
// only committed by the next [CircuitBreaker.Execute].
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateOpen && time.Since(cb.trippedAt) >= cb.resetTimeout {
		return StateHalfOpen
	}
	return cb.state
}

// Reset forces the breaker back to [StateClosed] and clears all counters.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.state = StateClosed
	cb.failures = 0
	cb.probesSent = 0
	cb.probeFailed = false
	slog.Info("circuit breaker manually reset", "name", cb.name)
}
