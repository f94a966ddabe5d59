// Package llm — circuit_breaker.go implements a simple state-machine circuit
// breaker around a model backend.
//
// State transitions:
//
//	closed  → open       (after consecutiveFailures threshold is reached)
//	open    → half-open  (after openDuration elapses)
//	half-open → closed   (on successful probe request)
//	half-open → open     (on failed probe request)
package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// ErrCircuitOpen is returned while the circuit is open and requests are
// short-circuited without reaching the backend. Callers treat it like any
// other model failure: the diagnostic path falls back to pattern-based
// results.
var ErrCircuitOpen = errors.New("llm: circuit breaker open")

// CircuitState represents the current state of the circuit breaker.
type CircuitState int

const (
	// CircuitClosed means the backend is functioning normally.
	CircuitClosed CircuitState = 0
	// CircuitOpen means the backend has failed too many times and requests
	// are rejected with ErrCircuitOpen.
	CircuitOpen CircuitState = 1
	// CircuitHalfOpen means the circuit breaker is probing with a single
	// request to determine if the backend has recovered.
	CircuitHalfOpen CircuitState = 2
)

// String returns a human-readable representation of the circuit state.
func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half-open"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// CircuitBreakerConfig holds configuration for the circuit breaker.
type CircuitBreakerConfig struct {
	// ConsecutiveFailures is the number of consecutive failures before the
	// circuit opens. Must be >= 1.
	ConsecutiveFailures int

	// OpenDuration is how long the circuit stays open before transitioning
	// to half-open for a probe request.
	OpenDuration time.Duration
}

// CircuitBreaker wraps a Client with circuit breaker logic. When the
// underlying backend fails consecutively beyond the configured threshold the
// circuit opens and Complete returns ErrCircuitOpen without a network call.
// After the open duration elapses, a single probe request is allowed through
// to test recovery.
type CircuitBreaker struct {
	primary Client
	logger  *slog.Logger
	cfg     CircuitBreakerConfig

	mu                  sync.Mutex
	state               CircuitState
	consecutiveFailures int
	openedAt            time.Time

	// nowFunc allows testing to inject a clock.
	nowFunc func() time.Time
}

// NewCircuitBreaker creates a new CircuitBreaker wrapping the given backend.
func NewCircuitBreaker(primary Client, cfg CircuitBreakerConfig, logger *slog.Logger) (*CircuitBreaker, error) {
	if primary == nil {
		return nil, fmt.Errorf("circuit_breaker: primary client must not be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("circuit_breaker: logger must not be nil")
	}
	if cfg.ConsecutiveFailures < 1 {
		return nil, fmt.Errorf("circuit_breaker: consecutiveFailures must be >= 1, got %d", cfg.ConsecutiveFailures)
	}
	if cfg.OpenDuration <= 0 {
		return nil, fmt.Errorf("circuit_breaker: openDuration must be > 0, got %v", cfg.OpenDuration)
	}

	return &CircuitBreaker{
		primary: primary,
		logger:  logger,
		cfg:     cfg,
		state:   CircuitClosed,
		nowFunc: time.Now,
	}, nil
}

// Name returns the primary backend's name.
func (cb *CircuitBreaker) Name() string {
	return cb.primary.Name()
}

// Complete forwards the request to the primary backend. While the circuit is
// open it returns ErrCircuitOpen without calling the backend.
func (cb *CircuitBreaker) Complete(ctx context.Context, req Request) (*Completion, error) {
	cb.mu.Lock()
	state := cb.currentStateLocked()
	cb.mu.Unlock()

	switch state {
	case CircuitOpen:
		cb.logger.Warn("circuit breaker open, rejecting model request",
			"backend", cb.primary.Name(),
		)
		return nil, ErrCircuitOpen

	case CircuitHalfOpen:
		cb.logger.Info("circuit breaker half-open, sending probe request",
			"backend", cb.primary.Name(),
		)
		completion, err := cb.primary.Complete(ctx, req)
		if err != nil {
			cb.recordFailure()
			return nil, err
		}
		cb.recordSuccess()
		return completion, nil

	default: // CircuitClosed
		completion, err := cb.primary.Complete(ctx, req)
		if err != nil {
			cb.recordFailure()
			return nil, err
		}
		cb.recordSuccess()
		return completion, nil
	}
}

// Healthy reports whether the primary backend is healthy and the circuit
// is not open.
func (cb *CircuitBreaker) Healthy(ctx context.Context) bool {
	cb.mu.Lock()
	state := cb.currentStateLocked()
	cb.mu.Unlock()

	if state == CircuitOpen {
		return false
	}
	return cb.primary.Healthy(ctx)
}

// State returns the current circuit breaker state.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.currentStateLocked()
}

// currentStateLocked evaluates the current state, handling the time-based
// transition from open to half-open. Caller must hold cb.mu.
func (cb *CircuitBreaker) currentStateLocked() CircuitState {
	if cb.state == CircuitOpen {
		if cb.nowFunc().Sub(cb.openedAt) >= cb.cfg.OpenDuration {
			cb.state = CircuitHalfOpen
			cb.logger.Info("circuit breaker transitioning to half-open",
				"backend", cb.primary.Name(),
				"open_duration", cb.cfg.OpenDuration,
			)
		}
	}
	return cb.state
}

// recordSuccess resets the failure count and closes the circuit.
func (cb *CircuitBreaker) recordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	wasOpen := cb.state != CircuitClosed
	cb.consecutiveFailures = 0
	cb.state = CircuitClosed

	if wasOpen {
		cb.logger.Info("circuit breaker closed after successful probe",
			"backend", cb.primary.Name(),
		)
	}
}

// recordFailure increments the consecutive failure count and opens the
// circuit if the threshold is reached.
func (cb *CircuitBreaker) recordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.consecutiveFailures++

	if cb.state == CircuitHalfOpen {
		// Probe failed, reopen the circuit.
		cb.state = CircuitOpen
		cb.openedAt = cb.nowFunc()
		cb.logger.Warn("circuit breaker reopened after failed probe",
			"backend", cb.primary.Name(),
			"consecutive_failures", cb.consecutiveFailures,
		)
		return
	}

	if cb.consecutiveFailures >= cb.cfg.ConsecutiveFailures && cb.state == CircuitClosed {
		cb.state = CircuitOpen
		cb.openedAt = cb.nowFunc()
		cb.logger.Warn("circuit breaker opened",
			"backend", cb.primary.Name(),
			"consecutive_failures", cb.consecutiveFailures,
			"open_duration", cb.cfg.OpenDuration,
		)
	}
}
