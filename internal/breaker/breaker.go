package breaker

import (
	"fmt"
	"sync"
	"time"
)

// State represents the state of a circuit breaker
type State int

const (
	StateClosed State = iota
	StateOpen
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

// OpenError is returned by Allow while the circuit is open. RetryAfter is
// the remaining time until a half-open probe will be admitted.
type OpenError struct {
	Service    string
	RetryAfter time.Duration
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("circuit breaker open for %s, retry after %s", e.Service, e.RetryAfter.Round(time.Millisecond))
}

// CircuitBreaker isolates one named external dependency. Consecutive
// failures open the circuit; after the recovery timeout a single probe is
// admitted in half-open state.
type CircuitBreaker struct {
	mu sync.Mutex

	service          string
	state            State
	failureCount     int
	lastFailureTime  time.Time
	lastStateChange  time.Time
	halfOpenInFlight bool

	failureThreshold int
	recoveryTimeout  time.Duration

	now func() time.Time
}

// Options tunes a circuit breaker. Zero values fall back to defaults.
type Options struct {
	FailureThreshold int
	RecoveryTimeout  time.Duration
}

// New creates a circuit breaker for the named service.
func New(service string, opts Options) *CircuitBreaker {
	if opts.FailureThreshold <= 0 {
		opts.FailureThreshold = 5
	}
	if opts.RecoveryTimeout <= 0 {
		opts.RecoveryTimeout = 60 * time.Second
	}
	return &CircuitBreaker{
		service:          service,
		state:            StateClosed,
		failureThreshold: opts.FailureThreshold,
		recoveryTimeout:  opts.RecoveryTimeout,
		lastStateChange:  time.Now(),
		now:              time.Now,
	}
}

// Allow reports whether a call may proceed. While open it returns an
// *OpenError carrying a retry-after hint without touching the dependency.
// In half-open state exactly one in-flight probe is admitted.
func (cb *CircuitBreaker) Allow() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		return nil
	case StateOpen:
		elapsed := cb.now().Sub(cb.lastStateChange)
		if elapsed < cb.recoveryTimeout {
			return &OpenError{Service: cb.service, RetryAfter: cb.recoveryTimeout - elapsed}
		}
		cb.state = StateHalfOpen
		cb.halfOpenInFlight = true
		cb.lastStateChange = cb.now()
		return nil
	case StateHalfOpen:
		if cb.halfOpenInFlight {
			return &OpenError{Service: cb.service, RetryAfter: cb.recoveryTimeout}
		}
		cb.halfOpenInFlight = true
		return nil
	}
	return nil
}

// RecordSuccess records a successful call. In closed state the accumulated
// failure count decays by one rather than resetting, so intermittent
// failures recover gradually.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		if cb.failureCount > 0 {
			cb.failureCount--
		}
	case StateHalfOpen:
		cb.state = StateClosed
		cb.failureCount = 0
		cb.halfOpenInFlight = false
		cb.lastStateChange = cb.now()
	}
}

// RecordFailure records a failed call.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.lastFailureTime = cb.now()
	cb.failureCount++

	switch cb.state {
	case StateClosed:
		if cb.failureCount >= cb.failureThreshold {
			cb.state = StateOpen
			cb.lastStateChange = cb.now()
		}
	case StateHalfOpen:
		cb.state = StateOpen
		cb.halfOpenInFlight = false
		cb.lastStateChange = cb.now()
	}
}

// State returns the current state.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// FailureCount returns the accumulated failure count.
func (cb *CircuitBreaker) FailureCount() int {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.failureCount
}

// Reset forces the breaker back to closed. Operator action only.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.state = StateClosed
	cb.failureCount = 0
	cb.halfOpenInFlight = false
	cb.lastStateChange = cb.now()
}
