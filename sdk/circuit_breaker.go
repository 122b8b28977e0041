package sdk

import (
	"errors"
	"sync"
	"time"

	"github.com/sony/gobreaker"
)

// CircuitState represents the current state of a circuit breaker.
//
// State transitions:
//   - Closed -> Open: When the consecutive failure threshold is reached
//   - Open -> Half-Open: After the timeout period expires
//   - Half-Open -> Closed: When the probe requests succeed
//   - Half-Open -> Open: On any failure
type CircuitState int

const (
	// CircuitClosed is the normal operating state.
	CircuitClosed CircuitState = iota
	// CircuitOpen blocks all requests immediately.
	CircuitOpen
	// CircuitHalfOpen allows limited requests to test if PokeAPI has recovered.
	CircuitHalfOpen
)

// String returns the string representation of the circuit state
func (cs CircuitState) String() string {
	switch cs {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitBreaker fails requests fast while PokeAPI is unhealthy.
//
// Only transport failures and 5xx responses count as failures. A 404 for an
// unknown pokemon says nothing about the health of the service.
type CircuitBreaker interface {
	// Execute runs fn if the circuit allows it.
	Execute(fn func() error) error
	// State returns the current state.
	State() CircuitState
	// Reset forgets all counts and closes the circuit.
	Reset()
}

// CircuitBreakerConfig configures the circuit breaker.
type CircuitBreakerConfig struct {
	// Enabled turns the breaker on. Default: true
	Enabled bool

	// FailureThreshold is the number of consecutive failures that opens the circuit.
	// Default: 5
	FailureThreshold int

	// HalfOpenRequests is the number of probe requests allowed while half-open.
	// Default: 1
	HalfOpenRequests int

	// Timeout is how long the circuit stays open before probing.
	// Default: 30s
	Timeout time.Duration

	// Interval is the cyclic period of the closed state after which counts reset.
	// Zero keeps counts until the state changes.
	Interval time.Duration
}

// DefaultCircuitBreakerConfig returns an enabled breaker that opens after
// five consecutive failures and probes again after 30 seconds.
func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		Enabled:          true,
		FailureThreshold: 5,
		HalfOpenRequests: 1,
		Timeout:          30 * time.Second,
	}
}

// circuitBreaker adapts gobreaker to the CircuitBreaker interface.
type circuitBreaker struct {
	mu       sync.RWMutex
	cb       *gobreaker.CircuitBreaker
	settings gobreaker.Settings
}

// NewCircuitBreaker creates a breaker named name. onStateChange, when set,
// is called on every transition.
func NewCircuitBreaker(name string, config CircuitBreakerConfig, onStateChange func(from, to CircuitState)) CircuitBreaker {
	if !config.Enabled {
		return NewNoopCircuitBreaker()
	}

	threshold := uint32(max(1, config.FailureThreshold))
	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: uint32(max(1, config.HalfOpenRequests)),
		Interval:    config.Interval,
		Timeout:     config.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !IsRetryable(err)
		},
	}
	if onStateChange != nil {
		settings.OnStateChange = func(_ string, from, to gobreaker.State) {
			onStateChange(fromGobreakerState(from), fromGobreakerState(to))
		}
	}

	return &circuitBreaker{
		cb:       gobreaker.NewCircuitBreaker(settings),
		settings: settings,
	}
}

// Execute runs fn through the breaker
func (c *circuitBreaker) Execute(fn func() error) error {
	c.mu.RLock()
	cb := c.cb
	c.mu.RUnlock()

	_, err := cb.Execute(func() (interface{}, error) {
		return nil, fn()
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return NewError(ErrorTypeCircuitOpen, err.Error(), err)
	}
	return err
}

// State returns the current state
func (c *circuitBreaker) State() CircuitState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return fromGobreakerState(c.cb.State())
}

// Reset replaces the breaker with a fresh closed one
func (c *circuitBreaker) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cb = gobreaker.NewCircuitBreaker(c.settings)
}

func fromGobreakerState(s gobreaker.State) CircuitState {
	switch s {
	case gobreaker.StateOpen:
		return CircuitOpen
	case gobreaker.StateHalfOpen:
		return CircuitHalfOpen
	default:
		return CircuitClosed
	}
}

// noopCircuitBreaker lets everything through
type noopCircuitBreaker struct{}

func (ncb *noopCircuitBreaker) Execute(fn func() error) error {
	return fn()
}

func (ncb *noopCircuitBreaker) State() CircuitState {
	return CircuitClosed
}

func (ncb *noopCircuitBreaker) Reset() {}

// NewNoopCircuitBreaker returns a breaker that never opens.
func NewNoopCircuitBreaker() CircuitBreaker {
	return &noopCircuitBreaker{}
}
