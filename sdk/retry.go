package sdk

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"
)

// RetryStrategy decides whether and when a failed request is repeated.
//
// The SDK provides:
//   - ExponentialBackoffStrategy: exponentially increasing delays (the default)
//   - ConstantBackoffStrategy: fixed delay between retries
//   - NoRetryStrategy: disables retries entirely
//
// Custom strategies implement both methods:
//
//	type CustomStrategy struct{}
//
//	func (s *CustomStrategy) NextInterval(attempt int) time.Duration {
//	    return time.Duration(attempt*attempt) * time.Second
//	}
//
//	func (s *CustomStrategy) ShouldRetry(err error, attempt int) bool {
//	    return sdk.IsRetryable(err) && attempt <= 5
//	}
type RetryStrategy interface {
	// NextInterval returns the delay before the next retry attempt.
	// The attempt parameter starts at 1 for the first retry.
	// Return 0 to indicate no more retries should be attempted.
	NextInterval(attempt int) time.Duration

	// ShouldRetry determines if the error is retryable for the given attempt.
	ShouldRetry(err error, attempt int) bool
}

// RetryBudget limits retry attempts by count and duration.
type RetryBudget struct {
	// MaxAttempts is the maximum number of retries after the first attempt.
	MaxAttempts int

	// MaxDuration is the maximum total time spent retrying. Zero means no limit.
	MaxDuration time.Duration

	// RetryableErrors restricts retries to these error types when non-empty.
	RetryableErrors []ErrorType
}

// DefaultRetryBudget allows two retries within 30 seconds.
func DefaultRetryBudget() RetryBudget {
	return RetryBudget{
		MaxAttempts: 2,
		MaxDuration: 30 * time.Second,
	}
}

// IsExhausted checks if the retry budget is exhausted
func (rb *RetryBudget) IsExhausted(attempt int, elapsed time.Duration) bool {
	if attempt > rb.MaxAttempts {
		return true
	}
	if rb.MaxDuration > 0 && elapsed >= rb.MaxDuration {
		return true
	}
	return false
}

// IsRetryable checks if an error is allowed by the budget
func (rb *RetryBudget) IsRetryable(err error) bool {
	if !IsRetryable(err) {
		return false
	}
	if len(rb.RetryableErrors) == 0 {
		return true
	}

	var enhancedErr *Error
	if errors.As(err, &enhancedErr) {
		for _, allowed := range rb.RetryableErrors {
			if enhancedErr.Type == allowed {
				return true
			}
		}
	}
	return false
}

// budgeted is implemented by strategies that carry a RetryBudget.
type budgeted interface {
	retryBudget() *RetryBudget
}

// ExponentialBackoffStrategy implements exponential backoff with optional jitter.
//
// The delay calculation is:
//
//	base = InitialInterval * (Multiplier ^ (attempt-1))
//	delay = min(base, MaxInterval) ± jitter
//
// The default (300ms, x2, no jitter, two retries) waits 300ms then 600ms.
type ExponentialBackoffStrategy struct {
	// InitialInterval is the delay before the first retry.
	InitialInterval time.Duration

	// MaxInterval caps every delay.
	MaxInterval time.Duration

	// Multiplier is the exponential growth factor.
	Multiplier float64

	// Jitter is the randomization factor (0.0 to 1.0).
	Jitter float64

	// Budget limits retry attempts by count and duration.
	Budget RetryBudget
}

// DefaultExponentialBackoff returns the strategy PokeAPI clients use by default.
func DefaultExponentialBackoff() *ExponentialBackoffStrategy {
	return &ExponentialBackoffStrategy{
		InitialInterval: 300 * time.Millisecond,
		MaxInterval:     5 * time.Second,
		Multiplier:      2.0,
		Budget:          DefaultRetryBudget(),
	}
}

// NewExponentialBackoff builds the strategy described by a RetryConfig.
func NewExponentialBackoff(cfg RetryConfig) *ExponentialBackoffStrategy {
	budget := DefaultRetryBudget()
	budget.MaxAttempts = cfg.MaxRetries
	return &ExponentialBackoffStrategy{
		InitialInterval: cfg.InitialInterval,
		MaxInterval:     cfg.MaxInterval,
		Multiplier:      cfg.Multiplier,
		Jitter:          cfg.Jitter,
		Budget:          budget,
	}
}

// NextInterval calculates the next retry interval
func (s *ExponentialBackoffStrategy) NextInterval(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}

	interval := float64(s.InitialInterval) * math.Pow(s.Multiplier, float64(attempt-1))
	if interval > float64(s.MaxInterval) {
		interval = float64(s.MaxInterval)
	}

	if s.Jitter > 0 {
		jitterRange := interval * s.Jitter
		interval += jitterRange * (2*rand.Float64() - 1)
	}
	if interval < 0 {
		interval = 0
	}

	return time.Duration(interval)
}

// ShouldRetry determines if the error is retryable
func (s *ExponentialBackoffStrategy) ShouldRetry(err error, attempt int) bool {
	return s.Budget.IsRetryable(err)
}

func (s *ExponentialBackoffStrategy) retryBudget() *RetryBudget {
	return &s.Budget
}

// ConstantBackoffStrategy implements constant interval retries.
//
// Example:
//
//	config := sdk.DefaultConfig().
//	    WithRetryStrategy(&sdk.ConstantBackoffStrategy{
//	        Interval: 500 * time.Millisecond,
//	        Budget:   sdk.DefaultRetryBudget(),
//	    })
type ConstantBackoffStrategy struct {
	// Interval is the fixed interval between retries.
	Interval time.Duration

	// Budget limits retry attempts.
	Budget RetryBudget
}

// NextInterval returns the next retry interval
func (s *ConstantBackoffStrategy) NextInterval(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	return s.Interval
}

// ShouldRetry determines if the error is retryable
func (s *ConstantBackoffStrategy) ShouldRetry(err error, attempt int) bool {
	return s.Budget.IsRetryable(err)
}

func (s *ConstantBackoffStrategy) retryBudget() *RetryBudget {
	return &s.Budget
}

// NoRetryStrategy disables retries entirely.
type NoRetryStrategy struct{}

// NextInterval always returns 0
func (s *NoRetryStrategy) NextInterval(attempt int) time.Duration {
	return 0
}

// ShouldRetry always returns false
func (s *NoRetryStrategy) ShouldRetry(err error, attempt int) bool {
	return false
}

// retryExecutor runs an operation under a RetryStrategy.
type retryExecutor struct {
	strategy RetryStrategy
	onRetry  func(attempt int, err error, delay time.Duration)
}

func newRetryExecutor(strategy RetryStrategy) *retryExecutor {
	if strategy == nil {
		strategy = DefaultExponentialBackoff()
	}
	return &retryExecutor{strategy: strategy}
}

// Execute runs fn until it succeeds, the strategy gives up, or ctx is done.
// fn receives the zero-based attempt number. It returns the number of
// retries performed alongside the final error.
func (re *retryExecutor) Execute(ctx context.Context, fn func(attempt int) error) (int, error) {
	startTime := time.Now()

	for attempt := 0; ; attempt++ {
		err := fn(attempt)
		if err == nil {
			return attempt, nil
		}

		next := attempt + 1
		if !re.strategy.ShouldRetry(err, next) {
			return attempt, err
		}
		if b, ok := re.strategy.(budgeted); ok && b.retryBudget().IsExhausted(next, time.Since(startTime)) {
			return attempt, err
		}

		interval := re.strategy.NextInterval(next)
		if interval <= 0 {
			return attempt, err
		}
		if re.onRetry != nil {
			re.onRetry(next, err, interval)
		}

		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return attempt, (&TimeoutError{Op: "retry wait", Err: ctx.Err()}).ToError()
		case <-timer.C:
		}
	}
}
