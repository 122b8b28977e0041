package sdk

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRetryStrategies_ExponentialBackoff(t *testing.T) {
	t.Run("basic exponential progression", func(t *testing.T) {
		strategy := &ExponentialBackoffStrategy{
			InitialInterval: 10 * time.Millisecond,
			MaxInterval:     100 * time.Millisecond,
			Multiplier:      2.0,
			Budget:          DefaultRetryBudget(),
		}

		expectedIntervals := []time.Duration{
			10 * time.Millisecond,
			20 * time.Millisecond,
			40 * time.Millisecond,
			80 * time.Millisecond,
			100 * time.Millisecond, // capped
			100 * time.Millisecond,
		}

		for i, expected := range expectedIntervals {
			assert.Equal(t, expected, strategy.NextInterval(i+1), "Interval for attempt %d", i+1)
		}
		assert.Zero(t, strategy.NextInterval(0))
	})

	t.Run("default waits 300ms then 600ms", func(t *testing.T) {
		strategy := NewExponentialBackoff(DefaultConfig().RetryConfig)

		assert.Equal(t, 300*time.Millisecond, strategy.NextInterval(1))
		assert.Equal(t, 600*time.Millisecond, strategy.NextInterval(2))
		assert.Equal(t, 2, strategy.Budget.MaxAttempts)
	})

	t.Run("jitter stays within range", func(t *testing.T) {
		strategy := &ExponentialBackoffStrategy{
			InitialInterval: 100 * time.Millisecond,
			MaxInterval:     time.Second,
			Multiplier:      2.0,
			Jitter:          0.5,
			Budget:          DefaultRetryBudget(),
		}

		for i := 0; i < 20; i++ {
			interval := strategy.NextInterval(1)
			assert.GreaterOrEqual(t, interval, 50*time.Millisecond)
			assert.LessOrEqual(t, interval, 150*time.Millisecond)
		}
	})

	t.Run("only retryable errors are retried", func(t *testing.T) {
		strategy := DefaultExponentialBackoff()

		assert.True(t, strategy.ShouldRetry(NewStatusError(http.StatusServiceUnavailable, nil), 1))
		assert.True(t, strategy.ShouldRetry((&NetworkError{Op: "dial", Err: errors.New("refused")}).ToError(), 1))
		assert.False(t, strategy.ShouldRetry(NewStatusError(http.StatusTooManyRequests, nil), 1))
		assert.False(t, strategy.ShouldRetry(NewStatusError(http.StatusNotFound, nil), 1))
	})
}

func TestRetryStrategies_Constant(t *testing.T) {
	strategy := &ConstantBackoffStrategy{Interval: 25 * time.Millisecond, Budget: DefaultRetryBudget()}

	assert.Equal(t, 25*time.Millisecond, strategy.NextInterval(1))
	assert.Equal(t, 25*time.Millisecond, strategy.NextInterval(7))
	assert.Zero(t, strategy.NextInterval(0))

	none := &NoRetryStrategy{}
	assert.False(t, none.ShouldRetry(NewStatusError(http.StatusInternalServerError, nil), 1))
	assert.Zero(t, none.NextInterval(1))
}

func TestRetryBudget(t *testing.T) {
	budget := RetryBudget{MaxAttempts: 2, MaxDuration: time.Second}

	assert.False(t, budget.IsExhausted(1, 0))
	assert.False(t, budget.IsExhausted(2, 0))
	assert.True(t, budget.IsExhausted(3, 0))
	assert.True(t, budget.IsExhausted(1, time.Second))

	restricted := RetryBudget{MaxAttempts: 2, RetryableErrors: []ErrorType{ErrorTypeServiceUnavailable}}
	assert.True(t, restricted.IsRetryable(NewStatusError(http.StatusBadGateway, nil)))
	assert.False(t, restricted.IsRetryable(NewStatusError(http.StatusInternalServerError, nil)))
}

func fastBackoff(maxAttempts int) *ExponentialBackoffStrategy {
	return &ExponentialBackoffStrategy{
		InitialInterval: time.Millisecond,
		MaxInterval:     5 * time.Millisecond,
		Multiplier:      2.0,
		Budget: RetryBudget{
			MaxAttempts: maxAttempts,
			MaxDuration: time.Second,
		},
	}
}

func TestRetryExecutor_Execute(t *testing.T) {
	t.Run("successful on first attempt", func(t *testing.T) {
		attempts := 0
		executor := newRetryExecutor(DefaultExponentialBackoff())

		retries, err := executor.Execute(context.Background(), func(int) error {
			attempts++
			return nil
		})

		assert.NoError(t, err)
		assert.Equal(t, 1, attempts)
		assert.Zero(t, retries)
	})

	t.Run("successful after retries", func(t *testing.T) {
		attempts := 0
		executor := newRetryExecutor(fastBackoff(5))

		retries, err := executor.Execute(context.Background(), func(int) error {
			attempts++
			if attempts < 3 {
				return NewStatusError(http.StatusInternalServerError, nil)
			}
			return nil
		})

		assert.NoError(t, err)
		assert.Equal(t, 3, attempts)
		assert.Equal(t, 2, retries)
	})

	t.Run("max retries bounds total attempts", func(t *testing.T) {
		attempts := 0
		executor := newRetryExecutor(fastBackoff(2))

		retries, err := executor.Execute(context.Background(), func(int) error {
			attempts++
			return (&NetworkError{Op: "dial", Err: errors.New("refused")}).ToError()
		})

		assert.ErrorIs(t, err, ErrConnection)
		assert.Equal(t, 3, attempts, "one attempt plus two retries")
		assert.Equal(t, 2, retries)
	})

	t.Run("4xx is not retried", func(t *testing.T) {
		attempts := 0
		executor := newRetryExecutor(fastBackoff(5))

		_, err := executor.Execute(context.Background(), func(int) error {
			attempts++
			return NewStatusError(http.StatusNotFound, nil)
		})

		assert.ErrorIs(t, err, ErrNotFound)
		assert.Equal(t, 1, attempts)
	})

	t.Run("attempt numbers are zero based", func(t *testing.T) {
		var seen []int
		executor := newRetryExecutor(fastBackoff(2))

		_, _ = executor.Execute(context.Background(), func(attempt int) error {
			seen = append(seen, attempt)
			return NewStatusError(http.StatusBadGateway, nil)
		})

		assert.Equal(t, []int{0, 1, 2}, seen)
	})

	t.Run("onRetry sees each delay", func(t *testing.T) {
		var delays []time.Duration
		executor := newRetryExecutor(fastBackoff(2))
		executor.onRetry = func(attempt int, err error, delay time.Duration) {
			delays = append(delays, delay)
		}

		_, _ = executor.Execute(context.Background(), func(int) error {
			return NewStatusError(http.StatusBadGateway, nil)
		})

		assert.Equal(t, []time.Duration{time.Millisecond, 2 * time.Millisecond}, delays)
	})

	t.Run("context cancellation stops the wait", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		executor := newRetryExecutor(&ConstantBackoffStrategy{
			Interval: time.Hour,
			Budget:   DefaultRetryBudget(),
		})

		attempts := 0
		go func() {
			time.Sleep(20 * time.Millisecond)
			cancel()
		}()

		_, err := executor.Execute(ctx, func(int) error {
			attempts++
			return NewStatusError(http.StatusInternalServerError, nil)
		})

		assert.ErrorIs(t, err, ErrTimeout)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 1, attempts)
	})
}
