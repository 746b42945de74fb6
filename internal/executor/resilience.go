package executor

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"
)

// RetryConfig configures exponential backoff pacing for requeued attempts.
type RetryConfig struct {
	InitialInterval     time.Duration // First retry delay (default 500ms)
	MaxInterval         time.Duration // Delay ceiling (default 30s)
	Multiplier          float64       // Growth factor (default 2.0)
	RandomizationFactor float64       // Jitter factor (default 0.5)
}

// DefaultRetryConfig returns the default retry configuration.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		InitialInterval:     500 * time.Millisecond,
		MaxInterval:         30 * time.Second,
		Multiplier:          2.0,
		RandomizationFactor: 0.5,
	}
}

// DelayFunc returns a function computing the requeue delay after the given
// attempt number (1-based). Suitable for scheduler.Options.RetryDelay.
func (c RetryConfig) DelayFunc() func(attempt int) time.Duration {
	return func(attempt int) time.Duration {
		policy := backoff.NewExponentialBackOff()
		policy.InitialInterval = c.InitialInterval
		policy.MaxInterval = c.MaxInterval
		policy.Multiplier = c.Multiplier
		policy.RandomizationFactor = c.RandomizationFactor
		policy.MaxElapsedTime = 0 // never give up; the attempt cap lives in the scheduler

		var delay time.Duration
		for i := 0; i < attempt; i++ {
			delay = policy.NextBackOff()
		}
		if delay < 0 {
			delay = c.MaxInterval
		}
		return delay
	}
}

// BreakerRegistry manages per-action-target circuit breakers.
type BreakerRegistry struct {
	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker
}

// NewBreakerRegistry creates an empty registry.
func NewBreakerRegistry() *BreakerRegistry {
	return &BreakerRegistry{
		breakers: make(map[string]*gobreaker.CircuitBreaker),
	}
}

// Get returns the circuit breaker for the given target, creating it on first
// use.
func (r *BreakerRegistry) Get(target string) *gobreaker.CircuitBreaker {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cb, ok := r.breakers[target]; ok {
		return cb
	}

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        target,
		MaxRequests: 3,                // Test requests allowed in half-open state
		Interval:    0,                // Don't clear counts automatically
		Timeout:     30 * time.Second, // Stay open for 30s before probing recovery
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Printf("Circuit breaker %q: %s -> %s", name, from, to)
		},
		IsSuccessful: func(err error) bool {
			// Caller cancellation is not a target failure.
			if err == nil {
				return true
			}
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return true
			}
			return false
		},
	})

	r.breakers[target] = cb
	return cb
}
