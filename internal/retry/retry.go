// Package retry wraps fallible external calls with exponential backoff.
//
// The policy is bounded-attempts, not bounded-time: there is no wall-clock
// deadline across attempts beyond what the caller's context imposes. The
// delay schedule is deterministic (no jitter) so the configured values are
// exactly what operators observe.
package retry

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Policy configures the retry behavior for one wrapped client.
// It is not persisted; each wrapped call site gets its own copy.
type Policy struct {
	// MaxRetries is the number of re-attempts after the first failure.
	// Total attempts = MaxRetries + 1. Zero means a single attempt.
	MaxRetries int
	// InitialDelay is the wait before the second attempt.
	InitialDelay time.Duration
	// BackoffFactor multiplies the delay after each failed attempt.
	BackoffFactor float64
	// MaxDelay caps the grown delay.
	MaxDelay time.Duration
}

// Default returns the standard policy: 3 retries, 500ms initial delay,
// factor 2, 10s cap.
func Default() Policy {
	return Policy{
		MaxRetries:    3,
		InitialDelay:  500 * time.Millisecond,
		BackoffFactor: 2,
		MaxDelay:      10 * time.Second,
	}
}

// Validate checks the policy for nonsensical values.
func (p Policy) Validate() error {
	if p.MaxRetries < 0 {
		return fmt.Errorf("retry: max retries must be >= 0 (got %d)", p.MaxRetries)
	}
	if p.InitialDelay <= 0 {
		return fmt.Errorf("retry: initial delay must be > 0 (got %s)", p.InitialDelay)
	}
	if p.BackoffFactor < 1 {
		return fmt.Errorf("retry: backoff factor must be >= 1 (got %g)", p.BackoffFactor)
	}
	if p.MaxDelay < p.InitialDelay {
		return fmt.Errorf("retry: max delay %s must be >= initial delay %s", p.MaxDelay, p.InitialDelay)
	}
	return nil
}

// Permanent marks an error as not worth retrying. Do stops immediately on
// a permanent error and surfaces the original error unchanged. A nil error
// stays nil.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return backoff.Permanent(err)
}

// newBackOff builds the backoff schedule for one call.
// BackOff implementations are stateful; always return a fresh instance.
func (p Policy) newBackOff() backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = p.InitialDelay
	bo.Multiplier = p.BackoffFactor
	bo.MaxInterval = p.MaxDelay
	// No jitter: the delay series is the documented geometric progression.
	bo.RandomizationFactor = 0
	// Bounded attempts, not bounded time.
	bo.MaxElapsedTime = 0
	bo.Reset()
	return bo
}

// Do executes fn with up to MaxRetries+1 attempts. On success the result is
// returned immediately. Every failed attempt (including the last) is logged
// with the operation name, identifier, attempt number and ceiling. The
// error surfaced after exhaustion is the error from the final attempt,
// unchanged. An error wrapped with Permanent ends the loop on the attempt
// that produced it. Waits between attempts respect ctx cancellation.
func Do[T any](ctx context.Context, p Policy, operation, id string, fn func(context.Context) (T, error)) (T, error) {
	var result T
	attempts := p.MaxRetries + 1
	attempt := 0

	op := func() error {
		attempt++
		v, err := fn(ctx)
		if err != nil {
			log.Printf("retry: %s %s: attempt %d/%d failed: %v", operation, id, attempt, attempts, err)
			return err
		}
		result = v
		return nil
	}

	bo := backoff.WithContext(backoff.WithMaxRetries(p.newBackOff(), uint64(p.MaxRetries)), ctx)
	if err := backoff.Retry(op, bo); err != nil {
		var zero T
		return zero, err
	}
	return result, nil
}
