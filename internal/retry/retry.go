// Package retry wraps a single network call with exponential backoff.
package retry

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"
)

// ErrRetriesExhausted is returned when every attempt finished without
// producing a result or an error to propagate. The invoke loop always
// returns on its final attempt, so this is a guard rather than an
// expected outcome.
var ErrRetriesExhausted = errors.New("retry: retries exhausted")

const (
	DefaultMaxAttempts = 5
	defaultBaseDelay   = time.Second
	defaultMaxJitter   = time.Second
)

// Invoker retries an operation with exponential backoff plus random jitter
// (2^attempt seconds, up to one extra second of jitter so concurrent clients
// do not retry in lockstep).
//
// The failure modes are deliberately asymmetric: an operation error is
// treated as a transport failure and the last one is returned, while a
// result that Retryable still rejects on the final attempt is returned
// as-is with a nil error. Callers can therefore tell "the service replied
// badly" apart from "the service was unreachable".
type Invoker[T any] struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxJitter   time.Duration

	// Retryable reports whether a non-error result should still be retried.
	// Nil means any non-error result is a success.
	Retryable func(T) bool

	// Test seams.
	sleep  func(context.Context, time.Duration) error
	jitter func(time.Duration) time.Duration
}

// Invoke runs op until it succeeds, attempts are exhausted, or ctx is done.
func (iv Invoker[T]) Invoke(ctx context.Context, op func(context.Context) (T, error)) (T, error) {
	maxAttempts := iv.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	base := iv.BaseDelay
	if base <= 0 {
		base = defaultBaseDelay
	}
	maxJitter := iv.MaxJitter
	if maxJitter <= 0 {
		maxJitter = defaultMaxJitter
	}
	sleep := iv.sleep
	if sleep == nil {
		sleep = sleepCtx
	}
	jitter := iv.jitter
	if jitter == nil {
		jitter = randomJitter
	}

	var zero T
	for attempt := 0; attempt < maxAttempts; attempt++ {
		v, err := op(ctx)
		last := attempt == maxAttempts-1

		if err == nil && (iv.Retryable == nil || !iv.Retryable(v)) {
			return v, nil
		}
		if last {
			if err != nil {
				return zero, err
			}
			return v, nil
		}

		delay := base<<attempt + jitter(maxJitter)
		if serr := sleep(ctx, delay); serr != nil {
			return zero, serr
		}
	}
	return zero, ErrRetriesExhausted
}

func randomJitter(max time.Duration) time.Duration {
	if max <= 0 {
		return 0
	}
	return rand.N(max)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
