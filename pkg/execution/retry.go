package execution

import (
	"context"
	"math/rand"
	"time"
)

// RetryableFunc is a function that can be retried.
type RetryableFunc[T any] func(ctx context.Context) (T, error)

// WithRetry executes a function with exponential backoff and jitter
// between attempts, returning the last error when all attempts fail.
func WithRetry[T any](ctx context.Context, maxRetries int, initialBackoff time.Duration, maxBackoff time.Duration, fn RetryableFunc[T]) (T, error) {
	var result T
	var err error

	for i := 0; i < maxRetries; i++ {
		result, err = fn(ctx)
		if err == nil {
			return result, nil
		}
		if ctx.Err() != nil {
			return result, ctx.Err()
		}

		backoff := initialBackoff * (1 << i)
		if backoff > maxBackoff {
			backoff = maxBackoff
		}

		jitter := time.Duration(rand.Intn(100)) * time.Millisecond
		time.Sleep(backoff + jitter)
	}

	return result, err
}
