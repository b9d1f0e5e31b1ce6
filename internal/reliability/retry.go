// Package reliability provides small retry and timing utilities shared by
// the store client and other idempotent operations.
package reliability

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// fixedExponential is a backoff.BackOff whose NextBackOff returns
// baseDelay * 2^attempt, with no jitter.
type fixedExponential struct {
	base    time.Duration
	attempt int
}

func (f *fixedExponential) NextBackOff() time.Duration {
	d := f.base << f.attempt // base * 2^attempt
	f.attempt++
	return d
}

func (f *fixedExponential) Reset() { f.attempt = 0 }

// WithRetry invokes op; on error it sleeps baseDelay*2^attempt and retries up
// to retries additional times. The final failure is returned to the caller.
// Only use this around operations whose store-side effect is naturally
// idempotent (append-only pushes, key SET, heartbeat refresh).
func WithRetry(ctx context.Context, op func() error, retries int, baseDelay time.Duration) error {
	if retries < 0 {
		retries = 0
	}
	bo := backoff.WithContext(backoff.WithMaxRetries(&fixedExponential{base: baseDelay}, uint64(retries)), ctx)
	return backoff.Retry(op, bo)
}
