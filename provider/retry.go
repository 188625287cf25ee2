package provider

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryPolicy is a small pure policy for transport-level retries.
// It wraps only the network call: parse and validation failures are
// never routed through it
type RetryPolicy struct {
	MaxAttempts     uint64
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultRetryPolicy returns the standard source retry budget
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:     3,
		InitialInterval: 200 * time.Millisecond,
		MaxInterval:     time.Second,
	}
}

// Do runs op, retrying transient failures with exponential backoff until
// the attempt budget runs out. Wrap an error in backoff.Permanent to stop
// retrying immediately
func (p RetryPolicy) Do(ctx context.Context, op func() error) error {
	attempts := p.MaxAttempts
	if attempts == 0 {
		attempts = 1
	}

	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = p.InitialInterval
	exp.MaxInterval = p.MaxInterval

	b := backoff.WithMaxRetries(backoff.WithContext(exp, ctx), attempts-1)

	return backoff.Retry(op, b)
}

// Permanent marks an error as non-retryable
func Permanent(err error) error {
	return backoff.Permanent(err)
}
