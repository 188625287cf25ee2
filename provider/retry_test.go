package provider

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPolicy(attempts uint64) RetryPolicy {
	return RetryPolicy{
		MaxAttempts:     attempts,
		InitialInterval: time.Millisecond,
		MaxInterval:     time.Millisecond,
	}
}

func TestRetryPolicy_Do(t *testing.T) {
	t.Parallel()

	t.Run("succeeds without retry", func(t *testing.T) {
		t.Parallel()

		var calls int

		err := testPolicy(3).Do(context.Background(), func() error {
			calls++

			return nil
		})

		require.NoError(t, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("retries up to the attempt budget", func(t *testing.T) {
		t.Parallel()

		var (
			calls   int
			errBoom = errors.New("boom")
		)

		err := testPolicy(3).Do(context.Background(), func() error {
			calls++

			return errBoom
		})

		require.ErrorIs(t, err, errBoom)
		assert.Equal(t, 3, calls)
	})

	t.Run("recovers mid-budget", func(t *testing.T) {
		t.Parallel()

		var calls int

		err := testPolicy(3).Do(context.Background(), func() error {
			calls++

			if calls < 2 {
				return errors.New("transient")
			}

			return nil
		})

		require.NoError(t, err)
		assert.Equal(t, 2, calls)
	})

	t.Run("permanent error stops immediately", func(t *testing.T) {
		t.Parallel()

		var (
			calls   int
			errBoom = errors.New("bad request")
		)

		err := testPolicy(5).Do(context.Background(), func() error {
			calls++

			return Permanent(errBoom)
		})

		require.ErrorIs(t, err, errBoom)
		assert.Equal(t, 1, calls)
	})

	t.Run("zero attempts behaves as one", func(t *testing.T) {
		t.Parallel()

		var calls int

		err := testPolicy(0).Do(context.Background(), func() error {
			calls++

			return errors.New("boom")
		})

		require.Error(t, err)
		assert.Equal(t, 1, calls)
	})
}
