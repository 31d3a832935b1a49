package retry_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gaurav-prasanna/bookpipe/core/retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastPolicy(attempts int) retry.Policy {
	return retry.Policy{MaxAttempts: attempts, Multiplier: 2}
}

func TestDo(t *testing.T) {
	t.Parallel()

	t.Run("returns nil after a transient failure", func(t *testing.T) {
		t.Parallel()

		calls := 0
		err := retry.Do(context.Background(), fastPolicy(3), nil, func(context.Context) error {
			calls++
			if calls < 2 {
				return errors.New("connection reset")
			}
			return nil
		})

		require.NoError(t, err)
		assert.Equal(t, 2, calls)
	})

	t.Run("stops after max attempts with typed error", func(t *testing.T) {
		t.Parallel()

		cause := errors.New("element not present")
		calls := 0
		err := retry.Do(context.Background(), fastPolicy(4), nil, func(context.Context) error {
			calls++
			return cause
		})

		var exhausted *retry.ExhaustedError
		require.ErrorAs(t, err, &exhausted)
		assert.Equal(t, 4, exhausted.Attempts)
		assert.ErrorIs(t, err, cause)
		assert.Equal(t, 4, calls)
	})

	t.Run("permanent errors are not retried", func(t *testing.T) {
		t.Parallel()

		cause := errors.New("forbidden")
		calls := 0
		err := retry.Do(context.Background(), fastPolicy(5), nil, func(context.Context) error {
			calls++
			return retry.Permanent(cause)
		})

		assert.Equal(t, cause, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("honours cancellation during backoff", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		p := retry.Policy{MaxAttempts: 10, InitialDelay: time.Hour}
		calls := 0
		err := retry.Do(ctx, p, nil, func(context.Context) error {
			calls++
			cancel()
			return errors.New("timeout")
		})

		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 1, calls)
	})

	t.Run("applies per-attempt timeout", func(t *testing.T) {
		t.Parallel()

		p := retry.Policy{MaxAttempts: 2, AttemptTimeout: 10 * time.Millisecond}
		err := retry.Do(context.Background(), p, nil, func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		})

		var exhausted *retry.ExhaustedError
		require.ErrorAs(t, err, &exhausted)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})
}

func TestIsPermanent(t *testing.T) {
	t.Parallel()

	assert.True(t, retry.IsPermanent(retry.Permanent(errors.New("x"))))
	assert.False(t, retry.IsPermanent(errors.New("x")))
	assert.NoError(t, retry.Permanent(nil))
}
