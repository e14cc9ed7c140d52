package broker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetryPolicyStopsOnNonRetryableError(t *testing.T) {
	calls := 0
	err := OrderRetryPolicy.Do(context.Background(), func(error) bool { return false }, func(ctx context.Context) error {
		calls++
		return errors.New("business reject")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetryPolicyRetriesUpToMaxAttempts(t *testing.T) {
	policy := RetryPolicy{InitialDelay: time.Millisecond, Multiplier: 1, MaxDelay: time.Millisecond, MaxAttempts: 3}
	calls := 0
	err := policy.Do(context.Background(), func(error) bool { return true }, func(ctx context.Context) error {
		calls++
		return errors.New("transport error")
	})
	require.Error(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryPolicySucceedsWithoutExhaustingAttempts(t *testing.T) {
	policy := RetryPolicy{InitialDelay: time.Millisecond, Multiplier: 1, MaxDelay: time.Millisecond, MaxAttempts: 5}
	calls := 0
	err := policy.Do(context.Background(), func(error) bool { return true }, func(ctx context.Context) error {
		calls++
		if calls < 2 {
			return errors.New("transport error")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}
