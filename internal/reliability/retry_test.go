package reliability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWithRetry_SucceedsOnFirstAttempt(t *testing.T) {
	calls := 0
	err := WithRetry(context.Background(), func() error {
		calls++
		return nil
	}, 3, time.Millisecond)

	require.NoError(t, err)
	require.Equal(t, 1, calls)
}

func TestWithRetry_RetriesUpToLimitThenReturnsLastError(t *testing.T) {
	calls := 0
	boom := errors.New("boom")
	err := WithRetry(context.Background(), func() error {
		calls++
		return boom
	}, 2, time.Millisecond)

	require.ErrorIs(t, err, boom)
	require.Equal(t, 3, calls, "initial attempt plus 2 retries")
}

func TestWithRetry_SucceedsAfterTransientFailures(t *testing.T) {
	calls := 0
	err := WithRetry(context.Background(), func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	}, 5, time.Millisecond)

	require.NoError(t, err)
	require.Equal(t, 3, calls)
}

func TestWithRetry_NegativeRetriesClampToZero(t *testing.T) {
	calls := 0
	err := WithRetry(context.Background(), func() error {
		calls++
		return errors.New("fail")
	}, -1, time.Millisecond)

	require.Error(t, err)
	require.Equal(t, 1, calls)
}
