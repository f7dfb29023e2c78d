package errors

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:   3,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2.0,
	}
}

func TestRetryWithResult_SucceedsFirstAttempt(t *testing.T) {
	calls := 0
	result, err := RetryWithResult(context.Background(), fastRetryConfig(), func() (string, error) {
		calls++
		return "ok", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "ok", result)
	assert.Equal(t, 1, calls)
}

func TestRetryWithResult_RetriesTransientErrors(t *testing.T) {
	// Given: a call that fails twice with a retryable error, then succeeds
	calls := 0
	result, err := RetryWithResult(context.Background(), fastRetryConfig(), func() (int, error) {
		calls++
		if calls < 3 {
			return 0, New(ErrCodeNetworkTimeout, "embedder busy", nil)
		}
		return 42, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 42, result)
	assert.Equal(t, 3, calls)
}

func TestRetryWithResult_DoesNotRetryPermanentErrors(t *testing.T) {
	// Given: a non-retryable failure
	calls := 0
	_, err := RetryWithResult(context.Background(), fastRetryConfig(), func() (int, error) {
		calls++
		return 0, New(ErrCodeDimensionMismatch, "384 vs 768", nil)
	})

	// Then: it fails immediately, no retries
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetryWithResult_ExhaustsRetries(t *testing.T) {
	calls := 0
	_, err := RetryWithResult(context.Background(), fastRetryConfig(), func() (int, error) {
		calls++
		return 0, New(ErrCodeNetworkUnavailable, "connection refused", nil)
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed after 3 retries")
	assert.Equal(t, 4, calls) // initial + 3 retries
}

func TestRetryWithResult_ContextCancellationAborts(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	_, err := RetryWithResult(ctx, fastRetryConfig(), func() (int, error) {
		calls++
		return 0, New(ErrCodeNetworkTimeout, "timeout", nil)
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, calls)
}
