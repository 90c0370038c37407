package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRetry_SucceedsWithoutRetryOnFirstAttempt(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), DefaultRetryConfig(), func() error {
		calls++
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetry_NonRetryableErrorReturnsImmediately(t *testing.T) {
	calls := 0
	sentinel := errors.New("permanent")
	err := Retry(context.Background(), DefaultRetryConfig(), func() error {
		calls++
		return sentinel
	})
	assert.ErrorIs(t, err, sentinel)
	assert.Equal(t, 1, calls)
}

func TestRetry_RetryableErrorRetriesUntilSuccess(t *testing.T) {
	calls := 0
	cfg := RetryConfig{MaxAttempts: 3, MinWait: time.Millisecond, MaxWait: 5 * time.Millisecond}
	err := Retry(context.Background(), cfg, func() error {
		calls++
		if calls < 3 {
			return Retryable(errors.New("transient"))
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetry_ExhaustsAttemptsAndReturnsLastError(t *testing.T) {
	calls := 0
	cfg := RetryConfig{MaxAttempts: 2, MinWait: time.Millisecond, MaxWait: 5 * time.Millisecond}
	err := Retry(context.Background(), cfg, func() error {
		calls++
		return Retryable(errors.New("always fails"))
	})
	assert.Error(t, err)
	assert.Equal(t, 2, calls)
}

func TestRetry_RespectsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	cfg := RetryConfig{MaxAttempts: 5, MinWait: 10 * time.Millisecond, MaxWait: time.Second}

	err := Retry(ctx, cfg, func() error {
		return Retryable(errors.New("transient"))
	})
	assert.ErrorIs(t, err, context.Canceled)
}
