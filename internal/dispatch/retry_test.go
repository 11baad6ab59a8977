package dispatch

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jhmac/sneebly/internal/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCallWithRetrySucceedsImmediately(t *testing.T) {
	calls := 0
	text, err := callWithRetry(context.Background(), func(ctx context.Context) (string, error) {
		calls++
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", text)
	assert.Equal(t, 1, calls)
}

func TestCallWithRetryNeverRetriesAuthErrors(t *testing.T) {
	calls := 0
	_, err := callWithRetry(context.Background(), func(ctx context.Context) (string, error) {
		calls++
		return "", &llm.VendorError{Kind: llm.ErrorKindAuth, Message: "bad key"}
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestCallWithRetryRetriesRateLimitUpToMax(t *testing.T) {
	calls := 0
	_, err := callWithRetry(context.Background(), func(ctx context.Context) (string, error) {
		calls++
		return "", &llm.VendorError{Kind: llm.ErrorKindRateLimit, Message: "slow down", RetryAfter: 0}
	})
	require.Error(t, err)
	assert.Equal(t, maxRetries+1, calls)
}

func TestCallWithRetryStopsOnNonVendorError(t *testing.T) {
	calls := 0
	_, err := callWithRetry(context.Background(), func(ctx context.Context) (string, error) {
		calls++
		return "", errors.New("boom")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestBackoffForHonorsRetryAfter(t *testing.T) {
	ve := &llm.VendorError{Kind: llm.ErrorKindRateLimit, RetryAfter: 5}
	assert.Equal(t, 5*time.Second, backoffFor(ve, 1))
}

func TestBackoffForCapsExponentialGrowth(t *testing.T) {
	ve := &llm.VendorError{Kind: llm.ErrorKindOverloaded}
	d := backoffFor(ve, 10)
	assert.LessOrEqual(t, d, time.Duration(backoffCapSeconds)*time.Second+time.Second)
}
