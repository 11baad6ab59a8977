package dispatch

import (
	"context"
	"math/rand"
	"time"

	"github.com/jhmac/sneebly/internal/llm"
	"github.com/jhmac/sneebly/internal/logging"
)

const (
	maxRetries          = 2
	backoffCapSeconds   = 120
	unreachableRetryCap = 1
)

// backoffFor computes the wait before retry attempt n (1-indexed) for the
// given vendor error, honoring Retry-After when the vendor supplied one and
// otherwise using exponential backoff capped at 120s plus jitter.
func backoffFor(ve *llm.VendorError, attempt int) time.Duration {
	if ve.Kind == llm.ErrorKindRateLimit && ve.RetryAfter > 0 {
		return time.Duration(ve.RetryAfter) * time.Second
	}

	base := time.Duration(1<<uint(attempt)) * time.Second
	ceiling := time.Duration(backoffCapSeconds) * time.Second
	if base > ceiling {
		base = ceiling
	}
	jitter := time.Duration(rand.Int63n(int64(500 * time.Millisecond)))
	return base + jitter
}

// callWithRetry invokes fn, retrying per the vendor error taxonomy: auth
// and billing never retry, rate-limit and overloaded retry up to
// maxRetries with backoff, unreachable retries at most once. Returns the
// final result or the last error once retries are exhausted.
func callWithRetry(ctx context.Context, fn func(context.Context) (string, error)) (string, error) {
	var lastErr error

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			ve, ok := llm.AsVendorError(lastErr)
			if !ok {
				return "", lastErr
			}
			wait := backoffFor(ve, attempt)
			logging.DispatchDebug("retrying after vendor error kind=%s attempt=%d wait=%s", ve.Kind, attempt, wait)
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}

		text, err := fn(ctx)
		if err == nil {
			return text, nil
		}

		ve, ok := llm.AsVendorError(err)
		if !ok || !ve.Retryable() {
			return "", err
		}
		if ve.Kind == llm.ErrorKindUnreachable && attempt >= unreachableRetryCap {
			return "", err
		}
		lastErr = err
	}

	return "", lastErr
}
