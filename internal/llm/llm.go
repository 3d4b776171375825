// Package llm provides shared plumbing for language-model and embedding
// backends: provider error classification and the timeout/retry policy applied
// to every outbound call.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"
)

const (
	// CallTimeout bounds a single provider call.
	CallTimeout = 30 * time.Second

	// MaxAttempts is the retry ceiling for retryable failures.
	MaxAttempts = 3
)

// ProviderError is a failure from an embedding or generation backend.
// Retryable failures (rate limits, 5xx, timeouts) are retried by Do up to
// MaxAttempts; others propagate immediately.
type ProviderError struct {
	Backend   string
	Status    int
	Retryable bool
	Err       error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s provider error (status %d): %v", e.Backend, e.Status, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// Classify wraps a backend error with its retryability. Status 0 means the
// call failed before an HTTP status was available (network error, timeout),
// which is treated as retryable.
func Classify(backend string, status int, err error) *ProviderError {
	retryable := status == 0 ||
		status == http.StatusTooManyRequests ||
		status == http.StatusRequestTimeout ||
		status >= 500
	return &ProviderError{Backend: backend, Status: status, Retryable: retryable, Err: err}
}

// Do runs fn with the per-call timeout and retries retryable provider errors
// with exponential backoff, up to MaxAttempts total attempts.
func Do[T any](ctx context.Context, fn func(ctx context.Context) (T, error)) (T, error) {
	op := func() (T, error) {
		callCtx, cancel := context.WithTimeout(ctx, CallTimeout)
		defer cancel()

		v, err := fn(callCtx)
		if err == nil {
			return v, nil
		}

		var pe *ProviderError
		if errors.As(err, &pe) && !pe.Retryable {
			return v, backoff.Permanent(err)
		}
		// Deadline from the caller's context is not worth retrying.
		if ctx.Err() != nil {
			return v, backoff.Permanent(err)
		}
		return v, err
	}

	return backoff.Retry(ctx, op,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(MaxAttempts),
	)
}
