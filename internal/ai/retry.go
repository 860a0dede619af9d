package ai

import (
	"context"
	"errors"
	"time"
)

// RetryingAnalyzer wraps an Analyzer with a bounded retry policy:
// transient failures (transport errors and non-2xx statuses) are retried
// with exponential backoff up to MaxAttempts, then surfaced to the caller.
type RetryingAnalyzer struct {
	Inner       Analyzer
	MaxAttempts int
	BaseBackoff time.Duration
}

func NewRetryingAnalyzer(inner Analyzer, maxAttempts int, baseBackoff time.Duration) *RetryingAnalyzer {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	if baseBackoff <= 0 {
		baseBackoff = 2 * time.Second
	}
	return &RetryingAnalyzer{Inner: inner, MaxAttempts: maxAttempts, BaseBackoff: baseBackoff}
}

func (r *RetryingAnalyzer) Ask(ctx context.Context, prompt string) (string, error) {
	backoff := r.BaseBackoff
	var lastErr error

	for attempt := 1; attempt <= r.MaxAttempts; attempt++ {
		reply, err := r.Inner.Ask(ctx, prompt)
		if err == nil {
			return reply, nil
		}
		lastErr = err

		if !retryable(err) || attempt == r.MaxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}

	return "", lastErr
}

// retryable reports whether the error is worth another attempt. Context
// cancellation is final; API statuses and transport hiccups are not.
func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		// Client errors other than rate limiting will not heal on retry.
		return statusErr.Code == 429 || statusErr.Code >= 500
	}
	return true
}
