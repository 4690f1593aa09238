package source

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	folioerrors "github.com/lepinkainen/folio/internal/errors"
)

// RetryPolicy bounds the retry loop around a single adapter's Fetch.
type RetryPolicy struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int
	// Timeout is applied independently to each attempt.
	Timeout time.Duration
	// InitialBackoff is the delay before the second attempt; it doubles per
	// attempt up to MaxBackoff.
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// DefaultRetryPolicy returns the policy used when none is configured.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    3,
		Timeout:        10 * time.Second,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     8 * time.Second,
	}
}

// FetchWithRetry drives an adapter's Fetch under the retry policy. Transient
// failures are retried with exponential backoff; permanent failures and
// not-found results return immediately. When the attempt ceiling is exhausted
// the last transient error is returned, wrapped so the caller can still
// classify it.
func FetchWithRetry(ctx context.Context, a Adapter, hint Hint, policy RetryPolicy) (*RawRecord, error) {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}

	backoff := policy.InitialBackoff
	var lastErr error

	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		record, err := fetchOnce(ctx, a, hint, policy.Timeout)
		if err == nil {
			return record, nil
		}

		if !folioerrors.IsTransient(err) {
			return nil, err
		}
		lastErr = err

		if attempt == policy.MaxAttempts {
			break
		}

		slog.Debug("Transient fetch failure, backing off",
			"source", a.Name(),
			"attempt", attempt,
			"backoff", backoff,
			"error", err,
		)

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, folioerrors.NewTransientError(a.Name(), ctx.Err())
		case <-timer.C:
		}

		backoff *= 2
		if policy.MaxBackoff > 0 && backoff > policy.MaxBackoff {
			backoff = policy.MaxBackoff
		}
	}

	return nil, fmt.Errorf("%s: retry ceiling reached after %d attempts: %w", a.Name(), policy.MaxAttempts, lastErr)
}

// fetchOnce runs a single attempt under its own timeout. A timeout surfaces
// as a transient error subject to the retry policy.
func fetchOnce(ctx context.Context, a Adapter, hint Hint, timeout time.Duration) (*RawRecord, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return a.Fetch(ctx, hint)
}
