// Package retry implements RetryHandler (C11): an exponential-backoff
// wrapper used by BatchPersister (C5) and SummaryUpdater (C6), and by
// SpentTracker (C2) per spec.md §4.3 step 3.
package retry

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// Op is the unit of work retried. It should be idempotent or at least
// safe to retry without duplicating side effects, since RetryHandler may
// invoke it up to max times.
type Op func(ctx context.Context) error

// Execute runs op, retrying on failure up to max attempts total, waiting
// base*2^(attempt-1) between attempts, matching spec.md §4.11 exactly.
// If ctx is cancelled mid-wait, Execute returns ctx.Err() without
// starting another attempt — "the handler completes its current inner
// attempt then propagates cancellation" (§4.11).
func Execute(ctx context.Context, log *logrus.Entry, max int, base time.Duration, op Op) error {
	var lastErr error
	for attempt := 1; attempt <= max; attempt++ {
		lastErr = op(ctx)
		if lastErr == nil {
			return nil
		}

		if attempt == max {
			break
		}

		wait := base * time.Duration(1<<uint(attempt-1))
		log.WithError(lastErr).Warnf("attempt %d/%d failed, retrying in %s", attempt, max, wait)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}

	return lastErr
}

// Default mirrors the common C5/C6 call shape: base 500ms, max 3 attempts
// per batch (spec.md §4.5).
func Default(ctx context.Context, log *logrus.Entry, op Op) error {
	return Execute(ctx, log, 3, 500*time.Millisecond, op)
}

// SpentTrackerRetry mirrors C2's call shape: max 5 attempts, base 1s
// (spec.md §4.3, §4.11).
func SpentTrackerRetry(ctx context.Context, log *logrus.Entry, op Op) error {
	return Execute(ctx, log, 5, time.Second, op)
}
