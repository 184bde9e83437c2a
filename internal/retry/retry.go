// Package retry implements the bounded exponential-backoff wrapper used by
// any fallible operation that may fail transiently: renames and recursive
// deletes under the cache root race with background indexers and antivirus
// scanners on some filesystems.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

const (
	// DefaultMaxAttempts is the number of tries before a retryable failure
	// is propagated to the caller.
	DefaultMaxAttempts = 10

	// DefaultInitialDelay is the sleep before the first retry; it doubles
	// on each subsequent attempt.
	DefaultInitialDelay = 250 * time.Millisecond
)

// Reporter is called once per retry attempt, after the failed attempt and
// before the sleep. It receives a formatted line describing the attempt
// index, the upcoming delay, the operation name, and the error that
// triggered the retry.
type Reporter func(line string)

// Op is the operation to retry. A retryable failure should be returned as
// the error; Do distinguishes retryable from fatal errors via IsRetryable.
type Op func() error

// IsRetryable reports whether err should trigger another attempt. It is
// satisfied by matching err (via errors.Is) against any of the
// given retryable kinds.
func IsRetryable(err error, kinds ...error) bool {
	for _, kind := range kinds {
		if errors.Is(err, kind) {
			return true
		}
	}

	return false
}

// Options configures a single call to Do. The zero value selects the
// package defaults.
type Options struct {
	Name         string
	MaxAttempts  int
	InitialDelay time.Duration
	Reporter     Reporter
	Retryable    []error
}

// Do invokes op, retrying with doubling backoff while the returned error
// matches one of opts.Retryable. The final failure (retryable or not) is
// propagated. A non-retryable error passes through immediately without
// consuming an attempt.
func Do(ctx context.Context, op Op, opts Options) error {
	maxAttempts := opts.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}

	delay := opts.InitialDelay
	if delay <= 0 {
		delay = DefaultInitialDelay
	}

	name := opts.Name
	if name == "" {
		name = "operation"
	}

	var lastErr error

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}

		if !IsRetryable(lastErr, opts.Retryable...) {
			return lastErr
		}

		if attempt >= maxAttempts {
			break
		}

		if opts.Reporter != nil {
			opts.Reporter(fmt.Sprintf(
				"retrying %s in %s (attempt %d/%d): %v",
				name, delay, attempt, maxAttempts, lastErr,
			))
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}

		delay *= 2
	}

	return lastErr
}
