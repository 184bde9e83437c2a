package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var errTransient = errors.New("simulated transient failure")
var errFatal = errors.New("simulated fatal failure")

// Expectation: a non-retryable error passes through on the first attempt.
func Test_Unit_Do_NonRetryableError_Success(t *testing.T) {
	t.Parallel()

	calls := 0
	err := Do(t.Context(), func() error {
		calls++

		return errFatal
	}, Options{
		Name:      "test-op",
		Retryable: []error{errTransient},
	})

	require.ErrorIs(t, err, errFatal)
	require.Equal(t, 1, calls)
}

// Expectation: a retryable error is retried until it succeeds, reporting each attempt.
func Test_Unit_Do_RetryableError_EventualSuccess(t *testing.T) {
	t.Parallel()

	calls := 0
	var reports []string

	err := Do(t.Context(), func() error {
		calls++
		if calls < 3 {
			return errTransient
		}

		return nil
	}, Options{
		Name:         "test-op",
		MaxAttempts:  5,
		InitialDelay: time.Millisecond,
		Retryable:    []error{errTransient},
		Reporter: func(line string) {
			reports = append(reports, line)
		},
	})

	require.NoError(t, err)
	require.Equal(t, 3, calls)
	require.Len(t, reports, 2)
}

// Expectation: after MaxAttempts, the last retryable error is propagated.
func Test_Unit_Do_RetryableError_ExhaustsAttempts(t *testing.T) {
	t.Parallel()

	calls := 0
	err := Do(t.Context(), func() error {
		calls++

		return errTransient
	}, Options{
		Name:         "test-op",
		MaxAttempts:  4,
		InitialDelay: time.Millisecond,
		Retryable:    []error{errTransient},
	})

	require.ErrorIs(t, err, errTransient)
	require.Equal(t, 4, calls)
}

// Expectation: context cancellation during the backoff sleep aborts the retry loop.
func Test_Unit_Do_ContextCanceled_StopsRetrying(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(t.Context())
	calls := 0

	err := Do(ctx, func() error {
		calls++
		if calls == 1 {
			cancel()
		}

		return errTransient
	}, Options{
		Name:         "test-op",
		MaxAttempts:  10,
		InitialDelay: 50 * time.Millisecond,
		Retryable:    []error{errTransient},
	})

	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 1, calls)
}
