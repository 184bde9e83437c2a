package main

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/srcmirror/gitcache/internal/mirror"
)

// Expectation: nil error is success.
func Test_Unit_ExitCodeFor_Nil_Success(t *testing.T) {
	t.Parallel()

	require.Equal(t, exitSuccess, exitCodeFor(nil))
}

// Expectation: the silent not-found sentinel exits 1 without needing a message.
func Test_Unit_ExitCodeFor_SilentNotFound_Failure(t *testing.T) {
	t.Parallel()

	require.Equal(t, exitFailure, exitCodeFor(errSilentNotFound))
}

// Expectation: a wrapped mirror.ErrUsage maps to the usage exit code.
func Test_Unit_ExitCodeFor_UsageError_ExitUsage(t *testing.T) {
	t.Parallel()

	err := errors.Join(mirror.ErrUsage, errors.New("bad args"))
	require.Equal(t, exitUsage, exitCodeFor(err))
}

// Expectation: any other error is a generic failure.
func Test_Unit_ExitCodeFor_OtherError_Failure(t *testing.T) {
	t.Parallel()

	require.Equal(t, exitFailure, exitCodeFor(errors.New("boom")))
}
