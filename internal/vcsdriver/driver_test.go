package vcsdriver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeRunner struct {
	calls   int
	failFor int
	exit    int
	output  string
	lastEnv []string
}

func (f *fakeRunner) Run(_ context.Context, _ string, _ []string, _ string, env []string, w io.Writer) error {
	f.calls++
	f.lastEnv = env

	if _, err := io.WriteString(w, f.output); err != nil {
		return err
	}

	if f.calls <= f.failFor {
		return &VcsError{Args: []string{"git"}, ExitCode: f.exit}
	}

	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Expectation: GIT_ASKPASS and SSH_ASKPASS are always present in the child environment.
func Test_Unit_Run_SetsAskpassEnv_Success(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{exit: 1}
	d := &Driver{Runner: runner, Exe: "git", Log: testLogger(), BaseEnv: []string{"PATH=/usr/bin"}}

	_, err := d.Run(t.Context(), []string{"status"}, RunOptions{Cwd: "/repo"})
	require.NoError(t, err)

	require.Contains(t, runner.lastEnv, "GIT_ASKPASS=true")
	require.Contains(t, runner.lastEnv, "SSH_ASKPASS=true")
	require.Contains(t, runner.lastEnv, "PATH=/usr/bin")
}

// Expectation: a nonzero exit without retry surfaces a VcsError immediately.
func Test_Unit_Run_NonzeroExit_NoRetry_ReturnsVcsError(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{failFor: 10, exit: 128}
	d := &Driver{Runner: runner, Exe: "git", Log: testLogger()}

	_, err := d.Run(t.Context(), []string{"fetch"}, RunOptions{Cwd: "/repo"})

	var vcsErr *VcsError
	require.ErrorAs(t, err, &vcsErr)
	require.Equal(t, 128, vcsErr.ExitCode)
	require.Equal(t, 1, runner.calls)
	require.ErrorIs(t, err, Sentinel)
}

// Expectation: with Retry set, a transient failure is retried until success.
func Test_Unit_Run_Retry_EventualSuccess(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{failFor: 2, exit: 1, output: "fetching\n"}
	d := &Driver{Runner: runner, Exe: "git", Log: testLogger()}

	out, err := d.Run(t.Context(), []string{"fetch"}, RunOptions{Cwd: "/repo", Retry: true})

	require.NoError(t, err)
	require.Equal(t, 3, runner.calls)
	require.Equal(t, "fetching\n", out)
}

// Expectation: a generic non-exit error (e.g. failure to start) is not treated as retryable.
func Test_Unit_Run_StartFailure_NotRetried(t *testing.T) {
	t.Parallel()

	sentinelStartErr := errors.New("boom")
	calls := 0
	d := &Driver{
		Runner: runnerFunc(func(context.Context, string, []string, string, []string, io.Writer) error {
			calls++

			return fmt.Errorf("failed to start: %w", sentinelStartErr)
		}),
		Exe: "git",
		Log: testLogger(),
	}

	_, err := d.Run(t.Context(), []string{"fetch"}, RunOptions{Retry: true})
	require.ErrorIs(t, err, sentinelStartErr)
	require.Equal(t, 1, calls)
}

type runnerFunc func(ctx context.Context, name string, args []string, cwd string, env []string, w io.Writer) error

func (f runnerFunc) Run(ctx context.Context, name string, args []string, cwd string, env []string, w io.Writer) error {
	return f(ctx, name, args, cwd, env, w)
}

// Expectation: multiline output is streamed without losing any lines.
func Test_Unit_LineLoggingWriter_SplitsLines(t *testing.T) {
	t.Parallel()

	var buf strings.Builder
	log := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	w := &lineLoggingWriter{log: log, prefix: "git"}

	_, err := w.Write([]byte("line one\nline two\npartial"))
	require.NoError(t, err)

	require.Contains(t, buf.String(), "line one")
	require.Contains(t, buf.String(), "line two")
	require.NotContains(t, buf.String(), "partial")
}
