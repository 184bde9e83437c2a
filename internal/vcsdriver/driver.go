// Package vcsdriver is a thin wrapper around the external version-control
// executable: it runs commands in a given working directory, streams their
// combined output to a logger, and raises a typed error on nonzero exit. The
// core never reimplements object transfer, packing, or ref management; it
// delegates all of that to this external process.
package vcsdriver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"

	"github.com/srcmirror/gitcache/internal/retry"
)

// VcsError is raised when the external VCS executable exits nonzero.
type VcsError struct {
	Args     []string
	ExitCode int
}

func (e *VcsError) Error() string {
	return fmt.Sprintf("vcs command %q exited with code %d", strings.Join(e.Args, " "), e.ExitCode)
}

// errVcsFailed is the sentinel matched by errors.Is against any *VcsError,
// so callers can test for "some VCS command failed" without caring about
// the exit code or argv.
var errVcsFailed = errors.New("vcs command failed")

func (e *VcsError) Is(target error) bool {
	return target == errVcsFailed //nolint:errorlint
}

// Sentinel is the error kind passed to the Retry Policy so it only retries
// VCS failures, never unrelated errors that happen to come back from the
// same call site.
var Sentinel = errVcsFailed

// Runner executes a command and streams its combined stdout/stderr to w,
// returning a non-nil error when the process exits nonzero (ExecRunner
// returns a *VcsError carrying the exit code).
type Runner interface {
	Run(ctx context.Context, name string, args []string, cwd string, env []string, w io.Writer) error
}

// ExecRunner runs commands as real child processes via os/exec.
type ExecRunner struct{}

// Run implements Runner.
func (ExecRunner) Run(ctx context.Context, name string, args []string, cwd string, env []string, w io.Writer) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = cwd
	cmd.Env = env
	cmd.Stdout = w
	cmd.Stderr = w

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return &VcsError{Args: append([]string{name}, args...), ExitCode: exitErr.ExitCode()}
		}

		return fmt.Errorf("failed to start vcs command %q: %w", name, err)
	}

	return nil
}

// Driver is the VCS Driver component of §4.3: it knows the name of the
// external executable, streams its output through slog, and optionally
// retries via the Retry Policy.
type Driver struct {
	Runner  Runner
	Exe     string
	Log     *slog.Logger
	BaseEnv []string
}

// New returns a Driver that shells out to exe (e.g. "git") using the real
// process runner.
func New(exe string, log *slog.Logger, baseEnv []string) *Driver {
	return &Driver{Runner: ExecRunner{}, Exe: exe, Log: log, BaseEnv: baseEnv}
}

// askpassEnv suppresses interactive credential prompts so batch operations
// never block: GIT_ASKPASS and SSH_ASKPASS are always set to a program that
// does nothing and exits zero ("true"), for every child this Driver starts.
func askpassEnv(base []string) []string {
	env := make([]string, 0, len(base)+2)
	env = append(env, base...)
	env = append(env, "GIT_ASKPASS=true", "SSH_ASKPASS=true")

	return env
}

// RunOptions controls a single Run invocation.
type RunOptions struct {
	Cwd     string
	EnvVars []string
	Retry   bool
}

// Run executes the VCS executable with args in cwd, logging the command
// line before starting and returning the combined output as a string. When
// opts.Retry is set, the whole invocation (including re-running the command
// from scratch) is wrapped in the Retry Policy with VcsError as the
// retryable kind.
func (d *Driver) Run(ctx context.Context, args []string, opts RunOptions) (string, error) {
	cwd := opts.Cwd
	env := askpassEnv(append(d.BaseEnv, opts.EnvVars...))

	d.Log.Debug("running vcs command", "exe", d.Exe, "args", args, "cwd", cwd)

	var out strings.Builder
	sink := &lineLoggingWriter{log: d.Log, prefix: d.Exe}

	run := func() error {
		out.Reset()
		mw := io.MultiWriter(&out, sink)

		return d.Runner.Run(ctx, d.Exe, args, cwd, env, mw)
	}

	var err error
	if opts.Retry {
		err = retry.Do(ctx, run, retry.Options{
			Name:      fmt.Sprintf("%s %s", d.Exe, strings.Join(args, " ")),
			Retryable: []error{Sentinel},
			Reporter: func(line string) {
				d.Log.Warn(line, "exe", d.Exe, "args", args)
			},
		})
	} else {
		err = run()
	}

	if err != nil {
		return out.String(), err
	}

	return out.String(), nil
}

// lineLoggingWriter streams a child process's output to the debug log line
// by line, rather than buffering it all before the command returns.
type lineLoggingWriter struct {
	log    *slog.Logger
	prefix string
	buf    []byte
}

func (w *lineLoggingWriter) Write(p []byte) (int, error) {
	w.buf = append(w.buf, p...)

	for {
		idx := strings.IndexByte(string(w.buf), '\n')
		if idx < 0 {
			break
		}

		line := strings.TrimRight(string(w.buf[:idx]), "\r")
		if line != "" {
			w.log.Debug(line, "exe", w.prefix)
		}

		w.buf = w.buf[idx+1:]
	}

	return len(p), nil
}
