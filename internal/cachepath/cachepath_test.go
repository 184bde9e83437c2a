package cachepath

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/srcmirror/gitcache/internal/vcsdriver"
)

type fakeRunner struct {
	out string
	err error
}

func (r *fakeRunner) Run(_ context.Context, _ string, _ []string, _ string, _ []string, w io.Writer) error {
	if r.err != nil {
		return r.err
	}

	_, writeErr := io.WriteString(w, r.out)

	return writeErr
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Expectation: a non-empty override always wins, without consulting git config.
func Test_Unit_Resolve_Override_TakesPrecedence(t *testing.T) {
	t.Parallel()

	driver := &vcsdriver.Driver{Runner: &fakeRunner{err: context.Canceled}, Exe: "git", Log: testLogger()}

	path, err := Resolve(t.Context(), driver, "/custom/cache", testLogger())
	require.NoError(t, err)
	require.Equal(t, "/custom/cache", path)
}

// Expectation: with no override, the global git config value is used.
func Test_Unit_Resolve_NoOverride_ReadsGlobalConfig(t *testing.T) {
	t.Parallel()

	driver := &vcsdriver.Driver{Runner: &fakeRunner{out: "/global/cache\n"}, Exe: "git", Log: testLogger()}

	path, err := Resolve(t.Context(), driver, "", testLogger())
	require.NoError(t, err)
	require.Equal(t, "/global/cache", path)
}

// Expectation: no override and no global config is ErrConfigMissing.
func Test_Unit_Resolve_NeitherSet_ErrConfigMissing(t *testing.T) {
	t.Parallel()

	driver := &vcsdriver.Driver{Runner: &fakeRunner{err: context.DeadlineExceeded}, Exe: "git", Log: testLogger()}

	_, err := Resolve(t.Context(), driver, "", testLogger())
	require.ErrorIs(t, err, ErrConfigMissing)
}
