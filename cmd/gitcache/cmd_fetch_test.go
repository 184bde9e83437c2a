package main

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/srcmirror/gitcache/internal/vcsdriver"
)

// fakeRunner scripts vcsdriver.Runner for the resolveRemotes tests, keyed
// by "arg1 arg2 ...".
type fakeRunner struct {
	outputs map[string]string
	fail    map[string]error
}

func (r *fakeRunner) Run(_ context.Context, _ string, args []string, _ string, _ []string, w io.Writer) error {
	key := strings.Join(args, " ")
	if out, ok := r.outputs[key]; ok {
		_, _ = io.WriteString(w, out)
	}

	return r.fail[key]
}

func testDriver(runner *fakeRunner) *vcsdriver.Driver {
	return &vcsdriver.Driver{
		Runner: runner,
		Exe:    "git",
		Log:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

// Expectation: --all enumerates every remote reported by "git remote".
func Test_Unit_ResolveRemotes_All_ListsConfiguredRemotes(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{outputs: map[string]string{"remote": "origin\nupstream\n"}}
	remotes, err := resolveRemotes(t.Context(), testDriver(runner), true, nil)
	require.NoError(t, err)
	require.Equal(t, []string{"origin", "upstream"}, remotes)
}

// Expectation: explicit remote names are used verbatim.
func Test_Unit_ResolveRemotes_ExplicitArgs_UsedVerbatim(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{}
	remotes, err := resolveRemotes(t.Context(), testDriver(runner), false, []string{"fork"})
	require.NoError(t, err)
	require.Equal(t, []string{"fork"}, remotes)
}

// Expectation: with no arguments, the current branch's upstream remote is used.
func Test_Unit_ResolveRemotes_NoArgs_DerivesUpstream(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{outputs: map[string]string{
		"rev-parse --abbrev-ref HEAD":  "feature\n",
		"config branch.feature.remote": "upstream\n",
	}}
	remotes, err := resolveRemotes(t.Context(), testDriver(runner), false, nil)
	require.NoError(t, err)
	require.Equal(t, []string{"upstream"}, remotes)
}

// Expectation: with no tracked upstream, "origin" is the default.
func Test_Unit_ResolveRemotes_NoUpstream_DefaultsToOrigin(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{outputs: map[string]string{
		"rev-parse --abbrev-ref HEAD": "HEAD\n",
	}}
	remotes, err := resolveRemotes(t.Context(), testDriver(runner), false, nil)
	require.NoError(t, err)
	require.Equal(t, []string{"origin"}, remotes)
}

// Expectation: a remote URL under the cache root is recognized; one that isn't, is not.
func Test_Unit_UnderCacheRoot_PrefixCheck(t *testing.T) {
	t.Parallel()

	require.True(t, underCacheRoot("/cache/example.com-r1", "/cache"))
	require.False(t, underCacheRoot("https://example.com/r1", "/cache"))
	require.False(t, underCacheRoot("/cache/example.com-r1", ""))
}
