package mirror

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// Expectation: a short branch name is expanded into refs/heads/<name>,
// and an explicit destination is kept as given.
func Test_Unit_ParseFetchSpec_ShortName_ExpandsToRefsHeads(t *testing.T) {
	t.Parallel()

	got := ParseFetchSpec("+main:refs/heads/main")
	require.Equal(t, "+refs/heads/main:refs/heads/main", got.Line)
	require.Equal(t, `\+refs/heads/main:.*`, got.Regex)
}

// Expectation: a spec with no destination mirrors the source as dest.
func Test_Unit_ParseFetchSpec_NoDestination_DefaultsToSource(t *testing.T) {
	t.Parallel()

	got := ParseFetchSpec("+refs/heads/main")
	require.Equal(t, "+refs/heads/main:refs/heads/main", got.Line)
}

// Expectation: a glob in the source is escaped in the regex, not the line.
func Test_Unit_ParseFetchSpec_Glob_EscapedInRegexOnly(t *testing.T) {
	t.Parallel()

	got := ParseFetchSpec(BuiltinFetchLine)
	require.Equal(t, "+refs/heads/*:refs/heads/*", got.Line)
	require.Equal(t, `\+refs/heads/\*:.*`, got.Regex)
}

// Expectation: a trailing slash on either side is trimmed.
func Test_Unit_ParseFetchSpec_TrailingSlash_Trimmed(t *testing.T) {
	t.Parallel()

	got := ParseFetchSpec("+refs/heads/main/:refs/heads/main/")
	require.Equal(t, "+refs/heads/main:refs/heads/main", got.Line)
}

// Expectation: adding the same ref twice deduplicates by canonical line.
func Test_Unit_FetchSpecSet_DuplicateRefs_Deduplicated(t *testing.T) {
	t.Parallel()

	set := newFetchSpecSet([]string{"+main:refs/heads/main", "main"})
	require.Len(t, set, 1)
}

// Expectation: sorted() is stable and alphabetic by line.
func Test_Unit_FetchSpecSet_Sorted_Deterministic(t *testing.T) {
	t.Parallel()

	set := newFetchSpecSet([]string{"zebra", "alpha"})
	sorted := set.sorted()
	require.Len(t, sorted, 2)
	require.Equal(t, "+refs/heads/alpha:refs/heads/alpha", sorted[0].Line)
	require.Equal(t, "+refs/heads/zebra:refs/heads/zebra", sorted[1].Line)
}
