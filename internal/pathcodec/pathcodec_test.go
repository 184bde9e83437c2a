package pathcodec

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// Expectation: a plain host/path URL round-trips and matches the documented example.
func Test_Unit_Encode_Chromium_Success(t *testing.T) {
	t.Parallel()

	got, err := Encode("https://chromium.googlesource.com/chromium/src.git")
	require.NoError(t, err)
	require.Equal(t, "chromium.googlesource.com-chromium-src", got)
}

// Expectation: an embedded literal '-' survives encode/decode as a single '-'.
func Test_Unit_EncodeDecode_EmbeddedDash_Success(t *testing.T) {
	t.Parallel()

	encoded, err := Encode("https://example.com/a-b/c.git")
	require.NoError(t, err)
	require.Equal(t, "example.com-a--b-c", encoded)

	require.Equal(t, "https://example.com/a-b/c", Decode(encoded))
}

// Expectation: decode(encode(u)) == u for URLs with no ambiguous dash runs.
func Test_Unit_EncodeDecode_Bijection_Success(t *testing.T) {
	t.Parallel()

	urls := []string{
		"https://chromium.googlesource.com/chromium/src",
		"https://chrome-internal.googlesource.com/infra/infra",
		"https://example.com/a/b/c",
		"https://example.com/multi-part-name/repo",
	}

	for _, u := range urls {
		encoded, err := Encode(u)
		require.NoError(t, err)
		require.Equal(t, u, Decode(encoded))
	}
}

// Expectation: a trailing .git suffix is dropped by Encode.
func Test_Unit_Encode_TrimsGitSuffix_Success(t *testing.T) {
	t.Parallel()

	withSuffix, err := Encode("https://example.com/repo.git")
	require.NoError(t, err)

	withoutSuffix, err := Encode("https://example.com/repo")
	require.NoError(t, err)

	require.Equal(t, withoutSuffix, withSuffix)
}

// Expectation: Encode lowercases mixed-case hosts and paths.
func Test_Unit_Encode_Lowercases_Success(t *testing.T) {
	t.Parallel()

	got, err := Encode("https://Example.COM/Repo")
	require.NoError(t, err)
	require.Equal(t, "example.com-repo", got)
}
