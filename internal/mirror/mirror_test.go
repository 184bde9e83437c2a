package mirror

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// Expectation: New derives the basename and mirror directory from the URL.
func Test_Unit_New_DerivesBasenameAndDir(t *testing.T) {
	t.Parallel()

	m, err := New("https://chromium.googlesource.com/chromium/src.git", "/cache", nil)
	require.NoError(t, err)
	require.Equal(t, "chromium.googlesource.com-chromium-src", m.Basename)
	require.Equal(t, "/cache/chromium.googlesource.com-chromium-src", m.Dir)
}

// Expectation: FromPath is the inverse of New for a mirror directory path.
func Test_Unit_FromPath_RecoversURL(t *testing.T) {
	t.Parallel()

	m, err := New("https://chromium.googlesource.com/chromium/src.git", "/cache", nil)
	require.NoError(t, err)

	recovered := FromPath(m.Dir)
	require.Equal(t, "https://chromium.googlesource.com/chromium/src", recovered.URL)
	require.Equal(t, "/cache", recovered.CacheRoot)
}

// Expectation: only allowlisted hosts report a bootstrap bucket.
func Test_Unit_BootstrapBucket_AllowlistedAndNot(t *testing.T) {
	t.Parallel()

	bucket, ok := BootstrapBucket("https://chromium.googlesource.com/chromium/src")
	require.True(t, ok)
	require.Equal(t, "chromium-git-cache", bucket)

	_, ok = BootstrapBucket("https://example.com/some/repo")
	require.False(t, ok)
}
