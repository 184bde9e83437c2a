// Package mirror implements the Mirror Engine: the component that owns a
// single cached repository's lifecycle (existence check, population from
// bootstrap archive or incremental fetch, corruption recovery, and the
// periodic re-publication of a fresh bootstrap archive).
package mirror

import (
	"fmt"
	"path/filepath"

	"github.com/srcmirror/gitcache/internal/pathcodec"
)

// Mirror identifies one cached repository: its remote URL, the extra
// fetch specs it has been asked to track (beyond the built-in
// "+refs/heads/*:refs/heads/*"), and where its mirror directory lives
// under the shared cache root.
type Mirror struct {
	URL        string
	CacheRoot  string
	Basename   string
	Dir        string
	FetchSpecs fetchSpecSet
}

// New builds a Mirror for rawURL rooted at cacheRoot, with refs (raw
// --ref arguments) parsed into the initial fetch spec set.
func New(rawURL, cacheRoot string, refs []string) (*Mirror, error) {
	basename, err := pathcodec.Encode(rawURL)
	if err != nil {
		return nil, fmt.Errorf("failed to derive mirror basename: %w", err)
	}

	return &Mirror{
		URL:        rawURL,
		CacheRoot:  cacheRoot,
		Basename:   basename,
		Dir:        filepath.Join(cacheRoot, basename),
		FetchSpecs: newFetchSpecSet(refs),
	}, nil
}

// FromPath reconstructs a Mirror from an existing mirror directory, by
// decoding its basename back into a URL. Used by the fetch verb when the
// current checkout's git directory, or a remote's URL, is a path under
// the cache root rather than an upstream URL.
func FromPath(path string) *Mirror {
	basename := filepath.Base(path)

	return &Mirror{
		URL:        pathcodec.Decode(basename),
		CacheRoot:  filepath.Dir(path),
		Basename:   basename,
		Dir:        path,
		FetchSpecs: newFetchSpecSet(nil),
	}
}

// AddRef adds one more raw --ref argument to the mirror's fetch spec set.
func (m *Mirror) AddRef(raw string) {
	m.FetchSpecs.add(raw)
}

// BootstrapBucket reports the object-store bucket for this mirror's host,
// and whether this mirror is on the bootstrap allowlist at all.
func (m *Mirror) BootstrapBucket() (string, bool) {
	return BootstrapBucket(m.URL)
}
