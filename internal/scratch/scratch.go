// Package scratch creates uniquely named scratch directories under the
// cache root: the StagingDirectory used to rebuild a mirror, and the
// download scratch directory used by the Archive Fetcher. Both are
// temporary siblings of a final path, identified by a prefix and removed
// (via the Retry Policy, at the call site) once the caller is done.
package scratch

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"
)

// New creates and returns the path of a fresh directory under root, named
// "<prefix><random><suffix>" so concurrent populations of different
// mirrors never collide (the suffix conventionally carries the mirror
// basename).
func New(fs afero.Fs, root, prefix, suffix string) (string, error) {
	token, err := randomToken()
	if err != nil {
		return "", fmt.Errorf("failed to generate scratch dir name: %w", err)
	}

	path := filepath.Join(root, prefix+token+suffix)
	if err := fs.MkdirAll(path, 0o755); err != nil {
		return "", fmt.Errorf("failed to create scratch dir: %q (%w)", path, err)
	}

	return path, nil
}

func randomToken() (string, error) {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}

	return hex.EncodeToString(buf), nil
}
