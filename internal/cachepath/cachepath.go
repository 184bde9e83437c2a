// Package cachepath resolves the cache root directory used by every
// other component: a single directory under which every mirror's
// basename-derived subdirectory lives.
package cachepath

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/srcmirror/gitcache/internal/vcsdriver"
)

// ErrConfigMissing is returned when no CLI override was given and the VCS
// driver's global configuration has no cache.cachepath entry either.
var ErrConfigMissing = errors.New("no cache path configured: pass --cache-dir or set git config --global cache.cachepath")

const globalConfigKey = "cache.cachepath"

// Resolve returns the cache root to use for this process: override if
// non-empty, otherwise the value of "git config --global cache.cachepath"
// read through driver. The result is meant to be resolved once per
// process and threaded through explicitly, never read again per call.
func Resolve(ctx context.Context, driver *vcsdriver.Driver, override string, log *slog.Logger) (string, error) {
	if override != "" {
		return override, nil
	}

	out, err := driver.Run(ctx, []string{"config", "--global", globalConfigKey}, vcsdriver.RunOptions{})
	if err != nil {
		return "", fmt.Errorf("%w", ErrConfigMissing)
	}

	path := strings.TrimSpace(out)
	if path == "" {
		return "", fmt.Errorf("%w", ErrConfigMissing)
	}

	log.Debug("resolved cache path from global git configuration", "path", path)

	return path, nil
}

// WarnIfMismatched logs a warning when a CLI-supplied override disagrees
// with the cache path recorded in git's global configuration, per §4.6:
// the two are allowed to diverge (e.g. a one-off --cache-dir), but an
// operator should know when that happens.
func WarnIfMismatched(ctx context.Context, driver *vcsdriver.Driver, override string, log *slog.Logger) {
	if override == "" {
		return
	}

	out, err := driver.Run(ctx, []string{"config", "--global", globalConfigKey}, vcsdriver.RunOptions{})
	if err != nil {
		return
	}

	configured := strings.TrimSpace(out)
	if configured != "" && configured != override {
		log.Warn("cache path override differs from global git configuration",
			"override", override, "configured", configured)
	}
}
