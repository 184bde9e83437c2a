/*
gitcache manages a shared local mirror cache for remote git repositories:
bare, shareable clones kept under one cache root and addressed by a
basename derived deterministically from each repository's URL.

It exists so that many independent checkouts of the same upstream
repository (CI jobs, build sandboxes, developer machines sharing a
network volume) never each pay the full clone cost: every checkout
fetches against its repository's single shared mirror via
"git clone --reference", and the mirror itself is populated once, kept
warm by periodic incremental fetches, and optionally bootstrapped from a
prebuilt archive published to an object store rather than cloned from
scratch.

# USAGE

	gitcache [-c cache-dir] [-v...] [-q] [--json] <verb> [args...]

# VERBS

	exists <url>
		Reports (via exit code and, on success, the mirror's on-disk
		path) whether a mirror for <url> already exists.

	populate <url> [--depth N] [--shallow|-s] [--ref SPEC]... [--no-bootstrap] [--force]
		Builds or refreshes the mirror for <url>: bootstraps from a
		published archive when eligible, otherwise fetches incrementally;
		recovers once from a corrupt mirror by rebuilding from scratch.

	fetch [--all] [--no-bootstrap] [remotes...]
		Run inside a checkout. For each selected remote whose URL is a
		path under the cache root, populates that mirror, then runs
		"git fetch" for the remote. Remotes are the ones named, or with
		--all every remote configured in the checkout, or else the
		current branch's upstream remote (default "origin").

	update-bootstrap <url> [--prune]
		Packs, archives, and publishes the mirror for <url> as the
		newest bootstrap generation. --prune deletes every older
		generation already published.

# GLOBAL FLAGS

	-c, --cache-dir string
		Cache root directory. Defaults to the value of the global git
		configuration key cache.cachepath when unset.

	-v
		Increase log verbosity from the default warning level; repeatable
		(one -v for info, two or more for debug).

	-q, --quiet
		Suppress all but error log output.

	--json
		Emit logs as JSON lines instead of colored text.

	--config string
		Optional YAML file providing defaults for any of the flags
		above; explicit flags always override it.

# RETURN CODES

  - 0: success
  - 1: operation failed
  - 2: invalid usage (fetch --all given remote names, or an operation this
    mirror does not support); a wrong argument count or an unknown flag
    exits 1
*/
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/srcmirror/gitcache/internal/mirror"
)

const (
	exitSuccess = 0
	exitFailure = 1
	exitUsage   = 2
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	root := newRootCmd()
	root.SetArgs(os.Args[1:])

	err := root.ExecuteContext(ctx)
	os.Exit(exitCodeFor(err))
}

func exitCodeFor(err error) int {
	if err == nil {
		return exitSuccess
	}

	if errors.Is(err, errSilentNotFound) {
		return exitFailure
	}

	fmt.Fprintf(os.Stderr, "gitcache: %v\n", err)

	if errors.Is(err, mirror.ErrUsage) {
		return exitUsage
	}

	return exitFailure
}

// errSilentNotFound marks the one case ("exists" on an absent mirror)
// where a nonzero exit code is expected, scriptable behavior rather than
// a failure worth printing to stderr.
var errSilentNotFound = errors.New("mirror does not exist")
