package mirror

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/spf13/afero"

	"github.com/srcmirror/gitcache/internal/archive"
	"github.com/srcmirror/gitcache/internal/objectstore"
	"github.com/srcmirror/gitcache/internal/retry"
	"github.com/srcmirror/gitcache/internal/scratch"
	"github.com/srcmirror/gitcache/internal/vcsdriver"
)

const (
	// defaultPackThreshold is the number of loose pack files beyond which
	// populate re-bootstraps rather than fetching incrementally onto an
	// increasingly fragmented repository.
	defaultPackThreshold = 50

	// defaultDeltaBaseCacheLimit bounds git's delta base cache, keeping
	// repack/fetch memory use predictable on shared cache hosts.
	defaultDeltaBaseCacheLimit = "2g"

	// shallowDefaultDepth is used when --shallow is set without an
	// explicit --depth.
	shallowDefaultDepth = 10000

	stagingPrefix = "_cache_staging_"

	tmpPackPrefixA = ".tmp-"
	tmpPackPrefixB = "tmp_pack_"
)

// Engine implements populate, update_bootstrap, and clean_temp_packs for a
// single Mirror. It wires together the VCS Driver, the Archive Fetcher,
// the object store used by update_bootstrap, and the Retry Policy shared
// by both filesystem swap-in and cleanup.
type Engine struct {
	Fs          afero.Fs
	VCS         *vcsdriver.Driver
	ProcRunner  vcsdriver.Runner
	Archive     *archive.Fetcher
	ObjectStore objectstore.Store
	CacheRoot   string
	Log         *slog.Logger

	PackThreshold       int
	DeltaBaseCacheLimit string

	// ZipAvailable reports whether a trustworthy external zip tool is
	// present; defaults to zipAvailable. Overridable so tests can
	// exercise the ErrZipUnreliable path without depending on the host.
	ZipAvailable func() bool
}

// New builds an Engine with the default thresholds.
func New(fs afero.Fs, vcs *vcsdriver.Driver, fetcher *archive.Fetcher, store objectstore.Store, cacheRoot string, log *slog.Logger) *Engine {
	return &Engine{
		Fs:                  fs,
		VCS:                 vcs,
		ProcRunner:          vcsdriver.ExecRunner{},
		Archive:             fetcher,
		ObjectStore:         store,
		CacheRoot:           cacheRoot,
		Log:                 log,
		PackThreshold:       defaultPackThreshold,
		DeltaBaseCacheLimit: defaultDeltaBaseCacheLimit,
		ZipAvailable:        zipAvailable,
	}
}

func (e *Engine) zipIsAvailable() bool {
	if e.ZipAvailable != nil {
		return e.ZipAvailable()
	}

	return zipAvailable()
}

func (e *Engine) packThreshold() int {
	if e.PackThreshold > 0 {
		return e.PackThreshold
	}

	return defaultPackThreshold
}

func (e *Engine) deltaBaseCacheLimit() string {
	if e.DeltaBaseCacheLimit != "" {
		return e.DeltaBaseCacheLimit
	}

	return defaultDeltaBaseCacheLimit
}

// Exists reports whether m's mirror directory is already a populated git
// directory (has a "config" file), as opposed to absent or mid-build.
func (e *Engine) Exists(m *Mirror) bool {
	info, err := e.Fs.Stat(filepath.Join(m.Dir, "config"))

	return err == nil && !info.IsDir()
}

// PopulateOptions controls a single populate call.
type PopulateOptions struct {
	Depth     int
	Shallow   bool
	Bootstrap bool
	Verbose   bool
	Force     bool
}

// Populate builds or refreshes m's mirror directory per §4.5: it decides
// whether to bootstrap (from archive or from scratch) or fetch
// incrementally in place, runs the fetch, recovers once from a corrupt
// mirror, and atomically swaps a staged rebuild into the final path.
func (e *Engine) Populate(ctx context.Context, m *Mirror, opts PopulateOptions) (retErr error) {
	if err := e.Fs.MkdirAll(e.CacheRoot, 0o755); err != nil {
		return fmt.Errorf("failed to create cache root: %q (%w)", e.CacheRoot, err)
	}

	depth := opts.Depth
	if opts.Shallow && depth == 0 {
		depth = shallowDefaultDepth
	}

	var rundir string

	// Mirrors the original's try/finally: whatever directory was last
	// staged gets swapped into the final path on the way out, whether
	// populate is returning success or a second, unrecovered failure.
	// Only a failure that strikes before any staging directory exists
	// (or one we've already discarded) leaves rundir empty and skips
	// this entirely, which is what keeps the "no staging happened, no
	// trace left behind" half of the atomicity guarantee true.
	defer func() {
		if rundir == "" || rundir == m.Dir {
			return
		}

		if swapErr := e.swapIn(ctx, rundir, m.Dir); swapErr != nil {
			if retErr != nil {
				retErr = fmt.Errorf("%w (while recovering from: %v)", swapErr, retErr)
			} else {
				retErr = swapErr
			}
		}
	}()

	var err error

	rundir, err = e.ensureBootstrapped(ctx, m, depth, opts.Bootstrap, opts.Force)
	if err != nil {
		rundir = ""

		return fmt.Errorf("failed to prepare mirror directory: %w", err)
	}

	if err := e.fetch(ctx, m, rundir, depth, opts.Verbose); err != nil {
		if !errors.Is(err, ErrClobberNeeded) {
			return err
		}

		e.Log.Warn(corruptMarker, "url", m.URL)

		if rmErr := e.removeAll(ctx, rundir); rmErr != nil {
			rundir = ""

			return fmt.Errorf("failed to remove corrupt mirror: %w", rmErr)
		}

		rundir = ""

		rundir, err = e.ensureBootstrapped(ctx, m, depth, opts.Bootstrap, true)
		if err != nil {
			rundir = ""

			return fmt.Errorf("failed to rebuild mirror after corruption: %w", err)
		}

		if err := e.fetch(ctx, m, rundir, depth, opts.Verbose); err != nil {
			return fmt.Errorf("second failure after corruption recovery: %w", err)
		}
	}

	return nil
}

// ensureBootstrapped decides whether this populate call should bootstrap
// (from archive, or from an empty bare repo) into a fresh staging
// directory, or fetch incrementally straight into the existing mirror
// directory. It returns the directory the caller should run fetch in:
// either a new staging directory, or m.Dir unchanged.
func (e *Engine) ensureBootstrapped(ctx context.Context, m *Mirror, depth int, bootstrap, force bool) (string, error) {
	exists := e.Exists(m)

	if exists {
		if err := e.CleanTempPacks(m.Dir); err != nil {
			e.Log.Warn("failed to clean stale temporary pack files", "dir", m.Dir, "error", err)
		}
	}

	packFiles, err := e.countPackFiles(m.Dir)
	if err != nil {
		return "", err
	}

	shouldBootstrap := force || !exists || packFiles > e.packThreshold()

	if !shouldBootstrap {
		if depth != 0 && e.fileExists(filepath.Join(m.Dir, "shallow")) {
			e.Log.Warn("shallow fetch requested onto an already-shallow mirror", "dir", m.Dir)
		}

		return m.Dir, nil
	}

	if exists {
		if err := e.preserveFetchSpec(ctx, m); err != nil {
			e.Log.Warn("failed to preserve existing fetch specs, continuing with requested refs only", "error", err)
		}
	}

	staging, err := scratch.New(e.Fs, e.CacheRoot, stagingPrefix, m.Basename)
	if err != nil {
		return "", fmt.Errorf("failed to create staging directory: %w", err)
	}

	bootstrapped := false

	if depth == 0 && bootstrap {
		if bucket, ok := m.BootstrapBucket(); ok {
			bootstrapped = e.Archive.TryBootstrap(ctx, bucket, m.Basename, staging)
		}
	}

	if bootstrapped {
		if exists {
			if err := e.removeAll(ctx, m.Dir); err != nil {
				return "", fmt.Errorf("failed to remove previous mirror before bootstrap swap-in: %w", err)
			}
		}

		return staging, nil
	}

	_, supported := m.BootstrapBucket()
	if !exists || !supported {
		if _, err := e.VCS.Run(ctx, []string{"init", "--bare"}, vcsdriver.RunOptions{Cwd: staging}); err != nil {
			return "", fmt.Errorf("failed to initialize empty bare mirror: %w", err)
		}

		return staging, nil
	}

	// A previous mirror exists and its host is supported, but bootstrap
	// did not apply or did not succeed: fall back to an incremental
	// fetch in place rather than lose the existing history, and discard
	// the now-unused staging directory.
	e.Log.Warn("pack count exceeds threshold but bootstrap was unavailable, continuing incrementally",
		"dir", m.Dir, "pack_files", packFiles, "threshold", e.packThreshold())

	if err := e.removeAll(ctx, staging); err != nil {
		e.Log.Error("failed to remove unused staging directory", "dir", staging, "error", err)
	}

	return m.Dir, nil
}

// preserveFetchSpec folds any fetch specs already configured on the
// existing mirror into m's working set, so a populate call that adds one
// new --ref never silently drops the refs a previous call configured.
func (e *Engine) preserveFetchSpec(ctx context.Context, m *Mirror) error {
	out, err := e.VCS.Run(ctx, []string{"config", "--get-all", "remote.origin.fetch"}, vcsdriver.RunOptions{Cwd: m.Dir})
	if err != nil {
		return fmt.Errorf("failed to read existing fetch specs: %w", err)
	}

	for _, line := range splitNonEmptyLines(out) {
		m.AddRef(line)
	}

	return nil
}

// configure writes the mirror's git configuration (§4.5 step "configure")
// ahead of fetch. Only the first write, gc.autodetach, converts its
// failure into ErrClobberNeeded: it is the earliest point a dangling
// gc process or a half-initialized repository reveals itself.
func (e *Engine) configure(ctx context.Context, m *Mirror, cwd string) error {
	if _, err := e.VCS.Run(ctx, []string{"config", "gc.autodetach", "0"}, vcsdriver.RunOptions{Cwd: cwd}); err != nil {
		return fmt.Errorf("%w: failed to set gc.autodetach: %w", ErrClobberNeeded, err)
	}

	if _, supported := m.BootstrapBucket(); supported {
		if _, err := e.VCS.Run(ctx, []string{"config", "gc.autopacklimit", "0"}, vcsdriver.RunOptions{Cwd: cwd}); err != nil {
			return fmt.Errorf("failed to set gc.autopacklimit: %w", err)
		}
	}

	if _, err := e.VCS.Run(ctx, []string{"config", "core.deltaBaseCacheLimit", e.deltaBaseCacheLimit()}, vcsdriver.RunOptions{Cwd: cwd}); err != nil {
		return fmt.Errorf("failed to set core.deltaBaseCacheLimit: %w", err)
	}

	if _, err := e.VCS.Run(ctx, []string{"config", "remote.origin.url", m.URL}, vcsdriver.RunOptions{Cwd: cwd}); err != nil {
		return fmt.Errorf("failed to set remote.origin.url: %w", err)
	}

	builtin := ParseFetchSpec(BuiltinFetchLine)
	if _, err := e.VCS.Run(ctx, []string{
		"config", "--replace-all", "remote.origin.fetch", builtin.Line, builtin.Regex,
	}, vcsdriver.RunOptions{Cwd: cwd}); err != nil {
		return fmt.Errorf("failed to configure built-in fetch spec: %w", err)
	}

	for _, spec := range m.FetchSpecs.sorted() {
		if spec.Line == builtin.Line {
			continue
		}

		if _, err := e.VCS.Run(ctx, []string{
			"config", "--replace-all", "remote.origin.fetch", spec.Line, spec.Regex,
		}, vcsdriver.RunOptions{Cwd: cwd}); err != nil {
			return fmt.Errorf("failed to configure fetch spec %q: %w", spec.Line, err)
		}
	}

	return nil
}

// fetch configures cwd and runs one "git fetch" per configured fetch
// spec. A failure fetching the built-in spec is raised as
// ErrClobberNeeded (the mirror cannot serve any client without it); a
// failure fetching any other spec is logged and the remaining specs
// still run.
func (e *Engine) fetch(ctx context.Context, m *Mirror, cwd string, depth int, verbose bool) error {
	if err := e.configure(ctx, m, cwd); err != nil {
		return err
	}

	out, err := e.VCS.Run(ctx, []string{"config", "--get-all", "remote.origin.fetch"}, vcsdriver.RunOptions{Cwd: cwd})
	if err != nil {
		return fmt.Errorf("failed to read configured fetch specs: %w", err)
	}

	specs := splitNonEmptyLines(out)

	baseArgs := []string{"fetch"}
	if verbose {
		baseArgs = append(baseArgs, "-v", "--progress")
	}

	if depth != 0 {
		baseArgs = append(baseArgs, "--depth", strconv.Itoa(depth))
	}

	baseArgs = append(baseArgs, "origin")

	for _, specLine := range specs {
		args := append(append([]string{}, baseArgs...), specLine)

		if _, err := e.VCS.Run(ctx, args, vcsdriver.RunOptions{Cwd: cwd, Retry: true}); err != nil {
			if specLine == BuiltinFetchLine {
				return fmt.Errorf("%w: fetch of built-in refspec failed: %w", ErrClobberNeeded, err)
			}

			e.Log.Warn("fetch of refspec failed, continuing with remaining specs", "spec", specLine, "error", err)

			continue
		}
	}

	return nil
}

// swapIn atomically replaces final with staging: the previous final
// directory (if any) is removed first, then staging is renamed into
// place, both steps retried against transient filesystem errors.
func (e *Engine) swapIn(ctx context.Context, staging, final string) error {
	if e.fileOrDirExists(final) {
		if err := e.removeAll(ctx, final); err != nil {
			return fmt.Errorf("failed to remove previous mirror before swap-in: %w", err)
		}
	}

	return retry.Do(ctx, func() error {
		if err := e.Fs.Rename(staging, final); err != nil {
			return fmt.Errorf("%w: %w", ErrFilesystemTransient, err)
		}

		return nil
	}, retry.Options{
		Name:      fmt.Sprintf("rename %s -> %s", staging, final),
		Retryable: []error{ErrFilesystemTransient},
		Reporter:  func(line string) { e.Log.Warn(line) },
	})
}

func (e *Engine) removeAll(ctx context.Context, path string) error {
	return retry.Do(ctx, func() error {
		if err := e.Fs.RemoveAll(path); err != nil {
			return fmt.Errorf("%w: %w", ErrFilesystemTransient, err)
		}

		return nil
	}, retry.Options{
		Name:      "remove " + path,
		Retryable: []error{ErrFilesystemTransient},
		Reporter:  func(line string) { e.Log.Warn(line) },
	})
}

// UpdateBootstrap packs m's mirror as tightly as possible, archives it,
// and uploads the archive to the bootstrap bucket under a generation
// number taken from the default branch's commit count, optionally
// pruning every older generation already in the bucket.
func (e *Engine) UpdateBootstrap(ctx context.Context, m *Mirror, prune bool) error {
	bucket, ok := m.BootstrapBucket()
	if !ok {
		return fmt.Errorf("%w: %s is not on the bootstrap allowlist", ErrUsage, m.URL)
	}

	if !e.zipIsAvailable() {
		return fmt.Errorf("%w", ErrZipUnreliable)
	}

	if e.ObjectStore == nil {
		return fmt.Errorf("%w: no object store configured", ErrBootstrapUnavailable)
	}

	defaultBranch, err := e.defaultBranch(ctx, m)
	if err != nil {
		return err
	}

	genOut, err := e.VCS.Run(ctx, []string{"rev-list", "--count", defaultBranch}, vcsdriver.RunOptions{Cwd: m.Dir})
	if err != nil {
		return fmt.Errorf("failed to determine generation number: %w", err)
	}

	generation := strings.TrimSpace(genOut)

	if _, err := e.VCS.Run(ctx, []string{"gc", "--prune=all"}, vcsdriver.RunOptions{Cwd: m.Dir}); err != nil {
		return fmt.Errorf("failed to gc mirror before archiving: %w", err)
	}

	scratchDir, err := scratch.New(e.Fs, e.CacheRoot, archive.ScratchPrefix, "")
	if err != nil {
		return fmt.Errorf("failed to create scratch dir for archive: %w", err)
	}
	defer func() {
		if rmErr := e.removeAll(ctx, scratchDir); rmErr != nil {
			e.Log.Error("failed to remove archive scratch dir", "dir", scratchDir, "error", rmErr)
		}
	}()

	zipPath := filepath.Join(scratchDir, m.Basename+".zip")
	if err := e.runZip(ctx, []string{"-r", zipPath, "."}, m.Dir); err != nil {
		return fmt.Errorf("failed to create bootstrap archive: %w", err)
	}

	key := fmt.Sprintf("%s/%s.zip", m.Basename, generation)

	f, err := e.Fs.Open(zipPath)
	if err != nil {
		return fmt.Errorf("failed to open bootstrap archive: %w", err)
	}

	uploadErr := e.ObjectStore.Upload(ctx, bucket, key, f)
	f.Close()

	if uploadErr != nil {
		return fmt.Errorf("failed to upload bootstrap archive: %w", uploadErr)
	}

	if !prune {
		return nil
	}

	keys, err := e.ObjectStore.List(ctx, bucket, m.Basename+"/")
	if err != nil {
		e.Log.Warn("failed to list archives for pruning", "bucket", bucket, "error", err)

		return nil
	}

	for _, k := range keys {
		if k == key {
			continue
		}

		if err := e.ObjectStore.Delete(ctx, bucket, k); err != nil {
			e.Log.Warn("failed to delete superseded bootstrap archive", "key", k, "error", err)
		}
	}

	return nil
}

// defaultBranch resolves the branch update_bootstrap measures a
// generation number against: origin's recorded HEAD symref, falling back
// to whichever of master/main actually exists. This is a stock-git
// substitute for the upstream generation scheme, which relied on a
// nonstandard "git number" subcommand with no portable equivalent.
func (e *Engine) defaultBranch(ctx context.Context, m *Mirror) (string, error) {
	if out, err := e.VCS.Run(ctx, []string{"symbolic-ref", "refs/remotes/origin/HEAD"}, vcsdriver.RunOptions{Cwd: m.Dir}); err == nil {
		if ref := strings.TrimSpace(out); ref != "" {
			return ref, nil
		}
	}

	for _, candidate := range []string{"refs/heads/master", "refs/heads/main"} {
		if _, err := e.VCS.Run(ctx, []string{"rev-parse", "--verify", candidate}, vcsdriver.RunOptions{Cwd: m.Dir}); err == nil {
			return candidate, nil
		}
	}

	return "", fmt.Errorf("failed to determine default branch for %s", m.URL)
}

// CleanTempPacks deletes stale ".tmp-*" and "tmp_pack_*" files left in
// objects/pack by a git process that was killed mid-repack. A file it
// cannot remove is logged and skipped; only a failure to list the pack
// directory is returned as an error.
func (e *Engine) CleanTempPacks(path string) error {
	packDir := filepath.Join(path, "objects", "pack")

	info, err := e.Fs.Stat(packDir)
	if err != nil || !info.IsDir() {
		return nil
	}

	entries, err := afero.ReadDir(e.Fs, packDir)
	if err != nil {
		return fmt.Errorf("failed to list pack directory: %q (%w)", packDir, err)
	}

	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasPrefix(name, tmpPackPrefixA) && !strings.HasPrefix(name, tmpPackPrefixB) {
			continue
		}

		full := filepath.Join(packDir, name)
		if err := e.Fs.Remove(full); err != nil {
			e.Log.Warn("unable to delete stale temporary pack file", "path", full, "error", err)

			continue
		}

		e.Log.Warn("deleted stale temporary pack file", "path", full)
	}

	return nil
}

func (e *Engine) countPackFiles(dir string) (int, error) {
	packDir := filepath.Join(dir, "objects", "pack")

	info, err := e.Fs.Stat(packDir)
	if err != nil || !info.IsDir() {
		return 0, nil
	}

	entries, err := afero.ReadDir(e.Fs, packDir)
	if err != nil {
		return 0, fmt.Errorf("failed to list pack directory: %q (%w)", packDir, err)
	}

	count := 0

	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), ".pack") {
			count++
		}
	}

	return count, nil
}

func (e *Engine) fileExists(path string) bool {
	info, err := e.Fs.Stat(path)

	return err == nil && !info.IsDir()
}

func (e *Engine) fileOrDirExists(path string) bool {
	_, err := e.Fs.Stat(path)

	return err == nil
}

// runZip shells out to the system "zip" tool, reusing the VCS Driver's
// generic process runner since its job here (run a process in a
// directory, capture its output, surface a typed failure) is identical
// to running git itself.
func (e *Engine) runZip(ctx context.Context, args []string, cwd string) error {
	var out strings.Builder
	if err := e.ProcRunner.Run(ctx, "zip", args, cwd, nil, &out); err != nil {
		return fmt.Errorf("zip command failed: %w: %s", err, out.String())
	}

	return nil
}

// zipAvailable reports whether a trustworthy "zip" executable is on
// PATH. Windows hosts typically lack one entirely, mirroring the
// upstream tool's own refusal to run update_bootstrap there.
func zipAvailable() bool {
	if runtime.GOOS == "windows" {
		return false
	}

	_, err := exec.LookPath("zip")

	return err == nil
}

func splitNonEmptyLines(s string) []string {
	var lines []string

	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			lines = append(lines, line)
		}
	}

	return lines
}
