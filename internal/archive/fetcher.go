package archive

import (
	"context"
	"fmt"
	"log/slog"
	"path"

	"github.com/spf13/afero"

	"github.com/srcmirror/gitcache/internal/objectstore"
	"github.com/srcmirror/gitcache/internal/retry"
	"github.com/srcmirror/gitcache/internal/scratch"
)

// ScratchPrefix names scratch directories created by the Archive Fetcher,
// distinguishing them in directory listings from mirror StagingDirectories.
const ScratchPrefix = "_cache_tmp"

// errRemoveTransient is the retryable kind used when cleaning up a scratch
// directory: recursive deletes race with background indexers on some
// filesystems, same as mirror rename-in.
var errRemoveTransient = fmt.Errorf("transient filesystem error")

// Fetcher implements the Archive Fetcher component (§4.4).
type Fetcher struct {
	Fs         afero.Fs
	Store      objectstore.Store
	Extractors []Extractor
	CacheRoot  string
	Log        *slog.Logger
}

// New builds a Fetcher with the default, platform-appropriate extractor
// list.
func New(fs afero.Fs, store objectstore.Store, cacheRoot string, goos string, log *slog.Logger) *Fetcher {
	return &Fetcher{
		Fs:         fs,
		Store:      store,
		Extractors: DefaultExtractors(goos),
		CacheRoot:  cacheRoot,
		Log:        log,
	}
}

// TryBootstrap attempts to populate targetDir from the newest bootstrap
// archive under bucket/basename/. It never returns an error: a false
// return means "proceed with init-empty or incremental fetch instead",
// per §7's BootstrapUnavailable handling.
func (f *Fetcher) TryBootstrap(ctx context.Context, bucket, basename, targetDir string) bool {
	if bucket == "" || f.Store == nil {
		return false
	}

	prefix := basename + "/"

	keys, err := f.Store.List(ctx, bucket, prefix)
	if err != nil {
		f.Log.Warn("failed to list bootstrap archives", "bucket", bucket, "prefix", prefix, "error", err)

		return false
	}

	if len(keys) == 0 {
		f.Log.Info("no bootstrap archive available", "bucket", bucket, "prefix", prefix)

		return false
	}

	latest := keys[len(keys)-1]

	scratchDir, err := scratch.New(f.Fs, f.CacheRoot, ScratchPrefix, "")
	if err != nil {
		f.Log.Warn("failed to create scratch dir for bootstrap download", "error", err)

		return false
	}
	defer f.cleanupScratch(ctx, scratchDir)

	localZip := path.Join(scratchDir, path.Base(latest))

	if err := f.download(ctx, bucket, latest, localZip); err != nil {
		f.Log.Warn("failed to download bootstrap archive", "bucket", bucket, "key", latest, "error", err)

		return false
	}

	size, err := f.statSize(localZip)
	if err != nil {
		f.Log.Warn("failed to stat downloaded bootstrap archive", "path", localZip, "error", err)

		return false
	}

	extractor, ok := Select(f.Extractors, size)
	if !ok {
		f.Log.Warn("no extractor available for bootstrap archive", "path", localZip, "size", size)

		return false
	}

	f.Log.Info("extracting bootstrap archive", "path", localZip, "extractor", extractor.Name(), "target", targetDir)

	if err := extractor.Extract(ctx, localZip, targetDir); err != nil {
		f.Log.Warn("failed to extract bootstrap archive", "extractor", extractor.Name(), "error", err)

		return false
	}

	return true
}

func (f *Fetcher) download(ctx context.Context, bucket, key, dst string) error {
	out, err := f.Fs.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create local file: %q (%w)", dst, err)
	}
	defer out.Close()

	if err := f.Store.Download(ctx, bucket, key, out); err != nil {
		return err
	}

	return nil
}

func (f *Fetcher) statSize(path string) (int64, error) {
	info, err := f.Fs.Stat(path)
	if err != nil {
		return 0, err
	}

	return info.Size(), nil
}

// cleanupScratch always removes the scratch directory, retrying on
// transient filesystem errors exactly like the mirror's rename-in path.
func (f *Fetcher) cleanupScratch(ctx context.Context, dir string) {
	err := retry.Do(ctx, func() error {
		if err := f.Fs.RemoveAll(dir); err != nil {
			return fmt.Errorf("%w: %w", errRemoveTransient, err)
		}

		return nil
	}, retry.Options{
		Name:      "remove scratch dir " + dir,
		Retryable: []error{errRemoveTransient},
		Reporter: func(line string) {
			f.Log.Warn(line)
		},
	})
	if err != nil {
		f.Log.Error("failed to remove scratch dir", "path", dir, "error", err)
	}
}
