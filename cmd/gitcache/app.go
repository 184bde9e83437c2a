package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"runtime"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/spf13/afero"

	"github.com/srcmirror/gitcache/internal/archive"
	"github.com/srcmirror/gitcache/internal/cachepath"
	"github.com/srcmirror/gitcache/internal/mirror"
	"github.com/srcmirror/gitcache/internal/objectstore"
	"github.com/srcmirror/gitcache/internal/vcsdriver"
)

// app holds the process-wide, once-resolved dependencies every verb
// needs: the filesystem, the VCS Driver, the object store client, the
// resolved cache root, and the Mirror Engine built from all of them.
type app struct {
	fs  afero.Fs
	log *slog.Logger

	cacheDirFlag string
	gitExe       string

	awsAccessKeyID     string
	awsSecretAccessKey string

	cacheDir string
	vcs      *vcsdriver.Driver
	engine   *mirror.Engine
}

// init resolves the cache path and builds the engine. It is called once
// from the root command's PersistentPreRunE, after flags (and any
// --config file) have been merged.
func (a *app) init(ctx context.Context) error {
	a.vcs = vcsdriver.New(a.gitExe, a.log, os.Environ())

	cacheDir, err := cachepath.Resolve(ctx, a.vcs, a.cacheDirFlag, a.log)
	if err != nil {
		return err
	}

	cachepath.WarnIfMismatched(ctx, a.vcs, a.cacheDirFlag, a.log)

	a.cacheDir = cacheDir

	var store objectstore.Store

	var opts []func(*awsconfig.LoadOptions) error
	if a.awsAccessKeyID != "" || a.awsSecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(a.awsAccessKeyID, a.awsSecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		a.log.Warn("failed to load AWS configuration; bootstrap archive operations will be unavailable", "error", err)
	} else {
		store = objectstore.New(s3.NewFromConfig(awsCfg))
	}

	fetcher := archive.New(a.fs, store, a.cacheDir, runtime.GOOS, a.log)
	a.engine = mirror.New(a.fs, a.vcs, fetcher, store, a.cacheDir, a.log)

	return nil
}

func newApp() *app {
	return &app{
		fs:     afero.NewOsFs(),
		gitExe: "git",
	}
}

func (a *app) newMirror(rawURL string, refs []string) (*mirror.Mirror, error) {
	m, err := mirror.New(rawURL, a.cacheDir, refs)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve mirror for %q: %w", rawURL, err)
	}

	return m, nil
}
