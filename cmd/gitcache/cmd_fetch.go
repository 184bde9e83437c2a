package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/srcmirror/gitcache/internal/mirror"
	"github.com/srcmirror/gitcache/internal/vcsdriver"
)

var errFetchAllTakesNoArgs = fmt.Errorf("%w: fetch --all does not take a remote argument", mirror.ErrUsage)

func newFetchCmd(a *app) *cobra.Command {
	var (
		all         bool
		noBootstrap bool
	)

	cmd := &cobra.Command{
		Use:   "fetch [remotes...]",
		Short: "Update the mirror behind one or more remotes, then fetch in the current checkout",
		RunE: func(cmd *cobra.Command, args []string) error {
			if all && len(args) > 0 {
				return errFetchAllTakesNoArgs
			}

			ctx := cmd.Context()
			verbose, _ := cmd.Flags().GetCount("verbose")
			opts := mirror.PopulateOptions{Bootstrap: !noBootstrap, Verbose: verbose > 0}

			gitDir, err := a.vcs.Run(ctx, []string{"rev-parse", "--git-dir"}, vcsdriver.RunOptions{})
			if err == nil {
				if dir := strings.TrimSpace(gitDir); underCacheRoot(dir, a.cacheDir) {
					return a.engine.Populate(ctx, mirror.FromPath(dir), opts)
				}
			}

			remotes, err := resolveRemotes(ctx, a.vcs, all, args)
			if err != nil {
				return err
			}

			var firstErr error

			record := func(err error) {
				if err != nil {
					a.log.Error("fetch step failed", "error", err)

					if firstErr == nil {
						firstErr = err
					}
				}
			}

			for _, remote := range remotes {
				if url, err := a.vcs.Run(ctx, []string{"config", "remote." + remote + ".url"}, vcsdriver.RunOptions{}); err == nil {
					if u := strings.TrimSpace(url); underCacheRoot(u, a.cacheDir) {
						a.log.Info("updating git cache", "remote", remote)
						record(a.engine.Populate(ctx, mirror.FromPath(u), opts))
					}
				}

				_, err := a.vcs.Run(ctx, []string{"fetch", remote}, vcsdriver.RunOptions{Retry: true})
				record(err)
			}

			return firstErr
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "fetch every remote configured in the current checkout")
	cmd.Flags().BoolVar(&noBootstrap, "no-bootstrap", false, "never build from a published bootstrap archive")

	return cmd
}

// underCacheRoot reports whether path names a location inside the cache
// root, the way the original distinguishes a remote that points directly
// at a mirror from one that points at the original upstream.
func underCacheRoot(path, cacheRoot string) bool {
	return cacheRoot != "" && strings.HasPrefix(path, cacheRoot)
}

// resolveRemotes mimics plain "git fetch"'s remote-selection behavior:
// --all enumerates every configured remote; explicit arguments are used
// verbatim; with neither, the current branch's upstream remote is used,
// falling back to "origin" when there is no tracked upstream.
func resolveRemotes(ctx context.Context, vcs *vcsdriver.Driver, all bool, args []string) ([]string, error) {
	if all {
		out, err := vcs.Run(ctx, []string{"remote"}, vcsdriver.RunOptions{})
		if err != nil {
			return nil, err
		}

		remotes := splitNonEmptyLines(out)
		if len(remotes) == 0 {
			remotes = []string{"origin"}
		}

		return remotes, nil
	}

	if len(args) > 0 {
		return args, nil
	}

	branch, err := vcs.Run(ctx, []string{"rev-parse", "--abbrev-ref", "HEAD"}, vcsdriver.RunOptions{})
	if err == nil {
		if branch = strings.TrimSpace(branch); branch != "HEAD" {
			upstream, err := vcs.Run(ctx, []string{"config", "branch." + branch + ".remote"}, vcsdriver.RunOptions{})
			if err == nil {
				if upstream = strings.TrimSpace(upstream); upstream != "" && upstream != "." {
					return []string{upstream}, nil
				}
			}
		}
	}

	return []string{"origin"}, nil
}

func splitNonEmptyLines(s string) []string {
	var lines []string

	for _, line := range strings.Split(s, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}

	return lines
}
