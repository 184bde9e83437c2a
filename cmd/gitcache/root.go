package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/srcmirror/gitcache/internal/applog"
)

func newRootCmd() *cobra.Command {
	a := newApp()

	var (
		configPath string
		verbosity  int
		quiet      bool
		jsonLogs   bool
	)

	root := &cobra.Command{
		Use:           "gitcache",
		Short:         "Manage a shared local mirror cache for remote git repositories",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if configPath != "" {
				if err := mergeConfigFile(cmd, configPath, &a.cacheDirFlag, &verbosity, &quiet, &jsonLogs); err != nil {
					return err
				}
			}

			level := applog.LevelFromVerbosity(verbosity, quiet)
			a.log = applog.New(os.Stderr, level, jsonLogs)

			return a.init(cmd.Context())
		},
	}

	root.PersistentFlags().StringVarP(&a.cacheDirFlag, "cache-dir", "c", "", "cache root directory (default: git config --global cache.cachepath)")
	root.PersistentFlags().CountVarP(&verbosity, "verbose", "v", "increase log verbosity (repeatable)")
	root.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress all but error logs")
	root.PersistentFlags().BoolVar(&jsonLogs, "json", false, "emit logs as JSON lines")
	root.PersistentFlags().StringVar(&configPath, "config", "", "optional YAML file providing flag defaults")
	root.PersistentFlags().StringVar(&a.awsAccessKeyID, "aws-access-key-id", "", "static AWS access key for the bootstrap object store (default: ambient AWS credential chain)")
	root.PersistentFlags().StringVar(&a.awsSecretAccessKey, "aws-secret-access-key", "", "static AWS secret key for the bootstrap object store")

	root.AddCommand(
		newExistsCmd(a),
		newPopulateCmd(a),
		newFetchCmd(a),
		newUpdateBootstrapCmd(a),
	)

	return root
}
