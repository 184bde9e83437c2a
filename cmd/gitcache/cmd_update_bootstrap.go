package main

import (
	"github.com/spf13/cobra"

	"github.com/srcmirror/gitcache/internal/mirror"
)

func newUpdateBootstrapCmd(a *app) *cobra.Command {
	var prune bool

	cmd := &cobra.Command{
		Use:   "update-bootstrap <url>",
		Short: "Publish the mirror for <url> as the newest bootstrap archive generation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := a.newMirror(args[0], nil)
			if err != nil {
				return err
			}

			// Ensure the mirror is current before archiving it; never
			// bootstrap from an archive just to immediately replace it.
			if err := a.engine.Populate(cmd.Context(), m, mirror.PopulateOptions{Bootstrap: false}); err != nil {
				return err
			}

			return a.engine.UpdateBootstrap(cmd.Context(), m, prune)
		},
	}

	cmd.Flags().BoolVar(&prune, "prune", false, "delete every older bootstrap generation already published")

	return cmd
}
